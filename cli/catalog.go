package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"vidflow/media"
)

const catalogTimeout = 30 * time.Second

func catalogContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), catalogTimeout)
}

func cmdFormats(args []string) {
	fs := flag.NewFlagSet("formats", flag.ExitOnError)
	cfgPath := commonFlags(fs)
	usage(fs, "formats [flags] <video-url>")
	videoURL := parseArgs(fs, args, "video-url")[0]

	a := newApp(*cfgPath)
	defer a.close()
	ctx, cancel := catalogContext()
	defer cancel()

	fmt.Fprintf(os.Stderr, "Fetching formats for %s...\n", videoURL)
	list, err := media.NewClient(a.http, media.Options{}).VideoFormats(ctx, videoURL)
	if err != nil {
		fatalf("Error fetching formats: %v", err)
	}

	fmt.Printf("Title: %s\n\n", list.Title)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FORMAT\tRESOLUTION\tEXT\tSIZE")
	for _, f := range list.Formats {
		size := "-"
		if f.FilesizeMB > 0 {
			size = fmt.Sprintf("%.1f MB", float64(f.FilesizeMB))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.ID, orDash(f.Resolution), orDash(f.Ext), size)
	}
	w.Flush()
}

func cmdChannels(args []string) {
	fs := flag.NewFlagSet("channels", flag.ExitOnError)
	cfgPath := commonFlags(fs)
	usage(fs, "channels [flags] <handle>")
	handle := strings.TrimPrefix(parseArgs(fs, args, "channel handle")[0], "@")

	a := newApp(*cfgPath)
	defer a.close()
	ctx, cancel := catalogContext()
	defer cancel()

	channels, err := media.NewCatalog(a.http).SearchChannels(ctx, handle)
	if err != nil {
		fatalf("Error searching channels: %v", err)
	}
	if len(channels) == 0 {
		fmt.Println("No channels found.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHANNEL ID\tTITLE\tDESCRIPTION")
	for _, c := range channels {
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.ID, truncate(c.Title, 40), truncate(orDash(c.Description), 50))
	}
	w.Flush()
}

func cmdPlaylists(args []string) {
	fs := flag.NewFlagSet("playlists", flag.ExitOnError)
	cfgPath := commonFlags(fs)
	usage(fs, "playlists [flags] <channel-id>")
	channelID := parseArgs(fs, args, "channel-id")[0]

	a := newApp(*cfgPath)
	defer a.close()
	ctx, cancel := catalogContext()
	defer cancel()

	playlists, err := media.NewCatalog(a.http).ChannelPlaylists(ctx, channelID)
	if err != nil {
		fatalf("Error fetching playlists: %v", err)
	}
	if len(playlists) == 0 {
		fmt.Println("No playlists found.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PLAYLIST ID\tTITLE\tDESCRIPTION")
	for _, p := range playlists {
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.ID, truncate(p.Title, 40), truncate(orDash(p.Description), 50))
	}
	w.Flush()
}

func cmdPlaylist(args []string) {
	fs := flag.NewFlagSet("playlist", flag.ExitOnError)
	cfgPath := commonFlags(fs)
	maxVideos := fs.Int("max", 0, "Maximum videos to list (0 = server default)")
	usage(fs, "playlist [flags] <playlist-id>")
	playlistID := parseArgs(fs, args, "playlist-id")[0]

	a := newApp(*cfgPath)
	defer a.close()
	ctx, cancel := catalogContext()
	defer cancel()

	videos, err := media.NewCatalog(a.http).PlaylistVideos(ctx, playlistID, *maxVideos)
	if err != nil {
		fatalf("Error fetching playlist: %v", err)
	}
	printVideos(videos)
}

func cmdVideos(args []string) {
	fs := flag.NewFlagSet("videos", flag.ExitOnError)
	cfgPath := commonFlags(fs)
	maxVideos := fs.Int("max", 0, "Maximum videos to list (0 = server default)")
	usage(fs, "videos [flags] <channel-id>")
	channelID := parseArgs(fs, args, "channel-id")[0]

	a := newApp(*cfgPath)
	defer a.close()
	ctx, cancel := catalogContext()
	defer cancel()

	videos, err := media.NewCatalog(a.http).ChannelVideos(ctx, channelID, *maxVideos)
	if err != nil {
		fatalf("Error fetching videos: %v", err)
	}
	printVideos(videos)
}

func printVideos(videos []media.Listing) {
	if len(videos) == 0 {
		fmt.Println("No videos found.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VIDEO ID\tTITLE\tPUBLISHED")
	for _, v := range videos {
		fmt.Fprintf(w, "%s\t%s\t%s\n", v.ID, truncate(v.Title, 50), orDash(v.PublishedAt))
	}
	w.Flush()
	fmt.Fprintf(os.Stderr, "\nTotal: %d videos\n", len(videos))
}

func cmdDetails(args []string) {
	fs := flag.NewFlagSet("details", flag.ExitOnError)
	cfgPath := commonFlags(fs)
	usage(fs, "details [flags] <video-id>")
	videoID := parseArgs(fs, args, "video-id")[0]

	a := newApp(*cfgPath)
	defer a.close()
	ctx, cancel := catalogContext()
	defer cancel()

	d, err := media.NewCatalog(a.http).VideoDetails(ctx, videoID)
	if err != nil {
		fatalf("Error fetching video details: %v", err)
	}
	fmt.Printf("Video ID:   %s\n", d.ID)
	fmt.Printf("Title:      %s\n", d.Title)
	fmt.Printf("Channel:    %s (%s)\n", orDash(d.ChannelTitle), orDash(d.ChannelID))
	fmt.Printf("Published:  %s\n", orDash(d.PublishedAt))
	fmt.Printf("Duration:   %s\n", orDash(d.Duration))
	fmt.Printf("Views:      %d\n", d.ViewCount)
	fmt.Printf("Likes:      %d\n", d.LikeCount)
	fmt.Printf("Comments:   %d\n", d.CommentCount)
	if len(d.Tags) > 0 {
		fmt.Printf("Tags:       %s\n", strings.Join(d.Tags, ", "))
	}
	if d.Description != "" {
		fmt.Printf("\n%s\n", d.Description)
	}
}
