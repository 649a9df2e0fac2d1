package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	vhttp "vidflow/http"
	"vidflow/internal/config"
	"vidflow/internal/storage"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "login":
		cmdLogin(args)
	case "logout":
		cmdLogout(args)
	case "formats":
		cmdFormats(args)
	case "video":
		cmdVideo(args)
	case "audio":
		cmdAudio(args)
	case "cut":
		cmdCut(args)
	case "fragment":
		cmdFragment(args)
	case "transcript":
		cmdTranscript(args)
	case "status":
		cmdStatus(args)
	case "channels":
		cmdChannels(args)
	case "playlists":
		cmdPlaylists(args)
	case "playlist":
		cmdPlaylist(args)
	case "videos":
		cmdVideos(args)
	case "details":
		cmdDetails(args)
	case "profile":
		cmdProfile(args)
	case "downloads":
		cmdDownloads(args)
	case "history":
		cmdHistory(args)
	case "stub":
		cmdStub(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `vidflow - client for the video processing backend

Usage:
  vidflow login [flags] <username>           Log in and store the access token
  vidflow logout                             Forget the stored token
  vidflow formats <video-url>                List downloadable qualities
  vidflow video [flags] <video-url>          Download a video
  vidflow audio [flags] <video-url>          Download the audio track
  vidflow cut [flags] <task-id>              Cut a fragment out of a downloaded video
  vidflow fragment [flags] <video-url>       Download only a fragment of a video
  vidflow transcript [flags] <video-url>     Get the transcript of a video
  vidflow status [flags] <task-id>           Follow a previously submitted job
  vidflow channels <handle>                  Search channels
  vidflow playlists <channel-id>             List the playlists of a channel
  vidflow playlist [flags] <playlist-id>     List the videos of a playlist
  vidflow videos [flags] <channel-id>        List the latest videos of a channel
  vidflow details <video-id>                 Show video metadata
  vidflow profile                            Show the logged-in account
  vidflow downloads [flags]                  List or fetch fragments kept by the backend
  vidflow history [flags]                    Show the local download history
  vidflow stub [flags]                       Run an in-memory backend for testing
  vidflow help                               Show this help message

Examples:
  vidflow login alice
  vidflow formats https://youtu.be/dQw4w9WgXcQ
  vidflow video --format 22 --dir ~/Downloads https://youtu.be/dQw4w9WgXcQ
  vidflow cut --start 00:00:10 --end 00:00:30 <task-id>
  vidflow status --kind audio <task-id>
  vidflow transcript --plain https://youtu.be/dQw4w9WgXcQ
  vidflow downloads --get 3 --dir ~/Downloads

For help on specific command: vidflow <command> -h
`)
}

// app holds what every backend command needs.
type app struct {
	cfg  *config.Config
	http *vhttp.Client
}

// commonFlags registers the flags shared by backend commands.
func commonFlags(fs *flag.FlagSet) *string {
	return fs.String("config", "", "Config file (default: vidflow.json/.yaml in the working or config directory)")
}

func newApp(configPath string) *app {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fatalf("Error loading config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		fatalf("Error: invalid config: %v", err)
	}
	return &app{cfg: cfg, http: vhttp.New(cfg.HTTPConfig())}
}

func (a *app) close() {
	a.http.Close()
}

func (a *app) history() *storage.JSONStore {
	store, err := storage.NewJSONStore(a.cfg.HistoryFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: download history unavailable: %v\n", err)
		return nil
	}
	return store
}

func parseArgs(fs *flag.FlagSet, args []string, want string) []string {
	fs.Parse(args)
	argv := fs.Args()
	if len(argv) == 0 {
		fmt.Fprintf(os.Stderr, "Error: missing %s\n", want)
		fs.Usage()
		os.Exit(1)
	}
	return argv
}

func usage(fs *flag.FlagSet, synopsis string) {
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vidflow %s\n\nFlags:\n", synopsis)
		fs.PrintDefaults()
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
