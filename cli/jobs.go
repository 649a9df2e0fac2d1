package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	vhttp "vidflow/http"
	"vidflow/internal/tui"
	"vidflow/media"
	"vidflow/task"
)

// jobFlags are the flags of commands that run a backend job.
type jobFlags struct {
	config *string
	dir    *string
	plain  *bool
	save   *saveFlag
	// format is the transcript output format; nil for artifact-only commands.
	format *string
}

// saveFlag is --no-save for artifact workflows and --save for transcripts.
type saveFlag struct {
	inverted *bool
	direct   *bool
}

func (f *saveFlag) enabled() bool {
	if f.direct != nil {
		return *f.direct
	}
	return !*f.inverted
}

func addJobFlags(fs *flag.FlagSet, save bool) jobFlags {
	f := jobFlags{
		config: commonFlags(fs),
		dir:    fs.String("dir", "", "Directory to save the result (default: output_dir from config)"),
		plain:  fs.Bool("plain", false, "Print one line per status update instead of a progress bar"),
	}
	if save {
		noSave := fs.Bool("no-save", false, "Do not save the result, only report it")
		f.save = &saveFlag{inverted: noSave}
	} else {
		f.save = &saveFlag{direct: fs.Bool("save", false, "Save the result into --dir instead of printing it")}
	}
	return f
}

func cmdVideo(args []string) {
	fs := flag.NewFlagSet("video", flag.ExitOnError)
	format := fs.String("format", "", "Format id from 'vidflow formats' (required)")
	jf := addJobFlags(fs, true)
	usage(fs, "video [flags] <video-url>")
	videoURL := parseArgs(fs, args, "video-url")[0]
	if *format == "" {
		fatalf("Error: --format is required; list formats with: vidflow formats %s", videoURL)
	}
	runJob(jf, media.Video, media.VideoRequest(videoURL, *format), videoURL)
}

func cmdAudio(args []string) {
	fs := flag.NewFlagSet("audio", flag.ExitOnError)
	jf := addJobFlags(fs, true)
	usage(fs, "audio [flags] <video-url>")
	videoURL := parseArgs(fs, args, "video-url")[0]
	runJob(jf, media.Audio, media.AudioRequest(videoURL), videoURL)
}

func cmdCut(args []string) {
	fs := flag.NewFlagSet("cut", flag.ExitOnError)
	start := fs.String("start", "", "Fragment start, HH:MM:SS (required)")
	end := fs.String("end", "", "Fragment end, HH:MM:SS (required)")
	deleteOriginal := fs.Bool("delete-original", false, "Delete the source video on the server afterwards")
	jf := addJobFlags(fs, true)
	usage(fs, "cut [flags] <task-id>")
	taskID := parseArgs(fs, args, "task-id of a finished video download")[0]
	if *start == "" || *end == "" {
		fatalf("Error: --start and --end are required")
	}
	runJob(jf, media.Fragment, media.CutRequest{
		TaskID:         taskID,
		StartTime:      *start,
		EndTime:        *end,
		DeleteOriginal: *deleteOriginal,
	}, "")
}

func cmdFragment(args []string) {
	fs := flag.NewFlagSet("fragment", flag.ExitOnError)
	start := fs.String("start", "", "Fragment start, HH:MM:SS (required)")
	end := fs.String("end", "", "Fragment end, HH:MM:SS (required)")
	jf := addJobFlags(fs, true)
	usage(fs, "fragment [flags] <video-url>")
	videoURL := parseArgs(fs, args, "video-url")[0]
	if *start == "" || *end == "" {
		fatalf("Error: --start and --end are required")
	}
	runJob(jf, media.DownloadFragment, media.FragmentRequest(videoURL, *start, *end), videoURL)
}

func cmdTranscript(args []string) {
	fs := flag.NewFlagSet("transcript", flag.ExitOnError)
	jf := addJobFlags(fs, false)
	jf.format = fs.String("format", "txt", "Transcript format: txt, srt, vtt or json")
	usage(fs, "transcript [flags] <video-url>")
	videoURL := parseArgs(fs, args, "video-url")[0]
	runJob(jf, media.Transcript, media.TranscriptRequest(videoURL), videoURL)
}

func cmdStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	kindName := fs.String("kind", "video", "Workflow of the job: video, audio, fragment, download_fragment or transcript")
	jf := addJobFlags(fs, true)
	jf.format = fs.String("format", "txt", "Transcript format when --kind is transcript: txt, srt, vtt or json")
	usage(fs, "status [flags] <task-id>")
	taskID := parseArgs(fs, args, "task-id")[0]
	kind, ok := media.LookupKind(*kindName)
	if !ok {
		fatalf("Error: unknown --kind %q", *kindName)
	}

	a := newApp(*jf.config)
	defer a.close()
	follow(a, jf, kind, kind.Name+" "+taskID, func(ctx context.Context, c *media.Client, opts media.RunOptions) (*media.Result, error) {
		return c.Resume(ctx, kind, taskID, opts)
	})
}

// runJob submits one job and follows it to the end.
func runJob(jf jobFlags, kind media.Kind, body any, sourceURL string) {
	a := newApp(*jf.config)
	defer a.close()
	title := kind.Name
	if sourceURL != "" {
		title += " " + sourceURL
	}
	follow(a, jf, kind, title, func(ctx context.Context, c *media.Client, opts media.RunOptions) (*media.Result, error) {
		opts.SourceURL = sourceURL
		return c.Run(ctx, kind, body, opts)
	})
}

type runFunc func(ctx context.Context, c *media.Client, opts media.RunOptions) (*media.Result, error)

func follow(a *app, jf jobFlags, kind media.Kind, title string, run runFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	interactive := !*jf.plain && tui.IsTerminal(os.Stdout)
	opts := media.Options{
		Interval:    a.cfg.PollInterval,
		MaxAttempts: a.cfg.MaxAttempts,
	}
	if interactive {
		// Log lines would tear the progress view.
		opts.Logf = func(string, ...any) {}
	}
	if store := a.history(); store != nil {
		defer store.Close()
		opts.History = store
	}
	client := media.NewClient(a.http, opts)

	var format media.CaptionFormat
	if jf.format != nil {
		var err error
		if format, err = media.ParseCaptionFormat(*jf.format); err != nil {
			fatalf("Error: %v", err)
		}
	}

	dir := *jf.dir
	if dir == "" {
		dir = a.cfg.OutputDir
	}
	var res *media.Result
	work := func(ctx context.Context, update func(task.Snapshot)) error {
		var err error
		res, err = run(ctx, client, media.RunOptions{
			OnUpdate:         update,
			AutoSave:         jf.save.enabled(),
			OutputDir:        dir,
			TranscriptFormat: format,
		})
		return err
	}

	var err error
	if interactive {
		err = tui.Run(ctx, title, os.Stdout, work)
	} else {
		err = work(ctx, tui.NewLineWriter(os.Stderr).Update)
	}
	report(kind, res, err)
}

func report(kind media.Kind, res *media.Result, err error) {
	if res != nil && res.Handle != nil {
		fmt.Fprintf(os.Stderr, "Task: %s\n", res.Handle.ID)
	}
	if err != nil {
		switch {
		case errors.Is(err, vhttp.ErrUnauthorized):
			fatalf("Error: not authorized; log in with: vidflow login <username>")
		case errors.Is(err, task.ErrJobFailed):
			fatalf("Error: %s job failed: %v", kind.Name, err)
		case errors.Is(err, context.Canceled):
			fatalf("Interrupted; resume with: vidflow status --kind %s <task-id>", kind.Name)
		default:
			fatalf("Error: %v", err)
		}
	}

	switch {
	case res.Pending:
		fmt.Fprintln(os.Stderr, "The job is already queued on the server; try again later.")
	case res.Path != "":
		fmt.Fprintf(os.Stderr, "Saved to: %s\n", res.Path)
	case res.Transcript != "":
		fmt.Println(res.Transcript)
	case res.Artifact != nil:
		fmt.Fprintf(os.Stderr, "Ready: %s (%d bytes, %s)\n", res.Artifact.Filename, res.Artifact.Size, orDash(res.Artifact.ContentType))
	}
}
