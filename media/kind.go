// Package media wires the task roles to the backend's concrete workflows:
// video and audio downloads, fragment cuts and transcripts. It also holds the
// thin read clients for the channel and video catalog, and login.
package media

import (
	"strings"
	"time"
)

// Kind describes one job workflow of the backend.
type Kind struct {
	Name string
	// SubmitPath starts the job with a POST.
	SubmitPath string
	// StatusPath is the status endpoint template, with "{id}".
	StatusPath string
	// ArtifactPath is the download endpoint template. Empty when the result is
	// delivered inline with the status.
	ArtifactPath string
	// DefaultFilename is used when the artifact response names no file.
	DefaultFilename string
	// Interval is the status cadence.
	Interval time.Duration
	// MaxAttempts bounds the number of status requests. Zero is unbounded.
	MaxAttempts int
}

// HasArtifact reports whether the workflow produces a downloadable file.
func (k Kind) HasArtifact() bool { return k.ArtifactPath != "" }

// Built-in workflows.
var (
	Video = Kind{
		Name:            "video",
		SubmitPath:      "/download_video",
		StatusPath:      "/download_video_status/{id}",
		ArtifactPath:    "/get_downloaded_video/{id}",
		DefaultFilename: "video.mp4",
		Interval:        time.Second,
	}
	Audio = Kind{
		Name:            "audio",
		SubmitPath:      "/download_audio",
		StatusPath:      "/download_audio_status/{id}",
		ArtifactPath:    "/get_downloaded_audio/{id}",
		DefaultFilename: "audio.mp3",
		Interval:        time.Second,
	}
	Fragment = Kind{
		Name:            "fragment",
		SubmitPath:      "/cut_video",
		StatusPath:      "/extract_fragment_status/{id}",
		ArtifactPath:    "/get_fragment/{id}",
		DefaultFilename: "fragment.mp4",
		Interval:        2 * time.Second,
		MaxAttempts:     30,
	}
	DownloadFragment = Kind{
		Name:            "download_fragment",
		SubmitPath:      "/download_fragment",
		StatusPath:      "/extract_fragment_status/{id}",
		ArtifactPath:    "/get_fragment/{id}",
		DefaultFilename: "fragment.mp4",
		Interval:        2 * time.Second,
		MaxAttempts:     30,
	}
	Transcript = Kind{
		Name:            "transcript",
		SubmitPath:      "/transcript",
		StatusPath:      "/task_status/{id}",
		DefaultFilename: "transcript.txt",
		Interval:        2 * time.Second,
	}
)

// Kinds returns the built-in workflows.
func Kinds() []Kind {
	return []Kind{Video, Audio, Fragment, DownloadFragment, Transcript}
}

// LookupKind finds a built-in workflow by name, ignoring case.
func LookupKind(name string) (Kind, bool) {
	for _, k := range Kinds() {
		if strings.EqualFold(k.Name, name) {
			return k, true
		}
	}
	return Kind{}, false
}
