package media

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// CaptionFormat is an output format for transcripts.
type CaptionFormat string

const (
	// FormatText is the transcript as plain text.
	FormatText CaptionFormat = "txt"
	// FormatSRT is SubRip.
	FormatSRT CaptionFormat = "srt"
	// FormatVTT is WebVTT.
	FormatVTT CaptionFormat = "vtt"
	// FormatJSON is the timed segments as JSON.
	FormatJSON CaptionFormat = "json"
)

// ErrNoTimings indicates a timed format was requested for a transcript that
// carries no segment timings.
var ErrNoTimings = errors.New("transcript has no timed segments")

// ParseCaptionFormat validates a format name. Empty means FormatText.
func ParseCaptionFormat(s string) (CaptionFormat, error) {
	switch f := CaptionFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatSRT, FormatVTT, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown transcript format %q (use txt, srt, vtt or json)", s)
	}
}

// Segment is one timed piece of a transcript, times in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// DecodeSegments extracts timed segments from a transcript result: a list of
// {start, end|duration, text} objects, or an object holding one under
// "segments" or "result".
func DecodeSegments(raw json.RawMessage) ([]Segment, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil && obj != nil {
		for _, k := range []string{"segments", "result"} {
			if v, ok := obj[k]; ok {
				return DecodeSegments(v)
			}
		}
		return nil, ErrNoTimings
	}

	var items []struct {
		Start    *float64 `json:"start"`
		End      *float64 `json:"end"`
		Duration *float64 `json:"duration"`
		Text     string   `json:"text"`
	}
	if err := json.Unmarshal(raw, &items); err != nil || len(items) == 0 {
		return nil, ErrNoTimings
	}
	segs := make([]Segment, 0, len(items))
	for _, it := range items {
		if it.Start == nil {
			return nil, ErrNoTimings
		}
		seg := Segment{Start: *it.Start, End: *it.Start, Text: strings.TrimSpace(it.Text)}
		switch {
		case it.End != nil:
			seg.End = *it.End
		case it.Duration != nil:
			seg.End = seg.Start + *it.Duration
		}
		if seg.Text == "" {
			continue
		}
		segs = append(segs, seg)
	}
	if len(segs) == 0 {
		return nil, ErrNoTimings
	}
	return segs, nil
}

// RenderTranscript renders a transcript result in the given format.
func RenderTranscript(raw json.RawMessage, format CaptionFormat) (string, error) {
	if format == "" || format == FormatText {
		return decodeTranscript(raw)
	}
	segs, err := DecodeSegments(raw)
	if err != nil {
		return "", err
	}
	switch format {
	case FormatSRT:
		return toSRT(segs), nil
	case FormatVTT:
		return toVTT(segs), nil
	case FormatJSON:
		data, err := json.MarshalIndent(map[string]any{"segments": segs}, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data) + "\n", nil
	default:
		return "", fmt.Errorf("unknown transcript format %q", format)
	}
}

func toVTT(segs []Segment) string {
	var sb strings.Builder
	sb.WriteString("WEBVTT\n\n")
	for _, s := range segs {
		fmt.Fprintf(&sb, "%s --> %s\n%s\n\n", formatVTTTime(s.Start), formatVTTTime(s.End), s.Text)
	}
	return sb.String()
}

func toSRT(segs []Segment) string {
	var sb strings.Builder
	for i, s := range segs {
		fmt.Fprintf(&sb, "%d\n%s --> %s\n%s\n\n", i+1, formatSRTTime(s.Start), formatSRTTime(s.End), s.Text)
	}
	return sb.String()
}

// formatVTTTime formats seconds as HH:MM:SS.mmm.
func formatVTTTime(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second))
	return fmt.Sprintf("%02d:%02d:%02d.%03d",
		int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60, int(d.Milliseconds())%1000)
}

// formatSRTTime formats seconds as HH:MM:SS,mmm.
func formatSRTTime(seconds float64) string {
	return strings.Replace(formatVTTTime(seconds), ".", ",", 1)
}

// filenameFor swaps the extension of name for the format's.
func filenameFor(name string, format CaptionFormat) string {
	if format == "" {
		return name
	}
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	return name + "." + string(format)
}
