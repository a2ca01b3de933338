// Package ytdlp drives the external yt-dlp binary: locating it, building
// argument vectors, supervising download processes, and extracting metadata.
package ytdlp

import (
	"errors"
	"os/exec"
	"strings"
)

// ErrNotFound is returned when the yt-dlp binary cannot be located. It is
// fatal at startup; nothing works without the extraction tool.
var ErrNotFound = errors.New("yt-dlp binary not found: install yt-dlp or set ytdlp.binary_path")

// Tools holds the resolved locations of the external binaries.
type Tools struct {
	YTDLP  string
	FFmpeg string
}

// Locate resolves yt-dlp and the ffmpeg helper. Overrides win over PATH
// lookup. A missing ffmpeg is tolerated (embedding features degrade); a
// missing yt-dlp is not.
func Locate(binaryOverride, ffmpegOverride string) (Tools, error) {
	t := Tools{}
	if p := strings.TrimSpace(binaryOverride); p != "" {
		t.YTDLP = p
	} else if p, err := exec.LookPath("yt-dlp"); err == nil {
		t.YTDLP = p
	} else {
		return Tools{}, ErrNotFound
	}
	if p := strings.TrimSpace(ffmpegOverride); p != "" {
		t.FFmpeg = p
	} else if p, err := exec.LookPath("ffmpeg"); err == nil {
		t.FFmpeg = p
	}
	return t, nil
}

// DependencyReport is the doctor-facing view of tool availability.
type DependencyReport struct {
	YTDLPFound  bool   `json:"yt_dlp_found"`
	YTDLPPath   string `json:"yt_dlp_path,omitempty"`
	FFmpegFound bool   `json:"ffmpeg_found"`
	FFmpegPath  string `json:"ffmpeg_path,omitempty"`
}

func DependencyStatus() DependencyReport {
	report := DependencyReport{}
	if path, err := exec.LookPath("yt-dlp"); err == nil {
		report.YTDLPFound = true
		report.YTDLPPath = path
	}
	if path, err := exec.LookPath("ffmpeg"); err == nil {
		report.FFmpegFound = true
		report.FFmpegPath = path
	}
	return report
}
