package model

import (
	"math"
	"strconv"
	"strings"
)

// RawProgress carries the fields scraped from one yt-dlp progress line,
// unparsed and untrusted.
type RawProgress struct {
	Percent    string
	Speed      string
	ETA        string
	Downloaded string
	Total      string
}

// Progress is the clamped snapshot stored on a task.
type Progress struct {
	Percent    float64 `json:"percent"`
	Speed      string  `json:"speed,omitempty"`
	ETA        string  `json:"eta,omitempty"`
	Downloaded string  `json:"downloaded,omitempty"`
	Total      string  `json:"total,omitempty"`
}

// SnapshotProgress maps raw progress fields to a snapshot. Percent is
// clamped into [0,100]; non-numeric, NaN, or absent input maps to 0. All
// other fields pass through as-is.
func SnapshotProgress(raw RawProgress) Progress {
	return Progress{
		Percent:    clampPercent(raw.Percent),
		Speed:      raw.Speed,
		ETA:        raw.ETA,
		Downloaded: raw.Downloaded,
		Total:      raw.Total,
	}
}

func clampPercent(raw string) float64 {
	s := strings.TrimSuffix(strings.TrimSpace(raw), "%")
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
