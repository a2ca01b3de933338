// Package format resolves coarse quality presets into yt-dlp format
// selector chains. A chain is an ordered, "/"-separated list of selectors;
// the tool takes the first one that matches.
package format

import (
	"strconv"
	"strings"
)

const (
	QualityBest   = "best"
	QualityGood   = "good"
	QualityNormal = "normal"
	QualityBad    = "bad"
	QualityWorst  = "worst"
)

// Per-preset caps. "best" is uncapped, "worst" switches to the explicit
// worst-* selectors instead of a cap.
var presetHeightCap = map[string]int{
	QualityGood:   1080,
	QualityNormal: 720,
	QualityBad:    480,
}

var presetAudioBitrateCap = map[string]int{
	QualityGood:   192,
	QualityNormal: 128,
	QualityBad:    96,
}

func normalizeQuality(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case QualityGood:
		return QualityGood
	case QualityNormal:
		return QualityNormal
	case QualityBad:
		return QualityBad
	case QualityWorst:
		return QualityWorst
	default:
		return QualityBest
	}
}

func videoCandidates(quality string) []string {
	if quality == QualityWorst {
		return []string{"wv*", "wv"}
	}
	if cap, ok := presetHeightCap[quality]; ok {
		h := heightExpr(cap)
		return []string{"bv*" + h, "bv" + h}
	}
	return []string{"bv*", "bv"}
}

func audioCandidates(quality string) []string {
	if quality == QualityWorst {
		return []string{"wa", "wa*"}
	}
	if cap, ok := presetAudioBitrateCap[quality]; ok {
		return []string{"ba" + bitrateExpr(cap), "ba"}
	}
	return []string{"ba", "ba*"}
}

func heightExpr(cap int) string {
	return "[height<=" + strconv.Itoa(cap) + "]"
}

func bitrateExpr(cap int) string {
	return "[abr<=" + strconv.Itoa(cap) + "]"
}

// BuildVideoFormatPreference produces the fallback chain for a video task:
// the cross-product of the preset's video and audio candidates in preference
// order, then the unconditional combined-best pair, then a single-file best.
func BuildVideoFormatPreference(quality string) string {
	q := normalizeQuality(quality)
	selectors := make([]string, 0, 8)
	for _, v := range videoCandidates(q) {
		for _, a := range audioCandidates(q) {
			selectors = append(selectors, v+"+"+a)
		}
	}
	selectors = append(selectors, "bv*+ba", "b")
	return strings.Join(dedupe(selectors), "/")
}

// BuildAudioFormatPreference produces the chain for an audio-only task from
// the audio half of the preset, with a best fallback.
func BuildAudioFormatPreference(quality string) string {
	q := normalizeQuality(quality)
	selectors := append(audioCandidates(q), "ba", "b")
	return strings.Join(dedupe(selectors), "/")
}

func dedupe(selectors []string) []string {
	out := make([]string, 0, len(selectors))
	seen := make(map[string]bool, len(selectors))
	for _, s := range selectors {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
