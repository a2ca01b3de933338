package ytdlp

import (
	"strings"

	"github.com/nexmoe/vidbee-server/internal/config"
	"github.com/nexmoe/vidbee-server/internal/format"
	"github.com/nexmoe/vidbee-server/internal/model"
)

// DefaultOutputTemplate is the safe fallback when the requested filename
// template sanitizes to nothing.
const DefaultOutputTemplate = "%(title)s.%(ext)s"

// youtubeSafetyArgs are attached when no external config file is in play;
// they pin player clients that keep throttling and signature churn at bay.
const youtubeSafetyArgs = "youtube:player_client=default,web_safari"

// DownloadSpec is the intent for one download process, already resolved
// against process-wide defaults.
type DownloadSpec struct {
	URL            string
	Type           model.MediaType
	Quality        string
	AudioTrackIDs  []string
	StartTime      string
	EndTime        string
	OutputTemplate string
	JSRuntime      string
	Settings       config.Settings
}

// BuildDownloadArgs maps a spec to the ordered yt-dlp argument vector and a
// shell-quoted diagnostic command string. The target URL is always the final
// element, so callers may splice late-bound arguments in front of it.
func BuildDownloadArgs(spec DownloadSpec) ([]string, string) {
	args := []string{"--newline", "--no-playlist", "--progress"}

	args = append(args, "-f", FormatSelector(spec))
	if spec.Type == model.MediaVideo && len(spec.AudioTrackIDs) > 0 {
		args = append(args, "--audio-multistreams")
	}

	if start, end, ok := trimSection(spec.StartTime, spec.EndTime); ok {
		args = append(args, "--download-sections", "*"+start+"-"+end, "--force-keyframes-at-cuts")
	}

	if spec.Settings.EmbedSubs {
		args = append(args, "--embed-subs", "--sub-langs", "all")
	}
	if spec.Settings.EmbedThumbnail {
		args = append(args, "--embed-thumbnail")
	}
	if spec.Settings.EmbedMetadata {
		args = append(args, "--embed-metadata")
	}
	if spec.Settings.EmbedChapters {
		args = append(args, "--embed-chapters")
	}

	args = append(args, "-P", spec.Settings.DownloadDir, "-o", SanitizeOutputTemplate(spec.OutputTemplate))

	args = appendNetworkArgs(args, spec.Settings)

	if cfg := strings.TrimSpace(spec.Settings.ConfigFile); cfg != "" {
		args = append(args, "--config-locations", cfg)
	} else {
		args = append(args, "--extractor-args", youtubeSafetyArgs)
	}

	if rt := strings.TrimSpace(spec.JSRuntime); rt != "" && !strings.EqualFold(rt, "auto") {
		args = append(args, "--no-js-runtimes", "--js-runtimes", rt)
	}

	args = append(args, spec.URL)
	return args, CommandString("yt-dlp", args)
}

// FormatSelector composes the -f expression for a spec: the preference
// chain for plain video, the audio chain for audio-only tasks, or the
// explicit track-id list glued onto the base video selector.
func FormatSelector(spec DownloadSpec) string {
	if spec.Type == model.MediaAudio {
		return format.BuildAudioFormatPreference(spec.Quality)
	}
	if len(spec.AudioTrackIDs) > 0 {
		sel := "bv*"
		for _, id := range spec.AudioTrackIDs {
			sel += "+" + strings.TrimSpace(id)
		}
		return sel
	}
	return format.BuildVideoFormatPreference(spec.Quality)
}

func trimSection(start, end string) (string, string, bool) {
	s := strings.TrimSpace(start)
	e := strings.TrimSpace(end)
	if s == "" && e == "" {
		return "", "", false
	}
	if s == "" {
		s = "0"
	}
	if e == "" {
		e = "inf"
	}
	return s, e, true
}

func appendNetworkArgs(args []string, s config.Settings) []string {
	if browser := strings.TrimSpace(s.CookiesFromBrowser); browser != "" {
		args = append(args, "--cookies-from-browser", browser)
	}
	if file := strings.TrimSpace(s.CookiesFile); file != "" {
		args = append(args, "--cookies", file)
	}
	if proxy := strings.TrimSpace(s.Proxy); proxy != "" {
		args = append(args, "--proxy", proxy)
	}
	return args
}

var illegalFilenameChars = strings.NewReplacer(
	"<", "_", ">", "_", ":", "_", `"`, "_",
	"|", "_", "?", "_", "*", "_",
)

// SanitizeOutputTemplate strips path-traversal segments and OS-illegal
// characters from a filename template. An empty result falls back to the
// default template.
func SanitizeOutputTemplate(raw string) string {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), `\`, "/")
	segments := strings.Split(cleaned, "/")
	kept := make([]string, 0, len(segments))
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" || seg == "." || seg == ".." {
			continue
		}
		kept = append(kept, seg)
	}
	out := illegalFilenameChars.Replace(strings.Join(kept, "_"))
	out = strings.Trim(out, " .")
	if out == "" {
		return DefaultOutputTemplate
	}
	return out
}

// CommandString renders a binary plus argument vector the way a shell would
// accept it, for diagnostics only.
func CommandString(binary string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, shellQuote(binary))
	for _, a := range args {
		parts = append(parts, shellQuote(a))
	}
	return strings.Join(parts, " ")
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$&|;<>()*?[]#~!{}") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
