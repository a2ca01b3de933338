package ytdlp

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Saved-path recovery is a best-effort scrape of the captured log. Patterns
// are tried in priority order; within one pattern the last match wins, since
// yt-dlp writes intermediate destinations before the merged result.
var savedPathPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\[Merger\] Merging formats into "(.+)"`),
	regexp.MustCompile(`^\[ExtractAudio\] Destination: (.+)$`),
	regexp.MustCompile(`^\[download\] (.+) has already been downloaded`),
	regexp.MustCompile(`^\[download\] Destination: (.+)$`),
}

// RecoverSavedPath scans a process log for the final output file. A miss is
// not an error; callers keep their resolved output directory and an empty
// filename.
func RecoverSavedPath(log []string) (dir, name string, ok bool) {
	for _, re := range savedPathPatterns {
		found := ""
		for _, line := range log {
			if m := re.FindStringSubmatch(strings.TrimSpace(line)); len(m) > 1 {
				found = m[1]
			}
		}
		if found != "" {
			d, n := filepath.Split(found)
			return filepath.Clean(d), n, true
		}
	}
	return "", "", false
}
