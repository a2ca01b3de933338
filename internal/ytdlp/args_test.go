package ytdlp

import (
	"slices"
	"testing"

	"github.com/nexmoe/vidbee-server/internal/config"
	"github.com/nexmoe/vidbee-server/internal/model"
)

func baseSpec() DownloadSpec {
	return DownloadSpec{
		URL:     "https://example.com/watch?v=abc",
		Type:    model.MediaVideo,
		Quality: "best",
		Settings: config.Settings{
			DownloadDir: "/srv/media",
		},
	}
}

func TestURLIsAlwaysLast(t *testing.T) {
	spec := baseSpec()
	spec.Settings.Proxy = "socks5://127.0.0.1:1080"
	spec.Settings.EmbedSubs = true
	args, _ := BuildDownloadArgs(spec)
	if args[len(args)-1] != spec.URL {
		t.Fatalf("last arg = %q, want url", args[len(args)-1])
	}
}

func TestNetworkAndEmbedArgs(t *testing.T) {
	spec := baseSpec()
	spec.Settings.Proxy = "http://proxy:3128"
	spec.Settings.CookiesFromBrowser = "firefox"
	spec.Settings.CookiesFile = "/tmp/cookies.txt"
	spec.Settings.EmbedThumbnail = true
	spec.Settings.EmbedChapters = true
	args, _ := BuildDownloadArgs(spec)

	for _, want := range [][]string{
		{"--proxy", "http://proxy:3128"},
		{"--cookies-from-browser", "firefox"},
		{"--cookies", "/tmp/cookies.txt"},
		{"-P", "/srv/media"},
	} {
		if !containsPair(args, want[0], want[1]) {
			t.Errorf("missing %v in %v", want, args)
		}
	}
	if !slices.Contains(args, "--embed-thumbnail") || !slices.Contains(args, "--embed-chapters") {
		t.Errorf("missing embed flags: %v", args)
	}
	if slices.Contains(args, "--embed-subs") || slices.Contains(args, "--embed-metadata") {
		t.Errorf("unexpected embed flags: %v", args)
	}
}

func TestConfigFileSuppressesExtractorArgs(t *testing.T) {
	spec := baseSpec()
	args, _ := BuildDownloadArgs(spec)
	if !containsPair(args, "--extractor-args", youtubeSafetyArgs) {
		t.Fatalf("expected extractor safety args without config file: %v", args)
	}

	spec.Settings.ConfigFile = "/etc/ytdlp.conf"
	args, _ = BuildDownloadArgs(spec)
	if !containsPair(args, "--config-locations", "/etc/ytdlp.conf") {
		t.Fatalf("expected config file arg: %v", args)
	}
	if slices.Contains(args, "--extractor-args") {
		t.Fatalf("extractor args must not accompany config file: %v", args)
	}
}

func TestTrimSectionArgs(t *testing.T) {
	spec := baseSpec()
	spec.StartTime = "1:30"
	args, _ := BuildDownloadArgs(spec)
	if !containsPair(args, "--download-sections", "*1:30-inf") {
		t.Fatalf("open-ended section missing: %v", args)
	}

	spec.StartTime = ""
	spec.EndTime = "2:00"
	args, _ = BuildDownloadArgs(spec)
	if !containsPair(args, "--download-sections", "*0-2:00") {
		t.Fatalf("start-defaulted section missing: %v", args)
	}

	spec.EndTime = ""
	args, _ = BuildDownloadArgs(spec)
	if slices.Contains(args, "--download-sections") {
		t.Fatalf("no section expected: %v", args)
	}
}

func TestAudioOnlyAndMultiTrackSelectors(t *testing.T) {
	spec := baseSpec()
	spec.Type = model.MediaAudio
	spec.Quality = "good"
	args, _ := BuildDownloadArgs(spec)
	if !containsPair(args, "-f", "ba[abr<=192]/ba/b") {
		t.Fatalf("audio selector missing: %v", args)
	}

	spec = baseSpec()
	spec.AudioTrackIDs = []string{"251", "140"}
	args, _ = BuildDownloadArgs(spec)
	if !containsPair(args, "-f", "bv*+251+140") {
		t.Fatalf("multi-track selector missing: %v", args)
	}
	if !slices.Contains(args, "--audio-multistreams") {
		t.Fatalf("--audio-multistreams missing: %v", args)
	}
}

func TestJSRuntimeHint(t *testing.T) {
	spec := baseSpec()
	spec.JSRuntime = "deno"
	args, _ := BuildDownloadArgs(spec)
	if !containsPair(args, "--js-runtimes", "deno") || !slices.Contains(args, "--no-js-runtimes") {
		t.Fatalf("js runtime args missing: %v", args)
	}

	spec.JSRuntime = "auto"
	args, _ = BuildDownloadArgs(spec)
	if slices.Contains(args, "--js-runtimes") {
		t.Fatalf("auto runtime must not emit args: %v", args)
	}
}

func TestSanitizeOutputTemplate(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", DefaultOutputTemplate},
		{"  ", DefaultOutputTemplate},
		{"../../etc/passwd", "etc_passwd"},
		{`..\..\boot.ini`, "boot.ini"},
		{"%(title)s.%(ext)s", "%(title)s.%(ext)s"},
		{`my<file>:"name"`, "my_file___name_"},
		{"...", DefaultOutputTemplate},
	}
	for _, c := range cases {
		if got := SanitizeOutputTemplate(c.in); got != c.want {
			t.Errorf("SanitizeOutputTemplate(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCommandStringQuoting(t *testing.T) {
	got := CommandString("yt-dlp", []string{"-o", "my file.mp4"})
	if got != "yt-dlp -o 'my file.mp4'" {
		t.Fatalf("command string = %q", got)
	}
}

func containsPair(args []string, flag, value string) bool {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag && args[i+1] == value {
			return true
		}
	}
	return false
}
