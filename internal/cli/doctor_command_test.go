package cli

import (
	"path/filepath"
	"testing"

	"github.com/nexmoe/vidbee-server/internal/config"
)

func TestRunDoctorChecksDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{StateDir: filepath.Join(dir, "state")}
	cfg.Downloads.Dir = filepath.Join(dir, "downloads")

	res := runDoctorChecks(cfg)
	byName := make(map[string]doctorCheck)
	for _, c := range res.Checks {
		byName[c.Name] = c
	}
	if c, ok := byName["directory:state"]; !ok || !c.OK {
		t.Errorf("state dir check = %+v", c)
	}
	if c, ok := byName["directory:downloads"]; !ok || !c.OK {
		t.Errorf("downloads dir check = %+v", c)
	}
}

func TestRunDoctorChecksMissingBinaryOverride(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{StateDir: dir}
	cfg.Downloads.Dir = dir
	cfg.YTDLP.BinaryPath = filepath.Join(dir, "no-such-yt-dlp")

	res := runDoctorChecks(cfg)
	for _, c := range res.Checks {
		if c.Name == "dependency:yt-dlp" {
			if c.OK {
				t.Error("missing binary override reported ok")
			}
			return
		}
	}
	t.Fatal("yt-dlp check missing from report")
}

func TestEnsureWritableDirRejectsEmpty(t *testing.T) {
	if ok, _ := ensureWritableDir(""); ok {
		t.Error("empty directory path reported writable")
	}
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	if err := Run([]string{"no-such-command"}); err == nil {
		t.Fatal("unknown command did not error")
	}
}
