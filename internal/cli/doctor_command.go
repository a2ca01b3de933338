package cli

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nexmoe/vidbee-server/internal/config"
	"github.com/nexmoe/vidbee-server/internal/ytdlp"
)

type doctorResult struct {
	OK     bool          `json:"ok"`
	Checks []doctorCheck `json:"checks"`
}

type doctorCheck struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// runDoctor verifies the external tools and the directories the server
// needs before it is started for real.
func runDoctor(args []string) error {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath(), "config file path")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(strings.TrimSpace(*configPath))
	if err != nil {
		return err
	}
	res := runDoctorChecks(cfg)

	if *jsonOut {
		return printJSON(res)
	}
	for _, c := range res.Checks {
		status := "ok"
		if !c.OK {
			status = "fail"
		}
		fmt.Printf("%s: %s (%s)\n", c.Name, status, c.Message)
	}
	if !res.OK {
		return errors.New("doctor checks failed")
	}
	fmt.Println("doctor: all checks passed")
	return nil
}

func runDoctorChecks(cfg *config.Config) doctorResult {
	checks := make([]doctorCheck, 0, 4)

	dep := ytdlp.DependencyStatus()
	ytPath := cfg.YTDLP.BinaryPath
	ytFound := dep.YTDLPFound
	if strings.TrimSpace(ytPath) != "" {
		ytFound = fileExists(ytPath)
	} else {
		ytPath = dep.YTDLPPath
	}
	checks = append(checks, doctorCheck{
		Name:    "dependency:yt-dlp",
		OK:      ytFound,
		Message: dependencyMessage(ytFound, ytPath, "yt-dlp"),
	})

	ffPath := cfg.YTDLP.FFmpegPath
	ffFound := dep.FFmpegFound
	if strings.TrimSpace(ffPath) != "" {
		ffFound = fileExists(ffPath)
	} else {
		ffPath = dep.FFmpegPath
	}
	checks = append(checks, doctorCheck{
		Name:    "dependency:ffmpeg",
		OK:      ffFound,
		Message: dependencyMessage(ffFound, ffPath, "ffmpeg"),
	})

	stateOK, stateMessage := ensureWritableDir(cfg.StateDir)
	checks = append(checks, doctorCheck{
		Name:    "directory:state",
		OK:      stateOK,
		Message: stateMessage,
	})

	dlOK, dlMessage := ensureWritableDir(cfg.Downloads.Dir)
	checks = append(checks, doctorCheck{
		Name:    "directory:downloads",
		OK:      dlOK,
		Message: dlMessage,
	})

	ok := true
	for _, c := range checks {
		// ffmpeg is advisory: embedding degrades without it but downloads work
		if !c.OK && c.Name != "dependency:ffmpeg" {
			ok = false
		}
	}
	return doctorResult{OK: ok, Checks: checks}
}

func dependencyMessage(found bool, path, name string) string {
	if found {
		return "found at " + path
	}
	return name + " not found on PATH"
}

func ensureWritableDir(dir string) (bool, string) {
	if strings.TrimSpace(dir) == "" {
		return false, "directory path is empty"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Sprintf("cannot create %s: %v", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return false, fmt.Sprintf("not writable: %s", dir)
	}
	name := tmp.Name()
	tmp.Close()
	os.Remove(name)
	return true, "writable: " + filepath.Clean(dir)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
