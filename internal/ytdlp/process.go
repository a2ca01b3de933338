package ytdlp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/nexmoe/vidbee-server/internal/model"
)

// maxLogLines bounds the captured process log; older lines are dropped so
// the tail survives.
const maxLogLines = 500

var (
	reProgressPct   = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)%`)
	reProgressSpeed = regexp.MustCompile(`\bat\s+([^\s]+)`)
	reProgressETA   = regexp.MustCompile(`\bETA\s+([0-9:]+|Unknown)`)
	reProgressTotal = regexp.MustCompile(`\bof\s+~?\s*([^\s]+)`)
)

// Handle is the live side of one supervised process. Terminate is
// cooperative: it signals the process and lets the exit path run as usual.
type Handle interface {
	Terminate()
}

// Callbacks receive the streaming output of a supervised process. Progress
// is invoked per parsed progress line in emission order; Exit exactly once,
// after both streams are drained, with the exit code and the captured log.
type Callbacks struct {
	Progress func(model.RawProgress)
	Exit     func(exitCode int, log []string, exitErr error)
}

// Launcher starts one external download process. The indirection exists so
// the queue can be exercised without spawning anything.
type Launcher interface {
	Launch(args []string, cb Callbacks) (Handle, error)
}

// Runner is the real Launcher backed by the resolved yt-dlp binary.
type Runner struct {
	Binary string
}

type process struct {
	cmd *exec.Cmd

	mu         sync.Mutex
	log        []string
	terminated bool
}

func (r *Runner) Launch(args []string, cb Callbacks) (Handle, error) {
	cmd := exec.Command(r.Binary, args...)
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("setup stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("setup stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", r.Binary, err)
	}

	p := &process{cmd: cmd}
	var wg sync.WaitGroup
	wg.Add(2)
	go p.consume(stdoutPipe, cb, &wg)
	go p.consume(stderrPipe, cb, &wg)

	go func() {
		wg.Wait()
		waitErr := cmd.Wait()
		code := 0
		if waitErr != nil {
			code = -1
			var exitErr *exec.ExitError
			if errors.As(waitErr, &exitErr) {
				code = exitErr.ExitCode()
			}
		}
		if cb.Exit != nil {
			cb.Exit(code, p.snapshotLog(), waitErr)
		}
	}()

	return p, nil
}

func (p *process) consume(r io.Reader, cb Callbacks, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	scanner.Split(splitByNewlineOrCR)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		p.appendLog(line)
		if cb.Progress != nil {
			if raw, ok := ParseProgressLine(line); ok {
				cb.Progress(raw)
			}
		}
	}
}

func (p *process) appendLog(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log = append(p.log, line)
	if len(p.log) > maxLogLines {
		p.log = p.log[len(p.log)-maxLogLines:]
	}
}

func (p *process) snapshotLog() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.log...)
}

// Terminate kills the process. The exit code still flows through the normal
// exit callback; interpretation is the caller's job.
func (p *process) Terminate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.terminated {
		return
	}
	p.terminated = true
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
}

// ParseProgressLine scrapes the raw progress fields out of one yt-dlp
// "[download]" line. Lines that are not progress reports return false.
func ParseProgressLine(line string) (model.RawProgress, bool) {
	l := strings.TrimSpace(line)
	if !strings.HasPrefix(l, "[download]") {
		return model.RawProgress{}, false
	}
	m := reProgressPct.FindStringSubmatch(l)
	if len(m) < 2 {
		return model.RawProgress{}, false
	}
	raw := model.RawProgress{Percent: m[1]}
	if m := reProgressSpeed.FindStringSubmatch(l); len(m) > 1 {
		raw.Speed = m[1]
	}
	if m := reProgressETA.FindStringSubmatch(l); len(m) > 1 {
		raw.ETA = m[1]
	}
	if m := reProgressTotal.FindStringSubmatch(l); len(m) > 1 {
		raw.Total = m[1]
	}
	// yt-dlp's standard line carries no byte counter, so the downloaded
	// amount is derived from percent against the reported total.
	if total := parseByteSize(raw.Total); total > 0 {
		if pct, err := strconv.ParseFloat(raw.Percent, 64); err == nil {
			raw.Downloaded = formatBytesIEC(int64(total * pct / 100))
		}
	}
	return raw, true
}

var reByteSize = regexp.MustCompile(`(?i)^([0-9]+(?:\.[0-9]+)?)\s*(B|KiB|KB|MiB|MB|GiB|GB|TiB|TB)$`)

func parseByteSize(s string) float64 {
	m := reByteSize.FindStringSubmatch(strings.TrimSpace(s))
	if len(m) < 3 {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	switch strings.ToLower(m[2]) {
	case "b":
		return v
	case "kib", "kb":
		return v * 1024
	case "mib", "mb":
		return v * 1024 * 1024
	case "gib", "gb":
		return v * 1024 * 1024 * 1024
	case "tib", "tb":
		return v * 1024 * 1024 * 1024 * 1024
	}
	return 0
}

func formatBytesIEC(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// yt-dlp redraws progress with bare carriage returns unless --newline is
// honored; treat CR as a line break either way.
func splitByNewlineOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' || data[i] == '\r' {
			if i == 0 {
				return 1, nil, nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}
