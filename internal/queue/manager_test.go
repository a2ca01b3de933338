package queue

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/nexmoe/vidbee-server/internal/config"
	"github.com/nexmoe/vidbee-server/internal/history"
	"github.com/nexmoe/vidbee-server/internal/model"
	"github.com/nexmoe/vidbee-server/internal/ytdlp"
)

type fakeHandle struct {
	mu         sync.Mutex
	terminated bool
}

func (h *fakeHandle) Terminate() {
	h.mu.Lock()
	h.terminated = true
	h.mu.Unlock()
}

func (h *fakeHandle) wasTerminated() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.terminated
}

type fakeLaunch struct {
	args   []string
	cb     ytdlp.Callbacks
	handle *fakeHandle
}

type fakeLauncher struct {
	mu       sync.Mutex
	launches []*fakeLaunch
	failNext bool
}

func (f *fakeLauncher) Launch(args []string, cb ytdlp.Callbacks) (ytdlp.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return nil, errTestLaunch
	}
	l := &fakeLaunch{args: args, cb: cb, handle: &fakeHandle{}}
	f.launches = append(f.launches, l)
	return l.handle, nil
}

func (f *fakeLauncher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.launches)
}

func (f *fakeLauncher) at(i int) *fakeLaunch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.launches[i]
}

var errTestLaunch = &launchError{}

type launchError struct{}

func (*launchError) Error() string { return "spawn refused" }

type fakeResolver struct {
	playlist *ytdlp.PlaylistDocument
	info     *model.VideoInfo
}

func (f *fakeResolver) ExtractVideoInfo(ctx context.Context, url string, settings config.Settings) (*model.VideoInfo, error) {
	return f.info, nil
}

func (f *fakeResolver) ResolvePlaylist(ctx context.Context, url string, settings config.Settings) (*ytdlp.PlaylistDocument, error) {
	return f.playlist, nil
}

func newTestManager(t *testing.T, maxConcurrent int) (*Manager, *fakeLauncher, *fakeResolver) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{StateDir: dir}
	cfg.Downloads.Dir = filepath.Join(dir, "downloads")
	cfg.Downloads.MaxConcurrent = maxConcurrent

	launcher := &fakeLauncher{}
	resolver := &fakeResolver{}
	m := NewManager(Options{
		Config:   cfg,
		History:  history.NewStore(filepath.Join(dir, "history.json"), zap.NewNop()),
		Logger:   zap.NewNop(),
		Launcher: launcher,
		Resolver: resolver,
	})
	if err := m.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return m, launcher, resolver
}

func statusOf(t *testing.T, m *Manager, id string) string {
	t.Helper()
	downloads, err := m.ListDownloads()
	if err != nil {
		t.Fatalf("ListDownloads: %v", err)
	}
	for _, task := range downloads {
		if task.ID == id {
			return task.Status
		}
	}
	hist, err := m.ListHistory()
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	for _, task := range hist {
		if task.ID == id {
			return task.Status
		}
	}
	t.Fatalf("task %s not found in either partition", id)
	return ""
}

func TestSubmitRespectsConcurrencyLimit(t *testing.T) {
	m, launcher, _ := newTestManager(t, 2)

	var ids []string
	for i := 0; i < 4; i++ {
		task, err := m.Submit(DownloadInput{URL: "https://example.com/v", Type: model.MediaVideo})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		ids = append(ids, task.ID)
	}

	if got := launcher.count(); got != 2 {
		t.Fatalf("launched %d processes, want 2", got)
	}
	want := []string{model.StatusDownloading, model.StatusDownloading, model.StatusPending, model.StatusPending}
	for i, id := range ids {
		if got := statusOf(t, m, id); got != want[i] {
			t.Errorf("task %d status = %q, want %q", i, got, want[i])
		}
	}

	status, err := m.GetStatus()
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if status.Active != 2 || status.Pending != 2 {
		t.Errorf("status = %+v, want active=2 pending=2", status)
	}
}

func TestCompletionPromotesOldestPending(t *testing.T) {
	m, launcher, _ := newTestManager(t, 1)

	first, _ := m.Submit(DownloadInput{URL: "https://example.com/1", Type: model.MediaVideo})
	second, _ := m.Submit(DownloadInput{URL: "https://example.com/2", Type: model.MediaVideo})
	third, _ := m.Submit(DownloadInput{URL: "https://example.com/3", Type: model.MediaVideo})

	launcher.at(0).cb.Exit(0, []string{"[download] 100% of 1MiB"}, nil)

	if got := statusOf(t, m, first.ID); got != model.StatusCompleted {
		t.Fatalf("first task status = %q, want completed", got)
	}
	if got := statusOf(t, m, second.ID); got != model.StatusDownloading {
		t.Errorf("second task status = %q, want downloading", got)
	}
	if got := statusOf(t, m, third.ID); got != model.StatusPending {
		t.Errorf("third task status = %q, want pending", got)
	}
	if got := launcher.count(); got != 2 {
		t.Errorf("launched %d processes, want 2", got)
	}
}

func TestCancelPendingNeverLaunches(t *testing.T) {
	m, launcher, _ := newTestManager(t, 1)

	m.Submit(DownloadInput{URL: "https://example.com/1", Type: model.MediaVideo})
	queued, _ := m.Submit(DownloadInput{URL: "https://example.com/2", Type: model.MediaVideo})

	ok, err := m.Cancel(queued.ID)
	if err != nil || !ok {
		t.Fatalf("Cancel = (%v, %v), want (true, nil)", ok, err)
	}
	if got := statusOf(t, m, queued.ID); got != model.StatusCancelled {
		t.Fatalf("cancelled task status = %q", got)
	}

	launcher.at(0).cb.Exit(0, nil, nil)
	if got := launcher.count(); got != 1 {
		t.Errorf("launched %d processes, want 1: cancelled pending task must never start", got)
	}
}

func TestCancelRunningWinsOverCleanExit(t *testing.T) {
	m, launcher, _ := newTestManager(t, 1)

	task, _ := m.Submit(DownloadInput{URL: "https://example.com/1", Type: model.MediaVideo})

	ok, err := m.Cancel(task.ID)
	if err != nil || !ok {
		t.Fatalf("Cancel = (%v, %v), want (true, nil)", ok, err)
	}
	if !launcher.at(0).handle.wasTerminated() {
		t.Error("running process was not signalled")
	}

	// The process reports a clean exit after the kill signal; cancellation
	// must still win.
	launcher.at(0).cb.Exit(0, nil, nil)
	if got := statusOf(t, m, task.ID); got != model.StatusCancelled {
		t.Errorf("task status = %q, want cancelled", got)
	}
}

func TestCancelUnknownOrTerminal(t *testing.T) {
	m, launcher, _ := newTestManager(t, 1)

	if ok, _ := m.Cancel("nope"); ok {
		t.Error("cancelling an unknown id reported true")
	}

	task, _ := m.Submit(DownloadInput{URL: "https://example.com/1", Type: model.MediaVideo})
	launcher.at(0).cb.Exit(0, nil, nil)
	if ok, _ := m.Cancel(task.ID); ok {
		t.Error("cancelling a completed task reported true")
	}
}

func TestExitCodeNonZeroIsError(t *testing.T) {
	m, launcher, _ := newTestManager(t, 1)

	task, _ := m.Submit(DownloadInput{URL: "https://example.com/1", Type: model.MediaVideo})
	launcher.at(0).cb.Exit(2, []string{"ERROR: boom"}, nil)

	hist, _ := m.ListHistory()
	if len(hist) != 1 {
		t.Fatalf("history has %d entries, want 1", len(hist))
	}
	got := hist[0]
	if got.ID != task.ID || got.Status != model.StatusError {
		t.Fatalf("history entry = %+v, want error status for %s", got, task.ID)
	}
	if got.Error != "download process exited with code 2" {
		t.Errorf("error message = %q", got.Error)
	}
	if len(got.Log) != 1 || got.Log[0] != "ERROR: boom" {
		t.Errorf("log = %v", got.Log)
	}
}

func TestLaunchFailureFinalizesTask(t *testing.T) {
	m, launcher, _ := newTestManager(t, 1)
	launcher.failNext = true

	task, err := m.Submit(DownloadInput{URL: "https://example.com/1", Type: model.MediaVideo})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got := statusOf(t, m, task.ID); got != model.StatusError {
		t.Fatalf("task status = %q, want error", got)
	}

	// The slot freed by the failed launch must admit the next submission.
	next, _ := m.Submit(DownloadInput{URL: "https://example.com/2", Type: model.MediaVideo})
	if got := statusOf(t, m, next.ID); got != model.StatusDownloading {
		t.Errorf("next task status = %q, want downloading", got)
	}
}

func TestPartitionsAreDisjoint(t *testing.T) {
	m, launcher, _ := newTestManager(t, 2)

	for i := 0; i < 3; i++ {
		m.Submit(DownloadInput{URL: "https://example.com/v", Type: model.MediaVideo})
	}
	launcher.at(0).cb.Exit(0, nil, nil)

	downloads, _ := m.ListDownloads()
	hist, _ := m.ListHistory()
	if len(downloads)+len(hist) != 3 {
		t.Fatalf("partitions cover %d tasks, want 3", len(downloads)+len(hist))
	}
	seen := make(map[string]bool)
	for _, task := range downloads {
		if model.IsTerminalStatus(task.Status) {
			t.Errorf("terminal task %s in downloads partition", task.ID)
		}
		seen[task.ID] = true
	}
	for _, task := range hist {
		if !model.IsTerminalStatus(task.Status) {
			t.Errorf("live task %s in history partition", task.ID)
		}
		if seen[task.ID] {
			t.Errorf("task %s appears in both partitions", task.ID)
		}
	}
}

func TestProgressUpdatesRunningTask(t *testing.T) {
	m, launcher, _ := newTestManager(t, 1)

	task, _ := m.Submit(DownloadInput{URL: "https://example.com/1", Type: model.MediaVideo})
	launcher.at(0).cb.Progress(model.RawProgress{Percent: "42.5", Speed: "1.2MiB/s", ETA: "00:30"})

	downloads, _ := m.ListDownloads()
	if len(downloads) != 1 || downloads[0].ID != task.ID {
		t.Fatalf("unexpected downloads partition: %+v", downloads)
	}
	p := downloads[0].Progress
	if p.Percent != 42.5 || p.Speed != "1.2MiB/s" || p.ETA != "00:30" {
		t.Errorf("progress = %+v", p)
	}
}

func TestSubmitValidation(t *testing.T) {
	m, _, _ := newTestManager(t, 1)

	if _, err := m.Submit(DownloadInput{URL: "   "}); err != ErrEmptyURL {
		t.Errorf("blank url error = %v, want ErrEmptyURL", err)
	}

	uninitialized := NewManager(Options{
		Config: &config.Config{},
		Logger: zap.NewNop(),
	})
	if _, err := uninitialized.Submit(DownloadInput{URL: "https://example.com"}); err != ErrNotInitialized {
		t.Errorf("uninitialized submit error = %v, want ErrNotInitialized", err)
	}
}

func TestRemoveHistoryItems(t *testing.T) {
	m, launcher, _ := newTestManager(t, 2)

	done, _ := m.Submit(DownloadInput{URL: "https://example.com/1", Type: model.MediaVideo})
	live, _ := m.Submit(DownloadInput{URL: "https://example.com/2", Type: model.MediaVideo})
	launcher.at(0).cb.Exit(0, nil, nil)

	removed, err := m.RemoveHistoryItems([]string{done.ID, live.ID, "ghost"})
	if err != nil {
		t.Fatalf("RemoveHistoryItems: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1: live and unknown ids must be skipped", removed)
	}
	if got := statusOf(t, m, live.ID); got != model.StatusDownloading {
		t.Errorf("live task status = %q after removal attempt", got)
	}
	hist, _ := m.ListHistory()
	if len(hist) != 0 {
		t.Errorf("history still has %d entries", len(hist))
	}
}

func TestHistorySurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	histPath := filepath.Join(dir, "history.json")

	cfg := &config.Config{StateDir: dir}
	cfg.Downloads.Dir = dir
	cfg.Downloads.MaxConcurrent = 1
	launcher := &fakeLauncher{}
	m := NewManager(Options{
		Config:   cfg,
		History:  history.NewStore(histPath, zap.NewNop()),
		Logger:   zap.NewNop(),
		Launcher: launcher,
		Resolver: &fakeResolver{},
	})
	if err := m.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	task, _ := m.Submit(DownloadInput{URL: "https://example.com/1", Type: model.MediaVideo})
	launcher.at(0).cb.Exit(0, nil, nil)

	restarted := NewManager(Options{
		Config:   cfg,
		History:  history.NewStore(histPath, zap.NewNop()),
		Logger:   zap.NewNop(),
		Launcher: &fakeLauncher{},
		Resolver: &fakeResolver{},
	})
	if err := restarted.Initialize(); err != nil {
		t.Fatalf("Initialize after restart: %v", err)
	}
	hist, err := restarted.ListHistory()
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(hist) != 1 || hist[0].ID != task.ID || hist[0].Status != model.StatusCompleted {
		t.Fatalf("restarted history = %+v", hist)
	}
}

type recordingListener struct {
	mu      sync.Mutex
	tasks   []model.DownloadTask
	queues  int
	history int
}

func (r *recordingListener) TaskUpdated(task model.DownloadTask) {
	r.mu.Lock()
	r.tasks = append(r.tasks, task)
	r.mu.Unlock()
}

func (r *recordingListener) QueueUpdated([]model.DownloadTask) {
	r.mu.Lock()
	r.queues++
	r.mu.Unlock()
}

func (r *recordingListener) HistoryUpdated([]model.DownloadTask) {
	r.mu.Lock()
	r.history++
	r.mu.Unlock()
}

func TestListenerSeesLifecycleInOrder(t *testing.T) {
	m, launcher, _ := newTestManager(t, 1)
	rec := &recordingListener{}
	unsubscribe := m.Subscribe(rec)

	task, _ := m.Submit(DownloadInput{URL: "https://example.com/1", Type: model.MediaVideo})
	launcher.at(0).cb.Exit(0, nil, nil)

	rec.mu.Lock()
	statuses := make([]string, 0, len(rec.tasks))
	for _, snap := range rec.tasks {
		if snap.ID == task.ID {
			statuses = append(statuses, snap.Status)
		}
	}
	historyEvents := rec.history
	rec.mu.Unlock()

	want := []string{model.StatusPending, model.StatusDownloading, model.StatusCompleted}
	if len(statuses) != len(want) {
		t.Fatalf("task updates = %v, want %v", statuses, want)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Fatalf("task updates = %v, want %v", statuses, want)
		}
	}
	if historyEvents != 1 {
		t.Errorf("history notifications = %d, want 1", historyEvents)
	}

	unsubscribe()
	m.Submit(DownloadInput{URL: "https://example.com/2", Type: model.MediaVideo})
	rec.mu.Lock()
	after := len(rec.tasks)
	rec.mu.Unlock()
	if after != len(statuses) {
		t.Error("listener still notified after unsubscribe")
	}
}
