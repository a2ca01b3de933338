// Package queue is the download orchestrator: a bounded-concurrency task
// queue over a keyed registry, one supervised external process per running
// task, and change-notification fan-out for every mutation.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexmoe/vidbee-server/internal/config"
	"github.com/nexmoe/vidbee-server/internal/history"
	"github.com/nexmoe/vidbee-server/internal/model"
	"github.com/nexmoe/vidbee-server/internal/ytdlp"
)

var (
	ErrNotInitialized = errors.New("downloader is not initialized")
	ErrEmptyURL       = errors.New("url must not be empty")
)

// DownloadInput is one create-download request.
type DownloadInput struct {
	URL           string            `json:"url"`
	Type          model.MediaType   `json:"type"`
	Quality       string            `json:"quality,omitempty"`
	Title         string            `json:"title,omitempty"`
	AudioTrackIDs []string          `json:"audio_track_ids,omitempty"`
	StartTime     string            `json:"start_time,omitempty"`
	EndTime       string            `json:"end_time,omitempty"`
	Filename      string            `json:"filename,omitempty"`
	Settings      *config.Overrides `json:"settings,omitempty"`
	playlist      *model.PlaylistTag
}

// Status is the live/pending rollup for getStatus.
type Status struct {
	Active  int `json:"active"`
	Pending int `json:"pending"`
}

// Listener receives change notifications. Per-task notifications arrive in
// mutation order; notifications across tasks may interleave.
type Listener interface {
	TaskUpdated(task model.DownloadTask)
	QueueUpdated(tasks []model.DownloadTask)
	HistoryUpdated(tasks []model.DownloadTask)
}

// MetadataResolver extracts video and playlist metadata without
// downloading. Satisfied by *ytdlp.Client; tests substitute fakes.
type MetadataResolver interface {
	ExtractVideoInfo(ctx context.Context, url string, settings config.Settings) (*model.VideoInfo, error)
	ResolvePlaylist(ctx context.Context, url string, settings config.Settings) (*ytdlp.PlaylistDocument, error)
}

// Options wires a Manager. Launcher and Resolver default to the real
// yt-dlp binary located at Initialize time.
type Options struct {
	Config   *config.Config
	History  *history.Store
	Logger   *zap.Logger
	Launcher ytdlp.Launcher
	Resolver MetadataResolver
}

// Manager owns the task registry and the pending list; nothing else may
// mutate a task. One mutex serializes every registry mutation, so admission
// passes never interleave and readers never see a half-updated task.
type Manager struct {
	mu sync.Mutex

	cfg      *config.Config
	logger   *zap.Logger
	hist     *history.Store
	launcher ytdlp.Launcher
	resolver MetadataResolver

	initialized bool
	jsRuntime   string

	tasks   map[string]*model.DownloadTask
	inputs  map[string]DownloadInput
	pending []string
	running map[string]ytdlp.Handle
	// cancelRequested outlives the process handle: an exit that races a
	// cancel request must still resolve to cancelled.
	cancelRequested map[string]bool

	notifyMu     sync.Mutex
	listeners    map[int]Listener
	nextListener int
}

func NewManager(opts Options) *Manager {
	return &Manager{
		cfg:             opts.Config,
		logger:          opts.Logger,
		hist:            opts.History,
		launcher:        opts.Launcher,
		resolver:        opts.Resolver,
		jsRuntime:       opts.Config.YTDLP.JSRuntime,
		tasks:           make(map[string]*model.DownloadTask),
		inputs:          make(map[string]DownloadInput),
		running:         make(map[string]ytdlp.Handle),
		cancelRequested: make(map[string]bool),
		listeners:       make(map[int]Listener),
	}
}

// Initialize resolves the external tools and loads persisted history. It is
// idempotent; a missing yt-dlp binary is fatal and leaves the manager
// unusable.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized {
		return nil
	}

	if m.launcher == nil || m.resolver == nil {
		tools, err := ytdlp.Locate(m.cfg.YTDLP.BinaryPath, m.cfg.YTDLP.FFmpegPath)
		if err != nil {
			return err
		}
		if tools.FFmpeg == "" {
			m.logger.Warn("ffmpeg not found; embedding and merge features may fail")
		}
		if m.launcher == nil {
			m.launcher = &ytdlp.Runner{Binary: tools.YTDLP}
		}
		if m.resolver == nil {
			m.resolver = &ytdlp.Client{Binary: tools.YTDLP}
		}
		m.logger.Info("resolved external tools",
			zap.String("yt_dlp", tools.YTDLP),
			zap.String("ffmpeg", tools.FFmpeg))
	}

	loaded, err := m.hist.Load()
	if err != nil {
		// PersistenceError: the orchestrator keeps going on its in-memory copy.
		m.logger.Error("load history", zap.Error(err))
	}
	for i := range loaded {
		t := loaded[i]
		m.tasks[t.ID] = &t
	}
	m.logger.Info("download manager initialized",
		zap.Int("history", len(loaded)),
		zap.Int("max_concurrent", m.cfg.Downloads.MaxConcurrent))

	m.initialized = true
	return nil
}

func (m *Manager) readyLocked() error {
	if !m.initialized {
		return ErrNotInitialized
	}
	return nil
}

func (m *Manager) ready() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readyLocked()
}

// Subscribe registers a listener and returns its unsubscribe func.
func (m *Manager) Subscribe(l Listener) func() {
	m.notifyMu.Lock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = l
	m.notifyMu.Unlock()
	return func() {
		m.notifyMu.Lock()
		delete(m.listeners, id)
		m.notifyMu.Unlock()
	}
}

func (m *Manager) notify(fn func(Listener)) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	for _, l := range m.listeners {
		fn(l)
	}
}

// Submit validates and enqueues a download, then immediately attempts
// admission.
func (m *Manager) Submit(input DownloadInput) (model.DownloadTask, error) {
	url := strings.TrimSpace(input.URL)
	if url == "" {
		return model.DownloadTask{}, ErrEmptyURL
	}
	if !model.IsKnownMediaType(input.Type) {
		input.Type = model.MediaVideo
	}

	m.mu.Lock()
	if err := m.readyLocked(); err != nil {
		m.mu.Unlock()
		return model.DownloadTask{}, err
	}

	task := &model.DownloadTask{
		ID:        uuid.NewString(),
		URL:       url,
		Type:      input.Type,
		Title:     input.Title,
		Status:    model.StatusPending,
		Playlist:  input.playlist,
		CreatedAt: time.Now().UTC(),
	}
	m.tasks[task.ID] = task
	m.inputs[task.ID] = input
	m.pending = append(m.pending, task.ID)
	snap := task.Clone()
	m.mu.Unlock()

	m.notify(func(l Listener) { l.TaskUpdated(snap) })
	m.emitQueue()
	m.admit()

	m.logger.Info("task submitted",
		zap.String("task_id", snap.ID),
		zap.String("url", snap.URL),
		zap.String("type", string(snap.Type)))
	return snap, nil
}

// admit drains free concurrency slots in submission order. Each pass holds
// the state lock for the whole pop-resolve-launch-transition sequence, so
// two concurrent admit calls cannot start the same task.
func (m *Manager) admit() {
	for {
		m.mu.Lock()
		if len(m.running) >= m.cfg.Downloads.MaxConcurrent || len(m.pending) == 0 {
			m.mu.Unlock()
			return
		}
		id := m.pending[0]
		m.pending = m.pending[1:]
		task, ok := m.tasks[id]
		if !ok {
			m.mu.Unlock()
			continue
		}
		input := m.inputs[id]
		delete(m.inputs, id)

		settings := config.ResolveSettings(m.cfg.Defaults, input.Settings, m.cfg.Downloads.Dir)
		spec := ytdlp.DownloadSpec{
			URL:            task.URL,
			Type:           task.Type,
			Quality:        input.Quality,
			AudioTrackIDs:  input.AudioTrackIDs,
			StartTime:      input.StartTime,
			EndTime:        input.EndTime,
			OutputTemplate: input.Filename,
			JSRuntime:      m.jsRuntime,
			Settings:       settings,
		}
		args, cmdStr := ytdlp.BuildDownloadArgs(spec)
		task.Command = cmdStr
		task.Format = ytdlp.FormatSelector(spec)
		task.OutputDir = settings.DownloadDir

		handle, err := m.launcher.Launch(args, ytdlp.Callbacks{
			Progress: func(raw model.RawProgress) { m.handleProgress(id, raw) },
			Exit:     func(code int, log []string, exitErr error) { m.finalize(id, code, log, exitErr) },
		})
		if err != nil {
			// ProcessError at launch never escapes the admission boundary; it
			// finalizes the task like any other failure.
			m.finalizeLocked(task, model.StatusError, fmt.Sprintf("failed to start download process: %v", err), nil)
			m.mu.Unlock()
			m.emitTaskAndQueue(id)
			m.emitHistory()
			continue
		}

		m.running[id] = handle
		if trErr := model.TransitionTaskStatus(task, model.StatusDownloading); trErr != nil {
			m.logger.Error("admission transition", zap.Error(trErr), zap.String("task_id", id))
		}
		task.StartedAt = time.Now().UTC()
		m.mu.Unlock()

		m.logger.Info("task admitted", zap.String("task_id", id))
		m.emitTaskAndQueue(id)
	}
}

// handleProgress updates only the progress field; status is untouched.
func (m *Manager) handleProgress(id string, raw model.RawProgress) {
	m.mu.Lock()
	task, ok := m.tasks[id]
	if !ok || task.Status != model.StatusDownloading {
		m.mu.Unlock()
		return
	}
	task.Progress = model.SnapshotProgress(raw)
	snap := task.Clone()
	m.mu.Unlock()
	m.notify(func(l Listener) { l.TaskUpdated(snap) })
}

// finalize resolves a process exit into exactly one terminal transition.
// A pending cancellation wins over the reported exit code.
func (m *Manager) finalize(id string, code int, log []string, exitErr error) {
	m.mu.Lock()
	task, ok := m.tasks[id]
	if !ok || model.IsTerminalStatus(task.Status) {
		delete(m.running, id)
		delete(m.cancelRequested, id)
		m.mu.Unlock()
		return
	}

	cancelled := m.cancelRequested[id]
	status := model.StatusCompleted
	reason := ""
	switch {
	case cancelled:
		status = model.StatusCancelled
	case code != 0:
		status = model.StatusError
		reason = fmt.Sprintf("download process exited with code %d", code)
		if exitErr != nil && code == -1 {
			reason = fmt.Sprintf("download process failed: %v", exitErr)
		}
	}
	m.finalizeLocked(task, status, reason, log)
	m.mu.Unlock()

	m.logger.Info("task finished",
		zap.String("task_id", id),
		zap.String("status", status),
		zap.Int("exit_code", code))
	m.emitTaskAndQueue(id)
	m.emitHistory()
	m.admit()
}

// finalizeLocked applies the terminal mutation and persists history before
// the lock is released, so no later terminal write can begin first.
func (m *Manager) finalizeLocked(task *model.DownloadTask, status, reason string, log []string) {
	delete(m.running, task.ID)
	delete(m.cancelRequested, task.ID)
	delete(m.inputs, task.ID)
	m.removePendingLocked(task.ID)

	task.Log = log
	task.Error = reason
	task.CompletedAt = time.Now().UTC()
	if status == model.StatusCompleted {
		task.Progress.Percent = 100
	}
	if dir, name, ok := ytdlp.RecoverSavedPath(log); ok {
		task.OutputDir = dir
		task.Filename = name
	}
	if err := model.TransitionTaskStatus(task, status); err != nil {
		m.logger.Error("terminal transition", zap.Error(err), zap.String("task_id", task.ID))
		task.Status = status
	}

	if err := m.hist.Save(m.historyLocked()); err != nil {
		m.logger.Error("persist history", zap.Error(err), zap.String("task_id", task.ID))
	}
}

// Cancel stops a task. Running tasks are marked and signalled; pending
// tasks are removed and finalized without ever starting a process.
func (m *Manager) Cancel(id string) (bool, error) {
	m.mu.Lock()
	if err := m.readyLocked(); err != nil {
		m.mu.Unlock()
		return false, err
	}
	task, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return false, nil
	}

	if handle, isRunning := m.running[id]; isRunning {
		m.cancelRequested[id] = true
		m.mu.Unlock()
		handle.Terminate()
		m.logger.Info("cancellation requested", zap.String("task_id", id))
		return true, nil
	}

	if task.Status == model.StatusPending {
		m.finalizeLocked(task, model.StatusCancelled, "", nil)
		m.mu.Unlock()
		m.logger.Info("pending task cancelled", zap.String("task_id", id))
		m.emitTaskAndQueue(id)
		m.emitHistory()
		m.admit()
		return true, nil
	}

	m.mu.Unlock()
	return false, nil
}

// ListDownloads returns the live partition, newest created first.
func (m *Manager) ListDownloads() ([]model.DownloadTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.readyLocked(); err != nil {
		return nil, err
	}
	return m.liveLocked(), nil
}

// ListHistory returns the terminal partition, most recently completed
// first, falling back to creation time.
func (m *Manager) ListHistory() ([]model.DownloadTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.readyLocked(); err != nil {
		return nil, err
	}
	return m.historyLocked(), nil
}

func (m *Manager) GetStatus() (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.readyLocked(); err != nil {
		return Status{}, err
	}
	return Status{Active: len(m.running), Pending: len(m.pending)}, nil
}

// RemoveHistoryItems deletes the given ids from the history partition.
// Persistence and notification fire only when something was removed.
func (m *Manager) RemoveHistoryItems(ids []string) (int, error) {
	m.mu.Lock()
	if err := m.readyLocked(); err != nil {
		m.mu.Unlock()
		return 0, err
	}
	removed := 0
	for _, id := range ids {
		task, ok := m.tasks[id]
		if !ok || !model.IsTerminalStatus(task.Status) {
			continue
		}
		delete(m.tasks, id)
		removed++
	}
	if removed > 0 {
		if err := m.hist.Save(m.historyLocked()); err != nil {
			m.logger.Error("persist history", zap.Error(err))
		}
	}
	m.mu.Unlock()

	if removed > 0 {
		m.emitHistory()
	}
	return removed, nil
}

// RemoveHistoryByPlaylist removes every history entry tagged with the
// given playlist group id.
func (m *Manager) RemoveHistoryByPlaylist(groupID string) (int, error) {
	m.mu.Lock()
	if err := m.readyLocked(); err != nil {
		m.mu.Unlock()
		return 0, err
	}
	ids := make([]string, 0)
	for id, task := range m.tasks {
		if task.Playlist != nil && task.Playlist.GroupID == groupID && model.IsTerminalStatus(task.Status) {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()
	return m.RemoveHistoryItems(ids)
}

func (m *Manager) removePendingLocked(id string) {
	for i, p := range m.pending {
		if p == id {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			return
		}
	}
}

func (m *Manager) liveLocked() []model.DownloadTask {
	out := make([]model.DownloadTask, 0)
	for _, t := range m.tasks {
		if !model.IsTerminalStatus(t.Status) {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *Manager) historyLocked() []model.DownloadTask {
	out := make([]model.DownloadTask, 0)
	for _, t := range m.tasks {
		if model.IsTerminalStatus(t.Status) {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].CompletedAt, out[j].CompletedAt
		if ti.IsZero() {
			ti = out[i].CreatedAt
		}
		if tj.IsZero() {
			tj = out[j].CreatedAt
		}
		return ti.After(tj)
	})
	return out
}

func (m *Manager) emitTaskAndQueue(id string) {
	m.mu.Lock()
	task, ok := m.tasks[id]
	var snap model.DownloadTask
	if ok {
		snap = task.Clone()
	}
	queue := m.liveLocked()
	m.mu.Unlock()
	if ok {
		m.notify(func(l Listener) { l.TaskUpdated(snap) })
	}
	m.notify(func(l Listener) { l.QueueUpdated(queue) })
}

func (m *Manager) emitQueue() {
	m.mu.Lock()
	queue := m.liveLocked()
	m.mu.Unlock()
	m.notify(func(l Listener) { l.QueueUpdated(queue) })
}

func (m *Manager) emitHistory() {
	m.mu.Lock()
	hist := m.historyLocked()
	m.mu.Unlock()
	m.notify(func(l Listener) { l.HistoryUpdated(hist) })
}
