package queue

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexmoe/vidbee-server/internal/config"
	"github.com/nexmoe/vidbee-server/internal/model"
)

// PlaylistRequest selects which entries of a playlist to download and how.
// EntryIDs wins over the index range when both are given.
type PlaylistRequest struct {
	URL        string            `json:"url"`
	Type       model.MediaType   `json:"type"`
	Quality    string            `json:"quality,omitempty"`
	EntryIDs   []string          `json:"entry_ids,omitempty"`
	StartIndex int               `json:"start_index,omitempty"`
	EndIndex   int               `json:"end_index,omitempty"`
	Settings   *config.Overrides `json:"settings,omitempty"`
}

// PlaylistDownloadResult reports what a playlist submission produced.
type PlaylistDownloadResult struct {
	GroupID string               `json:"group_id"`
	Title   string               `json:"title"`
	Tasks   []model.DownloadTask `json:"tasks"`
}

// GetVideoInfo resolves single-item metadata without enqueueing anything.
func (m *Manager) GetVideoInfo(ctx context.Context, url string, overrides *config.Overrides) (*model.VideoInfo, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(url) == "" {
		return nil, ErrEmptyURL
	}
	settings := config.ResolveSettings(m.cfg.Defaults, overrides, m.cfg.Downloads.Dir)
	return m.resolver.ExtractVideoInfo(ctx, url, settings)
}

// GetPlaylistInfo resolves a playlist into its playable entries with 1-based
// numbering. Entries the extractor cannot turn into a URL are dropped before
// numbering, so indices are contiguous over what a download could use.
func (m *Manager) GetPlaylistInfo(ctx context.Context, url string, overrides *config.Overrides) (*model.PlaylistInfo, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(url) == "" {
		return nil, ErrEmptyURL
	}
	settings := config.ResolveSettings(m.cfg.Defaults, overrides, m.cfg.Downloads.Dir)
	doc, err := m.resolver.ResolvePlaylist(ctx, url, settings)
	if err != nil {
		return nil, err
	}

	info := &model.PlaylistInfo{ID: doc.ID, Title: doc.Title}
	for _, entry := range doc.Entries {
		playable := entry.PlayableURL()
		if playable == "" {
			m.logger.Debug("skipping unplayable playlist entry",
				zap.String("entry_id", entry.ID),
				zap.String("title", entry.Title))
			continue
		}
		thumb := ""
		if len(entry.Thumbnails) > 0 {
			thumb = entry.Thumbnails[len(entry.Thumbnails)-1].URL
		}
		info.Entries = append(info.Entries, model.PlaylistEntry{
			ID:        entry.ID,
			Title:     entry.Title,
			URL:       playable,
			Index:     len(info.Entries) + 1,
			Thumbnail: thumb,
		})
	}
	info.Count = len(info.Entries)
	return info, nil
}

// StartPlaylistDownload expands a playlist request into one task per
// selected entry, all tagged with a fresh group id. Selecting zero entries
// is not an error; the result just carries no tasks.
func (m *Manager) StartPlaylistDownload(ctx context.Context, req PlaylistRequest) (*PlaylistDownloadResult, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	info, err := m.GetPlaylistInfo(ctx, req.URL, req.Settings)
	if err != nil {
		return nil, err
	}

	selected := selectEntries(info.Entries, req)
	result := &PlaylistDownloadResult{
		GroupID: uuid.NewString(),
		Title:   info.Title,
	}
	for _, entry := range selected {
		input := DownloadInput{
			URL:      entry.URL,
			Type:     req.Type,
			Quality:  req.Quality,
			Title:    entry.Title,
			Settings: req.Settings,
			playlist: &model.PlaylistTag{
				GroupID: result.GroupID,
				Title:   info.Title,
				Index:   entry.Index,
				Count:   len(selected),
			},
		}
		task, err := m.Submit(input)
		if err != nil {
			m.logger.Error("submit playlist entry",
				zap.Error(err),
				zap.String("url", entry.URL))
			continue
		}
		result.Tasks = append(result.Tasks, task)
	}

	m.logger.Info("playlist expanded",
		zap.String("group_id", result.GroupID),
		zap.String("title", info.Title),
		zap.Int("selected", len(selected)),
		zap.Int("total", info.Count))
	return result, nil
}

// selectEntries applies the id set when present, else the clamped index
// range, else everything.
func selectEntries(entries []model.PlaylistEntry, req PlaylistRequest) []model.PlaylistEntry {
	if len(req.EntryIDs) > 0 {
		want := make(map[string]bool, len(req.EntryIDs))
		for _, id := range req.EntryIDs {
			want[id] = true
		}
		out := make([]model.PlaylistEntry, 0, len(req.EntryIDs))
		for _, e := range entries {
			if want[e.ID] {
				out = append(out, e)
			}
		}
		return out
	}

	if req.StartIndex > 0 || req.EndIndex > 0 {
		start, end := req.StartIndex, req.EndIndex
		if start < 1 {
			start = 1
		}
		if start > len(entries) {
			start = len(entries)
		}
		if end < 1 || end > len(entries) {
			end = len(entries)
		}
		if start > end {
			return nil
		}
		out := make([]model.PlaylistEntry, 0, end-start+1)
		for _, e := range entries {
			if e.Index >= start && e.Index <= end {
				out = append(out, e)
			}
		}
		return out
	}

	return entries
}
