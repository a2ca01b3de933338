package model

import "time"

type MediaType string

const (
	MediaVideo MediaType = "video"
	MediaAudio MediaType = "audio"
)

func IsKnownMediaType(t MediaType) bool {
	return t == MediaVideo || t == MediaAudio
}

// PlaylistTag links a task to the playlist-download request it came from.
type PlaylistTag struct {
	GroupID string `json:"group_id"`
	Title   string `json:"title,omitempty"`
	Index   int    `json:"index"`
	Count   int    `json:"count"`
}

// DownloadTask is one user-requested media fetch. All mutation goes through
// the queue manager's update path; everything handed to callers is a copy.
type DownloadTask struct {
	ID          string       `json:"id"`
	URL         string       `json:"url"`
	Type        MediaType    `json:"type"`
	Title       string       `json:"title,omitempty"`
	Status      string       `json:"status"`
	Progress    Progress     `json:"progress"`
	Format      string       `json:"format,omitempty"`
	Playlist    *PlaylistTag `json:"playlist,omitempty"`
	Log         []string     `json:"log,omitempty"`
	Command     string       `json:"command,omitempty"`
	OutputDir   string       `json:"output_dir,omitempty"`
	Filename    string       `json:"filename,omitempty"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	StartedAt   time.Time    `json:"started_at,omitzero"`
	CompletedAt time.Time    `json:"completed_at,omitzero"`
}

// Clone returns a deep copy safe to hand outside the registry lock.
func (t *DownloadTask) Clone() DownloadTask {
	c := *t
	if t.Playlist != nil {
		tag := *t.Playlist
		c.Playlist = &tag
	}
	if t.Log != nil {
		c.Log = append([]string(nil), t.Log...)
	}
	return c
}
