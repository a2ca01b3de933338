package model

// PlaylistEntry is one resolvable item of a playlist, numbered 1-based.
type PlaylistEntry struct {
	ID        string `json:"id"`
	Title     string `json:"title,omitempty"`
	URL       string `json:"url"`
	Index     int    `json:"index"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// PlaylistInfo is a resolved playlist with only its playable entries.
type PlaylistInfo struct {
	ID      string          `json:"id"`
	Title   string          `json:"title,omitempty"`
	Entries []PlaylistEntry `json:"entries"`
	Count   int             `json:"count"`
}
