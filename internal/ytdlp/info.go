package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/nexmoe/vidbee-server/internal/config"
	"github.com/nexmoe/vidbee-server/internal/model"
)

const defaultExtractTimeout = 2 * time.Minute

// Client runs yt-dlp in metadata-only mode.
type Client struct {
	Binary  string
	Timeout time.Duration
}

// PlaylistDocument is the flat-playlist JSON as yt-dlp reports it, before
// entry filtering.
type PlaylistDocument struct {
	ID         string                  `json:"id"`
	Title      string                  `json:"title"`
	WebpageURL string                  `json:"webpage_url"`
	Entries    []PlaylistDocumentEntry `json:"entries"`
}

type PlaylistDocumentEntry struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	URL        string      `json:"url"`
	WebpageURL string      `json:"webpage_url"`
	IEKey      string      `json:"ie_key"`
	Thumbnails []Thumbnail `json:"thumbnails"`
}

type Thumbnail struct {
	URL string `json:"url"`
}

// PlayableURL resolves the entry to something a download process can take:
// the direct url, else the webpage url, else a reconstructed watch url for
// extractors we recognize.
func (e PlaylistDocumentEntry) PlayableURL() string {
	if u := strings.TrimSpace(e.URL); u != "" {
		return u
	}
	if u := strings.TrimSpace(e.WebpageURL); u != "" {
		return u
	}
	if strings.EqualFold(e.IEKey, "youtube") && strings.TrimSpace(e.ID) != "" {
		return "https://www.youtube.com/watch?v=" + e.ID
	}
	return ""
}

// ExtractVideoInfo fetches single-item metadata (-J, no download).
func (c *Client) ExtractVideoInfo(ctx context.Context, url string, settings config.Settings) (*model.VideoInfo, error) {
	out, err := c.run(ctx, url, settings, "-J", "--no-playlist")
	if err != nil {
		return nil, err
	}
	var info model.VideoInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("parse video info: %w", err)
	}
	return &info, nil
}

// ResolvePlaylist fetches the flat-playlist document for a playlist URL.
func (c *Client) ResolvePlaylist(ctx context.Context, url string, settings config.Settings) (*PlaylistDocument, error) {
	out, err := c.run(ctx, url, settings, "--flat-playlist", "-J")
	if err != nil {
		return nil, err
	}
	var doc PlaylistDocument
	if err := json.Unmarshal(out, &doc); err != nil {
		return nil, fmt.Errorf("parse playlist document: %w", err)
	}
	return &doc, nil
}

func (c *Client) run(ctx context.Context, url string, settings config.Settings, mode ...string) ([]byte, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("url is required")
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultExtractTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append([]string{}, mode...)
	args = appendNetworkArgs(args, settings)
	args = append(args, url)

	cmd := exec.CommandContext(ctx, c.Binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("yt-dlp timed out resolving %s", url)
		}
		return nil, fmt.Errorf("yt-dlp failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("yt-dlp returned empty output for %s", url)
	}
	return stdout.Bytes(), nil
}
