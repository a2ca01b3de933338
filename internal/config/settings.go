package config

import "strings"

// Settings are the runtime knobs passed to the extraction tool. The
// process-wide defaults live in the config file; each request may override
// individual fields.
type Settings struct {
	DownloadDir        string `json:"download_dir,omitempty" yaml:"download_dir"`
	CookiesFromBrowser string `json:"cookies_from_browser,omitempty" yaml:"cookies_from_browser"`
	CookiesFile        string `json:"cookies_file,omitempty" yaml:"cookies_file"`
	Proxy              string `json:"proxy,omitempty" yaml:"proxy"`
	ConfigFile         string `json:"config_file,omitempty" yaml:"config_file"`
	EmbedSubs          bool   `json:"embed_subs,omitempty" yaml:"embed_subs"`
	EmbedThumbnail     bool   `json:"embed_thumbnail,omitempty" yaml:"embed_thumbnail"`
	EmbedMetadata      bool   `json:"embed_metadata,omitempty" yaml:"embed_metadata"`
	EmbedChapters      bool   `json:"embed_chapters,omitempty" yaml:"embed_chapters"`
}

// Overrides are request-supplied settings. Pointer booleans distinguish
// "leave the default" from an explicit false.
type Overrides struct {
	DownloadDir        string `json:"download_dir,omitempty"`
	CookiesFromBrowser string `json:"cookies_from_browser,omitempty"`
	CookiesFile        string `json:"cookies_file,omitempty"`
	Proxy              string `json:"proxy,omitempty"`
	ConfigFile         string `json:"config_file,omitempty"`
	EmbedSubs          *bool  `json:"embed_subs,omitempty"`
	EmbedThumbnail     *bool  `json:"embed_thumbnail,omitempty"`
	EmbedMetadata      *bool  `json:"embed_metadata,omitempty"`
	EmbedChapters      *bool  `json:"embed_chapters,omitempty"`
}

// ResolveSettings overlays request overrides onto the process defaults. The
// final download directory is always non-empty: an empty result falls back
// to fallbackDir.
func ResolveSettings(defaults Settings, o *Overrides, fallbackDir string) Settings {
	s := defaults
	if o != nil {
		s.DownloadDir = firstNonEmpty(o.DownloadDir, s.DownloadDir)
		s.CookiesFromBrowser = firstNonEmpty(o.CookiesFromBrowser, s.CookiesFromBrowser)
		s.CookiesFile = firstNonEmpty(o.CookiesFile, s.CookiesFile)
		s.Proxy = firstNonEmpty(o.Proxy, s.Proxy)
		s.ConfigFile = firstNonEmpty(o.ConfigFile, s.ConfigFile)
		if o.EmbedSubs != nil {
			s.EmbedSubs = *o.EmbedSubs
		}
		if o.EmbedThumbnail != nil {
			s.EmbedThumbnail = *o.EmbedThumbnail
		}
		if o.EmbedMetadata != nil {
			s.EmbedMetadata = *o.EmbedMetadata
		}
		if o.EmbedChapters != nil {
			s.EmbedChapters = *o.EmbedChapters
		}
	}
	if strings.TrimSpace(s.DownloadDir) == "" {
		s.DownloadDir = fallbackDir
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
