package model

// VideoFormat describes one stream reported by the extraction tool.
type VideoFormat struct {
	FormatID       string  `json:"format_id"`
	Ext            string  `json:"ext,omitempty"`
	Width          int     `json:"width,omitempty"`
	Height         int     `json:"height,omitempty"`
	FPS            float64 `json:"fps,omitempty"`
	VCodec         string  `json:"vcodec,omitempty"`
	ACodec         string  `json:"acodec,omitempty"`
	Filesize       int64   `json:"filesize,omitempty"`
	FilesizeApprox int64   `json:"filesize_approx,omitempty"`
	TBR            float64 `json:"tbr,omitempty"`
	ABR            float64 `json:"abr,omitempty"`
	VBR            float64 `json:"vbr,omitempty"`
	Quality        float64 `json:"quality,omitempty"`
	Protocol       string  `json:"protocol,omitempty"`
	Language       string  `json:"language,omitempty"`
	AudioExt       string  `json:"audio_ext,omitempty"`
	VideoExt       string  `json:"video_ext,omitempty"`
}

// VideoInfo is the metadata returned for a single media URL.
type VideoInfo struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Duration   float64       `json:"duration,omitempty"`
	Thumbnail  string        `json:"thumbnail,omitempty"`
	Uploader   string        `json:"uploader,omitempty"`
	WebpageURL string        `json:"webpage_url,omitempty"`
	Formats    []VideoFormat `json:"formats,omitempty"`
}
