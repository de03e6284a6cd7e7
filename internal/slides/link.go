package slides

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"time"
)

// Source identifies the video a deck was built from.
type Source struct {
	VideoID   string `json:"video_id,omitempty" yaml:"video_id,omitempty"`
	Title     string `json:"title" yaml:"title"`
	URL       string `json:"url,omitempty" yaml:"url,omitempty"`
	LocalPath string `json:"local_path,omitempty" yaml:"local_path,omitempty"`
}

// IsYouTube reports whether links point at youtube.com.
func (s Source) IsYouTube() bool { return s.VideoID != "" }

// Link builds a deep link into the source at whole-second precision.
func Link(src Source, d time.Duration) string {
	seconds := int64(d / time.Second)
	if seconds < 0 {
		seconds = 0
	}
	secs := strconv.FormatInt(seconds, 10)

	switch {
	case src.VideoID != "":
		return fmt.Sprintf("https://www.youtube.com/watch?v=%s&t=%ss", url.QueryEscape(src.VideoID), secs)
	case src.URL != "":
		u, err := url.Parse(src.URL)
		if err != nil {
			return src.URL
		}
		q := u.Query()
		q.Set("t", secs)
		u.RawQuery = q.Encode()
		return u.String()
	case src.LocalPath != "":
		path := src.LocalPath
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		u := url.URL{Scheme: "file", Path: filepath.ToSlash(path), Fragment: "t=" + secs}
		return u.String()
	default:
		return ""
	}
}

// Label is the clickable text shown with each slide.
func Label(src Source, d time.Duration) string {
	if src.IsYouTube() {
		return "Jump to " + FormatTimestamp(d) + " on YouTube"
	}
	return "Jump to " + FormatTimestamp(d)
}
