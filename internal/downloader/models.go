package downloader

import (
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"
)

// MediaInfo is the metadata resolved for a single video URL.
// Immutable once fetched; never persisted.
type MediaInfo struct {
	VideoID   string           `json:"videoId"`
	Title     string           `json:"title"`
	Author    string           `json:"author"`
	Thumbnail string           `json:"thumbnail"`
	Duration  int64            `json:"duration"` // seconds
	Formats   []EncodingOption `json:"formats"`
}

// EncodingOption is one retrievable stream variant as reported by the
// extraction library.
type EncodingOption struct {
	Quality   string `json:"quality"`
	Container string `json:"container"`
	Codecs    string `json:"codecs"`
	Size      int64  `json:"size,omitempty"`
	Itag      int    `json:"itag"`
	HasVideo  bool   `json:"hasVideo"`
	HasAudio  bool   `json:"hasAudio"`
}

// DownloadResult references a completed StoredFile, usable to build a
// retrieval URL.
type DownloadResult struct {
	FileName string
	Title    string
	Size     int64
}

// StoredFile is a filesystem entry in the storage directory. Existence is
// defined by presence on disk; the registry only mirrors it.
type StoredFile struct {
	Name      string
	CreatedAt time.Time
}

// newMediaInfo maps a fetched video to MediaInfo. When playableOnly is set,
// only formats carrying both audio and video are included (the minimal filter
// for a directly playable file); otherwise every format is mapped.
func newMediaInfo(v *youtube.Video, playableOnly bool) *MediaInfo {
	info := &MediaInfo{
		VideoID:  v.ID,
		Title:    v.Title,
		Author:   v.Author,
		Duration: int64(v.Duration / time.Second),
	}
	if n := len(v.Thumbnails); n > 0 {
		info.Thumbnail = v.Thumbnails[n-1].URL
	}

	for i := range v.Formats {
		opt := newEncodingOption(&v.Formats[i])
		if playableOnly && !(opt.HasVideo && opt.HasAudio) {
			continue
		}
		info.Formats = append(info.Formats, opt)
	}

	return info
}

func newEncodingOption(f *youtube.Format) EncodingOption {
	return EncodingOption{
		Quality:   f.QualityLabel,
		Container: containerOf(f.MimeType),
		Codecs:    codecsOf(f.MimeType),
		Size:      f.ContentLength,
		Itag:      f.ItagNo,
		HasVideo:  f.QualityLabel != "",
		HasAudio:  f.AudioChannels > 0,
	}
}

// containerOf extracts the container from a mime type such as
// `video/mp4; codecs="avc1.42001E, mp4a.40.2"`.
func containerOf(mimeType string) string {
	mt, _, _ := strings.Cut(mimeType, ";")
	_, container, _ := strings.Cut(strings.TrimSpace(mt), "/")
	return container
}

func codecsOf(mimeType string) string {
	_, params, ok := strings.Cut(mimeType, ";")
	if !ok {
		return ""
	}
	_, codecs, ok := strings.Cut(params, "codecs=")
	if !ok {
		return ""
	}
	return strings.Trim(strings.TrimSpace(codecs), `"`)
}
