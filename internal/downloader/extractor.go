package downloader

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/kkdai/youtube/v2"
)

// Extractor is the contract for the external video-extraction library:
// URL validation, metadata retrieval, and filtered stream retrieval.
type Extractor interface {
	// ValidateURL reports whether the URL belongs to the platform and
	// returns the extracted video id. It performs no network calls.
	ValidateURL(rawURL string) (string, error)

	// GetVideo retrieves full metadata for the video behind rawURL.
	GetVideo(ctx context.Context, rawURL string) (*youtube.Video, error)

	// GetStream opens the media stream for the given format.
	GetStream(ctx context.Context, video *youtube.Video, format *youtube.Format) (io.ReadCloser, int64, error)
}

// clientExtractor implements Extractor on top of github.com/kkdai/youtube.
type clientExtractor struct {
	client youtube.Client
}

// NewExtractor returns an Extractor backed by the YouTube client.
func NewExtractor() Extractor {
	return &clientExtractor{
		client: youtube.Client{
			HTTPClient: &http.Client{Timeout: 10 * time.Minute},
		},
	}
}

func (e *clientExtractor) ValidateURL(rawURL string) (string, error) {
	id, err := youtube.ExtractVideoID(rawURL)
	if err != nil {
		return "", ErrInvalidURL
	}
	return id, nil
}

func (e *clientExtractor) GetVideo(ctx context.Context, rawURL string) (*youtube.Video, error) {
	return e.client.GetVideoContext(ctx, rawURL)
}

func (e *clientExtractor) GetStream(ctx context.Context, video *youtube.Video, format *youtube.Format) (io.ReadCloser, int64, error) {
	return e.client.GetStreamContext(ctx, video, format)
}
