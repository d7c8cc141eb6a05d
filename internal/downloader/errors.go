package downloader

import "errors"

var (
	// ErrInvalidURL is returned when the given URL does not pass the
	// platform URL check. Reported before any network call.
	ErrInvalidURL = errors.New("invalid YouTube URL")

	// ErrFetchFailed is returned when metadata retrieval fails.
	ErrFetchFailed = errors.New("failed to fetch video info")

	// ErrDownloadFailed is returned when streaming media into the storage
	// directory fails.
	ErrDownloadFailed = errors.New("download failed")

	// ErrConversionFailed is returned when the external transcoder fails.
	ErrConversionFailed = errors.New("conversion failed")

	// ErrNotFound is returned when the requested file is absent or expired.
	ErrNotFound = errors.New("file not found or expired")
)
