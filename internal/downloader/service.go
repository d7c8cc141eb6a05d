package downloader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"
	"github.com/spf13/afero"
)

// DefaultServeGrace is the delay between a completed retrieval and the
// deletion of the served file, tolerating slow client-side buffering.
const DefaultServeGrace = 5 * time.Second

// Service resolves video URLs into metadata, drives downloads into the
// storage directory, and serves completed files once.
type Service struct {
	extractor Extractor
	converter Converter
	storage   *Storage
	grace     time.Duration
	log       *slog.Logger
}

// NewService wires the extraction library, the transcoder, and the storage
// directory together. If grace <= 0, DefaultServeGrace is used.
func NewService(extractor Extractor, converter Converter, storage *Storage, grace time.Duration, log *slog.Logger) *Service {
	if grace <= 0 {
		grace = DefaultServeGrace
	}
	return &Service{
		extractor: extractor,
		converter: converter,
		storage:   storage,
		grace:     grace,
		log:       log,
	}
}

// Info resolves url into metadata and the list of directly playable encoding
// options (audio+video). The URL is validated before any network call.
func (s *Service) Info(ctx context.Context, url string) (*MediaInfo, error) {
	if _, err := s.extractor.ValidateURL(url); err != nil {
		return nil, ErrInvalidURL
	}

	video, err := s.extractor.GetVideo(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	return newMediaInfo(video, true), nil
}

// Download fetches the media behind url into a new file in the storage
// directory. quality selects a resolution label ("720p"); targetFormat "mp3"
// requests audio-only output, which downloads the best audio stream and then
// transcodes it, removing the intermediate file.
func (s *Service) Download(ctx context.Context, url, quality, targetFormat string) (*DownloadResult, error) {
	if _, err := s.extractor.ValidateURL(url); err != nil {
		return nil, ErrInvalidURL
	}

	video, err := s.extractor.GetVideo(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	audioOnly := strings.EqualFold(targetFormat, "mp3")
	format, err := pickFormat(video, quality, audioOnly)
	if err != nil {
		return nil, err
	}

	name, err := s.fetchToStorage(ctx, video, format)
	if err != nil {
		return nil, err
	}

	if audioOnly {
		name, err = s.convertToMP3(ctx, name)
		if err != nil {
			return nil, err
		}
	}

	size, err := s.storage.Size(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	return &DownloadResult{FileName: name, Title: video.Title, Size: size}, nil
}

// fetchToStorage streams the selected format into a uniquely named file.
// On a write failure the partial file is left for the sweeper to reclaim.
func (s *Service) fetchToStorage(ctx context.Context, video *youtube.Video, format *youtube.Format) (string, error) {
	stream, _, err := s.extractor.GetStream(ctx, video, format)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer stream.Close()

	ext := containerOf(format.MimeType)
	if ext == "" {
		ext = "mp4"
	}
	name := UniqueFileName(video.Title, ext, time.Now())

	f, err := s.storage.Create(name)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	if _, err := io.Copy(f, stream); err != nil {
		f.Close()
		return "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	return name, nil
}

// convertToMP3 transcodes the named file and removes the intermediate,
// leaving exactly one final file in storage.
func (s *Service) convertToMP3(ctx context.Context, name string) (string, error) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	mp3Name := stem + ".mp3"

	src := filepath.Join(s.storage.Dir(), name)
	dst := filepath.Join(s.storage.Dir(), mp3Name)

	if err := s.converter.ConvertToMP3(ctx, src, dst); err != nil {
		return "", fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}

	if _, err := s.storage.Adopt(mp3Name); err != nil {
		return "", fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}
	if err := s.storage.Remove(name); err != nil {
		s.log.Warn("failed to remove intermediate file", slog.String("name", name), slog.String("error", err.Error()))
	}

	return mp3Name, nil
}

// OpenFile returns a reader over a completed file, or ErrNotFound. The name
// comes straight from the request path; Storage contains it within the
// storage directory before opening.
func (s *Service) OpenFile(name string) (afero.File, os.FileInfo, error) {
	return s.storage.Open(name)
}

// ScheduleRemoval deletes the named file after the grace delay. Deletion
// happens whether or not the transfer completed; interrupted clients re-run
// the download.
func (s *Service) ScheduleRemoval(name string) {
	time.AfterFunc(s.grace, func() {
		if err := s.storage.Remove(name); err != nil {
			s.log.Warn("failed to remove served file", slog.String("name", name), slog.String("error", err.Error()))
			return
		}
		s.log.Debug("removed served file", slog.String("name", name))
	})
}

// QuickDownload streams the best playable format directly to the caller
// without touching the storage directory. Returns the stream, a suggested
// filename, and the content length (0 when unknown).
func (s *Service) QuickDownload(ctx context.Context, url string) (io.ReadCloser, string, int64, error) {
	if _, err := s.extractor.ValidateURL(url); err != nil {
		return nil, "", 0, ErrInvalidURL
	}

	video, err := s.extractor.GetVideo(ctx, url)
	if err != nil {
		return nil, "", 0, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	format, err := pickFormat(video, "", false)
	if err != nil {
		return nil, "", 0, err
	}

	stream, size, err := s.extractor.GetStream(ctx, video, format)
	if err != nil {
		return nil, "", 0, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	return stream, SanitizeTitle(video.Title) + ".mp4", size, nil
}

// pickFormat selects the stream variant to fetch. For audio-only output the
// best audio stream wins; otherwise the best audio+video combination, bounded
// by the requested quality label when one matches. mp4 is preferred over webm
// so the native download is directly playable.
func pickFormat(video *youtube.Video, quality string, audioOnly bool) (*youtube.Format, error) {
	var best *youtube.Format
	for i := range video.Formats {
		f := &video.Formats[i]
		if f.AudioChannels == 0 {
			continue
		}
		if audioOnly {
			if f.QualityLabel == "" && (best == nil || f.Bitrate > best.Bitrate) {
				best = f
			}
			continue
		}
		if f.QualityLabel == "" {
			continue
		}
		if quality != "" && !qualityMatches(f.QualityLabel, quality) {
			continue
		}
		if best == nil || betterPlayable(f, best) {
			best = f
		}
	}

	if best == nil && audioOnly {
		// No dedicated audio stream; fall back to any format carrying audio.
		for i := range video.Formats {
			f := &video.Formats[i]
			if f.AudioChannels > 0 && (best == nil || f.Bitrate > best.Bitrate) {
				best = f
			}
		}
	}
	if best == nil && quality != "" {
		// Requested quality unavailable; retry unbounded.
		return pickFormat(video, "", audioOnly)
	}
	if best == nil {
		return nil, fmt.Errorf("%w: no suitable format", ErrDownloadFailed)
	}
	return best, nil
}

func qualityMatches(label, requested string) bool {
	return strings.TrimSuffix(label, "p") == strings.TrimSuffix(requested, "p")
}

func betterPlayable(a, b *youtube.Format) bool {
	aMP4 := strings.Contains(a.MimeType, "mp4")
	bMP4 := strings.Contains(b.MimeType, "mp4")
	if aMP4 != bMP4 {
		return aMP4
	}
	return a.Height > b.Height
}
