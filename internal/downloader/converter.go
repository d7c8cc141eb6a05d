package downloader

import (
	"context"
	"fmt"
	"os/exec"
)

// Converter is the contract for the external transcoding tool.
type Converter interface {
	// ConvertToMP3 transcodes the media file at src into an mp3 at dst.
	ConvertToMP3(ctx context.Context, src, dst string) error
}

// ffmpegConverter shells out to ffmpeg. It operates on real OS paths, so the
// storage directory must live on the OS filesystem when conversion is enabled.
type ffmpegConverter struct {
	binary string
}

// NewFFmpegConverter returns a Converter that invokes the ffmpeg binary.
func NewFFmpegConverter() Converter {
	return &ffmpegConverter{binary: "ffmpeg"}
}

func (c *ffmpegConverter) ConvertToMP3(ctx context.Context, src, dst string) error {
	cmd := exec.CommandContext(ctx, c.binary, mp3Args(src, dst)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, out)
	}
	return nil
}

func mp3Args(src, dst string) []string {
	return []string{"-y", "-i", src, "-vn", "-f", "mp3", "-ab", "192k", dst}
}
