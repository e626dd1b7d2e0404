package artifact

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/disintegration/imaging"

	"genstudio/internal/storage"
)

const (
	thumbSize    = 400
	thumbQuality = 85
)

// FrameExtractor writes a single still frame of the video at in to out.
type FrameExtractor func(ctx context.Context, in, out string) error

// FFmpegExtractor grabs the frame at the one second mark.
func FFmpegExtractor(binary string) FrameExtractor {
	return func(ctx context.Context, in, out string) error {
		cmd := exec.CommandContext(ctx, binary,
			"-hide_banner", "-loglevel", "error", "-y",
			"-ss", "1", "-i", in,
			"-frames:v", "1", out,
		)
		if output, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("ffmpeg: %w: %s", err, bytes.TrimSpace(output))
		}
		return nil
	}
}

// Thumbnailer renders 400x400 center-cropped JPEG previews.
type Thumbnailer struct {
	scratch *storage.FileStore
	extract FrameExtractor
}

func NewThumbnailer(scratch *storage.FileStore, extract FrameExtractor) *Thumbnailer {
	return &Thumbnailer{scratch: scratch, extract: extract}
}

// Thumbnail returns the preview for data, or an error when kind has no
// preview or decoding fails.
func (t *Thumbnailer) Thumbnail(ctx context.Context, kind Kind, data []byte) ([]byte, error) {
	switch kind {
	case KindImage:
		return cropJPEG(data)
	case KindVideo:
		frame, err := t.videoFrame(ctx, data)
		if err != nil {
			return nil, err
		}
		return cropJPEG(frame)
	default:
		return nil, fmt.Errorf("thumbnail: unsupported kind %q", kind)
	}
}

func (t *Thumbnailer) videoFrame(ctx context.Context, data []byte) ([]byte, error) {
	if t.scratch == nil || t.extract == nil {
		return nil, fmt.Errorf("thumbnail: video frames are not configured")
	}
	inKey, err := t.scratch.Write(ctx, t.scratch.TempKey("video", ".tmp"), data)
	if err != nil {
		return nil, err
	}
	defer t.scratch.Remove(inKey)
	outKey := t.scratch.TempKey("frame", ".jpg")
	defer t.scratch.Remove(outKey)

	inPath, err := t.scratch.Path(inKey)
	if err != nil {
		return nil, err
	}
	outPath, err := t.scratch.Path(outKey)
	if err != nil {
		return nil, err
	}
	if err := t.extract(ctx, inPath, outPath); err != nil {
		return nil, err
	}
	return t.scratch.Read(ctx, outKey)
}

func cropJPEG(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("thumbnail: decode: %w", err)
	}
	thumb := imaging.Fill(img, thumbSize, thumbSize, imaging.Center, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(thumbQuality)); err != nil {
		return nil, fmt.Errorf("thumbnail: encode: %w", err)
	}
	return buf.Bytes(), nil
}
