// Package thumbnail derives a still preview image from a generated video.
package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DecodeError reports that the video could not be decoded or no frame could
// be captured from it.
type DecodeError struct {
	Message string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("thumbnail: %s: %v", e.Message, e.Err)
	}
	return "thumbnail: " + e.Message
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Extractor produces a still-image binary from a binary video payload.
type Extractor interface {
	Extract(ctx context.Context, video []byte) ([]byte, error)
}

// Seek slightly into the clip rather than frame 0, which is often black
// while the encoder fades in.
const defaultSeekOffset = 0.5

// FFmpeg shells out to an ffmpeg binary to grab an early frame and encode
// it as JPEG.
type FFmpeg struct {
	binPath    string
	seekOffset float64
	logger     zerolog.Logger
}

func NewFFmpeg(binPath string, logger zerolog.Logger) *FFmpeg {
	if binPath == "" {
		binPath = "ffmpeg"
	}
	return &FFmpeg{binPath: binPath, seekOffset: defaultSeekOffset, logger: logger}
}

// Extract writes the video to a scratch file, captures one frame at the
// seek offset and returns it as JPEG (-q:v 2, roughly quality 0.8). All
// scratch files are removed on every path.
func (f *FFmpeg) Extract(ctx context.Context, video []byte) ([]byte, error) {
	if len(video) == 0 {
		return nil, &DecodeError{Message: "empty video payload"}
	}

	scratch := uuid.NewString()
	inPath := filepath.Join(os.TempDir(), "thumb_in_"+scratch+".mp4")
	outPath := filepath.Join(os.TempDir(), "thumb_out_"+scratch+".jpg")
	defer os.Remove(inPath)
	defer os.Remove(outPath)

	if err := os.WriteFile(inPath, video, 0o644); err != nil {
		return nil, &DecodeError{Message: "write scratch video", Err: err}
	}

	cmd := exec.CommandContext(ctx, f.binPath,
		"-ss", strconv.FormatFloat(f.seekOffset, 'f', -1, 64),
		"-i", inPath,
		"-frames:v", "1",
		"-q:v", "2",
		"-y", outPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		f.logger.Debug().Str("stderr", stderr.String()).Msg("thumbnail: ffmpeg failed")
		return nil, &DecodeError{Message: "decode video frame", Err: err}
	}

	still, err := os.ReadFile(outPath)
	if err != nil {
		return nil, &DecodeError{Message: "read captured frame", Err: err}
	}
	if len(still) == 0 {
		return nil, &DecodeError{Message: "captured frame is empty"}
	}
	return still, nil
}

// Stub is used where no ffmpeg binary is available. It always reports a
// decode failure, which callers treat as "no thumbnail".
type Stub struct {
	logger zerolog.Logger
}

func NewStub(logger zerolog.Logger) *Stub {
	return &Stub{logger: logger}
}

func (s *Stub) Extract(ctx context.Context, video []byte) ([]byte, error) {
	s.logger.Debug().Int("bytes", len(video)).Msg("thumbnail stub: extraction requested")
	return nil, &DecodeError{Message: "no extractor configured"}
}

var (
	_ Extractor = (*FFmpeg)(nil)
	_ Extractor = (*Stub)(nil)
)
