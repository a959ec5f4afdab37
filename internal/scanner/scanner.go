// Package scanner orchestrates one scan session: per-photo preprocessing,
// inference and decoding, joined into a single merged detection result.
package scanner

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/fridgely/pantry-scan-service/internal/detect"
	"github.com/fridgely/pantry-scan-service/internal/engine"
	"github.com/fridgely/pantry-scan-service/internal/preprocess"
)

// Inference runs one forward pass. Satisfied by *engine.Engine.
type Inference interface {
	Run(ctx context.Context, tensor *preprocess.ImageTensor) (engine.RawOutput, error)
}

// Scanner converts photo batches into merged detection results.
type Scanner struct {
	inference Inference
	inputSize int
	logger    *slog.Logger
}

func New(inference Inference, inputSize int, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{inference: inference, inputSize: inputSize, logger: logger}
}

// Scan processes every photo of one session concurrently and merges the
// per-photo detections. A photo that fails to decode or infer contributes
// nothing and the scan continues; a model-load failure empties the whole
// scan so the caller can fall back to manual entry.
func (s *Scanner) Scan(ctx context.Context, photos [][]byte) detect.Result {
	if len(photos) == 0 {
		return nil
	}

	perPhoto := make([]detect.Result, len(photos))
	g, ctx := errgroup.WithContext(ctx)

	for i, photo := range photos {
		i, photo := i, photo
		g.Go(func() error {
			tensor, err := preprocess.Decode(photo, s.inputSize)
			if err != nil {
				s.logger.Warn("photo skipped", "index", i, "error", err)
				return nil
			}

			out, err := s.inference.Run(ctx, tensor)
			if err != nil {
				if errors.Is(err, engine.ErrModelLoad) {
					return err
				}
				s.logger.Warn("inference failed for photo", "index", i, "error", err)
				return nil
			}

			perPhoto[i] = detect.Decode(out)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.Error("scan aborted", "error", err)
		return nil
	}
	return detect.Merge(perPhoto)
}
