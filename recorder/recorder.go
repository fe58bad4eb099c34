// Package recorder streams telemetry readings into the time-series
// database, buffering them in SQLite so nothing is lost while the uplink is
// down.
package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hausctl/homecontroller/repository"
	"github.com/hausctl/homecontroller/telemetry"
)

// uploadChunkLimit is how many buffered readings one upload tick drains.
const uploadChunkLimit = 100

// Writer uploads a single reading to the time-series database.
type Writer interface {
	WriteReading(ctx context.Context, reading telemetry.Reading) error
}

// Recorder accepts readings on the Readings channel, persists them to the
// local buffer immediately and uploads them in the background.
type Recorder struct {
	Readings chan telemetry.Reading

	repository *repository.Repository
	writer     Writer
	logger     *slog.Logger
}

func New(bufferFilename string, writer Writer) (*Recorder, error) {
	repo, err := repository.New(bufferFilename)
	if err != nil {
		return nil, fmt.Errorf("create repository: %w", err)
	}

	return &Recorder{
		// a small buffer lets SQLite catch up when the disk is slow
		Readings:   make(chan telemetry.Reading, 25),
		repository: repo,
		writer:     writer,
		logger:     slog.Default().With("task", "recorder"),
	}, nil
}

// Run loops forever persisting incoming readings and attempting uploads
// every few seconds.
func (r *Recorder) Run(ctx context.Context) {
	uploadTicker := time.NewTicker(5 * time.Second)
	defer uploadTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case reading := <-r.Readings:
			if err := r.repository.AddReading(repository.NewStoredReading(reading)); err != nil {
				r.logger.Error("failed to persist reading", "error", err)
			}
		case <-uploadTicker.C:
			r.attemptUpload(ctx)
		}
	}
}

// attemptUpload drains buffered readings to the writer: fresh readings
// first, then readings that already failed at least one upload.
func (r *Recorder) attemptUpload(ctx context.Context) {
	for _, fresh := range []bool{true, false} {
		readings, err := r.repository.GetReadings(uploadChunkLimit, fresh)
		if err != nil {
			r.logger.Error("failed to query buffered readings", "error", err)
			continue
		}
		if len(readings) == 0 {
			continue
		}
		if err := r.upload(ctx, readings); err != nil {
			r.logger.Error("upload failed", "error", err)
		}
	}
}

// upload writes the given readings and deletes them from the buffer. On
// failure the attempt count is incremented and the readings stay buffered.
func (r *Recorder) upload(ctx context.Context, readings []repository.StoredReading) error {
	for _, stored := range readings {
		if err := r.writer.WriteReading(ctx, stored.Reading); err != nil {
			if errInc := r.repository.IncrementUploadAttemptCount(readings); errInc != nil {
				return fmt.Errorf("%w: increment upload attempt count: %w", err, errInc)
			}
			return err
		}
	}

	if err := r.repository.DeleteReadings(readings); err != nil {
		return fmt.Errorf("delete uploaded readings: %w", err)
	}

	r.logger.Debug("uploaded readings", "count", len(readings))
	return nil
}
