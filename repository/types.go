package repository

import "github.com/hausctl/homecontroller/telemetry"

// StoredReading is a telemetry reading persisted to SQLite, with a count of
// failed upload attempts.
type StoredReading struct {
	telemetry.Reading
	UploadAttemptCount uint
}

func NewStoredReading(reading telemetry.Reading) StoredReading {
	return StoredReading{
		Reading:            reading,
		UploadAttemptCount: 0,
	}
}
