package domain

import "time"

// Transcript is the body returned by POST /transcribe.
type Transcript struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
	Language string    `json:"language"`
	Model    string    `json:"model"`
}

type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type TranscriptionStatus string

const (
	TranscriptionStatusOK     TranscriptionStatus = "ok"
	TranscriptionStatusFailed TranscriptionStatus = "failed"
)

type TranscriptionLog struct {
	ID           string              `db:"id" json:"id"`
	Filename     string              `db:"filename" json:"filename"`
	Blake3Hash   string              `db:"blake3_hash" json:"blake3_hash"`
	SizeBytes    int64               `db:"size_bytes" json:"size_bytes"`
	Model        string              `db:"model" json:"model"`
	Language     string              `db:"language" json:"language"`
	Transcript   string              `db:"transcript" json:"transcript"`
	SegmentCount int                 `db:"segment_count" json:"segment_count"`
	Status       TranscriptionStatus `db:"status" json:"status"`
	Error        *string             `db:"error" json:"error,omitempty"`
	DurationMs   int64               `db:"duration_ms" json:"duration_ms"`
	CreatedAt    time.Time           `db:"created_at" json:"created_at"`
}
