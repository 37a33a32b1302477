package history

import (
	"time"
)

// File index statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusSuccess    = "success"
	StatusFailed     = "failed"
)

// Conversion origins.
const (
	OriginAPI   = "api"
	OriginWS    = "ws"
	OriginWatch = "watch"
	OriginCLI   = "cli"
)

// FileIndex tracks one watched source file and the outcome of its most
// recent conversion, keyed by content hash so edited files re-trigger work
// and unchanged files are skipped.
type FileIndex struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	FilePath     string    `gorm:"uniqueIndex;size:1024" json:"file_path"`
	SourceMD5    string    `gorm:"size:64" json:"source_md5"`
	SourceFormat string    `gorm:"size:16" json:"source_format"`
	TargetFormat string    `gorm:"size:16" json:"target_format"`
	Status       string    `gorm:"size:16;index" json:"status"` // pending, processing, success, failed
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ConversionRecord is one conversion attempt, wherever it originated.
type ConversionRecord struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	RequestID    string     `gorm:"size:64;index" json:"request_id"`
	Origin       string     `gorm:"size:16" json:"origin"` // api, ws, watch, cli
	SourceFormat string     `gorm:"size:16" json:"source_format"`
	TargetFormat string     `gorm:"size:16" json:"target_format"`
	Width        uint32     `json:"width"`
	Height       uint32     `json:"height"`
	InputBytes   int64      `json:"input_bytes"`
	OutputBytes  int64      `json:"output_bytes"`
	DurationMs   int64      `json:"duration_ms"`
	Status       string     `gorm:"size:16;index" json:"status"` // success, failed
	Error        string     `json:"error,omitempty"`
	CapturedAt   *time.Time `json:"captured_at,omitempty"` // EXIF DateTimeOriginal of the source, when present
	CreatedAt    time.Time  `json:"created_at"`
}

// Stats aggregates conversion history for the stats endpoint.
type Stats struct {
	TotalConversions int64   `json:"total_conversions"`
	Succeeded        int64   `json:"succeeded"`
	Failed           int64   `json:"failed"`
	InputBytes       int64   `json:"input_bytes"`
	OutputBytes      int64   `json:"output_bytes"`
	AvgDurationMs    float64 `json:"avg_duration_ms"`
	IndexedFiles     int64   `json:"indexed_files"`
}
