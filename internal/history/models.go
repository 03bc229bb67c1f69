package history

import "time"

// TimestampLayout is the fixed-width UTC format stored in history rows.
// Unlike time.RFC3339Nano it never trims trailing zeros, so lexicographic
// order on the column equals chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Now returns the current time formatted for the timestamp column.
func Now() string {
	return time.Now().UTC().Format(TimestampLayout)
}

// Record is one finalized download outcome. Records are append-only: a new
// attempt for the same URL inserts a new row, never rewrites an old one.
type Record struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	URL          string `gorm:"index" json:"url"`
	Title        string `json:"title"`
	Format       string `json:"format"`
	Quality      string `json:"quality"`
	Timestamp    string `gorm:"index" json:"timestamp"`
	OutputPath   string `json:"output_path"`
	Success      bool   `gorm:"index" json:"success"`
	ErrorMessage string `json:"error_message"`
	RetryCount   int    `json:"retry_count"`
	Metadata     string `json:"metadata"` // opaque JSON bag
}

// TableName specifies the table name for Record
func (Record) TableName() string {
	return "history"
}

// Setting stores key-value application settings
type Setting struct {
	Key   string `gorm:"primaryKey"`
	Value string
}

// TableName specifies the table name for Setting
func (Setting) TableName() string {
	return "settings"
}

// Stats summarizes the history table.
type Stats struct {
	Total       int64   `json:"total"`
	Completed   int64   `json:"completed"`
	Failed      int64   `json:"failed"`
	SuccessRate float64 `json:"success_rate"` // completed/total, 0 when empty
}
