package history

import (
	"encoding/json"
	"fmt"
	"os"
)

// legacyRecord mirrors the JSON history shape written by earlier releases.
// Metadata was a nested object there; the database stores it serialized.
type legacyRecord struct {
	URL          string          `json:"url"`
	Title        string          `json:"title"`
	Format       string          `json:"format"`
	Quality      string          `json:"quality"`
	Timestamp    string          `json:"timestamp"`
	OutputPath   string          `json:"output_path"`
	Success      bool            `json:"success"`
	ErrorMessage string          `json:"error_message"`
	RetryCount   int             `json:"retry_count"`
	Metadata     json.RawMessage `json:"metadata"`
}

func (lr legacyRecord) toRecord() Record {
	rec := Record{
		URL:          lr.URL,
		Title:        lr.Title,
		Format:       lr.Format,
		Quality:      lr.Quality,
		Timestamp:    lr.Timestamp,
		OutputPath:   lr.OutputPath,
		Success:      lr.Success,
		ErrorMessage: lr.ErrorMessage,
		RetryCount:   lr.RetryCount,
	}
	if rec.Title == "" {
		rec.Title = "Unknown"
	}
	if rec.Format == "" {
		rec.Format = "mp4"
	}
	if rec.Quality == "" {
		rec.Quality = "best"
	}
	if rec.Timestamp == "" {
		rec.Timestamp = Now()
	}
	if len(lr.Metadata) > 0 {
		rec.Metadata = string(lr.Metadata)
	} else {
		rec.Metadata = "{}"
	}
	return rec
}

// decodeLegacy accepts both shapes the old app wrote: a raw array of records
// or an object with a "records" key.
func decodeLegacy(raw []byte) ([]legacyRecord, error) {
	var arr []legacyRecord
	if err := json.Unmarshal(raw, &arr); err == nil {
		return arr, nil
	}
	var wrapper struct {
		Records []legacyRecord `json:"records"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Records, nil
}

// MigrateFromJSON ingests a legacy JSON history file, preserving original
// timestamps, then renames the file to <path>.backup so the import runs only
// once. A missing file is not an error. Records that fail to insert are
// skipped; the rest still migrate. Returns the number migrated.
func (s *Store) MigrateFromJSON(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read legacy history: %w", err)
	}

	records, err := decodeLegacy(raw)
	if err != nil {
		return 0, fmt.Errorf("failed to parse legacy history: %w", err)
	}

	migrated := 0
	for _, lr := range records {
		rec := lr.toRecord()
		if err := s.DB.Create(&rec).Error; err != nil {
			s.log.Warn("Failed to migrate record", "url", lr.URL, "error", err)
			continue
		}
		migrated++
	}

	if err := os.Rename(path, path+".backup"); err != nil {
		return migrated, fmt.Errorf("failed to back up legacy history: %w", err)
	}
	return migrated, nil
}
