// Package history persists download outcomes and application settings in an
// embedded SQLite database.
package history

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Store handles all database operations using SQLite
type Store struct {
	DB  *gorm.DB
	log *slog.Logger
}

// DefaultPath returns the standard database location under the user's home.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home dir: %w", err)
	}
	return filepath.Join(home, ".ytdle", "ytdle.db"), nil
}

// NewStore opens (creating if needed) the database at path. An empty path
// selects DefaultPath. A legacy JSON history file next to the database is
// migrated in and renamed away on first open.
func NewStore(log *slog.Logger, path string) (*Store, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create db dir: %w", err)
	}

	// Open SQLite with Glebarez (Pure Go, no CGO)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")

	if err := db.AutoMigrate(&Record{}, &Setting{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	s := &Store{DB: db, log: log}
	log.Info("Database initialized", "path", path)

	legacy := filepath.Join(filepath.Dir(path), "history.json")
	if n, err := s.MigrateFromJSON(legacy); err != nil {
		log.Warn("History migration failed", "error", err)
	} else if n > 0 {
		log.Info("Migrated records from JSON", "count", n)
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Checkpoint forces a WAL checkpoint to ensure durability
func (s *Store) Checkpoint() error {
	return s.DB.Exec("PRAGMA wal_checkpoint(TRUNCATE);").Error
}

// ============= Records =============

// Add inserts a record, filling schema defaults for empty fields.
func (s *Store) Add(rec *Record) error {
	if rec.Timestamp == "" {
		rec.Timestamp = Now()
	}
	if rec.Title == "" {
		rec.Title = "Unknown"
	}
	if rec.Metadata == "" {
		rec.Metadata = "{}"
	}
	return s.DB.Create(rec).Error
}

// AddCompleted records a successful download.
func (s *Store) AddCompleted(url, title, format, quality, outputPath string) error {
	return s.Add(&Record{
		URL:        url,
		Title:      title,
		Format:     format,
		Quality:    quality,
		OutputPath: outputPath,
		Success:    true,
	})
}

// AddFailed records a failed download with its error message and how many
// retries were consumed.
func (s *Store) AddFailed(url, title, format, quality, errMsg string, retryCount int) error {
	return s.Add(&Record{
		URL:          url,
		Title:        title,
		Format:       format,
		Quality:      quality,
		ErrorMessage: errMsg,
		RetryCount:   retryCount,
	})
}

// GetAll returns records newest first. limit <= 0 means no limit.
func (s *Store) GetAll(limit int) ([]Record, error) {
	var recs []Record
	q := s.DB.Order("timestamp desc, id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&recs).Error
	return recs, err
}

// GetCompleted returns successful records, newest first.
func (s *Store) GetCompleted(limit int) ([]Record, error) {
	return s.getBySuccess(true, limit)
}

// GetFailed returns failed records, newest first.
func (s *Store) GetFailed(limit int) ([]Record, error) {
	return s.getBySuccess(false, limit)
}

func (s *Store) getBySuccess(success bool, limit int) ([]Record, error) {
	var recs []Record
	q := s.DB.Where("success = ?", success).Order("timestamp desc, id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&recs).Error
	return recs, err
}

// Search matches query case-insensitively against url or title.
func (s *Store) Search(query string, limit int) ([]Record, error) {
	like := "%" + strings.ToLower(query) + "%"
	var recs []Record
	q := s.DB.Where("lower(url) LIKE ? OR lower(title) LIKE ?", like, like).
		Order("timestamp desc, id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&recs).Error
	return recs, err
}

// UpdateByURL applies a partial update to the most recent record for url.
// Returns gorm.ErrRecordNotFound when the url has no history.
func (s *Store) UpdateByURL(url string, fields map[string]interface{}) error {
	var rec Record
	err := s.DB.Where("url = ?", url).Order("timestamp desc, id desc").First(&rec).Error
	if err != nil {
		return err
	}
	return s.DB.Model(&rec).Updates(fields).Error
}

// ClearAll deletes every record and returns how many were removed.
func (s *Store) ClearAll() (int64, error) {
	res := s.DB.Where("1 = 1").Delete(&Record{})
	return res.RowsAffected, res.Error
}

// ClearCompleted deletes all successful records.
func (s *Store) ClearCompleted() (int64, error) {
	res := s.DB.Where("success = ?", true).Delete(&Record{})
	return res.RowsAffected, res.Error
}

// ClearFailed deletes all failed records.
func (s *Store) ClearFailed() (int64, error) {
	res := s.DB.Where("success = ?", false).Delete(&Record{})
	return res.RowsAffected, res.Error
}

// Stats returns totals and the success fraction.
func (s *Store) Stats() (Stats, error) {
	var st Stats
	if err := s.DB.Model(&Record{}).Count(&st.Total).Error; err != nil {
		return st, err
	}
	if err := s.DB.Model(&Record{}).Where("success = ?", true).Count(&st.Completed).Error; err != nil {
		return st, err
	}
	st.Failed = st.Total - st.Completed
	if st.Total > 0 {
		st.SuccessRate = float64(st.Completed) / float64(st.Total)
	}
	return st, nil
}

// ============= Export =============

// ExportFailed writes every failed record to a text file: header comments
// with the error, retry count and date, then the bare URL. Returns the
// number of records written.
func (s *Store) ExportFailed(path string) (int, error) {
	failed, err := s.GetFailed(0)
	if err != nil {
		return 0, err
	}
	var b strings.Builder
	for _, rec := range failed {
		fmt.Fprintf(&b, "# Failed: %s\n", rec.ErrorMessage)
		fmt.Fprintf(&b, "# Retry count: %d\n", rec.RetryCount)
		fmt.Fprintf(&b, "# Date: %s\n", rec.Timestamp)
		fmt.Fprintf(&b, "%s\n\n", rec.URL)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return 0, err
	}
	return len(failed), nil
}

// FailedURLs returns the bare URLs of every failed record, newest first.
func (s *Store) FailedURLs() ([]string, error) {
	failed, err := s.GetFailed(0)
	if err != nil {
		return nil, err
	}
	urls := make([]string, len(failed))
	for i, rec := range failed {
		urls[i] = rec.URL
	}
	return urls, nil
}

// ============= Settings =============

// GetSetting retrieves a setting value; missing keys return "".
func (s *Store) GetSetting(key string) (string, error) {
	var setting Setting
	err := s.DB.First(&setting, "key = ?", key).Error
	if err == gorm.ErrRecordNotFound {
		return "", nil
	}
	return setting.Value, err
}

// SetSetting stores a setting value (upsert).
func (s *Store) SetSetting(key, value string) error {
	return s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&Setting{Key: key, Value: value}).Error
}
