// Package storage keeps the local scan history in a sqlite database under
// the config directory. History is advisory: callers log and move on when
// a write fails, a scan never fails because bookkeeping did.
package storage

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// HistoryFileName is the database file inside the config directory.
const HistoryFileName = "history.db"

// Run outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeAborted   = "aborted"
)

// RunRecord is one scan invocation. Regulations and Formats are stored
// comma-joined; sqlite has no array column and nothing queries them.
type RunRecord struct {
	ID            string    `gorm:"primaryKey" json:"id"`
	Path          string    `json:"path"`
	Regulations   string    `json:"regulations"`
	Mode          string    `json:"mode"`
	Template      string    `json:"template"`
	Formats       string    `json:"formats"`
	FilesAnalyzed int       `json:"files_analyzed"`
	TotalFindings int       `json:"total_findings"`
	Critical      int       `json:"critical"`
	High          int       `json:"high"`
	Medium        int       `json:"medium"`
	Low           int       `json:"low"`
	EstimatedCost float64   `json:"estimated_cost"`
	ActualCost    float64   `json:"actual_cost"`
	TotalTokens   int       `json:"total_tokens"`
	Outcome       string    `json:"outcome"`
	Detail        string    `json:"detail"`
	OutputDir     string    `json:"output_dir"`
	CreatedAt     time.Time `json:"created_at"`
	DurationMS    int64     `json:"duration_ms"`
}

// RegulationList splits the stored comma-joined regulations.
func (r RunRecord) RegulationList() []string {
	if r.Regulations == "" {
		return nil
	}
	return strings.Split(r.Regulations, ",")
}

// JoinList renders a string slice for a RunRecord column.
func JoinList(items []string) string {
	return strings.Join(items, ",")
}

// Store wraps the history database.
type Store struct {
	db *gorm.DB
}

// Open opens or creates the history database and migrates the schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&RunRecord{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordRun inserts one run. A missing ID or timestamp is filled in.
func (s *Store) RecordRun(rec *RunRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	return s.db.Create(rec).Error
}

// ListRuns returns the most recent runs, newest first. limit <= 0 means
// everything.
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	q := s.db.Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var runs []RunRecord
	err := q.Find(&runs).Error
	return runs, err
}

// LastRun returns the newest run, or nil when history is empty.
func (s *Store) LastRun() (*RunRecord, error) {
	var rec RunRecord
	err := s.db.Order("created_at desc").First(&rec).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
