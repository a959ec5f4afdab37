package inventory

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists the authoritative inventory. Absence or failure of the
// store never blocks in-memory operation.
type Store interface {
	LoadAll() ([]Entry, error)
	UpsertMany([]Entry) error
	Delete(id string) error
}

type entryRecord struct {
	ID            string `gorm:"primaryKey"`
	Name          string `gorm:"not null"`
	Glyph         string `gorm:"not null"`
	Source        string
	Confidence    *float64
	OriginalLabel string `gorm:"column:detected_as"`
	Confirmed     bool   `gorm:"not null;default:false"`
	CreatedAt     time.Time
}

func (entryRecord) TableName() string { return "pantry" }

// GormStore is the sqlite-backed Store.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&entryRecord{}); err != nil {
		return nil, fmt.Errorf("migrate pantry table: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) LoadAll() ([]Entry, error) {
	var records []entryRecord
	if err := s.db.Order("created_at asc").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load pantry: %w", err)
	}
	entries := make([]Entry, len(records))
	for i, r := range records {
		entries[i] = Entry{
			ID:            r.ID,
			Name:          r.Name,
			Glyph:         r.Glyph,
			Confirmed:     r.Confirmed,
			Source:        Source(r.Source),
			Confidence:    r.Confidence,
			OriginalLabel: r.OriginalLabel,
		}
	}
	return entries, nil
}

func (s *GormStore) UpsertMany(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	records := make([]entryRecord, len(entries))
	for i, e := range entries {
		records[i] = entryRecord{
			ID:            e.ID,
			Name:          e.Name,
			Glyph:         e.Glyph,
			Source:        string(e.Source),
			Confidence:    e.Confidence,
			OriginalLabel: e.OriginalLabel,
			Confirmed:     e.Confirmed,
		}
	}
	// keep created_at from the first insert
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "glyph", "source", "confidence", "detected_as", "confirmed",
		}),
	}).Create(&records).Error
	if err != nil {
		return fmt.Errorf("upsert pantry: %w", err)
	}
	return nil
}

func (s *GormStore) Delete(id string) error {
	if err := s.db.Delete(&entryRecord{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete pantry entry: %w", err)
	}
	return nil
}
