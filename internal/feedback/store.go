package feedback

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

type feedbackRecord struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	DetectedLabel  string `gorm:"column:detected_as;not null"`
	CorrectedLabel string `gorm:"column:corrected_to;not null"`
	Confidence     float64
	Correct        bool      `gorm:"not null"`
	Synced         bool      `gorm:"not null;default:false;index"`
	Timestamp      time.Time `gorm:"not null"`
}

func (feedbackRecord) TableName() string { return "feedback" }

// GormStore is the sqlite-backed feedback store.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&feedbackRecord{}); err != nil {
		return nil, fmt.Errorf("migrate feedback table: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Append(r Record) error {
	rec := feedbackRecord{
		DetectedLabel:  r.DetectedLabel,
		CorrectedLabel: r.CorrectedLabel,
		Confidence:     r.Confidence,
		Correct:        r.Correct,
		Synced:         false,
		Timestamp:      r.Timestamp,
	}
	if err := s.db.Create(&rec).Error; err != nil {
		return fmt.Errorf("append feedback: %w", err)
	}
	return nil
}

func (s *GormStore) ListUnsynced() ([]Record, error) {
	var recs []feedbackRecord
	if err := s.db.Where("synced = ?", false).Order("id asc").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list unsynced feedback: %w", err)
	}
	out := make([]Record, len(recs))
	for i, rec := range recs {
		out[i] = Record{
			ID:             rec.ID,
			DetectedLabel:  rec.DetectedLabel,
			CorrectedLabel: rec.CorrectedLabel,
			Confidence:     rec.Confidence,
			Correct:        rec.Correct,
			Synced:         rec.Synced,
			Timestamp:      rec.Timestamp,
		}
	}
	return out, nil
}

func (s *GormStore) MarkSynced(ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.db.Model(&feedbackRecord{}).Where("id IN ?", ids).Update("synced", true).Error
	if err != nil {
		return fmt.Errorf("mark feedback synced: %w", err)
	}
	return nil
}

func (s *GormStore) MarkAllSynced() error {
	err := s.db.Model(&feedbackRecord{}).Where("synced = ?", false).Update("synced", true).Error
	if err != nil {
		return fmt.Errorf("mark all feedback synced: %w", err)
	}
	return nil
}
