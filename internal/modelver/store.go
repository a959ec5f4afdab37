package modelver

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// stateRecord is a single-row table holding the version pointer.
type stateRecord struct {
	ID        uint `gorm:"primaryKey"`
	Version   int  `gorm:"not null"`
	LocalPath string
	UpdatedAt time.Time
}

func (stateRecord) TableName() string { return "model_state" }

const stateRowID = 1

// GormStateStore is the sqlite-backed StateStore.
type GormStateStore struct {
	db *gorm.DB
}

func NewGormStateStore(db *gorm.DB) (*GormStateStore, error) {
	if err := db.AutoMigrate(&stateRecord{}); err != nil {
		return nil, fmt.Errorf("migrate model_state table: %w", err)
	}
	return &GormStateStore{db: db}, nil
}

func (s *GormStateStore) Load() (State, bool, error) {
	var rec stateRecord
	err := s.db.First(&rec, stateRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("load model state: %w", err)
	}
	return State{Version: rec.Version, LocalPath: rec.LocalPath}, true, nil
}

func (s *GormStateStore) Save(state State) error {
	rec := stateRecord{ID: stateRowID, Version: state.Version, LocalPath: state.LocalPath}
	if err := s.db.Save(&rec).Error; err != nil {
		return fmt.Errorf("save model state: %w", err)
	}
	return nil
}
