package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"eicr-vision/internal/domain/entity"
	"eicr-vision/internal/domain/port"
	apperrors "eicr-vision/internal/platform/errors"
)

// observationRecord is the table row behind entity.Observation.
type observationRecord struct {
	ID          uint   `gorm:"primaryKey"`
	ReportID    string `gorm:"index;not null"`
	EICRCode    string `gorm:"size:2;not null"`
	Description string `gorm:"not null"`
	Location    string
	Regulation  string
	CreatedAt   time.Time
}

func (observationRecord) TableName() string { return "eicr_observations" }

// ObservationStore persists EICR observations with gorm.
type ObservationStore struct {
	db *gorm.DB
}

// OpenObservationStore opens (or creates) the sqlite database at path and
// migrates the schema.
func OpenObservationStore(path string) (*ObservationStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, "storage.open", "open observation store", err)
	}
	return NewObservationStore(db)
}

// NewObservationStore wraps an existing connection.
func NewObservationStore(db *gorm.DB) (*ObservationStore, error) {
	if err := db.AutoMigrate(&observationRecord{}); err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, "storage.migrate", "migrate observation store", err)
	}
	return &ObservationStore{db: db}, nil
}

// Add inserts the observation and returns it with ID and timestamp set.
func (s *ObservationStore) Add(ctx context.Context, obs entity.Observation) (entity.Observation, error) {
	if !obs.EICRCode.IsValid() {
		return entity.Observation{}, apperrors.New(apperrors.KindInput, "storage.add", fmt.Sprintf("invalid EICR code %q", obs.EICRCode))
	}
	if obs.ReportID == "" {
		return entity.Observation{}, apperrors.New(apperrors.KindInput, "storage.add", "report id is required")
	}

	rec := observationRecord{
		ReportID:    obs.ReportID,
		EICRCode:    string(obs.EICRCode),
		Description: obs.Description,
		Location:    obs.Location,
		Regulation:  obs.Regulation,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return entity.Observation{}, apperrors.Wrap(apperrors.KindStorage, "storage.add", "save observation", err)
	}
	return rec.toEntity(), nil
}

// List returns the observations of a report, oldest first.
func (s *ObservationStore) List(ctx context.Context, reportID string) ([]entity.Observation, error) {
	var recs []observationRecord
	err := s.db.WithContext(ctx).
		Where("report_id = ?", reportID).
		Order("id asc").
		Find(&recs).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, "storage.list", "list observations", err)
	}

	out := make([]entity.Observation, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toEntity())
	}
	return out, nil
}

// Close releases the underlying connection.
func (s *ObservationStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r observationRecord) toEntity() entity.Observation {
	return entity.Observation{
		ID:          r.ID,
		ReportID:    r.ReportID,
		EICRCode:    entity.EICRCode(r.EICRCode),
		Description: r.Description,
		Location:    r.Location,
		Regulation:  r.Regulation,
		CreatedAt:   r.CreatedAt,
	}
}

var _ port.ObservationStore = (*ObservationStore)(nil)
