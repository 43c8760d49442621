package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/voyago/audittrail/internal/aterrors"
	"github.com/voyago/audittrail/internal/audit"
	"github.com/voyago/audittrail/internal/store/model"
	"gorm.io/gorm"
)

type ChangeRecord interface {
	InitialMigration() error

	Create(ctx context.Context, record *audit.ChangeRecord, tx *gorm.DB) error
	Get(ctx context.Context, id string) (*audit.ChangeRecord, error)
	List(ctx context.Context, listParams ListParams) (*audit.ChangeRecordList, error)
	DeleteOlderThan(ctx context.Context, cutoffTime time.Time) (int64, error)
}

type ChangeRecordStore struct {
	db  *gorm.DB
	log logrus.FieldLogger
}

// Make sure we conform to ChangeRecord interface
var _ ChangeRecord = (*ChangeRecordStore)(nil)

func NewChangeRecord(db *gorm.DB, log logrus.FieldLogger) ChangeRecord {
	return &ChangeRecordStore{db: db, log: log}
}

func (s *ChangeRecordStore) InitialMigration() error {
	return s.db.AutoMigrate(&model.ChangeRecord{})
}

// Create persists the record. A non-nil tx makes the write part of that
// transaction; records rolled back with it are never observed independently
// of the business mutation they describe.
func (s *ChangeRecordStore) Create(ctx context.Context, record *audit.ChangeRecord, tx *gorm.DB) error {
	if record == nil {
		return aterrors.ErrRecordIsNil
	}

	m := model.NewChangeRecordFromApiResource(record)
	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	handle := s.db
	if tx != nil {
		handle = tx
	}
	return aterrors.ErrorFromGormError(handle.WithContext(ctx).Create(m).Error)
}

func (s *ChangeRecordStore) Get(ctx context.Context, id string) (*audit.ChangeRecord, error) {
	var record model.ChangeRecord
	result := s.db.WithContext(ctx).Where("id = ?", id).First(&record)
	if result.Error != nil {
		return nil, aterrors.ErrorFromGormError(result.Error)
	}
	return record.ToApiResource(), nil
}

func (s *ChangeRecordStore) List(ctx context.Context, listParams ListParams) (*audit.ChangeRecordList, error) {
	query := s.db.WithContext(ctx).Model(&model.ChangeRecord{})
	countQuery := s.db.WithContext(ctx).Model(&model.ChangeRecord{})
	for column, value := range listParams.filters() {
		query = query.Where(fmt.Sprintf("%s = ?", column), value)
		countQuery = countQuery.Where(fmt.Sprintf("%s = ?", column), value)
	}

	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, aterrors.ErrorFromGormError(err)
	}

	query = query.Order("changed_at desc")
	if listParams.Limit > 0 {
		query = query.Limit(listParams.Limit)
	}
	if listParams.Offset > 0 {
		query = query.Offset(listParams.Offset)
	}

	var records []model.ChangeRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, aterrors.ErrorFromGormError(err)
	}

	remaining := total - int64(listParams.Offset) - int64(len(records))
	if remaining < 0 {
		remaining = 0
	}
	list := model.ChangeRecordsToApiResource(records, remaining)
	return &list, nil
}

// DeleteOlderThan deletes change records older than the provided timestamp.
func (s *ChangeRecordStore) DeleteOlderThan(ctx context.Context, cutoffTime time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("changed_at < ?", cutoffTime).Delete(&model.ChangeRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete change records: %w", result.Error)
	}
	return result.RowsAffected, nil
}
