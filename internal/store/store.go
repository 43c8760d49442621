package store

import (
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type Store interface {
	ChangeRecord() ChangeRecord
	InitialMigration() error
	Close() error
}

type DataStore struct {
	changeRecord ChangeRecord

	db *gorm.DB
}

func NewStore(db *gorm.DB, log logrus.FieldLogger) Store {
	return &DataStore{
		changeRecord: NewChangeRecord(db, log),
		db:           db,
	}
}

func (s *DataStore) ChangeRecord() ChangeRecord {
	return s.changeRecord
}

func (s *DataStore) InitialMigration() error {
	return s.ChangeRecord().InitialMigration()
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ListParams narrows and pages a change-record listing. Zero values mean "no
// filter".
type ListParams struct {
	EntityType string
	EntityID   string
	Operation  string
	ChangedBy  string
	Limit      int
	Offset     int
}

func (p ListParams) filters() map[string]string {
	filters := map[string]string{}
	if p.EntityType != "" {
		filters["entity_type"] = p.EntityType
	}
	if p.EntityID != "" {
		filters["entity_id"] = p.EntityID
	}
	if p.Operation != "" {
		filters["operation"] = p.Operation
	}
	if p.ChangedBy != "" {
		filters["changed_by"] = p.ChangedBy
	}
	return filters
}
