package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/voyago/audittrail/internal/aterrors"
	"gorm.io/gorm"
)

// RecordSink is the storage collaborator change records are written to. A
// non-nil tx means the write must join that transaction.
type RecordSink interface {
	Create(ctx context.Context, record *ChangeRecord, tx *gorm.DB) error
}

// Recorder builds and persists change records, honoring the atomicity
// contract: inside a transaction a failed audit write aborts the unit of
// work, outside one it is logged and swallowed since the business mutation
// has already committed and cannot be retroactively undone.
type Recorder struct {
	sink RecordSink
	log  logrus.FieldLogger
}

func NewRecorder(sink RecordSink, log logrus.FieldLogger) *Recorder {
	return &Recorder{sink: sink, log: log}
}

// Persist writes the record through the sink. A record without a resolvable
// actor is skipped without error; that is policy, not a failure.
func (r *Recorder) Persist(ctx context.Context, record *ChangeRecord, tx *gorm.DB) error {
	if record == nil {
		return nil
	}
	if record.ChangedBy == "" {
		r.log.Debugf("skipping change record for %s/%s: %v", record.EntityType, record.EntityID, aterrors.ErrNoActor)
		return nil
	}
	if !record.Operation.Valid() {
		return aterrors.Fatal(fmt.Errorf("%w: %q", aterrors.ErrInvalidOperation, record.Operation))
	}

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	record.ChangedAt = time.Now().UTC()

	if err := r.sink.Create(ctx, record, tx); err != nil {
		if tx != nil {
			return aterrors.Fatal(fmt.Errorf("persisting change record for %s/%s: %w", record.EntityType, record.EntityID, err))
		}
		r.log.Errorf("persisting change record for %s/%s outside transaction: %v", record.EntityType, record.EntityID, err)
		return nil
	}
	return nil
}
