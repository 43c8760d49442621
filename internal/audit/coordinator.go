package audit

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ActorContext identifies who performs a mutation and from where. It is
// resolved from the request by the caller and handed in explicitly.
type ActorContext struct {
	Actor     string
	IP        string
	UserAgent string
	Location  string
}

// WithActor attaches actor identity to the context for mutations executed
// outside an explicit transaction. No session id is minted, so snapshot
// lookups for these mutations use the session-less cache key.
func WithActor(ctx context.Context, actor ActorContext) context.Context {
	return WithMutationContext(ctx, MutationContext{
		Actor:     actor.Actor,
		IP:        actor.IP,
		UserAgent: actor.UserAgent,
		Location:  actor.Location,
	})
}

// Coordinator opens units of work and propagates actor and session identity
// to the tracking hooks of every entity mutated inside them.
type Coordinator struct {
	db  *gorm.DB
	log logrus.FieldLogger
}

func NewCoordinator(db *gorm.DB, log logrus.FieldLogger) *Coordinator {
	return &Coordinator{db: db, log: log}
}

// WithTransaction runs fn inside a database transaction with a fresh session
// id on the context. On any error, including a fatal audit persist error, the
// whole unit of work rolls back, audit writes included. The transaction
// resource is released on every exit path by gorm.
func (c *Coordinator) WithTransaction(ctx context.Context, actor ActorContext, fn func(ctx context.Context, tx *gorm.DB) error) error {
	mc := MutationContext{
		Actor:     actor.Actor,
		IP:        actor.IP,
		UserAgent: actor.UserAgent,
		Location:  actor.Location,
		SessionID: uuid.New().String(),
	}
	ctx = WithMutationContext(ctx, mc)

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, tx)
	})
	if err != nil {
		c.log.Debugf("transaction %s rolled back: %v", mc.SessionID, err)
	}
	return err
}
