package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testLead struct {
	ID         string
	Status     string
	AssignedTo string
	Email      string
	IsDeleted  bool
	Internal   string
}

func (l *testLead) TrackingID() string { return l.ID }
func (l *testLead) EntityType() string { return "lead" }
func (l *testLead) State() map[string]interface{} {
	return map[string]interface{}{
		"status":     l.Status,
		"assignedTo": l.AssignedTo,
		"contact":    map[string]interface{}{"email": l.Email},
		"isDeleted":  l.IsDeleted,
		"internal":   l.Internal,
	}
}

func newTestOrchestrator(t *testing.T, sink RecordSink) *Orchestrator {
	t.Helper()
	registry := NewRegistry()
	registry.EnableTracking("lead", TrackedFieldConfig{
		Fields: []string{"status", "assignedTo", "contact.email"},
	})

	snapshots := NewSnapshotCache(time.Minute, 100, nil)
	t.Cleanup(snapshots.Stop)

	logger := testLogger()
	return NewOrchestrator(registry, snapshots, NewDiffEngine(logger), NewRecorder(sink, logger), logger)
}

func actorCtx(sessionID string) context.Context {
	return WithMutationContext(context.Background(), MutationContext{
		Actor:     "u1",
		IP:        "203.0.113.7",
		UserAgent: "crm-web",
		SessionID: sessionID,
	})
}

func TestOrchestratorUpdatePipeline(t *testing.T) {
	require := require.New(t)
	sink := &fakeSink{}
	orchestrator := newTestOrchestrator(t, sink)

	lead := &testLead{ID: "lead-1", Status: "new", AssignedTo: "agent-1", Email: "a@example.com"}
	ctx := actorCtx("s1")

	orchestrator.BeforeMutation(ctx, "lead", lead.ID, lead.State())

	lead.Status = "contacted"
	require.NoError(orchestrator.AfterMutation(ctx, lead, OperationUpdate, nil))

	require.Len(sink.records, 1)
	record := sink.records[0]
	require.Equal(OperationUpdate, record.Operation)
	require.Equal("lead", record.EntityType)
	require.Equal("u1", record.ChangedBy)
	require.Equal("s1", record.SessionID)
	require.Equal("203.0.113.7", record.Metadata.IP)
	require.Equal([]FieldChange{{Field: "status", OldValue: "new", NewValue: "contacted"}}, record.Changes)

	// The snapshot was consumed and cleared on the way out.
	_, found := orchestrator.snapshots.Get(lead.ID, "s1")
	require.False(found)
}

func TestOrchestratorUnchangedUpdateSkipped(t *testing.T) {
	require := require.New(t)
	sink := &fakeSink{}
	orchestrator := newTestOrchestrator(t, sink)

	lead := &testLead{ID: "lead-1", Status: "new", Internal: "before"}
	ctx := actorCtx("s1")

	orchestrator.BeforeMutation(ctx, "lead", lead.ID, lead.State())
	lead.Internal = "after"
	require.NoError(orchestrator.AfterMutation(ctx, lead, OperationUpdate, nil))

	require.Empty(sink.records)
}

func TestOrchestratorUntrackedTypeIgnored(t *testing.T) {
	require := require.New(t)
	sink := &fakeSink{}
	orchestrator := newTestOrchestrator(t, sink)

	task := &testLead{ID: "task-1", Status: "open"}
	ctx := actorCtx("s1")

	orchestrator.BeforeMutation(ctx, "task", task.ID, task.State())
	require.Zero(orchestrator.snapshots.Len())

	registry := NewRegistry() // empty: nothing tracked
	untracked := NewOrchestrator(registry, orchestrator.snapshots, orchestrator.differ, orchestrator.recorder, orchestrator.log)
	require.NoError(untracked.AfterMutation(ctx, task, OperationUpdate, nil))
	require.Empty(sink.records)
}

func TestOrchestratorSessionIsolation(t *testing.T) {
	require := require.New(t)
	sink := &fakeSink{}
	orchestrator := newTestOrchestrator(t, sink)

	ctxA := actorCtx("s-a")
	ctxB := actorCtx("s-b")

	// Two in-flight updates of the same lead under different sessions, each
	// capturing its own pre-image.
	orchestrator.BeforeMutation(ctxA, "lead", "lead-1", (&testLead{ID: "lead-1", Status: "new"}).State())
	orchestrator.BeforeMutation(ctxB, "lead", "lead-1", (&testLead{ID: "lead-1", Status: "contacted"}).State())

	require.NoError(orchestrator.AfterMutation(ctxA, &testLead{ID: "lead-1", Status: "qualified"}, OperationUpdate, nil))
	require.NoError(orchestrator.AfterMutation(ctxB, &testLead{ID: "lead-1", Status: "booked"}, OperationUpdate, nil))

	require.Len(sink.records, 2)
	require.Equal("new", sink.records[0].Changes[0].OldValue)
	require.Equal("qualified", sink.records[0].Changes[0].NewValue)
	require.Equal("contacted", sink.records[1].Changes[0].OldValue)
	require.Equal("booked", sink.records[1].Changes[0].NewValue)
}

func TestOrchestratorDeleteClassification(t *testing.T) {
	t.Run("fresh delete", func(t *testing.T) {
		require := require.New(t)
		sink := &fakeSink{}
		orchestrator := newTestOrchestrator(t, sink)

		lead := &testLead{ID: "lead-1", Status: "new"}
		ctx := actorCtx("s1")

		orchestrator.BeforeMutation(ctx, "lead", lead.ID, lead.State())
		require.NoError(orchestrator.AfterMutation(ctx, lead, OperationDelete, nil))

		require.Len(sink.records, 1)
		require.Equal(OperationDelete, sink.records[0].Operation)
		require.Empty(sink.records[0].Changes)
	})

	t.Run("delete of an already soft-deleted row", func(t *testing.T) {
		require := require.New(t)
		sink := &fakeSink{}
		orchestrator := newTestOrchestrator(t, sink)

		lead := &testLead{ID: "lead-1", Status: "new", IsDeleted: true}
		ctx := actorCtx("s1")

		orchestrator.BeforeMutation(ctx, "lead", lead.ID, lead.State())
		require.NoError(orchestrator.AfterMutation(ctx, lead, OperationDelete, nil))

		require.Len(sink.records, 1)
		require.Equal(OperationSoftDelete, sink.records[0].Operation)
	})
}

func TestOrchestratorMissingPreImage(t *testing.T) {
	require := require.New(t)
	sink := &fakeSink{}
	orchestrator := newTestOrchestrator(t, sink)

	// The TTL sweep beat the request: no snapshot exists. Old state is
	// treated as none, so every tracked field reports as changed.
	lead := &testLead{ID: "lead-1", Status: "contacted", AssignedTo: "agent-1", Email: "a@example.com"}
	require.NoError(orchestrator.AfterMutation(actorCtx("s1"), lead, OperationUpdate, nil))

	require.Len(sink.records, 1)
	require.Len(sink.records[0].Changes, 3)
	require.Nil(sink.records[0].Changes[0].OldValue)
}

func TestOrchestratorLogChange(t *testing.T) {
	require := require.New(t)
	sink := &fakeSink{}
	orchestrator := newTestOrchestrator(t, sink)

	prior := &testLead{ID: "lead-1", Status: "new"}
	current := &testLead{ID: "lead-1", Status: "booked"}

	require.NoError(orchestrator.LogChange(actorCtx(""), current, OperationUpdate, prior.State(), nil))

	require.Len(sink.records, 1)
	require.Equal(OperationUpdate, sink.records[0].Operation)
	require.Equal("new", sink.records[0].Changes[0].OldValue)
	require.Empty(sink.records[0].SessionID)
}

func TestOrchestratorCreate(t *testing.T) {
	require := require.New(t)
	sink := &fakeSink{}
	orchestrator := newTestOrchestrator(t, sink)

	lead := &testLead{ID: "lead-1", Status: "new"}
	require.NoError(orchestrator.AfterMutation(actorCtx("s1"), lead, OperationCreate, nil))

	require.Len(sink.records, 1)
	require.Equal(OperationCreate, sink.records[0].Operation)
	require.Empty(sink.records[0].Changes)
}
