package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-core/internal/audit"
	"github.com/spec-kit/support-core/internal/config"
	"github.com/spec-kit/support-core/internal/domain"
	"github.com/spec-kit/support-core/internal/events"
	"github.com/spec-kit/support-core/internal/repository"
	"github.com/spec-kit/support-core/internal/triage"
	apperrors "github.com/spec-kit/support-core/pkg/util"
)

type recordingTriage struct {
	mu   sync.Mutex
	jobs []triage.Job
	err  error
	done chan struct{}
}

func newRecordingTriage(err error) *recordingTriage {
	return &recordingTriage{err: err, done: make(chan struct{}, 8)}
}

func (t *recordingTriage) Enqueue(_ context.Context, job triage.Job) error {
	t.mu.Lock()
	t.jobs = append(t.jobs, job)
	t.mu.Unlock()
	t.done <- struct{}{}
	return t.err
}

func (t *recordingTriage) wait(tb testing.TB) triage.Job {
	tb.Helper()
	select {
	case <-t.done:
	case <-time.After(2 * time.Second):
		tb.Fatal("triage enqueue never happened")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.jobs[len(t.jobs)-1]
}

type fixture struct {
	svc       *TicketService
	tickets   *repository.MemoryTicketRepository
	auditRepo *repository.MemoryAuditEventRepository
	triage    *recordingTriage
	published *[]events.Event
	now       time.Time
}

func newFixture(t *testing.T, policy config.SLAPolicy, triageErr error) *fixture {
	t.Helper()

	ticketRepo := repository.NewMemoryTicketRepository()
	messageRepo := repository.NewMemoryMessageRepository()
	auditRepo := repository.NewMemoryAuditEventRepository()
	triageStub := newRecordingTriage(triageErr)

	var mu sync.Mutex
	published := []events.Event{}
	dispatcher := events.NewInMemoryDispatcher()
	dispatcher.SubscribeAll(func(_ context.Context, event events.Event) error {
		mu.Lock()
		published = append(published, event)
		mu.Unlock()
		return nil
	})

	f := &fixture{
		tickets:   ticketRepo,
		auditRepo: auditRepo,
		triage:    triageStub,
		published: &published,
		now:       time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC),
	}
	f.svc = NewTicketService(TicketDependencies{
		TicketRepo:  ticketRepo,
		MessageRepo: messageRepo,
		Auditor:     audit.NewChainWriter(auditRepo),
		Dispatcher:  dispatcher,
		Triage:      triageStub,
		Policy:      policy,
	}).WithClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) create(t *testing.T, severity domain.TicketSeverity) *domain.Ticket {
	t.Helper()
	ticket, err := f.svc.Create(context.Background(), TicketCreateInput{
		Subject:     "payment failed",
		Description: "card declined on checkout",
		Severity:    severity,
		RequesterID: "cust-1",
	}, "op-1")
	require.NoError(t, err)
	return ticket
}

func TestCreateFixesDeadlineFromSeverity(t *testing.T) {
	f := newFixture(t, config.SLAPolicy{}, nil)

	ticket := f.create(t, domain.SeverityCritical)

	require.NotNil(t, ticket.SlaDueAt)
	assert.Equal(t, f.now.Add(120*time.Minute), *ticket.SlaDueAt)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.NotEmpty(t, ticket.ExternalKey)

	trail, err := f.svc.AuditTrail(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, domain.AuditActionCreated, trail[0].Action)

	job := f.triage.wait(t)
	assert.Equal(t, ticket.ID, job.TicketID)
}

func TestCreateDefaultsSeverityAndCategory(t *testing.T) {
	f := newFixture(t, config.SLAPolicy{}, nil)

	ticket := f.create(t, "")

	assert.Equal(t, domain.SeverityNormal, ticket.Severity)
	assert.Equal(t, domain.CategoryOther, ticket.Category)
	require.NotNil(t, ticket.SlaDueAt)
	assert.Equal(t, f.now.Add(1440*time.Minute), *ticket.SlaDueAt)
}

func TestCreateSucceedsWhenTriageFails(t *testing.T) {
	f := newFixture(t, config.SLAPolicy{}, assert.AnError)

	ticket := f.create(t, domain.SeverityHigh)

	f.triage.wait(t)
	stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)
}

func TestIllegalTransitionLeavesEverythingUntouched(t *testing.T) {
	f := newFixture(t, config.SLAPolicy{}, nil)
	ticket := f.create(t, domain.SeverityNormal)

	_, err := f.svc.UpdateStatus(context.Background(), ticket.ID, domain.TicketStatusResolved, "op-1", "")
	require.Error(t, err)
	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, "INVALID_TRANSITION", domainErr.Code)

	stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)

	trail, err := f.svc.AuditTrail(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Len(t, trail, 1, "failed transition must not append to the chain")
}

func TestLifecycleTrailOrder(t *testing.T) {
	f := newFixture(t, config.SLAPolicy{}, nil)
	ticket := f.create(t, domain.SeverityNormal)
	ctx := context.Background()

	_, err := f.svc.Assign(ctx, ticket.ID, "op-2", "op-1")
	require.NoError(t, err)

	_, err = f.svc.AddMessage(ctx, ticket.ID, MessageInput{
		SenderID:   "op-2",
		SenderRole: domain.SenderRoleOperator,
		Body:       "looking into it",
	})
	require.NoError(t, err)

	_, err = f.svc.Close(ctx, ticket.ID, "op-2", "refund issued")
	require.NoError(t, err)

	trail, err := f.svc.AuditTrail(ctx, ticket.ID)
	require.NoError(t, err)
	actions := make([]domain.AuditAction, 0, len(trail))
	for _, event := range trail {
		actions = append(actions, event.Action)
	}
	assert.Equal(t, []domain.AuditAction{
		domain.AuditActionCreated,
		domain.AuditActionAssigned,
		domain.AuditActionMessageAdded,
		domain.AuditActionClosed,
	}, actions)
	require.NoError(t, f.svc.VerifyAudit(ctx, ticket.ID))
}

func TestCloseSetsClosedAtAndReopenClearsIt(t *testing.T) {
	f := newFixture(t, config.SLAPolicy{}, nil)
	ticket := f.create(t, domain.SeverityNormal)
	ctx := context.Background()

	closed, err := f.svc.Close(ctx, ticket.ID, "op-1", "done")
	require.NoError(t, err)
	require.NotNil(t, closed.ClosedAt)
	assert.Equal(t, f.now, *closed.ClosedAt)

	reopened, err := f.svc.Reopen(ctx, ticket.ID, "op-1", "customer replied")
	require.NoError(t, err)
	assert.Nil(t, reopened.ClosedAt)
	assert.Equal(t, domain.TicketStatusOpen, reopened.Status)

	trail, err := f.svc.AuditTrail(ctx, ticket.ID)
	require.NoError(t, err)
	reopenCount := 0
	for _, event := range trail {
		if event.Action == domain.AuditActionReopened {
			reopenCount++
		}
	}
	assert.Equal(t, 1, reopenCount)
}

func TestReopenKeepsDeadlineByDefault(t *testing.T) {
	f := newFixture(t, config.SLAPolicy{}, nil)
	ticket := f.create(t, domain.SeverityNormal)
	originalDeadline := *ticket.SlaDueAt
	ctx := context.Background()

	_, err := f.svc.Close(ctx, ticket.ID, "op-1", "")
	require.NoError(t, err)

	reopened, err := f.svc.Reopen(ctx, ticket.ID, "op-1", "")
	require.NoError(t, err)
	require.NotNil(t, reopened.SlaDueAt)
	assert.Equal(t, originalDeadline, *reopened.SlaDueAt)
}

func TestReopenRecomputesDeadlineWhenPolicyEnabled(t *testing.T) {
	f := newFixture(t, config.SLAPolicy{RecomputeSLAOnReopen: true}, nil)
	ticket := f.create(t, domain.SeverityNormal)
	ctx := context.Background()

	_, err := f.svc.Close(ctx, ticket.ID, "op-1", "")
	require.NoError(t, err)

	f.now = f.now.Add(3 * time.Hour)
	reopened, err := f.svc.Reopen(ctx, ticket.ID, "op-1", "")
	require.NoError(t, err)
	require.NotNil(t, reopened.SlaDueAt)
	assert.Equal(t, f.now.Add(1440*time.Minute), *reopened.SlaDueAt)
}

func TestGenericStatusPathCarriesReopenSemantics(t *testing.T) {
	f := newFixture(t, config.SLAPolicy{RecomputeSLAOnReopen: true}, nil)
	ticket := f.create(t, domain.SeverityNormal)
	ctx := context.Background()

	_, err := f.svc.Close(ctx, ticket.ID, "op-1", "")
	require.NoError(t, err)

	// CLOSED -> OPEN through the generic status update, not Reopen.
	f.now = f.now.Add(2 * time.Hour)
	reopened, err := f.svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusOpen, "op-1", "customer replied")
	require.NoError(t, err)
	require.NotNil(t, reopened.SlaDueAt)
	assert.Equal(t, f.now.Add(1440*time.Minute), *reopened.SlaDueAt)

	trail, err := f.svc.AuditTrail(ctx, ticket.ID)
	require.NoError(t, err)
	last := trail[len(trail)-1]
	assert.Equal(t, domain.AuditActionReopened, last.Action)
}

func TestSeverityChangeKeepsDeadlineByDefault(t *testing.T) {
	f := newFixture(t, config.SLAPolicy{}, nil)
	ticket := f.create(t, domain.SeverityNormal)
	originalDeadline := *ticket.SlaDueAt

	updated, err := f.svc.UpdateSeverity(context.Background(), ticket.ID, domain.SeverityCritical, "op-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SeverityCritical, updated.Severity)
	require.NotNil(t, updated.SlaDueAt)
	assert.Equal(t, originalDeadline, *updated.SlaDueAt)
}

func TestSeverityChangeRecomputesFromCreationWhenReactive(t *testing.T) {
	f := newFixture(t, config.SLAPolicy{SeverityReactive: true}, nil)
	ticket := f.create(t, domain.SeverityNormal)

	f.now = f.now.Add(30 * time.Minute)
	updated, err := f.svc.UpdateSeverity(context.Background(), ticket.ID, domain.SeverityCritical, "op-1")
	require.NoError(t, err)
	require.NotNil(t, updated.SlaDueAt)
	// Anchored to creation time, not the moment of the change.
	assert.Equal(t, ticket.CreatedAt.Add(120*time.Minute), *updated.SlaDueAt)
}

func TestEscalateRequiresReason(t *testing.T) {
	f := newFixture(t, config.SLAPolicy{}, nil)
	ticket := f.create(t, domain.SeverityNormal)

	_, err := f.svc.Escalate(context.Background(), ticket.ID, "op-1", "  ")
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)

	escalated, err := f.svc.Escalate(context.Background(), ticket.ID, "op-1", "sla at risk")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusEscalated, escalated.Status)

	trail, err := f.svc.AuditTrail(context.Background(), ticket.ID)
	require.NoError(t, err)
	last := trail[len(trail)-1]
	assert.Equal(t, domain.AuditActionEscalated, last.Action)
	assert.Equal(t, "sla at risk", last.DiffAfter["reason"])
}

func TestAssignIsIdempotent(t *testing.T) {
	f := newFixture(t, config.SLAPolicy{}, nil)
	ticket := f.create(t, domain.SeverityNormal)
	ctx := context.Background()

	first, err := f.svc.Assign(ctx, ticket.ID, "op-2", "op-1")
	require.NoError(t, err)
	second, err := f.svc.Assign(ctx, ticket.ID, "op-2", "op-1")
	require.NoError(t, err)
	assert.Equal(t, *first.AssignedToID, *second.AssignedToID)

	trail, err := f.svc.AuditTrail(ctx, ticket.ID)
	require.NoError(t, err)
	assigned := 0
	for _, event := range trail {
		if event.Action == domain.AuditActionAssigned {
			assigned++
		}
	}
	assert.Equal(t, 2, assigned, "re-assignment is recorded again")
}

func TestDeleteAppendsTerminalChainEvent(t *testing.T) {
	f := newFixture(t, config.SLAPolicy{}, nil)
	ticket := f.create(t, domain.SeverityNormal)
	ctx := context.Background()

	require.NoError(t, f.svc.Delete(ctx, ticket.ID, "op-1"))

	_, err := f.tickets.GetByID(ctx, ticket.ID)
	require.Error(t, err)

	// The chain outlives the record.
	trail, err := f.svc.AuditTrail(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, domain.AuditActionDeleted, trail[1].Action)
	require.NoError(t, f.svc.VerifyAudit(ctx, ticket.ID))
}

func TestOperationsOnMissingTicket(t *testing.T) {
	f := newFixture(t, config.SLAPolicy{}, nil)
	ctx := context.Background()

	_, err := f.svc.Assign(ctx, "nope", "op-2", "op-1")
	assert.True(t, apperrors.IsNotFound(err))

	_, err = f.svc.Close(ctx, "nope", "op-1", "")
	assert.True(t, apperrors.IsNotFound(err))

	err = f.svc.Delete(ctx, "nope", "op-1")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestEventsPublishedInCommitOrder(t *testing.T) {
	f := newFixture(t, config.SLAPolicy{}, nil)
	ticket := f.create(t, domain.SeverityNormal)
	ctx := context.Background()

	_, err := f.svc.Assign(ctx, ticket.ID, "op-2", "op-1")
	require.NoError(t, err)
	_, err = f.svc.Close(ctx, ticket.ID, "op-2", "")
	require.NoError(t, err)

	published := *f.published
	require.Len(t, published, 3)
	assert.Equal(t, events.EventTicketCreated, published[0].Type)
	assert.Equal(t, events.EventTicketAssigned, published[1].Type)
	assert.Equal(t, events.EventTicketClosed, published[2].Type)
	for _, event := range published {
		assert.Equal(t, ticket.ID, event.TicketID)
	}
}

func TestGetReportsLiveSLAStatus(t *testing.T) {
	f := newFixture(t, config.SLAPolicy{}, nil)
	ticket := f.create(t, domain.SeverityCritical)

	f.now = f.now.Add(110 * time.Minute)
	_, _, status, err := f.svc.Get(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "red", string(status.Band))
	assert.Equal(t, 10, status.MinutesRemaining)
}

func TestTamperedTrailFailsVerification(t *testing.T) {
	f := newFixture(t, config.SLAPolicy{}, nil)
	ticket := f.create(t, domain.SeverityNormal)
	ctx := context.Background()

	_, err := f.svc.Close(ctx, ticket.ID, "op-1", "")
	require.NoError(t, err)
	require.NoError(t, f.svc.VerifyAudit(ctx, ticket.ID))

	f.auditRepo.Tamper(domain.TicketScope(ticket.ID), 1, func(event *domain.AuditEvent) {
		event.ActorID = "someone-else"
	})
	assert.Error(t, f.svc.VerifyAudit(ctx, ticket.ID))
}
