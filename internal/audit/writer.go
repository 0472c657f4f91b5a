// Package audit appends and verifies hash-linked audit chains. Each logical
// scope (one per ticket) forms an independent chain: every event's SelfHash
// covers the previous event's SelfHash plus a canonical encoding of the
// event payload, so replaying a chain re-derives every hash.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/spec-kit/support-core/internal/domain"
	"github.com/spec-kit/support-core/internal/repository"
	apperrors "github.com/spec-kit/support-core/pkg/util"
)

// Entry describes one mutation to record.
type Entry struct {
	Scope      string
	Action     domain.AuditAction
	ActorID    string
	DiffBefore map[string]any
	DiffAfter  map[string]any
	Severity   domain.TicketSeverity
}

// ChainWriter serializes appends per scope. Two concurrent appends on the
// same scope must not both read the same chain head and fork it, so each
// scope has a dedicated mutex held across the read-hash-persist sequence.
// This is a single-process serialization point; a multi-instance deployment
// needs compare-and-swap on prev_hash at the storage layer instead.
type ChainWriter struct {
	repo  repository.AuditEventRepository
	clock func() time.Time

	mu     sync.Mutex
	scopes map[string]*sync.Mutex
}

// NewChainWriter builds a writer over the given event store.
func NewChainWriter(repo repository.AuditEventRepository) *ChainWriter {
	return &ChainWriter{
		repo:   repo,
		clock:  time.Now,
		scopes: make(map[string]*sync.Mutex),
	}
}

// WithClock overrides the time source. Test hook.
func (w *ChainWriter) WithClock(clock func() time.Time) *ChainWriter {
	w.clock = clock
	return w
}

// Append links a new event to the tail of the scope's chain and persists it.
func (w *ChainWriter) Append(ctx context.Context, entry Entry) (*domain.AuditEvent, error) {
	lock := w.scopeLock(entry.Scope)
	lock.Lock()
	defer lock.Unlock()

	last, err := w.repo.LastByScope(ctx, entry.Scope)
	if err != nil {
		return nil, err
	}
	prevHash := ChainSeed(entry.Scope)
	if last != nil {
		prevHash = last.SelfHash
	}

	event := &domain.AuditEvent{
		Scope:      entry.Scope,
		Action:     entry.Action,
		ActorID:    entry.ActorID,
		DiffBefore: entry.DiffBefore,
		DiffAfter:  entry.DiffAfter,
		Severity:   entry.Severity,
		OccurredAt: w.clock().UTC().Truncate(time.Microsecond),
		PrevHash:   prevHash,
	}
	selfHash, err := ComputeHash(event)
	if err != nil {
		return nil, err
	}
	event.SelfHash = selfHash

	if err := w.repo.Append(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// List returns the scope's events in replay order.
func (w *ChainWriter) List(ctx context.Context, scope string) ([]domain.AuditEvent, error) {
	return w.repo.ListByScope(ctx, scope)
}

// Verify replays the scope's chain in occurredAt order, recomputing every
// hash. It returns an INTEGRITY_ERROR describing the first event whose
// stored hashes do not reproduce; tampering is reported, never repaired.
func (w *ChainWriter) Verify(ctx context.Context, scope string) error {
	events, err := w.repo.ListByScope(ctx, scope)
	if err != nil {
		return err
	}
	return VerifyChain(scope, events)
}

// VerifyChain checks an already-loaded chain. Exposed so callers holding the
// events (for display) can verify without a second read.
func VerifyChain(scope string, events []domain.AuditEvent) error {
	prevHash := ChainSeed(scope)
	for i := range events {
		event := &events[i]
		if event.PrevHash != prevHash {
			return apperrors.NewIntegrityError(
				fmt.Sprintf("audit chain broken at event %d: prev hash mismatch", i), nil)
		}
		selfHash, err := ComputeHash(event)
		if err != nil {
			return err
		}
		if event.SelfHash != selfHash {
			return apperrors.NewIntegrityError(
				fmt.Sprintf("audit chain broken at event %d: self hash mismatch", i), nil)
		}
		prevHash = event.SelfHash
	}
	return nil
}

// ChainSeed is the prev hash of a scope's first event.
func ChainSeed(scope string) string {
	sum := sha256.Sum256([]byte("genesis:" + scope))
	return hex.EncodeToString(sum[:])
}

// chainPayload fixes the canonical field order for hashing. Diffs are
// map[string]any, which encoding/json marshals with sorted keys, so the
// encoding is deterministic end to end.
type chainPayload struct {
	Action     domain.AuditAction `json:"action"`
	ActorID    string             `json:"actor_id"`
	DiffBefore map[string]any     `json:"diff_before"`
	DiffAfter  map[string]any     `json:"diff_after"`
	OccurredAt string             `json:"occurred_at"`
}

// ComputeHash derives an event's SelfHash from its PrevHash and canonical
// payload. Timestamps are canonicalized at microsecond precision, the
// resolution timestamptz persists, so a hash computed before the write still
// reproduces after the round trip through the store.
func ComputeHash(event *domain.AuditEvent) (string, error) {
	payload, err := json.Marshal(chainPayload{
		Action:     event.Action,
		ActorID:    event.ActorID,
		DiffBefore: event.DiffBefore,
		DiffAfter:  event.DiffAfter,
		OccurredAt: event.OccurredAt.UTC().Truncate(time.Microsecond).Format(time.RFC3339Nano),
	})
	if err != nil {
		return "", err
	}

	hasher := sha256.New()
	hasher.Write([]byte(event.PrevHash))
	hasher.Write(payload)
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func (w *ChainWriter) scopeLock(scope string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()
	lock, ok := w.scopes[scope]
	if !ok {
		lock = &sync.Mutex{}
		w.scopes[scope] = lock
	}
	return lock
}
