// Package push owns the registry of live operator connections and fans
// ticket events out to them. Delivery is fire-and-forget: no acknowledgement,
// no retry, no replay for connections that register later.
package push

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Conn is one live push channel. Send must not block indefinitely; a failed
// send marks the connection dead.
type Conn interface {
	Send(frame []byte) error
	Close() error
}

type session struct {
	userID      string
	conn        Conn
	connectedAt time.Time
}

// Hub is the process-local connection registry. All registry access is
// mutex-guarded; broadcasts walk sessions in registration order.
type Hub struct {
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session
	order    []string
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:   logger,
		sessions: make(map[string]*session),
	}
}

// Register attaches a connection for the user. At most one live session per
// user: an existing connection is closed and replaced, last writer wins.
func (h *Hub) Register(userID string, conn Conn) {
	h.mu.Lock()
	evicted := h.sessions[userID]
	if evicted != nil {
		h.removeLocked(userID)
	}
	h.sessions[userID] = &session{userID: userID, conn: conn, connectedAt: time.Now()}
	h.order = append(h.order, userID)
	total := len(h.sessions)
	h.mu.Unlock()

	if evicted != nil {
		_ = evicted.conn.Close()
		h.logger.Info("push session evicted by reconnect", zap.String("user_id", userID))
	}
	h.logger.Info("push session registered", zap.String("user_id", userID), zap.Int("sessions", total))
}

// Deregister removes the connection if it is still the user's current one.
// A stale handle (already evicted by a newer connection) is left alone.
func (h *Hub) Deregister(userID string, conn Conn) {
	h.mu.Lock()
	current, ok := h.sessions[userID]
	if !ok || current.conn != conn {
		h.mu.Unlock()
		return
	}
	h.removeLocked(userID)
	total := len(h.sessions)
	h.mu.Unlock()

	_ = conn.Close()
	h.logger.Info("push session deregistered", zap.String("user_id", userID), zap.Int("sessions", total))
}

// Broadcast writes one frame to every connection registered at call time, in
// registration order. A connection that fails the write is deregistered
// synchronously; the failure never reaches the mutation caller.
func (h *Hub) Broadcast(ticketID, kind string, payload any) {
	h.fanOut(Envelope{
		Type:      kind,
		TicketID:  ticketID,
		Data:      payload,
		Timestamp: time.Now().UTC(),
	})
}

// Notify pushes a single frame to one user, independent of broadcast.
func (h *Hub) Notify(userID, ticketID, kind string, payload any) {
	frame, err := EncodeFrame(Envelope{
		Type:      kind,
		TicketID:  ticketID,
		Data:      payload,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error("encode notify frame", zap.Error(err))
		return
	}

	h.mu.Lock()
	target, ok := h.sessions[userID]
	h.mu.Unlock()
	if !ok {
		return
	}
	if err := target.conn.Send(frame); err != nil {
		h.Deregister(userID, target.conn)
	}
}

// RunHeartbeat writes a liveness frame to every connection at the given
// interval until ctx is cancelled. Dead connections are detected by the
// failed write and dropped immediately.
func (h *Hub) RunHeartbeat(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.fanOut(Envelope{Type: heartbeatType, Timestamp: time.Now().UTC()})
		}
	}
}

// SessionCount reports the number of live sessions.
func (h *Hub) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

func (h *Hub) fanOut(envelope Envelope) {
	frame, err := EncodeFrame(envelope)
	if err != nil {
		h.logger.Error("encode push frame", zap.Error(err))
		return
	}

	h.mu.Lock()
	targets := make([]*session, 0, len(h.sessions))
	for _, userID := range h.order {
		if current, ok := h.sessions[userID]; ok {
			targets = append(targets, current)
		}
	}
	h.mu.Unlock()

	for _, target := range targets {
		if err := target.conn.Send(frame); err != nil {
			h.Deregister(target.userID, target.conn)
		}
	}
}

func (h *Hub) removeLocked(userID string) {
	delete(h.sessions, userID)
	for i, id := range h.order {
		if id == userID {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}
