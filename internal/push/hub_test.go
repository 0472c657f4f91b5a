package push_test

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-core/internal/push"
)

type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
	fail   bool
}

func (c *fakeConn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail || c.closed {
		return push.ErrConnClosed
	}
	c.frames = append(c.frames, frame)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) frameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func (c *fakeConn) lastFrame() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.frames) == 0 {
		return nil
	}
	return c.frames[len(c.frames)-1]
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func decodeFrame(t *testing.T, frame []byte) push.Envelope {
	t.Helper()
	text := string(frame)
	require.True(t, strings.HasPrefix(text, "data: "), "frame missing data prefix: %q", text)
	require.True(t, strings.HasSuffix(text, "\n\n"), "frame missing terminator: %q", text)

	var envelope push.Envelope
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSuffix(strings.TrimPrefix(text, "data: "), "\n\n")), &envelope))
	return envelope
}

func TestBroadcastReachesAllRegisteredConns(t *testing.T) {
	hub := push.NewHub(zap.NewNop())
	conns := []*fakeConn{{}, {}, {}}
	for i, conn := range conns {
		hub.Register(string(rune('a'+i)), conn)
	}

	hub.Broadcast("t-1", "updated", map[string]any{"status": "PENDING"})

	var payloads []string
	for _, conn := range conns {
		require.Equal(t, 1, conn.frameCount())
		payloads = append(payloads, string(conn.lastFrame()))
	}
	// Identical frame bytes for every recipient.
	assert.Equal(t, payloads[0], payloads[1])
	assert.Equal(t, payloads[1], payloads[2])

	envelope := decodeFrame(t, conns[0].lastFrame())
	assert.Equal(t, "updated", envelope.Type)
	assert.Equal(t, "t-1", envelope.TicketID)
	assert.False(t, envelope.Timestamp.IsZero())
}

func TestLateRegistrationSeesNoPastEvents(t *testing.T) {
	hub := push.NewHub(zap.NewNop())
	early := &fakeConn{}
	hub.Register("early", early)

	hub.Broadcast("t-1", "created", nil)

	late := &fakeConn{}
	hub.Register("late", late)
	assert.Equal(t, 0, late.frameCount())

	hub.Broadcast("t-1", "updated", nil)
	assert.Equal(t, 2, early.frameCount())
	assert.Equal(t, 1, late.frameCount())
}

func TestReconnectEvictsPriorConn(t *testing.T) {
	hub := push.NewHub(zap.NewNop())
	old := &fakeConn{}
	hub.Register("op-1", old)

	replacement := &fakeConn{}
	hub.Register("op-1", replacement)

	assert.True(t, old.isClosed())
	assert.Equal(t, 1, hub.SessionCount())

	hub.Broadcast("t-1", "updated", nil)
	assert.Equal(t, 0, old.frameCount())
	assert.Equal(t, 1, replacement.frameCount())
}

func TestFailedWriteDeregistersConn(t *testing.T) {
	hub := push.NewHub(zap.NewNop())
	healthy := &fakeConn{}
	broken := &fakeConn{fail: true}
	hub.Register("healthy", healthy)
	hub.Register("broken", broken)

	hub.Broadcast("t-1", "updated", nil)

	assert.Equal(t, 1, hub.SessionCount())
	assert.True(t, broken.isClosed())
	assert.Equal(t, 1, healthy.frameCount())
}

func TestNotifyTargetsSingleUser(t *testing.T) {
	hub := push.NewHub(zap.NewNop())
	assignee := &fakeConn{}
	bystander := &fakeConn{}
	hub.Register("assignee", assignee)
	hub.Register("bystander", bystander)

	hub.Notify("assignee", "t-1", "assigned", map[string]any{"assigned_to_id": "assignee"})

	require.Equal(t, 1, assignee.frameCount())
	assert.Equal(t, 0, bystander.frameCount())

	envelope := decodeFrame(t, assignee.lastFrame())
	assert.Equal(t, "assigned", envelope.Type)
	assert.Equal(t, "t-1", envelope.TicketID)
}

func TestHeartbeatFramesAndDeadConnCleanup(t *testing.T) {
	hub := push.NewHub(zap.NewNop())
	healthy := &fakeConn{}
	broken := &fakeConn{fail: true}
	hub.Register("healthy", healthy)
	hub.Register("broken", broken)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.RunHeartbeat(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return healthy.frameCount() >= 2 && hub.SessionCount() == 1
	}, time.Second, time.Millisecond)

	cancel()
	<-done

	envelope := decodeFrame(t, healthy.lastFrame())
	assert.Equal(t, "heartbeat", envelope.Type)
	assert.Empty(t, envelope.TicketID)
}

func TestStreamConnSendAfterClose(t *testing.T) {
	conn := push.NewStreamConn()
	require.NoError(t, conn.Send([]byte("data: {}\n\n")))

	require.NoError(t, conn.Close())
	assert.ErrorIs(t, conn.Send([]byte("data: {}\n\n")), push.ErrConnClosed)

	select {
	case <-conn.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestStreamConnBackpressure(t *testing.T) {
	conn := push.NewStreamConn()
	var err error
	for i := 0; i < 64 && err == nil; i++ {
		err = conn.Send([]byte("data: {}\n\n"))
	}
	assert.ErrorIs(t, err, push.ErrSlowConsumer)
}
