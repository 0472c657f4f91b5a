package handlers

import (
	"bufio"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/spec-kit/support-core/internal/auth"
	"github.com/spec-kit/support-core/internal/push"
	apperrors "github.com/spec-kit/support-core/pkg/util"
)

// StreamHandler serves the live ticket event feed over SSE.
type StreamHandler struct {
	hub    *push.Hub
	logger *zap.Logger
}

// NewStreamHandler constructs handler.
func NewStreamHandler(hub *push.Hub, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{hub: hub, logger: logger}
}

// Stream GET /tickets/stream. One session per operator; a reconnect replaces
// the previous session. Frames arrive through the hub, the writer goroutine
// below owns the wire.
func (h *StreamHandler) Stream(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("operator required")
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	conn := push.NewStreamConn()
	operatorID := principal.Operator.ID
	h.hub.Register(operatorID, conn)
	h.logger.Info("stream session opened", zap.String("operator_id", operatorID))

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer func() {
			h.hub.Deregister(operatorID, conn)
			h.logger.Info("stream session closed", zap.String("operator_id", operatorID))
		}()
		for {
			select {
			case frame, active := <-conn.Frames():
				if !active {
					return
				}
				if _, err := w.Write(frame); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			case <-conn.Done():
				return
			}
		}
	}))
	return nil
}
