package api

import (
	"context"
	"encoding/json"
	"io"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/weave/pkg/canvas"
	"github.com/papercomputeco/weave/pkg/graph"
	"github.com/papercomputeco/weave/pkg/llm"
	"github.com/papercomputeco/weave/pkg/sse"
)

type sendRequest struct {
	Content string `json:"content"`
}

// handleSend runs one user turn and streams the completion back as SSE.
// Each "chunk" event carries the cumulative assistant content so far; the
// final event is "done". Errors after streaming has started are delivered
// as an "error" event, since the 200 header is already on the wire.
//
// io.Pipe + SetBodyStream is used instead of SetBodyStreamWriter:
// SetBodyStreamWriter's internal pipe buffers chunks in memory, while
// pw.Write blocks until fasthttp's chunked writer flushes to the socket,
// giving per-chunk delivery and real backpressure.
func (s *Server) handleSend(c *fiber.Ctx) error {
	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid send body"})
	}
	if req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "content required"})
	}

	nodeID := c.Params("id")
	node, ok := s.engine.Graph().Node(nodeID)
	if !ok {
		return s.fail(c, graph.ErrNotFound)
	}
	if node.Kind != graph.NodeKindChat {
		return s.fail(c, canvas.ErrNotChatNode)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set("Connection", "keep-alive")

	pr, pw := io.Pipe()
	go s.streamSend(nodeID, req.Content, pw)

	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}

func (s *Server) streamSend(nodeID, content string, pw *io.PipeWriter) {
	defer pw.Close()

	err := s.engine.Send(context.Background(), nodeID, content, func(chunk llm.StreamChunk) error {
		payload, err := json.Marshal(chunk)
		if err != nil {
			return err
		}
		return sse.WriteEvent(pw, sse.Event{Type: "chunk", Data: string(payload)})
	})
	if err != nil {
		s.logger.Warn("send failed",
			zap.String("node_id", nodeID),
			zap.Error(err),
		)
		payload, merr := json.Marshal(llm.ErrorResponse{Error: err.Error()})
		if merr != nil {
			return
		}
		_ = sse.WriteEvent(pw, sse.Event{Type: "error", Data: string(payload)})
		return
	}

	_ = sse.WriteEvent(pw, sse.Event{Type: "done", Data: "{}"})
}
