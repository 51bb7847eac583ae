package api

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/weave/pkg/canvas"
	"github.com/papercomputeco/weave/pkg/graph"
	"github.com/papercomputeco/weave/pkg/kvstore"
	"github.com/papercomputeco/weave/pkg/llm"
	"github.com/papercomputeco/weave/pkg/parser"
	"github.com/papercomputeco/weave/pkg/session"
)

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// errorStatus maps domain errors onto HTTP status codes.
func errorStatus(err error) int {
	var notFound kvstore.NotFoundError
	switch {
	case errors.Is(err, graph.ErrNotFound), errors.As(err, &notFound):
		return fiber.StatusNotFound
	case errors.Is(err, graph.ErrDuplicateEdge),
		errors.Is(err, graph.ErrCycle),
		errors.Is(err, canvas.ErrSendInFlight),
		errors.Is(err, session.ErrNoActiveSession):
		return fiber.StatusConflict
	case errors.Is(err, graph.ErrKindMismatch),
		errors.Is(err, canvas.ErrNotChatNode),
		errors.Is(err, canvas.ErrNotMemoryNode):
		return fiber.StatusBadRequest
	case errors.Is(err, parser.ErrUnsupportedFormat):
		return fiber.StatusUnsupportedMediaType
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *Server) fail(c *fiber.Ctx, err error) error {
	return c.Status(errorStatus(err)).JSON(llm.ErrorResponse{Error: err.Error()})
}

// handleGetCanvas returns the full canvas snapshot.
func (s *Server) handleGetCanvas(c *fiber.Ctx) error {
	return c.JSON(s.engine.Graph().Snapshot())
}

type viewportRequest struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// handleSetViewport updates the saved viewport.
func (s *Server) handleSetViewport(c *fiber.Ctx) error {
	var req viewportRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid viewport body"})
	}
	s.engine.Graph().SetViewport(graph.Viewport{X: req.X, Y: req.Y, Zoom: req.Zoom})
	return c.SendStatus(fiber.StatusNoContent)
}

type createNodeRequest struct {
	Kind     string         `json:"kind"`
	Title    string         `json:"title"`
	Position graph.Position `json:"position"`
}

// handleCreateNode adds a chat or memory node to the canvas.
func (s *Server) handleCreateNode(c *fiber.Ctx) error {
	var req createNodeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid node body"})
	}

	node := graph.Node{
		Kind:     graph.NodeKind(req.Kind),
		Position: req.Position,
	}
	switch node.Kind {
	case graph.NodeKindChat:
		node.Chat = &graph.ChatPayload{Title: req.Title}
	case graph.NodeKindMemory:
		node.Memory = &graph.MemoryPayload{Title: req.Title}
	default:
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "kind must be \"chat\" or \"memory\""})
	}

	created, err := s.engine.Graph().AddNode(node)
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// handleGetNode returns one node.
func (s *Server) handleGetNode(c *fiber.Ctx) error {
	node, ok := s.engine.Graph().Node(c.Params("id"))
	if !ok {
		return s.fail(c, graph.ErrNotFound)
	}
	return c.JSON(node)
}

type updateNodeRequest struct {
	Position     *graph.Position `json:"position,omitempty"`
	Size         *graph.Size     `json:"size,omitempty"`
	Title        *string         `json:"title,omitempty"`
	SystemPrompt *string         `json:"system_prompt,omitempty"`
	ProviderID   *string         `json:"provider_id,omitempty"`
	ModelID      *string         `json:"model_id,omitempty"`
}

// handleUpdateNode applies a partial update to a node. Every present
// field is applied; the first failure aborts the rest.
func (s *Server) handleUpdateNode(c *fiber.Ctx) error {
	var req updateNodeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid node body"})
	}

	g := s.engine.Graph()
	id := c.Params("id")

	if req.Position != nil {
		if err := g.MoveNode(id, *req.Position); err != nil {
			return s.fail(c, err)
		}
	}
	if req.Size != nil {
		if err := g.ResizeNode(id, *req.Size); err != nil {
			return s.fail(c, err)
		}
	}
	if req.Title != nil {
		if err := g.SetTitle(id, *req.Title); err != nil {
			return s.fail(c, err)
		}
	}
	if req.SystemPrompt != nil {
		if err := g.SetSystemPrompt(id, *req.SystemPrompt); err != nil {
			return s.fail(c, err)
		}
	}
	if req.ProviderID != nil || req.ModelID != nil {
		provider, model := "", ""
		if req.ProviderID != nil {
			provider = *req.ProviderID
		}
		if req.ModelID != nil {
			model = *req.ModelID
		}
		if err := g.SetChatModel(id, provider, model); err != nil {
			return s.fail(c, err)
		}
	}

	node, ok := g.Node(id)
	if !ok {
		return s.fail(c, graph.ErrNotFound)
	}
	return c.JSON(node)
}

// handleDeleteNode removes a node, its edges, any in-flight completion,
// and its memory index.
func (s *Server) handleDeleteNode(c *fiber.Ctx) error {
	if err := s.engine.DeleteNode(c.Params("id")); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type createEdgeRequest struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// handleCreateEdge wires two nodes. The edge kind is inferred from the
// endpoint node kinds, never supplied by the client.
func (s *Server) handleCreateEdge(c *fiber.Ctx) error {
	var req createEdgeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid edge body"})
	}

	edge, err := s.engine.Graph().AddEdge(req.Source, req.Target)
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(edge)
}

// handleDeleteEdge removes an edge.
func (s *Server) handleDeleteEdge(c *fiber.Ctx) error {
	if err := s.engine.Graph().DeleteEdge(c.Params("id")); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleCancelSend cancels a node's in-flight completion.
func (s *Server) handleCancelSend(c *fiber.Ctx) error {
	if !s.engine.CancelSend(c.Params("id")) {
		return s.fail(c, graph.ErrNotFound)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleUploadDocument ingests an uploaded file into a memory node.
func (s *Server) handleUploadDocument(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "multipart field \"file\" required"})
	}

	f, err := header.Open()
	if err != nil {
		return s.fail(c, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return s.fail(c, err)
	}

	result, err := s.engine.Ingest(c.Context(), c.Params("id"), header.Filename, data)
	if err != nil {
		return s.fail(c, err)
	}

	s.logger.Info("document uploaded",
		zap.String("node_id", result.NodeID),
		zap.String("source", result.Source),
		zap.Int("chunks", result.Embedded),
	)
	return c.Status(fiber.StatusCreated).JSON(result)
}

// handleListSessions returns stored session metadata.
func (s *Server) handleListSessions(c *fiber.Ctx) error {
	records, err := s.engine.Sessions().List(c.Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"count":    len(records),
		"sessions": records,
		"active":   s.engine.Sessions().SessionID(),
	})
}

// handleNewSession flushes the current session and starts a fresh canvas.
func (s *Server) handleNewSession(c *fiber.Ctx) error {
	if err := s.engine.Sessions().New(c.Context()); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleFlushSession forces any pending debounced save to disk.
func (s *Server) handleFlushSession(c *fiber.Ctx) error {
	if err := s.engine.Sessions().Flush(c.Context()); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type renameSessionRequest struct {
	Name string `json:"name"`
}

// handleRenameSession renames the active session.
func (s *Server) handleRenameSession(c *fiber.Ctx) error {
	var req renameSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid session body"})
	}
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "name required"})
	}
	if err := s.engine.Sessions().Rename(c.Context(), req.Name); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleLoadSession restores a stored session onto the canvas.
func (s *Server) handleLoadSession(c *fiber.Ctx) error {
	doc, err := s.engine.Sessions().Load(c.Context(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(doc)
}

// handleExportSession returns a session's self-contained document.
func (s *Server) handleExportSession(c *fiber.Ctx) error {
	data, err := s.engine.Sessions().Export(c.Context(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(data)
}

// handleImportSession stores an exported document under a fresh id.
func (s *Server) handleImportSession(c *fiber.Ctx) error {
	doc, err := s.engine.Sessions().Import(c.Context(), c.Body())
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(doc)
}

// handleDeleteSession removes a stored session.
func (s *Server) handleDeleteSession(c *fiber.Ctx) error {
	if err := s.engine.Sessions().Delete(c.Context(), c.Params("id")); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
