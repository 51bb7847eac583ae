package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/weave/pkg/canvas"
)

// Server is the API server for the weave canvas.
type Server struct {
	config Config
	engine *canvas.Engine
	logger *zap.Logger
	app    *fiber.App
}

// NewServer creates a new API server. The engine is injected so the CLI
// and the server can share one canvas.
func NewServer(config Config, engine *canvas.Engine, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		engine: engine,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)

	app.Get("/canvas", s.handleGetCanvas)
	app.Put("/canvas/viewport", s.handleSetViewport)

	app.Post("/nodes", s.handleCreateNode)
	app.Get("/nodes/:id", s.handleGetNode)
	app.Patch("/nodes/:id", s.handleUpdateNode)
	app.Delete("/nodes/:id", s.handleDeleteNode)
	app.Post("/nodes/:id/send", s.handleSend)
	app.Post("/nodes/:id/cancel", s.handleCancelSend)
	app.Post("/nodes/:id/documents", s.handleUploadDocument)

	app.Post("/edges", s.handleCreateEdge)
	app.Delete("/edges/:id", s.handleDeleteEdge)

	app.Get("/sessions", s.handleListSessions)
	app.Post("/sessions/new", s.handleNewSession)
	app.Post("/sessions/flush", s.handleFlushSession)
	app.Patch("/sessions/active", s.handleRenameSession)
	app.Post("/sessions/import", s.handleImportSession)
	app.Post("/sessions/:id/load", s.handleLoadSession)
	app.Get("/sessions/:id/export", s.handleExportSession)
	app.Delete("/sessions/:id", s.handleDeleteSession)

	return s
}

// App exposes the fiber app for in-process testing.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
