// Package servecmder provides the serve command for running the weave API server.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/papercomputeco/weave/api"
	"github.com/papercomputeco/weave/pkg/canvas"
	"github.com/papercomputeco/weave/pkg/config"
	"github.com/papercomputeco/weave/pkg/dotdir"
	"github.com/papercomputeco/weave/pkg/embeddings"
	embeddingutils "github.com/papercomputeco/weave/pkg/embeddings/utils"
	"github.com/papercomputeco/weave/pkg/eventstream"
	eventkafka "github.com/papercomputeco/weave/pkg/eventstream/kafka"
	eventnop "github.com/papercomputeco/weave/pkg/eventstream/nop"
	"github.com/papercomputeco/weave/pkg/graph"
	"github.com/papercomputeco/weave/pkg/ingest"
	"github.com/papercomputeco/weave/pkg/kvstore"
	kvinmemory "github.com/papercomputeco/weave/pkg/kvstore/inmemory"
	kvsqlite "github.com/papercomputeco/weave/pkg/kvstore/sqlite"
	llmutils "github.com/papercomputeco/weave/pkg/llm/utils"
	"github.com/papercomputeco/weave/pkg/logger"
	"github.com/papercomputeco/weave/pkg/memindex"
	idxinmemory "github.com/papercomputeco/weave/pkg/memindex/inmemory"
	idxsqlitevec "github.com/papercomputeco/weave/pkg/memindex/sqlitevec"
	"github.com/papercomputeco/weave/pkg/parser"
	"github.com/papercomputeco/weave/pkg/rag"
	"github.com/papercomputeco/weave/pkg/session"
)

type serveCommander struct {
	listen          string
	storageProvider string
	sqlitePath      string
	llmProvider     string
	llmTarget       string
	llmModel        string
	embedProvider   string
	embedTarget     string
	embedModel      string
	embedDims       uint
	indexProvider   string
	indexDir        string
	debounceMs      uint
	eventsProvider  string
	eventsBrokers   string
	eventsTopic     string
	resume          bool

	configDir string
	debug     bool
	viper     *viper.Viper
	logger    *zap.Logger
}

// serveFlags is the flag registry for the serve command. Names, shorthands,
// and viper keys live here so they cannot drift from the config schema.
var serveFlags = config.FlagSet{
	config.FlagAPIListen:       {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	config.FlagStorageProvider: {Name: "storage-provider", ViperKey: "storage.provider", Description: "Session store driver (memory, sqlite)"},
	config.FlagSQLite:          {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to the session SQLite database"},
	config.FlagLLMProvider:     {Name: "llm-provider", ViperKey: "llm.provider", Description: "Chat completion provider (ollama, openai)"},
	config.FlagLLMTarget:       {Name: "llm-target", ViperKey: "llm.target", Description: "Chat completion provider URL"},
	config.FlagLLMModel:        {Name: "llm-model", ViperKey: "llm.model", Description: "Default chat model for nodes without one"},
	config.FlagEmbeddingProv:   {Name: "embedding-provider", ViperKey: "embedding.provider", Description: "Embedding provider type (e.g., ollama)"},
	config.FlagEmbeddingTgt:    {Name: "embedding-target", ViperKey: "embedding.target", Description: "Embedding provider URL"},
	config.FlagEmbeddingModel:  {Name: "embedding-model", ViperKey: "embedding.model", Description: "Embedding model name (e.g., nomic-embed-text)"},
	config.FlagEmbeddingDims:   {Name: "embedding-dimensions", ViperKey: "embedding.dimensions", Description: "Embedding vector length"},
	config.FlagIndexProvider:   {Name: "index-provider", ViperKey: "index.provider", Description: "Memory index driver (memory, sqlitevec)"},
	config.FlagIndexDir:        {Name: "index-dir", ViperKey: "index.dir", Description: "Directory for per-node sqlitevec database files"},
	config.FlagDebounceMs:      {Name: "debounce-ms", ViperKey: "session.debounce_ms", Description: "Quiet period before content edits are persisted"},
	config.FlagEventsProvider:  {Name: "events-provider", ViperKey: "events.provider", Description: "Canvas event publisher (none, kafka)"},
	config.FlagEventsBrokers:   {Name: "events-brokers", ViperKey: "events.brokers", Description: "Comma-separated Kafka bootstrap brokers"},
	config.FlagEventsTopic:     {Name: "events-topic", ViperKey: "events.topic", Description: "Kafka topic for canvas events"},
}

var serveFlagKeys = []string{
	config.FlagAPIListen,
	config.FlagStorageProvider,
	config.FlagSQLite,
	config.FlagLLMProvider,
	config.FlagLLMTarget,
	config.FlagLLMModel,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagIndexProvider,
	config.FlagIndexDir,
	config.FlagDebounceMs,
	config.FlagEventsProvider,
	config.FlagEventsBrokers,
	config.FlagEventsTopic,
}

const serveLongDesc string = `Run the weave canvas API server.

The server owns the canvas graph, the session orchestrator, the memory
indexes, and the LLM and embedding clients. Configuration follows the
usual precedence: CLI flags, then WEAVE_ environment variables, then
config.toml, then built-in defaults.`

const serveShortDesc string = "Run the weave API server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, serveFlags, serveFlagKeys)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, serveFlags, config.FlagAPIListen, &cmder.listen)
	config.AddStringFlag(cmd, serveFlags, config.FlagStorageProvider, &cmder.storageProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, serveFlags, config.FlagLLMProvider, &cmder.llmProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagLLMTarget, &cmder.llmTarget)
	config.AddStringFlag(cmd, serveFlags, config.FlagLLMModel, &cmder.llmModel)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbeddingProv, &cmder.embedProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbeddingTgt, &cmder.embedTarget)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbeddingModel, &cmder.embedModel)
	config.AddUintFlag(cmd, serveFlags, config.FlagEmbeddingDims, &cmder.embedDims)
	config.AddStringFlag(cmd, serveFlags, config.FlagIndexProvider, &cmder.indexProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagIndexDir, &cmder.indexDir)
	config.AddUintFlag(cmd, serveFlags, config.FlagDebounceMs, &cmder.debounceMs)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventsProvider, &cmder.eventsProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventsBrokers, &cmder.eventsBrokers)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventsTopic, &cmder.eventsTopic)
	cmd.Flags().BoolVar(&cmder.resume, "resume", false, "Reload the last active session on startup")

	return cmd
}

func (c *serveCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	v := c.viper
	ddm := dotdir.NewManager()
	dotDir, err := ddm.Target(c.configDir)
	if err != nil {
		return fmt.Errorf("resolving weave dir: %w", err)
	}

	store, err := c.newSessionStore(v, dotDir)
	if err != nil {
		return err
	}
	defer store.Close()

	registry, err := c.newIndexRegistry(v, dotDir)
	if err != nil {
		return err
	}

	provider, err := llmutils.NewProvider(&llmutils.NewProviderOpts{
		ProviderType: v.GetString("llm.provider"),
		TargetURL:    v.GetString("llm.target"),
		APIKey:       v.GetString("llm.api_key"),
	})
	if err != nil {
		return fmt.Errorf("creating llm provider: %w", err)
	}

	embedTarget := v.GetString("embedding.target")
	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: v.GetString("embedding.provider"),
		TargetURL:    embedTarget,
		Model:        v.GetString("embedding.model"),
	})
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}

	publisher, err := c.newPublisher(v)
	if err != nil {
		return err
	}

	canvasGraph := graph.NewStore(c.logger)

	sessions := session.NewOrchestrator(session.Config{
		Store:        store,
		Graph:        canvasGraph,
		Debounce:     time.Duration(v.GetUint("session.debounce_ms")) * time.Millisecond,
		PeriodicSave: time.Duration(v.GetUint("session.periodic_save_s")) * time.Second,
		Publisher:    publisher,
		Logger:       c.logger,
	})

	engine := canvas.NewEngine(canvas.Config{
		Graph:          canvasGraph,
		Registry:       registry,
		Sessions:       sessions,
		Provider:       provider,
		DefaultModelID: v.GetString("llm.model"),
		Parsers:        parser.NewRegistry(),
		Pipeline: ingest.NewPipeline(ingest.Config{
			Embedder:   embedder,
			ProviderID: v.GetString("embedding.provider"),
			ModelID:    v.GetString("embedding.model"),
			Registry:   registry,
			Graph:      canvasGraph,
			Logger:     c.logger,
		}),
		Retrieval: rag.NewEngine(rag.Config{
			Graph:    canvasGraph,
			Registry: registry,
			Embedders: func(providerID, modelID string) (embeddings.Embedder, error) {
				return embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
					ProviderType: providerID,
					TargetURL:    embedTarget,
					Model:        modelID,
				})
			},
			DefaultProviderID: v.GetString("embedding.provider"),
			DefaultModelID:    v.GetString("embedding.model"),
			Logger:            c.logger,
		}),
		Publisher: publisher,
		Logger:    c.logger,
	})

	if c.resume {
		c.resumeSession(ddm, engine)
	}

	server := api.NewServer(api.Config{
		ListenAddr: v.GetString("api.listen"),
	}, engine, c.logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		c.logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	if err := server.Shutdown(); err != nil {
		c.logger.Warn("server shutdown", zap.Error(err))
	}

	c.saveActiveSession(ddm, engine)

	return engine.Close()
}

func (c *serveCommander) newSessionStore(v *viper.Viper, dotDir string) (kvstore.Driver, error) {
	switch provider := v.GetString("storage.provider"); provider {
	case "sqlite":
		path := v.GetString("storage.sqlite_path")
		if path == "" {
			path = filepath.Join(dotDir, "sessions.db")
		}
		driver, err := kvsqlite.NewDriver(path)
		if err != nil {
			return nil, fmt.Errorf("creating SQLite session store: %w", err)
		}
		c.logger.Info("using SQLite session store", zap.String("path", path))
		return driver, nil
	case "memory":
		c.logger.Info("using in-memory session store")
		return kvinmemory.NewDriver(), nil
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", provider)
	}
}

func (c *serveCommander) newIndexRegistry(v *viper.Viper, dotDir string) (*memindex.Registry, error) {
	switch provider := v.GetString("index.provider"); provider {
	case "sqlitevec":
		dir := v.GetString("index.dir")
		if dir == "" {
			dir = filepath.Join(dotDir, "indexes")
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating index dir: %w", err)
		}
		dims := v.GetUint("embedding.dimensions")
		c.logger.Info("using sqlite-vec memory indexes",
			zap.String("dir", dir),
			zap.Uint("dimensions", dims),
		)
		return memindex.NewRegistry(func(nodeID string) (memindex.Index, error) {
			return idxsqlitevec.NewIndex(idxsqlitevec.Config{
				DBPath:     filepath.Join(dir, nodeID+".db"),
				Dimensions: dims,
			}, c.logger)
		}, c.logger), nil
	case "memory":
		c.logger.Info("using in-memory memory indexes")
		return memindex.NewRegistry(func(string) (memindex.Index, error) {
			return idxinmemory.NewIndex(), nil
		}, c.logger), nil
	default:
		return nil, fmt.Errorf("unsupported index provider: %s", provider)
	}
}

func (c *serveCommander) newPublisher(v *viper.Viper) (eventstream.Publisher, error) {
	switch provider := v.GetString("events.provider"); provider {
	case "kafka":
		brokers := strings.Split(v.GetString("events.brokers"), ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		publisher, err := eventkafka.NewPublisher(eventkafka.Config{
			Brokers:  brokers,
			Topic:    v.GetString("events.topic"),
			ClientID: "weave-serve",
			Logger:   c.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		c.logger.Info("publishing canvas events to kafka",
			zap.Strings("brokers", brokers),
			zap.String("topic", v.GetString("events.topic")),
		)
		return publisher, nil
	case "none", "":
		return eventnop.NewPublisher(), nil
	default:
		return nil, fmt.Errorf("unsupported events provider: %s", provider)
	}
}

// resumeSession reloads the session that was active when the server last
// shut down. Failure to resume is not fatal; the canvas starts empty.
func (c *serveCommander) resumeSession(ddm *dotdir.Manager, engine *canvas.Engine) {
	state, err := ddm.LoadActiveState(c.configDir)
	if err != nil {
		c.logger.Warn("reading active session pointer", zap.Error(err))
		return
	}
	if state == nil || state.SessionID == "" {
		return
	}

	if _, err := engine.Sessions().Load(context.Background(), state.SessionID); err != nil {
		c.logger.Warn("resuming session",
			zap.String("session_id", state.SessionID),
			zap.Error(err),
		)
		return
	}
	c.logger.Info("resumed session", zap.String("session_id", state.SessionID))
}

func (c *serveCommander) saveActiveSession(ddm *dotdir.Manager, engine *canvas.Engine) {
	id := engine.Sessions().SessionID()
	if id == "" {
		if err := ddm.ClearActiveState(c.configDir); err != nil {
			c.logger.Warn("clearing active session pointer", zap.Error(err))
		}
		return
	}
	if err := ddm.SaveActiveState(&dotdir.ActiveState{SessionID: id}, c.configDir); err != nil {
		c.logger.Warn("saving active session pointer", zap.Error(err))
	}
}
