package canvas_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/weave/pkg/canvas"
	"github.com/papercomputeco/weave/pkg/embeddings"
	"github.com/papercomputeco/weave/pkg/graph"
	"github.com/papercomputeco/weave/pkg/ingest"
	"github.com/papercomputeco/weave/pkg/llm"
	"github.com/papercomputeco/weave/pkg/memindex"
	"github.com/papercomputeco/weave/pkg/memindex/inmemory"
	"github.com/papercomputeco/weave/pkg/parser"
	"github.com/papercomputeco/weave/pkg/rag"
	testutils "github.com/papercomputeco/weave/pkg/utils/test"
)

var _ = Describe("Engine", func() {
	var (
		store    *graph.Store
		registry *memindex.Registry
		provider *testutils.MockProvider
		embedder *testutils.MockEmbedder
		engine   *canvas.Engine
		ctx      context.Context
	)

	BeforeEach(func() {
		store = graph.NewStore(nil)
		registry = memindex.NewRegistry(func(string) (memindex.Index, error) {
			return inmemory.NewIndex(), nil
		}, nil)
		provider = testutils.NewMockProvider("He", "Hello")
		embedder = testutils.NewMockEmbedder()
		embedder.Default = []float32{1, 0}

		retrieval := rag.NewEngine(rag.Config{
			Graph:    store,
			Registry: registry,
			Embedders: func(string, string) (embeddings.Embedder, error) {
				return embedder, nil
			},
			DefaultProviderID: "ollama",
			DefaultModelID:    "nomic-embed-text",
		})

		engine = canvas.NewEngine(canvas.Config{
			Graph:          store,
			Registry:       registry,
			Provider:       provider,
			DefaultModelID: "llama3.2",
			Parsers:        parser.NewRegistry(),
			Pipeline: ingest.NewPipeline(ingest.Config{
				Embedder:   embedder,
				ProviderID: "ollama",
				ModelID:    "nomic-embed-text",
				Registry:   registry,
				Graph:      store,
			}),
			Retrieval: retrieval,
		})
		ctx = context.Background()
	})

	addChat := func() graph.Node {
		n, err := store.AddNode(graph.Node{Kind: graph.NodeKindChat})
		Expect(err).NotTo(HaveOccurred())
		return n
	}

	addMemory := func(title string) graph.Node {
		n, err := store.AddNode(graph.Node{
			Kind:   graph.NodeKindMemory,
			Memory: &graph.MemoryPayload{Title: title},
		})
		Expect(err).NotTo(HaveOccurred())
		return n
	}

	Describe("Send", func() {
		It("streams cumulative chunks into the trailing assistant message", func() {
			node := addChat()

			var seen []string
			err := engine.Send(ctx, node.ID, "hi", func(c llm.StreamChunk) error {
				seen = append(seen, c.Content)
				return nil
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(seen).To(Equal([]string{"He", "Hello"}))

			after, _ := store.Node(node.ID)
			Expect(after.Chat.Messages).To(HaveLen(2))
			Expect(after.Chat.Messages[0].Role).To(Equal(graph.RoleUser))
			Expect(after.Chat.Messages[0].Content).To(Equal("hi"))
			Expect(after.Chat.Messages[1].Role).To(Equal(graph.RoleAssistant))
			Expect(after.Chat.Messages[1].Content).To(Equal("Hello"))
		})

		It("rejects sends on unknown and non-chat nodes", func() {
			Expect(engine.Send(ctx, "missing", "hi", nil)).To(MatchError(graph.ErrNotFound))

			mem := addMemory("m")
			Expect(engine.Send(ctx, mem.ID, "hi", nil)).To(MatchError(canvas.ErrNotChatNode))
		})

		It("rejects a second send while one is streaming", func() {
			node := addChat()
			provider.Block = make(chan struct{})

			done := make(chan error, 1)
			go func() {
				done <- engine.Send(ctx, node.ID, "first", nil)
			}()

			// Wait until the stream is parked on the first chunk.
			Eventually(func() int { return len(provider.Requests) }).Should(Equal(1))

			Expect(engine.Send(ctx, node.ID, "second", nil)).To(MatchError(canvas.ErrSendInFlight))

			provider.Block <- struct{}{}
			provider.Block <- struct{}{}
			Expect(<-done).NotTo(HaveOccurred())

			// The node is free again afterwards.
			provider.Block = nil
			Expect(engine.Send(ctx, node.ID, "third", nil)).To(Succeed())
		})

		It("discards the completion when the node is deleted mid-stream", func() {
			node := addChat()
			provider.Block = make(chan struct{})

			done := make(chan error, 1)
			go func() {
				done <- engine.Send(ctx, node.ID, "hi", nil)
			}()
			Eventually(func() int { return len(provider.Requests) }).Should(Equal(1))

			Expect(engine.DeleteNode(node.ID)).To(Succeed())
			Expect(<-done).NotTo(HaveOccurred())

			_, ok := store.Node(node.ID)
			Expect(ok).To(BeFalse())
		})

		It("uses the node's model and falls back to the default", func() {
			configured := addChat()
			Expect(store.SetChatModel(configured.ID, "ollama", "mistral")).To(Succeed())
			Expect(engine.Send(ctx, configured.ID, "hi", nil)).To(Succeed())
			Expect(provider.Requests[0].Model).To(Equal("mistral"))

			bare := addChat()
			Expect(engine.Send(ctx, bare.ID, "hi", nil)).To(Succeed())
			Expect(provider.Requests[1].Model).To(Equal("llama3.2"))
		})

		It("assembles system prompt, inherited context, memory, then conversation", func() {
			donor := addChat()
			_, err := store.AppendMessage(donor.ID, graph.RoleUser, "donor question")
			Expect(err).NotTo(HaveOccurred())
			Expect(store.SetTitle(donor.ID, "research")).To(Succeed())

			mem := addMemory("notes")
			idx, err := registry.GetOrCreate(mem.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(idx.Upsert(ctx, []memindex.Chunk{{
				ID:        "c1",
				Text:      "remembered fact",
				Embedding: []float32{1, 0},
			}})).To(Succeed())

			receiver := addChat()
			Expect(store.SetSystemPrompt(receiver.ID, "be terse")).To(Succeed())
			_, err = store.AddEdge(donor.ID, receiver.ID)
			Expect(err).NotTo(HaveOccurred())
			_, err = store.AddEdge(mem.ID, receiver.ID)
			Expect(err).NotTo(HaveOccurred())

			Expect(engine.Send(ctx, receiver.ID, "question", nil)).To(Succeed())

			msgs := provider.Requests[0].Messages
			Expect(msgs[0].Content).To(Equal("be terse"))
			Expect(msgs[1].Content).To(Equal(`[Conversation context from "research"]`))
			Expect(msgs[2].Content).To(Equal("donor question"))
			Expect(msgs[3].Content).To(Equal("[End of connected conversation context]"))
			Expect(msgs[4].Role).To(Equal(graph.RoleSystem))
			Expect(msgs[4].Content).To(ContainSubstring("remembered fact"))
			Expect(msgs[4].Content).To(ContainSubstring("[notes]"))
			Expect(msgs[5].Role).To(Equal(graph.RoleUser))
			Expect(msgs[5].Content).To(Equal("question"))
		})

		It("continues without memory when retrieval fails softly", func() {
			mem := addMemory("notes")
			_, err := registry.GetOrCreate(mem.ID)
			Expect(err).NotTo(HaveOccurred())

			node := addChat()
			_, err = store.AddEdge(mem.ID, node.ID)
			Expect(err).NotTo(HaveOccurred())

			embedder.FailOn = "doomed"
			Expect(engine.Send(ctx, node.ID, "doomed", nil)).To(Succeed())
		})

		It("fails the send on an embedding dimension mismatch", func() {
			mem := addMemory("notes")
			idx, err := registry.GetOrCreate(mem.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(idx.Upsert(ctx, []memindex.Chunk{{
				ID:        "c1",
				Text:      "fact",
				Embedding: []float32{1, 0, 0},
			}})).To(Succeed())

			node := addChat()
			_, err = store.AddEdge(mem.ID, node.ID)
			Expect(err).NotTo(HaveOccurred())

			Expect(engine.Send(ctx, node.ID, "question", nil)).To(MatchError(memindex.ErrDimensionMismatch))
		})
	})

	Describe("Ingest", func() {
		It("parses, embeds, and indexes an upload", func() {
			mem := addMemory("docs")

			result, err := engine.Ingest(ctx, mem.ID, "notes.txt", []byte("some interesting text"))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Parsed).To(Equal(1))
			Expect(result.Embedded).To(Equal(1))
			Expect(result.NewChunks).To(Equal(1))

			after, _ := store.Node(mem.ID)
			Expect(after.Memory.ChunkCount).To(Equal(1))
			Expect(after.Memory.DocumentCount).To(Equal(1))
		})

		It("rejects uploads to non-memory nodes and unknown formats", func() {
			chat := addChat()
			_, err := engine.Ingest(ctx, chat.ID, "notes.txt", []byte("text"))
			Expect(err).To(MatchError(canvas.ErrNotMemoryNode))

			mem := addMemory("docs")
			_, err = engine.Ingest(ctx, mem.ID, "binary.exe", []byte{0x4d})
			Expect(err).To(MatchError(parser.ErrUnsupportedFormat))
		})
	})

	Describe("DeleteNode", func() {
		It("drops the memory index with the node", func() {
			mem := addMemory("docs")
			_, err := engine.Ingest(ctx, mem.ID, "notes.txt", []byte("text"))
			Expect(err).NotTo(HaveOccurred())
			_, ok := registry.Get(mem.ID)
			Expect(ok).To(BeTrue())

			Expect(engine.DeleteNode(mem.ID)).To(Succeed())
			_, ok = registry.Get(mem.ID)
			Expect(ok).To(BeFalse())
		})
	})
})
