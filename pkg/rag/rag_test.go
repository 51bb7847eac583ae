package rag_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/weave/pkg/embeddings"
	"github.com/papercomputeco/weave/pkg/graph"
	"github.com/papercomputeco/weave/pkg/memindex"
	"github.com/papercomputeco/weave/pkg/memindex/inmemory"
	"github.com/papercomputeco/weave/pkg/rag"
	testutils "github.com/papercomputeco/weave/pkg/utils/test"
)

// vec builds a unit vector whose cosine similarity against the query
// direction [1, 0] equals s.
func vec(s float64) []float32 {
	return []float32{float32(s), float32(math.Sqrt(1 - s*s))}
}

var _ = Describe("Engine", func() {
	var (
		store    *graph.Store
		registry *memindex.Registry
		embedder *testutils.MockEmbedder
		engine   *rag.Engine

		requestedProviders []string
		requestedModels    []string
	)

	query := []float32{1, 0}

	BeforeEach(func() {
		store = graph.NewStore(nil)
		registry = memindex.NewRegistry(func(string) (memindex.Index, error) {
			return inmemory.NewIndex(), nil
		}, nil)

		embedder = testutils.NewMockEmbedder()
		embedder.Default = query

		requestedProviders = nil
		requestedModels = nil

		engine = rag.NewEngine(rag.Config{
			Graph:    store,
			Registry: registry,
			Embedders: func(providerID, modelID string) (embeddings.Embedder, error) {
				requestedProviders = append(requestedProviders, providerID)
				requestedModels = append(requestedModels, modelID)
				return embedder, nil
			},
			DefaultProviderID: "ollama",
			DefaultModelID:    "nomic-embed-text",
		})
	})

	addChat := func() graph.Node {
		n, err := store.AddNode(graph.Node{Kind: graph.NodeKindChat})
		Expect(err).NotTo(HaveOccurred())
		return n
	}

	addMemory := func(title, providerID, modelID string) graph.Node {
		n, err := store.AddNode(graph.Node{
			Kind: graph.NodeKindMemory,
			Memory: &graph.MemoryPayload{
				Title:               title,
				EmbeddingProviderID: providerID,
				EmbeddingModelID:    modelID,
			},
		})
		Expect(err).NotTo(HaveOccurred())
		return n
	}

	attach := func(memoryID, chatID string) {
		_, err := store.AddEdge(memoryID, chatID)
		Expect(err).NotTo(HaveOccurred())
	}

	fill := func(nodeID string, scores ...float64) {
		idx, err := registry.GetOrCreate(nodeID)
		Expect(err).NotTo(HaveOccurred())
		chunks := make([]memindex.Chunk, 0, len(scores))
		for i, s := range scores {
			chunks = append(chunks, memindex.Chunk{
				ID:        nodeID + string(rune('a'+i)),
				Text:      nodeID + string(rune('a'+i)),
				Embedding: vec(s),
			})
		}
		Expect(idx.Upsert(context.Background(), chunks)).To(Succeed())
	}

	It("skips retrieval for chats without attached memory", func() {
		chat := addChat()
		result, err := engine.Retrieve(context.Background(), chat.ID, "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(result).To(BeNil())
		Expect(embedder.Calls).To(BeEmpty())
	})

	It("skips retrieval for blank queries", func() {
		chat := addChat()
		mem := addMemory("notes", "ollama", "nomic-embed-text")
		attach(mem.ID, chat.ID)
		fill(mem.ID, 0.9)

		result, err := engine.Retrieve(context.Background(), chat.ID, "   ")
		Expect(err).NotTo(HaveOccurred())
		Expect(result).To(BeNil())
	})

	It("merges per-index hits by descending score and keeps the top five", func() {
		chat := addChat()
		first := addMemory("papers", "ollama", "nomic-embed-text")
		second := addMemory("notes", "ollama", "nomic-embed-text")
		attach(first.ID, chat.ID)
		attach(second.ID, chat.ID)
		fill(first.ID, 0.9, 0.4, 0.2)
		fill(second.ID, 0.8, 0.3)

		result, err := engine.Retrieve(context.Background(), chat.ID, "query")
		Expect(err).NotTo(HaveOccurred())
		Expect(result).NotTo(BeNil())
		Expect(result.Results).To(HaveLen(5))

		var scores []float64
		for _, r := range result.Results {
			scores = append(scores, r.Score)
		}
		Expect(scores[0]).To(BeNumerically("~", 0.9, 0.001))
		Expect(scores[1]).To(BeNumerically("~", 0.8, 0.001))
		Expect(scores[2]).To(BeNumerically("~", 0.4, 0.001))
		Expect(scores[3]).To(BeNumerically("~", 0.3, 0.001))
		Expect(scores[4]).To(BeNumerically("~", 0.2, 0.001))

		Expect(result.Results[0].NodeTitle).To(Equal("papers"))
		Expect(result.Results[1].NodeTitle).To(Equal("notes"))

		for i, r := range result.Results {
			Expect(r.Rank).To(Equal(i + 1))
		}
	})

	It("caps each index's contribution before the merge", func() {
		chat := addChat()
		mem := addMemory("big", "ollama", "nomic-embed-text")
		attach(mem.ID, chat.ID)
		fill(mem.ID, 0.9, 0.8, 0.7, 0.6)

		result, err := engine.Retrieve(context.Background(), chat.ID, "query")
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Results).To(HaveLen(3))
		Expect(result.Results[2].Score).To(BeNumerically("~", 0.7, 0.001))
	})

	It("embeds the query once regardless of index count", func() {
		chat := addChat()
		first := addMemory("a", "ollama", "nomic-embed-text")
		second := addMemory("b", "ollama", "nomic-embed-text")
		attach(first.ID, chat.ID)
		attach(second.ID, chat.ID)
		fill(first.ID, 0.5)
		fill(second.ID, 0.6)

		_, err := engine.Retrieve(context.Background(), chat.ID, "query")
		Expect(err).NotTo(HaveOccurred())
		Expect(embedder.Calls).To(Equal([]string{"query"}))
	})

	It("uses the first attached memory node's embedding provenance", func() {
		chat := addChat()
		first := addMemory("a", "openai", "text-embedding-3-small")
		second := addMemory("b", "ollama", "nomic-embed-text")
		attach(first.ID, chat.ID)
		attach(second.ID, chat.ID)
		fill(first.ID, 0.5)

		result, err := engine.Retrieve(context.Background(), chat.ID, "query")
		Expect(err).NotTo(HaveOccurred())
		Expect(result.ProviderID).To(Equal("openai"))
		Expect(result.ModelID).To(Equal("text-embedding-3-small"))
		Expect(requestedProviders).To(Equal([]string{"openai"}))
		Expect(requestedModels).To(Equal([]string{"text-embedding-3-small"}))
	})

	It("falls back to the configured default when no node records provenance", func() {
		chat := addChat()
		mem := addMemory("fresh", "", "")
		attach(mem.ID, chat.ID)
		fill(mem.ID, 0.5)

		result, err := engine.Retrieve(context.Background(), chat.ID, "query")
		Expect(err).NotTo(HaveOccurred())
		Expect(result.ProviderID).To(Equal("ollama"))
		Expect(result.ModelID).To(Equal("nomic-embed-text"))
	})

	It("skips attached nodes that have no index yet", func() {
		chat := addChat()
		mem := addMemory("empty", "ollama", "nomic-embed-text")
		attach(mem.ID, chat.ID)

		result, err := engine.Retrieve(context.Background(), chat.ID, "query")
		Expect(err).NotTo(HaveOccurred())
		Expect(result).To(BeNil())
	})

	It("propagates query embedding failures", func() {
		chat := addChat()
		mem := addMemory("notes", "ollama", "nomic-embed-text")
		attach(mem.ID, chat.ID)
		fill(mem.ID, 0.5)
		embedder.FailOn = "doomed"

		_, err := engine.Retrieve(context.Background(), chat.ID, "doomed")
		Expect(err).To(HaveOccurred())
	})

	It("fails hard on embedding dimension mismatch", func() {
		chat := addChat()
		mem := addMemory("notes", "ollama", "nomic-embed-text")
		attach(mem.ID, chat.ID)
		fill(mem.ID, 0.5)

		embedder.Default = []float32{1, 0, 0}

		_, err := engine.Retrieve(context.Background(), chat.ID, "query")
		Expect(err).To(MatchError(memindex.ErrDimensionMismatch))
	})
})
