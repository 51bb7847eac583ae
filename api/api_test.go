package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/weave/api"
	"github.com/papercomputeco/weave/pkg/canvas"
	"github.com/papercomputeco/weave/pkg/embeddings"
	"github.com/papercomputeco/weave/pkg/graph"
	"github.com/papercomputeco/weave/pkg/ingest"
	"github.com/papercomputeco/weave/pkg/kvstore/inmemory"
	"github.com/papercomputeco/weave/pkg/logger"
	"github.com/papercomputeco/weave/pkg/memindex"
	memidx "github.com/papercomputeco/weave/pkg/memindex/inmemory"
	"github.com/papercomputeco/weave/pkg/parser"
	"github.com/papercomputeco/weave/pkg/rag"
	"github.com/papercomputeco/weave/pkg/session"
	testutils "github.com/papercomputeco/weave/pkg/utils/test"
)

var _ = Describe("Server", func() {
	var (
		server   *api.Server
		engine   *canvas.Engine
		store    *graph.Store
		provider *testutils.MockProvider
	)

	BeforeEach(func() {
		log := logger.NewLogger(false)

		store = graph.NewStore(nil)
		registry := memindex.NewRegistry(func(string) (memindex.Index, error) {
			return memidx.NewIndex(), nil
		}, nil)
		embedder := testutils.NewMockEmbedder()
		provider = testutils.NewMockProvider("Hel", "Hello there")

		sessions := session.NewOrchestrator(session.Config{
			Store:        inmemory.NewDriver(),
			Graph:        store,
			PeriodicSave: -1,
		})

		engine = canvas.NewEngine(canvas.Config{
			Graph:          store,
			Registry:       registry,
			Sessions:       sessions,
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
			Retrieval: rag.NewEngine(rag.Config{
				Graph:    store,
				Registry: registry,
				Embedders: func(string, string) (embeddings.Embedder, error) {
					return embedder, nil
				},
				DefaultProviderID: "ollama",
				DefaultModelID:    "nomic-embed-text",
			}),
		})

		server = api.NewServer(api.Config{ListenAddr: ":0"}, engine, log)
	})

	AfterEach(func() {
		Expect(engine.Close()).To(Succeed())
	})

	do := func(method, path string, body any) *http.Response {
		var reader io.Reader
		if body != nil {
			data, err := json.Marshal(body)
			Expect(err).NotTo(HaveOccurred())
			reader = bytes.NewReader(data)
		}
		req := httptest.NewRequest(method, path, reader)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := server.App().Test(req, 5000)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	decode := func(resp *http.Response, into any) {
		defer resp.Body.Close()
		Expect(json.NewDecoder(resp.Body).Decode(into)).To(Succeed())
	}

	createNode := func(kind, title string) graph.Node {
		resp := do("POST", "/nodes", map[string]any{"kind": kind, "title": title})
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		var node graph.Node
		decode(resp, &node)
		return node
	}

	It("responds to ping", func() {
		resp := do("GET", "/ping", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})

	Describe("nodes", func() {
		It("creates chat and memory nodes", func() {
			chat := createNode("chat", "my chat")
			Expect(chat.ID).NotTo(BeEmpty())
			Expect(chat.Chat.Title).To(Equal("my chat"))

			mem := createNode("memory", "my docs")
			Expect(mem.Memory.Title).To(Equal("my docs"))
		})

		It("rejects unknown node kinds", func() {
			resp := do("POST", "/nodes", map[string]any{"kind": "widget"})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("updates position, title, and system prompt", func() {
			node := createNode("chat", "t")

			resp := do("PATCH", "/nodes/"+node.ID, map[string]any{
				"position":      map[string]float64{"x": 42, "y": 7},
				"title":         "renamed",
				"system_prompt": "be terse",
			})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var updated graph.Node
			decode(resp, &updated)
			Expect(updated.Position.X).To(Equal(42.0))
			Expect(updated.Chat.Title).To(Equal("renamed"))
			Expect(updated.Chat.SystemPrompt).To(Equal("be terse"))
		})

		It("deletes nodes and 404s unknown ids", func() {
			node := createNode("chat", "t")
			Expect(do("DELETE", "/nodes/"+node.ID, nil).StatusCode).To(Equal(http.StatusNoContent))
			Expect(do("DELETE", "/nodes/"+node.ID, nil).StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("edges", func() {
		It("infers edge kind from endpoints", func() {
			mem := createNode("memory", "m")
			chat := createNode("chat", "c")

			resp := do("POST", "/edges", map[string]string{"source": mem.ID, "target": chat.ID})
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var edge graph.Edge
			decode(resp, &edge)
			Expect(edge.Kind).To(Equal(graph.EdgeKindRag))
		})

		It("rejects duplicates and context cycles with 409", func() {
			a := createNode("chat", "a")
			b := createNode("chat", "b")

			Expect(do("POST", "/edges", map[string]string{"source": a.ID, "target": b.ID}).StatusCode).To(Equal(http.StatusCreated))
			Expect(do("POST", "/edges", map[string]string{"source": a.ID, "target": b.ID}).StatusCode).To(Equal(http.StatusConflict))
			Expect(do("POST", "/edges", map[string]string{"source": b.ID, "target": a.ID}).StatusCode).To(Equal(http.StatusConflict))
		})
	})

	Describe("send", func() {
		It("streams chunks and a done event as SSE", func() {
			node := createNode("chat", "c")

			resp := do("POST", "/nodes/"+node.ID+"/send", map[string]string{"content": "hi"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("text/event-stream"))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			text := string(body)
			Expect(text).To(ContainSubstring("event: chunk"))
			Expect(text).To(ContainSubstring("Hello there"))
			Expect(text).To(ContainSubstring("event: done"))

			after, _ := store.Node(node.ID)
			Expect(after.Chat.Messages).To(HaveLen(2))
			Expect(after.Chat.Messages[1].Content).To(Equal("Hello there"))
		})

		It("rejects sends on memory nodes before streaming", func() {
			mem := createNode("memory", "m")
			resp := do("POST", "/nodes/"+mem.ID+"/send", map[string]string{"content": "hi"})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("requires content", func() {
			node := createNode("chat", "c")
			resp := do("POST", "/nodes/"+node.ID+"/send", map[string]string{})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("documents", func() {
		upload := func(nodeID, filename, content string) *http.Response {
			var buf bytes.Buffer
			w := multipart.NewWriter(&buf)
			part, err := w.CreateFormFile("file", filename)
			Expect(err).NotTo(HaveOccurred())
			_, err = part.Write([]byte(content))
			Expect(err).NotTo(HaveOccurred())
			Expect(w.Close()).To(Succeed())

			req := httptest.NewRequest("POST", fmt.Sprintf("/nodes/%s/documents", nodeID), &buf)
			req.Header.Set("Content-Type", w.FormDataContentType())
			resp, err := server.App().Test(req, 5000)
			Expect(err).NotTo(HaveOccurred())
			return resp
		}

		It("ingests a text upload into a memory node", func() {
			mem := createNode("memory", "docs")

			resp := upload(mem.ID, "notes.txt", "interesting text")
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var result ingest.Result
			decode(resp, &result)
			Expect(result.Embedded).To(Equal(1))

			after, _ := store.Node(mem.ID)
			Expect(after.Memory.ChunkCount).To(Equal(1))
		})

		It("rejects chat targets and unsupported formats", func() {
			chat := createNode("chat", "c")
			Expect(upload(chat.ID, "notes.txt", "x").StatusCode).To(Equal(http.StatusBadRequest))

			mem := createNode("memory", "m")
			Expect(upload(mem.ID, "binary.exe", "x").StatusCode).To(Equal(http.StatusUnsupportedMediaType))
		})
	})

	Describe("sessions", func() {
		It("lists the lazily created session", func() {
			createNode("chat", "c")

			resp := do("GET", "/sessions", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body struct {
				Count  int    `json:"count"`
				Active string `json:"active"`
			}
			decode(resp, &body)
			Expect(body.Count).To(Equal(1))
			Expect(body.Active).NotTo(BeEmpty())
		})

		It("exports, imports, and loads a session", func() {
			node := createNode("chat", "c")
			Expect(do("POST", "/sessions/flush", nil).StatusCode).To(Equal(http.StatusNoContent))
			id := engine.Sessions().SessionID()

			exported := do("GET", "/sessions/"+id+"/export", nil)
			Expect(exported.StatusCode).To(Equal(http.StatusOK))
			data, err := io.ReadAll(exported.Body)
			Expect(err).NotTo(HaveOccurred())

			req := httptest.NewRequest("POST", "/sessions/import", bytes.NewReader(data))
			req.Header.Set("Content-Type", "application/json")
			imported, err := server.App().Test(req, 5000)
			Expect(err).NotTo(HaveOccurred())
			Expect(imported.StatusCode).To(Equal(http.StatusCreated))

			var doc session.Document
			decode(imported, &doc)
			Expect(doc.ID).NotTo(Equal(id))

			loaded := do("POST", "/sessions/"+doc.ID+"/load", nil)
			Expect(loaded.StatusCode).To(Equal(http.StatusOK))

			restored, ok := store.Node(node.ID)
			Expect(ok).To(BeTrue())
			Expect(restored.Chat.Title).To(Equal("c"))
		})

		It("renames the active session", func() {
			createNode("chat", "c")
			Expect(do("PATCH", "/sessions/active", map[string]string{"name": "research"}).StatusCode).To(Equal(http.StatusNoContent))
			Expect(do("POST", "/sessions/flush", nil).StatusCode).To(Equal(http.StatusNoContent))

			var body struct {
				Sessions []struct {
					Name string `json:"name"`
				} `json:"sessions"`
			}
			decode(do("GET", "/sessions", nil), &body)
			Expect(body.Sessions).To(HaveLen(1))
			Expect(body.Sessions[0].Name).To(Equal("research"))
		})

		It("rejects renames with no active session", func() {
			resp := do("PATCH", "/sessions/active", map[string]string{"name": "research"})
			Expect(resp.StatusCode).To(Equal(http.StatusConflict))
		})

		It("deletes sessions and 404s unknown ids", func() {
			createNode("chat", "c")
			Expect(do("POST", "/sessions/flush", nil).StatusCode).To(Equal(http.StatusNoContent))
			id := engine.Sessions().SessionID()

			Expect(do("DELETE", "/sessions/"+id, nil).StatusCode).To(Equal(http.StatusNoContent))
			Expect(do("DELETE", "/sessions/"+id, nil).StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	It("updates the viewport", func() {
		resp := do("PUT", "/canvas/viewport", map[string]float64{"x": 10, "y": 20, "zoom": 1.5})
		Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
		Expect(store.Viewport().Zoom).To(Equal(1.5))
	})
})
