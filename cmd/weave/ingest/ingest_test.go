package ingestcmder_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	ingestcmder "github.com/papercomputeco/weave/cmd/weave/ingest"
)

var _ = Describe("NewIngestCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := ingestcmder.NewIngestCmd()
		Expect(cmd.Use).To(Equal("ingest <path>..."))
	})

	It("has --node, --target, and --watch flags", func() {
		cmd := ingestcmder.NewIngestCmd()
		Expect(cmd.Flags().Lookup("node")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("node").Shorthand).To(Equal("n"))
		Expect(cmd.Flags().Lookup("target")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("watch")).NotTo(BeNil())
	})

	It("requires --node", func() {
		cmd := ingestcmder.NewIngestCmd()
		cmd.SetArgs([]string{"some-file.txt"})
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		err := cmd.Execute()
		Expect(err).To(MatchError(ContainSubstring("--node is required")))
	})
})

var _ = Describe("Uploading files", func() {
	var (
		server   *httptest.Server
		requests []*http.Request
		status   int
		tmpDir   string
	)

	BeforeEach(func() {
		requests = nil
		status = http.StatusCreated
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.ParseMultipartForm(1 << 20)).To(Succeed())
			requests = append(requests, r)
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"no such node"}`))
		}))
		tmpDir = GinkgoT().TempDir()
	})

	AfterEach(func() {
		server.Close()
	})

	writeFile := func(name, content string) string {
		path := filepath.Join(tmpDir, name)
		Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())
		return path
	}

	run := func(args ...string) error {
		cmd := ingestcmder.NewIngestCmd()
		cmd.SetArgs(args)
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		cmd.SetOut(GinkgoWriter)
		cmd.SetErr(GinkgoWriter)
		return cmd.Execute()
	}

	It("posts each file to the node's document endpoint", func() {
		a := writeFile("a.txt", "alpha")
		b := writeFile("b.md", "beta")

		Expect(run("--node", "node-1", "--target", server.URL, a, b)).To(Succeed())

		Expect(requests).To(HaveLen(2))
		Expect(requests[0].URL.Path).To(Equal("/nodes/node-1/documents"))
		Expect(requests[0].Method).To(Equal(http.MethodPost))

		file, header, err := requests[0].FormFile("file")
		Expect(err).NotTo(HaveOccurred())
		defer file.Close()
		Expect(header.Filename).To(Equal("a.txt"))
	})

	It("surfaces server rejections as an error", func() {
		status = http.StatusNotFound
		path := writeFile("a.txt", "alpha")

		err := run("--node", "missing", "--target", server.URL, path)
		Expect(err).To(MatchError(ContainSubstring("1 of 1 file(s) failed")))
	})

	It("fails on unreadable paths without contacting the server", func() {
		err := run("--node", "node-1", "--target", server.URL, filepath.Join(tmpDir, "absent.txt"))
		Expect(err).To(HaveOccurred())
		Expect(requests).To(BeEmpty())
	})
})
