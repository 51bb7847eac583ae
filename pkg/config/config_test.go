package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/weave/pkg/config"
)

var _ = Describe("Config", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "weave-config-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("ParseConfigTOML", func() {
		It("parses a full config", func() {
			data := []byte(`
version = 0

[storage]
provider = "sqlite"
sqlite_path = "/tmp/weave.db"

[api]
listen = ":9090"

[llm]
provider = "openai"
target = "https://api.openai.com"
model = "gpt-4.1"

[embedding]
provider = "ollama"
model = "nomic-embed-text"
dimensions = 768

[session]
debounce_ms = 500

[events]
provider = "kafka"
brokers = "localhost:9092"
topic = "weave.canvas"
`)
			cfg, err := config.ParseConfigTOML(data)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Storage.SQLitePath).To(Equal("/tmp/weave.db"))
			Expect(cfg.API.Listen).To(Equal(":9090"))
			Expect(cfg.LLM.Provider).To(Equal("openai"))
			Expect(cfg.LLM.Model).To(Equal("gpt-4.1"))
			Expect(cfg.Embedding.Dimensions).To(Equal(uint(768)))
			Expect(cfg.Session.DebounceMs).To(Equal(uint(500)))
			Expect(cfg.Events.Provider).To(Equal("kafka"))
		})

		It("rejects unsupported versions", func() {
			_, err := config.ParseConfigTOML([]byte("version = 99"))
			Expect(err).To(HaveOccurred())
		})

		It("rejects malformed TOML", func() {
			_, err := config.ParseConfigTOML([]byte("[storage"))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Configer", func() {
		It("returns defaults when no config file exists", func() {
			cfger, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := cfger.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Storage.Provider).To(Equal("sqlite"))
			Expect(cfg.API.Listen).To(Equal(":8080"))
			Expect(cfg.LLM.Provider).To(Equal("ollama"))
			Expect(cfg.Session.DebounceMs).To(Equal(uint(800)))
			Expect(cfg.Events.Provider).To(Equal("none"))
		})

		It("merges defaults into a partial file", func() {
			path := filepath.Join(tmpDir, "config.toml")
			Expect(os.WriteFile(path, []byte("[api]\nlisten = \":7000\"\n"), 0o600)).To(Succeed())

			cfger, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := cfger.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.API.Listen).To(Equal(":7000"))
			Expect(cfg.LLM.Model).To(Equal("llama3.2"))
			Expect(cfg.Embedding.Dimensions).To(Equal(uint(768)))
		})

		It("round-trips values through set and get", func() {
			cfger, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(cfger.SetConfigValue("llm.model", "mistral")).To(Succeed())
			Expect(cfger.SetConfigValue("session.debounce_ms", "400")).To(Succeed())

			got, err := cfger.GetConfigValue("llm.model")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal("mistral"))

			got, err = cfger.GetConfigValue("session.debounce_ms")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal("400"))
		})

		It("rejects unknown keys and bad values", func() {
			cfger, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(cfger.SetConfigValue("nope.key", "v")).To(HaveOccurred())
			Expect(cfger.SetConfigValue("embedding.dimensions", "not-a-number")).To(HaveOccurred())

			_, err = cfger.GetConfigValue("nope.key")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ValidConfigKeys", func() {
		It("lists every supported key exactly once", func() {
			keys := config.ValidConfigKeys()
			seen := map[string]bool{}
			for _, k := range keys {
				Expect(config.IsValidConfigKey(k)).To(BeTrue(), "key %s", k)
				Expect(seen[k]).To(BeFalse(), "duplicate key %s", k)
				seen[k] = true
			}
			Expect(keys).To(ContainElement("storage.provider"))
			Expect(keys).To(ContainElement("events.topic"))
		})
	})

	Describe("InitViper", func() {
		It("applies defaults when nothing else is set", func() {
			v, err := config.InitViper(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(v.GetString("api.listen")).To(Equal(":8080"))
			Expect(v.GetUint("session.debounce_ms")).To(Equal(uint(800)))
		})

		It("prefers environment variables over file values", func() {
			path := filepath.Join(tmpDir, "config.toml")
			Expect(os.WriteFile(path, []byte("[api]\nlisten = \":7000\"\n"), 0o600)).To(Succeed())

			os.Setenv("WEAVE_API_LISTEN", ":6000")
			DeferCleanup(func() { os.Unsetenv("WEAVE_API_LISTEN") })

			v, err := config.InitViper(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(v.GetString("api.listen")).To(Equal(":6000"))
		})

		It("reads file values under defaults", func() {
			path := filepath.Join(tmpDir, "config.toml")
			Expect(os.WriteFile(path, []byte("[llm]\nmodel = \"mistral\"\n"), 0o600)).To(Succeed())

			v, err := config.InitViper(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(v.GetString("llm.model")).To(Equal("mistral"))
			Expect(v.GetString("llm.provider")).To(Equal("ollama"))
		})
	})
})
