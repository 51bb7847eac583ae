// Package ingestcmder provides the ingest command for uploading documents
// into a memory node on a running weave server.
package ingestcmder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/weave/pkg/cliui"
	"github.com/papercomputeco/weave/pkg/config"
	"github.com/papercomputeco/weave/pkg/llm"
)

type ingestCommander struct {
	node   string
	target string
	watch  bool

	client *http.Client
}

const ingestLongDesc string = `Upload documents into a memory node.

Each file is parsed, chunked, and embedded by the server. With --watch,
the given directory is watched and new or changed files are ingested as
they appear; press Ctrl-C to stop.

The target server defaults to the configured api.listen address on
localhost.

Examples:
  weave ingest --node 4f7c... notes.txt paper.md
  weave ingest --node 4f7c... --watch ./inbox`

const ingestShortDesc string = "Upload documents into a memory node"

func NewIngestCmd() *cobra.Command {
	cmder := &ingestCommander{
		client: &http.Client{Timeout: 5 * time.Minute},
	}

	cmd := &cobra.Command{
		Use:   "ingest <path>...",
		Short: ingestShortDesc,
		Long:  ingestLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmder.node == "" {
				return fmt.Errorf("--node is required")
			}
			if cmder.target == "" {
				configDir, _ := cmd.Flags().GetString("config-dir")
				target, err := defaultTarget(configDir)
				if err != nil {
					return err
				}
				cmder.target = target
			}

			if cmder.watch {
				if len(args) != 1 {
					return fmt.Errorf("--watch takes exactly one directory")
				}
				return cmder.runWatch(args[0])
			}
			return cmder.runFiles(args)
		},
	}

	cmd.Flags().StringVarP(&cmder.node, "node", "n", "", "Memory node id to ingest into")
	cmd.Flags().StringVarP(&cmder.target, "target", "t", "", "Weave server base URL (default: from api.listen)")
	cmd.Flags().BoolVarP(&cmder.watch, "watch", "w", false, "Watch a directory and ingest files as they appear")

	return cmd
}

// defaultTarget derives a localhost base URL from the configured listen
// address, e.g. ":8080" becomes "http://localhost:8080".
func defaultTarget(configDir string) (string, error) {
	v, err := config.InitViper(configDir)
	if err != nil {
		return "", err
	}

	listen := v.GetString("api.listen")
	host, port, found := strings.Cut(listen, ":")
	if !found {
		return "", fmt.Errorf("cannot derive server URL from api.listen %q; use --target", listen)
	}
	if host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%s", host, port), nil
}

func (c *ingestCommander) runFiles(paths []string) error {
	var failed int
	for _, path := range paths {
		name := filepath.Base(path)
		err := cliui.Step(os.Stdout, fmt.Sprintf("Ingesting %s", name), func() error {
			return c.upload(path)
		})
		if err != nil {
			failed++
			fmt.Printf("    %s\n", cliui.DimStyle.Render(err.Error()))
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed", failed, len(paths))
	}
	return nil
}

func (c *ingestCommander) runWatch(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("watch target: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch target %s is not a directory", dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	fmt.Printf("\n  Watching %s (Ctrl-C to stop)\n\n", cliui.ValueStyle.Render(dir))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Writers emit bursts of events per file; coalesce by remembering the
	// last time each path was ingested.
	lastSeen := map[string]time.Time{}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			name := filepath.Base(event.Name)
			if strings.HasPrefix(name, ".") {
				continue
			}
			if info, err := os.Stat(event.Name); err != nil || info.IsDir() {
				continue
			}
			if t, ok := lastSeen[event.Name]; ok && time.Since(t) < time.Second {
				continue
			}
			lastSeen[event.Name] = time.Now()

			err := cliui.Step(os.Stdout, fmt.Sprintf("Ingesting %s", name), func() error {
				return c.upload(event.Name)
			})
			if err != nil {
				fmt.Printf("    %s\n", cliui.DimStyle.Render(err.Error()))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Printf("  %s watcher: %v\n", cliui.FailMark, err)
		case <-sigCh:
			fmt.Println()
			return nil
		}
	}
}

// upload posts one file to the server's document endpoint as multipart
// form data.
func (c *ingestCommander) upload(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	url := fmt.Sprintf("%s/nodes/%s/documents", strings.TrimRight(c.target, "/"), c.node)
	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		var envelope llm.ErrorResponse
		if json.Unmarshal(body, &envelope) == nil && envelope.Error != "" {
			return fmt.Errorf("server rejected %s: %s", filepath.Base(path), envelope.Error)
		}
		return fmt.Errorf("server rejected %s: status %d", filepath.Base(path), resp.StatusCode)
	}

	return nil
}
