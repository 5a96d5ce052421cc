package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/contexta-ingest/internal/models"
	"github.com/markdave123-py/contexta-ingest/internal/worker"
)

const maxManifestLine = 4 << 20

// readManifest parses one JSON ingest payload per non-blank line; lines
// starting with # are comments.
func readManifest(path string) ([]worker.IngestPayload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []worker.IngestPayload
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxManifestLine)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var p worker.IngestPayload
		if err := json.Unmarshal([]byte(line), &p); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, n, err)
		}
		out = append(out, p)
	}
	return out, sc.Err()
}

type batchOutcome struct {
	Line   int                  `json:"line"`
	Result *models.IngestResult `json:"result,omitempty"`
	Error  string               `json:"error,omitempty"`
}

func newBatchCmd(deps Deps, opts *options) *cobra.Command {
	var concurrency int
	cmd := &cobra.Command{
		Use:   "batch [manifest.jsonl]",
		Short: "Ingest every request in a JSON-lines manifest",
		Long: `Each manifest line is a JSON object such as
{"type":"url","url":"https://example.com/post","title":"Post"}.
Requests run concurrently; one failure does not stop the others.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if concurrency <= 0 {
				return errUsage("--concurrency must be positive")
			}
			payloads, err := readManifest(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			ing, closeFn, err := deps.OpenIngester(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			outcomes := make([]batchOutcome, len(payloads))
			var mu sync.Mutex // serialises output
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(concurrency)
			for i, p := range payloads {
				g.Go(func() error {
					o := batchOutcome{Line: i + 1}
					req, err := p.Request()
					if err == nil {
						o.Result, err = ing.Ingest(gctx, req)
					}
					if err != nil {
						o.Error = err.Error()
					}
					outcomes[i] = o

					if !opts.jsonOut {
						mu.Lock()
						if o.Error != "" {
							fmt.Fprintf(cmd.OutOrStdout(), "#%d failed: %s\n", o.Line, o.Error)
						} else {
							_ = printResult(cmd, opts, o.Result)
						}
						mu.Unlock()
					}
					return nil
				})
			}
			_ = g.Wait()

			failed := 0
			for _, o := range outcomes {
				if o.Error != "" {
					failed++
				}
			}
			if opts.jsonOut {
				if err := json.NewEncoder(cmd.OutOrStdout()).Encode(outcomes); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%d ingested, %d failed\n", len(outcomes)-failed, failed)
			}
			if failed > 0 {
				return errors.New("some requests failed")
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 4, "Requests processed at once")
	return cmd
}
