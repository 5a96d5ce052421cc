// Package cli implements the ingestctl commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/contexta-ingest/internal/models"
	"github.com/markdave123-py/contexta-ingest/internal/worker"
)

// Ingester runs one synchronous ingestion.
type Ingester interface {
	Ingest(ctx context.Context, req models.IngestRequest) (*models.IngestResult, error)
}

// Publisher queues ingest requests for the NSQ consumer.
type Publisher interface {
	Publish(payload worker.IngestPayload) error
	Stop()
}

// Deps opens the backends lazily so --help and argument errors never dial out.
type Deps struct {
	OpenIngester  func(ctx context.Context) (Ingester, func() error, error)
	OpenPublisher func() (Publisher, error)
}

type options struct {
	title    string
	metadata map[string]string
	jsonOut  bool
}

func NewRootCmd(deps Deps) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "ingestctl",
		Short:         "Ingest documents into the Contexta store",
		Long:          `Extract, chunk, embed and store text, PDF and web sources.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.title, "title", "t", "", "Document title")
	root.PersistentFlags().StringToStringVarP(&opts.metadata, "meta", "m", nil, "Metadata key=value pairs")
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "Print results as JSON")

	root.AddCommand(
		newTextCmd(deps, opts),
		newPDFCmd(deps, opts),
		newWebCmd(deps, opts),
		newBatchCmd(deps, opts),
		newEnqueueCmd(deps, opts),
	)
	return root
}

// ingestOne opens the ingester, runs req and prints the outcome.
func ingestOne(cmd *cobra.Command, deps Deps, opts *options, req models.IngestRequest) error {
	ctx := cmd.Context()
	ing, closeFn, err := deps.OpenIngester(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	req.Title = opts.title
	req.Metadata = opts.metadata
	res, err := ing.Ingest(ctx, req)
	if err != nil {
		return err
	}
	return printResult(cmd, opts, res)
}

func printResult(cmd *cobra.Command, opts *options, res *models.IngestResult) error {
	if opts.jsonOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	outcome := "committed"
	if res.Duplicate {
		outcome = "duplicate"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s %q (%d chunks)\n", outcome, res.Document.ID, res.Document.Title, res.ChunkCount)
	return nil
}

func isRemote(arg string) bool {
	lower := strings.ToLower(arg)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func errUsage(format string, args ...any) error {
	return fmt.Errorf("usage: "+format, args...)
}
