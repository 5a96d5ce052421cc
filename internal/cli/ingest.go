package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/contexta-ingest/internal/models"
)

func newTextCmd(deps Deps, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "text [file|-]",
		Short: "Ingest plain text from a file or stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}
			return ingestOne(cmd, deps, opts, models.IngestRequest{Source: models.TextSource(string(data))})
		},
	}
}

func newPDFCmd(deps Deps, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "pdf [path|url]",
		Short: "Ingest a local or remote PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if isRemote(args[0]) {
				return ingestOne(cmd, deps, opts, models.IngestRequest{Source: models.PDFURLSource(args[0])})
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			src := models.PDFBytesSource(filepath.Base(args[0]), data)
			return ingestOne(cmd, deps, opts, models.IngestRequest{Source: src})
		},
	}
}

func newWebCmd(deps Deps, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "web [url]",
		Short: "Ingest the main content of a web page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isRemote(args[0]) {
				return errUsage("web expects an http(s) URL, got %q", args[0])
			}
			return ingestOne(cmd, deps, opts, models.IngestRequest{Source: models.WebSource(args[0])})
		},
	}
}
