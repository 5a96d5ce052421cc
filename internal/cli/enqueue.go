package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/contexta-ingest/internal/worker"
)

func newEnqueueCmd(deps Deps, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue [text|pdf|url] [content|url]",
		Short: "Publish an ingest request to NSQ instead of running it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := worker.IngestPayload{Type: args[0], Title: opts.title, Metadata: opts.metadata}
			if isRemote(args[1]) {
				payload.URL = args[1]
			} else {
				payload.Content = args[1]
			}
			if _, err := payload.Request(); err != nil {
				return err
			}

			pub, err := deps.OpenPublisher()
			if err != nil {
				return err
			}
			defer pub.Stop()
			if err := pub.Publish(payload); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "queued")
			return nil
		},
	}
}
