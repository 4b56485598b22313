// Command otapatch applies a crash-safe binary patch to a file or raw
// partition, driven by a manifest describing the source, target, and
// candidate patch set.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/open-edge-platform/otapatch/internal/logger"
)

var verbose bool

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "otapatch",
		Short: "crash-safe binary patch applier",
		Long: `otapatch applies a binary patch to a target file or raw partition,
verifying the result by digest and recovering from an interrupted prior
attempt via a cache-backed copy of the source.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.AddCommand(newApplyCommand())
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logger.Sync()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
	logger.Sync()
}
