// Package cli is the offline neurodoc command: chunk and search local files
// through the same pipeline the HTTP service uses, without a server.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "neurodoc",
	Short: "Chunk and search policy documents locally",
	Long: `neurodoc runs the document pipeline of the NeuroDoc service on local files.
Nothing is persisted: every invocation indexes the given files into a fresh
in-memory store.`,
	SilenceUsage: true,
}

// Execute runs the root command with results on stdout.
func Execute() error {
	rootCmd.SetOut(os.Stdout)
	return rootCmd.Execute()
}
