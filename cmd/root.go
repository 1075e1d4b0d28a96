package cmd

import (
	"github.com/spf13/cobra"
)

var (
	flagVerbose  bool
	flagJSONLogs bool
)

var rootCmd = &cobra.Command{
	Use:   "ragpipe",
	Short: "ragpipe - retrieval-augmented question answering over your documents",
	Long: `ragpipe ingests local documents into a pgvector-backed knowledge base
and answers questions grounded in the retrieved content.

Typical workflow:

  ragpipe ingest ./docs        index a directory of documents
  ragpipe ask "how does X work?"
  ragpipe chat                 interactive conversation with history`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// No arguments drops into interactive chat
		return runChat(cmd, args)
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagJSONLogs, "json-logs", false, "emit logs as JSON")
	// Subcommands register themselves in their own files.
}
