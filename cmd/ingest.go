package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ragpipe/ragpipe/internal/chunker"
	"github.com/ragpipe/ragpipe/internal/docsource"
	"github.com/ragpipe/ragpipe/internal/ingest"
)

var flagIngestCollection string

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>",
	Short: "Index a file or directory into the knowledge base",
	Long: `Ingest walks the given directory (honoring .gitignore), splits each
document into overlapping chunks, embeds them, and stores the result.
Re-ingesting a document atomically replaces its previous chunks.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&flagIngestCollection, "collection", "", "target collection (defaults to configured collection)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	source, err := docsource.NewFS(docsource.FSConfig{Dir: args[0]}, rt.logger)
	if err != nil {
		return fmt.Errorf("opening document source: %w", err)
	}

	ch, err := chunker.New(chunker.Config{
		ChunkSize: rt.cfg.ChunkSize,
		Overlap:   rt.cfg.Overlap,
	})
	if err != nil {
		return fmt.Errorf("configuring chunker: %w", err)
	}

	collection := rt.cfg.Collection
	if flagIngestCollection != "" {
		collection = flagIngestCollection
	}

	pipeline := ingest.New(ch, rt.embedder, rt.store, ingest.Config{
		Collection:  collection,
		Concurrency: rt.cfg.Concurrency,
	}, rt.logger)

	report, err := pipeline.IngestAll(ctx, source)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", args[0], err)
	}

	for _, res := range report.Results {
		if res.Err != nil {
			fmt.Printf("  FAIL %s: %v\n", res.Path, res.Err)
			continue
		}
		fmt.Printf("  ok   %s (%d chunks)\n", res.Path, res.Chunks)
	}
	fmt.Printf("\nIngested %d documents (%d chunks) in %s",
		report.Documents-report.Failed, report.Chunks, report.Duration.Round(time.Millisecond))
	if report.Failed > 0 {
		fmt.Printf(", %d failed", report.Failed)
	}
	fmt.Println()

	if report.Failed > 0 {
		return fmt.Errorf("%d of %d documents failed", report.Failed, report.Documents)
	}
	return nil
}
