package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var flagDocsCollection string

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Manage indexed documents",
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed documents with chunk counts",
	RunE:  runDocumentsList,
}

var documentsRemoveCmd = &cobra.Command{
	Use:   "remove <document-id>",
	Short: "Remove a document and all its chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsRemove,
}

func init() {
	documentsCmd.PersistentFlags().StringVar(&flagDocsCollection, "collection", "", "collection (defaults to configured collection)")
	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsRemoveCmd)
	rootCmd.AddCommand(documentsCmd)
}

func (r *runtime) documentsCollection() string {
	if flagDocsCollection != "" {
		return flagDocsCollection
	}
	return r.cfg.Collection
}

func runDocumentsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	docs, err := rt.store.ListDocuments(ctx, rt.documentsCollection())
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}

	if len(docs) == 0 {
		fmt.Println("No documents indexed. Run `ragpipe ingest <path>` first.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DOCUMENT ID\tCHUNKS\tUPDATED")
	for _, d := range docs {
		fmt.Fprintf(w, "%s\t%d\t%s\n", d.DocumentID, d.Chunks, d.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runDocumentsRemove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.store.DeleteDocument(ctx, rt.documentsCollection(), args[0]); err != nil {
		return fmt.Errorf("removing document %s: %w", args[0], err)
	}

	fmt.Printf("Removed document %s\n", args[0])
	return nil
}
