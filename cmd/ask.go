package cmd

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	flagAskSession string
	flagAskSources bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question grounded in the knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVar(&flagAskSession, "session", "", "continue an existing session by ID")
	askCmd.Flags().BoolVar(&flagAskSources, "sources", false, "print the retrieved sources after the answer")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("question cannot be empty")
	}

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	var sessionID uuid.UUID
	if flagAskSession != "" {
		sessionID, err = uuid.Parse(flagAskSession)
		if err != nil {
			return fmt.Errorf("invalid session ID %q: %w", flagAskSession, err)
		}
	} else {
		sess, err := rt.sessions.Create(ctx, sessionTitle(question))
		if err != nil {
			return fmt.Errorf("creating session: %w", err)
		}
		sessionID = sess.ID
	}

	answer, err := rt.engine().SubmitTurn(ctx, sessionID, question)
	if err != nil {
		return fmt.Errorf("answering question: %w", err)
	}

	fmt.Println(answer.Text)

	if flagAskSources && len(answer.Sources) > 0 {
		fmt.Println("\nSources:")
		for i, m := range answer.Sources {
			path := m.DocumentID
			if p := m.Metadata["file_path"]; p != "" {
				path = p
			}
			fmt.Printf("  [%d] %s (score %.3f)\n", i+1, path, m.Score)
		}
	}

	return nil
}

// sessionTitle derives a short session title from the first question.
func sessionTitle(question string) string {
	const maxTitle = 60
	runes := []rune(question)
	if len(runes) <= maxTitle {
		return question
	}
	return string(runes[:maxTitle]) + "…"
}
