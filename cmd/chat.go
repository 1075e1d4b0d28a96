package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var flagChatSession string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive grounded conversation",
	Long: `Chat reads questions from stdin and answers each one using the
knowledge base, carrying the conversation history across turns.
Exit with "exit", "quit", or Ctrl-D.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&flagChatSession, "session", "", "resume an existing session by ID")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	sessionID, err := resolveChatSession(ctx, rt)
	if err != nil {
		return err
	}

	engine := rt.engine()
	fmt.Printf("Session %s. Type a question, or \"exit\" to quit.\n\n", sessionID)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if query == "exit" || query == "quit" {
			break
		}

		answer, err := engine.SubmitTurn(ctx, sessionID, query)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}

		fmt.Printf("\n%s\n", answer.Text)
		if len(answer.Sources) > 0 {
			fmt.Printf("(%d sources)\n", len(answer.Sources))
		}
		fmt.Println()
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}

// resolveChatSession resumes the session given by --session or creates a
// fresh one.
func resolveChatSession(ctx context.Context, rt *runtime) (uuid.UUID, error) {
	if flagChatSession != "" {
		id, err := uuid.Parse(flagChatSession)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid session ID %q: %w", flagChatSession, err)
		}
		if _, err := rt.sessions.Get(ctx, id); err != nil {
			return uuid.Nil, fmt.Errorf("resuming session: %w", err)
		}
		return id, nil
	}

	sess, err := rt.sessions.Create(ctx, "New Session")
	if err != nil {
		return uuid.Nil, fmt.Errorf("creating session: %w", err)
	}
	return sess.ID, nil
}
