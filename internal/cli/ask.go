package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"scirag/internal/usecase"
)

var (
	askQuery  string
	askTopK   int
	askBudget int
	askPrompt bool
	askJSON   bool
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer a question from retrieved passages",
	Long: `Retrieve passages for a question, assemble them into a numbered context
within a token budget and answer with a per-article summary.

With --prompt the assembled answer-generation prompt is printed instead, ready
to be fed to a language model.

Examples:
  scirag ask -q "How do bacteria defend against phages?"
  scirag ask -q "What limits base editing?" --budget 2000 --prompt`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askQuery, "query", "q", "", "question (required)")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "passages to retrieve (default from config)")
	askCmd.Flags().IntVarP(&askBudget, "budget", "b", 0, "context token budget (default from config)")
	askCmd.Flags().BoolVar(&askPrompt, "prompt", false, "print the answer-generation prompt")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output as JSON")
	askCmd.MarkFlagRequired("query")
}

func runAsk(cmd *cobra.Command, args []string) error {
	budget := GetConfig().Retrieve.TokenBudget
	if askBudget > 0 {
		budget = askBudget
	}

	sess, err := openSession(storeDir(""))
	if err != nil {
		return err
	}
	defer sess.Close()

	out := cmd.OutOrStdout()
	ans, err := sess.answers.Answer(cmd.Context(), askQuery, topK(askTopK), budget, nil)
	if err != nil {
		return fmt.Errorf("answer failed: %w", err)
	}

	switch {
	case askPrompt:
		fmt.Fprintln(out, usecase.AnswerPrompt(askQuery, ans.Context.Text))
	case askJSON:
		return writeJSON(out, ans)
	default:
		printAnswer(out, ans)
	}
	return nil
}
