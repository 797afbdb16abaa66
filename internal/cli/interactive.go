package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Ask questions in a loop",
	Long: `Start a question loop over the store.

Commands inside the loop:
  <question>                    answer from retrieved passages
  search <query>                list matching passages
  search <query> in <subject>   list matching passages from one subject
  compare <query>; <query>...   show the best passages for each query
  subjects                      list the subjects in the store
  stats                         show store statistics
  quit                          exit`,
	RunE: runInteractive,
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
}

func runInteractive(cmd *cobra.Command, args []string) error {
	sess, err := openSession(storeDir(""))
	if err != nil {
		return err
	}
	defer sess.Close()

	cfg := GetConfig()
	return runREPL(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), sess, cfg.Retrieve.TopK, cfg.Retrieve.TokenBudget)
}

const (
	searchResults  = 3
	compareResults = 2
)

// runREPL reads one command per line until quit, EOF or cancellation.
// Failed commands are reported and the loop continues.
func runREPL(ctx context.Context, in io.Reader, out io.Writer, sess *session, k, budget int) error {
	fmt.Fprintln(out, "scirag question loop. Type a question, 'search <query> [in <subject>]',")
	fmt.Fprintln(out, "'compare <query>; <query>', 'subjects', 'stats' or 'quit'.")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\nQuestion: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		lower := strings.ToLower(line)
		var err error
		switch {
		case line == "":
			continue
		case lower == "quit" || lower == "exit" || lower == "q":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		case lower == "stats":
			err = replStats(ctx, out, sess)
		case lower == "subjects":
			err = replSubjects(ctx, out, sess)
		case lower == "search" || strings.HasPrefix(lower, "search "):
			query, subject := splitSubject(strings.TrimSpace(line[len("search"):]))
			err = replSearch(ctx, out, sess, query, subject)
		case lower == "compare" || strings.HasPrefix(lower, "compare "):
			err = replCompare(ctx, out, sess, strings.Split(line[len("compare"):], ";"))
		default:
			err = replAnswer(ctx, out, sess, line, k, budget)
		}
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}
}

func replStats(ctx context.Context, out io.Writer, sess *session) error {
	stats, err := sess.store.Stats(ctx)
	if err != nil {
		return err
	}
	printStoreStats(out, stats, sess.store.Path())
	return nil
}

func replSubjects(ctx context.Context, out io.Writer, sess *session) error {
	stats, err := sess.store.Stats(ctx)
	if err != nil {
		return err
	}
	if len(stats.UniqueSubjects) == 0 {
		fmt.Fprintln(out, "No subjects in the store.")
		return nil
	}
	fmt.Fprintf(out, "Available subjects (%d):\n", len(stats.UniqueSubjects))
	for _, s := range stats.UniqueSubjects {
		fmt.Fprintf(out, "  - %s\n", s)
	}
	return nil
}

// splitSubject splits "<query> in <subject>" at the last " in ".
func splitSubject(text string) (query, subject string) {
	i := strings.LastIndex(strings.ToLower(text), " in ")
	if i < 0 {
		return text, ""
	}
	return strings.TrimSpace(text[:i]), strings.TrimSpace(text[i+len(" in "):])
}

func replSearch(ctx context.Context, out io.Writer, sess *session, query, subject string) error {
	result, err := retrieve(ctx, sess.retriever, query, searchResults, queryFilter{subject: subject})
	if err != nil {
		return err
	}
	if subject != "" && len(result.Passages) > 0 {
		fmt.Fprintf(out, "Subject: %s\n", subject)
	}
	printPassages(out, result, true)
	return nil
}

func replCompare(ctx context.Context, out io.Writer, sess *session, queries []string) error {
	var asked []string
	for _, q := range queries {
		if q = strings.TrimSpace(q); q != "" {
			asked = append(asked, q)
		}
	}
	if len(asked) == 0 {
		return fmt.Errorf("usage: compare <query>; <query>")
	}

	for _, q := range asked {
		result, err := sess.retriever.Retrieve(ctx, q, compareResults, nil)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nQuery: %s\n", q)
		if len(result.Passages) == 0 {
			fmt.Fprintln(out, "  No results found.")
			continue
		}
		for i, p := range result.Passages {
			fmt.Fprintf(out, "  %d. %.3f %s\n", i+1, p.Similarity, truncate(p.Metadata.Title, 60))
		}
	}
	return nil
}

func replAnswer(ctx context.Context, out io.Writer, sess *session, question string, k, budget int) error {
	ans, err := sess.answers.Answer(ctx, question, k, budget, nil)
	if err != nil {
		return err
	}
	printAnswer(out, ans)
	return nil
}
