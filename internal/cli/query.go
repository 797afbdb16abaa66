package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"scirag/internal/adapter/cache"
	"scirag/internal/domain"
	"scirag/internal/port"
)

var (
	queryText    string
	queryTopK    int
	querySubject string
	queryKind    string
	querySection string
	queryJSON    bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search the store",
	Long: `Search for passages semantically close to a query. Results are deduplicated
per article section and ordered by descending similarity.

Examples:
  scirag query -q "CRISPR gene editing"
  scirag query -q "root growth" --subject "Plant biology" --kind abstract -k 10 --json
  scirag query -q "sequencing depth" --section Methods`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().StringVar(&querySubject, "subject", "", "only passages from articles in this subject")
	queryCmd.Flags().StringVar(&queryKind, "kind", "", "only passages of this kind (abstract or section)")
	queryCmd.Flags().StringVar(&querySection, "section", "", "only passages from sections with this title")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.MarkFlagRequired("query")
}

func runQuery(cmd *cobra.Command, args []string) error {
	f := queryFilter{subject: querySubject, kind: queryKind, section: querySection}
	if err := f.validate(); err != nil {
		return err
	}

	sess, err := openSession(storeDir(""))
	if err != nil {
		return err
	}
	defer sess.Close()

	result, err := retrieve(cmd.Context(), sess.retriever, queryText, topK(queryTopK), f)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if queryJSON {
		return writeJSON(cmd.OutOrStdout(), result)
	}
	printPassages(cmd.OutOrStdout(), result, true)
	return nil
}

func topK(flag int) int {
	if flag > 0 {
		return flag
	}
	return GetConfig().Retrieve.TopK
}

// queryFilter is the metadata restriction a user can put on a search.
type queryFilter struct {
	subject string
	kind    string
	section string
}

func (f queryFilter) validate() error {
	if f.kind != "" && !domain.ChunkKind(f.kind).IsValid() {
		return fmt.Errorf("invalid kind %q: want %q or %q", f.kind, domain.KindAbstract, domain.KindSection)
	}
	return nil
}

func (f queryFilter) filter() domain.Filter {
	var filters []domain.Filter
	if f.subject != "" {
		filters = append(filters, domain.BySubject(f.subject))
	}
	if f.kind != "" {
		filters = append(filters, domain.ByKind(domain.ChunkKind(f.kind)))
	}
	if f.section != "" {
		filters = append(filters, domain.BySectionTitle(f.section))
	}
	return domain.And(filters...)
}

// key identifies the filter for the query cache.
func (f queryFilter) key() string {
	if f.subject == "" && f.kind == "" && f.section == "" {
		return ""
	}
	return fmt.Sprintf("subject=%s;kind=%s;section=%s", f.subject, f.kind, f.section)
}

// retrieve runs a filtered search, keying the cache by the filter when the retriever caches.
func retrieve(ctx context.Context, r port.Retriever, query string, k int, f queryFilter) (domain.RetrievalResult, error) {
	if cached, ok := r.(*cache.CachedRetriever); ok {
		return cached.RetrieveKeyed(ctx, query, k, f.filter(), f.key())
	}
	return r.Retrieve(ctx, query, k, f.filter())
}
