// ABOUTME: Search command over the SQLite index
// ABOUTME: FTS, vector, and hybrid retrieval with time filters and exit codes
package commands

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/recallhq/recall/internal/config"
	"github.com/recallhq/recall/internal/embedding"
	"github.com/recallhq/recall/internal/index"
	"github.com/recallhq/recall/internal/memerr"
	"github.com/recallhq/recall/internal/models"
	"github.com/recallhq/recall/internal/util"
)

// Exit codes for scripting: 0 = results, 1 = no results, 2 = index missing.
const (
	exitNoResults    = 1
	exitIndexMissing = 2
)

var (
	searchMethod     string
	searchMaxResults int
	searchDays       int
	searchFrom       string
	searchTo         string
)

// NewSearchCmd creates the search command
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed memories",
		Long: `Search the index with full-text, vector, or hybrid ranking.

Vector and hybrid search need an embedding provider (OPENAI_API_KEY);
hybrid degrades to full-text only when none is available.

Exit codes: 0 with results, 1 with none, 2 when the index is missing.

Examples:
  recall search "database migration"
  recall search "error handling" --method fts --days 7
  recall search "deploy" --from 2026-08-01 --to 2026-08-15`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSearch,
	}

	cmd.Flags().StringVar(&searchMethod, "method", "hybrid", "Ranking method: fts, vector, or hybrid")
	cmd.Flags().IntVar(&searchMaxResults, "max-results", 10, "Maximum results to return")
	cmd.Flags().IntVar(&searchDays, "days", -1, "Only results from the last N days (0 = today)")
	cmd.Flags().StringVar(&searchFrom, "from", "", "Inclusive start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&searchTo, "to", "", "Inclusive end date (YYYY-MM-DD)")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, _, err := openLedger()
	if err != nil {
		return err
	}
	if cfg.Disabled() {
		return emitDisabled(cmd, "search")
	}
	if err := validatePositiveInt(searchMaxResults, "max-results"); err != nil {
		return err
	}
	query := strings.Join(args, " ")

	db, err := index.OpenExisting(cfg.IndexPath())
	if errors.Is(err, memerr.ErrIndexMissing) {
		exitStatus = exitIndexMissing
		return emitError(cmd, "search", "index missing, run: recall sync")
	}
	if err != nil {
		return fmt.Errorf("opening index: %w", err)
	}
	defer db.Close()

	tf := index.TimeFilter{From: searchFrom, To: searchTo}
	if searchDays >= 0 {
		tf.Days, tf.HasDays = searchDays, true
	}

	searcher := index.NewSearcher(db, util.TodayStr())
	var results []*models.SearchResult
	switch searchMethod {
	case "fts":
		results, err = searcher.SearchFTS(query, searchMaxResults, tf)
	case "vector":
		vec, embedErr := embedQuery(cmd.Context(), cfg, query)
		if embedErr != nil {
			return embedErr
		}
		results, err = searcher.SearchVector(vec, searchMaxResults, tf)
	case "hybrid":
		vec, embedErr := embedQuery(cmd.Context(), cfg, query)
		if embedErr != nil {
			if verbose {
				log.Printf("[CLI] embedding unavailable, using full-text only: %v", embedErr)
			}
			vec = nil
		}
		results, err = searcher.SearchHybrid(query, vec, searchMaxResults, cfg.FTSWeight, cfg.VectorWeight, tf)
	default:
		return fmt.Errorf("method must be fts, vector, or hybrid; got %q", searchMethod)
	}
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	if len(results) == 0 {
		exitStatus = exitNoResults
	}

	if textOutput() {
		printResultsTable(cmd, results)
		return nil
	}
	return emitJSON(cmd, "search", map[string]any{
		"query":   query,
		"method":  searchMethod,
		"count":   len(results),
		"results": results,
	})
}

// embedQuery produces a query vector, failing when no provider is configured.
func embedQuery(ctx context.Context, cfg *config.Config, query string) ([]float32, error) {
	provider := embedding.ActiveProvider(cfg)
	if provider == nil {
		return nil, fmt.Errorf("no embedding provider configured (set OPENAI_API_KEY)")
	}
	return provider.Embed(ctx, query)
}

func printResultsTable(cmd *cobra.Command, results []*models.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No results")
		return
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SCORE\tTYPE\tDATE\tCONTENT\n")
	for _, r := range results {
		date := r.Timestamp
		if len(date) >= 10 {
			date = date[:10]
		}
		fmt.Fprintf(w, "%.3f\t%s\t%s\t%s\n", r.Score, r.Type, date, truncateText(r.Content, 70))
	}
	w.Flush()
}
