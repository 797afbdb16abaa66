package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"scirag/config"
	"scirag/internal/adapter/jats"
	"scirag/internal/logger"
	"scirag/internal/usecase"
)

var (
	buildRecursive   bool
	buildMaxFiles    int
	buildOutput      string
	buildBatchSize   int
	buildWorkers     int
	buildNoFilter    bool
	buildCategories  string
	buildTest        bool
	buildInteractive bool
)

// smokeQueries are run by build --test against the fresh store.
var smokeQueries = []string{
	"CRISPR gene editing",
	"protein structure",
	"bacterial resistance",
	"machine learning",
}

var buildCmd = &cobra.Command{
	Use:   "build <xml-dir>",
	Short: "Build the vector store from article XML",
	Long: `Parse every *.xml article in a directory, keep those in the configured
categories, chunk them into abstract and section passages, embed the passages
and write them to the store (default ./scirag_db/store.db).

Files that fail to parse are reported and skipped; the build still succeeds.

Examples:
  scirag build ./subset_xml
  scirag build ./xml --recursive --max-files 100
  scirag build ./data --output ./my_db --batch-size 10 --test`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().BoolVarP(&buildRecursive, "recursive", "r", false, "search subdirectories for XML files")
	buildCmd.Flags().IntVarP(&buildMaxFiles, "max-files", "m", 0, "maximum number of files to process (default: all)")
	buildCmd.Flags().StringVarP(&buildOutput, "output", "o", "", "store directory (default from config)")
	buildCmd.Flags().IntVarP(&buildBatchSize, "batch-size", "b", 0, "chunks per embedding batch (default from config)")
	buildCmd.Flags().IntVarP(&buildWorkers, "workers", "w", 0, "parallel parse workers (default from config)")
	buildCmd.Flags().BoolVar(&buildNoFilter, "no-filter", false, "keep articles of every category")
	buildCmd.Flags().StringVar(&buildCategories, "categories", "", "YAML file listing the categories to keep")
	buildCmd.Flags().BoolVar(&buildTest, "test", false, "run sample queries after building")
	buildCmd.Flags().BoolVar(&buildInteractive, "interactive", false, "start the question loop after building")
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	out := cmd.OutOrStdout()

	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	opts := usecase.IngestOptions{
		Recursive:       cfg.Ingest.Recursive || buildRecursive,
		MaxFiles:        cfg.Ingest.MaxFiles,
		BatchSize:       cfg.Ingest.BatchSize,
		Workers:         cfg.Ingest.Workers,
		QueueSize:       cfg.Ingest.QueueSize,
		CheckCategories: cfg.Filter.Enabled && !buildNoFilter,
	}
	if buildMaxFiles > 0 {
		opts.MaxFiles = buildMaxFiles
	}
	if buildBatchSize > 0 {
		opts.BatchSize = buildBatchSize
	}
	if buildWorkers > 0 {
		opts.Workers = buildWorkers
	}
	if opts.CheckCategories {
		opts.Keep, err = keepSet(buildCategories)
		if err != nil {
			return err
		}
		logger.Debug("category filter", "keep", opts.Keep)
	}

	emb, err := newEmbedder()
	if err != nil {
		return err
	}
	chk, err := newChunker()
	if err != nil {
		return err
	}

	dir := storeDir(buildOutput)
	if err := config.EnsureStoreDir(dir); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	st, err := openStore(dir, emb, true)
	if err != nil {
		return err
	}
	defer st.Close()

	if st.ConfigChanged(config.ComputeConfigHash(cfg)) {
		logger.Warn("chunking or embedding settings changed since the store was created; existing records keep the old settings", "store", st.Path())
	}

	fmt.Fprintf(out, "Scanning %s...\n", path)
	opts.Progress = newProgress(out)

	sess := newSession(emb, st)
	start := time.Now()
	stats, err := sess.ingest(cmd.Context(), usecase.NewIngestUseCase(jats.NewParser(), chk, emb, st), path, opts)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	printIngestStats(out, stats, time.Since(start))
	fmt.Fprintf(out, "\nStore written to: %s\n", st.Path())

	if buildTest {
		if err := runSmokeQueries(cmd.Context(), out, sess); err != nil {
			return err
		}
	}
	if buildInteractive {
		return runREPL(cmd.Context(), cmd.InOrStdin(), out, sess, cfg.Retrieve.TopK, cfg.Retrieve.TokenBudget)
	}
	return nil
}

// newProgress returns an ingest progress callback drawing a bar with an ETA.
func newProgress(w io.Writer) func(done, total int) {
	var (
		bar       *progressbar.ProgressBar
		startTime time.Time
	)

	return func(done, total int) {
		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(w),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Building[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(w)
				}),
			)
		}

		_ = bar.Set(done)

		elapsed := time.Since(startTime)
		if done > 0 && elapsed > 0 {
			rate := float64(done) / elapsed.Seconds()
			if rate > 0 {
				eta := time.Duration(float64(total-done)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]Building[reset] ETA: %s", formatDuration(eta)))
			}
		}
	}
}

func runSmokeQueries(ctx context.Context, w io.Writer, sess *session) error {
	stats, err := sess.store.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\nTesting store: %d chunks, %d subjects\n", stats.TotalChunks, len(stats.UniqueSubjects))

	for _, q := range smokeQueries {
		result, err := sess.retriever.Retrieve(ctx, q, 2, nil)
		if err != nil {
			return fmt.Errorf("test query %q failed: %w", q, err)
		}
		if len(result.Passages) == 0 {
			fmt.Fprintf(w, "  %-24s no results\n", q)
			continue
		}
		top := result.Passages[0]
		fmt.Fprintf(w, "  %-24s %d results, top %.3f %s\n", q, len(result.Passages), top.Similarity, truncate(top.Metadata.Title, 50))
	}
	return nil
}
