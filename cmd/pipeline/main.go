// Command pipeline runs the resolution pipeline stages from the terminal:
// intake, matching, merging, external-id backfill and promotion. Every
// mutating stage defaults to a dry run; --commit makes it write.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/atlas-maps/platform/pkg/common/config"
	"github.com/atlas-maps/platform/pkg/common/database"
	"github.com/atlas-maps/platform/pkg/common/kafka"
	"github.com/atlas-maps/platform/pkg/common/logger"
	"github.com/atlas-maps/platform/pkg/golden"
	"github.com/atlas-maps/platform/pkg/gpid"
	"github.com/atlas-maps/platform/pkg/ingest"
	"github.com/atlas-maps/platform/pkg/match"
	"github.com/atlas-maps/platform/pkg/merge"
	"github.com/atlas-maps/platform/pkg/places"
	"github.com/atlas-maps/platform/pkg/promote"
	"github.com/atlas-maps/platform/pkg/rawstore"
	"github.com/atlas-maps/platform/pkg/review"
)

// app carries the wired services shared by the subcommands.
type app struct {
	cfg      *config.Config
	db       *gorm.DB
	producer *kafka.Producer

	raws     *rawstore.Repository
	goldens  *golden.Repository
	reviews  *review.Repository
	gpids    *gpid.Repository
	placeTab *promote.Repository

	matcher   *match.Matcher
	merger    *merge.Service
	resolver  *match.Service
	gpidSvc   *gpid.Service
	promoter  *promote.Service
	crawler   *ingest.Crawler
	placesAPI places.SearchClient
}

func newApp() (*app, error) {
	cfg := config.Load()

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	trust, err := merge.LoadTrustTable(cfg.TrustTiersPath)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		db:       db,
		producer: kafka.NewProducer(cfg.KafkaBrokers, cfg.PipelineTopic),
		raws:     rawstore.NewRepository(db),
		goldens:  golden.NewRepository(db),
		reviews:  review.NewRepository(db),
		gpids:    gpid.NewRepository(db),
		placeTab: promote.NewRepository(db),
	}

	a.matcher = match.NewMatcher(cfg.NearbyRadiusMeters, cfg.NameSimilarityThreshold, cfg.TextQuerySuffix, cfg.TextSearchMaxResults)
	a.merger = merge.NewService(a.goldens, a.raws, trust, a.producer)
	a.resolver = match.NewService(a.raws, a.goldens, a.matcher, a.reviews, a.merger, a.producer)

	cache := database.NewRedis(cfg)
	a.placesAPI = places.NewHTTPClient(cfg, cache)
	a.gpidSvc = gpid.NewService(a.gpids, a.goldens, a.matcher, a.placesAPI, a.producer)
	a.promoter = promote.NewService(a.goldens, a.placeTab, a.producer)
	a.crawler = ingest.NewCrawler(a.raws, nil)
	return a, nil
}

func (a *app) close() {
	if a.producer != nil {
		_ = a.producer.Close()
	}
	database.Close(a.db)
}

func main() {
	logger.InitText()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:           "pipeline",
		Short:         "Entity resolution pipeline for the place catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		migrateCmd(),
		ingestCmd(),
		resolveCmd(),
		mergeCmd(),
		gpidCmd(),
		promoteCmd(),
		archiveCmd(),
	)

	if err := root.ExecuteContext(ctx); err != nil {
		logger.Log.WithError(err).Fatal("command failed")
	}
}

// withApp wires the services, runs fn, and tears down afterwards.
func withApp(fn func(ctx context.Context, a *app, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()
		return fn(cmd.Context(), a, args)
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the pipeline tables",
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			steps := []func() error{
				a.raws.AutoMigrate,
				a.goldens.AutoMigrate,
				a.reviews.Migrate,
				a.gpids.Migrate,
				a.placeTab.Migrate,
			}
			for _, step := range steps {
				if err := step(); err != nil {
					return err
				}
			}
			logger.Log.Info("migrations applied")
			return nil
		}),
	}
}

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load source observations into the raw store",
	}

	var batchID, source string

	csvCmd := &cobra.Command{
		Use:   "csv <file>",
		Short: "Ingest an editorial CSV sheet",
		Args:  cobra.ExactArgs(1),
	}
	csvCmd.RunE = withApp(func(ctx context.Context, a *app, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		summary, err := ingest.IngestCSV(ctx, a.raws, f, source, batchID)
		if err != nil {
			return err
		}
		fmt.Printf("read=%d ingested=%d skipped=%d errors=%d\n",
			summary.Read, summary.Ingested, summary.Skipped, summary.Errors)
		return nil
	})
	csvCmd.Flags().StringVar(&source, "source", rawstore.SourceEditorialSecondary, "source name for the sheet")

	crawlCmd := &cobra.Command{
		Use:   "crawl <url>...",
		Short: "Scrape venue websites",
		Args:  cobra.MinimumNArgs(1),
	}
	crawlCmd.RunE = withApp(func(ctx context.Context, a *app, args []string) error {
		summary, err := a.crawler.IngestURLs(ctx, args, batchID)
		if err != nil {
			return err
		}
		fmt.Printf("read=%d ingested=%d errors=%d\n", summary.Read, summary.Ingested, summary.Errors)
		return nil
	})

	manualCmd := &cobra.Command{
		Use:   "manual <file>",
		Short: "Ingest a curated JSON file as manual-seed observations",
		Args:  cobra.ExactArgs(1),
	}
	manualCmd.RunE = withApp(func(ctx context.Context, a *app, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		summary, err := ingest.IngestManual(ctx, a.raws, f, batchID)
		if err != nil {
			return err
		}
		fmt.Printf("read=%d ingested=%d skipped=%d errors=%d\n",
			summary.Read, summary.Ingested, summary.Skipped, summary.Errors)
		return nil
	})

	var googleLimit int
	googleCmd := &cobra.Command{
		Use:   "google",
		Short: "Refresh provider details for golden records with a place id",
	}
	googleCmd.RunE = withApp(func(ctx context.Context, a *app, args []string) error {
		summary, err := ingest.BackfillDetails(ctx, a.goldens, a.placesAPI, a.raws, batchID, googleLimit)
		if err != nil {
			return err
		}
		fmt.Printf("read=%d ingested=%d errors=%d\n", summary.Read, summary.Ingested, summary.Errors)
		return nil
	})
	googleCmd.Flags().IntVar(&googleLimit, "limit", 0, "max records to refresh (0 = all)")

	cmd.PersistentFlags().StringVar(&batchID, "batch", "", "intake batch id")
	cmd.AddCommand(csvCmd, crawlCmd, manualCmd, googleCmd)
	return cmd
}

func resolveCmd() *cobra.Command {
	var opts match.BatchOptions
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Match unprocessed raw records against golden records",
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			summary, err := a.resolver.ResolveBatch(ctx, opts)
			if err != nil {
				return err
			}
			fmt.Printf("read=%d matched=%d created=%d ambiguous=%d no_match=%d skipped=%d errors=%d\n",
				summary.Read, summary.Matched, summary.Created, summary.Ambiguous,
				summary.NoMatch, summary.Skipped, summary.Errors)
			if !opts.Commit {
				fmt.Println("dry run; pass --commit to write")
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&opts.BatchID, "batch", "", "restrict to one intake batch")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "max records to process (0 = all)")
	cmd.Flags().BoolVar(&opts.Commit, "commit", false, "write links and queue entries")
	cmd.Flags().BoolVar(&opts.CreateMissing, "create-new", false, "create golden records for confident no-matches")
	return cmd
}

func mergeCmd() *cobra.Command {
	var canonicalID string
	var limit int
	var commit bool
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Recompute golden records from their linked observations",
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			if canonicalID != "" {
				if !commit {
					rec, err := a.merger.Preview(ctx, canonicalID)
					if err != nil {
						return err
					}
					fmt.Printf("%s: merge_quality=%v conflicts=%s (dry run)\n",
						rec.CanonicalID, deref(rec.MergeQuality), string(rec.FieldConflicts))
					return nil
				}
				return a.merger.MergeOne(ctx, canonicalID)
			}
			updated, failed, err := a.merger.MergeAll(ctx, limit, commit)
			if err != nil {
				return err
			}
			fmt.Printf("updated=%d failed=%d\n", updated, failed)
			if !commit {
				fmt.Println("dry run; pass --commit to write")
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&canonicalID, "canonical-id", "", "merge a single golden record")
	cmd.Flags().IntVar(&limit, "limit", 0, "max records to merge (0 = all)")
	cmd.Flags().BoolVar(&commit, "commit", false, "persist recomputed records")
	return cmd
}

func gpidCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gpid",
		Short: "Backfill external place ids on golden records",
	}

	var limit int
	var runID string
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Queue golden records missing an external id",
	}
	seedCmd.RunE = withApp(func(ctx context.Context, a *app, args []string) error {
		seeded, skipped, err := a.gpidSvc.Seed(ctx, runID, limit)
		if err != nil {
			return err
		}
		fmt.Printf("seeded=%d already_queued=%d\n", seeded, skipped)
		return nil
	})

	var commit bool
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Resolve queued records through the search provider",
	}
	runCmd.RunE = withApp(func(ctx context.Context, a *app, args []string) error {
		summary, err := a.gpidSvc.Run(ctx, limit, commit)
		if err != nil {
			return err
		}
		fmt.Printf("processed=%d matched=%d ambiguous=%d no_match=%d errors=%d\n",
			summary.Processed, summary.Matched, summary.Ambiguous, summary.NoMatch, summary.Errors)
		if !commit {
			fmt.Println("dry run; pass --commit to write")
		}
		return nil
	})
	runCmd.Flags().BoolVar(&commit, "commit", false, "apply resolved ids and queue updates")

	var decision, override, reviewer string
	applyCmd := &cobra.Command{
		Use:   "apply <queue-id>",
		Short: "Record a human verdict on a queued lookup",
		Args:  cobra.ExactArgs(1),
	}
	applyCmd.RunE = withApp(func(ctx context.Context, a *app, args []string) error {
		item, err := a.gpidSvc.Adjudicate(ctx, args[0], decision, override, reviewer)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s -> %s\n", item.QueueID, item.HumanDecision, item.CandidateGPID)
		return nil
	})
	applyCmd.Flags().StringVar(&decision, "decision", gpid.DecisionApply, "APPLY_GPID, MARK_NO_MATCH or MARK_AMBIGUOUS")
	applyCmd.Flags().StringVar(&override, "place-id", "", "override the candidate place id")
	applyCmd.Flags().StringVar(&reviewer, "by", "cli", "reviewer identity")

	cmd.PersistentFlags().IntVar(&limit, "limit", 0, "max records (0 = all)")
	seedCmd.Flags().StringVar(&runID, "run-id", "", "seed run identifier")
	cmd.AddCommand(seedCmd, runCmd, applyCmd)
	return cmd
}

func promoteCmd() *cobra.Command {
	var opts promote.Options
	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Insert merge-complete golden records into the production place table",
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			summary, err := a.promoter.Run(ctx, opts)
			if err != nil {
				return err
			}
			fmt.Printf("considered=%d promoted=%d skipped=%d ineligible=%d errors=%d\n",
				summary.Considered, summary.Promoted, summary.Skipped, summary.Ineligible, summary.Errors)
			if !(opts.Commit && opts.AllowPlacesWrite) {
				fmt.Println("dry run; pass --commit --allow-places-write to write")
			}
			return nil
		}),
	}
	cmd.Flags().Float64Var(&opts.Threshold, "threshold", 0.7, "minimum confidence")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "max records to consider (0 = all)")
	cmd.Flags().BoolVar(&opts.Commit, "commit", false, "first promotion gate")
	cmd.Flags().BoolVar(&opts.AllowPlacesWrite, "allow-places-write", false, "second promotion gate")
	return cmd
}

func archiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <canonical-id>...",
		Short: "Retire golden records from the active catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			for _, id := range args {
				if _, err := a.goldens.Get(ctx, id); err != nil {
					return fmt.Errorf("archive %s: %w", id, err)
				}
				if err := a.goldens.Archive(ctx, id); err != nil {
					return fmt.Errorf("archive %s: %w", id, err)
				}
				fmt.Printf("archived %s\n", id)
			}
			return nil
		}),
	}
}

func deref(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}
