package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/atlasfleet/dispatch-cli/internal/ai"
	"github.com/atlasfleet/dispatch-cli/internal/export"
	"github.com/atlasfleet/dispatch-cli/internal/pipeline"
	"github.com/atlasfleet/dispatch-cli/internal/resolve"
	"github.com/atlasfleet/dispatch-cli/internal/store"
	syncpkg "github.com/atlasfleet/dispatch-cli/internal/sync"
	"github.com/atlasfleet/dispatch-cli/pkg/anthropic"
	"github.com/atlasfleet/dispatch-cli/pkg/gmail"
)

var (
	syncQuery   string
	syncLimit   int64
	syncMessage string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch new mailbox messages and process them into orders",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return eris.Wrap(err, "sync: open store")
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "sync: migrate store")
		}

		query := cfg.Sync.Query
		if syncQuery != "" {
			query = syncQuery
		}

		reader, err := gmail.NewReader(ctx, cfg.Gmail.CredentialsFile, cfg.Gmail.DelegatedUser, gmail.Options{
			Query:            query,
			FetchConcurrency: cfg.Gmail.FetchConcurrency,
		})
		if err != nil {
			return eris.Wrap(err, "sync: create mailbox reader")
		}

		pipe, err := buildPipeline(st)
		if err != nil {
			return err
		}

		seen, err := syncpkg.OpenSeenSet(seenPath())
		if err != nil {
			return eris.Wrap(err, "sync: open seen set")
		}
		defer seen.Close()

		limit := cfg.Gmail.MaxInitialScan
		if syncLimit > 0 {
			limit = syncLimit
		}

		engine := syncpkg.NewEngine(reader, pipe, syncpkg.NewCursorStore(cursorPath()), seen, syncpkg.Options{
			InitialScanLimit: limit,
			Buffer:           time.Duration(cfg.Sync.BufferSeconds) * time.Second,
		})

		var report *syncpkg.Report
		if syncMessage != "" {
			report, err = engine.ProcessOne(ctx, syncMessage)
		} else {
			report, err = engine.Synchronize(ctx)
		}
		if err != nil {
			return eris.Wrap(err, "sync")
		}

		fmt.Printf("fetched %d, skipped %d, processed %d (%d orders), failed %d\n",
			report.Fetched, report.Skipped, report.Processed, report.Orders, report.Failed)
		return nil
	},
}

// buildPipeline wires the processing stages against live services.
func buildPipeline(st store.Store) (*pipeline.Pipeline, error) {
	aiClient := anthropic.NewClient(cfg.Anthropic.Key)
	aiModel := cfg.Anthropic.Model
	maxTokens := cfg.Anthropic.MaxTokens

	resolver := resolve.NewResolver(newGeocodeClient())

	stages := []pipeline.Stage{
		pipeline.NewClassifyStage(ai.NewClassifier(aiClient, aiModel, maxTokens)),
		pipeline.NewExtractStage(ai.NewExtractor(aiClient, aiModel, maxTokens)),
		pipeline.NewGeocodeStage(resolver),
		pipeline.NewStorePersistStage(store.NewSink(st)),
	}

	if cfg.Geocode.CleanAddresses {
		stages = append(stages, pipeline.NewCleanStage(ai.NewCleaner(aiClient, aiModel, maxTokens)))
	}
	if cfg.Export.Path != "" {
		stages = append(stages, pipeline.NewExportPersistStage(export.NewWorkbook(cfg.Export.Path, cfg.Export.SheetName)))
	}

	pipe, err := pipeline.New(stages...)
	if err != nil {
		return nil, eris.Wrap(err, "sync: build pipeline")
	}
	return pipe, nil
}

func init() {
	syncCmd.Flags().StringVar(&syncQuery, "query", "", "override the mailbox search query for this run")
	syncCmd.Flags().Int64Var(&syncLimit, "limit", 0, "override the initial scan limit for this run")
	syncCmd.Flags().StringVar(&syncMessage, "message", "", "process a single message by id instead of syncing")
	rootCmd.AddCommand(syncCmd)
}
