package cmd

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	config "github.com/evmstream/processor/configs"
	"github.com/evmstream/processor/internal/common"
	"github.com/evmstream/processor/internal/filter"
	"github.com/evmstream/processor/internal/metrics"
	"github.com/evmstream/processor/internal/ops"
	"github.com/evmstream/processor/internal/processor"
	"github.com/evmstream/processor/internal/publisher"
	"github.com/evmstream/processor/internal/storage"
)

var (
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the processor",
		Long:  "Processes the configured block range against the configured filters and exits when the range is exhausted.",
		Run: func(cmd *cobra.Command, args []string) {
			RunProcessor(cmd, args)
		},
	}
)

func RunProcessor(cmd *cobra.Command, args []string) {
	db, err := storage.NewProgressConnector(&config.Cfg.Storage.Progress)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create progress storage")
	}
	defer db.Close()

	proc := buildProcessor(&config.Cfg)
	handler := buildHandler(&config.Cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return metrics.Serve(ctx, metrics.ListenPort(config.Cfg.Metrics.Port))
	})

	if config.Cfg.Ops.Enabled {
		// gin's Run blocks with no shutdown hook; the listener dies with the
		// process.
		go func() {
			if err := ops.Serve(config.Cfg.Ops, proc.Status()); err != nil {
				log.Error().Err(err).Msg("Ops listener failed")
			}
		}()
	}

	group.Go(func() error {
		defer cancel()
		return proc.Run(ctx, db, handler)
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal().Err(err).Msg("Processing failed")
	}
	log.Info().Msg("Processor finished")
}

func buildProcessor(cfg *config.Config) *processor.Processor {
	proc := processor.New().
		SetDataSource(cfg.Archive).
		SetBlockRange(rangeFromConfig(cfg.Range.FromBlock, cfg.Range.UntilBlock)).
		SetChain(cfg.Chain)

	for _, logFilter := range cfg.Filters.Logs {
		proc.AddLog(rangeFromConfig(logFilter.FromBlock, logFilter.UntilBlock), processor.LogOptions{
			Address: logFilter.Address,
			Topics:  logFilter.Topics,
			Fields:  filter.FieldSelection{Log: fieldSet(logFilter.Fields)},
		})
	}
	for _, txFilter := range cfg.Filters.Transactions {
		proc.AddTransaction(rangeFromConfig(txFilter.FromBlock, txFilter.UntilBlock), processor.TxOptions{
			Address: txFilter.Address,
			Sighash: txFilter.Sighash,
			Fields:  filter.FieldSelection{Transaction: fieldSet(txFilter.Fields)},
		})
	}
	return proc
}

// buildHandler returns the Kafka publishing handler when the publisher is
// enabled, a logging handler otherwise.
func buildHandler(cfg *config.Config) processor.Handler {
	if cfg.Publisher.Enabled {
		sink := publisher.GetInstance()
		return func(ctx processor.HandlerContext) error {
			return sink.PublishBlockData(ctx.Blocks)
		}
	}
	return func(ctx processor.HandlerContext) error {
		items := 0
		for _, block := range ctx.Blocks {
			items += len(block.Items)
		}
		ctx.Logger.Info().
			Int("blocks", len(ctx.Blocks)).
			Int("items", items).
			Int64("height", ctx.Blocks[len(ctx.Blocks)-1].Header.Height).
			Msg("Processed batch")
		return nil
	}
}

func rangeFromConfig(from int64, until int64) common.Range {
	if until > 0 {
		return common.NewRange(from, until)
	}
	return common.OpenRange(from)
}

func fieldSet(fields []string) map[string]bool {
	if len(fields) == 0 {
		return nil
	}
	set := make(map[string]bool, len(fields))
	for _, field := range fields {
		set[field] = true
	}
	return set
}
