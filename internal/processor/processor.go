package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	config "github.com/evmstream/processor/configs"
	"github.com/evmstream/processor/internal/archive"
	"github.com/evmstream/processor/internal/common"
	"github.com/evmstream/processor/internal/filter"
	"github.com/evmstream/processor/internal/ingest"
	customLog "github.com/evmstream/processor/internal/log"
	"github.com/evmstream/processor/internal/metrics"
	"github.com/evmstream/processor/internal/plan"
	"github.com/evmstream/processor/internal/storage"
)

// LogOptions selects which logs a registration matches and which attributes
// the decoded entities carry. Unselected attributes come back zero-valued.
type LogOptions struct {
	Address []string
	Topics  [][]string
	Fields  filter.FieldSelection
}

// TxOptions selects transactions by `to` address and method sighash.
type TxOptions struct {
	Address []string
	Sighash []string
	Fields  filter.FieldSelection
}

// HandlerContext is what the user handler receives per non-empty batch. Store
// is the backend transaction handle; writes through it commit or roll back as
// one unit. The progress checkpoint is advanced in a separate step after that
// commit.
type HandlerContext struct {
	Blocks []common.BlockData
	Store  storage.Store
	Logger zerolog.Logger
	Chain  config.ChainConfig
}

type Handler func(ctx HandlerContext) error

// Processor wires the filter registrations, the archive source and the
// progress database into the outer processing loop.
type Processor struct {
	archiveCfg    config.ArchiveConfig
	blockRange    common.Range
	chain         config.ChainConfig
	registrations []plan.Entry
	logger        zerolog.Logger

	status *Status
}

// Status is the live view exposed to the ops listener. The zero state reports
// -1 for both heights.
type Status struct {
	lastProcessed int64
	archiveHeight func() int64
}

func New() *Processor {
	return &Processor{
		blockRange: common.OpenRange(0),
		logger:     customLog.NewLogger("processor"),
		status: &Status{
			lastProcessed: -1,
			archiveHeight: func() int64 { return -1 },
		},
	}
}

func (p *Processor) SetDataSource(cfg config.ArchiveConfig) *Processor {
	p.archiveCfg = cfg
	return p
}

func (p *Processor) SetBlockRange(rng common.Range) *Processor {
	p.blockRange = rng
	return p
}

func (p *Processor) SetChain(chain config.ChainConfig) *Processor {
	p.chain = chain
	return p
}

// AddLog registers a log filter over the given range. The registration order
// determines clause order in the archive query.
func (p *Processor) AddLog(rng common.Range, options LogOptions) *Processor {
	p.registrations = append(p.registrations, plan.Entry{
		Range: rng,
		Request: filter.BatchRequest{
			Logs: []filter.LogClause{{
				Address:        options.Address,
				Topics:         options.Topics,
				FieldSelection: options.Fields,
			}},
		},
	})
	return p
}

func (p *Processor) AddTransaction(rng common.Range, options TxOptions) *Processor {
	p.registrations = append(p.registrations, plan.Entry{
		Range: rng,
		Request: filter.BatchRequest{
			Transactions: []filter.TxClause{{
				Address:        options.Address,
				Sighash:        options.Sighash,
				FieldSelection: options.Fields,
			}},
		},
	})
	return p
}

// Status returns the live progress view. Safe to read concurrently with Run;
// int64 fields are updated only between handler invocations.
func (p *Processor) Status() *Status {
	return p.status
}

func (s *Status) LastProcessedBlock() int64 {
	return s.lastProcessed
}

func (s *Status) ArchiveHeight() int64 {
	return s.archiveHeight()
}

// Run drives the loop: resume from the persisted height, fetch batches in
// order, invoke the handler transactionally, advance the checkpoint. It
// returns nil when the plan is exhausted or the configured ceiling was
// already reached.
func (p *Processor) Run(ctx context.Context, db storage.IProgressStorage, handler Handler) error {
	heightAtStart, err := db.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to progress database: %w", err)
	}
	p.status.lastProcessed = heightAtStart

	if !p.blockRange.IsOpen() && *p.blockRange.To < heightAtStart+1 {
		p.logger.Info().
			Int64("height", heightAtStart).
			Int64("untilBlock", *p.blockRange.To).
			Msg("Already processed past the configured ceiling, nothing to do")
		return nil
	}

	effectiveFrom := p.blockRange.From
	if heightAtStart+1 > effectiveFrom {
		effectiveFrom = heightAtStart + 1
	}
	effectiveRange := common.Range{From: effectiveFrom, To: p.blockRange.To}

	for i := range p.registrations {
		p.registrations[i].Request.NormalizeAddresses()
	}
	batches := plan.ApplyBound(plan.Build(p.registrations), effectiveRange)
	if len(batches) == 0 {
		p.logger.Info().Msg("No filter registrations cover the effective range, nothing to do")
		return nil
	}

	client, err := archive.NewClient(&p.archiveCfg)
	if err != nil {
		return err
	}
	client.SetRetryObserver(func(err error, query *archive.Query, errorsInRow int, backoffMs int) {
		metrics.ArchiveRetries.Inc()
		p.logger.Warn().
			Err(err).
			Int("errorsInRow", errorsInRow).
			Int("backoffMs", backoffMs).
			Msg("Archive request failed, retrying")
	})

	pipeline := ingest.NewPipeline(client, batches, time.Duration(p.archiveCfg.PollIntervalMs)*time.Millisecond)
	p.status.archiveHeight = pipeline.ArchiveHeight

	p.logger.Info().
		Int64("fromBlock", effectiveFrom).
		Int("segments", len(batches)).
		Msg("Starting processing")

	for {
		batch, err := pipeline.NextBatch(ctx)
		if err != nil {
			return err
		}
		if batch == nil {
			p.logger.Info().Int64("height", p.status.lastProcessed).Msg("Plan exhausted, processing complete")
			return nil
		}

		if err := p.processBatch(db, batch, handler); err != nil {
			return err
		}
	}
}

func (p *Processor) processBatch(db storage.IProgressStorage, batch *ingest.Batch, handler Handler) error {
	if len(batch.Blocks) > 0 {
		from := batch.Blocks[0].Header.Height
		to := batch.Blocks[len(batch.Blocks)-1].Header.Height

		handlerStart := time.Now()
		err := db.Transact(from, to, func(store storage.Store) error {
			return handler(HandlerContext{
				Blocks: batch.Blocks,
				Store:  store,
				Logger: p.logger,
				Chain:  p.chain,
			})
		})
		if err != nil {
			return fmt.Errorf("handler failed for blocks %d-%d: %w", from, to, err)
		}
		metrics.HandlerDuration.Observe(time.Since(handlerStart).Seconds())

		items := 0
		for _, block := range batch.Blocks {
			items += len(block.Items)
		}
		metrics.ProcessedBlocks.Add(float64(len(batch.Blocks)))
		metrics.ProcessedItems.Add(float64(items))
	}

	// Range.To may exceed the last decoded height when the archive reported
	// an empty tail; the checkpoint still moves so the segment is not refetched.
	lastBlock := batch.Range.End()
	if err := db.Advance(lastBlock); err != nil {
		return fmt.Errorf("failed to advance progress to %d: %w", lastBlock, err)
	}
	p.status.lastProcessed = lastBlock

	metrics.ProcessedBatches.Inc()
	metrics.LastProcessedBlock.Set(float64(lastBlock))

	p.logger.Debug().
		Int("blocks", len(batch.Blocks)).
		Int64("height", lastBlock).
		Msgf("Processed range [%d..%d]", batch.Range.From, lastBlock)
	return nil
}
