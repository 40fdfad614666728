package ingest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/evmstream/processor/internal/archive"
	"github.com/evmstream/processor/internal/common"
	"github.com/evmstream/processor/internal/filter"
	customLog "github.com/evmstream/processor/internal/log"
	"github.com/evmstream/processor/internal/metrics"
	"github.com/evmstream/processor/internal/plan"
)

const DEFAULT_ARCHIVE_POLL_INTERVAL = 5000 * time.Millisecond

// prefetchDepth is the capacity of the buffer of fetched-but-unconsumed
// batches. The fetch loop does not wait for room before fetching, so while the
// buffer is full it can hold one more fetched batch until the send succeeds.
const prefetchDepth = 3

// Batch is one unit of delivery: the decoded blocks of a contiguous range,
// sorted by height ascending. Range.To may exceed the last block's height when
// the archive reported an empty tail segment.
type Batch struct {
	Blocks         []common.BlockData
	Range          common.Range
	Request        filter.BatchRequest
	FetchStartTime time.Time
	FetchEndTime   time.Time
}

type fetchResult struct {
	batch *Batch
	err   error
}

// Pipeline prefetches plan segments ahead of consumption. A single fetch-loop
// goroutine owns the plan queue and feeds a bounded channel; the consumer
// drains it in FIFO order via NextBatch.
type Pipeline struct {
	client       archive.IArchiveClient
	pollInterval time.Duration
	logger       zerolog.Logger

	mu            sync.Mutex
	plan          []plan.Entry
	fetching      bool
	archiveHeight int64

	results chan fetchResult
}

func NewPipeline(client archive.IArchiveClient, batches []plan.Entry, pollInterval time.Duration) *Pipeline {
	if pollInterval <= 0 {
		pollInterval = DEFAULT_ARCHIVE_POLL_INTERVAL
	}
	return &Pipeline{
		client:        client,
		pollInterval:  pollInterval,
		logger:        customLog.NewLogger("ingest"),
		plan:          batches,
		archiveHeight: -1,
		results:       make(chan fetchResult, prefetchDepth),
	}
}

// ArchiveHeight returns the last observed archive height, -1 before the first
// observation.
func (p *Pipeline) ArchiveHeight() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.archiveHeight
}

// observeHeight keeps the archive height monotonically non-decreasing.
func (p *Pipeline) observeHeight(height int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if height > p.archiveHeight {
		p.archiveHeight = height
		metrics.ArchiveHeight.Set(float64(height))
	}
}

// NextBatch yields the next batch in strictly increasing range order. It
// returns (nil, nil) once the plan is exhausted. A failed fetch surfaces here
// with its context attached; the fetch loop has already exited by then.
func (p *Pipeline) NextBatch(ctx context.Context) (*Batch, error) {
	p.mu.Lock()
	if !p.fetching {
		p.fetching = true
		go p.fetchLoop(ctx)
	}
	p.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result, ok := <-p.results:
		if !ok {
			return nil, nil
		}
		return result.batch, result.err
	}
}

// fetchLoop drives prefetching: it fetches one segment at a time, blocks on
// the results buffer when prefetchDepth batches are waiting there, and exits
// when the plan is drained or a fetch fails terminally.
func (p *Pipeline) fetchLoop(ctx context.Context) {
	defer close(p.results)

	for {
		p.mu.Lock()
		if len(p.plan) == 0 {
			p.mu.Unlock()
			return
		}
		entry := p.plan[0]
		p.mu.Unlock()

		batch, err := p.fetchBatch(ctx, entry)
		if err != nil {
			select {
			case <-ctx.Done():
			case p.results <- fetchResult{err: fmt.Errorf("failed to ingest range %s: %w", entry.Range.String(), err)}:
			}
			return
		}

		p.advancePlan(entry, batch.Range.End())

		select {
		case <-ctx.Done():
			return
		case p.results <- fetchResult{batch: batch}:
		}
	}
}

// advancePlan pops the head segment, or shrinks it to the uncovered remainder
// when the archive answered only a prefix.
func (p *Pipeline) advancePlan(entry plan.Entry, coveredTo int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if coveredTo < entry.Range.End() {
		p.plan[0] = plan.Entry{
			Range:   common.Range{From: coveredTo + 1, To: entry.Range.To},
			Request: entry.Request,
		}
		return
	}
	p.plan = p.plan[1:]
}

func (p *Pipeline) fetchBatch(ctx context.Context, entry plan.Entry) (*Batch, error) {
	if err := p.waitForHeight(ctx, entry.Range.From); err != nil {
		return nil, err
	}

	query, err := archive.BuildQuery(entry.Range, entry.Request, p.ArchiveHeight())
	if err != nil {
		return nil, err
	}

	fetchStart := time.Now()
	response, err := p.client.Query(ctx, query)
	fetchEnd := time.Now()
	if err != nil {
		return nil, err
	}
	metrics.ArchiveFetchDuration.Observe(fetchEnd.Sub(fetchStart).Seconds())

	if response.ArchiveHeight != nil {
		p.observeHeight(*response.ArchiveHeight)
	}

	mappingStart := time.Now()
	rawBlocks := response.Blocks()
	blocks := make([]common.BlockData, 0, len(rawBlocks))
	for _, rawBlock := range rawBlocks {
		decoded, err := archive.DecodeBlock(rawBlock)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, decoded)
	}
	sort.Slice(blocks, func(i, j int) bool {
		return blocks[i].Header.Height < blocks[j].Header.Height
	})
	metrics.IngestMappingDuration.Observe(time.Since(mappingStart).Seconds())
	metrics.IngestBatchSize.Set(float64(len(blocks)))

	coveredTo := response.NextBlock - 1
	if coveredTo > entry.Range.End() {
		coveredTo = entry.Range.End()
	}
	if coveredTo < entry.Range.From {
		return nil, fmt.Errorf("archive response covers nothing: nextBlock %d is at or below fromBlock %d", response.NextBlock, entry.Range.From)
	}

	p.logger.Debug().
		Int("blocks", len(blocks)).
		Msgf("Fetched range [%d..%d]", entry.Range.From, coveredTo)

	return &Batch{
		Blocks:         blocks,
		Range:          common.NewRange(entry.Range.From, coveredTo),
		Request:        entry.Request,
		FetchStartTime: fetchStart,
		FetchEndTime:   fetchEnd,
	}, nil
}

// waitForHeight polls the archive until its height has reached the segment
// start. An archive with no data at all reports -1 and keeps the loop polling.
func (p *Pipeline) waitForHeight(ctx context.Context, from int64) error {
	for p.ArchiveHeight() < from {
		height, err := p.client.GetHeight(ctx)
		if err != nil {
			return fmt.Errorf("failed to poll archive height: %w", err)
		}
		p.observeHeight(height)
		if p.ArchiveHeight() >= from {
			return nil
		}

		p.logger.Debug().Msgf("Waiting for the archive to reach block %d, currently at %d", from, height)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.pollInterval):
		}
	}
	return nil
}
