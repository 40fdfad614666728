package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evmstream/processor/internal/archive"
	"github.com/evmstream/processor/internal/common"
	"github.com/evmstream/processor/internal/filter"
	"github.com/evmstream/processor/internal/plan"
)

type fakeArchive struct {
	mu        sync.Mutex
	heights   []int64
	responses []*archive.QueryResponse
	queryErr  error

	heightCalls int
	queries     []archive.Query
}

func (f *fakeArchive) GetHeight(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.heightCalls
	if idx >= len(f.heights) {
		idx = len(f.heights) - 1
	}
	f.heightCalls++
	return f.heights[idx], nil
}

func (f *fakeArchive) Query(ctx context.Context, query archive.Query) (*archive.QueryResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	f.queries = append(f.queries, query)
	if len(f.responses) == 0 {
		return &archive.QueryResponse{NextBlock: query.ToBlock + 1}, nil
	}
	response := f.responses[0]
	f.responses = f.responses[1:]
	return response, nil
}

func (f *fakeArchive) HeightCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heightCalls
}

func (f *fakeArchive) Queries() []archive.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]archive.Query(nil), f.queries...)
}

func rawBlocks(heights ...int64) [][]archive.BatchBlock {
	var group []archive.BatchBlock
	for _, h := range heights {
		group = append(group, archive.BatchBlock{
			Block: archive.RawHeader{Number: h, Hash: "0xabcdef1234567890"},
		})
	}
	return [][]archive.BatchBlock{group}
}

func singleEntryPlan(from, to int64) []plan.Entry {
	return []plan.Entry{{
		Range:   common.NewRange(from, to),
		Request: filter.BatchRequest{Logs: []filter.LogClause{{}}},
	}}
}

func TestPipelineDeliversSingleBatch(t *testing.T) {
	client := &fakeArchive{
		heights: []int64{25},
		responses: []*archive.QueryResponse{
			{Data: rawBlocks(10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20), NextBlock: 21},
		},
	}
	pipeline := NewPipeline(client, singleEntryPlan(10, 20), time.Millisecond)

	batch, err := pipeline.NextBatch(context.Background())
	require.NoError(t, err)
	require.NotNil(t, batch)
	assert.Equal(t, int64(10), batch.Range.From)
	assert.Equal(t, int64(20), batch.Range.End())
	assert.Len(t, batch.Blocks, 11)

	batch, err = pipeline.NextBatch(context.Background())
	require.NoError(t, err)
	assert.Nil(t, batch)
}

func TestPipelineRequeuesPartialRange(t *testing.T) {
	client := &fakeArchive{
		heights: []int64{25},
		responses: []*archive.QueryResponse{
			{Data: rawBlocks(10, 11, 12, 13, 14), NextBlock: 15},
			{Data: rawBlocks(15, 16, 17, 18, 19, 20), NextBlock: 21},
		},
	}
	pipeline := NewPipeline(client, singleEntryPlan(10, 20), time.Millisecond)

	first, err := pipeline.NextBatch(context.Background())
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, int64(10), first.Range.From)
	assert.Equal(t, int64(14), first.Range.End())
	assert.Len(t, first.Blocks, 5)

	second, err := pipeline.NextBatch(context.Background())
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, int64(15), second.Range.From)
	assert.Equal(t, int64(20), second.Range.End())
	assert.Len(t, second.Blocks, 6)

	done, err := pipeline.NextBatch(context.Background())
	require.NoError(t, err)
	assert.Nil(t, done)

	// the second query must start at the requeued block
	queries := client.Queries()
	require.Len(t, queries, 2)
	assert.Equal(t, int64(15), queries[1].FromBlock)
}

func TestPipelineDeliversBatchesInIncreasingOrder(t *testing.T) {
	client := &fakeArchive{heights: []int64{1000}}
	batches := []plan.Entry{
		{Range: common.NewRange(0, 99)},
		{Range: common.NewRange(100, 499)},
		{Range: common.NewRange(500, 999)},
	}
	pipeline := NewPipeline(client, batches, time.Millisecond)

	var previousTo int64 = -1
	for {
		batch, err := pipeline.NextBatch(context.Background())
		require.NoError(t, err)
		if batch == nil {
			break
		}
		assert.Greater(t, batch.Range.From, previousTo)
		previousTo = batch.Range.End()
	}
	assert.Equal(t, int64(999), previousTo)
}

func TestPipelineWaitsForArchiveHeight(t *testing.T) {
	client := &fakeArchive{
		heights: []int64{-1, 5, 25},
		responses: []*archive.QueryResponse{
			{Data: rawBlocks(10), NextBlock: 21},
		},
	}
	pipeline := NewPipeline(client, singleEntryPlan(10, 20), time.Millisecond)

	batch, err := pipeline.NextBatch(context.Background())
	require.NoError(t, err)
	require.NotNil(t, batch)
	// two observations below the segment start, then one above
	assert.Equal(t, 3, client.HeightCalls())
	assert.Equal(t, int64(25), pipeline.ArchiveHeight())
}

func TestPipelineQueryIsClampedToObservedHeight(t *testing.T) {
	client := &fakeArchive{
		heights: []int64{15, 25},
		responses: []*archive.QueryResponse{
			{Data: rawBlocks(10, 11, 12, 13, 14, 15), NextBlock: 16},
			{Data: rawBlocks(16, 17, 18, 19, 20), NextBlock: 21},
		},
	}
	pipeline := NewPipeline(client, singleEntryPlan(10, 20), time.Millisecond)

	first, err := pipeline.NextBatch(context.Background())
	require.NoError(t, err)
	require.NotNil(t, first)

	queries := client.Queries()
	require.NotEmpty(t, queries)
	assert.Equal(t, int64(15), queries[0].ToBlock)
}

func TestPipelineHeightIsMonotonic(t *testing.T) {
	pipeline := NewPipeline(&fakeArchive{heights: []int64{0}}, nil, time.Millisecond)
	pipeline.observeHeight(10)
	pipeline.observeHeight(5)
	assert.Equal(t, int64(10), pipeline.ArchiveHeight())
	pipeline.observeHeight(12)
	assert.Equal(t, int64(12), pipeline.ArchiveHeight())
}

func TestPipelineSurfacesFetchErrors(t *testing.T) {
	client := &fakeArchive{
		heights:  []int64{25},
		queryErr: errors.New("archive exploded"),
	}
	pipeline := NewPipeline(client, singleEntryPlan(10, 20), time.Millisecond)

	_, err := pipeline.NextBatch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[10..20]")
	assert.Contains(t, err.Error(), "archive exploded")
}

func TestPipelineStopsOnContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &fakeArchive{heights: []int64{-1}}
	pipeline := NewPipeline(client, singleEntryPlan(10, 20), time.Hour)

	_, err := pipeline.NextBatch(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
