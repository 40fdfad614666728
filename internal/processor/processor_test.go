package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/evmstream/processor/configs"
	"github.com/evmstream/processor/internal/archive"
	"github.com/evmstream/processor/internal/common"
	"github.com/evmstream/processor/internal/storage"
)

// archiveStub serves /status and /query for driver tests. Each /query call
// answers the requested window fully with one synthetic block per height.
type archiveStub struct {
	mu      sync.Mutex
	height  int64
	queries []archive.Query
}

func (a *archiveStub) Queries() []archive.Query {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]archive.Query{}, a.queries...)
}

func (a *archiveStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		height := a.height
		a.mu.Unlock()
		json.NewEncoder(w).Encode(archive.StatusResponse{
			ParquetBlockNumber: height,
			DbMaxBlockNumber:   height,
			DbMinBlockNumber:   0,
		})
	})
	mux.HandleFunc("/query", func(w http.ResponseWriter, r *http.Request) {
		var query archive.Query
		if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		a.mu.Lock()
		a.queries = append(a.queries, query)
		a.mu.Unlock()

		var blocks []archive.BatchBlock
		for height := query.FromBlock; height <= query.ToBlock; height++ {
			blocks = append(blocks, archive.BatchBlock{
				Block: archive.RawHeader{
					Number:    height,
					Hash:      fmt.Sprintf("0x%064d", height),
					Timestamp: 1600000000 + height,
				},
				Logs: []archive.RawLog{{
					Address:          "0xAbC0000000000000000000000000000000000001",
					Index:            0,
					TransactionIndex: 0,
					Topics:           []string{"0xtopic0"},
				}},
			})
		}
		json.NewEncoder(w).Encode(archive.QueryResponse{
			Data:      [][]archive.BatchBlock{blocks},
			NextBlock: query.ToBlock + 1,
		})
	})
	return mux
}

func newTestProcessor(url string) *Processor {
	return New().
		SetDataSource(config.ArchiveConfig{URL: url, SquidId: "test", PollIntervalMs: 1}).
		AddLog(common.OpenRange(0), LogOptions{
			Address: []string{"0xabc0000000000000000000000000000000000001"},
		})
}

func TestRunProcessesConfiguredRange(t *testing.T) {
	stub := &archiveStub{height: 25}
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	db, err := storage.NewMemoryConnector(&config.MemoryConfig{})
	require.NoError(t, err)

	var handled [][]common.BlockData
	proc := newTestProcessor(server.URL).SetBlockRange(common.NewRange(10, 20))
	err = proc.Run(context.Background(), db, func(ctx HandlerContext) error {
		handled = append(handled, ctx.Blocks)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, handled, 1)
	assert.Len(t, handled[0], 11)
	assert.Equal(t, int64(10), handled[0][0].Header.Height)
	assert.Equal(t, int64(20), handled[0][10].Header.Height)

	height, err := db.Connect()
	require.NoError(t, err)
	assert.Equal(t, int64(20), height)
	assert.Equal(t, int64(20), proc.Status().LastProcessedBlock())
}

func TestRunResumesFromPersistedHeight(t *testing.T) {
	stub := &archiveStub{height: 300}
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	db, err := storage.NewMemoryConnector(&config.MemoryConfig{})
	require.NoError(t, err)
	require.NoError(t, db.Advance(99))

	proc := newTestProcessor(server.URL).SetBlockRange(common.NewRange(0, 200))
	err = proc.Run(context.Background(), db, func(ctx HandlerContext) error {
		return nil
	})
	require.NoError(t, err)

	queries := stub.Queries()
	require.NotEmpty(t, queries)
	assert.Equal(t, int64(100), queries[0].FromBlock)

	height, err := db.Connect()
	require.NoError(t, err)
	assert.Equal(t, int64(200), height)
}

func TestRunExitsCleanlyWhenPastCeiling(t *testing.T) {
	stub := &archiveStub{height: 300}
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	db, err := storage.NewMemoryConnector(&config.MemoryConfig{})
	require.NoError(t, err)
	require.NoError(t, db.Advance(200))

	proc := newTestProcessor(server.URL).SetBlockRange(common.NewRange(0, 200))
	err = proc.Run(context.Background(), db, func(ctx HandlerContext) error {
		t.Fatal("handler must not run")
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, stub.Queries())
}

func TestRunHandlerErrorAbortsWithoutAdvancing(t *testing.T) {
	stub := &archiveStub{height: 25}
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	db, err := storage.NewMemoryConnector(&config.MemoryConfig{})
	require.NoError(t, err)

	handlerErr := errors.New("handler exploded")
	proc := newTestProcessor(server.URL).SetBlockRange(common.NewRange(10, 20))
	err = proc.Run(context.Background(), db, func(ctx HandlerContext) error {
		return handlerErr
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, handlerErr)

	height, err := db.Connect()
	require.NoError(t, err)
	assert.Equal(t, int64(-1), height)
}

func TestRunAdvancesThroughEmptySegments(t *testing.T) {
	// Serves matched blocks only below 15; the tail of the range comes back
	// empty but the checkpoint still reaches the range end.
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(archive.StatusResponse{ParquetBlockNumber: 25, DbMaxBlockNumber: 25})
	})
	mux.HandleFunc("/query", func(w http.ResponseWriter, r *http.Request) {
		var query archive.Query
		if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var blocks []archive.BatchBlock
		for height := query.FromBlock; height <= query.ToBlock && height < 15; height++ {
			blocks = append(blocks, archive.BatchBlock{
				Block: archive.RawHeader{Number: height, Hash: fmt.Sprintf("0x%064d", height), Timestamp: 1},
			})
		}
		json.NewEncoder(w).Encode(archive.QueryResponse{
			Data:      [][]archive.BatchBlock{blocks},
			NextBlock: query.ToBlock + 1,
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	db, err := storage.NewMemoryConnector(&config.MemoryConfig{})
	require.NoError(t, err)

	batches := 0
	proc := newTestProcessor(server.URL).SetBlockRange(common.NewRange(10, 20))
	err = proc.Run(context.Background(), db, func(ctx HandlerContext) error {
		batches++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, batches)

	height, err := db.Connect()
	require.NoError(t, err)
	assert.Equal(t, int64(20), height)
}

func TestRunNoRegistrationsInRange(t *testing.T) {
	db, err := storage.NewMemoryConnector(&config.MemoryConfig{})
	require.NoError(t, err)

	proc := New().
		SetDataSource(config.ArchiveConfig{URL: "http://localhost:0", SquidId: "test"}).
		SetBlockRange(common.NewRange(100, 200)).
		AddLog(common.NewRange(0, 50), LogOptions{})
	err = proc.Run(context.Background(), db, func(ctx HandlerContext) error {
		t.Fatal("handler must not run")
		return nil
	})
	require.NoError(t, err)
}
