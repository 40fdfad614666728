package archive

import (
	"fmt"

	"github.com/evmstream/processor/internal/common"
	"github.com/evmstream/processor/internal/filter"
)

// Identity attributes are always requested so that decoded entities carry
// enough to construct IDs and order items, regardless of what the caller
// selected.
var (
	defaultBlockFields = []string{"number", "hash", "parentHash", "timestamp"}
	defaultLogFields   = []string{"address", "data", "index", "transactionIndex", "topics", "removed"}
	defaultTxFields    = []string{"index", "hash", "from", "to", "input"}
)

// BuildQuery translates a plan segment into the archive's query document.
// toBlock is the segment end clamped to the observed archive height; the
// resulting window must be non-empty.
func BuildQuery(rng common.Range, request filter.BatchRequest, archiveHeight int64) (Query, error) {
	toBlock := rng.End()
	if archiveHeight < toBlock {
		toBlock = archiveHeight
	}
	if rng.From > toBlock {
		return Query{}, fmt.Errorf("empty query window: fromBlock %d is above toBlock %d", rng.From, toBlock)
	}

	q := Query{
		FromBlock: rng.From,
		ToBlock:   toBlock,
	}
	for _, clause := range request.Logs {
		q.Logs = append(q.Logs, LogRequest{
			Address:        clause.Address,
			Topics:         clause.Topics,
			FieldSelection: logFieldSelection(clause.FieldSelection),
		})
	}
	for _, clause := range request.Transactions {
		q.Transactions = append(q.Transactions, TxRequest{
			Address:        clause.Address,
			Sighash:        clause.Sighash,
			FieldSelection: txFieldSelection(clause.FieldSelection),
		})
	}
	return q, nil
}

// logFieldSelection assembles the selection for a log clause. A log item
// carries its enclosing transaction, so the transaction defaults are injected
// alongside the caller's selection.
func logFieldSelection(fs filter.FieldSelection) FieldSelection {
	return FieldSelection{
		Block:       selectFields(defaultBlockFields, fs.Block),
		Log:         selectFields(defaultLogFields, fs.Log),
		Transaction: selectFields(defaultTxFields, fs.Transaction),
	}
}

func txFieldSelection(fs filter.FieldSelection) FieldSelection {
	return FieldSelection{
		Block:       selectFields(defaultBlockFields, fs.Block),
		Transaction: selectFields(defaultTxFields, fs.Transaction),
	}
}

func selectFields(defaults []string, requested map[string]bool) map[string]bool {
	fields := make(map[string]bool, len(defaults)+len(requested))
	for _, field := range defaults {
		fields[field] = true
	}
	for field, on := range requested {
		if on {
			fields[field] = true
		}
	}
	return fields
}
