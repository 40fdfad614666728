package filter

import (
	"github.com/evmstream/processor/internal/common"
)

// FieldSelection names the attributes requested per entity kind. Identity
// attributes are always delivered regardless of what the caller selects.
type FieldSelection struct {
	Block       map[string]bool
	Log         map[string]bool
	Transaction map[string]bool
}

func (fs FieldSelection) Merge(other FieldSelection) FieldSelection {
	return FieldSelection{
		Block:       mergeFields(fs.Block, other.Block),
		Log:         mergeFields(fs.Log, other.Log),
		Transaction: mergeFields(fs.Transaction, other.Transaction),
	}
}

func mergeFields(a, b map[string]bool) map[string]bool {
	if a == nil && b == nil {
		return nil
	}
	merged := make(map[string]bool, len(a)+len(b))
	for field, on := range a {
		if on {
			merged[field] = true
		}
	}
	for field, on := range b {
		if on {
			merged[field] = true
		}
	}
	return merged
}

// LogClause filters event logs. A nil Address matches any emitter. Topics are
// positional; each inner slice is an OR-set for that position.
type LogClause struct {
	Address        []string
	Topics         [][]string
	FieldSelection FieldSelection
}

// TxClause filters transactions by `to` address and method selector.
type TxClause struct {
	Address        []string
	Sighash        []string
	FieldSelection FieldSelection
}

// BatchRequest is the merged set of filter clauses attached to one plan
// segment.
type BatchRequest struct {
	Logs          []LogClause
	Transactions  []TxClause
	IncludeBlocks bool
}

// Merge concatenates clause lists, preserving registration order, and ORs
// boolean flags. Duplicated clauses are harmless for filter effects.
func (r BatchRequest) Merge(other BatchRequest) BatchRequest {
	merged := BatchRequest{
		IncludeBlocks: r.IncludeBlocks || other.IncludeBlocks,
	}
	merged.Logs = append(merged.Logs, r.Logs...)
	merged.Logs = append(merged.Logs, other.Logs...)
	merged.Transactions = append(merged.Transactions, r.Transactions...)
	merged.Transactions = append(merged.Transactions, other.Transactions...)
	return merged
}

func (r BatchRequest) IsEmpty() bool {
	return len(r.Logs) == 0 && len(r.Transactions) == 0
}

// NormalizeAddresses lowercases every address in the request in place so that
// filter keys compare equal to decoded item addresses.
func (r *BatchRequest) NormalizeAddresses() {
	for i := range r.Logs {
		for j, address := range r.Logs[i].Address {
			r.Logs[i].Address[j] = common.NormalizeAddress(address)
		}
	}
	for i := range r.Transactions {
		for j, address := range r.Transactions[i].Address {
			r.Transactions[i].Address[j] = common.NormalizeAddress(address)
		}
	}
}
