package archive

import (
	"fmt"
	"sort"

	"github.com/evmstream/processor/internal/common"
)

// DecodeBlock maps one archive block to its typed form, assigns entity IDs
// and orders the items. Logs sort by (transactionIndex, logIndex),
// transactions by index, and a log sorts before its own transaction.
func DecodeBlock(raw BatchBlock) (common.BlockData, error) {
	header, err := decodeHeader(raw.Block)
	if err != nil {
		return common.BlockData{}, &DecodeError{BlockHeight: raw.Block.Number, BlockHash: raw.Block.Hash, Cause: err}
	}

	transactions := make(map[int]*common.Transaction, len(raw.Transactions))
	for _, rawTx := range raw.Transactions {
		tx, err := decodeTransaction(header, rawTx)
		if err != nil {
			return common.BlockData{}, &DecodeError{BlockHeight: header.Height, BlockHash: header.Hash, Cause: err}
		}
		transactions[tx.Index] = tx
	}

	logs := make(map[int]*common.Log, len(raw.Logs))
	for _, rawLog := range raw.Logs {
		logs[rawLog.Index] = decodeLog(header, rawLog)
	}

	items := make([]common.Item, 0, len(logs)+len(transactions))
	for _, decodedLog := range logs {
		items = append(items, common.Item{
			Kind:        common.ItemKindLog,
			Address:     decodedLog.Address,
			Log:         decodedLog,
			Transaction: transactions[decodedLog.TransactionIndex],
		})
	}
	for _, tx := range transactions {
		address := tx.To
		if address == "" {
			// contract creation
			address = tx.From
		}
		items = append(items, common.Item{
			Kind:        common.ItemKindTransaction,
			Address:     address,
			Transaction: tx,
		})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Less(items[j])
	})

	return common.BlockData{Header: header, Items: items}, nil
}

func decodeHeader(raw RawHeader) (common.BlockHeader, error) {
	nonce, err := common.HexToBigInt(raw.Nonce)
	if err != nil {
		return common.BlockHeader{}, fmt.Errorf("invalid block nonce: %w", err)
	}
	size, err := common.HexToBigInt(raw.Size)
	if err != nil {
		return common.BlockHeader{}, fmt.Errorf("invalid block size: %w", err)
	}
	gasLimit, err := common.HexToBigInt(raw.GasLimit)
	if err != nil {
		return common.BlockHeader{}, fmt.Errorf("invalid block gasLimit: %w", err)
	}
	gasUsed, err := common.HexToBigInt(raw.GasUsed)
	if err != nil {
		return common.BlockHeader{}, fmt.Errorf("invalid block gasUsed: %w", err)
	}

	return common.BlockHeader{
		Id:               fmt.Sprintf("%d-%s", raw.Number, hashSlice(raw.Hash, 3, 7)),
		Height:           raw.Number,
		Hash:             raw.Hash,
		ParentHash:       raw.ParentHash,
		Timestamp:        raw.Timestamp * 1000,
		Nonce:            nonce,
		Sha3Uncles:       raw.Sha3Uncles,
		LogsBloom:        raw.LogsBloom,
		TransactionsRoot: raw.TransactionsRoot,
		StateRoot:        raw.StateRoot,
		ReceiptsRoot:     raw.ReceiptsRoot,
		Miner:            raw.Miner,
		Difficulty:       raw.Difficulty,
		TotalDifficulty:  raw.TotalDifficulty,
		ExtraData:        raw.ExtraData,
		Size:             size,
		GasLimit:         gasLimit,
		GasUsed:          gasUsed,
		MixHash:          raw.MixHash,
		BaseFeePerGas:    raw.BaseFeePerGas,
	}, nil
}

func decodeLog(header common.BlockHeader, raw RawLog) *common.Log {
	return &common.Log{
		Id:               fmt.Sprintf("%d-%d-%s", header.Height, raw.Index, hashSlice(header.Hash, 3, 11)),
		Address:          common.NormalizeAddress(raw.Address),
		Index:            raw.Index,
		TransactionIndex: raw.TransactionIndex,
		Topics:           raw.Topics,
		Data:             raw.Data,
		Removed:          raw.Removed,
	}
}

func decodeTransaction(header common.BlockHeader, raw RawTransaction) (*common.Transaction, error) {
	value, err := common.HexToBigInt(raw.Value)
	if err != nil {
		return nil, fmt.Errorf("invalid value of transaction %d: %w", raw.Index, err)
	}
	nonce, err := common.HexToBigInt(raw.Nonce)
	if err != nil {
		return nil, fmt.Errorf("invalid nonce of transaction %d: %w", raw.Index, err)
	}
	gas, err := common.HexToBigInt(raw.Gas)
	if err != nil {
		return nil, fmt.Errorf("invalid gas of transaction %d: %w", raw.Index, err)
	}
	gasPrice, err := common.HexToBigInt(raw.GasPrice)
	if err != nil {
		return nil, fmt.Errorf("invalid gasPrice of transaction %d: %w", raw.Index, err)
	}
	v, err := common.HexToBigInt(raw.V)
	if err != nil {
		return nil, fmt.Errorf("invalid v of transaction %d: %w", raw.Index, err)
	}
	r, err := common.HexToBigInt(raw.R)
	if err != nil {
		return nil, fmt.Errorf("invalid r of transaction %d: %w", raw.Index, err)
	}
	s, err := common.HexToBigInt(raw.S)
	if err != nil {
		return nil, fmt.Errorf("invalid s of transaction %d: %w", raw.Index, err)
	}
	chainId, err := common.HexToBigInt(raw.ChainId)
	if err != nil {
		return nil, fmt.Errorf("invalid chainId of transaction %d: %w", raw.Index, err)
	}

	to := ""
	if raw.To != "" {
		to = common.NormalizeAddress(raw.To)
	}
	return &common.Transaction{
		Id:       fmt.Sprintf("%d-%d-%s", header.Height, raw.Index, hashSlice(header.Hash, 3, 11)),
		Index:    raw.Index,
		Hash:     raw.Hash,
		From:     common.NormalizeAddress(raw.From),
		To:       to,
		Value:    value,
		Nonce:    nonce,
		Gas:      gas,
		GasPrice: gasPrice,
		Input:    raw.Input,
		Sighash:  common.Sighash(raw.Input),
		V:        v,
		R:        r,
		S:        s,
		ChainId:  chainId,
		Kind:     raw.Kind,
	}, nil
}

func hashSlice(hash string, from, to int) string {
	if len(hash) < to {
		return hash
	}
	return hash[from:to]
}
