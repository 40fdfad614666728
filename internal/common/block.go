package common

import "math/big"

type BlockHeader struct {
	Id               string   `json:"id"`
	Height           int64    `json:"height"`
	Hash             string   `json:"hash"`
	ParentHash       string   `json:"parentHash"`
	Timestamp        int64    `json:"timestamp"`
	Nonce            *big.Int `json:"nonce"`
	Sha3Uncles       string   `json:"sha3Uncles"`
	LogsBloom        string   `json:"logsBloom"`
	TransactionsRoot string   `json:"transactionsRoot"`
	StateRoot        string   `json:"stateRoot"`
	ReceiptsRoot     string   `json:"receiptsRoot"`
	Miner            string   `json:"miner"`
	Difficulty       string   `json:"difficulty"`
	TotalDifficulty  string   `json:"totalDifficulty"`
	ExtraData        string   `json:"extraData"`
	Size             *big.Int `json:"size"`
	GasLimit         *big.Int `json:"gasLimit"`
	GasUsed          *big.Int `json:"gasUsed"`
	MixHash          string   `json:"mixHash"`
	BaseFeePerGas    string   `json:"baseFeePerGas"`
}

type BlockData struct {
	Header BlockHeader
	Items  []Item
}
