package common

import "math/big"

type Transaction struct {
	Id       string   `json:"id"`
	Index    int      `json:"index"`
	Hash     string   `json:"hash"`
	From     string   `json:"from"`
	To       string   `json:"to,omitempty"`
	Value    *big.Int `json:"value"`
	Nonce    *big.Int `json:"nonce"`
	Gas      *big.Int `json:"gas"`
	GasPrice *big.Int `json:"gasPrice"`
	Input    string   `json:"input"`
	Sighash  string   `json:"sighash,omitempty"`
	V        *big.Int `json:"v"`
	R        *big.Int `json:"r"`
	S        *big.Int `json:"s"`
	ChainId  *big.Int `json:"chainId,omitempty"`
	Kind     int      `json:"kind"`
}
