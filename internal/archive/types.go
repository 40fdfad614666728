package archive

import "encoding/json"

// StatusResponse is the body of GET {url}/status.
type StatusResponse struct {
	ParquetBlockNumber int64 `json:"parquetBlockNumber"`
	DbMaxBlockNumber   int64 `json:"dbMaxBlockNumber"`
	DbMinBlockNumber   int64 `json:"dbMinBlockNumber"`
}

// FieldSelection mirrors the archive's per-entity attribute selection. Only
// attributes set to true are requested.
type FieldSelection struct {
	Block       map[string]bool `json:"block,omitempty"`
	Log         map[string]bool `json:"log,omitempty"`
	Transaction map[string]bool `json:"transaction,omitempty"`
}

// LogRequest is one log-filter clause of the query document. A nil Address
// matches any emitter. Topics are positional OR-sets.
type LogRequest struct {
	Address        []string       `json:"address"`
	Topics         [][]string     `json:"topics"`
	FieldSelection FieldSelection `json:"fieldSelection"`
}

// TxRequest is one transaction-filter clause of the query document.
type TxRequest struct {
	Address        []string       `json:"address"`
	Sighash        []string       `json:"sighash,omitempty"`
	FieldSelection FieldSelection `json:"fieldSelection"`
}

// Query is the document POSTed to {url}/query.
type Query struct {
	FromBlock    int64        `json:"fromBlock"`
	ToBlock      int64        `json:"toBlock"`
	Logs         []LogRequest `json:"logs,omitempty"`
	Transactions []TxRequest  `json:"transactions,omitempty"`
}

type ErrorDetail struct {
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

// QueryResponse is the body of POST {url}/query. Data is a jagged array of
// block groups that gets flattened before decoding. NextBlock is the first
// block NOT covered by the response. ArchiveHeight is only present on newer
// archive deployments.
type QueryResponse struct {
	Status        string          `json:"status,omitempty"`
	Data          [][]BatchBlock  `json:"data"`
	NextBlock     int64           `json:"nextBlock"`
	ArchiveHeight *int64          `json:"archiveHeight,omitempty"`
	Metrics       json.RawMessage `json:"metrics,omitempty"`
	Errors        []ErrorDetail   `json:"errors,omitempty"`
}

// Blocks flattens the jagged data array.
func (r *QueryResponse) Blocks() []BatchBlock {
	var blocks []BatchBlock
	for _, group := range r.Data {
		blocks = append(blocks, group...)
	}
	return blocks
}

// BatchBlock is one block of a query response: its header plus the logs and
// transactions that matched the filters.
type BatchBlock struct {
	Block        RawHeader        `json:"block"`
	Logs         []RawLog         `json:"logs"`
	Transactions []RawTransaction `json:"transactions"`
}

// RawHeader carries the header attributes as the archive serves them. Numeric
// quantities arrive as 0x-prefixed hex strings, the timestamp as unix seconds.
type RawHeader struct {
	Number           int64  `json:"number"`
	Hash             string `json:"hash"`
	ParentHash       string `json:"parentHash"`
	Nonce            string `json:"nonce"`
	Sha3Uncles       string `json:"sha3Uncles"`
	LogsBloom        string `json:"logsBloom"`
	TransactionsRoot string `json:"transactionsRoot"`
	StateRoot        string `json:"stateRoot"`
	ReceiptsRoot     string `json:"receiptsRoot"`
	Miner            string `json:"miner"`
	Difficulty       string `json:"difficulty"`
	TotalDifficulty  string `json:"totalDifficulty"`
	ExtraData        string `json:"extraData"`
	Size             string `json:"size"`
	GasLimit         string `json:"gasLimit"`
	GasUsed          string `json:"gasUsed"`
	Timestamp        int64  `json:"timestamp"`
	MixHash          string `json:"mixHash"`
	BaseFeePerGas    string `json:"baseFeePerGas"`
}

type RawLog struct {
	Address          string   `json:"address"`
	Data             string   `json:"data"`
	Index            int      `json:"index"`
	TransactionIndex int      `json:"transactionIndex"`
	Topics           []string `json:"topics"`
	Removed          bool     `json:"removed"`
}

type RawTransaction struct {
	Index    int    `json:"index"`
	Hash     string `json:"hash"`
	From     string `json:"from"`
	To       string `json:"to"`
	Value    string `json:"value"`
	Nonce    string `json:"nonce"`
	Gas      string `json:"gas"`
	GasPrice string `json:"gasPrice"`
	Input    string `json:"input"`
	V        string `json:"v"`
	R        string `json:"r"`
	S        string `json:"s"`
	ChainId  string `json:"chainId"`
	Kind     int    `json:"kind"`
}
