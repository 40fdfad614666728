package common

import (
	"fmt"
	"math/big"
	"math/rand"
	"os"
	"strings"
	"sync"

	gethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// HexToBigInt decodes a 0x-prefixed hex quantity into a big integer. The
// archive is not strict about leading zeros, so fall back to a raw base-16
// parse when the canonical decoder rejects the input.
func HexToBigInt(s string) (*big.Int, error) {
	if s == "" || s == "0x" {
		return new(big.Int), nil
	}
	if v, err := hexutil.DecodeBig(s); err == nil {
		return v, nil
	}
	v, ok := new(big.Int).SetString(strings.TrimPrefix(s, "0x"), 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex quantity %q", s)
	}
	return v, nil
}

// NormalizeAddress lowercases an EVM address, keeping the 0x prefix.
func NormalizeAddress(address string) string {
	if address == "" {
		return ""
	}
	return strings.ToLower(gethCommon.HexToAddress(address).Hex())
}

// Sighash extracts the 4-byte method selector from transaction input data.
func Sighash(input string) string {
	if len(input) < 10 || !strings.HasPrefix(input, "0x") {
		return ""
	}
	return input[:10]
}

const squidIdAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const squidIdLength = 10

var (
	squidId     string
	squidIdOnce sync.Once
)

// SquidId returns the identifier sent as the x-squid-id header. SQUID_ID
// overrides; otherwise a random alphanumeric id is generated once per process.
func SquidId() string {
	squidIdOnce.Do(func() {
		if id := os.Getenv("SQUID_ID"); id != "" {
			squidId = id
			return
		}
		b := make([]byte, squidIdLength)
		for i := range b {
			b[i] = squidIdAlphabet[rand.Intn(len(squidIdAlphabet))]
		}
		squidId = string(b)
	})
	return squidId
}
