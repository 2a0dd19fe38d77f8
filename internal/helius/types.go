package helius

import (
	"math"
	"strconv"
)

// SOLMint is the wrapped SOL mint address. Swaps settle either through
// token-style transfers of this mint or through native transfers, never both.
const SOLMint = "So11111111111111111111111111111111111111112"

// Transaction is one record of the enhanced transaction-history API.
type Transaction struct {
	Signature        string           `json:"signature"`
	Timestamp        int64            `json:"timestamp"`
	Fee              int64            `json:"fee"`
	FeePayer         string           `json:"feePayer"`
	TransactionError interface{}      `json:"transactionError"`
	TokenTransfers   []TokenTransfer  `json:"tokenTransfers"`
	NativeTransfers  []NativeTransfer `json:"nativeTransfers"`
}

// Failed reports whether the transaction errored on chain.
func (t *Transaction) Failed() bool {
	return t.TransactionError != nil
}

// TokenTransfer is a token-style transfer event inside a transaction.
type TokenTransfer struct {
	FromUserAccount string      `json:"fromUserAccount"`
	ToUserAccount   string      `json:"toUserAccount"`
	Mint            string      `json:"mint"`
	TokenAmount     TokenAmount `json:"tokenAmount"`
}

// TokenAmount carries the transferred amount. The upstream API returns
// either a raw integer string or a decimal uiAmount, depending on the
// transaction shape.
type TokenAmount struct {
	Amount   string   `json:"amount"`
	UIAmount *float64 `json:"uiAmount"`
}

// Lamports resolves the amount to lamports, preferring the raw string.
// The second return is false when neither representation is usable.
func (a TokenAmount) Lamports() (int64, bool) {
	if a.Amount != "" {
		v, err := strconv.ParseInt(a.Amount, 10, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}
	if a.UIAmount != nil {
		return int64(math.Round(*a.UIAmount * 1e9)), true
	}
	return 0, false
}

// NativeTransfer is a native SOL movement inside a transaction.
type NativeTransfer struct {
	FromUserAccount string `json:"fromUserAccount"`
	ToUserAccount   string `json:"toUserAccount"`
	Amount          int64  `json:"amount"`
}
