// Package mempool holds the records passed between pipeline stages.
package mempool

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Labels assigned when no registry entry applies.
const (
	LabelNativeTransfer = "native-transfer"
	LabelUnknown        = "unknown"
)

// RawEvent identifies a pending transaction as announced by the node.
type RawEvent = common.Hash

// Payload is the full transaction resolved from a RawEvent.
type Payload struct {
	Hash  common.Hash
	From  common.Address
	To    *common.Address
	Value *big.Int
	Input []byte
	Nonce uint64
	Gas   uint64
}

// Params are the structured arguments extracted from calldata.
type Params struct {
	AmountIn     *big.Int
	AmountOutMin *big.Int
	// AmountOut is the exact output requested by exact-out swaps.
	AmountOut *big.Int
	Path      []common.Address
	Recipient common.Address
	Deadline  *big.Int
}

// Record is a classified transaction ready for delivery.
type Record struct {
	Hash           common.Hash
	From           common.Address
	To             *common.Address
	DeclaredValue  *big.Int
	EffectiveValue *big.Int
	Method         string
	Params         Params
	DetectedAt     time.Time
}

// Outcome is the terminal result of a delivery attempt.
type Outcome int

const (
	OutcomeDelivered Outcome = iota
	OutcomeRateLimited
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeRateLimited:
		return "rate_limited"
	default:
		return "failed"
	}
}

// ZeroParams returns params with every numeric field set to zero.
func ZeroParams() Params {
	return Params{
		AmountIn:     new(big.Int),
		AmountOutMin: new(big.Int),
		AmountOut:    new(big.Int),
		Deadline:     new(big.Int),
	}
}
