package alerting

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"mempool-sniper/internal/mempool"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func sampleRecord() mempool.Record {
	to := common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D")
	value, _ := new(big.Int).SetString("1234567890000000000", 10)
	return mempool.Record{
		Hash:           common.HexToHash("0xabcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789"),
		From:           common.HexToAddress("0x1111111111111111111111111111111111111111"),
		To:             &to,
		DeclaredValue:  value,
		EffectiveValue: value,
		Method:         "swapExactETHForTokens",
		Params: mempool.Params{
			AmountIn:     big.NewInt(0),
			AmountOutMin: big.NewInt(1000),
			Path: []common.Address{
				common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
				common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7"),
			},
			Deadline: big.NewInt(1700143168),
		},
		DetectedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

// recordingNotifier records the time of every Notify call.
type recordingNotifier struct {
	mu    sync.Mutex
	name  string
	err   error
	calls []time.Time
}

func (r *recordingNotifier) Name() string {
	if r.name == "" {
		return "recording"
	}
	return r.name
}

func (r *recordingNotifier) Notify(context.Context, mempool.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, time.Now())
	return r.err
}

func (r *recordingNotifier) times() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Time(nil), r.calls...)
}

type staticSink mempool.Outcome

func (s staticSink) Deliver(context.Context, mempool.Record) mempool.Outcome {
	return mempool.Outcome(s)
}
