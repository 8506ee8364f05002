package app

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"mempool-sniper/internal/mempool"
)

// SimulateAlert pushes one synthetic swap through the configured channels.
func (a *App) SimulateAlert(ctx context.Context) error {
	log := a.Logger.With().Str("component", "simulate").Logger()

	sink, closers, err := a.newSink(ctx, nil)
	if err != nil {
		return err
	}
	defer closeAll(closers, log)

	rec := syntheticRecord(time.Now().UTC())
	log.Info().
		Str("tx", rec.Hash.Hex()).
		Str("method", rec.Method).
		Strs("channels", a.Config.Alerting.Channels).
		Msg("sending simulated alert")

	outcome := sink.Deliver(ctx, rec)
	if outcome != mempool.OutcomeDelivered {
		return fmt.Errorf("simulated alert not delivered: %s", outcome)
	}

	log.Info().Msg("simulated alert delivered")
	return nil
}

func syntheticRecord(now time.Time) mempool.Record {
	weth := common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	dai := common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	value, _ := new(big.Int).SetString("10500000000000000000", 10)
	minOut, _ := new(big.Int).SetString("1000000000000000000", 10)

	return mempool.Record{
		Hash:           common.HexToHash("0x1234567890abcdef1234567890abcdef1234567890abcdef1234567890abcdef"),
		From:           common.HexToAddress("0xd8dA6BF26964aF9D7eEd9e03E53415D37aA96045"),
		To:             &weth,
		DeclaredValue:  value,
		EffectiveValue: new(big.Int).Set(value),
		Method:         "swapExactETHForTokens",
		Params: mempool.Params{
			AmountIn:     new(big.Int),
			AmountOutMin: minOut,
			AmountOut:    new(big.Int),
			Path:         []common.Address{weth, dai},
			Deadline:     big.NewInt(9999999999),
		},
		DetectedAt: now,
	}
}
