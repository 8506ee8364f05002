package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"

	"mempool-sniper/internal/alerting"
	"mempool-sniper/internal/mempool"
)

// DecodeOptions select what to classify. TxHash wins over Calldata.
type DecodeOptions struct {
	TxHash   string
	Calldata string
	// ValueETH is the declared value in ether, e.g. "1.5".
	ValueETH string
}

// Decode classifies a live transaction or raw calldata and prints the record to w.
func (a *App) Decode(ctx context.Context, opts DecodeOptions, w io.Writer) error {
	classifier, err := a.newClassifier()
	if err != nil {
		return err
	}

	payload, err := a.decodePayload(ctx, opts)
	if err != nil {
		return err
	}

	printRecord(w, classifier.Classify(payload))
	return nil
}

func (a *App) decodePayload(ctx context.Context, opts DecodeOptions) (mempool.Payload, error) {
	if opts.TxHash != "" {
		if _, err := hexutil.Decode(opts.TxHash); err != nil || len(opts.TxHash) != 66 {
			return mempool.Payload{}, fmt.Errorf("invalid transaction hash %q", opts.TxHash)
		}
		txs := a.newFetcher()
		defer txs.Close()
		return txs.Fetch(ctx, common.HexToHash(opts.TxHash))
	}

	input := []byte{}
	if opts.Calldata != "" && opts.Calldata != "0x" {
		raw, err := hexutil.Decode(opts.Calldata)
		if err != nil {
			return mempool.Payload{}, fmt.Errorf("invalid calldata: %w", err)
		}
		input = raw
	}

	value, err := parseETH(opts.ValueETH)
	if err != nil {
		return mempool.Payload{}, err
	}
	return mempool.Payload{Input: input, Value: value}, nil
}

func parseETH(v string) (*big.Int, error) {
	if strings.TrimSpace(v) == "" {
		return new(big.Int), nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return nil, fmt.Errorf("invalid value %q: %w", v, err)
	}
	if d.IsNegative() {
		return nil, errors.New("value cannot be negative")
	}
	return d.Shift(18).BigInt(), nil
}

func printRecord(w io.Writer, rec mempool.Record) {
	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer writer.Flush()

	to := "-"
	if rec.To != nil {
		to = rec.To.Hex()
	}
	path := make([]string, 0, len(rec.Params.Path))
	for _, token := range rec.Params.Path {
		path = append(path, token.Hex())
	}

	fmt.Fprintf(writer, "Method\t%s\n", rec.Method)
	if rec.Hash != (common.Hash{}) {
		fmt.Fprintf(writer, "Tx\t%s\n", rec.Hash.Hex())
		fmt.Fprintf(writer, "From\t%s\n", rec.From.Hex())
	}
	fmt.Fprintf(writer, "To\t%s\n", to)
	fmt.Fprintf(writer, "Declared\t%s ETH (%s wei)\n", alerting.FormatWei(rec.DeclaredValue), rec.DeclaredValue)
	fmt.Fprintf(writer, "Effective\t%s ETH (%s wei)\n", alerting.FormatWei(rec.EffectiveValue), rec.EffectiveValue)
	fmt.Fprintf(writer, "AmountIn\t%s\n", rec.Params.AmountIn)
	fmt.Fprintf(writer, "AmountOutMin\t%s\n", rec.Params.AmountOutMin)
	fmt.Fprintf(writer, "AmountOut\t%s\n", rec.Params.AmountOut)
	fmt.Fprintf(writer, "Path\t%s\n", strings.Join(path, " -> "))
	fmt.Fprintf(writer, "Recipient\t%s\n", rec.Params.Recipient.Hex())
	fmt.Fprintf(writer, "Deadline\t%s\n", rec.Params.Deadline)
	fmt.Fprintf(writer, "Detected\t%s\n", rec.DetectedAt.UTC().Format(time.RFC3339))
}
