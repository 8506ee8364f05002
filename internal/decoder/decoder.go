// Package decoder classifies pending transactions by their calldata selector.
//
// Classification never fails: unknown selectors and malformed parameters
// degrade to the "unknown" label with zeroed parameters.
package decoder

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"mempool-sniper/internal/mempool"
)

// multicall nesting is followed one level deep.
const maxDepth = 1

var (
	errLayout       = errors.New("unexpected parameter layout")
	errNonCanonical = errors.New("non-canonical parameter encoding")
)

// Classifier maps payloads to records using a static registry.
type Classifier struct {
	registry *Registry
	now      func() time.Time
}

// New constructs a classifier; a nil registry selects DefaultRegistry.
func New(registry *Registry) *Classifier {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Classifier{registry: registry, now: time.Now}
}

// Classify labels the payload and extracts swap parameters where possible.
func (c *Classifier) Classify(p mempool.Payload) mempool.Record {
	declared := new(big.Int)
	if p.Value != nil {
		declared.Set(p.Value)
	}

	method, params := c.registry.decode(p.Input, 0)

	effective := new(big.Int).Set(declared)
	if params.AmountIn != nil && params.AmountIn.Cmp(effective) > 0 {
		effective.Set(params.AmountIn)
	}

	var to *common.Address
	if p.To != nil {
		addr := *p.To
		to = &addr
	}

	return mempool.Record{
		Hash:           p.Hash,
		From:           p.From,
		To:             to,
		DeclaredValue:  declared,
		EffectiveValue: effective,
		Method:         method,
		Params:         params,
		DetectedAt:     c.now().UTC(),
	}
}

// decode returns the label and parameters for input. It never panics.
func (r *Registry) decode(input []byte, depth int) (string, mempool.Params) {
	if len(input) == 0 {
		return mempool.LabelNativeTransfer, mempool.ZeroParams()
	}
	if len(input) < SelectorSize {
		return mempool.LabelUnknown, mempool.ZeroParams()
	}

	var sel Selector
	copy(sel[:], input[:SelectorSize])
	entry, ok := r.Lookup(sel)
	if !ok {
		return mempool.LabelUnknown, mempool.ZeroParams()
	}
	if !entry.HasLayout() {
		return entry.Name, mempool.ZeroParams()
	}

	params, err := r.unpack(entry, input[SelectorSize:], depth)
	if err != nil {
		return mempool.LabelUnknown, mempool.ZeroParams()
	}
	return entry.Name, params
}

func (r *Registry) unpack(entry Entry, data []byte, depth int) (params mempool.Params, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			params = mempool.Params{}
			err = fmt.Errorf("decode %s: %v", entry.Name, rec)
		}
	}()

	values, err := entry.method.Inputs.Unpack(data)
	if err != nil {
		return mempool.Params{}, fmt.Errorf("unpack %s: %w", entry.Name, err)
	}
	// Unpack tolerates trailing bytes and dirty padding; strict decoding rejects both.
	repacked, err := entry.method.Inputs.Pack(values...)
	if err != nil || !bytes.Equal(repacked, data) {
		return mempool.Params{}, fmt.Errorf("%s: %w", entry.Name, errNonCanonical)
	}
	return entry.extract(r, values, depth)
}

func extractExactIn(_ *Registry, v []interface{}, _ int) (mempool.Params, error) {
	if len(v) != 5 {
		return mempool.Params{}, errLayout
	}
	p := mempool.ZeroParams()
	var err error
	if p.AmountIn, err = bigAt(v, 0); err != nil {
		return mempool.Params{}, err
	}
	if p.AmountOutMin, err = bigAt(v, 1); err != nil {
		return mempool.Params{}, err
	}
	if p.Path, err = pathAt(v, 2); err != nil {
		return mempool.Params{}, err
	}
	if p.Recipient, err = addrAt(v, 3); err != nil {
		return mempool.Params{}, err
	}
	if p.Deadline, err = bigAt(v, 4); err != nil {
		return mempool.Params{}, err
	}
	return p, nil
}

// extractExactETHIn handles swaps whose input amount is the transaction value.
func extractExactETHIn(_ *Registry, v []interface{}, _ int) (mempool.Params, error) {
	if len(v) != 4 {
		return mempool.Params{}, errLayout
	}
	p := mempool.ZeroParams()
	var err error
	if p.AmountOutMin, err = bigAt(v, 0); err != nil {
		return mempool.Params{}, err
	}
	if p.Path, err = pathAt(v, 1); err != nil {
		return mempool.Params{}, err
	}
	if p.Recipient, err = addrAt(v, 2); err != nil {
		return mempool.Params{}, err
	}
	if p.Deadline, err = bigAt(v, 3); err != nil {
		return mempool.Params{}, err
	}
	return p, nil
}

// extractExactOut handles swaps that fix the output; the input is the transaction value.
func extractExactOut(_ *Registry, v []interface{}, _ int) (mempool.Params, error) {
	if len(v) != 4 {
		return mempool.Params{}, errLayout
	}
	p := mempool.ZeroParams()
	var err error
	if p.AmountOut, err = bigAt(v, 0); err != nil {
		return mempool.Params{}, err
	}
	if p.Path, err = pathAt(v, 1); err != nil {
		return mempool.Params{}, err
	}
	if p.Recipient, err = addrAt(v, 2); err != nil {
		return mempool.Params{}, err
	}
	if p.Deadline, err = bigAt(v, 3); err != nil {
		return mempool.Params{}, err
	}
	return p, nil
}

func extractExactInputSingle(_ *Registry, v []interface{}, _ int) (mempool.Params, error) {
	if len(v) != 1 {
		return mempool.Params{}, errLayout
	}
	in := abi.ConvertType(v[0], new(exactInputSingleParams)).(*exactInputSingleParams)
	p := mempool.ZeroParams()
	p.AmountIn = orZero(in.AmountIn)
	p.AmountOutMin = orZero(in.AmountOutMinimum)
	p.Path = []common.Address{in.TokenIn, in.TokenOut}
	p.Recipient = in.Recipient
	p.Deadline = orZero(in.Deadline)
	return p, nil
}

func extractExactInput(_ *Registry, v []interface{}, _ int) (mempool.Params, error) {
	if len(v) != 1 {
		return mempool.Params{}, errLayout
	}
	in := abi.ConvertType(v[0], new(exactInputParams)).(*exactInputParams)
	p := mempool.ZeroParams()
	p.AmountIn = orZero(in.AmountIn)
	p.AmountOutMin = orZero(in.AmountOutMinimum)
	p.Path = decodePackedPath(in.Path)
	p.Recipient = in.Recipient
	p.Deadline = orZero(in.Deadline)
	return p, nil
}

func extractAggregatorSwap(_ *Registry, v []interface{}, _ int) (mempool.Params, error) {
	if len(v) != 4 {
		return mempool.Params{}, errLayout
	}
	desc := abi.ConvertType(v[1], new(swapDescription)).(*swapDescription)
	p := mempool.ZeroParams()
	p.AmountIn = orZero(desc.Amount)
	p.AmountOutMin = orZero(desc.MinReturnAmount)
	p.Path = []common.Address{desc.SrcToken, desc.DstToken}
	p.Recipient = desc.DstReceiver
	return p, nil
}

// extractMulticall keeps the outer deadline and takes swap parameters from the
// first nested call that decodes to a registered layout.
func extractMulticall(r *Registry, v []interface{}, depth int) (mempool.Params, error) {
	if len(v) != 2 {
		return mempool.Params{}, errLayout
	}
	deadline, err := bigAt(v, 0)
	if err != nil {
		return mempool.Params{}, err
	}
	calls, ok := v[1].([][]byte)
	if !ok {
		return mempool.Params{}, errLayout
	}

	p := mempool.ZeroParams()
	if depth < maxDepth {
		for _, call := range calls {
			label, inner := r.decode(call, depth+1)
			if label == mempool.LabelUnknown || label == mempool.LabelNativeTransfer {
				continue
			}
			if len(inner.Path) == 0 && inner.AmountIn.Sign() == 0 {
				continue
			}
			p = inner
			break
		}
	}
	if p.Deadline == nil || p.Deadline.Sign() == 0 {
		p.Deadline = deadline
	}
	return p, nil
}

// decodePackedPath splits a V3 path (token | fee | token ...) into its tokens.
func decodePackedPath(b []byte) []common.Address {
	const hop = common.AddressLength + 3
	if len(b) < common.AddressLength || (len(b)-common.AddressLength)%hop != 0 {
		return nil
	}
	tokens := make([]common.Address, 0, (len(b)-common.AddressLength)/hop+1)
	for off := 0; off+common.AddressLength <= len(b); off += hop {
		tokens = append(tokens, common.BytesToAddress(b[off:off+common.AddressLength]))
	}
	return tokens
}

func bigAt(v []interface{}, i int) (*big.Int, error) {
	n, ok := v[i].(*big.Int)
	if !ok || n == nil {
		return nil, errLayout
	}
	return new(big.Int).Set(n), nil
}

func addrAt(v []interface{}, i int) (common.Address, error) {
	a, ok := v[i].(common.Address)
	if !ok {
		return common.Address{}, errLayout
	}
	return a, nil
}

func pathAt(v []interface{}, i int) ([]common.Address, error) {
	p, ok := v[i].([]common.Address)
	if !ok {
		return nil, errLayout
	}
	return append([]common.Address(nil), p...), nil
}

func orZero(n *big.Int) *big.Int {
	if n == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(n)
}
