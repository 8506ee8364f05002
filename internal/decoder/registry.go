package decoder

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"mempool-sniper/internal/mempool"
)

// SelectorSize is the width of the leading method tag in calldata.
const SelectorSize = 4

const routerABIJSON = `[
{"type":"function","name":"swapExactETHForTokens","stateMutability":"payable","inputs":[{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[{"name":"amounts","type":"uint256[]"}]},
{"type":"function","name":"swapETHForExactTokens","stateMutability":"payable","inputs":[{"name":"amountOut","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[{"name":"amounts","type":"uint256[]"}]},
{"type":"function","name":"swapExactTokensForETH","stateMutability":"nonpayable","inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[{"name":"amounts","type":"uint256[]"}]},
{"type":"function","name":"swapExactTokensForTokens","stateMutability":"nonpayable","inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[{"name":"amounts","type":"uint256[]"}]},
{"type":"function","name":"exactInputSingle","stateMutability":"payable","inputs":[{"name":"params","type":"tuple","components":[{"name":"tokenIn","type":"address"},{"name":"tokenOut","type":"address"},{"name":"fee","type":"uint24"},{"name":"recipient","type":"address"},{"name":"deadline","type":"uint256"},{"name":"amountIn","type":"uint256"},{"name":"amountOutMinimum","type":"uint256"},{"name":"sqrtPriceLimitX96","type":"uint160"}]}],"outputs":[{"name":"amountOut","type":"uint256"}]},
{"type":"function","name":"exactInput","stateMutability":"payable","inputs":[{"name":"params","type":"tuple","components":[{"name":"path","type":"bytes"},{"name":"recipient","type":"address"},{"name":"deadline","type":"uint256"},{"name":"amountIn","type":"uint256"},{"name":"amountOutMinimum","type":"uint256"}]}],"outputs":[{"name":"amountOut","type":"uint256"}]},
{"type":"function","name":"multicall","stateMutability":"payable","inputs":[{"name":"deadline","type":"uint256"},{"name":"data","type":"bytes[]"}],"outputs":[{"name":"results","type":"bytes[]"}]},
{"type":"function","name":"swap","stateMutability":"payable","inputs":[{"name":"executor","type":"address"},{"name":"desc","type":"tuple","components":[{"name":"srcToken","type":"address"},{"name":"dstToken","type":"address"},{"name":"srcReceiver","type":"address"},{"name":"dstReceiver","type":"address"},{"name":"amount","type":"uint256"},{"name":"minReturnAmount","type":"uint256"},{"name":"flags","type":"uint256"}]},{"name":"permit","type":"bytes"},{"name":"data","type":"bytes"}],"outputs":[{"name":"returnAmount","type":"uint256"},{"name":"spentAmount","type":"uint256"}]}
]`

var routerABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(routerABIJSON))
	if err != nil {
		panic("failed to parse router ABI: " + err.Error())
	}
	routerABI = parsed
}

// Selector is the four byte method identifier.
type Selector [SelectorSize]byte

func (s Selector) String() string {
	return hexutil.Encode(s[:])
}

// ParseSelector decodes a 0x-prefixed four byte hex string.
func ParseSelector(v string) (Selector, error) {
	raw, err := hexutil.Decode(strings.TrimSpace(v))
	if err != nil {
		return Selector{}, fmt.Errorf("decode selector %q: %w", v, err)
	}
	if len(raw) != SelectorSize {
		return Selector{}, fmt.Errorf("selector %q must be %d bytes", v, SelectorSize)
	}
	var sel Selector
	copy(sel[:], raw)
	return sel, nil
}

type extractFunc func(r *Registry, values []interface{}, depth int) (mempool.Params, error)

// Entry binds a selector to its label and, optionally, its parameter layout.
type Entry struct {
	Selector Selector
	Name     string

	method  *abi.Method
	extract extractFunc
}

// HasLayout reports whether the entry decodes parameters.
func (e Entry) HasLayout() bool {
	return e.method != nil && e.extract != nil
}

// Registry is an immutable selector lookup table.
type Registry struct {
	entries map[Selector]Entry
}

func builtinEntries() []Entry {
	return []Entry{
		layoutEntry("0x7ff36ab5", "swapExactETHForTokens", "swapExactETHForTokens", extractExactETHIn),
		layoutEntry("0x18cbafe5", "swapExactTokensForETH", "swapExactTokensForETH", extractExactIn),
		layoutEntry("0x38ed1739", "swapExactTokensForTokens", "swapExactTokensForTokens", extractExactIn),
		layoutEntry("0xfb3bdb41", "swapETHForExactTokens", "swapETHForExactTokens", extractExactOut),
		layoutEntry("0x414bf389", "exactInputSingle", "exactInputSingle", extractExactInputSingle),
		layoutEntry("0xc04b8d59", "exactInput", "exactInput", extractExactInput),
		layoutEntry("0x5ae401dc", "multicall", "multicall", extractMulticall),
		labelEntry("0x24856229", "execute"),
		layoutEntry("0x12aa3caf", "aggregatorSwap", "swap", extractAggregatorSwap),
		labelEntry("0xbc651e96", "uniswapV3SwapTo"),
	}
}

func layoutEntry(selector, name, abiMethod string, extract extractFunc) Entry {
	method, ok := routerABI.Methods[abiMethod]
	if !ok {
		panic("router ABI missing method " + abiMethod)
	}
	e := labelEntry(selector, name)
	e.method = &method
	e.extract = extract
	return e
}

func labelEntry(selector, name string) Entry {
	sel, err := ParseSelector(selector)
	if err != nil {
		panic(err)
	}
	return Entry{Selector: sel, Name: name}
}

// DefaultRegistry returns the built-in router selectors.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(nil)
	if err != nil {
		panic(err)
	}
	return r
}

// NewRegistry builds the built-in registry plus label-only extras keyed by hex selector.
func NewRegistry(extra map[string]string) (*Registry, error) {
	r := &Registry{entries: make(map[Selector]Entry)}
	for _, e := range builtinEntries() {
		r.entries[e.Selector] = e
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		sel, err := ParseSelector(k)
		if err != nil {
			return nil, err
		}
		if _, exists := r.entries[sel]; exists {
			return nil, fmt.Errorf("selector %s already registered", sel)
		}
		name := strings.TrimSpace(extra[k])
		if name == "" {
			return nil, fmt.Errorf("selector %s has empty label", sel)
		}
		r.entries[sel] = Entry{Selector: sel, Name: name}
	}
	return r, nil
}

// Lookup returns the entry registered for sel.
func (r *Registry) Lookup(sel Selector) (Entry, bool) {
	e, ok := r.entries[sel]
	return e, ok
}

// Len returns the number of registered selectors.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Entries lists registered entries ordered by selector.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Selector.String() < out[j].Selector.String()
	})
	return out
}

type exactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	Deadline          *big.Int
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}

type exactInputParams struct {
	Path             []byte
	Recipient        common.Address
	Deadline         *big.Int
	AmountIn         *big.Int
	AmountOutMinimum *big.Int
}

type swapDescription struct {
	SrcToken        common.Address
	DstToken        common.Address
	SrcReceiver     common.Address
	DstReceiver     common.Address
	Amount          *big.Int
	MinReturnAmount *big.Int
	Flags           *big.Int
}
