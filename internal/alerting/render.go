package alerting

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"mempool-sniper/internal/mempool"
)

const envelopeType = "mempool_hit"

// FormatWei renders a wei amount in ether, truncated to four decimals.
func FormatWei(wei *big.Int) string {
	if wei == nil {
		return "0.0000"
	}
	return decimal.NewFromBigInt(wei, -18).Truncate(4).StringFixed(4)
}

func shortHash(h common.Hash) string {
	s := h.Hex()
	return s[:10] + "..." + s[len(s)-8:]
}

func txLink(explorer string, h common.Hash) string {
	if explorer == "" {
		return h.Hex()
	}
	return strings.TrimRight(explorer, "/") + "/" + h.Hex()
}

func destination(rec mempool.Record) string {
	if rec.To == nil {
		return "contract creation"
	}
	return strings.ToLower(rec.To.Hex())
}

func renderText(rec mempool.Record, explorer string) string {
	builder := strings.Builder{}
	builder.WriteString("[Mempool Alert]\n")
	builder.WriteString(fmt.Sprintf("Value: %s ETH\n", FormatWei(rec.EffectiveValue)))
	builder.WriteString(fmt.Sprintf("Method: %s\n", rec.Method))
	builder.WriteString(fmt.Sprintf("Tx: %s\n", txLink(explorer, rec.Hash)))
	builder.WriteString(fmt.Sprintf("From: %s\n", strings.ToLower(rec.From.Hex())))
	builder.WriteString(fmt.Sprintf("To: %s\n", destination(rec)))
	if len(rec.Params.Path) > 0 {
		builder.WriteString(fmt.Sprintf("Path: %d hops\n", len(rec.Params.Path)))
	}
	builder.WriteString(fmt.Sprintf("Detected: %s UTC\n", rec.DetectedAt.UTC().Format(time.RFC3339)))
	return builder.String()
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title     string              `json:"title"`
	Color     int                 `json:"color"`
	Fields    []discordEmbedField `json:"fields"`
	Footer    map[string]string   `json:"footer"`
	Timestamp string              `json:"timestamp"`
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

func renderDiscord(rec mempool.Record, explorer string) discordPayload {
	txDisplay := shortHash(rec.Hash)
	if explorer != "" {
		txDisplay = fmt.Sprintf("[%s](%s)", txDisplay, txLink(explorer, rec.Hash))
	}

	return discordPayload{Embeds: []discordEmbed{{
		Title: "transaction detected",
		Color: 0x00ff00,
		Fields: []discordEmbedField{
			{Name: "value", Value: fmt.Sprintf("**%s eth**", FormatWei(rec.EffectiveValue)), Inline: true},
			{Name: "method", Value: fmt.Sprintf("`%s`", rec.Method), Inline: true},
			{Name: "transaction", Value: txDisplay},
			{Name: "from", Value: fmt.Sprintf("`%s`", strings.ToLower(rec.From.Hex())), Inline: true},
			{Name: "to", Value: fmt.Sprintf("`%s`", destination(rec)), Inline: true},
			{Name: "detected", Value: fmt.Sprintf("<t:%d:R>", rec.DetectedAt.Unix())},
		},
		Footer:    map[string]string{"text": "mempool sniper - real-time monitor"},
		Timestamp: rec.DetectedAt.UTC().Format(time.RFC3339),
	}}}
}

// Envelope is the broker message body for NATS, Kafka and Redis notifiers.
type Envelope struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	TS   int64     `json:"ts"`
	Data AlertData `json:"data"`
}

// AlertData is the JSON view of a record.
type AlertData struct {
	Hash         string    `json:"hash"`
	From         string    `json:"from"`
	To           string    `json:"to,omitempty"`
	Method       string    `json:"method"`
	DeclaredWei  string    `json:"declared_wei"`
	EffectiveWei string    `json:"effective_wei"`
	EffectiveETH string    `json:"effective_eth"`
	AmountIn     string    `json:"amount_in"`
	AmountOutMin string    `json:"amount_out_min"`
	AmountOut    string    `json:"amount_out"`
	Path         []string  `json:"path,omitempty"`
	Recipient    string    `json:"recipient"`
	Deadline     string    `json:"deadline"`
	DetectedAt   time.Time `json:"detected_at"`
}

func newEnvelope(rec mempool.Record) Envelope {
	data := AlertData{
		Hash:         rec.Hash.Hex(),
		From:         rec.From.Hex(),
		Method:       rec.Method,
		DeclaredWei:  bigString(rec.DeclaredValue),
		EffectiveWei: bigString(rec.EffectiveValue),
		EffectiveETH: FormatWei(rec.EffectiveValue),
		AmountIn:     bigString(rec.Params.AmountIn),
		AmountOutMin: bigString(rec.Params.AmountOutMin),
		AmountOut:    bigString(rec.Params.AmountOut),
		Recipient:    rec.Params.Recipient.Hex(),
		Deadline:     bigString(rec.Params.Deadline),
		DetectedAt:   rec.DetectedAt.UTC(),
	}
	if rec.To != nil {
		data.To = rec.To.Hex()
	}
	for _, token := range rec.Params.Path {
		data.Path = append(data.Path, token.Hex())
	}

	return Envelope{
		ID:   uuid.NewString(),
		Type: envelopeType,
		TS:   time.Now().UnixMilli(),
		Data: data,
	}
}

func bigString(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}
