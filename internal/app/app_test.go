package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mempool-sniper/internal/alerting"
	"mempool-sniper/internal/config"
	"mempool-sniper/internal/mempool"
)

const swapCalldata = "0x7ff36ab5" +
	"00000000000000000000000000000000000000000000000000000000000003e8" +
	"0000000000000000000000000000000000000000000000000000000000000080" +
	"000000000000000000000000742d35cc6634c0532925a3b844bc9e7595f0beb0" +
	"0000000000000000000000000000000000000000000000000000000065562040" +
	"0000000000000000000000000000000000000000000000000000000000000002" +
	"000000000000000000000000c02aaa39b223fe8d0a0e5c4f27ead9083c756cc2" +
	"000000000000000000000000dac17f958d2ee523a2206206994597c13d831ec7"

func testConfig() *config.Config {
	console := alerting.RateLimit{PerMinute: 600, Burst: 10}
	return &config.Config{
		App: config.AppConfig{Name: "mempool-sniper-test"},
		Ethereum: config.EthereumConfig{
			RequestTimeout: time.Second,
			ExplorerTxURL:  "https://sepolia.etherscan.io/tx/",
		},
		Pipeline: config.PipelineConfig{QueueCapacity: 16, MaxConcurrentFetches: 2},
		Alerting: config.AlertingConfig{
			Channels: []string{config.ChannelConsole},
			Console:  config.ConsoleConfig{RateLimit: console},
			Discord: config.DiscordConfig{
				Timeout:   time.Second,
				RateLimit: alerting.RateLimit{PerMinute: 25, Burst: 1},
			},
		},
		Stats: config.StatsConfig{Interval: time.Minute},
	}
}

func TestDecodeCalldata(t *testing.T) {
	a := NewApp(testConfig(), zerolog.Nop())

	var out bytes.Buffer
	err := a.Decode(context.Background(), DecodeOptions{Calldata: swapCalldata, ValueETH: "1.5"}, &out)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "swapExactETHForTokens")
	assert.Contains(t, text, "1.5000 ETH (1500000000000000000 wei)")
	assert.Contains(t, text, "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2 -> 0xdAC17F958D2ee523a2206206994597C13D831ec7")
	assert.Contains(t, text, "1700143168")
}

func TestDecodeNativeTransferAndErrors(t *testing.T) {
	a := NewApp(testConfig(), zerolog.Nop())

	var out bytes.Buffer
	require.NoError(t, a.Decode(context.Background(), DecodeOptions{ValueETH: "0"}, &out))
	assert.Contains(t, out.String(), mempool.LabelNativeTransfer)

	assert.Error(t, a.Decode(context.Background(), DecodeOptions{Calldata: "0xzz"}, &out))
	assert.Error(t, a.Decode(context.Background(), DecodeOptions{ValueETH: "-1"}, &out))
	assert.Error(t, a.Decode(context.Background(), DecodeOptions{TxHash: "0x1234"}, &out))
}

func TestParseETH(t *testing.T) {
	v, err := parseETH("0.000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, "1", v.String())

	v, err = parseETH("")
	require.NoError(t, err)
	assert.Equal(t, "0", v.String())
}

func TestSimulateAlertThroughDiscord(t *testing.T) {
	var hits atomic.Int32
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Alerting.Channels = []string{config.ChannelDiscord, config.ChannelConsole}
	cfg.Alerting.Discord.WebhookURL = srv.URL

	require.NoError(t, NewApp(cfg, zerolog.Nop()).SimulateAlert(context.Background()))
	assert.Equal(t, int32(1), hits.Load())
	assert.Contains(t, body, "embeds")
}

func TestSimulateAlertReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Alerting.Channels = []string{config.ChannelDiscord}
	cfg.Alerting.Discord.WebhookURL = srv.URL

	err := NewApp(cfg, zerolog.Nop()).SimulateAlert(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate_limited")
}

func TestNewSinkSingleChannelIsUnwrapped(t *testing.T) {
	a := NewApp(testConfig(), zerolog.Nop())
	sink, closers, err := a.newSink(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, closers)
	_, isFanout := sink.(alerting.Fanout)
	assert.False(t, isFanout)
}

func TestNewNotifierUnknownChannel(t *testing.T) {
	a := NewApp(testConfig(), zerolog.Nop())
	_, err := a.newNotifier(context.Background(), "pager")
	assert.Error(t, err)
}

func TestRunRequiresWebSocketURL(t *testing.T) {
	err := NewApp(testConfig(), zerolog.Nop()).Run(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "ws_url"))
}

func TestStatsScheduleFollowsConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Stats.Align = true
	cfg.Stats.StartupDelay = 3 * time.Second

	opts := NewApp(cfg, zerolog.Nop()).statsSchedule()
	assert.Equal(t, time.Minute, opts.Interval)
	assert.True(t, opts.AlignToStart)
	assert.Equal(t, 3*time.Second, opts.StartupDelay)
}

func TestSyntheticRecordIsSwap(t *testing.T) {
	rec := syntheticRecord(time.Unix(0, 0))
	assert.Equal(t, "10.5000", alerting.FormatWei(rec.EffectiveValue))
	assert.Len(t, rec.Params.Path, 2)
}
