package fetcher

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"mempool-sniper/internal/mempool"
)

// TransactionsOptions parameterise the RPC fetcher.
type TransactionsOptions struct {
	RPCURL  string
	Timeout time.Duration
}

// Transactions looks up pending transactions over Ethereum JSON-RPC.
type Transactions struct {
	opts      TransactionsOptions
	logger    zerolog.Logger
	client    *ethclient.Client
	signer    types.Signer
	clientMux sync.Mutex
}

// NewTransactions builds a fetcher. The connection is opened on first use.
func NewTransactions(opts TransactionsOptions, logger zerolog.Logger) *Transactions {
	return &Transactions{opts: opts, logger: logger.With().Str("component", "tx_fetcher").Logger()}
}

// Connect dials the node and resolves its chain id.
func (t *Transactions) Connect(ctx context.Context) (*big.Int, error) {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	_, signer, err := t.getClient(ctx)
	if err != nil {
		return nil, err
	}
	return signer.ChainID(), nil
}

// Fetch retrieves the transaction and recovers its sender.
func (t *Transactions) Fetch(ctx context.Context, hash common.Hash) (mempool.Payload, error) {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	client, signer, err := t.getClient(ctx)
	if err != nil {
		return mempool.Payload{}, err
	}

	tx, pending, err := client.TransactionByHash(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return mempool.Payload{}, ErrNotFound
	}
	if err != nil {
		return mempool.Payload{}, fmt.Errorf("get transaction %s: %w", hash.Hex(), err)
	}

	from, err := types.Sender(signer, tx)
	if err != nil {
		return mempool.Payload{}, fmt.Errorf("recover sender of %s: %w", hash.Hex(), err)
	}
	if !pending {
		t.logger.Debug().Str("tx", hash.Hex()).Msg("transaction already mined")
	}

	return mempool.Payload{
		Hash:  tx.Hash(),
		From:  from,
		To:    tx.To(),
		Value: tx.Value(),
		Input: tx.Data(),
		Nonce: tx.Nonce(),
		Gas:   tx.Gas(),
	}, nil
}

// Close releases the RPC connection.
func (t *Transactions) Close() {
	t.clientMux.Lock()
	defer t.clientMux.Unlock()

	if t.client != nil {
		t.client.Close()
		t.client = nil
	}
}

func (t *Transactions) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := t.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func (t *Transactions) getClient(ctx context.Context) (*ethclient.Client, types.Signer, error) {
	if t.opts.RPCURL == "" {
		return nil, nil, ErrNotConfigured
	}

	t.clientMux.Lock()
	defer t.clientMux.Unlock()

	if t.client != nil {
		return t.client, t.signer, nil
	}

	client, err := ethclient.DialContext(ctx, t.opts.RPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", t.opts.RPCURL, err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("get chain id: %w", err)
	}

	t.client = client
	t.signer = types.LatestSignerForChainID(chainID)
	t.logger.Info().Str("chain_id", chainID.String()).Msg("rpc connected")
	return client, t.signer, nil
}

var _ TransactionFetcher = (*Transactions)(nil)
