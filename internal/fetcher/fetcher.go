// Package fetcher resolves announced transaction hashes into full payloads.
package fetcher

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"mempool-sniper/internal/mempool"
)

var (
	// ErrNotFound is returned when the node no longer knows the hash.
	ErrNotFound = errors.New("transaction not found")
	// ErrNotConfigured is returned when no RPC endpoint is set.
	ErrNotConfigured = errors.New("ethereum rpc url not configured")
)

// TransactionFetcher retrieves the payload behind a pending hash.
type TransactionFetcher interface {
	Fetch(ctx context.Context, hash common.Hash) (mempool.Payload, error)
}
