// Package rpcclient implements the resilient RPC Client: a single
// retrying wrapper every chain operation funnels through.
package rpcclient

import (
	"context"
	"fmt"
	"math/big"
	"net"
	"net/url"
	"time"

	"cosmossdk.io/log"
	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/google/uuid"
	ima "github.com/skalenetwork/ima-agent/types"
)

// Options bound one Client call (spec.md §4.1).
type Options struct {
	Attempts             int
	ReturnOnFail         bool
	ThrowIfServerOffline bool
}

// DefaultOptions matches the documented defaults: try once, then retry,
// and treat an offline endpoint as fatal.
func DefaultOptions(attempts int) Options {
	return Options{Attempts: attempts, ThrowIfServerOffline: true}
}

// Client wraps one chain endpoint with the retrying RPC contract.
// A Client is safe for concurrent use; it opens one eth/rpc connection
// per call, matching the teacher's connect-per-call style in
// GetEthereumAccountNonce.
type Client struct {
	Endpoint ima.ChainEndpoint
	Logger   log.Logger

	dialTimeout time.Duration
}

func New(endpoint ima.ChainEndpoint, logger log.Logger) *Client {
	return &Client{
		Endpoint:    endpoint,
		Logger:      logger.With("chain", endpoint.Name, "rpc", endpoint.RPCURL),
		dialTimeout: 3 * time.Second,
	}
}

// probeOffline does a short TCP health check against the endpoint's
// host, the same "is the box even up" question the retry contract
// asks before giving up on a §4.1 operation.
func (c *Client) probeOffline(url string) bool {
	host := extractHost(url)
	if host == "" {
		return false
	}
	conn, err := net.DialTimeout("tcp", host, c.dialTimeout)
	if err != nil {
		return true
	}
	_ = conn.Close()
	return false
}

// do runs fn under the §4.1 retry contract: a bounded exponential
// backoff (adapted from the pack's luxfi-warp retry helper) with an
// offline health-check short-circuit in between attempts.
func do[T any](c *Client, ctx context.Context, op string, opts Options, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	policy.MaxElapsedTime = 0

	var result T
	var lastErr error
	attempt := 0

	retryable := func() error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()

		res, err := fn(callCtx)
		if err == nil {
			result = res
			return nil
		}
		lastErr = err

		if attempt >= opts.Attempts {
			return backoff.Permanent(err)
		}

		if c.probeOffline(c.Endpoint.RPCURL) {
			if opts.ThrowIfServerOffline {
				return backoff.Permanent(fmt.Errorf("%w: %s (%s)", ima.ErrEndpointOffline, op, c.Endpoint.RPCURL))
			}
		}

		c.Logger.Debug("rpc attempt failed, retrying", "op", op, "attempt", attempt, "request_id", uuid.New().String(), "error", err)
		return fmt.Errorf("%w: %s: %w", ima.ErrRPCAttempt, op, err)
	}

	err := backoff.Retry(retryable, backoff.WithMaxRetries(policy, uint64(opts.Attempts-1)))
	if err == nil {
		return result, nil
	}

	if opts.ReturnOnFail {
		return zero, nil
	}
	return zero, fmt.Errorf("%w: op=%s endpoint=%s: %w", ima.ErrRPCExhausted, op, c.Endpoint.RPCURL, lastErr)
}

func (c *Client) dial(ctx context.Context) (*ethclient.Client, error) {
	rc, err := rpc.DialContext(ctx, c.Endpoint.RPCURL)
	if err != nil {
		return nil, err
	}
	return ethclient.NewClient(rc), nil
}

// GetBlockNumber returns the endpoint's current block height.
func (c *Client) GetBlockNumber(ctx context.Context, opts Options) (uint64, error) {
	return do(c, ctx, "getBlockNumber", opts, func(ctx context.Context) (uint64, error) {
		ec, err := c.dial(ctx)
		if err != nil {
			return 0, err
		}
		defer ec.Close()
		return ec.BlockNumber(ctx)
	})
}

// GetBlock fetches the block header at the given height.
func (c *Client) GetBlock(ctx context.Context, number uint64, opts Options) (*types.Header, error) {
	return do(c, ctx, "getBlock", opts, func(ctx context.Context) (*types.Header, error) {
		ec, err := c.dial(ctx)
		if err != nil {
			return nil, err
		}
		defer ec.Close()
		return ec.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	})
}

// GetTransactionCount returns the account's nonce at the given tag
// ("pending" or "latest"), grounded on ethereum/util.go's
// GetEthereumAccountNonce.
func (c *Client) GetTransactionCount(ctx context.Context, addr common.Address, pending bool, opts Options) (uint64, error) {
	return do(c, ctx, "getTransactionCount", opts, func(ctx context.Context) (uint64, error) {
		ec, err := c.dial(ctx)
		if err != nil {
			return 0, err
		}
		defer ec.Close()
		if pending {
			return ec.PendingNonceAt(ctx, addr)
		}
		return ec.NonceAt(ctx, addr, nil)
	})
}

// GetTransactionReceipt keys its retry loop exclusively on the
// accumulated return value, resolving spec.md §9's open question
// about safe_getTransactionReceipt's undeclared txReceipt.
func (c *Client) GetTransactionReceipt(ctx context.Context, hash common.Hash, opts Options) (*types.Receipt, error) {
	return do(c, ctx, "getTransactionReceipt", opts, func(ctx context.Context) (*types.Receipt, error) {
		ec, err := c.dial(ctx)
		if err != nil {
			return nil, err
		}
		defer ec.Close()
		return ec.TransactionReceipt(ctx, hash)
	})
}

// GetBalance returns the native balance of addr.
func (c *Client) GetBalance(ctx context.Context, addr common.Address, opts Options) (*big.Int, error) {
	return do(c, ctx, "getBalance", opts, func(ctx context.Context) (*big.Int, error) {
		ec, err := c.dial(ctx)
		if err != nil {
			return nil, err
		}
		defer ec.Close()
		return ec.BalanceAt(ctx, addr, nil)
	})
}

// Call performs a static (read-only) contract call.
func (c *Client) Call(ctx context.Context, msg ethereum.CallMsg, opts Options) ([]byte, error) {
	return do(c, ctx, "call", opts, func(ctx context.Context) ([]byte, error) {
		ec, err := c.dial(ctx)
		if err != nil {
			return nil, err
		}
		defer ec.Close()
		return ec.CallContract(ctx, msg, nil)
	})
}

// GetLogs runs one getLogs query over the given filter.
func (c *Client) GetLogs(ctx context.Context, q ethereum.FilterQuery, opts Options) ([]types.Log, error) {
	return do(c, ctx, "getLogs", opts, func(ctx context.Context) ([]types.Log, error) {
		ec, err := c.dial(ctx)
		if err != nil {
			return nil, err
		}
		defer ec.Close()
		return ec.FilterLogs(ctx, q)
	})
}

// SendRawTransaction submits a signed transaction.
func (c *Client) SendRawTransaction(ctx context.Context, tx *types.Transaction, opts Options) error {
	_, err := do(c, ctx, "sendRawTransaction", opts, func(ctx context.Context) (struct{}, error) {
		ec, err := c.dial(ctx)
		if err != nil {
			return struct{}{}, err
		}
		defer ec.Close()
		return struct{}{}, ec.SendTransaction(ctx, tx)
	})
	return err
}

// EstimateGas returns the node's gas estimate for msg.
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg, opts Options) (uint64, error) {
	return do(c, ctx, "estimateGas", opts, func(ctx context.Context) (uint64, error) {
		ec, err := c.dial(ctx)
		if err != nil {
			return 0, err
		}
		defer ec.Close()
		return ec.EstimateGas(ctx, msg)
	})
}

// GetGasPrice returns the node's suggested gas price.
func (c *Client) GetGasPrice(ctx context.Context, opts Options) (*big.Int, error) {
	return do(c, ctx, "getGasPrice", opts, func(ctx context.Context) (*big.Int, error) {
		ec, err := c.dial(ctx)
		if err != nil {
			return nil, err
		}
		defer ec.Close()
		return ec.SuggestGasPrice(ctx)
	})
}

// WaitForNextBlock polls getBlockNumber at ~1s cadence until strictly
// greater than the supplied snapshot.
func (c *Client) WaitForNextBlock(ctx context.Context, snapshot uint64) (uint64, error) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-ticker.C:
			current, err := c.GetBlockNumber(ctx, DefaultOptions(1))
			if err != nil {
				continue
			}
			if current > snapshot {
				return current, nil
			}
		}
	}
}

func extractHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := u.Host
	if u.Port() == "" {
		switch u.Scheme {
		case "https", "wss":
			host = net.JoinHostPort(u.Hostname(), "443")
		default:
			host = net.JoinHostPort(u.Hostname(), "80")
		}
	}
	return host
}
