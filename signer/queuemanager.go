package signer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/skalenetwork/ima-agent/rpcclient"
	ima "github.com/skalenetwork/ima-agent/types"
)

// QueueManager enqueues a transaction into an external transaction
// manager, polls for a terminal status, and retrieves the resulting
// receipt from the chain rather than the queue itself (spec.md §4.5).
// It is the only backend that reports IsAutoSend, grounded on
// noble/broadcast.go's enqueue-then-poll-RPC-response shape.
type QueueManager struct {
	capability
	url      string
	address  common.Address
	priority int
	client   *http.Client
	rpc      *rpcclient.Client
	maxWait  time.Duration
	poll     time.Duration
}

// QueueManagerConfig matches spec.md §6's `{queue: {url, priority
// default 5}}`.
type QueueManagerConfig struct {
	URL      string
	Address  common.Address
	Priority int

	// RPC fetches the confirmed receipt by the hash the queue reports
	// once a queued item reaches SUCCESS, since the queue itself never
	// hands back more than a hash (spec.md §4.5).
	RPC *rpcclient.Client

	// PollInterval overrides the default 5s poll cadence; tests use a
	// shorter interval so Sign doesn't block for seconds per terminal
	// status.
	PollInterval time.Duration
}

const defaultQueueMaxWait = 10 * time.Hour

func NewQueueManager(cfg QueueManagerConfig) *QueueManager {
	priority := cfg.Priority
	if priority == 0 {
		priority = 5
	}
	poll := cfg.PollInterval
	if poll == 0 {
		poll = 5 * time.Second
	}
	return &QueueManager{
		capability: capability{isAutoSend: true},
		url:        cfg.URL,
		address:    cfg.Address,
		priority:   priority,
		client:     &http.Client{Timeout: 10 * time.Second},
		rpc:        cfg.RPC,
		maxWait:    defaultQueueMaxWait,
		poll:       poll,
	}
}

func (q *QueueManager) Address() [20]byte { return q.address }

type queueEnqueueRequest struct {
	Priority int    `json:"priority"`
	Score    string `json:"score"`
	RawTx    string `json:"rawTx"`
}

type queueEnqueueResponse struct {
	ID string `json:"id"`
}

type queueStatusResponse struct {
	Status string `json:"status"` // PENDING, SUCCESS, FAILED, DROPPED
	TxHash string `json:"txHash"`
}

// Sign enqueues the unsigned transaction and blocks (cooperatively,
// respecting ctx) until the queue reports a terminal status.
func (q *QueueManager) Sign(ctx context.Context, opts *bind.TransactOpts, tx *types.Transaction) (Signed, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return Signed{}, fmt.Errorf("%w: %w", ima.ErrSignerBackend, err)
	}

	now := time.Now().UnixNano()
	score := strconv.FormatInt(int64(q.priority)*pow10(len(strconv.FormatInt(now, 10)))+now, 10)

	id, err := q.enqueue(ctx, queueEnqueueRequest{
		Priority: q.priority,
		Score:    score,
		RawTx:    "0x" + common.Bytes2Hex(raw),
	})
	if err != nil {
		return Signed{}, fmt.Errorf("%w: %w", ima.ErrSignerBackend, err)
	}

	deadline := time.Now().Add(q.maxWait)
	ticker := time.NewTicker(q.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Signed{}, fmt.Errorf("%w: %w", ima.ErrSignerTimeout, ctx.Err())
		case <-ticker.C:
			status, err := q.checkStatus(ctx, id)
			if err != nil {
				continue
			}
			switch status.Status {
			case "SUCCESS":
				return q.receiptFor(ctx, tx, status.TxHash)
			case "FAILED", "DROPPED":
				return Signed{}, fmt.Errorf("%w: queue item %s terminal status %s", ima.ErrSignerBackend, id, status.Status)
			}
			if time.Now().After(deadline) {
				return Signed{}, fmt.Errorf("%w: queue item %s did not reach a terminal status within %s", ima.ErrSignerTimeout, id, q.maxWait)
			}
		}
	}
}

// receiptFor retrieves the confirmed receipt for the hash the queue
// reported, since the queue already broadcast tx itself and the Call
// Pipeline must not resubmit it (spec.md §4.5 "retrieve resulting
// receipt from the chain").
func (q *QueueManager) receiptFor(ctx context.Context, tx *types.Transaction, txHash string) (Signed, error) {
	if q.rpc == nil {
		return Signed{}, fmt.Errorf("%w: queue manager has no rpc client to fetch receipt %s", ima.ErrSignerBackend, txHash)
	}
	receipt, err := q.rpc.GetTransactionReceipt(ctx, common.HexToHash(txHash), rpcclient.DefaultOptions(5))
	if err != nil {
		return Signed{}, fmt.Errorf("%w: fetch receipt %s: %w", ima.ErrSignerBackend, txHash, err)
	}
	return Signed{Tx: tx, Receipt: receipt}, nil
}

func (q *QueueManager) enqueue(ctx context.Context, reqBody queueEnqueueRequest) (string, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, q.url+"/enqueue", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := q.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out queueEnqueueResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (q *QueueManager) checkStatus(ctx context.Context, id string) (queueStatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.url+"/status/"+id, nil)
	if err != nil {
		return queueStatusResponse{}, err
	}
	resp, err := q.client.Do(req)
	if err != nil {
		return queueStatusResponse{}, err
	}
	defer resp.Body.Close()

	var out queueStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return queueStatusResponse{}, err
	}
	return out, nil
}

func pow10(n int) int64 {
	result := int64(1)
	for i := 0; i < n; i++ {
		result *= 10
	}
	return result
}
