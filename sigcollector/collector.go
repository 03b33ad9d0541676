// Package sigcollector implements the Signature Collector (spec.md
// §4.6): obtains a threshold-BLS aggregate over a message batch from
// the origin chain's validator quorum, or a stub during tests. The
// quorum protocol itself is out of scope; this package only specifies
// the contract and an HTTP-polling implementation, grounded on
// circle/attestation.go's poll-an-external-service shape.
package sigcollector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"cosmossdk.io/log"
	"github.com/skalenetwork/ima-agent/types"
)

// Collector is the uniform capability the Transfer Loop depends on.
type Collector interface {
	Sign(ctx context.Context, batch types.OutgoingBatch, sourceChain string) (types.Signature, error)
}

// HTTPCollector polls an external BLS-quorum signing service over
// HTTP, the same shape circle/attestation.go's CheckAttestation uses
// to poll Circle's iris API: bounded timeout, non-200 or decode
// failure treated as "not yet ready" rather than a hard error.
type HTTPCollector struct {
	BaseURL string
	Logger  log.Logger
	Client  *http.Client

	PollInterval time.Duration
	MaxWait      time.Duration
}

func NewHTTPCollector(baseURL string, logger log.Logger) *HTTPCollector {
	return &HTTPCollector{
		BaseURL:      baseURL,
		Logger:       logger,
		Client:       &http.Client{Timeout: 5 * time.Second},
		PollInterval: 2 * time.Second,
		MaxWait:      2 * time.Minute,
	}
}

type signResponse struct {
	BLSSignature [2]string `json:"blsSignature"`
	HashA        string    `json:"hashA"`
	HashB        string    `json:"hashB"`
	Counter      string    `json:"counter"`
	Ready        bool      `json:"ready"`
}

// Sign polls the quorum service's sign endpoint until it reports
// ready, an error, or MaxWait elapses.
func (c *HTTPCollector) Sign(ctx context.Context, batch types.OutgoingBatch, sourceChain string) (types.Signature, error) {
	digest := types.EncodeForSigning(batch.Messages)

	deadline := time.Now().Add(c.MaxWait)
	ticker := time.NewTicker(c.PollInterval)
	defer ticker.Stop()

	for {
		resp, err := c.poll(ctx, sourceChain, digest, batch.StartCounter)
		if err != nil {
			c.Logger.Debug("signature collector poll failed, will retry", "error", err)
		} else if resp != nil && resp.Ready {
			return parseSignature(*resp)
		}

		if time.Now().After(deadline) {
			return types.Signature{}, fmt.Errorf("signature collector: no aggregate within %s", c.MaxWait)
		}

		select {
		case <-ctx.Done():
			return types.Signature{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *HTTPCollector) poll(ctx context.Context, sourceChain string, digest []byte, startCounter uint64) (*signResponse, error) {
	url := fmt.Sprintf("%s/sign?source=%s&digest=0x%x&start=%d", c.BaseURL, sourceChain, digest, startCounter)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	rawResponse, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer rawResponse.Body.Close()

	if rawResponse.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("non-200 response from signature collector: %d", rawResponse.StatusCode)
	}

	body, err := io.ReadAll(rawResponse.Body)
	if err != nil {
		return nil, err
	}

	var resp signResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func parseSignature(resp signResponse) (types.Signature, error) {
	a, ok := new(big.Int).SetString(resp.BLSSignature[0], 10)
	if !ok {
		return types.Signature{}, fmt.Errorf("malformed blsSignature[0]: %s", resp.BLSSignature[0])
	}
	b, ok := new(big.Int).SetString(resp.BLSSignature[1], 10)
	if !ok {
		return types.Signature{}, fmt.Errorf("malformed blsSignature[1]: %s", resp.BLSSignature[1])
	}
	hashA, ok := new(big.Int).SetString(resp.HashA, 10)
	if !ok {
		return types.Signature{}, fmt.Errorf("malformed hashA: %s", resp.HashA)
	}
	hashB, ok := new(big.Int).SetString(resp.HashB, 10)
	if !ok {
		return types.Signature{}, fmt.Errorf("malformed hashB: %s", resp.HashB)
	}

	return types.Signature{
		BLSSignature: [2]*big.Int{a, b},
		HashA:        hashA,
		HashB:        hashB,
		Counter:      resp.Counter,
	}, nil
}

// Stub returns an all-zero signature and logs a warning, for tests
// (spec.md §4.6's "if a stub is configured (tests), it returns
// all-zero signature and logs a warning").
type Stub struct {
	Logger log.Logger
}

func (s Stub) Sign(ctx context.Context, batch types.OutgoingBatch, sourceChain string) (types.Signature, error) {
	s.Logger.Debug("signature collector stub in use, returning zero signature", "source", sourceChain, "start_counter", batch.StartCounter)
	return types.ZeroSignature(), nil
}
