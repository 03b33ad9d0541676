package signer

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ima "github.com/skalenetwork/ima-agent/types"
)

// RemoteHSM calls an external ecdsaSignMessageHash(keyName, hash, base)
// over a TLS-authenticated RPC and assembles (v, r, s) applying the
// EIP-155 chain-id transformation locally (spec.md §4.5). Submission
// is left to the caller — only QueueManager is auto-send.
type RemoteHSM struct {
	capability
	url     string
	keyName string
	address common.Address
	chainID *big.Int
	client  *http.Client
}

// RemoteHSMConfig carries the optional client certificate material for
// mTLS, per spec.md §6's `{hsm: {url, keyName, tlsKey?, tlsCert?}}`.
type RemoteHSMConfig struct {
	URL     string
	KeyName string
	Address common.Address
	ChainID *big.Int
	TLSCert *tls.Certificate
}

func NewRemoteHSM(cfg RemoteHSMConfig) *RemoteHSM {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if cfg.TLSCert != nil {
		tlsConfig.Certificates = []tls.Certificate{*cfg.TLSCert}
	}
	return &RemoteHSM{
		capability: capability{isAutoSend: false},
		url:        cfg.URL,
		keyName:    cfg.KeyName,
		address:    cfg.Address,
		chainID:    cfg.ChainID,
		client: &http.Client{
			Timeout:   15 * time.Second,
			Transport: &http.Transport{TLSClientConfig: tlsConfig},
		},
	}
}

func (r *RemoteHSM) Address() [20]byte { return r.address }

type hsmSignRequest struct {
	KeyName string `json:"keyName"`
	Hash    string `json:"hash"`
	Base    int    `json:"base"`
}

type hsmSignResponse struct {
	R string `json:"r"`
	S string `json:"s"`
	V int64  `json:"v"`
}

func (r *RemoteHSM) Sign(ctx context.Context, opts *bind.TransactOpts, tx *types.Transaction) (Signed, error) {
	signer := types.LatestSignerForChainID(r.chainID)
	hash := signer.Hash(tx)

	body, err := json.Marshal(hsmSignRequest{
		KeyName: r.keyName,
		Hash:    hash.Hex(),
		Base:    16,
	})
	if err != nil {
		return Signed{}, fmt.Errorf("%w: %w", ima.ErrSignerBackend, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url+"/ecdsaSignMessageHash", bytes.NewReader(body))
	if err != nil {
		return Signed{}, fmt.Errorf("%w: %w", ima.ErrSignerBackend, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return Signed{}, fmt.Errorf("%w: %w", ima.ErrSignerTimeout, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Signed{}, fmt.Errorf("%w: hsm returned status %d", ima.ErrSignerBackend, resp.StatusCode)
	}

	var sig hsmSignResponse
	if err := json.NewDecoder(resp.Body).Decode(&sig); err != nil {
		return Signed{}, fmt.Errorf("%w: %w", ima.ErrSignerBackend, err)
	}

	rBig, ok := new(big.Int).SetString(trimHex(sig.R), 16)
	if !ok {
		return Signed{}, fmt.Errorf("%w: malformed r component", ima.ErrSignerBackend)
	}
	sBig, ok := new(big.Int).SetString(trimHex(sig.S), 16)
	if !ok {
		return Signed{}, fmt.Errorf("%w: malformed s component", ima.ErrSignerBackend)
	}

	// types.Signer.SignatureValues applies the EIP-155 chain-id
	// transformation itself; WithSignature wants the raw {0,1}
	// recovery id as the final byte, not the transformed v.
	recoveryID := byte(sig.V % 2)
	rawSig := append(append(common.LeftPadBytes(rBig.Bytes(), 32), common.LeftPadBytes(sBig.Bytes(), 32)...), recoveryID)

	signed, err := tx.WithSignature(signer, rawSig)
	if err != nil {
		return Signed{}, fmt.Errorf("%w: %w", ima.ErrSignerBackend, err)
	}

	return Signed{Tx: signed}, nil
}

func trimHex(s string) string {
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
