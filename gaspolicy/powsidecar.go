package gaspolicy

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PoWSidecar shells out to an external proof-of-work helper that
// satisfies an S-chain's free-gas policy, per spec.md's "PoW sidecar is
// an external program" design note. The helper is invoked as:
//
//	<path> <address> <nonce> <gas>
//
// and must print a single 0x-prefixed gas price hex string to stdout
// within Timeout, matching the teacher's pattern of shelling out to a
// narrow external tool rather than reimplementing it in Go.
type PoWSidecar struct {
	Path    string
	Timeout time.Duration
}

// NewPoWSidecar returns a helper with a 30s default timeout.
func NewPoWSidecar(path string) *PoWSidecar {
	return &PoWSidecar{Path: path, Timeout: 30 * time.Second}
}

func (s *PoWSidecar) ComputePow(ctx context.Context, address common.Address, nonce uint64, gas uint64) (*big.Int, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.Path,
		address.Hex(),
		strconv.FormatUint(nonce, 10),
		strconv.FormatUint(gas, 10),
	)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pow sidecar: %w", err)
	}

	hex := strings.TrimSpace(stdout.String())
	hex = strings.TrimPrefix(hex, "0x")
	if hex == "" {
		return nil, fmt.Errorf("pow sidecar: empty output")
	}

	price, ok := new(big.Int).SetString(hex, 16)
	if !ok {
		return nil, fmt.Errorf("pow sidecar: malformed gas price %q", hex)
	}
	return price, nil
}
