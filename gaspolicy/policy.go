// Package gaspolicy computes the gas price and gas limit for a pending
// call (spec.md §4.3). No teacher file computes gas price directly —
// go-ethereum's bind.TransactOpts picks it for the teacher — so this
// package is new code, written in the teacher's terse style.
package gaspolicy

import "math/big"

var (
	oneGwei         = big.NewInt(1_000_000_000)
	defaultMaxGas   = big.NewInt(200_000_000_000) // 2e11
	defaultPerMsg   = big.NewInt(1_000_000)
	defaultOverhead = big.NewInt(200_000)
)

// Policy holds the per-direction tunables behind the gas formulas.
type Policy struct {
	// PriceMultiplier defaults to 1.25 on mainnet, 1.0 on S-chains.
	PriceMultiplier float64
	// MaxGasPrice is the ceiling; defaults to 2e11 wei.
	MaxGasPrice *big.Int
	// LimitMultiplier scales the estimated gas limit.
	LimitMultiplier float64
	// RecommendedFloor is the minimum gas limit regardless of estimate.
	RecommendedFloor uint64

	// PerMessageGas and Overhead only apply to postIncomingMessages
	// calls on the S→M direction.
	PerMessageGas *big.Int
	Overhead      *big.Int
}

// DefaultMainnet matches the documented mainnet defaults.
func DefaultMainnet() Policy {
	return Policy{
		PriceMultiplier:  1.25,
		MaxGasPrice:      new(big.Int).Set(defaultMaxGas),
		LimitMultiplier:  1.0,
		RecommendedFloor: 21000,
		PerMessageGas:    new(big.Int).Set(defaultPerMsg),
		Overhead:         new(big.Int).Set(defaultOverhead),
	}
}

// DefaultSChain matches the documented S-chain defaults.
func DefaultSChain() Policy {
	p := DefaultMainnet()
	p.PriceMultiplier = 1.0
	return p
}

// GasPrice clamps raw*PriceMultiplier into [1 gwei, MaxGasPrice]. A
// node reporting 0 is treated the same as a too-low price: floored to
// 1 gwei.
func (p Policy) GasPrice(raw *big.Int) *big.Int {
	if raw == nil || raw.Sign() <= 0 {
		return new(big.Int).Set(oneGwei)
	}

	scaled := new(big.Float).Mul(new(big.Float).SetInt(raw), big.NewFloat(p.PriceMultiplier))
	price, _ := scaled.Int(nil)

	floor := oneGwei
	if price.Cmp(floor) < 0 {
		price = floor
	}

	ceiling := p.MaxGasPrice
	if ceiling == nil {
		ceiling = defaultMaxGas
	}
	if price.Cmp(ceiling) > 0 {
		price = ceiling
	}
	return price
}

// GasLimit applies limitMultiplier to estimate and enforces
// RecommendedFloor.
func (p Policy) GasLimit(estimate uint64) uint64 {
	scaled := uint64(float64(estimate) * p.LimitMultiplier)
	if scaled < p.RecommendedFloor {
		scaled = p.RecommendedFloor
	}
	return scaled
}

// PostIncomingMessagesFloor enforces the additional floor
// perMessageGas*N + overhead for a postIncomingMessages call with N
// messages.
func (p Policy) PostIncomingMessagesFloor(messageCount int) uint64 {
	perMsg := p.PerMessageGas
	if perMsg == nil {
		perMsg = defaultPerMsg
	}
	overhead := p.Overhead
	if overhead == nil {
		overhead = defaultOverhead
	}
	total := new(big.Int).Mul(perMsg, big.NewInt(int64(messageCount)))
	total.Add(total, overhead)
	return total.Uint64()
}
