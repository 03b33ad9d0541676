// Package fanout implements Direction Fan-out (spec.md §4.10):
// schedules the M->S and S->M transfer loops plus one S->S loop per
// sibling S-chain, aggregating partial failure, grounded on
// cmd/process.go's "...register more chain listeners here" extension
// point generalized into a loop over the Observer's snapshot.
package fanout

import (
	"context"
	"fmt"
	"math/rand"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/skalenetwork/ima-agent/observer"
	"github.com/skalenetwork/ima-agent/transferloop"
)

// Direction pairs a constructed Loop with the transactOpts its signer
// backend produces for this pass.
type Direction struct {
	Loop         *transferloop.Loop
	TransactOpts func(ctx context.Context) (*bind.TransactOpts, error)
}

// Fanout runs the mainnet<->S-chain loop plus one loop per sibling
// S-chain pairing, aggregating failures without letting one direction
// abort the rest (spec.md §5's "blocking a direction loop never blocks
// others").
type Fanout struct {
	MainnetToSChain Direction
	SChainToMainnet Direction
	SiblingLoops    []Direction

	Observer observer.Observer
	Logger   log.Logger
}

// Result is the outcome of one fan-out pass.
type Result struct {
	FailedDirections int
	Errors           []error
}

// RunOnce runs every configured direction's loop exactly once,
// concurrently, and aggregates the outcome (spec.md §4.10's "aggregate
// result is success iff no sibling failed; a partial failure count is
// reported").
func (f *Fanout) RunOnce(ctx context.Context) Result {
	directions := make([]Direction, 0, 2+len(f.SiblingLoops))
	if f.MainnetToSChain.Loop != nil {
		directions = append(directions, f.MainnetToSChain)
	}
	if f.SChainToMainnet.Loop != nil {
		directions = append(directions, f.SChainToMainnet)
	}
	directions = append(directions, f.SiblingLoops...)

	type outcome struct {
		err error
	}
	results := make(chan outcome, len(directions))

	for _, d := range directions {
		go func(d Direction) {
			opts, err := d.TransactOpts(ctx)
			if err != nil {
				results <- outcome{err: fmt.Errorf("%s: transact opts: %w", d.Loop.DirectionKey, err)}
				return
			}
			if runErr := d.Loop.Run(ctx, opts); runErr != nil {
				results <- outcome{err: fmt.Errorf("%s: %w", d.Loop.DirectionKey, runErr)}
				return
			}
			results <- outcome{}
		}(d)
	}

	var result Result
	for range directions {
		o := <-results
		if o.err != nil {
			result.FailedDirections++
			result.Errors = append(result.Errors, o.err)
			f.Logger.Error("direction pass failed", "error", o.err)
		}
	}
	return result
}

// BuildSiblingLoops constructs one S->S Direction per sibling S-chain
// the Observer currently reports, each sourced from a
// pseudo-randomly-picked node URL of that chain's roster (spec.md
// §4.10).
func BuildSiblingLoops(obs observer.Observer, build func(srcNodeURL string, sibling observer.SiblingChain) Direction) []Direction {
	chains := obs.ListSiblingChains()
	directions := make([]Direction, 0, len(chains))
	for _, sibling := range chains {
		if sibling.Endpoint.IsMainnet || len(sibling.Endpoint.NodeRoster) == 0 {
			continue
		}
		node := sibling.Endpoint.NodeRoster[rand.Intn(len(sibling.Endpoint.NodeRoster))]
		directions = append(directions, build(node.URL, sibling))
	}
	return directions
}
