// Package observer adapts static configuration into the "list of
// sibling chains with their RPC endpoints and node rosters" contract
// spec.md §1 says the core consumes from an external SKALE-network
// observer. New: the teacher has no equivalent (Noble is a single
// fixed destination) — the shape below follows config.ChainConfig's
// factory-from-yaml idiom instead.
package observer

import (
	"github.com/skalenetwork/ima-agent/config"
	ima "github.com/skalenetwork/ima-agent/types"
)

// SiblingChain is one chain in the topology, as the core needs it.
type SiblingChain struct {
	Endpoint ima.ChainEndpoint
}

// Observer exposes a snapshot of the chain topology.
type Observer interface {
	ListSiblingChains() []SiblingChain
}

// Static is an Observer backed by a fixed config.Config snapshot,
// taken once at process start (spec.md §1's Non-goal on cross-restart
// discovery rules out a live-updating implementation).
type Static struct {
	chains []SiblingChain
}

// FromConfig builds a Static observer from every chain entry of cfg.
func FromConfig(cfg config.Config) *Static {
	chains := make([]SiblingChain, 0, len(cfg.Chains))
	for _, chain := range cfg.Chains {
		roster := make([]ima.Node, 0, len(chain.NodeRoster))
		for _, n := range chain.NodeRoster {
			roster = append(roster, ima.Node{Name: n.Name, URL: n.URL})
		}
		chains = append(chains, SiblingChain{
			Endpoint: ima.ChainEndpoint{
				Name:       chain.Name,
				ChainID:    chain.ChainID,
				RPCURL:     chain.RPC,
				WSURL:      chain.WS,
				IsMainnet:  chain.IsMainnet,
				NodeRoster: roster,
			},
		})
	}
	return &Static{chains: chains}
}

func (s *Static) ListSiblingChains() []SiblingChain {
	return s.chains
}

// Lookup returns the endpoint named name, if configured.
func (s *Static) Lookup(name string) (ima.ChainEndpoint, bool) {
	for _, c := range s.chains {
		if c.Endpoint.Name == name {
			return c.Endpoint, true
		}
	}
	return ima.ChainEndpoint{}, false
}
