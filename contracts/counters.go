package contracts

import (
	"context"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
)

// ProxyCounters adapts MessageProxy's view calls to the Batch
// Former's CounterReader contract (spec.md §4.7).
type ProxyCounters struct {
	Proxy *MessageProxy
}

func NewProxyCounters(proxy *MessageProxy) ProxyCounters {
	return ProxyCounters{Proxy: proxy}
}

func (c ProxyCounters) OutgoingCounter(ctx context.Context, destChain string) (uint64, error) {
	count, err := c.Proxy.GetOutgoingMessagesCounter(&bind.CallOpts{Context: ctx}, destChain)
	if err != nil {
		return 0, err
	}
	return count.Uint64(), nil
}

func (c ProxyCounters) IncomingCounter(ctx context.Context, srcChain string) (uint64, error) {
	count, err := c.Proxy.GetIncomingMessagesCounter(&bind.CallOpts{Context: ctx}, srcChain)
	if err != nil {
		return 0, err
	}
	return count.Uint64(), nil
}
