// Package contracts holds the message-proxy ABI binding, hand-trimmed
// from the teacher's abigen output shape
// (ethereum/contracts/TokenMessengerWithMetadata.go) down to the four
// calls and three events the transfer engine needs (spec.md §6).
package contracts

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// MessageProxyMetaData mirrors the teacher's *MetaData literal-ABI
// pattern; only the surface spec.md §6 names is kept.
var MessageProxyMetaData = &bind.MetaData{
	ABI: `[
		{"anonymous":false,"inputs":[
			{"indexed":true,"internalType":"bytes32","name":"dstChainHash","type":"bytes32"},
			{"indexed":true,"internalType":"uint256","name":"msgCounter","type":"uint256"},
			{"indexed":true,"internalType":"address","name":"srcContract","type":"address"},
			{"indexed":false,"internalType":"address","name":"dstContract","type":"address"},
			{"indexed":false,"internalType":"bytes","name":"data","type":"bytes"}
		],"name":"OutgoingMessage","type":"event"},
		{"anonymous":false,"inputs":[
			{"indexed":false,"internalType":"uint256","name":"currentMessage","type":"uint256"},
			{"indexed":false,"internalType":"uint256","name":"previousOutgoingMessageBlockId","type":"uint256"}
		],"name":"PreviousMessageReference","type":"event"},
		{"anonymous":false,"inputs":[
			{"indexed":false,"internalType":"uint256","name":"msgCounter","type":"uint256"},
			{"indexed":false,"internalType":"bytes","name":"reason","type":"bytes"}
		],"name":"PostMessageError","type":"event"},
		{"inputs":[{"internalType":"string","name":"dstName","type":"string"}],
		 "name":"getOutgoingMessagesCounter","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],
		 "stateMutability":"view","type":"function"},
		{"inputs":[{"internalType":"string","name":"srcName","type":"string"}],
		 "name":"getIncomingMessagesCounter","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],
		 "stateMutability":"view","type":"function"},
		{"inputs":[{"internalType":"string","name":"dstName","type":"string"}],
		 "name":"getLastOutgoingMessageBlockId","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],
		 "stateMutability":"view","type":"function"},
		{"inputs":[
			{"internalType":"string","name":"srcName","type":"string"},
			{"internalType":"uint256","name":"startingCounter","type":"uint256"},
			{"components":[
				{"internalType":"address","name":"sender","type":"address"},
				{"internalType":"address","name":"destinationContract","type":"address"},
				{"internalType":"bytes","name":"data","type":"bytes"}
			],"internalType":"struct Message[]","name":"messages","type":"tuple[]"},
			{"components":[
				{"internalType":"uint256[2]","name":"blsSignature","type":"uint256[2]"},
				{"internalType":"uint256","name":"hashA","type":"uint256"},
				{"internalType":"uint256","name":"hashB","type":"uint256"},
				{"internalType":"string","name":"counter","type":"string"}
			],"internalType":"struct Signature","name":"sig","type":"tuple"}
		],"name":"postIncomingMessages","outputs":[],"stateMutability":"nonpayable","type":"function"}
	]`,
}

// MessageProxy is a hand-trimmed binding around a deployed SKALE
// message-proxy contract, built directly on bind.BoundContract rather
// than full abigen Caller/Transactor/Filterer structs.
type MessageProxy struct {
	address common.Address
	abi     abi.ABI
	bound   *bind.BoundContract
}

func New(address common.Address, backend bind.ContractBackend) (*MessageProxy, error) {
	parsed, err := MessageProxyMetaData.GetAbi()
	if err != nil {
		return nil, err
	}
	bound := bind.NewBoundContract(address, *parsed, backend, backend, backend)
	return &MessageProxy{address: address, abi: *parsed, bound: bound}, nil
}

func (m *MessageProxy) Address() common.Address { return m.address }

func (m *MessageProxy) GetOutgoingMessagesCounter(opts *bind.CallOpts, dstName string) (*big.Int, error) {
	var out []interface{}
	err := m.bound.Call(opts, &out, "getOutgoingMessagesCounter", dstName)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

func (m *MessageProxy) GetIncomingMessagesCounter(opts *bind.CallOpts, srcName string) (*big.Int, error) {
	var out []interface{}
	err := m.bound.Call(opts, &out, "getIncomingMessagesCounter", srcName)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

func (m *MessageProxy) GetLastOutgoingMessageBlockId(opts *bind.CallOpts, dstName string) (*big.Int, error) {
	var out []interface{}
	err := m.bound.Call(opts, &out, "getLastOutgoingMessageBlockId", dstName)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// MessageArg is the ABI tuple shape postIncomingMessages expects for
// one message.
type MessageArg struct {
	Sender              common.Address
	DestinationContract common.Address
	Data                []byte
}

// SignatureArg is the ABI tuple shape for the aggregate signature.
type SignatureArg struct {
	BLSSignature [2]*big.Int
	HashA        *big.Int
	HashB        *big.Int
	Counter      string
}

func (m *MessageProxy) PostIncomingMessages(opts *bind.TransactOpts, srcName string, startingCounter *big.Int, messages []MessageArg, sig SignatureArg) (*ethtypes.Transaction, error) {
	return m.bound.Transact(opts, "postIncomingMessages", srcName, startingCounter, messages, sig)
}

// PackPostIncomingMessages ABI-encodes a postIncomingMessages call
// without constructing or signing a transaction, so the Call Pipeline
// can dry-run/estimate against the same call data it later signs.
func (m *MessageProxy) PackPostIncomingMessages(srcName string, startingCounter *big.Int, messages []MessageArg, sig SignatureArg) ([]byte, error) {
	return m.abi.Pack("postIncomingMessages", srcName, startingCounter, messages, sig)
}

func (m *MessageProxy) EventID(name string) (abi.Event, error) {
	ev, ok := m.abi.Events[name]
	if !ok {
		return abi.Event{}, fmt.Errorf("no such event: %s", name)
	}
	return ev, nil
}
