package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Message is one cross-chain message as recorded by an OutgoingMessage
// log. Identity within a (source,destination) pair is MsgCounter.
type Message struct {
	Sender              common.Address
	DestinationContract common.Address
	Data                []byte
	SavedBlockNumber    uint64
	MsgCounter          uint64
}

// ReferenceLogRecord is one link of the walk-back-by-reference chain
// produced by the PreviousMessageReference event at the same
// transaction as an OutgoingMessage.
type ReferenceLogRecord struct {
	CurrentMessage               uint64
	PreviousOutgoingMessageBlock uint64
	CurrentBlockID               uint64
}

// Signature is the threshold-BLS aggregate wire encoding agreed
// between the Signature Collector and the destination proxy (spec.md §6).
type Signature struct {
	BLSSignature [2]*big.Int
	HashA        *big.Int
	HashB        *big.Int
	Counter      string
}

// ZeroSignature is substituted only when the Signature Collector is
// stubbed out for tests (spec.md §3 OutgoingBatch).
func ZeroSignature() Signature {
	return Signature{
		BLSSignature: [2]*big.Int{big.NewInt(0), big.NewInt(0)},
		HashA:        big.NewInt(0),
		HashB:        big.NewInt(0),
		Counter:      "0",
	}
}

// OutgoingBatch is constructed only when len(Messages) >= 1 and
// StartCounter == the destination's incoming counter at formation
// time (spec.md §3).
type OutgoingBatch struct {
	SourceChain  string
	DestChain    string
	StartCounter uint64
	Messages     []Message
	Signature    Signature
}

// EncodeForSigning reproduces the destination proxy's hash of a
// message batch: keccak(concat_for_each_message(bytes20(sender),
// bytes20(destinationContract), data)) (spec.md §6). The Signature
// Collector signs exactly this digest.
func EncodeForSigning(messages []Message) []byte {
	var buf []byte
	for _, m := range messages {
		buf = append(buf, m.Sender.Bytes()...)
		buf = append(buf, m.DestinationContract.Bytes()...)
		buf = append(buf, m.Data...)
	}
	return crypto.Keccak256(buf)
}

// DestChainHash is the indexed topic SKALE message proxies emit
// OutgoingMessage events under, keyed by the destination chain's name.
func DestChainHash(destChainName string) common.Hash {
	return crypto.Keccak256Hash([]byte(destChainName))
}
