package contracts

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/skalenetwork/ima-agent/scanner"
)

// Decoder adapts MessageProxy's ABI to scanner.Decoder.
type Decoder struct {
	proxy *MessageProxy
}

func NewDecoder(proxy *MessageProxy) Decoder {
	return Decoder{proxy: proxy}
}

func (d Decoder) DecodeOutgoingMessage(log ethtypes.Log) (scanner.OutgoingMessageEvent, error) {
	event := make(map[string]interface{})
	outgoing, err := d.proxy.EventID("OutgoingMessage")
	if err != nil {
		return scanner.OutgoingMessageEvent{}, err
	}
	if err := d.proxy.abi.UnpackIntoMap(event, outgoing.Name, log.Data); err != nil {
		return scanner.OutgoingMessageEvent{}, err
	}

	var dstChainHash common.Hash
	var msgCounter uint64
	var srcContract common.Address
	if len(log.Topics) >= 4 {
		dstChainHash = log.Topics[1]
		msgCounter = log.Topics[2].Big().Uint64()
		srcContract = common.BytesToAddress(log.Topics[3].Bytes())
	}

	return scanner.OutgoingMessageEvent{
		DstChainHash: dstChainHash,
		MsgCounter:   msgCounter,
		SrcContract:  srcContract,
		DstContract:  event["dstContract"].(common.Address),
		Data:         event["data"].([]byte),
		BlockNumber:  log.BlockNumber,
		TxHash:       log.TxHash,
	}, nil
}

func (d Decoder) DecodeReference(log ethtypes.Log) (scanner.ReferenceEvent, bool, error) {
	ref, err := d.proxy.EventID("PreviousMessageReference")
	if err != nil {
		return scanner.ReferenceEvent{}, false, err
	}
	if len(log.Topics) == 0 || log.Topics[0] != ref.ID {
		return scanner.ReferenceEvent{}, false, nil
	}

	event := make(map[string]interface{})
	if err := d.proxy.abi.UnpackIntoMap(event, ref.Name, log.Data); err != nil {
		return scanner.ReferenceEvent{}, false, err
	}

	return scanner.ReferenceEvent{
		CurrentMessage:               event["currentMessage"].(*big.Int).Uint64(),
		PreviousOutgoingMessageBlock: event["previousOutgoingMessageBlockId"].(*big.Int).Uint64(),
		BlockNumber:                  log.BlockNumber,
	}, true, nil
}
