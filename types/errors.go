package types

import "errors"

// Transient RPC errors, absorbed by rpcclient retries and only
// surfaced once attempts are exhausted.
var (
	ErrEndpointOffline = errors.New("endpoint offline")
	ErrRPCAttempt      = errors.New("rpc attempt failed")
	ErrRPCExhausted    = errors.New("rpc attempts exhausted")
)

// Security errors abort the current batch without submitting.
var (
	ErrBlockDepth = errors.New("block depth check failed")
	ErrBlockAge   = errors.New("block age check failed")
	ErrS2SQuorum  = errors.New("s2s quorum not reached")
)

// Signing errors abort the current batch.
var (
	ErrSignerBackend = errors.New("signer backend failure")
	ErrSignerTimeout = errors.New("signer timed out")
)

// Contract errors abort the current pass.
var (
	ErrDryRun       = errors.New("dry run reverted")
	ErrContractCall = errors.New("contract call reverted")
	ErrPostMessage  = errors.New("destination emitted PostMessageError")
)
