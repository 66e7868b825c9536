package types

import (
	"errors"
)

var (
	ErrEmptyPayload     = errors.New("empty payload")
	ErrInvalidNonce     = errors.New("invalid nonce")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrLedgerAppend     = errors.New("ledger append failed")
)
