package channel

import (
	"errors"
	"fmt"
)

// ErrType classifies ledger failures. The first five are business-rule
// failures the caller can act on; CryptoFailure and PersistenceFailure are
// infrastructure failures.
type ErrType uint32

const (
	// InvalidInput covers malformed peer identifiers, zero amounts or
	// capacities, and remote updates that fail verification.
	InvalidInput ErrType = iota
	// NotFound means the channel, or the commitment, does not exist.
	NotFound
	// InvalidState means the channel is closed, or already exists.
	InvalidState
	// InsufficientFunds means the paying side does not hold the amount.
	InsufficientFunds
	// SequenceConflict means a remote update does not extend the current
	// sequence by exactly one.
	SequenceConflict
	// CryptoFailure covers signing and key derivation failures.
	CryptoFailure
	// PersistenceFailure means the store rejected the update.
	PersistenceFailure
)

func (t ErrType) String() string {
	switch t {
	case InvalidInput:
		return "InvalidInput"
	case NotFound:
		return "NotFound"
	case InvalidState:
		return "InvalidState"
	case InsufficientFunds:
		return "InsufficientFunds"
	case SequenceConflict:
		return "SequenceConflict"
	case CryptoFailure:
		return "CryptoFailure"
	case PersistenceFailure:
		return "PersistenceFailure"
	default:
		return "Unknown"
	}
}

// LedgerErr is the error returned by every Ledger operation.
type LedgerErr struct {
	errType   ErrType
	channelID string
	msg       string
	cause     error
}

func newLedgerErr(t ErrType, channelID string, msg string, cause error) LedgerErr {
	return LedgerErr{
		errType:   t,
		channelID: channelID,
		msg:       msg,
		cause:     cause,
	}
}

// Type ...
func (e LedgerErr) Type() ErrType {
	return e.errType
}

// ChannelID is empty when the failure happened before a channel was known.
func (e LedgerErr) ChannelID() string {
	return e.channelID
}

// Message is the error text without the channel and cause decorations.
func (e LedgerErr) Message() string {
	return e.msg
}

func (e LedgerErr) Error() string {
	m := fmt.Sprintf("%s: %s", e.errType, e.msg)
	if e.channelID != "" {
		m = fmt.Sprintf("channel %s, %s", e.channelID, m)
	}
	if e.cause != nil {
		m = fmt.Sprintf("%s: %v", m, e.cause)
	}
	return m
}

// Unwrap ...
func (e LedgerErr) Unwrap() error {
	return e.cause
}

// IsLedger checks that err is, or wraps, a LedgerErr of type t.
func IsLedger(err error, t ErrType) bool {
	var ledgerErr LedgerErr
	return errors.As(err, &ledgerErr) && ledgerErr.errType == t
}

// ErrorType returns the type of a LedgerErr found in err's chain.
func ErrorType(err error) (ErrType, bool) {
	var ledgerErr LedgerErr
	if !errors.As(err, &ledgerErr) {
		return 0, false
	}
	return ledgerErr.errType, true
}

// IsBusiness reports whether err is a business-rule failure as opposed to an
// infrastructure failure.
func IsBusiness(err error) bool {
	t, ok := ErrorType(err)
	return ok && t != CryptoFailure && t != PersistenceFailure
}
