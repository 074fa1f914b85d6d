package state

import "errors"

// The set of validation failures a transaction can be rejected with. These
// are local and recoverable: the offending transaction is dropped and the
// ledger is otherwise untouched.
var (
	ErrInsufficientBalance = errors.New("insufficient balance for value plus fees")
	ErrNonPositiveValue    = errors.New("transaction value must be greater than zero")
	ErrBadNonce            = errors.New("transaction nonce does not match the expected sequence")
	ErrBadSignature        = errors.New("transaction signature is invalid")
	ErrDuplicateTx         = errors.New("transaction already pending in the mempool")
	ErrMalformedAddress    = errors.New("account address is malformed")
	ErrFeeTooLow           = errors.New("gas fee cap is below the current base fee")
)
