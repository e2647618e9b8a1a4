package ledger

import (
	"errors"

	"github.com/sheikh-saqib/funding-ledger/internal/native"
)

var (
	// ErrInsufficientContribution is returned by Fund when the USD value of
	// the amount is below the minimum.
	ErrInsufficientContribution = errors.New("ledger: didn't send enough")
	// ErrNotOwner is returned when someone other than the owner withdraws.
	ErrNotOwner = errors.New("ledger: caller is not the owner")
	// ErrIndexOutOfRange is returned by GetFunder for a missing index.
	ErrIndexOutOfRange = errors.New("ledger: funder index out of range")
	// ErrTransferFailed wraps a payout the recipient refused. The whole
	// withdrawal is rolled back.
	ErrTransferFailed = errors.New("ledger: transfer failed")

	ErrInvalidAmount     = errors.New("ledger: invalid amount")
	ErrStalePrice        = errors.New("ledger: price feed answer is not positive")
	ErrAlreadyDeployed   = errors.New("ledger: store holds another deployment")
	ErrCallDepthExceeded = errors.New("ledger: call depth exceeded")
	ErrNoOwner           = errors.New("ledger: owner is required")
)

// IsClientError returns true if err is caused by the caller's input and
// retrying the same call can not succeed.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientContribution) ||
		errors.Is(err, ErrNotOwner) ||
		errors.Is(err, ErrIndexOutOfRange) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, native.ErrInsufficientFunds)
}
