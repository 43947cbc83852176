package custody

import "errors"

var (
	// ErrReplayedMessage is returned when an inbound bridge message carries an
	// identifier that has already been consumed.
	ErrReplayedMessage = errors.New("custody: replayed message")
	// ErrInvalidSourceChain is returned when the source chain is unknown or
	// inactive.
	ErrInvalidSourceChain = errors.New("custody: invalid source chain")
	// ErrAssetNotSupported is returned when the asset is unknown or inactive.
	ErrAssetNotSupported = errors.New("custody: asset not supported")
	// ErrCollateralNotFound is returned when the referenced deposit does not
	// exist.
	ErrCollateralNotFound = errors.New("custody: collateral not found")
	// ErrCollateralLocked is returned when an operation requires an unlocked
	// deposit.
	ErrCollateralLocked = errors.New("custody: collateral locked")
	// ErrCollateralNotLocked is returned when release is attempted on an
	// unlocked deposit.
	ErrCollateralNotLocked = errors.New("custody: collateral not locked")
	// ErrLoanMismatch is returned when release names a loan other than the
	// one the deposit is bound to.
	ErrLoanMismatch = errors.New("custody: deposit bound to different loan")
	// ErrInvalidLoanID is returned when a lock names the zero loan id.
	ErrInvalidLoanID = errors.New("custody: invalid loan id")
	// ErrInvalidSigner is returned when the caller is neither the deposit
	// owner nor, for registry operations, the stored admin identity.
	ErrInvalidSigner = errors.New("custody: invalid signer")
	// ErrInvalidAssetParams is returned for out-of-range registry input.
	ErrInvalidAssetParams = errors.New("custody: invalid asset params")
	// ErrInvalidAmount is returned for nil or non-positive amounts.
	ErrInvalidAmount = errors.New("custody: amount must be positive")
)
