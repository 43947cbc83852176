package lending

import "errors"

var (
	// ErrPoolNotInitialised is returned when an operation runs before the
	// pool record has been created.
	ErrPoolNotInitialised = errors.New("lending: pool not initialised")
	// ErrPoolExists is returned when initialisation runs twice.
	ErrPoolExists = errors.New("lending: pool already initialised")
	// ErrInvalidAmount is returned for nil, zero or negative amounts.
	ErrInvalidAmount = errors.New("lending: amount must be positive")
	// ErrInsufficientLiquidity is returned when the pool or the caller's
	// deposit cannot cover the requested amount.
	ErrInsufficientLiquidity = errors.New("lending: insufficient liquidity")
	// ErrInsufficientCollateral is returned when the pledged collateral value
	// falls below the minimum collateralization ratio.
	ErrInsufficientCollateral = errors.New("lending: insufficient collateral")
	// ErrInvalidLoanDuration is returned for a zero loan term.
	ErrInvalidLoanDuration = errors.New("lending: invalid loan duration")
	// ErrInvalidInterestRateParams is returned when rate curve parameters are
	// out of range.
	ErrInvalidInterestRateParams = errors.New("lending: invalid interest rate params")
	// ErrLoanNotFound is returned when the referenced loan does not exist on
	// the borrower's account.
	ErrLoanNotFound = errors.New("lending: loan not found")
	// ErrInvalidRepaymentAmount is returned when a payment exceeds the
	// outstanding debt.
	ErrInvalidRepaymentAmount = errors.New("lending: invalid repayment amount")
	// ErrLoanNotUnderwater is returned when liquidation is attempted against
	// a healthy, unexpired loan.
	ErrLoanNotUnderwater = errors.New("lending: loan not underwater")
	// ErrLoanNotExpired is returned when an expiry-only liquidation is
	// attempted against a loan still in term.
	ErrLoanNotExpired = errors.New("lending: loan not expired")
	// ErrInvalidCollateralValue is returned when the seizure implied by a
	// liquidation payment exceeds the loan's remaining collateral.
	ErrInvalidCollateralValue = errors.New("lending: invalid collateral value")
	// ErrInvalidSigner is returned when an admin-gated operation is attempted
	// by a non-admin identity.
	ErrInvalidSigner = errors.New("lending: invalid signer")
)
