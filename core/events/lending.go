package events

import "math/big"

const (
	// TypeDeposit is emitted when a supplier adds liquidity to the pool.
	TypeDeposit = "lending.deposit"
	// TypeWithdraw is emitted when a supplier removes liquidity from the pool.
	TypeWithdraw = "lending.withdraw"
	// TypeLoanCreated is emitted when a borrow originates a new loan.
	TypeLoanCreated = "lending.loanCreated"
	// TypeLoanRepaid is emitted on every repayment, partial or full.
	TypeLoanRepaid = "lending.loanRepaid"
	// TypeLiquidation is emitted when a loan is liquidated.
	TypeLiquidation = "lending.liquidation"
)

type Deposit struct {
	User      string
	Amount    *big.Int
	Timestamp uint64
}

func (Deposit) EventType() string { return TypeDeposit }

type Withdraw struct {
	User      string
	Amount    *big.Int
	Timestamp uint64
}

func (Withdraw) EventType() string { return TypeWithdraw }

type LoanCreated struct {
	Borrower         string
	LoanID           uint64
	Amount           *big.Int
	CollateralAmount *big.Int
	CollateralAsset  string
	RateBps          uint64
	Duration         uint64
	Timestamp        uint64
}

func (LoanCreated) EventType() string { return TypeLoanCreated }

type LoanRepaid struct {
	Borrower           string
	LoanID             uint64
	RepaidAmount       *big.Int
	RemainingPrincipal *big.Int
	InterestPaid       *big.Int
	Timestamp          uint64
}

func (LoanRepaid) EventType() string { return TypeLoanRepaid }

type Liquidation struct {
	Borrower         string
	LoanID           uint64
	Liquidator       string
	CollateralSeized *big.Int
	DebtCovered      *big.Int
	Timestamp        uint64
}

func (Liquidation) EventType() string { return TypeLiquidation }
