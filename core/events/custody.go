package events

import "math/big"

const (
	// TypeCollateralDeposited is emitted when an inbound bridge message
	// materialises a new collateral deposit.
	TypeCollateralDeposited = "custody.collateralDeposited"
	// TypeCollateralLocked is emitted when a deposit is bound to a loan.
	TypeCollateralLocked = "custody.collateralLocked"
	// TypeCollateralReleased is emitted when a deposit is unbound from a loan.
	TypeCollateralReleased = "custody.collateralReleased"
	// TypeCollateralWithdrawn is emitted when a deposit leaves custody via an
	// outbound bridge message.
	TypeCollateralWithdrawn = "custody.collateralWithdrawn"
)

type CollateralDeposited struct {
	DepositID      uint64
	Owner          string
	SourceChainID  uint64
	Asset          string
	Amount         *big.Int
	BridgeSequence uint64
	Timestamp      uint64
}

func (CollateralDeposited) EventType() string { return TypeCollateralDeposited }

type CollateralLocked struct {
	DepositID uint64
	Owner     string
	LoanID    uint64
	Timestamp uint64
}

func (CollateralLocked) EventType() string { return TypeCollateralLocked }

type CollateralReleased struct {
	DepositID uint64
	Owner     string
	LoanID    uint64
	Timestamp uint64
}

func (CollateralReleased) EventType() string { return TypeCollateralReleased }

type CollateralWithdrawn struct {
	DepositID     uint64
	Owner         string
	SourceChainID uint64
	Asset         string
	Amount        *big.Int
	Destination   string
	Timestamp     uint64
}

func (CollateralWithdrawn) EventType() string { return TypeCollateralWithdrawn }
