package custody

import (
	"math/big"

	"crosslend/crypto"
)

// Chain is a registry entry for a supported source chain.
type Chain struct {
	ID     uint64
	Active bool
}

// Clone returns a copy of the chain record.
func (c *Chain) Clone() *Chain {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// Asset is a registry entry for a collateral token on a specific source chain.
// Asset names double as oracle symbols and are expected to be unique across
// chains.
type Asset struct {
	ChainID uint64
	Name    string
	// Decimals is the token's native precision on its source chain.
	Decimals uint8
	// CollateralizationFactorBps discounts the oracle value when the asset is
	// used as collateral, expressed in basis points.
	CollateralizationFactorBps uint64
	Active                     bool
	// TotalDeposited is the running custody total for the asset.
	TotalDeposited *big.Int
}

// Clone returns a deep copy of the asset record.
func (a *Asset) Clone() *Asset {
	if a == nil {
		return nil
	}
	clone := *a
	if a.TotalDeposited != nil {
		clone.TotalDeposited = new(big.Int).Set(a.TotalDeposited)
	}
	return &clone
}

// Deposit records collateral held in custody on behalf of an owner. A deposit
// is locked if and only if LoanID is non-zero; the two fields always move
// together.
type Deposit struct {
	ID             uint64
	Owner          crypto.Address
	SourceChainID  uint64
	Asset          string
	Amount         *big.Int
	BridgeSequence uint64
	DepositTime    uint64
	Locked         bool
	LoanID         uint64
}

// Clone returns a deep copy of the deposit record.
func (d *Deposit) Clone() *Deposit {
	if d == nil {
		return nil
	}
	clone := *d
	if d.Amount != nil {
		clone.Amount = new(big.Int).Set(d.Amount)
	}
	return &clone
}
