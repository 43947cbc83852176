package lending

import (
	"math/big"

	"crosslend/crypto"
)

// RateParams are the governance controlled knobs shaping the kinked borrow
// rate curve. All values are expressed in basis points.
type RateParams struct {
	// BaseBps is the minimum borrow rate applied at zero utilization.
	BaseBps uint64
	// OptimalUtilizationBps is the kink point where the curve steepens.
	OptimalUtilizationBps uint64
	// Slope1Bps scales the rate increase per unit of utilization below the
	// kink.
	Slope1Bps uint64
	// Slope2Bps scales the additional increase applied above the kink.
	Slope2Bps uint64
}

// Pool captures the aggregate accounting state for a single base asset. Amount
// values are expressed as big integers in the asset's smallest unit.
type Pool struct {
	// Admin is the identity permitted to mutate pool configuration.
	Admin crypto.Address
	// Params holds the active rate curve parameters.
	Params RateParams
	// Liquidity is the base-asset balance currently available to borrow or
	// withdraw.
	Liquidity *big.Int
	// TotalBorrowed tracks outstanding principal plus pool-level accrued
	// interest across all loans.
	TotalBorrowed *big.Int
	// LastUpdateTime records when pool interest was last accrued, in unix
	// seconds.
	LastUpdateTime uint64
	// NextLoanID is the identifier assigned to the next originated loan.
	NextLoanID uint64
}

// Clone returns a deep copy of the pool.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := &Pool{
		Admin:          p.Admin,
		Params:         p.Params,
		LastUpdateTime: p.LastUpdateTime,
		NextLoanID:     p.NextLoanID,
	}
	if p.Liquidity != nil {
		clone.Liquidity = new(big.Int).Set(p.Liquidity)
	}
	if p.TotalBorrowed != nil {
		clone.TotalBorrowed = new(big.Int).Set(p.TotalBorrowed)
	}
	return clone
}

// UserAccount maintains the supply balance and open loans for one participant.
type UserAccount struct {
	Owner crypto.Address
	// DepositAmount is the base-asset liquidity supplied by the owner.
	DepositAmount *big.Int
	// LastAccrualTime mirrors the pool accrual stamp for the account, in unix
	// seconds.
	LastAccrualTime uint64
	// Loans indexes the account's open loans by identifier. A loan leaves the
	// map exactly when principal and accrued interest are both zero.
	Loans map[uint64]*Loan
}

// Clone returns a deep copy of the account including its loans.
func (a *UserAccount) Clone() *UserAccount {
	if a == nil {
		return nil
	}
	clone := &UserAccount{
		Owner:           a.Owner,
		LastAccrualTime: a.LastAccrualTime,
		Loans:           make(map[uint64]*Loan, len(a.Loans)),
	}
	if a.DepositAmount != nil {
		clone.DepositAmount = new(big.Int).Set(a.DepositAmount)
	}
	for id, loan := range a.Loans {
		clone.Loans[id] = loan.Clone()
	}
	return clone
}

// Loan records a single borrow position. RateBps is snapshotted from the pool
// curve at origination and never changes afterwards.
type Loan struct {
	ID               uint64
	Principal        *big.Int
	CollateralAmount *big.Int
	CollateralAsset  string
	RateBps          uint64
	// OriginationTime and Duration bound the loan term, in unix seconds.
	OriginationTime uint64
	Duration        uint64
	AccruedInterest *big.Int
	LastAccrualTime uint64
}

// Clone returns a deep copy of the loan.
func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	clone := &Loan{
		ID:              l.ID,
		CollateralAsset: l.CollateralAsset,
		RateBps:         l.RateBps,
		OriginationTime: l.OriginationTime,
		Duration:        l.Duration,
		LastAccrualTime: l.LastAccrualTime,
	}
	if l.Principal != nil {
		clone.Principal = new(big.Int).Set(l.Principal)
	}
	if l.CollateralAmount != nil {
		clone.CollateralAmount = new(big.Int).Set(l.CollateralAmount)
	}
	if l.AccruedInterest != nil {
		clone.AccruedInterest = new(big.Int).Set(l.AccruedInterest)
	}
	return clone
}

// Debt returns principal plus accrued interest.
func (l *Loan) Debt() *big.Int {
	debt := new(big.Int)
	if l == nil {
		return debt
	}
	if l.Principal != nil {
		debt.Add(debt, l.Principal)
	}
	if l.AccruedInterest != nil {
		debt.Add(debt, l.AccruedInterest)
	}
	return debt
}

// Expired reports whether the loan term has elapsed at the supplied time.
func (l *Loan) Expired(now uint64) bool {
	if l == nil {
		return false
	}
	return now > l.OriginationTime+l.Duration
}
