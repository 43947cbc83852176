package lending

import "math/big"

// SecondsPerYear is the accrual denominator shared by pool and loan interest.
const SecondsPerYear = 31_536_000

var basisPoints = big.NewInt(10_000)

// Validate checks the rate curve parameters for internal consistency.
func (p RateParams) Validate() error {
	if p.BaseBps > 10_000 {
		return ErrInvalidInterestRateParams
	}
	if p.OptimalUtilizationBps > 10_000 {
		return ErrInvalidInterestRateParams
	}
	return nil
}

// RateBps evaluates the kinked rate curve for the supplied pool balances and
// returns the borrow rate in basis points. The curve is purely deterministic
// integer arithmetic with truncating division, matching the accrual formulas
// downstream.
func (p RateParams) RateBps(liquidity, totalBorrowed *big.Int) uint64 {
	supply := new(big.Int)
	if liquidity != nil {
		supply.Add(supply, liquidity)
	}
	if totalBorrowed != nil {
		supply.Add(supply, totalBorrowed)
	}
	if supply.Sign() == 0 {
		return p.BaseBps
	}

	utilization := new(big.Int).Set(totalBorrowed)
	utilization.Mul(utilization, basisPoints)
	utilization.Quo(utilization, supply)

	optimal := new(big.Int).SetUint64(p.OptimalUtilizationBps)
	rate := new(big.Int).SetUint64(p.BaseBps)
	if utilization.Cmp(optimal) <= 0 {
		// Linear region before the kink.
		slope := new(big.Int).SetUint64(p.Slope1Bps)
		slope.Mul(slope, utilization)
		slope.Quo(slope, basisPoints)
		rate.Add(rate, slope)
		return rate.Uint64()
	}

	// Rate at the kink using slope1.
	atKink := new(big.Int).SetUint64(p.Slope1Bps)
	atKink.Mul(atKink, optimal)
	atKink.Quo(atKink, basisPoints)
	rate.Add(rate, atKink)

	// Additional rate beyond the kink using slope2.
	excess := new(big.Int).Sub(utilization, optimal)
	beyond := new(big.Int).SetUint64(p.Slope2Bps)
	beyond.Mul(beyond, excess)
	beyond.Quo(beyond, basisPoints)
	rate.Add(rate, beyond)
	return rate.Uint64()
}

// accruedInterest computes simple interest on amount at rateBps over elapsed
// seconds: amount * rate * elapsed / (SecondsPerYear * 10000), truncating.
func accruedInterest(amount *big.Int, rateBps, elapsed uint64) *big.Int {
	if amount == nil || amount.Sign() == 0 || rateBps == 0 || elapsed == 0 {
		return new(big.Int)
	}
	interest := new(big.Int).Set(amount)
	interest.Mul(interest, new(big.Int).SetUint64(rateBps))
	interest.Mul(interest, new(big.Int).SetUint64(elapsed))
	interest.Quo(interest, new(big.Int).Mul(big.NewInt(SecondsPerYear), basisPoints))
	return interest
}
