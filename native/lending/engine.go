package lending

import (
	"math/big"
	"sync"

	"crosslend/core/events"
	"crosslend/crypto"
)

// Collateralization ratios, expressed as numerator/denominator pairs so every
// comparison uses the same truncating integer arithmetic as accrual.
var (
	minCollateralNum        = big.NewInt(150)
	liquidationThresholdNum = big.NewInt(120)
	liquidationPenaltyNum   = big.NewInt(110)
	ratioDen                = big.NewInt(100)
)

// State is the persistence boundary for the lending engine. Implementations
// must return independent copies from the getters; the engine mutates local
// clones and persists them only after every check has passed, so a failed
// operation leaves no observable state change.
type State interface {
	GetPool() (*Pool, error)
	PutPool(pool *Pool) error
	GetAccount(addr crypto.Address) (*UserAccount, error)
	PutAccount(account *UserAccount) error
}

// CollateralValuer resolves the base-asset value of a pledged collateral
// amount. The custody engine implements this over its asset registry and the
// price oracle.
type CollateralValuer interface {
	AssetValue(asset string, amount *big.Int, nowMillis uint64) (*big.Int, error)
}

// Engine owns the pool ledger and the per-account loan lifecycle. Every public
// operation is serialized behind a single mutex and either fully commits or
// aborts without mutation.
type Engine struct {
	mu      sync.Mutex
	state   State
	valuer  CollateralValuer
	emitter events.Emitter
}

// NewEngine constructs a lending engine bound to the supplied persistence
// layer and collateral valuer.
func NewEngine(state State, valuer CollateralValuer) *Engine {
	return &Engine{state: state, valuer: valuer, emitter: events.NoopEmitter{}}
}

// SetEmitter wires the engine to an event sink.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

// InitPool creates the pool record. It may run exactly once.
func (e *Engine) InitPool(admin crypto.Address, params RateParams, now uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	existing, err := e.state.GetPool()
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrPoolExists
	}
	if err := params.Validate(); err != nil {
		return err
	}
	return e.state.PutPool(&Pool{
		Admin:          admin,
		Params:         params,
		Liquidity:      big.NewInt(0),
		TotalBorrowed:  big.NewInt(0),
		LastUpdateTime: now,
		NextLoanID:     1,
	})
}

// UpdateRateParams replaces the rate curve. Only the stored admin identity may
// call it; the new parameters apply to future originations and accrual, never
// to the frozen rate on existing loans.
func (e *Engine) UpdateRateParams(caller crypto.Address, params RateParams) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	pool, err := e.loadPool()
	if err != nil {
		return err
	}
	if !pool.Admin.Equal(caller) {
		return ErrInvalidSigner
	}
	if err := params.Validate(); err != nil {
		return err
	}
	pool.Params = params
	return e.state.PutPool(pool)
}

// Deposit adds liquidity to the pool and credits the caller's supply balance,
// creating the account lazily on first use.
func (e *Engine) Deposit(caller crypto.Address, amount *big.Int, now uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	pool, err := e.loadPool()
	if err != nil {
		return err
	}
	accruePool(pool, now)

	account, err := e.loadAccount(caller)
	if err != nil {
		return err
	}
	pool.Liquidity.Add(pool.Liquidity, amount)
	account.DepositAmount.Add(account.DepositAmount, amount)
	account.LastAccrualTime = now

	if err := e.state.PutPool(pool); err != nil {
		return err
	}
	if err := e.state.PutAccount(account); err != nil {
		return err
	}
	e.emitter.Emit(events.Deposit{User: caller.String(), Amount: new(big.Int).Set(amount), Timestamp: now})
	return nil
}

// Withdraw debits the caller's supply balance and the pool's liquidity.
func (e *Engine) Withdraw(caller crypto.Address, amount *big.Int, now uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	pool, err := e.loadPool()
	if err != nil {
		return err
	}
	account, err := e.loadAccount(caller)
	if err != nil {
		return err
	}
	if account.DepositAmount.Cmp(amount) < 0 || pool.Liquidity.Cmp(amount) < 0 {
		return ErrInsufficientLiquidity
	}
	accruePool(pool, now)

	pool.Liquidity.Sub(pool.Liquidity, amount)
	account.DepositAmount.Sub(account.DepositAmount, amount)
	account.LastAccrualTime = now

	if err := e.state.PutPool(pool); err != nil {
		return err
	}
	if err := e.state.PutAccount(account); err != nil {
		return err
	}
	e.emitter.Emit(events.Withdraw{User: caller.String(), Amount: new(big.Int).Set(amount), Timestamp: now})
	return nil
}

// Borrow originates a loan against previously deposited collateral. The pool
// rate is read after accrual and frozen onto the loan. Origination requires
// the collateral value to cover at least 150% of the drawn amount.
func (e *Engine) Borrow(borrower crypto.Address, amount, collateralAmount *big.Int, collateralAsset string, duration, now uint64) (*Loan, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if amount == nil || amount.Sign() <= 0 || collateralAmount == nil || collateralAmount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if duration == 0 {
		return nil, ErrInvalidLoanDuration
	}
	pool, err := e.loadPool()
	if err != nil {
		return nil, err
	}
	accruePool(pool, now)
	if pool.Liquidity.Cmp(amount) < 0 {
		return nil, ErrInsufficientLiquidity
	}

	rateBps := pool.Params.RateBps(pool.Liquidity, pool.TotalBorrowed)

	value, err := e.valuer.AssetValue(collateralAsset, collateralAmount, now*1000)
	if err != nil {
		return nil, err
	}
	minRequired := new(big.Int).Mul(amount, minCollateralNum)
	minRequired.Quo(minRequired, ratioDen)
	if value.Cmp(minRequired) < 0 {
		return nil, ErrInsufficientCollateral
	}

	account, err := e.loadAccount(borrower)
	if err != nil {
		return nil, err
	}
	loan := &Loan{
		ID:               pool.NextLoanID,
		Principal:        new(big.Int).Set(amount),
		CollateralAmount: new(big.Int).Set(collateralAmount),
		CollateralAsset:  collateralAsset,
		RateBps:          rateBps,
		OriginationTime:  now,
		Duration:         duration,
		AccruedInterest:  big.NewInt(0),
		LastAccrualTime:  now,
	}
	pool.NextLoanID++
	account.Loans[loan.ID] = loan
	pool.Liquidity.Sub(pool.Liquidity, amount)
	pool.TotalBorrowed.Add(pool.TotalBorrowed, amount)

	if err := e.state.PutPool(pool); err != nil {
		return nil, err
	}
	if err := e.state.PutAccount(account); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.LoanCreated{
		Borrower:         borrower.String(),
		LoanID:           loan.ID,
		Amount:           new(big.Int).Set(amount),
		CollateralAmount: new(big.Int).Set(collateralAmount),
		CollateralAsset:  collateralAsset,
		RateBps:          rateBps,
		Duration:         duration,
		Timestamp:        now,
	})
	return loan.Clone(), nil
}

// Repay settles part or all of a loan. Payments are allocated interest-first;
// the loan record is removed exactly when principal and interest both reach
// zero. Releasing any locked collateral is the caller's responsibility via the
// custody engine.
func (e *Engine) Repay(borrower crypto.Address, loanID uint64, payment *big.Int, now uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if payment == nil || payment.Sign() <= 0 {
		return ErrInvalidAmount
	}
	pool, account, loan, err := e.loadLoan(borrower, loanID)
	if err != nil {
		return err
	}
	accruePool(pool, now)
	accrueLoan(loan, now)

	if payment.Cmp(loan.Debt()) > 0 {
		return ErrInvalidRepaymentAmount
	}
	interestPaid, _ := settle(pool, loan, payment)
	closed := loan.Principal.Sign() == 0 && loan.AccruedInterest.Sign() == 0
	if closed {
		delete(account.Loans, loanID)
	} else {
		account.Loans[loanID] = loan
	}

	if err := e.state.PutPool(pool); err != nil {
		return err
	}
	if err := e.state.PutAccount(account); err != nil {
		return err
	}
	e.emitter.Emit(events.LoanRepaid{
		Borrower:           borrower.String(),
		LoanID:             loanID,
		RepaidAmount:       new(big.Int).Set(payment),
		RemainingPrincipal: new(big.Int).Set(loan.Principal),
		InterestPaid:       interestPaid,
		Timestamp:          now,
	})
	return nil
}

// IsUnderwater reports whether the loan's collateral value has fallen below
// the 120% liquidation threshold. The accrual applied while answering is local
// to the query and never persisted.
func (e *Engine) IsUnderwater(borrower crypto.Address, loanID uint64, now uint64) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, _, loan, err := e.loadLoan(borrower, loanID)
	if err != nil {
		return false, err
	}
	accrueLoan(loan, now)
	return e.underwater(loan, now)
}

func (e *Engine) underwater(loan *Loan, now uint64) (bool, error) {
	value, err := e.valuer.AssetValue(loan.CollateralAsset, loan.CollateralAmount, now*1000)
	if err != nil {
		return false, err
	}
	threshold := new(big.Int).Mul(loan.Debt(), liquidationThresholdNum)
	threshold.Quo(threshold, ratioDen)
	return value.Cmp(threshold) < 0, nil
}

// Liquidate covers part or all of an underwater or expired loan's debt and
// seizes collateral worth 110% of the payment. Expiry is checked before the
// oracle so an expired loan stays liquidatable through an oracle outage.
func (e *Engine) Liquidate(liquidator, borrower crypto.Address, loanID uint64, payment *big.Int, now uint64) (*big.Int, error) {
	return e.liquidate(liquidator, borrower, loanID, payment, now, false)
}

// LiquidateExpired is the expiry-only liquidation path. It never consults the
// oracle and fails with ErrLoanNotExpired while the loan is still in term.
func (e *Engine) LiquidateExpired(liquidator, borrower crypto.Address, loanID uint64, payment *big.Int, now uint64) (*big.Int, error) {
	return e.liquidate(liquidator, borrower, loanID, payment, now, true)
}

func (e *Engine) liquidate(liquidator, borrower crypto.Address, loanID uint64, payment *big.Int, now uint64, expiryOnly bool) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if payment == nil || payment.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	pool, account, loan, err := e.loadLoan(borrower, loanID)
	if err != nil {
		return nil, err
	}
	accruePool(pool, now)
	accrueLoan(loan, now)

	expired := loan.Expired(now)
	if expiryOnly {
		if !expired {
			return nil, ErrLoanNotExpired
		}
	} else if !expired {
		under, err := e.underwater(loan, now)
		if err != nil {
			return nil, err
		}
		if !under {
			return nil, ErrLoanNotUnderwater
		}
	}

	if payment.Cmp(loan.Debt()) > 0 {
		return nil, ErrInvalidRepaymentAmount
	}
	seized := new(big.Int).Mul(payment, liquidationPenaltyNum)
	seized.Quo(seized, ratioDen)
	if seized.Cmp(loan.CollateralAmount) > 0 {
		return nil, ErrInvalidCollateralValue
	}

	settle(pool, loan, payment)
	loan.CollateralAmount.Sub(loan.CollateralAmount, seized)
	closed := loan.Principal.Sign() == 0 && loan.AccruedInterest.Sign() == 0
	if closed {
		delete(account.Loans, loanID)
	} else {
		account.Loans[loanID] = loan
	}

	if err := e.state.PutPool(pool); err != nil {
		return nil, err
	}
	if err := e.state.PutAccount(account); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.Liquidation{
		Borrower:         borrower.String(),
		LoanID:           loanID,
		Liquidator:       liquidator.String(),
		CollateralSeized: new(big.Int).Set(seized),
		DebtCovered:      new(big.Int).Set(payment),
		Timestamp:        now,
	})
	return seized, nil
}

// PoolState returns a copy of the pool record.
func (e *Engine) PoolState() (*Pool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadPool()
}

// AccountState returns a copy of the account record, or nil when the address
// has never interacted with the pool.
func (e *Engine) AccountState(addr crypto.Address) (*UserAccount, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	account, err := e.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return account.Clone(), nil
}

// LoanDebt returns the loan's outstanding debt with accrual applied as of now.
// The computation is a pure view; nothing is persisted.
func (e *Engine) LoanDebt(borrower crypto.Address, loanID uint64, now uint64) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, _, loan, err := e.loadLoan(borrower, loanID)
	if err != nil {
		return nil, err
	}
	accrueLoan(loan, now)
	return loan.Debt(), nil
}

// CurrentRateBps returns the pool borrow rate implied by the present balances.
func (e *Engine) CurrentRateBps() (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pool, err := e.loadPool()
	if err != nil {
		return 0, err
	}
	return pool.Params.RateBps(pool.Liquidity, pool.TotalBorrowed), nil
}

func (e *Engine) loadPool() (*Pool, error) {
	pool, err := e.state.GetPool()
	if err != nil {
		return nil, err
	}
	if pool == nil {
		return nil, ErrPoolNotInitialised
	}
	pool = pool.Clone()
	if pool.Liquidity == nil {
		pool.Liquidity = big.NewInt(0)
	}
	if pool.TotalBorrowed == nil {
		pool.TotalBorrowed = big.NewInt(0)
	}
	return pool, nil
}

func (e *Engine) loadAccount(addr crypto.Address) (*UserAccount, error) {
	account, err := e.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return &UserAccount{
			Owner:         addr,
			DepositAmount: big.NewInt(0),
			Loans:         make(map[uint64]*Loan),
		}, nil
	}
	account = account.Clone()
	if account.DepositAmount == nil {
		account.DepositAmount = big.NewInt(0)
	}
	if account.Loans == nil {
		account.Loans = make(map[uint64]*Loan)
	}
	return account, nil
}

func (e *Engine) loadLoan(borrower crypto.Address, loanID uint64) (*Pool, *UserAccount, *Loan, error) {
	pool, err := e.loadPool()
	if err != nil {
		return nil, nil, nil, err
	}
	account, err := e.state.GetAccount(borrower)
	if err != nil {
		return nil, nil, nil, err
	}
	if account == nil {
		return nil, nil, nil, ErrLoanNotFound
	}
	account = account.Clone()
	loan, ok := account.Loans[loanID]
	if !ok {
		return nil, nil, nil, ErrLoanNotFound
	}
	return pool, account, loan, nil
}

// accruePool folds elapsed interest into TotalBorrowed using the rate implied
// by the balances at the start of the window. The timestamp advances even when
// nothing is borrowed so idle periods are never charged retroactively.
func accruePool(pool *Pool, now uint64) {
	if now <= pool.LastUpdateTime {
		return
	}
	elapsed := now - pool.LastUpdateTime
	pool.LastUpdateTime = now
	if pool.TotalBorrowed.Sign() == 0 {
		return
	}
	rateBps := pool.Params.RateBps(pool.Liquidity, pool.TotalBorrowed)
	interest := accruedInterest(pool.TotalBorrowed, rateBps, elapsed)
	pool.TotalBorrowed.Add(pool.TotalBorrowed, interest)
}

// accrueLoan folds elapsed interest on the loan principal at the frozen rate.
func accrueLoan(loan *Loan, now uint64) {
	if now <= loan.LastAccrualTime {
		return
	}
	elapsed := now - loan.LastAccrualTime
	loan.LastAccrualTime = now
	interest := accruedInterest(loan.Principal, loan.RateBps, elapsed)
	loan.AccruedInterest.Add(loan.AccruedInterest, interest)
}

// settle applies a payment interest-first against the loan and mirrors the
// effect on the pool: liquidity grows by the full payment while TotalBorrowed
// shrinks by the principal portion only.
func settle(pool *Pool, loan *Loan, payment *big.Int) (interestPaid, principalPaid *big.Int) {
	interestPaid = new(big.Int).Set(payment)
	if interestPaid.Cmp(loan.AccruedInterest) > 0 {
		interestPaid.Set(loan.AccruedInterest)
	}
	principalPaid = new(big.Int).Sub(payment, interestPaid)

	loan.AccruedInterest.Sub(loan.AccruedInterest, interestPaid)
	loan.Principal.Sub(loan.Principal, principalPaid)
	pool.Liquidity.Add(pool.Liquidity, payment)
	pool.TotalBorrowed.Sub(pool.TotalBorrowed, principalPaid)
	if pool.TotalBorrowed.Sign() < 0 {
		pool.TotalBorrowed.SetInt64(0)
	}
	return interestPaid, principalPaid
}
