package custody

import (
	"math/big"
	"strings"
	"sync"

	"crosslend/bridge"
	"crosslend/core/events"
	"crosslend/crypto"
	"crosslend/native/oracle"
)

var basisPoints = big.NewInt(10_000)

// State is the persistence boundary for the custody engine. Getters return
// independent copies (nil when absent); the engine persists its mutations only
// after every check has passed. Replay identifiers are retained forever.
type State interface {
	GetChain(id uint64) (*Chain, error)
	PutChain(chain *Chain) error
	DeleteChain(id uint64) error
	GetAsset(chainID uint64, name string) (*Asset, error)
	FindAsset(name string) (*Asset, error)
	PutAsset(asset *Asset) error
	GetDeposit(id uint64) (*Deposit, error)
	PutDeposit(deposit *Deposit) error
	DeleteDeposit(id uint64) error
	HasReplay(chainID, sequence uint64) (bool, error)
	PutReplay(chainID, sequence uint64) error
	NextDepositID() (uint64, error)
}

// Engine manages the collateral registry, inbound deposit ingestion and the
// lock protocol binding deposits to loans. All public operations are
// serialized behind one mutex so lock check-and-set is a single atomic unit.
type Engine struct {
	mu      sync.Mutex
	state   State
	admin   crypto.Address
	oracle  oracle.PriceOracle
	bridge  bridge.Messenger
	emitter events.Emitter
}

// NewEngine constructs a custody engine bound to its persistence layer, the
// price oracle, and the outbound message bridge.
func NewEngine(state State, admin crypto.Address, priceOracle oracle.PriceOracle, messenger bridge.Messenger) *Engine {
	return &Engine{
		state:   state,
		admin:   admin,
		oracle:  priceOracle,
		bridge:  messenger,
		emitter: events.NoopEmitter{},
	}
}

// SetEmitter wires the engine to an event sink.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

// AddChain registers a source chain and marks it active.
func (e *Engine) AddChain(caller crypto.Address, chainID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.admin.Equal(caller) {
		return ErrInvalidSigner
	}
	return e.state.PutChain(&Chain{ID: chainID, Active: true})
}

// RemoveChain deletes a source chain from the registry. Existing deposits are
// unaffected; only new ingestion is blocked.
func (e *Engine) RemoveChain(caller crypto.Address, chainID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.admin.Equal(caller) {
		return ErrInvalidSigner
	}
	chain, err := e.state.GetChain(chainID)
	if err != nil {
		return err
	}
	if chain == nil {
		return ErrInvalidSourceChain
	}
	return e.state.DeleteChain(chainID)
}

// SetChainActive toggles ingestion from a source chain without dropping its
// registration.
func (e *Engine) SetChainActive(caller crypto.Address, chainID uint64, active bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.admin.Equal(caller) {
		return ErrInvalidSigner
	}
	chain, err := e.state.GetChain(chainID)
	if err != nil {
		return err
	}
	if chain == nil {
		return ErrInvalidSourceChain
	}
	chain.Active = active
	return e.state.PutChain(chain)
}

// AddAsset registers a collateral asset under an already-registered chain.
func (e *Engine) AddAsset(caller crypto.Address, chainID uint64, name string, decimals uint8, factorBps uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.admin.Equal(caller) {
		return ErrInvalidSigner
	}
	name = strings.TrimSpace(name)
	if name == "" || factorBps > 10_000 {
		return ErrInvalidAssetParams
	}
	chain, err := e.state.GetChain(chainID)
	if err != nil {
		return err
	}
	if chain == nil {
		return ErrInvalidSourceChain
	}
	return e.state.PutAsset(&Asset{
		ChainID:                    chainID,
		Name:                       name,
		Decimals:                   decimals,
		CollateralizationFactorBps: factorBps,
		Active:                     true,
		TotalDeposited:             big.NewInt(0),
	})
}

// SetAssetActive toggles an asset's ingestion and valuation eligibility.
func (e *Engine) SetAssetActive(caller crypto.Address, chainID uint64, name string, active bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.admin.Equal(caller) {
		return ErrInvalidSigner
	}
	asset, err := e.state.GetAsset(chainID, name)
	if err != nil {
		return err
	}
	if asset == nil {
		return ErrAssetNotSupported
	}
	asset.Active = active
	return e.state.PutAsset(asset)
}

// SetOracleMaxAge adjusts the staleness bound on the price oracle, when the
// configured oracle supports adjustment.
func (e *Engine) SetOracleMaxAge(caller crypto.Address, maxAgeMillis uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.admin.Equal(caller) {
		return ErrInvalidSigner
	}
	adjustable, ok := e.oracle.(interface{ SetMaxAge(uint64) })
	if !ok {
		return ErrInvalidAssetParams
	}
	adjustable.SetMaxAge(maxAgeMillis)
	return nil
}

// SetOraclePrice posts a quote to the price oracle, when the configured
// oracle accepts posted quotes. This is the feed path for deployments running
// the manual oracle.
func (e *Engine) SetOraclePrice(caller crypto.Address, symbol string, price, confidence *big.Int, atMillis uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.admin.Equal(caller) {
		return ErrInvalidSigner
	}
	if strings.TrimSpace(symbol) == "" || price == nil || price.Sign() <= 0 {
		return ErrInvalidAssetParams
	}
	postable, ok := e.oracle.(interface {
		SetPrice(string, *big.Int, *big.Int, uint64)
	})
	if !ok {
		return ErrInvalidAssetParams
	}
	if confidence == nil {
		confidence = big.NewInt(0)
	}
	postable.SetPrice(symbol, price, confidence, atMillis)
	return nil
}

// IngestDeposit verifies an inbound bridge message, enforces the replay guard,
// and materialises an unlocked collateral deposit. The replay identifier is
// consumed only when the whole ingestion succeeds, so a rejected message can
// be resubmitted after the registry is fixed.
func (e *Engine) IngestDeposit(raw []byte, now uint64) (*Deposit, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	msg, err := e.bridge.VerifyAndDecode(raw)
	if err != nil {
		return nil, err
	}
	replayed, err := e.state.HasReplay(msg.SourceChainID, msg.Sequence)
	if err != nil {
		return nil, err
	}
	if replayed {
		return nil, ErrReplayedMessage
	}
	payload, err := bridge.DecodeDepositPayload(msg.Payload)
	if err != nil {
		return nil, err
	}
	if payload.Amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	chain, err := e.state.GetChain(msg.SourceChainID)
	if err != nil {
		return nil, err
	}
	if chain == nil || !chain.Active {
		return nil, ErrInvalidSourceChain
	}
	asset, err := e.state.GetAsset(msg.SourceChainID, payload.Asset)
	if err != nil {
		return nil, err
	}
	if asset == nil || !asset.Active {
		return nil, ErrAssetNotSupported
	}

	id, err := e.state.NextDepositID()
	if err != nil {
		return nil, err
	}
	deposit := &Deposit{
		ID:             id,
		Owner:          crypto.NewAddress(crypto.LendPrefix, payload.Owner),
		SourceChainID:  msg.SourceChainID,
		Asset:          asset.Name,
		Amount:         new(big.Int).Set(payload.Amount),
		BridgeSequence: msg.Sequence,
		DepositTime:    now,
	}
	asset.TotalDeposited.Add(asset.TotalDeposited, payload.Amount)

	if err := e.state.PutReplay(msg.SourceChainID, msg.Sequence); err != nil {
		return nil, err
	}
	if err := e.state.PutDeposit(deposit); err != nil {
		return nil, err
	}
	if err := e.state.PutAsset(asset); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.CollateralDeposited{
		DepositID:      deposit.ID,
		Owner:          deposit.Owner.String(),
		SourceChainID:  deposit.SourceChainID,
		Asset:          deposit.Asset,
		Amount:         new(big.Int).Set(deposit.Amount),
		BridgeSequence: deposit.BridgeSequence,
		Timestamp:      now,
	})
	return deposit.Clone(), nil
}

// LockCollateral binds an unlocked deposit to a loan. The check-and-set runs
// under the engine mutex, so concurrent lock attempts against the same deposit
// have at most one winner.
func (e *Engine) LockCollateral(caller crypto.Address, depositID, loanID uint64, now uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if loanID == 0 {
		return ErrInvalidLoanID
	}
	deposit, err := e.state.GetDeposit(depositID)
	if err != nil {
		return err
	}
	if deposit == nil {
		return ErrCollateralNotFound
	}
	if !deposit.Owner.Equal(caller) {
		return ErrInvalidSigner
	}
	if deposit.Locked {
		return ErrCollateralLocked
	}
	deposit.Locked = true
	deposit.LoanID = loanID
	if err := e.state.PutDeposit(deposit); err != nil {
		return err
	}
	e.emitter.Emit(events.CollateralLocked{
		DepositID: depositID,
		Owner:     deposit.Owner.String(),
		LoanID:    loanID,
		Timestamp: now,
	})
	return nil
}

// ReleaseCollateral unbinds a deposit from the loan it is locked to.
func (e *Engine) ReleaseCollateral(depositID, loanID uint64, now uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	deposit, err := e.state.GetDeposit(depositID)
	if err != nil {
		return err
	}
	if deposit == nil {
		return ErrCollateralNotFound
	}
	if !deposit.Locked {
		return ErrCollateralNotLocked
	}
	if deposit.LoanID != loanID {
		return ErrLoanMismatch
	}
	deposit.Locked = false
	deposit.LoanID = 0
	if err := e.state.PutDeposit(deposit); err != nil {
		return err
	}
	e.emitter.Emit(events.CollateralReleased{
		DepositID: depositID,
		Owner:     deposit.Owner.String(),
		LoanID:    loanID,
		Timestamp: now,
	})
	return nil
}

// WithdrawCollateral deletes the custody record and publishes an outbound
// bridge message returning the deposit to its source chain. The publish is the
// final step: a storage failure aborts before anything leaves the ledger, so a
// deposit can never be bridged out twice. A transport failure after the record
// is settled surfaces as an error and needs operator reconciliation.
func (e *Engine) WithdrawCollateral(caller crypto.Address, depositID uint64, destination string, now uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	deposit, err := e.state.GetDeposit(depositID)
	if err != nil {
		return err
	}
	if deposit == nil {
		return ErrCollateralNotFound
	}
	if !deposit.Owner.Equal(caller) {
		return ErrInvalidSigner
	}
	if deposit.Locked {
		return ErrCollateralLocked
	}
	asset, err := e.state.GetAsset(deposit.SourceChainID, deposit.Asset)
	if err != nil {
		return err
	}

	payload, err := bridge.EncodeWithdrawPayload(bridge.WithdrawPayload{
		Recipient: destination,
		Asset:     deposit.Asset,
		Amount:    new(big.Int).Set(deposit.Amount),
	})
	if err != nil {
		return err
	}

	if err := e.state.DeleteDeposit(depositID); err != nil {
		return err
	}
	if asset != nil && asset.TotalDeposited != nil {
		asset.TotalDeposited.Sub(asset.TotalDeposited, deposit.Amount)
		if asset.TotalDeposited.Sign() < 0 {
			asset.TotalDeposited.SetInt64(0)
		}
		if err := e.state.PutAsset(asset); err != nil {
			return err
		}
	}
	if _, err := e.bridge.Publish(deposit.SourceChainID, payload); err != nil {
		return err
	}
	e.emitter.Emit(events.CollateralWithdrawn{
		DepositID:     depositID,
		Owner:         deposit.Owner.String(),
		SourceChainID: deposit.SourceChainID,
		Asset:         deposit.Asset,
		Amount:        new(big.Int).Set(deposit.Amount),
		Destination:   destination,
		Timestamp:     now,
	})
	return nil
}

// DepositValue returns the factor-adjusted base-asset value of a deposit.
func (e *Engine) DepositValue(depositID uint64, nowMillis uint64) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	deposit, err := e.state.GetDeposit(depositID)
	if err != nil {
		return nil, err
	}
	if deposit == nil {
		return nil, ErrCollateralNotFound
	}
	asset, err := e.state.GetAsset(deposit.SourceChainID, deposit.Asset)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, ErrAssetNotSupported
	}
	return e.value(asset, deposit.Amount, nowMillis)
}

// AssetValue resolves an asset by name and values the supplied amount. It
// satisfies the lending engine's CollateralValuer contract.
func (e *Engine) AssetValue(name string, amount *big.Int, nowMillis uint64) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	asset, err := e.state.FindAsset(name)
	if err != nil {
		return nil, err
	}
	if asset == nil || !asset.Active {
		return nil, ErrAssetNotSupported
	}
	return e.value(asset, amount, nowMillis)
}

// value computes amount * price / 10^decimals * factor / 10000 with
// truncating division at each step.
func (e *Engine) value(asset *Asset, amount *big.Int, nowMillis uint64) (*big.Int, error) {
	quote, err := e.oracle.GetPrice(asset.Name, nowMillis)
	if err != nil {
		return nil, err
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(asset.Decimals)), nil)
	value := new(big.Int).Mul(amount, quote.Price)
	value.Quo(value, scale)
	value.Mul(value, new(big.Int).SetUint64(asset.CollateralizationFactorBps))
	value.Quo(value, basisPoints)
	return value, nil
}

// DepositState returns a copy of a deposit record.
func (e *Engine) DepositState(depositID uint64) (*Deposit, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	deposit, err := e.state.GetDeposit(depositID)
	if err != nil {
		return nil, err
	}
	if deposit == nil {
		return nil, ErrCollateralNotFound
	}
	return deposit.Clone(), nil
}
