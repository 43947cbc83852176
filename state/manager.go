// Package state persists the lending pool and custody registry as RLP encoded
// records in a key-value store. It implements the state interfaces consumed by
// the lending and custody engines.
package state

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"

	"crosslend/crypto"
	"crosslend/native/custody"
	"crosslend/native/lending"
	"crosslend/storage"
)

var (
	poolKey           = []byte("lending/pool")
	accountPrefix     = []byte("lending/account/")
	chainPrefix       = []byte("custody/chain/")
	assetPrefix       = []byte("custody/asset/")
	assetNamePrefix   = []byte("custody/asset-name/")
	depositPrefix     = []byte("custody/deposit/")
	replayPrefix      = []byte("custody/replay/")
	depositCounterKey = []byte("custody/meta/next-deposit")
)

// Manager exposes the persisted ledger state to the engines.
type Manager struct {
	db storage.Database
}

// NewManager wraps a key-value database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func u64Key(prefix []byte, id uint64) []byte {
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], id)
	return key
}

func (m *Manager) get(key []byte, out interface{}) (bool, error) {
	raw, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

func (m *Manager) put(key []byte, value interface{}) error {
	raw, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	return m.db.Put(key, raw)
}

// --- lending.State ---

type storedPool struct {
	Admin          []byte
	BaseBps        uint64
	OptimalBps     uint64
	Slope1Bps      uint64
	Slope2Bps      uint64
	Liquidity      *big.Int
	TotalBorrowed  *big.Int
	LastUpdateTime uint64
	NextLoanID     uint64
}

type storedLoan struct {
	ID               uint64
	Principal        *big.Int
	CollateralAmount *big.Int
	CollateralAsset  string
	RateBps          uint64
	OriginationTime  uint64
	Duration         uint64
	AccruedInterest  *big.Int
	LastAccrualTime  uint64
}

type storedAccount struct {
	Owner           []byte
	DepositAmount   *big.Int
	LastAccrualTime uint64
	Loans           []storedLoan
}

// GetPool loads the pool record, or nil when uninitialised.
func (m *Manager) GetPool() (*lending.Pool, error) {
	var stored storedPool
	ok, err := m.get(poolKey, &stored)
	if err != nil || !ok {
		return nil, err
	}
	return &lending.Pool{
		Admin: crypto.NewAddress(crypto.LendPrefix, stored.Admin),
		Params: lending.RateParams{
			BaseBps:               stored.BaseBps,
			OptimalUtilizationBps: stored.OptimalBps,
			Slope1Bps:             stored.Slope1Bps,
			Slope2Bps:             stored.Slope2Bps,
		},
		Liquidity:      bigOrZero(stored.Liquidity),
		TotalBorrowed:  bigOrZero(stored.TotalBorrowed),
		LastUpdateTime: stored.LastUpdateTime,
		NextLoanID:     stored.NextLoanID,
	}, nil
}

// PutPool persists the pool record.
func (m *Manager) PutPool(pool *lending.Pool) error {
	return m.put(poolKey, &storedPool{
		Admin:          pool.Admin.Bytes(),
		BaseBps:        pool.Params.BaseBps,
		OptimalBps:     pool.Params.OptimalUtilizationBps,
		Slope1Bps:      pool.Params.Slope1Bps,
		Slope2Bps:      pool.Params.Slope2Bps,
		Liquidity:      bigOrZero(pool.Liquidity),
		TotalBorrowed:  bigOrZero(pool.TotalBorrowed),
		LastUpdateTime: pool.LastUpdateTime,
		NextLoanID:     pool.NextLoanID,
	})
}

// GetAccount loads a user account with its loans, or nil when absent.
func (m *Manager) GetAccount(addr crypto.Address) (*lending.UserAccount, error) {
	key := append(append([]byte(nil), accountPrefix...), addr.Bytes()...)
	var stored storedAccount
	ok, err := m.get(key, &stored)
	if err != nil || !ok {
		return nil, err
	}
	account := &lending.UserAccount{
		Owner:           crypto.NewAddress(crypto.LendPrefix, stored.Owner),
		DepositAmount:   bigOrZero(stored.DepositAmount),
		LastAccrualTime: stored.LastAccrualTime,
		Loans:           make(map[uint64]*lending.Loan, len(stored.Loans)),
	}
	for _, loan := range stored.Loans {
		account.Loans[loan.ID] = &lending.Loan{
			ID:               loan.ID,
			Principal:        bigOrZero(loan.Principal),
			CollateralAmount: bigOrZero(loan.CollateralAmount),
			CollateralAsset:  loan.CollateralAsset,
			RateBps:          loan.RateBps,
			OriginationTime:  loan.OriginationTime,
			Duration:         loan.Duration,
			AccruedInterest:  bigOrZero(loan.AccruedInterest),
			LastAccrualTime:  loan.LastAccrualTime,
		}
	}
	return account, nil
}

// PutAccount persists a user account. Loans are stored sorted by identifier so
// encoding is deterministic.
func (m *Manager) PutAccount(account *lending.UserAccount) error {
	key := append(append([]byte(nil), accountPrefix...), account.Owner.Bytes()...)
	stored := storedAccount{
		Owner:           account.Owner.Bytes(),
		DepositAmount:   bigOrZero(account.DepositAmount),
		LastAccrualTime: account.LastAccrualTime,
		Loans:           make([]storedLoan, 0, len(account.Loans)),
	}
	ids := make([]uint64, 0, len(account.Loans))
	for id := range account.Loans {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		loan := account.Loans[id]
		stored.Loans = append(stored.Loans, storedLoan{
			ID:               loan.ID,
			Principal:        bigOrZero(loan.Principal),
			CollateralAmount: bigOrZero(loan.CollateralAmount),
			CollateralAsset:  loan.CollateralAsset,
			RateBps:          loan.RateBps,
			OriginationTime:  loan.OriginationTime,
			Duration:         loan.Duration,
			AccruedInterest:  bigOrZero(loan.AccruedInterest),
			LastAccrualTime:  loan.LastAccrualTime,
		})
	}
	return m.put(key, &stored)
}

// --- custody.State ---

type storedChain struct {
	ID     uint64
	Active bool
}

type storedAsset struct {
	ChainID        uint64
	Name           string
	Decimals       uint8
	FactorBps      uint64
	Active         bool
	TotalDeposited *big.Int
}

type storedDeposit struct {
	ID             uint64
	Owner          []byte
	SourceChainID  uint64
	Asset          string
	Amount         *big.Int
	BridgeSequence uint64
	DepositTime    uint64
	Locked         bool
	LoanID         uint64
}

func assetKey(chainID uint64, name string) []byte {
	return append(u64Key(assetPrefix, chainID), []byte("/"+name)...)
}

// GetChain loads a chain record, or nil when absent.
func (m *Manager) GetChain(id uint64) (*custody.Chain, error) {
	var stored storedChain
	ok, err := m.get(u64Key(chainPrefix, id), &stored)
	if err != nil || !ok {
		return nil, err
	}
	return &custody.Chain{ID: stored.ID, Active: stored.Active}, nil
}

// PutChain persists a chain record.
func (m *Manager) PutChain(chain *custody.Chain) error {
	return m.put(u64Key(chainPrefix, chain.ID), &storedChain{ID: chain.ID, Active: chain.Active})
}

// DeleteChain removes a chain record.
func (m *Manager) DeleteChain(id uint64) error {
	return m.db.Delete(u64Key(chainPrefix, id))
}

// GetAsset loads an asset record, or nil when absent.
func (m *Manager) GetAsset(chainID uint64, name string) (*custody.Asset, error) {
	var stored storedAsset
	ok, err := m.get(assetKey(chainID, name), &stored)
	if err != nil || !ok {
		return nil, err
	}
	return assetFromStored(stored), nil
}

// FindAsset resolves an asset by name through the name index.
func (m *Manager) FindAsset(name string) (*custody.Asset, error) {
	key := append(append([]byte(nil), assetNamePrefix...), []byte(name)...)
	var chainID uint64
	ok, err := m.get(key, &chainID)
	if err != nil || !ok {
		return nil, err
	}
	return m.GetAsset(chainID, name)
}

// PutAsset persists an asset record and maintains the name index.
func (m *Manager) PutAsset(asset *custody.Asset) error {
	stored := storedAsset{
		ChainID:        asset.ChainID,
		Name:           asset.Name,
		Decimals:       asset.Decimals,
		FactorBps:      asset.CollateralizationFactorBps,
		Active:         asset.Active,
		TotalDeposited: bigOrZero(asset.TotalDeposited),
	}
	if err := m.put(assetKey(asset.ChainID, asset.Name), &stored); err != nil {
		return err
	}
	nameKey := append(append([]byte(nil), assetNamePrefix...), []byte(asset.Name)...)
	return m.put(nameKey, asset.ChainID)
}

func assetFromStored(stored storedAsset) *custody.Asset {
	return &custody.Asset{
		ChainID:                    stored.ChainID,
		Name:                       stored.Name,
		Decimals:                   stored.Decimals,
		CollateralizationFactorBps: stored.FactorBps,
		Active:                     stored.Active,
		TotalDeposited:             bigOrZero(stored.TotalDeposited),
	}
}

// GetDeposit loads a deposit record, or nil when absent.
func (m *Manager) GetDeposit(id uint64) (*custody.Deposit, error) {
	var stored storedDeposit
	ok, err := m.get(u64Key(depositPrefix, id), &stored)
	if err != nil || !ok {
		return nil, err
	}
	return &custody.Deposit{
		ID:             stored.ID,
		Owner:          crypto.NewAddress(crypto.LendPrefix, stored.Owner),
		SourceChainID:  stored.SourceChainID,
		Asset:          stored.Asset,
		Amount:         bigOrZero(stored.Amount),
		BridgeSequence: stored.BridgeSequence,
		DepositTime:    stored.DepositTime,
		Locked:         stored.Locked,
		LoanID:         stored.LoanID,
	}, nil
}

// PutDeposit persists a deposit record.
func (m *Manager) PutDeposit(deposit *custody.Deposit) error {
	return m.put(u64Key(depositPrefix, deposit.ID), &storedDeposit{
		ID:             deposit.ID,
		Owner:          deposit.Owner.Bytes(),
		SourceChainID:  deposit.SourceChainID,
		Asset:          deposit.Asset,
		Amount:         bigOrZero(deposit.Amount),
		BridgeSequence: deposit.BridgeSequence,
		DepositTime:    deposit.DepositTime,
		Locked:         deposit.Locked,
		LoanID:         deposit.LoanID,
	})
}

// DeleteDeposit removes a deposit record.
func (m *Manager) DeleteDeposit(id uint64) error {
	return m.db.Delete(u64Key(depositPrefix, id))
}

func replayKey(chainID, sequence uint64) []byte {
	return u64Key(u64Key(replayPrefix, chainID), sequence)
}

// HasReplay reports whether the (chain, sequence) identifier was consumed.
func (m *Manager) HasReplay(chainID, sequence uint64) (bool, error) {
	return m.db.Has(replayKey(chainID, sequence))
}

// PutReplay records a consumed identifier. Entries are never pruned.
func (m *Manager) PutReplay(chainID, sequence uint64) error {
	return m.db.Put(replayKey(chainID, sequence), []byte{0x01})
}

// NextDepositID increments and returns the deposit id counter. Identifiers
// burned by an aborted ingestion are skipped, never reused.
func (m *Manager) NextDepositID() (uint64, error) {
	var counter uint64
	if _, err := m.get(depositCounterKey, &counter); err != nil {
		return 0, err
	}
	counter++
	if err := m.put(depositCounterKey, counter); err != nil {
		return 0, err
	}
	return counter, nil
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
