package custody

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"crosslend/bridge"
	"crosslend/crypto"
	"crosslend/native/oracle"
)

type mockState struct {
	chains   map[uint64]*Chain
	assets   map[string]*Asset
	deposits map[uint64]*Deposit
	replays  map[string]bool
	nextID   uint64
}

func newMockState() *mockState {
	return &mockState{
		chains:   make(map[uint64]*Chain),
		assets:   make(map[string]*Asset),
		deposits: make(map[uint64]*Deposit),
		replays:  make(map[string]bool),
	}
}

func assetKey(chainID uint64, name string) string {
	return fmt.Sprintf("%d/%s", chainID, name)
}

func (m *mockState) GetChain(id uint64) (*Chain, error) {
	return m.chains[id].Clone(), nil
}

func (m *mockState) PutChain(chain *Chain) error {
	m.chains[chain.ID] = chain.Clone()
	return nil
}

func (m *mockState) DeleteChain(id uint64) error {
	delete(m.chains, id)
	return nil
}

func (m *mockState) GetAsset(chainID uint64, name string) (*Asset, error) {
	return m.assets[assetKey(chainID, name)].Clone(), nil
}

func (m *mockState) FindAsset(name string) (*Asset, error) {
	for _, asset := range m.assets {
		if asset.Name == name {
			return asset.Clone(), nil
		}
	}
	return nil, nil
}

func (m *mockState) PutAsset(asset *Asset) error {
	m.assets[assetKey(asset.ChainID, asset.Name)] = asset.Clone()
	return nil
}

func (m *mockState) GetDeposit(id uint64) (*Deposit, error) {
	return m.deposits[id].Clone(), nil
}

func (m *mockState) PutDeposit(deposit *Deposit) error {
	m.deposits[deposit.ID] = deposit.Clone()
	return nil
}

func (m *mockState) DeleteDeposit(id uint64) error {
	delete(m.deposits, id)
	return nil
}

func (m *mockState) HasReplay(chainID, sequence uint64) (bool, error) {
	return m.replays[fmt.Sprintf("%d/%d", chainID, sequence)], nil
}

func (m *mockState) PutReplay(chainID, sequence uint64) error {
	m.replays[fmt.Sprintf("%d/%d", chainID, sequence)] = true
	return nil
}

func (m *mockState) NextDepositID() (uint64, error) {
	m.nextID++
	return m.nextID, nil
}

func makeAddress(suffix byte) crypto.Address {
	raw := make([]byte, 20)
	raw[len(raw)-1] = suffix
	return crypto.NewAddress(crypto.LendPrefix, raw)
}

func depositMessage(t *testing.T, chainID, sequence uint64, owner crypto.Address, asset string, amount int64) []byte {
	t.Helper()
	payload, err := bridge.EncodeDepositPayload(bridge.DepositPayload{
		Owner:  owner.Bytes(),
		Asset:  asset,
		Amount: big.NewInt(amount),
	})
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	raw, err := bridge.EncodeMessage(bridge.InboundMessage{
		SourceChainID: chainID,
		Emitter:       []byte{0x01},
		Sequence:      sequence,
		Payload:       payload,
	})
	if err != nil {
		t.Fatalf("encode message: %v", err)
	}
	return raw
}

func newTestEngine(t *testing.T) (*Engine, *mockState, *oracle.ManualOracle, *bridge.MemoryMessenger) {
	t.Helper()
	state := newMockState()
	feed := oracle.NewManualOracle(60_000)
	messenger := bridge.NewMemoryMessenger()
	engine := NewEngine(state, makeAddress(0x01), feed, messenger)

	admin := makeAddress(0x01)
	if err := engine.AddChain(admin, 7); err != nil {
		t.Fatalf("add chain: %v", err)
	}
	if err := engine.AddAsset(admin, 7, "WSOL", 0, 10_000); err != nil {
		t.Fatalf("add asset: %v", err)
	}
	return engine, state, feed, messenger
}

func TestIngestDepositReplayGuard(t *testing.T) {
	engine, state, _, _ := newTestEngine(t)
	owner := makeAddress(0x20)
	raw := depositMessage(t, 7, 1, owner, "WSOL", 500)

	deposit, err := engine.IngestDeposit(raw, 100)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if deposit.Locked || deposit.LoanID != 0 {
		t.Fatalf("fresh deposit must be unlocked: %+v", deposit)
	}
	if total := state.assets[assetKey(7, "WSOL")].TotalDeposited; total.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("expected running total 500, got %s", total)
	}

	// The identical message is consumed exactly once.
	if _, err := engine.IngestDeposit(raw, 101); !errors.Is(err, ErrReplayedMessage) {
		t.Fatalf("expected ErrReplayedMessage, got %v", err)
	}
	if len(state.deposits) != 1 {
		t.Fatalf("expected exactly one deposit, got %d", len(state.deposits))
	}
}

func TestIngestDepositRegistryChecks(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	owner := makeAddress(0x20)

	// Unknown chain.
	if _, err := engine.IngestDeposit(depositMessage(t, 9, 1, owner, "WSOL", 10), 0); !errors.Is(err, ErrInvalidSourceChain) {
		t.Fatalf("expected ErrInvalidSourceChain, got %v", err)
	}
	// Unknown asset.
	if _, err := engine.IngestDeposit(depositMessage(t, 7, 2, owner, "WETH", 10), 0); !errors.Is(err, ErrAssetNotSupported) {
		t.Fatalf("expected ErrAssetNotSupported, got %v", err)
	}
	// Deactivated asset.
	if err := engine.SetAssetActive(makeAddress(0x01), 7, "WSOL", false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := engine.IngestDeposit(depositMessage(t, 7, 3, owner, "WSOL", 10), 0); !errors.Is(err, ErrAssetNotSupported) {
		t.Fatalf("expected ErrAssetNotSupported for inactive asset, got %v", err)
	}
}

func TestRejectedIngestDoesNotConsumeReplayID(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	owner := makeAddress(0x20)
	raw := depositMessage(t, 7, 5, owner, "WETH", 10)

	if _, err := engine.IngestDeposit(raw, 0); !errors.Is(err, ErrAssetNotSupported) {
		t.Fatalf("expected ErrAssetNotSupported, got %v", err)
	}

	// After the asset is registered the same message becomes ingestible.
	if err := engine.AddAsset(makeAddress(0x01), 7, "WETH", 0, 9_000); err != nil {
		t.Fatalf("add asset: %v", err)
	}
	if _, err := engine.IngestDeposit(raw, 1); err != nil {
		t.Fatalf("resubmitted message should ingest: %v", err)
	}
}

func TestIngestDepositMalformedMessage(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	if _, err := engine.IngestDeposit([]byte{0x00, 0x01}, 0); !errors.Is(err, bridge.ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
}

func TestLockReleaseLifecycle(t *testing.T) {
	engine, state, _, _ := newTestEngine(t)
	owner := makeAddress(0x20)

	deposit, err := engine.IngestDeposit(depositMessage(t, 7, 1, owner, "WSOL", 500), 0)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if err := engine.LockCollateral(makeAddress(0x30), deposit.ID, 1, 10); !errors.Is(err, ErrInvalidSigner) {
		t.Fatalf("expected ErrInvalidSigner for non-owner, got %v", err)
	}
	if err := engine.LockCollateral(owner, deposit.ID, 0, 10); !errors.Is(err, ErrInvalidLoanID) {
		t.Fatalf("expected ErrInvalidLoanID, got %v", err)
	}
	if err := engine.LockCollateral(owner, deposit.ID, 1, 10); err != nil {
		t.Fatalf("lock: %v", err)
	}

	stored := state.deposits[deposit.ID]
	if !stored.Locked || stored.LoanID != 1 {
		t.Fatalf("lock flag and loan binding must move together: %+v", stored)
	}

	if err := engine.LockCollateral(owner, deposit.ID, 2, 11); !errors.Is(err, ErrCollateralLocked) {
		t.Fatalf("expected ErrCollateralLocked, got %v", err)
	}
	if err := engine.ReleaseCollateral(deposit.ID, 2, 12); !errors.Is(err, ErrLoanMismatch) {
		t.Fatalf("expected ErrLoanMismatch, got %v", err)
	}
	if err := engine.ReleaseCollateral(deposit.ID, 1, 12); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := engine.ReleaseCollateral(deposit.ID, 1, 13); !errors.Is(err, ErrCollateralNotLocked) {
		t.Fatalf("expected ErrCollateralNotLocked, got %v", err)
	}

	stored = state.deposits[deposit.ID]
	if stored.Locked || stored.LoanID != 0 {
		t.Fatalf("release must clear both fields: %+v", stored)
	}
}

func TestConcurrentLockSingleWinner(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	owner := makeAddress(0x20)

	deposit, err := engine.IngestDeposit(depositMessage(t, 7, 1, owner, "WSOL", 500), 0)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = engine.LockCollateral(owner, deposit.ID, uint64(i)+1, 20)
		}(i)
	}
	wg.Wait()

	var wins, losses int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrCollateralLocked):
			losses++
		default:
			t.Fatalf("unexpected lock error: %v", err)
		}
	}
	if wins != 1 || losses != 1 {
		t.Fatalf("expected exactly one winner, got %d wins and %d losses", wins, losses)
	}
}

func TestWithdrawCollateral(t *testing.T) {
	engine, state, _, messenger := newTestEngine(t)
	owner := makeAddress(0x20)

	deposit, err := engine.IngestDeposit(depositMessage(t, 7, 1, owner, "WSOL", 500), 0)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := engine.LockCollateral(owner, deposit.ID, 1, 5); err != nil {
		t.Fatalf("lock: %v", err)
	}

	// A locked deposit cannot leave custody.
	if err := engine.WithdrawCollateral(owner, deposit.ID, "sol:recipient", 6); !errors.Is(err, ErrCollateralLocked) {
		t.Fatalf("expected ErrCollateralLocked, got %v", err)
	}
	if err := engine.ReleaseCollateral(deposit.ID, 1, 7); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := engine.WithdrawCollateral(owner, deposit.ID, "sol:recipient", 8); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	if _, ok := state.deposits[deposit.ID]; ok {
		t.Fatalf("withdrawn deposit must be deleted")
	}
	if total := state.assets[assetKey(7, "WSOL")].TotalDeposited; total.Sign() != 0 {
		t.Fatalf("running total must return to zero, got %s", total)
	}

	outbound := messenger.Outbound()
	if len(outbound) != 1 || outbound[0].TargetChainID != 7 {
		t.Fatalf("expected one outbound message to chain 7, got %+v", outbound)
	}
	payload, err := bridge.DecodeWithdrawPayload(outbound[0].Payload)
	if err != nil {
		t.Fatalf("decode outbound: %v", err)
	}
	if payload.Recipient != "sol:recipient" || payload.Amount.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("unexpected outbound payload: %+v", payload)
	}

	if err := engine.WithdrawCollateral(owner, deposit.ID, "sol:recipient", 9); !errors.Is(err, ErrCollateralNotFound) {
		t.Fatalf("expected ErrCollateralNotFound, got %v", err)
	}
}

type faultState struct {
	*mockState
	deleteDepositErr error
}

func (f *faultState) DeleteDeposit(id uint64) error {
	if f.deleteDepositErr != nil {
		return f.deleteDepositErr
	}
	return f.mockState.DeleteDeposit(id)
}

func TestWithdrawStorageFailureDoesNotPublish(t *testing.T) {
	state := &faultState{mockState: newMockState()}
	messenger := bridge.NewMemoryMessenger()
	admin := makeAddress(0x01)
	engine := NewEngine(state, admin, oracle.NewManualOracle(60_000), messenger)
	owner := makeAddress(0x20)

	if err := engine.AddChain(admin, 7); err != nil {
		t.Fatalf("add chain: %v", err)
	}
	if err := engine.AddAsset(admin, 7, "WSOL", 0, 10_000); err != nil {
		t.Fatalf("add asset: %v", err)
	}
	deposit, err := engine.IngestDeposit(depositMessage(t, 7, 1, owner, "WSOL", 500), 0)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	state.deleteDepositErr = errors.New("disk full")
	if err := engine.WithdrawCollateral(owner, deposit.ID, "sol:recipient", 1); err == nil {
		t.Fatal("expected storage error to surface")
	}
	if outbound := messenger.Outbound(); len(outbound) != 0 {
		t.Fatalf("no message may be published when persistence fails, got %+v", outbound)
	}
	if total := state.assets[assetKey(7, "WSOL")].TotalDeposited; total.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("running total must be untouched, got %s", total)
	}

	// Once storage recovers the same deposit withdraws exactly once.
	state.deleteDepositErr = nil
	if err := engine.WithdrawCollateral(owner, deposit.ID, "sol:recipient", 2); err != nil {
		t.Fatalf("withdraw after recovery: %v", err)
	}
	if outbound := messenger.Outbound(); len(outbound) != 1 {
		t.Fatalf("expected exactly one outbound message, got %d", len(outbound))
	}
}

func TestSetOraclePrice(t *testing.T) {
	engine, _, feed, _ := newTestEngine(t)
	admin := makeAddress(0x01)
	owner := makeAddress(0x20)

	if err := engine.SetOraclePrice(makeAddress(0x99), "WSOL", big.NewInt(2), nil, 1_000); !errors.Is(err, ErrInvalidSigner) {
		t.Fatalf("expected ErrInvalidSigner, got %v", err)
	}
	if err := engine.SetOraclePrice(admin, "", big.NewInt(2), nil, 1_000); !errors.Is(err, ErrInvalidAssetParams) {
		t.Fatalf("expected ErrInvalidAssetParams for empty symbol, got %v", err)
	}
	if err := engine.SetOraclePrice(admin, "WSOL", big.NewInt(0), nil, 1_000); !errors.Is(err, ErrInvalidAssetParams) {
		t.Fatalf("expected ErrInvalidAssetParams for zero price, got %v", err)
	}

	if err := engine.SetOraclePrice(admin, "WSOL", big.NewInt(2), nil, 1_000); err != nil {
		t.Fatalf("post price: %v", err)
	}
	quote, err := feed.GetPrice("WSOL", 1_000)
	if err != nil {
		t.Fatalf("get price: %v", err)
	}
	if quote.Price.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("expected posted price 2, got %s", quote.Price)
	}

	// The posted quote drives deposit valuation.
	deposit, err := engine.IngestDeposit(depositMessage(t, 7, 1, owner, "WSOL", 500), 0)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	value, err := engine.DepositValue(deposit.ID, 1_000)
	if err != nil {
		t.Fatalf("deposit value: %v", err)
	}
	if value.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("expected value 1000, got %s", value)
	}
}

func TestCollateralValuation(t *testing.T) {
	engine, _, feed, _ := newTestEngine(t)
	admin := makeAddress(0x01)
	owner := makeAddress(0x20)

	// 9 decimals, 80% collateralization factor.
	if err := engine.AddAsset(admin, 7, "WETH", 9, 8_000); err != nil {
		t.Fatalf("add asset: %v", err)
	}
	feed.SetPrice("WETH", big.NewInt(2_000), nil, 0)

	deposit, err := engine.IngestDeposit(depositMessage(t, 7, 2, owner, "WETH", 3_000_000_000), 0)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	// 3e9 units * 2000 / 1e9 * 8000 / 10000 = 4800.
	value, err := engine.DepositValue(deposit.ID, 0)
	if err != nil {
		t.Fatalf("deposit value: %v", err)
	}
	if value.Cmp(big.NewInt(4_800)) != 0 {
		t.Fatalf("expected value 4800, got %s", value)
	}

	byName, err := engine.AssetValue("WETH", big.NewInt(3_000_000_000), 0)
	if err != nil {
		t.Fatalf("asset value: %v", err)
	}
	if byName.Cmp(value) != 0 {
		t.Fatalf("AssetValue and DepositValue disagree: %s vs %s", byName, value)
	}

	// Stale quotes surface the oracle error unchanged.
	if _, err := engine.AssetValue("WETH", big.NewInt(1), 120_000); !errors.Is(err, oracle.ErrStalePrice) {
		t.Fatalf("expected ErrStalePrice, got %v", err)
	}
	if _, err := engine.AssetValue("WBTC", big.NewInt(1), 0); !errors.Is(err, ErrAssetNotSupported) {
		t.Fatalf("expected ErrAssetNotSupported, got %v", err)
	}
}

func TestRegistryAdminGate(t *testing.T) {
	engine, _, feed, _ := newTestEngine(t)
	outsider := makeAddress(0x99)

	if err := engine.AddChain(outsider, 11); !errors.Is(err, ErrInvalidSigner) {
		t.Fatalf("expected ErrInvalidSigner, got %v", err)
	}
	if err := engine.AddAsset(outsider, 7, "WBTC", 8, 7_000); !errors.Is(err, ErrInvalidSigner) {
		t.Fatalf("expected ErrInvalidSigner, got %v", err)
	}
	if err := engine.RemoveChain(outsider, 7); !errors.Is(err, ErrInvalidSigner) {
		t.Fatalf("expected ErrInvalidSigner, got %v", err)
	}
	if err := engine.SetOracleMaxAge(outsider, 1_000); !errors.Is(err, ErrInvalidSigner) {
		t.Fatalf("expected ErrInvalidSigner, got %v", err)
	}

	admin := makeAddress(0x01)
	if err := engine.SetOracleMaxAge(admin, 30_000); err != nil {
		t.Fatalf("set oracle max age: %v", err)
	}
	if got := feed.MaxAge(); got != 30_000 {
		t.Fatalf("expected max age 30000, got %d", got)
	}
}

func TestRemoveChainBlocksIngestion(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	admin := makeAddress(0x01)
	owner := makeAddress(0x20)

	if err := engine.RemoveChain(admin, 7); err != nil {
		t.Fatalf("remove chain: %v", err)
	}
	if _, err := engine.IngestDeposit(depositMessage(t, 7, 1, owner, "WSOL", 10), 0); !errors.Is(err, ErrInvalidSourceChain) {
		t.Fatalf("expected ErrInvalidSourceChain after removal, got %v", err)
	}
}

func TestSetChainActiveTogglesIngestion(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	admin := makeAddress(0x01)
	owner := makeAddress(0x20)

	if err := engine.SetChainActive(makeAddress(0x99), 7, false); !errors.Is(err, ErrInvalidSigner) {
		t.Fatalf("expected ErrInvalidSigner, got %v", err)
	}
	if err := engine.SetChainActive(admin, 42, false); !errors.Is(err, ErrInvalidSourceChain) {
		t.Fatalf("expected ErrInvalidSourceChain for unknown chain, got %v", err)
	}

	if err := engine.SetChainActive(admin, 7, false); err != nil {
		t.Fatalf("deactivate chain: %v", err)
	}
	if _, err := engine.IngestDeposit(depositMessage(t, 7, 1, owner, "WSOL", 10), 0); !errors.Is(err, ErrInvalidSourceChain) {
		t.Fatalf("expected ErrInvalidSourceChain while inactive, got %v", err)
	}

	if err := engine.SetChainActive(admin, 7, true); err != nil {
		t.Fatalf("reactivate chain: %v", err)
	}
	if _, err := engine.IngestDeposit(depositMessage(t, 7, 1, owner, "WSOL", 10), 0); err != nil {
		t.Fatalf("ingest after reactivation: %v", err)
	}
}

func TestAddAssetValidation(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	admin := makeAddress(0x01)

	if err := engine.AddAsset(admin, 7, "", 0, 10_000); !errors.Is(err, ErrInvalidAssetParams) {
		t.Fatalf("expected ErrInvalidAssetParams for empty name, got %v", err)
	}
	if err := engine.AddAsset(admin, 7, "WBTC", 8, 10_001); !errors.Is(err, ErrInvalidAssetParams) {
		t.Fatalf("expected ErrInvalidAssetParams for factor > 100%%, got %v", err)
	}
	if err := engine.AddAsset(admin, 42, "WBTC", 8, 7_000); !errors.Is(err, ErrInvalidSourceChain) {
		t.Fatalf("expected ErrInvalidSourceChain for unknown chain, got %v", err)
	}
}
