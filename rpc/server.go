package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"crosslend/bridge"
	"crosslend/crypto"
	"crosslend/native/custody"
	"crosslend/native/lending"
	"crosslend/native/oracle"
	"crosslend/observability/metrics"
)

// Config carries the server's collaborators and tuning knobs.
type Config struct {
	Lending  *lending.Engine
	Custody  *custody.Engine
	Limit    RateLimit
	Now      func() time.Time
	Registry *metrics.LedgerMetrics
}

// Server exposes the ledger over HTTP/JSON.
type Server struct {
	lending *lending.Engine
	custody *custody.Engine
	now     func() time.Time
	stats   *metrics.LedgerMetrics
	router  http.Handler
}

// NewServer wires the HTTP routes around the two engines.
func NewServer(cfg Config) *Server {
	srv := &Server{
		lending: cfg.Lending,
		custody: cfg.Custody,
		now:     cfg.Now,
		stats:   cfg.Registry,
	}
	if srv.now == nil {
		srv.now = time.Now
	}
	srv.router = srv.buildRouter(NewRateLimiter(cfg.Limit))
	return srv
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter(limiter *RateLimiter) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(api chi.Router) {
		api.Use(limiter.Middleware)

		api.Route("/pool", func(pool chi.Router) {
			pool.Get("/", s.getPool)
			pool.Get("/rate", s.getRate)
			pool.Post("/init", s.initPool)
			pool.Post("/params", s.updateParams)
			pool.Post("/deposits", s.poolDeposit)
			pool.Post("/withdrawals", s.poolWithdraw)
		})

		api.Get("/accounts/{address}", s.getAccount)

		api.Route("/loans", func(loans chi.Router) {
			loans.Post("/", s.borrow)
			loans.Get("/{address}/{loanID}/debt", s.loanDebt)
			loans.Get("/{address}/{loanID}/health", s.loanHealth)
			loans.Post("/{address}/{loanID}/repayments", s.repay)
			loans.Post("/{address}/{loanID}/liquidations", s.liquidate)
		})

		api.Route("/custody", func(cus chi.Router) {
			cus.Post("/messages", s.ingestDeposit)
			cus.Get("/deposits/{id}", s.getDeposit)
			cus.Get("/deposits/{id}/value", s.depositValue)
			cus.Post("/deposits/{id}/lock", s.lockCollateral)
			cus.Post("/deposits/{id}/release", s.releaseCollateral)
			cus.Post("/deposits/{id}/withdrawals", s.withdrawCollateral)

			cus.Post("/chains", s.addChain)
			cus.Post("/chains/active", s.setChainActive)
			cus.Delete("/chains/{id}", s.removeChain)
			cus.Post("/assets", s.addAsset)
			cus.Post("/assets/active", s.setAssetActive)
			cus.Post("/oracle/prices", s.setOraclePrice)
			cus.Post("/oracle/max-age", s.setOracleMaxAge)
		})
	})

	return r
}

func (s *Server) nowUnix() uint64 {
	return uint64(s.now().Unix())
}

type rateParamsRequest struct {
	BaseBps               uint64 `json:"baseBps"`
	OptimalUtilizationBps uint64 `json:"optimalUtilizationBps"`
	Slope1Bps             uint64 `json:"slope1Bps"`
	Slope2Bps             uint64 `json:"slope2Bps"`
}

func (r rateParamsRequest) toParams() lending.RateParams {
	return lending.RateParams{
		BaseBps:               r.BaseBps,
		OptimalUtilizationBps: r.OptimalUtilizationBps,
		Slope1Bps:             r.Slope1Bps,
		Slope2Bps:             r.Slope2Bps,
	}
}

// --- pool handlers ---

func (s *Server) getPool(w http.ResponseWriter, _ *http.Request) {
	pool, err := s.lending.PoolState()
	if err != nil {
		writeError(w, err)
		return
	}
	rateBps, err := s.lending.CurrentRateBps()
	if err != nil {
		writeError(w, err)
		return
	}
	s.refreshPoolGauges(pool, rateBps)
	writeJSON(w, http.StatusOK, map[string]any{
		"admin":          pool.Admin.String(),
		"liquidity":      pool.Liquidity.String(),
		"totalBorrowed":  pool.TotalBorrowed.String(),
		"rateBps":        rateBps,
		"lastUpdateTime": pool.LastUpdateTime,
		"params": map[string]uint64{
			"baseBps":               pool.Params.BaseBps,
			"optimalUtilizationBps": pool.Params.OptimalUtilizationBps,
			"slope1Bps":             pool.Params.Slope1Bps,
			"slope2Bps":             pool.Params.Slope2Bps,
		},
	})
}

func (s *Server) getRate(w http.ResponseWriter, _ *http.Request) {
	rateBps, err := s.lending.CurrentRateBps()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"rateBps": rateBps})
}

func (s *Server) initPool(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Admin  string            `json:"admin"`
		Params rateParamsRequest `json:"params"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	admin, ok := parseAddress(w, req.Admin)
	if !ok {
		return
	}
	err := s.lending.InitPool(admin, req.Params.toParams(), s.nowUnix())
	s.observe("pool.init", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "initialised"})
}

func (s *Server) updateParams(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller string            `json:"caller"`
		Params rateParamsRequest `json:"params"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseAddress(w, req.Caller)
	if !ok {
		return
	}
	err := s.lending.UpdateRateParams(caller, req.Params.toParams())
	s.observe("pool.params", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) poolDeposit(w http.ResponseWriter, r *http.Request) {
	caller, amount, ok := parseAmountRequest(w, r)
	if !ok {
		return
	}
	err := s.lending.Deposit(caller, amount, s.nowUnix())
	s.observe("pool.deposit", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deposited"})
}

func (s *Server) poolWithdraw(w http.ResponseWriter, r *http.Request) {
	caller, amount, ok := parseAmountRequest(w, r)
	if !ok {
		return
	}
	err := s.lending.Withdraw(caller, amount, s.nowUnix())
	s.observe("pool.withdraw", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "withdrawn"})
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(w, chi.URLParam(r, "address"))
	if !ok {
		return
	}
	account, err := s.lending.AccountState(addr)
	if err != nil {
		writeError(w, err)
		return
	}
	if account == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"owner":         addr.String(),
			"depositAmount": "0",
			"loans":         []any{},
		})
		return
	}
	loans := make([]map[string]any, 0, len(account.Loans))
	for _, loan := range account.Loans {
		loans = append(loans, map[string]any{
			"id":               loan.ID,
			"principal":        loan.Principal.String(),
			"accruedInterest":  loan.AccruedInterest.String(),
			"collateralAmount": loan.CollateralAmount.String(),
			"collateralAsset":  loan.CollateralAsset,
			"rateBps":          loan.RateBps,
			"originationTime":  loan.OriginationTime,
			"duration":         loan.Duration,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"owner":         account.Owner.String(),
		"depositAmount": account.DepositAmount.String(),
		"loans":         loans,
	})
}

// --- loan handlers ---

func (s *Server) borrow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Borrower         string `json:"borrower"`
		Amount           string `json:"amount"`
		CollateralAmount string `json:"collateralAmount"`
		CollateralAsset  string `json:"collateralAsset"`
		DurationSeconds  uint64 `json:"durationSeconds"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	borrower, ok := parseAddress(w, req.Borrower)
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return
	}
	collateral, ok := parseAmount(w, req.CollateralAmount)
	if !ok {
		return
	}
	loan, err := s.lending.Borrow(borrower, amount, collateral, req.CollateralAsset, req.DurationSeconds, s.nowUnix())
	s.observe("loan.borrow", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"loanId":  loan.ID,
		"rateBps": loan.RateBps,
	})
}

func (s *Server) repay(w http.ResponseWriter, r *http.Request) {
	borrower, loanID, ok := parseLoanPath(w, r)
	if !ok {
		return
	}
	var req struct {
		Amount string `json:"amount"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return
	}
	err := s.lending.Repay(borrower, loanID, amount, s.nowUnix())
	s.observe("loan.repay", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "repaid"})
}

func (s *Server) loanDebt(w http.ResponseWriter, r *http.Request) {
	borrower, loanID, ok := parseLoanPath(w, r)
	if !ok {
		return
	}
	debt, err := s.lending.LoanDebt(borrower, loanID, s.nowUnix())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"debt": debt.String()})
}

func (s *Server) loanHealth(w http.ResponseWriter, r *http.Request) {
	borrower, loanID, ok := parseLoanPath(w, r)
	if !ok {
		return
	}
	underwater, err := s.lending.IsUnderwater(borrower, loanID, s.nowUnix())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"underwater": underwater})
}

func (s *Server) liquidate(w http.ResponseWriter, r *http.Request) {
	borrower, loanID, ok := parseLoanPath(w, r)
	if !ok {
		return
	}
	var req struct {
		Liquidator  string `json:"liquidator"`
		Amount      string `json:"amount"`
		ExpiredOnly bool   `json:"expiredOnly"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	liquidator, ok := parseAddress(w, req.Liquidator)
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return
	}
	var seized *big.Int
	var err error
	if req.ExpiredOnly {
		seized, err = s.lending.LiquidateExpired(liquidator, borrower, loanID, amount, s.nowUnix())
	} else {
		seized, err = s.lending.Liquidate(liquidator, borrower, loanID, amount, s.nowUnix())
	}
	s.observe("loan.liquidate", err)
	if err != nil {
		writeError(w, err)
		return
	}
	if s.stats != nil {
		s.stats.LiquidationExecuted()
	}
	writeJSON(w, http.StatusOK, map[string]string{"collateralSeized": seized.String()})
}

// --- custody handlers ---

func (s *Server) ingestDeposit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(req.Message, "0x"))
	if err != nil {
		http.Error(w, "message must be hex encoded", http.StatusBadRequest)
		return
	}
	deposit, err := s.custody.IngestDeposit(raw, s.nowUnix())
	s.observe("custody.ingest", err)
	if err != nil {
		if errors.Is(err, custody.ErrReplayedMessage) && s.stats != nil {
			s.stats.ReplayRejected()
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"depositId": deposit.ID})
}

func (s *Server) getDeposit(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	deposit, err := s.custody.DepositState(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":             deposit.ID,
		"owner":          deposit.Owner.String(),
		"sourceChainId":  deposit.SourceChainID,
		"asset":          deposit.Asset,
		"amount":         deposit.Amount.String(),
		"bridgeSequence": deposit.BridgeSequence,
		"depositTime":    deposit.DepositTime,
		"locked":         deposit.Locked,
		"loanId":         deposit.LoanID,
	})
}

func (s *Server) depositValue(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	value, err := s.custody.DepositValue(id, s.nowUnix()*1000)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"value": value.String()})
}

func (s *Server) lockCollateral(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var req struct {
		Caller string `json:"caller"`
		LoanID uint64 `json:"loanId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseAddress(w, req.Caller)
	if !ok {
		return
	}
	err := s.custody.LockCollateral(caller, id, req.LoanID, s.nowUnix())
	s.observe("custody.lock", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "locked"})
}

func (s *Server) releaseCollateral(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var req struct {
		LoanID uint64 `json:"loanId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	err := s.custody.ReleaseCollateral(id, req.LoanID, s.nowUnix())
	s.observe("custody.release", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "released"})
}

func (s *Server) withdrawCollateral(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var req struct {
		Caller      string `json:"caller"`
		Destination string `json:"destination"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseAddress(w, req.Caller)
	if !ok {
		return
	}
	err := s.custody.WithdrawCollateral(caller, id, req.Destination, s.nowUnix())
	s.observe("custody.withdraw", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "withdrawn"})
}

// --- custody admin handlers ---

func (s *Server) addChain(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller  string `json:"caller"`
		ChainID uint64 `json:"chainId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseAddress(w, req.Caller)
	if !ok {
		return
	}
	err := s.custody.AddChain(caller, req.ChainID)
	s.observe("custody.addChain", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "added"})
}

func (s *Server) removeChain(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var req struct {
		Caller string `json:"caller"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseAddress(w, req.Caller)
	if !ok {
		return
	}
	err := s.custody.RemoveChain(caller, id)
	s.observe("custody.removeChain", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (s *Server) setChainActive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller  string `json:"caller"`
		ChainID uint64 `json:"chainId"`
		Active  bool   `json:"active"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseAddress(w, req.Caller)
	if !ok {
		return
	}
	err := s.custody.SetChainActive(caller, req.ChainID, req.Active)
	s.observe("custody.chainActive", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) addAsset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller    string `json:"caller"`
		ChainID   uint64 `json:"chainId"`
		Name      string `json:"name"`
		Decimals  uint8  `json:"decimals"`
		FactorBps uint64 `json:"collateralizationFactorBps"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseAddress(w, req.Caller)
	if !ok {
		return
	}
	err := s.custody.AddAsset(caller, req.ChainID, req.Name, req.Decimals, req.FactorBps)
	s.observe("custody.addAsset", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "added"})
}

func (s *Server) setAssetActive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller  string `json:"caller"`
		ChainID uint64 `json:"chainId"`
		Name    string `json:"name"`
		Active  bool   `json:"active"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseAddress(w, req.Caller)
	if !ok {
		return
	}
	err := s.custody.SetAssetActive(caller, req.ChainID, req.Name, req.Active)
	s.observe("custody.assetActive", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) setOraclePrice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller     string `json:"caller"`
		Symbol     string `json:"symbol"`
		Price      string `json:"price"`
		Confidence string `json:"confidence"`
		AtMillis   uint64 `json:"atMillis"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseAddress(w, req.Caller)
	if !ok {
		return
	}
	price, ok := parseAmount(w, req.Price)
	if !ok {
		return
	}
	confidence := big.NewInt(0)
	if strings.TrimSpace(req.Confidence) != "" {
		if confidence, ok = parseAmount(w, req.Confidence); !ok {
			return
		}
	}
	atMillis := req.AtMillis
	if atMillis == 0 {
		atMillis = s.nowUnix() * 1000
	}
	err := s.custody.SetOraclePrice(caller, req.Symbol, price, confidence, atMillis)
	s.observe("custody.oraclePrice", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "posted"})
}

func (s *Server) setOracleMaxAge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller       string `json:"caller"`
		MaxAgeMillis uint64 `json:"maxAgeMillis"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseAddress(w, req.Caller)
	if !ok {
		return
	}
	err := s.custody.SetOracleMaxAge(caller, req.MaxAgeMillis)
	s.observe("custody.oracleMaxAge", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// --- helpers ---

func (s *Server) observe(op string, err error) {
	if s.stats == nil {
		return
	}
	s.stats.ObserveOperation(op, err)
}

func (s *Server) refreshPoolGauges(pool *lending.Pool, rateBps uint64) {
	if s.stats == nil || pool == nil {
		return
	}
	liquidity, _ := new(big.Float).SetInt(pool.Liquidity).Float64()
	borrowed, _ := new(big.Float).SetInt(pool.TotalBorrowed).Float64()
	s.stats.SetPoolGauges(liquidity, borrowed, rateBps)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return false
	}
	return true
}

func parseAddress(w http.ResponseWriter, raw string) (crypto.Address, bool) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(raw))
	if err != nil {
		http.Error(w, "invalid address", http.StatusBadRequest)
		return crypto.Address{}, false
	}
	return addr, true
}

func parseAmount(w http.ResponseWriter, raw string) (*big.Int, bool) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		http.Error(w, "invalid amount", http.StatusBadRequest)
		return nil, false
	}
	return amount, true
}

func parseAmountRequest(w http.ResponseWriter, r *http.Request) (crypto.Address, *big.Int, bool) {
	var req struct {
		Caller string `json:"caller"`
		Amount string `json:"amount"`
	}
	if !decodeBody(w, r, &req) {
		return crypto.Address{}, nil, false
	}
	caller, ok := parseAddress(w, req.Caller)
	if !ok {
		return crypto.Address{}, nil, false
	}
	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return crypto.Address{}, nil, false
	}
	return caller, amount, true
}

func parseID(w http.ResponseWriter, raw string) (uint64, bool) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		http.Error(w, "invalid identifier", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func parseLoanPath(w http.ResponseWriter, r *http.Request) (crypto.Address, uint64, bool) {
	addr, ok := parseAddress(w, chi.URLParam(r, "address"))
	if !ok {
		return crypto.Address{}, 0, false
	}
	loanID, ok := parseID(w, chi.URLParam(r, "loanID"))
	if !ok {
		return crypto.Address{}, 0, false
	}
	return addr, loanID, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("rpc response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, lending.ErrInvalidAmount),
		errors.Is(err, lending.ErrInvalidLoanDuration),
		errors.Is(err, lending.ErrInvalidInterestRateParams),
		errors.Is(err, lending.ErrInvalidRepaymentAmount),
		errors.Is(err, custody.ErrInvalidAmount),
		errors.Is(err, custody.ErrInvalidAssetParams),
		errors.Is(err, custody.ErrInvalidLoanID),
		errors.Is(err, bridge.ErrInvalidMessage):
		return http.StatusBadRequest
	case errors.Is(err, lending.ErrInvalidSigner),
		errors.Is(err, custody.ErrInvalidSigner):
		return http.StatusForbidden
	case errors.Is(err, lending.ErrPoolNotInitialised),
		errors.Is(err, lending.ErrLoanNotFound),
		errors.Is(err, custody.ErrCollateralNotFound),
		errors.Is(err, custody.ErrInvalidSourceChain),
		errors.Is(err, custody.ErrAssetNotSupported),
		errors.Is(err, oracle.ErrPriceNotFound):
		return http.StatusNotFound
	case errors.Is(err, lending.ErrPoolExists),
		errors.Is(err, lending.ErrInsufficientLiquidity),
		errors.Is(err, lending.ErrInsufficientCollateral),
		errors.Is(err, lending.ErrLoanNotUnderwater),
		errors.Is(err, lending.ErrLoanNotExpired),
		errors.Is(err, lending.ErrInvalidCollateralValue),
		errors.Is(err, custody.ErrReplayedMessage),
		errors.Is(err, custody.ErrCollateralLocked),
		errors.Is(err, custody.ErrCollateralNotLocked),
		errors.Is(err, custody.ErrLoanMismatch):
		return http.StatusConflict
	case errors.Is(err, oracle.ErrStalePrice):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
