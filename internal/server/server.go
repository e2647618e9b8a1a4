// Package server exposes the ledger over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sheikh-saqib/funding-ledger/internal/config"
	"github.com/sheikh-saqib/funding-ledger/internal/ledger"
	"github.com/sheikh-saqib/funding-ledger/internal/models"
	"github.com/sheikh-saqib/funding-ledger/internal/native"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Server serves the ledger API.
type Server struct {
	http   *http.Server
	ledger *ledger.Ledger
	logger *zap.Logger
}

type fundRequest struct {
	From  models.Address  `json:"from"`
	Value decimal.Decimal `json:"value"`
}

type withdrawRequest struct {
	From models.Address `json:"from"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// New creates a server for l listening on the configured address.
func New(cfg config.ApplicationConfiguration, l *ledger.Ledger, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		ledger: l,
		logger: logger,
	}
	s.http = &http.Server{
		Addr:        cfg.ListenAddress,
		Handler:     s.Handler(),
		ReadTimeout: cfg.ReadTimeout,
	}
	return s
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/fund", s.fund).Methods(http.MethodPost)
	r.HandleFunc("/withdraw", s.withdraw(false)).Methods(http.MethodPost)
	r.HandleFunc("/withdraw/cheaper", s.withdraw(true)).Methods(http.MethodPost)

	r.HandleFunc("/price-feed", s.priceFeed).Methods(http.MethodGet)
	r.HandleFunc("/owner", s.owner).Methods(http.MethodGet)
	r.HandleFunc("/funders", s.funderCount).Methods(http.MethodGet)
	r.HandleFunc("/funders/{index}", s.funder).Methods(http.MethodGet)
	r.HandleFunc("/funded", s.contributions).Methods(http.MethodGet)
	r.HandleFunc("/funded/{address}", s.funded).Methods(http.MethodGet)
	r.HandleFunc("/balance", s.balance).Methods(http.MethodGet)
	r.HandleFunc("/accounts/{address}/balance", s.accountBalance).Methods(http.MethodGet)
	r.HandleFunc("/conversion", s.conversion).Methods(http.MethodGet)
	return r
}

// ListenAndServe blocks serving requests until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info("starting server", zap.String("address", s.http.Addr))
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// maxBodyBytes caps request bodies, they only carry an address and a value.
const maxBodyBytes = 1 << 12

func (s *Server) fund(w http.ResponseWriter, r *http.Request) {
	var req fundRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	rcpt, err := s.ledger.Fund(r.Context(), req.From, req.Value)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, rcpt)
}

func (s *Server) withdraw(cheaper bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req withdrawRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		var (
			rcpt models.Receipt
			err  error
		)
		if cheaper {
			rcpt, err = s.ledger.CheaperWithdraw(r.Context(), req.From)
		} else {
			rcpt, err = s.ledger.Withdraw(r.Context(), req.From)
		}
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, rcpt)
	}
}

func (s *Server) priceFeed(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]models.Address{"price_feed": s.ledger.GetPriceFeed()})
}

func (s *Server) owner(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]models.Address{"owner": s.ledger.GetOwner()})
}

func (s *Server) funderCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.ledger.FunderCount(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (s *Server) funder(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "index must be an integer"})
		return
	}
	funder, err := s.ledger.GetFunder(r.Context(), index)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		Index  int            `json:"index"`
		Funder models.Address `json:"funder"`
	}{index, funder})
}

func (s *Server) contributions(w http.ResponseWriter, r *http.Request) {
	contributions, err := s.ledger.Contributions(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if contributions == nil {
		contributions = []models.Contribution{}
	}
	s.writeJSON(w, http.StatusOK, contributions)
}

func (s *Server) funded(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.addressVar(w, r)
	if !ok {
		return
	}
	amount, err := s.ledger.GetAddressToAmountFunded(r.Context(), addr)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, models.Contribution{Funder: addr, Amount: amount})
}

func (s *Server) balance(w http.ResponseWriter, r *http.Request) {
	bal, err := s.ledger.Balance(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, balanceResponse{Address: s.ledger.Address(), Balance: bal})
}

func (s *Server) accountBalance(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.addressVar(w, r)
	if !ok {
		return
	}
	bal, err := s.ledger.BalanceOf(r.Context(), addr)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, balanceResponse{Address: addr, Balance: bal})
}

func (s *Server) conversion(w http.ResponseWriter, r *http.Request) {
	value, err := decimal.NewFromString(r.URL.Query().Get("value"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "value is a mandatory decimal field"})
		return
	}
	usd, err := s.ledger.ConversionRate(r.Context(), value)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		Value decimal.Decimal `json:"value"`
		USD   decimal.Decimal `json:"usd"`
	}{value, usd})
}

type balanceResponse struct {
	Address models.Address  `json:"address"`
	Balance decimal.Decimal `json:"balance"`
}

func (s *Server) addressVar(w http.ResponseWriter, r *http.Request) (models.Address, bool) {
	addr, err := models.ParseAddress(mux.Vars(r)["address"])
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return models.ZeroAddress, false
	}
	return addr, true
}

// statusOf maps ledger errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInsufficientContribution),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, native.ErrInsufficientFunds):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrIndexOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrTransferFailed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
	}
}
