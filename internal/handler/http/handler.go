package ledgerhttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/banking-ledger-core/internal/ledger"
	"github.com/sheikh-saqib/banking-ledger-core/internal/models"
)

// Service is the part of *ledger.Ledger the handlers call.
type Service interface {
	CreateCustomer(name, email string) (models.Customer, error)
	GetCustomer(customerID string) (models.Customer, error)
	ListAccounts(customerID string) ([]models.AccountSnapshot, error)
	OpenAccount(customerID string, accountType models.AccountType) (string, error)
	GetAccount(accountNumber string) (models.AccountSnapshot, error)
	GetTransactions(accountNumber string) ([]models.Transaction, error)
	Deposit(ctx context.Context, accountNumber string, amount decimal.Decimal) (models.Transaction, error)
	Withdraw(ctx context.Context, accountNumber string, amount decimal.Decimal) (models.Transaction, error)
	Transfer(ctx context.Context, fromAccount, toAccount string, amount decimal.Decimal) error
	Reconcile(ctx context.Context, accountNumber string) (models.Reconciliation, error)
	LedgerEntries(ctx context.Context) ([]models.LedgerEntry, error)
}

var _ Service = (*ledger.Ledger)(nil)

type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(s Service, l *zap.Logger) *Handler {
	return &Handler{service: s, logger: l}
}

type CreateCustomerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type OpenAccountRequest struct {
	CustomerID  string `json:"customer_id"`
	AccountType string `json:"account_type"`
}

type OpenAccountResponse struct {
	AccountNumber string `json:"account_number"`
}

type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type TransferRequest struct {
	FromAccount string          `json:"from_account"`
	ToAccount   string          `json:"to_account"`
	Amount      decimal.Decimal `json:"amount"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if !h.decode(w, r, &req) {
		return
	}

	customer, err := h.service.CreateCustomer(req.Name, req.Email)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, customer)
}

func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := h.service.GetCustomer(chi.URLParam(r, "customerID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, customer)
}

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.ListAccounts(chi.URLParam(r, "customerID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, accounts)
}

func (h *Handler) OpenAccount(w http.ResponseWriter, r *http.Request) {
	var req OpenAccountRequest
	if !h.decode(w, r, &req) {
		return
	}

	number, err := h.service.OpenAccount(req.CustomerID, models.NormalizeAccountType(req.AccountType))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, OpenAccountResponse{AccountNumber: number})
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.GetAccount(chi.URLParam(r, "accountNumber"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, account)
}

func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.service.GetTransactions(chi.URLParam(r, "accountNumber"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, txs)
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req AmountRequest
	if !h.decode(w, r, &req) {
		return
	}

	tx, err := h.service.Deposit(r.Context(), chi.URLParam(r, "accountNumber"), req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, tx)
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req AmountRequest
	if !h.decode(w, r, &req) {
		return
	}

	tx, err := h.service.Withdraw(r.Context(), chi.URLParam(r, "accountNumber"), req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, tx)
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.Transfer(r.Context(), req.FromAccount, req.ToAccount, req.Amount); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]string{"status": "Created Transaction"})
}

func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.Reconcile(r.Context(), chi.URLParam(r, "accountNumber"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) LedgerEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.LedgerEntries(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []models.LedgerEntry{}
	}
	h.writeJSON(w, http.StatusOK, entries)
}

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 1 << 20

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "REQUEST_TOO_LARGE", Message: "request body too large"})
			return false
		}
		h.logger.Debug("invalid request body", zap.String("path", r.URL.Path), zap.Error(err))
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "BAD_REQUEST", Message: "invalid request body"})
		return false
	}
	return true
}

// statusFor maps each ledger error kind to an HTTP status.
var statusFor = map[ledger.Kind]int{
	ledger.KindNotFound:          http.StatusNotFound,
	ledger.KindInvalidAmount:     http.StatusUnprocessableEntity,
	ledger.KindInsufficientFunds: http.StatusConflict,
	ledger.KindInvalidArgument:   http.StatusBadRequest,
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	kind := ledger.KindOf(err)
	status, ok := statusFor[kind]
	if !ok {
		h.logger.Error("request failed", zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "INTERNAL", Message: "internal server error"})
		return
	}
	h.writeJSON(w, status, ErrorResponse{Error: string(kind), Message: err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}
