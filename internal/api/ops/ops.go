// Package ops is the internal operator surface. The public transport
// layer lives in a separate system and consumes the service contracts
// directly; these endpoints exist for platform staff and monitoring.
package ops

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rentloop-backend/internal/domain"
	"rentloop-backend/internal/logger"
	"rentloop-backend/internal/service"
)

type Handler struct {
	walletSvc service.WalletService
	grantSvc  service.GrantService
	adminSvc  service.AdminService
	noteSvc   service.NotificationService
	healthz   func() error
}

func NewHandler(
	walletSvc service.WalletService,
	grantSvc service.GrantService,
	adminSvc service.AdminService,
	noteSvc service.NotificationService,
	healthz func() error,
) *Handler {
	return &Handler{
		walletSvc: walletSvc,
		grantSvc:  grantSvc,
		adminSvc:  adminSvc,
		noteSvc:   noteSvc,
		healthz:   healthz,
	}
}

// Router mounts the operator endpoints and the monitoring surface.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.handleHealthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/ops/gifts", h.handleIssueGift).Methods(http.MethodPost)
	r.HandleFunc("/ops/wallets/{userID}", h.handleWalletSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/ops/wallets/{userID}/reconcile", h.handleReconcile).Methods(http.MethodGet)
	r.HandleFunc("/ops/wallets/{userID}/purchases", h.handlePurchase).Methods(http.MethodPost)
	r.HandleFunc("/ops/purchases/{entryID}/confirm", h.handleSettlePurchase(true)).Methods(http.MethodPost)
	r.HandleFunc("/ops/purchases/{entryID}/reject", h.handleSettlePurchase(false)).Methods(http.MethodPost)
	r.HandleFunc("/ops/wallets/{userID}/withdrawals", h.handleWithdrawal).Methods(http.MethodPost)
	r.HandleFunc("/ops/wallets/{userID}/withdrawals/settle", h.handleSettleWithdrawal).Methods(http.MethodPost)
	r.HandleFunc("/ops/wallets/{userID}/finalize", h.handleFinalizeDeposit).Methods(http.MethodPost)
	r.HandleFunc("/ops/grants/{userID}", h.handleGrantSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/ops/notifications/{userID}", h.handleListNotifications).Methods(http.MethodGet)
	r.HandleFunc("/ops/notifications/{userID}/{noteID}/read", h.handleMarkNotificationRead).Methods(http.MethodPost)
	r.HandleFunc("/ops/rentals/{requestID}/platform-reject", h.handlePlatformReject).Methods(http.MethodPost)
	r.HandleFunc("/ops/rentals/force-status", h.handleBulkForceStatus).Methods(http.MethodPost)
	return r
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := h.healthz(); err != nil {
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) handleIssueGift(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID       int32  `json:"user_id"`
		AmountCents  int64  `json:"amount_cents"`
		ValidityDays *int32 `json:"validity_days,omitempty"`
		Reason       string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	grant, err := h.grantSvc.IssueGift(r.Context(), body.UserID, body.AmountCents, body.ValidityDays, body.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, grant)
}

func (h *Handler) handlePurchase(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	var body struct {
		AmountCents     int64  `json:"amount_cents"`
		GatewayRef      string `json:"gateway_ref,omitempty"`
		RentalRequestID *int32 `json:"rental_request_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.GatewayRef == "" {
		body.GatewayRef = uuid.NewString()
	}
	entry, err := h.walletSvc.PurchaseCredits(r.Context(), userID, body.AmountCents, body.GatewayRef, body.RentalRequestID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *Handler) handleSettlePurchase(confirm bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entryID, ok := pathID(w, r, "entryID")
		if !ok {
			return
		}
		settle := h.walletSvc.RejectPurchase
		if confirm {
			settle = h.walletSvc.ConfirmPurchase
		}
		entry, err := settle(r.Context(), entryID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	}
}

func (h *Handler) handleWithdrawal(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	var body struct {
		AmountCents int64  `json:"amount_cents"`
		GatewayRef  string `json:"gateway_ref,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.GatewayRef == "" {
		body.GatewayRef = uuid.NewString()
	}
	if err := h.walletSvc.RequestWithdrawal(r.Context(), userID, body.AmountCents, body.GatewayRef); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"gateway_ref": body.GatewayRef})
}

func (h *Handler) handleSettleWithdrawal(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	var body struct {
		AmountCents int64  `json:"amount_cents"`
		GatewayRef  string `json:"gateway_ref"`
		Outcome     string `json:"outcome"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	var err error
	switch body.Outcome {
	case "confirmed":
		err = h.walletSvc.ConfirmWithdrawal(r.Context(), userID, body.AmountCents, body.GatewayRef)
	case "rejected":
		err = h.walletSvc.RejectWithdrawal(r.Context(), userID, body.AmountCents, body.GatewayRef)
	default:
		http.Error(w, "outcome must be confirmed or rejected", http.StatusBadRequest)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleFinalizeDeposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	var body struct {
		AmountCents     int64 `json:"amount_cents"`
		RentalRequestID int32 `json:"rental_request_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	finalized, err := h.walletSvc.FinalizeDeposit(r.Context(), userID, body.AmountCents, body.RentalRequestID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"finalized": finalized})
}

func (h *Handler) handleWalletSnapshot(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	wallet, err := h.walletSvc.GetWalletSnapshot(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	ledgerSum, cachedSum, agree, err := h.walletSvc.Reconcile(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ledger_sum_cents": ledgerSum,
		"cached_sum_cents": cachedSum,
		"consistent":       agree,
	})
}

func (h *Handler) handleGrantSnapshot(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	grants, err := h.grantSvc.GetGrantSnapshot(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, grants)
}

func (h *Handler) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	page, pageSize := pagination(r)
	notes, total, err := h.noteSvc.GetNotifications(r.Context(), userID, page, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": notes,
		"total":         total,
	})
}

func (h *Handler) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	noteID, ok := pathID(w, r, "noteID")
	if !ok {
		return
	}
	if err := h.noteSvc.MarkAsRead(r.Context(), userID, noteID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePlatformReject(w http.ResponseWriter, r *http.Request) {
	requestID, ok := pathID(w, r, "requestID")
	if !ok {
		return
	}
	var body struct {
		AdminID int32  `json:"admin_id"`
		Reason  string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req, err := h.adminSvc.PlatformReject(r.Context(), body.AdminID, requestID, body.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *Handler) handleBulkForceStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AdminID    int32   `json:"admin_id"`
		RequestIDs []int32 `json:"request_ids"`
		Target     string  `json:"target"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	results := h.adminSvc.BulkForceStatus(r.Context(), body.AdminID, body.RequestIDs, domain.RentalStatus(body.Target))

	type result struct {
		RequestID int32  `json:"request_id"`
		Status    string `json:"status,omitempty"`
		Error     string `json:"error,omitempty"`
	}
	out := make([]result, 0, len(results))
	for _, res := range results {
		item := result{RequestID: res.RequestID}
		if res.Err != nil {
			item.Error = res.Err.Error()
		} else {
			item.Status = string(res.Request.Status)
		}
		out = append(out, item)
	}
	writeJSON(w, http.StatusOK, out)
}

func pagination(r *http.Request) (page, pageSize int32) {
	page, pageSize = 1, 20
	if v, err := strconv.ParseInt(r.URL.Query().Get("page"), 10, 32); err == nil && v > 0 {
		page = int32(v)
	}
	if v, err := strconv.ParseInt(r.URL.Query().Get("page_size"), 10, 32); err == nil && v > 0 && v <= 100 {
		pageSize = int32(v)
	}
	return page, pageSize
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int32, bool) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		http.Error(w, "invalid "+name, http.StatusBadRequest)
		return 0, false
	}
	return int32(id), true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

// writeError maps domain error codes to HTTP statuses. Unknown errors are
// logged and surface as a bare 500.
func writeError(w http.ResponseWriter, err error) {
	var domErr *domain.Error
	if !errors.As(err, &domErr) {
		logger.Error("Internal error", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	status := http.StatusInternalServerError
	switch domErr.Code {
	case domain.CodeNotFound:
		status = http.StatusNotFound
	case domain.CodeUnauthorized:
		status = http.StatusForbidden
	case domain.CodeInvalidArgument:
		status = http.StatusBadRequest
	case domain.CodeConcurrencyConflict:
		status = http.StatusConflict
	case domain.CodeInsufficientFunds, domain.CodeInsufficientGrantBalance,
		domain.CodeExpiredGrant, domain.CodeInvalidStateTransition,
		domain.CodeUnconfirmedFunding, domain.CodeProductAlreadyReserved:
		status = http.StatusUnprocessableEntity
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    string(domErr.Code),
		"message": err.Error(),
	})
}
