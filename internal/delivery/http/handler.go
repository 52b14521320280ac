package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/azizikri/referral-claim/internal/delivery/kafka"
	"github.com/azizikri/referral-claim/internal/domain"
	"github.com/azizikri/referral-claim/internal/quota"
	"github.com/azizikri/referral-claim/internal/ratelimit"
	"github.com/azizikri/referral-claim/internal/relayer"
	"github.com/azizikri/referral-claim/internal/usecase"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type TouchReferralRequest struct {
	Referrer string `json:"referrer"`
	Invitee  string `json:"invitee"`
}

type ValidateReferralRequest struct {
	Invitee string `json:"invitee"`
}

type ClaimRequest struct {
	Wallet string `json:"wallet"`
}

type VerifyVoucherRequest struct {
	Wallet    string `json:"wallet"`
	Nonce     int64  `json:"nonce"`
	Signature string `json:"signature"`
}

type VerifyVoucherResponse struct {
	Signer string `json:"signer"`
	Valid  bool   `json:"valid"`
}

type VouchersResponse struct {
	Wallet   string           `json:"wallet"`
	Vouchers []domain.Voucher `json:"vouchers"`
}

type LeaderboardResponse struct {
	Entries []domain.LeaderboardEntry `json:"entries"`
}

type Handler struct {
	gateway  usecase.ReferralGateway
	reader   usecase.ReferralReader
	verifier usecase.VoucherVerifier
	limiter  ratelimit.Limiter
	failOpen bool
	log      *zap.Logger
}

func NewHandler(gateway usecase.ReferralGateway, reader usecase.ReferralReader, verifier usecase.VoucherVerifier, limiter ratelimit.Limiter, failOpen bool, log *zap.Logger) *Handler {
	if limiter == nil {
		limiter = ratelimit.Noop()
	}
	return &Handler{
		gateway:  gateway,
		reader:   reader,
		verifier: verifier,
		limiter:  limiter,
		failOpen: failOpen,
		log:      log,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.With(h.limit("touch")).Post("/referrals", h.TouchReferral)
		r.With(h.limit("validate")).Post("/referrals/validate", h.ValidateReferral)
		r.Get("/quota/preview", h.PreviewQuota)
		r.Get("/quota/{wallet}", h.GetQuota)
		r.With(h.limit("claim")).Post("/claims", h.Claim)
		r.Post("/claims/verify", h.VerifyVoucher)
		r.Get("/claims/{wallet}", h.ListVouchers)
		r.Get("/leaderboard", h.Leaderboard)
	})
}

func (h *Handler) limit(action string) func(http.Handler) http.Handler {
	return ratelimit.Middleware(action, h.limiter, h.log, h.failOpen)
}

func (h *Handler) TouchReferral(w http.ResponseWriter, r *http.Request) {
	var req TouchReferralRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.gateway.TouchReferral(r.Context(), req.Referrer, req.Invitee); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) ValidateReferral(w http.ResponseWriter, r *http.Request) {
	var req ValidateReferralRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ref, err := h.gateway.ValidateReferral(r.Context(), req.Invitee)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ref)
}

func (h *Handler) GetQuota(w http.ResponseWriter, r *http.Request) {
	q, err := h.gateway.GetQuota(r.Context(), chi.URLParam(r, "wallet"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, q)
}

// PreviewQuota runs the calculator on query values without touching the
// ledger. Values are parsed as floats so NaN and Inf reach the clamp.
func (h *Handler) PreviewQuota(w http.ResponseWriter, r *http.Request) {
	invites, err := queryFloat(r, "invites")
	if err != nil {
		http.Error(w, "invites must be a number", http.StatusBadRequest)
		return
	}
	used, err := queryFloat(r, "used")
	if err != nil {
		http.Error(w, "used must be a number", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, quota.PreviewFloat(invites, used))
}

func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	var req ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	voucher, err := h.gateway.Claim(r.Context(), req.Wallet)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, voucher)
}

// VerifyVoucher reports whether a voucher was signed by this relayer for the
// given wallet and nonce.
func (h *Handler) VerifyVoucher(w http.ResponseWriter, r *http.Request) {
	if h.verifier == nil {
		http.Error(w, "voucher verification unavailable", http.StatusNotImplemented)
		return
	}

	var req VerifyVoucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	wallet, err := domain.NormalizeWallet(req.Wallet)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Nonce <= 0 {
		http.Error(w, "nonce must be positive", http.StatusBadRequest)
		return
	}

	signer, err := h.verifier.Recover(wallet, req.Nonce, req.Signature)
	if err != nil {
		if errors.Is(err, relayer.ErrInvalidSignature) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, VerifyVoucherResponse{
		Signer: signer.Hex(),
		Valid:  signer == h.verifier.Address(),
	})
}

func (h *Handler) ListVouchers(w http.ResponseWriter, r *http.Request) {
	wallet := chi.URLParam(r, "wallet")

	vouchers, err := h.reader.ListVouchers(r.Context(), wallet)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	normalized, _ := domain.NormalizeWallet(wallet)
	writeJSON(w, http.StatusOK, VouchersResponse{Wallet: normalized, Vouchers: vouchers})
}

func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "limit must be an integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := h.reader.Leaderboard(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}

	writeJSON(w, http.StatusOK, LeaderboardResponse{Entries: entries})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidWallet):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrSelfReferral):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrAlreadyReferred):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrAlreadyValidated):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrNoClaimsRemaining):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, kafka.ErrReplyTimeout), errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "upstream timeout", http.StatusGatewayTimeout)
	default:
		h.log.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func queryFloat(r *http.Request, key string) (float64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if errors.Is(err, strconv.ErrRange) {
		// v is already ±Inf or ±0; the calculator clamps it.
		return v, nil
	}
	return v, err
}
