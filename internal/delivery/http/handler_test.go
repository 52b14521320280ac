package http

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/azizikri/referral-claim/internal/delivery/kafka"
	"github.com/azizikri/referral-claim/internal/domain"
	"github.com/azizikri/referral-claim/internal/quota"
	"github.com/azizikri/referral-claim/internal/relayer"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const (
	walletA = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	walletB = "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"
)

type stubGateway struct {
	touchFn    func(ctx context.Context, referrer, invitee string) error
	validateFn func(ctx context.Context, invitee string) (*domain.Referral, error)
	quotaFn    func(ctx context.Context, wallet string) (*domain.Quota, error)
	claimFn    func(ctx context.Context, wallet string) (*domain.Voucher, error)
}

func (s *stubGateway) TouchReferral(ctx context.Context, referrer, invitee string) error {
	if s.touchFn != nil {
		return s.touchFn(ctx, referrer, invitee)
	}
	return nil
}

func (s *stubGateway) ValidateReferral(ctx context.Context, invitee string) (*domain.Referral, error) {
	if s.validateFn != nil {
		return s.validateFn(ctx, invitee)
	}
	return &domain.Referral{Invitee: invitee, Status: domain.ReferralValid}, nil
}

func (s *stubGateway) GetQuota(ctx context.Context, wallet string) (*domain.Quota, error) {
	if s.quotaFn != nil {
		return s.quotaFn(ctx, wallet)
	}
	return &domain.Quota{Wallet: wallet, Status: quota.Compute(0, 0)}, nil
}

func (s *stubGateway) Claim(ctx context.Context, wallet string) (*domain.Voucher, error) {
	if s.claimFn != nil {
		return s.claimFn(ctx, wallet)
	}
	return &domain.Voucher{Wallet: wallet, Nonce: 1}, nil
}

type stubReader struct {
	vouchers   []domain.Voucher
	entries    []domain.LeaderboardEntry
	gotLimit   int
	readerFail error
}

func (s *stubReader) ListVouchers(ctx context.Context, wallet string) ([]domain.Voucher, error) {
	return s.vouchers, s.readerFail
}

func (s *stubReader) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	s.gotLimit = limit
	return s.entries, s.readerFail
}

type denyAll struct{}

func (denyAll) Allow(context.Context, string) (bool, error) { return false, nil }
func (denyAll) Window() time.Duration                       { return time.Minute }

func newRouter(gw *stubGateway, reader *stubReader) http.Handler {
	h := NewHandler(gw, reader, nil, nil, true, zap.NewNop())
	r := chi.NewRouter()
	h.Routes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestTouchReferral(t *testing.T) {
	var got [2]string
	gw := &stubGateway{touchFn: func(ctx context.Context, referrer, invitee string) error {
		got = [2]string{referrer, invitee}
		return nil
	}}
	r := newRouter(gw, &stubReader{})

	rec := do(t, r, http.MethodPost, "/api/referrals", `{"referrer":"`+walletA+`","invitee":"`+walletB+`"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, [2]string{walletA, walletB}, got)

	rec = do(t, r, http.MethodPost, "/api/referrals", `{bad json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTouchReferral_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{domain.ErrInvalidWallet, http.StatusBadRequest},
		{domain.ErrSelfReferral, http.StatusBadRequest},
		{domain.ErrAlreadyReferred, http.StatusConflict},
		{kafka.ErrReplyTimeout, http.StatusGatewayTimeout},
		{errors.New("db exploded"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		gw := &stubGateway{touchFn: func(ctx context.Context, referrer, invitee string) error { return tt.err }}
		rec := do(t, newRouter(gw, &stubReader{}), http.MethodPost, "/api/referrals", `{}`)
		assert.Equal(t, tt.code, rec.Code, "err=%v", tt.err)
	}
}

func TestValidateReferral(t *testing.T) {
	gw := &stubGateway{validateFn: func(ctx context.Context, invitee string) (*domain.Referral, error) {
		if invitee == walletB {
			return nil, domain.ErrAlreadyValidated
		}
		if invitee == "" {
			return nil, domain.ErrNotFound
		}
		return &domain.Referral{Referrer: walletB, Invitee: invitee, Status: domain.ReferralValid}, nil
	}}
	r := newRouter(gw, &stubReader{})

	rec := do(t, r, http.MethodPost, "/api/referrals/validate", `{"invitee":"`+walletA+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var ref domain.Referral
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&ref))
	assert.Equal(t, domain.ReferralValid, ref.Status)

	rec = do(t, r, http.MethodPost, "/api/referrals/validate", `{"invitee":"`+walletB+`"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/referrals/validate", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetQuota(t *testing.T) {
	gw := &stubGateway{quotaFn: func(ctx context.Context, wallet string) (*domain.Quota, error) {
		return &domain.Quota{Wallet: wallet, Status: quota.Compute(11, 4)}, nil
	}}
	rec := do(t, newRouter(gw, &stubReader{}), http.MethodGet, "/api/quota/"+walletA, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, walletA, body["wallet"])
	assert.EqualValues(t, 6, body["max_claims"])
	assert.EqualValues(t, 2, body["remaining_claims"])
	assert.EqualValues(t, 3, body["next_invites_needed"])
}

func TestPreviewQuota(t *testing.T) {
	r := newRouter(&stubGateway{}, &stubReader{})

	rec := do(t, r, http.MethodGet, "/api/quota/preview?invites=20&used=4", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st quota.Status
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&st))
	assert.Equal(t, 9, st.MaxClaims)
	assert.Equal(t, 5, st.RemainingClaims)
	assert.Equal(t, 3, st.Breakdown.ThreePerOneRange)

	rec = do(t, r, http.MethodGet, "/api/quota/preview?invites=NaN", "")
	require.Equal(t, http.StatusOK, rec.Code)
	st = quota.Status{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&st))
	assert.Equal(t, 0, st.MaxClaims)
	assert.Equal(t, 1, st.NextInvitesNeeded)

	rec = do(t, r, http.MethodGet, "/api/quota/preview?invites=11&used=1e400", "")
	require.Equal(t, http.StatusOK, rec.Code, "overflowing used is clamped, not rejected")
	st = quota.Status{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&st))
	assert.Equal(t, 6, st.MaxClaims)
	assert.Equal(t, 6, st.RemainingClaims)

	rec = do(t, r, http.MethodGet, "/api/quota/preview?invites=1e400&used=0", "")
	require.Equal(t, http.StatusOK, rec.Code, "overflowing invites is clamped, not rejected")
	st = quota.Status{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&st))
	assert.Equal(t, 0, st.MaxClaims)
	assert.Equal(t, 1, st.NextInvitesNeeded)

	rec = do(t, r, http.MethodGet, "/api/quota/preview?invites=1e-400", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, r, http.MethodGet, "/api/quota/preview?invites=lots", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClaim(t *testing.T) {
	gw := &stubGateway{claimFn: func(ctx context.Context, wallet string) (*domain.Voucher, error) {
		if wallet == walletB {
			return nil, domain.ErrNoClaimsRemaining
		}
		return &domain.Voucher{Wallet: wallet, Nonce: 3, Signature: "0xabc"}, nil
	}}
	r := newRouter(gw, &stubReader{})

	rec := do(t, r, http.MethodPost, "/api/claims", `{"wallet":"`+walletA+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var v domain.Voucher
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	assert.Equal(t, int64(3), v.Nonce)

	rec = do(t, r, http.MethodPost, "/api/claims", `{"wallet":"`+walletB+`"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestClaim_RateLimited(t *testing.T) {
	h := NewHandler(&stubGateway{}, &stubReader{}, nil, denyAll{}, false, zap.NewNop())
	r := chi.NewRouter()
	h.Routes(r)

	rec := do(t, r, http.MethodPost, "/api/claims", `{"wallet":"`+walletA+`"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = do(t, r, http.MethodGet, "/api/quota/"+walletA, "")
	assert.Equal(t, http.StatusOK, rec.Code, "reads are not limited")
}

func TestListVouchers(t *testing.T) {
	reader := &stubReader{vouchers: []domain.Voucher{{Wallet: walletA, Nonce: 1}, {Wallet: walletA, Nonce: 2}}}
	rec := do(t, newRouter(&stubGateway{}, reader), http.MethodGet, "/api/claims/"+strings.ToLower(walletA), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp VouchersResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, walletA, resp.Wallet)
	assert.Len(t, resp.Vouchers, 2)
}

func TestLeaderboard(t *testing.T) {
	reader := &stubReader{}
	r := newRouter(&stubGateway{}, reader)

	rec := do(t, r, http.MethodGet, "/api/leaderboard?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, reader.gotLimit)
	assert.JSONEq(t, `{"entries":[]}`, rec.Body.String())

	rec = do(t, r, http.MethodGet, "/api/leaderboard?limit=ten", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	reader.readerFail = errors.New("boom")
	rec = do(t, r, http.MethodGet, "/api/leaderboard", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAccessLog(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := AccessLog(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "/health", fields["path"])
	assert.EqualValues(t, http.StatusOK, fields["status"])
	assert.EqualValues(t, 2, fields["bytes"])
}

func TestVerifyVoucher(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer, err := relayer.NewSigner(hex.EncodeToString(crypto.FromECDSA(key)), "0x5FbDB2315678afecb367f032d93F642f64180aa3", 8453, 0, 1)
	require.NoError(t, err)

	h := NewHandler(&stubGateway{}, &stubReader{}, signer, nil, true, zap.NewNop())
	r := chi.NewRouter()
	h.Routes(r)

	sig, err := signer.SignVoucher(context.Background(), walletA, 2)
	require.NoError(t, err)

	verify := func(wallet string, nonce int, signature string) *httptest.ResponseRecorder {
		body, err := json.Marshal(map[string]any{"wallet": wallet, "nonce": nonce, "signature": signature})
		require.NoError(t, err)
		return do(t, r, http.MethodPost, "/api/claims/verify", string(body))
	}

	rec := verify(strings.ToLower(walletA), 2, sig)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp VerifyVoucherResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Valid)
	assert.Equal(t, signer.Address().Hex(), resp.Signer)

	rec = verify(walletA, 3, sig)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = VerifyVoucherResponse{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Valid, "signature is bound to the nonce")

	tampered := []byte(sig)
	if tampered[10] == 'a' {
		tampered[10] = 'b'
	} else {
		tampered[10] = 'a'
	}
	rec = verify(walletA, 2, string(tampered))
	if rec.Code == http.StatusOK {
		resp = VerifyVoucherResponse{}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.False(t, resp.Valid)
	} else {
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}

	rec = verify(walletA, 2, "0xdead")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = verify("nope", 2, sig)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = verify(walletA, 0, sig)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, newRouter(&stubGateway{}, &stubReader{}), http.MethodPost, "/api/claims/verify", `{}`)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}
