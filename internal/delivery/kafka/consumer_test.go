package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/azizikri/referral-claim/internal/config"
	"github.com/azizikri/referral-claim/internal/domain"
	"github.com/azizikri/referral-claim/internal/quota"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

type fakeService struct {
	touchErr error
	claimErr error
}

func (f *fakeService) TouchReferral(ctx context.Context, referrer, invitee string) error {
	return f.touchErr
}

func (f *fakeService) ValidateReferral(ctx context.Context, invitee string) (*domain.Referral, error) {
	return &domain.Referral{Invitee: invitee, Status: domain.ReferralValid}, nil
}

func (f *fakeService) GetQuota(ctx context.Context, wallet string) (*domain.Quota, error) {
	return &domain.Quota{Wallet: wallet, Status: quota.Compute(11, 4)}, nil
}

func (f *fakeService) Claim(ctx context.Context, wallet string) (*domain.Voucher, error) {
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	return &domain.Voucher{Wallet: wallet, Nonce: 1, Signature: "0xsig"}, nil
}

func TestConsumerHandle_Dispatch(t *testing.T) {
	c := NewConsumer(&config.Config{}, nil, &fakeService{}, zap.NewNop())
	ctx := context.Background()

	resp, err := c.handle(ctx, TopicQuotaRequest, RequestPayload{CorrelationID: "q1", Wallet: "0xabc"})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, "q1", resp.CorrelationID)
	require.NotNil(t, resp.Quota)
	assert.Equal(t, 2, resp.Quota.RemainingClaims)

	resp, err = c.handle(ctx, TopicClaimRequest, RequestPayload{CorrelationID: "c1", Wallet: "0xabc"})
	require.NoError(t, err)
	require.NotNil(t, resp.Voucher)
	assert.Equal(t, int64(1), resp.Voucher.Nonce)

	resp, err = c.handle(ctx, TopicValidateRequest, RequestPayload{CorrelationID: "v1", Invitee: "0xdef"})
	require.NoError(t, err)
	assert.Equal(t, domain.ReferralValid, resp.Referral.Status)

	_, err = c.handle(ctx, "referral.unknown.req", RequestPayload{})
	assert.ErrorIs(t, err, errUnknownTopic)
}

func TestConsumerHandle_DomainErrors(t *testing.T) {
	c := NewConsumer(&config.Config{}, nil, &fakeService{
		touchErr: domain.ErrAlreadyReferred,
		claimErr: domain.ErrNoClaimsRemaining,
	}, zap.NewNop())
	ctx := context.Background()

	resp, err := c.handle(ctx, TopicTouchRequest, RequestPayload{CorrelationID: "t1"})
	assert.ErrorIs(t, err, domain.ErrAlreadyReferred)
	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, ErrCodeAlreadyReferred, resp.ErrorCode)

	resp, err = c.handle(ctx, TopicClaimRequest, RequestPayload{CorrelationID: "c2"})
	assert.ErrorIs(t, err, domain.ErrNoClaimsRemaining)
	assert.Equal(t, ErrCodeNoClaimsRemaining, resp.ErrorCode)
}

func TestErrorCodes_RoundTrip(t *testing.T) {
	for _, sentinel := range []error{
		domain.ErrInvalidWallet,
		domain.ErrSelfReferral,
		domain.ErrAlreadyReferred,
		domain.ErrNotFound,
		domain.ErrAlreadyValidated,
		domain.ErrNoClaimsRemaining,
	} {
		wrapped := errors.Join(errors.New("context"), sentinel)
		code := errorCode(wrapped)
		assert.NotEqual(t, ErrCodeInternalError, code, "sentinel %v", sentinel)
		assert.ErrorIs(t, mapError(code, sentinel.Error()), sentinel)
	}

	assert.Equal(t, ErrCodeInternalError, errorCode(errors.New("db down")))
	assert.EqualError(t, mapError(ErrCodeInternalError, "db down"), "db down")
}

func TestRetryRecord(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	original := &kgo.Record{
		Topic: TopicClaimRequest,
		Key:   []byte("0xabc"),
		Value: []byte(`{}`),
		Headers: []kgo.RecordHeader{
			{Key: "trace", Value: []byte("t")},
			{Key: RetryHeaderAttempt, Value: []byte("1")},
		},
	}
	assert.Equal(t, 1, retryAttempt(original))

	r := retryRecord(original, 2, now)
	assert.Equal(t, TopicClaimRetry, r.Topic)
	assert.Equal(t, original.Key, r.Key)
	assert.Equal(t, 2, retryAttempt(r))

	nextAt, ok := retryNextAt(r)
	require.True(t, ok)
	assert.True(t, now.Add(2*RetryBaseDelay).Equal(nextAt), "next at %s", nextAt)

	var traces int
	for _, h := range r.Headers {
		if h.Key == "trace" {
			traces++
		}
	}
	assert.Equal(t, 1, traces)

	assert.Equal(t, 0, retryAttempt(&kgo.Record{}))
	_, ok = retryNextAt(&kgo.Record{})
	assert.False(t, ok)
}

func TestDLQRecord(t *testing.T) {
	r := dlqRecord(&kgo.Record{Topic: TopicTouchRequest, Value: []byte("x")}, "boom")
	assert.Equal(t, "referral.touch.req.dlq", r.Topic)
	assert.Equal(t, ErrorHeaderKey, r.Headers[0].Key)
	assert.Equal(t, "boom", string(r.Headers[0].Value))
}

func TestTopicsFor(t *testing.T) {
	topics := topicsFor(&config.Config{KafkaInstanceID: "api-7"})
	assert.Len(t, topics, 13)
	assert.Contains(t, topics, "referral.reply.api-7")
	assert.Contains(t, topics, "referral.claim.req.dlq")
	assert.Contains(t, topics, TopicQuotaRetry)
}

func TestGatewayHandleResponse(t *testing.T) {
	g := NewGateway(&config.Config{KafkaInstanceID: "api-1"}, nil, zap.NewNop())
	ch := make(chan *ResponsePayload, 1)
	g.pendingResp.Store("abc", ch)

	payload, err := json.Marshal(ResponsePayload{CorrelationID: "abc", Status: StatusSuccess})
	require.NoError(t, err)
	g.HandleResponse(payload)

	select {
	case resp := <-ch:
		assert.Equal(t, StatusSuccess, resp.Status)
	default:
		t.Fatal("expected response to be delivered")
	}

	g.HandleResponse([]byte("not json"))
	g.HandleResponse(payload)
	g.HandleResponse(payload)
	assert.Len(t, ch, 1, "extra replies are dropped, not blocked on")

	req := g.newRequest()
	assert.Equal(t, "referral.reply.api-1", req.ReplyTo)
	assert.NotEmpty(t, req.CorrelationID)
}
