package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/azizikri/referral-claim/internal/config"
	"github.com/azizikri/referral-claim/internal/domain"
	"github.com/azizikri/referral-claim/internal/usecase"
	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

var ErrReplyTimeout = errors.New("timeout waiting for response")

type Gateway struct {
	client      *kgo.Client
	cfg         *config.Config
	log         *zap.Logger
	pendingResp sync.Map
}

func NewGateway(cfg *config.Config, client *kgo.Client, log *zap.Logger) *Gateway {
	return &Gateway{
		client: client,
		cfg:    cfg,
		log:    log,
	}
}

func (g *Gateway) TouchReferral(ctx context.Context, referrer, invitee string) error {
	req := g.newRequest()
	req.Referrer = referrer
	req.Invitee = invitee

	_, err := g.call(ctx, TopicTouchRequest, invitee, req)
	return err
}

func (g *Gateway) ValidateReferral(ctx context.Context, invitee string) (*domain.Referral, error) {
	req := g.newRequest()
	req.Invitee = invitee

	resp, err := g.call(ctx, TopicValidateRequest, invitee, req)
	if err != nil {
		return nil, err
	}
	return resp.Referral, nil
}

func (g *Gateway) GetQuota(ctx context.Context, wallet string) (*domain.Quota, error) {
	req := g.newRequest()
	req.Wallet = wallet

	resp, err := g.call(ctx, TopicQuotaRequest, wallet, req)
	if err != nil {
		return nil, err
	}
	return resp.Quota, nil
}

func (g *Gateway) Claim(ctx context.Context, wallet string) (*domain.Voucher, error) {
	req := g.newRequest()
	req.Wallet = wallet

	resp, err := g.call(ctx, TopicClaimRequest, wallet, req)
	if err != nil {
		return nil, err
	}
	return resp.Voucher, nil
}

func (g *Gateway) newRequest() RequestPayload {
	return RequestPayload{
		SchemaVersion: SchemaVersion,
		CorrelationID: uuid.New().String(),
		ReplyTo:       replyTopic(g.cfg.KafkaInstanceID),
	}
}

func (g *Gateway) call(ctx context.Context, topic, key string, req RequestPayload) (*ResponsePayload, error) {
	resp, err := g.requestReply(ctx, topic, []byte(key), req)
	if err != nil {
		return nil, err
	}
	if resp.Status == StatusError {
		return nil, mapError(resp.ErrorCode, resp.ErrorMessage)
	}
	return resp, nil
}

func (g *Gateway) requestReply(ctx context.Context, topic string, key []byte, req RequestPayload) (*ResponsePayload, error) {
	respChan := make(chan *ResponsePayload, 1)
	g.pendingResp.Store(req.CorrelationID, respChan)
	defer g.pendingResp.Delete(req.CorrelationID)

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	record := &kgo.Record{
		Topic: topic,
		Key:   key,
		Value: payload,
	}

	if err := g.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return nil, err
	}

	timer := time.NewTimer(RequestTimeout)
	defer timer.Stop()

	select {
	case resp := <-respChan:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrReplyTimeout
	}
}

// HandleResponse routes a reply record to the caller waiting on its
// correlation id. Late replies are dropped.
func (g *Gateway) HandleResponse(payload []byte) {
	var resp ResponsePayload
	if err := json.Unmarshal(payload, &resp); err != nil {
		g.log.Warn("failed to decode response payload", zap.Error(err))
		return
	}

	if ch, ok := g.pendingResp.Load(resp.CorrelationID); ok {
		select {
		case ch.(chan *ResponsePayload) <- &resp:
		default:
		}
		return
	}

	g.log.Debug("no pending response", zap.String("correlation_id", resp.CorrelationID))
}

func mapError(code, message string) error {
	switch code {
	case ErrCodeInvalidWallet:
		return domain.ErrInvalidWallet
	case ErrCodeSelfReferral:
		return domain.ErrSelfReferral
	case ErrCodeAlreadyReferred:
		return domain.ErrAlreadyReferred
	case ErrCodeNotFound:
		return domain.ErrNotFound
	case ErrCodeAlreadyValidated:
		return domain.ErrAlreadyValidated
	case ErrCodeNoClaimsRemaining:
		return domain.ErrNoClaimsRemaining
	default:
		return errors.New(message)
	}
}

var _ usecase.ReferralGateway = (*Gateway)(nil)
