package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/azizikri/referral-claim/internal/config"
	"github.com/azizikri/referral-claim/internal/domain"
	"github.com/azizikri/referral-claim/internal/usecase"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

var errUnknownTopic = errors.New("unknown request topic")

type Consumer struct {
	client  *kgo.Client
	cfg     *config.Config
	service usecase.ReferralGateway
	log     *zap.Logger
	now     func() time.Time

	ready     chan struct{}
	readyOnce sync.Once
}

func NewConsumer(cfg *config.Config, client *kgo.Client, service usecase.ReferralGateway, log *zap.Logger) *Consumer {
	return &Consumer{
		client:  client,
		cfg:     cfg,
		service: service,
		log:     log,
		ready:   make(chan struct{}),
		now:     time.Now,
	}
}

func (c *Consumer) Start(ctx context.Context) {
	c.readyOnce.Do(func() { close(c.ready) })
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, fe := range errs {
				c.log.Warn("consumer poll error", zap.String("topic", fe.Topic), zap.Int32("partition", fe.Partition), zap.Error(fe.Err))
			}
		}

		iter := fetches.RecordIter()
		for !iter.Done() {
			c.processRecord(ctx, iter.Next())
		}

		if err := c.client.CommitRecords(ctx, fetches.Records()...); err != nil {
			c.log.Error("failed to commit records", zap.Error(err))
		}
	}
}

// StartRetry moves records from the retry topics back onto their request
// topics once their x-next-at time has passed.
func (c *Consumer) StartRetry(ctx context.Context) {
	c.readyOnce.Do(func() { close(c.ready) })
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}
		iter := fetches.RecordIter()
		for !iter.Done() {
			record := iter.Next()

			if nextAt, ok := retryNextAt(record); ok {
				if wait := nextAt.Sub(c.now()); wait > 0 {
					select {
					case <-ctx.Done():
						return
					case <-time.After(wait):
					}
				}
			}

			mainTopic := strings.TrimSuffix(record.Topic, TopicRetrySuffix) + TopicRequestSuffix
			newRecord := &kgo.Record{
				Topic:   mainTopic,
				Key:     record.Key,
				Value:   record.Value,
				Headers: record.Headers,
			}
			if err := c.client.ProduceSync(ctx, newRecord).FirstErr(); err != nil {
				c.log.Error("failed to requeue retry record", zap.String("topic", mainTopic), zap.Error(err))
			}
		}
		if err := c.client.CommitRecords(ctx, fetches.Records()...); err != nil {
			c.log.Error("failed to commit retry records", zap.Error(err))
		}
	}
}

func (c *Consumer) Ready() <-chan struct{} {
	return c.ready
}

func (c *Consumer) processRecord(ctx context.Context, record *kgo.Record) {
	var req RequestPayload
	if err := json.Unmarshal(record.Value, &req); err != nil {
		c.sendError(ctx, record, ErrCodeInvalidRequest, "invalid request payload")
		return
	}
	if req.SchemaVersion > SchemaVersion {
		c.sendError(ctx, record, ErrCodeInvalidRequest, "unsupported schema version "+strconv.Itoa(req.SchemaVersion))
		return
	}

	resp, err := c.handle(ctx, record.Topic, req)
	if errors.Is(err, errUnknownTopic) {
		c.sendError(ctx, record, ErrCodeInvalidRequest, err.Error())
		return
	}
	if err != nil && resp.ErrorCode == ErrCodeInternalError {
		attempt := retryAttempt(record)
		if attempt+1 < c.cfg.MaxAttempts() {
			c.log.Warn("request failed, scheduling retry",
				zap.String("topic", record.Topic),
				zap.String("correlation_id", req.CorrelationID),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			c.produce(ctx, retryRecord(record, attempt+1, c.now()))
			return
		}
		c.log.Error("request failed, retries exhausted",
			zap.String("topic", record.Topic),
			zap.String("correlation_id", req.CorrelationID),
			zap.Error(err))
		c.produce(ctx, dlqRecord(record, err.Error()))
	}

	c.sendResponse(ctx, req.ReplyTo, resp)
}

func (c *Consumer) handle(ctx context.Context, topic string, req RequestPayload) (*ResponsePayload, error) {
	resp := successResponse(req.CorrelationID)
	var err error

	switch topic {
	case TopicTouchRequest:
		err = c.service.TouchReferral(ctx, req.Referrer, req.Invitee)
	case TopicValidateRequest:
		resp.Referral, err = c.service.ValidateReferral(ctx, req.Invitee)
	case TopicQuotaRequest:
		resp.Quota, err = c.service.GetQuota(ctx, req.Wallet)
	case TopicClaimRequest:
		resp.Voucher, err = c.service.Claim(ctx, req.Wallet)
	default:
		return nil, errUnknownTopic
	}

	if err != nil {
		return errorResponse(req.CorrelationID, errorCode(err), err.Error()), err
	}
	return resp, nil
}

func (c *Consumer) sendResponse(ctx context.Context, topic string, resp *ResponsePayload) {
	if topic == "" {
		return
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		c.log.Error("failed to encode response", zap.Error(err))
		return
	}
	c.produce(ctx, &kgo.Record{Topic: topic, Value: payload})
}

func (c *Consumer) sendError(ctx context.Context, record *kgo.Record, code, message string) {
	var req RequestPayload
	_ = json.Unmarshal(record.Value, &req)

	c.sendResponse(ctx, req.ReplyTo, errorResponse(req.CorrelationID, code, message))
	c.produce(ctx, dlqRecord(record, message))
}

func (c *Consumer) produce(ctx context.Context, record *kgo.Record) {
	if err := c.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		c.log.Error("failed to produce record", zap.String("topic", record.Topic), zap.Error(err))
	}
}

func retryRecord(record *kgo.Record, attempt int, now time.Time) *kgo.Record {
	delay := RetryBaseDelay << (attempt - 1)
	headers := make([]kgo.RecordHeader, 0, len(record.Headers)+2)
	for _, h := range record.Headers {
		if h.Key == RetryHeaderNextAt || h.Key == RetryHeaderAttempt {
			continue
		}
		headers = append(headers, h)
	}
	headers = append(headers,
		kgo.RecordHeader{Key: RetryHeaderNextAt, Value: []byte(now.Add(delay).UTC().Format(time.RFC3339Nano))},
		kgo.RecordHeader{Key: RetryHeaderAttempt, Value: []byte(strconv.Itoa(attempt))},
	)

	return &kgo.Record{
		Topic:   strings.TrimSuffix(record.Topic, TopicRequestSuffix) + TopicRetrySuffix,
		Key:     record.Key,
		Value:   record.Value,
		Headers: headers,
	}
}

func dlqRecord(record *kgo.Record, message string) *kgo.Record {
	return &kgo.Record{
		Topic: record.Topic + TopicDLQSuffix,
		Key:   record.Key,
		Value: record.Value,
		Headers: []kgo.RecordHeader{
			{Key: ErrorHeaderKey, Value: []byte(message)},
		},
	}
}

func retryNextAt(record *kgo.Record) (time.Time, bool) {
	for _, header := range record.Headers {
		if header.Key != RetryHeaderNextAt {
			continue
		}
		nextAt, err := time.Parse(time.RFC3339Nano, string(header.Value))
		if err != nil {
			return time.Time{}, false
		}
		return nextAt, true
	}

	return time.Time{}, false
}

func retryAttempt(record *kgo.Record) int {
	for _, header := range record.Headers {
		if header.Key != RetryHeaderAttempt {
			continue
		}
		n, err := strconv.Atoi(string(header.Value))
		if err != nil || n < 0 {
			return 0
		}
		return n
	}
	return 0
}

func successResponse(correlationID string) *ResponsePayload {
	return &ResponsePayload{
		SchemaVersion: SchemaVersion,
		CorrelationID: correlationID,
		Status:        StatusSuccess,
	}
}

func errorResponse(correlationID, code, message string) *ResponsePayload {
	return &ResponsePayload{
		SchemaVersion: SchemaVersion,
		CorrelationID: correlationID,
		Status:        StatusError,
		ErrorCode:     code,
		ErrorMessage:  message,
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidWallet):
		return ErrCodeInvalidWallet
	case errors.Is(err, domain.ErrSelfReferral):
		return ErrCodeSelfReferral
	case errors.Is(err, domain.ErrAlreadyReferred):
		return ErrCodeAlreadyReferred
	case errors.Is(err, domain.ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, domain.ErrAlreadyValidated):
		return ErrCodeAlreadyValidated
	case errors.Is(err, domain.ErrNoClaimsRemaining):
		return ErrCodeNoClaimsRemaining
	default:
		return ErrCodeInternalError
	}
}
