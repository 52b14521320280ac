package kafka

import "time"

const (
	TopicTouchRequest    = "referral.touch.req"
	TopicValidateRequest = "referral.validate.req"
	TopicQuotaRequest    = "referral.quota.req"
	TopicClaimRequest    = "referral.claim.req"
	TopicTouchRetry      = "referral.touch.retry"
	TopicValidateRetry   = "referral.validate.retry"
	TopicQuotaRetry      = "referral.quota.retry"
	TopicClaimRetry      = "referral.claim.retry"
	TopicReplyPrefix     = "referral.reply."
	TopicRequestSuffix   = ".req"
	TopicRetrySuffix     = ".retry"
	TopicDLQSuffix       = ".dlq"

	RequestTimeout = 3 * time.Second
	RetryBaseDelay = 500 * time.Millisecond

	RetryHeaderNextAt  = "x-next-at"
	RetryHeaderAttempt = "x-attempt"
	ErrorHeaderKey     = "x-error"
)

var (
	RequestTopics = []string{TopicTouchRequest, TopicValidateRequest, TopicQuotaRequest, TopicClaimRequest}
	RetryTopics   = []string{TopicTouchRetry, TopicValidateRetry, TopicQuotaRetry, TopicClaimRetry}
)
