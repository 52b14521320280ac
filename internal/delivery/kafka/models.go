package kafka

import "github.com/azizikri/referral-claim/internal/domain"

const SchemaVersion = 1

const (
	StatusSuccess = "SUCCESS"
	StatusError   = "ERROR"
)

const (
	ErrCodeInvalidWallet     = "INVALID_WALLET"
	ErrCodeSelfReferral      = "SELF_REFERRAL"
	ErrCodeAlreadyReferred   = "ALREADY_REFERRED"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeAlreadyValidated  = "ALREADY_VALIDATED"
	ErrCodeNoClaimsRemaining = "NO_CLAIMS_REMAINING"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeInternalError     = "INTERNAL_ERROR"
)

type RequestPayload struct {
	SchemaVersion int    `json:"schema_version"`
	CorrelationID string `json:"correlation_id"`
	ReplyTo       string `json:"reply_to"`
	Referrer      string `json:"referrer,omitempty"`
	Invitee       string `json:"invitee,omitempty"`
	Wallet        string `json:"wallet,omitempty"`
}

type ResponsePayload struct {
	SchemaVersion int              `json:"schema_version"`
	CorrelationID string           `json:"correlation_id"`
	Status        string           `json:"status"`
	ErrorCode     string           `json:"error_code,omitempty"`
	ErrorMessage  string           `json:"error_message,omitempty"`
	Referral      *domain.Referral `json:"referral,omitempty"`
	Quota         *domain.Quota    `json:"quota,omitempty"`
	Voucher       *domain.Voucher  `json:"voucher,omitempty"`
}
