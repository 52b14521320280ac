package kafka

import (
	"context"

	"github.com/azizikri/referral-claim/internal/domain"
	"github.com/azizikri/referral-claim/internal/usecase"
)

// DirectGateway skips Kafka and calls the service in-process.
type DirectGateway struct {
	service *usecase.ReferralService
}

func NewDirectGateway(service *usecase.ReferralService) usecase.ReferralGateway {
	return &DirectGateway{service: service}
}

func (g *DirectGateway) TouchReferral(ctx context.Context, referrer, invitee string) error {
	return g.service.TouchReferral(ctx, referrer, invitee)
}

func (g *DirectGateway) ValidateReferral(ctx context.Context, invitee string) (*domain.Referral, error) {
	return g.service.ValidateReferral(ctx, invitee)
}

func (g *DirectGateway) GetQuota(ctx context.Context, wallet string) (*domain.Quota, error) {
	return g.service.GetQuota(ctx, wallet)
}

func (g *DirectGateway) Claim(ctx context.Context, wallet string) (*domain.Voucher, error) {
	return g.service.Claim(ctx, wallet)
}
