package bot

import (
	"context"

	"adportal/internal/storage/redis"
)

const (
	StepPrivacyAgreement = "privacy_agreement"
	StepProduct          = "product"
	StepAreas            = "areas"
	StepAdSize           = "ad_size"
	StepLeafletSize      = "leaflet_size"
	StepDuration         = "duration"
	StepSchedule         = "schedule"
	StepVoucher          = "voucher"
	StepContact          = "contact"
	StepSummary          = "summary"
)

// StateStore keeps wizard progress between updates.
type StateStore interface {
	GetUserDialogState(ctx context.Context, chatID int64) (*redis.UserState, error)
	SetUserDialogState(ctx context.Context, chatID int64, state *redis.UserState) error
	DropUserDialogState(ctx context.Context, chatID int64) error
}

var _ StateStore = (*redis.Storage)(nil)
