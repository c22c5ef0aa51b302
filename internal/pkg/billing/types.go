package billing

import "time"

// BillingEvent is the normalized shape of a recurring-provider webhook event.
// Transport concerns (signature, dedup) are handled before it reaches
// ApplyBillingEvent.
type BillingEvent struct {
	ExternalCustomerID     string
	ExternalSubscriptionID string
	EventTime              time.Time
	CurrentPeriodEnd       time.Time
	Status                 string
}

// ApplyOutcome describes what ApplyBillingEvent did with an event. Unmapped
// and stale events are expected operational noise, not errors.
type ApplyOutcome string

const (
	OutcomeApplied  ApplyOutcome = "applied"
	OutcomeStale    ApplyOutcome = "stale"
	OutcomeUnmapped ApplyOutcome = "unmapped"
)

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}
