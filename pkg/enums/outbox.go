package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type_enum in Postgres.
type OutboxAggregateType string

const (
	AggregateScan    OutboxAggregateType = "scan"
	AggregateProfile OutboxAggregateType = "profile"
	AggregateOrder   OutboxAggregateType = "order"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateScan,
	AggregateProfile,
	AggregateOrder,
}

func (a OutboxAggregateType) String() string {
	return string(a)
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type_enum in Postgres.
type OutboxEventType string

const (
	EventMintRequested  OutboxEventType = "mint_requested"
	EventWalletAttached OutboxEventType = "wallet_attached"
	EventOrderPaid      OutboxEventType = "order_paid"
)

var validOutboxEventTypes = []OutboxEventType{
	EventMintRequested,
	EventWalletAttached,
	EventOrderPaid,
}

func (e OutboxEventType) String() string {
	return string(e)
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
