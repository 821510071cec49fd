package event

type Type string

const (
	RegistryUpdatedEvent  Type = "RegistryUpdatedEvent"
	ListingCreatedEvent   Type = "ListingCreatedEvent"
	ListingCancelledEvent Type = "ListingCancelledEvent"
	ListingSoldEvent      Type = "ListingSoldEvent"

	VestingCreatedEvent  Type = "VestingCreatedEvent"
	VestingReleasedEvent Type = "VestingReleasedEvent"
	StakeChangedEvent    Type = "StakeChangedEvent"
)
