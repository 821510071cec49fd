package entity

// MaxFeeBps caps the marketplace fee at 100%.
const MaxFeeBps = 10000

// Registry is the singleton marketplace configuration. It lives at
// RegistryAddress() and only its own authority may change it.
type Registry struct {
	Authority Address `json:"authority"`
	FeeBps    uint32  `json:"feeBps"`
	UpdatedAt int64   `json:"updatedAt"`
}
