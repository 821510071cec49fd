package entity

// StakePosition tracks one party's share of the staking vault.
type StakePosition struct {
	Owner        Address `json:"owner"`
	Balance      uint64  `json:"balance"`
	LastStakedAt int64   `json:"lastStakedAt"`
}
