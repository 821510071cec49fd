package entity

// VestingSchedule locks TotalAmount in a vesting vault and pays it out to the
// beneficiary linearly between StartAt and EndAt. Nothing is claimable before
// CliffAt; everything is claimable after EndAt. ReleasedAmount tracks what
// has already been paid out.
type VestingSchedule struct {
	ID             string  `json:"id"`
	Authority      Address `json:"authority"`
	Beneficiary    Address `json:"beneficiary"`
	TotalAmount    uint64  `json:"totalAmount"`
	StartAt        int64   `json:"startAt"`
	CliffAt        int64   `json:"cliffAt"`
	EndAt          int64   `json:"endAt"`
	ReleasedAmount uint64  `json:"releasedAmount"`
	CreatedAt      int64   `json:"createdAt"`
}

// Remaining is the unreleased portion still held by the vesting vault.
func (v VestingSchedule) Remaining() uint64 {
	return v.TotalAmount - v.ReleasedAmount
}
