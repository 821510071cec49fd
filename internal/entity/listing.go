package entity

import (
	"fmt"

	"github.com/gosimple/slug"
)

// Listing is a standing offer to sell one asset at a fixed price. A Listing
// exists if and only if its vault holds the asset; both are closed together
// on sale or cancellation.
type Listing struct {
	Seller    Address `json:"seller"`
	AssetID   Address `json:"assetId"`
	Price     uint64  `json:"price"`
	IsActive  bool    `json:"isActive"`
	CreatedAt int64   `json:"createdAt"`
}

func (l Listing) Slug() string {
	return CreateListingSlug(l.AssetID)
}

func CreateListingSlug(assetID Address) string {
	return slug.Make(fmt.Sprintf("listing-%s", assetID))
}
