package entity

// SaleReceipt records a settled sale. Fee + SellerProceeds == Price always.
type SaleReceipt struct {
	ID             string  `json:"id"`
	AssetID        Address `json:"assetId"`
	Seller         Address `json:"seller"`
	Buyer          Address `json:"buyer"`
	Price          uint64  `json:"price"`
	Fee            uint64  `json:"fee"`
	SellerProceeds uint64  `json:"sellerProceeds"`
	SoldAt         int64   `json:"soldAt"`
}
