package entity

// Vault is the escrow record paired 1:1 with a Listing. Custody of the asset
// unit is held by the vault's derived address on the ledger, so only
// settlement logic can move it out.
type Vault struct {
	Address   Address `json:"address"`
	AssetID   Address `json:"assetId"`
	Listing   Address `json:"listing"`
	CreatedAt int64   `json:"createdAt"`
}
