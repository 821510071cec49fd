// Package client is a typed Go client for the marketplace HTTP API. Mutating
// calls are signed with the caller's keypair so the server can verify the
// acting identity.
package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/speedsters/marketplace-core/pkg/keys"
)

const (
	headerAddress   = "X-Market-Address"
	headerPublicKey = "X-Market-Public"
	headerSignature = "X-Market-Signature"
)

type Registry struct {
	Authority string `json:"authority"`
	FeeBps    uint32 `json:"feeBps"`
	UpdatedAt int64  `json:"updatedAt"`
}

type Listing struct {
	Slug      string `json:"slug"`
	Seller    string `json:"seller"`
	AssetID   string `json:"assetId"`
	Price     uint64 `json:"price"`
	IsActive  bool   `json:"isActive"`
	CreatedAt int64  `json:"createdAt"`
}

type SaleReceipt struct {
	ID             string `json:"id"`
	AssetID        string `json:"assetId"`
	Seller         string `json:"seller"`
	Buyer          string `json:"buyer"`
	Price          uint64 `json:"price"`
	Fee            uint64 `json:"fee"`
	SellerProceeds uint64 `json:"sellerProceeds"`
	SoldAt         int64  `json:"soldAt"`
}

type ListingsPage struct {
	Listings []Listing `json:"listings"`
	Cursor   string    `json:"cursor"`
}

type ReceiptsPage struct {
	Receipts []SaleReceipt `json:"receipts"`
	Cursor   string        `json:"cursor"`
}

type VestingSchedule struct {
	ID             string `json:"id"`
	Authority      string `json:"authority"`
	Beneficiary    string `json:"beneficiary"`
	TotalAmount    uint64 `json:"totalAmount"`
	StartAt        int64  `json:"startAt"`
	CliffAt        int64  `json:"cliffAt"`
	EndAt          int64  `json:"endAt"`
	ReleasedAmount uint64 `json:"releasedAmount"`
	CreatedAt      int64  `json:"createdAt"`
}

type VestingPage struct {
	Schedules []VestingSchedule `json:"schedules"`
	Cursor    string            `json:"cursor"`
}

type ReleaseResult struct {
	Released uint64          `json:"released"`
	Schedule VestingSchedule `json:"schedule"`
}

type StakePosition struct {
	Owner        string `json:"owner"`
	Balance      uint64 `json:"balance"`
	LastStakedAt int64  `json:"lastStakedAt"`
}

type ApiError struct {
	Status  int
	Message string
}

func (e ApiError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

type Client struct {
	base       string
	keys       keys.Keypair
	httpClient *retryablehttp.Client
}

func New(baseURL string, kp keys.Keypair) *Client {
	httpClient := retryablehttp.NewClient()
	httpClient.Logger = nil

	return &Client{base: baseURL, keys: kp, httpClient: httpClient}
}

func (c *Client) Address() string {
	return c.keys.Address()
}

func (c *Client) Initialize(feeBps uint32) (Registry, error) {
	var registry Registry
	err := c.signed("POST", "/marketplace", map[string]interface{}{"feeBps": feeBps}, &registry)

	return registry, err
}

func (c *Client) UpdateFee(feeBps uint32) (Registry, error) {
	var registry Registry
	err := c.signed("PUT", "/marketplace/fee", map[string]interface{}{"feeBps": feeBps}, &registry)

	return registry, err
}

func (c *Client) Registry() (Registry, error) {
	var registry Registry
	err := c.get("/marketplace", &registry)

	return registry, err
}

func (c *Client) List(assetID string, price uint64) (Listing, error) {
	var listing Listing
	err := c.signed("POST", "/listings", map[string]interface{}{"assetId": assetID, "price": price}, &listing)

	return listing, err
}

func (c *Client) Cancel(assetID string) error {
	return c.signed("DELETE", "/listings/"+assetID, nil, nil)
}

func (c *Client) Buy(assetID string) (SaleReceipt, error) {
	var receipt SaleReceipt
	err := c.signed("POST", "/listings/"+assetID+"/buy", nil, &receipt)

	return receipt, err
}

func (c *Client) Listing(assetID string) (Listing, error) {
	var listing Listing
	err := c.get("/listings/"+assetID, &listing)

	return listing, err
}

func (c *Client) ActiveListings(cursor string, limit int) (ListingsPage, error) {
	var page ListingsPage
	err := c.get("/listings?cursor="+cursor+"&limit="+strconv.Itoa(limit), &page)

	return page, err
}

func (c *Client) Receipts(cursor string, limit int) (ReceiptsPage, error) {
	var page ReceiptsPage
	err := c.get("/receipts?cursor="+cursor+"&limit="+strconv.Itoa(limit), &page)

	return page, err
}

func (c *Client) CreateVesting(beneficiary string, totalAmount uint64, startAt, cliffAt, endAt int64) (VestingSchedule, error) {
	var schedule VestingSchedule
	err := c.signed("POST", "/vesting", map[string]interface{}{
		"beneficiary": beneficiary,
		"totalAmount": totalAmount,
		"startAt":     startAt,
		"cliffAt":     cliffAt,
		"endAt":       endAt,
	}, &schedule)

	return schedule, err
}

func (c *Client) Vesting(scheduleID string) (VestingSchedule, error) {
	var schedule VestingSchedule
	err := c.get("/vesting/"+scheduleID, &schedule)

	return schedule, err
}

func (c *Client) VestingSchedules(cursor string, limit int) (VestingPage, error) {
	var page VestingPage
	err := c.get("/vesting?cursor="+cursor+"&limit="+strconv.Itoa(limit), &page)

	return page, err
}

func (c *Client) ReleaseVested(scheduleID string) (ReleaseResult, error) {
	var result ReleaseResult
	err := c.signed("POST", "/vesting/"+scheduleID+"/release", nil, &result)

	return result, err
}

func (c *Client) Stake(amount uint64) (StakePosition, error) {
	var position StakePosition
	err := c.signed("POST", "/stakes", map[string]interface{}{"amount": amount}, &position)

	return position, err
}

func (c *Client) Unstake(amount uint64) (StakePosition, error) {
	var position StakePosition
	err := c.signed("POST", "/stakes/withdraw", map[string]interface{}{"amount": amount}, &position)

	return position, err
}

func (c *Client) StakePosition(address string) (StakePosition, error) {
	var position StakePosition
	err := c.get("/stakes/"+address, &position)

	return position, err
}

func (c *Client) signed(method, path string, body interface{}, out interface{}) error {
	payload := []byte{}
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = encoded
	}

	req, err := retryablehttp.NewRequest(method, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerAddress, c.keys.Address())
	req.Header.Set(headerPublicKey, c.keys.PublicKey())
	req.Header.Set(headerSignature, c.keys.Sign(payload))

	return c.do(req, out)
}

func (c *Client) get(path string, out interface{}) error {
	req, err := retryablehttp.NewRequest("GET", c.base+path, nil)
	if err != nil {
		return err
	}

	return c.do(req, out)
}

func (c *Client) do(req *retryablehttp.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(raw, &apiErr); err != nil || apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}

		return ApiError{Status: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}

	return json.Unmarshal(raw, out)
}

// IsStatus reports whether err is an ApiError with the given HTTP status.
func IsStatus(err error, status int) bool {
	var apiErr ApiError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
