package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/speedsters/marketplace-core/internal/economy"
	"github.com/speedsters/marketplace-core/internal/entity"
	"github.com/speedsters/marketplace-core/internal/event"
	"github.com/speedsters/marketplace-core/internal/ledger"
	"github.com/speedsters/marketplace-core/internal/marketplace"
	"github.com/speedsters/marketplace-core/internal/repository"
	"github.com/speedsters/marketplace-core/pkg/keys"
)

const (
	HeaderAddress   = "X-Market-Address"
	HeaderPublicKey = "X-Market-Public"
	HeaderSignature = "X-Market-Signature"

	registryCacheKey   = "registry"
	listingCachePrefix = "listing:"
	vestingCachePrefix = "vesting:"
	stakeCachePrefix   = "stake:"

	defaultPageSize = 25
	maxPageSize     = 100
)

type Server struct {
	service marketplace.Service
	economy economy.Service
	ledger  *ledger.Ledger
	cache   *cache.Cache
	events  *event.Manager
	devMode bool
}

func NewServer(service marketplace.Service, e economy.Service, l *ledger.Ledger, c *cache.Cache, events *event.Manager, devMode bool) Server {
	s := Server{service: service, economy: e, ledger: l, cache: c, events: events, devMode: devMode}
	s.subscribe()

	return s
}

// subscribe keeps the read cache honest: every state transition evicts the
// entries it invalidates. Listeners live on the server's own event manager,
// so they go away with it.
func (s Server) subscribe() {
	s.events.AddEventListener(event.RegistryUpdatedEvent, func(msg interface{}) {
		s.cache.Delete(registryCacheKey)
	})
	s.events.AddEventListener(event.ListingCreatedEvent, func(msg interface{}) {
		if listing, ok := msg.(entity.Listing); ok {
			s.cache.Delete(listingCachePrefix + string(listing.AssetID))
		}
	})
	s.events.AddEventListener(event.ListingCancelledEvent, func(msg interface{}) {
		if assetID, ok := msg.(entity.Address); ok {
			s.cache.Delete(listingCachePrefix + string(assetID))
		}
	})
	s.events.AddEventListener(event.ListingSoldEvent, func(msg interface{}) {
		if receipt, ok := msg.(entity.SaleReceipt); ok {
			s.cache.Delete(listingCachePrefix + string(receipt.AssetID))
		}
	})
	s.events.AddEventListener(event.VestingReleasedEvent, func(msg interface{}) {
		if schedule, ok := msg.(entity.VestingSchedule); ok {
			s.cache.Delete(vestingCachePrefix + schedule.ID)
		}
	})
	s.events.AddEventListener(event.StakeChangedEvent, func(msg interface{}) {
		if position, ok := msg.(entity.StakePosition); ok {
			s.cache.Delete(stakeCachePrefix + string(position.Owner))
		}
	})
}

func (s Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/marketplace", s.handleInitialize).Methods("POST")
	r.HandleFunc("/marketplace/fee", s.handleUpdateFee).Methods("PUT")
	r.HandleFunc("/marketplace", s.handleGetRegistry).Methods("GET")

	r.HandleFunc("/listings", s.handleList).Methods("POST")
	r.HandleFunc("/listings", s.handleActiveListings).Methods("GET")
	r.HandleFunc("/listings/{assetId}", s.handleGetListing).Methods("GET")
	r.HandleFunc("/listings/{assetId}", s.handleCancel).Methods("DELETE")
	r.HandleFunc("/listings/{assetId}/buy", s.handleBuy).Methods("POST")

	r.HandleFunc("/receipts", s.handleReceipts).Methods("GET")

	r.HandleFunc("/vesting", s.handleCreateVesting).Methods("POST")
	r.HandleFunc("/vesting", s.handleVestingSchedules).Methods("GET")
	r.HandleFunc("/vesting/{scheduleId}", s.handleGetVesting).Methods("GET")
	r.HandleFunc("/vesting/{scheduleId}/release", s.handleRelease).Methods("POST")

	r.HandleFunc("/stakes", s.handleStake).Methods("POST")
	r.HandleFunc("/stakes/withdraw", s.handleUnstake).Methods("POST")
	r.HandleFunc("/stakes/{address}", s.handleGetStake).Methods("GET")

	if s.devMode {
		r.HandleFunc("/dev/credit", s.handleDevCredit).Methods("POST")
		r.HandleFunc("/dev/assets", s.handleDevIssue).Methods("POST")
	}

	r.NotFoundHandler = notFoundHandler()

	return r
}

// authenticate reads the body and proves the caller controls the address it
// claims. The verified address is the acting party for the request.
func (s Server) authenticate(w http.ResponseWriter, r *http.Request) (entity.Address, []byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return "", nil, false
	}

	addr := entity.Address(r.Header.Get(HeaderAddress))
	if err := addr.Validate(); err != nil {
		http.Error(w, "missing or invalid "+HeaderAddress, http.StatusUnauthorized)
		return "", nil, false
	}

	if err := keys.Verify(addr.String(), r.Header.Get(HeaderPublicKey), r.Header.Get(HeaderSignature), body); err != nil {
		zap.L().With(zap.Error(err), zap.String("address", addr.String())).Warn("Rejected unauthenticated request")
		http.Error(w, "signature verification failed", http.StatusUnauthorized)
		return "", nil, false
	}

	return addr, body, true
}

func (s Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	authority, body, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	var req struct {
		FeeBps uint32 `json:"feeBps"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	registry, err := s.service.Initialize(authority, req.FeeBps)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, registry)
}

func (s Server) handleUpdateFee(w http.ResponseWriter, r *http.Request) {
	caller, body, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	var req struct {
		FeeBps uint32 `json:"feeBps"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	registry, err := s.service.UpdateFee(caller, req.FeeBps)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, registry)
}

func (s Server) handleGetRegistry(w http.ResponseWriter, r *http.Request) {
	if cached, found := s.cache.Get(registryCacheKey); found {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	registry, err := s.service.Registry()
	if err != nil {
		writeError(w, err)
		return
	}

	s.cache.SetDefault(registryCacheKey, registry)
	writeJSON(w, http.StatusOK, registry)
}

func (s Server) handleList(w http.ResponseWriter, r *http.Request) {
	seller, body, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	var req struct {
		AssetID entity.Address `json:"assetId"`
		Price   uint64         `json:"price"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.AssetID.Validate(); err != nil {
		http.Error(w, "invalid asset id", http.StatusBadRequest)
		return
	}

	listing, err := s.service.List(seller, req.AssetID, req.Price)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, listingResponse(listing))
}

func (s Server) handleActiveListings(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get("cursor")
	limit := pageLimit(r)

	listings, next, err := s.service.ActiveListings(cursor, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	items := make([]interface{}, 0, len(listings))
	for _, listing := range listings {
		items = append(items, listingResponse(listing))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"listings": items,
		"cursor":   next,
	})
}

func (s Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	assetID := entity.Address(mux.Vars(r)["assetId"])

	if cached, found := s.cache.Get(listingCachePrefix + string(assetID)); found {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	listing, err := s.service.Listing(assetID)
	if err != nil {
		writeError(w, err)
		return
	}

	response := listingResponse(listing)
	s.cache.SetDefault(listingCachePrefix+string(assetID), response)
	writeJSON(w, http.StatusOK, response)
}

func (s Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	seller, _, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	assetID := entity.Address(mux.Vars(r)["assetId"])
	if err := s.service.Cancel(seller, assetID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	buyer, _, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	assetID := entity.Address(mux.Vars(r)["assetId"])
	receipt, err := s.service.Buy(buyer, assetID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, receipt)
}

func (s Server) handleReceipts(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get("cursor")
	limit := pageLimit(r)

	receipts, next, err := s.service.Receipts(cursor, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"receipts": receipts,
		"cursor":   next,
	})
}

func (s Server) handleCreateVesting(w http.ResponseWriter, r *http.Request) {
	authority, body, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	var req struct {
		Beneficiary entity.Address `json:"beneficiary"`
		TotalAmount uint64         `json:"totalAmount"`
		StartAt     int64          `json:"startAt"`
		CliffAt     int64          `json:"cliffAt"`
		EndAt       int64          `json:"endAt"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	schedule, err := s.economy.CreateVestingSchedule(authority, req.Beneficiary, req.TotalAmount, req.StartAt, req.CliffAt, req.EndAt)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, schedule)
}

func (s Server) handleVestingSchedules(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get("cursor")
	limit := pageLimit(r)

	schedules, next, err := s.economy.Schedules(cursor, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"schedules": schedules,
		"cursor":    next,
	})
}

func (s Server) handleGetVesting(w http.ResponseWriter, r *http.Request) {
	scheduleID := mux.Vars(r)["scheduleId"]

	if cached, found := s.cache.Get(vestingCachePrefix + scheduleID); found {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	schedule, err := s.economy.Schedule(scheduleID)
	if err != nil {
		writeError(w, err)
		return
	}

	s.cache.SetDefault(vestingCachePrefix+scheduleID, schedule)
	writeJSON(w, http.StatusOK, schedule)
}

func (s Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	beneficiary, _, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	scheduleID := mux.Vars(r)["scheduleId"]
	released, schedule, err := s.economy.Release(beneficiary, scheduleID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"released": released,
		"schedule": schedule,
	})
}

func (s Server) handleStake(w http.ResponseWriter, r *http.Request) {
	owner, body, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	var req struct {
		Amount uint64 `json:"amount"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	position, err := s.economy.Stake(owner, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, position)
}

func (s Server) handleUnstake(w http.ResponseWriter, r *http.Request) {
	owner, body, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	var req struct {
		Amount uint64 `json:"amount"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	position, err := s.economy.Unstake(owner, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, position)
}

func (s Server) handleGetStake(w http.ResponseWriter, r *http.Request) {
	owner := entity.Address(mux.Vars(r)["address"])

	if cached, found := s.cache.Get(stakeCachePrefix + string(owner)); found {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	position, err := s.economy.Position(owner)
	if err != nil {
		writeError(w, err)
		return
	}

	s.cache.SetDefault(stakeCachePrefix+string(owner), position)
	writeJSON(w, http.StatusOK, position)
}

func (s Server) handleDevCredit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address entity.Address `json:"address"`
		Amount  uint64         `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.ledger.Credit(req.Address, req.Amount); err != nil {
		writeError(w, err)
		return
	}

	balance, err := s.ledger.Balance(req.Address)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"address": req.Address, "balance": balance})
}

func (s Server) handleDevIssue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AssetID entity.Address `json:"assetId"`
		Owner   entity.Address `json:"owner"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.ledger.Issue(req.AssetID, req.Owner); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"assetId": req.AssetID, "owner": req.Owner})
}

func listingResponse(listing entity.Listing) map[string]interface{} {
	return map[string]interface{}{
		"slug":      listing.Slug(),
		"seller":    listing.Seller,
		"assetId":   listing.AssetID,
		"price":     listing.Price,
		"isActive":  listing.IsActive,
		"createdAt": listing.CreatedAt,
	}
}

func pageLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return defaultPageSize
	}
	if limit > maxPageSize {
		return maxPageSize
	}

	return limit
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, marketplace.ErrAlreadyInitialized),
		errors.Is(err, marketplace.ErrAlreadyListed),
		errors.Is(err, ledger.ErrAssetExists),
		errors.Is(err, economy.ErrNothingVested):
		status = http.StatusConflict
	case errors.Is(err, marketplace.ErrInvalidFee),
		errors.Is(err, marketplace.ErrInvalidPrice),
		errors.Is(err, economy.ErrInvalidSchedule),
		errors.Is(err, economy.ErrInvalidAmount):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, marketplace.ErrUnauthorized), errors.Is(err, economy.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, marketplace.ErrNotActive),
		errors.Is(err, repository.ErrListingNotFound),
		errors.Is(err, repository.ErrRegistryNotFound),
		errors.Is(err, repository.ErrScheduleNotFound),
		errors.Is(err, repository.ErrStakeNotFound),
		errors.Is(err, ledger.ErrAssetNotFound):
		status = http.StatusNotFound
	case errors.Is(err, marketplace.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, economy.ErrInsufficientStake):
		status = http.StatusPaymentRequired
	}

	if status == http.StatusInternalServerError {
		zap.L().With(zap.Error(err)).Error("Request failed")
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func notFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
}
