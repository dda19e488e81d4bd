package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"marketd/core/types"
	"marketd/crypto"
	"marketd/native/market"
	"marketd/observability/metrics"
)

func parseParams(req *RPCRequest, out interface{}) *dispatchError {
	if len(req.Params) == 0 {
		return invalidParams("missing params object")
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return invalidParams(fmt.Sprintf("invalid params: %v", err))
	}
	return nil
}

func parseAddress(field, value string) ([20]byte, *dispatchError) {
	var out [20]byte
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return out, invalidParams(fmt.Sprintf("%s is required", field))
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return out, invalidParams(fmt.Sprintf("%s: %v", field, err))
	}
	if addr.Prefix() != crypto.MarketPrefix {
		return out, invalidParams(fmt.Sprintf("%s: expected %q prefix", field, crypto.MarketPrefix))
	}
	copy(out[:], addr.Bytes())
	return out, nil
}

func parseOptionalAddress(field, value string) ([20]byte, *dispatchError) {
	if strings.TrimSpace(value) == "" {
		return [20]byte{}, nil
	}
	return parseAddress(field, value)
}

func parseAmount(field, value string) (*big.Int, *dispatchError) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, invalidParams(fmt.Sprintf("%s: invalid decimal amount", field))
	}
	if amount.Sign() < 0 {
		return nil, invalidParams(fmt.Sprintf("%s: amount must be non-negative", field))
	}
	return amount, nil
}

func addressString(b [20]byte) string {
	return crypto.NewAddress(crypto.MarketPrefix, b[:]).String()
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

type statusResult struct {
	Status string `json:"status"`
}

var okResult = statusResult{Status: "ok"}

type setCollectionConfigParams struct {
	Caller         string `json:"caller"`
	Collection     string `json:"collection"`
	AssetKind      string `json:"assetKind"`
	RoyaltyPercent uint8  `json:"royaltyPercent"`
	MetadataURI    string `json:"metadataURI"`
}

func (s *Server) handleSetCollectionConfig(req *RPCRequest) (interface{}, *dispatchError) {
	var params setCollectionConfigParams
	if errParams := parseParams(req, &params); errParams != nil {
		return nil, errParams
	}
	caller, errParams := parseAddress("caller", params.Caller)
	if errParams != nil {
		return nil, errParams
	}
	collection, errParams := parseAddress("collection", params.Collection)
	if errParams != nil {
		return nil, errParams
	}
	kind, err := market.ParseAssetKind(params.AssetKind)
	if err != nil {
		return nil, invalidParams(err.Error())
	}
	if err := s.engine.SetCollectionConfig(caller, collection, kind, params.RoyaltyPercent, params.MetadataURI); err != nil {
		return nil, engineError(err)
	}
	return okResult, nil
}

type collectionCallParams struct {
	Caller     string `json:"caller"`
	Collection string `json:"collection"`
}

func (s *Server) handleDisableCollection(req *RPCRequest) (interface{}, *dispatchError) {
	var params collectionCallParams
	if errParams := parseParams(req, &params); errParams != nil {
		return nil, errParams
	}
	caller, errParams := parseAddress("caller", params.Caller)
	if errParams != nil {
		return nil, errParams
	}
	collection, errParams := parseAddress("collection", params.Collection)
	if errParams != nil {
		return nil, errParams
	}
	if err := s.engine.DisableCollection(caller, collection); err != nil {
		return nil, engineError(err)
	}
	return okResult, nil
}

type listParams struct {
	Caller       string `json:"caller"`
	Collection   string `json:"collection"`
	AssetID      uint64 `json:"assetId"`
	MinPrice     string `json:"minPrice"`
	RestrictedTo string `json:"restrictedTo,omitempty"`
}

func (s *Server) handleList(req *RPCRequest) (interface{}, *dispatchError) {
	var params listParams
	if errParams := parseParams(req, &params); errParams != nil {
		return nil, errParams
	}
	caller, errParams := parseAddress("caller", params.Caller)
	if errParams != nil {
		return nil, errParams
	}
	collection, errParams := parseAddress("collection", params.Collection)
	if errParams != nil {
		return nil, errParams
	}
	minPrice, errParams := parseAmount("minPrice", params.MinPrice)
	if errParams != nil {
		return nil, errParams
	}
	restrictedTo, errParams := parseOptionalAddress("restrictedTo", params.RestrictedTo)
	if errParams != nil {
		return nil, errParams
	}
	if err := s.engine.ListForSale(caller, collection, params.AssetID, minPrice, restrictedTo); err != nil {
		return nil, engineError(err)
	}
	return okResult, nil
}

type assetCallParams struct {
	Caller     string `json:"caller"`
	Collection string `json:"collection"`
	AssetID    uint64 `json:"assetId"`
}

func (s *Server) handleDelist(req *RPCRequest) (interface{}, *dispatchError) {
	var params assetCallParams
	if errParams := parseParams(req, &params); errParams != nil {
		return nil, errParams
	}
	caller, errParams := parseAddress("caller", params.Caller)
	if errParams != nil {
		return nil, errParams
	}
	collection, errParams := parseAddress("collection", params.Collection)
	if errParams != nil {
		return nil, errParams
	}
	if err := s.engine.Delist(caller, collection, params.AssetID); err != nil {
		return nil, engineError(err)
	}
	return okResult, nil
}

type placeBidParams struct {
	Caller     string `json:"caller"`
	Collection string `json:"collection"`
	AssetID    uint64 `json:"assetId"`
	Value      string `json:"value"`
}

func (s *Server) handlePlaceBid(req *RPCRequest) (interface{}, *dispatchError) {
	var params placeBidParams
	if errParams := parseParams(req, &params); errParams != nil {
		return nil, errParams
	}
	caller, errParams := parseAddress("caller", params.Caller)
	if errParams != nil {
		return nil, errParams
	}
	collection, errParams := parseAddress("collection", params.Collection)
	if errParams != nil {
		return nil, errParams
	}
	value, errParams := parseAmount("value", params.Value)
	if errParams != nil {
		return nil, errParams
	}
	superseded := s.activeBidAmount(collection, params.AssetID)
	if err := s.engine.PlaceBid(caller, collection, params.AssetID, value); err != nil {
		return nil, engineError(err)
	}
	metrics.Market().AddEscrowedBid(value)
	metrics.Market().SubEscrowedBid(superseded)
	return okResult, nil
}

func (s *Server) handleWithdrawBid(req *RPCRequest) (interface{}, *dispatchError) {
	var params assetCallParams
	if errParams := parseParams(req, &params); errParams != nil {
		return nil, errParams
	}
	caller, errParams := parseAddress("caller", params.Caller)
	if errParams != nil {
		return nil, errParams
	}
	collection, errParams := parseAddress("collection", params.Collection)
	if errParams != nil {
		return nil, errParams
	}
	escrowed := s.activeBidAmount(collection, params.AssetID)
	if err := s.engine.WithdrawBid(caller, collection, params.AssetID); err != nil {
		return nil, engineError(err)
	}
	metrics.Market().SubEscrowedBid(escrowed)
	return okResult, nil
}

type acceptOfferParams struct {
	Caller     string `json:"caller"`
	Collection string `json:"collection"`
	AssetID    uint64 `json:"assetId"`
	Value      string `json:"value"`
}

func (s *Server) handleAcceptOffer(req *RPCRequest) (interface{}, *dispatchError) {
	var params acceptOfferParams
	if errParams := parseParams(req, &params); errParams != nil {
		return nil, errParams
	}
	caller, errParams := parseAddress("caller", params.Caller)
	if errParams != nil {
		return nil, errParams
	}
	collection, errParams := parseAddress("collection", params.Collection)
	if errParams != nil {
		return nil, errParams
	}
	value, errParams := parseAmount("value", params.Value)
	if errParams != nil {
		return nil, errParams
	}
	buyerEscrow := s.buyerBidAmount(collection, params.AssetID, caller)
	if err := s.engine.AcceptOffer(caller, collection, params.AssetID, value); err != nil {
		return nil, engineError(err)
	}
	metrics.Market().AddSettlementVolume(value)
	metrics.Market().SubEscrowedBid(buyerEscrow)
	return okResult, nil
}

type acceptBidParams struct {
	Caller             string `json:"caller"`
	Collection         string `json:"collection"`
	AssetID            uint64 `json:"assetId"`
	MinAcceptablePrice string `json:"minAcceptablePrice"`
}

func (s *Server) handleAcceptBid(req *RPCRequest) (interface{}, *dispatchError) {
	var params acceptBidParams
	if errParams := parseParams(req, &params); errParams != nil {
		return nil, errParams
	}
	caller, errParams := parseAddress("caller", params.Caller)
	if errParams != nil {
		return nil, errParams
	}
	collection, errParams := parseAddress("collection", params.Collection)
	if errParams != nil {
		return nil, errParams
	}
	floor, errParams := parseAmount("minAcceptablePrice", params.MinAcceptablePrice)
	if errParams != nil {
		return nil, errParams
	}
	escrowed := s.activeBidAmount(collection, params.AssetID)
	if err := s.engine.AcceptBid(caller, collection, params.AssetID, floor); err != nil {
		return nil, engineError(err)
	}
	metrics.Market().AddSettlementVolume(escrowed)
	metrics.Market().SubEscrowedBid(escrowed)
	return okResult, nil
}

type withdrawParams struct {
	Caller string `json:"caller"`
}

type withdrawResult struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

func (s *Server) handleWithdraw(req *RPCRequest) (interface{}, *dispatchError) {
	var params withdrawParams
	if errParams := parseParams(req, &params); errParams != nil {
		return nil, errParams
	}
	caller, errParams := parseAddress("caller", params.Caller)
	if errParams != nil {
		return nil, errParams
	}
	amount, err := s.engine.Withdraw(caller)
	if err != nil {
		return nil, engineError(err)
	}
	metrics.Market().AddWithdrawalVolume(amount)
	return withdrawResult{Account: addressString(caller), Amount: amountString(amount)}, nil
}

// activeBidAmount reads the currently escrowed amount for metrics deltas;
// zero when no active bid exists.
func (s *Server) activeBidAmount(collection [20]byte, assetID uint64) *big.Int {
	bid, ok, err := s.engine.GetBid(collection, assetID)
	if err != nil || !ok || !bid.Active {
		return big.NewInt(0)
	}
	return bid.Amount
}

func (s *Server) buyerBidAmount(collection [20]byte, assetID uint64, buyer [20]byte) *big.Int {
	bid, ok, err := s.engine.GetBid(collection, assetID)
	if err != nil || !ok || !bid.Active || bid.Bidder != buyer {
		return big.NewInt(0)
	}
	return bid.Amount
}

type assetQueryParams struct {
	Collection string `json:"collection"`
	AssetID    uint64 `json:"assetId"`
}

type offerResult struct {
	Active       bool   `json:"active"`
	AssetID      uint64 `json:"assetId"`
	Seller       string `json:"seller"`
	MinPrice     string `json:"minPrice"`
	RestrictedTo string `json:"restrictedTo,omitempty"`
}

func (s *Server) handleGetOffer(req *RPCRequest) (interface{}, *dispatchError) {
	var params assetQueryParams
	if errParams := parseParams(req, &params); errParams != nil {
		return nil, errParams
	}
	collection, errParams := parseAddress("collection", params.Collection)
	if errParams != nil {
		return nil, errParams
	}
	offer, ok, err := s.engine.GetOffer(collection, params.AssetID)
	if err != nil {
		return nil, engineError(err)
	}
	if !ok {
		return nil, nil
	}
	result := offerResult{
		Active:   offer.Active,
		AssetID:  offer.AssetID,
		Seller:   addressString(offer.Seller),
		MinPrice: amountString(offer.MinPrice),
	}
	if offer.RestrictedTo != ([20]byte{}) {
		result.RestrictedTo = addressString(offer.RestrictedTo)
	}
	return result, nil
}

type bidResult struct {
	Active  bool   `json:"active"`
	AssetID uint64 `json:"assetId"`
	Bidder  string `json:"bidder"`
	Amount  string `json:"amount"`
}

func (s *Server) handleGetBid(req *RPCRequest) (interface{}, *dispatchError) {
	var params assetQueryParams
	if errParams := parseParams(req, &params); errParams != nil {
		return nil, errParams
	}
	collection, errParams := parseAddress("collection", params.Collection)
	if errParams != nil {
		return nil, errParams
	}
	bid, ok, err := s.engine.GetBid(collection, params.AssetID)
	if err != nil {
		return nil, engineError(err)
	}
	if !ok {
		return nil, nil
	}
	return bidResult{
		Active:  bid.Active,
		AssetID: bid.AssetID,
		Bidder:  addressString(bid.Bidder),
		Amount:  amountString(bid.Amount),
	}, nil
}

type collectionQueryParams struct {
	Collection string `json:"collection"`
}

type collectionResult struct {
	Enabled        bool   `json:"enabled"`
	AssetKind      string `json:"assetKind"`
	RoyaltyPercent uint8  `json:"royaltyPercent"`
	MetadataURI    string `json:"metadataURI"`
}

func (s *Server) handleGetCollection(req *RPCRequest) (interface{}, *dispatchError) {
	var params collectionQueryParams
	if errParams := parseParams(req, &params); errParams != nil {
		return nil, errParams
	}
	collection, errParams := parseAddress("collection", params.Collection)
	if errParams != nil {
		return nil, errParams
	}
	cfg, ok, err := s.engine.GetCollection(collection)
	if err != nil {
		return nil, engineError(err)
	}
	if !ok {
		return nil, nil
	}
	return collectionResult{
		Enabled:        cfg.Enabled,
		AssetKind:      cfg.Kind.String(),
		RoyaltyPercent: cfg.RoyaltyPercent,
		MetadataURI:    cfg.MetadataURI,
	}, nil
}

type balanceQueryParams struct {
	Address string `json:"address"`
}

type balanceResult struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

func (s *Server) handleGetPendingBalance(req *RPCRequest) (interface{}, *dispatchError) {
	var params balanceQueryParams
	if errParams := parseParams(req, &params); errParams != nil {
		return nil, errParams
	}
	addr, errParams := parseAddress("address", params.Address)
	if errParams != nil {
		return nil, errParams
	}
	balance, err := s.engine.PendingBalance(addr)
	if err != nil {
		return nil, engineError(err)
	}
	return balanceResult{Address: addressString(addr), Amount: amountString(balance)}, nil
}

type listEventsParams struct {
	Prefix string `json:"prefix,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

func (s *Server) handleListEvents(req *RPCRequest) (interface{}, *dispatchError) {
	params := listEventsParams{}
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params[0], &params); err != nil {
			return nil, invalidParams(fmt.Sprintf("invalid params: %v", err))
		}
	}
	events, err := s.store.ListEvents(params.Prefix, params.Limit)
	if err != nil {
		return nil, engineError(err)
	}
	if events == nil {
		events = []*types.Event{}
	}
	return events, nil
}
