package events

import (
	"math/big"
	"strconv"

	"marketd/core/types"
	"marketd/crypto"
)

const (
	TypeCollectionConfigured = "market.collection.configured"
	TypeCollectionDisabled   = "market.collection.disabled"
	TypeListed               = "market.listed"
	TypeDelisted             = "market.delisted"
	TypeBidEntered           = "market.bid.entered"
	TypeBidWithdrawn         = "market.bid.withdrawn"
	TypeTransferred          = "market.transferred"
	TypeBought               = "market.bought"
	TypeWithdrawn            = "market.withdrawn"
)

func addressString(b [20]byte) string {
	return crypto.NewAddress(crypto.MarketPrefix, b[:]).String()
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func assetString(id uint64) string {
	return strconv.FormatUint(id, 10)
}

type CollectionConfigured struct {
	Collection     [20]byte
	Administrator  [20]byte
	AssetKind      string
	RoyaltyPercent uint8
	MetadataURI    string
}

func (CollectionConfigured) EventType() string { return TypeCollectionConfigured }

func (e CollectionConfigured) Event() *types.Event {
	return &types.Event{
		Type: TypeCollectionConfigured,
		Attributes: map[string]string{
			"collection":     addressString(e.Collection),
			"administrator":  addressString(e.Administrator),
			"assetKind":      e.AssetKind,
			"royaltyPercent": strconv.FormatUint(uint64(e.RoyaltyPercent), 10),
			"metadataURI":    e.MetadataURI,
		},
	}
}

type CollectionDisabled struct {
	Collection    [20]byte
	Administrator [20]byte
}

func (CollectionDisabled) EventType() string { return TypeCollectionDisabled }

func (e CollectionDisabled) Event() *types.Event {
	return &types.Event{
		Type: TypeCollectionDisabled,
		Attributes: map[string]string{
			"collection":    addressString(e.Collection),
			"administrator": addressString(e.Administrator),
		},
	}
}

type Listed struct {
	Collection   [20]byte
	AssetID      uint64
	Seller       [20]byte
	MinPrice     *big.Int
	RestrictedTo [20]byte
}

func (Listed) EventType() string { return TypeListed }

func (e Listed) Event() *types.Event {
	attrs := map[string]string{
		"collection": addressString(e.Collection),
		"assetId":    assetString(e.AssetID),
		"seller":     addressString(e.Seller),
		"minPrice":   amountString(e.MinPrice),
	}
	if e.RestrictedTo != ([20]byte{}) {
		attrs["restrictedTo"] = addressString(e.RestrictedTo)
	}
	return &types.Event{Type: TypeListed, Attributes: attrs}
}

type Delisted struct {
	Collection [20]byte
	AssetID    uint64
	Seller     [20]byte
}

func (Delisted) EventType() string { return TypeDelisted }

func (e Delisted) Event() *types.Event {
	return &types.Event{
		Type: TypeDelisted,
		Attributes: map[string]string{
			"collection": addressString(e.Collection),
			"assetId":    assetString(e.AssetID),
			"seller":     addressString(e.Seller),
		},
	}
}

type BidEntered struct {
	Collection     [20]byte
	AssetID        uint64
	Bidder         [20]byte
	Amount         *big.Int
	PreviousBidder [20]byte
	PreviousAmount *big.Int
}

func (BidEntered) EventType() string { return TypeBidEntered }

func (e BidEntered) Event() *types.Event {
	attrs := map[string]string{
		"collection": addressString(e.Collection),
		"assetId":    assetString(e.AssetID),
		"bidder":     addressString(e.Bidder),
		"amount":     amountString(e.Amount),
	}
	if e.PreviousBidder != ([20]byte{}) {
		attrs["previousBidder"] = addressString(e.PreviousBidder)
		attrs["previousAmount"] = amountString(e.PreviousAmount)
	}
	return &types.Event{Type: TypeBidEntered, Attributes: attrs}
}

type BidWithdrawn struct {
	Collection [20]byte
	AssetID    uint64
	Bidder     [20]byte
	Amount     *big.Int
}

func (BidWithdrawn) EventType() string { return TypeBidWithdrawn }

func (e BidWithdrawn) Event() *types.Event {
	return &types.Event{
		Type: TypeBidWithdrawn,
		Attributes: map[string]string{
			"collection": addressString(e.Collection),
			"assetId":    assetString(e.AssetID),
			"bidder":     addressString(e.Bidder),
			"amount":     amountString(e.Amount),
		},
	}
}

type Transferred struct {
	Collection [20]byte
	AssetID    uint64
	From       [20]byte
	To         [20]byte
}

func (Transferred) EventType() string { return TypeTransferred }

func (e Transferred) Event() *types.Event {
	return &types.Event{
		Type: TypeTransferred,
		Attributes: map[string]string{
			"collection": addressString(e.Collection),
			"assetId":    assetString(e.AssetID),
			"from":       addressString(e.From),
			"to":         addressString(e.To),
		},
	}
}

type Bought struct {
	Collection   [20]byte
	AssetID      uint64
	Seller       [20]byte
	Buyer        [20]byte
	Amount       *big.Int
	SellerShare  *big.Int
	RoyaltyShare *big.Int
}

func (Bought) EventType() string { return TypeBought }

func (e Bought) Event() *types.Event {
	return &types.Event{
		Type: TypeBought,
		Attributes: map[string]string{
			"collection":   addressString(e.Collection),
			"assetId":      assetString(e.AssetID),
			"seller":       addressString(e.Seller),
			"buyer":        addressString(e.Buyer),
			"amount":       amountString(e.Amount),
			"sellerShare":  amountString(e.SellerShare),
			"royaltyShare": amountString(e.RoyaltyShare),
		},
	}
}

type Withdrawn struct {
	Account [20]byte
	Amount  *big.Int
}

func (Withdrawn) EventType() string { return TypeWithdrawn }

func (e Withdrawn) Event() *types.Event {
	return &types.Event{
		Type: TypeWithdrawn,
		Attributes: map[string]string{
			"account": addressString(e.Account),
			"amount":  amountString(e.Amount),
		},
	}
}
