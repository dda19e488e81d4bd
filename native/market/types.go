package market

import (
	"fmt"
	"math/big"
)

// AssetKind selects the ownership model a collection follows: either every
// asset id has exactly one owner, or each holder carries a quantity balance
// per asset id. The kind is fixed per collection and dispatched once, not
// per call.
type AssetKind uint8

const (
	AssetSingleOwner AssetKind = iota
	AssetMultiOwner
)

// Valid reports whether the kind is within the supported range.
func (k AssetKind) Valid() bool {
	switch k {
	case AssetSingleOwner, AssetMultiOwner:
		return true
	default:
		return false
	}
}

// String returns the canonical name used in events and RPC payloads.
func (k AssetKind) String() string {
	switch k {
	case AssetSingleOwner:
		return "single"
	case AssetMultiOwner:
		return "multi"
	default:
		return fmt.Sprintf("assetkind(%d)", uint8(k))
	}
}

// ParseAssetKind resolves the canonical kind name.
func ParseAssetKind(s string) (AssetKind, error) {
	switch s {
	case "single":
		return AssetSingleOwner, nil
	case "multi":
		return AssetMultiOwner, nil
	default:
		return 0, fmt.Errorf("market: unknown asset kind %q", s)
	}
}

// Offer is a seller's standing willingness to sell one asset at or above a
// minimum price. At most one offer exists per (collection, asset id); only
// an Active offer is meaningful, the remaining fields of an inactive record
// are audit residue and must not be trusted by readers. When a sale clears
// the offer, Seller records the buyer.
type Offer struct {
	Active       bool
	AssetID      uint64
	Seller       [20]byte
	MinPrice     *big.Int
	RestrictedTo [20]byte
}

// Open reports whether the offer accepts any buyer.
func (o *Offer) Open() bool {
	return o != nil && o.RestrictedTo == ([20]byte{})
}

// Clone returns a deep copy so callers can mutate freely.
func (o *Offer) Clone() *Offer {
	if o == nil {
		return nil
	}
	clone := *o
	if o.MinPrice != nil {
		clone.MinPrice = new(big.Int).Set(o.MinPrice)
	} else {
		clone.MinPrice = big.NewInt(0)
	}
	return &clone
}

// Bid is a prospective buyer's standing, fully escrowed commitment of funds
// for one asset. At most one bid is active per (collection, asset id); a
// replacement must strictly exceed it and refunds the superseded bidder via
// the pending-balance ledger.
type Bid struct {
	Active  bool
	AssetID uint64
	Bidder  [20]byte
	Amount  *big.Int
}

// Clone returns a deep copy so callers can mutate freely.
func (b *Bid) Clone() *Bid {
	if b == nil {
		return nil
	}
	clone := *b
	if b.Amount != nil {
		clone.Amount = new(big.Int).Set(b.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}

// Collection is the per-collection marketplace configuration. Disabling a
// collection zeroes royalty and metadata but leaves offers and bids in
// storage; they become inert because every mutating operation requires
// Enabled.
type Collection struct {
	Enabled        bool
	Kind           AssetKind
	RoyaltyPercent uint8
	MetadataURI    string
}

// Clone returns a copy of the configuration record.
func (c *Collection) Clone() *Collection {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// SanitizeOffer validates and normalises an offer record without mutating
// the original.
func SanitizeOffer(o *Offer) (*Offer, error) {
	if o == nil {
		return nil, fmt.Errorf("market: nil offer")
	}
	clone := o.Clone()
	if clone.MinPrice.Sign() < 0 {
		return nil, fmt.Errorf("market: offer price must be non-negative")
	}
	return clone, nil
}

// SanitizeBid validates and normalises a bid record without mutating the
// original.
func SanitizeBid(b *Bid) (*Bid, error) {
	if b == nil {
		return nil, fmt.Errorf("market: nil bid")
	}
	clone := b.Clone()
	if clone.Amount.Sign() < 0 {
		return nil, fmt.Errorf("market: bid amount must be non-negative")
	}
	if clone.Active && clone.Amount.Sign() == 0 {
		return nil, fmt.Errorf("market: active bid requires positive amount")
	}
	return clone, nil
}

// SanitizeCollection validates and normalises a collection record without
// mutating the original.
func SanitizeCollection(c *Collection) (*Collection, error) {
	if c == nil {
		return nil, fmt.Errorf("market: nil collection")
	}
	clone := c.Clone()
	if !clone.Kind.Valid() {
		return nil, fmt.Errorf("market: invalid asset kind %d", clone.Kind)
	}
	if clone.RoyaltyPercent > 100 {
		return nil, fmt.Errorf("market: royalty percent out of range: %d", clone.RoyaltyPercent)
	}
	return clone, nil
}
