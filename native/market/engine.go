package market

import (
	"errors"
	"fmt"
	"math/big"

	"marketd/core/events"
	"marketd/native/common"
)

const moduleName = "market"

var (
	errNilState    = errors.New("market engine: state not configured")
	errNilRegistry = errors.New("market engine: token registry not configured")
	errNilTreasury = errors.New("market engine: treasury not configured")
)

// TokenCollection is the external ownership/approval/transfer capability of
// one token collection. The ledger never takes custody of assets; it only
// observes facts from this collaborator and, at the instant of settlement,
// directs a transfer. The collaborator enforces its own preconditions on
// TransferFrom.
type TokenCollection interface {
	OwnerOf(assetID uint64) ([20]byte, error)
	BalanceOf(holder [20]byte, assetID uint64) (*big.Int, error)
	IsApprovedForAll(holder, operator [20]byte) (bool, error)
	GetApproved(assetID uint64) ([20]byte, error)
	TransferFrom(from, to [20]byte, assetID uint64, quantity uint64) error
	Administrator() ([20]byte, error)
}

// TokenRegistry resolves a collection address to its collaborator.
type TokenRegistry interface {
	Collection(addr [20]byte) (TokenCollection, error)
}

// Treasury performs the external value transfer for direct payouts. Only
// Withdraw and WithdrawBid reach it; every other settlement path rests in
// the pending-balance ledger so a misbehaving recipient cannot block someone
// else's transaction.
type Treasury interface {
	Payout(to [20]byte, amount *big.Int) error
}

// State is the keyed storage backing the ledger. Records are never deleted;
// cleared offers and bids are written back inactive for audit.
type State interface {
	CollectionPut(addr [20]byte, cfg *Collection) error
	CollectionGet(addr [20]byte) (*Collection, bool, error)
	OfferPut(collection [20]byte, offer *Offer) error
	OfferGet(collection [20]byte, assetID uint64) (*Offer, bool, error)
	BidPut(collection [20]byte, bid *Bid) error
	BidGet(collection [20]byte, assetID uint64) (*Bid, bool, error)
	PendingBalanceGet(addr [20]byte) (*big.Int, error)
	PendingBalancePut(addr [20]byte, amount *big.Int) error
}

// Engine wires the marketplace settlement logic with external state, the
// token collaborators and the event emitter. Every mutating entry point is
// wrapped by a single ledger-wide non-reentrant guard and either completes
// fully or leaves state untouched.
type Engine struct {
	state    State
	registry TokenRegistry
	treasury Treasury
	emitter  events.Emitter
	pauses   common.PauseView
	guard    common.ReentrancyGuard
	operator [20]byte
}

// NewEngine creates a marketplace engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state State) { e.state = state }

// SetRegistry configures the token-collection resolver.
func (e *Engine) SetRegistry(registry TokenRegistry) { e.registry = registry }

// SetTreasury configures the payout capability used by Withdraw and
// WithdrawBid.
func (e *Engine) SetTreasury(treasury Treasury) { e.treasury = treasury }

// SetPauses configures the module pause view consulted on every mutating
// entry point.
func (e *Engine) SetPauses(pauses common.PauseView) { e.pauses = pauses }

// SetOperator configures the marketplace's own address, the party sellers
// must have granted transfer approval to.
func (e *Engine) SetOperator(addr [20]byte) { e.operator = addr }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

// begin claims the ledger-wide guard and checks the pause switch. The
// returned release function must be deferred by every mutating operation.
func (e *Engine) begin() (func(), error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := e.guard.Enter(); err != nil {
		return nil, err
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		e.guard.Exit()
		return nil, err
	}
	return e.guard.Exit, nil
}

func (e *Engine) collection(addr [20]byte) (TokenCollection, error) {
	if e.registry == nil {
		return nil, errNilRegistry
	}
	return e.registry.Collection(addr)
}

// enabledCollection loads the marketplace configuration and collaborator for
// a collection, rejecting disabled or unconfigured collections.
func (e *Engine) enabledCollection(addr [20]byte) (*Collection, TokenCollection, error) {
	cfg, ok, err := e.state.CollectionGet(addr)
	if err != nil {
		return nil, nil, err
	}
	if !ok || !cfg.Enabled {
		return nil, nil, ErrCollectionDisabled
	}
	token, err := e.collection(addr)
	if err != nil {
		return nil, nil, err
	}
	return cfg, token, nil
}

// holds reports whether holder satisfies the ownership condition for the
// collection's asset kind: sole owner for single-owner assets, positive
// balance for multi-owner assets.
func holds(token TokenCollection, kind AssetKind, holder [20]byte, assetID uint64) (bool, error) {
	switch kind {
	case AssetSingleOwner:
		owner, err := token.OwnerOf(assetID)
		if err != nil {
			return false, err
		}
		return owner == holder, nil
	case AssetMultiOwner:
		balance, err := token.BalanceOf(holder, assetID)
		if err != nil {
			return false, err
		}
		return balance != nil && balance.Sign() > 0, nil
	default:
		return false, fmt.Errorf("market: invalid asset kind %d", kind)
	}
}

// approved reports whether the marketplace holds a standing transfer
// approval from holder over this asset. Single-owner collections also honour
// a per-asset approval.
func (e *Engine) approved(token TokenCollection, kind AssetKind, holder [20]byte, assetID uint64) (bool, error) {
	ok, err := token.IsApprovedForAll(holder, e.operator)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	if kind == AssetSingleOwner {
		operator, err := token.GetApproved(assetID)
		if err != nil {
			return false, err
		}
		return operator == e.operator, nil
	}
	return false, nil
}

func (e *Engine) creditPending(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	balance, err := e.state.PendingBalanceGet(addr)
	if err != nil {
		return err
	}
	if balance == nil {
		balance = big.NewInt(0)
	}
	return e.state.PendingBalancePut(addr, new(big.Int).Add(balance, amount))
}

// SetCollectionConfig creates or fully replaces the marketplace
// configuration for a collection. Only the administrator reported by the
// collection itself may call it.
func (e *Engine) SetCollectionConfig(caller, collection [20]byte, kind AssetKind, royaltyPercent uint8, metadataURI string) error {
	release, err := e.begin()
	if err != nil {
		return err
	}
	defer release()
	token, err := e.collection(collection)
	if err != nil {
		return err
	}
	admin, err := token.Administrator()
	if err != nil {
		return err
	}
	if caller != admin {
		return ErrUnauthorized
	}
	if !kind.Valid() {
		return fmt.Errorf("market: invalid asset kind %d", kind)
	}
	if royaltyPercent > 100 {
		return ErrInvalidRoyalty
	}
	cfg := &Collection{Enabled: true, Kind: kind, RoyaltyPercent: royaltyPercent, MetadataURI: metadataURI}
	if err := e.state.CollectionPut(collection, cfg); err != nil {
		return err
	}
	e.emit(events.CollectionConfigured{
		Collection:     collection,
		Administrator:  admin,
		AssetKind:      kind.String(),
		RoyaltyPercent: royaltyPercent,
		MetadataURI:    metadataURI,
	})
	return nil
}

// DisableCollection takes a collection off the marketplace. Offers and bids
// stay in storage but become unreachable by mutating operations until the
// collection is configured again.
func (e *Engine) DisableCollection(caller, collection [20]byte) error {
	release, err := e.begin()
	if err != nil {
		return err
	}
	defer release()
	token, err := e.collection(collection)
	if err != nil {
		return err
	}
	admin, err := token.Administrator()
	if err != nil {
		return err
	}
	if caller != admin {
		return ErrUnauthorized
	}
	cfg, ok, err := e.state.CollectionGet(collection)
	if err != nil {
		return err
	}
	if !ok || !cfg.Enabled {
		return ErrNotEnabled
	}
	cfg.Enabled = false
	cfg.RoyaltyPercent = 0
	cfg.MetadataURI = ""
	if err := e.state.CollectionPut(collection, cfg); err != nil {
		return err
	}
	e.emit(events.CollectionDisabled{Collection: collection, Administrator: admin})
	return nil
}

// ListForSale writes an active offer for the asset, overwriting any prior
// offer unconditionally. A zero restrictedTo address means open to any
// buyer.
func (e *Engine) ListForSale(caller, collection [20]byte, assetID uint64, minPrice *big.Int, restrictedTo [20]byte) error {
	release, err := e.begin()
	if err != nil {
		return err
	}
	defer release()
	cfg, token, err := e.enabledCollection(collection)
	if err != nil {
		return err
	}
	ok, err := holds(token, cfg.Kind, caller, assetID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotOwner
	}
	ok, err = e.approved(token, cfg.Kind, caller, assetID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotApproved
	}
	price := cloneBigInt(minPrice)
	if price.Sign() < 0 {
		return fmt.Errorf("market: offer price must be non-negative")
	}
	offer := &Offer{Active: true, AssetID: assetID, Seller: caller, MinPrice: price, RestrictedTo: restrictedTo}
	if err := e.state.OfferPut(collection, offer); err != nil {
		return err
	}
	e.emit(events.Listed{Collection: collection, AssetID: assetID, Seller: caller, MinPrice: price, RestrictedTo: restrictedTo})
	return nil
}

// Delist clears the asset's offer. The seller is preserved for audit and
// the price zeroed. Delisting an already-inactive offer succeeds silently.
func (e *Engine) Delist(caller, collection [20]byte, assetID uint64) error {
	release, err := e.begin()
	if err != nil {
		return err
	}
	defer release()
	cfg, token, err := e.enabledCollection(collection)
	if err != nil {
		return err
	}
	ok, err := holds(token, cfg.Kind, caller, assetID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotOwner
	}
	ok, err = e.approved(token, cfg.Kind, caller, assetID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotApproved
	}
	offer := &Offer{Active: false, AssetID: assetID, Seller: caller, MinPrice: big.NewInt(0)}
	if err := e.state.OfferPut(collection, offer); err != nil {
		return err
	}
	e.emit(events.Delisted{Collection: collection, AssetID: assetID, Seller: caller})
	return nil
}

// PlaceBid records a new active bid backed by the attached value. The value
// must strictly exceed the current active bid (floor zero); the superseded
// bid's amount is credited to the superseded bidder's pending balance in the
// same transition so no escrowed value is ever dropped.
func (e *Engine) PlaceBid(caller, collection [20]byte, assetID uint64, value *big.Int) error {
	release, err := e.begin()
	if err != nil {
		return err
	}
	defer release()
	cfg, token, err := e.enabledCollection(collection)
	if err != nil {
		return err
	}
	owns, err := holds(token, cfg.Kind, caller, assetID)
	if err != nil {
		return err
	}
	if owns {
		return ErrSelfBidForbidden
	}
	amount := cloneBigInt(value)
	if amount.Sign() <= 0 {
		return ErrBidTooLow
	}
	prev, ok, err := e.state.BidGet(collection, assetID)
	if err != nil {
		return err
	}
	var prevBidder [20]byte
	prevAmount := big.NewInt(0)
	if ok && prev.Active {
		prevBidder = prev.Bidder
		prevAmount = cloneBigInt(prev.Amount)
		if amount.Cmp(prevAmount) <= 0 {
			return ErrBidTooLow
		}
		if err := e.creditPending(prev.Bidder, prevAmount); err != nil {
			return err
		}
	}
	bid := &Bid{Active: true, AssetID: assetID, Bidder: caller, Amount: amount}
	if err := e.state.BidPut(collection, bid); err != nil {
		return err
	}
	e.emit(events.BidEntered{
		Collection:     collection,
		AssetID:        assetID,
		Bidder:         caller,
		Amount:         amount,
		PreviousBidder: prevBidder,
		PreviousAmount: prevAmount,
	})
	return nil
}

// WithdrawBid clears the caller's active bid and pays the escrowed amount
// straight back through the treasury. Direct payout here is a long-standing
// asymmetry with the pull-payment ledger; the refund is restored if the
// external transfer fails so the ledger never disagrees with fund custody.
func (e *Engine) WithdrawBid(caller, collection [20]byte, assetID uint64) error {
	release, err := e.begin()
	if err != nil {
		return err
	}
	defer release()
	if e.treasury == nil {
		return errNilTreasury
	}
	cfg, token, err := e.enabledCollection(collection)
	if err != nil {
		return err
	}
	owns, err := holds(token, cfg.Kind, caller, assetID)
	if err != nil {
		return err
	}
	if owns {
		return ErrSelfBidForbidden
	}
	bid, ok, err := e.state.BidGet(collection, assetID)
	if err != nil {
		return err
	}
	if !ok || !bid.Active || bid.Bidder != caller {
		return ErrNotBidder
	}
	amount := cloneBigInt(bid.Amount)
	cleared := &Bid{Active: false, AssetID: assetID, Bidder: caller, Amount: big.NewInt(0)}
	if err := e.state.BidPut(collection, cleared); err != nil {
		return err
	}
	if err := e.treasury.Payout(caller, amount); err != nil {
		if restoreErr := e.state.BidPut(collection, bid); restoreErr != nil {
			return fmt.Errorf("market: bid refund failed (%v) and bid restore failed: %w", err, restoreErr)
		}
		return fmt.Errorf("market: bid refund failed: %w", err)
	}
	e.emit(events.BidWithdrawn{Collection: collection, AssetID: assetID, Bidder: caller, Amount: amount})
	return nil
}

// AcceptOffer settles an active offer in favour of the caller. All checks
// run before the irreversible external transfer; the attached value is then
// split between seller and administrator on the pending-balance ledger, and
// a stale bid by the buyer is refunded so the buyer is never charged twice.
func (e *Engine) AcceptOffer(caller, collection [20]byte, assetID uint64, value *big.Int) error {
	release, err := e.begin()
	if err != nil {
		return err
	}
	defer release()
	cfg, token, err := e.enabledCollection(collection)
	if err != nil {
		return err
	}
	offer, ok, err := e.state.OfferGet(collection, assetID)
	if err != nil {
		return err
	}
	if !ok || !offer.Active {
		return ErrOfferInactive
	}
	if !offer.Open() && offer.RestrictedTo != caller {
		return ErrBuyerRestricted
	}
	amount := cloneBigInt(value)
	if amount.Cmp(offer.MinPrice) < 0 {
		return ErrInsufficientFunds
	}
	seller := offer.Seller
	// Ownership and approval can change between listing and acceptance;
	// re-verify both before directing the transfer.
	ok, err = holds(token, cfg.Kind, seller, assetID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSellerNoLongerOwner
	}
	ok, err = e.approved(token, cfg.Kind, seller, assetID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrApprovalRevoked
	}
	admin, err := token.Administrator()
	if err != nil {
		return err
	}
	if err := token.TransferFrom(seller, caller, assetID, 1); err != nil {
		return fmt.Errorf("market: asset transfer failed: %w", err)
	}
	cleared := &Offer{Active: false, AssetID: assetID, Seller: caller, MinPrice: big.NewInt(0)}
	if err := e.state.OfferPut(collection, cleared); err != nil {
		return err
	}
	sellerShare, royaltyShare := splitProceeds(amount, cfg.RoyaltyPercent)
	if err := e.creditPending(seller, sellerShare); err != nil {
		return err
	}
	if err := e.creditPending(admin, royaltyShare); err != nil {
		return err
	}
	bid, ok, err := e.state.BidGet(collection, assetID)
	if err != nil {
		return err
	}
	if ok && bid.Active && bid.Bidder == caller {
		refund := cloneBigInt(bid.Amount)
		clearedBid := &Bid{Active: false, AssetID: assetID, Bidder: caller, Amount: big.NewInt(0)}
		if err := e.state.BidPut(collection, clearedBid); err != nil {
			return err
		}
		if err := e.creditPending(caller, refund); err != nil {
			return err
		}
	}
	e.emit(events.Transferred{Collection: collection, AssetID: assetID, From: seller, To: caller})
	e.emit(events.Delisted{Collection: collection, AssetID: assetID, Seller: seller})
	e.emit(events.Bought{
		Collection:   collection,
		AssetID:      assetID,
		Seller:       seller,
		Buyer:        caller,
		Amount:       amount,
		SellerShare:  sellerShare,
		RoyaltyShare: royaltyShare,
	})
	return nil
}

// AcceptBid settles the asset's active bid in favour of the bidder. The
// minimum-acceptable-price parameter guards the seller against accepting a
// bid below what they observed off-ledger.
func (e *Engine) AcceptBid(caller, collection [20]byte, assetID uint64, minAcceptablePrice *big.Int) error {
	release, err := e.begin()
	if err != nil {
		return err
	}
	defer release()
	cfg, token, err := e.enabledCollection(collection)
	if err != nil {
		return err
	}
	ok, err := holds(token, cfg.Kind, caller, assetID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotOwner
	}
	bid, found, err := e.state.BidGet(collection, assetID)
	if err != nil {
		return err
	}
	if !found || !bid.Active || bid.Amount == nil || bid.Amount.Sign() <= 0 {
		return ErrBidInactive
	}
	floor := cloneBigInt(minAcceptablePrice)
	if bid.Amount.Cmp(floor) < 0 {
		return ErrPriceTooLow
	}
	ok, err = e.approved(token, cfg.Kind, caller, assetID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrApprovalRevoked
	}
	admin, err := token.Administrator()
	if err != nil {
		return err
	}
	bidder := bid.Bidder
	amount := cloneBigInt(bid.Amount)
	if err := token.TransferFrom(caller, bidder, assetID, 1); err != nil {
		return fmt.Errorf("market: asset transfer failed: %w", err)
	}
	clearedOffer := &Offer{Active: false, AssetID: assetID, Seller: bidder, MinPrice: big.NewInt(0)}
	if err := e.state.OfferPut(collection, clearedOffer); err != nil {
		return err
	}
	clearedBid := &Bid{Active: false, AssetID: assetID, Bidder: bidder, Amount: big.NewInt(0)}
	if err := e.state.BidPut(collection, clearedBid); err != nil {
		return err
	}
	sellerShare, royaltyShare := splitProceeds(amount, cfg.RoyaltyPercent)
	if err := e.creditPending(caller, sellerShare); err != nil {
		return err
	}
	if err := e.creditPending(admin, royaltyShare); err != nil {
		return err
	}
	e.emit(events.Transferred{Collection: collection, AssetID: assetID, From: caller, To: bidder})
	e.emit(events.Delisted{Collection: collection, AssetID: assetID, Seller: caller})
	e.emit(events.Bought{
		Collection:   collection,
		AssetID:      assetID,
		Seller:       caller,
		Buyer:        bidder,
		Amount:       amount,
		SellerShare:  sellerShare,
		RoyaltyShare: royaltyShare,
	})
	return nil
}

// Withdraw pays out the caller's accrued pending balance. The entry is
// zeroed before the external transfer; that ordering is the sole defence
// against recursive re-entry through a malicious recipient, and the balance
// is restored if the transfer fails. A zero balance is a silent no-op.
func (e *Engine) Withdraw(caller [20]byte) (*big.Int, error) {
	release, err := e.begin()
	if err != nil {
		return nil, err
	}
	defer release()
	if e.treasury == nil {
		return nil, errNilTreasury
	}
	balance, err := e.state.PendingBalanceGet(caller)
	if err != nil {
		return nil, err
	}
	amount := cloneBigInt(balance)
	if amount.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if err := e.state.PendingBalancePut(caller, big.NewInt(0)); err != nil {
		return nil, err
	}
	if err := e.treasury.Payout(caller, amount); err != nil {
		if restoreErr := e.state.PendingBalancePut(caller, amount); restoreErr != nil {
			return nil, fmt.Errorf("market: withdrawal failed (%v) and balance restore failed: %w", err, restoreErr)
		}
		return nil, fmt.Errorf("market: withdrawal failed: %w", err)
	}
	e.emit(events.Withdrawn{Account: caller, Amount: amount})
	return amount, nil
}

// GetOffer returns the stored offer for the asset, if any.
func (e *Engine) GetOffer(collection [20]byte, assetID uint64) (*Offer, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	return e.state.OfferGet(collection, assetID)
}

// GetBid returns the stored bid for the asset, if any.
func (e *Engine) GetBid(collection [20]byte, assetID uint64) (*Bid, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	return e.state.BidGet(collection, assetID)
}

// GetCollection returns the marketplace configuration for a collection, if
// any.
func (e *Engine) GetCollection(collection [20]byte) (*Collection, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	return e.state.CollectionGet(collection)
}

// PendingBalance returns the withdrawable balance accrued for an address.
func (e *Engine) PendingBalance(addr [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	balance, err := e.state.PendingBalanceGet(addr)
	if err != nil {
		return nil, err
	}
	return cloneBigInt(balance), nil
}
