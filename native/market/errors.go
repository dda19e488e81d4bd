package market

import "errors"

// Failure taxonomy surfaced verbatim to callers. Every rejection is atomic:
// an operation that returns one of these left the ledger exactly as it was.
var (
	ErrUnauthorized        = errors.New("market: unauthorized")
	ErrInvalidRoyalty      = errors.New("market: invalid royalty")
	ErrNotEnabled          = errors.New("market: collection not enabled")
	ErrCollectionDisabled  = errors.New("market: collection disabled")
	ErrNotOwner            = errors.New("market: caller does not own asset")
	ErrNotApproved         = errors.New("market: marketplace not approved")
	ErrSelfBidForbidden    = errors.New("market: owner may not bid on own asset")
	ErrBidTooLow           = errors.New("market: bid too low")
	ErrNotBidder           = errors.New("market: caller is not the active bidder")
	ErrOfferInactive       = errors.New("market: offer inactive")
	ErrBuyerRestricted     = errors.New("market: offer restricted to another buyer")
	ErrInsufficientFunds   = errors.New("market: insufficient funds")
	ErrSellerNoLongerOwner = errors.New("market: seller no longer owns asset")
	ErrApprovalRevoked     = errors.New("market: transfer approval revoked")
	ErrBidInactive         = errors.New("market: bid inactive")
	ErrPriceTooLow         = errors.New("market: bid below minimum acceptable price")
)
