package token

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"marketd/native/market"
	"marketd/storage"
)

var (
	ErrUnknownCollection = errors.New("token: unknown collection")
	ErrUnauthorizedMint  = errors.New("token: only the administrator may mint")
	ErrAssetExists       = errors.New("token: asset already minted")
	ErrNotApproved       = errors.New("token: transfer not approved")
	ErrInsufficient      = errors.New("token: insufficient holdings")
)

// Ledger is an in-process token collection satisfying the marketplace's
// collaborator contract. It keeps ownership, balances and approvals in the
// shared key-value database; a production deployment would swap it for a
// client of the real token contract.
type Ledger struct {
	db       storage.Database
	addr     [20]byte
	kind     market.AssetKind
	admin    [20]byte
	operator [20]byte
}

func (l *Ledger) put(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return l.db.Put(key, encoded)
}

func (l *Ledger) get(key []byte, out interface{}) (bool, error) {
	raw, err := l.db.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

// Kind returns the collection's ownership model.
func (l *Ledger) Kind() market.AssetKind { return l.kind }

// Administrator reports the collection's administrator.
func (l *Ledger) Administrator() ([20]byte, error) { return l.admin, nil }

// OwnerOf returns the current owner of a single-owner asset. An unminted
// asset reports the zero address rather than an error so ownership checks
// simply come back negative.
func (l *Ledger) OwnerOf(assetID uint64) ([20]byte, error) {
	var owner [20]byte
	if _, err := l.get(ownerKey(l.addr, assetID), &owner); err != nil {
		return [20]byte{}, err
	}
	return owner, nil
}

// BalanceOf returns the holder's quantity of a multi-owner asset.
func (l *Ledger) BalanceOf(holder [20]byte, assetID uint64) (*big.Int, error) {
	balance := new(big.Int)
	ok, err := l.get(balanceKey(l.addr, assetID, holder), balance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return balance, nil
}

// IsApprovedForAll reports whether holder granted operator a standing
// transfer approval.
func (l *Ledger) IsApprovedForAll(holder, operator [20]byte) (bool, error) {
	var approved bool
	if _, err := l.get(approvalKey(l.addr, holder, operator), &approved); err != nil {
		return false, err
	}
	return approved, nil
}

// GetApproved returns the per-asset approved operator of a single-owner
// asset, zero when none is set.
func (l *Ledger) GetApproved(assetID uint64) ([20]byte, error) {
	var operator [20]byte
	if _, err := l.get(approvedKey(l.addr, assetID), &operator); err != nil {
		return [20]byte{}, err
	}
	return operator, nil
}

// Mint creates holdings. Single-owner assets can be minted once; multi-owner
// assets accrue quantity on the recipient. Only the administrator may mint.
func (l *Ledger) Mint(caller, to [20]byte, assetID uint64, quantity uint64) error {
	if caller != l.admin {
		return ErrUnauthorizedMint
	}
	switch l.kind {
	case market.AssetSingleOwner:
		owner, err := l.OwnerOf(assetID)
		if err != nil {
			return err
		}
		if owner != ([20]byte{}) {
			return ErrAssetExists
		}
		return l.put(ownerKey(l.addr, assetID), to)
	case market.AssetMultiOwner:
		if quantity == 0 {
			return fmt.Errorf("token: mint quantity must be positive")
		}
		balance, err := l.BalanceOf(to, assetID)
		if err != nil {
			return err
		}
		next := new(big.Int).Add(balance, new(big.Int).SetUint64(quantity))
		return l.put(balanceKey(l.addr, assetID, to), next)
	default:
		return fmt.Errorf("token: invalid asset kind %d", l.kind)
	}
}

// SetApprovalForAll grants or revokes a standing transfer approval from
// holder to operator.
func (l *Ledger) SetApprovalForAll(holder, operator [20]byte, approved bool) error {
	return l.put(approvalKey(l.addr, holder, operator), approved)
}

// Approve sets the per-asset approved operator of a single-owner asset. The
// caller must own the asset.
func (l *Ledger) Approve(caller [20]byte, assetID uint64, operator [20]byte) error {
	if l.kind != market.AssetSingleOwner {
		return fmt.Errorf("token: per-asset approval requires a single-owner collection")
	}
	owner, err := l.OwnerOf(assetID)
	if err != nil {
		return err
	}
	if owner != caller {
		return fmt.Errorf("token: caller does not own asset %d", assetID)
	}
	return l.put(approvedKey(l.addr, assetID), operator)
}

// TransferFrom moves the asset between holders on behalf of the configured
// marketplace operator. The ledger enforces its own preconditions: the
// sender must hold the asset and must have approved the operator.
func (l *Ledger) TransferFrom(from, to [20]byte, assetID uint64, quantity uint64) error {
	approved, err := l.transferApproved(from, assetID)
	if err != nil {
		return err
	}
	if !approved {
		return ErrNotApproved
	}
	switch l.kind {
	case market.AssetSingleOwner:
		owner, err := l.OwnerOf(assetID)
		if err != nil {
			return err
		}
		if owner != from {
			return ErrInsufficient
		}
		if err := l.put(ownerKey(l.addr, assetID), to); err != nil {
			return err
		}
		// A sale invalidates any per-asset approval granted by the
		// previous owner.
		return l.put(approvedKey(l.addr, assetID), [20]byte{})
	case market.AssetMultiOwner:
		if quantity == 0 {
			quantity = 1
		}
		amount := new(big.Int).SetUint64(quantity)
		fromBalance, err := l.BalanceOf(from, assetID)
		if err != nil {
			return err
		}
		if fromBalance.Cmp(amount) < 0 {
			return ErrInsufficient
		}
		toBalance, err := l.BalanceOf(to, assetID)
		if err != nil {
			return err
		}
		if err := l.put(balanceKey(l.addr, assetID, from), new(big.Int).Sub(fromBalance, amount)); err != nil {
			return err
		}
		return l.put(balanceKey(l.addr, assetID, to), new(big.Int).Add(toBalance, amount))
	default:
		return fmt.Errorf("token: invalid asset kind %d", l.kind)
	}
}

func (l *Ledger) transferApproved(from [20]byte, assetID uint64) (bool, error) {
	if from == l.operator {
		return true, nil
	}
	ok, err := l.IsApprovedForAll(from, l.operator)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	if l.kind == market.AssetSingleOwner {
		operator, err := l.GetApproved(assetID)
		if err != nil {
			return false, err
		}
		return operator == l.operator, nil
	}
	return false, nil
}
