package token

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"marketd/native/market"
	"marketd/storage"
)

// Record is the stored definition of a registered collection.
type Record struct {
	Kind          market.AssetKind
	Administrator [20]byte
}

// Registry resolves collection addresses to their in-process ledgers and
// satisfies the marketplace engine's TokenRegistry contract.
type Registry struct {
	db       storage.Database
	operator [20]byte
}

// NewRegistry wraps a key-value database.
func NewRegistry(db storage.Database) *Registry {
	return &Registry{db: db}
}

// SetOperator configures the marketplace address ledgers accept transfer
// directions from.
func (r *Registry) SetOperator(addr [20]byte) { r.operator = addr }

func (r *Registry) record(addr [20]byte) (*Record, bool, error) {
	raw, err := r.db.Get(recordKey(addr))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	record := new(Record)
	if err := rlp.DecodeBytes(raw, record); err != nil {
		return nil, false, err
	}
	return record, true, nil
}

// Register declares a collection with its ownership model and administrator.
// Re-registering with an identical definition is a no-op; a conflicting
// definition is rejected.
func (r *Registry) Register(addr [20]byte, kind market.AssetKind, admin [20]byte) error {
	if !kind.Valid() {
		return fmt.Errorf("token: invalid asset kind %d", kind)
	}
	existing, ok, err := r.record(addr)
	if err != nil {
		return err
	}
	if ok {
		if existing.Kind != kind || existing.Administrator != admin {
			return fmt.Errorf("token: collection already registered with different definition")
		}
		return nil
	}
	encoded, err := rlp.EncodeToBytes(&Record{Kind: kind, Administrator: admin})
	if err != nil {
		return err
	}
	return r.db.Put(recordKey(addr), encoded)
}

// Ledger returns the concrete in-process ledger for a registered collection.
func (r *Registry) Ledger(addr [20]byte) (*Ledger, error) {
	record, ok, err := r.record(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownCollection
	}
	return &Ledger{
		db:       r.db,
		addr:     addr,
		kind:     record.Kind,
		admin:    record.Administrator,
		operator: r.operator,
	}, nil
}

// Collection implements market.TokenRegistry.
func (r *Registry) Collection(addr [20]byte) (market.TokenCollection, error) {
	return r.Ledger(addr)
}
