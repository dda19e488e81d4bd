package market

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"

	"marketd/core/events"
	"marketd/core/types"
	"marketd/storage"
)

// Store persists ledger records in a key-value database using RLP encoding.
// It implements the engine's State interface and, through Emit, a durable
// event journal an off-chain indexer can replay without reconstructing full
// state.
type Store struct {
	db storage.Database

	mu sync.Mutex // serialises journal sequence allocation
}

// NewStore wraps a key-value database.
func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

func (s *Store) put(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return s.db.Put(key, encoded)
}

func (s *Store) get(key []byte, out interface{}) (bool, error) {
	raw, err := s.db.Get(key)
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

// CollectionPut stores a sanitized collection configuration.
func (s *Store) CollectionPut(addr [20]byte, cfg *Collection) error {
	sanitized, err := SanitizeCollection(cfg)
	if err != nil {
		return err
	}
	return s.put(collectionKey(addr), sanitized)
}

// CollectionGet loads a collection configuration.
func (s *Store) CollectionGet(addr [20]byte) (*Collection, bool, error) {
	cfg := new(Collection)
	ok, err := s.get(collectionKey(addr), cfg)
	if err != nil || !ok {
		return nil, false, err
	}
	return cfg, true, nil
}

// OfferPut stores a sanitized offer record. Inactive records are stored as
// written; nothing is ever deleted.
func (s *Store) OfferPut(collection [20]byte, offer *Offer) error {
	sanitized, err := SanitizeOffer(offer)
	if err != nil {
		return err
	}
	return s.put(offerKey(collection, sanitized.AssetID), sanitized)
}

// OfferGet loads the offer record for an asset.
func (s *Store) OfferGet(collection [20]byte, assetID uint64) (*Offer, bool, error) {
	offer := new(Offer)
	ok, err := s.get(offerKey(collection, assetID), offer)
	if err != nil || !ok {
		return nil, false, err
	}
	return offer, true, nil
}

// BidPut stores a sanitized bid record.
func (s *Store) BidPut(collection [20]byte, bid *Bid) error {
	sanitized, err := SanitizeBid(bid)
	if err != nil {
		return err
	}
	return s.put(bidKey(collection, sanitized.AssetID), sanitized)
}

// BidGet loads the bid record for an asset.
func (s *Store) BidGet(collection [20]byte, assetID uint64) (*Bid, bool, error) {
	bid := new(Bid)
	ok, err := s.get(bidKey(collection, assetID), bid)
	if err != nil || !ok {
		return nil, false, err
	}
	return bid, true, nil
}

// PendingBalanceGet returns the accrued withdrawable amount for an address,
// zero when no entry exists.
func (s *Store) PendingBalanceGet(addr [20]byte) (*big.Int, error) {
	balance := new(big.Int)
	ok, err := s.get(balanceKey(addr), balance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return balance, nil
}

// PendingBalancePut stores the withdrawable amount for an address. Zero is
// stored explicitly rather than deleted so the audit trail keeps the entry.
func (s *Store) PendingBalancePut(addr [20]byte, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("market: negative pending balance")
	}
	return s.put(balanceKey(addr), amount)
}

type journalRecord struct {
	Seq        uint64            `json:"seq"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Emit appends the event to the durable journal, satisfying the
// events.Emitter interface so the store can sit directly behind the engine.
// Events that do not carry a payload are journaled with their type only.
func (s *Store) Emit(evt events.Event) {
	if s == nil || evt == nil {
		return
	}
	record := journalRecord{Type: evt.EventType(), Attributes: map[string]string{}}
	if carrier, ok := evt.(interface{ Event() *types.Event }); ok {
		if payload := carrier.Event(); payload != nil {
			record.Attributes = payload.Attributes
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var count uint64
	if _, err := s.get(eventCountKey, &count); err != nil {
		return
	}
	record.Seq = count
	encoded, err := json.Marshal(record)
	if err != nil {
		return
	}
	if err := s.db.Put(eventKey(count), encoded); err != nil {
		return
	}
	_ = s.put(eventCountKey, count+1)
}

// EventCount returns the number of journaled events.
func (s *Store) EventCount() (uint64, error) {
	var count uint64
	if _, err := s.get(eventCountKey, &count); err != nil {
		return 0, err
	}
	return count, nil
}

// ListEvents returns the most recent journaled events whose type matches the
// prefix, newest first. A non-positive limit returns up to 100 entries.
func (s *Store) ListEvents(prefix string, limit int) ([]*types.Event, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	count, err := s.EventCount()
	if err != nil {
		return nil, err
	}
	out := make([]*types.Event, 0, limit)
	for seq := count; seq > 0 && len(out) < limit; seq-- {
		raw, err := s.db.Get(eventKey(seq - 1))
		if err != nil {
			if errors.Is(err, storage.ErrKeyNotFound) {
				continue
			}
			return nil, err
		}
		var record journalRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, err
		}
		if prefix != "" && !strings.HasPrefix(record.Type, prefix) {
			continue
		}
		out = append(out, &types.Event{Type: record.Type, Attributes: record.Attributes})
	}
	return out, nil
}
