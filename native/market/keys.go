package market

import (
	"encoding/hex"
	"strconv"
)

var (
	collectionPrefix = []byte("market/collection/")
	offerPrefix      = []byte("market/offer/")
	bidPrefix        = []byte("market/bid/")
	balancePrefix    = []byte("market/balance/")
	eventPrefix      = []byte("market/events/")
	eventCountKey    = []byte("market/events/count")
)

func addressKey(prefix []byte, addr [20]byte) []byte {
	encoded := hex.EncodeToString(addr[:])
	buf := make([]byte, 0, len(prefix)+len(encoded))
	buf = append(buf, prefix...)
	return append(buf, encoded...)
}

func assetKey(prefix []byte, collection [20]byte, assetID uint64) []byte {
	encoded := hex.EncodeToString(collection[:])
	id := strconv.FormatUint(assetID, 10)
	buf := make([]byte, 0, len(prefix)+len(encoded)+1+len(id))
	buf = append(buf, prefix...)
	buf = append(buf, encoded...)
	buf = append(buf, '/')
	return append(buf, id...)
}

func collectionKey(addr [20]byte) []byte { return addressKey(collectionPrefix, addr) }

func balanceKey(addr [20]byte) []byte { return addressKey(balancePrefix, addr) }

func offerKey(collection [20]byte, assetID uint64) []byte {
	return assetKey(offerPrefix, collection, assetID)
}

func bidKey(collection [20]byte, assetID uint64) []byte {
	return assetKey(bidPrefix, collection, assetID)
}

func eventKey(seq uint64) []byte {
	id := strconv.FormatUint(seq, 10)
	buf := make([]byte, 0, len(eventPrefix)+len(id))
	buf = append(buf, eventPrefix...)
	return append(buf, id...)
}
