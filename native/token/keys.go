package token

import (
	"encoding/hex"
	"strconv"
)

var (
	recordPrefix   = []byte("token/collection/")
	ownerPrefix    = []byte("token/owner/")
	balPrefix      = []byte("token/balance/")
	approvalPfx    = []byte("token/approval/")
	approvedPrefix = []byte("token/approved/")
)

func recordKey(addr [20]byte) []byte {
	return append(append([]byte{}, recordPrefix...), hex.EncodeToString(addr[:])...)
}

func ownerKey(collection [20]byte, assetID uint64) []byte {
	key := append(append([]byte{}, ownerPrefix...), hex.EncodeToString(collection[:])...)
	key = append(key, '/')
	return append(key, strconv.FormatUint(assetID, 10)...)
}

func balanceKey(collection [20]byte, assetID uint64, holder [20]byte) []byte {
	key := append(append([]byte{}, balPrefix...), hex.EncodeToString(collection[:])...)
	key = append(key, '/')
	key = append(key, strconv.FormatUint(assetID, 10)...)
	key = append(key, '/')
	return append(key, hex.EncodeToString(holder[:])...)
}

func approvalKey(collection, holder, operator [20]byte) []byte {
	key := append(append([]byte{}, approvalPfx...), hex.EncodeToString(collection[:])...)
	key = append(key, '/')
	key = append(key, hex.EncodeToString(holder[:])...)
	key = append(key, '/')
	return append(key, hex.EncodeToString(operator[:])...)
}

func approvedKey(collection [20]byte, assetID uint64) []byte {
	key := append(append([]byte{}, approvedPrefix...), hex.EncodeToString(collection[:])...)
	key = append(key, '/')
	return append(key, strconv.FormatUint(assetID, 10)...)
}
