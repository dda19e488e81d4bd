package rpc

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"marketd/crypto"
	"marketd/native/market"
	"marketd/native/token"
	"marketd/storage"
)

const testToken = "test-secret"

func rpcAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func bech32Addr(b [20]byte) string {
	return crypto.NewAddress(crypto.MarketPrefix, b[:]).String()
}

type recordingTreasury struct {
	payouts []*big.Int
}

func (r *recordingTreasury) Payout(_ [20]byte, amount *big.Int) error {
	r.payouts = append(r.payouts, new(big.Int).Set(amount))
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *recordingTreasury) {
	t.Helper()
	db := storage.NewMemDB()
	store := market.NewStore(db)
	registry := token.NewRegistry(db)
	operator := rpcAddr(0x99)
	registry.SetOperator(operator)

	treasury := &recordingTreasury{}
	engine := market.NewEngine()
	engine.SetState(store)
	engine.SetRegistry(registry)
	engine.SetOperator(operator)
	engine.SetTreasury(treasury)
	engine.SetEmitter(store)

	server := NewServer(engine, store, registry, testToken)
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)
	return ts, treasury
}

func call(t *testing.T, ts *httptest.Server, token, method string, params interface{}) (int, RPCResponse) {
	t.Helper()
	payload := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		payload["params"] = []interface{}{params}
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var decoded RPCResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func mustOK(t *testing.T, ts *httptest.Server, method string, params interface{}) RPCResponse {
	t.Helper()
	status, resp := call(t, ts, testToken, method, params)
	require.Equal(t, http.StatusOK, status, "method %s", method)
	require.Nil(t, resp.Error, "method %s: %+v", method, resp.Error)
	return resp
}

func decodeResult(t *testing.T, resp RPCResponse, out interface{}) {
	t.Helper()
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func TestMutatingMethodsRequireBearerToken(t *testing.T) {
	ts, _ := newTestServer(t)
	status, resp := call(t, ts, "", "market_withdraw", map[string]string{"caller": bech32Addr(rpcAddr(0x0A))})
	require.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	status, resp = call(t, ts, "wrong-token", "market_withdraw", map[string]string{"caller": bech32Addr(rpcAddr(0x0A))})
	require.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, resp.Error)

	// Reads stay open.
	status, resp = call(t, ts, "", "market_getPendingBalance", map[string]string{"address": bech32Addr(rpcAddr(0x0A))})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)
}

func TestUnknownMethod(t *testing.T) {
	ts, _ := newTestServer(t)
	status, resp := call(t, ts, testToken, "market_burn", map[string]string{})
	require.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestMalformedPayload(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Post(ts.URL+"/", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var decoded RPCResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	require.NotNil(t, decoded.Error)
	require.Equal(t, codeParseError, decoded.Error.Code)
}

func TestInvalidAddressParam(t *testing.T) {
	ts, _ := newTestServer(t)
	status, resp := call(t, ts, testToken, "market_withdraw", map[string]string{"caller": "0xdeadbeef"})
	require.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

// TestMarketLifecycle drives a full sale over the wire: register collection,
// mint, approve, configure, list, bid, settle by accepting the bid, withdraw.
func TestMarketLifecycle(t *testing.T) {
	ts, treasury := newTestServer(t)

	collection := rpcAddr(0xC0)
	admin := rpcAddr(0xAD)
	seller := rpcAddr(0x0A)
	buyer := rpcAddr(0x0B)
	operator := rpcAddr(0x99)

	mustOK(t, ts, "token_register", map[string]interface{}{
		"collection":    bech32Addr(collection),
		"assetKind":     "single",
		"administrator": bech32Addr(admin),
	})
	mustOK(t, ts, "token_mint", map[string]interface{}{
		"caller":     bech32Addr(admin),
		"collection": bech32Addr(collection),
		"to":         bech32Addr(seller),
		"assetId":    1,
	})
	mustOK(t, ts, "token_setApprovalForAll", map[string]interface{}{
		"holder":     bech32Addr(seller),
		"collection": bech32Addr(collection),
		"operator":   bech32Addr(operator),
		"approved":   true,
	})

	// A non-administrator cannot configure the collection; the rejection
	// travels back with the dedicated code and the sentinel message.
	status, resp := call(t, ts, testToken, "market_setCollectionConfig", map[string]interface{}{
		"caller":         bech32Addr(seller),
		"collection":     bech32Addr(collection),
		"assetKind":      "single",
		"royaltyPercent": 10,
	})
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeRejected, resp.Error.Code)
	require.Equal(t, market.ErrUnauthorized.Error(), resp.Error.Message)

	mustOK(t, ts, "market_setCollectionConfig", map[string]interface{}{
		"caller":         bech32Addr(admin),
		"collection":     bech32Addr(collection),
		"assetKind":      "single",
		"royaltyPercent": 10,
		"metadataURI":    "ipfs://meta",
	})
	mustOK(t, ts, "market_list", map[string]interface{}{
		"caller":     bech32Addr(seller),
		"collection": bech32Addr(collection),
		"assetId":    1,
		"minPrice":   "100",
	})

	var offer offerResult
	decodeResult(t, mustOK(t, ts, "market_getOffer", map[string]interface{}{
		"collection": bech32Addr(collection),
		"assetId":    1,
	}), &offer)
	require.True(t, offer.Active)
	require.Equal(t, bech32Addr(seller), offer.Seller)
	require.Equal(t, "100", offer.MinPrice)

	mustOK(t, ts, "market_placeBid", map[string]interface{}{
		"caller":     bech32Addr(buyer),
		"collection": bech32Addr(collection),
		"assetId":    1,
		"value":      "120",
	})
	mustOK(t, ts, "market_acceptBid", map[string]interface{}{
		"caller":             bech32Addr(seller),
		"collection":         bech32Addr(collection),
		"assetId":            1,
		"minAcceptablePrice": "120",
	})

	var owner ownerOfResult
	decodeResult(t, mustOK(t, ts, "token_ownerOf", map[string]interface{}{
		"collection": bech32Addr(collection),
		"assetId":    1,
	}), &owner)
	require.Equal(t, bech32Addr(buyer), owner.Owner)

	// Royalty 10% of 120 is 12; the seller accrues 108.
	var balance balanceResult
	decodeResult(t, mustOK(t, ts, "market_getPendingBalance", map[string]string{
		"address": bech32Addr(seller),
	}), &balance)
	require.Equal(t, "108", balance.Amount)
	decodeResult(t, mustOK(t, ts, "market_getPendingBalance", map[string]string{
		"address": bech32Addr(admin),
	}), &balance)
	require.Equal(t, "12", balance.Amount)

	var withdrawal withdrawResult
	decodeResult(t, mustOK(t, ts, "market_withdraw", map[string]string{
		"caller": bech32Addr(seller),
	}), &withdrawal)
	require.Equal(t, "108", withdrawal.Amount)
	require.Len(t, treasury.payouts, 1)
	require.Equal(t, "108", treasury.payouts[0].String())

	// The journal recorded the whole lifecycle, newest first.
	var journaled []struct {
		Type       string            `json:"type"`
		Attributes map[string]string `json:"attributes"`
	}
	decodeResult(t, mustOK(t, ts, "market_listEvents", map[string]interface{}{"prefix": "market."}), &journaled)
	require.NotEmpty(t, journaled)
	require.Equal(t, "market.withdrawn", journaled[0].Type)
}

func TestRejectionsKeepHTTPOK(t *testing.T) {
	ts, _ := newTestServer(t)
	// Unregistered collection: the rejection is a domain outcome, not a
	// transport failure.
	status, resp := call(t, ts, testToken, "market_list", map[string]interface{}{
		"caller":     bech32Addr(rpcAddr(0x0A)),
		"collection": bech32Addr(rpcAddr(0xC0)),
		"assetId":    1,
		"minPrice":   "10",
	})
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeRejected, resp.Error.Code)
	require.Equal(t, market.ErrCollectionDisabled.Error(), resp.Error.Message)
}

func TestGetOfferMissingReturnsNull(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := mustOK(t, ts, "market_getOffer", map[string]interface{}{
		"collection": bech32Addr(rpcAddr(0xC0)),
		"assetId":    5,
	})
	require.Nil(t, resp.Result)
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
