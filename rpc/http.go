package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"marketd/native/common"
	"marketd/native/market"
	"marketd/native/token"
	"marketd/observability/metrics"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRejected       = -32030
	codeReentered      = -32031
)

// Server exposes the marketplace ledger over JSON-RPC 2.0. Mutating methods
// require the configured bearer token; reads are open.
type Server struct {
	engine   *market.Engine
	store    *market.Store
	registry *token.Registry

	authToken string
}

// NewServer wires the RPC surface. An empty authToken disables write
// authentication, intended for local development only.
func NewServer(engine *market.Engine, store *market.Store, registry *token.Registry, authToken string) *Server {
	return &Server{
		engine:    engine,
		store:     store,
		registry:  registry,
		authToken: strings.TrimSpace(authToken),
	}
}

// Router builds the HTTP routing table: JSON-RPC at the root, health and
// Prometheus metrics alongside.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Post("/", s.handle)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: &RPCError{Code: code, Message: message}}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

var mutatingMethods = map[string]bool{
	"market_setCollectionConfig": true,
	"market_disableCollection":   true,
	"market_list":                true,
	"market_delist":              true,
	"market_placeBid":            true,
	"market_withdrawBid":         true,
	"market_acceptOffer":         true,
	"market_acceptBid":           true,
	"market_withdraw":            true,
	"token_register":             true,
	"token_mint":                 true,
	"token_approve":              true,
	"token_setApprovalForAll":    true,
}

func (s *Server) authorized(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	presented := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return subtle.ConstantTimeCompare([]byte(presented), []byte(s.authToken)) == 1
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "unable to read request body")
		return
	}
	if len(body) > maxRequestBytes {
		writeError(w, http.StatusRequestEntityTooLarge, nil, codeInvalidRequest, "request body too large")
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON-RPC payload")
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported JSON-RPC version")
		return
	}
	if mutatingMethods[req.Method] && !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "missing or invalid bearer token")
		return
	}
	result, rpcErr := s.dispatch(&req)
	metrics.Market().ObserveOperation(req.Method, observedResult(rpcErr))
	if rpcErr != nil {
		writeError(w, rpcErr.status, req.ID, rpcErr.code, rpcErr.message)
		return
	}
	writeResult(w, req.ID, result)
}

func observedResult(err *dispatchError) string {
	if err == nil {
		return "ok"
	}
	return "error"
}

type dispatchError struct {
	status  int
	code    int
	message string
}

func invalidParams(message string) *dispatchError {
	return &dispatchError{status: http.StatusBadRequest, code: codeInvalidParams, message: message}
}

// engineError classifies an engine failure: the rejection taxonomy keeps the
// sentinel message verbatim, everything else is a server fault.
func engineError(err error) *dispatchError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrReentered):
		return &dispatchError{status: http.StatusConflict, code: codeReentered, message: err.Error()}
	case isRejection(err):
		return &dispatchError{status: http.StatusOK, code: codeRejected, message: err.Error()}
	default:
		return &dispatchError{status: http.StatusInternalServerError, code: codeServerError, message: err.Error()}
	}
}

var rejections = []error{
	market.ErrUnauthorized,
	market.ErrInvalidRoyalty,
	market.ErrNotEnabled,
	market.ErrCollectionDisabled,
	market.ErrNotOwner,
	market.ErrNotApproved,
	market.ErrSelfBidForbidden,
	market.ErrBidTooLow,
	market.ErrNotBidder,
	market.ErrOfferInactive,
	market.ErrBuyerRestricted,
	market.ErrInsufficientFunds,
	market.ErrSellerNoLongerOwner,
	market.ErrApprovalRevoked,
	market.ErrBidInactive,
	market.ErrPriceTooLow,
	common.ErrModulePaused,
	token.ErrUnknownCollection,
	token.ErrUnauthorizedMint,
	token.ErrAssetExists,
	token.ErrNotApproved,
	token.ErrInsufficient,
}

func isRejection(err error) bool {
	for _, sentinel := range rejections {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func (s *Server) dispatch(req *RPCRequest) (interface{}, *dispatchError) {
	switch req.Method {
	case "market_setCollectionConfig":
		return s.handleSetCollectionConfig(req)
	case "market_disableCollection":
		return s.handleDisableCollection(req)
	case "market_list":
		return s.handleList(req)
	case "market_delist":
		return s.handleDelist(req)
	case "market_placeBid":
		return s.handlePlaceBid(req)
	case "market_withdrawBid":
		return s.handleWithdrawBid(req)
	case "market_acceptOffer":
		return s.handleAcceptOffer(req)
	case "market_acceptBid":
		return s.handleAcceptBid(req)
	case "market_withdraw":
		return s.handleWithdraw(req)
	case "market_getOffer":
		return s.handleGetOffer(req)
	case "market_getBid":
		return s.handleGetBid(req)
	case "market_getCollection":
		return s.handleGetCollection(req)
	case "market_getPendingBalance":
		return s.handleGetPendingBalance(req)
	case "market_listEvents":
		return s.handleListEvents(req)
	case "token_register":
		return s.handleTokenRegister(req)
	case "token_mint":
		return s.handleTokenMint(req)
	case "token_approve":
		return s.handleTokenApprove(req)
	case "token_setApprovalForAll":
		return s.handleTokenSetApprovalForAll(req)
	case "token_ownerOf":
		return s.handleTokenOwnerOf(req)
	case "token_balanceOf":
		return s.handleTokenBalanceOf(req)
	default:
		return nil, &dispatchError{status: http.StatusNotFound, code: codeMethodNotFound, message: "method not found"}
	}
}
