package rpc

import (
	"marketd/native/market"
)

type tokenRegisterParams struct {
	Collection    string `json:"collection"`
	AssetKind     string `json:"assetKind"`
	Administrator string `json:"administrator"`
}

func (s *Server) handleTokenRegister(req *RPCRequest) (interface{}, *dispatchError) {
	var params tokenRegisterParams
	if errParams := parseParams(req, &params); errParams != nil {
		return nil, errParams
	}
	collection, errParams := parseAddress("collection", params.Collection)
	if errParams != nil {
		return nil, errParams
	}
	admin, errParams := parseAddress("administrator", params.Administrator)
	if errParams != nil {
		return nil, errParams
	}
	kind, err := market.ParseAssetKind(params.AssetKind)
	if err != nil {
		return nil, invalidParams(err.Error())
	}
	if err := s.registry.Register(collection, kind, admin); err != nil {
		return nil, engineError(err)
	}
	return okResult, nil
}

type tokenMintParams struct {
	Caller     string `json:"caller"`
	Collection string `json:"collection"`
	To         string `json:"to"`
	AssetID    uint64 `json:"assetId"`
	Quantity   uint64 `json:"quantity,omitempty"`
}

func (s *Server) handleTokenMint(req *RPCRequest) (interface{}, *dispatchError) {
	var params tokenMintParams
	if errParams := parseParams(req, &params); errParams != nil {
		return nil, errParams
	}
	caller, errParams := parseAddress("caller", params.Caller)
	if errParams != nil {
		return nil, errParams
	}
	collection, errParams := parseAddress("collection", params.Collection)
	if errParams != nil {
		return nil, errParams
	}
	to, errParams := parseAddress("to", params.To)
	if errParams != nil {
		return nil, errParams
	}
	ledger, err := s.registry.Ledger(collection)
	if err != nil {
		return nil, engineError(err)
	}
	quantity := params.Quantity
	if quantity == 0 {
		quantity = 1
	}
	if err := ledger.Mint(caller, to, params.AssetID, quantity); err != nil {
		return nil, engineError(err)
	}
	return okResult, nil
}

type tokenApproveParams struct {
	Caller     string `json:"caller"`
	Collection string `json:"collection"`
	AssetID    uint64 `json:"assetId"`
	Operator   string `json:"operator"`
}

func (s *Server) handleTokenApprove(req *RPCRequest) (interface{}, *dispatchError) {
	var params tokenApproveParams
	if errParams := parseParams(req, &params); errParams != nil {
		return nil, errParams
	}
	caller, errParams := parseAddress("caller", params.Caller)
	if errParams != nil {
		return nil, errParams
	}
	collection, errParams := parseAddress("collection", params.Collection)
	if errParams != nil {
		return nil, errParams
	}
	operator, errParams := parseAddress("operator", params.Operator)
	if errParams != nil {
		return nil, errParams
	}
	ledger, err := s.registry.Ledger(collection)
	if err != nil {
		return nil, engineError(err)
	}
	if err := ledger.Approve(caller, params.AssetID, operator); err != nil {
		return nil, engineError(err)
	}
	return okResult, nil
}

type tokenSetApprovalParams struct {
	Holder     string `json:"holder"`
	Collection string `json:"collection"`
	Operator   string `json:"operator"`
	Approved   bool   `json:"approved"`
}

func (s *Server) handleTokenSetApprovalForAll(req *RPCRequest) (interface{}, *dispatchError) {
	var params tokenSetApprovalParams
	if errParams := parseParams(req, &params); errParams != nil {
		return nil, errParams
	}
	holder, errParams := parseAddress("holder", params.Holder)
	if errParams != nil {
		return nil, errParams
	}
	collection, errParams := parseAddress("collection", params.Collection)
	if errParams != nil {
		return nil, errParams
	}
	operator, errParams := parseAddress("operator", params.Operator)
	if errParams != nil {
		return nil, errParams
	}
	ledger, err := s.registry.Ledger(collection)
	if err != nil {
		return nil, engineError(err)
	}
	if err := ledger.SetApprovalForAll(holder, operator, params.Approved); err != nil {
		return nil, engineError(err)
	}
	return okResult, nil
}

type ownerOfResult struct {
	Owner string `json:"owner,omitempty"`
}

func (s *Server) handleTokenOwnerOf(req *RPCRequest) (interface{}, *dispatchError) {
	var params assetQueryParams
	if errParams := parseParams(req, &params); errParams != nil {
		return nil, errParams
	}
	collection, errParams := parseAddress("collection", params.Collection)
	if errParams != nil {
		return nil, errParams
	}
	ledger, err := s.registry.Ledger(collection)
	if err != nil {
		return nil, engineError(err)
	}
	owner, err := ledger.OwnerOf(params.AssetID)
	if err != nil {
		return nil, engineError(err)
	}
	result := ownerOfResult{}
	if owner != ([20]byte{}) {
		result.Owner = addressString(owner)
	}
	return result, nil
}

type balanceOfParams struct {
	Collection string `json:"collection"`
	Holder     string `json:"holder"`
	AssetID    uint64 `json:"assetId"`
}

func (s *Server) handleTokenBalanceOf(req *RPCRequest) (interface{}, *dispatchError) {
	var params balanceOfParams
	if errParams := parseParams(req, &params); errParams != nil {
		return nil, errParams
	}
	collection, errParams := parseAddress("collection", params.Collection)
	if errParams != nil {
		return nil, errParams
	}
	holder, errParams := parseAddress("holder", params.Holder)
	if errParams != nil {
		return nil, errParams
	}
	ledger, err := s.registry.Ledger(collection)
	if err != nil {
		return nil, engineError(err)
	}
	balance, err := ledger.BalanceOf(holder, params.AssetID)
	if err != nil {
		return nil, engineError(err)
	}
	return balanceResult{Address: addressString(holder), Amount: amountString(balance)}, nil
}
