package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"thousandx/native/market"
)

type createTokenParams struct {
	Caller string `json:"caller"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	Paid   string `json:"paid"`
}

type buyParams struct {
	Caller      string `json:"caller"`
	Token       string `json:"token"`
	TokenAmount string `json:"tokenAmount"`
	MaxNativeIn string `json:"maxNativeIn,omitempty"`
	Paid        string `json:"paid"`
}

type sellParams struct {
	Caller       string `json:"caller"`
	Token        string `json:"token"`
	TokenAmount  string `json:"tokenAmount"`
	MinNativeOut string `json:"minNativeOut,omitempty"`
}

type setPlatformFeesParams struct {
	Caller        string `json:"caller"`
	CreateFee     string `json:"createFee"`
	TradeFeeBps   uint32 `json:"tradeFeeBps"`
	CreatorFeeBps uint32 `json:"creatorFeeBps"`
}

type callerParams struct {
	Caller string `json:"caller"`
}

type creatorParams struct {
	Creator string `json:"creator"`
}

type tokenParams struct {
	Token string `json:"token"`
}

type balanceParams struct {
	Token  string `json:"token"`
	Holder string `json:"holder"`
}

type quoteParams struct {
	Token       string `json:"token"`
	Direction   string `json:"direction"`
	TokenAmount string `json:"tokenAmount"`
}

type tokenResult struct {
	Address     string `json:"address"`
	Creator     string `json:"creator"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	TotalSupply string `json:"totalSupply"`
	Reserve     string `json:"reserve"`
	CurveSupply string `json:"curveSupply"`
	CreatedAt   int64  `json:"createdAt"`
}

type tradeResult struct {
	ID           string `json:"id"`
	Token        string `json:"token"`
	Trader       string `json:"trader"`
	Direction    string `json:"direction"`
	TokenAmount  string `json:"tokenAmount"`
	Gross        string `json:"gross"`
	Net          string `json:"net"`
	PlatformFee  string `json:"platformFee"`
	CreatorFee   string `json:"creatorFee"`
	ReserveAfter string `json:"reserveAfter"`
	Timestamp    int64  `json:"timestamp"`
}

type platformStatsResult struct {
	CreateFee          string `json:"createFee"`
	TradeFeeBps        uint32 `json:"tradeFeeBps"`
	CreatorFeeBps      uint32 `json:"creatorFeeBps"`
	FeeRecipient       string `json:"feeRecipient"`
	TotalTokensCreated uint64 `json:"totalTokensCreated"`
	CumulativeVolume   string `json:"cumulativeVolume"`
	CumulativeFees     string `json:"cumulativeFees"`
}

type creatorStatsResult struct {
	Creator       string `json:"creator"`
	TokensCreated uint64 `json:"tokensCreated"`
	FeesEarned    string `json:"feesEarned"`
}

type deployedTokenResult struct {
	Address   string `json:"address"`
	Creator   string `json:"creator"`
	Name      string `json:"name"`
	Symbol    string `json:"symbol"`
	CreatedAt int64  `json:"createdAt"`
}

type balanceResult struct {
	Token   string `json:"token"`
	Holder  string `json:"holder"`
	Balance string `json:"balance"`
}

type quoteResult struct {
	Token       string `json:"token"`
	Direction   string `json:"direction"`
	TokenAmount string `json:"tokenAmount"`
	Gross       string `json:"gross"`
	Net         string `json:"net"`
	PlatformFee string `json:"platformFee"`
	CreatorFee  string `json:"creatorFee"`
}

type withdrawResult struct {
	Owner  string `json:"owner"`
	Amount string `json:"amount"`
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// parseAmount decodes a non-negative decimal amount.
func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount is required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount cannot be negative")
	}
	return amount, nil
}

// parseOptionalAmount treats an empty string as absent.
func parseOptionalAmount(raw string) (*big.Int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	return parseAmount(raw)
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

func formatToken(token *market.Token) tokenResult {
	return tokenResult{
		Address:     market.FormatAddress(token.Address),
		Creator:     market.FormatAddress(token.Creator),
		Name:        token.Name,
		Symbol:      token.Symbol,
		TotalSupply: bigString(token.TotalSupply),
		Reserve:     bigString(token.Reserve),
		CurveSupply: bigString(token.CurveSupply),
		CreatedAt:   token.CreatedAt,
	}
}

func formatTrade(record *market.TradeRecord) tradeResult {
	return tradeResult{
		ID:           record.ID,
		Token:        market.FormatAddress(record.Token),
		Trader:       market.FormatAddress(record.Trader),
		Direction:    string(record.Direction),
		TokenAmount:  bigString(record.TokenAmount),
		Gross:        bigString(record.Gross),
		Net:          bigString(record.Net),
		PlatformFee:  bigString(record.PlatformFee),
		CreatorFee:   bigString(record.CreatorFee),
		ReserveAfter: bigString(record.ReserveAfter),
		Timestamp:    record.Timestamp,
	}
}

func formatQuote(token string, quote *market.Quote) quoteResult {
	return quoteResult{
		Token:       token,
		Direction:   string(quote.Direction),
		TokenAmount: bigString(quote.TokenAmount),
		Gross:       bigString(quote.Gross),
		Net:         bigString(quote.Net),
		PlatformFee: bigString(quote.PlatformFee),
		CreatorFee:  bigString(quote.CreatorFee),
	}
}

func (s *Server) handleCreateToken(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params createTokenParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := market.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	paid, err := parseAmount(params.Paid)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	token, err := s.engine.CreateToken(caller, params.Name, params.Symbol, paid)
	if err != nil {
		s.writeEngineError(w, req.Method, req.ID, err)
		return
	}
	s.observe(req.Method, "ok")
	writeResult(w, req.ID, formatToken(token))
}

func (s *Server) handleBuy(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params buyParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := market.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	token, err := market.ParseAddress(params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid token address", err.Error())
		return
	}
	amount, err := parseAmount(params.TokenAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	maxNativeIn, err := parseOptionalAmount(params.MaxNativeIn)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	paid, err := parseAmount(params.Paid)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	record, err := s.engine.Buy(caller, token, amount, maxNativeIn, paid)
	if err != nil {
		s.writeEngineError(w, req.Method, req.ID, err)
		return
	}
	s.observe(req.Method, "ok")
	writeResult(w, req.ID, formatTrade(record))
}

func (s *Server) handleSell(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params sellParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := market.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	token, err := market.ParseAddress(params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid token address", err.Error())
		return
	}
	amount, err := parseAmount(params.TokenAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	minNativeOut, err := parseOptionalAmount(params.MinNativeOut)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	record, err := s.engine.Sell(caller, token, amount, minNativeOut)
	if err != nil {
		s.writeEngineError(w, req.Method, req.ID, err)
		return
	}
	s.observe(req.Method, "ok")
	writeResult(w, req.ID, formatTrade(record))
}

func (s *Server) handleSetPlatformFees(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params setPlatformFeesParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := market.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	createFee, err := parseAmount(params.CreateFee)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.SetPlatformFees(caller, createFee, params.TradeFeeBps, params.CreatorFeeBps); err != nil {
		s.writeEngineError(w, req.Method, req.ID, err)
		return
	}
	s.observe(req.Method, "ok")
	summary, err := s.engine.PlatformSummary()
	if err != nil {
		s.writeEngineError(w, req.Method, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatSummary(summary))
}

func (s *Server) handleEmergencyWithdraw(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params callerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := market.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	amount, err := s.engine.EmergencyWithdraw(caller)
	if err != nil {
		s.writeEngineError(w, req.Method, req.ID, err)
		return
	}
	s.observe(req.Method, "ok")
	writeResult(w, req.ID, withdrawResult{Owner: params.Caller, Amount: bigString(amount)})
}

func formatSummary(summary *market.PlatformSummary) platformStatsResult {
	return platformStatsResult{
		CreateFee:          bigString(summary.CreateFee),
		TradeFeeBps:        summary.TradeFeeBps,
		CreatorFeeBps:      summary.CreatorFeeBps,
		FeeRecipient:       market.FormatAddress(summary.FeeRecipient),
		TotalTokensCreated: summary.TotalTokensCreated,
		CumulativeVolume:   bigString(summary.CumulativeVolume),
		CumulativeFees:     bigString(summary.CumulativeFees),
	}
}

func (s *Server) handleGetPlatformStats(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	summary, err := s.engine.PlatformSummary()
	if err != nil {
		s.writeEngineError(w, req.Method, req.ID, err)
		return
	}
	s.observe(req.Method, "ok")
	writeResult(w, req.ID, formatSummary(summary))
}

func (s *Server) handleGetCreatorStats(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params creatorParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	creator, err := market.ParseAddress(params.Creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid creator address", err.Error())
		return
	}
	stats, err := s.engine.CreatorStatsOf(creator)
	if err != nil {
		s.writeEngineError(w, req.Method, req.ID, err)
		return
	}
	s.observe(req.Method, "ok")
	writeResult(w, req.ID, creatorStatsResult{
		Creator:       params.Creator,
		TokensCreated: stats.TokensCreated,
		FeesEarned:    bigString(stats.FeesEarned),
	})
}

func (s *Server) handleGetDeployedTokens(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	deployed, err := s.engine.DeployedTokens()
	if err != nil {
		s.writeEngineError(w, req.Method, req.ID, err)
		return
	}
	results := make([]deployedTokenResult, 0, len(deployed))
	for _, entry := range deployed {
		results = append(results, deployedTokenResult{
			Address:   market.FormatAddress(entry.Address),
			Creator:   market.FormatAddress(entry.Creator),
			Name:      entry.Name,
			Symbol:    entry.Symbol,
			CreatedAt: entry.CreatedAt,
		})
	}
	s.observe(req.Method, "ok")
	writeResult(w, req.ID, results)
}

func (s *Server) handleGetToken(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params tokenParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	addr, err := market.ParseAddress(params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid token address", err.Error())
		return
	}
	token, err := s.engine.Token(addr)
	if err != nil {
		s.writeEngineError(w, req.Method, req.ID, err)
		return
	}
	s.observe(req.Method, "ok")
	writeResult(w, req.ID, formatToken(token))
}

func (s *Server) handleGetBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params balanceParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	token, err := market.ParseAddress(params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid token address", err.Error())
		return
	}
	holder, err := market.ParseAddress(params.Holder)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid holder address", err.Error())
		return
	}
	balance, err := s.engine.TokenBalance(token, holder)
	if err != nil {
		s.writeEngineError(w, req.Method, req.ID, err)
		return
	}
	s.observe(req.Method, "ok")
	writeResult(w, req.ID, balanceResult{
		Token:   params.Token,
		Holder:  params.Holder,
		Balance: bigString(balance),
	})
}

func (s *Server) handleQuote(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params quoteParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	addr, err := market.ParseAddress(params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid token address", err.Error())
		return
	}
	amount, err := parseAmount(params.TokenAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	var quote *market.Quote
	switch market.Direction(strings.ToLower(strings.TrimSpace(params.Direction))) {
	case market.DirectionBuy:
		quote, err = s.engine.QuoteBuy(addr, amount)
	case market.DirectionSell:
		quote, err = s.engine.QuoteSell(addr, amount)
	default:
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "direction must be buy or sell", params.Direction)
		return
	}
	if err != nil {
		s.writeEngineError(w, req.Method, req.ID, err)
		return
	}
	s.observe(req.Method, "ok")
	writeResult(w, req.ID, formatQuote(params.Token, quote))
}
