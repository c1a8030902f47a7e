package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"thousandx/core/types"
	"thousandx/native/fees"
	"thousandx/native/market"
	"thousandx/state"
	"thousandx/storage"
)

const testToken = "test-token"

func testAddress(last byte) string {
	var addr [20]byte
	addr[19] = last
	return market.FormatAddress(addr)
}

func newTestServer(t *testing.T) (*Server, *state.Manager) {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	engine := market.NewEngine()
	engine.SetState(manager)
	owner, err := market.ParseAddress(testAddress(0x01))
	require.NoError(t, err)
	vault, err := market.ParseAddress(testAddress(0x03))
	require.NoError(t, err)
	recipient, err := market.ParseAddress(testAddress(0x02))
	require.NoError(t, err)
	engine.SetOwner(owner)
	engine.SetVault(vault)
	require.NoError(t, engine.EnsureSchedule(fees.Schedule{
		CreateFee:     big.NewInt(1_000),
		TradeFeeBps:   100,
		CreatorFeeBps: 50,
		Recipient:     recipient,
	}))
	return NewServer(engine, nil, testToken), manager
}

func fund(t *testing.T, manager *state.Manager, addr string, amount *big.Int) {
	t.Helper()
	parsed, err := market.ParseAddress(addr)
	require.NoError(t, err)
	require.NoError(t, manager.PutAccount(parsed[:], &types.Account{Balance: new(big.Int).Set(amount)}))
}

func rpcCall(t *testing.T, handler http.Handler, token, method string, params interface{}) (*http.Response, RPCResponse) {
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
	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	resp := recorder.Result()
	var decoded RPCResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func resultInto(t *testing.T, decoded RPCResponse, out interface{}) {
	t.Helper()
	raw, err := json.Marshal(decoded.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func createTestToken(t *testing.T, handler http.Handler, manager *state.Manager, creator string) tokenResult {
	t.Helper()
	fund(t, manager, creator, big.NewInt(1_000_000))
	resp, decoded := rpcCall(t, handler, testToken, "market_createToken", createTokenParams{
		Caller: creator,
		Name:   "TestMeme",
		Symbol: "TMEME",
		Paid:   "1000",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, decoded.Error)
	var token tokenResult
	resultInto(t, decoded, &token)
	return token
}

func TestHealthz(t *testing.T) {
	server, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, req)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.JSONEq(t, `{"status":"ok"}`, recorder.Body.String())
}

func TestMutatingMethodsRequireAuth(t *testing.T) {
	server, _ := newTestServer(t)
	handler := server.Router()
	for _, method := range []string{
		"market_createToken",
		"market_buy",
		"market_sell",
		"market_setPlatformFees",
		"market_emergencyWithdraw",
	} {
		resp, decoded := rpcCall(t, handler, "", method, map[string]string{})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, method)
		require.NotNil(t, decoded.Error, method)
		require.Equal(t, codeUnauthorized, decoded.Error.Code, method)
	}
}

func TestReadMethodsNeedNoAuth(t *testing.T) {
	server, _ := newTestServer(t)
	resp, decoded := rpcCall(t, server.Router(), "", "market_getPlatformStats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, decoded.Error)
}

func TestCreateTokenAndStats(t *testing.T) {
	server, manager := newTestServer(t)
	handler := server.Router()
	creator := testAddress(0x10)

	token := createTestToken(t, handler, manager, creator)
	require.Equal(t, creator, token.Creator)
	require.Equal(t, "TMEME", token.Symbol)
	require.NotEmpty(t, token.Address)

	resp, decoded := rpcCall(t, handler, "", "market_getPlatformStats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats platformStatsResult
	resultInto(t, decoded, &stats)
	require.Equal(t, uint64(1), stats.TotalTokensCreated)
	require.Equal(t, "1000", stats.CreateFee)

	resp, decoded = rpcCall(t, handler, "", "market_getDeployedTokens", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var deployed []deployedTokenResult
	resultInto(t, decoded, &deployed)
	require.Len(t, deployed, 1)
	require.Equal(t, token.Address, deployed[0].Address)
}

func TestCreateTokenInsufficientFee(t *testing.T) {
	server, manager := newTestServer(t)
	handler := server.Router()
	creator := testAddress(0x10)
	fund(t, manager, creator, big.NewInt(1_000_000))

	resp, decoded := rpcCall(t, handler, testToken, "market_createToken", createTokenParams{
		Caller: creator,
		Name:   "TestMeme",
		Symbol: "TMEME",
		Paid:   "10",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NotNil(t, decoded.Error)
	require.Equal(t, codeInvalidParams, decoded.Error.Code)
}

func TestBuySellRoundTrip(t *testing.T) {
	server, manager := newTestServer(t)
	handler := server.Router()
	creator := testAddress(0x10)
	trader := testAddress(0x20)
	token := createTestToken(t, handler, manager, creator)

	fundAmount := new(big.Int).Exp(big.NewInt(10), big.NewInt(19), nil)
	fund(t, manager, trader, fundAmount)
	tokenAmount := new(big.Int).Exp(big.NewInt(10), big.NewInt(24), nil)

	resp, decoded := rpcCall(t, handler, testToken, "market_buy", buyParams{
		Caller:      trader,
		Token:       token.Address,
		TokenAmount: tokenAmount.String(),
		Paid:        fundAmount.String(),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, decoded.Error)
	var buy tradeResult
	resultInto(t, decoded, &buy)
	require.Equal(t, "buy", buy.Direction)

	resp, decoded = rpcCall(t, handler, "", "market_getBalance", balanceParams{
		Token:  token.Address,
		Holder: trader,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var balance balanceResult
	resultInto(t, decoded, &balance)
	require.Equal(t, tokenAmount.String(), balance.Balance)

	resp, decoded = rpcCall(t, handler, testToken, "market_sell", sellParams{
		Caller:      trader,
		Token:       token.Address,
		TokenAmount: tokenAmount.String(),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, decoded.Error)
	var sell tradeResult
	resultInto(t, decoded, &sell)
	require.Equal(t, "sell", sell.Direction)

	grossIn, ok := new(big.Int).SetString(buy.Gross, 10)
	require.True(t, ok)
	netOut, ok := new(big.Int).SetString(sell.Net, 10)
	require.True(t, ok)
	require.Negative(t, netOut.Cmp(grossIn))
}

func TestBuyZeroCapRejected(t *testing.T) {
	server, manager := newTestServer(t)
	handler := server.Router()
	creator := testAddress(0x10)
	trader := testAddress(0x20)
	token := createTestToken(t, handler, manager, creator)

	fundAmount := new(big.Int).Exp(big.NewInt(10), big.NewInt(19), nil)
	fund(t, manager, trader, fundAmount)

	// An explicit cap of zero binds; only an omitted cap means uncapped.
	resp, decoded := rpcCall(t, handler, testToken, "market_buy", buyParams{
		Caller:      trader,
		Token:       token.Address,
		TokenAmount: new(big.Int).Exp(big.NewInt(10), big.NewInt(24), nil).String(),
		MaxNativeIn: "0",
		Paid:        fundAmount.String(),
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NotNil(t, decoded.Error)
	require.Equal(t, codeInvalidParams, decoded.Error.Code)
}

func TestQuoteMatchesTrade(t *testing.T) {
	server, manager := newTestServer(t)
	handler := server.Router()
	creator := testAddress(0x10)
	trader := testAddress(0x20)
	token := createTestToken(t, handler, manager, creator)

	tokenAmount := new(big.Int).Exp(big.NewInt(10), big.NewInt(24), nil)
	resp, decoded := rpcCall(t, handler, "", "market_quote", quoteParams{
		Token:       token.Address,
		Direction:   "buy",
		TokenAmount: tokenAmount.String(),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, decoded.Error)
	var quote quoteResult
	resultInto(t, decoded, &quote)

	fundAmount := new(big.Int).Exp(big.NewInt(10), big.NewInt(19), nil)
	fund(t, manager, trader, fundAmount)
	resp, decoded = rpcCall(t, handler, testToken, "market_buy", buyParams{
		Caller:      trader,
		Token:       token.Address,
		TokenAmount: tokenAmount.String(),
		Paid:        fundAmount.String(),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, decoded.Error)
	var buy tradeResult
	resultInto(t, decoded, &buy)
	require.Equal(t, quote.Gross, buy.Gross)
	require.Equal(t, quote.PlatformFee, buy.PlatformFee)
	require.Equal(t, quote.CreatorFee, buy.CreatorFee)
}

func TestUnknownTokenIsNotFound(t *testing.T) {
	server, _ := newTestServer(t)
	resp, decoded := rpcCall(t, server.Router(), "", "market_getToken", tokenParams{
		Token: testAddress(0x99),
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.NotNil(t, decoded.Error)
	require.Equal(t, codeNotFound, decoded.Error.Code)
}

func TestSetPlatformFeesAuthorization(t *testing.T) {
	server, _ := newTestServer(t)
	handler := server.Router()
	intruder := testAddress(0x42)

	resp, decoded := rpcCall(t, handler, testToken, "market_setPlatformFees", setPlatformFeesParams{
		Caller:        intruder,
		CreateFee:     "2000",
		TradeFeeBps:   200,
		CreatorFeeBps: 50,
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.NotNil(t, decoded.Error)
	require.Equal(t, codeUnauthorized, decoded.Error.Code)

	resp, decoded = rpcCall(t, handler, testToken, "market_setPlatformFees", setPlatformFeesParams{
		Caller:        testAddress(0x01),
		CreateFee:     "2000",
		TradeFeeBps:   200,
		CreatorFeeBps: 50,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, decoded.Error)
	var stats platformStatsResult
	resultInto(t, decoded, &stats)
	require.Equal(t, "2000", stats.CreateFee)
	require.Equal(t, uint32(200), stats.TradeFeeBps)
}

func TestUnknownMethod(t *testing.T) {
	server, _ := newTestServer(t)
	resp, decoded := rpcCall(t, server.Router(), "", "market_noSuchMethod", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.NotNil(t, decoded.Error)
	require.Equal(t, codeMethodNotFound, decoded.Error.Code)
}

func TestMalformedRequests(t *testing.T) {
	server, _ := newTestServer(t)
	handler := server.Router()

	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(nil))
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	req = httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader([]byte("{not json")))
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	body := fmt.Sprintf(`{"jsonrpc":"1.0","id":1,"method":%q}`, "market_getPlatformStats")
	req = httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader([]byte(body)))
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}
