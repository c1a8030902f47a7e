package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"thousandx/native/market"
	"thousandx/observability/logging"
	"thousandx/observability/metrics"
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
	codeNotFound       = -32004
)

// Server exposes the market engine over JSON-RPC.
type Server struct {
	engine    *market.Engine
	log       *slog.Logger
	authToken string
	metrics   *metrics.MarketMetrics
}

// NewServer wires a market engine into an RPC server. When authToken is empty
// the THOUSANDX_RPC_TOKEN environment variable is consulted; with no token
// configured every mutating method is rejected.
func NewServer(engine *market.Engine, log *slog.Logger, authToken string) *Server {
	token := strings.TrimSpace(authToken)
	if token == "" {
		token = strings.TrimSpace(os.Getenv("THOUSANDX_RPC_TOKEN"))
	}
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		engine:    engine,
		log:       log,
		authToken: token,
		metrics:   metrics.Market(),
	}
}

// Router assembles the HTTP surface: the JSON-RPC endpoint plus health and
// metrics probes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/rpc", s.handle)
	return r
}

// Start serves the router on addr until the listener fails.
func (s *Server) Start(addr string) error {
	s.log.Info("starting JSON-RPC server",
		slog.String("addr", addr),
		logging.MaskField("authToken", s.authToken),
	)
	return http.ListenAndServe(addr, s.Router())
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
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

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	switch req.Method {
	case "market_createToken":
		if authErr := s.requireAuth(r); authErr != nil {
			s.observe(req.Method, "unauthorized")
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleCreateToken(w, r, req)
	case "market_buy":
		if authErr := s.requireAuth(r); authErr != nil {
			s.observe(req.Method, "unauthorized")
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleBuy(w, r, req)
	case "market_sell":
		if authErr := s.requireAuth(r); authErr != nil {
			s.observe(req.Method, "unauthorized")
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleSell(w, r, req)
	case "market_setPlatformFees":
		if authErr := s.requireAuth(r); authErr != nil {
			s.observe(req.Method, "unauthorized")
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleSetPlatformFees(w, r, req)
	case "market_emergencyWithdraw":
		if authErr := s.requireAuth(r); authErr != nil {
			s.observe(req.Method, "unauthorized")
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleEmergencyWithdraw(w, r, req)
	case "market_getPlatformStats":
		s.handleGetPlatformStats(w, r, req)
	case "market_getCreatorStats":
		s.handleGetCreatorStats(w, r, req)
	case "market_getDeployedTokens":
		s.handleGetDeployedTokens(w, r, req)
	case "market_getToken":
		s.handleGetToken(w, r, req)
	case "market_getBalance":
		s.handleGetBalance(w, r, req)
	case "market_quote":
		s.handleQuote(w, r, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %s", req.Method), nil)
	}
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

func (s *Server) observe(method, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveRPCRequest(method, outcome)
	}
}

// writeEngineError maps engine sentinels onto JSON-RPC error codes so clients
// can react to failures without parsing messages.
func (s *Server) writeEngineError(w http.ResponseWriter, method string, id interface{}, err error) {
	s.observe(method, "error")
	switch {
	case errors.Is(err, market.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, id, codeUnauthorized, "caller is not authorized", err.Error())
	case errors.Is(err, market.ErrUnknownToken):
		writeError(w, http.StatusNotFound, id, codeNotFound, "token is not registered", err.Error())
	case errors.Is(err, market.ErrInvalidFeeConfig),
		errors.Is(err, market.ErrInsufficientFee),
		errors.Is(err, market.ErrInsufficientPayment),
		errors.Is(err, market.ErrInsufficientFunds),
		errors.Is(err, market.ErrSlippageExceeded),
		errors.Is(err, market.ErrInsufficientLiquidity),
		errors.Is(err, market.ErrAmountOverflow),
		errors.Is(err, market.ErrInvalidAddress):
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, err.Error(), nil)
	default:
		s.log.Error("rpc request failed", "method", method, "err", err)
		writeError(w, http.StatusInternalServerError, id, codeServerError, "internal error", err.Error())
	}
}
