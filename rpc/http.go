package rpc

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"tranchepool/native/pool"
	"tranchepool/storage"
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
	codeEngineError    = -32030
	codeRateLimited    = -32020
)

// Server exposes the pool engine over JSON-RPC 2.0 on a single endpoint.
// Admin methods require a bearer token; every request is rate limited per
// client address and logged under a generated request id. Mutating methods
// run through Store.Update, which serializes engine operations and commits
// each one's writes as a single atomic batch; reads run through Store.View
// for a consistent snapshot.
type Server struct {
	engine *pool.Engine
	store  *storage.Store
	state  *storage.State
	tokens *storage.Tokens
	logger *slog.Logger
	auth   *Authenticator

	limitRPS   rate.Limit
	limitBurst int
	mu         sync.Mutex
	visitors   map[string]*rate.Limiter
}

// ServerConfig carries the RPC server settings.
type ServerConfig struct {
	AdminToken     string
	AdminJWTSecret string
	RateLimitRPS   int
	RateLimitBurst int
}

// NewServer wires the handler around an engine and the store backing it.
func NewServer(engine *pool.Engine, store *storage.Store, cfg ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 20
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 2 * cfg.RateLimitRPS
	}
	return &Server{
		engine:     engine,
		store:      store,
		state:      store.State(),
		tokens:     store.Tokens(),
		logger:     logger,
		auth:       NewAuthenticator(cfg.AdminToken, cfg.AdminJWTSecret),
		limitRPS:   rate.Limit(cfg.RateLimitRPS),
		limitBurst: cfg.RateLimitBurst,
		visitors:   make(map[string]*rate.Limiter),
	}
}

// Start serves the RPC endpoint until the listener fails.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.Handle)
	s.logger.Info("starting JSON-RPC server", "addr", addr)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
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

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) limiter(client string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, ok := s.visitors[client]
	if !ok {
		limiter = rate.NewLimiter(s.limitRPS, s.limitBurst)
		s.visitors[client] = limiter
	}
	return limiter
}

// errAborted signals Store.Update that the handler rejected the request, so
// the staged batch is discarded without masking the handler's own error.
var errAborted = errors.New("rpc: operation aborted")

// dispatch runs the handler under the store's concurrency contract: reads take
// a consistent snapshot, mutations are serialized and commit atomically.
func (s *Server) dispatch(method string, handler handlerFunc, params []json.RawMessage) (interface{}, *RPCError) {
	var result interface{}
	var rpcErr *RPCError
	invoke := func() error {
		result, rpcErr = handler(params)
		if rpcErr != nil {
			return errAborted
		}
		return nil
	}
	if readMethods[method] {
		_ = s.store.View(invoke)
		return result, rpcErr
	}
	if err := s.store.Update(invoke); err != nil && rpcErr == nil {
		return nil, &RPCError{Code: codeServerError, Message: "state commit failed"}
	}
	return result, rpcErr
}

// Handle processes one JSON-RPC request.
func (s *Server) Handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "POST required")
		return
	}
	client := clientAddr(r)
	if !s.limiter(client).Allow() {
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "unable to read request body")
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload")
		return
	}
	if req.JSONRPC != jsonRPCVersion || strings.TrimSpace(req.Method) == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "invalid request envelope")
		return
	}

	requestID := uuid.NewString()
	logger := s.logger.With("request_id", requestID, "method", req.Method, "client", client)

	handler, ok := s.routes()[req.Method]
	if !ok {
		logger.Warn("unknown method")
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found")
		return
	}
	if adminMethods[req.Method] {
		if err := s.auth.Authorize(r); err != nil {
			logger.Warn("unauthorized admin call", "error", err)
			writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "unauthorized")
			return
		}
	}

	result, rpcErr := s.dispatch(req.Method, handler, req.Params)
	if rpcErr != nil {
		logger.Warn("request failed", "code", rpcErr.Code, "error", rpcErr.Message)
		writeError(w, http.StatusOK, req.ID, rpcErr.Code, rpcErr.Message)
		return
	}
	logger.Info("request completed")
	writeResult(w, req.ID, result)
}
