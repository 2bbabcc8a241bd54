package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"tranchepool/native/pool"
	"tranchepool/storage"
)

const (
	adminToken = "test-admin-token"
	jwtSecret  = "test-jwt-secret"
	adminAddr  = "0x0000000000000000000000000000000000000001"
	treasury   = "0x0000000000000000000000000000000000000002"
	borrower   = "0x0000000000000000000000000000000000000003"
	investor   = "0x0000000000000000000000000000000000000004"
	vaultHex   = "0x0000000000000000000000000000000000000010"
)

type fixture struct {
	server *Server
	tokens *storage.Tokens
	now    int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storage.NewStore(storage.NewMemDB())
	f := &fixture{
		tokens: store.Tokens(),
		now:    1_700_000_000,
	}
	engine := pool.NewEngine()
	engine.SetState(store.State())
	engine.SetTokens(store.Tokens())
	engine.SetNowFunc(func() int64 { return f.now })
	f.server = NewServer(engine, store, ServerConfig{
		AdminToken:     adminToken,
		AdminJWTSecret: jwtSecret,
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
	}, nil)
	return f
}

func (f *fixture) call(t *testing.T, method string, params interface{}, bearer string) RPCResponse {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	body, err := json.Marshal(RPCRequest{
		JSONRPC: jsonRPCVersion,
		Method:  method,
		Params:  []json.RawMessage{raw},
		ID:      1,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	f.server.Handle(rec, req)

	var resp RPCResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func (f *fixture) mustCall(t *testing.T, method string, params interface{}, bearer string) json.RawMessage {
	t.Helper()
	resp := f.call(t, method, params, bearer)
	require.Nil(t, resp.Error, "method %s: %+v", method, resp.Error)
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	return raw
}

func (f *fixture) bootstrap(t *testing.T) {
	t.Helper()
	f.mustCall(t, "config_init", map[string]interface{}{
		"caller":              adminAddr,
		"treasury":            treasury,
		"platformFeeBps":      200,
		"seniorExitBeforeBps": 100,
		"seniorExitAfterBps":  150,
		"juniorExitBeforeBps": 100,
		"minJuniorRatioBps":   2000,
	}, adminToken)
	f.mustCall(t, "config_setAsset", map[string]interface{}{
		"caller":    adminAddr,
		"asset":     "usdx",
		"supported": true,
	}, adminToken)
}

func (f *fixture) createPoolParams() map[string]interface{} {
	return map[string]interface{}{
		"caller":                 borrower,
		"id":                     "pool-1",
		"name":                   "bridge loan",
		"asset":                  "usdx",
		"totalAmount":            "100000",
		"minAmount":              "5000",
		"fundingStart":           f.now,
		"fundingEnd":             f.now + 30*86_400,
		"repaymentRateBps":       500,
		"seniorFixedRateBps":     800,
		"repaymentPeriodSeconds": 30 * 86_400,
		"repaymentCount":         10,
	}
}

func TestAdminMethodRequiresBearer(t *testing.T) {
	f := newFixture(t)
	resp := f.call(t, "config_init", map[string]interface{}{
		"caller":   adminAddr,
		"treasury": treasury,
	}, "")
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	resp = f.call(t, "config_init", map[string]interface{}{
		"caller":   adminAddr,
		"treasury": treasury,
	}, "wrong-token")
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)
}

func TestAdminJWTWithAdminScope(t *testing.T) {
	f := newFixture(t)
	claims := jwt.MapClaims{
		"scope": "admin",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	require.NoError(t, err)

	f.mustCall(t, "config_init", map[string]interface{}{
		"caller":              adminAddr,
		"treasury":            treasury,
		"platformFeeBps":      200,
		"seniorExitBeforeBps": 100,
		"seniorExitAfterBps":  150,
		"juniorExitBeforeBps": 100,
		"minJuniorRatioBps":   2000,
	}, signed)

	// A token without the admin scope is rejected.
	claims["scope"] = "read"
	unscoped, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	resp := f.call(t, "config_pause", map[string]interface{}{"caller": adminAddr}, unscoped)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)
}

func TestPoolLifecycleOverRPC(t *testing.T) {
	f := newFixture(t)
	f.bootstrap(t)

	f.mustCall(t, "pool_create", f.createPoolParams(), "")
	f.mustCall(t, "pool_approve", map[string]interface{}{"caller": adminAddr, "id": "pool-1"}, adminToken)
	f.mustCall(t, "pool_activate", map[string]interface{}{
		"caller":     adminAddr,
		"id":         "pool-1",
		"vault":      vaultHex,
		"yieldToken": "snr-pool-1",
	}, adminToken)

	investorBin, err := parseAddress(investor)
	require.NoError(t, err)
	require.NoError(t, f.tokens.Mint("usdx", investorBin, 70_000))
	f.mustCall(t, "pool_subscribe", map[string]interface{}{
		"caller":  investor,
		"id":      "pool-1",
		"tranche": "senior",
		"amount":  "70000",
	}, "")

	var view PoolView
	raw := f.mustCall(t, "pool_get", map[string]interface{}{"id": "pool-1"}, "")
	require.NoError(t, json.Unmarshal(raw, &view))
	require.Equal(t, "funding", view.Status)
	require.Equal(t, "70000", view.SeniorAmount)
	require.Equal(t, vaultHex, view.Vault)

	var sub SubscriptionView
	raw = f.mustCall(t, "pool_subscription", map[string]interface{}{
		"id":       "pool-1",
		"investor": investor,
		"tranche":  "senior",
	}, "")
	require.NoError(t, json.Unmarshal(raw, &sub))
	require.Equal(t, "70000", sub.Amount)
	require.Equal(t, "pending", sub.Status)

	var balance tokenBalanceResult
	raw = f.mustCall(t, "token_balance", map[string]interface{}{
		"token":   "usdx",
		"address": vaultHex,
	}, "")
	require.NoError(t, json.Unmarshal(raw, &balance))
	require.Equal(t, "70000", balance.Balance)
}

func TestEngineRejectionsKeepSentinelMessages(t *testing.T) {
	f := newFixture(t)
	f.bootstrap(t)

	params := f.createPoolParams()
	params["asset"] = "unlisted"
	resp := f.call(t, "pool_create", params, "")
	require.NotNil(t, resp.Error)
	require.Equal(t, codeEngineError, resp.Error.Code)
	require.Equal(t, pool.ErrAssetNotSupported.Error(), resp.Error.Message)
}

func TestInvalidEnvelopeAndMethod(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	f.server.Handle(rec, req)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	resp := f.call(t, "pool_unknown", map[string]interface{}{}, "")
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestRateLimitPerClient(t *testing.T) {
	f := newFixture(t)
	f.server.limitRPS = 1
	f.server.limitBurst = 2

	var limited bool
	for i := 0; i < 5; i++ {
		resp := f.call(t, "pool_get", map[string]interface{}{"id": fmt.Sprintf("p-%d", i)}, "")
		if resp.Error != nil && resp.Error.Code == codeRateLimited {
			limited = true
			break
		}
	}
	require.True(t, limited, "expected the limiter to trip within the burst window")
}
