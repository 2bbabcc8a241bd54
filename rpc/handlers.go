package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"tranchepool/native/pool"
)

type handlerFunc func(params []json.RawMessage) (interface{}, *RPCError)

// readMethods lists the methods that never mutate state; everything else is
// dispatched through Store.Update so its writes commit atomically.
var readMethods = map[string]bool{
	"pool_get":          true,
	"pool_subscription": true,
	"pool_position":     true,
	"pool_repayment":    true,
	"pool_ledgers":      true,
	"token_balance":     true,
}

// adminMethods lists the methods that require the admin bearer credential.
var adminMethods = map[string]bool{
	"config_init":               true,
	"config_updateAdmin":        true,
	"config_updateFeeRate":      true,
	"config_setTreasury":        true,
	"config_setAsset":           true,
	"config_pause":              true,
	"config_unpause":            true,
	"pool_approve":              true,
	"pool_activate":             true,
	"pool_completeFunding":      true,
	"pool_distributeSenior":     true,
	"pool_distributeJunior":     true,
	"pool_finalizeDistribution": true,
	"pool_cancel":               true,
}

func (s *Server) routes() map[string]handlerFunc {
	return map[string]handlerFunc{
		"config_init":               s.handleConfigInit,
		"config_updateAdmin":        s.handleUpdateAdmin,
		"config_updateFeeRate":      s.handleUpdateFeeRate,
		"config_setTreasury":        s.handleSetTreasury,
		"config_setAsset":           s.handleSetAsset,
		"config_pause":              s.handlePause,
		"config_unpause":            s.handleUnpause,
		"pool_create":               s.handleCreatePool,
		"pool_approve":              s.handleApprovePool,
		"pool_activate":             s.handleActivatePool,
		"pool_subscribe":            s.handleSubscribe,
		"pool_withdrawSubscription": s.handleWithdrawSubscription,
		"pool_completeFunding":      s.handleCompleteFunding,
		"pool_distributeSenior":     s.handleDistributeSenior,
		"pool_distributeJunior":     s.handleDistributeJunior,
		"pool_finalizeDistribution": s.handleFinalizeDistribution,
		"pool_processRefund":        s.handleProcessRefund,
		"pool_cancel":               s.handleCancelPool,
		"pool_repay":                s.handleRepay,
		"pool_claimInterest":        s.handleClaimInterest,
		"pool_withdrawPrincipal":    s.handleWithdrawPrincipal,
		"pool_exitSenior":           s.handleExitSenior,
		"pool_get":                  s.handleGetPool,
		"pool_subscription":         s.handleGetSubscription,
		"pool_position":             s.handleGetPosition,
		"pool_repayment":            s.handleGetRepayment,
		"pool_ledgers":              s.handleGetLedgers,
		"token_balance":             s.handleTokenBalance,
	}
}

// --- codec helpers ---

func decodeParams(params []json.RawMessage, out interface{}) *RPCError {
	if len(params) != 1 {
		return &RPCError{Code: codeInvalidParams, Message: "expected a single params object"}
	}
	if err := json.Unmarshal(params[0], out); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
	}
	return nil
}

func parseAddress(s string) ([20]byte, error) {
	var addr [20]byte
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") || len(s) != 42 {
		return addr, fmt.Errorf("address must be 0x-prefixed 20-byte hex")
	}
	raw, err := hex.DecodeString(s[2:])
	if err != nil {
		return addr, fmt.Errorf("invalid address hex: %w", err)
	}
	copy(addr[:], raw)
	return addr, nil
}

func formatAddress(a [20]byte) string {
	return "0x" + hex.EncodeToString(a[:])
}

func parseAmount(s string) (uint64, error) {
	value, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("amount must be a decimal string: %w", err)
	}
	return value, nil
}

func parseTranche(s string) (pool.Tranche, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "senior":
		return pool.TrancheSenior, nil
	case "junior":
		return pool.TrancheJunior, nil
	default:
		return 0, fmt.Errorf("tranche must be senior or junior")
	}
}

func parseAdminRole(s string) (pool.AdminRole, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "super_admin":
		return pool.RoleSuperAdmin, nil
	case "system_admin":
		return pool.RoleSystemAdmin, nil
	case "treasury_admin":
		return pool.RoleTreasuryAdmin, nil
	case "operation_admin":
		return pool.RoleOperationAdmin, nil
	default:
		return 0, fmt.Errorf("unknown admin role %q", s)
	}
}

func parseFeeKind(s string) (pool.FeeKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "platform":
		return pool.FeePlatform, nil
	case "senior_exit_before":
		return pool.FeeSeniorExitBefore, nil
	case "senior_exit_after":
		return pool.FeeSeniorExitAfter, nil
	case "junior_exit_before":
		return pool.FeeJuniorExitBefore, nil
	default:
		return 0, fmt.Errorf("unknown fee kind %q", s)
	}
}

func paramError(err error) *RPCError {
	return &RPCError{Code: codeInvalidParams, Message: err.Error()}
}

// engineError maps an engine rejection onto an RPC error code, keeping the
// sentinel message so callers can tell permanent parameter failures apart
// from state- or time-gated ones.
func engineError(err error) *RPCError {
	if errors.Is(err, pool.ErrUnauthorized) {
		return &RPCError{Code: codeUnauthorized, Message: err.Error()}
	}
	return &RPCError{Code: codeEngineError, Message: err.Error()}
}

type ackResult struct {
	OK bool `json:"ok"`
}

var ackOK = ackResult{OK: true}

// --- config methods ---

type configInitParams struct {
	Caller              string `json:"caller"`
	Treasury            string `json:"treasury"`
	PlatformFeeBps      uint16 `json:"platformFeeBps"`
	SeniorExitBeforeBps uint16 `json:"seniorExitBeforeBps"`
	SeniorExitAfterBps  uint16 `json:"seniorExitAfterBps"`
	JuniorExitBeforeBps uint16 `json:"juniorExitBeforeBps"`
	MinJuniorRatioBps   uint16 `json:"minJuniorRatioBps"`
}

func (s *Server) handleConfigInit(params []json.RawMessage) (interface{}, *RPCError) {
	var p configInitParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		return nil, paramError(err)
	}
	treasury, err := parseAddress(p.Treasury)
	if err != nil {
		return nil, paramError(err)
	}
	if err := s.engine.InitializeConfig(caller, treasury, p.PlatformFeeBps, p.SeniorExitBeforeBps, p.SeniorExitAfterBps, p.JuniorExitBeforeBps, p.MinJuniorRatioBps); err != nil {
		return nil, engineError(err)
	}
	return ackOK, nil
}

type updateAdminParams struct {
	Caller string `json:"caller"`
	Role   string `json:"role"`
	Admin  string `json:"admin"`
}

func (s *Server) handleUpdateAdmin(params []json.RawMessage) (interface{}, *RPCError) {
	var p updateAdminParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		return nil, paramError(err)
	}
	role, err := parseAdminRole(p.Role)
	if err != nil {
		return nil, paramError(err)
	}
	admin, err := parseAddress(p.Admin)
	if err != nil {
		return nil, paramError(err)
	}
	if err := s.engine.UpdateAdmin(caller, role, admin); err != nil {
		return nil, engineError(err)
	}
	return ackOK, nil
}

type updateFeeRateParams struct {
	Caller  string `json:"caller"`
	Kind    string `json:"kind"`
	RateBps uint16 `json:"rateBps"`
}

func (s *Server) handleUpdateFeeRate(params []json.RawMessage) (interface{}, *RPCError) {
	var p updateFeeRateParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		return nil, paramError(err)
	}
	kind, err := parseFeeKind(p.Kind)
	if err != nil {
		return nil, paramError(err)
	}
	if err := s.engine.UpdateFeeRate(caller, kind, p.RateBps); err != nil {
		return nil, engineError(err)
	}
	return ackOK, nil
}

type setTreasuryParams struct {
	Caller   string `json:"caller"`
	Treasury string `json:"treasury"`
}

func (s *Server) handleSetTreasury(params []json.RawMessage) (interface{}, *RPCError) {
	var p setTreasuryParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		return nil, paramError(err)
	}
	treasury, err := parseAddress(p.Treasury)
	if err != nil {
		return nil, paramError(err)
	}
	if err := s.engine.SetTreasury(caller, treasury); err != nil {
		return nil, engineError(err)
	}
	return ackOK, nil
}

type setAssetParams struct {
	Caller    string `json:"caller"`
	Asset     string `json:"asset"`
	Supported bool   `json:"supported"`
}

func (s *Server) handleSetAsset(params []json.RawMessage) (interface{}, *RPCError) {
	var p setAssetParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		return nil, paramError(err)
	}
	if err := s.engine.SetAssetSupported(caller, p.Asset, p.Supported); err != nil {
		return nil, engineError(err)
	}
	return ackOK, nil
}

type callerParams struct {
	Caller string `json:"caller"`
}

func (s *Server) handlePause(params []json.RawMessage) (interface{}, *RPCError) {
	var p callerParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		return nil, paramError(err)
	}
	if err := s.engine.Pause(caller); err != nil {
		return nil, engineError(err)
	}
	return ackOK, nil
}

func (s *Server) handleUnpause(params []json.RawMessage) (interface{}, *RPCError) {
	var p callerParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		return nil, paramError(err)
	}
	if err := s.engine.Unpause(caller); err != nil {
		return nil, engineError(err)
	}
	return ackOK, nil
}

// --- pool lifecycle methods ---

type createPoolParams struct {
	Caller             string `json:"caller"`
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Asset              string `json:"asset"`
	TotalAmount        string `json:"totalAmount"`
	MinAmount          string `json:"minAmount"`
	FundingStart       int64  `json:"fundingStart"`
	FundingEnd         int64  `json:"fundingEnd"`
	RepaymentRateBps   uint16 `json:"repaymentRateBps"`
	SeniorFixedRateBps uint16 `json:"seniorFixedRateBps"`
	RepaymentPeriod    int64  `json:"repaymentPeriodSeconds"`
	RepaymentCount     uint64 `json:"repaymentCount"`
}

func (s *Server) handleCreatePool(params []json.RawMessage) (interface{}, *RPCError) {
	var p createPoolParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		return nil, paramError(err)
	}
	total, err := parseAmount(p.TotalAmount)
	if err != nil {
		return nil, paramError(err)
	}
	min, err := parseAmount(p.MinAmount)
	if err != nil {
		return nil, paramError(err)
	}
	created, err := s.engine.CreatePool(caller, pool.CreatePoolParams{
		ID:                 p.ID,
		Name:               p.Name,
		Asset:              p.Asset,
		TotalAmount:        total,
		MinAmount:          min,
		FundingStart:       p.FundingStart,
		FundingEnd:         p.FundingEnd,
		RepaymentRateBps:   p.RepaymentRateBps,
		SeniorFixedRateBps: p.SeniorFixedRateBps,
		RepaymentPeriod:    p.RepaymentPeriod,
		RepaymentCount:     p.RepaymentCount,
	})
	if err != nil {
		return nil, engineError(err)
	}
	return poolView(created), nil
}

type poolIDParams struct {
	Caller string `json:"caller"`
	ID     string `json:"id"`
}

func (s *Server) handleApprovePool(params []json.RawMessage) (interface{}, *RPCError) {
	var p poolIDParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		return nil, paramError(err)
	}
	if err := s.engine.ApprovePool(caller, p.ID); err != nil {
		return nil, engineError(err)
	}
	return ackOK, nil
}

type activatePoolParams struct {
	Caller     string `json:"caller"`
	ID         string `json:"id"`
	Vault      string `json:"vault"`
	YieldToken string `json:"yieldToken"`
}

func (s *Server) handleActivatePool(params []json.RawMessage) (interface{}, *RPCError) {
	var p activatePoolParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		return nil, paramError(err)
	}
	vault, err := parseAddress(p.Vault)
	if err != nil {
		return nil, paramError(err)
	}
	if err := s.engine.ActivatePool(caller, p.ID, vault, p.YieldToken); err != nil {
		return nil, engineError(err)
	}
	return ackOK, nil
}

type subscribeParams struct {
	Caller  string `json:"caller"`
	ID      string `json:"id"`
	Tranche string `json:"tranche"`
	Amount  string `json:"amount"`
}

func (s *Server) handleSubscribe(params []json.RawMessage) (interface{}, *RPCError) {
	var p subscribeParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		return nil, paramError(err)
	}
	tranche, err := parseTranche(p.Tranche)
	if err != nil {
		return nil, paramError(err)
	}
	amount, err := parseAmount(p.Amount)
	if err != nil {
		return nil, paramError(err)
	}
	if err := s.engine.Subscribe(caller, p.ID, tranche, amount); err != nil {
		return nil, engineError(err)
	}
	return ackOK, nil
}

func (s *Server) handleWithdrawSubscription(params []json.RawMessage) (interface{}, *RPCError) {
	var p subscribeParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		return nil, paramError(err)
	}
	tranche, err := parseTranche(p.Tranche)
	if err != nil {
		return nil, paramError(err)
	}
	amount, err := parseAmount(p.Amount)
	if err != nil {
		return nil, paramError(err)
	}
	if err := s.engine.WithdrawSubscription(caller, p.ID, tranche, amount); err != nil {
		return nil, engineError(err)
	}
	return ackOK, nil
}

func (s *Server) handleCompleteFunding(params []json.RawMessage) (interface{}, *RPCError) {
	var p poolIDParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		return nil, paramError(err)
	}
	if err := s.engine.CompleteFunding(caller, p.ID); err != nil {
		return nil, engineError(err)
	}
	return ackOK, nil
}

type distributeParams struct {
	Caller     string `json:"caller"`
	ID         string `json:"id"`
	Investor   string `json:"investor"`
	PositionID uint64 `json:"positionId"`
}

func (s *Server) handleDistributeSenior(params []json.RawMessage) (interface{}, *RPCError) {
	var p distributeParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		return nil, paramError(err)
	}
	investor, err := parseAddress(p.Investor)
	if err != nil {
		return nil, paramError(err)
	}
	if err := s.engine.DistributeSeniorToken(caller, p.ID, investor); err != nil {
		return nil, engineError(err)
	}
	return ackOK, nil
}

func (s *Server) handleDistributeJunior(params []json.RawMessage) (interface{}, *RPCError) {
	var p distributeParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		return nil, paramError(err)
	}
	investor, err := parseAddress(p.Investor)
	if err != nil {
		return nil, paramError(err)
	}
	if err := s.engine.DistributeJuniorPosition(caller, p.ID, investor, p.PositionID); err != nil {
		return nil, engineError(err)
	}
	return ackOK, nil
}

type finalizeParams struct {
	Caller      string `json:"caller"`
	ID          string `json:"id"`
	SeniorCount uint64 `json:"seniorCount"`
	JuniorCount uint64 `json:"juniorCount"`
}

func (s *Server) handleFinalizeDistribution(params []json.RawMessage) (interface{}, *RPCError) {
	var p finalizeParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		return nil, paramError(err)
	}
	if err := s.engine.FinalizeDistribution(caller, p.ID, p.SeniorCount, p.JuniorCount); err != nil {
		return nil, engineError(err)
	}
	return ackOK, nil
}

type refundParams struct {
	Caller   string `json:"caller"`
	ID       string `json:"id"`
	Investor string `json:"investor"`
	Tranche  string `json:"tranche"`
}

func (s *Server) handleProcessRefund(params []json.RawMessage) (interface{}, *RPCError) {
	var p refundParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		return nil, paramError(err)
	}
	investor, err := parseAddress(p.Investor)
	if err != nil {
		return nil, paramError(err)
	}
	tranche, err := parseTranche(p.Tranche)
	if err != nil {
		return nil, paramError(err)
	}
	if err := s.engine.ProcessRefund(caller, p.ID, investor, tranche); err != nil {
		return nil, engineError(err)
	}
	return ackOK, nil
}

func (s *Server) handleCancelPool(params []json.RawMessage) (interface{}, *RPCError) {
	var p poolIDParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		return nil, paramError(err)
	}
	if err := s.engine.CancelPool(caller, p.ID); err != nil {
		return nil, engineError(err)
	}
	return ackOK, nil
}

// --- waterfall / positions / exit methods ---

type repayParams struct {
	Caller string `json:"caller"`
	ID     string `json:"id"`
	Amount string `json:"amount"`
	Period uint64 `json:"period"`
}

func (s *Server) handleRepay(params []json.RawMessage) (interface{}, *RPCError) {
	var p repayParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		return nil, paramError(err)
	}
	amount, err := parseAmount(p.Amount)
	if err != nil {
		return nil, paramError(err)
	}
	if err := s.engine.Repay(caller, p.ID, amount, p.Period); err != nil {
		return nil, engineError(err)
	}
	return ackOK, nil
}

type positionParams struct {
	Caller     string `json:"caller"`
	ID         string `json:"id"`
	PositionID uint64 `json:"positionId"`
}

type payoutResult struct {
	Amount string `json:"amount"`
}

func (s *Server) handleClaimInterest(params []json.RawMessage) (interface{}, *RPCError) {
	var p positionParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		return nil, paramError(err)
	}
	claimed, err := s.engine.ClaimInterest(caller, p.ID, p.PositionID)
	if err != nil {
		return nil, engineError(err)
	}
	return payoutResult{Amount: strconv.FormatUint(claimed, 10)}, nil
}

func (s *Server) handleWithdrawPrincipal(params []json.RawMessage) (interface{}, *RPCError) {
	var p positionParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		return nil, paramError(err)
	}
	paid, err := s.engine.WithdrawPrincipal(caller, p.ID, p.PositionID)
	if err != nil {
		return nil, engineError(err)
	}
	return payoutResult{Amount: strconv.FormatUint(paid, 10)}, nil
}

type exitParams struct {
	Caller string `json:"caller"`
	ID     string `json:"id"`
	Amount string `json:"amount"`
}

func (s *Server) handleExitSenior(params []json.RawMessage) (interface{}, *RPCError) {
	var p exitParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		return nil, paramError(err)
	}
	amount, err := parseAmount(p.Amount)
	if err != nil {
		return nil, paramError(err)
	}
	paid, err := s.engine.ExitSenior(caller, p.ID, amount)
	if err != nil {
		return nil, engineError(err)
	}
	return payoutResult{Amount: strconv.FormatUint(paid, 10)}, nil
}
