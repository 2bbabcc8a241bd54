package rpc

import (
	"encoding/json"
	"strconv"

	"tranchepool/native/pool"
)

// PoolView is the wire shape of a pool record: hex addresses, decimal string
// amounts, lower-case status names.
type PoolView struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Status              string `json:"status"`
	Asset               string `json:"asset"`
	Vault               string `json:"vault"`
	Treasury            string `json:"treasury"`
	YieldToken          string `json:"yieldToken"`
	PlatformFeeBps      uint16 `json:"platformFeeBps"`
	SeniorExitBeforeBps uint16 `json:"seniorExitBeforeBps"`
	SeniorExitAfterBps  uint16 `json:"seniorExitAfterBps"`
	JuniorExitBeforeBps uint16 `json:"juniorExitBeforeBps"`
	MinJuniorRatioBps   uint16 `json:"minJuniorRatioBps"`
	RepaymentRateBps    uint16 `json:"repaymentRateBps"`
	SeniorFixedRateBps  uint16 `json:"seniorFixedRateBps"`
	RepaymentPeriod     int64  `json:"repaymentPeriodSeconds"`
	RepaymentCount      uint64 `json:"repaymentCount"`
	TotalAmount         string `json:"totalAmount"`
	MinAmount           string `json:"minAmount"`
	FundingStart        int64  `json:"fundingStart"`
	FundingEnd          int64  `json:"fundingEnd"`
	SeniorAmount        string `json:"seniorAmount"`
	JuniorAmount        string `json:"juniorAmount"`
	RepaidAmount        string `json:"repaidAmount"`
	Creator             string `json:"creator"`
	CreatedAt           int64  `json:"createdAt"`
	LedgersInitialized  bool   `json:"ledgersInitialized"`
}

func formatAmount(v uint64) string { return strconv.FormatUint(v, 10) }

func poolView(p *pool.Pool) PoolView {
	return PoolView{
		ID:                  p.ID,
		Name:                p.Name,
		Status:              p.Status.String(),
		Asset:               p.Asset,
		Vault:               formatAddress(p.Vault),
		Treasury:            formatAddress(p.Treasury),
		YieldToken:          p.YieldToken,
		PlatformFeeBps:      p.PlatformFeeBps,
		SeniorExitBeforeBps: p.SeniorExitBeforeBps,
		SeniorExitAfterBps:  p.SeniorExitAfterBps,
		JuniorExitBeforeBps: p.JuniorExitBeforeBps,
		MinJuniorRatioBps:   p.MinJuniorRatioBps,
		RepaymentRateBps:    p.RepaymentRateBps,
		SeniorFixedRateBps:  p.SeniorFixedRateBps,
		RepaymentPeriod:     p.RepaymentPeriod,
		RepaymentCount:      p.RepaymentCount,
		TotalAmount:         formatAmount(p.TotalAmount),
		MinAmount:           formatAmount(p.MinAmount),
		FundingStart:        p.FundingStart,
		FundingEnd:          p.FundingEnd,
		SeniorAmount:        formatAmount(p.SeniorAmount),
		JuniorAmount:        formatAmount(p.JuniorAmount),
		RepaidAmount:        formatAmount(p.RepaidAmount),
		Creator:             formatAddress(p.Creator),
		CreatedAt:           p.CreatedAt,
		LedgersInitialized:  p.LedgersInitialized,
	}
}

type SubscriptionView struct {
	PoolID       string `json:"poolId"`
	Investor     string `json:"investor"`
	Tranche      string `json:"tranche"`
	Amount       string `json:"amount"`
	Status       string `json:"status"`
	SubscribedAt int64  `json:"subscribedAt"`
}

type PositionView struct {
	ID                 uint64 `json:"id"`
	PoolID             string `json:"poolId"`
	Owner              string `json:"owner"`
	Principal          string `json:"principal"`
	ClaimedInterest    string `json:"claimedInterest"`
	PrincipalWithdrawn bool   `json:"principalWithdrawn"`
	CreatedAt          int64  `json:"createdAt"`
}

type RepaymentView struct {
	PoolID   string `json:"poolId"`
	Period   uint64 `json:"period"`
	Amount   string `json:"amount"`
	RepaidAt int64  `json:"repaidAt"`
}

// LedgersView bundles the three sub-ledgers of one pool.
type LedgersView struct {
	SeniorDeposits      string `json:"seniorDeposits"`
	SeniorRepaid        string `json:"seniorRepaid"`
	FirstLossDeposits   string `json:"firstLossDeposits"`
	FirstLossRepaid     string `json:"firstLossRepaid"`
	JuniorInterestTotal string `json:"juniorInterestTotal"`
	JuniorDistributed   string `json:"juniorDistributed"`
}

var errNotFoundRPC = &RPCError{Code: codeEngineError, Message: "record not found"}

type getPoolParams struct {
	ID string `json:"id"`
}

func (s *Server) handleGetPool(params []json.RawMessage) (interface{}, *RPCError) {
	var p getPoolParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	record, ok, err := s.state.GetPool(p.ID)
	if err != nil {
		return nil, &RPCError{Code: codeServerError, Message: err.Error()}
	}
	if !ok {
		return nil, errNotFoundRPC
	}
	return poolView(record), nil
}

type getSubscriptionParams struct {
	ID       string `json:"id"`
	Investor string `json:"investor"`
	Tranche  string `json:"tranche"`
}

func (s *Server) handleGetSubscription(params []json.RawMessage) (interface{}, *RPCError) {
	var p getSubscriptionParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	investor, err := parseAddress(p.Investor)
	if err != nil {
		return nil, paramError(err)
	}
	tranche, err := parseTranche(p.Tranche)
	if err != nil {
		return nil, paramError(err)
	}
	sub, ok, err := s.state.GetSubscription(p.ID, investor, tranche)
	if err != nil {
		return nil, &RPCError{Code: codeServerError, Message: err.Error()}
	}
	if !ok {
		return nil, errNotFoundRPC
	}
	return SubscriptionView{
		PoolID:       sub.PoolID,
		Investor:     formatAddress(sub.Investor),
		Tranche:      sub.Tranche.String(),
		Amount:       formatAmount(sub.Amount),
		Status:       sub.Status.String(),
		SubscribedAt: sub.SubscribedAt,
	}, nil
}

type getPositionParams struct {
	ID         string `json:"id"`
	PositionID uint64 `json:"positionId"`
}

func (s *Server) handleGetPosition(params []json.RawMessage) (interface{}, *RPCError) {
	var p getPositionParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	position, ok, err := s.state.GetPosition(p.ID, p.PositionID)
	if err != nil {
		return nil, &RPCError{Code: codeServerError, Message: err.Error()}
	}
	if !ok {
		return nil, errNotFoundRPC
	}
	return PositionView{
		ID:                 position.ID,
		PoolID:             position.PoolID,
		Owner:              formatAddress(position.Owner),
		Principal:          formatAmount(position.Principal),
		ClaimedInterest:    formatAmount(position.ClaimedInterest),
		PrincipalWithdrawn: position.PrincipalWithdrawn,
		CreatedAt:          position.CreatedAt,
	}, nil
}

type getRepaymentParams struct {
	ID     string `json:"id"`
	Period uint64 `json:"period"`
}

func (s *Server) handleGetRepayment(params []json.RawMessage) (interface{}, *RPCError) {
	var p getRepaymentParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	record, ok, err := s.state.GetRepayment(p.ID, p.Period)
	if err != nil {
		return nil, &RPCError{Code: codeServerError, Message: err.Error()}
	}
	if !ok {
		return nil, errNotFoundRPC
	}
	return RepaymentView{
		PoolID:   record.PoolID,
		Period:   record.Period,
		Amount:   formatAmount(record.Amount),
		RepaidAt: record.RepaidAt,
	}, nil
}

func (s *Server) handleGetLedgers(params []json.RawMessage) (interface{}, *RPCError) {
	var p getPoolParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	senior, ok, err := s.state.GetSeniorLedger(p.ID)
	if err != nil {
		return nil, &RPCError{Code: codeServerError, Message: err.Error()}
	}
	if !ok {
		return nil, errNotFoundRPC
	}
	firstLoss, ok, err := s.state.GetFirstLossLedger(p.ID)
	if err != nil {
		return nil, &RPCError{Code: codeServerError, Message: err.Error()}
	}
	if !ok {
		return nil, errNotFoundRPC
	}
	junior, ok, err := s.state.GetJuniorInterestLedger(p.ID)
	if err != nil {
		return nil, &RPCError{Code: codeServerError, Message: err.Error()}
	}
	if !ok {
		return nil, errNotFoundRPC
	}
	return LedgersView{
		SeniorDeposits:      formatAmount(senior.TotalDeposits),
		SeniorRepaid:        formatAmount(senior.Repaid),
		FirstLossDeposits:   formatAmount(firstLoss.TotalDeposits),
		FirstLossRepaid:     formatAmount(firstLoss.Repaid),
		JuniorInterestTotal: formatAmount(junior.Total),
		JuniorDistributed:   formatAmount(junior.Distributed),
	}, nil
}

type tokenBalanceParams struct {
	Token   string `json:"token"`
	Address string `json:"address"`
}

type tokenBalanceResult struct {
	Balance string `json:"balance"`
	Supply  string `json:"supply"`
}

func (s *Server) handleTokenBalance(params []json.RawMessage) (interface{}, *RPCError) {
	var p tokenBalanceParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	addr, err := parseAddress(p.Address)
	if err != nil {
		return nil, paramError(err)
	}
	balance, err := s.tokens.BalanceOf(p.Token, addr)
	if err != nil {
		return nil, &RPCError{Code: codeServerError, Message: err.Error()}
	}
	supply, err := s.tokens.TotalSupply(p.Token)
	if err != nil {
		return nil, &RPCError{Code: codeServerError, Message: err.Error()}
	}
	return tokenBalanceResult{
		Balance: formatAmount(balance),
		Supply:  formatAmount(supply),
	}, nil
}
