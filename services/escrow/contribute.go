package escrow

import (
	"context"
	"math"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/weisyn/campaign-escrow-go/services/event"
	"github.com/weisyn/campaign-escrow-go/types"
	"github.com/weisyn/campaign-escrow-go/utils"
)

// ContributeRequest 贡献请求
type ContributeRequest struct {
	Contributor common.Address // 贡献者（调用方）
	Amount      uint64         // 贡献金额（原生最小单位）
	Now         time.Time      // 当前时间，由调用方提供
}

// ContributeResult 贡献结果
type ContributeResult struct {
	Minted      *uint256.Int // 铸造的份额代币数量 = Amount * ShareScale
	TotalRaised uint64
	Event       event.Record
}

// Contribute 向活动贡献资金并获得份额代币
//
// **前置条件**：
// - 阶段为 Funding
// - Now 不晚于截止时间（截止时刻本身仍可贡献）
// - Amount > 0
//
// **效果**：
// - 从贡献者账户收取 Amount 到托管账户
// - totalRaised 增加 Amount
// - 向贡献者铸造 Amount * ShareScale 份额代币
func (e *Escrow) Contribute(ctx context.Context, req *ContributeRequest) (*ContributeResult, error) {
	if req == nil {
		return nil, types.Errorf(types.ErrorCodeInvalidRequest, "contribute request is required")
	}

	release, err := e.guard.enter("contribute")
	if err != nil {
		return nil, err
	}
	defer release()

	// 1. 前置条件
	e.mu.RLock()
	phase, raised := e.phase, e.totalRaised
	e.mu.RUnlock()

	if phase != PhaseFunding {
		return nil, e.reject(types.ErrorCodeNotFunding, "contribute", map[string]interface{}{"phase": phase.String()})
	}
	if req.Now.After(e.deadline) {
		return nil, e.reject(types.ErrorCodeDeadlinePassed, "contribute", map[string]interface{}{
			"now":      req.Now.UTC().Format(time.RFC3339),
			"deadline": e.deadline.UTC().Format(time.RFC3339),
		})
	}
	if req.Amount == 0 {
		return nil, e.reject(types.ErrorCodeZeroAmount, "contribute", nil)
	}
	if req.Contributor == (common.Address{}) || req.Contributor == e.address {
		return nil, e.reject(types.ErrorCodeInvalidAccount, "contribute", map[string]interface{}{
			"contributor": utils.AddressToBase58(req.Contributor),
		})
	}
	if raised > math.MaxUint64-req.Amount {
		return nil, e.reject(types.ErrorCodeRaisedOverflow, "contribute", map[string]interface{}{
			"raised": raised,
			"amount": req.Amount,
		})
	}

	// 2. 收取随调用附带的资金
	if err := e.vault.Collect(req.Contributor, req.Amount); err != nil {
		return nil, err
	}

	// 3. 铸造份额代币
	minted := shares(req.Amount)
	if err := e.claims.Mint(e.address, req.Contributor, minted); err != nil {
		// 铸造失败则退回已收取的资金
		if rbErr := e.vault.Return(req.Contributor, req.Amount); rbErr != nil {
			e.logger.Error().Err(rbErr).Msg("contribution rollback failed")
		}
		return nil, err
	}

	// 4. 记账
	e.mu.Lock()
	e.totalRaised += req.Amount
	raised = e.totalRaised
	e.mu.Unlock()

	e.logger.Info().
		Str("contributor", utils.ShortAddress(req.Contributor)).
		Uint64("amount", req.Amount).
		Uint64("raised", raised).
		Msg("contribution accepted")

	rec := e.publish(event.Record{
		Name:    event.Contributed,
		At:      req.Now,
		Account: req.Contributor,
		Amount:  req.Amount,
		Tokens:  minted,
	})

	return &ContributeResult{
		Minted:      minted,
		TotalRaised: raised,
		Event:       rec,
	}, nil
}

// reject 构造拒绝错误并记录调试日志
func (e *Escrow) reject(code, op string, details map[string]interface{}) error {
	err := types.NewError(code, "", details)
	e.logger.Debug().
		Str("op", op).
		Str("code", code).
		Str("class", string(err.Class)).
		Msg("operation rejected")
	return err
}
