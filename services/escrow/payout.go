package escrow

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/weisyn/campaign-escrow-go/services/event"
	"github.com/weisyn/campaign-escrow-go/types"
	"github.com/weisyn/campaign-escrow-go/utils"
)

// WithdrawRequest 提取请求
type WithdrawRequest struct {
	Caller common.Address // 必须为运营方
	Amount uint64         // 提取金额（原生最小单位）
	Now    time.Time      // 仅用于事件时间戳
}

// RefundRequest 退款请求
type RefundRequest struct {
	Contributor common.Address // 调用方，销毁其份额代币
	Amount      uint64         // 退款金额（原生最小单位）
	Now         time.Time      // 仅用于事件时间戳
}

// PayoutResult 对外转账结果
type PayoutResult struct {
	Recipient   common.Address
	Amount      uint64
	Burned      *uint256.Int // 仅退款时非 nil
	HeldBalance uint64       // 转账后托管余额
	Event       event.Record
}

// Withdraw 运营方在 Succeeded 阶段提取资金
//
// **顺序**：
// 1. 校验授权、阶段、金额与托管余额
// 2. 先记账（totalWithdrawn）
// 3. 最后执行对外转账；失败则撤销记账，整个操作失败
func (e *Escrow) Withdraw(ctx context.Context, req *WithdrawRequest) (*PayoutResult, error) {
	if req == nil {
		return nil, types.Errorf(types.ErrorCodeInvalidRequest, "withdraw request is required")
	}

	release, err := e.guard.enter("withdraw")
	if err != nil {
		return nil, err
	}
	defer release()

	if err := e.checkOperatorPayout("withdraw", req.Caller); err != nil {
		return nil, err
	}
	return e.payOperator(ctx, "withdraw", req.Amount, req.Now)
}

// SweepAll 提取全部托管余额，等价于 Withdraw(HeldBalance)
//
// 提取额同时受 totalRaised - totalWithdrawn 约束。
func (e *Escrow) SweepAll(ctx context.Context, caller common.Address, now time.Time) (*PayoutResult, error) {
	release, err := e.guard.enter("sweepAll")
	if err != nil {
		return nil, err
	}
	defer release()

	if err := e.checkOperatorPayout("sweepAll", caller); err != nil {
		return nil, err
	}
	amount := e.vault.Balance()
	if w := e.withdrawable(); amount > w {
		amount = w
	}
	return e.payOperator(ctx, "sweepAll", amount, now)
}

func (e *Escrow) checkOperatorPayout(op string, caller common.Address) error {
	if caller != e.operator {
		return e.reject(types.ErrorCodeNotOperator, op, map[string]interface{}{
			"caller": utils.AddressToBase58(caller),
		})
	}
	if phase := e.Phase(); phase != PhaseSucceeded {
		return e.reject(types.ErrorCodeNotSucceeded, op, map[string]interface{}{"phase": phase.String()})
	}
	return nil
}

// withdrawable 尚可提取的募集额
func (e *Escrow) withdrawable() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.totalRaised - e.totalWithdrawn
}

// payOperator 调用方必须已持有 guard
func (e *Escrow) payOperator(ctx context.Context, op string, amount uint64, now time.Time) (*PayoutResult, error) {
	// 1. 金额校验
	if amount == 0 {
		return nil, e.reject(types.ErrorCodeZeroAmount, op, nil)
	}
	held := e.vault.Balance()
	if amount > held {
		return nil, e.reject(types.ErrorCodeInsufficientCustody, op, map[string]interface{}{
			"amount": amount,
			"held":   held,
		})
	}
	if w := e.withdrawable(); amount > w {
		return nil, e.reject(types.ErrorCodeInsufficientCustody, op, map[string]interface{}{
			"amount":       amount,
			"withdrawable": w,
		})
	}

	// 2. 记账
	e.mu.Lock()
	e.totalWithdrawn += amount
	e.mu.Unlock()

	// 3. 对外转账
	err := e.guard.interact(func() error {
		return e.vault.Transfer(ctx, e.operator, amount)
	})
	if err != nil {
		e.mu.Lock()
		e.totalWithdrawn -= amount
		e.mu.Unlock()

		e.logger.Warn().Err(err).Str("op", op).Uint64("amount", amount).Msg("withdrawal rolled back")
		return nil, types.Wrap(types.ErrorCodeTransferFailed, err, map[string]interface{}{
			"recipient": utils.AddressToBase58(e.operator),
			"amount":    amount,
		})
	}

	heldAfter := e.vault.Balance()
	e.logger.Info().Str("op", op).Uint64("amount", amount).Uint64("held", heldAfter).Msg("funds withdrawn")

	rec := e.publish(event.Record{
		Name:    event.Withdrawn,
		At:      now,
		Account: e.operator,
		Amount:  amount,
	})
	return &PayoutResult{
		Recipient:   e.operator,
		Amount:      amount,
		HeldBalance: heldAfter,
		Event:       rec,
	}, nil
}

// Refund 贡献者在 Failed 阶段销毁份额代币换回资金
//
// **顺序**：
// 1. 校验阶段与金额
// 2. 核对份额余额与托管余额，任一不足即失败，不写入任何检查点
// 3. 销毁 Amount * ShareScale 份额代币并记账（totalRefunded）
// 4. 最后执行对外转账；失败则重新铸造已销毁的份额并撤销记账
//
// 转账回调中看到的已经是销毁后的状态，重入调用会被 guard 拒绝，
// 因此同一批份额无法被重复兑付。
func (e *Escrow) Refund(ctx context.Context, req *RefundRequest) (*PayoutResult, error) {
	if req == nil {
		return nil, types.Errorf(types.ErrorCodeInvalidRequest, "refund request is required")
	}

	release, err := e.guard.enter("refund")
	if err != nil {
		return nil, err
	}
	defer release()

	// 1. 前置条件
	if phase := e.Phase(); phase != PhaseFailed {
		return nil, e.reject(types.ErrorCodeNotFailed, "refund", map[string]interface{}{"phase": phase.String()})
	}
	if req.Amount == 0 {
		return nil, e.reject(types.ErrorCodeZeroAmount, "refund", nil)
	}

	// 2. 余额核对
	burned := shares(req.Amount)
	if balance := e.claims.BalanceOf(req.Contributor); balance.Lt(burned) {
		return nil, e.reject(types.ErrorCodeInsufficientBalance, "refund", map[string]interface{}{
			"holder":  utils.AddressToBase58(req.Contributor),
			"balance": balance.Dec(),
			"amount":  burned.Dec(),
		})
	}
	if held := e.vault.Balance(); req.Amount > held {
		return nil, e.reject(types.ErrorCodeInsufficientCustody, "refund", map[string]interface{}{
			"amount": req.Amount,
			"held":   held,
		})
	}

	// 3. 销毁份额并记账
	if err := e.claims.Burn(e.address, req.Contributor, burned); err != nil {
		e.logger.Debug().Err(err).Str("contributor", utils.ShortAddress(req.Contributor)).Msg("refund rejected")
		return nil, err
	}
	e.mu.Lock()
	e.totalRefunded += req.Amount
	e.mu.Unlock()

	// 4. 对外转账
	err = e.guard.interact(func() error {
		return e.vault.Transfer(ctx, req.Contributor, req.Amount)
	})
	if err != nil {
		e.mu.Lock()
		e.totalRefunded -= req.Amount
		e.mu.Unlock()
		e.restoreShares(req.Contributor, burned)

		e.logger.Warn().Err(err).Uint64("amount", req.Amount).Msg("refund rolled back")
		return nil, types.Wrap(types.ErrorCodeTransferFailed, err, map[string]interface{}{
			"recipient": utils.AddressToBase58(req.Contributor),
			"amount":    req.Amount,
		})
	}

	heldAfter := e.vault.Balance()
	e.logger.Info().
		Str("contributor", utils.ShortAddress(req.Contributor)).
		Uint64("amount", req.Amount).
		Uint64("held", heldAfter).
		Msg("refund issued")

	rec := e.publish(event.Record{
		Name:    event.Refunded,
		At:      req.Now,
		Account: req.Contributor,
		Amount:  req.Amount,
		Tokens:  burned,
	})
	return &PayoutResult{
		Recipient:   req.Contributor,
		Amount:      req.Amount,
		Burned:      burned,
		HeldBalance: heldAfter,
		Event:       rec,
	}, nil
}

// restoreShares 撤销退款时重新铸造已销毁的份额
func (e *Escrow) restoreShares(contributor common.Address, burned *uint256.Int) {
	if err := e.claims.Mint(e.address, contributor, burned); err != nil {
		e.logger.Error().Err(err).Msg("refund rollback failed to restore claim tokens")
	}
}
