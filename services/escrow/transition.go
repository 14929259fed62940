package escrow

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/weisyn/campaign-escrow-go/services/event"
	"github.com/weisyn/campaign-escrow-go/types"
	"github.com/weisyn/campaign-escrow-go/utils"
)

// TransitionResult 阶段迁移结果
type TransitionResult struct {
	Phase       Phase
	TotalRaised uint64
	Event       event.Record
}

// CloseFunding 运营方在目标已达成时提前结束募资
//
// 这是截止前结束募资的唯一途径；要求目标已达成，因此不能用来在目标之前
// 截断贡献者。成功后阶段变为 Succeeded，不可逆。
func (e *Escrow) CloseFunding(ctx context.Context, caller common.Address, now time.Time) (*TransitionResult, error) {
	release, err := e.guard.enter("closeFunding")
	if err != nil {
		return nil, err
	}
	defer release()

	// 1. 授权
	if caller != e.operator {
		return nil, e.reject(types.ErrorCodeNotOperator, "closeFunding", map[string]interface{}{
			"caller": utils.AddressToBase58(caller),
		})
	}

	e.mu.Lock()
	// 2. 阶段与目标
	if e.phase != PhaseFunding {
		phase := e.phase
		e.mu.Unlock()
		return nil, e.reject(types.ErrorCodeNotFunding, "closeFunding", map[string]interface{}{"phase": phase.String()})
	}
	if e.totalRaised < e.goal {
		raised := e.totalRaised
		e.mu.Unlock()
		return nil, e.reject(types.ErrorCodeGoalNotReached, "closeFunding", map[string]interface{}{
			"raised": raised,
			"goal":   e.goal,
		})
	}

	// 3. 迁移
	e.phase = PhaseSucceeded
	raised := e.totalRaised
	e.mu.Unlock()

	e.logger.Info().Uint64("raised", raised).Msg("funding closed early")

	rec := e.publish(event.Record{
		Name:        event.FundingClosed,
		At:          now,
		Account:     caller,
		TotalRaised: raised,
	})
	return &TransitionResult{Phase: PhaseSucceeded, TotalRaised: raised, Event: rec}, nil
}

// Finalize 截止后由任何人触发结算
//
// totalRaised ≥ goal 时进入 Succeeded，否则进入 Failed。
// 只有第一次调用能成功，之后的调用因阶段不匹配而失败。
func (e *Escrow) Finalize(ctx context.Context, now time.Time) (*TransitionResult, error) {
	release, err := e.guard.enter("finalize")
	if err != nil {
		return nil, err
	}
	defer release()

	e.mu.Lock()
	if e.phase != PhaseFunding {
		phase := e.phase
		e.mu.Unlock()
		return nil, e.reject(types.ErrorCodeNotFunding, "finalize", map[string]interface{}{"phase": phase.String()})
	}
	if !now.After(e.deadline) {
		e.mu.Unlock()
		return nil, e.reject(types.ErrorCodeDeadlineNotReached, "finalize", map[string]interface{}{
			"now":      now.UTC().Format(time.RFC3339),
			"deadline": e.deadline.UTC().Format(time.RFC3339),
		})
	}

	outcome := PhaseFailed
	if e.totalRaised >= e.goal {
		outcome = PhaseSucceeded
	}
	e.phase = outcome
	raised := e.totalRaised
	e.mu.Unlock()

	e.logger.Info().
		Str("outcome", outcome.String()).
		Uint64("raised", raised).
		Uint64("goal", e.goal).
		Msg("campaign finalized")

	rec := e.publish(event.Record{
		Name:        event.Finalized,
		At:          now,
		Outcome:     outcome.String(),
		TotalRaised: raised,
	})
	return &TransitionResult{Phase: outcome, TotalRaised: raised, Event: rec}, nil
}
