package escrow

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/weisyn/campaign-escrow-go/services/token"
)

// Status 托管状态快照
type Status struct {
	Phase          Phase
	TotalRaised    uint64
	Goal           uint64
	Deadline       time.Time
	HeldBalance    uint64
	TotalWithdrawn uint64
	TotalRefunded  uint64
}

// Status 返回只读快照；可在对外转账的回调中安全调用
func (e *Escrow) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Status{
		Phase:          e.phase,
		TotalRaised:    e.totalRaised,
		Goal:           e.goal,
		Deadline:       e.deadline,
		HeldBalance:    e.vault.Balance(),
		TotalWithdrawn: e.totalWithdrawn,
		TotalRefunded:  e.totalRefunded,
	}
}

// Phase 当前阶段
func (e *Escrow) Phase() Phase {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.phase
}

// TotalRaised 累计募得金额（不因提取或退款减少）
func (e *Escrow) TotalRaised() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.totalRaised
}

// TotalWithdrawn 累计提取金额
func (e *Escrow) TotalWithdrawn() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.totalWithdrawn
}

// TotalRefunded 累计退款金额
func (e *Escrow) TotalRefunded() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.totalRefunded
}

// HeldBalance 托管账户中的真实余额
func (e *Escrow) HeldBalance() uint64 {
	return e.vault.Balance()
}

// Goal 目标金额
func (e *Escrow) Goal() uint64 { return e.goal }

// Deadline 截止时间
func (e *Escrow) Deadline() time.Time { return e.deadline }

// Operator 运营方
func (e *Escrow) Operator() common.Address { return e.operator }

// Address 托管账户地址（也是份额代币的唯一铸造方）
func (e *Escrow) Address() common.Address { return e.address }

// ClaimToken 份额代币账本
func (e *Escrow) ClaimToken() *token.Ledger { return e.claims }
