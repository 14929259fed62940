package token

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/weisyn/campaign-escrow-go/types"
	"github.com/weisyn/campaign-escrow-go/utils"
)

// Transfer 转账
func (l *Ledger) Transfer(from, to common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transferLocked(from, to, amount)
}

// Approve 设置授权额度（覆盖旧值）
func (l *Ledger) Approve(owner, spender common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.approveLocked(owner, spender, amount)
}

// Allowance 查询授权额度
func (l *Ledger) Allowance(owner, spender common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if a, ok := l.allowances[owner][spender]; ok {
		return new(uint256.Int).Set(a)
	}
	return uint256.NewInt(0)
}

// TransferFrom 由 spender 使用授权额度代 from 转账
func (l *Ledger) TransferFrom(spender, from, to common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	// 1. 检查授权额度
	allowed := uint256.NewInt(0)
	if a, ok := l.allowances[from][spender]; ok {
		allowed = a
	}
	if allowed.Lt(amount) {
		return types.NewError(types.ErrorCodeInsufficientAllowance, "", map[string]interface{}{
			"owner":     utils.AddressToBase58(from),
			"spender":   utils.AddressToBase58(spender),
			"allowance": allowed.Dec(),
			"amount":    amount.Dec(),
		})
	}

	// 2. 转账
	if err := l.transferLocked(from, to, amount); err != nil {
		return err
	}

	// 3. 扣减额度
	return l.approveLocked(from, spender, new(uint256.Int).Sub(allowed, amount))
}

func (l *Ledger) transferLocked(from, to common.Address, amount *uint256.Int) error {
	if from == (common.Address{}) || to == (common.Address{}) {
		return types.Errorf(types.ErrorCodeZeroAddress, "transfer endpoints must be non-zero")
	}

	fromBalance := l.balanceLocked(from)
	if fromBalance.Lt(amount) {
		return insufficientBalance(from, fromBalance, amount)
	}

	l.setBalanceLocked(from, new(uint256.Int).Sub(fromBalance, amount))
	l.setBalanceLocked(to, new(uint256.Int).Add(l.balanceLocked(to), amount))
	l.moveVotingPowerLocked(l.delegateOfLocked(from), l.delegateOfLocked(to), amount)
	return nil
}

func (l *Ledger) approveLocked(owner, spender common.Address, amount *uint256.Int) error {
	if owner == (common.Address{}) || spender == (common.Address{}) {
		return types.Errorf(types.ErrorCodeZeroAddress, "approval endpoints must be non-zero")
	}
	if amount.IsZero() {
		delete(l.allowances[owner], spender)
		return nil
	}
	if l.allowances[owner] == nil {
		l.allowances[owner] = make(map[common.Address]*uint256.Int)
	}
	l.allowances[owner][spender] = new(uint256.Int).Set(amount)
	return nil
}

func insufficientBalance(holder common.Address, balance, amount *uint256.Int) error {
	return types.NewError(types.ErrorCodeInsufficientBalance, "", map[string]interface{}{
		"holder":  utils.AddressToBase58(holder),
		"balance": balance.Dec(),
		"amount":  amount.Dec(),
	})
}
