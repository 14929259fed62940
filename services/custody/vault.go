package custody

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/weisyn/campaign-escrow-go/types"
	"github.com/weisyn/campaign-escrow-go/utils"
)

// Vault 托管账户的操作凭证
//
// 由 Bank.Claim 发放，持有者是唯一能为托管账户收款或从中转出的一方。
type Vault struct {
	bank *Bank
	addr common.Address
}

// Address 托管账户地址
func (v *Vault) Address() common.Address {
	return v.addr
}

// Balance 托管账户余额
func (v *Vault) Balance() uint64 {
	return v.bank.BalanceOf(v.addr)
}

// Collect 随调用附带的价值转入托管账户，不回调收款钩子
//
// 价值随 Contribute 调用一起到达，不属于「主动转入」。转出方不能是另一个
// 托管账户。
func (v *Vault) Collect(from common.Address, amount uint64) error {
	if v.bank.isClaimed(from) {
		return types.Errorf(types.ErrorCodeInvalidAccount, "cannot collect from custody account %s", utils.AddressToBase58(from))
	}
	return v.bank.move(from, v.addr, amount)
}

// Return 原路退回附带的价值，不回调收款方
func (v *Vault) Return(to common.Address, amount uint64) error {
	if v.bank.isClaimed(to) {
		return types.Errorf(types.ErrorCodeInvalidAccount, "cannot return value to custody account %s", utils.AddressToBase58(to))
	}
	return v.bank.move(v.addr, to, amount)
}

// Transfer 从托管账户向外转账，会回调收款方的 Receiver
func (v *Vault) Transfer(ctx context.Context, to common.Address, amount uint64) error {
	return v.bank.transfer(ctx, v.addr, to, amount)
}
