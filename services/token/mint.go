package token

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/weisyn/campaign-escrow-go/types"
	"github.com/weisyn/campaign-escrow-go/utils"
)

// Mint 铸造代币，仅 minter 可调用
func (l *Ledger) Mint(caller, to common.Address, amount *uint256.Int) error {
	if err := l.requireMinter(caller); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return types.Errorf(types.ErrorCodeZeroAddress, "cannot mint to the zero address")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	supply, overflow := new(uint256.Int).AddOverflow(&l.totalSupply, amount)
	if overflow {
		return types.NewError(types.ErrorCodeSupplyOverflow, "", map[string]interface{}{
			"supply": l.totalSupply.Dec(),
			"amount": amount.Dec(),
		})
	}

	l.totalSupply.Set(supply)
	l.setBalanceLocked(to, new(uint256.Int).Add(l.balanceLocked(to), amount))
	l.moveVotingPowerLocked(common.Address{}, l.delegateOfLocked(to), amount)
	l.supplyHistory.push(l.clock.Now(), &l.totalSupply)

	l.logger.Debug().
		Str("to", utils.ShortAddress(to)).
		Str("amount", amount.Dec()).
		Msg("minted")
	return nil
}

// Burn 销毁代币，仅 minter 可调用
//
// from 余额不足时失败，不会部分销毁。
func (l *Ledger) Burn(caller, from common.Address, amount *uint256.Int) error {
	if err := l.requireMinter(caller); err != nil {
		return err
	}
	if from == (common.Address{}) {
		return types.Errorf(types.ErrorCodeZeroAddress, "cannot burn from the zero address")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balance := l.balanceLocked(from)
	if balance.Lt(amount) {
		return insufficientBalance(from, balance, amount)
	}

	l.setBalanceLocked(from, new(uint256.Int).Sub(balance, amount))
	l.totalSupply.Sub(&l.totalSupply, amount)
	l.moveVotingPowerLocked(l.delegateOfLocked(from), common.Address{}, amount)
	l.supplyHistory.push(l.clock.Now(), &l.totalSupply)

	l.logger.Debug().
		Str("from", utils.ShortAddress(from)).
		Str("amount", amount.Dec()).
		Msg("burned")
	return nil
}

func (l *Ledger) requireMinter(caller common.Address) error {
	if caller != l.minter {
		return types.NewError(types.ErrorCodeNotMinter, "", map[string]interface{}{
			"caller": utils.AddressToBase58(caller),
		})
	}
	return nil
}
