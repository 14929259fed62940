package token

import (
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/weisyn/campaign-escrow-go/types"
	"github.com/weisyn/campaign-escrow-go/utils"
)

// checkpoint 某一时间点之后生效的数值
type checkpoint struct {
	at    time.Time
	value uint256.Int
}

// checkpoints 按时间升序排列
type checkpoints []checkpoint

// push 记录新值；时间不早于最后一个检查点，同一时间点覆盖
func (c *checkpoints) push(at time.Time, v *uint256.Int) {
	n := len(*c)
	if n > 0 {
		last := &(*c)[n-1]
		if !at.After(last.at) {
			last.value.Set(v)
			return
		}
	}
	cp := checkpoint{at: at}
	cp.value.Set(v)
	*c = append(*c, cp)
}

func (c checkpoints) latest() *uint256.Int {
	if len(c) == 0 {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Set(&c[len(c)-1].value)
}

// upperLookup 返回时间点 t（含）之前最后一个检查点的值
func (c checkpoints) upperLookup(t time.Time) *uint256.Int {
	i := sort.Search(len(c), func(i int) bool { return c[i].at.After(t) })
	if i == 0 {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Set(&c[i-1].value)
}

// Delegate 将 holder 的投票权委托给 delegatee
func (l *Ledger) Delegate(holder, delegatee common.Address) error {
	if holder == (common.Address{}) || delegatee == (common.Address{}) {
		return types.Errorf(types.ErrorCodeZeroAddress, "delegation endpoints must be non-zero")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	previous := l.delegateOfLocked(holder)
	if delegatee == holder {
		delete(l.delegates, holder)
	} else {
		l.delegates[holder] = delegatee
	}
	l.moveVotingPowerLocked(previous, delegatee, l.balanceLocked(holder))

	l.logger.Debug().
		Str("holder", utils.ShortAddress(holder)).
		Str("from", utils.ShortAddress(previous)).
		Str("to", utils.ShortAddress(delegatee)).
		Msg("delegate changed")
	return nil
}

// Delegates 查询 holder 的当前受托人（默认为自己）
func (l *Ledger) Delegates(holder common.Address) common.Address {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.delegateOfLocked(holder)
}

// Votes 当前（最新）投票权
func (l *Ledger) Votes(account common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if cps, ok := l.votes[account]; ok {
		return cps.latest()
	}
	return uint256.NewInt(0)
}

// Clock 账本当前时间
func (l *Ledger) Clock() time.Time {
	return l.clock.Now()
}

// PastVotes 查询时间点 t 的投票权
//
// t 必须严格早于账本当前时间，保证读取的快照之后不会再被修改。
func (l *Ledger) PastVotes(account common.Address, t time.Time) (*uint256.Int, error) {
	if err := l.requirePast(t); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if cps, ok := l.votes[account]; ok {
		return cps.upperLookup(t), nil
	}
	return uint256.NewInt(0), nil
}

// PastTotalSupply 查询时间点 t 的总供应量
func (l *Ledger) PastTotalSupply(t time.Time) (*uint256.Int, error) {
	if err := l.requirePast(t); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.supplyHistory.upperLookup(t), nil
}

func (l *Ledger) requirePast(t time.Time) error {
	now := l.clock.Now()
	if !t.Before(now) {
		return types.NewError(types.ErrorCodeFutureLookup, "", map[string]interface{}{
			"timepoint": t.UTC().Format(time.RFC3339Nano),
			"clock":     now.UTC().Format(time.RFC3339Nano),
		})
	}
	return nil
}

func (l *Ledger) delegateOfLocked(holder common.Address) common.Address {
	if d, ok := l.delegates[holder]; ok {
		return d
	}
	return holder
}

// moveVotingPowerLocked 在受托人之间移动投票权；零地址表示铸造/销毁
func (l *Ledger) moveVotingPowerLocked(src, dst common.Address, amount *uint256.Int) {
	if src == dst || amount.IsZero() {
		return
	}
	now := l.clock.Now()
	if src != (common.Address{}) {
		cps := l.checkpointsLocked(src)
		cps.push(now, new(uint256.Int).Sub(cps.latest(), amount))
	}
	if dst != (common.Address{}) {
		cps := l.checkpointsLocked(dst)
		cps.push(now, new(uint256.Int).Add(cps.latest(), amount))
	}
}

func (l *Ledger) checkpointsLocked(account common.Address) *checkpoints {
	cps, ok := l.votes[account]
	if !ok {
		cps = &checkpoints{}
		l.votes[account] = cps
	}
	return cps
}
