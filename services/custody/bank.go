// Package custody 原生价值账户
//
// Bank 记录每个地址持有的原生价值（最小单位），既包括贡献者钱包，
// 也包括托管合约自己的托管账户。托管余额（heldBalance）即托管账户
// 在 Bank 中的真实余额，不单独计数，因此不会与实际持有的资金出现偏差。
//
// 托管账户通过 Claim 认领，认领后只有持有 Vault 的一方能为其收款或从中
// 转出；Fund、Bank.Transfer 的转出方和 SetReceiver 都拒绝已认领的地址。
package custody

import (
	"context"
	"math"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/weisyn/campaign-escrow-go/types"
	"github.com/weisyn/campaign-escrow-go/utils"
)

var (
	ErrInsufficientFunds = types.Sentinel(types.ErrorCodeInsufficientFunds)
	ErrRecipientRejected = types.Sentinel(types.ErrorCodeRecipientRejected)
	ErrInvalidAccount    = types.Sentinel(types.ErrorCodeInvalidAccount)
	ErrZeroAmount        = types.Sentinel(types.ErrorCodeZeroAmount)
)

// Receiver 收款钩子
//
// 注册了 Receiver 的地址在收到 Transfer 时会被回调；返回错误表示拒收，
// 此时整笔转账回滚。回调期间转出方已被扣款，收款方尚未入账。
type Receiver interface {
	OnReceive(ctx context.Context, from common.Address, amount uint64) error
}

// ReceiverFunc 函数形式的 Receiver
type ReceiverFunc func(ctx context.Context, from common.Address, amount uint64) error

// OnReceive 实现 Receiver
func (f ReceiverFunc) OnReceive(ctx context.Context, from common.Address, amount uint64) error {
	return f(ctx, from, amount)
}

// Bank 原生价值账户集合
type Bank struct {
	mu        sync.Mutex
	balances  map[common.Address]uint64
	receivers map[common.Address]Receiver
	claimed   map[common.Address]bool
	supply    uint64
	logger    zerolog.Logger
}

// Option Bank 选项
type Option func(*Bank)

// WithLogger 设置日志器
func WithLogger(logger zerolog.Logger) Option {
	return func(b *Bank) {
		b.logger = logger.With().Str("component", "custody").Logger()
	}
}

// NewBank 创建空的 Bank
func NewBank(opts ...Option) *Bank {
	b := &Bank{
		balances:  make(map[common.Address]uint64),
		receivers: make(map[common.Address]Receiver),
		claimed:   make(map[common.Address]bool),
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Fund 为地址凭空注入原生价值（测试网水龙头语义）
func (b *Bank) Fund(addr common.Address, amount uint64) error {
	if addr == (common.Address{}) {
		return types.Errorf(types.ErrorCodeInvalidAccount, "cannot fund zero address")
	}
	if amount == 0 {
		return types.NewError(types.ErrorCodeZeroAmount, "", nil)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.claimed[addr] {
		return types.Errorf(types.ErrorCodeInvalidAccount, "cannot fund custody account %s", utils.AddressToBase58(addr))
	}
	if b.supply > math.MaxUint64-amount {
		return types.Errorf(types.ErrorCodeInsufficientFunds, "funding overflows total supply")
	}
	b.supply += amount
	b.balances[addr] += amount
	return nil
}

// BalanceOf 查询余额
func (b *Bank) BalanceOf(addr common.Address) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[addr]
}

// SetReceiver 注册收款钩子；传入 nil 取消注册
//
// 已认领的托管账户的钩子由 Claim 固定，不能替换或取消。
func (b *Bank) SetReceiver(addr common.Address, r Receiver) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.claimed[addr] {
		return types.Errorf(types.ErrorCodeInvalidAccount, "receiver of custody account %s is fixed", utils.AddressToBase58(addr))
	}
	if r == nil {
		delete(b.receivers, addr)
		return nil
	}
	b.receivers[addr] = r
	return nil
}

// Claim 认领一个空账户作为托管账户
//
// 认领后该地址的收款钩子固定为 r，且只能通过返回的 Vault 收款或转出。
// 同一地址只能认领一次，且认领时余额必须为零。
func (b *Bank) Claim(addr common.Address, r Receiver) (*Vault, error) {
	if addr == (common.Address{}) {
		return nil, types.Errorf(types.ErrorCodeInvalidAccount, "cannot claim zero address")
	}
	if r == nil {
		return nil, types.Errorf(types.ErrorCodeInvalidAccount, "custody account requires a receiver")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.claimed[addr] {
		return nil, types.Errorf(types.ErrorCodeInvalidAccount, "custody account %s already claimed", utils.AddressToBase58(addr))
	}
	if b.balances[addr] != 0 {
		return nil, types.Errorf(types.ErrorCodeInvalidAccount, "custody account %s is not empty", utils.AddressToBase58(addr))
	}
	b.claimed[addr] = true
	b.receivers[addr] = r
	return &Vault{bank: b, addr: addr}, nil
}

// Transfer 普通转账，会回调收款方的 Receiver
//
// 转出方不能是已认领的托管账户，托管账户只能经由其 Vault 转出。
func (b *Bank) Transfer(ctx context.Context, from, to common.Address, amount uint64) error {
	if b.isClaimed(from) {
		return types.Errorf(types.ErrorCodeInvalidAccount, "custody account %s can only pay out through its vault", utils.AddressToBase58(from))
	}
	return b.transfer(ctx, from, to, amount)
}

// transfer 转账主体
//
// **流程**：
// 1. 扣减转出方余额（在回调前生效）
// 2. 回调收款方 Receiver（可能拒收或重入）
// 3. 拒收则退还转出方；接受则为收款方入账
func (b *Bank) transfer(ctx context.Context, from, to common.Address, amount uint64) error {
	// 1. 扣款
	if err := b.debit(from, to, amount); err != nil {
		return err
	}

	// 2. 回调收款方（不持锁，允许回调内再次转账）
	b.mu.Lock()
	hook := b.receivers[to]
	b.mu.Unlock()

	if hook != nil {
		if err := hook.OnReceive(ctx, from, amount); err != nil {
			b.mu.Lock()
			b.balances[from] += amount
			b.mu.Unlock()

			b.logger.Debug().
				Str("from", utils.ShortAddress(from)).
				Str("to", utils.ShortAddress(to)).
				Uint64("amount", amount).
				Err(err).
				Msg("transfer rejected by recipient")
			return types.Wrap(types.ErrorCodeRecipientRejected, err, map[string]interface{}{
				"to":     utils.AddressToBase58(to),
				"amount": amount,
			})
		}
	}

	// 3. 入账
	b.mu.Lock()
	b.balances[to] += amount
	b.mu.Unlock()
	return nil
}

// move 不回调收款方的划转
func (b *Bank) move(from, to common.Address, amount uint64) error {
	if err := b.debit(from, to, amount); err != nil {
		return err
	}
	b.mu.Lock()
	b.balances[to] += amount
	b.mu.Unlock()
	return nil
}

func (b *Bank) debit(from, to common.Address, amount uint64) error {
	if amount == 0 {
		return types.NewError(types.ErrorCodeZeroAmount, "", nil)
	}
	if to == (common.Address{}) {
		return types.Errorf(types.ErrorCodeInvalidAccount, "cannot transfer to zero address")
	}
	if from == to {
		return types.Errorf(types.ErrorCodeInvalidAccount, "sender and recipient are the same account")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	balance := b.balances[from]
	if balance < amount {
		return types.NewError(types.ErrorCodeInsufficientFunds, "", map[string]interface{}{
			"account": utils.AddressToBase58(from),
			"balance": balance,
			"amount":  amount,
		})
	}
	b.balances[from] = balance - amount
	return nil
}

func (b *Bank) isClaimed(addr common.Address) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.claimed[addr]
}
