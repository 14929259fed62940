// Package token 份额代币（Claim Token）账本
//
// 标准的可替代余额账本，附带：
// - 唯一铸造方：Mint/Burn 只允许构造时固定的 minter 调用
// - 授权额度与链下签名授权（Permit）
// - 委托投票权与按时间点的检查点，供外部治理模块读取
package token

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"

	"github.com/weisyn/campaign-escrow-go/types"
)

// Decimals 份额代币精度
const Decimals uint8 = 18

var (
	ErrNotMinter             = types.Sentinel(types.ErrorCodeNotMinter)
	ErrInsufficientBalance   = types.Sentinel(types.ErrorCodeInsufficientBalance)
	ErrInsufficientAllowance = types.Sentinel(types.ErrorCodeInsufficientAllowance)
	ErrZeroAddress           = types.Sentinel(types.ErrorCodeZeroAddress)
	ErrPermitExpired         = types.Sentinel(types.ErrorCodePermitExpired)
	ErrInvalidSignature      = types.Sentinel(types.ErrorCodeInvalidSignature)
	ErrFutureLookup          = types.Sentinel(types.ErrorCodeFutureLookup)
	ErrSupplyOverflow        = types.Sentinel(types.ErrorCodeSupplyOverflow)
)

// Clock 账本时钟，检查点按该时钟记录
type Clock interface {
	Now() time.Time
}

// SystemClock 使用系统时间
type SystemClock struct{}

// Now 实现 Clock
func (SystemClock) Now() time.Time { return time.Now() }

// Ledger 份额代币账本
type Ledger struct {
	mu sync.RWMutex

	name   string
	symbol string
	minter common.Address

	totalSupply uint256.Int
	balances    map[common.Address]*uint256.Int
	allowances  map[common.Address]map[common.Address]*uint256.Int
	nonces      map[common.Address]uint64

	delegates     map[common.Address]common.Address
	votes         map[common.Address]*checkpoints
	supplyHistory checkpoints

	clock  Clock
	logger zerolog.Logger
}

// Option 账本选项
type Option func(*Ledger)

// WithClock 设置检查点时钟
func WithClock(c Clock) Option {
	return func(l *Ledger) {
		l.clock = c
	}
}

// WithLogger 设置日志器
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger.With().Str("component", "claim-ledger").Logger()
	}
}

// NewLedger 创建账本，minter 在账本生命周期内不可变更
func NewLedger(name, symbol string, minter common.Address, opts ...Option) (*Ledger, error) {
	if minter == (common.Address{}) {
		return nil, types.Errorf(types.ErrorCodeZeroAddress, "minter must not be the zero address")
	}

	l := &Ledger{
		name:       name,
		symbol:     symbol,
		minter:     minter,
		balances:   make(map[common.Address]*uint256.Int),
		allowances: make(map[common.Address]map[common.Address]*uint256.Int),
		nonces:     make(map[common.Address]uint64),
		delegates:  make(map[common.Address]common.Address),
		votes:      make(map[common.Address]*checkpoints),
		clock:      SystemClock{},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Name 代币名称
func (l *Ledger) Name() string { return l.name }

// Symbol 代币符号
func (l *Ledger) Symbol() string { return l.symbol }

// Decimals 代币精度
func (l *Ledger) Decimals() uint8 { return Decimals }

// Minter 唯一铸造方
func (l *Ledger) Minter() common.Address { return l.minter }

// TotalSupply 当前总供应量
func (l *Ledger) TotalSupply() *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(uint256.Int).Set(&l.totalSupply)
}

// BalanceOf 查询余额
func (l *Ledger) BalanceOf(holder common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(uint256.Int).Set(l.balanceLocked(holder))
}

// balanceLocked 返回内部余额指针（调用方需持锁，不可外泄）
func (l *Ledger) balanceLocked(holder common.Address) *uint256.Int {
	if b, ok := l.balances[holder]; ok {
		return b
	}
	return uint256.NewInt(0)
}

// setBalanceLocked 写入余额（调用方需持锁）
func (l *Ledger) setBalanceLocked(holder common.Address, v *uint256.Int) {
	if v.IsZero() {
		delete(l.balances, holder)
		return
	}
	l.balances[holder] = v
}
