// Package escrow 单一募资活动的资金托管
//
// 托管按阶段状态机运行：
//
//	Funding ──closeFunding（运营方，已达目标）──▶ Succeeded
//	Funding ──finalize（截止后，已达目标）──────▶ Succeeded
//	Funding ──finalize（截止后，未达目标）──────▶ Failed
//
// Succeeded 与 Failed 为终态。只有 Succeeded 允许运营方提取资金，
// 只有 Failed 允许贡献者销毁份额代币换回退款。
//
// 所有变更操作由 guard 串行化；对外转账是每个操作的最后一步，
// 转账进行中任何对托管的变更调用都会以 ErrReentrantCall 被拒绝。
package escrow

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"

	"github.com/weisyn/campaign-escrow-go/services"
	"github.com/weisyn/campaign-escrow-go/services/custody"
	"github.com/weisyn/campaign-escrow-go/services/event"
	"github.com/weisyn/campaign-escrow-go/services/token"
	"github.com/weisyn/campaign-escrow-go/types"
	"github.com/weisyn/campaign-escrow-go/utils"
)

// ShareScale 原生最小单位与份额代币最小单位的换算系数 K
//
// 原生单位 6 位小数，份额代币 18 位小数：1 个原生最小单位铸造 10^12 个份额最小单位。
// 对外接口的金额一律使用原生单位，换算只发生在铸造/销毁边界。
const ShareScale uint64 = 1_000_000_000_000

// Phase 托管阶段
type Phase uint8

const (
	PhaseFunding Phase = iota
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseFunding:
		return event.PhaseFunding
	case PhaseSucceeded:
		return event.PhaseSucceeded
	case PhaseFailed:
		return event.PhaseFailed
	default:
		return "Unknown"
	}
}

// MarshalText 实现 encoding.TextMarshaler
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Sink 事件接收方
type Sink interface {
	Publish(r event.Record) event.Record
}

type nopSink struct{}

func (nopSink) Publish(r event.Record) event.Record { return r }

// Escrow 募资托管
type Escrow struct {
	address  common.Address
	operator common.Address
	goal     uint64
	deadline time.Time

	claims *token.Ledger
	vault  *custody.Vault
	sink   Sink
	logger zerolog.Logger

	guard guard

	// mu 只保护下列字段的读写，不跨越对外转账持有
	mu             sync.RWMutex
	phase          Phase
	totalRaised    uint64
	totalWithdrawn uint64
	totalRefunded  uint64
}

type options struct {
	address       common.Address
	sink          Sink
	logger        zerolog.Logger
	ledgerOptions []token.Option
}

// Option 构造选项
type Option func(*options)

// WithAddress 指定托管账户地址（默认由活动参数派生）
func WithAddress(addr common.Address) Option {
	return func(o *options) {
		o.address = addr
	}
}

// WithSink 设置事件接收方
func WithSink(s Sink) Option {
	return func(o *options) {
		o.sink = s
	}
}

// WithLogger 设置日志器
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLedgerOptions 透传份额代币账本选项（如检查点时钟）
func WithLedgerOptions(opts ...token.Option) Option {
	return func(o *options) {
		o.ledgerOptions = append(o.ledgerOptions, opts...)
	}
}

// New 创建托管，并同时创建以托管账户为唯一铸造方的份额代币账本
//
// **流程**：
// 1. 校验活动参数（截止时间必须严格晚于 now）
// 2. 确定托管账户地址
// 3. 创建份额代币账本（minter = 托管账户）
// 4. 在 Bank 中认领托管账户（须尚无余额），收款钩子拒绝一切主动转入
func New(cfg services.CampaignConfig, bank *custody.Bank, now time.Time, opts ...Option) (*Escrow, error) {
	// 1. 参数验证
	if err := cfg.Validate(now); err != nil {
		return nil, err
	}
	if bank == nil {
		return nil, types.Errorf(types.ErrorCodeInvalidCampaign, "custody bank is required")
	}

	o := &options{
		sink:   nopSink{},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}

	// 2. 托管账户
	addr := o.address
	if addr == (common.Address{}) {
		addr = deriveAddress(cfg)
	}
	if addr == cfg.Operator {
		return nil, types.Errorf(types.ErrorCodeInvalidCampaign, "custody account must differ from operator")
	}

	// 3. 份额代币账本
	ledgerOpts := append([]token.Option{token.WithLogger(o.logger)}, o.ledgerOptions...)
	claims, err := token.NewLedger(cfg.Name, cfg.Symbol, addr, ledgerOpts...)
	if err != nil {
		return nil, err
	}

	e := &Escrow{
		address:  addr,
		operator: cfg.Operator,
		goal:     cfg.Goal,
		deadline: cfg.Deadline,
		claims:   claims,
		sink:     o.sink,
		logger: o.logger.With().
			Str("component", "escrow").
			Str("campaign", cfg.Symbol).
			Logger(),
		phase: PhaseFunding,
	}

	// 4. 认领托管账户
	vault, err := bank.Claim(addr, e)
	if err != nil {
		return nil, types.Wrap(types.ErrorCodeInvalidCampaign, err, map[string]interface{}{
			"custody": utils.AddressToBase58(addr),
		})
	}
	e.vault = vault

	e.logger.Info().
		Str("operator", utils.ShortAddress(cfg.Operator)).
		Str("custody", utils.ShortAddress(addr)).
		Uint64("goal", cfg.Goal).
		Time("deadline", cfg.Deadline).
		Msg("campaign created")
	return e, nil
}

// deriveAddress 由活动参数派生托管账户地址
func deriveAddress(cfg services.CampaignConfig) common.Address {
	var nums [16]byte
	binary.BigEndian.PutUint64(nums[:8], cfg.Goal)
	binary.BigEndian.PutUint64(nums[8:], uint64(cfg.Deadline.UnixNano()))
	hash := ethcrypto.Keccak256(
		[]byte("campaign-escrow"),
		cfg.Operator.Bytes(),
		[]byte(cfg.Name),
		[]byte(cfg.Symbol),
		nums[:],
	)
	return common.BytesToAddress(hash[12:])
}

// OnReceive 实现 custody.Receiver：拒绝 Contribute 之外的任何转入
func (e *Escrow) OnReceive(_ context.Context, from common.Address, amount uint64) error {
	e.logger.Debug().
		Str("from", utils.ShortAddress(from)).
		Uint64("amount", amount).
		Msg("unsolicited transfer rejected")
	return types.NewError(types.ErrorCodeUnsolicitedTransfer, "use Contribute to fund the campaign", map[string]interface{}{
		"from":   utils.AddressToBase58(from),
		"amount": amount,
	})
}

// shares 原生金额换算为份额代币数量
func shares(amount uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(ShareScale))
}

// publish 发布事件；只在操作提交后调用
func (e *Escrow) publish(r event.Record) event.Record {
	r = e.sink.Publish(r)
	e.logger.Debug().Str("event", string(r.Name)).Uint64("seq", r.Seq).Msg("event published")
	return r
}
