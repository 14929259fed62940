// Package event 托管事件日志
//
// 每条事件都携带足够的数据，可以仅凭日志重建托管与份额账本的状态（见 Replay）。
package event

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
)

// Name 事件名称
type Name string

const (
	Contributed   Name = "Contributed"
	FundingClosed Name = "FundingClosed"
	Finalized     Name = "Finalized"
	Withdrawn     Name = "Withdrawn"
	Refunded      Name = "Refunded"
)

// Record 事件记录
//
// 字段按事件类型取用：
// - Contributed：Account（贡献者）、Amount、Tokens（铸造数量）
// - FundingClosed：TotalRaised
// - Finalized：Outcome、TotalRaised
// - Withdrawn：Account（收款方）、Amount
// - Refunded：Account（贡献者）、Amount、Tokens（销毁数量）
type Record struct {
	Seq         uint64         `json:"seq"`
	ID          string         `json:"id"`
	Name        Name           `json:"name"`
	At          time.Time      `json:"at"`
	Account     common.Address `json:"account"`
	Amount      uint64         `json:"amount,omitempty"`
	Tokens      *uint256.Int   `json:"tokens,omitempty"`
	Outcome     string         `json:"outcome,omitempty"`
	TotalRaised uint64         `json:"totalRaised,omitempty"`
}

// subscriberBuffer 每个订阅者的缓冲大小；写满视为慢消费者并断开
const subscriberBuffer = 64

// subscriber 订阅者；done 在订阅被移除时关闭
type subscriber struct {
	ch   chan Record
	done chan struct{}
}

// Log 追加式事件日志
type Log struct {
	mu      sync.RWMutex
	records []Record
	subs    map[uint64]*subscriber
	nextSub uint64
	logger  zerolog.Logger
}

// Option 日志选项
type Option func(*Log)

// WithLogger 设置日志器
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Log) {
		l.logger = logger.With().Str("component", "event-log").Logger()
	}
}

// NewLog 创建空日志
func NewLog(opts ...Option) *Log {
	l := &Log{
		subs:   make(map[uint64]*subscriber),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Publish 追加事件，分配序号与 ID，并推送给订阅者
func (l *Log) Publish(r Record) Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	r.Seq = uint64(len(l.records)) + 1
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Tokens != nil {
		r.Tokens = new(uint256.Int).Set(r.Tokens)
	}
	l.records = append(l.records, r)

	for id, sub := range l.subs {
		select {
		case sub.ch <- r:
		default:
			l.logger.Warn().Uint64("subscriber", id).Msg("slow subscriber dropped")
			l.removeLocked(id)
		}
	}
	return r
}

// Records 返回全部事件的副本
func (l *Log) Records() []Record {
	return l.Since(0)
}

// Since 返回序号大于 after 的事件
func (l *Log) Since(after uint64) []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sinceLocked(after)
}

func (l *Log) sinceLocked(after uint64) []Record {
	if after >= uint64(len(l.records)) {
		return []Record{}
	}
	out := make([]Record, len(l.records)-int(after))
	copy(out, l.records[after:])
	return out
}

// Len 事件数量
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Subscribe 订阅之后发布的事件；ctx 结束时通道关闭
func (l *Log) Subscribe(ctx context.Context) <-chan Record {
	_, ch := l.SubscribeFrom(ctx, ^uint64(0))
	return ch
}

// SubscribeFrom 原子地返回 after 之后的历史事件与后续事件通道，二者之间没有空隙
func (l *Log) SubscribeFrom(ctx context.Context, after uint64) ([]Record, <-chan Record) {
	l.mu.Lock()
	backlog := l.sinceLocked(after)
	id := l.nextSub
	l.nextSub++
	sub := &subscriber{
		ch:   make(chan Record, subscriberBuffer),
		done: make(chan struct{}),
	}
	l.subs[id] = sub
	l.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			l.mu.Lock()
			l.removeLocked(id)
			l.mu.Unlock()
		case <-sub.done:
		}
	}()

	return backlog, sub.ch
}

// removeLocked 移除订阅者并关闭其通道；调用方持有写锁
func (l *Log) removeLocked(id uint64) {
	sub, ok := l.subs[id]
	if !ok {
		return
	}
	close(sub.ch)
	close(sub.done)
	delete(l.subs, id)
}
