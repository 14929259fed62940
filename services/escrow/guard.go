package escrow

import (
	"sync"
	"sync/atomic"

	"github.com/weisyn/campaign-escrow-go/types"
)

// guard 变更操作的互斥与重入保护
//
// mu 串行化所有变更操作；interacting 在对外转账期间置位，
// 此时任何进入请求立即以 ErrReentrantCall 失败而不是阻塞（阻塞会死锁）。
type guard struct {
	mu          sync.Mutex
	interacting atomic.Bool
}

// enter 获取互斥；返回的 release 可重复调用，保证所有退出路径都能释放
func (g *guard) enter(op string) (release func(), err error) {
	if g.interacting.Load() {
		return nil, types.Errorf(types.ErrorCodeReentrantCall, "%s called while an outward transfer is in flight", op)
	}
	g.mu.Lock()

	var once sync.Once
	return func() { once.Do(g.mu.Unlock) }, nil
}

// interact 执行对外转账；调用方必须已持有互斥且已完成全部记账
func (g *guard) interact(fn func() error) error {
	g.interacting.Store(true)
	defer g.interacting.Store(false)
	return fn()
}
