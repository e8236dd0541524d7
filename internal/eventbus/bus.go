// Package eventbus 提供进程内按频道名分发的事件总线。
// AI 会话的生产者（agent runner）与消费者（session 状态机）通过它解耦，
// 频道名按会话派生，互不串扰。
package eventbus

import (
	"errors"
	"sync"

	"github.com/run-bigpig/xuangu/internal/logger"
	"github.com/run-bigpig/xuangu/internal/models"
)

var log = logger.New("EventBus")

var (
	ErrBusClosed  = errors.New("事件总线已关闭")
	ErrNilHandler = errors.New("事件处理函数不能为空")
)

// Handler 事件处理函数
type Handler func(event models.StreamEvent)

// subscription 单个订阅。deliverMu 在投递期间持有，
// 退订时同样持有，保证退订返回后处理函数不会再被调用。
type subscription struct {
	channel   string
	handler   Handler
	deliverMu sync.Mutex
	removed   bool
}

// Bus 进程内事件总线，按频道投递，保持发布顺序
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]*subscription
	closed bool
}

// New 创建事件总线
func New() *Bus {
	return &Bus{subs: make(map[string][]*subscription)}
}

// Subscribe 订阅频道，返回幂等的退订函数。
// 退订函数返回后，该订阅的处理函数保证不会再被调用。
func (b *Bus) Subscribe(channel string, handler Handler) (func(), error) {
	if handler == nil {
		return nil, ErrNilHandler
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBusClosed
	}
	sub := &subscription{channel: channel, handler: handler}
	b.subs[channel] = append(b.subs[channel], sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.unsubscribe(sub)
		})
	}, nil
}

// Publish 向频道发布事件，在调用方 goroutine 内同步投递。
// 同一生产者按发布顺序到达各订阅者
func (b *Bus) Publish(channel string, event models.StreamEvent) {
	b.mu.RLock()
	subs := make([]*subscription, len(b.subs[channel]))
	copy(subs, b.subs[channel])
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.deliverMu.Lock()
		if !sub.removed {
			safeDeliver(sub.handler, event)
		}
		sub.deliverMu.Unlock()
	}
}

// unsubscribe 标记订阅失效并从频道列表移除
func (b *Bus) unsubscribe(sub *subscription) {
	// 先在投递锁内打标记：并发中的投递要么已完成，要么看到 removed
	sub.deliverMu.Lock()
	sub.removed = true
	sub.deliverMu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[sub.channel]
	for i, s := range list {
		if s == sub {
			b.subs[sub.channel] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(b.subs[sub.channel]) == 0 {
		delete(b.subs, sub.channel)
	}
}

// Close 关闭总线，之后 Subscribe 返回错误，Publish 变为空操作
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[string][]*subscription)
}

// safeDeliver 投递事件，捕获处理函数 panic 避免拖垮生产者
func safeDeliver(h Handler, event models.StreamEvent) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("handler panic recovered: %v", r)
		}
	}()
	h(event)
}
