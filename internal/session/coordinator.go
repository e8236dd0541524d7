package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/run-bigpig/xuangu/internal/eventbus"
	"github.com/run-bigpig/xuangu/internal/models"
	"github.com/run-bigpig/xuangu/internal/picks"
)

// 主选股会话的保留标识与频道名
const (
	KeyPick     = "pick"
	ChannelPick = "ai-pick-stream"
)

// ErrPickRunning 主选股会话尚在运行，拒绝重复启动
var ErrPickRunning = errors.New("选股会话进行中，请先停止或等待完成")

// SimilarKey 找相似侧会话的注册表标识
func SimilarKey(code string) string {
	return "similar:" + code
}

// SimilarChannel 按股票代码派生找相似会话的事件频道名
func SimilarChannel(code string) string {
	return "ai-similar-" + code
}

// Producer 事件生产方（agent runner）。Run* 阻塞直到产完事件流，
// Stop 为尽力而为的停止信号，不保证生效也不要求应答。
type Producer interface {
	RunPick(ctx context.Context, channel string)
	RunSimilar(ctx context.Context, channel, code, name, sector string)
	Stop(channel string)
}

// ResultCache 主选股结果缓存（单槽）
type ResultCache interface {
	Save(content string) error
	Load() (string, error)
	Clear() error
}

// QuoteLookup 行情快照查询，用于补齐推荐缺失的现价，失败可忽略
type QuoteLookup func(code string) (*models.Stock, error)

// entry 注册表条目：会话、生产方取消句柄与本次运行的总线频道
type entry struct {
	sess    *Session
	cancel  context.CancelFunc
	channel string
}

// Coordinator 会话协调器。独占持有注册表：
// 至多一个主选股会话，任意多个按股票代码区分的找相似会话；
// 同一标识上的启动会先终止旧会话（supersede），不同标识互不影响。
type Coordinator struct {
	bus      *eventbus.Bus
	producer Producer
	cache    ResultCache
	quote    QuoteLookup
	onUpdate UpdateFunc

	mu       sync.Mutex
	sessions map[string]*entry
}

// NewCoordinator 创建会话协调器
func NewCoordinator(bus *eventbus.Bus, producer Producer, cache ResultCache, quote QuoteLookup, onUpdate UpdateFunc) *Coordinator {
	return &Coordinator{
		bus:      bus,
		producer: producer,
		cache:    cache,
		quote:    quote,
		onUpdate: onUpdate,
		sessions: make(map[string]*entry),
	}
}

// StartPick 启动主选股会话。已有运行中的主会话时拒绝
func (c *Coordinator) StartPick() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.sessions[KeyPick]; ok && e.sess.Status() == StatusRunning {
		return ErrPickRunning
	}
	return c.startLocked(KeyPick, ChannelPick, func(ctx context.Context, busChannel string) {
		c.producer.RunPick(ctx, busChannel)
	}, c.pickUpdate)
}

// StopPick 停止运行中的主选股会话：尽力通知生产方，随即本地取消
func (c *Coordinator) StopPick() {
	c.mu.Lock()
	e, ok := c.sessions[KeyPick]
	c.mu.Unlock()
	if !ok || e.sess.Status() != StatusRunning {
		return
	}

	go c.producer.Stop(e.channel)
	e.cancel()
	e.sess.Cancel()
}

// StartSimilar 启动找相似会话。同一股票已有会话时先终止旧会话
func (c *Coordinator) StartSimilar(code, name, sector string) error {
	key := SimilarKey(code)
	channel := SimilarChannel(code)

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.sessions[key]; ok {
		old.cancel()
		old.sess.Cancel()
		delete(c.sessions, key)
	}
	return c.startLocked(key, channel, func(ctx context.Context, busChannel string) {
		c.producer.RunSimilar(ctx, busChannel, code, name, sector)
	}, c.forward)
}

// CloseSimilar 关闭并移除找相似会话，无论其状态
func (c *Coordinator) CloseSimilar(code string) {
	key := SimilarKey(code)

	c.mu.Lock()
	e, ok := c.sessions[key]
	if ok {
		delete(c.sessions, key)
	}
	c.mu.Unlock()

	if ok {
		e.cancel()
		e.sess.Cancel()
	}
}

// startLocked 建会话、订阅频道、拉起生产方。需持有 c.mu。
// 总线频道按会话标识派生，同名重启后旧生产方的迟到事件投不进新会话。
// 订阅失败时会话直接落入失败态并返回错误，不进入运行态
func (c *Coordinator) startLocked(key, channel string, run func(ctx context.Context, busChannel string), update UpdateFunc) error {
	sess := newSession(key, channel, update)
	busChannel := channel + "#" + sess.id
	sess.channel = busChannel

	unsub, err := c.bus.Subscribe(busChannel, sess.HandleEvent)
	if err != nil {
		c.sessions[key] = &entry{sess: sess, cancel: func() {}, channel: busChannel}
		sess.Fail(fmt.Sprintf("订阅事件源失败: %v", err))
		return fmt.Errorf("subscribe %s error: %w", busChannel, err)
	}
	sess.setRelease(unsub)

	ctx, cancel := context.WithCancel(context.Background())
	c.sessions[key] = &entry{sess: sess, cancel: cancel, channel: busChannel}
	sess.Start()

	go run(ctx, busChannel)
	log.Info("session %s started on channel %s", key, busChannel)
	return nil
}

// LoadCached 读取缓存的当日选股结果，存在时生成已完成的主会话视图（无订阅）
func (c *Coordinator) LoadCached() (Snapshot, bool) {
	if c.cache == nil {
		return Snapshot{}, false
	}
	content, err := c.cache.Load()
	if err != nil {
		log.Warn("load pick cache error: %v", err)
		return Snapshot{}, false
	}
	if content == "" {
		return Snapshot{}, false
	}

	c.mu.Lock()
	if e, ok := c.sessions[KeyPick]; ok && e.sess.Status() == StatusRunning {
		// 运行中的主会话不被缓存覆盖
		c.mu.Unlock()
		return Snapshot{}, false
	}
	sess := newSession(KeyPick, ChannelPick, c.forward)
	c.sessions[KeyPick] = &entry{sess: sess, cancel: func() {}}
	c.mu.Unlock()

	sess.seedCompleted(content)
	return sess.Snapshot(), true
}

// Snapshot 查询指定会话的当前视图
func (c *Coordinator) Snapshot(key string) (Snapshot, bool) {
	c.mu.Lock()
	e, ok := c.sessions[key]
	c.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}
	return e.sess.Snapshot(), true
}

// pickUpdate 主会话快照钩子：完成时写结果缓存并补齐推荐现价
func (c *Coordinator) pickUpdate(snap Snapshot) {
	if snap.Status == StatusCompleted {
		if c.cache != nil && snap.RawContent != "" {
			if err := c.cache.Save(snap.RawContent); err != nil {
				log.Error("save pick cache error: %v", err)
			}
		}
		c.backfillPrices(snap.Recommendations)
	}
	c.forward(snap)
}

// forward 向外层转发快照
func (c *Coordinator) forward(snap Snapshot) {
	if c.onUpdate != nil {
		c.onUpdate(snap)
	}
}

// backfillPrices 用行情快照补齐缺失的现价与涨跌幅，查询失败直接忽略
func (c *Coordinator) backfillPrices(recs []picks.Recommendation) {
	if c.quote == nil {
		return
	}
	for i := range recs {
		if recs[i].Price > 0 {
			continue
		}
		stock, err := c.quote(recs[i].Code)
		if err != nil || stock == nil {
			continue
		}
		recs[i].Price = stock.Price
		recs[i].ChangePercent = stock.ChangePercent
	}
}
