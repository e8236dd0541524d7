package main

import (
	"context"
	"strings"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/run-bigpig/xuangu/internal/adk/mcp"
	"github.com/run-bigpig/xuangu/internal/adk/tools"
	"github.com/run-bigpig/xuangu/internal/agent"
	"github.com/run-bigpig/xuangu/internal/eventbus"
	"github.com/run-bigpig/xuangu/internal/logger"
	"github.com/run-bigpig/xuangu/internal/models"
	"github.com/run-bigpig/xuangu/internal/pkg/paths"
	"github.com/run-bigpig/xuangu/internal/services"
	"github.com/run-bigpig/xuangu/internal/session"
	"github.com/run-bigpig/xuangu/internal/store"
)

var log = logger.New("App")

// App Wails 应用，聚合各服务并暴露给前端
type App struct {
	ctx context.Context

	bus           *eventbus.Bus
	coordinator   *session.Coordinator
	configService *services.ConfigService
	marketService *services.MarketService
	newsService   *services.NewsService
	mcpManager    *mcp.Manager
	pickCache     *store.PickCache
}

// NewApp 创建应用实例
func NewApp() *App {
	return &App{}
}

// startup 应用启动回调，完成各服务装配
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	dataDir := paths.EnsureDataDir("")
	log.Info("data dir: %s", dataDir)

	a.bus = eventbus.New()
	a.configService = services.NewConfigService(dataDir)
	a.marketService = services.NewMarketService()
	a.newsService = services.NewNewsService()

	a.mcpManager = mcp.NewManager()
	a.mcpManager.LoadConfigs(a.configService.EnabledMCPServers())

	cache, err := store.OpenPickCache(dataDir)
	if err != nil {
		log.Error("open pick cache error: %v", err)
	} else {
		a.pickCache = cache
	}

	registry := tools.NewRegistry(a.marketService, a.newsService)
	runner := agent.NewRunner(a.bus, a.configService, registry, a.mcpManager)

	var resultCache session.ResultCache
	if a.pickCache != nil {
		resultCache = a.pickCache
	}
	a.coordinator = session.NewCoordinator(
		a.bus,
		runner,
		resultCache,
		a.marketService.GetStockQuote,
		a.emitSnapshot,
	)
}

// shutdown 应用退出回调
func (a *App) shutdown(ctx context.Context) {
	if a.bus != nil {
		a.bus.Close()
	}
	if a.pickCache != nil {
		if err := a.pickCache.Close(); err != nil {
			log.Warn("close pick cache error: %v", err)
		}
	}
}

// emitSnapshot 把会话快照推送给前端，沿用按会话区分的频道名
func (a *App) emitSnapshot(snap session.Snapshot) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, channelForKey(snap.Key), snap)
}

// channelForKey 会话标识到前端事件频道名的映射
func channelForKey(key string) string {
	if code, ok := strings.CutPrefix(key, "similar:"); ok {
		return session.SimilarChannel(code)
	}
	return session.ChannelPick
}

// StartPickSession 启动 AI 自主选股会话
func (a *App) StartPickSession() error {
	return a.coordinator.StartPick()
}

// StopPickSession 停止选股会话
func (a *App) StopPickSession() {
	a.coordinator.StopPick()
}

// StartSimilarSession 启动找相似补涨会话
func (a *App) StartSimilarSession(code, name, sector string) error {
	return a.coordinator.StartSimilar(code, name, sector)
}

// CloseSimilarSession 关闭找相似会话
func (a *App) CloseSimilarSession(code string) {
	a.coordinator.CloseSimilar(code)
}

// GetSessionSnapshot 查询会话当前视图
func (a *App) GetSessionSnapshot(key string) *session.Snapshot {
	snap, ok := a.coordinator.Snapshot(key)
	if !ok {
		return nil
	}
	return &snap
}

// LoadCachedPicks 读取当日缓存的选股结果，无缓存时返回 nil
func (a *App) LoadCachedPicks() *session.Snapshot {
	snap, ok := a.coordinator.LoadCached()
	if !ok {
		return nil
	}
	return &snap
}

// ClearPickCache 清除当日选股缓存
func (a *App) ClearPickCache() error {
	if a.pickCache == nil {
		return nil
	}
	return a.pickCache.Clear()
}

// GetSettings 读取应用设置
func (a *App) GetSettings() services.AppSettings {
	return a.configService.Get()
}

// SaveSettings 保存应用设置并重载 MCP 配置
func (a *App) SaveSettings(settings services.AppSettings) error {
	if err := a.configService.Save(settings); err != nil {
		return err
	}
	a.mcpManager.LoadConfigs(a.configService.EnabledMCPServers())
	return nil
}

// GetStockQuote 查询单只股票实时行情
func (a *App) GetStockQuote(code string) (*models.Stock, error) {
	return a.marketService.GetStockQuote(code)
}

// GetKLineData 查询K线数据
func (a *App) GetKLineData(code, period string, limit int) ([]models.KLineData, error) {
	return a.marketService.GetKLineData(code, period, limit)
}

// GetTelegraphList 查询财经快讯
func (a *App) GetTelegraphList(limit int) ([]services.Telegraph, error) {
	return a.newsService.GetTelegraphList(limit)
}
