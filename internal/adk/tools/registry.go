// Package tools 提供选股 Agent 可用的数据工具集
package tools

import (
	"google.golang.org/adk/tool"

	"github.com/run-bigpig/xuangu/internal/logger"
	"github.com/run-bigpig/xuangu/internal/services"
)

var log = logger.New("Tools")

// Registry 工具注册表，持有各数据服务
type Registry struct {
	marketService *services.MarketService
	newsService   *services.NewsService
}

// NewRegistry 创建工具注册表
func NewRegistry(marketService *services.MarketService, newsService *services.NewsService) *Registry {
	return &Registry{
		marketService: marketService,
		newsService:   newsService,
	}
}

// All 创建全部工具
func (r *Registry) All() ([]tool.Tool, error) {
	creators := []func() (tool.Tool, error){
		r.createStockRealtimeTool,
		r.createKLineTool,
		r.createNewsTool,
		r.createResearchReportTool,
		r.createReportContentTool,
	}

	toolList := make([]tool.Tool, 0, len(creators))
	for _, create := range creators {
		t, err := create()
		if err != nil {
			return nil, err
		}
		toolList = append(toolList, t)
	}
	return toolList, nil
}

// displayNames 工具名到中文展示名的映射，用于流式事件里的提示文案
var displayNames = map[string]string{
	"get_stock_realtime":  "实时行情",
	"get_kline_data":      "K线数据",
	"get_news":            "财经快讯",
	"get_research_report": "研报列表",
	"get_report_content":  "研报正文",
}

// DisplayName 返回工具的中文展示名，未登记的工具返回原名
func DisplayName(name string) string {
	if cn, ok := displayNames[name]; ok {
		return cn
	}
	return name
}
