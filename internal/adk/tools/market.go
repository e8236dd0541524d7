package tools

import (
	"fmt"

	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"
)

// GetStockRealtimeInput 实时行情输入参数
type GetStockRealtimeInput struct {
	Codes []string `json:"codes" jsonschema:"股票代码列表，如 sh600519, sz000001"`
}

// GetStockRealtimeOutput 实时行情输出
type GetStockRealtimeOutput struct {
	Data string `json:"data" jsonschema:"股票实时数据，包含价格、涨跌幅等信息"`
}

// createStockRealtimeTool 创建实时行情工具
func (r *Registry) createStockRealtimeTool() (tool.Tool, error) {
	handler := func(ctx tool.Context, input GetStockRealtimeInput) (GetStockRealtimeOutput, error) {
		log.Debug("get_stock_realtime 调用, codes=%v", input.Codes)

		if len(input.Codes) == 0 {
			return GetStockRealtimeOutput{Data: "请提供股票代码"}, nil
		}

		stocks, err := r.marketService.GetStockRealTimeData(input.Codes...)
		if err != nil {
			log.Warn("get_stock_realtime 失败: %v", err)
			return GetStockRealtimeOutput{}, err
		}

		var result string
		for _, s := range stocks {
			result += fmt.Sprintf("【%s(%s)】价格:%.2f 涨跌:%.2f%% 开盘:%.2f 最高:%.2f 最低:%.2f 成交量:%d\n",
				s.Name, s.Symbol, s.Price, s.ChangePercent, s.Open, s.High, s.Low, s.Volume)
		}

		return GetStockRealtimeOutput{Data: result}, nil
	}

	return functiontool.New(functiontool.Config{
		Name:        "get_stock_realtime",
		Description: "获取股票实时行情数据，包括当前价格、涨跌幅、开盘价、最高价、最低价、成交量等",
	}, handler)
}

// GetKLineInput K线数据输入参数
type GetKLineInput struct {
	Code   string `json:"code" jsonschema:"股票代码，如 sh600519"`
	Period string `json:"period,omitempty" jsonschema:"K线周期: 5m, 15m, 30m, 60m, 1d，默认1d"`
	Limit  int    `json:"limit,omitzero" jsonschema:"获取条数，默认30"`
}

// GetKLineOutput K线数据输出
type GetKLineOutput struct {
	Data string `json:"data" jsonschema:"K线数据"`
}

// createKLineTool 创建K线数据工具
func (r *Registry) createKLineTool() (tool.Tool, error) {
	handler := func(ctx tool.Context, input GetKLineInput) (GetKLineOutput, error) {
		log.Debug("get_kline_data 调用, code=%s, period=%s, limit=%d", input.Code, input.Period, input.Limit)

		if input.Code == "" {
			return GetKLineOutput{Data: "请提供股票代码"}, nil
		}

		period := input.Period
		if period == "" {
			period = "1d"
		}
		limit := input.Limit
		if limit == 0 {
			limit = 30
		}

		klines, err := r.marketService.GetKLineData(input.Code, period, limit)
		if err != nil {
			log.Warn("get_kline_data 失败: %v", err)
			return GetKLineOutput{}, err
		}

		// 只取最近10条避免上下文过长
		start := 0
		if len(klines) > 10 {
			start = len(klines) - 10
		}
		var result string
		for _, k := range klines[start:] {
			result += fmt.Sprintf("%s: 开%.2f 高%.2f 低%.2f 收%.2f 量%d\n",
				k.Time, k.Open, k.High, k.Low, k.Close, k.Volume)
		}

		return GetKLineOutput{Data: result}, nil
	}

	return functiontool.New(functiontool.Config{
		Name:        "get_kline_data",
		Description: "获取股票K线数据，支持5分钟线、15分钟线、30分钟线、60分钟线、日线",
	}, handler)
}
