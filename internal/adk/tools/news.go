package tools

import (
	"fmt"

	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"
)

// GetNewsInput 快讯输入参数
type GetNewsInput struct {
	Limit int `json:"limit,omitzero" jsonschema:"返回条数，默认10条"`
}

// GetNewsOutput 快讯输出
type GetNewsOutput struct {
	Data string `json:"data" jsonschema:"财经快讯列表"`
}

// createNewsTool 创建快讯工具
func (r *Registry) createNewsTool() (tool.Tool, error) {
	handler := func(ctx tool.Context, input GetNewsInput) (GetNewsOutput, error) {
		log.Debug("get_news 调用, limit=%d", input.Limit)

		limit := input.Limit
		if limit == 0 {
			limit = 10
		}

		news, err := r.newsService.GetTelegraphList(limit)
		if err != nil {
			log.Warn("get_news 失败: %v", err)
			return GetNewsOutput{}, err
		}

		var result string
		for _, n := range news {
			result += fmt.Sprintf("[%s] %s\n", n.Time, n.Content)
		}

		return GetNewsOutput{Data: result}, nil
	}

	return functiontool.New(functiontool.Config{
		Name:        "get_news",
		Description: "获取最新财经快讯，来源于财联社",
	}, handler)
}

// GetResearchReportInput 研报列表输入参数
type GetResearchReportInput struct {
	Limit int `json:"limit,omitzero" jsonschema:"返回条数，默认10条"`
}

// GetResearchReportOutput 研报列表输出
type GetResearchReportOutput struct {
	Data string `json:"data" jsonschema:"研报列表，含标题、机构、发布日期和 infoCode"`
}

// createResearchReportTool 创建研报列表工具
func (r *Registry) createResearchReportTool() (tool.Tool, error) {
	handler := func(ctx tool.Context, input GetResearchReportInput) (GetResearchReportOutput, error) {
		log.Debug("get_research_report 调用, limit=%d", input.Limit)

		limit := input.Limit
		if limit == 0 {
			limit = 10
		}

		reports, err := r.newsService.GetResearchReports(limit)
		if err != nil {
			log.Warn("get_research_report 失败: %v", err)
			return GetResearchReportOutput{}, err
		}

		var result string
		for _, rep := range reports {
			result += fmt.Sprintf("【%s】%s (%s) infoCode=%s\n",
				rep.Org, rep.Title, rep.PublishDate, rep.InfoCode)
		}

		return GetResearchReportOutput{Data: result}, nil
	}

	return functiontool.New(functiontool.Config{
		Name:        "get_research_report",
		Description: "获取最新券商策略研报列表，返回标题、机构、发布日期和用于查正文的 infoCode",
	}, handler)
}

// GetReportContentInput 研报正文输入参数
type GetReportContentInput struct {
	InfoCode string `json:"infoCode" jsonschema:"研报唯一标识码，从研报列表中获取"`
}

// GetReportContentOutput 研报正文输出
type GetReportContentOutput struct {
	Content string `json:"content" jsonschema:"研报正文内容"`
}

// createReportContentTool 创建研报正文工具
func (r *Registry) createReportContentTool() (tool.Tool, error) {
	handler := func(ctx tool.Context, input GetReportContentInput) (GetReportContentOutput, error) {
		log.Debug("get_report_content 调用, infoCode=%s", input.InfoCode)

		if input.InfoCode == "" {
			return GetReportContentOutput{Content: "请提供研报的 infoCode"}, nil
		}

		content, err := r.newsService.GetReportContent(input.InfoCode)
		if err != nil {
			log.Warn("get_report_content 失败: %v", err)
			return GetReportContentOutput{}, err
		}

		return GetReportContentOutput{Content: content}, nil
	}

	return functiontool.New(functiontool.Config{
		Name:        "get_report_content",
		Description: "获取研报正文内容，需要先通过 get_research_report 拿到 infoCode",
	}, handler)
}
