// Package picks 从 AI 选股报告全文中提取 <PICKS> 结构化推荐块。
// 流式输出过程中标签可能尚未闭合，也可能因超长被截断，
// 所有入口共用同一套标签定位规则，保证提取与展示不产生分歧。
package picks

import (
	"encoding/json"
	"strings"
)

// 结构化推荐块标签
const (
	OpenMarker  = "<PICKS>"
	CloseMarker = "</PICKS>"
)

// 模型偶发输出的第三方转录结束标记，出现后的内容不可展示
var endOfTranscriptMarkers = []string{"<｜", "DSML"}

// 评级取值
const (
	RatingStrongBuy = "strong_buy"
	RatingBuy       = "buy"
	RatingWatch     = "watch"
)

// Recommendation 单条选股推荐
type Recommendation struct {
	Code          string   `json:"code"`
	Name          string   `json:"name"`
	Reason        string   `json:"reason"`
	Rating        string   `json:"rating"` // strong_buy/buy/watch
	Price         float64  `json:"price,omitempty"`
	ChangePercent float64  `json:"changePercent,omitempty"`
	Sector        string   `json:"sector,omitempty"`
	Highlights    []string `json:"highlights,omitempty"`
}

// Valid 校验必填字段与评级取值
func (r *Recommendation) Valid() bool {
	if strings.TrimSpace(r.Code) == "" ||
		strings.TrimSpace(r.Name) == "" ||
		strings.TrimSpace(r.Reason) == "" {
		return false
	}
	switch r.Rating {
	case RatingStrongBuy, RatingBuy, RatingWatch:
		return true
	}
	return false
}

// Result 提取结果
type Result struct {
	Records   []Recommendation
	HadMarker bool // 完整标签对存在
	ParseOK   bool // 标签对存在时负载是否解析成功
}

// blockPos 标签块在全文中的位置
type blockPos struct {
	open       int  // OpenMarker 起始下标
	payloadLow int  // 负载起始下标
	payloadHi  int  // 负载结束下标（CloseMarker 前）
	end        int  // CloseMarker 之后的下标
	closed     bool // 闭合标签是否出现
}

// locateBlock 定位标签块。返回 false 表示全文没有开标签
func locateBlock(text string) (blockPos, bool) {
	open := strings.Index(text, OpenMarker)
	if open < 0 {
		return blockPos{}, false
	}
	pos := blockPos{open: open, payloadLow: open + len(OpenMarker)}
	rel := strings.Index(text[pos.payloadLow:], CloseMarker)
	if rel < 0 {
		return pos, true
	}
	pos.closed = true
	pos.payloadHi = pos.payloadLow + rel
	pos.end = pos.payloadHi + len(CloseMarker)
	return pos, true
}

// Extract 对累积全文做一次完整提取。
// 只有开标签（流式未完或截断）视为"块尚未出现"，不算解析失败；
// 标签对完整但负载无法解析时 ParseOK=false，由会话层在完成时转为解析告警。
func Extract(text string) Result {
	pos, found := locateBlock(text)
	if !found || !pos.closed {
		return Result{ParseOK: true}
	}

	payload := strings.TrimSpace(text[pos.payloadLow:pos.payloadHi])
	payload = stripCodeFence(payload)

	var raw []Recommendation
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return Result{HadMarker: true, ParseOK: false}
	}

	records := make([]Recommendation, 0, len(raw))
	for _, r := range raw {
		if r.Valid() {
			records = append(records, r)
		}
	}
	return Result{Records: records, HadMarker: true, ParseOK: true}
}

// DisplayText 返回可展示的正文：剔除标签块本身、
// 末尾未闭合的开标签残片，以及转录结束标记之后的内容。
func DisplayText(text string) string {
	for _, m := range endOfTranscriptMarkers {
		if idx := strings.Index(text, m); idx >= 0 {
			text = text[:idx]
		}
	}

	for {
		pos, found := locateBlock(text)
		if !found {
			break
		}
		if pos.closed {
			// 闭合块剔除后余下文本可能再次出现标签，继续扫描
			text = text[:pos.open] + text[pos.end:]
			continue
		}
		text = text[:pos.open]
		break
	}
	text = trimPartialMarker(text)
	return strings.TrimRight(text, " \t\n")
}

// trimPartialMarker 剔除末尾尚未成形的开标签前缀（如 "<PI"）
func trimPartialMarker(text string) string {
	max := len(OpenMarker) - 1
	if max > len(text) {
		max = len(text)
	}
	for n := max; n > 0; n-- {
		if strings.HasSuffix(text, OpenMarker[:n]) {
			return text[:len(text)-n]
		}
	}
	return text
}

// stripCodeFence 容错：模型偶尔会在标签内再包一层 ```json 代码块
func stripCodeFence(payload string) string {
	if !strings.HasPrefix(payload, "```") {
		return payload
	}
	payload = strings.TrimPrefix(payload, "```json")
	payload = strings.TrimPrefix(payload, "```")
	payload = strings.TrimSuffix(strings.TrimSpace(payload), "```")
	return strings.TrimSpace(payload)
}
