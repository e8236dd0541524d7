package openai

import "strings"

// DeepSeek 系模型在文本流里内联输出工具调用标记，
// 不走标准 tool_calls 字段，这里做识别、解析和清理。
const (
	vendorCallsBegin = "<｜tool▁calls▁begin｜>"
	vendorCallsEnd   = "<｜tool▁calls▁end｜>"
	vendorCallBegin  = "<｜tool▁call▁begin｜>"
	vendorCallEnd    = "<｜tool▁call▁end｜>"
	vendorSep        = "<｜tool▁sep｜>"
)

// vendorCall 从文本标记里解析出的工具调用
type vendorCall struct {
	Name string
	Args map[string]any
}

// parseVendorToolCalls 识别文本中内联的工具调用块，
// 返回解析结果和剔除标记后的正文
func parseVendorToolCalls(text string) ([]vendorCall, string) {
	begin := strings.Index(text, vendorCallsBegin)
	if begin < 0 {
		return nil, text
	}

	cleaned := text[:begin]
	block := text[begin+len(vendorCallsBegin):]
	if end := strings.Index(block, vendorCallsEnd); end >= 0 {
		cleaned += block[end+len(vendorCallsEnd):]
		block = block[:end]
	}

	var calls []vendorCall
	for {
		start := strings.Index(block, vendorCallBegin)
		if start < 0 {
			break
		}
		block = block[start+len(vendorCallBegin):]
		segment := block
		if end := strings.Index(block, vendorCallEnd); end >= 0 {
			segment = block[:end]
			block = block[end+len(vendorCallEnd):]
		} else {
			block = ""
		}
		if call, ok := parseVendorCallSegment(segment); ok {
			calls = append(calls, call)
		}
	}

	return calls, strings.TrimSpace(cleaned)
}

// parseVendorCallSegment 解析单个调用段：
// "function<｜tool▁sep｜>工具名\n```json\n{参数}\n```"
func parseVendorCallSegment(segment string) (vendorCall, bool) {
	sep := strings.Index(segment, vendorSep)
	if sep < 0 {
		return vendorCall{}, false
	}
	rest := segment[sep+len(vendorSep):]

	name := rest
	args := ""
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		name = rest[:nl]
		args = rest[nl+1:]
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return vendorCall{}, false
	}

	args = strings.TrimSpace(args)
	args = strings.TrimPrefix(args, "```json")
	args = strings.TrimPrefix(args, "```")
	args = strings.TrimSuffix(strings.TrimSpace(args), "```")
	return vendorCall{Name: name, Args: parseJSONArgs(strings.TrimSpace(args))}, true
}

// FilterVendorToolCallMarkers 去掉文本中的内联工具调用块，
// 只保留可展示的正文
func FilterVendorToolCallMarkers(text string) string {
	_, cleaned := parseVendorToolCalls(text)
	return cleaned
}
