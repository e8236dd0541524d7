// Package openai 将 OpenAI 兼容接口适配为 adk 的 model.LLM，
// 支持流式输出、thinking 模型的 reasoning_content 以及工具调用聚合。
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"slices"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/run-bigpig/xuangu/internal/logger"
)

var modelLog = logger.New("openai:model")

var _ model.LLM = &OpenAIModel{}

// ErrNoChoicesInResponse 响应缺少 choices
var ErrNoChoicesInResponse = errors.New("no choices in OpenAI response")

// OpenAIModel 实现 model.LLM 接口
type OpenAIModel struct {
	Client    *openai.Client
	ModelName string
}

// NewOpenAIModel 创建 OpenAI 兼容模型
func NewOpenAIModel(modelName string, cfg openai.ClientConfig) *OpenAIModel {
	return &OpenAIModel{
		Client:    openai.NewClientWithConfig(cfg),
		ModelName: modelName,
	}
}

// Name 返回模型名称
func (o *OpenAIModel) Name() string {
	return o.ModelName
}

// GenerateContent 实现 model.LLM 接口
func (o *OpenAIModel) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	if stream {
		return o.generateStream(ctx, req)
	}
	return o.generate(ctx, req)
}

// generate 非流式生成
func (o *OpenAIModel) generate(ctx context.Context, req *model.LLMRequest) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		openaiReq, err := toOpenAIChatCompletionRequest(req, o.ModelName)
		if err != nil {
			yield(nil, err)
			return
		}

		resp, err := o.Client.CreateChatCompletion(ctx, openaiReq)
		if err != nil {
			yield(nil, err)
			return
		}

		llmResp, err := convertChatCompletionResponse(&resp)
		if err != nil {
			yield(nil, err)
			return
		}
		yield(llmResp, nil)
	}
}

// generateStream 流式生成
func (o *OpenAIModel) generateStream(ctx context.Context, req *model.LLMRequest) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		openaiReq, err := toOpenAIChatCompletionRequest(req, o.ModelName)
		if err != nil {
			yield(nil, err)
			return
		}
		openaiReq.Stream = true

		stream, err := o.Client.CreateChatCompletionStream(ctx, openaiReq)
		if err != nil {
			yield(nil, err)
			return
		}
		defer stream.Close()

		o.processStream(stream, yield)
	}
}

// toolCallBuilder 聚合流式工具调用分片
type toolCallBuilder struct {
	id   string
	name string
	args string
}

// processStream 消费流式响应：文本与思考片段边收边投，
// 工具调用聚合完整后随最终响应一次性给出
func (o *OpenAIModel) processStream(stream *openai.ChatCompletionStream, yield func(*model.LLMResponse, error) bool) {
	aggregated := &genai.Content{Role: "model", Parts: []*genai.Part{}}
	toolCalls := make(map[int]*toolCallBuilder)
	var textContent, reasoningContent string
	var finishReason genai.FinishReason
	var usage *genai.GenerateContentResponseUsageMetadata
	var streamErr error

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, context.Canceled) {
			return
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				streamErr = fmt.Errorf("流式读取错误: %w", err)
				modelLog.Warn("流式读取中断: %v", err)
			}
			break
		}
		if len(chunk.Choices) == 0 {
			if chunk.Usage != nil {
				usage = convertUsage(chunk.Usage)
			}
			continue
		}

		choice := chunk.Choices[0]

		if choice.Delta.ReasoningContent != "" {
			reasoningContent += choice.Delta.ReasoningContent
			part := &genai.Part{Text: choice.Delta.ReasoningContent, Thought: true}
			if !yield(&model.LLMResponse{
				Content: &genai.Content{Role: "model", Parts: []*genai.Part{part}},
				Partial: true,
			}, nil) {
				return
			}
		}

		if choice.Delta.Content != "" {
			textContent += choice.Delta.Content
			part := &genai.Part{Text: choice.Delta.Content}
			if !yield(&model.LLMResponse{
				Content: &genai.Content{Role: "model", Parts: []*genai.Part{part}},
				Partial: true,
			}, nil) {
				return
			}
		}

		for _, tc := range choice.Delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			builder, ok := toolCalls[idx]
			if !ok {
				builder = &toolCallBuilder{}
				toolCalls[idx] = builder
			}
			if tc.ID != "" {
				builder.id = tc.ID
			}
			if tc.Function.Name != "" {
				builder.name = tc.Function.Name
			}
			builder.args += tc.Function.Arguments
		}

		if choice.FinishReason != "" {
			finishReason = convertFinishReason(string(choice.FinishReason))
		}
		if chunk.Usage != nil {
			usage = convertUsage(chunk.Usage)
		}
	}

	if streamErr != nil {
		yield(nil, streamErr)
		return
	}

	// 文本中可能混入第三方工具调用标记，聚合时解析并剔除
	if textContent != "" {
		vendorCalls, cleaned := parseVendorToolCalls(textContent)
		if cleaned != "" {
			aggregated.Parts = append(aggregated.Parts, &genai.Part{Text: cleaned})
		}
		for i, vc := range vendorCalls {
			aggregated.Parts = append(aggregated.Parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{
					ID:   fmt.Sprintf("vendor_call_%d", i),
					Name: vc.Name,
					Args: vc.Args,
				},
			})
		}
	}

	if reasoningContent != "" {
		aggregated.Parts = append([]*genai.Part{{Text: reasoningContent, Thought: true}}, aggregated.Parts...)
	}

	for _, idx := range sortedKeys(toolCalls) {
		builder := toolCalls[idx]
		aggregated.Parts = append(aggregated.Parts, &genai.Part{
			FunctionCall: &genai.FunctionCall{
				ID:   builder.id,
				Name: builder.name,
				Args: parseJSONArgs(builder.args),
			},
		})
	}

	yield(&model.LLMResponse{
		Content:       aggregated,
		UsageMetadata: usage,
		FinishReason:  finishReason,
		TurnComplete:  true,
	}, nil)
}

// convertUsage 转换 usage 统计
func convertUsage(u *openai.Usage) *genai.GenerateContentResponseUsageMetadata {
	return &genai.GenerateContentResponseUsageMetadata{
		PromptTokenCount:     int32(u.PromptTokens),
		CandidatesTokenCount: int32(u.CompletionTokens),
		TotalTokenCount:      int32(u.TotalTokens),
	}
}

// sortedKeys 返回排序后的 map keys
func sortedKeys(m map[int]*toolCallBuilder) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
