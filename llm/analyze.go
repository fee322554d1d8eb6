package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// 能源分析提示词模板。检索上下文最多取前 5 条。
const analysisPromptTemplate = `You are an expert in energy data analysis for Malaysia.

RELEVANT CONTEXT:
%s

USER QUESTION:
%s

INSTRUCTIONS:
1. Analyze the data precisely and factually
2. Use the provided context to ground your answer
3. Provide actionable insights
4. Include specific metrics where possible
5. Format the answer in clear sections

STRUCTURED ANSWER:`

const maxPromptContexts = 5

// Analysis 一次分析的结果。
type Analysis struct {
	Answer   string `json:"answer"`
	Model    string `json:"model"`
	Fallback bool   `json:"fallback"`
}

// BuildPrompt 把检索上下文与问题组装成分析提示词。
func BuildPrompt(question string, contexts []string) string {
	ragContext := "No specific context found"
	if len(contexts) > 0 {
		if len(contexts) > maxPromptContexts {
			contexts = contexts[:maxPromptContexts]
		}
		lines := make([]string, len(contexts))
		for i, c := range contexts {
			lines[i] = "- " + c
		}
		ragContext = strings.Join(lines, "\n")
	}
	return fmt.Sprintf(analysisPromptTemplate, ragContext, question)
}

// FallbackAnalysis 模型不可用时的降级回答。
func FallbackAnalysis(question string, contexts []string) string {
	var b strings.Builder
	b.WriteString("FALLBACK ANALYSIS - Malaysia energy data\n\n")
	b.WriteString("Question: " + question + "\n\n")
	if len(contexts) > 0 {
		b.WriteString("Available knowledge:\n")
		n := len(contexts)
		if n > maxPromptContexts {
			n = maxPromptContexts
		}
		for _, c := range contexts[:n] {
			b.WriteString("- " + c + "\n")
		}
		b.WriteString("\n")
	}
	b.WriteString("Note: this simplified analysis is generated when the LLM is unavailable.\n")
	b.WriteString("For a full analysis, check the Ollama connection.")
	return b.String()
}

// Analyze 生成式分析：调用失败时返回降级回答而不是错误，
// 上层对话界面总能得到输出。
func (c *Client) Analyze(ctx context.Context, question string, contexts []string) (Analysis, error) {
	prompt := BuildPrompt(question, contexts)

	answer, err := c.Generate(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return Analysis{}, ctx.Err()
		}
		c.logger.Warn("llm generation failed, using fallback", zap.Error(err))
		return Analysis{
			Answer:   FallbackAnalysis(question, contexts),
			Model:    c.config.Model,
			Fallback: true,
		}, nil
	}

	return Analysis{
		Answer: strings.TrimSpace(answer),
		Model:  c.config.Model,
	}, nil
}
