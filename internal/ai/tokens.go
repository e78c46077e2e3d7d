package ai

import (
	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// fallbackEncoding используется для моделей, которых tiktoken не знает (ollama и т.п.).
const fallbackEncoding = "cl100k_base"

// CountTokens returns the number of tokens in text for the model's encoding.
func CountTokens(model, text string) (int, error) {
	tke, err := tiktoken.EncodingForModel(model)
	if err != nil {
		tke, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return 0, err
		}
	}
	return len(tke.Encode(text, nil, nil)), nil
}

// estimateUsage считает токены локально, когда провайдер не вернул usage.
func estimateUsage(model, prompt, completion string, logger *zap.Logger) UsageInfo {
	promptTokens, err := CountTokens(model, prompt)
	if err != nil {
		logger.Warn("Could not get tokenizer, skipping token estimation", zap.Error(err))
		return UsageInfo{}
	}
	completionTokens, err := CountTokens(model, completion)
	if err != nil {
		return UsageInfo{}
	}
	return UsageInfo{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		Estimated:        true,
	}
}
