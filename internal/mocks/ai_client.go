package mocks

import (
	"context"

	"aitale-server/internal/ai"

	"github.com/stretchr/testify/mock"
)

// AIClient mock
type AIClient struct {
	mock.Mock
}

var _ ai.Client = (*AIClient)(nil)

func (m *AIClient) GenerateText(ctx context.Context, systemPrompt, userInput string, params ai.GenerationParams) (string, ai.UsageInfo, error) {
	args := m.Called(ctx, systemPrompt, userInput, params)
	usage, _ := args.Get(1).(ai.UsageInfo)
	return args.String(0), usage, args.Error(2)
}
