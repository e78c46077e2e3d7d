package mocks

import (
	"context"

	"aitale-server/internal/service"

	"github.com/stretchr/testify/mock"
)

// ImageGenerator mock
type ImageGenerator struct {
	mock.Mock
}

var _ service.ImageGenerator = (*ImageGenerator)(nil)

func (m *ImageGenerator) GenerateImage(ctx context.Context, req service.ImageRequest) (*service.ImageResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*service.ImageResult)
	return res, args.Error(1)
}
