package mocks

import (
	"context"
	"io"

	"aitale-server/internal/storage"

	"github.com/stretchr/testify/mock"
)

// BlobStore mock. Reads the uploaded body so callers see a consumed reader.
type BlobStore struct {
	mock.Mock
}

var _ storage.BlobStore = (*BlobStore)(nil)

func (m *BlobStore) Upload(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	args := m.Called(ctx, key, contentType, body)
	return args.String(0), args.Error(1)
}
