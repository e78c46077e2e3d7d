package mocks

import (
	"context"
	"sync"

	"aitale-server/internal/taskmanager"

	"github.com/google/uuid"
)

// InlineSubmitter runs submitted tasks synchronously, or refuses them when Err is set.
type InlineSubmitter struct {
	mu       sync.Mutex
	Err      error
	Names    []string
	TaskErrs []error
}

var _ taskmanager.Submitter = (*InlineSubmitter)(nil)

func (s *InlineSubmitter) SubmitTask(_ context.Context, name string, taskFunc taskmanager.TaskFunc) (uuid.UUID, error) {
	if s.Err != nil {
		return uuid.Nil, s.Err
	}
	err := taskFunc(context.Background())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Names = append(s.Names, name)
	s.TaskErrs = append(s.TaskErrs, err)
	return uuid.New(), nil
}
