package cite

import (
	"context"
	"sync"
)

// stubAnalyzer scripts analysis-model responses call by call. When the
// script runs out the last entry repeats. Safe for concurrent use.
type stubAnalyzer struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int
	users     []string
}

func (s *stubAnalyzer) CompleteJSON(ctx context.Context, system, user string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.calls
	s.calls++
	s.users = append(s.users, user)

	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if len(s.responses) == 0 {
		return "", nil
	}
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return s.responses[i], nil
}

func (s *stubAnalyzer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
