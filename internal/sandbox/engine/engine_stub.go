//go:build !linux

package engine

import (
	"context"
	"fmt"

	"arbiter/internal/sandbox/result"
	"arbiter/internal/sandbox/security"
	"arbiter/internal/sandbox/spec"
)

type stubEngine struct{}

func NewEngine(cfg Config, resolver security.Resolver) (Engine, error) {
	return &stubEngine{}, nil
}

func (s *stubEngine) Run(ctx context.Context, runSpec spec.RunSpec) (result.ExecutionReport, error) {
	return result.ExecutionReport{}, fmt.Errorf("sandbox engine is only supported on linux")
}

func (s *stubEngine) KillSubmission(ctx context.Context, submissionID string) error {
	return fmt.Errorf("sandbox engine is only supported on linux")
}
