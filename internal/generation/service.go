// Package generation wires plan and image generation through admission
// control and the retry executor.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/landplan/internal/core/domain"
	"github.com/vietddude/landplan/internal/infra/ratelimit"
	"github.com/vietddude/landplan/internal/infra/retry"
	"github.com/vietddude/landplan/internal/infra/storage"
)

// Generator is the external generation service.
type Generator interface {
	GeneratePlan(ctx context.Context, req domain.PlanRequest) (*domain.Plan, error)
	GenerateImage(ctx context.Context, req domain.ImageRequest) (*domain.Image, error)
}

// planCodes are retried for plan generation on top of the base policy; the
// generator usually produces a valid plan on a fresh attempt.
var planCodes = []retry.Code{
	retry.Symbol(retry.CodeInvalidPlan),
	retry.Symbol(retry.CodeLotsBelowMinimum),
	retry.Symbol(retry.CodeAreaMismatch),
	retry.Symbol(retry.CodeOverlappingLots),
}

// DefaultBatchParallelism bounds concurrent plan requests in a batch.
const DefaultBatchParallelism = 4

// Service runs generation calls.
type Service struct {
	gen      Generator
	limits   *ratelimit.Registry
	executor *retry.Executor
	failures storage.FailedCallRepository
	logger   *slog.Logger

	planPolicy  retry.Policy
	imagePolicy retry.Policy
}

// NewService creates a Service. failures may be nil.
func NewService(
	gen Generator,
	limits *ratelimit.Registry,
	executor *retry.Executor,
	failures storage.FailedCallRepository,
	policy retry.Policy,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		gen:         gen,
		limits:      limits,
		executor:    executor,
		failures:    failures,
		logger:      logger,
		planPolicy:  policy.WithCodes(planCodes...),
		imagePolicy: policy,
	}
}

// GeneratePlan requests a plan and validates it, retrying invalid plans.
func (s *Service) GeneratePlan(ctx context.Context, req domain.PlanRequest) (*domain.Plan, error) {
	return s.generatePlan(ctx, req, s.limits)
}

func (s *Service) generatePlan(ctx context.Context, req domain.PlanRequest, admit retry.Admitter) (*domain.Plan, error) {
	callID := uuid.NewString()

	if err := checkViable(req); err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			return nil, err
		}
		classified := retry.Classify(err)
		s.record(ctx, callID, domain.ResourceTextGeneration, classified)
		return nil, classified
	}

	plan, err := retry.Run(ctx, s.executor,
		func(ctx context.Context) (*domain.Plan, error) {
			plan, err := s.gen.GeneratePlan(ctx, req)
			if err != nil {
				return nil, err
			}
			if err := ValidatePlan(req, plan); err != nil {
				return nil, err
			}
			return plan, nil
		},
		retry.WithPolicy(s.planPolicy),
		retry.WithAdmission(admit, domain.ResourceTextGeneration),
		retry.WithCallID(callID),
		retry.WithOnRetry(s.onRetry(callID, domain.ResourceTextGeneration)),
	)
	if err != nil {
		s.recordErr(ctx, callID, domain.ResourceTextGeneration, err)
		return nil, err
	}

	s.logger.Info("Plan generated", "call_id", callID, "lots", len(plan.Lots))
	return plan, nil
}

// GenerateImage requests a preview image.
func (s *Service) GenerateImage(ctx context.Context, req domain.ImageRequest) (*domain.Image, error) {
	if req.Prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrInvalidRequest)
	}

	callID := uuid.NewString()
	img, err := retry.Run(ctx, s.executor,
		func(ctx context.Context) (*domain.Image, error) {
			return s.gen.GenerateImage(ctx, req)
		},
		retry.WithPolicy(s.imagePolicy),
		retry.WithAdmission(s.limits, domain.ResourceImageGeneration),
		retry.WithCallID(callID),
		retry.WithOnRetry(s.onRetry(callID, domain.ResourceImageGeneration)),
	)
	if err != nil {
		s.recordErr(ctx, callID, domain.ResourceImageGeneration, err)
		return nil, err
	}
	return img, nil
}

// BatchResult is the outcome of one request in a batch.
type BatchResult struct {
	Request domain.PlanRequest
	Plan    *domain.Plan
	Err     error
}

// GenerateBatch generates plans for every request with at most parallelism
// calls in flight. Admission waits for tokens instead of failing, so a batch
// larger than the bucket drains at the refill rate. Each result carries its
// own error; one failure does not stop the others.
func (s *Service) GenerateBatch(ctx context.Context, reqs []domain.PlanRequest, parallelism int) []BatchResult {
	if parallelism <= 0 {
		parallelism = DefaultBatchParallelism
	}

	results := make([]BatchResult, len(reqs))
	admit := waitingAdmitter{ctx: ctx, limits: s.limits}

	g := new(errgroup.Group)
	g.SetLimit(parallelism)
	for i, req := range reqs {
		g.Go(func() error {
			plan, err := s.generatePlan(ctx, req, admit)
			results[i] = BatchResult{Request: req, Plan: plan, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// RateLimitStatus reports every bucket without consuming tokens.
func (s *Service) RateLimitStatus() map[domain.ResourceName]ratelimit.Status {
	return s.limits.Snapshot()
}

// waitingAdmitter blocks until a token is available instead of rejecting.
type waitingAdmitter struct {
	ctx    context.Context
	limits *ratelimit.Registry
}

func (a waitingAdmitter) CheckAndConsume(name domain.ResourceName) error {
	return a.limits.Wait(a.ctx, name)
}

func (s *Service) onRetry(callID string, resource domain.ResourceName) retry.RetryFunc {
	return func(a retry.Attempt) {
		s.logger.Info("Generation attempt failed, retrying",
			"call_id", callID,
			"resource", resource,
			"attempt", a.Number,
			"code", a.Err.Code,
			"delay", a.Delay.Round(time.Millisecond),
		)
	}
}

func (s *Service) recordErr(ctx context.Context, callID string, resource domain.ResourceName, err error) {
	var classified *retry.ClassifiedError
	if errors.As(err, &classified) {
		s.record(ctx, callID, resource, classified)
	}
}

func (s *Service) record(ctx context.Context, callID string, resource domain.ResourceName, ce *retry.ClassifiedError) {
	if s.failures == nil {
		return
	}

	fc := &domain.FailedCall{
		ID:          callID,
		Resource:    resource,
		Code:        ce.Code.String(),
		Kind:        string(ce.Kind),
		RawMessage:  ce.RawMessage,
		UserMessage: ce.UserMessage,
		Attempts:    ce.Attempts,
		FailedAt:    time.Now().UTC(),
	}
	// The caller's context may already be done; the log write should still land.
	if err := s.failures.Add(context.WithoutCancel(ctx), fc); err != nil {
		s.logger.Warn("Failed to record failed call", "call_id", callID, "error", err)
	}
}

// UserMessage returns the text to show an end user for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var classified *retry.ClassifiedError
	if errors.As(err, &classified) {
		return classified.UserMessage
	}
	var exceeded *ratelimit.ExceededError
	if errors.As(err, &exceeded) {
		return exceeded.UserMessage()
	}
	switch {
	case errors.Is(err, retry.ErrCanceled):
		return "The request was cancelled."
	case errors.Is(err, ErrInvalidRequest):
		return err.Error()
	}
	return retry.UnknownUserMessage
}
