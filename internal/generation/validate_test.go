package generation

import (
	"errors"
	"testing"

	"github.com/vietddude/landplan/internal/core/domain"
	"github.com/vietddude/landplan/internal/infra/retry"
)

func testRequest() domain.PlanRequest {
	return domain.PlanRequest{Width: 20, Depth: 10, MinLotArea: 50}
}

func gridPlan() *domain.Plan {
	return &domain.Plan{Lots: []domain.Lot{
		{ID: "a", Bounds: domain.Rect{X: 0, Y: 0, Width: 10, Height: 5}, Area: 50},
		{ID: "b", Bounds: domain.Rect{X: 10, Y: 0, Width: 10, Height: 5}, Area: 50},
		{ID: "c", Bounds: domain.Rect{X: 0, Y: 5, Width: 10, Height: 5}, Area: 50},
		{ID: "d", Bounds: domain.Rect{X: 10, Y: 5, Width: 10, Height: 5}, Area: 50},
	}}
}

func TestValidatePlan_Valid(t *testing.T) {
	if err := ValidatePlan(testRequest(), gridPlan()); err != nil {
		t.Fatalf("expected valid plan, got %v", err)
	}
}

func TestValidatePlan_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *domain.Plan)
		code   string
	}{
		{"no lots", func(p *domain.Plan) { p.Lots = nil }, retry.CodeInvalidPlan},
		{"missing id", func(p *domain.Plan) { p.Lots[0].ID = "" }, retry.CodeInvalidPlan},
		{"duplicate id", func(p *domain.Plan) { p.Lots[1].ID = "a" }, retry.CodeInvalidPlan},
		{"outside parcel", func(p *domain.Plan) { p.Lots[3].Bounds.X = 15 }, retry.CodeInvalidPlan},
		{"declared area wrong", func(p *domain.Plan) { p.Lots[2].Area = 70 }, retry.CodeAreaMismatch},
		{
			"too small",
			func(p *domain.Plan) {
				p.Lots[0].Bounds.Width = 5
				p.Lots[0].Area = 25
			},
			retry.CodeLotsBelowMinimum,
		},
		{
			"overlap",
			func(p *domain.Plan) {
				p.Lots[1].Bounds.X = 5
				p.Lots[1].Bounds.Width = 10
			},
			retry.CodeOverlappingLots,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := gridPlan()
			tt.mutate(plan)

			err := ValidatePlan(testRequest(), plan)
			var codeErr *retry.CodeError
			if !errors.As(err, &codeErr) {
				t.Fatalf("expected *retry.CodeError, got %v", err)
			}
			if codeErr.Code != tt.code {
				t.Errorf("code = %s, want %s", codeErr.Code, tt.code)
			}
		})
	}
}

func TestValidatePlan_NilPlan(t *testing.T) {
	err := ValidatePlan(testRequest(), nil)
	if retry.Classify(err).Code != retry.Symbol(retry.CodeInvalidPlan) {
		t.Errorf("nil plan should classify as INVALID_PLAN, got %v", err)
	}
}

func TestCheckViable(t *testing.T) {
	if err := checkViable(testRequest()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := []domain.PlanRequest{
		{Width: 0, Depth: 10, MinLotArea: 50},
		{Width: 10, Depth: -1, MinLotArea: 50},
		{Width: 10, Depth: 10, MinLotArea: 0},
	}
	for _, req := range bad {
		if err := checkViable(req); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("checkViable(%+v) = %v, want ErrInvalidRequest", req, err)
		}
	}

	tooSmall := domain.PlanRequest{Width: 5, Depth: 5, MinLotArea: 50}
	classified := retry.Classify(checkViable(tooSmall))
	if classified.Code != retry.Symbol(retry.CodeNoViableLots) {
		t.Errorf("code = %s, want %s", classified.Code, retry.CodeNoViableLots)
	}
	if classified.Retryable {
		t.Error("NO_VIABLE_LOTS must not be retryable")
	}
}
