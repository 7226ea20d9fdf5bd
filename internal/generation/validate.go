package generation

import (
	"errors"
	"fmt"
	"math"

	"github.com/vietddude/landplan/internal/core/domain"
	"github.com/vietddude/landplan/internal/infra/retry"
)

// areaTolerance is the relative slack allowed when comparing areas.
const areaTolerance = 0.01

// ErrInvalidRequest marks requests rejected before any call is made.
var ErrInvalidRequest = errors.New("invalid request")

// checkViable rejects parcels that cannot hold a single lot. The returned
// NO_VIABLE_LOTS error is not retryable.
func checkViable(req domain.PlanRequest) error {
	if req.Width <= 0 || req.Depth <= 0 {
		return fmt.Errorf("%w: parcel dimensions must be positive", ErrInvalidRequest)
	}
	if req.MinLotArea <= 0 {
		return fmt.Errorf("%w: minimum lot area must be positive", ErrInvalidRequest)
	}
	if req.MaxLots() < 1 {
		return retry.NewCodeError(retry.CodeNoViableLots,
			"parcel of %.1f m² cannot hold a lot of %.1f m²", req.TotalArea(), req.MinLotArea)
	}
	return nil
}

// ValidatePlan checks a generated plan against the request. Failures are
// *retry.CodeError values carrying the plan validation symbols.
func ValidatePlan(req domain.PlanRequest, plan *domain.Plan) error {
	if plan == nil || len(plan.Lots) == 0 {
		return retry.NewCodeError(retry.CodeInvalidPlan, "plan has no lots")
	}

	parcel := domain.Rect{Width: req.Width, Height: req.Depth}
	seen := make(map[string]bool, len(plan.Lots))
	for i, lot := range plan.Lots {
		if lot.ID == "" {
			return retry.NewCodeError(retry.CodeInvalidPlan, "lot %d has no id", i)
		}
		if seen[lot.ID] {
			return retry.NewCodeError(retry.CodeInvalidPlan, "duplicate lot id %s", lot.ID)
		}
		seen[lot.ID] = true

		b := lot.Bounds
		if b.Width <= 0 || b.Height <= 0 {
			return retry.NewCodeError(retry.CodeInvalidPlan, "lot %s has empty bounds", lot.ID)
		}
		if !contains(parcel, b) {
			return retry.NewCodeError(retry.CodeInvalidPlan, "lot %s extends outside the parcel", lot.ID)
		}
		if !closeEnough(lot.Area, b.Area()) {
			return retry.NewCodeError(retry.CodeAreaMismatch,
				"lot %s declares %.1f m² but its bounds cover %.1f m²", lot.ID, lot.Area, b.Area())
		}
	}

	if total := plan.TotalArea(); total > req.TotalArea()*(1+areaTolerance) {
		return retry.NewCodeError(retry.CodeAreaMismatch,
			"lots cover %.1f m² of a %.1f m² parcel", total, req.TotalArea())
	}

	for _, lot := range plan.Lots {
		if lot.Area < req.MinLotArea*(1-areaTolerance) {
			return retry.NewCodeError(retry.CodeLotsBelowMinimum,
				"lot %s is %.1f m², minimum is %.1f m²", lot.ID, lot.Area, req.MinLotArea)
		}
	}

	for i := 0; i < len(plan.Lots); i++ {
		for j := i + 1; j < len(plan.Lots); j++ {
			if plan.Lots[i].Bounds.Overlaps(plan.Lots[j].Bounds) {
				return retry.NewCodeError(retry.CodeOverlappingLots,
					"lots %s and %s overlap", plan.Lots[i].ID, plan.Lots[j].ID)
			}
		}
	}
	return nil
}

func contains(outer, inner domain.Rect) bool {
	const eps = 1e-6
	return inner.X >= outer.X-eps && inner.Y >= outer.Y-eps &&
		inner.X+inner.Width <= outer.X+outer.Width+eps &&
		inner.Y+inner.Height <= outer.Y+outer.Height+eps
}

func closeEnough(a, b float64) bool {
	return math.Abs(a-b) <= math.Max(a, b)*areaTolerance
}
