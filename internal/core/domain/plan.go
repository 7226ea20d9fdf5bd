package domain

// PlanRequest describes the parcel to subdivide. Dimensions are in meters,
// areas in square meters. A TargetLots of 0 lets the generator decide.
type PlanRequest struct {
	Width      float64 `json:"width"`
	Depth      float64 `json:"depth"`
	MinLotArea float64 `json:"min_lot_area"`
	TargetLots int     `json:"target_lots"`
	Notes      string  `json:"notes,omitempty"`
}

// TotalArea returns the parcel area in square meters.
func (r PlanRequest) TotalArea() float64 {
	return r.Width * r.Depth
}

// MaxLots is the number of lots the parcel can hold at the minimum lot area.
func (r PlanRequest) MaxLots() int {
	if r.MinLotArea <= 0 {
		return 0
	}
	return int(r.TotalArea() / r.MinLotArea)
}

// Rect is an axis-aligned rectangle in parcel coordinates (origin at the
// parcel's south-west corner).
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Area returns the rectangle area.
func (r Rect) Area() float64 {
	return r.Width * r.Height
}

// Overlaps reports whether two rectangles share interior area. Touching edges
// do not count.
func (r Rect) Overlaps(o Rect) bool {
	const eps = 1e-6
	return r.X+eps < o.X+o.Width && o.X+eps < r.X+r.Width &&
		r.Y+eps < o.Y+o.Height && o.Y+eps < r.Y+r.Height
}

// Lot is a single parcel in a generated plan.
type Lot struct {
	ID     string  `json:"id"`
	Bounds Rect    `json:"bounds"`
	Area   float64 `json:"area"`
}

// Plan is a subdivision layout returned by the generation service.
type Plan struct {
	Lots    []Lot  `json:"lots"`
	Summary string `json:"summary,omitempty"`
}

// TotalArea sums the declared lot areas.
func (p Plan) TotalArea() float64 {
	var total float64
	for _, l := range p.Lots {
		total += l.Area
	}
	return total
}
