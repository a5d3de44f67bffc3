package domain

// RouteCandidate is one alternative returned by the routing provider
type RouteCandidate struct {
	ID          int          `json:"id"`
	Geometry    []Coordinate `json:"geometry"`
	AverageRisk float64      `json:"average_risk"`
}

// PendingRouteRequest is the origin/destination pair handed from
// POST /get-cords to GET /find-safest-route within one session
type PendingRouteRequest struct {
	Origin      Coordinate `json:"origin"`
	Destination Coordinate `json:"destination"`
}

// SafestRoute is the outcome of a route selection
type SafestRoute struct {
	Route      RouteCandidate
	Candidates int
}
