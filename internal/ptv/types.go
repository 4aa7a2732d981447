package ptv

// Route types as defined by the PTV Timetable API.
const (
	RouteTypeTrain = 0
	RouteTypeTram  = 1
	RouteTypeBus   = 2
	RouteTypeVLine = 3
)

var routeTypeNames = map[int]string{
	RouteTypeTrain: "train",
	RouteTypeTram:  "tram",
	RouteTypeBus:   "bus",
	RouteTypeVLine: "vline",
}

// RouteTypeName returns the human name for a route type, or "unknown".
func RouteTypeName(routeType int) string {
	if name, ok := routeTypeNames[routeType]; ok {
		return name
	}
	return "unknown"
}

// VehiclePosition is one observed live position of a vehicle. Heading and
// DirectionID are nil when the upstream feed omits them.
type VehiclePosition struct {
	VehicleID   string
	RouteID     string
	RunID       string
	Latitude    float64
	Longitude   float64
	Timestamp   string // upstream UTC instant, kept opaque
	DirectionID *int
	Heading     *float64
	RouteType   int
}

// Wire types for the two PTV endpoints we consume. Numeric IDs arrive as
// JSON numbers; optional fields are pointers so absence survives decoding.

type routesResponse struct {
	Routes []routeEntry `json:"routes"`
}

type routeEntry struct {
	RouteID *int `json:"route_id"`
}

type runsResponse struct {
	Runs []Run `json:"runs"`
}

// Run is a single scheduled service instance on a route.
type Run struct {
	RunID           int64         `json:"run_id"`
	RunRef          string        `json:"run_ref"`
	RouteID         int           `json:"route_id"`
	RouteType       int           `json:"route_type"`
	DirectionID     *int          `json:"direction_id"`
	VehiclePosition *wirePosition `json:"vehicle_position"`
}

type wirePosition struct {
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Bearing     *float64 `json:"bearing"`
	DatetimeUTC string   `json:"datetime_utc"`
}
