package model

import "time"

// Driver status values as reported by the status-transition service.
const (
    StatusAvailable   = "AVAILABLE"
    StatusAssigned    = "ASSIGNED"
    StatusInRoute     = "IN_ROUTE"
    StatusOnPause     = "ON_PAUSE"
    StatusCompleted   = "COMPLETED"
    StatusUnavailable = "UNAVAILABLE"
    StatusAbsent      = "ABSENT"
)

// statusTransitions holds the legal driver status machine. The scoring engine
// never enforces it; SetDriverStatus at the store boundary does.
var statusTransitions = map[string][]string{
    StatusAvailable:   {StatusAssigned, StatusUnavailable, StatusAbsent},
    StatusAssigned:    {StatusInRoute, StatusAvailable, StatusUnavailable, StatusAbsent},
    StatusInRoute:     {StatusOnPause, StatusCompleted, StatusUnavailable, StatusAbsent},
    StatusOnPause:     {StatusInRoute, StatusAvailable, StatusUnavailable, StatusAbsent},
    StatusCompleted:   {StatusAvailable, StatusAssigned, StatusUnavailable},
    StatusUnavailable: {StatusAvailable},
    StatusAbsent:      {StatusAvailable, StatusUnavailable},
}

// CanTransition reports whether a driver may move between two statuses.
func CanTransition(from, to string) bool {
    for _, s := range statusTransitions[from] {
        if s == to { return true }
    }
    return false
}

// KnownStatus reports whether s is a recognized driver status.
func KnownStatus(s string) bool {
    _, ok := statusTransitions[s]
    return ok
}

// SkillAssignment is one skill held by a driver. Expiry is optional; an
// assignment past its expiry still counts toward coverage but is penalized.
type SkillAssignment struct {
    SkillID string     `json:"skillId"`
    Expiry  *time.Time `json:"expiry,omitempty"`
    Active  bool       `json:"active"`
}

type Driver struct {
    ID                string            `json:"id"`
    TenantID          string            `json:"tenantId"`
    Name              string            `json:"name"`
    LicenseNumber     string            `json:"licenseNumber,omitempty"`
    LicenseExpiry     *time.Time        `json:"licenseExpiry,omitempty"`
    LicenseCategories []string          `json:"licenseCategories,omitempty"`
    PrimaryFleetID    string            `json:"primaryFleetId"`
    SecondaryFleetIDs []string          `json:"secondaryFleetIds,omitempty"`
    Status            string            `json:"status"`
    Skills            []SkillAssignment `json:"skills,omitempty"`
    Active            bool              `json:"active"`
}

// InFleet reports whether the driver belongs to fleetID, primary or secondary.
func (d Driver) InFleet(fleetID string) bool {
    if d.PrimaryFleetID == fleetID { return true }
    for _, f := range d.SecondaryFleetIDs {
        if f == fleetID { return true }
    }
    return false
}

// HasLicenseCategory reports whether the driver holds the given category code.
func (d Driver) HasLicenseCategory(cat string) bool {
    for _, c := range d.LicenseCategories {
        if c == cat { return true }
    }
    return false
}

// Vehicle may belong to several fleets; the first is primary for matching.
type Vehicle struct {
    ID              string   `json:"id"`
    TenantID        string   `json:"tenantId"`
    Label           string   `json:"label,omitempty"`
    FleetIDs        []string `json:"fleetIds"`
    RequiredLicense string   `json:"requiredLicense,omitempty"`
}

// PrimaryFleetID returns the vehicle's primary fleet, if any.
func (v Vehicle) PrimaryFleetID() string {
    if len(v.FleetIDs) == 0 { return "" }
    return v.FleetIDs[0]
}

// Order carries required skills both parsed and in the legacy serialized shape.
// When only RequiredSkillsRaw is present it is parsed lazily; malformed data
// degrades to an empty contribution.
type Order struct {
    ID                string   `json:"id"`
    TenantID          string   `json:"tenantId"`
    ExternalRef       string   `json:"externalRef,omitempty"`
    Status            string   `json:"status"`
    RequiredSkills    []string `json:"requiredSkills,omitempty"`
    RequiredSkillsRaw string   `json:"-"`
}

// Stop status values. Pending and in-progress stops are the non-terminal ones
// that make a route "affected" during reassignment.
const (
    StopPending    = "pending"
    StopInProgress = "in_progress"
    StopCompleted  = "completed"
    StopFailed     = "failed"
    StopCancelled  = "cancelled"
    StopSkipped    = "skipped"
)

// StopTerminal reports whether a stop status is terminal.
func StopTerminal(status string) bool {
    switch status {
    case StopCompleted, StopFailed, StopCancelled, StopSkipped:
        return true
    }
    return false
}

type Stop struct {
    ID      string `json:"id"`
    Seq     int    `json:"seq"`
    OrderID string `json:"orderId,omitempty"`
    Status  string `json:"status"`
}

type Route struct {
    ID        string `json:"id"`
    TenantID  string `json:"tenantId"`
    PlanRef   string `json:"planRef,omitempty"`
    Status    string `json:"status"`
    DriverID  string `json:"driverId,omitempty"`
    VehicleID string `json:"vehicleId,omitempty"`
    Stops     []Stop `json:"stops"`
}

// AssignmentFactors are the five independent sub-scores, each 0–100.
type AssignmentFactors struct {
    SkillsMatch  int `json:"skillsMatch"`
    Availability int `json:"availability"`
    LicenseValid int `json:"licenseValid"`
    FleetMatch   int `json:"fleetMatch"`
    Workload     int `json:"workload"`
}

// AssignmentScore is the per-candidate scoring result. Errors are hard
// exclusions from the primary ranked set; warnings are informational only.
type AssignmentScore struct {
    DriverID   string            `json:"driverId"`
    DriverName string            `json:"driverName"`
    Score      int               `json:"score"`
    Factors    AssignmentFactors `json:"factors"`
    Warnings   []string          `json:"warnings"`
    Errors     []string          `json:"errors"`
}

// Excluded reports whether the candidate carries a hard error.
func (s AssignmentScore) Excluded() bool { return len(s.Errors) > 0 }

// SuggestionRequest is the single-vehicle suggestion operation input.
type SuggestionRequest struct {
    VehicleID string   `json:"vehicleId"`
    OrderIDs  []string `json:"orderIds,omitempty"`
    Strategy  string   `json:"strategy,omitempty"`
    Limit     int      `json:"limit,omitempty"`
}

type SuggestionResponse struct {
    Suggestions     []AssignmentScore `json:"suggestions"`
    VehicleID       string            `json:"vehicleId"`
    Strategy        string            `json:"strategy"`
    TotalCandidates int               `json:"totalCandidates"`
    Returned        int               `json:"returned"`
    RequiredSkills  []string          `json:"requiredSkills"`
    Fallback        bool              `json:"fallback,omitempty"`
}

// ReassignmentRequest is the absent-driver reassignment operation input.
type ReassignmentRequest struct {
    DriverID string `json:"driverId"`
    PlanRef  string `json:"planRef,omitempty"`
    Strategy string `json:"strategy,omitempty"`
    Limit    int    `json:"limit,omitempty"`
}

// RouteSummary is the per-route digest attached to a reassignment result.
type RouteSummary struct {
    RouteID         string `json:"routeId"`
    VehicleID       string `json:"vehicleId"`
    PendingStops    int    `json:"pendingStops"`
    InProgressStops int    `json:"inProgressStops"`
}

type ReassignmentResponse struct {
    Options          []AssignmentScore `json:"options"`
    AbsentDriverID   string            `json:"absentDriverId"`
    Strategy         string            `json:"strategy"`
    AffectedRoutes   int               `json:"affectedRoutes"`
    TotalStops       int               `json:"totalStops"`
    PendingStops     int               `json:"pendingStops"`
    InProgressStops  int               `json:"inProgressStops"`
    OptionsGenerated int               `json:"optionsGenerated"`
    Summary          []RouteSummary    `json:"affectedRoutesSummary"`
    Message          string            `json:"message,omitempty"`
}

// StatusUpdate changes a driver's operational status.
type StatusUpdate struct {
    Status string `json:"status"`
    Note   string `json:"note,omitempty"`
}

// AssignRequest commits a chosen suggestion onto a route (downstream step).
type AssignRequest struct {
    DriverID  string `json:"driverId"`
    VehicleID string `json:"vehicleId,omitempty"`
}

type SubscriptionRequest struct {
    TenantID string   `json:"tenantId"`
    URL      string   `json:"url"`
    Events   []string `json:"events"`
    Secret   string   `json:"secret"`
}

type Subscription struct {
    ID       string   `json:"id"`
    TenantID string   `json:"tenantId"`
    URL      string   `json:"url"`
    Events   []string `json:"events"`
    Secret   string   `json:"secret,omitempty"`
}
