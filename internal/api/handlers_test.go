package api

import (
    "bytes"
    "context"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "fleetassign/internal/model"
)

func newTestServer(t *testing.T) *Server {
    t.Helper()
    s, err := NewServer()
    if err != nil { t.Fatalf("NewServer: %v", err) }
    return s
}

func seedDriver(t *testing.T, s *Server, tenant string, d model.Driver) model.Driver {
    t.Helper()
    out, err := s.Store.CreateDriver(context.Background(), tenant, d)
    if err != nil { t.Fatalf("seed driver: %v", err) }
    return out
}

func seedVehicle(t *testing.T, s *Server, tenant string, v model.Vehicle) model.Vehicle {
    t.Helper()
    out, err := s.Store.CreateVehicle(context.Background(), tenant, v)
    if err != nil { t.Fatalf("seed vehicle: %v", err) }
    return out
}

func futureDate(days int) *time.Time {
    t := time.Now().Add(time.Duration(days) * 24 * time.Hour)
    return &t
}

func postJSON(t *testing.T, h http.HandlerFunc, path string, body any, hdr map[string]string) *httptest.ResponseRecorder {
    t.Helper()
    b, _ := json.Marshal(body)
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("X-Tenant-Id", "t_test")
    for k, v := range hdr { req.Header.Set(k, v) }
    h(rr, req)
    return rr
}

func TestHealthReady(t *testing.T) {
    s := newTestServer(t)
    rr := httptest.NewRecorder()
    s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
    if rr.Code != 200 { t.Fatalf("health: got %d", rr.Code) }
    rr = httptest.NewRecorder()
    s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
    if rr.Code != 200 { t.Fatalf("ready: got %d", rr.Code) }
}

func TestSuggestEndToEnd(t *testing.T) {
    s := newTestServer(t)
    veh := seedVehicle(t, s, "t_test", model.Vehicle{FleetIDs: []string{"f1"}})
    seedDriver(t, s, "t_test", model.Driver{Name: "Ana", PrimaryFleetID: "f1", Active: true, LicenseExpiry: futureDate(365)})
    seedDriver(t, s, "t_test", model.Driver{Name: "Bo", PrimaryFleetID: "f2", Active: true, LicenseExpiry: futureDate(365)})

    rr := postJSON(t, s.SuggestHandler, "/v1/assignments/suggest", map[string]any{"vehicleId": veh.ID}, nil)
    if rr.Code != 200 { t.Fatalf("suggest: %d %s", rr.Code, rr.Body.String()) }
    var resp model.SuggestionResponse
    if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil { t.Fatalf("decode: %v", err) }
    if resp.TotalCandidates != 1 || len(resp.Suggestions) != 1 {
        t.Fatalf("candidates=%d suggestions=%d", resp.TotalCandidates, len(resp.Suggestions))
    }
    if resp.Suggestions[0].Score < 1 || resp.Suggestions[0].Score > 100 {
        t.Fatalf("score out of range: %d", resp.Suggestions[0].Score)
    }
}

func TestSuggestVehicleNotFound(t *testing.T) {
    s := newTestServer(t)
    rr := postJSON(t, s.SuggestHandler, "/v1/assignments/suggest", map[string]any{"vehicleId": "nope"}, nil)
    if rr.Code != http.StatusNotFound { t.Fatalf("got %d", rr.Code) }
}

func TestSuggestTenantMismatch(t *testing.T) {
    s := newTestServer(t)
    veh := seedVehicle(t, s, "t_other", model.Vehicle{FleetIDs: []string{"f1"}})
    rr := postJSON(t, s.SuggestHandler, "/v1/assignments/suggest", map[string]any{"vehicleId": veh.ID}, nil)
    if rr.Code != http.StatusForbidden { t.Fatalf("got %d", rr.Code) }
}

func TestSuggestValidation(t *testing.T) {
    s := newTestServer(t)
    rr := postJSON(t, s.SuggestHandler, "/v1/assignments/suggest", map[string]any{}, nil)
    if rr.Code != http.StatusBadRequest { t.Fatalf("missing vehicleId: %d", rr.Code) }
    rr = postJSON(t, s.SuggestHandler, "/v1/assignments/suggest", map[string]any{"vehicleId": "v", "strategy": "NOPE"}, nil)
    if rr.Code != http.StatusBadRequest { t.Fatalf("bad strategy: %d", rr.Code) }
    rr = postJSON(t, s.SuggestHandler, "/v1/assignments/suggest", map[string]any{"vehicleId": "v"}, map[string]string{"X-Role": "driver"})
    if rr.Code != http.StatusForbidden { t.Fatalf("driver role: %d", rr.Code) }
}

func TestReassignEndToEnd(t *testing.T) {
    s := newTestServer(t)
    ctx := context.Background()
    veh := seedVehicle(t, s, "t_test", model.Vehicle{FleetIDs: []string{"f1"}})
    absent := seedDriver(t, s, "t_test", model.Driver{Name: "Gone", PrimaryFleetID: "f1", Active: true, LicenseExpiry: futureDate(365)})
    seedDriver(t, s, "t_test", model.Driver{Name: "Sub", PrimaryFleetID: "f1", Active: true, LicenseExpiry: futureDate(365)})
    seedDriver(t, s, "t_test", model.Driver{Name: "Sub2", PrimaryFleetID: "f1", Active: true, LicenseExpiry: futureDate(365)})
    if _, err := s.Store.CreateRoute(ctx, "t_test", model.Route{
        DriverID: absent.ID, VehicleID: veh.ID,
        Stops: []model.Stop{{Status: model.StopPending}, {Status: model.StopInProgress}},
    }); err != nil {
        t.Fatalf("seed route: %v", err)
    }

    rr := postJSON(t, s.ReassignHandler, "/v1/assignments/reassign", map[string]any{"driverId": absent.ID}, nil)
    if rr.Code != 200 { t.Fatalf("reassign: %d %s", rr.Code, rr.Body.String()) }
    var resp model.ReassignmentResponse
    if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil { t.Fatalf("decode: %v", err) }
    if resp.AffectedRoutes != 1 || resp.PendingStops != 1 || resp.InProgressStops != 1 {
        t.Fatalf("summary: %+v", resp)
    }
    if resp.OptionsGenerated != 2 {
        // absent driver remains a pool member but must not appear
        t.Fatalf("options=%d", resp.OptionsGenerated)
    }
    for _, o := range resp.Options {
        if o.DriverID == absent.ID { t.Fatalf("absent driver suggested as replacement") }
    }
}

func TestReassignNoActiveRoutes(t *testing.T) {
    s := newTestServer(t)
    d := seedDriver(t, s, "t_test", model.Driver{Name: "Idle", PrimaryFleetID: "f1", Active: true})
    rr := postJSON(t, s.ReassignHandler, "/v1/assignments/reassign", map[string]any{"driverId": d.ID}, nil)
    if rr.Code != 200 { t.Fatalf("reassign: %d", rr.Code) }
    var resp model.ReassignmentResponse
    _ = json.Unmarshal(rr.Body.Bytes(), &resp)
    if resp.AffectedRoutes != 0 || resp.Message == "" {
        t.Fatalf("expected explanatory terminal result, got %+v", resp)
    }
}

func TestReassignDriverNotFound(t *testing.T) {
    s := newTestServer(t)
    rr := postJSON(t, s.ReassignHandler, "/v1/assignments/reassign", map[string]any{"driverId": "missing"}, nil)
    if rr.Code != http.StatusNotFound { t.Fatalf("got %d", rr.Code) }
}

func TestDriverStatusEndpoint(t *testing.T) {
    s := newTestServer(t)
    d := seedDriver(t, s, "t_test", model.Driver{Name: "Ana", PrimaryFleetID: "f1", Active: true})
    rr := postJSON(t, func(w http.ResponseWriter, r *http.Request) { s.DriverByIDHandler(w, r) },
        "/v1/drivers/"+d.ID+"/status", model.StatusUpdate{Status: model.StatusAbsent}, nil)
    if rr.Code != 200 { t.Fatalf("status: %d %s", rr.Code, rr.Body.String()) }
    var got model.Driver
    _ = json.Unmarshal(rr.Body.Bytes(), &got)
    if got.Status != model.StatusAbsent { t.Fatalf("status=%s", got.Status) }

    // ABSENT -> ASSIGNED is not a legal transition
    rr = postJSON(t, func(w http.ResponseWriter, r *http.Request) { s.DriverByIDHandler(w, r) },
        "/v1/drivers/"+d.ID+"/status", model.StatusUpdate{Status: model.StatusAssigned}, nil)
    if rr.Code != http.StatusConflict { t.Fatalf("illegal transition: %d", rr.Code) }
}

func TestDriverStatusRBAC(t *testing.T) {
    s := newTestServer(t)
    d := seedDriver(t, s, "t_test", model.Driver{Name: "Ana", PrimaryFleetID: "f1", Active: true})
    // another driver cannot change someone else's status
    rr := postJSON(t, func(w http.ResponseWriter, r *http.Request) { s.DriverByIDHandler(w, r) },
        "/v1/drivers/"+d.ID+"/status", model.StatusUpdate{Status: model.StatusAbsent},
        map[string]string{"X-Role": "driver", "X-Driver-Id": "someone-else"})
    if rr.Code != http.StatusForbidden { t.Fatalf("got %d", rr.Code) }
    // the driver may change their own
    rr = postJSON(t, func(w http.ResponseWriter, r *http.Request) { s.DriverByIDHandler(w, r) },
        "/v1/drivers/"+d.ID+"/status", model.StatusUpdate{Status: model.StatusAbsent},
        map[string]string{"X-Role": "driver", "X-Driver-Id": d.ID})
    if rr.Code != 200 { t.Fatalf("got %d", rr.Code) }
}

func TestRouteAssignEndpoint(t *testing.T) {
    s := newTestServer(t)
    ctx := context.Background()
    d := seedDriver(t, s, "t_test", model.Driver{Name: "Ana", PrimaryFleetID: "f1", Active: true})
    v := seedVehicle(t, s, "t_test", model.Vehicle{FleetIDs: []string{"f1"}})
    rt, err := s.Store.CreateRoute(ctx, "t_test", model.Route{Stops: []model.Stop{{}}})
    if err != nil { t.Fatalf("seed route: %v", err) }

    rr := postJSON(t, s.RouteByIDHandler, "/v1/routes/"+rt.ID+"/assign",
        model.AssignRequest{DriverID: d.ID, VehicleID: v.ID}, nil)
    if rr.Code != 200 { t.Fatalf("assign: %d %s", rr.Code, rr.Body.String()) }
    var got model.Route
    _ = json.Unmarshal(rr.Body.Bytes(), &got)
    if got.DriverID != d.ID || got.Status != "assigned" {
        t.Fatalf("route: %+v", got)
    }
}

func TestDriversCreateList(t *testing.T) {
    s := newTestServer(t)
    rr := postJSON(t, s.DriversHandler, "/v1/drivers", model.Driver{Name: "Ana", PrimaryFleetID: "f1", Active: true}, nil)
    if rr.Code != http.StatusCreated { t.Fatalf("create: %d", rr.Code) }
    rr = postJSON(t, s.DriversHandler, "/v1/drivers", model.Driver{}, nil)
    if rr.Code != http.StatusBadRequest { t.Fatalf("missing name: %d", rr.Code) }

    req := httptest.NewRequest(http.MethodGet, "/v1/drivers?limit=5", nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    rec := httptest.NewRecorder()
    s.DriversHandler(rec, req)
    if rec.Code != 200 { t.Fatalf("list: %d", rec.Code) }
}

func TestSubscriptionsLifecycle(t *testing.T) {
    s := newTestServer(t)
    rr := postJSON(t, s.SubscriptionsHandler, "/v1/subscriptions",
        model.SubscriptionRequest{URL: "https://example.com/hook", Events: []string{"reassignment.generated"}, Secret: "shh"}, nil)
    if rr.Code != http.StatusCreated { t.Fatalf("create: %d", rr.Code) }
    var sub model.Subscription
    _ = json.Unmarshal(rr.Body.Bytes(), &sub)
    if sub.Secret != "" { t.Fatalf("secret leaked in response") }

    rr = postJSON(t, s.SubscriptionsHandler, "/v1/subscriptions", model.SubscriptionRequest{URL: ""}, nil)
    if rr.Code != http.StatusBadRequest { t.Fatalf("missing url: %d", rr.Code) }

    req := httptest.NewRequest(http.MethodDelete, "/v1/subscriptions/"+sub.ID, nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    rec := httptest.NewRecorder()
    s.SubscriptionByIDHandler(rec, req)
    if rec.Code != http.StatusNoContent { t.Fatalf("delete: %d", rec.Code) }
}

func TestWebhookDeliveriesAdminOnly(t *testing.T) {
    s := newTestServer(t)
    req := httptest.NewRequest(http.MethodGet, "/v1/admin/webhook-deliveries", nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "dispatcher")
    rr := httptest.NewRecorder()
    s.WebhookDeliveriesHandler(rr, req)
    if rr.Code != http.StatusForbidden { t.Fatalf("got %d", rr.Code) }
}
