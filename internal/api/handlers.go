package api

import (
    "encoding/json"
    "fmt"
    "net/http"
    "strings"
    "time"

    "fleetassign/internal/buildinfo"
    "fleetassign/internal/engine"
    "fleetassign/internal/metrics"
    "fleetassign/internal/model"
    "fleetassign/internal/webhooks"
)

// SuggestHandler handles POST /v1/assignments/suggest
func (s *Server) SuggestHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    p := s.getPrincipal(r)
    if !p.CanDispatch() { writeProblem(w, 403, "Forbidden", "dispatcher or admin required", r.URL.Path); return }
    var req model.SuggestionRequest
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if err := validateSuggestionRequest(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid suggestion request", err.Error(), r.URL.Path)
        return
    }
    _, tenant := s.withTenant(r)
    veh, err := s.Store.GetVehicle(r.Context(), tenant, req.VehicleID)
    if err != nil {
        writeStoreError(w, err, "Vehicle lookup failed", r.URL.Path)
        return
    }
    drivers, err := s.Store.ListDriversByFleets(r.Context(), tenant, veh.FleetIDs)
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "Driver lookup failed", err.Error(), r.URL.Path)
        return
    }
    var orders []model.Order
    if len(req.OrderIDs) > 0 {
        orders, err = s.Store.GetOrders(r.Context(), tenant, req.OrderIDs)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Order lookup failed", err.Error(), r.URL.Path)
            return
        }
    }
    start := time.Now()
    resp := s.Engine.Suggest(veh, drivers, orders, req.Strategy, req.Limit)
    metrics.ScoringDuration.WithLabelValues("suggest").Observe(time.Since(start).Seconds())
    metrics.CandidatesEvaluated.WithLabelValues("suggest").Add(float64(resp.TotalCandidates))
    outcome := "ok"
    if resp.Fallback { outcome = "fallback" }
    if len(resp.Suggestions) == 0 { outcome = "empty" }
    metrics.Suggestions.WithLabelValues(resp.Strategy, outcome).Inc()
    if len(resp.Suggestions) > 0 {
        s.Pub.Emit(r.Context(), tenant, webhooks.EventAssignmentSuggested, map[string]any{
            "vehicleId": veh.ID,
            "strategy":  resp.Strategy,
            "topDriverId": resp.Suggestions[0].DriverID,
            "topScore":  resp.Suggestions[0].Score,
            "fallback":  resp.Fallback,
        })
        s.Broker.Publish("tenant:"+tenant, SSEEvent{Type: webhooks.EventAssignmentSuggested, Data: map[string]any{
            "vehicleId": veh.ID, "strategy": resp.Strategy, "returned": resp.Returned, "fallback": resp.Fallback,
        }})
    }
    writeJSON(w, http.StatusOK, resp)
}

// ReassignHandler handles POST /v1/assignments/reassign
func (s *Server) ReassignHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    p := s.getPrincipal(r)
    if !p.CanDispatch() { writeProblem(w, 403, "Forbidden", "dispatcher or admin required", r.URL.Path); return }
    var req model.ReassignmentRequest
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if err := validateReassignmentRequest(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid reassignment request", err.Error(), r.URL.Path)
        return
    }
    _, tenant := s.withTenant(r)
    absent, err := s.Store.GetDriver(r.Context(), tenant, req.DriverID)
    if err != nil {
        writeStoreError(w, err, "Driver lookup failed", r.URL.Path)
        return
    }
    routes, err := s.Store.ListActiveRoutesForDriver(r.Context(), tenant, absent.ID)
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "Route lookup failed", err.Error(), r.URL.Path)
        return
    }
    vehicles := map[string]model.Vehicle{}
    orderIDs := []string{}
    for _, rt := range routes {
        if rt.VehicleID != "" {
            if _, ok := vehicles[rt.VehicleID]; !ok {
                if v, err := s.Store.GetVehicle(r.Context(), tenant, rt.VehicleID); err == nil {
                    vehicles[rt.VehicleID] = v
                }
            }
        }
        for _, st := range rt.Stops {
            if st.OrderID != "" && !model.StopTerminal(st.Status) { orderIDs = append(orderIDs, st.OrderID) }
        }
    }
    ordersByID := map[string]model.Order{}
    if len(orderIDs) > 0 {
        orders, err := s.Store.GetOrders(r.Context(), tenant, orderIDs)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Order lookup failed", err.Error(), r.URL.Path)
            return
        }
        for _, o := range orders { ordersByID[o.ID] = o }
    }
    fleetIDs := []string{}
    seen := map[string]bool{}
    for _, v := range vehicles {
        for _, f := range v.FleetIDs {
            if !seen[f] { seen[f] = true; fleetIDs = append(fleetIDs, f) }
        }
    }
    var pool []model.Driver
    if len(fleetIDs) > 0 {
        pool, err = s.Store.ListDriversByFleets(r.Context(), tenant, fleetIDs)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Driver lookup failed", err.Error(), r.URL.Path)
            return
        }
    }
    start := time.Now()
    resp := s.Engine.Reassign(engine.ReassignInput{
        AbsentDriver: absent,
        Routes:       routes,
        Vehicles:     vehicles,
        Drivers:      pool,
        Orders:       ordersByID,
        PlanRef:      req.PlanRef,
        Strategy:     req.Strategy,
        Limit:        req.Limit,
    })
    metrics.ScoringDuration.WithLabelValues("reassign").Observe(time.Since(start).Seconds())
    metrics.CandidatesEvaluated.WithLabelValues("reassign").Add(float64(len(pool)))
    outcome := "ok"
    if resp.AffectedRoutes == 0 { outcome = "no_routes" } else if resp.OptionsGenerated == 0 { outcome = "no_candidates" }
    metrics.Reassignments.WithLabelValues(resp.Strategy, outcome).Inc()
    if resp.AffectedRoutes > 0 {
        s.Pub.Emit(r.Context(), tenant, webhooks.EventReassignmentGenerated, map[string]any{
            "absentDriverId": absent.ID,
            "affectedRoutes": resp.AffectedRoutes,
            "options":        resp.OptionsGenerated,
            "strategy":       resp.Strategy,
        })
        for _, sum := range resp.Summary {
            s.Broker.Publish("route:"+sum.RouteID, SSEEvent{Type: webhooks.EventReassignmentGenerated, Data: map[string]any{
                "routeId": sum.RouteID, "absentDriverId": absent.ID, "options": resp.OptionsGenerated,
            }})
        }
        s.Broker.Publish("tenant:"+tenant, SSEEvent{Type: webhooks.EventReassignmentGenerated, Data: map[string]any{
            "absentDriverId": absent.ID, "affectedRoutes": resp.AffectedRoutes, "options": resp.OptionsGenerated,
        }})
    }
    writeJSON(w, http.StatusOK, resp)
}

// DriversHandler handles POST/GET /v1/drivers
func (s *Server) DriversHandler(w http.ResponseWriter, r *http.Request) {
    _, tenant := s.withTenant(r)
    switch r.Method {
    case http.MethodPost:
        p := s.getPrincipal(r)
        if !p.CanDispatch() { writeProblem(w, 403, "Forbidden", "dispatcher or admin required", r.URL.Path); return }
        var d model.Driver
        if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if d.Name == "" { writeProblem(w, 400, "Invalid driver", "name is required", r.URL.Path); return }
        out, err := s.Store.CreateDriver(r.Context(), tenant, d)
        if err != nil {
            writeStoreError(w, err, "Create driver failed", r.URL.Path)
            return
        }
        writeJSON(w, http.StatusCreated, out)
    case http.MethodGet:
        status := r.URL.Query().Get("status")
        fleet := r.URL.Query().Get("fleetId")
        cursor := r.URL.Query().Get("cursor")
        limit := 100
        if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
        items, next, err := s.Store.ListDrivers(r.Context(), tenant, status, fleet, cursor, limit)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "List drivers failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// DriverByIDHandler handles /v1/drivers/{id}, /v1/drivers/{id}/status and /v1/drivers/{id}/routes
func (s *Server) DriverByIDHandler(w http.ResponseWriter, r *http.Request) {
    rest := strings.TrimPrefix(r.URL.Path, "/v1/drivers/")
    if rest == r.URL.Path || rest == "" {
        writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
        return
    }
    parts := strings.Split(rest, "/")
    id := parts[0]
    _, tenant := s.withTenant(r)
    if len(parts) > 1 && parts[1] == "status" {
        s.driverStatus(w, r, tenant, id)
        return
    }
    if len(parts) > 1 && parts[1] == "routes" {
        if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
        routes, err := s.Store.ListActiveRoutesForDriver(r.Context(), tenant, id)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "List routes failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, map[string]any{"items": routes})
        return
    }
    switch r.Method {
    case http.MethodGet:
        d, err := s.Store.GetDriver(r.Context(), tenant, id)
        if err != nil {
            writeStoreError(w, err, "Driver lookup failed", r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, d)
    case http.MethodPut:
        p := s.getPrincipal(r)
        if !p.CanDispatch() { writeProblem(w, 403, "Forbidden", "dispatcher or admin required", r.URL.Path); return }
        var d model.Driver
        if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        d.ID = id
        out, err := s.Store.UpdateDriver(r.Context(), tenant, d)
        if err != nil {
            writeStoreError(w, err, "Update driver failed", r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, out)
    case http.MethodDelete:
        p := s.getPrincipal(r)
        if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
        if err := s.Store.DeleteDriver(r.Context(), tenant, id); err != nil {
            writeStoreError(w, err, "Delete driver failed", r.URL.Path)
            return
        }
        w.WriteHeader(http.StatusNoContent)
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// driverStatus handles POST /v1/drivers/{id}/status
func (s *Server) driverStatus(w http.ResponseWriter, r *http.Request, tenant, id string) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    p := s.getPrincipal(r)
    // drivers may update their own status
    if !p.CanDispatch() && !(p.Role == "driver" && p.DriverID == id) {
        writeProblem(w, 403, "Forbidden", "not authorized for driver status", r.URL.Path)
        return
    }
    var upd model.StatusUpdate
    if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if upd.Status == "" { writeProblem(w, 400, "Invalid status update", "status is required", r.URL.Path); return }
    prev, err := s.Store.GetDriver(r.Context(), tenant, id)
    if err != nil {
        writeStoreError(w, err, "Driver lookup failed", r.URL.Path)
        return
    }
    d, err := s.Store.SetDriverStatus(r.Context(), tenant, id, upd.Status, upd.Note)
    if err != nil {
        writeStoreError(w, err, "Status update failed", r.URL.Path)
        return
    }
    s.Pub.Emit(r.Context(), tenant, webhooks.EventDriverStatusChanged, map[string]any{
        "driverId": id, "from": prev.Status, "to": d.Status, "note": upd.Note,
    })
    s.Broker.Publish("tenant:"+tenant, SSEEvent{Type: webhooks.EventDriverStatusChanged, Data: map[string]any{
        "driverId": id, "from": prev.Status, "to": d.Status,
    }})
    writeJSON(w, http.StatusOK, d)
}

// VehiclesHandler handles POST/GET /v1/vehicles
func (s *Server) VehiclesHandler(w http.ResponseWriter, r *http.Request) {
    _, tenant := s.withTenant(r)
    switch r.Method {
    case http.MethodPost:
        p := s.getPrincipal(r)
        if !p.CanDispatch() { writeProblem(w, 403, "Forbidden", "dispatcher or admin required", r.URL.Path); return }
        var v model.Vehicle
        if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if len(v.FleetIDs) == 0 { writeProblem(w, 400, "Invalid vehicle", "fleetIds is required", r.URL.Path); return }
        out, err := s.Store.CreateVehicle(r.Context(), tenant, v)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Create vehicle failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusCreated, out)
    case http.MethodGet:
        fleet := r.URL.Query().Get("fleetId")
        cursor := r.URL.Query().Get("cursor")
        limit := 100
        if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
        items, next, err := s.Store.ListVehicles(r.Context(), tenant, fleet, cursor, limit)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "List vehicles failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// VehicleByIDHandler handles GET/PUT/DELETE /v1/vehicles/{id}
func (s *Server) VehicleByIDHandler(w http.ResponseWriter, r *http.Request) {
    id := strings.TrimPrefix(r.URL.Path, "/v1/vehicles/")
    if id == r.URL.Path || id == "" || strings.Contains(id, "/") {
        writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
        return
    }
    _, tenant := s.withTenant(r)
    switch r.Method {
    case http.MethodGet:
        v, err := s.Store.GetVehicle(r.Context(), tenant, id)
        if err != nil {
            writeStoreError(w, err, "Vehicle lookup failed", r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, v)
    case http.MethodPut:
        p := s.getPrincipal(r)
        if !p.CanDispatch() { writeProblem(w, 403, "Forbidden", "dispatcher or admin required", r.URL.Path); return }
        var v model.Vehicle
        if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        v.ID = id
        out, err := s.Store.UpdateVehicle(r.Context(), tenant, v)
        if err != nil {
            writeStoreError(w, err, "Update vehicle failed", r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, out)
    case http.MethodDelete:
        p := s.getPrincipal(r)
        if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
        if err := s.Store.DeleteVehicle(r.Context(), tenant, id); err != nil {
            writeStoreError(w, err, "Delete vehicle failed", r.URL.Path)
            return
        }
        w.WriteHeader(http.StatusNoContent)
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// OrdersHandler handles POST/GET /v1/orders
func (s *Server) OrdersHandler(w http.ResponseWriter, r *http.Request) {
    _, tenant := s.withTenant(r)
    switch r.Method {
    case http.MethodPost:
        var req struct {
            Orders []model.Order `json:"orders"`
        }
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        created, err := s.Store.CreateOrders(r.Context(), tenant, req.Orders)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Create orders failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusAccepted, map[string]any{"created": created})
    case http.MethodGet:
        status := r.URL.Query().Get("status")
        cursor := r.URL.Query().Get("cursor")
        limit := 100
        if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
        items, next, err := s.Store.ListOrders(r.Context(), tenant, status, cursor, limit)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "List orders failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// RoutesHandler handles POST/GET /v1/routes
func (s *Server) RoutesHandler(w http.ResponseWriter, r *http.Request) {
    _, tenant := s.withTenant(r)
    switch r.Method {
    case http.MethodPost:
        p := s.getPrincipal(r)
        if !p.CanDispatch() { writeProblem(w, 403, "Forbidden", "dispatcher or admin required", r.URL.Path); return }
        var rt model.Route
        if err := json.NewDecoder(r.Body).Decode(&rt); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        out, err := s.Store.CreateRoute(r.Context(), tenant, rt)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Create route failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusCreated, out)
    case http.MethodGet:
        cursor := r.URL.Query().Get("cursor")
        limit := 100
        if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
        items, next, err := s.Store.ListRoutes(r.Context(), tenant, cursor, limit)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "List routes failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// RouteByIDHandler handles GET /v1/routes/{id}, POST /v1/routes/{id}/assign
// and GET /v1/routes/{id}/events/stream (SSE).
func (s *Server) RouteByIDHandler(w http.ResponseWriter, r *http.Request) {
    rest := strings.TrimPrefix(r.URL.Path, "/v1/routes/")
    if rest == r.URL.Path || rest == "" {
        writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
        return
    }
    parts := strings.Split(rest, "/")
    id := parts[0]
    _, tenant := s.withTenant(r)
    if len(parts) > 2 && parts[1] == "events" && parts[2] == "stream" {
        s.routeEventStream(w, r, tenant, id)
        return
    }
    if len(parts) > 1 && parts[1] == "assign" {
        if r.Method != http.MethodPost {
            w.WriteHeader(http.StatusMethodNotAllowed)
            return
        }
        p := s.getPrincipal(r)
        if !p.CanDispatch() { writeProblem(w, 403, "Forbidden", "dispatcher or admin required", r.URL.Path); return }
        var req model.AssignRequest
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if req.DriverID == "" { writeProblem(w, 400, "Invalid assign request", "driverId is required", r.URL.Path); return }
        route, err := s.Store.AssignRoute(r.Context(), tenant, id, req.DriverID, req.VehicleID)
        if err != nil {
            writeStoreError(w, err, "Assign route failed", r.URL.Path)
            return
        }
        s.Pub.Emit(r.Context(), tenant, webhooks.EventRouteAssigned, map[string]any{
            "routeId": route.ID, "driverId": route.DriverID, "vehicleId": route.VehicleID,
        })
        s.Broker.Publish("route:"+id, SSEEvent{Type: webhooks.EventRouteAssigned, Data: map[string]any{
            "routeId": route.ID, "driverId": route.DriverID, "vehicleId": route.VehicleID,
        }})
        writeJSON(w, http.StatusOK, route)
        return
    }
    if r.Method != http.MethodGet {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    route, err := s.Store.GetRoute(r.Context(), tenant, id)
    if err != nil {
        writeStoreError(w, err, "Route lookup failed", r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, route)
}

// routeEventStream serves SSE for a single route's assignment events.
func (s *Server) routeEventStream(w http.ResponseWriter, r *http.Request, tenant, id string) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    pr := s.getPrincipal(r)
    if !pr.CanDispatch() {
        // allow drivers only for their assigned routes
        rt, err := s.Store.GetRoute(r.Context(), tenant, id)
        if err != nil { writeStoreError(w, err, "Route lookup failed", r.URL.Path); return }
        if pr.Role != "driver" || pr.DriverID == "" || rt.DriverID == "" || pr.DriverID != rt.DriverID {
            writeProblem(w, 403, "Forbidden", "not authorized for route events", r.URL.Path)
            return
        }
    }
    flusher, ok := w.(http.Flusher)
    if !ok { writeProblem(w, 500, "Streaming unsupported", "", r.URL.Path); return }
    w.Header().Set("Content-Type", "text/event-stream")
    w.Header().Set("Cache-Control", "no-cache")
    w.Header().Set("Connection", "keep-alive")
    ch := s.Broker.Subscribe("route:" + id)
    defer s.Broker.Unsubscribe("route:"+id, ch)
    fmt.Fprintf(w, "event: heartbeat\n")
    fmt.Fprintf(w, "data: {\"routeId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
    flusher.Flush()
    notify := r.Context().Done()
    for {
        select {
        case <-notify:
            return
        case evt := <-ch:
            b, _ := json.Marshal(evt.Data)
            fmt.Fprintf(w, "event: %s\n", evt.Type)
            fmt.Fprintf(w, "data: %s\n\n", string(b))
            flusher.Flush()
        case <-time.After(15 * time.Second):
            fmt.Fprintf(w, "event: heartbeat\n")
            fmt.Fprintf(w, "data: {\"routeId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
            flusher.Flush()
        }
    }
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
    _, tenant := s.withTenant(r)
    switch r.Method {
    case http.MethodPost:
        var req model.SubscriptionRequest
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if req.TenantID == "" { req.TenantID = tenant }
        if err := validateSubscriptionRequest(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid subscription", err.Error(), r.URL.Path)
            return
        }
        sub, err := s.Store.CreateSubscription(r.Context(), req)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
            return
        }
        sub.Secret = ""
        writeJSON(w, http.StatusCreated, sub)
    case http.MethodGet:
        cursor := r.URL.Query().Get("cursor")
        limit := 100
        if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
        items, next, err := s.Store.ListSubscriptions(r.Context(), tenant, cursor, limit)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "List subscriptions failed", err.Error(), r.URL.Path)
            return
        }
        for i := range items { items[i].Secret = "" }
        writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id}
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
    id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
    if id == r.URL.Path || id == "" {
        writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
        return
    }
    if r.Method != http.MethodDelete {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    _, tenant := s.withTenant(r)
    if err := s.Store.DeleteSubscription(r.Context(), tenant, id); err != nil {
        writeStoreError(w, err, "Delete subscription failed", r.URL.Path)
        return
    }
    w.WriteHeader(http.StatusNoContent)
}

// WebhookDeliveriesHandler handles GET /v1/admin/webhook-deliveries
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    _, tenant := s.withTenant(r)
    status := r.URL.Query().Get("status")
    cursor := r.URL.Query().Get("cursor")
    limit := 100
    if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
    items, next, err := s.Store.ListWebhookDeliveries(r.Context(), tenant, status, cursor, limit)
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "List deliveries failed", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// WebhookDeliveryRetryHandler handles POST /v1/admin/webhook-deliveries/{id}/retry
func (s *Server) WebhookDeliveryRetryHandler(w http.ResponseWriter, r *http.Request) {
    rest := strings.TrimPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/")
    parts := strings.Split(rest, "/")
    if len(parts) != 2 || parts[1] != "retry" || r.Method != http.MethodPost {
        writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
        return
    }
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    _, tenant := s.withTenant(r)
    if err := s.Store.RetryWebhookDelivery(r.Context(), tenant, parts[0]); err != nil {
        writeStoreError(w, err, "Retry delivery failed", r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// HealthHandler handles GET /healthz
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyHandler handles GET /readyz
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
    // store reachability check; memory store is always ready
    if _, _, err := s.Store.ListDrivers(r.Context(), "t_probe", "", "", "", 1); err != nil {
        writeProblem(w, http.StatusServiceUnavailable, "Not ready", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// VersionHandler handles GET /v1/version
func (s *Server) VersionHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, http.StatusOK, buildinfo.Info())
}
