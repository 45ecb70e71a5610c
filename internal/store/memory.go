package store

import (
    "context"
    "fmt"
    "sync"
    "time"

    "github.com/google/uuid"
    "fleetassign/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
    mu       sync.Mutex
    drivers  map[string]model.Driver     // id -> driver
    drvTen   map[string][]string         // tenant -> driver ids
    vehicles map[string]model.Vehicle    // id -> vehicle
    vehTen   map[string][]string         // tenant -> vehicle ids
    orders   map[string]model.Order      // id -> order
    ordTen   map[string][]string         // tenant -> order ids
    routes   map[string]model.Route      // id -> route
    rtTen    map[string][]string         // tenant -> route ids
    subs     map[string][]model.Subscription // tenant -> subscriptions
    // Webhooks queue state
    deliveries         map[string]*memDelivery // id -> delivery state
    deliveriesByTenant map[string][]string     // tenant -> delivery ids
}

func NewMemory() *Memory {
    return &Memory{
        drivers: map[string]model.Driver{},
        drvTen: map[string][]string{},
        vehicles: map[string]model.Vehicle{},
        vehTen: map[string][]string{},
        orders: map[string]model.Order{},
        ordTen: map[string][]string{},
        routes: map[string]model.Route{},
        rtTen: map[string][]string{},
        subs: map[string][]model.Subscription{},
        deliveries: map[string]*memDelivery{},
        deliveriesByTenant: map[string][]string{},
    }
}

// memDelivery augments WebhookDelivery with scheduling/metrics
type memDelivery struct {
    WebhookDelivery
    NextAttemptAt time.Time
    LastError     string
    ResponseCode  int
    LatencyMs     int
    DeliveredAt   *time.Time
}

// Drivers

func (m *Memory) CreateDriver(ctx context.Context, tenantID string, d model.Driver) (model.Driver, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if d.ID == "" { d.ID = uuid.New().String() }
    d.TenantID = tenantID
    if d.Status == "" { d.Status = model.StatusAvailable }
    if !model.KnownStatus(d.Status) { return model.Driver{}, fmt.Errorf("%w: %s", ErrBadTransition, d.Status) }
    m.drivers[d.ID] = d
    m.drvTen[tenantID] = append(m.drvTen[tenantID], d.ID)
    return d, nil
}

func (m *Memory) GetDriver(ctx context.Context, tenantID, id string) (model.Driver, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    return m.getDriverLocked(tenantID, id)
}

func (m *Memory) getDriverLocked(tenantID, id string) (model.Driver, error) {
    d, ok := m.drivers[id]
    if !ok { return model.Driver{}, ErrNotFound }
    if d.TenantID != tenantID { return model.Driver{}, ErrForbidden }
    return d, nil
}

func (m *Memory) ListDrivers(ctx context.Context, tenantID, status, fleetID, cursor string, limit int) ([]model.Driver, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    ids := m.drvTen[tenantID]
    start := 0
    if cursor != "" {
        for i, id := range ids {
            if id == cursor { start = i + 1; break }
        }
    }
    if limit <= 0 { limit = 100 }
    out := []model.Driver{}
    var next string
    for i := start; i < len(ids) && len(out) < limit; i++ {
        d := m.drivers[ids[i]]
        if status != "" && d.Status != status { continue }
        if fleetID != "" && !d.InFleet(fleetID) { continue }
        out = append(out, d)
        next = ids[i]
    }
    if len(out) < limit { next = "" }
    return out, next, nil
}

func (m *Memory) ListDriversByFleets(ctx context.Context, tenantID string, fleetIDs []string) ([]model.Driver, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    var out []model.Driver
    for _, id := range m.drvTen[tenantID] {
        d := m.drivers[id]
        for _, f := range fleetIDs {
            if d.InFleet(f) { out = append(out, d); break }
        }
    }
    return out, nil
}

func (m *Memory) UpdateDriver(ctx context.Context, tenantID string, d model.Driver) (model.Driver, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    cur, err := m.getDriverLocked(tenantID, d.ID)
    if err != nil { return model.Driver{}, err }
    d.TenantID = cur.TenantID
    if d.Status == "" { d.Status = cur.Status }
    if !model.KnownStatus(d.Status) { return model.Driver{}, fmt.Errorf("%w: %s", ErrBadTransition, d.Status) }
    m.drivers[d.ID] = d
    return d, nil
}

func (m *Memory) DeleteDriver(ctx context.Context, tenantID, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    if _, err := m.getDriverLocked(tenantID, id); err != nil { return err }
    delete(m.drivers, id)
    ids := m.drvTen[tenantID]
    out := make([]string, 0, len(ids))
    for _, x := range ids { if x != id { out = append(out, x) } }
    m.drvTen[tenantID] = out
    return nil
}

func (m *Memory) SetDriverStatus(ctx context.Context, tenantID, driverID, status, note string) (model.Driver, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    d, err := m.getDriverLocked(tenantID, driverID)
    if err != nil { return model.Driver{}, err }
    if !model.KnownStatus(status) { return model.Driver{}, fmt.Errorf("%w: unknown status %s", ErrBadTransition, status) }
    if !model.CanTransition(d.Status, status) {
        return model.Driver{}, fmt.Errorf("%w: %s -> %s", ErrBadTransition, d.Status, status)
    }
    d.Status = status
    m.drivers[driverID] = d
    return d, nil
}

// Vehicles

func (m *Memory) CreateVehicle(ctx context.Context, tenantID string, v model.Vehicle) (model.Vehicle, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if v.ID == "" { v.ID = uuid.New().String() }
    v.TenantID = tenantID
    m.vehicles[v.ID] = v
    m.vehTen[tenantID] = append(m.vehTen[tenantID], v.ID)
    return v, nil
}

func (m *Memory) GetVehicle(ctx context.Context, tenantID, id string) (model.Vehicle, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    return m.getVehicleLocked(tenantID, id)
}

func (m *Memory) getVehicleLocked(tenantID, id string) (model.Vehicle, error) {
    v, ok := m.vehicles[id]
    if !ok { return model.Vehicle{}, ErrNotFound }
    if v.TenantID != tenantID { return model.Vehicle{}, ErrForbidden }
    return v, nil
}

func (m *Memory) ListVehicles(ctx context.Context, tenantID, fleetID, cursor string, limit int) ([]model.Vehicle, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    ids := m.vehTen[tenantID]
    start := 0
    if cursor != "" {
        for i, id := range ids {
            if id == cursor { start = i + 1; break }
        }
    }
    if limit <= 0 { limit = 100 }
    out := []model.Vehicle{}
    var next string
    for i := start; i < len(ids) && len(out) < limit; i++ {
        v := m.vehicles[ids[i]]
        if fleetID != "" {
            in := false
            for _, f := range v.FleetIDs { if f == fleetID { in = true; break } }
            if !in { continue }
        }
        out = append(out, v)
        next = ids[i]
    }
    if len(out) < limit { next = "" }
    return out, next, nil
}

func (m *Memory) UpdateVehicle(ctx context.Context, tenantID string, v model.Vehicle) (model.Vehicle, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    cur, err := m.getVehicleLocked(tenantID, v.ID)
    if err != nil { return model.Vehicle{}, err }
    v.TenantID = cur.TenantID
    m.vehicles[v.ID] = v
    return v, nil
}

func (m *Memory) DeleteVehicle(ctx context.Context, tenantID, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    if _, err := m.getVehicleLocked(tenantID, id); err != nil { return err }
    delete(m.vehicles, id)
    ids := m.vehTen[tenantID]
    out := make([]string, 0, len(ids))
    for _, x := range ids { if x != id { out = append(out, x) } }
    m.vehTen[tenantID] = out
    return nil
}

// Orders

func (m *Memory) CreateOrders(ctx context.Context, tenantID string, orders []model.Order) (int, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    created := 0
    for _, o := range orders {
        if o.ID == "" { o.ID = uuid.New().String() }
        o.TenantID = tenantID
        if o.Status == "" { o.Status = "pending" }
        m.orders[o.ID] = o
        m.ordTen[tenantID] = append(m.ordTen[tenantID], o.ID)
        created++
    }
    return created, nil
}

func (m *Memory) GetOrders(ctx context.Context, tenantID string, ids []string) ([]model.Order, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []model.Order{}
    for _, id := range ids {
        o, ok := m.orders[id]
        if !ok || o.TenantID != tenantID { continue }
        out = append(out, o)
    }
    return out, nil
}

func (m *Memory) ListOrders(ctx context.Context, tenantID, status, cursor string, limit int) ([]model.Order, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    ids := m.ordTen[tenantID]
    start := 0
    if cursor != "" {
        for i, id := range ids {
            if id == cursor { start = i + 1; break }
        }
    }
    if limit <= 0 { limit = 100 }
    out := []model.Order{}
    var next string
    for i := start; i < len(ids) && len(out) < limit; i++ {
        o := m.orders[ids[i]]
        if status == "" || o.Status == status { out = append(out, o) }
        next = ids[i]
    }
    if len(out) < limit { next = "" }
    return out, next, nil
}

// Routes

func (m *Memory) CreateRoute(ctx context.Context, tenantID string, r model.Route) (model.Route, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if r.ID == "" { r.ID = uuid.New().String() }
    r.TenantID = tenantID
    if r.Status == "" { r.Status = "planned" }
    for i := range r.Stops {
        if r.Stops[i].ID == "" { r.Stops[i].ID = uuid.New().String() }
        if r.Stops[i].Status == "" { r.Stops[i].Status = model.StopPending }
        if r.Stops[i].Seq == 0 { r.Stops[i].Seq = i + 1 }
    }
    m.routes[r.ID] = r
    m.rtTen[tenantID] = append(m.rtTen[tenantID], r.ID)
    return r, nil
}

func (m *Memory) GetRoute(ctx context.Context, tenantID, id string) (model.Route, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    return m.getRouteLocked(tenantID, id)
}

func (m *Memory) getRouteLocked(tenantID, id string) (model.Route, error) {
    r, ok := m.routes[id]
    if !ok { return model.Route{}, ErrNotFound }
    if r.TenantID != tenantID { return model.Route{}, ErrForbidden }
    return r, nil
}

func (m *Memory) ListRoutes(ctx context.Context, tenantID, cursor string, limit int) ([]model.Route, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    ids := m.rtTen[tenantID]
    start := 0
    if cursor != "" {
        for i, id := range ids {
            if id == cursor { start = i + 1; break }
        }
    }
    if limit <= 0 { limit = 100 }
    out := []model.Route{}
    var next string
    for i := start; i < len(ids) && len(out) < limit; i++ {
        out = append(out, m.routes[ids[i]])
        next = ids[i]
    }
    if len(out) < limit { next = "" }
    return out, next, nil
}

func (m *Memory) AssignRoute(ctx context.Context, tenantID, routeID, driverID, vehicleID string) (model.Route, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    r, err := m.getRouteLocked(tenantID, routeID)
    if err != nil { return model.Route{}, err }
    if driverID != "" {
        if _, err := m.getDriverLocked(tenantID, driverID); err != nil { return model.Route{}, err }
        r.DriverID = driverID
    }
    if vehicleID != "" {
        if _, err := m.getVehicleLocked(tenantID, vehicleID); err != nil { return model.Route{}, err }
        r.VehicleID = vehicleID
    }
    r.Status = "assigned"
    m.routes[routeID] = r
    return r, nil
}

func (m *Memory) ListActiveRoutesForDriver(ctx context.Context, tenantID, driverID string) ([]model.Route, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []model.Route{}
    for _, id := range m.rtTen[tenantID] {
        r := m.routes[id]
        if r.DriverID != driverID { continue }
        active := false
        for _, st := range r.Stops {
            if !model.StopTerminal(st.Status) { active = true; break }
        }
        if active { out = append(out, r) }
    }
    return out, nil
}

// Subscriptions

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    s := model.Subscription{ID: uuid.New().String(), TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}
    m.subs[req.TenantID] = append(m.subs[req.TenantID], s)
    return s, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    var out []model.Subscription
    for _, s := range m.subs[tenantID] {
        for _, e := range s.Events { if e == eventType || e == "*" { out = append(out, s); break } }
    }
    return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    list := m.subs[tenantID]
    start := 0
    if cursor != "" {
        for i := range list { if list[i].ID == cursor { start = i+1; break } }
    }
    if limit <= 0 { limit = 100 }
    end := start + limit
    if end > len(list) { end = len(list) }
    items := append([]model.Subscription(nil), list[start:end]...)
    next := ""
    if end < len(list) { next = list[end-1].ID }
    return items, next, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, tenantID, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    arr := m.subs[tenantID]
    out := make([]model.Subscription, 0, len(arr))
    for _, s := range arr { if s.ID != id { out = append(out, s) } }
    m.subs[tenantID] = out
    return nil
}

// Webhook deliveries

func (m *Memory) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    id := uuid.New().String()
    m.deliveries[id] = &memDelivery{WebhookDelivery: WebhookDelivery{
        ID: id, TenantID: tenantID, SubscriptionID: subscriptionID, EventType: eventType,
        URL: url, Secret: secret, Payload: payload, Status: "pending", CreatedAt: time.Now().UTC(),
    }}
    m.deliveriesByTenant[tenantID] = append(m.deliveriesByTenant[tenantID], id)
    return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    now := time.Now()
    out := []WebhookDelivery{}
    for _, d := range m.deliveries {
        if d.Status != "pending" { continue }
        if !d.NextAttemptAt.IsZero() && d.NextAttemptAt.After(now) { continue }
        d.Status = "in_flight"
        out = append(out, d.WebhookDelivery)
        if limit > 0 && len(out) >= limit { break }
    }
    return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d, ok := m.deliveries[id]
    if !ok { return ErrNotFound }
    d.Attempts++
    d.LastError = lastError
    d.ResponseCode = responseCode
    d.LatencyMs = latencyMs
    if success {
        now := time.Now().UTC()
        d.Status = "delivered"
        d.DeliveredAt = &now
        return nil
    }
    d.Status = "pending"
    if nextAttemptAt != nil { d.NextAttemptAt = *nextAttemptAt }
    return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d, ok := m.deliveries[id]
    if !ok { return ErrNotFound }
    d.Attempts++
    d.Status = "failed"
    d.LastError = lastError
    d.ResponseCode = responseCode
    d.LatencyMs = latencyMs
    return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    ids := m.deliveriesByTenant[tenantID]
    start := 0
    if cursor != "" {
        for i, id := range ids {
            if id == cursor { start = i + 1; break }
        }
    }
    if limit <= 0 { limit = 100 }
    out := []map[string]any{}
    var next string
    for i := start; i < len(ids) && len(out) < limit; i++ {
        d := m.deliveries[ids[i]]
        if status != "" && d.Status != status { continue }
        item := map[string]any{
            "id": d.ID, "eventType": d.EventType, "url": d.URL, "status": d.Status,
            "attempts": d.Attempts, "lastError": d.LastError, "responseCode": d.ResponseCode,
            "latencyMs": d.LatencyMs, "createdAt": d.CreatedAt,
        }
        if d.DeliveredAt != nil { item["deliveredAt"] = *d.DeliveredAt }
        out = append(out, item)
        next = ids[i]
    }
    if len(out) < limit { next = "" }
    return out, next, nil
}

func (m *Memory) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d, ok := m.deliveries[id]
    if !ok || d.TenantID != tenantID { return ErrNotFound }
    d.Status = "pending"
    d.NextAttemptAt = time.Time{}
    return nil
}
