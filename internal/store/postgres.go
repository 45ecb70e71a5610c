package store

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    "github.com/google/uuid"
    _ "github.com/jackc/pgx/v5/stdlib"

    "fleetassign/internal/model"
)

type Postgres struct {
    db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
    db, err := sql.Open("pgx", dsn)
    if err != nil {
        return nil, err
    }
    if err := db.Ping(); err != nil {
        return nil, err
    }
    return &Postgres{db: db}, nil
}

// Drivers

func (p *Postgres) CreateDriver(ctx context.Context, tenantID string, d model.Driver) (model.Driver, error) {
    if d.ID == "" { d.ID = uuid.New().String() }
    d.TenantID = tenantID
    if d.Status == "" { d.Status = model.StatusAvailable }
    if !model.KnownStatus(d.Status) { return model.Driver{}, fmt.Errorf("%w: %s", ErrBadTransition, d.Status) }
    _, err := p.db.ExecContext(ctx, `INSERT INTO drivers (id, tenant_id, name, license_number, license_expiry, license_categories, primary_fleet_id, secondary_fleet_ids, status, skills, active)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
        d.ID, tenantID, d.Name, nullIfEmpty(d.LicenseNumber), d.LicenseExpiry, toJSONB(d.LicenseCategories), nullIfEmpty(d.PrimaryFleetID), toJSONB(d.SecondaryFleetIDs), d.Status, toJSONB(d.Skills), d.Active)
    if err != nil { return model.Driver{}, err }
    return d, nil
}

func (p *Postgres) GetDriver(ctx context.Context, tenantID, id string) (model.Driver, error) {
    row := p.db.QueryRowContext(ctx, `SELECT id::text, tenant_id::text, name, license_number, license_expiry, license_categories, primary_fleet_id, secondary_fleet_ids, status, skills, active FROM drivers WHERE id=$1`, id)
    d, err := scanDriver(row)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) { return model.Driver{}, ErrNotFound }
        return model.Driver{}, err
    }
    if d.TenantID != tenantID { return model.Driver{}, ErrForbidden }
    return d, nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanDriver(row rowScanner) (model.Driver, error) {
    var d model.Driver
    var licNum, primary sql.NullString
    var expiry sql.NullTime
    var cats, secondary, skills []byte
    if err := row.Scan(&d.ID, &d.TenantID, &d.Name, &licNum, &expiry, &cats, &primary, &secondary, &d.Status, &skills, &d.Active); err != nil {
        return model.Driver{}, err
    }
    d.LicenseNumber = licNum.String
    if expiry.Valid { t := expiry.Time; d.LicenseExpiry = &t }
    d.PrimaryFleetID = primary.String
    if len(cats) > 0 { _ = json.Unmarshal(cats, &d.LicenseCategories) }
    if len(secondary) > 0 { _ = json.Unmarshal(secondary, &d.SecondaryFleetIDs) }
    if len(skills) > 0 { _ = json.Unmarshal(skills, &d.Skills) }
    return d, nil
}

func (p *Postgres) ListDrivers(ctx context.Context, tenantID, status, fleetID, cursor string, limit int) ([]model.Driver, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    // Fleet membership lives partly in jsonb, so filter in Go after the page query.
    var rows *sql.Rows
    var err error
    if status != "" {
        if cursor != "" {
            rows, err = p.db.QueryContext(ctx, `SELECT id::text, tenant_id::text, name, license_number, license_expiry, license_categories, primary_fleet_id, secondary_fleet_ids, status, skills, active FROM drivers WHERE tenant_id=$1 AND status=$2 AND id::text > $3 ORDER BY id LIMIT $4`, tenantID, status, cursor, limit)
        } else {
            rows, err = p.db.QueryContext(ctx, `SELECT id::text, tenant_id::text, name, license_number, license_expiry, license_categories, primary_fleet_id, secondary_fleet_ids, status, skills, active FROM drivers WHERE tenant_id=$1 AND status=$2 ORDER BY id LIMIT $3`, tenantID, status, limit)
        }
    } else {
        if cursor != "" {
            rows, err = p.db.QueryContext(ctx, `SELECT id::text, tenant_id::text, name, license_number, license_expiry, license_categories, primary_fleet_id, secondary_fleet_ids, status, skills, active FROM drivers WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
        } else {
            rows, err = p.db.QueryContext(ctx, `SELECT id::text, tenant_id::text, name, license_number, license_expiry, license_categories, primary_fleet_id, secondary_fleet_ids, status, skills, active FROM drivers WHERE tenant_id=$1 ORDER BY id LIMIT $2`, tenantID, limit)
        }
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []model.Driver{}
    var last string
    for rows.Next() {
        d, err := scanDriver(rows)
        if err != nil { return nil, "", err }
        last = d.ID
        if fleetID != "" && !d.InFleet(fleetID) { continue }
        out = append(out, d)
    }
    var next string
    if len(out) == limit { next = last }
    return out, next, nil
}

func (p *Postgres) ListDriversByFleets(ctx context.Context, tenantID string, fleetIDs []string) ([]model.Driver, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, tenant_id::text, name, license_number, license_expiry, license_categories, primary_fleet_id, secondary_fleet_ids, status, skills, active FROM drivers WHERE tenant_id=$1`, tenantID)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []model.Driver
    for rows.Next() {
        d, err := scanDriver(rows)
        if err != nil { return nil, err }
        for _, f := range fleetIDs {
            if d.InFleet(f) { out = append(out, d); break }
        }
    }
    return out, nil
}

func (p *Postgres) UpdateDriver(ctx context.Context, tenantID string, d model.Driver) (model.Driver, error) {
    cur, err := p.GetDriver(ctx, tenantID, d.ID)
    if err != nil { return model.Driver{}, err }
    d.TenantID = cur.TenantID
    if d.Status == "" { d.Status = cur.Status }
    if !model.KnownStatus(d.Status) { return model.Driver{}, fmt.Errorf("%w: %s", ErrBadTransition, d.Status) }
    _, err = p.db.ExecContext(ctx, `UPDATE drivers SET name=$1, license_number=$2, license_expiry=$3, license_categories=$4, primary_fleet_id=$5, secondary_fleet_ids=$6, status=$7, skills=$8, active=$9 WHERE tenant_id=$10 AND id=$11`,
        d.Name, nullIfEmpty(d.LicenseNumber), d.LicenseExpiry, toJSONB(d.LicenseCategories), nullIfEmpty(d.PrimaryFleetID), toJSONB(d.SecondaryFleetIDs), d.Status, toJSONB(d.Skills), d.Active, tenantID, d.ID)
    if err != nil { return model.Driver{}, err }
    return d, nil
}

func (p *Postgres) DeleteDriver(ctx context.Context, tenantID, id string) error {
    if _, err := p.GetDriver(ctx, tenantID, id); err != nil { return err }
    _, err := p.db.ExecContext(ctx, `DELETE FROM drivers WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    return err
}

func (p *Postgres) SetDriverStatus(ctx context.Context, tenantID, driverID, status, note string) (model.Driver, error) {
    if !model.KnownStatus(status) { return model.Driver{}, fmt.Errorf("%w: unknown status %s", ErrBadTransition, status) }
    tx, err := p.db.BeginTx(ctx, nil)
    if err != nil { return model.Driver{}, err }
    defer func(){ _ = tx.Rollback() }()
    var tenant, cur string
    err = tx.QueryRowContext(ctx, `SELECT tenant_id::text, status FROM drivers WHERE id=$1 FOR UPDATE`, driverID).Scan(&tenant, &cur)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) { return model.Driver{}, ErrNotFound }
        return model.Driver{}, err
    }
    if tenant != tenantID { return model.Driver{}, ErrForbidden }
    if !model.CanTransition(cur, status) {
        return model.Driver{}, fmt.Errorf("%w: %s -> %s", ErrBadTransition, cur, status)
    }
    if _, err := tx.ExecContext(ctx, `UPDATE drivers SET status=$1 WHERE id=$2`, status, driverID); err != nil {
        return model.Driver{}, err
    }
    _, err = tx.ExecContext(ctx, `INSERT INTO driver_status_log (id, tenant_id, driver_id, from_status, to_status, note, ts) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
        uuid.New(), tenantID, driverID, cur, status, nullIfEmpty(note), time.Now().UTC())
    if err != nil { return model.Driver{}, err }
    if err := tx.Commit(); err != nil { return model.Driver{}, err }
    return p.GetDriver(ctx, tenantID, driverID)
}

// Vehicles

func (p *Postgres) CreateVehicle(ctx context.Context, tenantID string, v model.Vehicle) (model.Vehicle, error) {
    if v.ID == "" { v.ID = uuid.New().String() }
    v.TenantID = tenantID
    _, err := p.db.ExecContext(ctx, `INSERT INTO vehicles (id, tenant_id, label, fleet_ids, required_license) VALUES ($1,$2,$3,$4,$5)`,
        v.ID, tenantID, nullIfEmpty(v.Label), toJSONB(v.FleetIDs), nullIfEmpty(v.RequiredLicense))
    if err != nil { return model.Vehicle{}, err }
    return v, nil
}

func (p *Postgres) GetVehicle(ctx context.Context, tenantID, id string) (model.Vehicle, error) {
    var v model.Vehicle
    var label, reqLic sql.NullString
    var fleets []byte
    row := p.db.QueryRowContext(ctx, `SELECT id::text, tenant_id::text, label, fleet_ids, required_license FROM vehicles WHERE id=$1`, id)
    if err := row.Scan(&v.ID, &v.TenantID, &label, &fleets, &reqLic); err != nil {
        if errors.Is(err, sql.ErrNoRows) { return model.Vehicle{}, ErrNotFound }
        return model.Vehicle{}, err
    }
    v.Label = label.String
    v.RequiredLicense = reqLic.String
    if len(fleets) > 0 { _ = json.Unmarshal(fleets, &v.FleetIDs) }
    if v.TenantID != tenantID { return model.Vehicle{}, ErrForbidden }
    return v, nil
}

func (p *Postgres) ListVehicles(ctx context.Context, tenantID, fleetID, cursor string, limit int) ([]model.Vehicle, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    var rows *sql.Rows
    var err error
    if cursor != "" {
        rows, err = p.db.QueryContext(ctx, `SELECT id::text, tenant_id::text, label, fleet_ids, required_license FROM vehicles WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
    } else {
        rows, err = p.db.QueryContext(ctx, `SELECT id::text, tenant_id::text, label, fleet_ids, required_license FROM vehicles WHERE tenant_id=$1 ORDER BY id LIMIT $2`, tenantID, limit)
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []model.Vehicle{}
    var last string
    for rows.Next() {
        var v model.Vehicle
        var label, reqLic sql.NullString
        var fleets []byte
        if err := rows.Scan(&v.ID, &v.TenantID, &label, &fleets, &reqLic); err != nil { return nil, "", err }
        v.Label = label.String
        v.RequiredLicense = reqLic.String
        if len(fleets) > 0 { _ = json.Unmarshal(fleets, &v.FleetIDs) }
        last = v.ID
        if fleetID != "" {
            in := false
            for _, f := range v.FleetIDs { if f == fleetID { in = true; break } }
            if !in { continue }
        }
        out = append(out, v)
    }
    var next string
    if len(out) == limit { next = last }
    return out, next, nil
}

func (p *Postgres) UpdateVehicle(ctx context.Context, tenantID string, v model.Vehicle) (model.Vehicle, error) {
    cur, err := p.GetVehicle(ctx, tenantID, v.ID)
    if err != nil { return model.Vehicle{}, err }
    v.TenantID = cur.TenantID
    _, err = p.db.ExecContext(ctx, `UPDATE vehicles SET label=$1, fleet_ids=$2, required_license=$3 WHERE tenant_id=$4 AND id=$5`,
        nullIfEmpty(v.Label), toJSONB(v.FleetIDs), nullIfEmpty(v.RequiredLicense), tenantID, v.ID)
    if err != nil { return model.Vehicle{}, err }
    return v, nil
}

func (p *Postgres) DeleteVehicle(ctx context.Context, tenantID, id string) error {
    if _, err := p.GetVehicle(ctx, tenantID, id); err != nil { return err }
    _, err := p.db.ExecContext(ctx, `DELETE FROM vehicles WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    return err
}

// Orders

func (p *Postgres) CreateOrders(ctx context.Context, tenantID string, orders []model.Order) (int, error) {
    tx, err := p.db.BeginTx(ctx, nil)
    if err != nil { return 0, err }
    defer func(){ _ = tx.Rollback() }()
    created := 0
    for _, o := range orders {
        if o.ID == "" { o.ID = uuid.New().String() }
        if o.Status == "" { o.Status = "pending" }
        _, err = tx.ExecContext(ctx, `INSERT INTO orders (id, tenant_id, external_ref, status, required_skills) VALUES ($1,$2,$3,$4,$5)`,
            o.ID, tenantID, nullIfEmpty(o.ExternalRef), o.Status, toJSONB(o.RequiredSkills))
        if err != nil { return 0, err }
        created++
    }
    if err := tx.Commit(); err != nil { return 0, err }
    return created, nil
}

func (p *Postgres) GetOrders(ctx context.Context, tenantID string, ids []string) ([]model.Order, error) {
    out := []model.Order{}
    for _, id := range ids {
        var o model.Order
        var ext sql.NullString
        var skills []byte
        row := p.db.QueryRowContext(ctx, `SELECT id::text, tenant_id::text, external_ref, status, required_skills FROM orders WHERE tenant_id=$1 AND id=$2`, tenantID, id)
        if err := row.Scan(&o.ID, &o.TenantID, &ext, &o.Status, &skills); err != nil {
            if errors.Is(err, sql.ErrNoRows) { continue }
            return nil, err
        }
        o.ExternalRef = ext.String
        if len(skills) > 0 {
            if err := json.Unmarshal(skills, &o.RequiredSkills); err != nil { o.RequiredSkillsRaw = string(skills) }
        }
        out = append(out, o)
    }
    return out, nil
}

func (p *Postgres) ListOrders(ctx context.Context, tenantID, status, cursor string, limit int) ([]model.Order, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    var rows *sql.Rows
    var err error
    if status != "" {
        if cursor != "" {
            rows, err = p.db.QueryContext(ctx, `SELECT id::text, tenant_id::text, external_ref, status, required_skills FROM orders WHERE tenant_id=$1 AND status=$2 AND id::text > $3 ORDER BY id LIMIT $4`, tenantID, status, cursor, limit)
        } else {
            rows, err = p.db.QueryContext(ctx, `SELECT id::text, tenant_id::text, external_ref, status, required_skills FROM orders WHERE tenant_id=$1 AND status=$2 ORDER BY id LIMIT $3`, tenantID, status, limit)
        }
    } else {
        if cursor != "" {
            rows, err = p.db.QueryContext(ctx, `SELECT id::text, tenant_id::text, external_ref, status, required_skills FROM orders WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
        } else {
            rows, err = p.db.QueryContext(ctx, `SELECT id::text, tenant_id::text, external_ref, status, required_skills FROM orders WHERE tenant_id=$1 ORDER BY id LIMIT $2`, tenantID, limit)
        }
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []model.Order{}
    var last string
    for rows.Next() {
        var o model.Order
        var ext sql.NullString
        var skills []byte
        if err := rows.Scan(&o.ID, &o.TenantID, &ext, &o.Status, &skills); err != nil { return nil, "", err }
        o.ExternalRef = ext.String
        if len(skills) > 0 {
            if err := json.Unmarshal(skills, &o.RequiredSkills); err != nil { o.RequiredSkillsRaw = string(skills) }
        }
        out = append(out, o)
        last = o.ID
    }
    var next string
    if len(out) == limit { next = last }
    return out, next, nil
}

// Routes

func (p *Postgres) CreateRoute(ctx context.Context, tenantID string, r model.Route) (model.Route, error) {
    if r.ID == "" { r.ID = uuid.New().String() }
    r.TenantID = tenantID
    if r.Status == "" { r.Status = "planned" }
    tx, err := p.db.BeginTx(ctx, nil)
    if err != nil { return model.Route{}, err }
    defer func(){ _ = tx.Rollback() }()
    _, err = tx.ExecContext(ctx, `INSERT INTO routes (id, tenant_id, plan_ref, status, driver_id, vehicle_id) VALUES ($1,$2,$3,$4,$5,$6)`,
        r.ID, tenantID, nullIfEmpty(r.PlanRef), r.Status, nullIfEmpty(r.DriverID), nullIfEmpty(r.VehicleID))
    if err != nil { return model.Route{}, err }
    for i := range r.Stops {
        if r.Stops[i].ID == "" { r.Stops[i].ID = uuid.New().String() }
        if r.Stops[i].Status == "" { r.Stops[i].Status = model.StopPending }
        if r.Stops[i].Seq == 0 { r.Stops[i].Seq = i + 1 }
        _, err = tx.ExecContext(ctx, `INSERT INTO route_stops (id, tenant_id, route_id, seq, order_id, status) VALUES ($1,$2,$3,$4,$5,$6)`,
            r.Stops[i].ID, tenantID, r.ID, r.Stops[i].Seq, nullIfEmpty(r.Stops[i].OrderID), r.Stops[i].Status)
        if err != nil { return model.Route{}, err }
    }
    if err := tx.Commit(); err != nil { return model.Route{}, err }
    return r, nil
}

func (p *Postgres) GetRoute(ctx context.Context, tenantID, id string) (model.Route, error) {
    var r model.Route
    var planRef, driverID, vehicleID sql.NullString
    row := p.db.QueryRowContext(ctx, `SELECT id::text, tenant_id::text, plan_ref, status, driver_id::text, vehicle_id::text FROM routes WHERE id=$1`, id)
    if err := row.Scan(&r.ID, &r.TenantID, &planRef, &r.Status, &driverID, &vehicleID); err != nil {
        if errors.Is(err, sql.ErrNoRows) { return r, ErrNotFound }
        return r, err
    }
    if r.TenantID != tenantID { return model.Route{}, ErrForbidden }
    r.PlanRef = planRef.String
    r.DriverID = driverID.String
    r.VehicleID = vehicleID.String
    stops, err := p.routeStops(ctx, tenantID, r.ID)
    if err != nil { return r, err }
    r.Stops = stops
    return r, nil
}

func (p *Postgres) routeStops(ctx context.Context, tenantID, routeID string) ([]model.Stop, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, seq, order_id::text, status FROM route_stops WHERE tenant_id=$1 AND route_id=$2 ORDER BY seq`, tenantID, routeID)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.Stop{}
    for rows.Next() {
        var s model.Stop
        var orderID sql.NullString
        if err := rows.Scan(&s.ID, &s.Seq, &orderID, &s.Status); err != nil { return nil, err }
        s.OrderID = orderID.String
        out = append(out, s)
    }
    return out, nil
}

func (p *Postgres) ListRoutes(ctx context.Context, tenantID, cursor string, limit int) ([]model.Route, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    var rows *sql.Rows
    var err error
    if cursor != "" {
        rows, err = p.db.QueryContext(ctx, `SELECT id::text FROM routes WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
    } else {
        rows, err = p.db.QueryContext(ctx, `SELECT id::text FROM routes WHERE tenant_id=$1 ORDER BY id LIMIT $2`, tenantID, limit)
    }
    if err != nil { return nil, "", err }
    ids := []string{}
    for rows.Next() {
        var id string
        if err := rows.Scan(&id); err != nil { rows.Close(); return nil, "", err }
        ids = append(ids, id)
    }
    rows.Close()
    out := []model.Route{}
    for _, id := range ids {
        r, err := p.GetRoute(ctx, tenantID, id)
        if err != nil { return nil, "", err }
        out = append(out, r)
    }
    var next string
    if len(out) == limit { next = ids[len(ids)-1] }
    return out, next, nil
}

func (p *Postgres) AssignRoute(ctx context.Context, tenantID, routeID, driverID, vehicleID string) (model.Route, error) {
    if _, err := p.GetRoute(ctx, tenantID, routeID); err != nil { return model.Route{}, err }
    if driverID != "" {
        if _, err := p.GetDriver(ctx, tenantID, driverID); err != nil { return model.Route{}, err }
        if _, err := p.db.ExecContext(ctx, `UPDATE routes SET driver_id=$1, status='assigned' WHERE tenant_id=$2 AND id=$3`, driverID, tenantID, routeID); err != nil {
            return model.Route{}, err
        }
    }
    if vehicleID != "" {
        if _, err := p.GetVehicle(ctx, tenantID, vehicleID); err != nil { return model.Route{}, err }
        if _, err := p.db.ExecContext(ctx, `UPDATE routes SET vehicle_id=$1, status='assigned' WHERE tenant_id=$2 AND id=$3`, vehicleID, tenantID, routeID); err != nil {
            return model.Route{}, err
        }
    }
    return p.GetRoute(ctx, tenantID, routeID)
}

func (p *Postgres) ListActiveRoutesForDriver(ctx context.Context, tenantID, driverID string) ([]model.Route, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT DISTINCT r.id::text FROM routes r JOIN route_stops s ON s.route_id = r.id
        WHERE r.tenant_id=$1 AND r.driver_id=$2 AND s.status IN ('pending','in_progress') ORDER BY r.id`, tenantID, driverID)
    if err != nil { return nil, err }
    ids := []string{}
    for rows.Next() {
        var id string
        if err := rows.Scan(&id); err != nil { rows.Close(); return nil, err }
        ids = append(ids, id)
    }
    rows.Close()
    out := []model.Route{}
    for _, id := range ids {
        r, err := p.GetRoute(ctx, tenantID, id)
        if err != nil { return nil, err }
        out = append(out, r)
    }
    return out, nil
}

// Subscriptions

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
    s := model.Subscription{ID: uuid.New().String(), TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}
    _, err := p.db.ExecContext(ctx, `INSERT INTO subscriptions (id, tenant_id, url, events, secret) VALUES ($1,$2,$3,$4,$5)`,
        s.ID, s.TenantID, s.URL, toJSONB(s.Events), s.Secret)
    if err != nil { return model.Subscription{}, err }
    return s, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, tenant_id::text, url, events, secret FROM subscriptions WHERE tenant_id=$1`, tenantID)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []model.Subscription
    for rows.Next() {
        s, err := scanSubscription(rows)
        if err != nil { return nil, err }
        for _, e := range s.Events {
            if e == eventType || e == "*" { out = append(out, s); break }
        }
    }
    return out, nil
}

func scanSubscription(row rowScanner) (model.Subscription, error) {
    var s model.Subscription
    var events []byte
    if err := row.Scan(&s.ID, &s.TenantID, &s.URL, &events, &s.Secret); err != nil {
        return model.Subscription{}, err
    }
    if len(events) > 0 { _ = json.Unmarshal(events, &s.Events) }
    return s, nil
}

func (p *Postgres) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    var rows *sql.Rows
    var err error
    if cursor != "" {
        rows, err = p.db.QueryContext(ctx, `SELECT id::text, tenant_id::text, url, events, secret FROM subscriptions WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
    } else {
        rows, err = p.db.QueryContext(ctx, `SELECT id::text, tenant_id::text, url, events, secret FROM subscriptions WHERE tenant_id=$1 ORDER BY id LIMIT $2`, tenantID, limit)
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []model.Subscription{}
    for rows.Next() {
        s, err := scanSubscription(rows)
        if err != nil { return nil, "", err }
        out = append(out, s)
    }
    var next string
    if len(out) == limit { next = out[len(out)-1].ID }
    return out, next, nil
}

func (p *Postgres) DeleteSubscription(ctx context.Context, tenantID, id string) error {
    _, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    return err
}

// Webhook deliveries

func (p *Postgres) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
    id := uuid.New().String()
    _, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, tenant_id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,'pending',0,now(),now())`,
        id, tenantID, subscriptionID, eventType, url, secret, payload)
    if err != nil { return "", err }
    return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    if limit <= 0 { limit = 50 }
    rows, err := p.db.QueryContext(ctx, `UPDATE webhook_deliveries SET status='in_flight'
        WHERE id IN (
            SELECT id FROM webhook_deliveries WHERE status='pending' AND next_attempt_at <= now()
            ORDER BY next_attempt_at LIMIT $1 FOR UPDATE SKIP LOCKED
        )
        RETURNING id::text, tenant_id::text, subscription_id::text, event_type, url, secret, payload, status, attempts, created_at`, limit)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []WebhookDelivery{}
    for rows.Next() {
        var d WebhookDelivery
        if err := rows.Scan(&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts, &d.CreatedAt); err != nil {
            return nil, err
        }
        out = append(out, d)
    }
    return out, nil
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    if success {
        _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='delivered', attempts=attempts+1, last_error=NULL, response_code=$1, latency_ms=$2, delivered_at=now() WHERE id=$3`,
            responseCode, latencyMs, id)
        return err
    }
    _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='pending', attempts=attempts+1, last_error=$1, response_code=$2, latency_ms=$3, next_attempt_at=$4 WHERE id=$5`,
        nullIfEmpty(lastError), responseCode, latencyMs, nextAttemptAt, id)
    return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='failed', attempts=attempts+1, last_error=$1, response_code=$2, latency_ms=$3 WHERE id=$4`,
        nullIfEmpty(lastError), responseCode, latencyMs, id)
    return err
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    var rows *sql.Rows
    var err error
    if status != "" {
        if cursor != "" {
            rows, err = p.db.QueryContext(ctx, `SELECT id::text, event_type, url, status, attempts, last_error, response_code, latency_ms, created_at FROM webhook_deliveries WHERE tenant_id=$1 AND status=$2 AND id::text > $3 ORDER BY id LIMIT $4`, tenantID, status, cursor, limit)
        } else {
            rows, err = p.db.QueryContext(ctx, `SELECT id::text, event_type, url, status, attempts, last_error, response_code, latency_ms, created_at FROM webhook_deliveries WHERE tenant_id=$1 AND status=$2 ORDER BY id LIMIT $3`, tenantID, status, limit)
        }
    } else {
        if cursor != "" {
            rows, err = p.db.QueryContext(ctx, `SELECT id::text, event_type, url, status, attempts, last_error, response_code, latency_ms, created_at FROM webhook_deliveries WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
        } else {
            rows, err = p.db.QueryContext(ctx, `SELECT id::text, event_type, url, status, attempts, last_error, response_code, latency_ms, created_at FROM webhook_deliveries WHERE tenant_id=$1 ORDER BY id LIMIT $2`, tenantID, limit)
        }
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []map[string]any{}
    var last string
    for rows.Next() {
        var id, eventType, url, st string
        var attempts int
        var lastErr sql.NullString
        var respCode, latency sql.NullInt64
        var createdAt time.Time
        if err := rows.Scan(&id, &eventType, &url, &st, &attempts, &lastErr, &respCode, &latency, &createdAt); err != nil { return nil, "", err }
        out = append(out, map[string]any{
            "id": id, "eventType": eventType, "url": url, "status": st,
            "attempts": attempts, "lastError": lastErr.String, "responseCode": int(respCode.Int64),
            "latencyMs": int(latency.Int64), "createdAt": createdAt,
        })
        last = id
    }
    var next string
    if len(out) == limit { next = last }
    return out, next, nil
}

func (p *Postgres) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
    res, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='pending', next_attempt_at=now() WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

func nullIfEmpty(s string) any { if s == "" { return nil }; return s }

func toJSONB(v any) any {
    b, err := json.Marshal(v)
    if err != nil { return nil }
    return b
}
