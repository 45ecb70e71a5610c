package store

import (
    "context"
    "errors"
    "time"

    "fleetassign/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
    // Drivers
    CreateDriver(ctx context.Context, tenantID string, d model.Driver) (model.Driver, error)
    GetDriver(ctx context.Context, tenantID, id string) (model.Driver, error)
    ListDrivers(ctx context.Context, tenantID, status, fleetID, cursor string, limit int) ([]model.Driver, string, error)
    ListDriversByFleets(ctx context.Context, tenantID string, fleetIDs []string) ([]model.Driver, error)
    UpdateDriver(ctx context.Context, tenantID string, d model.Driver) (model.Driver, error)
    DeleteDriver(ctx context.Context, tenantID, id string) error
    SetDriverStatus(ctx context.Context, tenantID, driverID, status, note string) (model.Driver, error)

    // Vehicles
    CreateVehicle(ctx context.Context, tenantID string, v model.Vehicle) (model.Vehicle, error)
    GetVehicle(ctx context.Context, tenantID, id string) (model.Vehicle, error)
    ListVehicles(ctx context.Context, tenantID, fleetID, cursor string, limit int) ([]model.Vehicle, string, error)
    UpdateVehicle(ctx context.Context, tenantID string, v model.Vehicle) (model.Vehicle, error)
    DeleteVehicle(ctx context.Context, tenantID, id string) error

    // Orders
    CreateOrders(ctx context.Context, tenantID string, orders []model.Order) (created int, err error)
    GetOrders(ctx context.Context, tenantID string, ids []string) ([]model.Order, error)
    ListOrders(ctx context.Context, tenantID, status, cursor string, limit int) ([]model.Order, string, error)

    // Routes
    CreateRoute(ctx context.Context, tenantID string, r model.Route) (model.Route, error)
    GetRoute(ctx context.Context, tenantID, id string) (model.Route, error)
    ListRoutes(ctx context.Context, tenantID, cursor string, limit int) ([]model.Route, string, error)
    AssignRoute(ctx context.Context, tenantID, routeID, driverID, vehicleID string) (model.Route, error)
    ListActiveRoutesForDriver(ctx context.Context, tenantID, driverID string) ([]model.Route, error)

    // Subscriptions
    CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
    GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error)
    ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error)
    DeleteSubscription(ctx context.Context, tenantID, id string) error

    // Webhook deliveries
    EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
    FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
    MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
    FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
    ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error)
    RetryWebhookDelivery(ctx context.Context, tenantID, id string) error
}

var (
    ErrNotFound = errors.New("not found")
    // ErrForbidden marks a record that exists under another tenant.
    ErrForbidden = errors.New("forbidden")
    // ErrBadTransition marks an illegal driver status change.
    ErrBadTransition = errors.New("illegal status transition")
)
