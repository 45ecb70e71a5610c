package store

import "time"

// WebhookDelivery is one queued webhook attempt handed to the worker.
type WebhookDelivery struct {
    ID             string
    TenantID       string
    SubscriptionID string
    EventType      string
    URL            string
    Secret         string
    Payload        []byte
    Status         string
    Attempts       int
    CreatedAt      time.Time
}
