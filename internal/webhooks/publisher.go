package webhooks

import (
    "context"
    "encoding/json"
    "fmt"
    "time"

    "github.com/rs/zerolog/log"

    "fleetassign/internal/store"
)

// Event types emitted by the assignment service.
const (
    EventAssignmentSuggested    = "assignment.suggested"
    EventReassignmentGenerated  = "reassignment.generated"
    EventDriverStatusChanged    = "driver.status.changed"
    EventRouteAssigned          = "route.assigned"
)

type Publisher struct {
    Store store.Store
}

func NewPublisher(s store.Store) *Publisher {
    return &Publisher{Store: s}
}

// Emit enqueues the event for every subscription matching the tenant and type.
func (p *Publisher) Emit(ctx context.Context, tenantID, eventType string, data any) {
    subs, err := p.Store.GetSubscriptionsForEvent(ctx, tenantID, eventType)
    if err != nil || len(subs) == 0 {
        return
    }
    payload := map[string]any{
        "id":       fmt.Sprintf("evt_%d", time.Now().UnixNano()),
        "type":     eventType,
        "tenantId": tenantID,
        "ts":       time.Now().UTC().Format(time.RFC3339),
        "data":     data,
    }
    body, _ := json.Marshal(payload)
    for _, s := range subs {
        if _, err := p.Store.EnqueueWebhook(ctx, tenantID, s.ID, eventType, s.URL, s.Secret, body); err != nil {
            log.Warn().Err(err).Str("tenant", tenantID).Str("event", eventType).Msg("enqueue webhook")
        }
    }
}
