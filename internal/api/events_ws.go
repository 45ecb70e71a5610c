package api

import (
    "encoding/json"
    "net/http"
    "strings"
    "time"

    "github.com/gorilla/websocket"
)

// WebSocket stream of assignment events. Clients subscribe to the tenant
// feed by default and may narrow to individual routes.

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
    Type    string          `json:"type"`
    ID      string          `json:"id,omitempty"`
    Payload json.RawMessage `json:"payload,omitempty"`
}

type wsSubscribePayload struct {
    Topic string `json:"topic"` // "tenant" or "route:<id>"
}

// EventsWSHandler handles /v1/events/ws
func (s *Server) EventsWSHandler(w http.ResponseWriter, r *http.Request) {
    pr := s.getPrincipal(r)
    _, tenant := s.withTenant(r)
    conn, err := upgrader.Upgrade(w, r, nil)
    if err != nil {
        return
    }
    defer func() { _ = conn.Close() }()

    type sub struct {
        topic string
        ch    chan SSEEvent
    }
    subs := map[string]sub{}

    conn.SetReadLimit(1 << 20)
    _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
    conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

    write := func(v any) error { return conn.WriteJSON(v) }

    for {
        var msg wsMessage
        if err := conn.ReadJSON(&msg); err != nil {
            break
        }
        switch msg.Type {
        case "connection_init":
            _ = write(wsMessage{Type: "connection_ack"})
            go func() {
                ticker := time.NewTicker(20 * time.Second)
                defer ticker.Stop()
                for range ticker.C {
                    if err := write(wsMessage{Type: "ping"}); err != nil {
                        return
                    }
                }
            }()
        case "ping":
            _ = write(wsMessage{Type: "pong"})
        case "subscribe":
            var pl wsSubscribePayload
            _ = json.Unmarshal(msg.Payload, &pl)
            topic := "tenant:" + tenant
            if strings.HasPrefix(pl.Topic, "route:") {
                rid := strings.TrimPrefix(pl.Topic, "route:")
                // RBAC: admin/dispatcher or the route's assigned driver
                if !pr.CanDispatch() {
                    rt, err := s.Store.GetRoute(r.Context(), tenant, rid)
                    if err != nil || pr.Role != "driver" || pr.DriverID == "" || rt.DriverID == "" || pr.DriverID != rt.DriverID {
                        _ = write(wsMessage{Type: "error", ID: msg.ID, Payload: []byte(`{"message":"forbidden"}`)})
                        _ = write(wsMessage{Type: "complete", ID: msg.ID})
                        continue
                    }
                }
                topic = pl.Topic
            } else if !pr.CanDispatch() {
                // tenant-wide feed is for dispatchers
                _ = write(wsMessage{Type: "error", ID: msg.ID, Payload: []byte(`{"message":"forbidden"}`)})
                _ = write(wsMessage{Type: "complete", ID: msg.ID})
                continue
            }
            ch := s.Broker.Subscribe(topic)
            subs[msg.ID] = sub{topic: topic, ch: ch}
            go func(id string, c chan SSEEvent) {
                for evt := range c {
                    payload, _ := json.Marshal(map[string]any{"type": evt.Type, "data": evt.Data})
                    _ = write(wsMessage{Type: "next", ID: id, Payload: payload})
                }
                _ = write(wsMessage{Type: "complete", ID: id})
            }(msg.ID, ch)
        case "complete":
            if s0, ok := subs[msg.ID]; ok {
                s.Broker.Unsubscribe(s0.topic, s0.ch)
                delete(subs, msg.ID)
            }
        default:
            // ignore
        }
    }
    for id, s0 := range subs {
        s.Broker.Unsubscribe(s0.topic, s0.ch)
        delete(subs, id)
    }
}
