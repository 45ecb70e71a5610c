// Package main runs a demo WebSocket client for assignment events.
package main

import (
    "bytes"
    "encoding/json"
    "fmt"
    "log"
    "net/http"
    "net/url"
    "os"
    "time"

    "github.com/gorilla/websocket"
)

type wsMessage struct {
    Type    string          `json:"type"`
    ID      string          `json:"id,omitempty"`
    Payload json.RawMessage `json:"payload,omitempty"`
}

func post(base, path string, body []byte) (*http.Response, error) {
    req, _ := http.NewRequest(http.MethodPost, base+path, bytes.NewReader(body))
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("X-Tenant-Id", "t_demo")
    req.Header.Set("X-Role", "admin")
    return http.DefaultClient.Do(req)
}

func main() {
    port := os.Getenv("PORT")
    if port == "" {
        port = "8080"
    }
    base := fmt.Sprintf("http://localhost:%s", port)

    // Seed a vehicle and a driver
    resp, err := post(base, "/v1/vehicles", []byte(`{"fleetIds":["f_demo"]}`))
    if err != nil {
        log.Fatal(err)
    }
    var veh struct {
        ID string `json:"id"`
    }
    if err := json.NewDecoder(resp.Body).Decode(&veh); err != nil {
        log.Fatal(err)
    }
    _ = resp.Body.Close()
    resp, err = post(base, "/v1/drivers", []byte(`{"name":"Demo Driver","primaryFleetId":"f_demo","active":true,"licenseExpiry":"2030-01-01T00:00:00Z"}`))
    if err != nil {
        log.Fatal(err)
    }
    _ = resp.Body.Close()
    log.Printf("Vehicle ID: %s", veh.ID)

    // Connect WS and subscribe to the tenant feed
    u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/events/ws"}
    hdr := http.Header{}
    hdr.Set("X-Tenant-Id", "t_demo")
    hdr.Set("X-Role", "admin")
    c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
    if err != nil {
        log.Fatal("dial:", err)
    }
    defer func() { _ = c.Close() }()

    if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
        log.Fatal(err)
    }
    pl, _ := json.Marshal(map[string]any{"topic": "tenant"})
    if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: pl}); err != nil {
        log.Fatal(err)
    }

    done := make(chan struct{})
    go func() {
        defer close(done)
        for {
            var m wsMessage
            if err := c.ReadJSON(&m); err != nil {
                log.Printf("read: %v", err)
                return
            }
            log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
        }
    }()

    // Trigger an assignment suggestion
    time.Sleep(500 * time.Millisecond)
    body := []byte(fmt.Sprintf(`{"vehicleId":%q,"strategy":"BALANCED"}`, veh.ID))
    if resp, err := post(base, "/v1/assignments/suggest", body); err == nil {
        _ = resp.Body.Close()
    }

    select {
    case <-time.After(2 * time.Second):
    case <-done:
    }
}
