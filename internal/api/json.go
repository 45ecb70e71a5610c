package api

import (
    "encoding/json"
    "errors"
    "net/http"

    "fleetassign/internal/store"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
    Type     string `json:"type"`
    Title    string `json:"title"`
    Status   int    `json:"status"`
    Detail   string `json:"detail,omitempty"`
    Instance string `json:"instance,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    _ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
    writeJSON(w, status, Problem{
        Type:     "about:blank",
        Title:    title,
        Status:   status,
        Detail:   detail,
        Instance: instance,
    })
}

// writeStoreError maps store sentinels onto problem responses.
func writeStoreError(w http.ResponseWriter, err error, title, instance string) {
    switch {
    case errors.Is(err, store.ErrNotFound):
        writeProblem(w, http.StatusNotFound, title, err.Error(), instance)
    case errors.Is(err, store.ErrForbidden):
        writeProblem(w, http.StatusForbidden, title, "record belongs to another tenant", instance)
    case errors.Is(err, store.ErrBadTransition):
        writeProblem(w, http.StatusConflict, title, err.Error(), instance)
    default:
        writeProblem(w, http.StatusInternalServerError, title, err.Error(), instance)
    }
}
