package api

import (
    "fmt"

    "fleetassign/internal/engine"
    "fleetassign/internal/model"
)

func validateSuggestionRequest(req *model.SuggestionRequest) error {
    if req.VehicleID == "" {
        return fmt.Errorf("vehicleId is required")
    }
    if req.Limit < 0 {
        return fmt.Errorf("limit must be >= 0")
    }
    if req.Limit > 50 {
        return fmt.Errorf("limit must be <= 50")
    }
    if req.Strategy != "" && !engine.KnownStrategy(req.Strategy) {
        return fmt.Errorf("unknown strategy: %s", req.Strategy)
    }
    return nil
}

func validateReassignmentRequest(req *model.ReassignmentRequest) error {
    if req.DriverID == "" {
        return fmt.Errorf("driverId is required")
    }
    if req.Limit < 0 {
        return fmt.Errorf("limit must be >= 0")
    }
    if req.Limit > 50 {
        return fmt.Errorf("limit must be <= 50")
    }
    if req.Strategy != "" && !engine.KnownStrategy(req.Strategy) {
        return fmt.Errorf("unknown strategy: %s", req.Strategy)
    }
    return nil
}

func validateSubscriptionRequest(req *model.SubscriptionRequest) error {
    if req.URL == "" {
        return fmt.Errorf("url is required")
    }
    if len(req.Events) == 0 {
        return fmt.Errorf("events is required")
    }
    return nil
}
