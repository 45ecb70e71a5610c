package engine

import (
	"fmt"
	"math"

	"fleetassign/internal/model"
)

// Evaluate computes the five factors and the strategy-weighted overall score
// for one (driver, vehicle, requiredSkills) triple. tentative is the number of
// routes already tentatively assigned to this driver within the current
// request; single-suggestion callers pass 0.
//
// Errors inside the returned score are hard exclusions from the primary ranked
// set; warnings never exclude. The score is always fully computed so callers
// can fall back to the least-bad candidate.
func (e *Engine) Evaluate(d model.Driver, v model.Vehicle, required []string, tentative int, strategy string) model.AssignmentScore {
	score := model.AssignmentScore{
		DriverID:   d.ID,
		DriverName: d.Name,
		Warnings:   []string{},
		Errors:     []string{},
	}
	score.Factors.LicenseValid = e.licenseFactor(d, v, &score)
	score.Factors.Availability = availabilityFactor(d, &score)
	score.Factors.FleetMatch = fleetFactor(d, v, &score)
	score.Factors.SkillsMatch = e.skillsFactor(d, required, &score)
	score.Factors.Workload = e.workloadFactor(tentative)
	score.Score = e.weightsFor(strategy).Combine(score.Factors)
	return score
}

// licenseFactor scores license validity. A missing or expired license is a
// hard error. Inside the near-expiry window the factor degrades linearly with
// the days remaining. A missing required license category is an independent
// penalty layered on top, warning only.
func (e *Engine) licenseFactor(d model.Driver, v model.Vehicle, s *model.AssignmentScore) int {
	factor := 0
	switch {
	case d.LicenseExpiry == nil:
		s.Errors = append(s.Errors, "no license expiry date")
	case d.LicenseExpiry.Before(e.now()):
		s.Errors = append(s.Errors, "license expired")
	default:
		days := int(d.LicenseExpiry.Sub(e.now()).Hours() / 24)
		window := e.cfg.LicenseWindowDays
		if days <= window {
			s.Warnings = append(s.Warnings, fmt.Sprintf("license expires in %d days", days))
			factor = clamp(int(math.Round(float64(days) / float64(window) * 100)))
		} else {
			factor = 100
		}
	}
	if v.RequiredLicense != "" && !d.HasLicenseCategory(v.RequiredLicense) {
		s.Warnings = append(s.Warnings, fmt.Sprintf("missing required license category %s", v.RequiredLicense))
		factor = clamp(factor - e.cfg.CategoryPenalty)
	}
	return factor
}

// availabilityFactor maps the driver's operational status to a factor.
// UNAVAILABLE and ABSENT are hard exclusions.
func availabilityFactor(d model.Driver, s *model.AssignmentScore) int {
	switch d.Status {
	case model.StatusUnavailable:
		s.Errors = append(s.Errors, "driver is unavailable")
		return 0
	case model.StatusAbsent:
		s.Errors = append(s.Errors, "driver is absent")
		return 0
	case model.StatusAvailable:
		return 100
	case model.StatusCompleted:
		// available but just finished a route
		return 50
	default:
		s.Warnings = append(s.Warnings, fmt.Sprintf("driver status %s", d.Status))
		return 50
	}
}

// fleetFactor discriminates primary vs secondary membership within the
// already fleet-filtered candidate set. Cross-fleet candidates can still show
// up on the reassignment path when routes span several fleets.
func fleetFactor(d model.Driver, v model.Vehicle, s *model.AssignmentScore) int {
	if primary := v.PrimaryFleetID(); primary != "" && d.PrimaryFleetID == primary {
		return 100
	}
	for _, f := range v.FleetIDs {
		if d.InFleet(f) {
			s.Warnings = append(s.Warnings, "driver from secondary fleet")
			return 75
		}
	}
	s.Warnings = append(s.Warnings, "driver from different fleet")
	return 25
}

// skillsFactor scores required-skill coverage. Expired-but-active assignments
// still count toward coverage, but each one held by the driver subtracts a
// fixed penalty, matched or not.
func (e *Engine) skillsFactor(d model.Driver, required []string, s *model.AssignmentScore) int {
	factor := 100
	if len(required) > 0 {
		held := map[string]bool{}
		for _, sk := range d.Skills {
			if sk.Active {
				held[sk.SkillID] = true
			}
		}
		matched := 0
		for _, r := range required {
			if held[r] {
				matched++
			}
		}
		factor = int(math.Round(float64(matched) / float64(len(required)) * 100))
		if factor < 100 {
			s.Warnings = append(s.Warnings, fmt.Sprintf("skill coverage %d/%d", matched, len(required)))
		}
		if matched == 0 && e.cfg.RequireSkillCoverage {
			s.Errors = append(s.Errors, "no required skill coverage")
		}
	}
	for _, sk := range d.Skills {
		if sk.Active && sk.Expiry != nil && sk.Expiry.Before(e.now()) {
			s.Warnings = append(s.Warnings, fmt.Sprintf("skill %s expired", sk.SkillID))
			factor = clamp(factor - e.cfg.ExpiredSkillPenalty)
		}
	}
	return clamp(factor)
}

// workloadFactor degrades with every route already tentatively assigned to the
// driver within the current request. Without batch context it stays at 100.
func (e *Engine) workloadFactor(tentative int) int {
	if tentative <= 0 {
		return 100
	}
	return clamp(100 - tentative*e.cfg.WorkloadStep)
}
