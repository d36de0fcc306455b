// Package model defines core domain types shared across the service.
package model

import (
	"fmt"
	"math"
)

// LayoutParams are the module dimensions in meters read at rebuild time.
type LayoutParams struct {
	ModuleWidth   float64 `json:"module_width"`
	ModuleLength  float64 `json:"module_length"`
	ModuleSpacing float64 `json:"module_spacing"`
}

func (p LayoutParams) String() string {
	return fmt.Sprintf("%.3fx%.3f+%.3f", p.ModuleWidth, p.ModuleLength, p.ModuleSpacing)
}

// Validate returns a description of the first invalid field, or "" when valid.
func (p LayoutParams) Validate() string {
	switch {
	case !positive(p.ModuleWidth):
		return fmt.Sprintf("module width must be a positive number of meters (got %v)", p.ModuleWidth)
	case !positive(p.ModuleLength):
		return fmt.Sprintf("module length must be a positive number of meters (got %v)", p.ModuleLength)
	case math.IsNaN(p.ModuleSpacing) || math.IsInf(p.ModuleSpacing, 0) || p.ModuleSpacing < 0:
		return fmt.Sprintf("module spacing must be >= 0 meters (got %v)", p.ModuleSpacing)
	}
	return ""
}

func positive(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f > 0
}

// Trigger names what started a rebuild.
type Trigger string

const (
	TriggerPopulate Trigger = "populate"
	TriggerReady    Trigger = "ready"
)
