package services

import (
	"context"
	"errors"

	"github.com/arbona-turismo/storefront/internal/platform/config"
	"github.com/arbona-turismo/storefront/internal/repositories"
)

// ErrNoShippingZone is returned when no configured zone covers the destination
// and no default zone exists.
var ErrNoShippingZone = errors.New("shipping: no zone covers destination")

// ZoneShippingCalculatorDeps bundles dependencies required to construct the shipping calculator.
type ZoneShippingCalculatorDeps struct {
	Zones   repositories.ShippingZoneRepository
	Pricing config.PricingConfig
	Logger  func(context.Context, string, map[string]any)
}

// ZoneShippingCalculator resolves carriage from the configured zone tariff table:
// first matching zone by priority, flat rate plus cumulative weight surcharges,
// with per-zone or storewide free-shipping thresholds.
type ZoneShippingCalculator struct {
	zones   repositories.ShippingZoneRepository
	pricing config.PricingConfig
	logger  func(context.Context, string, map[string]any)
}

var _ ShippingCalculator = (*ZoneShippingCalculator)(nil)

// NewZoneShippingCalculator wires the shipping calculator.
func NewZoneShippingCalculator(deps ZoneShippingCalculatorDeps) (*ZoneShippingCalculator, error) {
	if deps.Zones == nil {
		return nil, errors.New("shipping calculator: zone repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &ZoneShippingCalculator{
		zones:   deps.Zones,
		pricing: deps.Pricing,
		logger:  logger,
	}, nil
}

// Calculate resolves the shipping cost for a destination. thresholdAmount is the
// cart amount compared against the free-shipping threshold; the zone's own
// threshold wins over the storewide one when both are set.
func (c *ZoneShippingCalculator) Calculate(ctx context.Context, destination Destination, totalWeightGrams, thresholdAmount int64) (ShippingResult, error) {
	zones, err := c.zones.List(ctx)
	if err != nil {
		return ShippingResult{}, err
	}

	zone, ok := matchZone(zones, destination, c.pricing.DefaultZoneID)
	if !ok {
		return ShippingResult{}, ErrNoShippingZone
	}

	cost := zone.FlatRate
	for _, tier := range zone.WeightTiers {
		if totalWeightGrams > tier.MaxWeightGrams {
			cost += tier.Surcharge
		}
	}

	threshold := c.pricing.FreeShippingOver
	if zone.FreeOverAmount != nil {
		threshold = *zone.FreeOverAmount
	}
	free := threshold > 0 && thresholdAmount >= threshold
	if free {
		cost = 0
	}

	result := ShippingResult{
		Cost:        cost,
		IsFree:      free,
		ZoneID:      zone.ID,
		ZoneName:    zone.Name,
		VATExempt:   zone.VATExempt,
		TotalWeight: totalWeightGrams,
	}
	c.logger(ctx, "shipping.calculated", map[string]any{
		"zone":   zone.ID,
		"cost":   cost,
		"free":   free,
		"weight": totalWeightGrams,
	})
	return result, nil
}

// matchZone picks the first zone covering the destination; zones arrive sorted by
// priority. Falls back to the configured default zone, then to any zone flagged
// as default.
func matchZone(zones []ShippingZone, destination Destination, defaultZoneID string) (ShippingZone, bool) {
	for _, zone := range zones {
		if zone.Matches(destination) {
			return zone, true
		}
	}
	for _, zone := range zones {
		if defaultZoneID != "" && zone.ID == defaultZoneID {
			return zone, true
		}
	}
	for _, zone := range zones {
		if zone.IsDefault {
			return zone, true
		}
	}
	return ShippingZone{}, false
}
