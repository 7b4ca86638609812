package domain

import "strings"

// WeightTier is a cumulative surcharge band: the surcharge applies whenever the
// cart weight exceeds MaxWeightGrams. Tiers are kept sorted ascending.
type WeightTier struct {
	MaxWeightGrams int64
	Surcharge      int64
}

// ShippingZone buckets destinations into a carriage tariff. Matchers are
// postal-code prefixes ("35", "070") or ISO country codes ("PT"); the first
// configured zone that matches wins.
type ShippingZone struct {
	ID             string
	Name           string
	PostalPrefixes []string
	Countries      []string
	FlatRate       int64
	WeightTiers    []WeightTier
	FreeOverAmount *int64
	VATExempt      bool
	IsDefault      bool
	Priority       int64
}

// Destination identifies where an order ships to.
type Destination struct {
	PostalCode string
	Country    string
}

// Matches reports whether the zone covers the destination.
func (z ShippingZone) Matches(dest Destination) bool {
	postal := strings.TrimSpace(dest.PostalCode)
	for _, prefix := range z.PostalPrefixes {
		if prefix != "" && strings.HasPrefix(postal, prefix) {
			return true
		}
	}
	country := strings.ToUpper(strings.TrimSpace(dest.Country))
	for _, c := range z.Countries {
		if c != "" && strings.EqualFold(c, country) {
			return true
		}
	}
	return false
}

// ShippingResult is the computed carriage outcome for a cart.
type ShippingResult struct {
	Cost        int64
	IsFree      bool
	ZoneID      string
	ZoneName    string
	VATExempt   bool
	TotalWeight int64
}
