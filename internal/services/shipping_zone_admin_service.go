package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/arbona-turismo/storefront/internal/repositories"
)

var (
	// ErrShippingZoneInvalidInput signals a malformed zone payload.
	ErrShippingZoneInvalidInput = errors.New("shipping zone: invalid input")
	// ErrShippingZoneNotFound is returned when the referenced zone does not exist.
	ErrShippingZoneNotFound = errors.New("shipping zone: not found")
)

// ShippingZoneAdminServiceDeps bundles dependencies required to construct the zone admin service.
type ShippingZoneAdminServiceDeps struct {
	Zones  repositories.ShippingZoneRepository
	NewID  func() string
	Logger func(context.Context, string, map[string]any)
}

type shippingZoneAdminService struct {
	zones  repositories.ShippingZoneRepository
	newID  func() string
	logger func(context.Context, string, map[string]any)
}

var _ ShippingZoneAdminService = (*shippingZoneAdminService)(nil)

// NewShippingZoneAdminService wires the shipping zone admin service.
func NewShippingZoneAdminService(deps ShippingZoneAdminServiceDeps) (ShippingZoneAdminService, error) {
	if deps.Zones == nil {
		return nil, errors.New("shipping zone admin service: zone repository is required")
	}
	newID := deps.NewID
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &shippingZoneAdminService{
		zones:  deps.Zones,
		newID:  newID,
		logger: logger,
	}, nil
}

func (s *shippingZoneAdminService) Create(ctx context.Context, cmd UpsertShippingZoneCommand) (ShippingZone, error) {
	zone, err := zoneFromCommand(cmd)
	if err != nil {
		return ShippingZone{}, err
	}
	if zone.ID == "" {
		zone.ID = s.newID()
	}

	created, err := s.zones.Insert(ctx, zone)
	if err != nil {
		return ShippingZone{}, err
	}
	s.logger(ctx, "shipping_zone.created", map[string]any{"zoneId": created.ID})
	return created, nil
}

func (s *shippingZoneAdminService) Update(ctx context.Context, cmd UpsertShippingZoneCommand) (ShippingZone, error) {
	if strings.TrimSpace(cmd.ID) == "" {
		return ShippingZone{}, fmt.Errorf("%w: zone id is required", ErrShippingZoneInvalidInput)
	}
	zone, err := zoneFromCommand(cmd)
	if err != nil {
		return ShippingZone{}, err
	}

	updated, err := s.zones.Update(ctx, zone)
	if err != nil {
		return ShippingZone{}, s.mapRepoError(err)
	}
	s.logger(ctx, "shipping_zone.updated", map[string]any{"zoneId": updated.ID})
	return updated, nil
}

func (s *shippingZoneAdminService) Delete(ctx context.Context, zoneID string) error {
	if strings.TrimSpace(zoneID) == "" {
		return fmt.Errorf("%w: zone id is required", ErrShippingZoneInvalidInput)
	}
	if err := s.zones.Delete(ctx, zoneID); err != nil {
		return s.mapRepoError(err)
	}
	s.logger(ctx, "shipping_zone.deleted", map[string]any{"zoneId": zoneID})
	return nil
}

func (s *shippingZoneAdminService) Get(ctx context.Context, zoneID string) (ShippingZone, error) {
	if strings.TrimSpace(zoneID) == "" {
		return ShippingZone{}, fmt.Errorf("%w: zone id is required", ErrShippingZoneInvalidInput)
	}
	zone, err := s.zones.FindByID(ctx, zoneID)
	if err != nil {
		return ShippingZone{}, s.mapRepoError(err)
	}
	return zone, nil
}

func (s *shippingZoneAdminService) List(ctx context.Context) ([]ShippingZone, error) {
	return s.zones.List(ctx)
}

func zoneFromCommand(cmd UpsertShippingZoneCommand) (ShippingZone, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return ShippingZone{}, fmt.Errorf("%w: name is required", ErrShippingZoneInvalidInput)
	}
	if cmd.FlatRate < 0 {
		return ShippingZone{}, fmt.Errorf("%w: negative flat rate", ErrShippingZoneInvalidInput)
	}
	if cmd.FreeOverAmount != nil && *cmd.FreeOverAmount <= 0 {
		return ShippingZone{}, fmt.Errorf("%w: free-over amount must be positive", ErrShippingZoneInvalidInput)
	}

	prefixes := cleanStrings(cmd.PostalPrefixes, func(s string) string { return s })
	countries := cleanStrings(cmd.Countries, strings.ToUpper)
	if len(prefixes) == 0 && len(countries) == 0 && !cmd.IsDefault {
		return ShippingZone{}, fmt.Errorf("%w: zone needs postal prefixes, countries, or the default flag", ErrShippingZoneInvalidInput)
	}

	tiers := make([]WeightTier, 0, len(cmd.WeightTiers))
	for _, tier := range cmd.WeightTiers {
		if tier.MaxWeightGrams < 0 || tier.Surcharge < 0 {
			return ShippingZone{}, fmt.Errorf("%w: negative weight tier values", ErrShippingZoneInvalidInput)
		}
		tiers = append(tiers, tier)
	}
	sort.Slice(tiers, func(a, b int) bool { return tiers[a].MaxWeightGrams < tiers[b].MaxWeightGrams })

	return ShippingZone{
		ID:             strings.TrimSpace(cmd.ID),
		Name:           name,
		PostalPrefixes: prefixes,
		Countries:      countries,
		FlatRate:       cmd.FlatRate,
		WeightTiers:    tiers,
		FreeOverAmount: cmd.FreeOverAmount,
		VATExempt:      cmd.VATExempt,
		IsDefault:      cmd.IsDefault,
		Priority:       cmd.Priority,
	}, nil
}

func cleanStrings(in []string, transform func(string) string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, transform(trimmed))
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (s *shippingZoneAdminService) mapRepoError(err error) error {
	if repoErr, ok := err.(repositories.RepositoryError); ok && repoErr.IsNotFound() {
		return ErrShippingZoneNotFound
	}
	return err
}
