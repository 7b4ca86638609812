package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/arbona-turismo/storefront/internal/domain"
)

func newTestZoneAdmin(t *testing.T, repo *stubZoneRepository) ShippingZoneAdminService {
	t.Helper()
	svc, err := NewShippingZoneAdminService(ShippingZoneAdminServiceDeps{
		Zones: repo,
		NewID: func() string { return "zone-id" },
	})
	if err != nil {
		t.Fatalf("NewShippingZoneAdminService: %v", err)
	}
	return svc
}

func TestZoneAdminCreateSortsTiersAndCleansMatchers(t *testing.T) {
	repo := &stubZoneRepository{}
	svc := newTestZoneAdmin(t, repo)

	created, err := svc.Create(context.Background(), UpsertShippingZoneCommand{
		Name:           " Canarias ",
		PostalPrefixes: []string{" 35", "38 ", ""},
		Countries:      []string{"es ", ""},
		FlatRate:       1500,
		WeightTiers: []domain.WeightTier{
			{MaxWeightGrams: 5000, Surcharge: 400},
			{MaxWeightGrams: 2000, Surcharge: 200},
		},
		VATExempt: true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Name != "Canarias" || created.ID != "zone-id" {
		t.Fatalf("unexpected zone %+v", created)
	}
	if len(created.PostalPrefixes) != 2 || created.PostalPrefixes[0] != "35" {
		t.Fatalf("unexpected prefixes %v", created.PostalPrefixes)
	}
	if len(created.Countries) != 1 || created.Countries[0] != "ES" {
		t.Fatalf("unexpected countries %v", created.Countries)
	}
	if created.WeightTiers[0].MaxWeightGrams != 2000 || created.WeightTiers[1].MaxWeightGrams != 5000 {
		t.Fatalf("expected tiers sorted ascending, got %v", created.WeightTiers)
	}
}

func TestZoneAdminValidation(t *testing.T) {
	svc := newTestZoneAdmin(t, &stubZoneRepository{})
	negative := int64(-1)

	cases := []struct {
		name string
		cmd  UpsertShippingZoneCommand
	}{
		{name: "empty name", cmd: UpsertShippingZoneCommand{FlatRate: 100, IsDefault: true}},
		{name: "negative flat rate", cmd: UpsertShippingZoneCommand{Name: "X", FlatRate: -1, IsDefault: true}},
		{name: "no matchers", cmd: UpsertShippingZoneCommand{Name: "X", FlatRate: 100}},
		{name: "bad free-over", cmd: UpsertShippingZoneCommand{Name: "X", FlatRate: 100, IsDefault: true, FreeOverAmount: &negative}},
		{name: "negative tier", cmd: UpsertShippingZoneCommand{Name: "X", FlatRate: 100, IsDefault: true, WeightTiers: []domain.WeightTier{{MaxWeightGrams: -1}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), tc.cmd); !errors.Is(err, ErrShippingZoneInvalidInput) {
				t.Fatalf("expected ErrShippingZoneInvalidInput got %v", err)
			}
		})
	}
}

func TestZoneAdminNotFoundMapping(t *testing.T) {
	repo := &stubZoneRepository{err: errStubNotFound}
	svc := newTestZoneAdmin(t, repo)

	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, ErrShippingZoneNotFound) {
		t.Fatalf("expected ErrShippingZoneNotFound got %v", err)
	}
	if err := svc.Delete(context.Background(), "missing"); !errors.Is(err, ErrShippingZoneNotFound) {
		t.Fatalf("expected ErrShippingZoneNotFound on delete got %v", err)
	}
}
