package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/arbona-turismo/storefront/internal/domain"
	pfirestore "github.com/arbona-turismo/storefront/internal/platform/firestore"
	"github.com/arbona-turismo/storefront/internal/repositories"
)

const shippingZonesCollection = "shipping_zones"

type weightTierDocument struct {
	MaxWeightGrams int64 `firestore:"max_weight_grams"`
	Surcharge      int64 `firestore:"surcharge"`
}

type shippingZoneDocument struct {
	Name           string               `firestore:"name"`
	PostalPrefixes []string             `firestore:"postal_prefixes"`
	Countries      []string             `firestore:"countries"`
	FlatRate       int64                `firestore:"flat_rate"`
	WeightTiers    []weightTierDocument `firestore:"weight_tiers"`
	FreeOverAmount *int64               `firestore:"free_over_amount,omitempty"`
	VATExempt      bool                 `firestore:"vat_exempt"`
	IsDefault      bool                 `firestore:"is_default"`
	Priority       int64                `firestore:"priority"`
	UpdatedAt      time.Time            `firestore:"updated_at"`
}

func zoneToDocument(zone domain.ShippingZone) shippingZoneDocument {
	tiers := make([]weightTierDocument, 0, len(zone.WeightTiers))
	for _, tier := range zone.WeightTiers {
		tiers = append(tiers, weightTierDocument{
			MaxWeightGrams: tier.MaxWeightGrams,
			Surcharge:      tier.Surcharge,
		})
	}
	return shippingZoneDocument{
		Name:           zone.Name,
		PostalPrefixes: zone.PostalPrefixes,
		Countries:      zone.Countries,
		FlatRate:       zone.FlatRate,
		WeightTiers:    tiers,
		FreeOverAmount: zone.FreeOverAmount,
		VATExempt:      zone.VATExempt,
		IsDefault:      zone.IsDefault,
		Priority:       zone.Priority,
		UpdatedAt:      time.Now().UTC(),
	}
}

func (d shippingZoneDocument) toDomain(id string) domain.ShippingZone {
	tiers := make([]domain.WeightTier, 0, len(d.WeightTiers))
	for _, tier := range d.WeightTiers {
		tiers = append(tiers, domain.WeightTier{
			MaxWeightGrams: tier.MaxWeightGrams,
			Surcharge:      tier.Surcharge,
		})
	}
	return domain.ShippingZone{
		ID:             id,
		Name:           d.Name,
		PostalPrefixes: d.PostalPrefixes,
		Countries:      d.Countries,
		FlatRate:       d.FlatRate,
		WeightTiers:    tiers,
		FreeOverAmount: d.FreeOverAmount,
		VATExempt:      d.VATExempt,
		IsDefault:      d.IsDefault,
		Priority:       d.Priority,
	}
}

// ShippingZoneRepository implements repositories.ShippingZoneRepository backed by Firestore.
type ShippingZoneRepository struct {
	zones *pfirestore.BaseRepository[shippingZoneDocument]
}

var _ repositories.ShippingZoneRepository = (*ShippingZoneRepository)(nil)

// NewShippingZoneRepository constructs a Firestore-backed shipping zone repository.
func NewShippingZoneRepository(provider *pfirestore.Provider) (*ShippingZoneRepository, error) {
	if provider == nil {
		return nil, errors.New("shipping zone repository requires firestore provider")
	}
	return &ShippingZoneRepository{
		zones: pfirestore.NewBaseRepository[shippingZoneDocument](provider, shippingZonesCollection, nil, nil),
	}, nil
}

// Insert creates a new shipping zone document.
func (r *ShippingZoneRepository) Insert(ctx context.Context, zone domain.ShippingZone) (domain.ShippingZone, error) {
	id := strings.TrimSpace(zone.ID)
	if id == "" {
		return domain.ShippingZone{}, errors.New("shipping zone repository: zone id is required")
	}

	ref, err := r.zones.DocumentRef(ctx, id)
	if err != nil {
		return domain.ShippingZone{}, err
	}
	if _, err := ref.Create(ctx, zoneToDocument(zone)); err != nil {
		return domain.ShippingZone{}, pfirestore.WrapError("shipping_zones.insert", err)
	}
	return zone, nil
}

// Update overwrites an existing shipping zone document.
func (r *ShippingZoneRepository) Update(ctx context.Context, zone domain.ShippingZone) (domain.ShippingZone, error) {
	id := strings.TrimSpace(zone.ID)
	if id == "" {
		return domain.ShippingZone{}, errors.New("shipping zone repository: zone id is required")
	}

	if _, err := r.zones.Set(ctx, id, zoneToDocument(zone)); err != nil {
		return domain.ShippingZone{}, err
	}
	return zone, nil
}

// Delete removes a shipping zone.
func (r *ShippingZoneRepository) Delete(ctx context.Context, zoneID string) error {
	return r.zones.Delete(ctx, strings.TrimSpace(zoneID))
}

// FindByID loads a shipping zone by ID.
func (r *ShippingZoneRepository) FindByID(ctx context.Context, zoneID string) (domain.ShippingZone, error) {
	doc, err := r.zones.Get(ctx, strings.TrimSpace(zoneID))
	if err != nil {
		return domain.ShippingZone{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// List returns all shipping zones ordered by matching priority.
func (r *ShippingZoneRepository) List(ctx context.Context) ([]domain.ShippingZone, error) {
	docs, err := r.zones.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.OrderBy("priority", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	zones := make([]domain.ShippingZone, 0, len(docs))
	for _, doc := range docs {
		zones = append(zones, doc.Data.toDomain(doc.ID))
	}
	return zones, nil
}
