package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/arbona-turismo/storefront/internal/domain"
	pfirestore "github.com/arbona-turismo/storefront/internal/platform/firestore"
	"github.com/arbona-turismo/storefront/internal/repositories"
)

const couponsCollection = "coupons"

type couponDocument struct {
	Code         string     `firestore:"code"`
	DiscountType string     `firestore:"discount_type"`
	Value        int64      `firestore:"value"`
	Active       bool       `firestore:"active"`
	StartsAt     *time.Time `firestore:"starts_at,omitempty"`
	EndsAt       *time.Time `firestore:"ends_at,omitempty"`
	MinAmount    *int64     `firestore:"min_amount,omitempty"`
	UsageLimit   *int64     `firestore:"usage_limit,omitempty"`
	UsedCount    int64      `firestore:"used_count"`
	CreatedAt    time.Time  `firestore:"created_at"`
	UpdatedAt    time.Time  `firestore:"updated_at"`
}

func couponToDocument(coupon domain.Coupon) couponDocument {
	return couponDocument{
		Code:         domain.NormalizeCouponCode(coupon.Code),
		DiscountType: string(coupon.DiscountType),
		Value:        coupon.Value,
		Active:       coupon.Active,
		StartsAt:     coupon.StartsAt,
		EndsAt:       coupon.EndsAt,
		MinAmount:    coupon.MinAmount,
		UsageLimit:   coupon.UsageLimit,
		UsedCount:    coupon.UsedCount,
		CreatedAt:    coupon.CreatedAt,
		UpdatedAt:    coupon.UpdatedAt,
	}
}

func (d couponDocument) toDomain(id string) domain.Coupon {
	return domain.Coupon{
		ID:           id,
		Code:         d.Code,
		DiscountType: domain.DiscountType(d.DiscountType),
		Value:        d.Value,
		Active:       d.Active,
		StartsAt:     d.StartsAt,
		EndsAt:       d.EndsAt,
		MinAmount:    d.MinAmount,
		UsageLimit:   d.UsageLimit,
		UsedCount:    d.UsedCount,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// CouponRepository implements repositories.CouponRepository backed by Firestore.
type CouponRepository struct {
	provider *pfirestore.Provider
	coupons  *pfirestore.BaseRepository[couponDocument]
}

var _ repositories.CouponRepository = (*CouponRepository)(nil)

// NewCouponRepository constructs a Firestore-backed coupon repository.
func NewCouponRepository(provider *pfirestore.Provider) (*CouponRepository, error) {
	if provider == nil {
		return nil, errors.New("coupon repository requires firestore provider")
	}
	return &CouponRepository{
		provider: provider,
		coupons:  pfirestore.NewBaseRepository[couponDocument](provider, couponsCollection, nil, nil),
	}, nil
}

// Insert creates a new coupon document.
func (r *CouponRepository) Insert(ctx context.Context, coupon domain.Coupon) (domain.Coupon, error) {
	id := strings.TrimSpace(coupon.ID)
	if id == "" {
		return domain.Coupon{}, errors.New("coupon repository: coupon id is required")
	}

	ref, err := r.coupons.DocumentRef(ctx, id)
	if err != nil {
		return domain.Coupon{}, err
	}
	doc := couponToDocument(coupon)
	if _, err := ref.Create(ctx, doc); err != nil {
		return domain.Coupon{}, pfirestore.WrapError("coupons.insert", err)
	}
	return doc.toDomain(id), nil
}

// Update overwrites the mutable fields of a coupon, preserving the usage count.
func (r *CouponRepository) Update(ctx context.Context, coupon domain.Coupon) (domain.Coupon, error) {
	id := strings.TrimSpace(coupon.ID)
	if id == "" {
		return domain.Coupon{}, errors.New("coupon repository: coupon id is required")
	}

	doc := couponToDocument(coupon)
	updates := []firestore.Update{
		{Path: "code", Value: doc.Code},
		{Path: "discount_type", Value: doc.DiscountType},
		{Path: "value", Value: doc.Value},
		{Path: "active", Value: doc.Active},
		{Path: "starts_at", Value: doc.StartsAt},
		{Path: "ends_at", Value: doc.EndsAt},
		{Path: "min_amount", Value: doc.MinAmount},
		{Path: "usage_limit", Value: doc.UsageLimit},
		{Path: "updated_at", Value: doc.UpdatedAt},
	}
	if _, err := r.coupons.Update(ctx, id, updates); err != nil {
		return domain.Coupon{}, err
	}

	stored, err := r.coupons.Get(ctx, id)
	if err != nil {
		return domain.Coupon{}, err
	}
	return stored.Data.toDomain(stored.ID), nil
}

// Delete removes a coupon.
func (r *CouponRepository) Delete(ctx context.Context, couponID string) error {
	return r.coupons.Delete(ctx, strings.TrimSpace(couponID))
}

// FindByID loads a coupon by document ID.
func (r *CouponRepository) FindByID(ctx context.Context, couponID string) (domain.Coupon, error) {
	doc, err := r.coupons.Get(ctx, strings.TrimSpace(couponID))
	if err != nil {
		return domain.Coupon{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// FindByCode loads a coupon by its normalised code, joining an ambient transaction when present.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (domain.Coupon, error) {
	normalized := domain.NormalizeCouponCode(code)
	if normalized == "" {
		return domain.Coupon{}, errors.New("coupon repository: coupon code is required")
	}

	if tx, ok := pfirestore.TxFromContext(ctx); ok {
		client, err := r.provider.Client(ctx)
		if err != nil {
			return domain.Coupon{}, err
		}
		query := client.Collection(couponsCollection).Where("code", "==", normalized).Limit(1)
		snaps, err := tx.Documents(query).GetAll()
		if err != nil {
			return domain.Coupon{}, pfirestore.WrapError("coupons.find_by_code", err)
		}
		if len(snaps) == 0 {
			return domain.Coupon{}, notFoundError("coupons.find_by_code", fmt.Sprintf("coupon %s not found", normalized))
		}
		var doc couponDocument
		if err := snaps[0].DataTo(&doc); err != nil {
			return domain.Coupon{}, fmt.Errorf("firestore coupons decode %s: %w", snaps[0].Ref.ID, err)
		}
		return doc.toDomain(snaps[0].Ref.ID), nil
	}

	docs, err := r.coupons.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("code", "==", normalized).Limit(1)
	})
	if err != nil {
		return domain.Coupon{}, err
	}
	if len(docs) == 0 {
		return domain.Coupon{}, notFoundError("coupons.find_by_code", fmt.Sprintf("coupon %s not found", normalized))
	}
	return docs[0].Data.toDomain(docs[0].ID), nil
}

// List returns all coupons ordered by creation time, newest first.
func (r *CouponRepository) List(ctx context.Context) ([]domain.Coupon, error) {
	docs, err := r.coupons.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.OrderBy("created_at", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	coupons := make([]domain.Coupon, 0, len(docs))
	for _, doc := range docs {
		coupons = append(coupons, doc.Data.toDomain(doc.ID))
	}
	return coupons, nil
}

// Redeem increments the coupon usage count under its usage limit. Inside an ambient
// transaction the caller must have read the coupon in the same transaction; serialisable
// isolation then makes the increment equivalent to a compare-and-swap. Standalone calls
// run their own transaction with an explicit read-check-write cycle.
func (r *CouponRepository) Redeem(ctx context.Context, couponID string, now time.Time) (domain.Coupon, error) {
	id := strings.TrimSpace(couponID)
	if id == "" {
		return domain.Coupon{}, repositories.NewCouponError(repositories.CouponErrorInvalidInput, "coupon id is required", nil)
	}
	now = now.UTC()

	if tx, ok := pfirestore.TxFromContext(ctx); ok {
		ref, err := r.coupons.DocumentRef(ctx, id)
		if err != nil {
			return domain.Coupon{}, err
		}
		if err := tx.Update(ref, []firestore.Update{
			{Path: "used_count", Value: firestore.Increment(1)},
			{Path: "updated_at", Value: now},
		}); err != nil {
			return domain.Coupon{}, pfirestore.WrapError("coupons.redeem", err)
		}
		return domain.Coupon{ID: id}, nil
	}

	var redeemed domain.Coupon
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.coupons.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc couponDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("firestore coupons decode %s: %w", id, err)
		}

		if !doc.Active {
			return repositories.NewCouponError(repositories.CouponErrorInactive, fmt.Sprintf("coupon %s is inactive", doc.Code), nil)
		}
		if doc.UsageLimit != nil && doc.UsedCount >= *doc.UsageLimit {
			return repositories.NewCouponError(repositories.CouponErrorExhausted, fmt.Sprintf("coupon %s reached usage limit %d", doc.Code, *doc.UsageLimit), nil)
		}

		doc.UsedCount++
		doc.UpdatedAt = now
		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		redeemed = doc.toDomain(id)
		return nil
	})
	if err != nil {
		var couponErr *repositories.CouponError
		if errors.As(err, &couponErr) {
			return domain.Coupon{}, couponErr
		}
		return domain.Coupon{}, pfirestore.WrapError("coupons.redeem", err)
	}
	return redeemed, nil
}
