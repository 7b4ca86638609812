package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/arbona-turismo/storefront/internal/domain"
	pfirestore "github.com/arbona-turismo/storefront/internal/platform/firestore"
	"github.com/arbona-turismo/storefront/internal/repositories"
)

const promotionsCollection = "promotions"

type promotionDocument struct {
	Title       string    `firestore:"title"`
	Percent     int64     `firestore:"percent"`
	Description string    `firestore:"description"`
	Active      bool      `firestore:"active"`
	CreatedAt   time.Time `firestore:"created_at"`
	UpdatedAt   time.Time `firestore:"updated_at"`
}

func promotionToDocument(promotion domain.Promotion) promotionDocument {
	return promotionDocument{
		Title:       promotion.Title,
		Percent:     promotion.Percent,
		Description: promotion.Description,
		Active:      promotion.Active,
		CreatedAt:   promotion.CreatedAt,
		UpdatedAt:   promotion.UpdatedAt,
	}
}

func (d promotionDocument) toDomain(id string) domain.Promotion {
	return domain.Promotion{
		ID:          id,
		Title:       d.Title,
		Percent:     d.Percent,
		Description: d.Description,
		Active:      d.Active,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// PromotionRepository implements repositories.PromotionRepository backed by Firestore.
type PromotionRepository struct {
	provider   *pfirestore.Provider
	promotions *pfirestore.BaseRepository[promotionDocument]
}

var _ repositories.PromotionRepository = (*PromotionRepository)(nil)

// NewPromotionRepository constructs a Firestore-backed promotion repository.
func NewPromotionRepository(provider *pfirestore.Provider) (*PromotionRepository, error) {
	if provider == nil {
		return nil, errors.New("promotion repository requires firestore provider")
	}
	return &PromotionRepository{
		provider:   provider,
		promotions: pfirestore.NewBaseRepository[promotionDocument](provider, promotionsCollection, nil, nil),
	}, nil
}

// Insert creates a new promotion document.
func (r *PromotionRepository) Insert(ctx context.Context, promotion domain.Promotion) (domain.Promotion, error) {
	id := strings.TrimSpace(promotion.ID)
	if id == "" {
		return domain.Promotion{}, errors.New("promotion repository: promotion id is required")
	}

	ref, err := r.promotions.DocumentRef(ctx, id)
	if err != nil {
		return domain.Promotion{}, err
	}
	if _, err := ref.Create(ctx, promotionToDocument(promotion)); err != nil {
		return domain.Promotion{}, pfirestore.WrapError("promotions.insert", err)
	}
	return promotion, nil
}

// Update overwrites an existing promotion document.
func (r *PromotionRepository) Update(ctx context.Context, promotion domain.Promotion) (domain.Promotion, error) {
	id := strings.TrimSpace(promotion.ID)
	if id == "" {
		return domain.Promotion{}, errors.New("promotion repository: promotion id is required")
	}

	ref, err := r.promotions.DocumentRef(ctx, id)
	if err != nil {
		return domain.Promotion{}, err
	}
	if _, err := ref.Set(ctx, promotionToDocument(promotion), firestore.Merge(
		firestore.FieldPath{"title"},
		firestore.FieldPath{"percent"},
		firestore.FieldPath{"description"},
		firestore.FieldPath{"updated_at"},
	)); err != nil {
		return domain.Promotion{}, pfirestore.WrapError("promotions.update", err)
	}

	doc, err := r.promotions.Get(ctx, id)
	if err != nil {
		return domain.Promotion{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// Delete removes a promotion.
func (r *PromotionRepository) Delete(ctx context.Context, promotionID string) error {
	return r.promotions.Delete(ctx, strings.TrimSpace(promotionID))
}

// FindByID loads a promotion by ID.
func (r *PromotionRepository) FindByID(ctx context.Context, promotionID string) (domain.Promotion, error) {
	doc, err := r.promotions.Get(ctx, strings.TrimSpace(promotionID))
	if err != nil {
		return domain.Promotion{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// FindActive returns the currently active promotion. A not-found classified error is
// returned when no promotion is active.
func (r *PromotionRepository) FindActive(ctx context.Context) (domain.Promotion, error) {
	docs, err := r.promotions.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("active", "==", true).Limit(1)
	})
	if err != nil {
		return domain.Promotion{}, err
	}
	if len(docs) == 0 {
		return domain.Promotion{}, pfirestore.WrapError("promotions.find_active", status.Error(codes.NotFound, "no active promotion"))
	}
	return docs[0].Data.toDomain(docs[0].ID), nil
}

// List returns all promotions ordered by creation time, newest first.
func (r *PromotionRepository) List(ctx context.Context) ([]domain.Promotion, error) {
	docs, err := r.promotions.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.OrderBy("created_at", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	promotions := make([]domain.Promotion, 0, len(docs))
	for _, doc := range docs {
		promotions = append(promotions, doc.Data.toDomain(doc.ID))
	}
	return promotions, nil
}

// Activate marks the promotion active and deactivates every other promotion in the same
// transaction, so at most one promotion is active regardless of concurrent activations.
func (r *PromotionRepository) Activate(ctx context.Context, promotionID string, now time.Time) (domain.Promotion, error) {
	id := strings.TrimSpace(promotionID)
	if id == "" {
		return domain.Promotion{}, errors.New("promotion repository: promotion id is required")
	}
	now = now.UTC()

	var activated domain.Promotion
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		client, err := r.provider.Client(ctx)
		if err != nil {
			return err
		}
		coll := client.Collection(promotionsCollection)

		targetRef := coll.Doc(id)
		targetSnap, err := tx.Get(targetRef)
		if err != nil {
			return err
		}
		var target promotionDocument
		if err := targetSnap.DataTo(&target); err != nil {
			return fmt.Errorf("firestore promotions decode %s: %w", id, err)
		}

		activeSnaps, err := tx.Documents(coll.Where("active", "==", true)).GetAll()
		if err != nil {
			return err
		}

		for _, snap := range activeSnaps {
			if snap.Ref.ID == id {
				continue
			}
			if err := tx.Update(snap.Ref, []firestore.Update{
				{Path: "active", Value: false},
				{Path: "updated_at", Value: now},
			}); err != nil {
				return err
			}
		}

		target.Active = true
		target.UpdatedAt = now
		if err := tx.Set(targetRef, target); err != nil {
			return err
		}
		activated = target.toDomain(id)
		return nil
	})
	if err != nil {
		return domain.Promotion{}, pfirestore.WrapError("promotions.activate", err)
	}
	return activated, nil
}

// Deactivate clears the active flag on the promotion.
func (r *PromotionRepository) Deactivate(ctx context.Context, promotionID string, now time.Time) (domain.Promotion, error) {
	id := strings.TrimSpace(promotionID)
	if id == "" {
		return domain.Promotion{}, errors.New("promotion repository: promotion id is required")
	}
	now = now.UTC()

	var deactivated domain.Promotion
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.promotions.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc promotionDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("firestore promotions decode %s: %w", id, err)
		}

		doc.Active = false
		doc.UpdatedAt = now
		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		deactivated = doc.toDomain(id)
		return nil
	})
	if err != nil {
		return domain.Promotion{}, pfirestore.WrapError("promotions.deactivate", err)
	}
	return deactivated, nil
}
