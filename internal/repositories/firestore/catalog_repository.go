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

const productsCollection = "products"

type productDocument struct {
	Name          string    `firestore:"name"`
	BasePrice     int64     `firestore:"base_price"`
	DiscountType  string    `firestore:"discount_type"`
	DiscountValue int64     `firestore:"discount_value"`
	VATPercent    int64     `firestore:"vat_percent"`
	WeightGrams   int64     `firestore:"weight_grams"`
	StockQty      int64     `firestore:"stock_qty"`
	UpdatedAt     time.Time `firestore:"updated_at"`
}

func (d productDocument) toDomain(id string) domain.Product {
	product := domain.Product{
		ID:          id,
		Name:        d.Name,
		BasePrice:   d.BasePrice,
		VATPercent:  d.VATPercent,
		WeightGrams: d.WeightGrams,
		StockQty:    d.StockQty,
	}
	if d.DiscountType != "" {
		product.OwnDiscount = &domain.Discount{
			Type:  domain.DiscountType(d.DiscountType),
			Value: d.DiscountValue,
		}
	}
	return product
}

// CatalogRepository implements repositories.CatalogRepository backed by Firestore.
type CatalogRepository struct {
	provider *pfirestore.Provider
	products *pfirestore.BaseRepository[productDocument]
}

var _ repositories.CatalogRepository = (*CatalogRepository)(nil)

// NewCatalogRepository constructs a Firestore-backed catalog repository.
func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	return &CatalogRepository{
		provider: provider,
		products: pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil, nil),
	}, nil
}

// FindByID loads a single product, joining an ambient transaction when present.
func (r *CatalogRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	id := strings.TrimSpace(productID)
	if id == "" {
		return domain.Product{}, errors.New("catalog repository: product id is required")
	}

	if tx, ok := pfirestore.TxFromContext(ctx); ok {
		ref, err := r.products.DocumentRef(ctx, id)
		if err != nil {
			return domain.Product{}, err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return domain.Product{}, pfirestore.WrapError("products.get", err)
		}
		var doc productDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.Product{}, fmt.Errorf("firestore products decode %s: %w", id, err)
		}
		return doc.toDomain(id), nil
	}

	doc, err := r.products.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// FindByIDs loads the requested products keyed by ID. Missing products are simply absent
// from the result so callers can report which cart lines reference unknown items.
func (r *CatalogRepository) FindByIDs(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(productIDs))
	seen := make(map[string]struct{}, len(productIDs))

	for _, productID := range productIDs {
		id := strings.TrimSpace(productID)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		product, err := r.FindByID(ctx, id)
		if err != nil {
			var repoErr repositories.RepositoryError
			if errors.As(err, &repoErr) && repoErr.IsNotFound() {
				continue
			}
			return nil, err
		}
		result[id] = product
	}
	return result, nil
}

// List returns catalog products, optionally restricted to items in stock.
func (r *CatalogRepository) List(ctx context.Context, filter repositories.CatalogListFilter) ([]domain.Product, error) {
	docs, err := r.products.Query(ctx, func(query firestore.Query) firestore.Query {
		query = query.OrderBy("name", firestore.Asc)
		if filter.InStockOnly {
			query = query.Where("stock_qty", ">", 0).OrderBy("stock_qty", firestore.Asc)
		}
		if filter.Limit > 0 {
			query = query.Limit(filter.Limit)
		}
		return query
	})
	if err != nil {
		return nil, err
	}

	products := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		products = append(products, doc.Data.toDomain(doc.ID))
	}
	return products, nil
}

// DecrementStock reduces the stock quantity of a product. Inside an ambient transaction
// the write is blind; the caller is expected to have validated stock in its read phase,
// and serialisable isolation guarantees consistency. Standalone calls read and check first.
func (r *CatalogRepository) DecrementStock(ctx context.Context, productID string, quantity int64) error {
	id := strings.TrimSpace(productID)
	if id == "" {
		return errors.New("catalog repository: product id is required")
	}
	if quantity <= 0 {
		return fmt.Errorf("catalog repository: quantity must be positive, got %d", quantity)
	}

	updates := []firestore.Update{
		{Path: "stock_qty", Value: firestore.Increment(-quantity)},
		{Path: "updated_at", Value: time.Now().UTC()},
	}

	if tx, ok := pfirestore.TxFromContext(ctx); ok {
		ref, err := r.products.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.Update(ref, updates); err != nil {
			return pfirestore.WrapError("products.decrement_stock", err)
		}
		return nil
	}

	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.products.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc productDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("firestore products decode %s: %w", id, err)
		}
		if doc.StockQty < quantity {
			return status.Errorf(codes.FailedPrecondition, "insufficient stock for product %s: have %d, want %d", id, doc.StockQty, quantity)
		}
		return tx.Update(ref, updates)
	})
}
