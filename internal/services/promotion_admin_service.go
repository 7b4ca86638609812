package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	"github.com/arbona-turismo/storefront/internal/repositories"
)

var (
	// ErrPromotionInvalidInput signals a malformed promotion payload.
	ErrPromotionInvalidInput = errors.New("promotion: invalid input")
	// ErrPromotionNotFound is returned when the referenced promotion does not exist.
	ErrPromotionNotFound = errors.New("promotion: not found")
)

// PromotionAdminServiceDeps bundles dependencies required to construct the promotion admin service.
type PromotionAdminServiceDeps struct {
	Promotions repositories.PromotionRepository
	Now        func() time.Time
	NewID      func() string
	Logger     func(context.Context, string, map[string]any)
}

type promotionAdminService struct {
	promotions  repositories.PromotionRepository
	now         func() time.Time
	newID       func() string
	logger      func(context.Context, string, map[string]any)
	htmlPolicy  *bluemonday.Policy
	titlePolicy *bluemonday.Policy
}

var _ PromotionAdminService = (*promotionAdminService)(nil)

// NewPromotionAdminService wires the promotion admin service. Descriptions may
// carry limited rich text for the storefront banner; titles are plain text.
func NewPromotionAdminService(deps PromotionAdminServiceDeps) (PromotionAdminService, error) {
	if deps.Promotions == nil {
		return nil, errors.New("promotion admin service: promotion repository is required")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	newID := deps.NewID
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	htmlPolicy := bluemonday.UGCPolicy()
	htmlPolicy.RequireNoFollowOnLinks(true)

	return &promotionAdminService{
		promotions: deps.Promotions,
		now: func() time.Time {
			return now().UTC()
		},
		newID:       newID,
		logger:      logger,
		htmlPolicy:  htmlPolicy,
		titlePolicy: bluemonday.StrictPolicy(),
	}, nil
}

func (s *promotionAdminService) Create(ctx context.Context, cmd UpsertPromotionCommand) (Promotion, error) {
	promotion, err := s.fromCommand(cmd)
	if err != nil {
		return Promotion{}, err
	}
	if promotion.ID == "" {
		promotion.ID = s.newID()
	}
	promotion.CreatedAt = s.now()
	promotion.UpdatedAt = promotion.CreatedAt

	created, err := s.promotions.Insert(ctx, promotion)
	if err != nil {
		return Promotion{}, err
	}
	s.logger(ctx, "promotion.created", map[string]any{"promotionId": created.ID})
	return created, nil
}

func (s *promotionAdminService) Update(ctx context.Context, cmd UpsertPromotionCommand) (Promotion, error) {
	if strings.TrimSpace(cmd.ID) == "" {
		return Promotion{}, fmt.Errorf("%w: promotion id is required", ErrPromotionInvalidInput)
	}
	promotion, err := s.fromCommand(cmd)
	if err != nil {
		return Promotion{}, err
	}
	promotion.UpdatedAt = s.now()

	updated, err := s.promotions.Update(ctx, promotion)
	if err != nil {
		return Promotion{}, s.mapRepoError(err)
	}
	s.logger(ctx, "promotion.updated", map[string]any{"promotionId": updated.ID})
	return updated, nil
}

func (s *promotionAdminService) Delete(ctx context.Context, promotionID string) error {
	if strings.TrimSpace(promotionID) == "" {
		return fmt.Errorf("%w: promotion id is required", ErrPromotionInvalidInput)
	}
	if err := s.promotions.Delete(ctx, promotionID); err != nil {
		return s.mapRepoError(err)
	}
	s.logger(ctx, "promotion.deleted", map[string]any{"promotionId": promotionID})
	return nil
}

func (s *promotionAdminService) Get(ctx context.Context, promotionID string) (Promotion, error) {
	if strings.TrimSpace(promotionID) == "" {
		return Promotion{}, fmt.Errorf("%w: promotion id is required", ErrPromotionInvalidInput)
	}
	promotion, err := s.promotions.FindByID(ctx, promotionID)
	if err != nil {
		return Promotion{}, s.mapRepoError(err)
	}
	return promotion, nil
}

func (s *promotionAdminService) List(ctx context.Context) ([]Promotion, error) {
	return s.promotions.List(ctx)
}

// Activate switches the promotion on, deactivating whichever promotion was active
// before. The repository performs the swap in one transaction.
func (s *promotionAdminService) Activate(ctx context.Context, promotionID string) (Promotion, error) {
	if strings.TrimSpace(promotionID) == "" {
		return Promotion{}, fmt.Errorf("%w: promotion id is required", ErrPromotionInvalidInput)
	}
	promotion, err := s.promotions.Activate(ctx, promotionID, s.now())
	if err != nil {
		return Promotion{}, s.mapRepoError(err)
	}
	s.logger(ctx, "promotion.activated", map[string]any{"promotionId": promotion.ID})
	return promotion, nil
}

func (s *promotionAdminService) Deactivate(ctx context.Context, promotionID string) (Promotion, error) {
	if strings.TrimSpace(promotionID) == "" {
		return Promotion{}, fmt.Errorf("%w: promotion id is required", ErrPromotionInvalidInput)
	}
	promotion, err := s.promotions.Deactivate(ctx, promotionID, s.now())
	if err != nil {
		return Promotion{}, s.mapRepoError(err)
	}
	s.logger(ctx, "promotion.deactivated", map[string]any{"promotionId": promotion.ID})
	return promotion, nil
}

// Active returns the currently active promotion, or nil when none is active.
func (s *promotionAdminService) Active(ctx context.Context) (*Promotion, error) {
	promotion, err := s.promotions.FindActive(ctx)
	if err != nil {
		if repoErr, ok := err.(repositories.RepositoryError); ok && repoErr.IsNotFound() {
			return nil, nil
		}
		return nil, err
	}
	return &promotion, nil
}

func (s *promotionAdminService) fromCommand(cmd UpsertPromotionCommand) (Promotion, error) {
	title := strings.TrimSpace(s.titlePolicy.Sanitize(cmd.Title))
	if title == "" {
		return Promotion{}, fmt.Errorf("%w: title is required", ErrPromotionInvalidInput)
	}
	if cmd.Percent < 1 || cmd.Percent > 100 {
		return Promotion{}, fmt.Errorf("%w: percent %d out of range 1..100", ErrPromotionInvalidInput, cmd.Percent)
	}
	return Promotion{
		ID:          strings.TrimSpace(cmd.ID),
		Title:       title,
		Percent:     cmd.Percent,
		Description: strings.TrimSpace(s.htmlPolicy.Sanitize(cmd.Description)),
	}, nil
}

func (s *promotionAdminService) mapRepoError(err error) error {
	if repoErr, ok := err.(repositories.RepositoryError); ok && repoErr.IsNotFound() {
		return ErrPromotionNotFound
	}
	return err
}
