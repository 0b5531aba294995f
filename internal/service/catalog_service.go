package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"recharge-store/internal/core/domain"
	"recharge-store/internal/core/ports"
	"recharge-store/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CatalogServiceImpl implements ports.CatalogService.
type CatalogServiceImpl struct {
	repo     ports.ProductRepository
	currency string
	log      zerolog.Logger
	now      func() time.Time
}

// NewCatalogService creates a new CatalogServiceImpl.
func NewCatalogService(repo ports.ProductRepository, currency string, log zerolog.Logger) *CatalogServiceImpl {
	return &CatalogServiceImpl{
		repo:     repo,
		currency: currency,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *CatalogServiceImpl) ListProducts(ctx context.Context, filter ports.ProductFilter) (*ports.ProductPage, error) {
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown category %q", filter.Category))
	}
	filter.Search = strings.TrimSpace(filter.Search)
	filter.PageRequest = filter.PageRequest.Normalize(defaultPageLimit, maxPageLimit)

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list products: %w", err))
	}
	return &ports.ProductPage{Items: items, Total: total, Page: filter.PageRequest}, nil
}

// GetProduct returns a product. Inactive products are hidden unless
// includeInactive is set.
func (s *CatalogServiceImpl) GetProduct(ctx context.Context, id uuid.UUID, includeInactive bool) (*domain.Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get product: %w", err))
	}
	if p == nil || (!includeInactive && !p.IsActive()) {
		return nil, apperror.ErrNotFound("product")
	}
	return p, nil
}

func (s *CatalogServiceImpl) CreateProduct(ctx context.Context, in ports.ProductInput) (*domain.Product, error) {
	if err := validateProductInput(in); err != nil {
		return nil, err
	}

	now := s.now()
	p := &domain.Product{ID: uuid.New(), CreatedAt: now}
	s.applyProductInput(p, in, now)

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create product: %w", err))
	}

	s.log.Info().Str("product_id", p.ID.String()).Str("name", p.Name).Msg("product created")
	return p, nil
}

func (s *CatalogServiceImpl) UpdateProduct(ctx context.Context, id uuid.UUID, in ports.ProductInput) (*domain.Product, error) {
	if err := validateProductInput(in); err != nil {
		return nil, err
	}

	p, err := s.GetProduct(ctx, id, true)
	if err != nil {
		return nil, err
	}

	s.applyProductInput(p, in, s.now())
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update product: %w", err))
	}
	return p, nil
}

// DeactivateProduct hides a product from the catalog. Orders keep referencing it.
func (s *CatalogServiceImpl) DeactivateProduct(ctx context.Context, id uuid.UUID) error {
	p, err := s.GetProduct(ctx, id, true)
	if err != nil {
		return err
	}
	if !p.IsActive() {
		return nil
	}

	p.Status = domain.ProductStatusInactive
	p.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, p); err != nil {
		return apperror.InternalError(fmt.Errorf("deactivate product: %w", err))
	}

	s.log.Info().Str("product_id", id.String()).Msg("product deactivated")
	return nil
}

func validateProductInput(in ports.ProductInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return apperror.Validation("name is required")
	}
	if !in.Category.Valid() {
		return apperror.Validation(fmt.Sprintf("unknown category %q", in.Category))
	}
	if !in.Price.IsPositive() {
		return apperror.Validation("price must be positive")
	}
	if in.Stock < 0 {
		return apperror.Validation("stock cannot be negative")
	}
	if in.Status != "" && in.Status != domain.ProductStatusActive && in.Status != domain.ProductStatusInactive {
		return apperror.Validation("status must be active or inactive")
	}
	return nil
}

func (s *CatalogServiceImpl) applyProductInput(p *domain.Product, in ports.ProductInput, now time.Time) {
	p.Name = strings.TrimSpace(in.Name)
	p.Description = strings.TrimSpace(in.Description)
	p.Category = in.Category
	p.GameName = strings.TrimSpace(in.GameName)
	p.GameID = strings.TrimSpace(in.GameID)
	p.Price = in.Price.Round(2)
	p.Currency = in.Currency
	if p.Currency == "" {
		p.Currency = s.currency
	}
	p.Stock = in.Stock
	p.Image = in.Image
	p.AutoDelivery = in.AutoDelivery
	p.DeliveryTime = in.DeliveryTime
	p.Status = in.Status
	if p.Status == "" {
		p.Status = domain.ProductStatusActive
	}
	p.UpdatedAt = now
}
