package services

import (
	"context"
	"log/slog"
	"strings"

	"order-ledger/internal/domain"
	"order-ledger/internal/repository"

	"github.com/shopspring/decimal"
)

type ProductService struct {
	repo repository.ProductRepository
}

func NewProductService(r repository.ProductRepository) *ProductService {
	return &ProductService{repo: r}
}

func (s *ProductService) Create(ctx context.Context, name, description string, price decimal.Decimal, stock int64) (*domain.Product, error) {
	p := &domain.Product{
		Name:          strings.TrimSpace(name),
		Description:   description,
		Price:         price,
		StockQuantity: stock,
		Active:        true,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, domain.WrapTx("create product", err)
	}
	slog.InfoContext(ctx, "product created", "product_id", p.ID, "stock", p.StockQuantity)
	return p, nil
}

func (s *ProductService) Get(ctx context.Context, id uint64) (*domain.Product, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, domain.WrapTx("get product", err)
	}
	if p == nil {
		return nil, domain.ErrProductNotFound
	}
	return p, nil
}

func (s *ProductService) List(ctx context.Context, includeInactive bool) ([]domain.Product, error) {
	products, err := s.repo.List(ctx, includeInactive)
	if err != nil {
		return nil, domain.WrapTx("list products", err)
	}
	return products, nil
}

// Update applies a partial update. An empty patch returns the product as is.
func (s *ProductService) Update(ctx context.Context, id uint64, patch domain.ProductPatch) (*domain.Product, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if patch.Empty() {
		return s.Get(ctx, id)
	}
	p, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, domain.WrapTx("update product", err)
	}
	slog.InfoContext(ctx, "product updated", "product_id", id)
	return p, nil
}

// Deactivate hides a product from the catalog and from checkout. Rows are
// never deleted because order items keep referring to them.
func (s *ProductService) Deactivate(ctx context.Context, id uint64) (*domain.Product, error) {
	inactive := false
	return s.Update(ctx, id, domain.ProductPatch{Active: &inactive})
}
