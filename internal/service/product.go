// Package service provides the storefront business logic: product lookups and purchases.
package service

import (
	"context"
	"fmt"

	"github.com/abgdnv/storefront/internal/store"
)

const (
	StatusAvailable = "available"
	StatusSold      = "sold"
)

// ProductService defines the read operations on a store's catalog.
type ProductService interface {
	// FindByID retrieves a single product by its internal id.
	// Returns ErrProductNotFound if the store has no such product.
	FindByID(ctx context.Context, storeID string, id int64) (*ProductDto, error)

	// FindByCustomID retrieves a single product by its external id.
	// Returns ErrProductNotFound if the store has no such product.
	FindByCustomID(ctx context.Context, storeID, customID string) (*ProductDto, error)

	// FindAllByStore returns every product of the store, highest id first.
	// Returns an empty slice if the store has no products.
	FindAllByStore(ctx context.Context, storeID string) ([]ProductDto, error)
}

// ProductDto is a product as exposed to storefront clients.
type ProductDto struct {
	ID       int64   `json:"id"`
	StoreID  string  `json:"store_id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	CustomID *string `json:"custom_id"`
	Price    float64 `json:"price"`
	Stock    int32   `json:"stock"`
	Status   string  `json:"status"`
}

// Products implements ProductService.
type Products struct {
	store store.ProductStore
}

func NewProductService(productStore store.ProductStore) *Products {
	return &Products{store: productStore}
}

func (s *Products) FindByID(ctx context.Context, storeID string, id int64) (*ProductDto, error) {
	product, err := s.store.FindByID(ctx, storeID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch product %d of store %s: %w", id, storeID, err)
	}
	return toProductDto(product), nil
}

func (s *Products) FindByCustomID(ctx context.Context, storeID, customID string) (*ProductDto, error) {
	product, err := s.store.FindByCustomID(ctx, storeID, customID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch product %q of store %s: %w", customID, storeID, err)
	}
	return toProductDto(product), nil
}

func (s *Products) FindAllByStore(ctx context.Context, storeID string) ([]ProductDto, error) {
	products, err := s.store.FindAllByStore(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products of store %s: %w", storeID, err)
	}
	productDTOs := make([]ProductDto, len(products))
	for i := range products {
		productDTOs[i] = *toProductDto(&products[i])
	}
	return productDTOs, nil
}

func toProductDto(p *store.Product) *ProductDto {
	return &ProductDto{
		ID:       p.ID,
		StoreID:  p.StoreID,
		Name:     p.Name,
		Category: p.Category,
		CustomID: p.CustomID,
		Price:    p.Price.InexactFloat64(),
		Stock:    p.Stock,
		Status:   stockStatus(p.Stock),
	}
}

func stockStatus(stock int32) string {
	if stock > 0 {
		return StatusAvailable
	}
	return StatusSold
}
