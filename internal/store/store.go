// Package store provides the persistence layer for products, customers and purchases.
package store

import (
	"context"

	"github.com/shopspring/decimal"
)

// AnonymousPhone marks customers that bought without leaving a phone number.
// Such customers are never matched by UpsertCustomer.
const AnonymousPhone = "anonymous"

// Product is a catalog row with category and stock already defaulted.
type Product struct {
	ID       int64           `db:"id"`
	StoreID  string          `db:"store_id"`
	Name     string          `db:"name"`
	Category string          `db:"category"`
	CustomID *string         `db:"custom_id"`
	Price    decimal.Decimal `db:"price"`
	Stock    int32           `db:"stock"`
}

// UpsertCustomerParams identifies a customer by (StoreID, Phone).
// Name is stored on insert; on conflict it replaces the stored name only when UpdateName is set.
type UpsertCustomerParams struct {
	StoreID    string
	Phone      string
	Name       string
	UpdateName bool
}

type CreatePurchaseParams struct {
	StoreID       string
	CustomerID    int64
	ProductID     int64
	Quantity      int32
	TotalAmount   decimal.Decimal
	TransactionID *string
	PaymentMethod *string
}

// ProductStore is the read side of the catalog.
type ProductStore interface {
	// FindByID returns the product with the internal id in the store.
	// Returns ErrProductNotFound if there is none.
	FindByID(ctx context.Context, storeID string, id int64) (*Product, error)

	// FindByCustomID returns the product with the external id in the store.
	// Returns ErrProductNotFound if there is none.
	FindByCustomID(ctx context.Context, storeID, customID string) (*Product, error)

	// FindAllByStore returns every product of the store, newest (highest id) first.
	FindAllByStore(ctx context.Context, storeID string) ([]Product, error)
}

// PurchaseStore runs purchase workflows atomically.
type PurchaseStore interface {
	// InTx runs fn in a single transaction. The transaction commits when fn returns nil
	// and rolls back otherwise; fn's error is returned unchanged.
	InTx(ctx context.Context, fn func(tx PurchaseTx) error) error
}

// PurchaseTx is the set of operations available inside a purchase transaction.
type PurchaseTx interface {
	FindProductByID(ctx context.Context, storeID string, id int64) (*Product, error)
	FindProductByCustomID(ctx context.Context, storeID, customID string) (*Product, error)

	// UpsertCustomer inserts or updates the customer keyed by (store, phone) and returns its id.
	UpsertCustomer(ctx context.Context, params UpsertCustomerParams) (int64, error)

	// CreateAnonymousCustomer always inserts a new customer with AnonymousPhone.
	CreateAnonymousCustomer(ctx context.Context, storeID, name string) (int64, error)

	// DecrementStock subtracts quantity if the current stock covers it.
	// Returns ErrInsufficientStock when it does not, leaving the row untouched.
	DecrementStock(ctx context.Context, storeID string, productID int64, quantity int32) error

	// CreatePurchase records one purchased line and returns its id.
	CreatePurchase(ctx context.Context, params CreatePurchaseParams) (int64, error)
}

// Store is implemented by every database backend.
type Store interface {
	ProductStore
	PurchaseStore
}
