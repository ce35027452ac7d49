package store

import (
	"context"
	"errors"
	"fmt"

	serrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
)

var (
	pgFindProductByID          = sqlx.Rebind(sqlx.DOLLAR, findProductByID)
	pgFindProductByCustomID    = sqlx.Rebind(sqlx.DOLLAR, findProductByCustomID)
	pgFindProductsByStore      = sqlx.Rebind(sqlx.DOLLAR, findProductsByStore)
	pgUpsertCustomerUpdateName = sqlx.Rebind(sqlx.DOLLAR, upsertCustomerUpdateName)
	pgUpsertCustomerKeepName   = sqlx.Rebind(sqlx.DOLLAR, upsertCustomerKeepName)
	pgCreateCustomer           = sqlx.Rebind(sqlx.DOLLAR, createCustomer)
	pgDecrementStock           = sqlx.Rebind(sqlx.DOLLAR, decrementStock)
	pgCreatePurchase           = sqlx.Rebind(sqlx.DOLLAR, createPurchase)
)

// pgQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PgStore implements Store using PostgreSQL as the data store.
type PgStore struct {
	db *pgxpool.Pool
}

// NewPgStore creates a new instance of Store using a PostgreSQL connection pool.
func NewPgStore(dbp *pgxpool.Pool) *PgStore {
	return &PgStore{db: dbp}
}

// FindByID retrieves a product by its id within the store.
// Returns ErrProductNotFound if no product exists with the given ID.
func (p *PgStore) FindByID(ctx context.Context, storeID string, id int64) (*Product, error) {
	return pgFindProduct(ctx, p.db, pgFindProductByID, id, storeID)
}

// FindByCustomID retrieves a product by its external id within the store.
// Returns ErrProductNotFound if no product exists with the given custom ID.
func (p *PgStore) FindByCustomID(ctx context.Context, storeID, customID string) (*Product, error) {
	return pgFindProduct(ctx, p.db, pgFindProductByCustomID, customID, storeID)
}

// FindAllByStore retrieves all products of the store.
// It returns a slice of products, which may be empty if the store has none.
func (p *PgStore) FindAllByStore(ctx context.Context, storeID string) ([]Product, error) {
	rows, err := p.db.Query(ctx, pgFindProductsByStore, storeID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", serrors.ErrFailedToListProducts, err)
	}
	products, err := pgx.CollectRows(rows, pgx.RowToStructByName[Product])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", serrors.ErrFailedToListProducts, err)
	}
	return products, nil
}

func (p *PgStore) InTx(ctx context.Context, fn func(tx PurchaseTx) error) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", serrors.ErrTransactionBegin, err)
	}

	err = fn(&pgTx{tx: tx})
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("%w: %v (after %v)", serrors.ErrTransactionRollback, rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %v", serrors.ErrTransactionCommit, err)
	}

	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) FindProductByID(ctx context.Context, storeID string, id int64) (*Product, error) {
	return pgFindProduct(ctx, t.tx, pgFindProductByID, id, storeID)
}

func (t *pgTx) FindProductByCustomID(ctx context.Context, storeID, customID string) (*Product, error) {
	return pgFindProduct(ctx, t.tx, pgFindProductByCustomID, customID, storeID)
}

func (t *pgTx) UpsertCustomer(ctx context.Context, params UpsertCustomerParams) (int64, error) {
	query := pgUpsertCustomerKeepName
	if params.UpdateName {
		query = pgUpsertCustomerUpdateName
	}
	var id int64
	if err := t.tx.QueryRow(ctx, query, params.StoreID, params.Name, params.Phone).Scan(&id); err != nil {
		return 0, fmt.Errorf("%w: %v", serrors.ErrUpsertCustomer, err)
	}
	return id, nil
}

func (t *pgTx) CreateAnonymousCustomer(ctx context.Context, storeID, name string) (int64, error) {
	var id int64
	if err := t.tx.QueryRow(ctx, pgCreateCustomer, storeID, name, AnonymousPhone).Scan(&id); err != nil {
		return 0, fmt.Errorf("%w: %v", serrors.ErrCreateCustomer, err)
	}
	return id, nil
}

func (t *pgTx) DecrementStock(ctx context.Context, storeID string, productID int64, quantity int32) error {
	tag, err := t.tx.Exec(ctx, pgDecrementStock, quantity, productID, storeID, quantity)
	if err != nil {
		return fmt.Errorf("%w: %v", serrors.ErrDecrementStock, err)
	}
	if tag.RowsAffected() == 0 {
		return serrors.ErrInsufficientStock
	}
	return nil
}

func (t *pgTx) CreatePurchase(ctx context.Context, params CreatePurchaseParams) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, pgCreatePurchase,
		params.StoreID,
		params.CustomerID,
		params.ProductID,
		params.Quantity,
		params.TotalAmount.String(),
		params.TransactionID,
		params.PaymentMethod,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", serrors.ErrCreatePurchase, err)
	}
	return id, nil
}

func pgFindProduct(ctx context.Context, q pgQuerier, query string, args ...any) (*Product, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", serrors.ErrFailedToFindProduct, err)
	}
	product, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[Product])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, serrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("%w: %v", serrors.ErrFailedToFindProduct, err)
	}
	return product, nil
}
