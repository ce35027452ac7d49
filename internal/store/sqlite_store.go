package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	serrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/jmoiron/sqlx"
)

// SqliteStore implements Store on an embedded SQLite database.
// The handle is expected to be limited to a single connection, which serializes transactions.
type SqliteStore struct {
	db *sqlx.DB
}

func NewSqliteStore(db *sqlx.DB) *SqliteStore {
	return &SqliteStore{db: db}
}

func (s *SqliteStore) FindByID(ctx context.Context, storeID string, id int64) (*Product, error) {
	return sqliteFindProduct(ctx, s.db, findProductByID, id, storeID)
}

func (s *SqliteStore) FindByCustomID(ctx context.Context, storeID, customID string) (*Product, error) {
	return sqliteFindProduct(ctx, s.db, findProductByCustomID, customID, storeID)
}

func (s *SqliteStore) FindAllByStore(ctx context.Context, storeID string) ([]Product, error) {
	products := []Product{}
	if err := s.db.SelectContext(ctx, &products, findProductsByStore, storeID); err != nil {
		return nil, fmt.Errorf("%w: %v", serrors.ErrFailedToListProducts, err)
	}
	return products, nil
}

func (s *SqliteStore) InTx(ctx context.Context, fn func(tx PurchaseTx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", serrors.ErrTransactionBegin, err)
	}

	err = fn(&sqliteTx{tx: tx})
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w: %v (after %v)", serrors.ErrTransactionRollback, rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", serrors.ErrTransactionCommit, err)
	}

	return nil
}

type sqliteTx struct {
	tx *sqlx.Tx
}

func (t *sqliteTx) FindProductByID(ctx context.Context, storeID string, id int64) (*Product, error) {
	return sqliteFindProduct(ctx, t.tx, findProductByID, id, storeID)
}

func (t *sqliteTx) FindProductByCustomID(ctx context.Context, storeID, customID string) (*Product, error) {
	return sqliteFindProduct(ctx, t.tx, findProductByCustomID, customID, storeID)
}

func (t *sqliteTx) UpsertCustomer(ctx context.Context, params UpsertCustomerParams) (int64, error) {
	query := upsertCustomerKeepName
	if params.UpdateName {
		query = upsertCustomerUpdateName
	}
	var id int64
	if err := t.tx.GetContext(ctx, &id, query, params.StoreID, params.Name, params.Phone); err != nil {
		return 0, fmt.Errorf("%w: %v", serrors.ErrUpsertCustomer, err)
	}
	return id, nil
}

func (t *sqliteTx) CreateAnonymousCustomer(ctx context.Context, storeID, name string) (int64, error) {
	var id int64
	if err := t.tx.GetContext(ctx, &id, createCustomer, storeID, name, AnonymousPhone); err != nil {
		return 0, fmt.Errorf("%w: %v", serrors.ErrCreateCustomer, err)
	}
	return id, nil
}

func (t *sqliteTx) DecrementStock(ctx context.Context, storeID string, productID int64, quantity int32) error {
	res, err := t.tx.ExecContext(ctx, decrementStock, quantity, productID, storeID, quantity)
	if err != nil {
		return fmt.Errorf("%w: %v", serrors.ErrDecrementStock, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", serrors.ErrDecrementStock, err)
	}
	if affected == 0 {
		return serrors.ErrInsufficientStock
	}
	return nil
}

func (t *sqliteTx) CreatePurchase(ctx context.Context, params CreatePurchaseParams) (int64, error) {
	var id int64
	err := t.tx.GetContext(ctx, &id, createPurchase,
		params.StoreID,
		params.CustomerID,
		params.ProductID,
		params.Quantity,
		params.TotalAmount.String(),
		params.TransactionID,
		params.PaymentMethod,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", serrors.ErrCreatePurchase, err)
	}
	return id, nil
}

func sqliteFindProduct(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) (*Product, error) {
	var product Product
	if err := sqlx.GetContext(ctx, q, &product, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, serrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("%w: %v", serrors.ErrFailedToFindProduct, err)
	}
	return &product, nil
}
