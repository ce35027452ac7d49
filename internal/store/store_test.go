package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	serrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/abgdnv/storefront/pkg/bootstrap"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// storeSuite holds the behaviour every Store backend must share.
// Backends embed it and provide the store plus a raw SQL helper ('?' placeholders).
type storeSuite struct {
	suite.Suite
	ctx      context.Context
	store    Store
	queryInt func(query string, args ...any) int64
}

type testProduct struct {
	storeID  string
	name     string
	category *string
	customID *string
	price    string
	stock    *int32
}

func ptr[T any](v T) *T {
	return &v
}

func (s *storeSuite) insertProduct(p testProduct) int64 {
	s.T().Helper()
	return s.queryInt(
		"INSERT INTO products (store_id, name, category, custom_id, price, stock) VALUES (?, ?, ?, ?, ?, ?) RETURNING id",
		p.storeID, p.name, p.category, p.customID, p.price, p.stock,
	)
}

func (s *storeSuite) stockOf(id int64) int64 {
	s.T().Helper()
	return s.queryInt("SELECT coalesce(stock, 1) FROM products WHERE id = ?", id)
}

func (s *storeSuite) TestFindByID_AppliesDefaults() {
	// given
	id := s.insertProduct(testProduct{storeID: "s1", name: "Mug", price: "10.50"})

	// when
	product, err := s.store.FindByID(s.ctx, "s1", id)

	// then
	require.NoError(s.T(), err)
	assert.Equal(s.T(), id, product.ID)
	assert.Equal(s.T(), "s1", product.StoreID)
	assert.Equal(s.T(), "Mug", product.Name)
	assert.Equal(s.T(), "General", product.Category)
	assert.Nil(s.T(), product.CustomID)
	assert.True(s.T(), decimal.RequireFromString("10.50").Equal(product.Price), "price %s", product.Price)
	assert.Equal(s.T(), int32(1), product.Stock)
}

func (s *storeSuite) TestFindByID_ScopedToStore() {
	// given
	id := s.insertProduct(testProduct{storeID: "s1", name: "Mug", price: "1", stock: ptr(int32(3))})

	// when
	_, err := s.store.FindByID(s.ctx, "s2", id)

	// then
	require.ErrorIs(s.T(), err, serrors.ErrProductNotFound)
}

func (s *storeSuite) TestFindByCustomID() {
	// given
	s.insertProduct(testProduct{storeID: "s1", name: "Mug", category: ptr("Kitchen"), customID: ptr("SKU-1"), price: "4.99", stock: ptr(int32(0))})
	s.insertProduct(testProduct{storeID: "s2", name: "Cup", customID: ptr("SKU-1"), price: "2", stock: ptr(int32(7))})

	// when
	product, err := s.store.FindByCustomID(s.ctx, "s1", "SKU-1")

	// then
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "Mug", product.Name)
	assert.Equal(s.T(), "Kitchen", product.Category)
	require.NotNil(s.T(), product.CustomID)
	assert.Equal(s.T(), "SKU-1", *product.CustomID)
	assert.Equal(s.T(), int32(0), product.Stock)

	_, err = s.store.FindByCustomID(s.ctx, "s1", "SKU-2")
	require.ErrorIs(s.T(), err, serrors.ErrProductNotFound)
}

func (s *storeSuite) TestFindAllByStore() {
	// given
	first := s.insertProduct(testProduct{storeID: "s1", name: "A", price: "1", stock: ptr(int32(1))})
	s.insertProduct(testProduct{storeID: "s2", name: "B", price: "1", stock: ptr(int32(1))})
	third := s.insertProduct(testProduct{storeID: "s1", name: "C", price: "1", stock: ptr(int32(1))})

	// when
	products, err := s.store.FindAllByStore(s.ctx, "s1")

	// then
	require.NoError(s.T(), err)
	require.Len(s.T(), products, 2)
	assert.Equal(s.T(), third, products[0].ID)
	assert.Equal(s.T(), first, products[1].ID)

	empty, err := s.store.FindAllByStore(s.ctx, "unknown")
	require.NoError(s.T(), err)
	assert.Empty(s.T(), empty)
}

func (s *storeSuite) TestInTx_CommitsPurchase() {
	// given
	productID := s.insertProduct(testProduct{storeID: "s1", name: "Mug", price: "10.00", stock: ptr(int32(5))})
	var purchaseID int64

	// when
	err := s.store.InTx(s.ctx, func(tx PurchaseTx) error {
		product, err := tx.FindProductByID(s.ctx, "s1", productID)
		if err != nil {
			return err
		}
		customerID, err := tx.UpsertCustomer(s.ctx, UpsertCustomerParams{StoreID: "s1", Phone: "555", Name: "Ann", UpdateName: true})
		if err != nil {
			return err
		}
		if err := tx.DecrementStock(s.ctx, "s1", productID, 2); err != nil {
			return err
		}
		purchaseID, err = tx.CreatePurchase(s.ctx, CreatePurchaseParams{
			StoreID:       "s1",
			CustomerID:    customerID,
			ProductID:     productID,
			Quantity:      2,
			TotalAmount:   product.Price.Mul(decimal.NewFromInt(2)),
			TransactionID: ptr(`"tx-1"`),
			PaymentMethod: ptr(`{"type":"card"}`),
		})
		return err
	})

	// then
	require.NoError(s.T(), err)
	assert.NotZero(s.T(), purchaseID)
	assert.Equal(s.T(), int64(3), s.stockOf(productID))
	assert.Equal(s.T(), int64(1), s.queryInt(
		"SELECT count(*) FROM purchases WHERE id = ? AND quantity = 2 AND CAST(total_amount AS REAL) = 20 AND transaction_id IS NOT NULL AND payment_method IS NOT NULL",
		purchaseID,
	))
}

func (s *storeSuite) TestInTx_RollsBackOnError() {
	// given
	productID := s.insertProduct(testProduct{storeID: "s1", name: "Mug", price: "10.00", stock: ptr(int32(5))})
	boom := errors.New("boom")

	// when
	err := s.store.InTx(s.ctx, func(tx PurchaseTx) error {
		customerID, err := tx.CreateAnonymousCustomer(s.ctx, "s1", "Customer")
		if err != nil {
			return err
		}
		if err := tx.DecrementStock(s.ctx, "s1", productID, 5); err != nil {
			return err
		}
		if _, err := tx.CreatePurchase(s.ctx, CreatePurchaseParams{
			StoreID:     "s1",
			CustomerID:  customerID,
			ProductID:   productID,
			Quantity:    5,
			TotalAmount: decimal.NewFromInt(50),
		}); err != nil {
			return err
		}
		return boom
	})

	// then
	require.ErrorIs(s.T(), err, boom)
	assert.Equal(s.T(), int64(5), s.stockOf(productID))
	assert.Zero(s.T(), s.queryInt("SELECT count(*) FROM purchases"))
	assert.Zero(s.T(), s.queryInt("SELECT count(*) FROM customers"))
}

func (s *storeSuite) TestDecrementStock() {
	// given
	withNullStock := s.insertProduct(testProduct{storeID: "s1", name: "Single", price: "1"})
	withStock := s.insertProduct(testProduct{storeID: "s1", name: "Pair", price: "1", stock: ptr(int32(2))})

	testCases := []struct {
		name      string
		storeID   string
		productID int64
		quantity  int32
		expectErr error
		expectNow int64
	}{
		{name: "missing stock counts as one", storeID: "s1", productID: withNullStock, quantity: 1, expectNow: 0},
		{name: "missing stock exhausted", storeID: "s1", productID: withNullStock, quantity: 1, expectErr: serrors.ErrInsufficientStock, expectNow: 0},
		{name: "more than available", storeID: "s1", productID: withStock, quantity: 3, expectErr: serrors.ErrInsufficientStock, expectNow: 2},
		{name: "other store", storeID: "s2", productID: withStock, quantity: 1, expectErr: serrors.ErrInsufficientStock, expectNow: 2},
		{name: "exact amount", storeID: "s1", productID: withStock, quantity: 2, expectNow: 0},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			// when
			err := s.store.InTx(s.ctx, func(tx PurchaseTx) error {
				return tx.DecrementStock(s.ctx, tc.storeID, tc.productID, tc.quantity)
			})

			// then
			if tc.expectErr != nil {
				require.ErrorIs(s.T(), err, tc.expectErr)
			} else {
				require.NoError(s.T(), err)
			}
			assert.Equal(s.T(), tc.expectNow, s.stockOf(tc.productID))
		})
	}
}

func (s *storeSuite) TestUpsertCustomer() {
	upsert := func(params UpsertCustomerParams) int64 {
		var id int64
		err := s.store.InTx(s.ctx, func(tx PurchaseTx) error {
			var err error
			id, err = tx.UpsertCustomer(s.ctx, params)
			return err
		})
		require.NoError(s.T(), err)
		return id
	}

	// given
	created := upsert(UpsertCustomerParams{StoreID: "s1", Phone: "555", Name: "Customer"})

	// when
	kept := upsert(UpsertCustomerParams{StoreID: "s1", Phone: "555", Name: "Customer"})
	renamed := upsert(UpsertCustomerParams{StoreID: "s1", Phone: "555", Name: "Ann", UpdateName: true})
	keptName := upsert(UpsertCustomerParams{StoreID: "s1", Phone: "555", Name: "Customer"})
	otherStore := upsert(UpsertCustomerParams{StoreID: "s2", Phone: "555", Name: "Bob", UpdateName: true})

	// then
	assert.Equal(s.T(), created, kept)
	assert.Equal(s.T(), created, renamed)
	assert.Equal(s.T(), created, keptName)
	assert.NotEqual(s.T(), created, otherStore)
	assert.Equal(s.T(), int64(1), s.queryInt("SELECT count(*) FROM customers WHERE id = ? AND name = ?", created, "Ann"))
	assert.Equal(s.T(), int64(2), s.queryInt("SELECT count(*) FROM customers"))
}

func (s *storeSuite) TestCreateAnonymousCustomer_NeverReused() {
	// given
	var ids []int64

	// when
	for range 2 {
		err := s.store.InTx(s.ctx, func(tx PurchaseTx) error {
			id, err := tx.CreateAnonymousCustomer(s.ctx, "s1", "Customer")
			ids = append(ids, id)
			return err
		})
		require.NoError(s.T(), err)
	}

	// then
	require.Len(s.T(), ids, 2)
	assert.NotEqual(s.T(), ids[0], ids[1])
	assert.Equal(s.T(), int64(2), s.queryInt("SELECT count(*) FROM customers WHERE phone = ?", AnonymousPhone))
}

// SqliteStoreSuite runs the store behaviour against a fresh SQLite file per test.
type SqliteStoreSuite struct {
	storeSuite
	db *sqlx.DB
}

func (s *SqliteStoreSuite) SetupTest() {
	s.ctx = context.Background()
	db, err := bootstrap.NewSqliteDB(s.ctx, filepath.Join(s.T().TempDir(), "store.db"), 5*time.Second)
	require.NoError(s.T(), err, "Failed to open sqlite database")
	require.NoError(s.T(), MigrateSqlite(db.DB), "Failed to apply migrations")

	s.db = db
	s.store = NewSqliteStore(db)
	s.queryInt = func(query string, args ...any) int64 {
		var v int64
		require.NoError(s.T(), db.GetContext(s.ctx, &v, query, args...))
		return v
	}
}

func (s *SqliteStoreSuite) TearDownTest() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func TestSqliteStore(t *testing.T) {
	suite.Run(t, new(SqliteStoreSuite))
}
