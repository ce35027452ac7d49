package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	serrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/abgdnv/storefront/internal/store"
	"github.com/abgdnv/storefront/pkg/messaging"
	"github.com/abgdnv/storefront/pkg/messaging/events"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
)

// DefaultCustomerName is stored for customers that did not give a name.
const DefaultCustomerName = "Customer"

// PurchaseService defines the checkout operation.
type PurchaseService interface {
	// Purchase validates stock for every line, resolves the customer, decrements stock and records
	// one purchase row per line, all in one transaction.
	// Returns ErrProductNotFound or ErrInsufficientStock (carrying a client facing message) when the
	// request cannot be fulfilled. Nothing is written in that case.
	Purchase(ctx context.Context, req PurchaseCreateDto) (*PurchaseDto, error)
}

// PurchaseCreateDto is the checkout request.
// TransactionID and PaymentMethod are opaque to the service: any JSON value is stored and echoed back.
type PurchaseCreateDto struct {
	StoreID       string                  `json:"storeId"       validate:"required"`
	Products      []PurchaseItemCreateDto `json:"products"      validate:"required,gt=0,dive"`
	CustomerPhone string                  `json:"customerPhone" validate:"omitempty,ne=anonymous,max=64"`
	CustomerName  string                  `json:"customerName"  validate:"omitempty,max=255"`
	TransactionID json.RawMessage         `json:"transactionId,omitempty"`
	PaymentMethod json.RawMessage         `json:"paymentMethod,omitempty"`
}

// PurchaseItemCreateDto references a product by internal id or, when id is absent, by custom id.
type PurchaseItemCreateDto struct {
	ID        int64  `json:"id"        validate:"required_without=ProductID,omitempty,gt=0"`
	ProductID string `json:"productId" validate:"required_without=ID"`
	Quantity  *int32 `json:"quantity"  validate:"omitempty,min=1"`
}

type PurchaseDto struct {
	Success       bool               `json:"success"`
	PurchaseID    int64              `json:"purchaseId"`
	TotalAmount   float64            `json:"totalAmount"`
	Products      []PurchasedItemDto `json:"products"`
	CustomerID    int64              `json:"customerId"`
	TransactionID json.RawMessage    `json:"transactionId,omitempty"`
	PaymentMethod json.RawMessage    `json:"paymentMethod,omitempty"`
}

type PurchasedItemDto struct {
	ProductID   int64   `json:"productId"`
	ProductName string  `json:"productName"`
	Quantity    int32   `json:"quantity"`
	Amount      float64 `json:"amount"`
	PurchaseID  int64   `json:"purchaseId"`
}

// Purchases implements PurchaseService.
type Purchases struct {
	store     store.PurchaseStore
	publisher messaging.Publisher
	now       func() time.Time

	completedCounter metric.Int64Counter
	rejectedCounter  metric.Int64Counter
	itemsCounter     metric.Int64Counter
}

func NewPurchaseService(purchaseStore store.PurchaseStore, publisher messaging.Publisher) *Purchases {
	meter := otel.Meter("storefront")
	completed, err := meter.Int64Counter("purchases_completed", metric.WithDescription("Total number of committed purchases"))
	if err != nil {
		panic(fmt.Sprintf("failed to create purchases_completed counter: %v", err))
	}
	rejected, err := meter.Int64Counter("purchases_rejected", metric.WithDescription("Purchases refused because of missing products or stock"))
	if err != nil {
		panic(fmt.Sprintf("failed to create purchases_rejected counter: %v", err))
	}
	items, err := meter.Int64Counter("purchase_items_sold", metric.WithDescription("Total quantity of sold items"))
	if err != nil {
		panic(fmt.Sprintf("failed to create purchase_items_sold counter: %v", err))
	}
	return &Purchases{
		store:            purchaseStore,
		publisher:        publisher,
		now:              time.Now,
		completedCounter: completed,
		rejectedCounter:  rejected,
		itemsCounter:     items,
	}
}

// purchaseLine is a request line resolved to a product.
type purchaseLine struct {
	product  *store.Product
	quantity int32
}

func (s *Purchases) Purchase(ctx context.Context, req PurchaseCreateDto) (*PurchaseDto, error) {
	if err := checkPurchase(req); err != nil {
		s.countRejected(ctx, err)
		return nil, err
	}
	transactionID := nonNullJSON(req.TransactionID)
	paymentMethod := nonNullJSON(req.PaymentMethod)

	var customerID int64
	var total decimal.Decimal
	var items []PurchasedItemDto
	var amounts []decimal.Decimal

	err := s.store.InTx(ctx, func(tx store.PurchaseTx) error {
		lines, demand, err := resolveLines(ctx, tx, req)
		if err != nil {
			return err
		}

		customerID, err = resolveCustomer(ctx, tx, req)
		if err != nil {
			return err
		}

		if err := decrementStock(ctx, tx, req.StoreID, demand); err != nil {
			return err
		}

		total = decimal.Zero
		items = make([]PurchasedItemDto, 0, len(lines))
		amounts = make([]decimal.Decimal, 0, len(lines))
		for _, line := range lines {
			amount := line.product.Price.Mul(decimal.NewFromInt32(line.quantity))
			purchaseID, err := tx.CreatePurchase(ctx, store.CreatePurchaseParams{
				StoreID:       req.StoreID,
				CustomerID:    customerID,
				ProductID:     line.product.ID,
				Quantity:      line.quantity,
				TotalAmount:   amount,
				TransactionID: jsonText(transactionID),
				PaymentMethod: jsonText(paymentMethod),
			})
			if err != nil {
				return err
			}
			total = total.Add(amount)
			amounts = append(amounts, amount)
			items = append(items, PurchasedItemDto{
				ProductID:   line.product.ID,
				ProductName: line.product.Name,
				Quantity:    line.quantity,
				Amount:      amount.InexactFloat64(),
				PurchaseID:  purchaseID,
			})
		}
		return nil
	})
	if err != nil {
		s.countRejected(ctx, err)
		return nil, err
	}

	result := &PurchaseDto{
		Success:       true,
		PurchaseID:    items[0].PurchaseID,
		TotalAmount:   total.InexactFloat64(),
		Products:      items,
		CustomerID:    customerID,
		TransactionID: transactionID,
		PaymentMethod: paymentMethod,
	}

	s.publishCompleted(ctx, req, result, total, amounts)

	s.completedCounter.Add(ctx, 1)
	var sold int64
	for _, item := range items {
		sold += int64(item.Quantity)
	}
	s.itemsCounter.Add(ctx, sold)

	return result, nil
}

// checkPurchase rejects requests that must not reach the transaction. The phone literal
// "anonymous" is reserved for customers created without a phone.
func checkPurchase(req PurchaseCreateDto) error {
	if len(req.Products) == 0 {
		return serrors.WithMessage(serrors.ErrInvalidPurchase, "Products must not be empty")
	}
	if req.CustomerPhone == store.AnonymousPhone {
		return serrors.WithMessage(serrors.ErrInvalidPurchase, "Customer phone "+store.AnonymousPhone+" is reserved")
	}
	return nil
}

// resolveLines looks up every line in request order and checks the accumulated demand per product
// against its stock. demand maps product id to the total requested quantity.
func resolveLines(ctx context.Context, tx store.PurchaseTx, req PurchaseCreateDto) ([]purchaseLine, map[int64]int64, error) {
	lines := make([]purchaseLine, 0, len(req.Products))
	demand := make(map[int64]int64, len(req.Products))

	for _, item := range req.Products {
		quantity := int32(1)
		if item.Quantity != nil {
			quantity = *item.Quantity
		}

		var product *store.Product
		var err error
		if item.ID > 0 {
			product, err = tx.FindProductByID(ctx, req.StoreID, item.ID)
		} else {
			product, err = tx.FindProductByCustomID(ctx, req.StoreID, item.ProductID)
		}
		if err != nil {
			if errors.Is(err, serrors.ErrProductNotFound) {
				return nil, nil, serrors.WithMessage(serrors.ErrProductNotFound, "Product not found: "+itemRef(item))
			}
			return nil, nil, err
		}

		demand[product.ID] += int64(quantity)
		if int64(product.Stock) < demand[product.ID] {
			slog.WarnContext(ctx, "Insufficient stock", "store_id", req.StoreID, "product_id", product.ID,
				"available", product.Stock, "requested", demand[product.ID])
			return nil, nil, outOfStock(product, demand[product.ID])
		}
		lines = append(lines, purchaseLine{product: product, quantity: quantity})
	}
	return lines, demand, nil
}

func resolveCustomer(ctx context.Context, tx store.PurchaseTx, req PurchaseCreateDto) (int64, error) {
	name := req.CustomerName
	if name == "" {
		name = DefaultCustomerName
	}
	if req.CustomerPhone == "" {
		return tx.CreateAnonymousCustomer(ctx, req.StoreID, name)
	}
	return tx.UpsertCustomer(ctx, store.UpsertCustomerParams{
		StoreID:    req.StoreID,
		Phone:      req.CustomerPhone,
		Name:       name,
		UpdateName: req.CustomerName != "",
	})
}

// decrementStock takes the demand off every product in ascending id order, so concurrent
// purchases lock rows in the same order.
func decrementStock(ctx context.Context, tx store.PurchaseTx, storeID string, demand map[int64]int64) error {
	ids := make([]int64, 0, len(demand))
	for id := range demand {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		err := tx.DecrementStock(ctx, storeID, id, int32(demand[id]))
		if err == nil {
			continue
		}
		if !errors.Is(err, serrors.ErrInsufficientStock) {
			return err
		}
		// stock changed since validation: report what is left now
		product, findErr := tx.FindProductByID(ctx, storeID, id)
		if findErr != nil {
			if errors.Is(findErr, serrors.ErrProductNotFound) {
				return serrors.WithMessage(serrors.ErrProductNotFound, "Product not found: "+strconv.FormatInt(id, 10))
			}
			return findErr
		}
		slog.WarnContext(ctx, "Stock taken by a concurrent purchase", "store_id", storeID, "product_id", id,
			"available", product.Stock, "requested", demand[id])
		return outOfStock(product, demand[id])
	}
	return nil
}

func (s *Purchases) publishCompleted(ctx context.Context, req PurchaseCreateDto, result *PurchaseDto, total decimal.Decimal, amounts []decimal.Decimal) {
	carrier := make(propagation.MapCarrier)
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	items := make([]events.PurchasedItem, len(result.Products))
	for i, p := range result.Products {
		items[i] = events.PurchasedItem{
			PurchaseID:  p.PurchaseID,
			ProductID:   p.ProductID,
			ProductName: p.ProductName,
			Quantity:    p.Quantity,
			Amount:      amounts[i].StringFixed(2),
		}
	}
	customerName := req.CustomerName
	if customerName == "" {
		customerName = DefaultCustomerName
	}
	event := events.PurchaseCompletedEvent{
		EventID:       uuid.New(),
		Carrier:       carrier,
		StoreID:       req.StoreID,
		CustomerID:    result.CustomerID,
		CustomerName:  customerName,
		CustomerPhone: req.CustomerPhone,
		PurchaseID:    result.PurchaseID,
		TotalAmount:   total.StringFixed(2),
		TransactionID: result.TransactionID,
		PaymentMethod: result.PaymentMethod,
		Items:         items,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish PurchaseCompletedEvent", "purchase_id", result.PurchaseID, "error", err)
	}
}

func (s *Purchases) countRejected(ctx context.Context, err error) {
	var reason string
	switch {
	case errors.Is(err, serrors.ErrProductNotFound):
		reason = "product_not_found"
	case errors.Is(err, serrors.ErrInsufficientStock):
		reason = "out_of_stock"
	case errors.Is(err, serrors.ErrInvalidPurchase):
		reason = "invalid_request"
	default:
		return
	}
	s.rejectedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func outOfStock(product *store.Product, requested int64) error {
	return serrors.WithMessage(serrors.ErrInsufficientStock,
		fmt.Sprintf("Product %s is out of stock. Available: %d, Requested: %d", product.Name, product.Stock, requested))
}

// itemRef names a line the way the client referenced it, custom id first.
func itemRef(item PurchaseItemCreateDto) string {
	if item.ProductID != "" {
		return item.ProductID
	}
	return strconv.FormatInt(item.ID, 10)
}

// nonNullJSON treats an explicit JSON null like an absent value.
func nonNullJSON(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return raw
}

func jsonText(raw json.RawMessage) *string {
	if raw == nil {
		return nil
	}
	s := string(raw)
	return &s
}
