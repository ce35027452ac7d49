package subscriber

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/abgdnv/storefront/pkg/messaging/events"
)

// Notifier delivers the receipt of a completed purchase to the customer.
type Notifier interface {
	Notify(ctx context.Context, event events.PurchaseCompletedEvent) error
}

// LogNotifier writes one structured receipt line per purchase. It stands in for an SMS or
// e-mail gateway until one is integrated.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, event events.PurchaseCompletedEvent) error {
	items := make([]any, 0, len(event.Items))
	for i, item := range event.Items {
		items = append(items, slog.Group(itemKey(i),
			slog.Int64("product_id", item.ProductID),
			slog.String("product_name", item.ProductName),
			slog.Int("quantity", int(item.Quantity)),
			slog.String("amount", item.Amount),
		))
	}
	attrs := []any{
		slog.String("event_id", event.EventID.String()),
		slog.String("store_id", event.StoreID),
		slog.Int64("purchase_id", event.PurchaseID),
		slog.Int64("customer_id", event.CustomerID),
		slog.String("customer_name", event.CustomerName),
		slog.String("total_amount", event.TotalAmount),
		slog.String("created_at", event.CreatedAt.Format(time.RFC3339)),
		slog.Group("items", items...),
	}
	if event.CustomerPhone != "" {
		attrs = append(attrs, slog.String("customer_phone", event.CustomerPhone))
	}
	n.logger.InfoContext(ctx, "purchase receipt", attrs...)
	return nil
}

func itemKey(i int) string {
	return "line_" + strconv.Itoa(i+1)
}
