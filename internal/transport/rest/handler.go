// Package rest provides the public storefront HTTP handlers.
package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	serrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/abgdnv/storefront/internal/service"
	"github.com/abgdnv/storefront/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	products  service.ProductService
	purchases service.PurchaseService
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewHandler creates the storefront API on top of the product and purchase services.
func NewHandler(products service.ProductService, purchases service.PurchaseService, logger *slog.Logger) *Handler {
	return &Handler{
		products:  products,
		purchases: purchases,
		validate:  web.NewValidator(),
		logger:    logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the HTTP routes for the storefront.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/public", func(r chi.Router) {
		r.Get("/products", h.Products)
		r.Post("/purchase", h.Purchase)
	})

	r.Get("/healthz", h.HealthCheck)
}

type productResponse struct {
	Product *service.ProductDto `json:"product"`
}

type productsResponse struct {
	Products []service.ProductDto `json:"products"`
}

// Products returns one product when id or productId is given, otherwise the whole catalog of the store.
// id takes priority over productId.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()
	storeID := query.Get("storeId")
	if storeID == "" {
		web.RespondError(w, h.logger, http.StatusBadRequest, "storeId is required")
		return
	}
	id, hasID, ok := web.ParseOptionalGt(r, w, h.logger, "id", 0)
	if !ok {
		return
	}
	customID := query.Get("productId")

	var found *service.ProductDto
	var err error
	switch {
	case hasID:
		h.logger.DebugContext(ctx, "Received request to find product by ID", "store_id", storeID, "ID", id)
		found, err = h.products.FindByID(ctx, storeID, id)
	case customID != "":
		h.logger.DebugContext(ctx, "Received request to find product by custom ID", "store_id", storeID, "custom_id", customID)
		found, err = h.products.FindByCustomID(ctx, storeID, customID)
	default:
		h.logger.DebugContext(ctx, "Received request to list products", "store_id", storeID)
		list, err := h.products.FindAllByStore(ctx, storeID)
		if err != nil {
			h.logger.ErrorContext(ctx, "Error retrieving product list", "store_id", storeID, "error", err)
			web.RespondError(w, h.logger, http.StatusInternalServerError, "Internal server error")
			return
		}
		h.logger.DebugContext(ctx, "Successfully retrieved product list", "count", len(list))
		web.RespondJSON(w, h.logger, http.StatusOK, productsResponse{Products: list})
		return
	}

	if err != nil {
		if errors.Is(err, serrors.ErrProductNotFound) {
			h.logger.WarnContext(ctx, "Product not found", "store_id", storeID, "ID", id, "custom_id", customID)
			web.RespondError(w, h.logger, http.StatusNotFound, "Product not found")
			return
		}
		h.logger.ErrorContext(ctx, "Error retrieving product", "store_id", storeID, "error", err)
		web.RespondError(w, h.logger, http.StatusInternalServerError, "Internal server error")
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, productResponse{Product: found})
}

// Purchase handles a checkout request.
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req service.PurchaseCreateDto
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.ErrorContext(ctx, "Error decoding request body", "error", err)
		web.RespondError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		web.RespondValidationError(w, r, h.logger, err)
		return
	}
	h.logger.DebugContext(ctx, "Received purchase request", "store_id", req.StoreID, "lines", len(req.Products))

	result, err := h.purchases.Purchase(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, serrors.ErrProductNotFound):
			h.logger.WarnContext(ctx, "Purchase rejected", "store_id", req.StoreID, "error", err)
			web.RespondError(w, h.logger, http.StatusNotFound, err.Error())
		case errors.Is(err, serrors.ErrInsufficientStock), errors.Is(err, serrors.ErrInvalidPurchase):
			h.logger.WarnContext(ctx, "Purchase rejected", "store_id", req.StoreID, "error", err)
			web.RespondError(w, h.logger, http.StatusBadRequest, err.Error())
		default:
			h.logger.ErrorContext(ctx, "Error processing purchase", "store_id", req.StoreID, "error", err)
			web.RespondErrorDetails(w, h.logger, http.StatusInternalServerError, "Internal server error", err.Error())
		}
		return
	}
	h.logger.InfoContext(ctx, "Purchase completed", "store_id", req.StoreID, "purchase_id", result.PurchaseID,
		"customer_id", result.CustomerID, "total", result.TotalAmount)
	web.RespondJSON(w, h.logger, http.StatusOK, result)
}

func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}
