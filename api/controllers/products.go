package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/trolleylabs/trolley-backend/api/responses"
	"github.com/trolleylabs/trolley-backend/api/validators"
	productsvc "github.com/trolleylabs/trolley-backend/internal/product"
	"github.com/trolleylabs/trolley-backend/pkg/db/models"
	pkgerrors "github.com/trolleylabs/trolley-backend/pkg/errors"
	"github.com/trolleylabs/trolley-backend/pkg/logger"
)

const timeFormat = time.RFC3339

type createProductRequest struct {
	ID           string          `json:"id" validate:"required"`
	Name         string          `json:"name" validate:"required"`
	Price        decimal.Decimal `json:"price"`
	InitialStock int             `json:"initial_stock" validate:"min=0"`
	Description  string          `json:"description,omitempty"`
}

type restockRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

type changePriceRequest struct {
	Price decimal.Decimal `json:"price"`
}

type updateProductRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

type productResponse struct {
	ProductID      string          `json:"product_id"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price"`
	Description    string          `json:"description"`
	TotalStock     int             `json:"total_stock"`
	ReservedStock  int             `json:"reserved_stock"`
	AvailableStock int             `json:"available_stock"`
	Version        int             `json:"version"`
	CreatedAt      string          `json:"created_at"`
}

func toProductResponse(row models.ProductProjection) productResponse {
	return productResponse{
		ProductID:      row.ProductID,
		Name:           row.Name,
		Price:          row.Price,
		Description:    row.Description,
		TotalStock:     row.TotalStock,
		ReservedStock:  row.ReservedStock,
		AvailableStock: row.AvailableStock,
		Version:        row.Version,
		CreatedAt:      row.CreatedAt.UTC().Format(timeFormat),
	}
}

// ProductCreate registers a product in the catalog.
func ProductCreate(svc *productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.Price.IsNegative() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative"))
			return
		}

		err := svc.CreateProduct(r.Context(), strings.TrimSpace(payload.ID), payload.Name, payload.Price, payload.InitialStock, payload.Description)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]string{"product_id": strings.TrimSpace(payload.ID)})
	}
}

// ProductFetch returns the product projection.
func ProductFetch(svc *productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		row, err := svc.GetProduct(r.Context(), chi.URLParam(r, "productId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toProductResponse(*row))
	}
}

// ProductList lists catalog rows with offset paging.
func ProductList(svc *productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1_000_000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		availableOnly := r.URL.Query().Get("available_only") == "true"

		rows, err := svc.ListProducts(r.Context(), availableOnly, limit, offset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]productResponse, 0, len(rows))
		for _, row := range rows {
			out = append(out, toProductResponse(row))
		}

		responses.WriteSuccess(w, map[string]any{"products": out})
	}
}

// ProductRestock adds stock on hand.
func ProductRestock(svc *productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		var payload restockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		newTotal, err := svc.IncreaseStock(r.Context(), chi.URLParam(r, "productId"), payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]int{"new_total": newTotal})
	}
}

// ProductChangePrice reprices the product. Future cart additions pick up
// the new price; existing cart lines keep the price they were added at.
func ProductChangePrice(svc *productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		var payload changePriceRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID := chi.URLParam(r, "productId")
		if err := svc.ChangePrice(r.Context(), productID, payload.Price); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"product_id": productID})
	}
}

// ProductUpdate patches name and description.
func ProductUpdate(svc *productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID := chi.URLParam(r, "productId")
		if err := svc.UpdateDetails(r.Context(), productID, payload.Name, payload.Description); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"product_id": productID})
	}
}
