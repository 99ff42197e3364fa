package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trolleylabs/trolley-backend/api/responses"
	"github.com/trolleylabs/trolley-backend/api/validators"
	cartsvc "github.com/trolleylabs/trolley-backend/internal/cart"
	checkoutsvc "github.com/trolleylabs/trolley-backend/internal/checkout"
	"github.com/trolleylabs/trolley-backend/pkg/db/models"
	"github.com/trolleylabs/trolley-backend/pkg/enums"
	pkgerrors "github.com/trolleylabs/trolley-backend/pkg/errors"
	"github.com/trolleylabs/trolley-backend/pkg/logger"
	"github.com/trolleylabs/trolley-backend/pkg/pagination"
	"github.com/trolleylabs/trolley-backend/pkg/types"
)

type createCartRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

type addCartItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

type removeCartItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
}

type cartResponse struct {
	CartID       string                   `json:"cart_id"`
	UserID       string                   `json:"user_id"`
	Status       string                   `json:"status"`
	Items        []types.CartItemSnapshot `json:"items"`
	TotalAmount  decimal.Decimal          `json:"total_amount"`
	ItemCount    int                      `json:"item_count"`
	Version      int                      `json:"version"`
	CreatedAt    string                   `json:"created_at"`
	LastActivity string                   `json:"last_activity"`
}

type cartListResponse struct {
	Carts      []cartResponse `json:"carts"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

type checkoutResponse struct {
	OrderID     string          `json:"order_id"`
	CartID      string          `json:"cart_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

func toCartResponse(row models.CartProjection) cartResponse {
	items := row.Items
	if items == nil {
		items = types.CartItemList{}
	}
	return cartResponse{
		CartID:       row.CartID.String(),
		UserID:       row.UserID,
		Status:       row.Status.String(),
		Items:        items,
		TotalAmount:  row.TotalAmount,
		ItemCount:    row.ItemCount,
		Version:      row.Version,
		CreatedAt:    row.CreatedAt.UTC().Format(timeFormat),
		LastActivity: row.LastActivity.UTC().Format(timeFormat),
	}
}

// CartCreate opens a fresh cart for a user.
func CartCreate(svc *cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		var payload createCartRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cartID, err := svc.CreateCart(r.Context(), payload.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]string{"cart_id": cartID.String()})
	}
}

// CartAddItem reserves stock and adds the product line through the coordinator.
func CartAddItem(svc *checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		cartID, err := parseCartID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload addCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.AddItemToCart(r.Context(), cartID, payload.ProductID, payload.Quantity); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]string{
			"cart_id":    cartID.String(),
			"product_id": payload.ProductID,
		})
	}
}

// CartRemoveItem drops the line and releases its reservation.
func CartRemoveItem(svc *checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		cartID, err := parseCartID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload removeCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.RemoveItemFromCart(r.Context(), cartID, payload.ProductID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{
			"cart_id":    cartID.String(),
			"product_id": payload.ProductID,
		})
	}
}

// CartCheckout converts reservations into sales and freezes the cart.
func CartCheckout(svc *checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		cartID, err := parseCartID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CheckoutCart(r.Context(), cartID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, checkoutResponse{
			OrderID:     result.OrderID.String(),
			CartID:      result.CartID.String(),
			TotalAmount: result.TotalAmount,
		})
	}
}

// CartFetch returns the cart projection.
func CartFetch(svc *cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		cartID, err := parseCartID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.GetCart(r.Context(), cartID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toCartResponse(*row))
	}
}

// CartListByUser pages through a user's carts, newest first.
func CartListByUser(svc *cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		userID := chi.URLParam(r, "userId")
		if userID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "user id required"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var status *enums.CartStatus
		if raw := r.URL.Query().Get("status"); raw != "" {
			parsed := enums.CartStatus(raw)
			if !parsed.IsValid() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown cart status").WithDetails(map[string]any{"status": raw}))
				return
			}
			status = &parsed
		}

		params := pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		}

		rows, nextCursor, err := svc.ListUserCarts(r.Context(), userID, status, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := cartListResponse{Carts: make([]cartResponse, 0, len(rows)), NextCursor: nextCursor}
		for _, row := range rows {
			out.Carts = append(out.Carts, toCartResponse(row))
		}

		responses.WriteSuccess(w, out)
	}
}

func parseCartID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "cartId")
	cartID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cart id")
	}
	return cartID, nil
}
