package http

import (
	"net/http"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/go-chi/chi/v5"
)

type CreateOrderRequestDTO struct {
	ShippingAddress domain.Address `json:"shippingAddress" validate:"required"`
}

type ConfirmOrderRequestDTO struct {
	OrderID         string `json:"orderId" validate:"required,max=64"`
	PaymentIntentID string `json:"paymentIntentId" validate:"required,max=255"`
}

// GET /api/mobile/orders
func (h *handlers) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Orders.ListOrders(r.Context(), userID(r))
	if err != nil {
		respondServiceError(w, r, h.Logger, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	respondOK(w, http.StatusOK, envelope{"orders": orders})
}

// GET /api/mobile/orders/{orderID}
func (h *handlers) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.Orders.GetOrder(r.Context(), userID(r), chi.URLParam(r, "orderID"))
	if err != nil {
		respondServiceError(w, r, h.Logger, err)
		return
	}
	respondOK(w, http.StatusOK, envelope{"order": order})
}

// POST /api/mobile/orders creates a pending order and its payment intent.
func (h *handlers) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, h.Logger, err)
		return
	}
	pending, err := h.Checkout.CreatePendingOrder(r.Context(), userID(r), req.ShippingAddress)
	if err != nil {
		respondServiceError(w, r, h.Logger, err)
		return
	}
	respondOK(w, http.StatusCreated, envelope{
		"order":        pending.Order,
		"clientSecret": pending.ClientSecret,
	})
}

// POST /api/mobile/checkout/confirm-order
func (h *handlers) confirmOrder(w http.ResponseWriter, r *http.Request) {
	var req ConfirmOrderRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, h.Logger, err)
		return
	}
	order, err := h.Checkout.ConfirmOrder(r.Context(), userID(r), req.OrderID, req.PaymentIntentID)
	if err != nil {
		respondServiceError(w, r, h.Logger, err)
		return
	}
	respondOK(w, http.StatusOK, envelope{"order": order})
}

// POST /api/mobile/checkout/create-free-order
func (h *handlers) createFreeOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, h.Logger, err)
		return
	}
	order, err := h.Checkout.CreateFreeOrder(r.Context(), userID(r), req.ShippingAddress)
	if err != nil {
		respondServiceError(w, r, h.Logger, err)
		return
	}
	respondOK(w, http.StatusCreated, envelope{"order": order})
}
