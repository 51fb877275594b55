package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/service"
	"github.com/go-chi/chi/v5"
)

const adminActor = "admin"

type UpdateStatusRequestDTO struct {
	Status domain.OrderStatus `json:"status" validate:"required"`
}

func (h *handlers) cleanupAge(r *http.Request) (time.Duration, error) {
	raw := r.URL.Query().Get("olderThanHours")
	if raw == "" {
		return h.PendingOrderTTL, nil
	}
	hours, err := strconv.Atoi(raw)
	if err != nil || hours <= 0 {
		return 0, fmt.Errorf("%w: olderThanHours must be a positive integer", service.ErrInvalidRequest)
	}
	return time.Duration(hours) * time.Hour, nil
}

// GET /api/admin/cleanup/pending-orders counts what a cleanup would delete.
func (h *handlers) previewCleanup(w http.ResponseWriter, r *http.Request) {
	h.cleanup(w, r, true)
}

// POST /api/admin/cleanup/pending-orders
func (h *handlers) runCleanup(w http.ResponseWriter, r *http.Request) {
	h.cleanup(w, r, false)
}

func (h *handlers) cleanup(w http.ResponseWriter, r *http.Request, dryRun bool) {
	age, err := h.cleanupAge(r)
	if err != nil {
		respondServiceError(w, r, h.Logger, err)
		return
	}
	n, err := h.Orders.CleanupPendingOrders(r.Context(), age, dryRun)
	if err != nil {
		respondServiceError(w, r, h.Logger, err)
		return
	}
	body := envelope{"dryRun": dryRun, "olderThanHours": int(age / time.Hour)}
	if dryRun {
		body["count"] = n
	} else {
		body["deleted"] = n
	}
	respondOK(w, http.StatusOK, body)
}

// GET /api/admin/orders?status=&limit=
func (h *handlers) adminListOrders(w http.ResponseWriter, r *http.Request) {
	var limit int64
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondServiceError(w, r, h.Logger, fmt.Errorf("%w: invalid limit", service.ErrInvalidRequest))
			return
		}
		limit = n
	}
	orders, err := h.Orders.ListAll(r.Context(), domain.OrderStatus(r.URL.Query().Get("status")), limit)
	if err != nil {
		respondServiceError(w, r, h.Logger, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	respondOK(w, http.StatusOK, envelope{"orders": orders})
}

// PATCH /api/admin/orders/{orderID}/status
func (h *handlers) adminUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, h.Logger, err)
		return
	}
	order, err := h.Orders.UpdateStatus(r.Context(), adminActor, chi.URLParam(r, "orderID"), req.Status)
	if err != nil {
		respondServiceError(w, r, h.Logger, err)
		return
	}
	respondOK(w, http.StatusOK, envelope{"order": order})
}

// GET /api/admin/promotions
func (h *handlers) listPromotions(w http.ResponseWriter, r *http.Request) {
	promotions, err := h.Promotions.List(r.Context())
	if err != nil {
		respondServiceError(w, r, h.Logger, err)
		return
	}
	respondOK(w, http.StatusOK, envelope{"promotions": promotions})
}

// POST /api/admin/promotions
func (h *handlers) createPromotion(w http.ResponseWriter, r *http.Request) {
	var p domain.Promotion
	if err := decodeJSON(r, &p); err != nil {
		respondServiceError(w, r, h.Logger, err)
		return
	}
	created, err := h.Promotions.Create(r.Context(), &p)
	if err != nil {
		respondServiceError(w, r, h.Logger, err)
		return
	}
	respondOK(w, http.StatusCreated, envelope{"promotion": created})
}
