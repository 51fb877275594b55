package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/fjod/go_storefront/internal/service"
)

const (
	actionAdd             = "add"
	actionUpdate          = "update"
	actionRemove          = "remove"
	actionClear           = "clear"
	actionApplyPromotion  = "apply_promotion"
	actionRemovePromotion = "remove_promotion"
)

type CartActionRequestDTO struct {
	Action    string `json:"action" validate:"required,oneof=add update remove clear apply_promotion remove_promotion"`
	ProductID string `json:"productId" validate:"required_if=Action add,required_if=Action update,required_if=Action remove,max=64"`
	Quantity  int    `json:"quantity" validate:"min=0,max=99"`
	Code      string `json:"code" validate:"required_if=Action apply_promotion,max=64"`
}

// GET /api/mobile/cart
func (h *handlers) getCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.Cart.GetCart(r.Context(), userID(r))
	if err != nil {
		respondServiceError(w, r, h.Logger, err)
		return
	}
	respondOK(w, http.StatusOK, envelope{"cart": view})
}

// POST /api/mobile/cart
func (h *handlers) cartAction(w http.ResponseWriter, r *http.Request) {
	var req CartActionRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, h.Logger, err)
		return
	}

	ctx, uid := r.Context(), userID(r)
	var (
		view *service.CartView
		err  error
	)
	switch req.Action {
	case actionAdd:
		quantity := req.Quantity
		if quantity == 0 {
			quantity = 1
		}
		view, err = h.Cart.AddItem(ctx, uid, req.ProductID, quantity)
	case actionUpdate:
		view, err = h.Cart.UpdateQuantity(ctx, uid, req.ProductID, req.Quantity)
	case actionRemove:
		view, err = h.Cart.RemoveItem(ctx, uid, req.ProductID)
	case actionClear:
		view, err = h.Cart.ClearCart(ctx, uid)
	case actionApplyPromotion:
		view, err = h.Cart.ApplyPromotion(ctx, uid, req.Code)
		var promoErr *service.PromotionError
		if errors.As(err, &promoErr) && view != nil {
			respondJSON(w, http.StatusBadRequest, struct {
				ErrorResponse
				Cart *service.CartView `json:"cart"`
			}{ErrorResponse{Error: promoErr.Message, Code: "invalid_promotion", Reason: string(promoErr.Reason)}, view})
			return
		}
	case actionRemovePromotion:
		view, err = h.Cart.RemovePromotion(ctx, uid)
	default:
		err = fmt.Errorf("%w: unknown action %q", service.ErrInvalidRequest, req.Action)
	}
	if err != nil {
		respondServiceError(w, r, h.Logger, err)
		return
	}
	respondOK(w, http.StatusOK, envelope{"cart": view})
}
