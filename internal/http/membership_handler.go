package http

import (
	"errors"
	"net/http"

	"github.com/fjod/go_storefront/internal/repository"
	"github.com/fjod/go_storefront/internal/service"
)

type ActivateMembershipRequestDTO struct {
	PlanID         string `json:"planId" validate:"required,max=64"`
	SubscriptionID string `json:"subscriptionId" validate:"required,max=255"`
}

// GET /api/mobile/memberships returns the plans and the caller's membership,
// which is null for users without one.
func (h *handlers) getMemberships(w http.ResponseWriter, r *http.Request) {
	plans, err := h.Memberships.ListPlans(r.Context())
	if err != nil {
		respondServiceError(w, r, h.Logger, err)
		return
	}
	view, err := h.Memberships.GetUserMembership(r.Context(), userID(r))
	if err != nil && !errors.Is(err, repository.ErrMembershipNotFound) {
		respondServiceError(w, r, h.Logger, err)
		return
	}
	var membership *service.MembershipView
	if err == nil {
		membership = view
	}
	respondOK(w, http.StatusOK, envelope{"plans": plans, "membership": membership})
}

// POST /api/mobile/memberships
func (h *handlers) activateMembership(w http.ResponseWriter, r *http.Request) {
	var req ActivateMembershipRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, h.Logger, err)
		return
	}
	m, err := h.Memberships.ActivateSubscription(r.Context(), userID(r), req.PlanID, req.SubscriptionID)
	if err != nil {
		respondServiceError(w, r, h.Logger, err)
		return
	}
	respondOK(w, http.StatusCreated, envelope{"membership": m})
}
