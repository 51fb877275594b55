package http

import "net/http"

// GET /api/mobile/products?category=
func (h *handlers) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Catalog.ListProducts(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		respondServiceError(w, r, h.Logger, err)
		return
	}
	respondOK(w, http.StatusOK, envelope{"products": products})
}

// GET /api/mobile/categories
func (h *handlers) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Catalog.ListCategories(r.Context())
	if err != nil {
		respondServiceError(w, r, h.Logger, err)
		return
	}
	respondOK(w, http.StatusOK, envelope{"categories": categories})
}
