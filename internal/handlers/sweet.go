package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sweetshop/apiserver/internal/services"
	"github.com/sweetshop/apiserver/types"
)

// SweetHandler provides HTTP handlers for the catalog.
type SweetHandler struct {
	sweetService *services.SweetService
}

// NewSweetHandler constructs a handler with the provided service.
func NewSweetHandler(sweetService *services.SweetService) *SweetHandler {
	return &SweetHandler{sweetService: sweetService}
}

// SweetRouter registers catalog routes on the given router. Every route
// requires authentication; catalog changes require the admin role.
func SweetRouter(
	r chi.Router,
	sweetService *services.SweetService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewSweetHandler(sweetService)
	adminOnly := RequireRole(types.RoleAdmin)

	r.Use(authMiddleware)

	r.Get("/", handler.ListSweets)
	r.Get("/search", handler.SearchSweets)
	r.With(adminOnly).Post("/", handler.CreateSweet)
	r.Route("/{sweetID}", func(r chi.Router) {
		r.Get("/", handler.GetSweet)
		r.Post("/purchase", handler.PurchaseSweet)
		r.With(adminOnly).Put("/", handler.UpdateSweet)
		r.With(adminOnly).Delete("/", handler.DeleteSweet)
		r.With(adminOnly).Post("/restock", handler.RestockSweet)
	})
}

func (h *SweetHandler) ListSweets(w http.ResponseWriter, r *http.Request) {
	sweets, err := h.sweetService.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sweets)
}

func (h *SweetHandler) SearchSweets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query, err := services.ParseSweetQuery(q.Get("name"), q.Get("category"), q.Get("minPrice"), q.Get("maxPrice"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	sweets, err := h.sweetService.Search(r.Context(), query)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sweets)
}

func (h *SweetHandler) GetSweet(w http.ResponseWriter, r *http.Request) {
	sweet, err := h.sweetService.Get(r.Context(), chi.URLParam(r, "sweetID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sweet)
}

func (h *SweetHandler) CreateSweet(w http.ResponseWriter, r *http.Request) {
	var req types.SweetInput
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.sweetService.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *SweetHandler) UpdateSweet(w http.ResponseWriter, r *http.Request) {
	var req types.SweetPatch
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.sweetService.Update(r.Context(), chi.URLParam(r, "sweetID"), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *SweetHandler) DeleteSweet(w http.ResponseWriter, r *http.Request) {
	if err := h.sweetService.Delete(r.Context(), chi.URLParam(r, "sweetID")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SweetHandler) PurchaseSweet(w http.ResponseWriter, r *http.Request) {
	var req QuantityRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sweet, err := h.sweetService.Purchase(r.Context(), chi.URLParam(r, "sweetID"), req.Quantity)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sweet)
}

func (h *SweetHandler) RestockSweet(w http.ResponseWriter, r *http.Request) {
	var req QuantityRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sweet, err := h.sweetService.Restock(r.Context(), chi.URLParam(r, "sweetID"), req.Quantity)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sweet)
}

// QuantityRequest is the body of purchase and restock requests.
type QuantityRequest struct {
	Quantity int `json:"quantity"`
}
