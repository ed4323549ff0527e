package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sakif/metapantry/internal/model"
	"github.com/sakif/metapantry/internal/service"
)

// ItemHandler serves /api/v1/food-items.
//
//	GET    /food-items                 -> list (skip, limit, category, barcode)
//	GET    /food-items/expiring-soon   -> list expiring within ?days (default 7)
//	POST   /food-items                 -> manual create
//	GET    /food-items/{id}
//	PUT    /food-items/{id}            -> partial update (same as PATCH)
//	PATCH  /food-items/{id}
//	DELETE /food-items/{id}            -> returns the deleted item
type ItemHandler struct {
	items    *service.ItemService
	validate *validator.Validate
	logger   *slog.Logger
}

func NewItemHandler(items *service.ItemService, validate *validator.Validate, logger *slog.Logger) *ItemHandler {
	return &ItemHandler{items: items, validate: validate, logger: logger}
}

// createItemRequest is the manual-entry body. A client-sent "source" is
// ignored: manual entry is always source=manual.
type createItemRequest struct {
	Name           string      `json:"name" validate:"required,max=255"`
	Barcode        *string     `json:"barcode"`
	Category       *string     `json:"category"`
	Quantity       *int        `json:"quantity" validate:"omitempty,gte=0"`
	ExpirationDate *model.Date `json:"expiration_date"`
	ImageURL       *string     `json:"image_url"`
}

func (req createItemRequest) draft() model.FoodItem {
	item := model.NewDraft(req.Name, model.SourceManual)
	if req.Quantity != nil {
		item.Quantity = *req.Quantity
	}
	item.Barcode = req.Barcode
	item.Category = req.Category
	item.ExpirationDate = req.ExpirationDate
	item.ImageURL = req.ImageURL
	return item
}

func listParams(r *http.Request) (service.ListParams, error) {
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		return service.ListParams{}, err
	}
	limit, err := queryInt(r, "limit", service.DefaultListLimit)
	if err != nil {
		return service.ListParams{}, err
	}
	return service.ListParams{
		Skip:     skip,
		Limit:    limit,
		Category: queryString(r, "category"),
		Barcode:  queryString(r, "barcode"),
	}, nil
}

func (h *ItemHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	params, err := listParams(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	items, err := h.items.List(r.Context(), caller, params)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ItemHandler) HandleExpiringSoon(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	days, err := queryInt(r, "days", service.DefaultExpiryDays)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	params, err := listParams(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	items, err := h.items.ExpiringSoon(r.Context(), caller, days, params)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ItemHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req createItemRequest
	if err := decodeJSON(w, r, h.validate, &req, false); err != nil {
		writeError(w, h.logger, err)
		return
	}

	item, err := h.items.Create(r.Context(), caller, req.draft())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *ItemHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	item, err := h.items.Get(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// HandleUpdate serves both PUT and PATCH. Absent fields are left alone and
// null clears an optional column.
func (h *ItemHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var patch model.ItemPatch
	if err := decodeJSON(w, r, h.validate, &patch, false); err != nil {
		writeError(w, h.logger, err)
		return
	}

	item, err := h.items.Update(r.Context(), caller, chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *ItemHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	item, err := h.items.Delete(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}
