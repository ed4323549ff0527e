package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sakif/metapantry/internal/apperror"
	"github.com/sakif/metapantry/internal/model"
	"github.com/sakif/metapantry/internal/service"
)

// multipartOverhead is the allowance for boundaries and part headers on
// top of the upload limit.
const multipartOverhead = 64 << 10

// IngestHandler serves the barcode and image-analysis endpoints.
//
//	GET  /barcode/{barcode}        -> draft, not saved
//	POST /barcode/{barcode}/items  -> saved item, optional {"quantity", "expiration_date"} body
//	POST /image-analysis           -> draft from multipart "file", not saved
//	POST /image-analysis/items     -> saved item; optional "quantity" and "expiration_date" form fields
type IngestHandler struct {
	ingest    *service.IngestService
	validate  *validator.Validate
	maxUpload int64
	logger    *slog.Logger
}

func NewIngestHandler(ingest *service.IngestService, validate *validator.Validate, maxUpload int64, logger *slog.Logger) *IngestHandler {
	return &IngestHandler{ingest: ingest, validate: validate, maxUpload: maxUpload, logger: logger}
}

type overridesRequest struct {
	Quantity       *int        `json:"quantity" validate:"omitempty,gte=0"`
	ExpirationDate *model.Date `json:"expiration_date"`
}

func (h *IngestHandler) HandleBarcodeLookup(w http.ResponseWriter, r *http.Request) {
	if _, err := callerFrom(r); err != nil {
		writeError(w, h.logger, err)
		return
	}

	draft, err := h.ingest.LookupBarcode(r.Context(), chi.URLParam(r, "barcode"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (h *IngestHandler) HandleBarcodeCreate(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req overridesRequest
	if err := decodeJSON(w, r, h.validate, &req, true); err != nil {
		writeError(w, h.logger, err)
		return
	}

	item, err := h.ingest.CreateFromBarcode(r.Context(), caller, chi.URLParam(r, "barcode"), service.Overrides{
		Quantity:       req.Quantity,
		ExpirationDate: req.ExpirationDate,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *IngestHandler) HandleImageAnalyze(w http.ResponseWriter, r *http.Request) {
	if _, err := callerFrom(r); err != nil {
		writeError(w, h.logger, err)
		return
	}
	upload, err := h.readUpload(w, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	draft, err := h.ingest.AnalyzeImage(r.Context(), upload)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (h *IngestHandler) HandleImageCreate(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	upload, err := h.readUpload(w, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	overrides, err := formOverrides(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	item, err := h.ingest.CreateFromImage(r.Context(), caller, upload, overrides)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// readUpload returns the bytes of the multipart "file" part, enforcing the
// upload limit on the whole body.
func (h *IngestHandler) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		return nil, h.uploadError(err)
	}
	defer r.MultipartForm.RemoveAll()

	file, hdr, err := r.FormFile("file")
	if err != nil {
		return nil, h.uploadError(err)
	}
	defer file.Close()

	if hdr.Size > h.maxUpload {
		return nil, h.tooLarge()
	}
	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		return nil, h.uploadError(err)
	}
	if int64(len(data)) > h.maxUpload {
		return nil, h.tooLarge()
	}
	return data, nil
}

func (h *IngestHandler) uploadError(err error) error {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return h.tooLarge()
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return apperror.ValidationFailed("file", "a multipart image file named \"file\" is required")
	}
	return apperror.InvalidInput("invalid multipart upload", err)
}

func (h *IngestHandler) tooLarge() error {
	return apperror.ValidationFailed("file", fmt.Sprintf("image exceeds %d bytes", h.maxUpload))
}

func formOverrides(r *http.Request) (service.Overrides, error) {
	var o service.Overrides
	if raw := strings.TrimSpace(r.FormValue("quantity")); raw != "" {
		q, err := strconv.Atoi(raw)
		if err != nil || q < 0 {
			return o, apperror.ValidationFailed("quantity", "quantity must be a non-negative integer")
		}
		o.Quantity = &q
	}
	if raw := strings.TrimSpace(r.FormValue("expiration_date")); raw != "" {
		d, err := model.ParseDate(raw)
		if err != nil {
			return o, apperror.ValidationFailed("expiration_date", "expiration_date must be YYYY-MM-DD")
		}
		o.ExpirationDate = &d
	}
	return o, nil
}
