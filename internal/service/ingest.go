package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/metapantry/internal/access"
	"github.com/sakif/metapantry/internal/apperror"
	"github.com/sakif/metapantry/internal/model"
)

// BarcodeLookup resolves a barcode into an unpersisted draft.
// Implemented by *barcode.Client.
type BarcodeLookup interface {
	Lookup(ctx context.Context, code string) (model.FoodItem, error)
}

// ImageAnalyzer turns an uploaded photo into an unpersisted draft.
// Implemented by *vision.Analyzer.
type ImageAnalyzer interface {
	Analyze(ctx context.Context, upload []byte) (model.FoodItem, error)
}

// IngestObserver is told the outcome of every normalizer run.
// Implemented by *metrics.Metrics.
type IngestObserver interface {
	ObserveIngest(source model.Source, err error)
}

// Overrides are caller-supplied values applied to a normalized draft
// before it is saved. Nil fields keep the normalizer's value.
type Overrides struct {
	Quantity       *int
	ExpirationDate *model.Date
}

func (o Overrides) apply(draft *model.FoodItem) {
	if o.Quantity != nil {
		draft.Quantity = *o.Quantity
	}
	if o.ExpirationDate != nil {
		d := *o.ExpirationDate
		draft.ExpirationDate = &d
	}
}

// IngestService runs the barcode and vision normalizers and, for the
// "/items" endpoints, hands the finished draft to ItemService. Nothing is
// persisted unless the normalizer returned a complete draft.
type IngestService struct {
	barcodes BarcodeLookup
	images   ImageAnalyzer
	items    *ItemService
	observer IngestObserver
	logger   *slog.Logger
}

// NewIngestService wires the normalizers. observer may be nil.
func NewIngestService(barcodes BarcodeLookup, images ImageAnalyzer, items *ItemService, observer IngestObserver, logger *slog.Logger) *IngestService {
	if observer == nil {
		observer = nopObserver{}
	}
	return &IngestService{
		barcodes: barcodes,
		images:   images,
		items:    items,
		observer: observer,
		logger:   logger,
	}
}

// LookupBarcode returns the product draft for code without saving it.
func (s *IngestService) LookupBarcode(ctx context.Context, code string) (model.FoodItem, error) {
	draft, err := s.barcodes.Lookup(ctx, code)
	s.observe(model.SourceBarcode, err)
	if err != nil {
		return model.FoodItem{}, fmt.Errorf("looking up barcode: %w", err)
	}
	draft.Source = model.SourceBarcode
	return draft, nil
}

// CreateFromBarcode looks code up and saves the result for caller.
func (s *IngestService) CreateFromBarcode(ctx context.Context, caller access.Caller, code string, o Overrides) (*model.FoodItem, error) {
	draft, err := s.LookupBarcode(ctx, code)
	if err != nil {
		return nil, err
	}
	o.apply(&draft)
	return s.items.Create(ctx, caller, draft)
}

// AnalyzeImage returns the draft the vision model describes for upload
// without saving it.
func (s *IngestService) AnalyzeImage(ctx context.Context, upload []byte) (model.FoodItem, error) {
	if len(upload) == 0 {
		err := apperror.ValidationFailed("file", "an image file is required")
		s.observe(model.SourceVision, err)
		return model.FoodItem{}, err
	}
	draft, err := s.images.Analyze(ctx, upload)
	s.observe(model.SourceVision, err)
	if err != nil {
		return model.FoodItem{}, fmt.Errorf("analyzing image: %w", err)
	}
	draft.Source = model.SourceVision
	return draft, nil
}

// CreateFromImage analyzes upload and saves the result for caller.
func (s *IngestService) CreateFromImage(ctx context.Context, caller access.Caller, upload []byte, o Overrides) (*model.FoodItem, error) {
	draft, err := s.AnalyzeImage(ctx, upload)
	if err != nil {
		return nil, err
	}
	o.apply(&draft)
	return s.items.Create(ctx, caller, draft)
}

func (s *IngestService) observe(source model.Source, err error) {
	s.observer.ObserveIngest(source, err)
	if err == nil {
		return
	}
	level := slog.LevelInfo
	if errors.Is(err, apperror.ErrExternalUnavailable) || errors.Is(err, apperror.ErrParseFailure) {
		level = slog.LevelWarn
	}
	s.logger.Log(context.Background(), level, "ingest failed",
		slog.String("source", string(source)),
		slog.String("outcome", apperror.Code(err)),
		slog.String("error", err.Error()),
	)
}

type nopObserver struct{}

func (nopObserver) ObserveIngest(model.Source, error) {}
