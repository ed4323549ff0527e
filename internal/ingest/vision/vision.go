// Package vision turns a food photo into a FoodItem draft using an external
// multimodal model.
//
// PIPELINE:
//
//	upload bytes --PrepareImage--> JPEG --Client.Describe--> text --ParseReply--> draft
//	  decode fails: ErrValidation   transport/5xx: ErrExternalUnavailable
//	                                             unusable text: ErrParseFailure
//
// No inference happens here; the model is always remote.
package vision

import (
	"context"
	"log/slog"
	"time"

	"github.com/sakif/metapantry/internal/model"
)

// Describer sends a prepared JPEG to the model and returns its text reply.
type Describer interface {
	Describe(ctx context.Context, jpegData []byte) (string, error)
}

// Analyzer runs the full pipeline.
type Analyzer struct {
	model  Describer
	now    func() time.Time
	logger *slog.Logger
}

// NewAnalyzer wires an Analyzer. now defaults to time.Now; it decides what
// "today" is for the expiration estimate.
func NewAnalyzer(d Describer, now func() time.Time, logger *slog.Logger) *Analyzer {
	if now == nil {
		now = time.Now
	}
	return &Analyzer{model: d, now: now, logger: logger}
}

// Analyze returns an unpersisted draft with Source vision and no barcode or
// image URL.
func (a *Analyzer) Analyze(ctx context.Context, upload []byte) (model.FoodItem, error) {
	jpegData, err := PrepareImage(upload)
	if err != nil {
		return model.FoodItem{}, err
	}

	text, err := a.model.Describe(ctx, jpegData)
	if err != nil {
		return model.FoodItem{}, err
	}

	item, err := ParseReply(text, model.DateOf(a.now()))
	if err != nil {
		a.logger.Warn("unusable vision reply",
			slog.Int("reply_length", len(text)),
			slog.String("error", err.Error()),
		)
		return model.FoodItem{}, err
	}

	a.logger.Info("image analyzed",
		slog.String("name", item.Name),
		slog.Int("upload_bytes", len(upload)),
		slog.Int("jpeg_bytes", len(jpegData)),
	)
	return item, nil
}
