// Package barcode turns an Open Food Facts product lookup into a FoodItem draft.
//
// KEY CONCEPTS:
//
//  1. ONE OUTBOUND CALL, NO CACHE:
//     Every lookup is a GET {base}/product/{barcode}.json bounded by the
//     client timeout (10s by default). Nothing is stored.
//
//  2. EXPLICIT DEFAULTS:
//     The reply is decoded into structs whose fields are all optional, and
//     every missing field falls back to a named default. A reply never
//     becomes a half-filled item.
//
//  3. ERROR KINDS:
//     transport failure / unexpected status -> apperror.ErrExternalUnavailable
//     status != 1 or no product             -> apperror.ErrNotFound
//     body that is not the expected JSON    -> apperror.ErrParseFailure
package barcode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sakif/metapantry/internal/apperror"
	"github.com/sakif/metapantry/internal/httpx"
	"github.com/sakif/metapantry/internal/model"
)

const (
	DefaultBaseURL = "https://world.openfoodfacts.org/api/v0"
	DefaultTimeout = 10 * time.Second

	UnknownName     = "Unknown Product"
	UnknownCategory = "unknown"

	serviceName = "product database"
	maxBodySize = 4 << 20
)

type Config struct {
	BaseURL string
	Timeout time.Duration
	// HTTPClient overrides the default client; its Timeout wins over Timeout.
	HTTPClient *http.Client
}

// Client looks products up by barcode.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: base, http: hc, logger: logger.With(slog.String("client", "openfoodfacts"))}
}

// productResponse is the subset of the Open Food Facts v0 reply we read.
// status has been seen both as a number and as a string, so it is decoded by hand.
type productResponse struct {
	Status  json.RawMessage `json:"status"`
	Product json.RawMessage `json:"product"`
}

type product struct {
	ProductName    *string  `json:"product_name"`
	CategoriesTags []string `json:"categories_tags"`
	ImageURL       *string  `json:"image_url"`
}

// Lookup fetches the product for code and returns an unpersisted draft with
// Source barcode and Barcode set to code exactly as given.
func (c *Client) Lookup(ctx context.Context, code string) (model.FoodItem, error) {
	if strings.TrimSpace(code) == "" {
		return model.FoodItem{}, apperror.ValidationFailed("barcode", "barcode is required")
	}

	endpoint := fmt.Sprintf("%s/product/%s.json", c.baseURL, url.PathEscape(code))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.FoodItem{}, apperror.ExternalUnavailable(serviceName, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("barcode lookup failed",
			slog.String("barcode", code),
			slog.String("error", err.Error()),
		)
		return model.FoodItem{}, apperror.ExternalUnavailable(serviceName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return model.FoodItem{}, apperror.ExternalUnavailable(serviceName, err)
	}

	c.logger.Debug("barcode lookup",
		slog.String("barcode", code),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	return normalize(code, resp.StatusCode, body)
}

func normalize(code string, httpStatus int, body []byte) (model.FoodItem, error) {
	var pr productResponse
	decodeErr := json.Unmarshal(body, &pr)

	if httpStatus < 200 || httpStatus > 299 {
		// Open Food Facts answers unknown codes with a 404 whose body still
		// says status 0. Anything else non-2xx is an upstream failure.
		if decodeErr == nil && !statusFound(pr.Status) && len(pr.Status) > 0 {
			return model.FoodItem{}, apperror.NotFound("product", code)
		}
		return model.FoodItem{}, apperror.ExternalUnavailable(serviceName,
			&httpx.StatusError{StatusCode: httpStatus, Body: string(body)})
	}
	if decodeErr != nil {
		return model.FoodItem{}, apperror.ParseFailure("product database reply", decodeErr)
	}

	if !statusFound(pr.Status) || isEmptyObject(pr.Product) {
		return model.FoodItem{}, apperror.NotFound("product", code)
	}

	var p product
	if err := json.Unmarshal(pr.Product, &p); err != nil {
		return model.FoodItem{}, apperror.ParseFailure("product database reply", err)
	}

	name := UnknownName
	if p.ProductName != nil && strings.TrimSpace(*p.ProductName) != "" {
		name = *p.ProductName
	}

	item := model.NewDraft(name, model.SourceBarcode)
	item.Barcode = model.StringPtr(code)
	item.Category = model.StringPtr(category(p.CategoriesTags))
	if p.ImageURL != nil && *p.ImageURL != "" {
		item.ImageURL = model.StringPtr(*p.ImageURL)
	}
	return item, nil
}

// statusFound accepts 1, "1" and "success".
func statusFound(raw json.RawMessage) bool {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n == 1
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(strings.ToLower(s))
		return s == "1" || s == "success"
	}
	return false
}

func isEmptyObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return true
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		// Not an object; let the typed decode report it.
		return false
	}
	return len(m) == 0
}

// category takes the first tag and strips its language prefix ("en:dairies" -> "dairies").
func category(tags []string) string {
	if len(tags) == 0 {
		return UnknownCategory
	}
	tag := tags[0]
	if _, rest, ok := strings.Cut(tag, ":"); ok {
		tag = rest
	}
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return UnknownCategory
	}
	return tag
}
