package vision

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sakif/metapantry/internal/apperror"
	"github.com/sakif/metapantry/internal/model"
)

const (
	UnknownName     = "Unknown Food Item"
	UnknownCategory = "Unknown"

	// maxDays keeps today+days inside a sane calendar range.
	maxDays = 100 * 365
)

// reply is what the prompt asks the model for. Every field is optional and
// estimated_expiration_days may come back as a number, a string or null.
type reply struct {
	Name     *string         `json:"name"`
	Category *string         `json:"category"`
	Days     json.RawMessage `json:"estimated_expiration_days"`
}

// ParseReply turns the model's text into a draft. today anchors the
// expiration estimate.
//
// Models wrap JSON in prose or markdown fences despite the prompt, so when
// the whole text does not parse, the substring from the first '{' to the
// last '}' is tried before giving up with apperror.ErrParseFailure.
func ParseReply(content string, today model.Date) (model.FoodItem, error) {
	r, err := decodeReply(content)
	if err != nil {
		return model.FoodItem{}, apperror.ParseFailure("vision reply", err)
	}

	days, ok, err := expirationDays(r.Days)
	if err != nil {
		return model.FoodItem{}, apperror.ParseFailure("vision reply", err)
	}

	item := model.NewDraft(textOr(r.Name, UnknownName), model.SourceVision)
	item.Category = model.StringPtr(textOr(r.Category, UnknownCategory))
	if ok {
		exp := today.AddDays(days)
		item.ExpirationDate = &exp
	}
	return item, nil
}

func decodeReply(content string) (reply, error) {
	var r reply
	err := decodeObject([]byte(content), &r)
	if err == nil {
		return r, nil
	}

	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start == -1 || end <= start {
		return reply{}, fmt.Errorf("no JSON object in reply: %w", err)
	}
	if err := decodeObject([]byte(content[start:end+1]), &r); err != nil {
		return reply{}, err
	}
	return r, nil
}

// decodeObject requires a JSON object. Field type mismatches (a numeric
// "name", say) are treated as absent rather than failing the whole reply.
func decodeObject(data []byte, r *reply) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(data), &fields); err != nil {
		return err
	}
	if fields == nil {
		return errors.New("reply is null")
	}
	*r = reply{
		Name:     stringField(fields["name"]),
		Category: stringField(fields["category"]),
		Days:     fields["estimated_expiration_days"],
	}
	return nil
}

func stringField(raw json.RawMessage) *string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return nil
	}
	return &s
}

func textOr(s *string, fallback string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return fallback
	}
	return strings.TrimSpace(*s)
}

// expirationDays applies truthiness: absent, null, 0, false and "" mean no
// date. Numbers are truncated toward zero, numeric strings are accepted, true
// counts as 1 and negative values are kept.
func expirationDays(raw json.RawMessage) (days int, ok bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false, nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false, err
	}

	var f float64
	switch x := v.(type) {
	case bool:
		if !x {
			return 0, false, nil
		}
		f = 1
	case float64:
		f = x
	case string:
		x = strings.TrimSpace(x)
		if x == "" {
			return 0, false, nil
		}
		parsed, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, false, fmt.Errorf("estimated_expiration_days %q is not a number", x)
		}
		f = parsed
	default:
		return 0, false, fmt.Errorf("estimated_expiration_days has unsupported type %T", v)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > maxDays {
		return 0, false, fmt.Errorf("estimated_expiration_days %v is out of range", f)
	}
	if f == 0 {
		return 0, false, nil
	}
	// 0.5 is truthy and truncates to today.
	return int(math.Trunc(f)), true, nil
}
