package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ValidationError is a request that could not be decoded into well-typed
// ledger arguments.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

type addPointsRequest struct {
	Payer     *string         `json:"payer" validate:"required"`
	Points    json.RawMessage `json:"points" validate:"required"`
	Timestamp *string         `json:"timestamp" validate:"required"`
}

type spendPointsRequest struct {
	Points json.RawMessage `json:"points" validate:"required"`
}

var (
	minPoints = decimal.NewFromInt(math.MinInt64)
	maxPoints = decimal.NewFromInt(math.MaxInt64)
)

// timestampLayouts are tried in order. Layouts without a zone are read
// as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeBody reads a JSON object into dst and checks its required fields.
func decodeBody(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			return ValidationError{Message: "Request body is required."}
		case errors.As(err, &typeErr) && typeErr.Field != "":
			return fieldTypeError(typeErr.Field)
		default:
			return ValidationError{Message: "Invalid request body."}
		}
	}

	if err := v.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			field := verrs[0].Field()
			return ValidationError{
				Field:   field,
				Message: fmt.Sprintf("Required field '%s' not found in request body.", field),
			}
		}
		return err
	}
	return nil
}

func fieldTypeError(field string) ValidationError {
	switch field {
	case "payer":
		return ValidationError{Field: field, Message: "Field 'payer' must be string."}
	case "timestamp":
		return ValidationError{Field: field, Message: "Field 'timestamp' must be valid iso datetime."}
	default:
		return ValidationError{Field: field, Message: fmt.Sprintf("Field '%s' has the wrong type.", field)}
	}
}

// parsePoints accepts only a bare JSON integer literal that fits in int64.
// Quoted numbers, fractions and exponents are rejected.
func parsePoints(raw json.RawMessage) (int64, error) {
	notInteger := ValidationError{Field: "points", Message: "Field 'points' must be an integer."}

	s := strings.TrimSpace(string(raw))
	if s == "" || s[0] == '"' {
		return 0, notInteger
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.Exponent() != 0 {
		return 0, notInteger
	}
	if d.LessThan(minPoints) || d.GreaterThan(maxPoints) {
		return 0, ValidationError{Field: "points", Message: "Field 'points' is out of range."}
	}
	return d.IntPart(), nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, ValidationError{Field: "timestamp", Message: "Field 'timestamp' must be valid iso datetime."}
}
