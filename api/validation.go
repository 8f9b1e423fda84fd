package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/warp/stock-ledger/stock"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON name.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		switch name {
		case "-":
			return ""
		case "":
			return fld.Name
		}
		return name
	})

	// "date" accepts YYYY-MM-DD.
	mustRegister(v, "date", func(fl validator.FieldLevel) bool {
		_, err := stock.ParseDate(fl.Field().String())
		return err == nil
	})
	return v
}

// mustRegister panics when tag cannot be registered. A missing tag would
// otherwise make every Struct call on a type using it panic later.
func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("api: register %q validation: %v", tag, err))
	}
}

// decodeJSON reads the body into dst and validates its shape.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return stock.NewValidationError("body", fmt.Sprintf("invalid JSON: %v", err))
	}
	return h.validateStruct(dst)
}

// validateStruct converts validator errors into a *stock.ValidationError.
func (h *Handler) validateStruct(s any) error {
	err := h.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &stock.ValidationError{}
	for _, fe := range verrs {
		out.Add(fe.Field(), validationMessage(fe))
	}
	return out.OrNil()
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "date":
		return "must be a date in YYYY-MM-DD format"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

// wholeQuantity converts a decoded quantity to int64. Fractions and
// values outside int64 are rejected; sign and zero are left to the
// domain rules.
func wholeQuantity(q decimal.Decimal) (int64, error) {
	if !q.Equal(q.Truncate(0)) {
		return 0, stock.NewValidationError("quantity", "must be a whole number")
	}
	if q.GreaterThan(decimal.NewFromInt(stock.MaxQuantity)) {
		return 0, stock.NewValidationError("quantity", fmt.Sprintf("must be at most %d", stock.MaxQuantity))
	}
	if !q.BigInt().IsInt64() {
		return 0, stock.NewValidationError("quantity", "is out of range")
	}
	return q.IntPart(), nil
}
