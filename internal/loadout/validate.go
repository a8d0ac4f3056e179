package loadout

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/mwantia/loadoutsync/internal/banktag"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
			return Category(fl.Field().String()).Valid()
		})
		v.RegisterStructValidation(validateOriginalFormat, Loadout{})
		validate = v
	})
	return validate
}

// validateOriginalFormat rejects a preserved text that no longer parses to
// the held layout items.
func validateOriginalFormat(sl validator.StructLevel) {
	l := sl.Current().Interface().(Loadout)
	if l.OriginalFormat == "" {
		return
	}

	parsed, err := banktag.Parse(l.OriginalFormat)
	if err != nil {
		sl.ReportError(l.OriginalFormat, "OriginalFormat", "originalFormat", "banktag", "")
		return
	}
	if l.BankTag != nil && !banktag.SameItems(parsed.Items, l.BankTag.Items) {
		sl.ReportError(l.OriginalFormat, "OriginalFormat", "originalFormat", "roundtrip", "")
	}
}

// Validate checks the record invariants that can be verified without the store.
func Validate(l *Loadout) error {
	if l == nil {
		return fmt.Errorf("%w: empty loadout", ErrInvalidLoadout)
	}
	if err := getValidator().Struct(l); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidLoadout, describe(err))
	}
	return nil
}

func describe(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}

	parts := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		field := e.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		switch e.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", field))
		case "len":
			parts = append(parts, fmt.Sprintf("%s must have %s slots", field, e.Param()))
		case "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s", field, e.Param()))
		case "min":
			parts = append(parts, fmt.Sprintf("%s must be at least %s", field, e.Param()))
		case "category":
			parts = append(parts, fmt.Sprintf("%s %q is not a known category", field, e.Value()))
		case "banktag":
			parts = append(parts, "originalFormat is not a bank tag export")
		case "roundtrip":
			parts = append(parts, "originalFormat does not match the layout items")
		default:
			parts = append(parts, fmt.Sprintf("%s is invalid", field))
		}
	}
	return strings.Join(parts, "; ")
}
