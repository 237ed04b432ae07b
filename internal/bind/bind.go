// Package bind decodes and validates JSON request bodies and outgoing payloads.
package bind

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// ValidatorSvc holds a singleton validator and translator
type ValidatorSvc struct {
	Validator  *validator.Validate
	Translator ut.Translator
}

var (
	vOnce sync.Once
	vSvc  *ValidatorSvc
)

// Error is a decoding or validation failure; Field is empty for malformed JSON.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Get returns the validator singleton, initializing on first use
func Get() *ValidatorSvc {
	vOnce.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		trans, _ := uni.GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())

		// prefer json tag names in messages
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if tag == "-" || tag == "" {
				return fld.Name
			}
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			return tag
		})

		_ = en_translations.RegisterDefaultTranslations(v, trans)
		registerShort(v, trans, "min", "{0} must be at least {1}")
		registerShort(v, trans, "max", "{0} must be at most {1}")
		registerShort(v, trans, "oneof", "{0} must be one of [{1}]")

		vSvc = &ValidatorSvc{Validator: v, Translator: trans}
	})
	return vSvc
}

// Struct validates v and returns the first failure as an *Error.
func Struct(v any) error {
	err := Get().Validator.Struct(v)
	if err == nil {
		return nil
	}
	field, msg := ValidationFieldAndMessage(err)
	return &Error{Field: field, Message: msg}
}

// ParseJSON decodes a request body into T and validates it. Unknown fields are
// rejected. An empty body decodes to the zero value when allowEmpty is set.
func ParseJSON[T any](r *http.Request, allowEmpty bool) (T, error) {
	var dst T
	defer r.Body.Close()

	buf := make([]byte, 1)
	n, _ := r.Body.Read(buf)
	if n == 0 {
		if !allowEmpty {
			return dst, &Error{Message: "empty body"}
		}
		return dst, Struct(dst)
	}
	dec := json.NewDecoder(io.LimitReader(io.MultiReader(bytes.NewReader(buf[:n]), r.Body), 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&dst); err != nil {
		return dst, &Error{Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if dec.More() {
		return dst, &Error{Message: "unexpected trailing data"}
	}
	return dst, Struct(dst)
}

// ValidationFieldAndMessage returns the first field and translated message
func ValidationFieldAndMessage(err error) (field, message string) {
	if err == nil {
		return "", ""
	}
	var inv *validator.InvalidValidationError
	if errors.As(err, &inv) {
		return "", inv.Error()
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			return fe.Field(), fe.Translate(Get().Translator)
		}
	}
	return "", err.Error()
}

func registerShort(v *validator.Validate, trans ut.Translator, tag, text string) {
	_ = v.RegisterTranslation(tag, trans,
		func(ut ut.Translator) error {
			return ut.Add(tag, text, true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			msg, _ := ut.T(tag, fe.Field(), fe.Param())
			return msg
		},
	)
}
