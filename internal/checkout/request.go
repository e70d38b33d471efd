package checkout

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	validator "github.com/go-playground/validator/v10"
)

// Request carries the customer details entered at checkout. Items and totals come from the
// cart, never from the client.
type Request struct {
	CustomerName string `json:"customerName" validate:"required,max=100"`
	Phone        string `json:"phone" validate:"required,phone"`
	Email        string `json:"email" validate:"omitempty,email,max=254"`
	Address      string `json:"address" validate:"max=300"`
	PaymentType  string `json:"paymentType" validate:"omitempty,oneof=cash card online"`
	Instructions string `json:"instructions" validate:"max=500"`
}

func (r Request) normalize() Request {
	r.CustomerName = strings.TrimSpace(r.CustomerName)
	r.Phone = strings.ReplaceAll(strings.TrimSpace(r.Phone), " ", "")
	r.Email = strings.TrimSpace(r.Email)
	r.Address = strings.TrimSpace(r.Address)
	r.PaymentType = strings.ToLower(strings.TrimSpace(r.PaymentType))
	r.Instructions = strings.TrimSpace(r.Instructions)
	return r
}

// NewValidator returns a validator that knows the "phone" tag for the configured pattern and
// reports fields by their JSON names.
func NewValidator(phone *regexp.Regexp) *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		if phone == nil {
			return fl.Field().String() != ""
		}
		return phone.MatchString(fl.Field().String())
	})
	return v
}

// fieldErrors flattens validator output into field -> rule.
func fieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}
