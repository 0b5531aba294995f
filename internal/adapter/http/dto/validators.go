package dto

import (
	"html"
	"net/url"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	saudiPhoneRe = regexp.MustCompile(`^05\d{8}$`)
	couponCodeRe = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		Register(v)
	}
}

// Register installs the custom tags and the decimal type mapping on v.
// Decimal fields validate as float64 so gt/gte/max work on money.
func Register(v *validator.Validate) {
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	_ = v.RegisterValidation("phone_sa", validateSaudiPhone)
	_ = v.RegisterValidation("coupon_code", validateCouponCode)
	_ = v.RegisterValidation("safe_url", validateSafeURL)
}

func decimalValue(field reflect.Value) interface{} {
	d, ok := field.Interface().(decimal.Decimal)
	if !ok {
		return nil
	}
	f, _ := d.Float64()
	return f
}

// validateSaudiPhone accepts local mobile numbers such as 0512345678.
func validateSaudiPhone(fl validator.FieldLevel) bool {
	return saudiPhoneRe.MatchString(strings.TrimSpace(fl.Field().String()))
}

func validateCouponCode(fl validator.FieldLevel) bool {
	return couponCodeRe.MatchString(strings.TrimSpace(fl.Field().String()))
}

// validateSafeURL accepts only http/https URLs.
func validateSafeURL(fl validator.FieldLevel) bool {
	raw := fl.Field().String()
	if raw == "" {
		return true // optional field; use "required" tag to enforce presence
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// SanitizeStruct trims whitespace from every exported string field
// (including *string) of a struct pointer. Fields tagged sanitize:"html"
// are also HTML-escaped; fields tagged sanitize:"-" are left untouched.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		mode := rt.Field(i).Tag.Get("sanitize")
		if mode == "-" {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(sanitize(f.String(), mode))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			elem := f.Elem()
			if elem.Kind() == reflect.String {
				elem.SetString(sanitize(elem.String(), mode))
			}
		}
	}
}

func sanitize(s, mode string) string {
	s = strings.TrimSpace(s)
	if mode == "html" {
		return html.EscapeString(s)
	}
	return s
}
