package validation

import (
	"errors"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const (
	// MinAddressLen and MaxAddressLen bound a normalized address, in runes.
	MinAddressLen = 2
	MaxAddressLen = 200
)

// ErrAddressEmpty is returned when the address is empty or whitespace-only.
var ErrAddressEmpty = errors.New("address is required")

// ErrAddressTooShort is returned when the address is below MinAddressLen.
var ErrAddressTooShort = errors.New("address too short")

// ErrAddressTooLong is returned when the address exceeds MaxAddressLen.
var ErrAddressTooLong = errors.New("address too long")

// ErrAddressInvalidChars is returned when the address contains disallowed characters.
var ErrAddressInvalidChars = errors.New("address contains invalid characters")

// ErrInvalidLocationID is returned for a path ID that is not a UUID.
var ErrInvalidLocationID = errors.New("invalid location id")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("address_chars", func(fl validator.FieldLevel) bool {
		for _, r := range fl.Field().String() {
			if !isAllowedAddressRune(r) {
				return false
			}
		}
		return true
	})
	return v
}

// CreateLocationRequest is the body of POST /locations.
type CreateLocationRequest struct {
	Address string `json:"address" validate:"required,min=2,max=200,address_chars"`
}

// NormalizeAddress trims the input and collapses internal whitespace runs to one space.
func NormalizeAddress(input string) string {
	return strings.Join(strings.Fields(input), " ")
}

// ValidateCreateLocation normalizes the address and validates the request.
// The returned request carries the normalized address.
func ValidateCreateLocation(req CreateLocationRequest) (CreateLocationRequest, error) {
	req.Address = NormalizeAddress(req.Address)
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return req, addressError(verrs[0].Tag())
		}
		return req, err
	}
	return req, nil
}

// ValidateLocationID checks that id is a UUID.
func ValidateLocationID(id string) error {
	if err := validate.Var(id, "required,uuid"); err != nil {
		return ErrInvalidLocationID
	}
	return nil
}

func addressError(tag string) error {
	switch tag {
	case "required":
		return ErrAddressEmpty
	case "min":
		return ErrAddressTooShort
	case "max":
		return ErrAddressTooLong
	default:
		return ErrAddressInvalidChars
	}
}

// isAllowedAddressRune accepts letters (Unicode), digits, space and common address punctuation.
func isAllowedAddressRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', ',', '-', '.', '#', '\'', '/', '&':
		return true
	}
	return false
}
