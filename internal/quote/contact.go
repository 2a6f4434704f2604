package quote

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var fakeNumbers = map[string]bool{
	"0000000000": true,
	"1111111111": true,
	"1234567890": true,
	"9999999999": true,
	"0123456789": true,
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

// NormalizePhone rewrites UK numbers to +44 form and keeps other
// international numbers as + followed by digits.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	cleaned := digits(phone)

	switch {
	case strings.HasPrefix(phone, "+"):
		return "+" + cleaned
	case strings.HasPrefix(cleaned, "44") && len(cleaned) == 12:
		return "+" + cleaned
	case strings.HasPrefix(cleaned, "0") && len(cleaned) == 11:
		return "+44" + cleaned[1:]
	}
	return cleaned
}

func IsValidPhone(phone string) bool {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return false
	}
	if !strings.HasPrefix(phone, "+") && !unicode.IsDigit(rune(phone[0])) {
		return false
	}
	for _, r := range phone {
		if !unicode.IsDigit(r) && !strings.ContainsRune("+ -()", r) {
			return false
		}
	}

	cleaned := digits(phone)
	if len(cleaned) < 10 || len(cleaned) > 15 {
		return false
	}
	return !fakeNumbers[cleaned]
}

// FormatPhone renders +44 numbers as "+44 7700 900123".
func FormatPhone(phone string) string {
	if strings.HasPrefix(phone, "+44") && len(phone) == 13 {
		return fmt.Sprintf("%s %s %s", phone[:3], phone[3:7], phone[7:])
	}
	return phone
}

// RegisterValidators adds the custom tags used by Contact.
func RegisterValidators(v *validator.Validate) error {
	return v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return IsValidPhone(fl.Field().String())
	})
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := RegisterValidators(v); err != nil {
		panic(err)
	}
	return v
}

// Normalize trims every field and rewrites the phone number.
func (c *Contact) Normalize() {
	c.Name = strings.TrimSpace(c.Name)
	c.Company = strings.TrimSpace(c.Company)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	if c.Phone != "" {
		c.Phone = NormalizePhone(c.Phone)
	}
}

// Display is the short form used in notifications.
func (c Contact) Display() string {
	parts := []string{c.Name}
	if c.Company != "" {
		parts[0] = fmt.Sprintf("%s (%s)", c.Name, c.Company)
	}
	if c.Phone != "" {
		parts = append(parts, FormatPhone(c.Phone))
	}
	if c.Email != "" {
		parts = append(parts, c.Email)
	}
	return strings.Join(parts, ", ")
}
