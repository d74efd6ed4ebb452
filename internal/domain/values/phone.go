package values

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// PhoneNumber is a validated seller contact number, stored in E.164
// format. It is the join key the multi-account checker uses to find
// profiles sharing one number.
type PhoneNumber struct {
	number string
}

// E.164 format: + followed by up to 15 digits.
var e164Regex = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// NewPhoneNumber normalizes and validates a phone number.
func NewPhoneNumber(number string) (PhoneNumber, error) {
	if number == "" {
		return PhoneNumber{}, fmt.Errorf("phone number cannot be empty")
	}

	cleaned := cleanPhoneNumber(number)
	if !strings.HasPrefix(cleaned, "+") {
		cleaned = "+" + cleaned
	}
	if !e164Regex.MatchString(cleaned) {
		return PhoneNumber{}, fmt.Errorf("invalid phone number format: %s", number)
	}
	return PhoneNumber{number: cleaned}, nil
}

// MustNewPhoneNumber creates a PhoneNumber and panics on error (for tests).
func MustNewPhoneNumber(number string) PhoneNumber {
	phone, err := NewPhoneNumber(number)
	if err != nil {
		panic(err)
	}
	return phone
}

// String returns the number in E.164 format.
func (p PhoneNumber) String() string {
	return p.number
}

// IsEmpty checks if the phone number is empty.
func (p PhoneNumber) IsEmpty() bool {
	return p.number == ""
}

// Equal checks if two PhoneNumber values are equal.
func (p PhoneNumber) Equal(other PhoneNumber) bool {
	return p.number == other.number
}

// MarshalJSON implements JSON marshaling.
func (p PhoneNumber) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.number)
}

// UnmarshalJSON implements JSON unmarshaling.
func (p *PhoneNumber) UnmarshalJSON(data []byte) error {
	var number string
	if err := json.Unmarshal(data, &number); err != nil {
		return err
	}
	if number == "" {
		*p = PhoneNumber{}
		return nil
	}
	phone, err := NewPhoneNumber(number)
	if err != nil {
		return err
	}
	*p = phone
	return nil
}

// Value implements driver.Valuer for database storage.
func (p PhoneNumber) Value() (driver.Value, error) {
	if p.number == "" {
		return nil, nil
	}
	return p.number, nil
}

// Scan implements sql.Scanner for database retrieval.
func (p *PhoneNumber) Scan(value interface{}) error {
	if value == nil {
		*p = PhoneNumber{}
		return nil
	}

	var str string
	switch v := value.(type) {
	case string:
		str = v
	case []byte:
		str = string(v)
	default:
		return fmt.Errorf("cannot scan %T into PhoneNumber", value)
	}

	if str == "" {
		*p = PhoneNumber{}
		return nil
	}
	phone, err := NewPhoneNumber(str)
	if err != nil {
		return err
	}
	*p = phone
	return nil
}

func cleanPhoneNumber(number string) string {
	var b strings.Builder
	for _, char := range number {
		if char >= '0' && char <= '9' || char == '+' {
			b.WriteRune(char)
		}
	}
	return b.String()
}
