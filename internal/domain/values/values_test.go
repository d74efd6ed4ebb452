package values

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPhoneNumber(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"e164 passthrough", "+254712345678", "+254712345678", false},
		{"spaces and dashes stripped", "+254 712-345-678", "+254712345678", false},
		{"missing plus added", "254712345678", "+254712345678", false},
		{"empty", "", "", true},
		{"letters", "+2547abc45678", "", true},
		{"too long", "+1234567890123456789", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			phone, err := NewPhoneNumber(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, phone.String())
		})
	}
}

func TestPhoneNumberEqual(t *testing.T) {
	a := MustNewPhoneNumber("+254 712 345 678")
	b := MustNewPhoneNumber("254712345678")
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(MustNewPhoneNumber("+254712345679")))
}

func TestNewPrice(t *testing.T) {
	p := MustNewPrice("1500000.50", "KES")
	assert.Equal(t, "KES", p.Currency())
	assert.Equal(t, "1500000.5", p.Amount().String())

	_, err := NewPriceFromFloat(-1, "USD")
	require.Error(t, err)

	_, err = NewPriceFromFloat(100, "DOLLARS")
	require.Error(t, err)

	p, err = NewPriceFromFloat(100, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultCurrency, p.Currency())
}

func TestPricePerSquareMeter(t *testing.T) {
	p := MustNewPrice("50000", "USD")
	assert.Equal(t, "5", p.PerSquareMeter(10000).String())
	assert.True(t, p.PerSquareMeter(0).IsZero())
	assert.True(t, p.PerSquareMeter(-3).IsZero())
}

func TestPriceJSONRoundTrip(t *testing.T) {
	p := MustNewPrice("123456.78", "EUR")

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var back Price
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, p.Amount().Equal(back.Amount()))
	assert.Equal(t, p.Currency(), back.Currency())
}
