package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalServiceKey(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want string
	}{
		{"WhatsApp", "whatsapp"},
		{"whatsapp", "whatsapp"},
		{"wa", "whatsapp"},
		{"Whats App", "whatsapp"},
		{"tg", "telegram"},
		{"Telegram Messenger", "telegram"},
		{"fb", "facebook"},
		{"Facebook Messenger", "facebook"},
		{"Insta", "instagram"},
		{"ig", "instagram"},
		{"GO", "google"},
		{"Gmail", "google"},
		{"YouTube", "google"},
		{"tw", "twitter"},
		{"oi", "tinder"},
		{"bw", "signal"},
		// Unknown services pass through collapsed and trimmed.
		{"  Some   Unknown App ", "Some Unknown App"},
		{"PayPal", "PayPal"},
		{"", ""},
		{"   ", ""},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, CanonicalServiceKey(tc.raw), "raw=%q", tc.raw)
	}
}

func TestFallbackKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "whatsapp business", FallbackKey("  WhatsApp  Business "))
	assert.Equal(t, "telegram", FallbackKey("Telegram"))
	assert.Equal(t, "", FallbackKey("   "))
}
