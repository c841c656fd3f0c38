package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValid(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"agent@example.co.uk", true},
		{"first.last+tax@example.com", true},
		{"", false},
		{"no-at-sign", false},
		{"Jo <jo@example.com>", false},
		{"jo@localhost", false},
		{"jo@example.", false},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.want, Valid(tt.addr))
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "Jo.Bloggs@example.com", Normalize("  Jo.Bloggs@EXAMPLE.com "))
	assert.Equal(t, "plain", Normalize("plain"))
}
