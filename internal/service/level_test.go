package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAllowance(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"positive integer", "10", 10},
		{"one", "1", 1},
		{"zero", "0", 0},
		{"negative", "-3", 0},
		{"empty", "", 0},
		{"non-numeric", "unlimited", 0},
		{"float", "2.5", 0},
		{"whitespace", " 5", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseAllowance(tt.raw))
		})
	}
}
