package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeLike(t *testing.T) {
	cases := map[string]string{
		"0812":      "0812",
		"%":         `\%`,
		"_":         `\_`,
		`a\b`:       `a\\b`,
		`50%_off\`:  `50\%\_off\\`,
		"Jl. Braga": "Jl. Braga",
	}
	for in, want := range cases {
		assert.Equal(t, want, escapeLike(in), in)
	}
}
