package theme

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"buildwatch/internal/domain"
)

func TestWantsASCII(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want bool
	}{
		{"empty env", nil, false},
		{"forced", map[string]string{"BUILDWATCH_ASCII_SYMBOLS": "true", "LANG": "en_US.UTF-8"}, true},
		{"dumb terminal", map[string]string{"TERM": "dumb"}, true},
		{"utf8 lang", map[string]string{"LANG": "en_US.utf8"}, false},
		{"latin1 lang", map[string]string{"LANG": "de_DE.ISO-8859-1"}, true},
		{"lc_all wins", map[string]string{"LC_ALL": "C.UTF-8", "LANG": "C"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wantsASCII(func(k string) string { return tt.env[k] })
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUseASCII(t *testing.T) {
	t.Cleanup(func() { UseASCII(false) })

	UseASCII(true)
	assert.Equal(t, "[OK]", SymbolSuccess)
	assert.Equal(t, "...", SymbolEllipsis)

	UseASCII(false)
	assert.Equal(t, "✓", SymbolSuccess)
	assert.Equal(t, "•", SymbolBullet)
}

func TestBarColorAndClamp(t *testing.T) {
	assert.Equal(t, BarSuccess, BarColor(domain.ProgressSuccess))
	assert.Equal(t, BarFailure, BarColor(domain.ProgressFailure))
	assert.Equal(t, BarInfo, BarColor(domain.ProgressNone))
	assert.Equal(t, 0, Clamp(-3, 0, 10))
	assert.Equal(t, 10, Clamp(42, 0, 10))
	assert.Equal(t, 5, Clamp(5, 0, 10))
}
