package theme

import (
	"os"
	"strings"
)

// Glyphs used across the watch screen. UseASCII swaps them for terminals
// without Unicode fonts.
var (
	SymbolSuccess  = "✓"
	SymbolError    = "✗"
	SymbolBullet   = "•"
	SymbolEllipsis = "…"
)

// UseASCII selects plain ASCII glyphs, or restores the Unicode ones.
func UseASCII(ascii bool) {
	if ascii {
		SymbolSuccess, SymbolError, SymbolBullet, SymbolEllipsis = "[OK]", "[ERR]", "*", "..."
		return
	}
	SymbolSuccess, SymbolError, SymbolBullet, SymbolEllipsis = "✓", "✗", "•", "…"
}

// wantsASCII reports whether the environment asks for ASCII glyphs:
// BUILDWATCH_ASCII_SYMBOLS is truthy, TERM is dumb, or the locale names a
// non UTF-8 charset.
func wantsASCII(getenv func(string) string) bool {
	switch strings.ToLower(getenv("BUILDWATCH_ASCII_SYMBOLS")) {
	case "1", "true", "yes":
		return true
	}
	if getenv("TERM") == "dumb" {
		return true
	}
	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		v := strings.ToLower(getenv(key))
		if v == "" {
			continue
		}
		return !strings.Contains(v, "utf-8") && !strings.Contains(v, "utf8")
	}
	return false
}

func init() {
	UseASCII(wantsASCII(os.Getenv))
}
