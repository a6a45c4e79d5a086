// Package i18n localises the help texts and log messages of poautofill.
//
// Catalogs are embedded from locales/<lang>/LC_MESSAGES/poautofill.po and
// read through gotext. Until Init is called, T and N return their source
// strings, so packages may call them at any time.
package i18n

import (
	"embed"
	"os"
	"strings"

	"github.com/leonelquinteros/gotext"
)

//go:embed all:locales
var locales embed.FS

const (
	domain     = "poautofill"
	localesDir = "locales"
	fallback   = "en"
)

var current *gotext.Locale

// Init loads the catalog for language, or for the language named by the
// environment when language is empty.
func Init(language string) {
	if language == "" {
		language = detectLanguage()
	}

	current = gotext.NewLocaleFSWithPath(language, locales, localesDir)
	current.AddDomain(domain)
	current.SetDomain(domain)
}

// T returns the translation of msgid, or msgid itself.
func T(msgid string) string {
	if current == nil {
		return msgid
	}
	return current.Get(msgid)
}

// N returns the plural form of singular/plural matching n.
func N(singular, plural string, n int) string {
	if current == nil {
		if n == 1 {
			return singular
		}
		return plural
	}
	return current.GetN(singular, plural, n)
}

// detectLanguage follows the GNU gettext lookup order: LANGUAGE, LC_ALL,
// LC_MESSAGES, LANG. The C and POSIX locales mean no translation.
func detectLanguage() string {
	for _, name := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		value := os.Getenv(name)
		if name == "LANGUAGE" {
			value, _, _ = strings.Cut(value, ":")
		}
		value, _, _ = strings.Cut(value, ".")
		value, _, _ = strings.Cut(value, "@")
		switch value {
		case "", "C", "POSIX":
			continue
		}
		return value
	}
	return fallback
}
