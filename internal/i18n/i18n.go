// Package i18n localizes the user-facing strings of the API envelope and
// the CLI.
package i18n

import (
	"context"
	"os"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultLang is the fallback language
var DefaultLang = language.English

// SupportedLangs are the languages we support
var SupportedLangs = []language.Tag{
	language.English,
	language.German,
}

var matcher = language.NewMatcher(SupportedLangs)

// Message keys shared by the API, the TUI and the CLI.
const (
	MsgInvalidInterface = "Invalid Interface Name"
	MsgGuestDisabled    = "Guest network disabled"
	MsgServerError      = "Server Error"
	MsgNoDefaultRoute   = "No default route"
	MsgPreferred        = "Preferred %s"
	MsgRefreshed        = "Refreshed %s"
	MsgPasswordReset    = "Guest password reset"
	MsgUsage            = "Usage: %s <command> [flags]"
	MsgUnknownCommand   = "Unknown command: %s"
	MsgConfigValid      = "Configuration is valid"
	MsgRateLimited      = "Too many requests, retry in %d seconds"
)

func init() {
	de := language.German
	for key, msg := range map[string]string{
		MsgInvalidInterface: "Ungültiger Schnittstellenname",
		MsgGuestDisabled:    "Gastnetz deaktiviert",
		MsgServerError:      "Serverfehler",
		MsgNoDefaultRoute:   "Keine Standardroute",
		MsgPreferred:        "%s bevorzugt",
		MsgRefreshed:        "%s neu verbunden",
		MsgPasswordReset:    "Gastpasswort zurückgesetzt",
		MsgUsage:            "Aufruf: %s <Befehl> [Optionen]",
		MsgUnknownCommand:   "Unbekannter Befehl: %s",
		MsgConfigValid:      "Konfiguration ist gültig",
		MsgRateLimited:      "Zu viele Anfragen, erneut versuchen in %d Sekunden",
	} {
		message.SetString(de, key, msg)
	}
}

type contextKey struct{}

// printerKey is the key used to store the printer in the context
var printerKey = contextKey{}

// MatchLanguage returns the best matching language for the given tags
func MatchLanguage(acceptLang string) language.Tag {
	tags, _, _ := language.ParseAcceptLanguage(acceptLang)
	tag, _, _ := matcher.Match(tags...)
	return tag
}

// NewPrinter returns a message printer for the given language
func NewPrinter(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag)
}

// WithPrinter returns a new context with the printer injected
func WithPrinter(ctx context.Context, p *message.Printer) context.Context {
	return context.WithValue(ctx, printerKey, p)
}

// GetPrinter returns the printer from the context, or a default one
func GetPrinter(ctx context.Context) *message.Printer {
	p, ok := ctx.Value(printerKey).(*message.Printer)
	if !ok {
		return message.NewPrinter(DefaultLang)
	}
	return p
}

// Translate renders key with the printer stored in ctx. Unknown keys are
// returned unchanged.
func Translate(ctx context.Context, key string, args ...any) string {
	return GetPrinter(ctx).Sprintf(key, args...)
}

// NewCLIPrinter returns a printer for the system's locale (from env vars)
func NewCLIPrinter() *message.Printer {
	lang := os.Getenv("LC_ALL")
	if lang == "" {
		lang = os.Getenv("LANG")
	}
	if lang == "" || lang == "C" || lang == "POSIX" {
		return message.NewPrinter(DefaultLang)
	}

	// Strip encoding, e.g. "de_DE.UTF-8".
	if i := strings.Index(lang, "."); i != -1 {
		lang = lang[:i]
	}
	lang = strings.ReplaceAll(lang, "_", "-")

	tag, err := language.Parse(lang)
	if err != nil {
		tag = MatchLanguage(lang)
	} else {
		tag, _, _ = matcher.Match(tag)
	}

	return message.NewPrinter(tag)
}
