package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestMatchLanguage(t *testing.T) {
	tests := []struct {
		accept   string
		expected language.Tag
	}{
		{"en-US,en;q=0.9", language.English},
		{"de-DE,de;q=0.9", language.German},
		{"fr-FR", language.English},
		{"", language.English},
	}

	for _, tt := range tests {
		got := MatchLanguage(tt.accept)
		base, _ := got.Base()
		exp, _ := tt.expected.Base()
		assert.Equal(t, exp, base, "Accept: %s", tt.accept)
	}
}

func TestMiddleware(t *testing.T) {
	var got string
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = Translate(r.Context(), MsgInvalidInterface)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Accept-Language", "de")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "Ungültiger Schnittstellenname", got)

	req = httptest.NewRequest("GET", "/", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, MsgInvalidInterface, got)
}

func TestTranslate(t *testing.T) {
	ctx := WithPrinter(context.Background(), NewPrinter(language.German))
	assert.Equal(t, "PPPoE-ISP2 bevorzugt", Translate(ctx, MsgPreferred, "PPPoE-ISP2"))
	assert.Equal(t, "Preferred PPPoE-ISP2", Translate(context.Background(), MsgPreferred, "PPPoE-ISP2"))
	assert.Equal(t, "router unreachable", Translate(ctx, "router unreachable"))
}

func TestNewCLIPrinter(t *testing.T) {
	t.Setenv("LC_ALL", "de_DE.UTF-8")
	assert.Equal(t, "Gastnetz deaktiviert", NewCLIPrinter().Sprintf(MsgGuestDisabled))

	t.Setenv("LC_ALL", "C")
	assert.Equal(t, MsgGuestDisabled, NewCLIPrinter().Sprintf(MsgGuestDisabled))
}
