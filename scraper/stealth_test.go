package scraper

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStealthProfile_Script(t *testing.T) {
	p := DefaultStealthProfile()
	js := p.Script()

	assert.True(t, strings.HasPrefix(js, "(() => {"))
	assert.Contains(t, js, `define('webdriver', () => undefined)`)
	assert.Contains(t, js, `["ru-RU","ru","en-US","en"]`)
	assert.Contains(t, js, `"Win32"`)
	assert.Contains(t, js, `"Chrome PDF Viewer"`)
	assert.Contains(t, js, "Notification.permission")
	assert.NotContains(t, js, "%!", "all format verbs are filled")
}

func TestStealthProfile_ScriptEscapesValues(t *testing.T) {
	p := StealthProfile{Platform: `Linux"; alert(1); "`, Languages: []string{"en"}}
	js := p.Script()

	assert.Contains(t, js, `"Linux\"; alert(1); \""`)
	assert.Contains(t, js, "const plugins = null || [];")
}

func TestStealthProfile_Headers(t *testing.T) {
	h := DefaultStealthProfile().Headers()

	assert.Len(t, h, 2)
	assert.Equal(t, "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7", h["Accept-Language"].Str())
	assert.Equal(t, "gzip, deflate, br", h["Accept-Encoding"].Str())

	assert.Empty(t, StealthProfile{}.Headers())
}

func TestDefaultStealthProfile_IsVersioned(t *testing.T) {
	p := DefaultStealthProfile()
	assert.NotEmpty(t, p.Version)
	assert.Contains(t, p.UserAgent, "Chrome/")
	assert.NotContains(t, p.UserAgent, "Headless")
}
