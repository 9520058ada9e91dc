package oauth

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/pcloud-go/internal/credstore"
)

func runTerminal(t *testing.T, input string, open func(string) error) (Result, string, *credstore.MemoryStore) {
	t.Helper()

	var out bytes.Buffer

	store := &credstore.MemoryStore{}
	view := NewTerminalView(strings.NewReader(input), &out, open, nil)
	f := NewFlow(testClientID, view, SaveTo(store), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r, err := f.Run(ctx)
	require.NoError(t, err)

	return r, out.String(), store
}

func TestTerminalView_PastedRedirect(t *testing.T) {
	input := strings.Join([]string{
		"::not a url",
		"https://example.com/somewhere",
		redirect + "#access_token=TOK&userid=77",
		"never read",
	}, "\n")

	var opened string

	r, out, store := runTerminal(t, input, func(u string) error {
		opened = u
		return nil
	})

	assert.Equal(t, Success{Token: "TOK", UserID: 77}, r)
	assert.Equal(t, AuthorizeURL(testClientID), opened)
	assert.Contains(t, out, "not a valid address")
	assert.Contains(t, out, "not the redirect address")

	tok, err := store.Get("77")
	require.NoError(t, err)
	assert.Equal(t, "TOK", tok)
}

func TestTerminalView_EmptyLineCancels(t *testing.T) {
	r, _, store := runTerminal(t, "\n"+redirect+"#access_token=TOK&userid=1\n", nil)

	assert.Equal(t, Cancel{}, r)

	keys, err := store.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestTerminalView_EOFCancels(t *testing.T) {
	r, _, _ := runTerminal(t, "https://example.com/\n", nil)
	assert.Equal(t, Cancel{}, r)
}

func TestTerminalView_PrintsURLWhenBrowserFails(t *testing.T) {
	_, out, _ := runTerminal(t, "", func(string) error { return errors.New("no browser") })

	assert.Contains(t, out, AuthorizeURL(testClientID))
}

func TestTerminalView_PrintsURLWithoutOpener(t *testing.T) {
	_, out, _ := runTerminal(t, "", nil)

	assert.Contains(t, out, "Open this URL in your browser")
}

func TestTerminalView_RedirectError(t *testing.T) {
	r, _, _ := runTerminal(t, redirect+"#error=access_denied\n", nil)
	assert.Equal(t, Failure{Code: CodeAccessDenied}, r)
}
