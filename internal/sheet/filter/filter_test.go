package filter

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var exerciseKeys = []string{"title", "text"}

func TestExtractDropsUnknownKeys(t *testing.T) {
	f, err := Extract(strings.NewReader(`{"title":"t","text":"x","evil":"y"}`), exerciseKeys, 4096)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"title", "text"}, f.Keys())
	assert.NotContains(t, f, "evil")

	var in struct {
		Title string `json:"title"`
		Text  string `json:"text"`
	}
	require.NoError(t, f.Decode(&in))
	assert.Equal(t, "t", in.Title)
	assert.Equal(t, "x", in.Text)
}

func TestExtractMissingField(t *testing.T) {
	_, err := Extract(strings.NewReader(`{"title":"t"}`), exerciseKeys, 4096)
	var missing *MissingFieldError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "text", missing.Field)
	assert.Equal(t, "Missing 'text' field.", err.Error())

	// first missing key in whitelist order is reported
	_, err = Extract(strings.NewReader(`{}`), exerciseKeys, 4096)
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "title", missing.Field)
}

func TestExtractSizeLimit(t *testing.T) {
	body := `{"title":"t","text":"` + strings.Repeat("a", 100) + `"}`

	_, err := Extract(strings.NewReader(body), exerciseKeys, int64(len(body)))
	require.NoError(t, err, "a body of exactly maxSize bytes is accepted")

	_, err = Extract(strings.NewReader(body), exerciseKeys, int64(len(body)-1))
	require.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestExtractMalformed(t *testing.T) {
	for _, body := range []string{``, `{"title":`, `[1,2]`, `null`, `"str"`} {
		_, err := Extract(strings.NewReader(body), exerciseKeys, 4096)
		require.ErrorIs(t, err, ErrMalformed, "body %q", body)
	}
}

func TestDecodeWrongType(t *testing.T) {
	f, err := Extract(strings.NewReader(`{"title":"t","content":["a"]}`), []string{"title", "content"}, 4096)
	require.NoError(t, err)
	var in struct {
		Title   string `json:"title"`
		Content []int  `json:"content"`
	}
	require.ErrorIs(t, f.Decode(&in), ErrInvalidType)
}
