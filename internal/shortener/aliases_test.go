package shortener

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResult_Aliases(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Result
	}{
		{
			name: "camel case",
			body: `{"shortUrl":"https://s/1","redirectUrl":"https://o/1","totalClicks":4}`,
			want: Result{ShortURL: "https://s/1", OriginalURL: "https://o/1", TotalClicks: 4},
		},
		{
			name: "upper URL",
			body: `{"shortURL":"https://s/2","originalURL":"https://o/2"}`,
			want: Result{ShortURL: "https://s/2", OriginalURL: "https://o/2"},
		},
		{
			name: "snake case",
			body: `{"short_url":"https://s/3","original_url":"https://o/3","total_clicks":"9"}`,
			want: Result{ShortURL: "https://s/3", OriginalURL: "https://o/3", TotalClicks: 9},
		},
		{
			name: "url fallback and request origin",
			body: `{"url":"https://s/4"}`,
			want: Result{ShortURL: "https://s/4", OriginalURL: "https://req"},
		},
		{
			name: "first non-empty alias wins",
			body: `{"shortUrl":"","shortURL":"https://s/5","url":"https://s/other"}`,
			want: Result{ShortURL: "https://s/5", OriginalURL: "https://req"},
		},
		{
			name: "negative clicks clamp to zero",
			body: `{"shortUrl":"https://s/6","totalClicks":-3}`,
			want: Result{ShortURL: "https://s/6", OriginalURL: "https://req"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResult([]byte(tt.body), "https://req")
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestParseResult_Errors(t *testing.T) {
	_, err := ParseResult([]byte(`not json`), "https://req")
	assert.Error(t, err)

	res, err := ParseResult([]byte(`{"totalClicks":1}`), "https://req")
	assert.ErrorIs(t, err, ErrMissingShortURL)
	assert.Equal(t, "https://req", res.OriginalURL)
}

func TestDecodeDetails(t *testing.T) {
	got, err := decodeDetails([]byte(`[{"path":"url","msg":"bad","value":12},{"path":"custom","msg":"x","value":""},{}]`))
	require.NoError(t, err)
	assert.Equal(t, []FieldError{
		{Path: "url", Msg: "bad", Value: "12"},
		{Path: "custom", Msg: "x"},
	}, got)

	_, err = decodeDetails([]byte(`{"path":"url"}`))
	assert.Error(t, err)
}
