package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, reply string, seen *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		json.NewEncoder(w).Encode(map[string]any{
			"model":   "test",
			"message": map[string]any{"role": "assistant", "content": reply},
			"done":    true,
		})
	}))
}

func TestAnalyzeImage(t *testing.T) {
	var seen map[string]any
	srv := newTestServer(t, "```json\n{\"primary\":{\"label\":\"cat\",\"confidence\":0.7}}\n```", &seen)
	defer srv.Close()

	c, err := NewClientWithHTTP(srv.URL+"/api/chat", srv.Client())
	require.NoError(t, err)

	img := base64.StdEncoding.EncodeToString([]byte("fake image bytes"))
	res, err := c.AnalyzeImage(context.Background(), "minicpm-v4.5", "find it", img)
	require.NoError(t, err)
	assert.Equal(t, "cat", res.Primary.Label)

	assert.Equal(t, "minicpm-v4.5", seen["model"])
	assert.Equal(t, false, seen["stream"])
	opts, ok := seen["options"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 4096.0, opts["num_ctx"])
}

func TestSimpleQuery(t *testing.T) {
	srv := newTestServer(t, "A red square.", nil)
	defer srv.Close()

	c, err := NewClientWithHTTP(srv.URL, srv.Client())
	require.NoError(t, err)

	out, err := c.SimpleQuery(context.Background(), "llava", "what is this?", "")
	require.NoError(t, err)
	assert.Equal(t, "A red square.", out)
}

func TestAnalyzeImageRejectsBadInput(t *testing.T) {
	srv := newTestServer(t, "", nil)
	defer srv.Close()

	c, err := NewClientWithHTTP(srv.URL, srv.Client())
	require.NoError(t, err)

	_, err = c.AnalyzeImage(context.Background(), "llava", "p", "%%%not-base64")
	assert.ErrorContains(t, err, "base64")

	_, err = c.AnalyzeImage(context.Background(), "llava", "p", "")
	assert.ErrorContains(t, err, "empty response")
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("localhost")
	assert.Error(t, err)
}

func TestModelOptions(t *testing.T) {
	assert.Nil(t, modelOptions("llava:13b"))
	assert.NotNil(t, modelOptions("openbmb/MiniCPM-V-4"))
}
