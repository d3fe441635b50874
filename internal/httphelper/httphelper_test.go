package httphelper

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONRequest(t *testing.T) {
	req, err := NewJSONRequest(context.Background(), http.MethodPatch, "http://example.com/x", struct {
		Content string `json:"content"`
		Proxy   bool   `json:"proxy"`
	}{"198.51.100.7", true})
	require.NoError(t, err)
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

	body, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"content":"198.51.100.7","proxy":true}`, string(body))
}

func TestReadBody(t *testing.T) {
	resp := &http.Response{Body: io.NopCloser(strings.NewReader("hello")), ContentLength: -1}
	body, err := ReadBody(resp)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
}

func TestIsSuccess(t *testing.T) {
	assert.True(t, IsSuccess(http.StatusOK))
	assert.True(t, IsSuccess(http.StatusNoContent))
	assert.False(t, IsSuccess(http.StatusMultipleChoices))
	assert.False(t, IsSuccess(http.StatusForbidden))
}
