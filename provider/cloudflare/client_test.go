package cloudflare

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/database64128/dyns-go/provider"
	"github.com/database64128/dyns-go/provider/cloudflare/cloudflaretest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCredentials = Credentials{
	Email:   "me@example.com",
	AuthKey: "auth-key",
	Token:   "api-token",
}

func newTestClient(t *testing.T) (*Client, *cloudflaretest.Server) {
	t.Helper()
	srv := cloudflaretest.NewServer()
	t.Cleanup(srv.Close)
	return NewClient(srv.Client(), srv.BaseURL(), testCredentials), srv
}

func TestResolveRecordID(t *testing.T) {
	client, srv := newTestClient(t)
	srv.Zones["zone1"] = []cloudflaretest.Record{
		{ID: "a1", Name: "x.example.com"},
		{ID: "a2", Name: "y.example.com"},
	}

	id, err := client.ResolveRecordID(context.Background(), "zone1", "y.example.com")
	require.NoError(t, err)
	assert.Equal(t, "a2", id)

	_, err = client.ResolveRecordID(context.Background(), "zone1", "z.example.com")
	assert.ErrorIs(t, err, provider.ErrRecordNotFound)

	lists := srv.ListRequests()
	require.Len(t, lists, 2)
	assert.Equal(t, "me@example.com", lists[0].Header.Get("X-Auth-Email"))
	assert.Equal(t, "auth-key", lists[0].Header.Get("X-Auth-Key"))
	assert.Empty(t, lists[0].Header.Get("Authorization"))
}

func TestResolveRecordIDExactMatch(t *testing.T) {
	client, srv := newTestClient(t)
	srv.Zones["zone1"] = []cloudflaretest.Record{
		{ID: "upper", Name: "Home.example.com"},
		{ID: "first", Name: "home.example.com"},
		{ID: "second", Name: "home.example.com"},
	}

	id, err := client.ResolveRecordID(context.Background(), "zone1", "home.example.com")
	require.NoError(t, err)
	assert.Equal(t, "first", id)
}

func TestResolveRecordIDPaginated(t *testing.T) {
	client, srv := newTestClient(t)
	srv.PerPage = 2
	srv.Zones["zone1"] = []cloudflaretest.Record{
		{ID: "r1", Name: "a.example.com"},
		{ID: "r2", Name: "b.example.com"},
		{ID: "r3", Name: "c.example.com"},
		{ID: "r4", Name: "d.example.com"},
		{ID: "r5", Name: "e.example.com"},
	}

	id, err := client.ResolveRecordID(context.Background(), "zone1", "e.example.com")
	require.NoError(t, err)
	assert.Equal(t, "r5", id)
	assert.Len(t, srv.ListRequests(), 3)

	_, err = client.ResolveRecordID(context.Background(), "zone1", "f.example.com")
	assert.ErrorIs(t, err, provider.ErrRecordNotFound)
	assert.Len(t, srv.ListRequests(), 6)
}

func TestResolveRecordIDEnvelopeFailure(t *testing.T) {
	client, srv := newTestClient(t)
	srv.ListErrors = []string{"bad auth"}

	_, err := client.ResolveRecordID(context.Background(), "zone1", "home.example.com")
	require.ErrorIs(t, err, provider.ErrAPIResponseFailure)

	var apiErr *provider.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, []string{"bad auth"}, apiErr.Messages)
	assert.Empty(t, srv.Patches())
}

func TestResolveRecordIDStructuredErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"success":false,"errors":[{"code":10000,"message":"Authentication error"}],"messages":[],"result":null}`)
	}))
	defer srv.Close()
	client := NewClient(srv.Client(), srv.URL, testCredentials)

	_, err := client.ResolveRecordID(context.Background(), "zone1", "home.example.com")

	var apiErr *provider.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, []string{"Authentication error"}, apiErr.Messages)
}

func TestResolveRecordIDMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html>not json</html>`)
	}))
	defer srv.Close()
	client := NewClient(srv.Client(), srv.URL, testCredentials)

	_, err := client.ResolveRecordID(context.Background(), "zone1", "home.example.com")
	assert.ErrorIs(t, err, provider.ErrResponse)
}

func TestResolveRecordIDNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	client := NewClient(nil, url, testCredentials)

	_, err := client.ResolveRecordID(context.Background(), "zone1", "home.example.com")
	assert.ErrorIs(t, err, provider.ErrNetwork)
}

func TestUpdateDNSRecord(t *testing.T) {
	client, srv := newTestClient(t)

	err := client.UpdateDNSRecord(context.Background(), "zone1", "rec1", &UpdateDNSRecordRequest{
		Content: "198.51.100.7",
		Proxy:   true,
	})
	require.NoError(t, err)

	patches := srv.Patches()
	require.Len(t, patches, 1)
	p := patches[0]
	assert.Equal(t, "zone1", p.ZoneID)
	assert.Equal(t, "rec1", p.RecordID)
	assert.Equal(t, "198.51.100.7", p.Content)
	assert.True(t, p.Proxy)
	assert.Equal(t, "me@example.com", p.Header.Get("X-Auth-Email"))
	assert.Equal(t, "auth-key", p.Header.Get("X-Auth-Key"))
	assert.Equal(t, "Bearer api-token", p.Header.Get("Authorization"))
	assert.Equal(t, "application/json", p.Header.Get("Content-Type"))
}

func TestUpdateDNSRecordBody(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/zones/zone1/dns_records/rec1", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	}))
	defer srv.Close()
	client := NewClient(srv.Client(), srv.URL, testCredentials)

	err := client.UpdateDNSRecord(context.Background(), "zone1", "rec1", &UpdateDNSRecordRequest{Content: "192.0.2.1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"content": "192.0.2.1", "proxy": false}, body)
}

func TestUpdateDNSRecordEnvelopeFailure(t *testing.T) {
	client, srv := newTestClient(t)
	srv.PatchFailures["rec1"] = "rate limited"

	err := client.UpdateDNSRecord(context.Background(), "zone1", "rec1", &UpdateDNSRecordRequest{Content: "192.0.2.1"})

	var apiErr *provider.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, []string{"rate limited"}, apiErr.Messages)
}

func TestUpdateDNSRecordSuccessStatusOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	client := NewClient(srv.Client(), srv.URL, testCredentials)

	err := client.UpdateDNSRecord(context.Background(), "zone1", "rec1", &UpdateDNSRecordRequest{Content: "192.0.2.1"})
	assert.NoError(t, err)
}

func TestResponseInfoUnmarshal(t *testing.T) {
	var infos []ResponseInfo
	require.NoError(t, json.Unmarshal([]byte(`["plain",{"code":9109,"message":"structured"}]`), &infos))
	assert.Equal(t, []ResponseInfo{
		{Message: "plain"},
		{Code: 9109, Message: "structured"},
	}, infos)
}
