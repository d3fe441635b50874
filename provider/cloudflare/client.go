package cloudflare

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/database64128/dyns-go/internal/httphelper"
	"github.com/database64128/dyns-go/provider"
	"github.com/samber/lo"
)

const (
	// DefaultBaseURL is the Cloudflare API v4 base URL.
	DefaultBaseURL = "https://api.cloudflare.com/client/v4"
)

// Credentials authenticate requests to the Cloudflare API.
type Credentials struct {
	// Email is the account email, sent as X-Auth-Email.
	Email string

	// AuthKey is the global API key, sent as X-Auth-Key.
	AuthKey string

	// Token is the API token, sent as a bearer Authorization header on updates.
	Token string
}

// Client is a Cloudflare API client for managing DNS records.
type Client struct {
	client              *http.Client
	baseURL             string
	email               string
	authKey             string
	authorizationHeader string
}

// NewClient creates a new [Client].
//
//   - If client is nil, [http.DefaultClient] is used.
//   - If baseURL is empty, it defaults to [DefaultBaseURL].
func NewClient(client *http.Client, baseURL string, creds Credentials) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		client:              client,
		baseURL:             baseURL,
		email:               creds.Email,
		authKey:             creds.AuthKey,
		authorizationHeader: "Bearer " + creds.Token,
	}
}

// ListDNSRecords lists one page of DNS records in a zone.
// Page numbers start at 1. A zero page requests the provider's default page.
func (c *Client) ListDNSRecords(ctx context.Context, zoneID string, page int) ([]DNSRecord, ResultInfo, error) {
	u, err := url.JoinPath(c.baseURL, "zones", zoneID, "dns_records")
	if err != nil {
		return nil, ResultInfo{}, fmt.Errorf("failed to build URL: %w", err)
	}
	if page > 0 {
		u += "?" + url.Values{"page": {strconv.Itoa(page)}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, ResultInfo{}, fmt.Errorf("failed to create request: %w", err)
	}

	response, err := clientDo[[]DNSRecord](c, req, true)
	if err != nil {
		return nil, ResultInfo{}, err
	}
	return response.Result, response.ResultInfo, nil
}

// ResolveRecordID returns the ID of the first DNS record in the zone
// whose name is exactly name.
//
// Every call fetches the record list from the API. If the response spans
// multiple pages, they are walked in order until a match is found.
// The returned error wraps [provider.ErrRecordNotFound] if there is no match.
func (c *Client) ResolveRecordID(ctx context.Context, zoneID, name string) (string, error) {
	for page := 0; ; {
		records, info, err := c.ListDNSRecords(ctx, zoneID, page)
		if err != nil {
			return "", fmt.Errorf("failed to list DNS records: %w", err)
		}

		if record, ok := lo.Find(records, func(r DNSRecord) bool {
			return r.Name == name
		}); ok {
			return record.ID, nil
		}

		current := max(page, info.Page, 1)
		if current >= info.TotalPages {
			return "", fmt.Errorf("%w: no record named %q in zone %q", provider.ErrRecordNotFound, name, zoneID)
		}
		page = current + 1
	}
}

// UpdateDNSRecord updates the content and proxy flag of a DNS record in a zone.
func (c *Client) UpdateDNSRecord(ctx context.Context, zoneID, recordID string, req *UpdateDNSRecordRequest) error {
	u, err := url.JoinPath(c.baseURL, "zones", zoneID, "dns_records", recordID)
	if err != nil {
		return fmt.Errorf("failed to build URL: %w", err)
	}

	httpReq, err := httphelper.NewJSONRequest(ctx, http.MethodPatch, u, req)
	if err != nil {
		return err
	}
	httpReq.Header["Authorization"] = []string{c.authorizationHeader}

	_, err = clientDo[json.RawMessage](c, httpReq, false)
	return err
}

// UpdateDNSRecordRequest is the request body for updating a DNS record.
type UpdateDNSRecordRequest struct {
	Content string `json:"content"`
	Proxy   bool   `json:"proxy"`
}

// DNSRecord represents a DNS record in a zone.
type DNSRecord struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"`
	Content string `json:"content,omitempty"`
	Proxied bool   `json:"proxied,omitempty"`
}

// clientDo sends the request with the account headers and decodes the response envelope.
//
// If requireEnvelope is false, a 2xx response without a "success" field
// (including an empty or non-JSON body) is accepted as is.
func clientDo[R any](c *Client, req *http.Request, requireEnvelope bool) (response Response[R], err error) {
	req.Header["X-Auth-Email"] = []string{c.email}
	req.Header["X-Auth-Key"] = []string{c.authKey}

	resp, err := c.client.Do(req)
	if err != nil {
		return response, fmt.Errorf("%w: failed to send request: %w", provider.ErrNetwork, err)
	}

	body, err := httphelper.ReadBody(resp)
	if err != nil {
		return response, fmt.Errorf("%w: failed to read response: %w", provider.ErrNetwork, err)
	}

	if !requireEnvelope && httphelper.IsSuccess(resp.StatusCode) && !hasSuccessField(body) {
		return response, nil
	}

	if err = json.Unmarshal(body, &response); err != nil {
		if !httphelper.IsSuccess(resp.StatusCode) {
			return response, &provider.APIError{
				StatusCode: resp.StatusCode,
				Messages:   []string{fmt.Sprintf("unexpected status code %d: %q", resp.StatusCode, body)},
			}
		}
		return response, fmt.Errorf("%w: failed to unmarshal response: %w", provider.ErrResponse, err)
	}

	if !response.Success || !httphelper.IsSuccess(resp.StatusCode) {
		return response, &provider.APIError{
			StatusCode: resp.StatusCode,
			Messages:   response.errorMessages(),
		}
	}

	return response, nil
}

// hasSuccessField returns whether body is a JSON object carrying a "success" field.
func hasSuccessField(body []byte) bool {
	var probe struct {
		Success *bool `json:"success"`
	}
	return json.Unmarshal(body, &probe) == nil && probe.Success != nil
}

// Response is a generic response from the Cloudflare API.
type Response[R any] struct {
	Success    bool           `json:"success"`
	Errors     []ResponseInfo `json:"errors"`
	Messages   []ResponseInfo `json:"messages"`
	Result     R              `json:"result"`
	ResultInfo ResultInfo     `json:"result_info"`
}

func (r *Response[R]) errorMessages() []string {
	return lo.Map(r.Errors, func(info ResponseInfo, _ int) string {
		return info.Message
	})
}

// ResponseInfo contains a code and message returned by the API as errors or
// informational messages inside the response.
//
// It also accepts a bare JSON string, which is taken as the message.
type ResponseInfo struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// UnmarshalJSON implements [json.Unmarshaler].
func (i *ResponseInfo) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		*i = ResponseInfo{}
		return json.Unmarshal(b, &i.Message)
	}
	type plain ResponseInfo
	return json.Unmarshal(b, (*plain)(i))
}

// ResultInfo contains metadata about the [Response].
type ResultInfo struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalPages int `json:"total_pages"`
	Count      int `json:"count"`
	Total      int `json:"total_count"`
}
