// Package cloudflaretest provides an in-memory fake of the Cloudflare DNS records API
// for use in tests.
package cloudflaretest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

// Record is a DNS record held by the fake server.
type Record struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Patch is an update request received by the fake server.
type Patch struct {
	ZoneID   string
	RecordID string
	Content  string
	Proxy    bool
	Header   http.Header
}

// ListRequest is a listing request received by the fake server.
type ListRequest struct {
	ZoneID string
	Query  url.Values
	Header http.Header
}

// Server is a fake Cloudflare API server.
//
// Exported fields must not be modified while requests are in flight.
type Server struct {
	*httptest.Server

	mu sync.Mutex

	// Zones maps zone IDs to their records, in listing order.
	Zones map[string][]Record

	// PerPage, if positive, splits record listings into pages of this size.
	PerPage int

	// ListErrors, if not empty, makes listings fail with these errors.
	ListErrors []string

	// PatchFailures maps record IDs to error messages returned when they are patched.
	PatchFailures map[string]string

	// OnPatch, if not nil, is called after a patch has been answered.
	OnPatch func(Patch)

	lists   []ListRequest
	patches []Patch
}

// NewServer starts a new fake server. The caller must call Close when finished.
func NewServer() *Server {
	s := &Server{
		Zones:         make(map[string][]Record),
		PatchFailures: make(map[string]string),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	return s
}

// BaseURL returns the API base URL to configure clients with.
func (s *Server) BaseURL() string {
	return s.URL + "/client/v4"
}

// Patches returns the update requests received so far, in order.
func (s *Server) Patches() []Patch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Patch(nil), s.patches...)
}

// ListRequests returns the listing requests received so far, in order.
func (s *Server) ListRequests() []ListRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ListRequest(nil), s.lists...)
}

type envelope struct {
	Success    bool     `json:"success"`
	Errors     []string `json:"errors"`
	Messages   []string `json:"messages"`
	Result     any      `json:"result"`
	ResultInfo *struct {
		Page       int `json:"page"`
		PerPage    int `json:"per_page"`
		TotalPages int `json:"total_pages"`
	} `json:"result_info,omitempty"`
}

func writeEnvelope(w http.ResponseWriter, status int, env envelope) {
	if env.Errors == nil {
		env.Errors = []string{}
	}
	if env.Messages == nil {
		env.Messages = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	// /client/v4/zones/{zone}/dns_records[/{record}]
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/client/v4/"), "/")
	if len(parts) < 3 || parts[0] != "zones" || parts[2] != "dns_records" {
		http.NotFound(w, r)
		return
	}
	zoneID := parts[1]

	switch {
	case len(parts) == 3 && r.Method == http.MethodGet:
		s.mu.Lock()
		s.lists = append(s.lists, ListRequest{
			ZoneID: zoneID,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
		})
		s.list(w, r, zoneID)
		s.mu.Unlock()
	case len(parts) == 4 && r.Method == http.MethodPatch:
		s.mu.Lock()
		p, ok := s.patch(w, r, zoneID, parts[3])
		s.mu.Unlock()
		if ok && s.OnPatch != nil {
			s.OnPatch(p)
		}
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) list(w http.ResponseWriter, r *http.Request, zoneID string) {
	if len(s.ListErrors) > 0 {
		writeEnvelope(w, http.StatusBadRequest, envelope{Errors: s.ListErrors, Result: []Record{}})
		return
	}

	records := s.Zones[zoneID]
	if records == nil {
		records = []Record{}
	}
	if s.PerPage <= 0 {
		writeEnvelope(w, http.StatusOK, envelope{Success: true, Result: records})
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	page = max(page, 1)
	totalPages := max((len(records)+s.PerPage-1)/s.PerPage, 1)
	start := min((page-1)*s.PerPage, len(records))
	end := min(start+s.PerPage, len(records))

	env := envelope{Success: true, Result: records[start:end]}
	env.ResultInfo = &struct {
		Page       int `json:"page"`
		PerPage    int `json:"per_page"`
		TotalPages int `json:"total_pages"`
	}{page, s.PerPage, totalPages}
	writeEnvelope(w, http.StatusOK, env)
}

func (s *Server) patch(w http.ResponseWriter, r *http.Request, zoneID, recordID string) (Patch, bool) {
	var body struct {
		Content string `json:"content"`
		Proxy   bool   `json:"proxy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeEnvelope(w, http.StatusBadRequest, envelope{Errors: []string{err.Error()}})
		return Patch{}, false
	}

	p := Patch{
		ZoneID:   zoneID,
		RecordID: recordID,
		Content:  body.Content,
		Proxy:    body.Proxy,
		Header:   r.Header.Clone(),
	}
	s.patches = append(s.patches, p)

	if msg, ok := s.PatchFailures[recordID]; ok {
		writeEnvelope(w, http.StatusBadRequest, envelope{Errors: []string{msg}})
	} else {
		writeEnvelope(w, http.StatusOK, envelope{Success: true, Result: Record{ID: recordID}})
	}
	return p, true
}
