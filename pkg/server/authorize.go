package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mercator-hq/gateway/pkg/audit"
	"mercator-hq/gateway/pkg/policy/rules"
	"mercator-hq/gateway/pkg/policy/snapshot"
)

// Forwarded request headers read by the authorize endpoint.
const (
	ForwardedMethodHeader = "X-Forwarded-Method"
	ForwardedProtoHeader  = "X-Forwarded-Proto"
	ForwardedHostHeader   = "X-Forwarded-Host"
	ForwardedURIHeader    = "X-Forwarded-Uri"
	ForwardedForHeader    = "X-Forwarded-For"
)

// BackendHeader carries the backend chosen by route rules.
const BackendHeader = "X-Mercator-Backend"

// AuthorizeResponse is the JSON body of an authorize answer.
type AuthorizeResponse struct {
	Decision   rules.Action      `json:"decision"`
	Rule       string            `json:"rule,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Backend    string            `json:"backend,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Errors     []string          `json:"errors,omitempty"`
	Generation string            `json:"generation"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// errBodyTooLarge reports a body over ServerConfig.MaxBodyBytes.
var errBodyTooLarge = errors.New("request body too large")

// Decide authorizes snap against rs and, when the request is allowed, runs
// the transform and route rules.
func Decide(ctx context.Context, rs *rules.RuleSet, snap *snapshot.Snapshot) AuthorizeResponse {
	decision := rs.Authorize(ctx, snap)
	resp := AuthorizeResponse{
		Decision:   decision.Action,
		Rule:       decision.Rule,
		Reason:     decision.Reason,
		Generation: decision.Generation,
	}
	for _, e := range decision.Errors {
		resp.Errors = append(resp.Errors, e.Error())
	}
	if !decision.Allowed() {
		return resp
	}

	headers, terrs := rs.Transform(ctx, snap)
	backend, routed, rerrs := rs.Route(ctx, snap)
	for _, e := range append(terrs, rerrs...) {
		resp.Errors = append(resp.Errors, e.Error())
	}
	if len(headers) > 0 {
		resp.Headers = headers
	}
	if routed {
		resp.Backend = backend
	}
	return resp
}

// Allowed reports whether the request may proceed.
func (r AuthorizeResponse) Allowed() bool {
	return r.Decision == rules.ActionAllow
}

func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	rs := s.rules.Current()
	if rs == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "no rule set loaded"})
		return
	}

	snap, err := s.capture(w, r, rs.Requirements)
	if err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			code = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, code, errorResponse{Error: err.Error()})
		return
	}

	resp := Decide(ctx, rs, snap)
	if len(resp.Errors) > 0 {
		s.logger.WarnContext(ctx, "Rules failed to evaluate", "errors", resp.Errors)
	}
	s.record(snap, resp, time.Since(start))
	if !resp.Allowed() {
		writeJSON(w, http.StatusForbidden, resp)
		return
	}
	for name, v := range resp.Headers {
		w.Header().Set(name, v)
	}
	if resp.Backend != "" {
		w.Header().Set(BackendHeader, resp.Backend)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) record(snap *snapshot.Snapshot, resp AuthorizeResponse, d time.Duration) {
	if s.recorder == nil {
		return
	}
	rec := audit.FromSnapshot(snap)
	rec.Duration = d
	rec.Generation = resp.Generation
	rec.Decision = string(resp.Decision)
	rec.Rule = resp.Rule
	rec.Reason = resp.Reason
	rec.Backend = resp.Backend
	rec.Errors = resp.Errors
	s.recorder.Record(rec)
}

// capture builds the snapshot for r, reading the body only when req needs
// it.
func (s *Server) capture(w http.ResponseWriter, r *http.Request, req snapshot.Requirements) (*snapshot.Snapshot, error) {
	var body []byte
	if req.RequestBody || req.LLM {
		var err error
		if body, err = s.readBody(w, r); err != nil {
			return nil, err
		}
	}

	snap, err := snapshot.Capture(r, body, req, s.provider)
	if err != nil {
		return nil, err
	}
	snap.Request.ID = RequestID(r.Context())
	if err := applyForwarded(snap.Request, r.Header); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: limit is %d bytes", errBodyTooLarge, tooLarge.Limit)
		}
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	return body, nil
}

// applyForwarded replaces the request line and client address with the
// values a proxy passed in X-Forwarded-* headers.
func applyForwarded(req *snapshot.Request, h http.Header) error {
	if m := h.Get(ForwardedMethodHeader); m != "" {
		req.Method = strings.ToUpper(m)
	}
	if p := h.Get(ForwardedProtoHeader); p != "" {
		req.Scheme = strings.ToLower(p)
	}
	if host := h.Get(ForwardedHostHeader); host != "" {
		req.Host = host
	}
	if uri := h.Get(ForwardedURIHeader); uri != "" {
		u, err := url.ParseRequestURI(uri)
		if err != nil {
			return fmt.Errorf("invalid %s %q", ForwardedURIHeader, uri)
		}
		req.Path = u.Path
		req.Query = snapshot.Query(u.Query())
	}
	if xff := h.Get(ForwardedForHeader); xff != "" {
		client, _, _ := strings.Cut(xff, ",")
		req.Source = snapshot.Source{Address: strings.TrimSpace(client)}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
