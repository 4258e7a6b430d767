package snapshot

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"mercator-hq/gateway/pkg/cel/interpreter"
	"mercator-hq/gateway/pkg/cel/value"
)

// Variable names bound by Resolver.
const (
	VarRequest  = "request"
	VarResponse = "response"
	VarLLM      = "llm"
)

// Request is the client request as seen by policy expressions.
type Request struct {
	// ID is the gateway-assigned request identifier.
	ID string `cel:"id"`

	Method string `cel:"method"`
	Scheme string `cel:"scheme"`
	Host   string `cel:"host"`
	Path   string `cel:"path"`
	Query  Query  `cel:"query"`

	// Headers supports case-insensitive lookup.
	Headers Headers `cel:"headers"`

	// Body is only populated when some rule reads request.body.
	Body []byte `cel:"body,omitempty"`

	Source Source `cel:"source"`

	StartTime time.Time `cel:"startTime"`
}

// Source is the network peer of a request.
type Source struct {
	Address string `cel:"address"`
	Port    int    `cel:"port"`
}

// Response is the upstream response as seen by policy expressions.
type Response struct {
	Code    int     `cel:"code"`
	Headers Headers `cel:"headers"`
	Body    []byte  `cel:"body,omitempty"`
}

// LLM describes one model exchange.
type LLM struct {
	Provider      string `cel:"provider"`
	RequestModel  string `cel:"requestModel"`
	ResponseModel string `cel:"responseModel,omitempty"`
	Streaming     bool   `cel:"streaming"`

	InputTokens  int  `cel:"inputTokens"`
	OutputTokens *int `cel:"outputTokens,omitempty"`

	// EstimatedCost is in USD.
	EstimatedCost float64 `cel:"estimatedCost"`

	Params Params `cel:"params"`

	// Prompt and Completion are only populated when some rule reads them.
	Prompt     []Message `cel:"prompt,omitempty"`
	Completion []string  `cel:"completion,omitempty"`
}

// Params are the sampling parameters of an LLM request. Unset parameters
// are hidden, so has(llm.params.temperature) tells whether one was sent.
type Params struct {
	Temperature *float64 `cel:"temperature,omitempty"`
	MaxTokens   *int     `cel:"maxTokens,omitempty"`
	TopP        *float64 `cel:"topP,omitempty"`
}

// Message is one chat message.
type Message struct {
	Role    string `cel:"role"`
	Content string `cel:"content"`
}

// TotalTokens returns input plus output tokens.
func (l *LLM) TotalTokens() int {
	if l.OutputTokens == nil {
		return l.InputTokens
	}
	return l.InputTokens + *l.OutputTokens
}

// FromHTTPRequest captures r. body is the already-read request body, or nil
// when no rule needs it.
func FromHTTPRequest(r *http.Request, body []byte) *Request {
	req := &Request{
		Method:    r.Method,
		Scheme:    "http",
		Host:      r.Host,
		Path:      r.URL.Path,
		Query:     Query(r.URL.Query()),
		Headers:   Headers(r.Header.Clone()),
		Body:      body,
		StartTime: time.Now(),
	}
	if r.TLS != nil {
		req.Scheme = "https"
	}
	if host, port, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		req.Source.Address = host
		req.Source.Port, _ = strconv.Atoi(port)
	} else {
		req.Source.Address = r.RemoteAddr
	}
	return req
}

// FromHTTPResponse captures resp. body is the already-read response body, or
// nil when no rule needs it.
func FromHTTPResponse(resp *http.Response, body []byte) *Response {
	return &Response{
		Code:    resp.StatusCode,
		Headers: Headers(resp.Header.Clone()),
		Body:    body,
	}
}

// Capture builds the snapshot of r for rules with requirements req. body is
// the already-read request body; it is bound only when req.RequestBody is
// set. When req.LLM is set and body is not empty, llm is parsed from body as
// an OpenAI-style chat request attributed to provider.
func Capture(r *http.Request, body []byte, req Requirements, provider string) (*Snapshot, error) {
	request := FromHTTPRequest(r, nil)
	if req.RequestBody {
		request.Body = body
	}

	snap := &Snapshot{Request: request}
	if req.LLM && len(body) > 0 {
		llm, err := ParseChatRequest(provider, body)
		if err != nil {
			return nil, err
		}
		if !req.LLMPrompt {
			llm.Prompt = nil
		}
		snap.LLM = llm
	}
	return snap, nil
}

// Snapshot binds the request, response and llm variables. Nil parts are
// unbound, so expressions reading them fail with an undeclared reference.
type Snapshot struct {
	Request  *Request
	Response *Response
	LLM      *LLM

	// Extra binds additional variables, converted with value.FromGo.
	Extra map[string]any
}

// Resolver returns a resolver over the given parts. Any of them may be nil.
func Resolver(req *Request, resp *Response, llm *LLM) interpreter.Resolver {
	return &Snapshot{Request: req, Response: resp, LLM: llm}
}

// Resolve implements interpreter.Resolver.
func (s *Snapshot) Resolve(name string) (value.Value, bool) {
	switch name {
	case VarRequest:
		if s.Request != nil {
			return value.Reflect(s.Request), true
		}
	case VarResponse:
		if s.Response != nil {
			return value.Reflect(s.Response), true
		}
	case VarLLM:
		if s.LLM != nil {
			return value.Reflect(s.LLM), true
		}
	}
	if x, ok := s.Extra[name]; ok {
		return value.FromGo(x), true
	}
	return nil, false
}
