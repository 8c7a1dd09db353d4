package somfy

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// APIBasePath is the path prefix of every local API endpoint.
const APIBasePath = "/enduser-mobile-web/1/enduserAPI"

// Header values used by JSON requests.
const (
	headerContentType   = "Content-Type"
	headerContentLength = "Content-Length"
	contentTypeJSON     = "application/json"
)

// Command is one gateway API operation whose response decodes into R.
//
// Request must be pure: it builds the request from the command's own fields
// and never performs I/O. ParseResponse turns the raw body of a successful
// response into R, or fails with an ErrBody (or ErrNotFound) error.
//
// Because R is part of the command's type, Execute can only ever decode a
// GetDeviceCommand into a Device.
type Command[R any] interface {
	Request() (*RequestData, error)
	ParseResponse(body []byte) (R, error)
}

// RequestData describes a single HTTP request relative to the gateway root.
type RequestData struct {
	// Method is http.MethodGet, http.MethodPost or http.MethodDelete.
	Method string

	// Path is the absolute request path. Segments derived from caller input
	// must already be escaped with EscapeSegment.
	Path string

	// Body is sent only for POST requests.
	Body []byte

	// Header entries override the engine defaults.
	Header http.Header

	// Query parameters, encoded in key order.
	Query map[string]string
}

// NewRequest returns a bodyless request for method and path.
func NewRequest(method, path string) *RequestData {
	return &RequestData{
		Method: method,
		Path:   path,
		Header: http.Header{},
		Query:  map[string]string{},
	}
}

// NewJSONRequest returns a request whose body is payload encoded as JSON,
// with Content-Type and Content-Length set.
func NewJSONRequest(method, path string, payload any) (*RequestData, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, newError(KindServer, "encoding request body", err)
	}

	req := NewRequest(method, path)
	req.SetBody(body)
	return req, nil
}

// SetBody replaces the body and sets the JSON content headers to match it.
func (r *RequestData) SetBody(body []byte) {
	if r.Header == nil {
		r.Header = http.Header{}
	}
	r.Body = body
	r.Header.Set(headerContentType, contentTypeJSON)
	r.Header.Set(headerContentLength, strconv.Itoa(len(body)))
}

// ContentLength returns the body size in bytes.
func (r *RequestData) ContentLength() int {
	return len(r.Body)
}

// encodedQuery returns the query string without the leading '?'.
func (r *RequestData) encodedQuery() string {
	if len(r.Query) == 0 {
		return ""
	}

	keys := make([]string, 0, len(r.Query))
	for k := range r.Query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, EscapeSegment(k)+"="+EscapeSegment(r.Query[k]))
	}
	return strings.Join(parts, "&")
}

// EscapeSegment percent-encodes s for use as a single URL path segment or
// query component. Only RFC 3986 unreserved characters are left as-is, so
// device URLs such as "io://1234-5678-9012/1" stay one segment.
//
// url.PathUnescape(EscapeSegment(s)) == s for every s.
func EscapeSegment(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// apiPath joins APIBasePath with already-escaped segments.
func apiPath(segments ...string) string {
	return APIBasePath + "/" + strings.Join(segments, "/")
}

// validator is implemented by response types with required fields.
type validator interface {
	validate() error
}

// DecodeJSON decodes body into T by field name. Unknown fields are
// ignored; if T (or *T) declares required fields they are checked after
// decoding. Every failure is an ErrBody error.
func DecodeJSON[T any](body []byte) (T, error) {
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return v, BodyError(err)
	}
	if err := validateValue(&v); err != nil {
		return v, BodyError(err)
	}
	return v, nil
}

// DecodeList decodes a JSON array into []T, checking each element's
// required fields. A JSON null decodes to an empty list.
func DecodeList[T any](body []byte) ([]T, error) {
	var items []T
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, BodyError(err)
	}
	if items == nil {
		items = []T{}
	}
	for i := range items {
		if err := validateValue(&items[i]); err != nil {
			return nil, BodyError(fmt.Errorf("item %d: %w", i, err))
		}
	}
	return items, nil
}

func validateValue(v any) error {
	if val, ok := v.(validator); ok {
		return val.validate()
	}
	return nil
}

// missingField builds the error for an absent required field.
func missingField(name string) error {
	return fmt.Errorf("missing required field %q", name)
}
