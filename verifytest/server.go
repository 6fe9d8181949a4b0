// Package verifytest provides an HTTP test double of the receipt
// verification service.
//
// Each Server plays one environment (production or sandbox in a test's
// terms; the server itself has no notion of which). Responses follow a
// status script: the first request gets the first status, and the last
// status repeats once the script is exhausted. Requests are validated
// against the verify-request JSON schema before the script is consulted,
// so a client that stops base64-encoding receipts fails loudly.
package verifytest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/xeipuuv/gojsonschema"
)

// statusMalformedRequest is returned when the request body does not match
// the verify-request schema, mirroring the live service's 21002.
const statusMalformedRequest = 21002

// requestSchema is the wire contract for verification requests.
const requestSchema = `{
	"type": "object",
	"required": ["receipt-data"],
	"properties": {
		"receipt-data": {
			"type": "string",
			"pattern": "^[A-Za-z0-9+/]*={0,2}$",
			"minLength": 1
		}
	},
	"additionalProperties": false
}`

// Server is a scriptable verification endpoint.
type Server struct {
	mu       sync.Mutex
	statuses []int
	next     int
	calls    int
	rawBody  string

	schema *gojsonschema.Schema
	srv    *httptest.Server
}

// New starts a verification server that replies with the given statuses in
// order, repeating the last one. With no statuses the server always
// replies with status 0.
func New(statuses ...int) *Server {
	if len(statuses) == 0 {
		statuses = []int{0}
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(requestSchema))
	if err != nil {
		panic("verifytest: invalid request schema: " + err.Error())
	}

	s := &Server{
		statuses: statuses,
		schema:   schema,
	}

	e := echo.New()
	e.HideBanner = true
	e.POST("/verifyReceipt", s.handleVerify)
	s.srv = httptest.NewServer(e)
	return s
}

// URL returns the verification endpoint URL.
func (s *Server) URL() string {
	return s.srv.URL + "/verifyReceipt"
}

// Calls reports how many verification requests the server received.
func (s *Server) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// RespondRaw makes the server reply with body verbatim instead of a status
// document. Used to exercise malformed-response handling.
func (s *Server) RespondRaw(body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rawBody = body
}

// Close shuts the server down.
func (s *Server) Close() {
	s.srv.Close()
}

func (s *Server) handleVerify(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.calls++
	raw := s.rawBody
	status := s.statuses[s.next]
	if s.next < len(s.statuses)-1 {
		s.next++
	}
	s.mu.Unlock()

	if raw != "" {
		return c.String(http.StatusOK, raw)
	}

	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil || !result.Valid() {
		return c.JSON(http.StatusOK, map[string]int{"status": statusMalformedRequest})
	}

	return c.JSON(http.StatusOK, map[string]int{"status": status})
}
