package http

import (
	"encoding/json"
	"net/http"
)

// ResponseBuilder provides a fluent API for the JSON and redirect responses
// the handlers send. Pages go through Server.render instead.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       []byte
	location   string
	flashes    []Flash
	err        error
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON encodes v as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	body, err := json.Marshal(v)
	if err != nil {
		b.err = err
		return b
	}
	b.headers["Content-Type"] = "application/json"
	b.body = append(body, '\n')
	return b
}

// Redirect turns the response into a 303 to location.
func (b *ResponseBuilder) Redirect(location string) *ResponseBuilder {
	b.statusCode = http.StatusSeeOther
	b.location = location
	return b
}

// Flash queues a message shown on the next rendered page.
func (b *ResponseBuilder) Flash(kind FlashKind, message string) *ResponseBuilder {
	b.flashes = append(b.flashes, Flash{Kind: kind, Message: message})
	return b
}

// Success is a convenience for Flash(FlashSuccess, message).
func (b *ResponseBuilder) Success(message string) *ResponseBuilder {
	return b.Flash(FlashSuccess, message)
}

// Danger is a convenience for Flash(FlashDanger, message).
func (b *ResponseBuilder) Danger(message string) *ResponseBuilder {
	return b.Flash(FlashDanger, message)
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	if b.err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if len(b.flashes) > 0 {
		setFlashes(w, b.flashes)
	}
	if b.location != "" {
		w.Header().Set("Location", b.location)
	}

	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

func errorBody(message string) map[string]string {
	return map[string]string{"error": message}
}

// JSONError creates a JSON {"error": message} response.
func JSONError(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).JSON(errorBody(message))
}

// BadRequestError creates a 400 Bad Request JSON error response.
func BadRequestError(message string) *ResponseBuilder {
	return JSONError(http.StatusBadRequest, message)
}

// NotFoundError creates a 404 Not Found JSON error response.
func NotFoundError(message string) *ResponseBuilder {
	return JSONError(http.StatusNotFound, message)
}

// InternalServerError creates a 500 Internal Server Error JSON response.
func InternalServerError(message string) *ResponseBuilder {
	return JSONError(http.StatusInternalServerError, message)
}

// RedirectWith redirects to location with one flash message.
func RedirectWith(location string, kind FlashKind, message string) *ResponseBuilder {
	return NewResponse().Redirect(location).Flash(kind, message)
}
