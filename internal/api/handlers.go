package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// MIMEApplicationMsgpack is the content type of msgpack responses.
const MIMEApplicationMsgpack = "application/msgpack"

// wantsMsgpack reports whether the client asked for msgpack, either with the
// Accept header or with ?format=msgpack.
func wantsMsgpack(c echo.Context) bool {
	if c.QueryParam("format") == "msgpack" {
		return true
	}
	accept := c.Request().Header.Get(echo.HeaderAccept)
	return strings.Contains(accept, MIMEApplicationMsgpack) || strings.Contains(accept, "application/x-msgpack")
}

// respond encodes v as msgpack or JSON depending on the request.
func respond(c echo.Context, status int, v any) error {
	if !wantsMsgpack(c) {
		return c.JSON(status, v)
	}
	data, err := msgpack.Marshal(v)
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(status, MIMEApplicationMsgpack, data)
}

// queryLimit reads ?limit=, falling back to def and capping at max.
func queryLimit(c echo.Context, def, max int) int {
	n, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || n < 1 {
		return def
	}
	return min(n, max)
}

// requireParam returns the path parameter name or a validation error.
func requireParam(c echo.Context, name string) (string, error) {
	v := c.Param(name)
	if v == "" {
		return "", NewValidationError(name)
	}
	return v, nil
}

// statusOf picks the response status for a batch: 201 when at least one file
// was stored, 200 otherwise.
func statusOf(stored int) int {
	if stored > 0 {
		return http.StatusCreated
	}
	return http.StatusOK
}
