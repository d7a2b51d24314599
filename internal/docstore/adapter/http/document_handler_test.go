package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"rtdb-bridge/internal/docstore/adapter/persistence/memory"
	"rtdb-bridge/internal/docstore/usecase"
	"rtdb-bridge/internal/shared/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	app := fiber.New()
	app.Use(RequestID())
	svc := usecase.NewDocumentService(memory.NewStore(), nil, "id", nil, nil)
	NewDocumentHandler(svc, nil).RegisterRoutes(app)
	return app
}

func do(t *testing.T, app *fiber.App, method, target, body string) (*http.Response, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(raw)
}

func TestDocumentHandler_PutGetDelete(t *testing.T) {
	app := newTestApp(t)

	resp, _ := do(t, app, http.MethodPut, "/api/users/42", `{"name":"Ann","age":30}`)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	resp, _ = do(t, app, http.MethodPut, "/api/users/42", `{"name":"Ann","age":31}`)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, body := do(t, app, http.MethodGet, "/api/users/42", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"name":"Ann","age":31}`, body)

	resp, _ = do(t, app, http.MethodDelete, "/api/users/42", "")
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, body = do(t, app, http.MethodGet, "/api/users/42", "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, `"error"`)

	resp, _ = do(t, app, http.MethodDelete, "/api/users/42", "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestDocumentHandler_ListWithQuery(t *testing.T) {
	app := newTestApp(t)
	for id, doc := range map[string]string{
		"a": `{"name":"Ann","age":30}`,
		"b": `{"name":"Bob","age":17}`,
		"c": `{"name":"Cid","age":65}`,
	} {
		resp, _ := do(t, app, http.MethodPut, "/api/users/"+id, doc)
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	}

	query := "orderBy%5B0%5D%5Bfield%5D=age&filter%5B0%5D%5Bfield%5D=age&filter%5B0%5D%5Bop%5D=%3E%3D&filter%5B0%5D%5Bvalue%5D=18"
	resp, body := do(t, app, http.MethodGet, "/api/users?"+query, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[{"name":"Ann","age":30,"id":"a"},{"name":"Cid","age":65,"id":"c"}]`, body)

	resp, body = do(t, app, http.MethodGet, "/api/empty", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, body)
}

func TestDocumentHandler_UnescapesSegments(t *testing.T) {
	app := newTestApp(t)

	resp, _ := do(t, app, http.MethodPut, "/api/my%20users/ann%20smith", `{"n":1}`)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	resp, _ = do(t, app, http.MethodPut, "/api/my%20users/J%C3%B6rg", `{"n":2}`)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	resp, _ = do(t, app, http.MethodPut, "/api/my%20users/a%2Fb", `{"n":3}`)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, body := do(t, app, http.MethodGet, "/api/my%20users", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[{"n":1,"id":"ann smith"},{"n":2,"id":"Jörg"},{"n":3,"id":"a/b"}]`, body)

	resp, body = do(t, app, http.MethodGet, "/api/my%20users/J%C3%B6rg", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"n":2}`, body)

	resp, _ = do(t, app, http.MethodDelete, "/api/my%20users/ann%20smith", "")
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	resp, _ = do(t, app, http.MethodGet, "/api/my%20users/ann%20smith", "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestDocumentHandler_Patch(t *testing.T) {
	app := newTestApp(t)

	resp, body := do(t, app, http.MethodPatch, "/api/users/42", `{"profile.name":"Ann"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"profile":{"name":"Ann"}}`, body)

	resp, body = do(t, app, http.MethodPatch, "/api/users/42", `{"profile.name":null,"age":3}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"profile":{},"age":3}`, body)
}

func TestDocumentHandler_ValidationErrors(t *testing.T) {
	app := newTestApp(t)

	cases := []struct {
		name   string
		method string
		target string
		body   string
	}{
		{"empty body", http.MethodPut, "/api/users/1", ""},
		{"invalid json", http.MethodPut, "/api/users/1", `{"a":`},
		{"patch with array", http.MethodPatch, "/api/users/1", `[1,2]`},
		{"bad operator", http.MethodGet, "/api/users?filter%5B0%5D%5Bfield%5D=a&filter%5B0%5D%5Bop%5D=%3E", ""},
		{"bad limit", http.MethodGet, "/api/users?limit=-1", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := do(t, app, tc.method, tc.target, tc.body)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			var payload map[string]interface{}
			require.NoError(t, json.Unmarshal([]byte(body), &payload))
			assert.NotEmpty(t, payload["error"])
		})
	}
}

func TestRequestID_AssignsAndEchoes(t *testing.T) {
	app := newTestApp(t)

	resp, _ := do(t, app, http.MethodGet, "/api/users", "")
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "req-1", resp.Header.Get(RequestIDHeader))
}

func TestRequestMetrics_CountsByStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	app := fiber.New()
	app.Use(RequestMetrics(m))
	svc := usecase.NewDocumentService(memory.NewStore(), nil, "id", nil, nil)
	NewDocumentHandler(svc, nil).RegisterRoutes(app)

	do(t, app, http.MethodGet, "/api/users/missing", "")
	do(t, app, http.MethodPut, "/api/users/1", `{}`)

	count, err := testutil.GatherAndCount(reg, "rtdb_bridge_docstore_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
