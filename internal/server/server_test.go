// ABOUTME: Tests for the HTTP renderer.
// ABOUTME: Drives sessions through cookies and checks page, JSON, denial, and error responses.

package server

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jfeddern/OpsDeck/internal/metrics"
	"github.com/jfeddern/OpsDeck/internal/providers/mock"
	"github.com/jfeddern/OpsDeck/internal/rbac"
	"github.com/jfeddern/OpsDeck/internal/shell"
	"github.com/jfeddern/OpsDeck/internal/views"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frameJSON struct {
	Session struct {
		ID   string `json:"id"`
		Role string `json:"role"`
		View string `json:"view"`
	} `json:"session"`
	Decision struct {
		Kind     string `json:"kind"`
		Editable bool   `json:"editable"`
	} `json:"decision"`
	Page *struct {
		Kind     string          `json:"kind"`
		Editable bool            `json:"editable"`
		Body     json.RawMessage `json:"body"`
	} `json:"page"`
	Denial *struct {
		Message       string   `json:"message"`
		RequiredRoles []string `json:"required_roles"`
	} `json:"denial"`
	Busy bool `json:"busy"`
}

type client struct {
	t       *testing.T
	handler http.Handler
	cookie  *http.Cookie
}

func newTestServer(t *testing.T) (*client, *shell.Store) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	m := metrics.NewMetricsHandler(nil, logger)
	controller := rbac.NewController(rbac.DefaultRegistry())
	catalog := views.DefaultCatalog(views.Deps{
		Scanner:   mock.NewMockScanner(logger),
		Assistant: mock.NewMockAssistant(logger),
		Recorder:  m,
		Logger:    logger,
	})
	store := shell.NewStore(func() *shell.Shell {
		return shell.New(controller, catalog, shell.Options{
			DefaultRole: rbac.Admin,
			DefaultView: views.IDDashboard,
			Recorder:    m,
		}, logger)
	}, time.Hour, nil, logger)
	t.Cleanup(store.Close)
	m.SetSessions(store)

	srv := NewServer(store, controller.Views(), m, logger)
	return &client{t: t, handler: srv.Handler()}, store
}

func (c *client) do(method, path string, form url.Values, asJSON bool) *httptest.ResponseRecorder {
	c.t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if asJSON {
		req.Header.Set("Accept", "application/json")
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}

	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)

	for _, ck := range w.Result().Cookies() {
		if ck.Name == SessionCookie {
			c.cookie = ck
		}
	}
	return w
}

func (c *client) post(path string, form url.Values) *httptest.ResponseRecorder {
	return c.do(http.MethodPost, path, form, true)
}

func (c *client) frame() frameJSON {
	c.t.Helper()
	w := c.do(http.MethodGet, "/api/session", nil, true)
	require.Equal(c.t, http.StatusOK, w.Code)
	return decodeFrame(c.t, w.Body.Bytes())
}

func decodeFrame(t *testing.T, data []byte) frameJSON {
	t.Helper()
	var f frameJSON
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func TestPageStartsSession(t *testing.T) {
	c, store := newTestServer(t)

	w := c.do(http.MethodGet, "/", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "Security Overview")
	assert.Contains(t, w.Body.String(), "Active Threats")
	require.NotNil(t, c.cookie)
	assert.True(t, c.cookie.HttpOnly)

	// The cookie keeps the same session
	c.do(http.MethodGet, "/", nil, false)
	assert.Equal(t, 1, store.Len())

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "script-src 'none'")
}

func TestUnknownCookieStartsFreshSession(t *testing.T) {
	c, _ := newTestServer(t)
	c.cookie = &http.Cookie{Name: SessionCookie, Value: "forged"}

	f := c.frame()
	assert.NotEqual(t, "forged", f.Session.ID)
	assert.Equal(t, f.Session.ID, c.cookie.Value)
}

func TestNavigationAndDenial(t *testing.T) {
	c, _ := newTestServer(t)

	w := c.post("/nav", url.Values{"view": {"scanner"}})
	require.Equal(t, http.StatusOK, w.Code)
	f := decodeFrame(t, w.Body.Bytes())
	assert.Equal(t, "allowed", f.Decision.Kind)
	assert.True(t, f.Decision.Editable)
	require.NotNil(t, f.Page)
	assert.Equal(t, "hub", f.Page.Kind)

	// Downgrading keeps the view but denies it
	w = c.post("/nav", url.Values{"role": {"viewer"}})
	require.Equal(t, http.StatusOK, w.Code)
	f = decodeFrame(t, w.Body.Bytes())
	assert.Equal(t, "VIEWER", f.Session.Role)
	assert.Equal(t, "scanner", f.Session.View)
	assert.Nil(t, f.Page)
	require.NotNil(t, f.Denial)
	assert.Equal(t, []string{"ADMIN"}, f.Denial.RequiredRoles)
	assert.Equal(t, "The requested module requires ADMIN level clearance.", f.Denial.Message)

	page := c.do(http.MethodGet, "/", nil, false)
	assert.Contains(t, page.Body.String(), "Access Denied")
	assert.Contains(t, page.Body.String(), "Return to Overview")
}

func TestNavigationBrowserRedirect(t *testing.T) {
	c, _ := newTestServer(t)
	w := c.do(http.MethodPost, "/nav", url.Values{"view": {"tasks"}}, false)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestNavigationRejectsUnknownInput(t *testing.T) {
	c, _ := newTestServer(t)

	w := c.post("/nav", url.Values{"view": {"reports"}})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = c.post("/nav", url.Values{"role": {"ROOT"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Nothing changed
	f := c.frame()
	assert.Equal(t, "ADMIN", f.Session.Role)
	assert.Equal(t, "dashboard", f.Session.View)
}

func TestViewerCannotMutate(t *testing.T) {
	c, _ := newTestServer(t)
	c.post("/nav", url.Values{"role": {"VIEWER"}, "view": {"cms"}})

	w := c.post("/cms", url.Values{"action": {"save"}, "title": {"x"}, "content": {"y"}})
	assert.Equal(t, http.StatusForbidden, w.Code)

	c.post("/nav", url.Values{"view": {"settings"}})
	w = c.post("/settings", url.Values{"action": {"apply"}})
	assert.Equal(t, http.StatusForbidden, w.Code)

	var resp struct {
		Error string    `json:"error"`
		Frame frameJSON `json:"frame"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "ADMIN")
	require.NotNil(t, resp.Frame.Denial)

	page := c.do(http.MethodPost, "/settings", url.Values{"action": {"apply"}}, false)
	assert.Equal(t, http.StatusForbidden, page.Code)
	assert.Contains(t, page.Body.String(), "requires ADMIN clearance")
}

func TestActionOnInactiveView(t *testing.T) {
	c, _ := newTestServer(t)
	w := c.post("/tasks", url.Values{"action": {"delete"}, "id": {"1"}})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestTaskBoardActions(t *testing.T) {
	c, _ := newTestServer(t)
	c.post("/nav", url.Values{"view": {"tasks"}})

	w := c.post("/tasks", url.Values{"action": {"create"}, "title": {"Rotate TLS certs"}, "priority": {"high"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Rotate TLS certs")

	w = c.post("/tasks", url.Values{"action": {"create"}, "title": {"x"}, "priority": {"urgent"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = c.post("/tasks", url.Values{"action": {"move"}, "id": {"1"}, "status": {"DONE"}})
	assert.Equal(t, http.StatusOK, w.Code)

	w = c.post("/tasks", url.Values{"action": {"delete"}, "id": {"missing"}})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = c.post("/tasks", url.Values{"action": {"archive"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScanFlow(t *testing.T) {
	c, _ := newTestServer(t)
	c.post("/nav", url.Values{"view": {"scanner"}})

	w := c.post("/scanner", url.Values{"action": {"scan"}, "code": {"   "}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = c.post("/scanner", url.Values{"action": {"scan"}, "code": {"el.innerHTML = location.hash"}})
	require.Equal(t, http.StatusOK, w.Code)

	var body views.HubBody
	require.Eventually(t, func() bool {
		f := c.frame()
		if f.Page == nil || json.Unmarshal(f.Page.Body, &body) != nil {
			return false
		}
		return body.State == views.ScanCompleted
	}, 2*time.Second, 10*time.Millisecond)
	require.NotNil(t, body.Health)
	assert.NotEmpty(t, body.Findings)

	page := c.do(http.MethodGet, "/", nil, false)
	assert.Contains(t, page.Body.String(), "Remediation")
	assert.Contains(t, page.Body.String(), "Cross-Site Scripting")
	assert.NotContains(t, page.Body.String(), `http-equiv="refresh"`)

	w = c.post("/scanner", url.Values{"action": {"clear"}})
	require.Equal(t, http.StatusOK, w.Code)
}

var scannerForm = regexp.MustCompile(`(?s)<form method="post" action="/scanner">.*?</form>`)

func scannerButtons(t *testing.T, c *client) map[string]bool {
	t.Helper()
	page := c.do(http.MethodGet, "/", nil, false)
	require.Equal(t, http.StatusOK, page.Code)

	form := scannerForm.FindString(page.Body.String())
	require.NotEmpty(t, form, "page has no scanner form")

	enabled := map[string]bool{}
	for _, m := range regexp.MustCompile(`<button name="action" value="(\w+)"([^>]*)>`).FindAllStringSubmatch(form, -1) {
		enabled[m[1]] = !strings.Contains(m[2], "disabled")
	}
	return enabled
}

func TestScannerPageCanStartScan(t *testing.T) {
	c, _ := newTestServer(t)
	c.do(http.MethodGet, "/", nil, false)
	c.do(http.MethodPost, "/nav", url.Values{"view": {"scanner"}}, false)

	buttons := scannerButtons(t, c)
	assert.True(t, buttons["code"], "an empty buffer can still be loaded from the page")
	assert.False(t, buttons["scan"], "scan stays disabled while the buffer is empty")

	w := c.do(http.MethodPost, "/scanner", url.Values{"action": {"code"}, "code": {"el.innerHTML = location.hash"}}, false)
	require.Equal(t, http.StatusSeeOther, w.Code)

	buttons = scannerButtons(t, c)
	assert.True(t, buttons["scan"], "loaded code enables the scan button")

	w = c.do(http.MethodPost, "/scanner", url.Values{"action": {"scan"}, "code": {"el.innerHTML = location.hash"}}, false)
	require.Equal(t, http.StatusSeeOther, w.Code)

	require.Eventually(t, func() bool {
		var body views.HubBody
		f := c.frame()
		return f.Page != nil && json.Unmarshal(f.Page.Body, &body) == nil && body.State == views.ScanCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMethodAndRouteGuards(t *testing.T) {
	c, _ := newTestServer(t)

	assert.Equal(t, http.StatusMethodNotAllowed, c.do(http.MethodPut, "/", nil, false).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, c.do(http.MethodGet, "/nav", nil, false).Code)
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, "/nope", nil, false).Code)
}

func TestHealthAndMetrics(t *testing.T) {
	c, _ := newTestServer(t)
	c.do(http.MethodGet, "/", nil, false)

	w := c.do(http.MethodGet, "/health", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","sessions":1}`, w.Body.String())

	w = c.do(http.MethodGet, "/metrics", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `opsdeck_sessions{role="ADMIN",view="dashboard"} 1`)
	assert.NotContains(t, w.Body.String(), `opsdeck_access_decisions_total{`, "page loads are not navigation decisions")

	c.post("/nav", url.Values{"view": {"tasks"}})
	for i := 0; i < 3; i++ {
		c.do(http.MethodGet, "/", nil, false)
		c.frame()
	}

	w = c.do(http.MethodGet, "/metrics", nil, false)
	assert.Contains(t, w.Body.String(), `opsdeck_access_decisions_total{decision="allowed",role="ADMIN",view="tasks"} 1`)
}

func TestCompressedPage(t *testing.T) {
	c, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)

	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	html, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Contains(t, string(html), "OpsDeck")
}
