package streamkeys

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gallos-live/backend/internal/models"
)

func newValidateRouter(users ...*models.User) *gin.Engine {
	gin.SetMode(gin.TestMode)
	service := NewService(newMemoryStore(users...), "rtmp://ingest/live", nil)
	handler := NewHandler(service, nil)
	router := gin.New()
	router.POST("/api/streams/validate", handler.Validate)
	return router
}

func postValidate(t *testing.T, router *gin.Engine, key string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{}
	if key != "" {
		form.Set("name", key)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/streams/validate", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestValidateWebhookAllowsPublisher(t *testing.T) {
	router := newValidateRouter(adminUser("admin@x.pe", "abc123"))

	rec := postValidate(t, router, "abc123")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "admin@x.pe") {
		t.Fatalf("expected email in response, got %s", rec.Body.String())
	}
}

// Every denial must look the same to the caller: a publisher probing keys
// cannot learn whether a key exists, lacks capability, or is deactivated.
func TestValidateWebhookDenialsAreIndistinguishable(t *testing.T) {
	viewer := &models.User{ID: uuid.New(), Email: "viewer@x.pe", Role: models.RoleViewer, Active: true, StreamKey: "viewer-key"}
	inactive := &models.User{ID: uuid.New(), Email: "off@x.pe", Role: models.RoleAdmin, Active: false, StreamKey: "off-key"}
	router := newValidateRouter(viewer, inactive)

	var bodies []string
	for _, key := range []string{"unknown-key", "viewer-key", "off-key", ""} {
		rec := postValidate(t, router, key)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("key %q: expected 403, got %d", key, rec.Code)
		}
		bodies = append(bodies, rec.Body.String())
	}
	for i := 1; i < len(bodies); i++ {
		if bodies[i] != bodies[0] {
			t.Fatalf("denial bodies differ: %q vs %q", bodies[0], bodies[i])
		}
	}
}
