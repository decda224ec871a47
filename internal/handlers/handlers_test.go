package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nexus-academy/catalog-service/internal/access"
	"github.com/nexus-academy/catalog-service/internal/config"
	"github.com/nexus-academy/catalog-service/internal/metrics"
	"github.com/nexus-academy/catalog-service/internal/models"
	"github.com/nexus-academy/catalog-service/internal/repositories"
	"github.com/nexus-academy/catalog-service/internal/repositories/casdoor"
	"github.com/nexus-academy/catalog-service/internal/services"
	"github.com/nexus-academy/catalog-service/internal/validator"
)

func doRequest(router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHandleServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"not found", services.ErrLectureNotFound, http.StatusNotFound, "Lecture not found"},
		{"wrapped not found", errors.Join(errors.New("load"), services.ErrProgramNotFound), http.StatusNotFound, "Program not found"},
		{"validation", validator.ValidationErrors{{Field: "email", Message: "email is required", Rule: "required"}}, http.StatusBadRequest, "Validation failed"},
		{"duplicate waitlist", services.ErrWaitlistDuplicate, http.StatusConflict, "Email already on waitlist for this program"},
		{"upstream", &services.UpstreamError{Op: "load program", Err: errors.New("i/o timeout")}, http.StatusServiceUnavailable, "Service temporarily unavailable, please retry"},
		{"permission", services.NewPermissionError("u1", "program", "create", "admin role required"), http.StatusForbidden, "Access denied"},
		{"access denied", &services.AccessDeniedError{LectureID: 7, Outcome: access.LockedPreview}, http.StatusForbidden, "Lecture is not available"},
		{"business rule", services.NewBusinessRuleError("self_demotion", "cannot remove your own admin flag", nil), http.StatusUnprocessableEntity, "cannot remove your own admin flag"},
		{"unauthorized", services.ErrUnauthorized, http.StatusUnauthorized, "User not authenticated"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			h := NewBaseHandler(testLogger())
			h.handleServiceError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.message, decodeError(t, w)["message"])
		})
	}
}

func TestHandleServiceError_UpstreamIsRetryable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	h := NewBaseHandler(testLogger())
	h.handleServiceError(c, &services.UpstreamError{Op: "get user", Err: errors.New("casdoor: 502")})

	assert.Equal(t, true, decodeError(t, w)["retryable"])
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(rps float64, burst int, trusted []string) *gin.Engine {
		router := gin.New()
		require.NoError(t, router.SetTrustedProxies(trusted))
		router.Use(RateLimitMiddleware(rps, burst))
		router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })
		return router
	}
	send := func(router http.Handler, remoteAddr, forwardedFor string) int {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = remoteAddr
		if forwardedFor != "" {
			req.Header.Set("X-Forwarded-For", forwardedFor)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	t.Run("disabled", func(t *testing.T) {
		router := newRouter(0, 0, nil)
		for i := 0; i < 5; i++ {
			assert.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/test", "", "").Code)
		}
	})

	t.Run("limits per client", func(t *testing.T) {
		router := newRouter(1, 1, nil)
		assert.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/test", "", "").Code)

		w := doRequest(router, http.MethodGet, "/test", "", "")
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "rate limit exceeded", decodeError(t, w)["error"])

		assert.Equal(t, http.StatusOK, send(router, "198.51.100.7:4000", ""))
	})

	t.Run("forwarded header from untrusted peer is ignored", func(t *testing.T) {
		router := newRouter(1, 1, nil)
		accepted := 0
		for i := 0; i < 50; i++ {
			if send(router, "198.51.100.7:4000", fmt.Sprintf("203.0.113.%d", i)) == http.StatusOK {
				accepted++
			}
		}
		assert.Equal(t, 1, accepted)
	})

	t.Run("trusted proxy forwards client address", func(t *testing.T) {
		router := newRouter(1, 1, []string{"10.0.0.1"})
		assert.Equal(t, http.StatusOK, send(router, "10.0.0.1:4000", "203.0.113.1"))
		assert.Equal(t, http.StatusOK, send(router, "10.0.0.1:4000", "203.0.113.2"))
		assert.Equal(t, http.StatusTooManyRequests, send(router, "10.0.0.1:4000", "203.0.113.1"))
	})
}

func TestSetupRoutes_IgnoresSpoofedForwardedFor(t *testing.T) {
	f := newRouterFixture(RouterConfig{RateLimit: config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1}})
	entry := &models.WaitlistEntry{ID: 1, Email: "kim@example.com", ProgramSlug: "ai-master"}
	f.services.waitlist.On("AddToWaitlist", mock.Anything, "kim@example.com", "ai-master").Return(entry, nil)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/waitlist", strings.NewReader(`{"email":"kim@example.com","program_slug":"ai-master"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusCreated, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
}

func TestAuth(t *testing.T) {
	f := newRouterFixture(RouterConfig{})

	t.Run("me requires a token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, doRequest(f.router, http.MethodGet, "/api/v1/me", "", "").Code)
		assert.Equal(t, http.StatusUnauthorized, doRequest(f.router, http.MethodGet, "/api/v1/me", "forged", "").Code)
	})

	t.Run("me returns the stored user", func(t *testing.T) {
		f.services.user.On("GetByID", mock.Anything, f.member.ID).Return(f.member, nil).Once()

		w := doRequest(f.router, http.MethodGet, "/api/v1/me", memberToken, "")
		require.Equal(t, http.StatusOK, w.Code)

		var user models.User
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
		assert.Equal(t, models.RoleMember, user.Role)
	})

	t.Run("admin routes", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, doRequest(f.router, http.MethodGet, "/api/v1/admin/waitlist", "", "").Code)

		w := doRequest(f.router, http.MethodGet, "/api/v1/admin/waitlist", memberToken, "")
		assert.Equal(t, http.StatusForbidden, w.Code)
		f.services.waitlist.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestAuth_IgnoresTokenClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)

	users := &MockUserRepository{}
	users.On("GetByID", mock.Anything, "u-deleted").Return(nil, repositories.ErrUserNotFound)
	users.On("GetByID", mock.Anything, "u-outage").Return(nil, errors.New("dial tcp: connection refused"))

	parser := &fakeTokenParser{users: map[string]casdoorsdk.User{
		"deleted-token": {Id: "u-deleted", IsAdmin: true},
		"outage-token": {Id: "u-outage", Properties: map[string]string{
			casdoor.PropertyMembershipRole: "both",
			casdoor.PropertyMasterCohort:   "2",
		}},
	}}
	auth := NewCasdoorAuthMiddleware(parser, users, testLogger())

	router := gin.New()
	whoami := func(c *gin.Context) {
		user := viewerFromContext(c)
		if user == nil {
			c.JSON(http.StatusOK, gin.H{"role": "anonymous"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"role": user.Role})
	}
	router.GET("/admin", auth.AuthMiddleware(), auth.RequireAdminMiddleware(), whoami)
	router.GET("/whoami", auth.AuthMiddleware(), whoami)
	router.GET("/optional", auth.OptionalAuthMiddleware(), whoami)

	t.Run("deleted user is rejected", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, doRequest(router, http.MethodGet, "/admin", "deleted-token", "").Code)
		assert.Equal(t, http.StatusUnauthorized, doRequest(router, http.MethodGet, "/whoami", "deleted-token", "").Code)
	})

	t.Run("lookup failure is retryable", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/whoami", "outage-token", "")
		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, true, decodeError(t, w)["retryable"])
	})

	t.Run("optional auth degrades to anonymous", func(t *testing.T) {
		for _, token := range []string{"deleted-token", "outage-token"} {
			w := doRequest(router, http.MethodGet, "/optional", token, "")
			require.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, `{"role":"anonymous"}`, w.Body.String())
		}
	})
}

func TestProgramView(t *testing.T) {
	f := newRouterFixture(RouterConfig{})

	view := &services.ProgramViewResponse{
		Program:  &models.Program{Slug: "ai-master", Type: models.ProgramMaster},
		Mode:     access.ModeCommon,
		Lectures: []services.LectureItem{},
	}
	req := access.ViewRequest{Mode: access.ModeCommon, Cohort: "3", Category: "Prompt"}
	f.services.lecture.On("GetProgramView", mock.Anything, "ai-master", f.member, req).Return(view, nil).Once()

	w := doRequest(f.router, http.MethodGet, "/api/v1/programs/ai-master/view?mode=COMMON&cohort=3&category=Prompt", memberToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"mode":"common"`)

	anonymous := access.ViewRequest{Mode: access.ModeCohort}
	f.services.lecture.On("GetProgramView", mock.Anything, "missing", (*models.User)(nil), anonymous).
		Return(nil, services.ErrProgramNotFound).Once()

	w = doRequest(f.router, http.MethodGet, "/api/v1/programs/missing/view", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	f.services.lecture.AssertExpectations(t)
}

func TestGetLecture(t *testing.T) {
	f := newRouterFixture(RouterConfig{})

	t.Run("invalid id", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, doRequest(f.router, http.MethodGet, "/api/v1/lectures/abc", "", "").Code)
		assert.Equal(t, http.StatusBadRequest, doRequest(f.router, http.MethodGet, "/api/v1/lectures/0", "", "").Code)
	})

	t.Run("locked lecture carries the outcome", func(t *testing.T) {
		f.services.lecture.On("GetLecture", mock.Anything, uint(7), (*models.User)(nil), "").
			Return(nil, &services.AccessDeniedError{LectureID: 7, Outcome: access.LockedPreview}).Once()

		w := doRequest(f.router, http.MethodGet, "/api/v1/lectures/7", "", "")
		require.Equal(t, http.StatusForbidden, w.Code)

		details := decodeError(t, w)["details"].(map[string]interface{})
		assert.Equal(t, "LOCKED_PREVIEW", details["outcome"])
	})

	t.Run("load failure is retryable, not gated", func(t *testing.T) {
		f.services.lecture.On("GetLecture", mock.Anything, uint(8), f.member, "2").
			Return(nil, &services.UpstreamError{Op: "load lecture", Err: errors.New("i/o timeout")}).Once()

		w := doRequest(f.router, http.MethodGet, "/api/v1/lectures/8?cohort=2", memberToken, "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.NotContains(t, w.Body.String(), string(access.GatedWaitlist))
	})
}

func TestListPrograms_InvalidType(t *testing.T) {
	f := newRouterFixture(RouterConfig{})

	w := doRequest(f.router, http.MethodGet, "/api/v1/programs?type=premium", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	f.services.program.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestJoinWaitlist(t *testing.T) {
	f := newRouterFixture(RouterConfig{RateLimit: config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}})

	entry := &models.WaitlistEntry{ID: 1, Email: "kim@example.com", ProgramSlug: "ai-master"}
	f.services.waitlist.On("AddToWaitlist", mock.Anything, "kim@example.com", "ai-master").Return(entry, nil).Once()
	f.services.waitlist.On("AddToWaitlist", mock.Anything, "kim@example.com", "ai-master").Return(nil, services.ErrWaitlistDuplicate).Once()

	body := `{"email":"kim@example.com","program_slug":"ai-master"}`

	w := doRequest(f.router, http.MethodPost, "/api/v1/waitlist", "", body)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(f.router, http.MethodPost, "/api/v1/waitlist", "", body)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Email already on waitlist for this program", decodeError(t, w)["message"])

	w = doRequest(f.router, http.MethodPost, "/api/v1/waitlist", "", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	f.services.waitlist.AssertExpectations(t)
}

func TestJoinWaitlist_MalformedBody(t *testing.T) {
	f := newRouterFixture(RouterConfig{})

	w := doRequest(f.router, http.MethodPost, "/api/v1/waitlist", "", `{"email":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	f.services.waitlist.AssertNotCalled(t, "AddToWaitlist", mock.Anything, mock.Anything, mock.Anything)
}

func TestExportWaitlist(t *testing.T) {
	f := newRouterFixture(RouterConfig{})

	slug := "ai-master"
	f.services.export.On("ExportWaitlist", mock.Anything, &slug, f.admin).Return([]byte("xlsx"), nil).Once()

	w := doRequest(f.router, http.MethodGet, "/api/v1/admin/exports/waitlist?program_slug=ai-master", adminToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="waitlist-ai-master-`)
	assert.Equal(t, "xlsx", w.Body.String())
}

func TestUpdateUserMembership(t *testing.T) {
	f := newRouterFixture(RouterConfig{})

	master := models.RoleMaster
	cohort := "4"
	req := &services.UpdateMembershipRequest{Role: &master, MasterCohort: &cohort}
	updated := &models.User{ID: "u-1", Role: master, MasterCohort: &cohort}
	f.services.user.On("UpdateMembership", mock.Anything, "u-1", req, f.admin).Return(updated, nil).Once()

	w := doRequest(f.router, http.MethodPatch, "/api/v1/admin/users/u-1", adminToken, `{"role":"master","master_cohort":"4"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"master_cohort":"4"`)
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := newRouterFixture(RouterConfig{
		Collector: metrics.NewPrometheusCollector(reg),
		Gatherer:  reg,
	})

	w := doRequest(f.router, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	f.services.health = errors.New("database ping failed")
	w = doRequest(f.router, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doRequest(f.router, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "catalog_http_requests_total")
}
