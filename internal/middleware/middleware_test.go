package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/accounts/internal/ctxkeys"
	"github.com/templui/accounts/internal/metrics"
	"github.com/templui/accounts/internal/model"
	"github.com/templui/accounts/internal/repository"
	"github.com/templui/accounts/internal/service"
	"github.com/templui/accounts/internal/token"
)

type stubUsers map[string]*model.User

func (s stubUsers) ActiveByID(_ context.Context, id string) (*model.User, error) {
	user, ok := s[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	if !user.IsActive {
		return nil, service.ErrUserInactive
	}
	return user, nil
}

type failingUsers struct{ err error }

func (f failingUsers) ActiveByID(context.Context, string) (*model.User, error) {
	return nil, f.err
}

func decodeDetail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["detail"]
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mark("first"), mark("second"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"first", "second", "handler"}, order)
}

func TestRequireAuth(t *testing.T) {
	issuer, err := token.NewIssuer("secret", time.Minute, time.Hour)
	require.NoError(t, err)

	active := &model.User{ID: "u1", Email: "a@b.com", IsActive: true}
	inactive := &model.User{ID: "u2", Email: "c@d.com", IsActive: false}
	users := stubUsers{active.ID: active, inactive.ID: inactive}

	activePair, err := issuer.IssueFor(active)
	require.NoError(t, err)
	inactivePair, err := issuer.IssueFor(inactive)
	require.NoError(t, err)
	ghostPair, err := issuer.IssueFor(&model.User{ID: "gone"})
	require.NoError(t, err)

	protected := RequireAuth(issuer, users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := ctxkeys.User(r.Context())
		_, _ = w.Write([]byte(user.ID))
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
		wantDetail string
	}{
		{"valid token", "Bearer " + activePair.Access, http.StatusOK, "u1", ""},
		{"lowercase scheme", "bearer " + activePair.Access, http.StatusOK, "u1", ""},
		{"missing header", "", http.StatusUnauthorized, "", "Authentication credentials were not provided."},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "", "Authentication credentials were not provided."},
		{"refresh token", "Bearer " + activePair.Refresh, http.StatusUnauthorized, "", "Token is invalid or expired"},
		{"garbage", "Bearer nope", http.StatusUnauthorized, "", "Token is invalid or expired"},
		{"inactive user", "Bearer " + inactivePair.Access, http.StatusUnauthorized, "", "User not found or inactive"},
		{"deleted user", "Bearer " + ghostPair.Access, http.StatusUnauthorized, "", "User not found or inactive"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/auth/me/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantDetail != "" {
				assert.Equal(t, tc.wantDetail, decodeDetail(t, rec))
				assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
			} else {
				assert.Equal(t, tc.wantBody, rec.Body.String())
			}
		})
	}
}

func TestRequireAuth_StoreFailure(t *testing.T) {
	issuer, err := token.NewIssuer("secret", time.Minute, time.Hour)
	require.NoError(t, err)
	pair, err := issuer.IssueFor(&model.User{ID: "u1"})
	require.NoError(t, err)

	users := failingUsers{err: errors.New("database is locked")}
	protected := RequireAuth(issuer, users)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/auth/me/", nil)
	req.Header.Set("Authorization", "Bearer "+pair.Access)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "unexpected error", decodeDetail(t, rec))
	assert.Empty(t, rec.Header().Get("WWW-Authenticate"))
}

func TestRecover(t *testing.T) {
	h := Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "unexpected error", decodeDetail(t, rec))
}

func TestRecover_PassesThrough(t *testing.T) {
	h := Recover(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestMetrics_LabelsByPattern(t *testing.T) {
	m := metrics.New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/login/google/{$}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusFound)
	})

	h := Chain(mux, RequestLogging, Metrics(m), Recover)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/auth/login/google/", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `accounts_http_requests_total{method="GET",route="GET /auth/login/google/{$}",status="302"} 1`)
	assert.Contains(t, body, `accounts_http_requests_total{method="GET",route="unmatched",status="404"} 1`)
}

func TestRequestLogging_CapturesStatus(t *testing.T) {
	var captured *responseWriter
	h := RequestLogging(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		captured = wrapResponseWriter(w)
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/me/", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	require.NotNil(t, captured)
	assert.Equal(t, http.StatusTeapot, captured.statusCode)
}
