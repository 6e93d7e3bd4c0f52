package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/openclub/clubd/cache"
	"github.com/openclub/clubd/domain"
	"github.com/openclub/clubd/errors"
	"github.com/openclub/clubd/internal/alert"
)

// --- Mock Implementations ---

type MockBlacklistRepository struct {
	mock.Mock
}

func (m *MockBlacklistRepository) Add(ctx context.Context, entry *domain.BlacklistIP) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockBlacklistRepository) Remove(ctx context.Context, ip string) error {
	args := m.Called(ctx, ip)
	return args.Error(0)
}

func (m *MockBlacklistRepository) Exists(ctx context.Context, ip string) (bool, error) {
	args := m.Called(ctx, ip)
	return args.Bool(0), args.Error(1)
}

func (m *MockBlacklistRepository) List(ctx context.Context) ([]*domain.BlacklistIP, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.BlacklistIP), args.Error(1)
}

type MockMemberRepository struct {
	mock.Mock
}

func (m *MockMemberRepository) CreateMember(ctx context.Context, member *domain.Member) error {
	args := m.Called(ctx, member)
	return args.Error(0)
}

func (m *MockMemberRepository) GetMemberByID(ctx context.Context, id string) (*domain.Member, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Member), args.Error(1)
}

func (m *MockMemberRepository) ListMembers(ctx context.Context) ([]*domain.Member, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Member), args.Error(1)
}

func (m *MockMemberRepository) SetLastLoginAt(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockMemberRepository) DeleteMember(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// plainVerifier treats the stored hash as the plaintext password.
type plainVerifier struct{}

func (plainVerifier) Verify(hashedPassword, password string) error {
	if hashedPassword != password {
		return errors.ErrLoginFailed
	}
	return nil
}

func serve(t *testing.T, mw echo.MiddlewareFunc, decorate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	if decorate != nil {
		decorate(req)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := mw(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestIPGateLetsCleanIPThrough(t *testing.T) {
	blacklist := new(MockBlacklistRepository)
	blacklist.On("Exists", mock.Anything, "10.0.0.1").Return(false, nil)
	attempts := cache.NewMemoryAttemptStore(3, 5*time.Minute)

	rec := serve(t, NewIPGate(blacklist, attempts).Gate, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIPGateRejectsBlacklistedIP(t *testing.T) {
	blacklist := new(MockBlacklistRepository)
	blacklist.On("Exists", mock.Anything, "10.0.0.1").Return(true, nil)
	attempts := cache.NewMemoryAttemptStore(3, 5*time.Minute)

	rec := serve(t, NewIPGate(blacklist, attempts).Gate, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"success": false}`, rec.Body.String())
}

func TestIPGateRejectsThrottledIP(t *testing.T) {
	blacklist := new(MockBlacklistRepository)
	blacklist.On("Exists", mock.Anything, "10.0.0.1").Return(false, nil)
	attempts := cache.NewMemoryAttemptStore(3, 5*time.Minute)
	for i := 0; i < 3; i++ {
		require.NoError(t, attempts.Record(context.Background(), "10.0.0.1"))
	}

	rec := serve(t, NewIPGate(blacklist, attempts).Gate, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIPGateFailsOpenOnStoreErrors(t *testing.T) {
	blacklist := new(MockBlacklistRepository)
	blacklist.On("Exists", mock.Anything, "10.0.0.1").Return(false, fmt.Errorf("redis gone"))
	attempts := cache.NewMemoryAttemptStore(3, 5*time.Minute)

	rec := serve(t, NewIPGate(blacklist, attempts).Gate, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRoleAnonymous(t *testing.T) {
	rec := serve(t, RequireRole(domain.RoleAdmin), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRoleOrdering(t *testing.T) {
	tests := []struct {
		role domain.Role
		min  domain.Role
		want int
	}{
		{domain.RoleGuest, domain.RoleUser, http.StatusForbidden},
		{domain.RoleUser, domain.RoleUser, http.StatusOK},
		{domain.RoleUser, domain.RoleAdmin, http.StatusForbidden},
		{domain.RoleAdmin, domain.RoleAdmin, http.StatusOK},
		{domain.RoleAdmin, domain.RoleSuper, http.StatusForbidden},
		{domain.RoleSuper, domain.RoleAdmin, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"_vs_"+string(tt.min), func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/probe", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.Set(PrincipalKey, &domain.Principal{MemberID: "pat", Role: tt.role})

			handler := RequireRole(tt.min)(func(c echo.Context) error {
				return c.NoContent(http.StatusOK)
			})
			if err := handler(c); err != nil {
				e.HTTPErrorHandler(err, c)
			}
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func newDocGate(members *MockMemberRepository, attempts cache.AttemptStore, notifier alert.Notifier, allowed []string) *DocGate {
	return NewDocGate(members, attempts, notifier, plainVerifier{}, allowed)
}

func TestDocGateRejectsUnlistedIP(t *testing.T) {
	members := new(MockMemberRepository)
	attempts := cache.NewMemoryAttemptStore(3, 5*time.Minute)

	gate := newDocGate(members, attempts, alert.NopNotifier{}, []string{"172.16.0.9"})
	rec := serve(t, gate.Gate, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	members.AssertNotCalled(t, "GetMemberByID", mock.Anything, mock.Anything)
}

func TestDocGateChallengesWithoutCredentials(t *testing.T) {
	members := new(MockMemberRepository)
	attempts := cache.NewMemoryAttemptStore(3, 5*time.Minute)

	gate := newDocGate(members, attempts, alert.NopNotifier{}, []string{"*"})
	rec := serve(t, gate.Gate, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderWWWAuthenticate), "Basic")

	// A bare challenge does not consume attempts.
	blocked, err := attempts.IsBlocked(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestDocGateAdminWithCorrectPassword(t *testing.T) {
	members := new(MockMemberRepository)
	members.On("GetMemberByID", mock.Anything, "root").
		Return(&domain.Member{ID: "root", PasswordHash: "hunter2", Role: domain.RoleAdmin}, nil)
	attempts := cache.NewMemoryAttemptStore(3, 5*time.Minute)

	gate := newDocGate(members, attempts, alert.NopNotifier{}, []string{"10.0.0.1"})
	rec := serve(t, gate.Gate, func(req *http.Request) {
		req.SetBasicAuth("root", "hunter2")
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDocGateCountsBadCredentials(t *testing.T) {
	members := new(MockMemberRepository)
	members.On("GetMemberByID", mock.Anything, "root").
		Return(&domain.Member{ID: "root", PasswordHash: "hunter2", Role: domain.RoleAdmin}, nil)
	attempts := cache.NewMemoryAttemptStore(2, 5*time.Minute)

	gate := newDocGate(members, attempts, alert.NopNotifier{}, []string{"*"})
	for i := 0; i < 2; i++ {
		rec := serve(t, gate.Gate, func(req *http.Request) {
			req.SetBasicAuth("root", "wrong")
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	blocked, err := attempts.IsBlocked(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, blocked, "two bad credential attempts must exhaust the window")
}

func TestDocGateRejectsNonAdminMember(t *testing.T) {
	members := new(MockMemberRepository)
	members.On("GetMemberByID", mock.Anything, "pat").
		Return(&domain.Member{ID: "pat", PasswordHash: "hunter2", Role: domain.RoleUser}, nil)
	attempts := cache.NewMemoryAttemptStore(3, 5*time.Minute)

	gate := newDocGate(members, attempts, alert.NopNotifier{}, []string{"*"})
	rec := serve(t, gate.Gate, func(req *http.Request) {
		req.SetBasicAuth("pat", "hunter2")
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
