package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/requestdata"
	"github.com/coursebuilder/backend/internal/services"
	"github.com/coursebuilder/backend/internal/types"
)

// fakeAuth accepts exactly one token string and maps it to a fixed user.
type fakeAuth struct {
	token  string
	userID uuid.UUID
}

func (f *fakeAuth) Register(ctx context.Context, email, password, name string) (*types.User, *services.TokenPair, error) {
	return nil, nil, errors.New("not implemented")
}

func (f *fakeAuth) Login(ctx context.Context, email, password string) (*types.User, *services.TokenPair, error) {
	return nil, nil, errors.New("not implemented")
}

func (f *fakeAuth) Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeAuth) Logout(ctx context.Context, refreshToken string) error {
	return errors.New("not implemented")
}

func (f *fakeAuth) ParseAccessToken(tokenString string) (*services.Claims, error) {
	if tokenString != f.token {
		return nil, errors.New("token is invalid")
	}
	return &services.Claims{UserID: f.userID.String(), Role: "user"}, nil
}

var _ services.AuthService = (*fakeAuth)(nil)

func newAuthRig(t *testing.T, required bool) (*gin.Engine, *fakeAuth) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	auth := &fakeAuth{token: "good-token", userID: uuid.New()}
	am := NewAuthMiddleware(logger.NewNop(), auth)

	mw := am.OptionalAuth()
	if required {
		mw = am.RequireAuth()
	}
	r := gin.New()
	r.GET("/whoami", mw, func(c *gin.Context) {
		rd := requestdata.GetRequestData(c.Request.Context())
		if rd == nil {
			c.JSON(http.StatusOK, gin.H{"user_id": nil})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": rd.UserID.String()})
	})
	return r, auth
}

func get(r *gin.Engine, target, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuthRejectsMissingToken(t *testing.T) {
	r, _ := newAuthRig(t, true)

	if w := get(r, "/whoami", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestRequireAuthRejectsInvalidToken(t *testing.T) {
	r, _ := newAuthRig(t, true)

	if w := get(r, "/whoami", "forged"); w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestRequireAuthResolvesIdentity(t *testing.T) {
	r, auth := newAuthRig(t, true)

	w := get(r, "/whoami", "good-token")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	want := `"user_id":"` + auth.userID.String() + `"`
	if got := w.Body.String(); !strings.Contains(got, want) {
		t.Fatalf("body %q missing %q", got, want)
	}
}

func TestRequireAuthAcceptsQueryToken(t *testing.T) {
	r, _ := newAuthRig(t, true)

	w := get(r, "/whoami?token=good-token", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestOptionalAuthLetsAnonymousThrough(t *testing.T) {
	r, _ := newAuthRig(t, false)

	w := get(r, "/whoami", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Body.String(); !strings.Contains(got, `"user_id":null`) {
		t.Fatalf("anonymous request resolved an identity: %q", got)
	}
}

func TestOptionalAuthIgnoresBadToken(t *testing.T) {
	r, _ := newAuthRig(t, false)

	w := get(r, "/whoami", "forged")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Body.String(); !strings.Contains(got, `"user_id":null`) {
		t.Fatalf("bad token resolved an identity: %q", got)
	}
}

func TestOptionalAuthResolvesValidToken(t *testing.T) {
	r, auth := newAuthRig(t, false)

	w := get(r, "/whoami", "good-token")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	want := `"user_id":"` + auth.userID.String() + `"`
	if got := w.Body.String(); !strings.Contains(got, want) {
		t.Fatalf("body %q missing %q", got, want)
	}
}
