package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret-key-32-bytes-long!!!")

func makeToken(subject string, exp time.Time) string {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, _ := tok.SignedString(testSecret)
	return signed
}

func newVerifier() JWTVerifier { return JWTVerifier{Secret: testSecret} }

func TestJWTVerifier_ValidToken(t *testing.T) {
	claims, err := newVerifier().Parse(makeToken("user-1", time.Now().Add(time.Hour)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("expected subject 'user-1', got %q", claims.Subject)
	}
}

func TestJWTVerifier_Rejects(t *testing.T) {
	valid := makeToken("user-1", time.Now().Add(time.Hour))
	parts := strings.Split(valid, ".")

	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}})
	noExpSigned, _ := noExp.SignedString(testSecret)

	hs512 := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	hs512Signed, _ := hs512.SignedString(testSecret)

	cases := map[string]struct {
		verifier JWTVerifier
		token    string
	}{
		"expired":      {newVerifier(), makeToken("user-1", time.Now().Add(-time.Hour))},
		"wrong secret": {JWTVerifier{Secret: []byte("wrong-secret")}, valid},
		"malformed":    {newVerifier(), "not.a.valid.token"},
		"tampered":     {newVerifier(), parts[0] + ".dGFtcGVyZWQ." + parts[2]},
		"missing exp":  {newVerifier(), noExpSigned},
		"wrong alg":    {newVerifier(), hs512Signed},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := tc.verifier.Parse(tc.token); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func callRequireUser(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	RequireUser(newVerifier())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, _ := UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(uid))
	})).ServeHTTP(rr, req)
	return rr
}

func TestRequireUser_ValidBearer(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+makeToken("user-42", time.Now().Add(time.Hour)))

	rr := callRequireUser(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Body.String() != "user-42" {
		t.Fatalf("expected 'user-42' in body, got %q", rr.Body.String())
	}
}

func TestRequireUser_Unauthorized(t *testing.T) {
	headers := []string{
		"",
		"Basic dXNlcjpwYXNz",
		"Bearer invalid.token.here",
		"Bearer " + makeToken("user-1", time.Now().Add(-time.Hour)),
		"Bearer " + makeToken("", time.Now().Add(time.Hour)),
	}
	for _, h := range headers {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if h != "" {
			req.Header.Set("Authorization", h)
		}
		rr := callRequireUser(req)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", h, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "UNAUTHORIZED") {
			t.Fatalf("header %q: expected JSON error body, got %q", h, rr.Body.String())
		}
	}
}

func TestVerifyStaticToken(t *testing.T) {
	cases := []struct {
		header  string
		allowed bool
	}{
		{"Bearer secret", true},
		{"Bearer secret ", true},
		{"bearer secret", true},
		{"Bearer other", false},
		{"secret", false},
		{"Bearer ", false},
		{"", false},
	}
	for _, c := range cases {
		if VerifyStaticToken(c.header, "secret") != c.allowed {
			t.Fatalf("VerifyStaticToken(%q) expected %v", c.header, c.allowed)
		}
	}
	if VerifyStaticToken("Bearer ", "") {
		t.Fatal("empty expected token must never match")
	}
}

func TestRequireStaticToken(t *testing.T) {
	h := RequireStaticToken("secret")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/movies", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	req.Header.Set("Authorization", "Bearer secret")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
}
