package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-platform-api/model"
	authutil "github.com/sahilchouksey/course-platform-api/utils/auth"
	"github.com/sahilchouksey/course-platform-api/utils/middleware"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

type fakeMailer struct {
	to, token string
	err       error
}

func (m *fakeMailer) SendVerificationEmail(to, token string) error {
	m.to, m.token = to, token
	return m.err
}

func setupApp(t *testing.T, mailer VerificationMailer) (*fiber.App, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.JWTTokenBlacklist{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	jwtManager := authutil.NewJWTManager(authutil.JWTConfig{
		Secret:        "test-secret",
		Expiry:        time.Hour,
		RefreshExpiry: 24 * time.Hour,
		Issuer:        "course-platform-test",
	})
	h := NewAuthHandler(db, jwtManager, middleware.NewBruteForceProtection(nil), mailer, nil)
	h.hashCost = bcrypt.MinCost
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, db)

	app := fiber.New()
	g := app.Group("/auth")
	g.Post("/register", h.Register)
	g.Get("/verify/:token", h.Verify)
	g.Post("/login", h.Login)
	g.Post("/refresh", h.RefreshToken)
	g.Post("/logout", authMiddleware.Required(), h.Logout)
	g.Get("/me", authMiddleware.Required(), h.GetProfile)
	return app, db
}

func do(t *testing.T, app *fiber.App, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request %s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	return resp.StatusCode, env
}

func TestRegisterVerifyLoginLogout(t *testing.T) {
	mailer := &fakeMailer{}
	app, db := setupApp(t, mailer)

	status, env := do(t, app, http.MethodPost, "/auth/register", "", fiber.Map{
		"email": "Student@Example.com", "password1": "password123", "password2": "password123", "country": "RU",
	})
	if status != http.StatusCreated {
		t.Fatalf("register status %d %+v", status, env.Error)
	}
	if mailer.to != "student@example.com" || mailer.token == "" {
		t.Fatalf("verification email not sent: %+v", mailer)
	}

	// inactive accounts cannot log in
	status, _ = do(t, app, http.MethodPost, "/auth/login", "", fiber.Map{"email": "student@example.com", "password": "password123"})
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 before verification, got %d", status)
	}

	if status, _ = do(t, app, http.MethodGet, "/auth/verify/"+mailer.token, "", nil); status != http.StatusOK {
		t.Fatalf("verify status %d", status)
	}
	if status, _ = do(t, app, http.MethodGet, "/auth/verify/"+mailer.token, "", nil); status != http.StatusNotFound {
		t.Fatalf("second verify should fail, got %d", status)
	}

	status, env = do(t, app, http.MethodPost, "/auth/login", "", fiber.Map{"email": "student@example.com", "password": "password123"})
	if status != http.StatusOK {
		t.Fatalf("login status %d %+v", status, env.Error)
	}
	var login struct {
		User    UserResponse `json:"user"`
		Access  string       `json:"access"`
		Refresh string       `json:"refresh"`
	}
	if err := json.Unmarshal(env.Data, &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if login.Access == "" || login.Refresh == "" || login.User.LastLogin == nil {
		t.Fatalf("unexpected login payload %s", env.Data)
	}

	var stored model.User
	db.First(&stored, login.User.ID)
	if stored.LastLogin == nil {
		t.Fatal("last_login not persisted")
	}

	if status, _ = do(t, app, http.MethodGet, "/auth/me", login.Access, nil); status != http.StatusOK {
		t.Fatalf("me status %d", status)
	}

	status, env = do(t, app, http.MethodPost, "/auth/refresh", "", fiber.Map{"refresh": login.Refresh})
	if status != http.StatusOK {
		t.Fatalf("refresh status %d %+v", status, env.Error)
	}
	if status, _ = do(t, app, http.MethodPost, "/auth/refresh", "", fiber.Map{"refresh": login.Refresh}); status != http.StatusUnauthorized {
		t.Fatalf("reused refresh token should be rejected, got %d", status)
	}

	if status, _ = do(t, app, http.MethodPost, "/auth/logout", login.Access, nil); status != http.StatusOK {
		t.Fatalf("logout status %d", status)
	}
	if status, _ = do(t, app, http.MethodGet, "/auth/me", login.Access, nil); status != http.StatusUnauthorized {
		t.Fatalf("revoked token should be rejected, got %d", status)
	}
}

func TestRegisterValidation(t *testing.T) {
	app, _ := setupApp(t, &fakeMailer{err: errors.New("smtp down")})

	status, env := do(t, app, http.MethodPost, "/auth/register", "", fiber.Map{
		"email": "a@example.com", "password1": "password123", "password2": "password999",
	})
	if status != http.StatusUnprocessableEntity || env.Error == nil || env.Error.Fields["password2"] != "Пароль должен совпадать" {
		t.Fatalf("expected password mismatch, got %d %+v", status, env.Error)
	}

	body := fiber.Map{"email": "a@example.com", "password1": "password123", "password2": "password123"}
	// a failing mailer does not fail registration
	if status, _ = do(t, app, http.MethodPost, "/auth/register", "", body); status != http.StatusCreated {
		t.Fatalf("register status %d", status)
	}
	if status, _ = do(t, app, http.MethodPost, "/auth/register", "", body); status != http.StatusConflict {
		t.Fatalf("duplicate email should conflict, got %d", status)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	app, db := setupApp(t, nil)
	hash, _ := authutil.HashPasswordWithCost("password123", bcrypt.MinCost)
	db.Create(&model.User{Email: "u@example.com", PasswordHash: hash, IsActive: true})

	if status, _ := do(t, app, http.MethodPost, "/auth/login", "", fiber.Map{"email": "u@example.com", "password": "wrong-pass"}); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", status)
	}
	if status, _ := do(t, app, http.MethodPost, "/auth/login", "", fiber.Map{"email": "nobody@example.com", "password": "password123"}); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", status)
	}
}
