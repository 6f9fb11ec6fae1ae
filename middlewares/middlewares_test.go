package middlewares_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/marutilaminates/laminates_backend/config"
	"github.com/marutilaminates/laminates_backend/middlewares"
	"github.com/marutilaminates/laminates_backend/models"
	"github.com/marutilaminates/laminates_backend/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func openTestDB(t *testing.T) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := config.OpenDatabase(config.DriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", name))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	config.UseDatabase(db)
	if err := models.MigrateTable(); err != nil {
		t.Fatalf("MigrateTable: %v", err)
	}
}

func mustUser(t *testing.T, email string, role models.UserRole) *models.User {
	t.Helper()
	u, err := models.CreateUser(context.Background(), &models.NewUser{Email: email, Password: "secret123", Role: role})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func bearer(t *testing.T, u *models.User) string {
	t.Helper()
	token, err := utils.JwtGenerate(u.ID, u.Email, int(u.Role))
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	return "Bearer " + token
}

type envelope struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Errors  map[string]any `json:"errors"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return env
}

func serve(r *gin.Engine, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	openTestDB(t)
	employee := mustUser(t, "emp@example.com", models.UserRoleEmployee)
	gone := mustUser(t, "gone@example.com", models.UserRoleEmployee)
	goneToken := bearer(t, gone)
	if err := config.GetDB().Delete(gone).Error; err != nil {
		t.Fatalf("delete: %v", err)
	}

	r := gin.New()
	r.GET("/me", middlewares.AuthMiddleware(), func(c *gin.Context) {
		id, _ := utils.GetUserIdFromContext(c.Request.Context())
		c.String(http.StatusOK, id)
	})

	tests := []struct {
		name   string
		auth   string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"deleted user", goneToken, http.StatusUnauthorized},
		{"valid", bearer(t, employee), http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(r, http.MethodGet, "/me", tc.auth)
			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tc.status, w.Body.String())
			}
			if tc.status == http.StatusOK && w.Body.String() != employee.ID {
				t.Fatalf("user id in context = %q", w.Body.String())
			}
			if tc.status != http.StatusOK {
				if env := decode(t, w); env.Success || env.Errors["code"] != string(utils.KindUnauthorized) {
					t.Fatalf("unexpected envelope %+v", env)
				}
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	openTestDB(t)
	admin := mustUser(t, "admin@example.com", models.UserRoleAdmin)
	employee := mustUser(t, "emp@example.com", models.UserRoleEmployee)

	r := gin.New()
	r.DELETE("/thing", middlewares.AuthMiddleware(), middlewares.RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	if w := serve(r, http.MethodDelete, "/thing", bearer(t, employee)); w.Code != http.StatusForbidden {
		t.Fatalf("employee status = %d", w.Code)
	}
	if w := serve(r, http.MethodDelete, "/thing", bearer(t, admin)); w.Code != http.StatusNoContent {
		t.Fatalf("admin status = %d", w.Code)
	}
}

func ist() *time.Location {
	return config.GetEditWindowConfig().Location
}

func seedQuotation(t *testing.T, createdAt time.Time) string {
	t.Helper()
	db := config.GetDB()
	// (name, mobile_no) is unique, so each seeded quotation gets its own customer.
	customer := models.Customer{Name: "Ravi Patel " + createdAt.Format("20060102T150405"), MobileNo: "9876543210"}
	if err := db.Create(&customer).Error; err != nil {
		t.Fatalf("customer: %v", err)
	}
	q := models.Quotation{
		QuotationDate: createdAt,
		CustomerID:    customer.ID,
		PriceType:     models.PriceTypeInclusiveTax,
		CreatedAt:     createdAt,
	}
	if err := db.Omit("Customer", "Creator", "Items").Create(&q).Error; err != nil {
		t.Fatalf("quotation: %v", err)
	}
	return q.ID
}

func TestEditWindow(t *testing.T) {
	openTestDB(t)
	loc := ist()
	today := seedQuotation(t, time.Date(2025, 8, 1, 8, 30, 0, 0, loc))
	yesterday := seedQuotation(t, time.Date(2025, 7, 31, 17, 30, 0, 0, loc))

	tests := []struct {
		name   string
		admin  bool
		now    time.Time
		id     string
		status int
		code   string
	}{
		{"employee in hours today", false, time.Date(2025, 8, 1, 10, 0, 0, 0, loc), today, http.StatusOK, ""},
		{"employee before opening", false, time.Date(2025, 8, 1, 8, 59, 0, 0, loc), today, http.StatusBadRequest, middlewares.CodeTimeAccessRestricted},
		{"employee at closing", false, time.Date(2025, 8, 1, 18, 0, 0, 0, loc), today, http.StatusBadRequest, middlewares.CodeTimeAccessRestricted},
		{"employee old quotation", false, time.Date(2025, 8, 1, 10, 0, 0, 0, loc), yesterday, http.StatusBadRequest, middlewares.CodeDateAccessRestricted},
		{"employee unknown quotation", false, time.Date(2025, 8, 1, 10, 0, 0, 0, loc), "missing", http.StatusNotFound, string(utils.KindNotFound)},
		{"admin at night on old quotation", true, time.Date(2025, 8, 1, 23, 0, 0, 0, loc), yesterday, http.StatusOK, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			now := tc.now
			r := gin.New()
			r.PUT("/quotations/:id",
				func(c *gin.Context) {
					ctx := utils.SetUserIdInContext(c.Request.Context(), "u1")
					c.Request = c.Request.WithContext(utils.SetIsAdminInContext(ctx, tc.admin))
				},
				middlewares.EditWindow(func() time.Time { return now.UTC() }),
				func(c *gin.Context) { c.Status(http.StatusOK) },
			)
			w := serve(r, http.MethodPut, "/quotations/"+tc.id, "")
			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tc.status, w.Body.String())
			}
			if tc.code != "" {
				if env := decode(t, w); env.Errors["code"] != tc.code {
					t.Fatalf("code = %v, want %s", env.Errors["code"], tc.code)
				}
			}
		})
	}
}

func TestMemoryRateLimit(t *testing.T) {
	r := gin.New()
	r.Use(middlewares.MemoryRateLimit(2, time.Minute))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 2; i++ {
		if w := serve(r, http.MethodGet, "/ping", ""); w.Code != http.StatusNoContent {
			t.Fatalf("request %d status = %d", i+1, w.Code)
		}
	}
	w := serve(r, http.MethodGet, "/ping", "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d", w.Code)
	}
	if env := decode(t, w); env.Errors["code"] != middlewares.CodeRateLimited {
		t.Fatalf("code = %v", env.Errors["code"])
	}
}
