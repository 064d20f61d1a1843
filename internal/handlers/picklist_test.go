package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/touchstonehq/touchstone/internal/audit"
	"github.com/touchstonehq/touchstone/internal/database"
	"github.com/touchstonehq/touchstone/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	app  *fiber.App
	db   *gorm.DB
	user models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	user := models.User{
		Username:     "tendai",
		DisplayName:  "Tendai Moyo",
		Role:         "admin",
		PasswordHash: "x",
		Active:       true,
	}
	require.NoError(t, db.Create(&user).Error)

	hub := audit.NewHub()
	rec := audit.NewRecorder(hub)

	picklistHandler := NewPicklistHandler(db, rec)
	auditHandler := NewAuditHandler(db, hub)
	accountHandler := NewAccountHandler(db, rec)

	app := fiber.New()
	// Stand-in for the JWT middleware.
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", user.ID)
		c.Locals("username", user.Username)
		c.Locals("display_name", user.DisplayName)
		c.Locals("role", user.Role)
		return c.Next()
	})

	app.Get("/api/picklists", picklistHandler.ListAll)
	app.Get("/api/picklists/:type", picklistHandler.List)
	app.Post("/api/picklists/:type", picklistHandler.Create)
	app.Put("/api/picklists/:type/:id", picklistHandler.Update)
	app.Delete("/api/picklists/:type/:id", picklistHandler.Delete)
	app.Get("/api/audit", auditHandler.GetFeed)
	app.Post("/api/accounts", accountHandler.CreateAccount)

	return &testEnv{app: app, db: db, user: user}
}

func (e *testEnv) request(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var req *http.Request
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		req = httptest.NewRequest(method, path, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestPicklistCreateRenameAuditTrail(t *testing.T) {
	env := newTestEnv(t)

	resp, created := env.request(t, http.MethodPost, "/api/picklists/area", fiber.Map{"identifier": "Harare"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	entryID := created["id"].(string)

	// Distinct timestamps so the feed order is unambiguous.
	time.Sleep(50 * time.Millisecond)

	resp, _ = env.request(t, http.MethodPut, "/api/picklists/area/"+entryID, fiber.Map{"identifier": "Harare North"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	url := fmt.Sprintf("/api/audit?table=area&user_id=%s", env.user.ID)
	resp, feed := env.request(t, http.MethodGet, url, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	events := feed["events"].([]any)
	require.Len(t, events, 2)

	newest := events[0].(map[string]any)
	oldest := events[1].(map[string]any)

	assert.Equal(t, "update", newest["kind"])
	assert.Equal(t, "area", newest["table"])
	assert.Equal(t, "Tendai Moyo", newest["user"])
	assert.Equal(t, map[string]any{
		"identifier": map[string]any{"from": "Harare", "to": "Harare North"},
	}, newest["details"])

	assert.Equal(t, "create", oldest["kind"])
	assert.Equal(t, map[string]any{"identifier": "Harare"}, oldest["details"])
}

func TestPicklistDeleteAudited(t *testing.T) {
	env := newTestEnv(t)

	resp, created := env.request(t, http.MethodPost, "/api/picklists/status", fiber.Map{"identifier": "Active"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	entryID := created["id"].(string)

	resp, _ = env.request(t, http.MethodDelete, "/api/picklists/status/"+entryID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, feed := env.request(t, http.MethodGet, "/api/audit?table=status&kind=delete", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	events := feed["events"].([]any)
	require.Len(t, events, 1)
	ev := events[0].(map[string]any)
	assert.Equal(t, "delete", ev["kind"])
	assert.Equal(t, map[string]any{"identifier": "Active"}, ev["details"])
}

func TestPicklistDeleteRefusedWhileReferenced(t *testing.T) {
	env := newTestEnv(t)

	resp, created := env.request(t, http.MethodPost, "/api/picklists/area", fiber.Map{"identifier": "Harare"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	areaID := created["id"].(string)

	resp, _ = env.request(t, http.MethodPost, "/api/accounts", fiber.Map{
		"name":    "Acme Ltd",
		"area_id": areaID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := env.request(t, http.MethodDelete, "/api/picklists/area/"+areaID, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, true, body["error"])
}

func TestPicklistUnknownType(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.request(t, http.MethodPost, "/api/picklists/flavour", fiber.Map{"identifier": "x"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInvalidAuditFilterFallsBackToNoFilter(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.request(t, http.MethodPost, "/api/picklists/area", fiber.Map{"identifier": "Harare"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Unknown table and malformed user_id are ignored, not errors.
	resp, feed := env.request(t, http.MethodGet, "/api/audit?table=bogus&user_id=not-a-uuid", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, feed["events"].([]any), 1)
}
