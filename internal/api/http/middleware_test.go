package http

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func newErrorApp() *fiber.App {
	app := fiber.New()
	app.Use(errorHandlingMiddleware(zap.NewNop(), nil))
	app.Get("/fields", func(c *fiber.Ctx) error {
		return apperrors.NewFieldErrors(map[string]string{"subject": "is required"})
	})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("database exploded")
	})
	app.Get("/panic", func(c *fiber.Ctx) error {
		panic("nil map")
	})
	app.Get("/throttled", func(c *fiber.Ctx) error {
		return apperrors.NewTooManyRequests("slow down")
	})
	app.Get("/ok", func(c *fiber.Ctx) error {
		return c.SendString("fine")
	})
	return app
}

func doRequest(t *testing.T, app *fiber.App, path string) (int, errorEnvelope) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, path, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	var env errorEnvelope
	if resp.StatusCode >= 400 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp.StatusCode, env
}

func TestErrorHandling_FieldErrors(t *testing.T) {
	status, env := doRequest(t, newErrorApp(), "/fields")

	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	assert.Equal(t, map[string]any{"subject": "is required"}, env.Error.Details["fields"])
}

func TestErrorHandling_HidesInternalErrors(t *testing.T) {
	app := newErrorApp()

	for _, path := range []string{"/boom", "/panic"} {
		status, env := doRequest(t, app, path)
		assert.Equal(t, fiber.StatusInternalServerError, status, path)
		assert.Equal(t, "INTERNAL_ERROR", env.Error.Code, path)
		assert.Equal(t, "internal server error", env.Error.Message, path)
	}
}

func TestErrorHandling_UnknownRoute(t *testing.T) {
	status, env := doRequest(t, newErrorApp(), "/missing")

	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestErrorHandling_PassesSuccess(t *testing.T) {
	status, _ := doRequest(t, newErrorApp(), "/ok")

	assert.Equal(t, fiber.StatusOK, status)
}

func TestErrorHandling_RateLimitedSetsRetryAfter(t *testing.T) {
	resp, err := newErrorApp().Test(httptest.NewRequest(fiber.MethodGet, "/throttled", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "30", resp.Header.Get(fiber.HeaderRetryAfter))
}
