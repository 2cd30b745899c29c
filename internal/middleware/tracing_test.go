package middleware

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTracingTest() *fiber.App {
	app := fiber.New()
	app.Use(Tracing())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(GetTraceID(c))
	})
	return app
}

// TestTracing_PropagatesInboundID keeps a client-supplied trace id.
func TestTracing_PropagatesInboundID(t *testing.T) {
	app := setupTracingTest()
	id := uuid.New().String()

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(traceIDHeader, id)
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, id, resp.Header.Get(traceIDHeader))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, id, string(body))
}

// TestTracing_MintsWhenAbsentOrInvalid replaces missing or garbage ids.
func TestTracing_MintsWhenAbsentOrInvalid(t *testing.T) {
	app := setupTracingTest()

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	minted := resp.Header.Get(traceIDHeader)
	assert.NoError(t, uuid.Validate(minted))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(traceIDHeader, "not-a-uuid")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.NotEqual(t, "not-a-uuid", resp.Header.Get(traceIDHeader))
	assert.NoError(t, uuid.Validate(resp.Header.Get(traceIDHeader)))
}
