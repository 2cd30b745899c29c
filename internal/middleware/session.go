package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// WizardSessionHeader carries the client's wizard session id. The browser
// keeps it alongside its local state; all wizard routes are scoped by it.
const WizardSessionHeader = "X-Wizard-Session"

const wizardSessionLocal = "wizard_session"

// WizardSession resolves the wizard session id from the request header,
// minting a fresh one when the client has none yet. The id is echoed back on
// every response so the client can persist it.
func WizardSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sid := c.Get(WizardSessionHeader)
		if sid == "" {
			sid = uuid.New().String()
		}
		c.Locals(wizardSessionLocal, sid)
		c.Set(WizardSessionHeader, sid)
		return c.Next()
	}
}

// GetWizardSession returns the session id resolved by WizardSession.
func GetWizardSession(c *fiber.Ctx) string {
	if id, ok := c.Locals(wizardSessionLocal).(string); ok {
		return id
	}
	return ""
}
