package wizard

import (
	"errors"
	"time"

	"solhome-backend/internal/hub"
	"solhome-backend/internal/middleware"
	"solhome-backend/internal/models"
	"solhome-backend/internal/pkg/response"
	"solhome-backend/internal/records"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Handlers exposes the wizard controller over HTTP.
type Handlers struct {
	Manager *Manager
}

func (h *Handlers) controller(c *fiber.Ctx) *Controller {
	return h.Manager.Controller(c.Context(), middleware.GetWizardSession(c))
}

// GET /api/v1/wizard/state
func (h *Handlers) GetState(c *fiber.Ctx) error {
	return response.Success(c, "Wizard state fetched successfully", h.controller(c).State(), nil)
}

// POST /api/v1/wizard/next
func (h *Handlers) Next(c *fiber.Ctx) error {
	ctrl := h.controller(c)
	if err := ctrl.Next(c.Context()); err != nil {
		return transitionError(c, err)
	}
	return response.Success(c, "Advanced to next step", ctrl.State(), nil)
}

// POST /api/v1/wizard/previous
func (h *Handlers) Previous(c *fiber.Ctx) error {
	ctrl := h.controller(c)
	if err := ctrl.Previous(c.Context()); err != nil {
		return transitionError(c, err)
	}
	return response.Success(c, "Returned to previous step", ctrl.State(), nil)
}

// POST /api/v1/wizard/skip
func (h *Handlers) Skip(c *fiber.Ctx) error {
	ctrl := h.controller(c)
	if err := ctrl.Skip(c.Context()); err != nil {
		return transitionError(c, err)
	}
	return response.Success(c, "Step skipped", ctrl.State(), nil)
}

// POST /api/v1/wizard/goto — { "step": "summary" }
func (h *Handlers) GoTo(c *fiber.Ctx) error {
	var body struct {
		Step string `json:"step"`
	}
	if err := c.BodyParser(&body); err != nil || body.Step == "" {
		return response.Error(c, "Missing required field: step", 400, nil)
	}
	ctrl := h.controller(c)
	if err := ctrl.GoTo(c.Context(), Step(body.Step)); err != nil {
		return transitionError(c, err)
	}
	return response.Success(c, "Jumped to step", ctrl.State(), nil)
}

// POST /api/v1/wizard/complete
func (h *Handlers) Complete(c *fiber.Ctx) error {
	ctrl := h.controller(c)
	if err := ctrl.CompleteWizard(c.Context()); err != nil {
		return transitionError(c, err)
	}
	return response.Success(c, "Wizard completed", ctrl.State(), nil)
}

// POST /api/v1/wizard/reset
func (h *Handlers) Reset(c *fiber.Ctx) error {
	ctrl := h.controller(c)
	if err := ctrl.ResetWizard(c.Context()); err != nil {
		return response.Error(c, err.Error(), 500, nil)
	}
	return response.Success(c, "Wizard reset", ctrl.State(), nil)
}

type installationBody struct {
	Name             string   `json:"name"`
	RatedPowerKwp    float64  `json:"rated_power_kwp"`
	InstallDate      string   `json:"install_date"`
	PostalCode       string   `json:"postal_code"`
	Latitude         *float64 `json:"latitude"`
	Longitude        *float64 `json:"longitude"`
	OrientationDeg   *float64 `json:"orientation_deg"`
	TiltDeg          *float64 `json:"tilt_deg"`
	ManufacturerHint *string  `json:"manufacturer_hint"`
}

// POST /api/v1/wizard/installation
func (h *Handlers) CreateInstallation(c *fiber.Ctx) error {
	var body installationBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	if body.Name == "" {
		return response.Error(c, "Missing required field: name", 400, nil)
	}
	if body.RatedPowerKwp <= 0 {
		return response.Error(c, "Missing required field: rated_power_kwp", 400, nil)
	}
	installDate, err := parseDate(body.InstallDate)
	if err != nil {
		return response.Error(c, "Invalid install_date", 400, nil)
	}
	inst, err := h.controller(c).CreateInstallation(c.Context(), records.CreateInstallationInput{
		Name:             body.Name,
		RatedPowerKwp:    body.RatedPowerKwp,
		InstallDate:      installDate,
		PostalCode:       body.PostalCode,
		Latitude:         body.Latitude,
		Longitude:        body.Longitude,
		OrientationDeg:   body.OrientationDeg,
		TiltDeg:          body.TiltDeg,
		ManufacturerHint: body.ManufacturerHint,
	})
	if err != nil {
		return response.Error(c, err.Error(), 500, nil)
	}
	return response.SuccessCreated(c, "Installation created successfully", inst, nil)
}

// GET /api/v1/wizard/installation
func (h *Handlers) GetInstallation(c *fiber.Ctx) error {
	inst, err := h.controller(c).Installation(c.Context())
	if err != nil {
		if errors.Is(err, ErrNoInstallation) || errors.Is(err, records.ErrInstallationNotFound) {
			return response.Error(c, err.Error(), 404, nil)
		}
		return response.Error(c, err.Error(), 500, nil)
	}
	return response.Success(c, "Installation fetched successfully", inst, nil)
}

// DELETE /api/v1/wizard/installation
func (h *Handlers) DeleteInstallation(c *fiber.Ctx) error {
	ctrl := h.controller(c)
	if err := ctrl.DeleteInstallation(c.Context()); err != nil {
		if errors.Is(err, ErrNoInstallation) || errors.Is(err, records.ErrInstallationNotFound) {
			return response.Error(c, err.Error(), 404, nil)
		}
		return response.Error(c, err.Error(), 500, nil)
	}
	return response.Success(c, "Installation deleted successfully", ctrl.State(), nil)
}

type tariffBody struct {
	GridPrice     float64  `json:"grid_price"`
	FeedInRate    float64  `json:"feed_in_rate"`
	BaseFee       *float64 `json:"base_fee"`
	EffectiveFrom string   `json:"effective_from"`
	Label         *string  `json:"label"`
}

// POST /api/v1/wizard/tariff
func (h *Handlers) CreateTariff(c *fiber.Ctx) error {
	var body tariffBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	effectiveFrom, err := parseDate(body.EffectiveFrom)
	if err != nil {
		return response.Error(c, "Invalid effective_from", 400, nil)
	}
	tariff, err := h.controller(c).CreateTariff(c.Context(), records.CreateTariffInput{
		GridPrice:     body.GridPrice,
		FeedInRate:    body.FeedInRate,
		BaseFee:       body.BaseFee,
		EffectiveFrom: effectiveFrom,
		Label:         body.Label,
	})
	if err != nil {
		if errors.Is(err, ErrNoInstallation) || errors.Is(err, ErrTariffExists) {
			return response.Error(c, err.Error(), 409, nil)
		}
		return response.Error(c, err.Error(), 500, nil)
	}
	return response.SuccessCreated(c, "Tariff created successfully", tariff, nil)
}

// POST /api/v1/wizard/tariff/default
func (h *Handlers) UseDefaultTariff(c *fiber.Ctx) error {
	tariff, err := h.controller(c).UseDefaultTariff(c.Context())
	if err != nil {
		if errors.Is(err, ErrNoInstallation) || errors.Is(err, ErrTariffExists) {
			return response.Error(c, err.Error(), 409, nil)
		}
		return response.Error(c, err.Error(), 500, nil)
	}
	return response.SuccessCreated(c, "Default tariff created successfully", tariff, nil)
}

// GET /api/v1/wizard/connection
func (h *Handlers) ConnectionStatus(c *fiber.Ctx) error {
	connected, err := h.controller(c).ConnectionStatus(c.Context())
	if err != nil {
		connected = false
	}
	return response.Success(c, "Connection status fetched", fiber.Map{"connected": connected}, nil)
}

// POST /api/v1/wizard/discovery/run — { "manufacturer_hint": "fronius" }
func (h *Handlers) RunDiscovery(c *fiber.Ctx) error {
	var body struct {
		ManufacturerHint string `json:"manufacturer_hint"`
	}
	_ = c.BodyParser(&body)
	outcome, err := h.controller(c).RunDiscoveryAndCreateDrafts(c.Context(), body.ManufacturerHint)
	if err != nil {
		if errors.Is(err, hub.ErrNotConnected) {
			// Distinct from "zero devices found": the hub was unreachable.
			return response.Error(c, err.Error(), 502, fiber.Map{"connected": false})
		}
		if errors.Is(err, ErrNoInstallation) {
			return response.Error(c, err.Error(), 409, nil)
		}
		return response.Error(c, err.Error(), 500, nil)
	}
	return response.Success(c, "Discovery completed", outcome, nil)
}

// POST /api/v1/wizard/discovery/apply-best
func (h *Handlers) ApplyBestSuggestions(c *fiber.Ctx) error {
	applied, err := h.controller(c).ApplyBestSuggestions()
	if err != nil {
		if errors.Is(err, ErrNoDiscoveryResult) {
			return response.Error(c, err.Error(), 409, nil)
		}
		return response.Error(c, err.Error(), 500, nil)
	}
	return response.Success(c, "Best suggestions applied", fiber.Map{"applied": applied}, nil)
}

// GET /api/v1/wizard/investments
func (h *Handlers) ListInvestments(c *fiber.Ctx) error {
	return response.Success(c, "Investments fetched successfully", h.controller(c).Investments(), nil)
}

type investmentBody struct {
	Category        string                 `json:"category"`
	ParentID        *string                `json:"parent_id"`
	Name            string                 `json:"name"`
	Parameters      map[string]interface{} `json:"parameters"`
	AcquisitionDate *string                `json:"acquisition_date"`
	AcquisitionCost *float64               `json:"acquisition_cost"`
}

// POST /api/v1/wizard/investments
func (h *Handlers) AddInvestment(c *fiber.Ctx) error {
	var body investmentBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	if !models.ValidCategory(models.Category(body.Category)) {
		return response.Error(c, "Unknown investment category", 400, nil)
	}
	in := records.CreateInvestmentInput{
		Category:        models.Category(body.Category),
		Name:            body.Name,
		Parameters:      body.Parameters,
		AcquisitionCost: body.AcquisitionCost,
	}
	if body.ParentID != nil {
		pid, err := uuid.Parse(*body.ParentID)
		if err != nil {
			return response.Error(c, "Invalid parent_id", 400, nil)
		}
		in.ParentID = &pid
	}
	if body.AcquisitionDate != nil {
		d, err := parseDate(*body.AcquisitionDate)
		if err != nil {
			return response.Error(c, "Invalid acquisition_date", 400, nil)
		}
		in.AcquisitionDate = &d
	}
	inv, err := h.controller(c).AddInvestment(c.Context(), in)
	if err != nil {
		if errors.Is(err, ErrNoInstallation) {
			return response.Error(c, err.Error(), 409, nil)
		}
		return response.Error(c, err.Error(), 500, nil)
	}
	return response.SuccessCreated(c, "Investment created successfully", inv, nil)
}

// PATCH /api/v1/wizard/investments/:investment_id
func (h *Handlers) UpdateInvestment(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("investment_id"))
	if err != nil {
		return response.Error(c, "Invalid investment_id", 400, nil)
	}
	var partial map[string]interface{}
	if err := c.BodyParser(&partial); err != nil || len(partial) == 0 {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	inv, err := h.controller(c).UpdateInvestment(id, partial)
	if err != nil {
		if errors.Is(err, records.ErrInvestmentNotFound) {
			return response.Error(c, err.Error(), 404, nil)
		}
		return response.Error(c, err.Error(), 500, nil)
	}
	return response.Success(c, "Investment update buffered", inv, nil)
}

// DELETE /api/v1/wizard/investments/:investment_id
func (h *Handlers) DeleteInvestment(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("investment_id"))
	if err != nil {
		return response.Error(c, "Invalid investment_id", 400, nil)
	}
	if err := h.controller(c).DeleteInvestment(c.Context(), id); err != nil {
		if errors.Is(err, records.ErrInvestmentNotFound) {
			return response.Error(c, err.Error(), 404, nil)
		}
		return response.Error(c, err.Error(), 500, nil)
	}
	return response.Success(c, "Investment deleted successfully", nil, nil)
}

// PUT /api/v1/wizard/investments/:investment_id/field-mapping
func (h *Handlers) SetFieldMapping(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("investment_id"))
	if err != nil {
		return response.Error(c, "Invalid investment_id", 400, nil)
	}
	var body struct {
		Field   string              `json:"field"`
		Mapping models.FieldMapping `json:"mapping"`
	}
	if err := c.BodyParser(&body); err != nil || body.Field == "" {
		return response.Error(c, "Missing required field: field", 400, nil)
	}
	if err := h.controller(c).SetFieldMapping(id, models.FieldName(body.Field), body.Mapping); err != nil {
		if errors.Is(err, records.ErrInvestmentNotFound) {
			return response.Error(c, err.Error(), 404, nil)
		}
		return response.Error(c, err.Error(), 400, nil)
	}
	return response.Success(c, "Field mapping updated", nil, nil)
}

// transitionError maps controller transition failures onto the validation
// taxonomy: gate violations are 409s the UI renders as a disabled control.
func transitionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrInstallationMissing), errors.Is(err, ErrTariffMissing), errors.Is(err, ErrParentMissing):
		return response.Error(c, err.Error(), 409, nil)
	case errors.Is(err, ErrTerminalStep), errors.Is(err, ErrUnknownStep):
		return response.Error(c, err.Error(), 400, nil)
	}
	return response.Error(c, err.Error(), 500, nil)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
