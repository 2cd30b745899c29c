package records

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"solhome-backend/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupRecordsTest(t *testing.T) (*Service, uuid.UUID) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Installation{}, &models.Tariff{}, &models.Investment{}))

	svc := &Service{DB: db}
	inst, err := svc.CreateInstallation(context.Background(), CreateInstallationInput{
		Name:          "Roof South",
		RatedPowerKwp: 9.9,
		InstallDate:   time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		PostalCode:    "10115",
	})
	require.NoError(t, err)
	return svc, inst.InstallationID
}

func TestCreateInstallationValidation(t *testing.T) {
	svc, _ := setupRecordsTest(t)
	ctx := context.Background()

	_, err := svc.CreateInstallation(ctx, CreateInstallationInput{RatedPowerKwp: 5})
	assert.Error(t, err)

	_, err = svc.CreateInstallation(ctx, CreateInstallationInput{Name: "Roof", RatedPowerKwp: 0})
	assert.Error(t, err)
}

func TestGetInstallationNotFound(t *testing.T) {
	svc, _ := setupRecordsTest(t)
	_, err := svc.GetInstallation(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrInstallationNotFound)
}

func TestCreateInvestmentAcceptsClientID(t *testing.T) {
	svc, installID := setupRecordsTest(t)
	ctx := context.Background()
	clientID := uuid.New()

	inv, err := svc.CreateInvestment(ctx, CreateInvestmentInput{
		InvestmentID:   clientID,
		InstallationID: installID,
		Category:       models.CategoryInverter,
		Name:           "Inverter",
	})
	require.NoError(t, err)
	assert.Equal(t, clientID, inv.InvestmentID)
	assert.True(t, inv.Active)
}

func TestCreateInvestmentRejectsUnknownCategory(t *testing.T) {
	svc, installID := setupRecordsTest(t)
	_, err := svc.CreateInvestment(context.Background(), CreateInvestmentInput{
		InstallationID: installID,
		Category:       models.Category("yacht"),
		Name:           "Sunseeker",
	})
	assert.ErrorIs(t, err, ErrInvalidCategory)
}

func TestListInvestmentsFiltersByCategory(t *testing.T) {
	svc, installID := setupRecordsTest(t)
	ctx := context.Background()
	for _, cat := range []models.Category{models.CategoryInverter, models.CategoryBattery} {
		_, err := svc.CreateInvestment(ctx, CreateInvestmentInput{
			InstallationID: installID,
			Category:       cat,
			Name:           string(cat),
		})
		require.NoError(t, err)
	}

	all, err := svc.ListInvestments(ctx, installID, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	battery := models.CategoryBattery
	filtered, err := svc.ListInvestments(ctx, installID, &battery)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, models.CategoryBattery, filtered[0].Category)
}

func TestUpdateInvestmentPartial(t *testing.T) {
	svc, installID := setupRecordsTest(t)
	ctx := context.Background()
	inv, err := svc.CreateInvestment(ctx, CreateInvestmentInput{
		InstallationID: installID,
		Category:       models.CategoryBattery,
		Name:           "Battery",
		Parameters:     map[string]interface{}{"capacity_kwh": 10.0, "source": "sonnen"},
	})
	require.NoError(t, err)

	updated, err := svc.UpdateInvestment(ctx, inv.InvestmentID, map[string]interface{}{
		"name":             "Sonnen 10",
		"acquisition_cost": 8500,
		"parameters":       map[string]interface{}{"capacity_kwh": 11.0},
	})
	require.NoError(t, err)
	assert.Equal(t, "Sonnen 10", updated.Name)
	require.NotNil(t, updated.AcquisitionCost)
	assert.Equal(t, 8500.0, *updated.AcquisitionCost)

	// Parameter patches merge key-by-key; untouched keys survive.
	var params map[string]interface{}
	require.NoError(t, json.Unmarshal(updated.Parameters, &params))
	assert.Equal(t, 11.0, params["capacity_kwh"])
	assert.Equal(t, "sonnen", params["source"])
}

func TestUpdateInvestmentMergesNestedParameters(t *testing.T) {
	svc, installID := setupRecordsTest(t)
	ctx := context.Background()
	inv, err := svc.CreateInvestment(ctx, CreateInvestmentInput{
		InstallationID: installID,
		Category:       models.CategoryInverter,
		Name:           "Inverter",
	})
	require.NoError(t, err)

	_, err = svc.UpdateInvestment(ctx, inv.InvestmentID, map[string]interface{}{
		"parameters": map[string]interface{}{
			"field_mappings": map[string]interface{}{
				"pv_generation": map[string]interface{}{"strategy": "sensor", "entity_id": "sensor.pv_energy"},
			},
		},
	})
	require.NoError(t, err)
	updated, err := svc.UpdateInvestment(ctx, inv.InvestmentID, map[string]interface{}{
		"parameters": map[string]interface{}{
			"field_mappings": map[string]interface{}{
				"feed_in": map[string]interface{}{"strategy": "sensor", "entity_id": "sensor.grid_export"},
			},
		},
	})
	require.NoError(t, err)

	var params map[string]interface{}
	require.NoError(t, json.Unmarshal(updated.Parameters, &params))
	mappings, ok := params["field_mappings"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, mappings, "pv_generation")
	assert.Contains(t, mappings, "feed_in")
}

func TestUpdateInvestmentNotFound(t *testing.T) {
	svc, _ := setupRecordsTest(t)
	_, err := svc.UpdateInvestment(context.Background(), uuid.New(), map[string]interface{}{"name": "X"})
	assert.ErrorIs(t, err, ErrInvestmentNotFound)
}

func TestDeleteInvestment(t *testing.T) {
	svc, installID := setupRecordsTest(t)
	ctx := context.Background()
	inv, err := svc.CreateInvestment(ctx, CreateInvestmentInput{
		InstallationID: installID,
		Category:       models.CategoryInverter,
		Name:           "Inverter",
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteInvestment(ctx, inv.InvestmentID))
	assert.ErrorIs(t, svc.DeleteInvestment(ctx, inv.InvestmentID), ErrInvestmentNotFound)
}

func TestConfiguredCategoriesSkipsInactive(t *testing.T) {
	svc, installID := setupRecordsTest(t)
	ctx := context.Background()
	inverter, err := svc.CreateInvestment(ctx, CreateInvestmentInput{
		InstallationID: installID,
		Category:       models.CategoryInverter,
		Name:           "Inverter",
	})
	require.NoError(t, err)
	_, err = svc.CreateInvestment(ctx, CreateInvestmentInput{
		InstallationID: installID,
		Category:       models.CategoryBattery,
		Name:           "Battery",
	})
	require.NoError(t, err)
	_, err = svc.UpdateInvestment(ctx, inverter.InvestmentID, map[string]interface{}{"active": false})
	require.NoError(t, err)

	configured, err := svc.ConfiguredCategories(ctx, installID)
	require.NoError(t, err)
	assert.False(t, configured[models.CategoryInverter])
	assert.True(t, configured[models.CategoryBattery])
}
