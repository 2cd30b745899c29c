package wizard

import (
	"context"

	"solhome-backend/internal/models"
	"solhome-backend/internal/records"

	"github.com/google/uuid"
)

// RecordStore is the controller's port to the record layer. Satisfied by
// *records.Service; tests substitute failing or counting implementations.
type RecordStore interface {
	CreateInstallation(ctx context.Context, in records.CreateInstallationInput) (*models.Installation, error)
	GetInstallation(ctx context.Context, id uuid.UUID) (*models.Installation, error)
	DeleteInstallation(ctx context.Context, id uuid.UUID) error
	CreateTariff(ctx context.Context, in records.CreateTariffInput) (*models.Tariff, error)
	CreateInvestment(ctx context.Context, in records.CreateInvestmentInput) (*models.Investment, error)
	ListInvestments(ctx context.Context, installationID uuid.UUID, category *models.Category) ([]models.Investment, error)
	UpdateInvestment(ctx context.Context, id uuid.UUID, partial map[string]interface{}) (*models.Investment, error)
	DeleteInvestment(ctx context.Context, id uuid.UUID) error
	ConfiguredCategories(ctx context.Context, installationID uuid.UUID) (map[models.Category]bool, error)
}
