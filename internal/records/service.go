package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"solhome-backend/internal/models"
	"solhome-backend/internal/queue"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service owns the installation, tariff and investment records.
type Service struct {
	DB *gorm.DB
}

type CreateInstallationInput struct {
	Name             string
	RatedPowerKwp    float64
	InstallDate      time.Time
	PostalCode       string
	Latitude         *float64
	Longitude        *float64
	OrientationDeg   *float64
	TiltDeg          *float64
	ManufacturerHint *string
}

func (s *Service) CreateInstallation(ctx context.Context, in CreateInstallationInput) (*models.Installation, error) {
	if in.Name == "" {
		return nil, errors.New("Missing installation name")
	}
	if in.RatedPowerKwp <= 0 {
		return nil, errors.New("Rated power must be positive")
	}
	inst := &models.Installation{
		InstallationID:   uuid.New(),
		Name:             in.Name,
		RatedPowerKwp:    in.RatedPowerKwp,
		InstallDate:      in.InstallDate,
		PostalCode:       in.PostalCode,
		Latitude:         in.Latitude,
		Longitude:        in.Longitude,
		OrientationDeg:   in.OrientationDeg,
		TiltDeg:          in.TiltDeg,
		ManufacturerHint: in.ManufacturerHint,
	}
	if err := s.DB.WithContext(ctx).Create(inst).Error; err != nil {
		return nil, fmt.Errorf("Failed to create installation: %v", err)
	}
	return inst, nil
}

func (s *Service) GetInstallation(ctx context.Context, id uuid.UUID) (*models.Installation, error) {
	var inst models.Installation
	if err := s.DB.WithContext(ctx).Where("installation_id = ?", id).First(&inst).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrInstallationNotFound
		}
		return nil, err
	}
	return &inst, nil
}

func (s *Service) DeleteInstallation(ctx context.Context, id uuid.UUID) error {
	res := s.DB.WithContext(ctx).Where("installation_id = ?", id).Delete(&models.Installation{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInstallationNotFound
	}
	return nil
}

type CreateTariffInput struct {
	InstallationID uuid.UUID
	GridPrice      float64
	FeedInRate     float64
	BaseFee        *float64
	EffectiveFrom  time.Time
	Label          *string
}

func (s *Service) CreateTariff(ctx context.Context, in CreateTariffInput) (*models.Tariff, error) {
	if in.InstallationID == uuid.Nil {
		return nil, errors.New("Missing installation_id")
	}
	if in.GridPrice < 0 || in.FeedInRate < 0 {
		return nil, errors.New("Tariff rates must not be negative")
	}
	tariff := &models.Tariff{
		TariffID:       uuid.New(),
		InstallationID: in.InstallationID,
		GridPrice:      in.GridPrice,
		FeedInRate:     in.FeedInRate,
		BaseFee:        in.BaseFee,
		EffectiveFrom:  in.EffectiveFrom,
		Label:          in.Label,
	}
	if err := s.DB.WithContext(ctx).Create(tariff).Error; err != nil {
		return nil, fmt.Errorf("Failed to create tariff: %v", err)
	}
	return tariff, nil
}

type CreateInvestmentInput struct {
	InvestmentID    uuid.UUID // optional; client temp id is accepted
	InstallationID  uuid.UUID
	Category        models.Category
	ParentID        *uuid.UUID
	Name            string
	Parameters      map[string]interface{}
	AcquisitionDate *time.Time
	AcquisitionCost *float64
}

func (s *Service) CreateInvestment(ctx context.Context, in CreateInvestmentInput) (*models.Investment, error) {
	if in.InstallationID == uuid.Nil {
		return nil, errors.New("Missing installation_id")
	}
	if !models.ValidCategory(in.Category) {
		return nil, ErrInvalidCategory
	}
	id := in.InvestmentID
	if id == uuid.Nil {
		id = uuid.New()
	}
	params := in.Parameters
	if params == nil {
		params = map[string]interface{}{}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("Failed to encode parameters: %v", err)
	}
	inv := &models.Investment{
		InvestmentID:    id,
		InstallationID:  in.InstallationID,
		Category:        in.Category,
		ParentID:        in.ParentID,
		Name:            in.Name,
		Parameters:      datatypes.JSON(raw),
		AcquisitionDate: in.AcquisitionDate,
		AcquisitionCost: in.AcquisitionCost,
		Active:          true,
	}
	if err := s.DB.WithContext(ctx).Create(inv).Error; err != nil {
		return nil, fmt.Errorf("Failed to create investment: %v", err)
	}
	return inv, nil
}

func (s *Service) ListInvestments(ctx context.Context, installationID uuid.UUID, category *models.Category) ([]models.Investment, error) {
	if installationID == uuid.Nil {
		return nil, errors.New("Missing installation_id")
	}
	q := s.DB.WithContext(ctx).Where("installation_id = ?", installationID)
	if category != nil && *category != "" {
		q = q.Where("category = ?", *category)
	}
	var investments []models.Investment
	if err := q.Order("created_at ASC").Find(&investments).Error; err != nil {
		return nil, err
	}
	return investments, nil
}

// UpdateInvestment applies a partial update. Known scalar fields are set
// directly; the "parameters" key is merged into the stored parameter map
// key-by-key rather than replacing it wholesale.
func (s *Service) UpdateInvestment(ctx context.Context, id uuid.UUID, partial map[string]interface{}) (*models.Investment, error) {
	var inv models.Investment
	if err := s.DB.WithContext(ctx).Where("investment_id = ?", id).First(&inv).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrInvestmentNotFound
		}
		return nil, err
	}

	updates := map[string]interface{}{}
	for key, val := range partial {
		switch key {
		case "name":
			if s, ok := val.(string); ok {
				updates["name"] = s
			}
		case "acquisition_cost":
			if f, ok := toFloat(val); ok {
				updates["acquisition_cost"] = f
			}
		case "acquisition_date":
			if s, ok := val.(string); ok {
				if t, err := time.Parse(time.RFC3339, s); err == nil {
					updates["acquisition_date"] = t
				}
			} else if t, ok := val.(time.Time); ok {
				updates["acquisition_date"] = t
			}
		case "active":
			if b, ok := val.(bool); ok {
				updates["active"] = b
			}
		case "parent_id":
			if s, ok := val.(string); ok {
				if pid, err := uuid.Parse(s); err == nil {
					updates["parent_id"] = pid
				}
			} else if val == nil {
				updates["parent_id"] = nil
			}
		case "parameters":
			patch, ok := val.(map[string]interface{})
			if !ok {
				continue
			}
			current := map[string]interface{}{}
			if len(inv.Parameters) > 0 {
				_ = json.Unmarshal(inv.Parameters, &current)
			}
			queue.Merge(current, patch)
			raw, err := json.Marshal(current)
			if err != nil {
				return nil, fmt.Errorf("Failed to encode parameters: %v", err)
			}
			updates["parameters"] = datatypes.JSON(raw)
		}
	}
	if len(updates) == 0 {
		return &inv, nil
	}
	if err := s.DB.WithContext(ctx).Model(&inv).Updates(updates).Error; err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Where("investment_id = ?", id).First(&inv).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *Service) DeleteInvestment(ctx context.Context, id uuid.UUID) error {
	res := s.DB.WithContext(ctx).Where("investment_id = ?", id).Delete(&models.Investment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInvestmentNotFound
	}
	return nil
}

// ConfiguredCategories returns the set of categories with an active
// investment for the installation. Used by the matcher to suppress
// duplicate suggestions.
func (s *Service) ConfiguredCategories(ctx context.Context, installationID uuid.UUID) (map[models.Category]bool, error) {
	var categories []models.Category
	err := s.DB.WithContext(ctx).Model(&models.Investment{}).
		Where("installation_id = ? AND active = ?", installationID, true).
		Distinct().Pluck("category", &categories).Error
	if err != nil {
		return nil, err
	}
	out := make(map[models.Category]bool, len(categories))
	for _, c := range categories {
		out[c] = true
	}
	return out, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
