package records

import "errors"

var (
	ErrInstallationNotFound = errors.New("Installation not found")
	ErrTariffNotFound       = errors.New("Tariff not found")
	ErrInvestmentNotFound   = errors.New("Investment not found")
	ErrInvalidCategory      = errors.New("Unknown investment category")
)
