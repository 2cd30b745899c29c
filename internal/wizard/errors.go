package wizard

import "errors"

var (
	ErrTerminalStep        = errors.New("Wizard already completed")
	ErrUnknownStep         = errors.New("Unknown wizard step")
	ErrInstallationMissing = errors.New("Installation required before advancing")
	ErrTariffMissing       = errors.New("Tariff required before advancing")
	ErrParentMissing       = errors.New("PV module string requires an inverter parent")
	ErrNoInstallation      = errors.New("No installation created in this session")
	ErrTariffExists        = errors.New("Tariff already configured for this session")
	ErrNoDiscoveryResult   = errors.New("No discovery result available")
)
