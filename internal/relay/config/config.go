// Package config declares the relay settings surface consumed by startup
// tooling and the relay information document.
package config

// Settings aggregates every section the relay reads at startup.
type Settings struct {
	Info       Info
	PayToRelay PayToRelay
	Database   Database
}

// Info describes the relay for the published information document.
//
// Every field is optional; empty values are omitted from the document.
type Info struct {
	RelayURL    string `env:"RELAY_URL"`
	Name        string `env:"RELAY_NAME"`
	Description string `env:"RELAY_DESCRIPTION"`
	Pubkey      string `env:"RELAY_PUBKEY"`
	Contact     string `env:"RELAY_CONTACT"`
}

// PayToRelay configures admission and publication pricing.
type PayToRelay struct {
	Enabled       bool   `env:"RELAY_PAY_TO_RELAY_ENABLED" envDefault:"false"`
	AdmissionCost uint64 `env:"RELAY_ADMISSION_COST" envDefault:"0"`
	CostPerEvent  uint64 `env:"RELAY_COST_PER_EVENT" envDefault:"0"`
}

// Database points at the SQLite file backing the event store.
type Database struct {
	Path string `env:"RELAY_DB_PATH" envDefault:"nostr.db"`
}
