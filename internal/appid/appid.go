// Package appid holds the application identity used for help text, config
// discovery, and environment variable prefixes.
package appid

const (
	BinaryName  = "gstcheck"
	ConfigName  = "gstcheck"
	EnvPrefix   = "GSTCHECK_"
	Vendor      = "gstcheck"
	Description = "Batch-validate Singapore UEN/GST registrations against the IRAS lookup API"
)

// Identity is the static identity record.
type Identity struct {
	BinaryName  string `json:"binary_name" yaml:"binary_name"`
	ConfigName  string `json:"config_name" yaml:"config_name"`
	EnvPrefix   string `json:"env_prefix" yaml:"env_prefix"`
	Vendor      string `json:"vendor" yaml:"vendor"`
	Description string `json:"description" yaml:"description"`
}

// Get returns the application identity.
func Get() Identity {
	return Identity{
		BinaryName:  BinaryName,
		ConfigName:  ConfigName,
		EnvPrefix:   EnvPrefix,
		Vendor:      Vendor,
		Description: Description,
	}
}
