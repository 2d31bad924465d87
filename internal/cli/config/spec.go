package config

// AdminConfig is the content of the profile file.
type AdminConfig struct {
	// Server is the wwwhisper address for API mode, e.g. https://example.org.
	Server string `yaml:"server"`

	// Email of the admin account used in API mode.
	Email string `yaml:"email"`

	// PasswordFile holds the admin password. The file must not be
	// readable by group or others.
	PasswordFile string `yaml:"password_file"`

	// ServerConfig points at the server config file for offline mode.
	ServerConfig string `yaml:"server_config"`

	// Output is table, json or yaml.
	Output string `yaml:"output"`
}

// Default returns the built-in profile.
func Default() *AdminConfig {
	return &AdminConfig{Output: "table"}
}
