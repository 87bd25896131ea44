package security

import "time"

// Config bundles the settings for the standard four-layer chain.
type Config struct {
	Budget     BudgetConfig     `yaml:"budget"`
	Truncation TruncationConfig `yaml:"truncation"`
	Blocklist  BlocklistConfig  `yaml:"blocklist"`
	PII        PIIConfig        `yaml:"pii"`
}

// BudgetConfig bounds per-request size and per-user rolling spend.
type BudgetConfig struct {
	// MaxInputTokens caps a single message. Zero applies the default.
	MaxInputTokens int `yaml:"max_input_tokens"`

	// DailyCeiling caps one user's estimated spend per rolling day.
	DailyCeiling float64 `yaml:"daily_ceiling"`

	// CostPerKiloTokens converts tokens to spend units.
	CostPerKiloTokens float64 `yaml:"cost_per_kilo_tokens"`
}

// TruncationConfig bounds message length; the layer never rejects.
type TruncationConfig struct {
	MaxChars int `yaml:"max_chars"`
}

// BlocklistConfig points at the pattern file and allows inline categories.
type BlocklistConfig struct {
	// Path is a YAML file of category -> patterns. Empty uses the built-in
	// default categories.
	Path string `yaml:"path"`

	// Watch reloads the file on change.
	Watch bool `yaml:"watch"`

	// Categories overrides the defaults when Path is empty.
	Categories map[string][]string `yaml:"categories"`
}

// PIIConfig tunes the masking layer.
type PIIConfig struct {
	MaskRune rune `yaml:"-"`
}

// Defaults used when config values are zero.
const (
	DefaultMaxInputTokens    = 2000
	DefaultDailyCeiling      = 10.0
	DefaultCostPerKiloTokens = 0.002
	DefaultMaxChars          = 1500
	DefaultUsageWindow       = 24 * time.Hour
)
