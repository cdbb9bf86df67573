package types

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

// Config holds backend selection and engine parameters.
type Config struct {
	Backend         string         `json:"backend" yaml:"backend"`
	DataDir         string         `json:"data_dir" yaml:"data_dir"`
	MinHandleLength int            `json:"min_handle_length" yaml:"min_handle_length"`
	EntryAddress    common.Address `json:"entry_address" yaml:"entry_address"`
	LogLevel        string         `json:"log_level" yaml:"log_level"`
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// DefaultMinHandleLength is the shortest handle accepted unless configured
// otherwise.
const DefaultMinHandleLength = 3

// DefaultEntryAddress is the address the graph deploys note tokens from.
var DefaultEntryAddress = common.HexToAddress("0xa6f969045641Cf486a747A2688F3a5A6d43cd0D8")

// Config validation errors.
var (
	ErrBackendEmpty          = errors.New("backend must not be empty")
	ErrBackendUnknown        = errors.New("unknown backend")
	ErrMinHandleLengthBounds = errors.New("min handle length must be between 1 and 31")
	ErrLogLevelUnknown       = errors.New("unknown log level")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite: true,
	BackendMemory: true,
}

var knownLogLevels = map[string]bool{
	"":      true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// DefaultConfig returns a sqlite config rooted at dataDir.
func DefaultConfig(dataDir string) Config {
	return Config{
		Backend:         BackendSQLite,
		DataDir:         dataDir,
		MinHandleLength: DefaultMinHandleLength,
		EntryAddress:    DefaultEntryAddress,
		LogLevel:        "info",
	}
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure. A zero MinHandleLength means the default.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.MinHandleLength < 0 || c.MinHandleLength > MaxHandleLength {
		return ErrMinHandleLengthBounds
	}
	if !knownLogLevels[c.LogLevel] {
		return ErrLogLevelUnknown
	}
	return nil
}

// HandleMinimum returns the effective minimum handle length.
func (c Config) HandleMinimum() int {
	if c.MinHandleLength == 0 {
		return DefaultMinHandleLength
	}
	return c.MinHandleLength
}
