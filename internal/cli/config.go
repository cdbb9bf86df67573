package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/loom/internal/paths"
	"github.com/mesh-intelligence/loom/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	cfgKeyBackend       = "backend"
	cfgKeyDataDir       = "data_dir"
	cfgKeyMinHandle     = "min_handle_length"
	cfgKeyEntryAddress  = "entry_address"
	cfgKeyLogLevel      = "log_level"
	cfgKeyCaller        = "caller"
	cfgKeyResolverAdmin = "resolver.admin"
	cfgKeyVillaAddress  = "villa.address"
	cfgKeyVillaAdmin    = "villa.admin"
	cfgKeyListen        = "serve.listen"
)

// defaultConfigYAML is written to config.yaml on first run.
const defaultConfigYAML = `# loom configuration

# Storage backend: sqlite or memory
backend: sqlite

# Data directory (optional; overridable by --data-dir or LOOM_DATA_DIR)
# data_dir:

# Shortest accepted handle (1-31)
min_handle_length: 3

# debug, info, warn or error
log_level: warn

# Address commands act as unless --as is given
# caller:

# resolver:
#   admin: "0x..."

# villa:
#   address: "0x..."
#   admin: "0x..."

serve:
  listen: "127.0.0.1:8080"
`

// settings is the resolved configuration of one CLI invocation.
type settings struct {
	configDir string
	viper     *viper.Viper
	config    types.Config
}

// loadSettings reads config.yaml from the resolved config directory using
// Viper, creating the directory and a default file on first run. Keys may
// also be set through LOOM_* environment variables.
func loadSettings(flags *rootFlags) (*settings, error) {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return nil, sysErr("resolve config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, sysErr("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeyMinHandle, types.DefaultMinHandleLength)
	v.SetDefault(cfgKeyEntryAddress, types.DefaultEntryAddress.Hex())
	v.SetDefault(cfgKeyLogLevel, "warn")
	v.SetDefault(cfgKeyListen, "127.0.0.1:8080")
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix("loom")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	dataDir, err := paths.ResolveDataDir(flags.dataDir, v.GetString(cfgKeyDataDir))
	if err != nil {
		return nil, sysErr("resolve data dir: %w", err)
	}
	entry := v.GetString(cfgKeyEntryAddress)
	if !common.IsHexAddress(entry) {
		return nil, fmt.Errorf("config %s: %q is not an address", cfgKeyEntryAddress, entry)
	}

	cfg := types.Config{
		Backend:         v.GetString(cfgKeyBackend),
		DataDir:         dataDir,
		MinHandleLength: v.GetInt(cfgKeyMinHandle),
		EntryAddress:    common.HexToAddress(entry),
		LogLevel:        v.GetString(cfgKeyLogLevel),
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &settings{configDir: configDir, viper: v, config: cfg}, nil
}

// address reads an optional address setting. An unset key yields the zero
// address.
func (s *settings) address(key string) (common.Address, error) {
	raw := s.viper.GetString(key)
	if raw == "" {
		return common.Address{}, nil
	}
	return parseAddress("config "+key, raw)
}

// ensureDefaultConfigFile creates the config directory and a default
// config.yaml if the file does not exist.
func ensureDefaultConfigFile(configDir string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(configDir, paths.ConfigFileName)
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
