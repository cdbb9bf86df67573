package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/loom/internal/paths"
	"github.com/mesh-intelligence/loom/internal/resolver"
	"github.com/mesh-intelligence/loom/internal/sqlite"
	"github.com/mesh-intelligence/loom/pkg/types"
)

func newInitCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize loom storage",
		Long: "Create the configuration and data directories, write a default config.yaml\n" +
			"and reserved.yaml when missing, then initialize the storage backend.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(flags)
			if err != nil {
				return err
			}

			reserved := paths.ReservedFile(s.configDir)
			if _, err := os.Stat(reserved); os.IsNotExist(err) {
				admin, err := s.address(cfgKeyResolverAdmin)
				if err != nil {
					return err
				}
				if err := resolver.New(admin).Save(reserved); err != nil {
					return sysErr("write reservations: %w", err)
				}
			}

			if s.config.Backend == types.BackendSQLite {
				log, err := newLogger(s.config.LogLevel)
				if err != nil {
					return err
				}
				defer log.Sync()
				store := sqlite.NewBackend(log.Named("sqlite"))
				if err := store.Attach(s.config); err != nil {
					return sysErr("initialize storage: %w", err)
				}
				if err := store.Detach(); err != nil {
					return sysErr("finalize storage: %w", err)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Loom initialized (config %s, data %s)\n", s.configDir, s.config.DataDir)
			return nil
		},
	}
}
