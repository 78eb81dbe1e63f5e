package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openlearn/tenantd/internal/tenancy"
)

var (
	syncTenants    bool
	syncMicrosites bool
)

func init() {
	syncCmd.Flags().BoolVar(&syncTenants, "tenants", false, "synchronize tenant records")
	syncCmd.Flags().BoolVar(&syncMicrosites, "microsites", false, "synchronize legacy microsite records")

	rootCmd.AddCommand(syncCmd)
}

var syncCmd = &cobra.Command{
	Use:   "sync-orgs",
	Short: "Rebuild the organization index",
	Long: `Re-synchronize the derived organization associations from every
tenant and/or legacy microsite record. Used for backfills after bulk imports
or after records were written outside the management API.

Without flags both record types are synchronized.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		return runSyncOrgs()
	},
}

func runSyncOrgs() error {
	_, database, err := loadEnvironment()
	if err != nil {
		return err
	}

	// No flags means everything.
	all := !syncTenants && !syncMicrosites
	index := tenancy.NewIndex(database)

	if syncTenants || all {
		synced, err := index.SynchronizeAllTenants()
		if err != nil {
			return fmt.Errorf("tenant synchronization failed: %w", err)
		}
		fmt.Printf("Synchronized %d tenant record(s)\n", synced)
	}

	if syncMicrosites || all {
		synced, err := index.SynchronizeAllMicrosites()
		if err != nil {
			return fmt.Errorf("microsite synchronization failed: %w", err)
		}
		fmt.Printf("Synchronized %d microsite record(s)\n", synced)
	}

	return nil
}
