package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show vault status",
	Long:  "Display information about the vault: storage backend health, memory protection and record counts for the current tenant.",
	RunE:  showStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func showStatus(cmd *cobra.Command, args []string) error {
	fmt.Println("Vault Status")
	fmt.Println("============")

	fmt.Printf("Store Type: %s\n", keyStore.Type())
	if err := keyStore.Ping(cmd.Context()); err != nil {
		fmt.Printf("Store Health: ERROR - %v\n", err)
	} else {
		fmt.Println("Store Health: OK")
	}

	fmt.Printf("Memory Lock: %v\n", connector.MemoryLocked())
	fmt.Printf("Tenant: %s\n", tenantID)
	fmt.Printf("Identity: %s\n", identity)

	keys, err := connector.ListKeys(cmd.Context(), requestContext())
	if err != nil {
		fmt.Printf("Total Keys: ERROR - %v\n", err)
	} else {
		fmt.Printf("Total Keys: %d\n", len(keys))
	}

	secrets, err := connector.ListSecrets(cmd.Context(), requestContext())
	if err != nil {
		fmt.Printf("Total Secrets: ERROR - %v\n", err)
	} else {
		fmt.Printf("Total Secrets: %d\n", len(secrets))
	}

	return nil
}
