package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var secretsCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage secrets in the vault",
	Long:  "Store, retrieve and remove opaque secrets namespaced by tenant and identity.",
}

var secretSetCmd = &cobra.Command{
	Use:   "set <secret-name>",
	Short: "Store a secret",
	Long:  "Store a secret value. The value is read from --data, --file or stdin and must be valid JSON; an existing secret with the same name is overwritten.",
	Args:  cobra.ExactArgs(1),
	RunE:  runSecretSet,
}

var secretGetCmd = &cobra.Command{
	Use:   "get <secret-name>",
	Short: "Retrieve a secret",
	Args:  cobra.ExactArgs(1),
	RunE:  runSecretGet,
}

var secretRemoveCmd = &cobra.Command{
	Use:   "rm <secret-name>",
	Short: "Remove a secret",
	Args:  cobra.ExactArgs(1),
	RunE:  runSecretRemove,
}

var secretListCmd = &cobra.Command{
	Use:   "list",
	Short: "List secret identifiers for the tenant",
	RunE:  runSecretList,
}

func init() {
	rootCmd.AddCommand(secretsCmd)

	secretsCmd.AddCommand(secretSetCmd)
	secretsCmd.AddCommand(secretGetCmd)
	secretsCmd.AddCommand(secretRemoveCmd)
	secretsCmd.AddCommand(secretListCmd)

	addDataFlags(secretSetCmd)
	secretListCmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	raw, err := readData()
	if err != nil {
		return err
	}

	var value interface{}
	if err = json.Unmarshal(raw, &value); err != nil {
		// Plain text input is stored as a JSON string
		value = string(raw)
	}

	if err = connector.StoreSecret(cmd.Context(), requestContext(), args[0], value); err != nil {
		return err
	}
	fmt.Printf("Stored secret %s\n", requestContext().CompositeID(args[0]))
	return nil
}

func runSecretGet(cmd *cobra.Command, args []string) error {
	value, err := connector.GetSecret(cmd.Context(), requestContext(), args[0])
	if err != nil {
		return err
	}
	return printJSON(value)
}

func runSecretRemove(cmd *cobra.Command, args []string) error {
	if err := connector.RemoveSecret(cmd.Context(), requestContext(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Removed secret %s\n", requestContext().CompositeID(args[0]))
	return nil
}

func runSecretList(cmd *cobra.Command, args []string) error {
	ids, err := connector.ListSecrets(cmd.Context(), requestContext())
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(ids)
	}
	if len(ids) == 0 {
		fmt.Printf("No secrets for tenant %s\n", tenantID)
		return nil
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}
