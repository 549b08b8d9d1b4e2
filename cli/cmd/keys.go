package cmd

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"southwinds.dev/signet"
)

var keysCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage signing keys",
	Long:  `Manage Ed25519 signing keys: create, import, inspect, rename, remove, sign and verify.`,
}

var keyCreateCmd = &cobra.Command{
	Use:   "create <key-name>",
	Short: "Create a new signing key",
	Long:  `Generate a fresh Ed25519 keypair under the current tenant and identity. Fails if a key with the same name already exists.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runKeyCreate,
}

var keyImportCmd = &cobra.Command{
	Use:   "import <key-name>",
	Short: "Import an existing keypair",
	Long:  `Import caller-supplied key material. Both halves are read as base64 from flags. Fails if a key with the same name already exists.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runKeyImport,
}

var keyShowCmd = &cobra.Command{
	Use:   "show <key-name>",
	Short: "Show a key's type and public half",
	Long:  `Display the stored key type and public key. The private half is only printed with --private.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runKeyShow,
}

var keyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List key identifiers for the tenant",
	RunE:  runKeyList,
}

var keyRenameCmd = &cobra.Command{
	Use:   "rename <key-name> <new-name>",
	Short: "Rename a key",
	Long:  `Move a key record to a new name. A key already stored under the new name is overwritten.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runKeyRename,
}

var keyRemoveCmd = &cobra.Command{
	Use:   "rm <key-name>",
	Short: "Remove a key",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeyRemove,
}

var keySignCmd = &cobra.Command{
	Use:   "sign <key-name>",
	Short: "Sign data with a key",
	Long:  `Sign data with the named key. Data is read from --data, --file or stdin; the signature is printed base64-encoded.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runKeySign,
}

var keyVerifyCmd = &cobra.Command{
	Use:   "verify <key-name> <base64-signature>",
	Short: "Verify a signature",
	Long:  `Verify a base64-encoded signature over data read from --data, --file or stdin.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runKeyVerify,
}

var (
	keyPrivateB64 string
	keyPublicB64  string
	showPrivate   bool
	jsonOutput    bool
)

func init() {
	rootCmd.AddCommand(keysCmd)

	keysCmd.AddCommand(keyCreateCmd)
	keysCmd.AddCommand(keyImportCmd)
	keysCmd.AddCommand(keyShowCmd)
	keysCmd.AddCommand(keyListCmd)
	keysCmd.AddCommand(keyRenameCmd)
	keysCmd.AddCommand(keyRemoveCmd)
	keysCmd.AddCommand(keySignCmd)
	keysCmd.AddCommand(keyVerifyCmd)

	keyImportCmd.Flags().StringVar(&keyPrivateB64, "private", "", "base64-encoded private key (64 bytes)")
	keyImportCmd.Flags().StringVar(&keyPublicB64, "public", "", "base64-encoded public key (32 bytes)")
	keyImportCmd.MarkFlagRequired("private")
	keyImportCmd.MarkFlagRequired("public")

	keyShowCmd.Flags().BoolVar(&showPrivate, "private", false, "include the private key half in the output")
	keyShowCmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	keyListCmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	addDataFlags(keySignCmd)
	addDataFlags(keyVerifyCmd)
}

func runKeyCreate(cmd *cobra.Command, args []string) error {
	publicKey, err := connector.CreateKey(cmd.Context(), requestContext(), args[0], signet.KeyTypeEd25519)
	if err != nil {
		return err
	}
	fmt.Printf("Created key %s\n", requestContext().CompositeID(args[0]))
	fmt.Printf("Public key: %s\n", base64.StdEncoding.EncodeToString(publicKey))
	return nil
}

func runKeyImport(cmd *cobra.Command, args []string) error {
	privateKey, err := base64.StdEncoding.DecodeString(keyPrivateB64)
	if err != nil {
		return fmt.Errorf("invalid base64 private key: %w", err)
	}
	publicKey, err := base64.StdEncoding.DecodeString(keyPublicB64)
	if err != nil {
		return fmt.Errorf("invalid base64 public key: %w", err)
	}

	if err = connector.ImportKey(cmd.Context(), requestContext(), args[0], signet.KeyTypeEd25519, privateKey, publicKey); err != nil {
		return err
	}
	fmt.Printf("Imported key %s\n", requestContext().CompositeID(args[0]))
	return nil
}

func runKeyShow(cmd *cobra.Command, args []string) error {
	record, err := connector.GetKey(cmd.Context(), requestContext(), args[0])
	if err != nil {
		return err
	}

	out := map[string]interface{}{
		"id":        record.ID,
		"type":      record.Type,
		"publicKey": base64.StdEncoding.EncodeToString(record.PublicKey),
	}
	if showPrivate {
		out["privateKey"] = base64.StdEncoding.EncodeToString(record.PrivateKey)
	}

	if jsonOutput {
		return printJSON(out)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintf(w, "ID\t%s\n", record.ID)
	fmt.Fprintf(w, "Type\t%s\n", record.Type)
	fmt.Fprintf(w, "Public Key\t%s\n", out["publicKey"])
	if showPrivate {
		fmt.Fprintf(w, "Private Key\t%s\n", out["privateKey"])
	}
	return nil
}

func runKeyList(cmd *cobra.Command, args []string) error {
	ids, err := connector.ListKeys(cmd.Context(), requestContext())
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(ids)
	}
	if len(ids) == 0 {
		fmt.Printf("No keys for tenant %s\n", tenantID)
		return nil
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}

func runKeyRename(cmd *cobra.Command, args []string) error {
	if err := connector.RenameKey(cmd.Context(), requestContext(), args[0], args[1]); err != nil {
		return err
	}
	fmt.Printf("Renamed %s to %s\n", args[0], args[1])
	return nil
}

func runKeyRemove(cmd *cobra.Command, args []string) error {
	if err := connector.RemoveKey(cmd.Context(), requestContext(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Removed key %s\n", requestContext().CompositeID(args[0]))
	return nil
}

func runKeySign(cmd *cobra.Command, args []string) error {
	data, err := readData()
	if err != nil {
		return err
	}

	signature, err := connector.Sign(cmd.Context(), requestContext(), args[0], data)
	if err != nil {
		return err
	}
	fmt.Println(base64.StdEncoding.EncodeToString(signature))
	return nil
}

func runKeyVerify(cmd *cobra.Command, args []string) error {
	data, err := readData()
	if err != nil {
		return err
	}
	signature, err := base64.StdEncoding.DecodeString(args[1])
	if err != nil {
		return fmt.Errorf("invalid base64 signature: %w", err)
	}

	valid, err := connector.Verify(cmd.Context(), requestContext(), args[0], data, signature)
	if err != nil {
		return err
	}
	if !valid {
		fmt.Println("INVALID")
		os.Exit(1)
	}
	fmt.Println("OK")
	return nil
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
