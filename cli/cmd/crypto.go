package cmd

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"southwinds.dev/signet"
)

var encryptCmd = &cobra.Command{
	Use:   "encrypt <key-name>",
	Short: "Encrypt data under a key",
	Long: `Encrypt data with authenticated encryption under the named key.
Data is read from --data, --file or stdin; the envelope (nonce plus
ciphertext and tag) is printed base64-encoded.`,
	Args: cobra.ExactArgs(1),
	RunE: runEncrypt,
}

var decryptCmd = &cobra.Command{
	Use:   "decrypt <key-name>",
	Short: "Decrypt an envelope under a key",
	Long: `Decrypt a base64-encoded envelope produced by encrypt. The
plaintext is written to stdout or to --out.`,
	Args: cobra.ExactArgs(1),
	RunE: runDecrypt,
}

var (
	dataInline string
	dataFile   string
	outFile    string
)

func init() {
	rootCmd.AddCommand(encryptCmd)
	rootCmd.AddCommand(decryptCmd)

	addDataFlags(encryptCmd)
	addDataFlags(decryptCmd)
	decryptCmd.Flags().StringVarP(&outFile, "out", "o", "", "write plaintext to file instead of stdout")
}

func addDataFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&dataInline, "data", "d", "", "inline data")
	cmd.Flags().StringVarP(&dataFile, "file", "f", "", "read data from file")
}

// readData resolves the input source: inline flag, file flag, then stdin.
func readData() ([]byte, error) {
	if dataInline != "" {
		return []byte(dataInline), nil
	}
	if dataFile != "" {
		data, err := os.ReadFile(dataFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", dataFile, err)
		}
		return data, nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read stdin: %w", err)
	}
	return data, nil
}

func runEncrypt(cmd *cobra.Command, args []string) error {
	data, err := readData()
	if err != nil {
		return err
	}

	envelope, err := connector.Encrypt(cmd.Context(), requestContext(), args[0], signet.EncryptionTypeChaCha20Poly1305, data)
	if err != nil {
		return err
	}
	fmt.Println(base64.StdEncoding.EncodeToString(envelope))
	return nil
}

func runDecrypt(cmd *cobra.Command, args []string) error {
	raw, err := readData()
	if err != nil {
		return err
	}
	envelope, err := base64.StdEncoding.DecodeString(string(raw))
	if err != nil {
		return fmt.Errorf("invalid base64 envelope: %w", err)
	}

	plaintext, err := connector.Decrypt(cmd.Context(), requestContext(), args[0], signet.EncryptionTypeChaCha20Poly1305, envelope)
	if err != nil {
		return err
	}

	if outFile != "" {
		return os.WriteFile(outFile, plaintext, 0600)
	}
	os.Stdout.Write(plaintext)
	return nil
}
