package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"southwinds.dev/signet"
	"southwinds.dev/signet/audit"
	"southwinds.dev/signet/persist"
)

var (
	cfgFile     string
	tenantID    string
	identity    string
	connector   *signet.Connector
	keyStore    persist.KeyStore
	secretStore persist.SecretStore
	cliContext  *CLIContext
)

type CLIContext struct {
	SessionID string
	Source    string // hostname
	StartTime time.Time
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "signet",
	Short: "A tenant-scoped vault for signing keys and secrets",
	Long: `A tenant-scoped vault that manages Ed25519 signing keys and opaque
application secrets. Keys never leave the vault for signing and
authenticated encryption; records are namespaced by tenant and identity
and persisted to a pluggable backend (memory, filesystem, S3).`,
	PersistentPreRunE: initializeConnector,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeConnector()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.signet.yaml)")
	rootCmd.PersistentFlags().StringVarP(&tenantID, "tenant", "t", "", "tenant identifier")
	rootCmd.PersistentFlags().StringVarP(&identity, "identity", "i", "", "identity within the tenant")
	rootCmd.PersistentFlags().String("store-type", "", "storage backend type (memory, filesystem, s3)")
	rootCmd.PersistentFlags().StringP("base-path", "p", "", "base path for the filesystem store")
	rootCmd.PersistentFlags().String("passphrase", "", "at-rest sealing passphrase for the filesystem store (or SIGNET_STORE_PASSPHRASE)")

	bindFlagOrPanic("store.tenant", "tenant")
	bindFlagOrPanic("store.identity", "identity")
	bindFlagOrPanic("store.type", "store-type")
	bindFlagOrPanic("store.base_path", "base-path")
	bindFlagOrPanic("store.passphrase", "passphrase")

	// Audit flags
	rootCmd.PersistentFlags().Bool("audit", false, "enable audit logging")
	rootCmd.PersistentFlags().String("audit-type", "", "audit logger type (file, syslog)")
	rootCmd.PersistentFlags().String("audit-file", "", "audit log file path")

	bindFlagOrPanic("audit.enabled", "audit")
	bindFlagOrPanic("audit.type", "audit-type")
	bindFlagOrPanic("audit.options.file_path", "audit-file")

	// S3 flags (for direct CLI usage)
	rootCmd.PersistentFlags().String("s3-endpoint", "", "S3 endpoint URL")
	rootCmd.PersistentFlags().String("s3-region", "", "S3 region")
	rootCmd.PersistentFlags().String("s3-bucket", "", "S3 bucket name")
	rootCmd.PersistentFlags().String("s3-prefix", "", "S3 key prefix")
	rootCmd.PersistentFlags().String("s3-access-key", "", "S3 access key ID")
	rootCmd.PersistentFlags().String("s3-secret-key", "", "S3 secret access key")
	rootCmd.PersistentFlags().Bool("s3-use-ssl", true, "Use SSL for S3 connections")

	bindFlagOrPanic("store.s3.endpoint", "s3-endpoint")
	bindFlagOrPanic("store.s3.region", "s3-region")
	bindFlagOrPanic("store.s3.bucket", "s3-bucket")
	bindFlagOrPanic("store.s3.key_prefix", "s3-prefix")
	bindFlagOrPanic("store.s3.access_key_id", "s3-access-key")
	bindFlagOrPanic("store.s3.secret_access_key", "s3-secret-key")
	bindFlagOrPanic("store.s3.use_ssl", "s3-use-ssl")
}

func bindFlagOrPanic(configKey, flagName string) {
	if err := viper.BindPFlag(configKey, rootCmd.PersistentFlags().Lookup(flagName)); err != nil {
		panic(fmt.Sprintf("failed to bind %s flag: %v", flagName, err))
	}
}

func initConfig() {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/signet")

		viper.SetConfigType("yaml")
		viper.SetConfigName(".signet")
	}

	viper.SetEnvPrefix("SIGNET")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
		// Config file not found is OK, defaults and env vars apply
	}
}

func setDefaults() {
	viper.SetDefault("store.type", "filesystem")
	viper.SetDefault("store.base_path", ".signet")
	viper.SetDefault("store.tenant", "default")
	viper.SetDefault("store.identity", "default")

	viper.SetDefault("store.s3.region", "us-east-1")
	viper.SetDefault("store.s3.key_prefix", "signet/")
	viper.SetDefault("store.s3.use_ssl", true)

	viper.SetDefault("audit.enabled", false)
	viper.SetDefault("audit.type", "file")
	viper.SetDefault("audit.options.max_size", 100)
	viper.SetDefault("audit.options.max_backups", 5)
	viper.SetDefault("audit.options.file_path", "audit.log")
}

func initializeConnector(cmd *cobra.Command, args []string) error {
	// Commands that operate without a vault
	switch cmd.Name() {
	case "help", "completion", "__complete", "version":
		return nil
	}
	if cmd.Parent() != nil && cmd.Parent().Name() == "config" {
		return nil
	}

	tenantID = viper.GetString("store.tenant")
	identity = viper.GetString("store.identity")

	storeConfig, err := storeConfigFromViper()
	if err != nil {
		return err
	}

	keyStore, secretStore, err = persist.NewStores(storeConfig)
	if err != nil {
		return fmt.Errorf("failed to create stores: %w", err)
	}

	auditLogger, err := audit.NewLogger(auditConfigFromViper())
	if err != nil {
		return fmt.Errorf("failed to create audit logger: %w", err)
	}

	connector, err = signet.New(signet.Options{Logger: auditLogger}, keyStore, secretStore)
	if err != nil {
		auditLogger.Close()
		return fmt.Errorf("failed to create vault connector: %w", err)
	}

	hostname, _ := os.Hostname()
	cliContext = &CLIContext{
		SessionID: uuid.NewString(),
		Source:    hostname,
		StartTime: time.Now(),
	}

	// Record the invocation itself, with sensitive flag values masked
	auditLogger.Log("cli_command", true, map[string]interface{}{
		audit.MetaTenantID:  tenantID,
		audit.MetaIdentity:  identity,
		audit.MetaSessionID: cliContext.SessionID,
		audit.MetaSource:    cliContext.Source,
		audit.MetaCommand:   cmd.CommandPath(),
		"flags":             sanitizeFlags(cmd),
	})
	return nil
}

// sanitizeFlags collects the flags set on this invocation, masking values
// that may carry credentials.
func sanitizeFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	cmd.Flags().VisitAll(func(flag *pflag.Flag) {
		if flag.Changed {
			if isSensitiveFlag(flag.Name) {
				flags[flag.Name] = "[REDACTED]"
			} else {
				flags[flag.Name] = flag.Value.String()
			}
		}
	})
	return flags
}

func isSensitiveFlag(name string) bool {
	switch name {
	case "passphrase", "s3-secret-key", "s3-access-key", "private", "data":
		return true
	}
	return false
}

func closeConnector() error {
	if connector != nil {
		if err := connector.Close(); err != nil {
			return err
		}
		connector = nil
	}
	if keyStore != nil {
		keyStore.Close()
		keyStore = nil
		secretStore = nil
	}
	return nil
}

func storeConfigFromViper() (persist.StoreConfig, error) {
	storeType := persist.StoreType(viper.GetString("store.type"))

	switch storeType {
	case persist.StoreTypeMemory:
		return persist.StoreConfig{Type: persist.StoreTypeMemory}, nil

	case persist.StoreTypeFileSystem:
		passphrase := viper.GetString("store.passphrase")
		if passphrase == "" {
			passphrase = os.Getenv("SIGNET_STORE_PASSPHRASE")
		}
		return persist.StoreConfig{
			Type: persist.StoreTypeFileSystem,
			Config: map[string]interface{}{
				"base_path":  viper.GetString("store.base_path"),
				"passphrase": passphrase,
			},
		}, nil

	case persist.StoreTypeS3:
		return persist.StoreConfig{
			Type: persist.StoreTypeS3,
			Config: map[string]interface{}{
				"endpoint":          viper.GetString("store.s3.endpoint"),
				"region":            viper.GetString("store.s3.region"),
				"bucket":            viper.GetString("store.s3.bucket"),
				"key_prefix":        viper.GetString("store.s3.key_prefix"),
				"access_key_id":     viper.GetString("store.s3.access_key_id"),
				"secret_access_key": viper.GetString("store.s3.secret_access_key"),
				"use_ssl":           viper.GetBool("store.s3.use_ssl"),
			},
		}, nil

	default:
		return persist.StoreConfig{}, fmt.Errorf("unsupported store type: %s", storeType)
	}
}

func auditConfigFromViper() *audit.Config {
	if !viper.GetBool("audit.enabled") {
		return nil
	}

	filePath := viper.GetString("audit.options.file_path")
	if filePath == "audit.log" {
		// Keep the default audit log next to the filesystem store
		filePath = filepath.Join(viper.GetString("store.base_path"), "audit.log")
	}

	return &audit.Config{
		Enabled: true,
		Type:    audit.ConfigType(viper.GetString("audit.type")),
		Options: map[string]interface{}{
			"file_path":   filePath,
			"max_size":    viper.GetInt("audit.options.max_size"),
			"max_backups": viper.GetInt("audit.options.max_backups"),
		},
	}
}

// requestContext builds the per-call scoping from the effective config.
func requestContext() signet.RequestContext {
	return signet.RequestContext{
		TenantID: tenantID,
		Identity: identity,
	}
}
