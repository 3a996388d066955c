package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	tpmpass "github.com/muhammetozeski/TPMPass"
	"github.com/muhammetozeski/TPMPass/audit"
	"github.com/muhammetozeski/TPMPass/internal/logging"
	"github.com/muhammetozeski/TPMPass/settings"
)

// commands carrying this annotation run without opening the vault
const skipVault = "skip-vault"

var (
	cfgFile     string
	dataDir     string
	verbose     bool
	debugOutput bool
	vault       *tpmpass.Vault
	conf        *settings.Settings
	logger      = logging.New(false, false)
	cliContext  *CLIContext
)

type CLIContext struct {
	UserID    string
	SessionID string
	Source    string // hostname
	StartTime time.Time
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tpmpass",
	Short: "Keep single secrets in files only you, on this machine, can open",
	Long: `tpmpass encrypts individual secrets into files bound to a random master
identity, the current user and the current machine. Decrypted secrets are kept
encrypted in memory until used and can be printed or copied to the clipboard,
which is cleared again automatically.`,
	SilenceUsage:      true,
	PersistentPreRunE: initializeVault,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// The vault is closed once the command finishes, whether or not it failed.
func Execute() int {
	err := rootCmd.Execute()
	if closeErr := closeVault(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		logger.Errorf("%s", formatError(err))
		return exitCode(err)
	}
	return 0
}

func closeVault() error {
	if vault == nil {
		return nil
	}
	err := vault.Close()
	vault = nil
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.tpmpass.yaml)")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "", "directory holding the master identity (default is the user config dir)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print informational messages")
	rootCmd.PersistentFlags().BoolVar(&debugOutput, "debug", false, "print debug messages")
	rootCmd.PersistentFlags().Bool("lock-memory", false, "lock all process memory (mlockall)")
	rootCmd.PersistentFlags().Bool("keyring", false, "keep the profile secret in the OS keyring")
	rootCmd.PersistentFlags().Bool("scan", false, "scan the calling process before decrypting")

	bindFlagOrPanic("data_dir", "data-dir")
	bindFlagOrPanic(settings.MemoryLockAll, "lock-memory")
	bindFlagOrPanic(settings.KeyringEnabled, "keyring")
	bindFlagOrPanic(settings.ScanParentProcess, "scan")
}

func bindFlagOrPanic(configKey, flagName string) {
	var flag *pflag.Flag = rootCmd.PersistentFlags().Lookup(flagName)
	if flag == nil {
		panic(fmt.Sprintf("unknown flag %s", flagName))
	}
	if err := viper.BindPFlag(configKey, flag); err != nil {
		panic(fmt.Sprintf("failed to bind %s flag: %v", flagName, err))
	}
}

func initConfig() {
	logger.Verbose = verbose
	logger.Debug = debugOutput

	conf = settings.New(viper.GetViper())
	viper.SetDefault("keyring.service", "tpmpass")

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName(".tpmpass")
	}

	viper.SetEnvPrefix("TPMPASS")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			logger.Warnf("error reading config file: %v", err)
		}
	} else {
		logger.Debugf("using config file: %s", viper.ConfigFileUsed())
	}
}

func skipsVault(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipVault] == "true" {
			return true
		}
	}
	switch cmd.Name() {
	case "help", "__complete", "__completeNoDesc":
		return true
	}
	return false
}

func initializeVault(cmd *cobra.Command, args []string) error {
	cliContext = &CLIContext{
		UserID:    getCurrentUser(),
		SessionID: uuid.NewString(),
		Source:    getHostname(),
		StartTime: time.Now(),
	}

	if skipsVault(cmd) {
		return nil
	}

	options, err := buildOptions()
	if err != nil {
		return err
	}
	logger.Debugf("opening data directory %s", options.DataDir)

	v, err := tpmpass.Open(options)
	if err != nil {
		return err
	}
	vault = v

	logger.Infof("master identity %s", v.Identity().State())
	return nil
}

func resolveDataDir() (string, error) {
	if dir := viper.GetString("data_dir"); dir != "" {
		return dir, nil
	}
	defaults, err := tpmpass.DefaultOptions()
	if err != nil {
		return "", err
	}
	return defaults.DataDir, nil
}

func buildOptions() (tpmpass.Options, error) {
	dir, err := resolveDataDir()
	if err != nil {
		return tpmpass.Options{}, err
	}

	options := tpmpass.Options{
		DataDir:        dir,
		UseKeyring:     conf.GetBool(settings.KeyringEnabled),
		KeyringService: viper.GetString("keyring.service"),
		LockMemory:     conf.GetBool(settings.MemoryLockAll),
		Reporter:       logger,
	}
	if conf.GetBool(settings.AuditEnabled) {
		options.Audit = auditConfig(dir)
	}
	if conf.GetBool(settings.ScanParentProcess) {
		timeout := time.Duration(conf.GetInt(settings.ScanTimeout)) * time.Second
		options.ScanGate = tpmpass.ParentScan(viper.GetStringSlice("scan.command"), timeout)
	}
	return options, nil
}

func auditConfig(dir string) *audit.Config {
	cfg := tpmpass.FileAudit(dir)
	if viper.GetString("audit.type") == string(audit.SyslogAuditType) {
		cfg.Type = audit.SyslogAuditType
	}
	cfg.Options["user_id"] = cliContext.UserID
	return cfg
}

// getCurrentUser returns the login name, or "unknown_user".
func getCurrentUser() string {
	currentUser, err := user.Current()
	if err != nil {
		if envUser := os.Getenv("USER"); envUser != "" {
			return envUser
		}
		return "unknown_user"
	}
	return currentUser.Username
}

func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		logger.Debugf("could not get hostname: %v", err)
		return "unknown_host"
	}
	return hostname
}

func defaultConfigFile() string {
	if cfgFile != "" {
		return cfgFile
	}
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".tpmpass.yaml")
}
