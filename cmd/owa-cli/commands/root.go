package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"owascrape/internal/owa"
	"owascrape/lib/configutil"
	"owascrape/lib/restyutil"
	"owascrape/lib/serviceutil"
	"owascrape/lib/telemetry"
	"time"

	"github.com/spf13/cobra"
)

const serviceName = "owa-cli"

// Config is read from owa.json5 (merged with owa.local.json5), flags
// override it.
type Config struct {
	Origin             string  `json:"origin"`
	Username           string  `json:"username"`
	Password           string  `json:"password"`
	Concurrency        int     `json:"concurrency"`
	InsecureSkipVerify bool    `json:"insecure_skip_verify"`
	TimeoutSeconds     int     `json:"timeout_seconds"`
	RequestsPerSecond  float64 `json:"requests_per_second"`
	DumpDir            string  `json:"dump_dir"`
}

var (
	configPath string
	verbose    bool
	flags      Config
	config     Config
	tel        telemetry.Telemetry
)

var rootCmd = &cobra.Command{
	Use:           "owa-cli",
	Short:         "owa-cli logs in to an Outlook Web App and reads the account's contacts.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(verbose)

		var err error
		tel, err = telemetry.SetupFromEnv(cmd.Context(), serviceName)
		if err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to setup telemetry", "err", err)
		}

		config, err = loadConfig(cmd)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		err := tel.Shutdown(ctx)
		if err != nil {
			slog.Warn("failed to shutdown telemetry", "err", err)
		}
	},
}

func init() {
	persistent := rootCmd.PersistentFlags()
	persistent.StringVarP(&configPath, "config", "c", "owa.json5", "The config file to read.")
	persistent.BoolVarP(&verbose, "verbose", "v", false, "Enables debug logging.")
	persistent.StringVar(&flags.Origin, "origin", "", "The origin of the OWA, ex. https://mail.example.com")
	persistent.StringVarP(&flags.Username, "username", "u", "", "The user name to login with (ex. DOMAIN\\user).")
	persistent.StringVarP(&flags.Password, "password", "p", "", "The password to login with.")
	persistent.BoolVar(&flags.InsecureSkipVerify, "insecure", false, "Skips TLS certificate verification.")
	persistent.IntVar(&flags.TimeoutSeconds, "timeout", 30, "The timeout for each request in seconds.")
	persistent.Float64Var(&flags.RequestsPerSecond, "rps", 0, "Limits the number of requests per second, 0 is unlimited.")
	persistent.StringVar(&flags.DumpDir, "dump", "", "Writes every http message to this directory (requires --verbose).")
}

func loadConfig(cmd *cobra.Command) (Config, error) {
	cfg, err := configutil.ReadConfig[Config](configPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if errors.Is(err, os.ErrNotExist) && cmd.Flags().Changed("config") {
		return Config{}, fmt.Errorf("config file '%s' does not exist", configPath)
	}

	set := cmd.Flags().Changed
	if set("origin") {
		cfg.Origin = flags.Origin
	}
	if set("username") {
		cfg.Username = flags.Username
	}
	if set("password") {
		cfg.Password = flags.Password
	}
	if set("insecure") {
		cfg.InsecureSkipVerify = flags.InsecureSkipVerify
	}
	if set("timeout") || cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = flags.TimeoutSeconds
	}
	if set("rps") {
		cfg.RequestsPerSecond = flags.RequestsPerSecond
	}
	if set("dump") {
		cfg.DumpDir = flags.DumpDir
	}

	if cfg.Origin == "" {
		return Config{}, fmt.Errorf("no origin was given, set it in %s or pass --origin", configPath)
	}
	return cfg, nil
}

func newSession() (*owa.Session, error) {
	opts := owa.SessionOptions{
		Origin:             config.Origin,
		Timeout:            time.Duration(config.TimeoutSeconds) * time.Second,
		InsecureSkipVerify: config.InsecureSkipVerify,
		RequestsPerSecond:  config.RequestsPerSecond,
	}
	if config.DumpDir != "" {
		out, err := restyutil.NewFilesystemOutput(config.DumpDir)
		if err != nil {
			return nil, fmt.Errorf("prepare dump directory: %w", err)
		}
		opts.DumpOutput = out
	}
	return owa.NewSession(opts)
}

// login creates a session and authenticates it with the configured
// credentials.
func login(ctx context.Context) (*owa.Session, owa.Result, error) {
	if config.Username == "" || config.Password == "" {
		return nil, owa.Result{}, fmt.Errorf("a username and password are required")
	}

	s, err := newSession()
	if err != nil {
		return nil, owa.Result{}, err
	}
	result, err := owa.Authenticate(ctx, s, owa.Credentials{
		Username: config.Username,
		Password: config.Password,
	})
	if err != nil {
		return nil, owa.Result{}, err
	}
	slog.Debug("logged in", "username", config.Username, "elapsed", result.Elapsed)
	return s, result, nil
}

func ExecuteContext(ctx context.Context) {
	ctx, cancel := serviceutil.SignalContext(ctx)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		serviceutil.Fatal("owa-cli failed", err)
	}
}
