package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/runway-sync/runway/internal/config"
	"github.com/runway-sync/runway/internal/logging"
	"github.com/runway-sync/runway/internal/runway"
	"github.com/runway-sync/runway/internal/utils"
	"github.com/runway-sync/runway/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	exitClean   = 0
	exitPartial = 1
	exitFatal   = 2
)

// errPartial is returned by commands that completed with per-asset failures.
var errPartial = errors.New("completed with failures")

var (
	red    = color.New(color.FgHiRed, color.Bold).SprintFunc()
	green  = color.New(color.FgHiGreen).SprintFunc()
	yellow = color.New(color.FgHiYellow).SprintFunc()
	cyan   = color.New(color.FgHiCyan).SprintFunc()
)

var logCloser io.Closer

var rootCmd = &cobra.Command{
	Use:           version.AppName,
	Short:         "Sync game assets to local, cloud and S3 targets and generate id mappings",
	Version:       version.Detailed(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		quiet, _ := cmd.Flags().GetBool("quiet")
		logFile, _ := cmd.Flags().GetString("log-file")

		closer, err := logging.Setup(logging.Options{
			Level:   logging.LevelFromFlags(verbose, quiet),
			LogFile: logFile,
		})
		if err != nil {
			return err
		}
		logCloser = closer
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.SortFlags = false
	pf.StringP("config", "c", ".", "path to "+config.FileName+" or the folder containing it")
	pf.BoolP("verbose", "v", false, "enable debug logging")
	pf.BoolP("quiet", "q", false, "only log warnings and errors")
	pf.String("log-file", "", "also write logs to this file")
	pf.String("api-key", "", "cloud API key (env RUNWAY_API_KEY)")
	pf.String("user-id", "", "upload cloud assets as this user (env RUNWAY_USER_ID)")
	pf.String("group-id", "", "upload cloud assets as this group (env RUNWAY_GROUP_ID)")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
	rootCmd.MarkFlagsMutuallyExclusive("user-id", "group-id")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		// a second signal kills the process
		stop()
	}()

	os.Exit(run(ctx, os.Args[1:]))
}

func run(ctx context.Context, args []string) int {
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	if logCloser != nil {
		logCloser.Close()
		logCloser = nil
	}
	code := exitCode(err)
	if code == exitFatal {
		fmt.Fprintf(os.Stderr, "%s %v\n", red("error:"), err)
	}
	return code
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitClean
	case softFailure(err):
		return exitPartial
	default:
		return exitFatal
	}
}

// softFailure reports whether every cause of err is a partial pass or an
// operator interrupt, after which what completed was persisted. Any other
// cause joined alongside, such as a failed state write, is fatal. An error
// tagged with errPartial directly is partial whatever it carries.
func softFailure(err error) bool {
	if err == errPartial || err == context.Canceled {
		return true
	}
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		causes := u.Unwrap()
		if slices.Contains(causes, errPartial) {
			return true
		}
		for _, cause := range causes {
			if !softFailure(cause) {
				return false
			}
		}
		return len(causes) > 0
	case interface{ Unwrap() error }:
		if inner := u.Unwrap(); inner != nil {
			return softFailure(inner)
		}
	}
	return false
}

// loadConfig reads the project file and the credentials. Credentials come from
// flags, then RUNWAY_* variables, then a .env file next to the project file.
func loadConfig(cmd *cobra.Command) (*config.Config, config.Credentials, error) {
	var creds config.Credentials

	path, _ := cmd.Flags().GetString("config")
	path, err := utils.ResolvePath(path)
	if err != nil {
		return nil, creds, fmt.Errorf("%w: config path: %w", config.ErrConfig, err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, creds, err
	}

	envFile := filepath.Join(cfg.Root(), ".env")
	if utils.FileExists(envFile) {
		// existing variables win over the file
		if err := godotenv.Load(envFile); err != nil {
			return nil, creds, fmt.Errorf("%w: read '%s': %w", config.ErrConfig, envFile, err)
		}
		slog.Debug("loaded env file", "path", envFile)
	}

	v := viper.New()
	v.SetEnvPrefix("RUNWAY")
	v.AutomaticEnv()
	v.BindPFlag("api_key", cmd.Flags().Lookup("api-key"))
	v.BindPFlag("user_id", cmd.Flags().Lookup("user-id"))
	v.BindPFlag("group_id", cmd.Flags().Lookup("group-id"))

	creds = config.Credentials{
		APIKey:      v.GetString("api_key"),
		UserID:      v.GetString("user_id"),
		GroupID:     v.GetString("group_id"),
		S3AccessKey: v.GetString("s3_access_key"),
		S3SecretKey: v.GetString("s3_secret_key"),
	}
	return cfg, creds, nil
}

// openProject loads the config and opens the project named by the flags.
func openProject(cmd *cobra.Command, concurrency int) (*runway.Project, error) {
	cfg, creds, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return runway.Open(cfg, runway.Options{
		Credentials: creds,
		Concurrency: concurrency,
	})
}

// targetFlag adds --target to cmd. It may be omitted when the project has a
// single target.
func targetFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("target", "t", "", "key of the target to sync")
}

func targetKey(cmd *cobra.Command, cfg *config.Config) (string, error) {
	key, _ := cmd.Flags().GetString("target")
	if key == "" {
		if len(cfg.Targets) != 1 {
			return "", fmt.Errorf("%w: --target is required when the project has %d targets", config.ErrConfig, len(cfg.Targets))
		}
		key = cfg.Targets[0].Key
	}
	if _, err := cfg.Target(key); err != nil {
		return "", err
	}
	return key, nil
}
