// Command mewsctl runs maintenance tasks against a MEWS database: loading
// the location tree and pincodes, repairing admin assignments, moving
// uploads to Cloud Storage and checking data integrity.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mewsorg/mews/internal/app/system/filestore"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configFile string
	envFile    string
	verbose    bool
	timeout    time.Duration

	cfg    *viper.Viper
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "mewsctl",
	Short: "Maintenance commands for the MEWS backend",
	Long: `mewsctl reads the same MEWS_* environment as the server (and an
optional .env or mews.yaml) and operates directly on the database.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
		v, err := loadConfig(configFile)
		if err != nil {
			return err
		}
		cfg = v

		zc := zap.NewDevelopmentConfig()
		zc.DisableStacktrace = true
		zc.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zc.Build()
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ./mews.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading MEWS_* variables")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "overall deadline for the command")
}

// loadConfig layers defaults, an optional config file and MEWS_* variables.
func loadConfig(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault("mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("mongo_database", "mews")
	v.SetDefault("storage_local_path", "./uploads")
	v.SetDefault("storage_gcs_bucket", "")
	v.SetDefault("storage_gcs_project", "")
	v.SetDefault("storage_gcs_credentials", "")

	v.SetEnvPrefix("MEWS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("mews")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// connect opens the configured database. The caller disconnects the client.
func connect(ctx context.Context) (*mongo.Client, *mongo.Database, error) {
	uri := cfg.GetString("mongo_uri")
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	name := cfg.GetString("mongo_database")
	logger.Debug("connected", zap.String("database", name))
	return client, client.Database(name), nil
}

// withDB runs fn with a connected database under the --timeout deadline.
func withDB(cmd *cobra.Command, fn func(ctx context.Context, db *mongo.Database) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	client, db, err := connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Disconnect(context.Background()) }()
	return fn(ctx, db)
}

func openGCS(ctx context.Context) (*filestore.GCS, error) {
	return filestore.NewGCS(ctx, filestore.GCSConfig{
		Bucket:          cfg.GetString("storage_gcs_bucket"),
		ProjectID:       cfg.GetString("storage_gcs_project"),
		CredentialsFile: cfg.GetString("storage_gcs_credentials"),
	})
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
