package main

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// Config for the application.
type Config struct {
	Search struct {
		// URL or host of MeiliSearch. Scheme defaults to http.
		Host string `envconfig:"MEILISEARCH_HOST" required:"true"`
		// APIKey is the private or master key; settings updates need it.
		APIKey string `envconfig:"MEILISEARCH_API_KEY" required:"true"`
		// UpdateTimeout bounds the wait for one update (settings, or one batch of documents) to be processed.
		UpdateTimeout time.Duration `envconfig:"UPDATE_TIMEOUT" default:"100s"`
		// UpdatePollInterval between update status requests.
		UpdatePollInterval time.Duration `envconfig:"UPDATE_POLL_INTERVAL" default:"50ms"`
		// Retries of requests failed with network errors, 429 or 5xx. 0 disables retries.
		Retries uint64 `envconfig:"UPLOAD_RETRIES" default:"3"`
	}

	// Dataset is the JSON file with artwork records.
	Dataset string `envconfig:"DATASET" default:"Artworks.json"`
	// BatchSize is the number of documents per add-documents request.
	BatchSize int `envconfig:"BATCH_SIZE" default:"10000"`

	// Indexes overrides the default index definitions, e.g:
	// artWorks:"typo,words" artWorksAsc:"asc(DateToSortBy),typo,words"
	Indexes string `envconfig:"INDEXES"`
	// SettingsFile is an optional YAML file with index settings (stop words, synonyms, attributes).
	SettingsFile string `envconfig:"SETTINGS_FILE"`

	// LogFormat [ json (default) | cli ]
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	// Status and metrics http endpoint, disabled when empty. E.g. 127.0.0.1:9100
	Address string `envconfig:"ADDR"`

	// Set by flags only
	Force bool
	Only  []string
}

// FromEnv loads the configuration from .env file (if any) and environment variables.
// Exits if config is missing or invalid.
func FromEnv() *Config {
	_ = godotenv.Load() // .env is optional; set variables take precedence
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatal(errors.Wrap(err, "Can not read initial config"))
	}
	return &cfg
}

// flags override environment, when set.
type flags struct {
	dataset   string
	batchSize int
	force     bool
	only      []string
}

func (f *flags) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.dataset, "dataset", "", "JSON file with artwork records (default $DATASET or Artworks.json)")
	fs.IntVar(&f.batchSize, "batch-size", 0, "Documents per add-documents request (default $BATCH_SIZE or 10000)")
	fs.BoolVar(&f.force, "force", false, "Populate indexes even if they already hold the whole dataset")
	fs.StringSliceVar(&f.only, "index", nil, "Populate only given indexes (repeatable)")
}

func (f *flags) apply(cmd *cobra.Command, cfg *Config) {
	fs := cmd.Flags()
	if fs.Changed("dataset") {
		cfg.Dataset = f.dataset
	}
	if fs.Changed("batch-size") {
		cfg.BatchSize = f.batchSize
	}
	cfg.Force = f.force
	cfg.Only = f.only
}
