package cli

import (
	"context"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/hirosat/ermine/pkg/adapter"
	"github.com/hirosat/ermine/pkg/repository"
	"github.com/hirosat/ermine/pkg/slack"
	"github.com/hirosat/ermine/pkg/utils/logging"
)

// config holds configuration values
type config struct {
	logLevel string

	// Repository
	project  string
	database string

	// Adapters
	geminiProject   string
	geminiLocation  string
	tavilyAPIKey    string
	firecrawlAPIKey string
	bucket          string

	// Slack
	slackBotToken string
	slackAppToken string

	// Agent tuning
	maxSearchDepth  int64
	numberOfQueries int64
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("ERMINE_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
	}
}

// searchFlags returns flags for the web search and scraping APIs
func searchFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "tavily-api-key",
			Usage:       "Tavily API key for web search",
			Sources:     cli.EnvVars("TAVILY_API_KEY"),
			Destination: &cfg.tavilyAPIKey,
		},
		&cli.StringFlag{
			Name:        "firecrawl-api-key",
			Usage:       "Firecrawl API key for web scraping",
			Sources:     cli.EnvVars("FIRECRAWL_API_KEY"),
			Destination: &cfg.firecrawlAPIKey,
		},
	}
}

// repositoryFlags returns flags for the Firestore repository
func repositoryFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
	}
}

// slackFlags returns flags for the Slack Socket Mode connection
func slackFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-bot-token",
			Usage:       "Slack bot token (xoxb-)",
			Sources:     cli.EnvVars("SLACK_BOT_TOKEN"),
			Destination: &cfg.slackBotToken,
		},
		&cli.StringFlag{
			Name:        "slack-app-token",
			Usage:       "Slack app-level token for Socket Mode (xapp-)",
			Sources:     cli.EnvVars("SLACK_APP_TOKEN"),
			Destination: &cfg.slackAppToken,
		},
	}
}

// storageFlags returns flags for the artifact storage bucket
func storageFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Cloud Storage bucket for generated artifacts",
			Sources:     cli.EnvVars("ERMINE_BUCKET"),
			Destination: &cfg.bucket,
		},
	}
}

// researchFlags returns flags tuning the section research loop
func researchFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "max-search-depth",
			Usage:       "Maximum research iterations per section",
			Value:       2,
			Sources:     cli.EnvVars("ERMINE_MAX_SEARCH_DEPTH"),
			Destination: &cfg.maxSearchDepth,
		},
		&cli.IntFlag{
			Name:        "number-of-queries",
			Usage:       "Search queries generated per research step",
			Value:       2,
			Sources:     cli.EnvVars("ERMINE_NUMBER_OF_QUERIES"),
			Destination: &cfg.numberOfQueries,
		},
	}
}

// configureLogging installs a logger at the configured level and
// returns a context carrying it.
func (cfg *config) configureLogging(ctx context.Context) context.Context {
	logger := logging.New(cfg.logLevel, os.Stderr)
	logging.SetDefault(logger)
	return logging.With(ctx, logger)
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}

	gemini, err := adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create gemini adapter")
	}
	return gemini, nil
}

// newTavily creates a new web search adapter instance
func (cfg *config) newTavily() (adapter.Search, error) {
	if cfg.tavilyAPIKey == "" {
		return nil, goerr.New("tavily-api-key is required")
	}
	return adapter.NewTavily(cfg.tavilyAPIKey), nil
}

// newFirecrawl creates a new web scraping adapter instance
func (cfg *config) newFirecrawl() (adapter.Scraper, error) {
	if cfg.firecrawlAPIKey == "" {
		return nil, goerr.New("firecrawl-api-key is required")
	}
	return adapter.NewFirecrawl(cfg.firecrawlAPIKey), nil
}

// newRepository creates a new repository instance
func (cfg *config) newRepository(ctx context.Context) (repository.Repository, error) {
	if cfg.project == "" {
		return nil, goerr.New("project is required")
	}
	if cfg.database == "" {
		return nil, goerr.New("database is required")
	}

	repo, err := repository.NewFirestore(ctx, cfg.project, cfg.database)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create repository")
	}
	return repo, nil
}

// newStorage creates a new Storage adapter instance. The bucket flag is
// optional; without it commands keep artifacts local.
func (cfg *config) newStorage(ctx context.Context) (adapter.Storage, error) {
	if cfg.bucket == "" {
		return nil, nil
	}

	storage, err := adapter.NewStorage(ctx, cfg.bucket)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage")
	}
	return storage, nil
}

// newSlack creates a new Slack service instance
func (cfg *config) newSlack() (*slack.Service, error) {
	if cfg.slackBotToken == "" {
		return nil, goerr.New("slack-bot-token is required")
	}
	if cfg.slackAppToken == "" {
		return nil, goerr.New("slack-app-token is required")
	}

	svc, err := slack.New(cfg.slackBotToken, cfg.slackAppToken)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create slack service")
	}
	return svc, nil
}
