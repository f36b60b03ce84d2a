package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

var singleConfig *Config = nil

type Config struct {
	Database *dbConfig
	Service  *svcConfig
	Catalog  *catalogConfig
	AI       *aiConfig
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"applyplanner"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
}

type svcConfig struct {
	Address             string        `envconfig:"APPLY_PLANNER_ADDRESS" default:":8001"`
	BaseUrl             string        `envconfig:"APPLY_PLANNER_BASE_URL" default:"http://localhost:8001"`
	LogLevel            string        `envconfig:"APPLY_PLANNER_LOG_LEVEL" default:"info"`
	ReviewTTL           time.Duration `envconfig:"APPLY_PLANNER_REVIEW_TTL" default:"1800s"`
	SessionTTL          time.Duration `envconfig:"APPLY_PLANNER_SESSION_TTL" default:"900s"`
	VerifyAttemptCap    int           `envconfig:"APPLY_PLANNER_VERIFY_ATTEMPT_CAP" default:"5"`
	CollaboratorTimeout time.Duration `envconfig:"APPLY_PLANNER_COLLABORATOR_TIMEOUT" default:"120s"`
}

type catalogConfig struct {
	BoardAPIBaseUrl  string        `envconfig:"APPLY_PLANNER_BOARD_API_URL" default:"https://boards-api.greenhouse.io/v1/boards"`
	CompaniesFile    string        `envconfig:"APPLY_PLANNER_COMPANIES_FILE" default:"data/companies.json"`
	JobsPerCompany   int           `envconfig:"APPLY_PLANNER_JOBS_PER_COMPANY" default:"10"`
	FetchConcurrency int           `envconfig:"APPLY_PLANNER_FETCH_CONCURRENCY" default:"5"`
	CompanyPacing    time.Duration `envconfig:"APPLY_PLANNER_COMPANY_PACING" default:"500ms"`
	CatalogRPS       float64       `envconfig:"APPLY_PLANNER_CATALOG_RPS" default:"5"`
	CatalogBurst     int           `envconfig:"APPLY_PLANNER_CATALOG_BURST" default:"5"`
	EmbeddingRPS     float64       `envconfig:"APPLY_PLANNER_EMBEDDING_RPS" default:"2"`
	EmbeddingBurst   int           `envconfig:"APPLY_PLANNER_EMBEDDING_BURST" default:"2"`
}

type aiConfig struct {
	OllamaBaseUrl  string        `envconfig:"APPLY_PLANNER_OLLAMA_URL" default:"http://localhost:11434"`
	EmbeddingModel string        `envconfig:"APPLY_PLANNER_EMBEDDING_MODEL" default:"nomic-embed-text"`
	GenerateModel  string        `envconfig:"APPLY_PLANNER_GENERATE_MODEL" default:"llama3.1"`
	Timeout        time.Duration `envconfig:"APPLY_PLANNER_OLLAMA_TIMEOUT" default:"60s"`
}

func New() (*Config, error) {
	if singleConfig == nil {
		singleConfig = new(Config)
		if err := envconfig.Process("", singleConfig); err != nil {
			return nil, err
		}
	}
	return singleConfig, nil
}

// NewDefault returns a config populated with defaults only, ignoring the
// environment. Used by tests.
func NewDefault() *Config {
	return &Config{
		Database: &dbConfig{Type: "sqlite", Name: ":memory:"},
		Service: &svcConfig{
			Address:             ":8001",
			ReviewTTL:           1800 * time.Second,
			SessionTTL:          900 * time.Second,
			VerifyAttemptCap:    5,
			CollaboratorTimeout: 120 * time.Second,
		},
		Catalog: &catalogConfig{
			JobsPerCompany:   10,
			FetchConcurrency: 5,
			CatalogRPS:       100,
			CatalogBurst:     10,
			EmbeddingRPS:     100,
			EmbeddingBurst:   10,
		},
		AI: &aiConfig{},
	}
}
