package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	DB          DBConfig          `mapstructure:"db"`
	Cron        CronConfig        `mapstructure:"cron"`
	Gamma       GammaConfig       `mapstructure:"gamma"`
	Clob        ClobConfig        `mapstructure:"clob"`
	OddsAPI     OddsAPIConfig     `mapstructure:"oddsapi"`
	LLM         LLMConfig         `mapstructure:"llm"`
	Notify      NotifyConfig      `mapstructure:"notify"`
	Loader      LoaderConfig      `mapstructure:"loader"`
	Consensus   ConsensusConfig   `mapstructure:"consensus"`
	Movement    MovementConfig    `mapstructure:"movement"`
	Detector    DetectorConfig    `mapstructure:"detector"`
	CatalogSync CatalogSyncConfig `mapstructure:"catalog_sync"`
	QuoteStream QuoteStreamConfig `mapstructure:"quote_stream"`
	Snapshots   SnapshotsConfig   `mapstructure:"snapshots"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr  string `mapstructure:"http_addr"`
	AuthToken string `mapstructure:"auth_token"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Detect        string `mapstructure:"detect"`
	CatalogSync   string `mapstructure:"catalog_sync"`
	SnapshotPrune string `mapstructure:"snapshot_prune"`
}

type GammaConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ClobConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	ChunkSize int           `mapstructure:"chunk_size"`
}

type OddsAPIConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Key               string        `mapstructure:"key"`
	Regions           string        `mapstructure:"regions"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RetryCount        int           `mapstructure:"retry_count"`
	RetryWait         time.Duration `mapstructure:"retry_wait"`
	RequestsPerMinute float64       `mapstructure:"requests_per_minute"`
}

type LLMConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	APIKey          string        `mapstructure:"api_key"`
	Model           string        `mapstructure:"model"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxCallsPerPass int           `mapstructure:"max_calls_per_pass"`
}

type NotifyConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	BaseURL    string        `mapstructure:"base_url"`
	ServiceKey string        `mapstructure:"service_key"`
	To         string        `mapstructure:"to"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type LoaderConfig struct {
	APIVolumeMin float64       `mapstructure:"api_volume_min"`
	APICap       int           `mapstructure:"api_cap"`
	FirecrawlCap int           `mapstructure:"firecrawl_cap"`
	Lookahead    time.Duration `mapstructure:"lookahead"`
}

type ConsensusConfig struct {
	OutlierHigh     float64 `mapstructure:"outlier_high"`
	OutlierLow      float64 `mapstructure:"outlier_low"`
	SharpWeight     float64 `mapstructure:"sharp_weight"`
	MinBookmakers   int     `mapstructure:"min_bookmakers"`
	SumToleranceAbs float64 `mapstructure:"sum_tolerance_abs"`
}

type MovementConfig struct {
	Window           time.Duration `mapstructure:"window"`
	RecencyWindow    time.Duration `mapstructure:"recency_window"`
	RecencyShare     float64       `mapstructure:"recency_share"`
	BaseThreshold    float64       `mapstructure:"base_threshold"`
	RelativeFactor   float64       `mapstructure:"relative_factor"`
	CounterThreshold float64       `mapstructure:"counter_threshold"`
	MinBooks         int           `mapstructure:"min_books"`
}

type DetectorConfig struct {
	Deadline        time.Duration `mapstructure:"deadline"`
	EdgeThreshold   float64       `mapstructure:"edge_threshold"`
	RawEdgeFloor    float64       `mapstructure:"raw_edge_floor"`
	SwapMinRealEdge float64       `mapstructure:"swap_min_real_edge"`
	SwapThreshold   float64       `mapstructure:"swap_threshold"`
	StaleFairMin    float64       `mapstructure:"stale_fair_min"`
	StalenessLimit  time.Duration `mapstructure:"staleness_limit"`
	ExtremeFairMin  float64       `mapstructure:"extreme_fair_min"`
	ExtremeEdgeCap  float64       `mapstructure:"extreme_edge_cap"`
	FeeRate         float64       `mapstructure:"fee_rate"`
	DefaultStakeUSD float64       `mapstructure:"default_stake_usd"`
	AlertMaxLead    time.Duration `mapstructure:"alert_max_lead"`
}

type CatalogSyncConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	PageLimit int           `mapstructure:"page_limit"`
	MaxPages  int           `mapstructure:"max_pages"`
	Lookahead time.Duration `mapstructure:"lookahead"`
}

type QuoteStreamConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	URL             string        `mapstructure:"url"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	MaxAssets       int           `mapstructure:"max_assets"`
}

type SnapshotsConfig struct {
	Retention time.Duration `mapstructure:"retention"`
}

func Load(path string, envOnly bool) (Config, error) {
	// A local .env is a convenience for dev runs; absence is not an error.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("DET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.auth_token", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.detect", "0 * * * * *")
	v.SetDefault("cron.catalog_sync", "@every 10m")
	v.SetDefault("cron.snapshot_prune", "@every 1h")
	v.SetDefault("gamma.base_url", "https://gamma-api.polymarket.com")
	v.SetDefault("gamma.timeout", "15s")
	v.SetDefault("clob.base_url", "https://clob.polymarket.com")
	v.SetDefault("clob.timeout", "15s")
	v.SetDefault("clob.chunk_size", 50)
	v.SetDefault("oddsapi.base_url", "https://api.the-odds-api.com/v4")
	v.SetDefault("oddsapi.regions", "us,us2,uk,eu")
	v.SetDefault("oddsapi.timeout", "15s")
	v.SetDefault("oddsapi.retry_count", 2)
	v.SetDefault("oddsapi.retry_wait", "500ms")
	v.SetDefault("oddsapi.requests_per_minute", 30)
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout", "8s")
	v.SetDefault("llm.max_calls_per_pass", 15)
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.timeout", "5s")
	v.SetDefault("loader.api_volume_min", 5000)
	v.SetDefault("loader.api_cap", 150)
	v.SetDefault("loader.firecrawl_cap", 100)
	v.SetDefault("loader.lookahead", "24h")
	v.SetDefault("consensus.outlier_high", 0.92)
	v.SetDefault("consensus.outlier_low", 0.08)
	v.SetDefault("consensus.sharp_weight", 1.5)
	v.SetDefault("consensus.min_bookmakers", 2)
	v.SetDefault("consensus.sum_tolerance_abs", 0.05)
	v.SetDefault("movement.window", "30m")
	v.SetDefault("movement.recency_window", "10m")
	v.SetDefault("movement.recency_share", 0.70)
	v.SetDefault("movement.base_threshold", 0.02)
	v.SetDefault("movement.relative_factor", 0.12)
	v.SetDefault("movement.counter_threshold", 0.02)
	v.SetDefault("movement.min_books", 2)
	v.SetDefault("detector.deadline", "25s")
	v.SetDefault("detector.edge_threshold", 0.05)
	v.SetDefault("detector.raw_edge_floor", 0.02)
	v.SetDefault("detector.swap_min_real_edge", 0.01)
	v.SetDefault("detector.swap_threshold", 0.05)
	v.SetDefault("detector.stale_fair_min", 0.85)
	v.SetDefault("detector.staleness_limit", "3m")
	v.SetDefault("detector.extreme_fair_min", 0.90)
	v.SetDefault("detector.extreme_edge_cap", 0.40)
	v.SetDefault("detector.fee_rate", 0.01)
	v.SetDefault("detector.default_stake_usd", 100)
	v.SetDefault("detector.alert_max_lead", "24h")
	v.SetDefault("catalog_sync.enabled", false)
	v.SetDefault("catalog_sync.page_limit", 200)
	v.SetDefault("catalog_sync.max_pages", 5)
	v.SetDefault("catalog_sync.lookahead", "24h")
	v.SetDefault("quote_stream.enabled", false)
	v.SetDefault("quote_stream.url", "")
	v.SetDefault("quote_stream.refresh_interval", "30s")
	v.SetDefault("quote_stream.max_assets", 200)
	v.SetDefault("snapshots.retention", "24h")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	// Legacy env aliases used by earlier deploys of this stack.
	if strings.TrimSpace(cfg.OddsAPI.Key) == "" {
		cfg.OddsAPI.Key = strings.TrimSpace(os.Getenv("ODDS_API_KEY"))
	}
	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		cfg.LLM.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
	if strings.TrimSpace(cfg.DB.DSN) == "" {
		cfg.DB.DSN = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}

	return cfg, nil
}
