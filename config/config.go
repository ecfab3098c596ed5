package config

import (
	"fmt"
	"os"
	"time"

	"github.com/alejandrodnm/fxbot/internal/strategy"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del bot.
type Config struct {
	Trading   TradingConfig   `yaml:"trading"`
	Risk      RiskConfig      `yaml:"risk"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Feed      FeedConfig      `yaml:"feed"`
	Predictor PredictorConfig `yaml:"predictor"`
	HTTP      HTTPConfig      `yaml:"http"`
	Storage   StorageConfig   `yaml:"storage"`
	Log       LogConfig       `yaml:"log"`
	Accounts  []AccountConfig `yaml:"accounts" validate:"required,min=1,dive"`
}

// TradingConfig controla el loop de cada controller.
type TradingConfig struct {
	IntervalSeconds     int     `yaml:"interval_seconds" validate:"gt=0"`
	Strategy            string  `yaml:"strategy" validate:"strategy"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold" validate:"gte=0,lte=1"`
	TradeAmount         float64 `yaml:"trade_amount" validate:"gte=0"` // 0 → position_fraction × balance
	PositionFraction    float64 `yaml:"position_fraction" validate:"gte=0,lte=1"`
	TakeProfit          float64 `yaml:"take_profit" validate:"gte=0"` // reservado
	StopLoss            float64 `yaml:"stop_loss" validate:"gte=0"`   // reservado
}

// RiskConfig contiene los límites del risk gate. CooldownMs y MinimumBalance
// son punteros: 0 explícito desactiva el límite, ausente toma el default.
type RiskConfig struct {
	CooldownMs          *int     `yaml:"cooldown_ms" validate:"omitempty,gte=0"`
	MaxOpenTrades       int      `yaml:"max_open_trades" validate:"gte=1"`
	MaxDailyLossPercent float64  `yaml:"max_daily_loss_percent" validate:"gt=0,lte=100"`
	DailyTradingLimit   float64  `yaml:"daily_trading_limit" validate:"gt=0"`
	MinimumBalance      *float64 `yaml:"minimum_balance" validate:"omitempty,gte=0"`
}

// LedgerConfig elige la convención de débito al abrir un trade.
type LedgerConfig struct {
	DebitMode      string  `yaml:"debit_mode" validate:"oneof=full margin"`
	MarginFraction float64 `yaml:"margin_fraction" validate:"gt=0,lte=1"`
}

// FeedConfig configura el feed simulado.
type FeedConfig struct {
	Pairs          map[string]float64 `yaml:"pairs" validate:"required,min=1,dive,gt=0"` // par → precio inicial
	Volatility     float64            `yaml:"volatility" validate:"gte=0"`
	Drift          float64            `yaml:"drift"`
	IntervalMillis int                `yaml:"interval_millis" validate:"gt=0"`
	WindowSize     int                `yaml:"window_size" validate:"gte=2"`
	Warmup         int                `yaml:"warmup" validate:"gte=0"`
	Seed           uint64             `yaml:"seed"`
}

// PredictorConfig apunta al servicio externo de predicción. URL vacía
// desactiva el cliente y se usa solo la estrategia local.
type PredictorConfig struct {
	URL           string  `yaml:"url" validate:"omitempty,url"`
	TimeoutMillis int     `yaml:"timeout_millis" validate:"gt=0"`
	RatePerSec    float64 `yaml:"rate_per_sec" validate:"gte=0"`
	MaxRetries    int     `yaml:"max_retries" validate:"gte=-1"`
}

// HTTPConfig controla el API HTTP (solo con -serve).
type HTTPConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// AccountConfig define una cuenta simulada.
type AccountConfig struct {
	ID             string  `yaml:"id" validate:"required"`
	InitialBalance float64 `yaml:"initial_balance" validate:"gt=0"`
	Pair           string  `yaml:"pair" validate:"required"`
	Strategy       string  `yaml:"strategy" validate:"omitempty,strategy"` // vacío → trading.strategy
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("strategy", func(fl validator.FieldLevel) bool {
		_, err := strategy.ParseName(fl.Field().String())
		return err == nil
	})
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse aplica env overrides, defaults y validación sobre un YAML ya leído.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate comprueba rangos y referencias cruzadas.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config.Validate: %w", err)
	}
	seen := make(map[string]bool, len(c.Accounts))
	for _, a := range c.Accounts {
		if seen[a.ID] {
			return fmt.Errorf("config.Validate: duplicate account %q", a.ID)
		}
		seen[a.ID] = true
		if _, ok := c.Feed.Pairs[a.Pair]; !ok {
			return fmt.Errorf("config.Validate: account %q trades %q, not in feed.pairs", a.ID, a.Pair)
		}
	}
	return nil
}

// TickInterval devuelve el intervalo de los controllers como time.Duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Trading.IntervalSeconds) * time.Second
}

// Cooldown devuelve el cooldown del risk gate.
func (c *Config) Cooldown() time.Duration {
	if c.Risk.CooldownMs == nil {
		return 0
	}
	return time.Duration(*c.Risk.CooldownMs) * time.Millisecond
}

// MinimumBalance devuelve el suelo de balance del risk gate y el ledger.
func (c *Config) MinimumBalance() float64 {
	if c.Risk.MinimumBalance == nil {
		return 0
	}
	return *c.Risk.MinimumBalance
}

// FeedInterval devuelve el intervalo del feed simulado.
func (c *Config) FeedInterval() time.Duration {
	return time.Duration(c.Feed.IntervalMillis) * time.Millisecond
}

// PredictorTimeout devuelve el timeout por predicción externa.
func (c *Config) PredictorTimeout() time.Duration {
	return time.Duration(c.Predictor.TimeoutMillis) * time.Millisecond
}

// StrategyFor devuelve la estrategia de la cuenta, o la global si no tiene.
func (c *Config) StrategyFor(a AccountConfig) string {
	if a.Strategy != "" {
		return a.Strategy
	}
	return c.Trading.Strategy
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("FXBOT_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("FXBOT_PREDICTOR_URL"); v != "" {
		cfg.Predictor.URL = v
	}
	if v := os.Getenv("FXBOT_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	t := &cfg.Trading
	if t.IntervalSeconds <= 0 {
		t.IntervalSeconds = 5
	}
	if t.Strategy == "" {
		t.Strategy = string(strategy.NameForest)
	}
	if t.ConfidenceThreshold == 0 {
		t.ConfidenceThreshold = 0.7
	}
	if t.TradeAmount == 0 && t.PositionFraction == 0 {
		t.TradeAmount = 10_000
	}
	if t.PositionFraction == 0 {
		t.PositionFraction = 0.1
	}
	if t.TakeProfit == 0 {
		t.TakeProfit = 0.02
	}
	if t.StopLoss == 0 {
		t.StopLoss = 0.01
	}

	r := &cfg.Risk
	if r.CooldownMs == nil {
		r.CooldownMs = ptr(30_000)
	}
	if r.MaxOpenTrades == 0 {
		r.MaxOpenTrades = 3
	}
	if r.MaxDailyLossPercent == 0 {
		r.MaxDailyLossPercent = 2
	}
	if r.DailyTradingLimit == 0 {
		r.DailyTradingLimit = 10_000_000
	}
	if r.MinimumBalance == nil {
		r.MinimumBalance = ptr(1_000_000.0)
	}

	if cfg.Ledger.DebitMode == "" {
		cfg.Ledger.DebitMode = "full"
	}
	if cfg.Ledger.MarginFraction == 0 {
		cfg.Ledger.MarginFraction = 0.01
	}

	f := &cfg.Feed
	if len(f.Pairs) == 0 {
		f.Pairs = map[string]float64{"EUR/USD": 1.0847}
	}
	if f.Volatility == 0 {
		f.Volatility = 0.0005
	}
	if f.IntervalMillis == 0 {
		f.IntervalMillis = 1000
	}
	if f.WindowSize == 0 {
		f.WindowSize = 200
	}
	if f.Warmup == 0 {
		f.Warmup = 50
	}
	if f.Seed == 0 {
		f.Seed = uint64(time.Now().UnixNano())
	}

	if cfg.Predictor.TimeoutMillis == 0 {
		cfg.Predictor.TimeoutMillis = 2000
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":4001"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "fxbot.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	if len(cfg.Accounts) == 0 {
		cfg.Accounts = []AccountConfig{{ID: "org-1", InitialBalance: 5_000_000, Pair: "EUR/USD"}}
	}
	for i := range cfg.Accounts {
		if cfg.Accounts[i].InitialBalance == 0 {
			cfg.Accounts[i].InitialBalance = 5_000_000
		}
		if cfg.Accounts[i].Pair == "" {
			cfg.Accounts[i].Pair = "EUR/USD"
		}
	}
}

func ptr[T any](v T) *T {
	return &v
}
