package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/flowscalp/internal/adapters/broker"
	"github.com/alejandrodnm/flowscalp/internal/adapters/kafka"
	"github.com/alejandrodnm/flowscalp/internal/application/live"
	"github.com/alejandrodnm/flowscalp/internal/backtest"
	"github.com/alejandrodnm/flowscalp/internal/orderflow"
	"github.com/alejandrodnm/flowscalp/internal/risk"
	"github.com/alejandrodnm/flowscalp/internal/signal"
)

// envPrefix es el prefijo de las variables de entorno (FLOWSCALP_LOG_LEVEL, ...).
const envPrefix = "FLOWSCALP"

// ModeScalp activa el overlay de la sección scalp.
const ModeScalp = "scalp"

// Config es la configuración completa del bot.
type Config struct {
	Mode       string           `yaml:"mode"` // simulation | scalp
	Instrument InstrumentConfig `yaml:"instrument"`
	Strategy   StrategyConfig   `yaml:"strategy"`
	Targets    TargetsConfig    `yaml:"targets"`
	Risk       RiskConfig       `yaml:"risk"`
	Filters    FiltersConfig    `yaml:"filters"`
	Backtest   BacktestConfig   `yaml:"backtest"`
	Scalp      ScalpConfig      `yaml:"scalp"`
	Live       LiveConfig       `yaml:"live"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Bridge     BridgeConfig     `yaml:"bridge"`
	Storage    StorageConfig    `yaml:"storage"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Log        LogConfig        `yaml:"log"`
}

// InstrumentConfig describe el contrato operado.
type InstrumentConfig struct {
	Symbol         string  `yaml:"symbol"`
	TickSize       float64 `yaml:"tick_size"`
	TickValue      float64 `yaml:"tick_value"` // USD por tick y contrato
	SizeMultiplier float64 `yaml:"size_multiplier"`
}

// StrategyConfig agrupa los parámetros del analizador y del generador de señales.
type StrategyConfig struct {
	BigTradeThreshold  float64 `yaml:"big_trade_threshold"`
	AbsorptionTicks    int     `yaml:"absorption_ticks"`
	ValueAreaPct       float64 `yaml:"vah_val_pct"`
	ProfileRollingBars int     `yaml:"profile_rolling_bars"`
	MinDelta           float64 `yaml:"min_delta"`
	DeltaSensitivity   float64 `yaml:"delta_sensitivity"`
	BigTradeConfirmMin int     `yaml:"big_trade_confirm_min"`
	BigTradeEdge       int     `yaml:"big_trade_edge"`
	BigTradeLookback   int     `yaml:"big_trade_lookback"`
	RequireAbsorption  *bool   `yaml:"require_absorption"`   // nil = true
	RequireAtStructure *bool   `yaml:"require_at_structure"` // nil = true
	MinDeltaMultiplier float64 `yaml:"min_delta_multiplier"`
	MinSignalStrength  float64 `yaml:"min_signal_strength"`
	LVNTicks           int     `yaml:"lvn_ticks"`
	HVNTicks           int     `yaml:"hvn_ticks"`
	POCTicks           int     `yaml:"poc_ticks"`
	RiskPct            float64 `yaml:"risk_pct"`
	SessionStart       string  `yaml:"session_start"`
	SessionEnd         string  `yaml:"session_end"`
	UseGlobex          bool    `yaml:"use_globex"`
	Timezone           string  `yaml:"timezone"`
}

// TargetsConfig controla la geometría de los targets.
type TargetsConfig struct {
	RRFirst     float64 `yaml:"rr_first"`
	RRSecond    float64 `yaml:"rr_second"`
	ScaleOutPct float64 `yaml:"scale_out_pct"`
}

// RiskConfig controla el gestor de riesgo.
type RiskConfig struct {
	MaxDailyDrawdownPct  float64 `yaml:"max_daily_drawdown_pct"`
	MaxConsecutiveLosses int     `yaml:"max_consecutive_losses"`
	MaxDailyTrades       int     `yaml:"max_daily_trades"`
	ATRStopMultiplier    float64 `yaml:"atr_stop_multiplier"`
	MaxContracts         int     `yaml:"max_contracts"`
}

// FiltersConfig activa los post-filtros de señal (replay y vivo).
type FiltersConfig struct {
	Regime    RegimeFilterConfig    `yaml:"regime"`
	Threshold ThresholdFilterConfig `yaml:"ml_threshold"`
}

// RegimeFilterConfig filtra por régimen de volatilidad (0 bajo, 1 medio, 2 alto).
type RegimeFilterConfig struct {
	Enabled bool  `yaml:"enabled"`
	Window  int   `yaml:"window"`
	Allowed []int `yaml:"allowed"`
}

// ThresholdFilterConfig filtra por P(win) de un modelo logístico sobre las features.
type ThresholdFilterConfig struct {
	Enabled   bool      `yaml:"enabled"`
	Threshold float64   `yaml:"threshold"`
	Weights   []float64 `yaml:"weights"`
	Bias      float64   `yaml:"bias"`
}

// BacktestConfig controla el replay. Los overrides de generador y riesgo
// relajan los filtros para recorrer todo el dataset.
type BacktestConfig struct {
	Source            string  `yaml:"source"` // csv | postgres
	DataPath          string  `yaml:"data_path"`
	ScaleVolume       *bool   `yaml:"scale_volume"` // nil = true
	InitialBalance    float64 `yaml:"initial_balance"`
	InitialATRTicks   float64 `yaml:"initial_atr_ticks"`
	ResetIntervalBars int     `yaml:"reset_interval_bars"`
	SessionBarsPerDay int     `yaml:"session_bars_per_day"`
	SessionStartBar   int     `yaml:"session_start_bar"`
	SessionEndBar     int     `yaml:"session_end_bar"`
	TrendMABars       int     `yaml:"trend_ma_bars"`
	MinTarget1Ticks   int     `yaml:"min_target1_ticks"`
	MinTarget2Ticks   int     `yaml:"min_target2_ticks"`
	MaxHoldBars       int     `yaml:"max_hold_bars"`
	TradesShown       int     `yaml:"trades_shown"`

	RequireAbsorption    *bool   `yaml:"require_absorption"`   // nil = false
	RequireAtStructure   *bool   `yaml:"require_at_structure"` // nil = false
	MinDeltaMultiplier   float64 `yaml:"min_delta_multiplier"`
	MaxConsecutiveLosses int     `yaml:"max_consecutive_losses"`
	MaxDailyTrades       int     `yaml:"max_daily_trades"`
	RRFirst              float64 `yaml:"rr_first"`
	RRSecond             float64 `yaml:"rr_second"`
}

// ScalpConfig se superpone a strategy/targets/risk cuando mode: scalp.
// Un cero significa "no sobreescribir".
type ScalpConfig struct {
	MinSignalStrength  float64 `yaml:"min_signal_strength"`
	MinDelta           float64 `yaml:"min_delta"`
	MinDeltaMultiplier float64 `yaml:"min_delta_multiplier"`
	BigTradeEdge       int     `yaml:"big_trade_edge"`
	BigTradeThreshold  float64 `yaml:"big_trade_threshold"`
	RRFirst            float64 `yaml:"rr_first"`
	RRSecond           float64 `yaml:"rr_second"`
	MaxDailyTrades     int     `yaml:"max_daily_trades"`
	IntervalSeconds    int     `yaml:"interval_seconds"`
}

// LiveConfig controla el motor en vivo.
type LiveConfig struct {
	IntervalSeconds int      `yaml:"interval_seconds"` // duración de barra
	Equity          float64  `yaml:"equity"`
	Symbols         []string `yaml:"symbols"` // vacío = auto-subscribe
	Sink            string   `yaml:"sink"`    // paper | bridge
}

// KafkaConfig apunta al topic de ticks.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
}

// PostgresConfig apunta a la tabla de barras.
type PostgresConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

// BridgeConfig apunta al bridge HTTP del broker.
type BridgeConfig struct {
	URL            string  `yaml:"url"`
	APIKey         string  `yaml:"api_key"`
	RatePerSec     float64 `yaml:"rate_per_sec"`
	Burst          int     `yaml:"burst"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// MetricsConfig controla el endpoint /metrics del modo vivo.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // vacío = deshabilitado
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// envOverrides son las variables FLOWSCALP_* que sobreescriben el YAML.
type envOverrides struct {
	Mode         string   `envconfig:"MODE"`
	Symbol       string   `envconfig:"SYMBOL"`
	LogLevel     string   `envconfig:"LOG_LEVEL"`
	LogFormat    string   `envconfig:"LOG_FORMAT"`
	StorageDSN   string   `envconfig:"STORAGE_DSN"`
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC"`
	KafkaGroupID string   `envconfig:"KAFKA_GROUP_ID"`
	PostgresURL  string   `envconfig:"POSTGRES_URL"`
	BridgeURL    string   `envconfig:"BRIDGE_URL"`
	BridgeAPIKey string   `envconfig:"BRIDGE_API_KEY"`
	MetricsAddr  string   `envconfig:"METRICS_ADDR"`
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Orden: YAML → variables FLOWSCALP_* → overlay scalp → defaults.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if cfg.Mode == ModeScalp {
		applyScalp(&cfg)
	}
	setDefaults(&cfg)

	return &cfg, nil
}

// Default devuelve la configuración por defecto sin leer ficheros.
func Default() *Config {
	var cfg Config
	setDefaults(&cfg)
	return &cfg
}

// BarInterval devuelve la duración de barra del modo vivo.
func (c *Config) BarInterval() time.Duration {
	return time.Duration(c.Live.IntervalSeconds) * time.Second
}

// Analyzer construye la config del analizador de order flow.
func (c *Config) Analyzer() orderflow.Config {
	return orderflow.Config{
		TickSize:           c.Instrument.TickSize,
		SizeMultiplier:     c.Instrument.SizeMultiplier,
		BigTradeThreshold:  c.Strategy.BigTradeThreshold,
		AbsorptionTicks:    c.Strategy.AbsorptionTicks,
		ValueAreaPct:       c.Strategy.ValueAreaPct,
		ProfileRollingBars: c.Strategy.ProfileRollingBars,
		BigTradeHistory:    orderflow.DefaultConfig().BigTradeHistory,
	}
}

// Generator construye la config del generador de señales.
func (c *Config) Generator() signal.Config {
	s := c.Strategy
	return signal.Config{
		MinDelta:           s.MinDelta,
		DeltaSensitivity:   s.DeltaSensitivity,
		BigTradeConfirmMin: s.BigTradeConfirmMin,
		BigTradeEdge:       s.BigTradeEdge,
		BigTradeLookback:   s.BigTradeLookback,
		RequireAbsorption:  boolOr(s.RequireAbsorption, true),
		RequireAtStructure: boolOr(s.RequireAtStructure, true),
		MinDeltaMultiplier: s.MinDeltaMultiplier,
		MinSignalStrength:  s.MinSignalStrength,
		LVNTicks:           s.LVNTicks,
		HVNTicks:           s.HVNTicks,
		POCTicks:           s.POCTicks,
		ATRStopMultiplier:  c.Risk.ATRStopMultiplier,
		RRFirst:            c.Targets.RRFirst,
		RRSecond:           c.Targets.RRSecond,
	}
}

// RiskManager construye la config del gestor de riesgo.
func (c *Config) RiskManager() risk.Config {
	return risk.Config{
		RiskPct:              c.Strategy.RiskPct,
		MaxDailyDrawdownPct:  c.Risk.MaxDailyDrawdownPct,
		MaxConsecutiveLosses: c.Risk.MaxConsecutiveLosses,
		MaxDailyTrades:       c.Risk.MaxDailyTrades,
		SessionStart:         c.Strategy.SessionStart,
		SessionEnd:           c.Strategy.SessionEnd,
		TickValue:            c.Instrument.TickValue,
		UseGlobex:            c.Strategy.UseGlobex,
		Location:             c.Strategy.Timezone,
	}
}

// SignalFilters construye la cadena de post-filtros habilitados.
func (c *Config) SignalFilters() signal.Chain {
	var chain signal.Chain
	if f := c.Filters.Regime; f.Enabled {
		rf := signal.NewRegimeFilter()
		if f.Window > 0 {
			rf.Window = f.Window
		}
		if len(f.Allowed) > 0 {
			rf.Allowed = f.Allowed
		}
		chain = append(chain, rf)
	}
	if f := c.Filters.Threshold; f.Enabled {
		chain = append(chain, signal.ThresholdFilter{
			Predictor: signal.LogisticPredictor{Weights: f.Weights, Bias: f.Bias},
			Threshold: f.Threshold,
		})
	}
	return chain
}

// BacktestRun construye la config del replay: instrumento y estrategia del
// YAML con los overrides de la sección backtest.
func (c *Config) BacktestRun() backtest.Config {
	b := c.Backtest

	gen := c.Generator()
	gen.RequireAbsorption = boolOr(b.RequireAbsorption, false)
	gen.RequireAtStructure = boolOr(b.RequireAtStructure, false)
	gen.MinDeltaMultiplier = b.MinDeltaMultiplier
	gen.RRFirst = b.RRFirst
	gen.RRSecond = b.RRSecond

	rk := c.RiskManager()
	rk.MaxConsecutiveLosses = b.MaxConsecutiveLosses
	rk.MaxDailyTrades = b.MaxDailyTrades
	rk.UseGlobex = true

	cfg := backtest.DefaultConfig()
	cfg.InitialBalance = b.InitialBalance
	cfg.TickSize = c.Instrument.TickSize
	cfg.TickValue = c.Instrument.TickValue
	cfg.SizeMultiplier = c.Instrument.SizeMultiplier
	cfg.MaxContracts = c.Risk.MaxContracts
	cfg.Analyzer = c.Analyzer()
	cfg.Generator = gen
	cfg.Risk = rk
	cfg.InitialATRTicks = b.InitialATRTicks
	cfg.ResetIntervalBars = b.ResetIntervalBars
	cfg.SessionBarsPerDay = b.SessionBarsPerDay
	cfg.SessionStartBar = b.SessionStartBar
	cfg.SessionEndBar = b.SessionEndBar
	cfg.TrendMABars = b.TrendMABars
	cfg.MinTarget1Ticks = b.MinTarget1Ticks
	cfg.MinTarget2Ticks = b.MinTarget2Ticks
	cfg.MaxHoldBars = b.MaxHoldBars
	cfg.Filters = c.SignalFilters()
	return cfg
}

// LiveEngine construye la config del motor en vivo.
func (c *Config) LiveEngine() live.Config {
	return live.Config{
		Analyzer:        c.Analyzer(),
		Generator:       c.Generator(),
		Risk:            c.RiskManager(),
		Filters:         c.SignalFilters(),
		BarInterval:     c.BarInterval(),
		Equity:          c.Live.Equity,
		MaxContracts:    c.Risk.MaxContracts,
		ScaleOutPct:     c.Targets.ScaleOutPct,
		InitialATRTicks: c.Backtest.InitialATRTicks,
		AutoSubscribe:   len(c.Live.Symbols) == 0,
	}
}

// KafkaFeed construye la config del consumer de ticks.
func (c *Config) KafkaFeed() kafka.Config {
	return kafka.Config{Brokers: c.Kafka.Brokers, Topic: c.Kafka.Topic, GroupID: c.Kafka.GroupID}
}

// BridgeSink construye la config del order sink HTTP.
func (c *Config) BridgeSink() broker.BridgeConfig {
	return broker.BridgeConfig{
		BaseURL:    c.Bridge.URL,
		APIKey:     c.Bridge.APIKey,
		TickSize:   c.Instrument.TickSize,
		RatePerSec: c.Bridge.RatePerSec,
		Burst:      c.Bridge.Burst,
		Timeout:    time.Duration(c.Bridge.TimeoutSeconds) * time.Second,
	}
}

// ScaleBacktestVolume indica si el loader CSV debe escalar el volumen.
func (c *Config) ScaleBacktestVolume() bool {
	return boolOr(c.Backtest.ScaleVolume, true)
}

// applyEnvOverrides sobreescribe valores con variables FLOWSCALP_* si están presentes.
func applyEnvOverrides(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return fmt.Errorf("env overrides: %w", err)
	}
	setStr := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setStr(&cfg.Mode, env.Mode)
	setStr(&cfg.Instrument.Symbol, env.Symbol)
	setStr(&cfg.Log.Level, env.LogLevel)
	setStr(&cfg.Log.Format, env.LogFormat)
	setStr(&cfg.Storage.DSN, env.StorageDSN)
	setStr(&cfg.Kafka.Topic, env.KafkaTopic)
	setStr(&cfg.Kafka.GroupID, env.KafkaGroupID)
	setStr(&cfg.Postgres.URL, env.PostgresURL)
	setStr(&cfg.Bridge.URL, env.BridgeURL)
	setStr(&cfg.Bridge.APIKey, env.BridgeAPIKey)
	setStr(&cfg.Metrics.Addr, env.MetricsAddr)
	if len(env.KafkaBrokers) > 0 {
		cfg.Kafka.Brokers = env.KafkaBrokers
	}
	return nil
}

// applyScalp superpone los valores no nulos de la sección scalp.
func applyScalp(cfg *Config) {
	s := cfg.Scalp
	setF := func(dst *float64, v float64) {
		if v != 0 {
			*dst = v
		}
	}
	setI := func(dst *int, v int) {
		if v != 0 {
			*dst = v
		}
	}
	setF(&cfg.Strategy.MinSignalStrength, s.MinSignalStrength)
	setF(&cfg.Strategy.MinDelta, s.MinDelta)
	setF(&cfg.Strategy.MinDeltaMultiplier, s.MinDeltaMultiplier)
	setI(&cfg.Strategy.BigTradeEdge, s.BigTradeEdge)
	setF(&cfg.Strategy.BigTradeThreshold, s.BigTradeThreshold)
	setF(&cfg.Targets.RRFirst, s.RRFirst)
	setF(&cfg.Targets.RRSecond, s.RRSecond)
	setI(&cfg.Risk.MaxDailyTrades, s.MaxDailyTrades)
	setI(&cfg.Live.IntervalSeconds, s.IntervalSeconds)
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Mode == "" {
		cfg.Mode = "simulation"
	}

	in := &cfg.Instrument
	if in.Symbol == "" {
		in.Symbol = "NQ"
	}
	if in.TickSize <= 0 {
		in.TickSize = 0.25
	}
	if in.TickValue <= 0 {
		in.TickValue = 5
	}
	if in.SizeMultiplier <= 0 {
		in.SizeMultiplier = 1
	}

	a := orderflow.DefaultConfig()
	g := signal.DefaultConfig()
	r := risk.DefaultConfig()
	s := &cfg.Strategy
	if s.BigTradeThreshold <= 0 {
		s.BigTradeThreshold = a.BigTradeThreshold
	}
	if s.AbsorptionTicks <= 0 {
		s.AbsorptionTicks = a.AbsorptionTicks
	}
	if s.ValueAreaPct <= 0 || s.ValueAreaPct > 1 {
		s.ValueAreaPct = a.ValueAreaPct
	}
	if s.ProfileRollingBars <= 0 {
		s.ProfileRollingBars = a.ProfileRollingBars
	}
	if s.MinDelta <= 0 {
		s.MinDelta = g.MinDelta
	}
	if s.DeltaSensitivity <= 0 {
		s.DeltaSensitivity = g.DeltaSensitivity
	}
	if s.BigTradeConfirmMin <= 0 {
		s.BigTradeConfirmMin = g.BigTradeConfirmMin
	}
	if s.BigTradeEdge <= 0 {
		s.BigTradeEdge = g.BigTradeEdge
	}
	if s.BigTradeLookback <= 0 {
		s.BigTradeLookback = g.BigTradeLookback
	}
	if s.MinDeltaMultiplier <= 0 {
		s.MinDeltaMultiplier = g.MinDeltaMultiplier
	}
	if s.LVNTicks <= 0 {
		s.LVNTicks = g.LVNTicks
	}
	if s.HVNTicks <= 0 {
		s.HVNTicks = g.HVNTicks
	}
	if s.POCTicks <= 0 {
		s.POCTicks = g.POCTicks
	}
	if s.RiskPct <= 0 {
		s.RiskPct = r.RiskPct
	}
	if s.SessionStart == "" {
		s.SessionStart = r.SessionStart
	}
	if s.SessionEnd == "" {
		s.SessionEnd = r.SessionEnd
	}
	if s.Timezone == "" {
		s.Timezone = r.Location
	}

	t := &cfg.Targets
	if t.RRFirst <= 0 {
		t.RRFirst = g.RRFirst
	}
	if t.RRSecond <= 0 {
		t.RRSecond = g.RRSecond
	}
	if t.ScaleOutPct <= 0 || t.ScaleOutPct > 1 {
		t.ScaleOutPct = 0.5
	}

	rk := &cfg.Risk
	if rk.MaxDailyDrawdownPct <= 0 {
		rk.MaxDailyDrawdownPct = r.MaxDailyDrawdownPct
	}
	if rk.MaxConsecutiveLosses <= 0 {
		rk.MaxConsecutiveLosses = r.MaxConsecutiveLosses
	}
	if rk.MaxDailyTrades <= 0 {
		rk.MaxDailyTrades = r.MaxDailyTrades
	}
	if rk.ATRStopMultiplier <= 0 {
		rk.ATRStopMultiplier = g.ATRStopMultiplier
	}
	if rk.MaxContracts <= 0 {
		rk.MaxContracts = 10
	}

	bd := backtest.DefaultConfig()
	b := &cfg.Backtest
	if b.Source == "" {
		b.Source = "csv"
	}
	if b.InitialBalance <= 0 {
		b.InitialBalance = bd.InitialBalance
	}
	if b.InitialATRTicks <= 0 {
		b.InitialATRTicks = bd.InitialATRTicks
	}
	if b.ResetIntervalBars <= 0 {
		b.ResetIntervalBars = bd.ResetIntervalBars
	}
	if b.MinTarget1Ticks <= 0 {
		b.MinTarget1Ticks = bd.MinTarget1Ticks
	}
	if b.MinTarget2Ticks <= 0 {
		b.MinTarget2Ticks = bd.MinTarget2Ticks
	}
	if b.TradesShown <= 0 {
		b.TradesShown = 20
	}
	if b.MinDeltaMultiplier <= 0 {
		b.MinDeltaMultiplier = bd.Generator.MinDeltaMultiplier
	}
	if b.MaxConsecutiveLosses <= 0 {
		b.MaxConsecutiveLosses = bd.Risk.MaxConsecutiveLosses
	}
	if b.MaxDailyTrades <= 0 {
		b.MaxDailyTrades = bd.Risk.MaxDailyTrades
	}
	if b.RRFirst <= 0 {
		b.RRFirst = bd.Generator.RRFirst
	}
	if b.RRSecond <= 0 {
		b.RRSecond = bd.Generator.RRSecond
	}

	l := &cfg.Live
	if l.IntervalSeconds <= 0 {
		l.IntervalSeconds = 15
	}
	if l.Equity <= 0 {
		l.Equity = 100000
	}
	if l.Sink == "" {
		l.Sink = "paper"
	}

	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "ticks"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "flowscalp"
	}
	if cfg.Postgres.MaxConns <= 0 {
		cfg.Postgres.MaxConns = 4
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "flowscalp.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
