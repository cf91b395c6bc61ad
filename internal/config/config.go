package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Duration is a time.Duration that unmarshals from yaml strings such
// as "10s" or "100ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Simulation SimulationConfig `yaml:"simulation"`
	Quality    QualityConfig    `yaml:"quality"`
	Costs      CostsConfig      `yaml:"costs"`
	Factory    FactoryConfig    `yaml:"factory"`
	Store      StoreConfig      `yaml:"store"`
	Events     EventsConfig     `yaml:"events"`
	Logging    LoggingConfig    `yaml:"logging"`
	App        AppConfig        `yaml:"app"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	IdleTimeout     Duration `yaml:"idle_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// SimulationConfig holds simulation engine parameters. Sample interval
// and history apply to the metrics ring buffer; tick rate and max step
// drive the wall-clock stepping loop.
type SimulationConfig struct {
	TickRate         int      `yaml:"tick_rate"`
	MaxStep          Duration `yaml:"max_step"`
	SpeedFactor      float64  `yaml:"speed_factor"`
	SampleInterval   float64  `yaml:"sample_interval"`
	HistorySize      int      `yaml:"history_size"`
	TargetThroughput float64  `yaml:"target_throughput"`
	BufferCapacity   int      `yaml:"buffer_capacity"`
}

// QualityConfig holds the stochastic quality model rates
type QualityConfig struct {
	DefectRate          float64 `yaml:"defect_rate"`
	ReworkRate          float64 `yaml:"rework_rate"`
	DowntimeRate        float64 `yaml:"downtime_rate"`
	MeanDowntimeMinutes float64 `yaml:"mean_downtime_minutes"`
}

// CostsConfig holds per-piece and per-hour cost rates
type CostsConfig struct {
	MaterialPerPiece float64 `yaml:"material_per_piece"`
	DefectPerPiece   float64 `yaml:"defect_per_piece"`
	MachinePerHour   float64 `yaml:"machine_per_hour"`
	LaborPerHour     float64 `yaml:"labor_per_hour"`
	OverheadPerHour  float64 `yaml:"overhead_per_hour"`
}

// HourlyCost returns the combined machine, labor and overhead rate
func (c CostsConfig) HourlyCost() float64 {
	return c.MachinePerHour + c.LaborPerHour + c.OverheadPerHour
}

// FactoryConfig seeds the factory floor at startup
type FactoryConfig struct {
	Machines []MachineSeed `yaml:"machines"`
	Lines    []LineSeed    `yaml:"lines"`
	Jobs     []JobSeed     `yaml:"jobs"`
}

// MachineSeed describes one machine to create at startup
type MachineSeed struct {
	Name      string  `yaml:"name"`
	Type      string  `yaml:"type"`
	BaseTime  float64 `yaml:"base_time"`
	SetupTime float64 `yaml:"setup_time"`
	Capacity  int     `yaml:"capacity"`
}

// LineSeed describes one production line and its machine order
type LineSeed struct {
	Name     string   `yaml:"name"`
	Machines []string `yaml:"machines"`
}

// JobSeed describes one job to enqueue at startup
type JobSeed struct {
	BatchSize int      `yaml:"batch_size"`
	Machines  []string `yaml:"machines"`
	Priority  string   `yaml:"priority"`
}

// StoreConfig holds the run archive database configuration
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// EventsConfig holds the AMQP event publisher configuration
type EventsConfig struct {
	Enabled    bool             `yaml:"enabled"`
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
}

// ExchangeConfig holds AMQP exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// ConnectionConfig holds AMQP connection settings
type ConnectionConfig struct {
	RetryAttempts     int      `yaml:"retry_attempts"`
	RetryInterval     Duration `yaml:"retry_interval"`
	Heartbeat         Duration `yaml:"heartbeat"`
	ConnectionTimeout Duration `yaml:"connection_timeout"`
}

// PublishConfig holds AMQP publish retry settings
type PublishConfig struct {
	RetryAttempts     int      `yaml:"retry_attempts"`
	RetryInterval     Duration `yaml:"retry_interval"`
	BackoffMultiplier float64  `yaml:"backoff_multiplier"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level            string `yaml:"level"`
	Format           string `yaml:"format"`
	Output           string `yaml:"output"`
	EnableCaller     bool   `yaml:"enable_caller"`
	EnableStackTrace bool   `yaml:"enable_stack_trace"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if c.Simulation.TickRate <= 0 {
		return fmt.Errorf("simulation tick_rate must be greater than 0")
	}

	if c.Simulation.MaxStep <= 0 {
		return fmt.Errorf("simulation max_step must be greater than 0")
	}

	if c.Simulation.SpeedFactor <= 0 {
		return fmt.Errorf("simulation speed_factor must be greater than 0")
	}

	if c.Simulation.SampleInterval <= 0 {
		return fmt.Errorf("simulation sample_interval must be greater than 0")
	}

	if c.Simulation.HistorySize <= 0 {
		return fmt.Errorf("simulation history_size must be greater than 0")
	}

	if c.Simulation.TargetThroughput <= 0 {
		return fmt.Errorf("simulation target_throughput must be greater than 0")
	}

	if c.Simulation.BufferCapacity <= 0 {
		return fmt.Errorf("simulation buffer_capacity must be greater than 0")
	}

	if err := c.Quality.validate(); err != nil {
		return err
	}

	if err := c.Costs.validate(); err != nil {
		return err
	}

	if err := c.Factory.validate(); err != nil {
		return err
	}

	if c.Store.Enabled && c.Store.Path == "" {
		return fmt.Errorf("store path is required when store is enabled")
	}

	if c.Events.Enabled {
		if c.Events.Host == "" {
			return fmt.Errorf("events host is required when events are enabled")
		}
		if c.Events.Port < MinPort || c.Events.Port > MaxPort {
			return fmt.Errorf("invalid events port: %d (must be between %d and %d)", c.Events.Port, MinPort, MaxPort)
		}
		if c.Events.Exchange.Name == "" {
			return fmt.Errorf("events exchange name is required when events are enabled")
		}
	}

	return nil
}

func (q QualityConfig) validate() error {
	if q.DefectRate < 0 || q.DefectRate > 1 {
		return fmt.Errorf("quality defect_rate must be between 0 and 1, got %g", q.DefectRate)
	}
	if q.ReworkRate < 0 || q.ReworkRate > 1 {
		return fmt.Errorf("quality rework_rate must be between 0 and 1, got %g", q.ReworkRate)
	}
	if q.DowntimeRate < 0 || q.DowntimeRate > 1 {
		return fmt.Errorf("quality downtime_rate must be between 0 and 1, got %g", q.DowntimeRate)
	}
	if q.MeanDowntimeMinutes < 0 {
		return fmt.Errorf("quality mean_downtime_minutes cannot be negative")
	}
	return nil
}

func (c CostsConfig) validate() error {
	if c.MaterialPerPiece < 0 {
		return fmt.Errorf("costs material_per_piece cannot be negative")
	}
	if c.DefectPerPiece < 0 {
		return fmt.Errorf("costs defect_per_piece cannot be negative")
	}
	if c.MachinePerHour < 0 {
		return fmt.Errorf("costs machine_per_hour cannot be negative")
	}
	if c.LaborPerHour < 0 {
		return fmt.Errorf("costs labor_per_hour cannot be negative")
	}
	if c.OverheadPerHour < 0 {
		return fmt.Errorf("costs overhead_per_hour cannot be negative")
	}
	return nil
}

func (f FactoryConfig) validate() error {
	seen := make(map[string]bool, len(f.Machines))
	for _, m := range f.Machines {
		if m.Name == "" {
			return fmt.Errorf("factory machine name is required")
		}
		if seen[m.Name] {
			return fmt.Errorf("factory machine %q is defined twice", m.Name)
		}
		seen[m.Name] = true
		if m.BaseTime <= 0 {
			return fmt.Errorf("factory machine %q base_time must be greater than 0", m.Name)
		}
		if m.SetupTime < 0 {
			return fmt.Errorf("factory machine %q setup_time cannot be negative", m.Name)
		}
	}

	for _, l := range f.Lines {
		if l.Name == "" {
			return fmt.Errorf("factory line name is required")
		}
		for _, name := range l.Machines {
			if !seen[name] {
				return fmt.Errorf("factory line %q references unknown machine %q", l.Name, name)
			}
		}
	}

	for i, j := range f.Jobs {
		if j.BatchSize <= 0 {
			return fmt.Errorf("factory job %d batch_size must be greater than 0", i)
		}
		if len(j.Machines) == 0 {
			return fmt.Errorf("factory job %d requires at least one machine", i)
		}
		for _, name := range j.Machines {
			if !seen[name] {
				return fmt.Errorf("factory job %d references unknown machine %q", i, name)
			}
		}
		switch j.Priority {
		case "", "normal", "high", "critical":
		default:
			return fmt.Errorf("factory job %d has invalid priority %q", i, j.Priority)
		}
	}

	return nil
}
