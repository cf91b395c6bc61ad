package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Simulation: SimulationConfig{
			TickRate:         30,
			MaxStep:          Duration(100 * time.Millisecond),
			SpeedFactor:      1.0,
			SampleInterval:   0.5,
			HistorySize:      200,
			TargetThroughput: 100,
			BufferCapacity:   100,
		},
		Quality: QualityConfig{
			DefectRate:          0.02,
			ReworkRate:          0.05,
			DowntimeRate:        0.03,
			MeanDowntimeMinutes: 10,
		},
		Costs: CostsConfig{
			MaterialPerPiece: 5,
			DefectPerPiece:   10,
			MachinePerHour:   50,
			LaborPerHour:     25,
			OverheadPerHour:  15,
		},
		Factory: FactoryConfig{
			Machines: []MachineSeed{
				{Name: "CNC-01", Type: "cnc", BaseTime: 2.5, SetupTime: 10, Capacity: 50},
				{Name: "Weld-01", Type: "welding", BaseTime: 1.5, SetupTime: 5},
			},
			Lines: []LineSeed{
				{Name: "Line A", Machines: []string{"CNC-01", "Weld-01"}},
			},
			Jobs: []JobSeed{
				{BatchSize: 10, Machines: []string{"CNC-01", "Weld-01"}, Priority: "high"},
			},
		},
		Store:  StoreConfig{Enabled: true, Path: "factorysim.db"},
		Events: EventsConfig{Enabled: false},
		App:    AppConfig{Name: "sim-service"},
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				// Verify some key fields are populated
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 30, cfg.Simulation.TickRate)
				assert.Equal(t, 0.5, cfg.Simulation.SampleInterval)
				assert.Equal(t, 0.02, cfg.Quality.DefectRate)
				assert.Equal(t, "factorysim.db", cfg.Store.Path)
				assert.Len(t, cfg.Factory.Machines, 2)
				assert.Equal(t, "CNC-01", cfg.Factory.Machines[0].Name)
				assert.Equal(t, "sim-service", cfg.App.Name)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(c *Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:      "invalid server port - too low",
			modify:    func(c *Config) { c.Server.Port = 0 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "invalid server port - too high",
			modify:    func(c *Config) { c.Server.Port = 70000 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "zero tick rate",
			modify:    func(c *Config) { c.Simulation.TickRate = 0 },
			wantErr:   true,
			errString: "tick_rate must be greater than 0",
		},
		{
			name:      "zero sample interval",
			modify:    func(c *Config) { c.Simulation.SampleInterval = 0 },
			wantErr:   true,
			errString: "sample_interval must be greater than 0",
		},
		{
			name:      "negative speed factor",
			modify:    func(c *Config) { c.Simulation.SpeedFactor = -1 },
			wantErr:   true,
			errString: "speed_factor must be greater than 0",
		},
		{
			name:      "defect rate above one",
			modify:    func(c *Config) { c.Quality.DefectRate = 1.5 },
			wantErr:   true,
			errString: "defect_rate must be between 0 and 1",
		},
		{
			name:      "negative downtime rate",
			modify:    func(c *Config) { c.Quality.DowntimeRate = -0.1 },
			wantErr:   true,
			errString: "downtime_rate must be between 0 and 1",
		},
		{
			name:      "negative material cost",
			modify:    func(c *Config) { c.Costs.MaterialPerPiece = -5 },
			wantErr:   true,
			errString: "material_per_piece cannot be negative",
		},
		{
			name:      "duplicate machine seed",
			modify:    func(c *Config) { c.Factory.Machines[1].Name = "CNC-01" },
			wantErr:   true,
			errString: `machine "CNC-01" is defined twice`,
		},
		{
			name:      "machine seed without base time",
			modify:    func(c *Config) { c.Factory.Machines[0].BaseTime = 0 },
			wantErr:   true,
			errString: "base_time must be greater than 0",
		},
		{
			name:      "line references unknown machine",
			modify:    func(c *Config) { c.Factory.Lines[0].Machines = []string{"Ghost"} },
			wantErr:   true,
			errString: `references unknown machine "Ghost"`,
		},
		{
			name:      "job with invalid priority",
			modify:    func(c *Config) { c.Factory.Jobs[0].Priority = "urgent" },
			wantErr:   true,
			errString: `invalid priority "urgent"`,
		},
		{
			name:      "job references unknown machine",
			modify:    func(c *Config) { c.Factory.Jobs[0].Machines = []string{"Ghost"} },
			wantErr:   true,
			errString: `references unknown machine "Ghost"`,
		},
		{
			name:      "store enabled without path",
			modify:    func(c *Config) { c.Store.Path = "" },
			wantErr:   true,
			errString: "store path is required",
		},
		{
			name: "events enabled without host",
			modify: func(c *Config) {
				c.Events.Enabled = true
			},
			wantErr:   true,
			errString: "events host is required",
		},
		{
			name: "events enabled without exchange",
			modify: func(c *Config) {
				c.Events.Enabled = true
				c.Events.Host = "localhost"
				c.Events.Port = 5672
			},
			wantErr:   true,
			errString: "events exchange name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)
			err := cfg.Validate()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoad_ValidateIntegration(t *testing.T) {
	t.Run("load and validate valid config", func(t *testing.T) {
		cfg, err := Load("testdata/valid_config.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.Validate()
		require.NoError(t, err)
	})

	t.Run("load config with invalid port", func(t *testing.T) {
		cfg, err := Load("testdata/invalid_port.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server port")
	})
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		want    time.Duration
		wantErr bool
	}{
		{name: "seconds", yaml: "timeout: 10s", want: 10 * time.Second},
		{name: "milliseconds", yaml: "timeout: 100ms", want: 100 * time.Millisecond},
		{name: "compound", yaml: "timeout: 1m30s", want: 90 * time.Second},
		{name: "bare number", yaml: "timeout: 10", wantErr: true},
		{name: "garbage", yaml: "timeout: soon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out struct {
				Timeout Duration `yaml:"timeout"`
			}
			err := yaml.Unmarshal([]byte(tt.yaml), &out)

			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, out.Timeout.Std())
			}
		})
	}
}

func TestCostsConfig_HourlyCost(t *testing.T) {
	costs := CostsConfig{MachinePerHour: 50, LaborPerHour: 25, OverheadPerHour: 15}
	assert.Equal(t, 90.0, costs.HourlyCost())
}

func TestPresets(t *testing.T) {
	tests := []struct {
		name             string
		targetThroughput float64
		bufferCapacity   int
		defectRate       float64
	}{
		{name: "high-volume", targetThroughput: 200, bufferCapacity: 100, defectRate: 0.01},
		{name: "precision", targetThroughput: 25, bufferCapacity: 100, defectRate: 0.005},
		{name: "cost-optimized", targetThroughput: 100, bufferCapacity: 30, defectRate: 0.02},
		{name: "flexible", targetThroughput: 60, bufferCapacity: 10, defectRate: 0.02},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := PresetByName(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.targetThroughput, p.Simulation.TargetThroughput)
			assert.Equal(t, tt.bufferCapacity, p.Simulation.BufferCapacity)
			assert.Equal(t, tt.defectRate, p.Quality.DefectRate)

			// Every preset passes validation once applied.
			cfg := validConfig()
			cfg.ApplyPreset(p)
			require.NoError(t, cfg.Validate())
		})
	}
}

func TestPresetByName_Unknown(t *testing.T) {
	_, ok := PresetByName("turbo")
	assert.False(t, ok)
}
