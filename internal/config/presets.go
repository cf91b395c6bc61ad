package config

import "time"

// Preset bundles the tunable simulation, quality and cost parameters
// for a known production scenario. Server, factory seed and
// infrastructure sections are unaffected.
type Preset struct {
	Simulation SimulationConfig
	Quality    QualityConfig
	Costs      CostsConfig
}

// ApplyPreset overwrites the tunable sections with the preset values
func (c *Config) ApplyPreset(p Preset) {
	c.Simulation = p.Simulation
	c.Quality = p.Quality
	c.Costs = p.Costs
}

// PresetByName resolves a preset by its config-file name
func PresetByName(name string) (Preset, bool) {
	switch name {
	case "high-volume":
		return HighVolumePreset(), true
	case "precision":
		return PrecisionPreset(), true
	case "cost-optimized":
		return CostOptimizedPreset(), true
	case "flexible":
		return FlexiblePreset(), true
	default:
		return Preset{}, false
	}
}

func baseSimulation() SimulationConfig {
	return SimulationConfig{
		TickRate:         30,
		MaxStep:          Duration(100 * time.Millisecond),
		SpeedFactor:      1.0,
		SampleInterval:   0.5,
		HistorySize:      200,
		TargetThroughput: 100,
		BufferCapacity:   100,
	}
}

// HighVolumePreset tunes for large batches and tight defect rates
func HighVolumePreset() Preset {
	sim := baseSimulation()
	sim.TargetThroughput = 200
	sim.BufferCapacity = 100
	return Preset{
		Simulation: sim,
		Quality: QualityConfig{
			DefectRate:          0.01,
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
	}
}

// PrecisionPreset tunes for low throughput and expensive defects
func PrecisionPreset() Preset {
	sim := baseSimulation()
	sim.TargetThroughput = 25
	return Preset{
		Simulation: sim,
		Quality: QualityConfig{
			DefectRate:          0.005,
			ReworkRate:          0.02,
			DowntimeRate:        0.03,
			MeanDowntimeMinutes: 10,
		},
		Costs: CostsConfig{
			MaterialPerPiece: 25,
			DefectPerPiece:   100,
			MachinePerHour:   50,
			LaborPerHour:     25,
			OverheadPerHour:  15,
		},
	}
}

// CostOptimizedPreset tunes for cheap inputs and lean buffers
func CostOptimizedPreset() Preset {
	sim := baseSimulation()
	sim.BufferCapacity = 30
	return Preset{
		Simulation: sim,
		Quality: QualityConfig{
			DefectRate:          0.02,
			ReworkRate:          0.05,
			DowntimeRate:        0.03,
			MeanDowntimeMinutes: 10,
		},
		Costs: CostsConfig{
			MaterialPerPiece: 2,
			DefectPerPiece:   10,
			MachinePerHour:   30,
			LaborPerHour:     18,
			OverheadPerHour:  10,
		},
	}
}

// FlexiblePreset tunes for single-piece flow with small buffers
func FlexiblePreset() Preset {
	sim := baseSimulation()
	sim.TargetThroughput = 60
	sim.BufferCapacity = 10
	return Preset{
		Simulation: sim,
		Quality: QualityConfig{
			DefectRate:          0.02,
			ReworkRate:          0.08,
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
	}
}
