package sim

// DefaultBufferCapacity bounds a machine queue when no capacity is configured.
const DefaultBufferCapacity = 100

// QualityParams holds the stochastic breakdown and quality model.
// Rates are probabilities: defect and rework per completed job,
// downtime per simulated minute.
type QualityParams struct {
	DefectRate          float64
	ReworkRate          float64
	DowntimeRate        float64
	MeanDowntimeMinutes float64
}

// CostParams holds the cost accounting rates applied during processing.
type CostParams struct {
	MaterialPerPiece float64
	DefectPerPiece   float64
	MachinePerHour   float64
	LaborPerHour     float64
	OverheadPerHour  float64
}

// Params is the single configuration structure shared by every machine
// in a factory.
type Params struct {
	Quality QualityParams
	Costs   CostParams

	// TargetThroughput is the performance baseline in pieces per hour.
	TargetThroughput float64

	// BufferCapacity is the default machine queue bound.
	BufferCapacity int
}

// DefaultParams returns the baseline parameter set: 2% defects, 5%
// rework, 3% downtime with 10-minute average repairs, and a 100
// pieces/hour performance target.
func DefaultParams() Params {
	return Params{
		Quality: QualityParams{
			DefectRate:          0.02,
			ReworkRate:          0.05,
			DowntimeRate:        0.03,
			MeanDowntimeMinutes: 10,
		},
		Costs: CostParams{
			MaterialPerPiece: 5.0,
			DefectPerPiece:   10.0,
			MachinePerHour:   50.0,
			LaborPerHour:     25.0,
			OverheadPerHour:  15.0,
		},
		TargetThroughput: 100,
		BufferCapacity:   DefaultBufferCapacity,
	}
}

// HourlyCost is the combined machine, labor and overhead rate.
func (c CostParams) HourlyCost() float64 {
	return c.MachinePerHour + c.LaborPerHour + c.OverheadPerHour
}

// BreakdownProbability converts the per-minute downtime rate into a
// breakdown probability for a tick of dt simulated minutes, clamped
// to [0, 1]. Kept as a pure function so the scaling is testable.
func BreakdownProbability(downtimeRate, dt float64) float64 {
	p := downtimeRate * dt
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
