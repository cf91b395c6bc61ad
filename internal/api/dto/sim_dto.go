package dto

// CreateJobRequest enqueues a production job
type CreateJobRequest struct {
	BatchSize int      `json:"batch_size" binding:"required,gt=0"`
	Machines  []string `json:"machines" binding:"required,min=1"`
	Priority  string   `json:"priority"`
}

// JobDTO is the wire representation of a job
type JobDTO struct {
	ID             int      `json:"id"`
	BatchSize      int      `json:"batch_size"`
	Machines       []string `json:"machines"`
	CurrentStep    int      `json:"current_step"`
	Priority       string   `json:"priority"`
	Progress       float64  `json:"progress"`
	ArrivalTime    float64  `json:"arrival_time"`
	StartTime      *float64 `json:"start_time,omitempty"`
	CompletionTime *float64 `json:"completion_time,omitempty"`
	Defective      bool     `json:"defective"`
	ReworkCount    int      `json:"rework_count"`
	TotalCost      float64  `json:"total_cost"`
}

// ListJobsResponse groups jobs by lifecycle stage
type ListJobsResponse struct {
	Pending   []JobDTO `json:"pending"`
	Completed []JobDTO `json:"completed"`
}

// AddMachineRequest registers a machine on the factory floor
type AddMachineRequest struct {
	Name      string  `json:"name" binding:"required"`
	Type      string  `json:"type"`
	BaseTime  float64 `json:"base_time" binding:"required,gt=0"`
	SetupTime float64 `json:"setup_time" binding:"gte=0"`
	Capacity  int     `json:"capacity" binding:"gte=0"`
}

// CreateLineRequest creates a production line over existing machines
type CreateLineRequest struct {
	Name     string   `json:"name" binding:"required"`
	Machines []string `json:"machines" binding:"required,min=1"`
}

// CreateRouteRequest defines a product route on a line
type CreateRouteRequest struct {
	Product    string    `json:"product" binding:"required"`
	Machines   []string  `json:"machines" binding:"required,min=1"`
	CycleTimes []float64 `json:"cycle_times" binding:"required"`
	SetupTimes []float64 `json:"setup_times" binding:"required"`
}

// SetSpeedRequest adjusts the simulation speed factor
type SetSpeedRequest struct {
	Factor float64 `json:"factor" binding:"required,gt=0"`
}

// SetSpeedResponse reports the clamped speed actually applied
type SetSpeedResponse struct {
	Factor float64 `json:"factor"`
}

// StartResponse reports the identifier of the new run
type StartResponse struct {
	RunID string `json:"run_id"`
}
