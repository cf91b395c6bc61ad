package sim

import "errors"

var (
	// ErrDuplicateMachine is returned when adding a machine whose name is already registered
	ErrDuplicateMachine = errors.New("machine name already registered")

	// ErrMachineNotFound is returned when a machine name cannot be resolved
	ErrMachineNotFound = errors.New("machine not found")

	// ErrLineNotFound is returned when a production line id cannot be resolved
	ErrLineNotFound = errors.New("production line not found")

	// ErrMachineOwnedByLine is returned when attaching a machine that already belongs to another line
	ErrMachineOwnedByLine = errors.New("machine already belongs to a production line")

	// ErrInvalidBatchSize is returned when a job is created with batch size <= 0
	ErrInvalidBatchSize = errors.New("batch size must be positive")

	// ErrInvalidCycleTime is returned when a machine is configured with base time <= 0
	ErrInvalidCycleTime = errors.New("base cycle time must be positive")

	// ErrEmptySequence is returned when a job is created with no routing steps
	ErrEmptySequence = errors.New("job requires at least one machine in its sequence")

	// ErrInvalidPriority is returned when a job is created with an undefined priority level
	ErrInvalidPriority = errors.New("priority must be normal, high or critical")

	// ErrRouteMismatch is returned when a production route's sequences have inconsistent lengths
	ErrRouteMismatch = errors.New("machine sequence and cycle times must have equal length")
)
