package job

import (
	"errors"
	"fmt"

	yaml "github.com/goccy/go-yaml"

	"mlfqsim/internal/proc"
)

// Spec describes one process of a workload.
type Spec struct {
	PID        proc.PID  `yaml:"pid"`
	Arrival    proc.Tick `yaml:"arrival"`
	Workload   proc.Tick `yaml:"workload"`
	IOInterval proc.Tick `yaml:"io_interval"` // 0 = never blocks
	IOLength   proc.Tick `yaml:"io_length"`
}

// Validate checks a single spec.
func (s Spec) Validate() error {
	if s.Workload == 0 {
		return fmt.Errorf("process %d: workload must be positive", s.PID)
	}
	if s.IOInterval > 0 && s.IOLength == 0 {
		return fmt.Errorf("process %d: io_length must be positive when io_interval is set", s.PID)
	}
	return nil
}

// Build creates a fresh process from the spec.
func (s Spec) Build() *proc.Process {
	return proc.New(s.PID, s.IOInterval, s.IOLength, s.Workload, s.Arrival)
}

// Validate checks every spec and that pids are unique.
func Validate(specs []Spec) error {
	if len(specs) == 0 {
		return errors.New("workload has no processes")
	}
	seen := make(map[proc.PID]struct{}, len(specs))
	for _, s := range specs {
		if _, dup := seen[s.PID]; dup {
			return fmt.Errorf("process %d defined twice", s.PID)
		}
		seen[s.PID] = struct{}{}
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// BuildAll validates specs and creates one process per spec, in order.
func BuildAll(specs []Spec) ([]*proc.Process, error) {
	if err := Validate(specs); err != nil {
		return nil, err
	}
	procs := make([]*proc.Process, 0, len(specs))
	for _, s := range specs {
		procs = append(procs, s.Build())
	}
	return procs, nil
}

// Parse decodes a standalone workload document:
//
//	processes:
//	  - pid: 1
//	    workload: 37
func Parse(data []byte) ([]Spec, error) {
	var doc struct {
		Processes []Spec `yaml:"processes"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode workload: %w", err)
	}
	if err := Validate(doc.Processes); err != nil {
		return nil, err
	}
	return doc.Processes, nil
}
