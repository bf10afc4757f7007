// Package config loads and validates load-profile configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/surge-load/surge/internal/schedule"
)

// Profile is the root configuration for one load run.
//
// Example YAML:
//
//	name: "autoscaling benchmark"
//	endpoint:
//	  url: "https://example.com/invocations"
//	  payloadFile: "payload.json"
//	  model: "distilbert"
//	  variants: 5
//	stages:
//	  - duration: 120s
//	    users: 2
//	    spawnRate: 2
//	  - duration: 240s
//	    users: 4
//	    spawnRate: 2
type Profile struct {
	// Name of the run (for reporting).
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Endpoint describes the inference endpoint under test.
	Endpoint EndpointConfig `json:"endpoint" yaml:"endpoint"`

	// Stages is the staged concurrency ramp. Durations are cumulative
	// boundaries from run start and must strictly increase.
	Stages []StageConfig `json:"stages" yaml:"stages"`

	// TickInterval is the scheduling period (e.g. "1s", "500ms").
	TickInterval string `json:"tickInterval,omitempty" yaml:"tickInterval,omitempty"`

	// WaitTime is the randomized pause between worker iterations.
	WaitTime *WaitTimeConfig `json:"waitTime,omitempty" yaml:"waitTime,omitempty"`

	// MetricsAddr, when set, exposes Prometheus metrics on this address.
	MetricsAddr string `json:"metricsAddr,omitempty" yaml:"metricsAddr,omitempty"`
}

// EndpointConfig describes the endpoint under test.
type EndpointConfig struct {
	// URL is the inference endpoint URL.
	URL string `json:"url" yaml:"url"`

	// PayloadFile is the request payload, loaded once at startup.
	PayloadFile string `json:"payloadFile" yaml:"payloadFile"`

	// ContentType sent with each request. Detected from the payload
	// when empty.
	ContentType string `json:"contentType,omitempty" yaml:"contentType,omitempty"`

	// Timeout per invocation (e.g. "30s").
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Model is the model name used for variant selection.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// Variants is how many model variants invocations spread across.
	Variants int `json:"variants,omitempty" yaml:"variants,omitempty"`
}

// StageConfig defines one stage of the ramp.
type StageConfig struct {
	// Duration is the cumulative end boundary of this stage, measured
	// from run start.
	Duration string `json:"duration" yaml:"duration"`

	// Users is the target concurrency for this stage.
	Users int `json:"users" yaml:"users"`

	// SpawnRate is the maximum worker start rate (workers/second).
	SpawnRate float64 `json:"spawnRate" yaml:"spawnRate"`

	// Name is an optional label for reporting.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// WaitTimeConfig bounds the randomized pause between iterations.
type WaitTimeConfig struct {
	Min string `json:"min" yaml:"min"`
	Max string `json:"max" yaml:"max"`
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Validate checks the whole profile, collecting every problem rather
// than stopping at the first. All validation happens before any worker
// is started.
func (p *Profile) Validate() error {
	errs := &ValidationErrors{}

	if p.Endpoint.URL == "" {
		errs.Add("endpoint.url", "endpoint URL is required")
	}
	if p.Endpoint.PayloadFile == "" {
		errs.Add("endpoint.payloadFile", "payload file is required")
	}
	if p.Endpoint.Variants < 0 {
		errs.Add("endpoint.variants", "variants must not be negative")
	}
	if p.Endpoint.Timeout != "" {
		if _, err := ParseDurationString(p.Endpoint.Timeout); err != nil {
			errs.Add("endpoint.timeout", fmt.Sprintf("invalid duration: %v", err))
		}
	}

	if len(p.Stages) == 0 {
		errs.Add("stages", "at least one stage is required")
	}
	var prev time.Duration
	for i, stage := range p.Stages {
		prefix := fmt.Sprintf("stages[%d]", i)

		boundary, err := ParseDurationString(stage.Duration)
		if err != nil {
			errs.Add(prefix+".duration", fmt.Sprintf("invalid duration: %v", err))
			continue
		}
		if boundary <= prev {
			errs.Add(prefix+".duration", fmt.Sprintf(
				"boundary %v does not increase past %v (durations are cumulative)", boundary, prev))
		}
		prev = boundary

		if stage.Users < 0 {
			errs.Add(prefix+".users", "users must not be negative")
		}
		if stage.SpawnRate <= 0 {
			errs.Add(prefix+".spawnRate", "spawnRate must be greater than 0")
		}
	}

	if p.TickInterval != "" {
		tick, err := ParseDurationString(p.TickInterval)
		if err != nil {
			errs.Add("tickInterval", fmt.Sprintf("invalid duration: %v", err))
		} else if tick <= 0 {
			errs.Add("tickInterval", "tick interval must be greater than 0")
		} else if tick > time.Minute {
			errs.Add("tickInterval", "tick interval above 1m makes spawn-rate rounding meaningless")
		}
	}

	if p.WaitTime != nil {
		min, errMin := ParseDurationString(p.WaitTime.Min)
		max, errMax := ParseDurationString(p.WaitTime.Max)
		if errMin != nil {
			errs.Add("waitTime.min", fmt.Sprintf("invalid duration: %v", errMin))
		}
		if errMax != nil {
			errs.Add("waitTime.max", fmt.Sprintf("invalid duration: %v", errMax))
		}
		if errMin == nil && errMax == nil && max < min {
			errs.Add("waitTime", "max must not be below min")
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// StageTable converts the profile's stage descriptors into a schedule
// table. Call Validate first; conversion repeats only the structural
// checks the table itself enforces.
func (p *Profile) StageTable() (*schedule.StageTable, error) {
	stages := make([]schedule.Stage, 0, len(p.Stages))
	for i, sc := range p.Stages {
		boundary, err := ParseDurationString(sc.Duration)
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i, err)
		}
		stages = append(stages, schedule.Stage{
			Boundary:  boundary,
			Target:    sc.Users,
			SpawnRate: sc.SpawnRate,
			Name:      sc.Name,
		})
	}
	return schedule.NewStageTable(stages)
}

// Tick returns the configured scheduling period, defaulting to 1s.
func (p *Profile) Tick() (time.Duration, error) {
	if p.TickInterval == "" {
		return time.Second, nil
	}
	return ParseDurationString(p.TickInterval)
}

// WaitTimes returns the configured iteration pause bounds. Zero values
// mean the caller's default applies.
func (p *Profile) WaitTimes() (min, max time.Duration, err error) {
	if p.WaitTime == nil {
		return 0, 0, nil
	}
	if min, err = ParseDurationString(p.WaitTime.Min); err != nil {
		return 0, 0, err
	}
	if max, err = ParseDurationString(p.WaitTime.Max); err != nil {
		return 0, 0, err
	}
	return min, max, nil
}
