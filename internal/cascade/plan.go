package cascade

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/merval-data/internal/provider"
	"github.com/rxtech-lab/merval-data/internal/throttle"
	"github.com/rxtech-lab/merval-data/pkg/errors"
	"gopkg.in/yaml.v3"
)

// SourceClass selects the backoff schedule for a source. Browser-scraped
// sources use the slow class.
type SourceClass string

const (
	ClassDefault SourceClass = "default"
	ClassSlow    SourceClass = "slow"
)

// SourceConfig tunes one source in the plan.
type SourceConfig struct {
	Name     string        `yaml:"name" validate:"required,oneof=byma iol yahoo analisistecnico polygon"`
	Delay    time.Duration `yaml:"delay" validate:"gte=0"`
	Class    SourceClass   `yaml:"class" validate:"omitempty,oneof=default slow"`
	Disabled bool          `yaml:"disabled"`
}

// Plan is the declarative acquisition plan: the coverage target, the default
// inter-request delay, and per-source overrides. Source priority stays the
// fixed default order regardless of the order sources appear here.
type Plan struct {
	MinYears float64        `yaml:"min_years" validate:"gte=0"`
	Delay    time.Duration  `yaml:"delay" validate:"gte=0"`
	Sources  []SourceConfig `yaml:"sources" validate:"dive"`
}

// UnmarshalYAML implements custom unmarshaling for SourceConfig so delays can
// be written as "500ms"-style duration strings.
func (s *SourceConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type plainSource struct {
		Name     string      `yaml:"name"`
		Delay    string      `yaml:"delay"`
		Class    SourceClass `yaml:"class"`
		Disabled bool        `yaml:"disabled"`
	}

	var raw plainSource
	if err := unmarshal(&raw); err != nil {
		return err
	}

	s.Name = raw.Name
	s.Class = raw.Class
	s.Disabled = raw.Disabled

	if raw.Delay != "" {
		delay, err := time.ParseDuration(raw.Delay)
		if err != nil {
			return fmt.Errorf("invalid delay for source %s: %w", raw.Name, err)
		}

		s.Delay = delay
	}

	return nil
}

// UnmarshalYAML implements custom unmarshaling for Plan. Absent fields keep
// the values already present on the receiver, so decoding over DefaultPlan
// yields a plan with file overrides applied.
func (p *Plan) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type plainPlan struct {
		MinYears *float64       `yaml:"min_years"`
		Delay    string         `yaml:"delay"`
		Sources  []SourceConfig `yaml:"sources"`
	}

	var raw plainPlan
	if err := unmarshal(&raw); err != nil {
		return err
	}

	if raw.MinYears != nil {
		p.MinYears = *raw.MinYears
	}

	if raw.Delay != "" {
		delay, err := time.ParseDuration(raw.Delay)
		if err != nil {
			return fmt.Errorf("invalid delay: %w", err)
		}

		p.Delay = delay
	}

	if raw.Sources != nil {
		p.Sources = raw.Sources
	}

	return nil
}

// DefaultPlan returns the built-in plan: five years of history, half a second
// between requests, iol on the slow backoff class.
func DefaultPlan() Plan {
	return Plan{
		MinYears: 5,
		Delay:    500 * time.Millisecond,
		Sources: []SourceConfig{
			{Name: provider.SourceIOL, Delay: 0, Class: ClassSlow, Disabled: false},
		},
	}
}

// LoadPlan reads and validates a YAML plan file.
func LoadPlan(path string) (Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read plan %s", path)
	}

	plan := DefaultPlan()
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return Plan{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to parse plan %s", path)
	}

	if err := plan.Validate(); err != nil {
		return Plan{}, err
	}

	return plan, nil
}

// Validate checks the plan's fields and source names.
func (p Plan) Validate() error {
	validate := validator.New()
	if err := validate.Struct(p); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid plan", err)
	}

	return nil
}

// sourceFor finds the per-source override, if any.
func (p Plan) sourceFor(name string) (SourceConfig, bool) {
	for _, s := range p.Sources {
		if s.Name == name {
			return s, true
		}
	}

	return SourceConfig{}, false
}

// SkipSet collects the sources disabled by the plan.
func (p Plan) SkipSet() map[string]bool {
	skip := make(map[string]bool)

	for _, s := range p.Sources {
		if s.Disabled {
			skip[s.Name] = true
		}
	}

	return skip
}

// DelayFor returns the minimum inter-request gap for a source.
func (p Plan) DelayFor(name string) time.Duration {
	if s, ok := p.sourceFor(name); ok && s.Delay > 0 {
		return s.Delay
	}

	return p.Delay
}

// BackoffFor returns the retry schedule for a source.
func (p Plan) BackoffFor(name string) []time.Duration {
	if s, ok := p.sourceFor(name); ok && s.Class == ClassSlow {
		return throttle.SlowBackoff
	}

	return throttle.DefaultBackoff
}
