// Package stage holds the ordered interview plan. The catalog is data: order, budgets, minimums and the
// text attached to each stage all come from YAML, so reordering or adding stages never touches control flow.
package stage

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Stage is one immutable phase of the interview plan.
type Stage struct {
	Name            string        `yaml:"name"`
	Label           string        `yaml:"label"`
	TimeLimit       time.Duration `yaml:"time_limit"`
	MinDwell        time.Duration `yaml:"min_dwell"`
	MinInteractions int           `yaml:"min_interactions"`
	Instructions    string        `yaml:"instructions"`
	Ack             string        `yaml:"ack"`
	FallbackAck     string        `yaml:"fallback_ack"`
	// Documents names the candidate document shown to the interviewer in this stage.
	Documents string `yaml:"documents"`
}

const (
	DocumentResume         = "resume"
	DocumentJobDescription = "job_description"
)

// Catalog is the fixed, totally ordered sequence of stages.
type Catalog struct {
	Stages          []Stage       `yaml:"stages"`
	ClosingTimeout  time.Duration `yaml:"closing_timeout"`
	ClosingFallback string        `yaml:"closing_fallback"`

	index map[string]int
}

// New builds and validates a catalog from an ordered stage list.
func New(stages []Stage, closingTimeout time.Duration, closingFallback string) (*Catalog, error) {
	c := &Catalog{
		Stages:          append([]Stage(nil), stages...),
		ClosingTimeout:  closingTimeout,
		ClosingFallback: closingFallback,
	}
	if err := c.init(); err != nil {
		return nil, err
	}
	return c, nil
}

// Parse decodes a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := c.init(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads the catalog at path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Default returns the built-in five stage interview plan.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

func (c *Catalog) init() error {
	if err := c.Validate(); err != nil {
		return err
	}
	c.index = make(map[string]int, len(c.Stages))
	for i := range c.Stages {
		if c.Stages[i].Label == "" {
			c.Stages[i].Label = c.Stages[i].Name
		}
		c.index[c.Stages[i].Name] = i
	}
	if c.ClosingTimeout <= 0 {
		c.ClosingTimeout = c.Terminal().TimeLimit
	}
	return nil
}

// Validate checks stage names and budgets. A minimum dwell may not exceed its stage's time limit.
func (c *Catalog) Validate() error {
	if len(c.Stages) == 0 {
		return fmt.Errorf("catalog has no stages")
	}
	seen := make(map[string]struct{}, len(c.Stages))
	for i, s := range c.Stages {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return fmt.Errorf("stage %d has no name", i)
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate stage %q", name)
		}
		seen[key] = struct{}{}
		if s.TimeLimit <= 0 {
			return fmt.Errorf("stage %q: time_limit must be positive", name)
		}
		if s.MinDwell < 0 || s.MinDwell > s.TimeLimit {
			return fmt.Errorf("stage %q: min_dwell %s outside [0, %s]", name, s.MinDwell, s.TimeLimit)
		}
		if s.MinInteractions < 0 {
			return fmt.Errorf("stage %q: min_interactions is negative", name)
		}
		switch s.Documents {
		case "", DocumentResume, DocumentJobDescription:
		default:
			return fmt.Errorf("stage %q: unknown documents kind %q", name, s.Documents)
		}
	}
	return nil
}

// First is the stage every session starts in.
func (c *Catalog) First() Stage {
	return c.Stages[0]
}

// Terminal is the last stage; it has no successor.
func (c *Catalog) Terminal() Stage {
	return c.Stages[len(c.Stages)-1]
}

// Index returns the catalog position of name, or -1.
func (c *Catalog) Index(name string) int {
	if i, ok := c.index[name]; ok {
		return i
	}
	return -1
}

// Get returns the stage with exactly this name.
func (c *Catalog) Get(name string) (Stage, bool) {
	i := c.Index(name)
	if i < 0 {
		return Stage{}, false
	}
	return c.Stages[i], true
}

// Lookup resolves a free-form stage name (case and surrounding space insensitive).
func (c *Catalog) Lookup(name string) (Stage, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, s := range c.Stages {
		if strings.ToLower(s.Name) == key {
			return s, true
		}
	}
	return Stage{}, false
}

// Next returns the natural successor of name.
func (c *Catalog) Next(name string) (Stage, bool) {
	i := c.Index(name)
	if i < 0 || i+1 >= len(c.Stages) {
		return Stage{}, false
	}
	return c.Stages[i+1], true
}

// IsTerminal reports whether name is the last stage.
func (c *Catalog) IsTerminal(name string) bool {
	return c.Index(name) == len(c.Stages)-1
}

// Between lists the stages strictly after from and strictly before to.
func (c *Catalog) Between(from, to string) []Stage {
	i, j := c.Index(from), c.Index(to)
	if i < 0 || j < 0 || j-i <= 1 {
		return nil
	}
	return append([]Stage(nil), c.Stages[i+1:j]...)
}

// Monitored reports whether the escalation timer watches this stage: only non-terminal stages
// with a real minimum interaction requirement are time-boxed.
func (c *Catalog) Monitored(name string) bool {
	s, ok := c.Get(name)
	if !ok || c.IsTerminal(name) {
		return false
	}
	return s.MinInteractions > 0
}

// Names returns the stage names in order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.Stages))
	for i, s := range c.Stages {
		out[i] = s.Name
	}
	return out
}
