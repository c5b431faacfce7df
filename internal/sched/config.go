package sched

import (
	"fmt"
	"os"

	yaml "github.com/goccy/go-yaml"

	"mlfqsim/internal/job"
	"mlfqsim/internal/proc"
)

// QueueConfig describes one priority level, highest priority first.
type QueueConfig struct {
	Quantum   proc.Tick `yaml:"quantum"`   // CPU time granted per dispatch
	Allotment proc.Tick `yaml:"allotment"` // CPU budget at this level before demotion
}

// Config mirrors config.yml
type Config struct {
	Queues        []QueueConfig `yaml:"queues"`
	BoostInterval proc.Tick     `yaml:"boost_interval"` // 0 disables priority boost
	LogLevel      string        `yaml:"log_level"`
	CSVPath       string        `yaml:"csv_path"`
	Processes     []job.Spec    `yaml:"processes"`
}

// If the config file is not given, we use default values
func defaultConfig() Config {
	return Config{
		Queues: []QueueConfig{
			{Quantum: 10, Allotment: 20},
			{Quantum: 20, Allotment: 40},
			{Quantum: 40, Allotment: 80},
		},
		BoostInterval: 200,
		LogLevel:      "info",
	}
}

// Load reads YAML and overrides defaults; empty path = defaults only
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config %s: %w", path, err)
	}

	cfg.clamp()
	return cfg, nil
}

// clamp applies sanity clamps
func (c *Config) clamp() {
	if len(c.Queues) == 0 {
		c.Queues = defaultConfig().Queues
	}
	for i := range c.Queues {
		if c.Queues[i].Quantum == 0 {
			c.Queues[i].Quantum = 10
		}
		// a level must at least grant one full quantum
		if c.Queues[i].Allotment < c.Queues[i].Quantum {
			c.Queues[i].Allotment = c.Queues[i].Quantum
		}
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}
