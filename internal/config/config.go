package config

import (
	"fmt"
	"strings"
	"time"

	"statusboard/pkg/config"
)

// Project is one workstream shown on the dashboard.
type Project struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	// Narrative enables generated update prose on this project's form.
	Narrative bool `yaml:"narrative"`
}

type Config struct {
	DB        config.DBConfig        `yaml:"db"`
	Redis     config.RedisConfig     `yaml:"redis"`
	MQ        config.MQConfig        `yaml:"mq"`
	Server    config.ServerConfig    `yaml:"server"`
	Narrative config.NarrativeConfig `yaml:"narrative"`
	Session   config.SessionConfig   `yaml:"session"`
	Projects  []Project              `yaml:"projects"`
}

var defaultProjects = []Project{
	{ID: "vortex", Name: "Vortex", Narrative: true},
	{ID: "ghostmachine", Name: "GhostMachine"},
	{ID: "platform", Name: "Platform"},
}

// Load reads base.yaml and <env>.yaml from dir, substitutes secrets.env,
// then applies environment overrides.
func Load(env, dir string) (*Config, error) {
	merged, err := config.LoadConfig(env, dir)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := config.Decode(merged, &cfg); err != nil {
		return nil, err
	}

	// 环境变量覆盖
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideNarrativeFromEnv(&cfg.Narrative)

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = ":8080"
	}
	// SERVER_PORT=8080 is accepted as well as :8080
	if !strings.Contains(c.Server.Port, ":") {
		c.Server.Port = ":" + c.Server.Port
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = 12 * time.Hour
	}
	if len(c.Projects) == 0 {
		c.Projects = append([]Project(nil), defaultProjects...)
	}
	for i := range c.Projects {
		if c.Projects[i].Name == "" {
			c.Projects[i].Name = c.Projects[i].ID
		}
	}
}

func (c *Config) validate() error {
	seen := make(map[string]bool, len(c.Projects))
	for _, p := range c.Projects {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return fmt.Errorf("project with name %q has no id", p.Name)
		}
		if seen[id] {
			return fmt.Errorf("duplicate project id %q", id)
		}
		seen[id] = true
	}
	return nil
}
