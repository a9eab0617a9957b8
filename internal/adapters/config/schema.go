// Package config loads the keg.yaml configuration file.
package config

// File represents the structure of the keg.yaml configuration file.
type File struct {
	Channels []ChannelDTO `yaml:"channels"`
	Subdirs  []string     `yaml:"subdirs"`
	Pins     []string     `yaml:"pins"`
	Features []string     `yaml:"features"`
	Cache    CacheDTO     `yaml:"cache"`
	Solver   SolverDTO    `yaml:"solver"`
}

// ChannelDTO is one channel entry. Channels are ranked by their position in
// the file; the first channel has the highest priority.
type ChannelDTO struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// CacheDTO configures the shared package cache.
type CacheDTO struct {
	Root string `yaml:"root"`
}

// SolverDTO configures solver behavior.
type SolverDTO struct {
	AllowDowngrade        bool `yaml:"allowDowngrade"`
	StrictChannelPriority bool `yaml:"strictChannelPriority"`
	MaxIterations         int  `yaml:"maxIterations"`
}
