package domain

// Channel is a named source of package metadata and archives.
type Channel struct {
	Name string
	URL  string

	// Priority ranks the channel; lower values win. Ties break by name.
	Priority int
}

// Config is the structured input handed to the core by the configuration
// layer. The core never parses free-form command syntax.
type Config struct {
	Channels  []Channel
	Subdirs   []string
	Pins      []string
	Features  []string
	CacheRoot string
	Mode      SolveMode
}

// ChannelRank derives the solver's channel rank map from the configured
// priority order.
func (c *Config) ChannelRank() map[string]int {
	rank := make(map[string]int, len(c.Channels))
	for _, ch := range c.Channels {
		rank[ch.Name] = ch.Priority
	}
	return rank
}

// ChannelByName returns the named channel, if configured.
func (c *Config) ChannelByName(name string) (Channel, bool) {
	for _, ch := range c.Channels {
		if ch.Name == name {
			return ch, true
		}
	}
	return Channel{}, false
}
