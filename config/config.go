package config

// Config holds the knobs the engine is opened with. Defaults match the
// values named in the storage core's design: a 4KiB page and a 64-frame
// buffer pool.
type Config struct {
	DataDir      string
	PageSize     int
	PoolCapacity int
}

func New() *Config {
	return &Config{
		DataDir:      "./data",
		PageSize:     4096,
		PoolCapacity: 64,
	}
}

func (c *Config) WithDataDir(dir string) *Config {
	c.DataDir = dir
	return c
}

func (c *Config) WithPoolCapacity(n int) *Config {
	c.PoolCapacity = n
	return c
}
