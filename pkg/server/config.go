package server

import "time"

// Config holds the admin HTTP server's configuration, plus the engine
// parameters it passes through to engine.Open.
type Config struct {
	Host string // Server host address
	Port int    // Server port

	DataDir       string // Database data directory - where the data file lives
	PoolSize      int    // Buffer pool size in frames (1 frame = 4KB)
	LRUK          int    // k for the LRU-K replacer
	BucketMaxSize int    // Hash index bucket capacity

	ReadTimeout    time.Duration // HTTP read timeout
	WriteTimeout   time.Duration // HTTP write timeout
	IdleTimeout    time.Duration // HTTP idle timeout
	MaxRequestSize int64         // Maximum request body size in bytes
	EnableLogging  bool          // Enable request logging
	LogFormat      string        // Log format (text or json)

	// TLS/SSL configuration
	EnableTLS   bool   // Enable TLS/SSL
	TLSCertFile string // Path to TLS certificate file
	TLSKeyFile  string // Path to TLS private key file

	// StatsInterval controls how often GET /ws/stats pushes a snapshot.
	StatsInterval time.Duration
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:           "localhost",
		Port:           8080,
		DataDir:        "./data",
		PoolSize:       1000,
		LRUK:           2,
		BucketMaxSize:  256,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxRequestSize: 10 * 1024 * 1024, // 10MB
		EnableLogging:  true,
		LogFormat:      "text",
		EnableTLS:      false,
		TLSCertFile:    "",
		TLSKeyFile:     "",
		StatsInterval:  2 * time.Second,
	}
}
