package devtools

import (
	"time"

	"github.com/codefionn/devtap/internal/logger"
	"github.com/codefionn/devtap/internal/protocol"
)

// Config holds client configuration
type Config struct {
	// Host is the address the devtools server is running on
	Host string
	// Port is the port the devtools server is accessed via
	Port int
	// ConnectTimeout bounds the websocket handshake
	ConnectTimeout time.Duration
	// WriteTimeout is the per-frame write deadline for the sender
	WriteTimeout time.Duration
	// QueueSize is the outbound log queue capacity
	QueueSize int
	// Logger receives the client's own diagnostics; nil discards them
	Logger *logger.Logger
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Host:           protocol.DefaultHost,
		Port:           protocol.DefaultPort,
		ConnectTimeout: protocol.ConnectTimeout,
		WriteTimeout:   10 * time.Second,
		QueueSize:      protocol.LogQueueMaxSize,
	}
}
