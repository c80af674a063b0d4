package internal

import "io"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	logOut io.Writer
	force  bool
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogOutput redirects the primary log stream. The default is stdout for
// the server and stderr for the MCP command, whose stdout carries the protocol.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOut = w
	}
}

// WithForce makes Seed import fixtures into a database that already holds jobs.
func WithForce(force bool) Option {
	return func(a *application) {
		a.force = force
	}
}
