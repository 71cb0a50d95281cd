package internal

// Mode selects what Run does after wiring the components.
type Mode string

const (
	// ModeRun executes one batch and exits.
	ModeRun Mode = "run"
	// ModeServe executes a batch, then serves the API and reruns on document changes.
	ModeServe Mode = "serve"
	// ModeMCP serves MCP over stdio on the last snapshot.
	ModeMCP Mode = "mcp"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	mode   Mode
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithMode sets the run mode. The default is ModeServe.
func WithMode(m Mode) Option {
	return func(a *application) {
		a.mode = m
	}
}
