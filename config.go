package logust

import (
	"encoding/json"
	"fmt"
)

// Config is the declarative logger configuration, loadable from JSON via
// WithConfig. Custom levels are registered before any handler, so handler
// thresholds may name them.
type Config struct {
	Level      string          `json:"level"`
	Console    string          `json:"console"` // "stdout", "stderr", or "none"
	Format     string          `json:"format"`
	TimeFormat string          `json:"time_format"`
	Colorize   *bool           `json:"colorize"`
	MaxLogRate int             `json:"max_log_rate"`
	Levels     []LevelConfig   `json:"levels"`
	Handlers   []HandlerConfig `json:"handlers"`
}

// LevelConfig declares a custom level.
type LevelConfig struct {
	Name  string `json:"name"`
	No    int    `json:"no"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

// HandlerConfig declares one handler. Sink is "stdout", "stderr", or a file
// path; the rotation fields only apply to file sinks.
type HandlerConfig struct {
	Sink        string `json:"sink"`
	Level       string `json:"level"`
	Format      string `json:"format"`
	TimeFormat  string `json:"time_format"`
	Serialize   bool   `json:"serialize"`
	Colorize    *bool  `json:"colorize"`
	Rotation    string `json:"rotation"`
	Retention   string `json:"retention"`
	Compression bool   `json:"compression"`
	Enqueue     bool   `json:"enqueue"`
}

// Validate checks the parts of the configuration that do not depend on the
// level registry. Level names are validated during construction, after the
// custom levels have been registered.
func (c Config) Validate() error {
	switch c.Console {
	case "", "stdout", "stderr", "none":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStream, c.Console)
	}

	for i, h := range c.Handlers {
		if h.Sink == "" {
			return fmt.Errorf("handler %d: sink must not be empty", i)
		}
		if _, err := parseRotation(h.Rotation); err != nil {
			return fmt.Errorf("handler %d: %w", i, err)
		}
		if _, err := parseRetention(h.Retention); err != nil {
			return fmt.Errorf("handler %d: %w", i, err)
		}
	}
	return nil
}

// NewFromConfig builds a logger from a Config. Any registration failure tears
// down the handlers registered so far and returns the error.
func NewFromConfig(cfg Config) (*Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []Option{WithoutConsole()}
	if cfg.MaxLogRate > 0 {
		opts = append(opts, WithMaxLogRate(cfg.MaxLogRate))
	}
	l := New(opts...)

	fail := func(err error) (*Logger, error) {
		l.Close()
		return nil, err
	}

	for _, lv := range cfg.Levels {
		if err := l.RegisterLevel(lv.Name, lv.No, lv.Color, lv.Icon); err != nil {
			return fail(err)
		}
	}

	if cfg.Console != "none" {
		stream := cfg.Console
		if stream == "" {
			stream = "stdout"
		}
		consoleOpts, err := l.handlerOptions(HandlerConfig{
			Level:      cfg.Level,
			Format:     cfg.Format,
			TimeFormat: cfg.TimeFormat,
			Colorize:   cfg.Colorize,
		})
		if err != nil {
			return fail(err)
		}
		if _, err := l.AddConsole(stream, consoleOpts...); err != nil {
			return fail(err)
		}
	}

	for i, h := range cfg.Handlers {
		handlerOpts, err := l.handlerOptions(h)
		if err != nil {
			return fail(fmt.Errorf("handler %d: %w", i, err))
		}
		switch h.Sink {
		case "stdout", "stderr":
			_, err = l.AddConsole(h.Sink, handlerOpts...)
		default:
			_, err = l.AddFile(h.Sink, handlerOpts...)
		}
		if err != nil {
			return fail(fmt.Errorf("handler %d: %w", i, err))
		}
	}

	return l, nil
}

// WithConfig builds a logger from a JSON configuration document.
func WithConfig(jsonStr string) (*Logger, error) {
	var cfg Config
	if err := json.Unmarshal([]byte(jsonStr), &cfg); err != nil {
		return nil, fmt.Errorf("invalid logger config: %w", err)
	}
	return NewFromConfig(cfg)
}

// handlerOptions translates one HandlerConfig into handler options, resolving
// the level name against this logger's registry.
func (l *Logger) handlerOptions(h HandlerConfig) ([]HandlerOption, error) {
	var opts []HandlerOption
	if h.Level != "" {
		lv, err := l.LevelFor(h.Level)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithLevel(lv))
	}
	if h.Format != "" {
		opts = append(opts, WithFormat(h.Format))
	}
	if h.TimeFormat != "" {
		opts = append(opts, WithTimeFormat(h.TimeFormat))
	}
	if h.Serialize {
		opts = append(opts, WithSerialize())
	}
	if h.Colorize != nil {
		opts = append(opts, WithColorize(*h.Colorize))
	}
	if h.Rotation != "" {
		opts = append(opts, WithRotation(h.Rotation))
	}
	if h.Retention != "" {
		opts = append(opts, WithRetention(h.Retention))
	}
	if h.Compression {
		opts = append(opts, WithCompression())
	}
	if h.Enqueue {
		opts = append(opts, WithEnqueue())
	}
	return opts, nil
}
