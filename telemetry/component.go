package telemetry

// Logger is the minimal logging interface: four levels, each taking a
// message and a field map. TelemetryLogger, ComponentLogger and NoOpLogger
// implement it. Primitives log through GetLogger().WithComponent(name),
// passing their own Name as the component, so structured logs can be
// filtered by primitive.
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})
}

// ComponentLogger wraps a TelemetryLogger with a fixed component name,
// stamped onto every field map it logs.
type ComponentLogger struct {
	component string
	base      *TelemetryLogger
}

// WithComponent returns a Logger that stamps every entry with component.
func (l *TelemetryLogger) WithComponent(component string) *ComponentLogger {
	return &ComponentLogger{component: component, base: l}
}

func (c *ComponentLogger) withField(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["component"] = c.component
	return out
}

func (c *ComponentLogger) Info(msg string, fields map[string]interface{}) {
	c.base.Info(msg, c.withField(fields))
}

func (c *ComponentLogger) Warn(msg string, fields map[string]interface{}) {
	c.base.Warn(msg, c.withField(fields))
}

func (c *ComponentLogger) Error(msg string, fields map[string]interface{}) {
	c.base.Error(msg, c.withField(fields))
}

func (c *ComponentLogger) Debug(msg string, fields map[string]interface{}) {
	c.base.Debug(msg, c.withField(fields))
}

// NoOpLogger satisfies Logger and discards everything. The primitives in
// this module take no logger argument; they log through GetLogger.
type NoOpLogger struct{}

func (NoOpLogger) Info(string, map[string]interface{})  {}
func (NoOpLogger) Warn(string, map[string]interface{})  {}
func (NoOpLogger) Error(string, map[string]interface{}) {}
func (NoOpLogger) Debug(string, map[string]interface{}) {}
