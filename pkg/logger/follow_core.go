package logger

import (
	"go.uber.org/zap/zapcore"
)

// followCore writes through whichever file is current for its category,
// so loggers held across midnight land in the new day's file.
type followCore struct {
	ml       *MultiLogger
	category LogCategory
	fields   []zapcore.Field
}

func (c *followCore) current() zapcore.Core {
	return c.ml.GetLogger(c.category).Core()
}

func (c *followCore) Enabled(level zapcore.Level) bool {
	return c.current().Enabled(level)
}

func (c *followCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &followCore{ml: c.ml, category: c.category, fields: merged}
}

func (c *followCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *followCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	core := c.current()
	if len(c.fields) > 0 {
		core = core.With(c.fields)
	}
	return core.Write(entry, fields)
}

func (c *followCore) Sync() error {
	return c.current().Sync()
}
