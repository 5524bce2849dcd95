package logging

import "go.uber.org/zap"

// ZapLogger backs the Logger interface with a production zap logger.
// args are treated as alternating key/value pairs appended as
// zap.Any fields.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

func NewZapLogger(z *zap.Logger) *ZapLogger {
	return &ZapLogger{sugar: z.Sugar()}
}

// NewProductionZapLogger builds a sensible default for the daemon: JSON
// output, info level, caller and stacktrace on error.
func NewProductionZapLogger() (*ZapLogger, error) {
	z, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return NewZapLogger(z), nil
}

func (l *ZapLogger) Debug(msg string, args...interface{}) { l.sugar.Debugw(msg, args...) }
func (l *ZapLogger) Info(msg string, args...interface{}) { l.sugar.Infow(msg, args...) }
func (l *ZapLogger) Warn(msg string, args...interface{}) { l.sugar.Warnw(msg, args...) }
func (l *ZapLogger) Error(msg string, args...interface{}) { l.sugar.Errorw(msg, args...) }

func (l *ZapLogger) Sync()error { return l.sugar.Sync() }
