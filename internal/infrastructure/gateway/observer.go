package gateway

import (
	"go.uber.org/zap"

	"github.com/erp/gateway/internal/domain/gateway"
)

// LogObserver logs every remote request through zap.
type LogObserver struct {
	logger *zap.Logger
}

func NewLogObserver(logger *zap.Logger) *LogObserver {
	return &LogObserver{logger: logger.Named("remote")}
}

func (o *LogObserver) Observe(ev gateway.RequestEvent) {
	fields := []zap.Field{
		zap.String("method", ev.Method),
		zap.String("url", ev.URL),
		zap.Int("status", ev.Status),
		zap.Duration("duration", ev.Duration),
	}
	if ev.Err != nil {
		o.logger.Warn("remote request failed", append(fields, zap.Error(ev.Err))...)
		return
	}
	o.logger.Debug("remote request", fields...)
}
