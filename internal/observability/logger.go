package observability

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/alert-dispatch/internal/domain"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "alert-dispatch"

type correlationIDKey struct{}

// NewLogger builds a JSON production logger at the given level ("" = info).
func NewLogger(level string) (*zap.Logger, error) {
	parsedLevel, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parsedLevel)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true
	cfg.InitialFields = map[string]any{"service": serviceName}

	logger, err := cfg.Build(zap.AddCaller())
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return logger, nil
}

func parseLevel(level string) (zapcore.Level, error) {
	normalized := strings.ToLower(strings.TrimSpace(level))
	if normalized == "" {
		return zapcore.InfoLevel, nil
	}

	var parsed zapcore.Level
	if err := parsed.UnmarshalText([]byte(normalized)); err != nil {
		return 0, fmt.Errorf("%w: invalid log level %q: %v", domain.ErrConfiguration, level, err)
	}
	return parsed, nil
}

func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, correlationIDKey{}, correlationID)
}

func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	correlationID, ok := ctx.Value(correlationIDKey{}).(string)
	return correlationID, ok && correlationID != ""
}

// WithContextLogger adds the correlation id carried by ctx, if any.
func WithContextLogger(logger *zap.Logger, ctx context.Context) *zap.Logger {
	if logger == nil {
		return nil
	}
	if correlationID, ok := CorrelationIDFromContext(ctx); ok {
		return logger.With(zap.String("correlationId", correlationID))
	}
	return logger
}

// ResultFields renders a dispatch outcome as structured log fields.
func ResultFields(result domain.DeliveryResult) []zap.Field {
	fields := []zap.Field{
		zap.Bool("success", result.Success),
		zap.String("provider", result.Provider),
		zap.Int("attempts", result.AttemptsMade),
	}
	if result.FailureReason != "" {
		fields = append(fields, zap.String("reason", result.FailureReason.String()))
	}
	if result.ProviderStatusCode != nil {
		fields = append(fields, zap.Int("statusCode", *result.ProviderStatusCode))
	}
	if result.Detail != "" {
		fields = append(fields, zap.String("detail", result.Detail))
	}
	if result.Err != nil {
		fields = append(fields, zap.Error(result.Err))
	}
	return fields
}
