package log

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/mwantia/fabric/pkg/container"
)

// LoggerTagProcessor handles fabric:"logger" and fabric:"logger:<name>" tags
// for logger injection with optional named loggers.
//
// Supported tag formats:
//   - `fabric:"logger"` - Injects the base logger service
//   - `fabric:"logger:<name>"` - Injects a named logger (e.g., logger.Named("sync"))
type LoggerTagProcessor struct{}

func NewLoggerTagProcessor() *LoggerTagProcessor {
	return &LoggerTagProcessor{}
}

// GetPriority returns the processing priority for this processor.
// Priority 50 runs before the default inject processor (priority 0).
func (ltp *LoggerTagProcessor) GetPriority() int {
	return 50
}

// CanProcess reports whether value is "logger" or "logger:<name>", case-insensitive.
func (ltp *LoggerTagProcessor) CanProcess(value string) bool {
	return strings.EqualFold(value, "logger") || strings.HasPrefix(strings.ToLower(value), "logger:")
}

// Process resolves the base LoggerService from the container and, when the
// tag carries a name, returns the corresponding named child.
func (ltp *LoggerTagProcessor) Process(ctx context.Context, sc *container.ServiceContainer, field reflect.StructField, value string) (any, error) {
	ok, resolved := sc.ResolveByType(ctx, reflect.TypeOf((*LoggerService)(nil)).Elem())
	if !ok {
		return nil, fmt.Errorf("failed to resolve LoggerService for field '%s': no logger service registered", field.Name)
	}

	baseLogger, ok := resolved.(LoggerService)
	if !ok {
		return nil, fmt.Errorf("resolved logger is not a LoggerService for field '%s'", field.Name)
	}

	return named(baseLogger, value), nil
}

// InjectLoggers fills every LoggerService field of the struct pointed to by
// target whose fabric tag the processor accepts.
func (ltp *LoggerTagProcessor) InjectLoggers(ctx context.Context, sc *container.ServiceContainer, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("logger injection target must be a struct pointer, got %T", target)
	}

	elem := rv.Elem()
	for i := 0; i < elem.NumField(); i++ {
		field := elem.Type().Field(i)
		tag := field.Tag.Get("fabric")
		if tag == "" || !ltp.CanProcess(tag) {
			continue
		}

		resolved, err := ltp.Process(ctx, sc, field, tag)
		if err != nil {
			return err
		}
		elem.Field(i).Set(reflect.ValueOf(resolved))
	}

	return nil
}

func named(base LoggerService, value string) LoggerService {
	name := ""
	if parts := strings.SplitN(value, ":", 2); len(parts) == 2 {
		name = strings.TrimSpace(parts[1])
	}
	if name == "" {
		return base
	}
	return base.Named(name)
}
