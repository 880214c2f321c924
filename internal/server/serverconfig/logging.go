package serverconfig

import (
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

// SetupLogging installs the process-wide slog.Default logger: a
// colorized text handler in development, structured JSON in production.
func SetupLogging(environment string) {
	var handler slog.Handler
	if environment == "development" {
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: "15:04:05",
		})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	slog.SetDefault(slog.New(handler))
}
