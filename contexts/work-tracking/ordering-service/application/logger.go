package application

import "log/slog"

// ResolveLogger falls back to the process default logger so optional wiring
// never leaves nil in the call path.
func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
