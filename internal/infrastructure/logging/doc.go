// Package logging configures the daemon's structured logger on top of
// log/slog.
//
// Output is JSON in production and text during development, selected
// by the logging section of config.yaml; every record carries service
// and version fields so aggregated logs stay attributable:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("starting service", "port", 8765)
//
// Never log tokens, passwords or API keys.
package logging
