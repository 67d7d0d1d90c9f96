// Package config loads and validates the daemon's YAML configuration.
//
// Load reads the file, fills defaults, applies LEVLCORE_* environment
// overrides and validates the result, so a *Config in hand is always
// usable. Configuration is read once at startup; nothing reloads it
// at runtime.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Daemon.ID)
//
// Keep secrets (API key, MQTT password, InfluxDB token) in environment
// variables rather than the file, and keep the file itself at 0600.
package config
