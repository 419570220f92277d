package config

import (
	"github.com/knadh/koanf/v2"
)

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"server.host": "0.0.0.0",
		"server.port": 8080,

		"database.max_connections": 25,

		"auth.jwt_expiry":     "24h",
		"auth.session_expiry": "12h",
		"auth.admin_username": "admin",

		"dispatcher.interval":             "10s",
		"dispatcher.batch_size":           20,
		"dispatcher.max_concurrent_ticks": 4,
		"dispatcher.renderer_group":       "Renderer",

		"storage.local_dir":   "/data/intake",
		"storage.network_dir": "/data/network",

		"renderer.binary":      "luxconsole",
		"renderer.max_threads": 4,

		"logging.level":  "info",
		"logging.format": "pretty",
	}

	for key, val := range defaults {
		k.Set(key, val)
	}
	return nil
}
