package models

// Config holds server and database settings loaded from config.json.
type Config struct {
	ServerAddr   string   `json:"server_addr"`
	AllowOrigins []string `json:"allow_origins"`

	DBHost     string `json:"db_host"`
	DBUser     string `json:"db_user"`
	DBPassword string `json:"db_password"`
	DBName     string `json:"db_name"`
	DBSSLMode  string `json:"db_sslmode"`

	// GraceSeconds is the reconnect window after a mid-match disconnect.
	GraceSeconds int `json:"grace_seconds"`
}
