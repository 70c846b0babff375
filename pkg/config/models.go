package config

import "time"

type Config struct {
	Server    ServerConfig
	Transport TransportConfig
	Database  DatabaseConfig
	Metrics   MetricsConfig
	LogLevel  string `mapstructure:"logLevel"`
}

type ServerConfig struct {
	Address string
	Auth    AuthConfig
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwtSecret"`
}

type TransportConfig struct {
	ReadTimeout time.Duration `mapstructure:"readTimeout"`
}

type DatabaseConfig struct {
	Path string
}

type MetricsConfig struct {
	Enabled bool
}
