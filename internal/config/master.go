package config

import "os"

type AppConfig struct {
	DebugMode       bool
	RateLimitConfig *RateLimitConfig
	AIConfig        *AIConfig
	UploadConfig    *UploadConfig
	StorageConfig   *StorageConfig
	RedisConfig     *RedisConfig
	PostgresConfig  *PostgresConfig
	JwtConfig       *JwtConfig
	GGAuthConfig    *GGAuthConfig
}

func NewSystemConfig() *AppConfig {
	return &AppConfig{
		DebugMode:       os.Getenv("DEBUG_MODE") == "true",
		RateLimitConfig: NewRateLimitConfig(),
		AIConfig:        NewAIConfig(),
		UploadConfig:    NewUploadConfig(),
		StorageConfig:   NewStorageConfig(),
		RedisConfig:     NewRedisConfig(),
		PostgresConfig:  NewPostgresConfig(),
		JwtConfig:       NewJwtConfig(),
		GGAuthConfig:    NewGGAuthConfig(),
	}
}

// getEnv gets an environment variable with a fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
