package config

import (
	"time"

	"github.com/spf13/viper"
)

// Data persistence config struct
type Data struct {
	Database *Database
	Redis    *Redis

	// QueryTimeout bounds every persistence-backed operation so a stalled
	// store surfaces as a transient error, never an auth decision.
	QueryTimeout time.Duration
}

// Database relational database config struct
type Database struct {
	Driver string // "pgx" or "sqlite3"
	Source string
}

// Redis cache config struct
type Redis struct {
	Addr     string
	Password string
	DB       int
}

func getDataConfig(v *viper.Viper) *Data {
	return &Data{
		Database: &Database{
			Driver: getStringOrDefault(v, "data.database.driver", "pgx"),
			Source: v.GetString("data.database.source"),
		},
		Redis: &Redis{
			Addr:     v.GetString("data.redis.addr"),
			Password: v.GetString("data.redis.password"),
			DB:       getIntOrDefault(v, "data.redis.db", 0),
		},
		QueryTimeout: getDurationOrDefault(v, "data.query_timeout", 5*time.Second),
	}
}
