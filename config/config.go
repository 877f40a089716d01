package config

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var (
	config *Config
	path   string
	once   sync.Once
	mu     sync.Mutex
	v      *viper.Viper
)

// Config represents the configuration implementation.
type Config struct {
	AppName   string
	RunMode   string
	Host      string
	Port      int
	BaseURL   string
	Auth      *Auth
	RateLimit *RateLimit
	Logger    *Logger
	Data      *Data
	Email     *Email
	SMS       *SMS
	Messaging *Messaging
	Observes  *Observes
	Viper     *viper.Viper
}

func init() {
	flag.StringVar(&path, "conf", "", "e.g: bin ./config.yaml")
	v = viper.New()
}

// Init initializes and loads the configuration.
func Init() (cfg *Config, err error) {
	once.Do(func() {
		cfg, err = loadConfiguration(path)
	})
	return cfg, err
}

// GetConfig returns the configuration.
// It does not handle errors internally; instead, it returns the error for the caller to handle.
func GetConfig() (*Config, error) {
	if config == nil {
		var err error
		config, err = Init()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize config: %w", err)
		}
	}
	return config, nil
}

// Load loads the configuration from an explicit file path.
func Load(file string) (*Config, error) {
	mu.Lock()
	defer mu.Unlock()
	cfg, err := loadConfiguration(file)
	if err != nil {
		return nil, err
	}
	config = cfg
	return cfg, nil
}

func loadConfiguration(file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/authcore")
	}

	v.SetEnvPrefix("AUTHCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg, err := fromViper(v)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) (*Config, error) {
	auth, err := getAuth(v)
	if err != nil {
		return nil, err
	}
	return &Config{
		AppName:   getStringOrDefault(v, "app_name", "authcore"),
		RunMode:   getStringOrDefault(v, "run_mode", "release"),
		Host:      getStringOrDefault(v, "host", "0.0.0.0"),
		Port:      getIntOrDefault(v, "port", 3000),
		BaseURL:   getStringOrDefault(v, "base_url", "http://localhost:3000"),
		Auth:      auth,
		RateLimit: getRateLimit(v),
		Logger:    getLoggerConfig(v),
		Data:      getDataConfig(v),
		Email:     getEmailConfig(v),
		SMS:       getSMSConfig(v),
		Messaging: getMessagingConfig(v),
		Observes:  getObservesConfig(v),
		Viper:     v,
	}, nil
}

// Watch reloads the configuration when the underlying file changes.
// The callback receives the freshly parsed configuration.
func Watch(ctx context.Context, onChange func(*Config)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		mu.Lock()
		defer mu.Unlock()
		cfg, err := fromViper(v)
		if err != nil {
			// A broken edit must not take down a running server.
			return
		}
		config = cfg
		if onChange != nil {
			onChange(cfg)
		}
	})
	v.WatchConfig()
	<-ctx.Done()
}
