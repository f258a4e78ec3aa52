package configs

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port     string
		Env      string
		LogLevel string
	}
	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
	}
	Cache struct {
		// Addr selects the Redis backend; when empty the engine falls back
		// to the in-process cache.
		Addr     string
		Password string
		DB       int
	}
	Sweeper struct {
		// RefreshInterval is the cadence of full working-set rebuilds from
		// the record store. SweepInterval is the faster expiry scan over the
		// working set; it must not exceed RefreshInterval.
		RefreshInterval time.Duration
		SweepInterval   time.Duration
	}
	WebSocket struct {
		PingInterval   string
		MaxMessageSize int
	}
	Auth struct {
		SecretKey string
	}
	Features struct {
		EnableLogging    bool
		AllowCrossOrigin bool
	}
}

func LoadConfig() (*Config, error) {
	// Load .env file
	if err := godotenv.Load("./configs/.env"); err != nil {
		log.Info("No .env file found")
	}

	viper.SetConfigName("config")    // Name of the config file (without extension)
	viper.SetConfigType("yaml")      // Config file type
	viper.AddConfigPath("./configs") // Path to look for the config file
	viper.AutomaticEnv()             // Automatically map environment variables

	// Allow dots in environment variables to map to nested keys
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("sweeper.refreshinterval", 30*time.Second)
	viper.SetDefault("sweeper.sweepinterval", 5*time.Second)

	// Read the config file
	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	// Manually substitute environment variables in the config
	substituteEnvVarsInConfig()

	// Unmarshal the config into a struct
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the invariants the engine depends on.
func (c *Config) Validate() error {
	if c.Sweeper.RefreshInterval <= 0 {
		return fmt.Errorf("sweeper refresh interval must be positive, got %s", c.Sweeper.RefreshInterval)
	}
	if c.Sweeper.SweepInterval <= 0 {
		return fmt.Errorf("sweeper sweep interval must be positive, got %s", c.Sweeper.SweepInterval)
	}
	if c.Sweeper.SweepInterval > c.Sweeper.RefreshInterval {
		return fmt.Errorf("sweep interval %s exceeds refresh interval %s",
			c.Sweeper.SweepInterval, c.Sweeper.RefreshInterval)
	}
	return nil
}

// Helper function to manually replace environment variables in config file values
func substituteEnvVarsInConfig() {
	// Iterate over each key-value pair in viper's config
	for _, key := range viper.AllKeys() {
		// Get the current value
		value := viper.GetString(key)

		// Check if the value contains environment variable syntax (e.g., ${PORT})
		if strings.Contains(value, "${") {
			// Replace environment variables in the value (e.g., ${PORT})
			replacedValue := os.Expand(value, func(name string) string {
				// Lookup the environment variable's value
				return os.Getenv(name)
			})

			// Set the replaced value back into viper
			viper.Set(key, replacedValue)
		}
	}
}
