package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	JWTSecret   string `mapstructure:"JWT_SECRET"`

	// Twilio credentials used to mint video access tokens.
	TwilioAccountSID   string `mapstructure:"TWILIO_ACCOUNT_SID"`
	TwilioAPIKeySID    string `mapstructure:"TWILIO_API_KEY_SID"`
	TwilioAPIKeySecret string `mapstructure:"TWILIO_API_KEY_SECRET"`

	// TownCapacity is the maximum occupancy applied to every new town.
	TownCapacity int `mapstructure:"TOWN_CAPACITY"`

	// VideoMintTimeout bounds a single video token mint so a hung issuer
	// cannot hold on to a reserved town slot.
	VideoMintTimeout time.Duration `mapstructure:"VIDEO_MINT_TIMEOUT"`
}

var AppConfig *Config

// LoadConfig loads the configuration from a .env file and environment variables.
func LoadConfig() {
	viper.AddConfigPath(".")
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()

	viper.SetDefault("TOWN_CAPACITY", 50)
	viper.SetDefault("VIDEO_MINT_TIMEOUT", 5*time.Second)

	if err := viper.ReadInConfig(); err != nil {
		log.Println("Warning: .env file not found, loading from environment variables")
	}

	err := viper.Unmarshal(&AppConfig)
	if err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}
}
