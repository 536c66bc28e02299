// Package config loads server settings from defaults, the environment and
// an optional JSON file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"impostor/internal/game"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "IMPOSTOR_"

type Config struct {
	Database  *DatabaseConfig  `json:"database"`
	HTTP      *HTTPConfig      `json:"http"`
	WebSocket *WebSocketConfig `json:"websocket"`
	Game      *GameConfig      `json:"game"`
	Logging   *LoggingConfig   `json:"logging"`
}

type DatabaseConfig struct {
	Path           string        `json:"path"`
	Timeout        time.Duration `json:"timeout"`
	MigrationsPath string        `json:"migrations_path"`
}

type HTTPConfig struct {
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	Host         string        `json:"host"`
}

type WebSocketConfig struct {
	PingInterval time.Duration `json:"ping_interval"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	BufferSize   int           `json:"buffer_size"`
}

// GameConfig holds the session defaults applied to every new game.
type GameConfig struct {
	AssignmentDuration time.Duration `json:"assignment_duration"`
	TurnDuration       time.Duration `json:"turn_duration"`
	DiscussionDuration time.Duration `json:"discussion_duration"`
	VotingDuration     time.Duration `json:"voting_duration"`
	ResultDuration     time.Duration `json:"result_duration"`
	TotalRounds        int           `json:"total_rounds"`
	ImpostorCount      int           `json:"impostor_count"`
	MinParticipants    int           `json:"min_participants"`
	MaxParticipants    int           `json:"max_participants"`
	MaxClueLength      int           `json:"max_clue_length"`
	MaxMessageLength   int           `json:"max_message_length"`
	PublicVoting       bool          `json:"public_voting"`
	SimulatedDelay     time.Duration `json:"simulated_delay"`
	CatalogPath        string        `json:"catalog_path"`
	PublicBaseURL      string        `json:"public_base_url"`
}

type LoggingConfig struct {
	Debug bool `json:"debug"`
}

func DefaultConfig() *Config {
	opts := game.DefaultOptions()
	return &Config{
		Database: &DatabaseConfig{
			Path:           "./data/impostor.db",
			Timeout:        30 * time.Second,
			MigrationsPath: "./migrations",
		},
		HTTP: &HTTPConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			Host:         "0.0.0.0",
		},
		WebSocket: &WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
			BufferSize:   100,
		},
		Game: &GameConfig{
			AssignmentDuration: opts.AssignmentDuration,
			TurnDuration:       opts.TurnDuration,
			DiscussionDuration: opts.DiscussionDuration,
			VotingDuration:     opts.VotingDuration,
			ResultDuration:     opts.ResultDuration,
			TotalRounds:        opts.TotalRounds,
			ImpostorCount:      opts.ImpostorCount,
			MinParticipants:    opts.MinParticipants,
			MaxParticipants:    opts.MaxParticipants,
			MaxClueLength:      opts.MaxClueLength,
			MaxMessageLength:   opts.MaxMessageLength,
			PublicVoting:       opts.PublicVoting,
			SimulatedDelay:     1500 * time.Millisecond,
			PublicBaseURL:      "ws://localhost:8080",
		},
		Logging: &LoggingConfig{},
	}
}

func (c *Config) Validate() error {
	if c.Database == nil {
		return fmt.Errorf("database configuration is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("database timeout must be positive")
	}
	if c.Database.MigrationsPath == "" {
		return fmt.Errorf("database migrations path cannot be empty")
	}

	if c.HTTP == nil {
		return fmt.Errorf("HTTP configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("HTTP read timeout must be positive")
	}
	if c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP write timeout must be positive")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}

	if c.WebSocket == nil {
		return fmt.Errorf("WebSocket configuration is required")
	}
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= 0 {
		return fmt.Errorf("WebSocket read timeout must be positive")
	}
	if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("WebSocket read timeout must exceed the ping interval")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket write timeout must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("WebSocket buffer size must be positive")
	}

	if c.Game == nil {
		return fmt.Errorf("game configuration is required")
	}
	if c.Game.SimulatedDelay < 0 {
		return fmt.Errorf("simulated delay cannot be negative")
	}
	if c.Game.MinParticipants < 2 {
		return fmt.Errorf("game needs at least 2 participants")
	}
	// Session-level rules are checked with the smallest allowed table.
	if err := c.GameOptions().Validate(c.Game.MinParticipants); err != nil {
		return fmt.Errorf("invalid game defaults: %w", err)
	}

	if c.Logging == nil {
		return fmt.Errorf("logging configuration is required")
	}

	return nil
}

// GameOptions converts the game section into session options.
func (c *Config) GameOptions() game.Options {
	opts := game.DefaultOptions()
	g := c.Game
	if g == nil {
		return opts
	}

	opts.AssignmentDuration = g.AssignmentDuration
	opts.TurnDuration = g.TurnDuration
	opts.DiscussionDuration = g.DiscussionDuration
	opts.VotingDuration = g.VotingDuration
	opts.ResultDuration = g.ResultDuration
	opts.TotalRounds = g.TotalRounds
	opts.ImpostorCount = g.ImpostorCount
	opts.MinParticipants = g.MinParticipants
	opts.MaxParticipants = g.MaxParticipants
	opts.MaxClueLength = g.MaxClueLength
	opts.MaxMessageLength = g.MaxMessageLength
	opts.PublicVoting = g.PublicVoting
	return opts
}

// LoadDotEnv loads a .env file into the process environment. A missing
// file is not an error; variables already set are never overwritten.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		log.Printf("Loaded environment from %s", path)
	}
	return nil
}

func env(name string) string {
	return os.Getenv(EnvPrefix + name)
}

func envInt(name string, target *int) {
	if v := env(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

func envDuration(name string, target *time.Duration) {
	if v := env(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*target = d
		}
	}
}

func envBool(name string, target *bool) {
	if v := env(name); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*target = b
		}
	}
}

func envString(name string, target *string) {
	if v := env(name); v != "" {
		*target = v
	}
}

// LoadFromEnv applies IMPOSTOR_* variables over the defaults. Unparseable
// values are ignored.
func LoadFromEnv() *Config {
	config := DefaultConfig()

	envInt("HTTP_PORT", &config.HTTP.Port)
	envString("HTTP_HOST", &config.HTTP.Host)
	envDuration("HTTP_READ_TIMEOUT", &config.HTTP.ReadTimeout)
	envDuration("HTTP_WRITE_TIMEOUT", &config.HTTP.WriteTimeout)

	envString("DATABASE_PATH", &config.Database.Path)
	envDuration("DATABASE_TIMEOUT", &config.Database.Timeout)
	envString("DATABASE_MIGRATIONS_PATH", &config.Database.MigrationsPath)

	envDuration("WEBSOCKET_PING_INTERVAL", &config.WebSocket.PingInterval)
	envDuration("WEBSOCKET_READ_TIMEOUT", &config.WebSocket.ReadTimeout)
	envDuration("WEBSOCKET_WRITE_TIMEOUT", &config.WebSocket.WriteTimeout)
	envInt("WEBSOCKET_BUFFER_SIZE", &config.WebSocket.BufferSize)

	envDuration("GAME_ASSIGNMENT_DURATION", &config.Game.AssignmentDuration)
	envDuration("GAME_TURN_DURATION", &config.Game.TurnDuration)
	envDuration("GAME_DISCUSSION_DURATION", &config.Game.DiscussionDuration)
	envDuration("GAME_VOTING_DURATION", &config.Game.VotingDuration)
	envDuration("GAME_RESULT_DURATION", &config.Game.ResultDuration)
	envInt("GAME_TOTAL_ROUNDS", &config.Game.TotalRounds)
	envInt("GAME_IMPOSTOR_COUNT", &config.Game.ImpostorCount)
	envInt("GAME_MIN_PARTICIPANTS", &config.Game.MinParticipants)
	envInt("GAME_MAX_PARTICIPANTS", &config.Game.MaxParticipants)
	envInt("GAME_MAX_CLUE_LENGTH", &config.Game.MaxClueLength)
	envInt("GAME_MAX_MESSAGE_LENGTH", &config.Game.MaxMessageLength)
	envBool("GAME_PUBLIC_VOTING", &config.Game.PublicVoting)
	envDuration("GAME_SIMULATED_DELAY", &config.Game.SimulatedDelay)
	envString("GAME_CATALOG_PATH", &config.Game.CatalogPath)
	envString("PUBLIC_BASE_URL", &config.Game.PublicBaseURL)

	envBool("DEBUG", &config.Logging.Debug)

	return config
}

// ConfigFile is the on-disk JSON layout. Durations are strings such as "30s".
type ConfigFile struct {
	Database  *DatabaseConfigFile  `json:"database"`
	HTTP      *HTTPConfigFile      `json:"http"`
	WebSocket *WebSocketConfigFile `json:"websocket"`
	Game      *GameConfigFile      `json:"game"`
	Logging   *LoggingConfig       `json:"logging"`
}

type DatabaseConfigFile struct {
	Path           string `json:"path"`
	Timeout        string `json:"timeout"`
	MigrationsPath string `json:"migrations_path"`
}

type HTTPConfigFile struct {
	Port         int    `json:"port"`
	ReadTimeout  string `json:"read_timeout"`
	WriteTimeout string `json:"write_timeout"`
	Host         string `json:"host"`
}

type WebSocketConfigFile struct {
	PingInterval string `json:"ping_interval"`
	ReadTimeout  string `json:"read_timeout"`
	WriteTimeout string `json:"write_timeout"`
	BufferSize   int    `json:"buffer_size"`
}

type GameConfigFile struct {
	AssignmentDuration string `json:"assignment_duration"`
	TurnDuration       string `json:"turn_duration"`
	DiscussionDuration string `json:"discussion_duration"`
	VotingDuration     string `json:"voting_duration"`
	ResultDuration     string `json:"result_duration"`
	TotalRounds        int    `json:"total_rounds"`
	ImpostorCount      int    `json:"impostor_count"`
	MinParticipants    int    `json:"min_participants"`
	MaxParticipants    *int   `json:"max_participants"`
	MaxClueLength      int    `json:"max_clue_length"`
	MaxMessageLength   int    `json:"max_message_length"`
	PublicVoting       *bool  `json:"public_voting"`
	SimulatedDelay     string `json:"simulated_delay"`
	CatalogPath        string `json:"catalog_path"`
	PublicBaseURL      string `json:"public_base_url"`
}

func parseDuration(value string, target *time.Duration) {
	if value == "" {
		return
	}
	if d, err := time.ParseDuration(value); err == nil {
		*target = d
	}
}

func positive(value int, target *int) {
	if value > 0 {
		*target = value
	}
}

func LoadFromFile(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filepath, err)
	}

	var configFile ConfigFile
	if err := json.Unmarshal(data, &configFile); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filepath, err)
	}

	config := DefaultConfig()

	if f := configFile.Database; f != nil {
		if f.Path != "" {
			config.Database.Path = f.Path
		}
		parseDuration(f.Timeout, &config.Database.Timeout)
		if f.MigrationsPath != "" {
			config.Database.MigrationsPath = f.MigrationsPath
		}
	}

	if f := configFile.HTTP; f != nil {
		positive(f.Port, &config.HTTP.Port)
		if f.Host != "" {
			config.HTTP.Host = f.Host
		}
		parseDuration(f.ReadTimeout, &config.HTTP.ReadTimeout)
		parseDuration(f.WriteTimeout, &config.HTTP.WriteTimeout)
	}

	if f := configFile.WebSocket; f != nil {
		positive(f.BufferSize, &config.WebSocket.BufferSize)
		parseDuration(f.PingInterval, &config.WebSocket.PingInterval)
		parseDuration(f.ReadTimeout, &config.WebSocket.ReadTimeout)
		parseDuration(f.WriteTimeout, &config.WebSocket.WriteTimeout)
	}

	if f := configFile.Game; f != nil {
		g := config.Game
		parseDuration(f.AssignmentDuration, &g.AssignmentDuration)
		parseDuration(f.TurnDuration, &g.TurnDuration)
		parseDuration(f.DiscussionDuration, &g.DiscussionDuration)
		parseDuration(f.VotingDuration, &g.VotingDuration)
		parseDuration(f.ResultDuration, &g.ResultDuration)
		parseDuration(f.SimulatedDelay, &g.SimulatedDelay)
		positive(f.TotalRounds, &g.TotalRounds)
		positive(f.ImpostorCount, &g.ImpostorCount)
		positive(f.MinParticipants, &g.MinParticipants)
		positive(f.MaxClueLength, &g.MaxClueLength)
		positive(f.MaxMessageLength, &g.MaxMessageLength)
		if f.MaxParticipants != nil {
			g.MaxParticipants = *f.MaxParticipants
		}
		if f.PublicVoting != nil {
			g.PublicVoting = *f.PublicVoting
		}
		if f.CatalogPath != "" {
			g.CatalogPath = f.CatalogPath
		}
		if f.PublicBaseURL != "" {
			g.PublicBaseURL = f.PublicBaseURL
		}
	}

	if configFile.Logging != nil {
		config.Logging.Debug = configFile.Logging.Debug
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", filepath, err)
	}

	return config, nil
}

// LoadConfigWithPrecedence resolves file > environment > defaults. File
// errors fall back to the environment.
func LoadConfigWithPrecedence(filepath string) *Config {
	config := LoadFromEnv()

	if filepath != "" {
		if fileConfig, err := LoadFromFile(filepath); err == nil {
			config = fileConfig
		} else {
			log.Printf("Ignoring config file: %v", err)
		}
	}

	return config
}
