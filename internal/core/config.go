package core

import (
	"time"
)

type Config struct {
	Database DatabaseConfig
	Spotify  SpotifyConfig
	Mail     MailConfig
	Poll     PollConfig
	Dispatch DispatchConfig
	Server   ServerConfig
	Log      LogConfig
}

type DatabaseConfig struct {
	Path string
}

type SpotifyConfig struct {
	RequestsPerSecond float64
	FetchTimeout      time.Duration
}

type MailConfig struct {
	Sender      string
	Host        string
	Port        int
	Password    string
	DialTimeout time.Duration
	SendTimeout time.Duration
}

type PollConfig struct {
	Interval time.Duration
}

type DispatchConfig struct {
	Concurrency int
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "./playlistwatch.db",
		},
		Spotify: SpotifyConfig{
			RequestsPerSecond: 5,
			FetchTimeout:      30 * time.Second,
		},
		Mail: MailConfig{
			Port:        465,
			DialTimeout: 30 * time.Second,
			SendTimeout: 60 * time.Second,
		},
		Poll: PollConfig{
			Interval: time.Hour,
		},
		Dispatch: DispatchConfig{
			Concurrency: 4,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
