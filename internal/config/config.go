package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel          string `yaml:"log-level" env-default:"info"`
	HTTPPort          string `yaml:"http-port" env-default:"9090"`
	SocketPort        string `yaml:"socket-port" env-default:"8080"`
	Redis             Redis  `yaml:"redis"`
	SQLiteStoragePath string `yaml:"sqlite-storage-path" env-default:"tictactoe.db"`
	JWTSecretKey      string `yaml:"jwt-secret-key"`
	Game              Game   `yaml:"game"`
}

type Redis struct {
	Host string `yaml:"host" env-default:"localhost"`
	Port string `yaml:"port" env-default:"6379"`
}

type Game struct {
	MaxPieces       int    `yaml:"max-pieces" env-default:"3"`
	MovementRule    string `yaml:"movement-rule" env-default:"any"`
	DefaultRoomCode string `yaml:"default-room-code" env-default:"PUBLIC"`

	// Grace windows before an empty room is evicted from memory. The shared
	// default room lingers longer because anyone may wander back into it.
	RoomGrace        time.Duration `yaml:"room-grace" env-default:"5m"`
	DefaultRoomGrace time.Duration `yaml:"default-room-grace" env-default:"30m"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
