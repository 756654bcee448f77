package config

import (
	"errors"
	"fmt"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"path/filepath"
	"strings"
)

var (
	ConfigPath  = "./config/"
	ConfigFile  = ConfigPath + "config.json"
	LogPath     = "./logs/"
	BackendLog  = "backend"
	LocalnetLog = "localnet"
	CliLog      = "crowdsale"
	StoreLog    = "store"
)

const (
	DriverMysql    = "mysql"
	DriverPostgres = "postgres"
)

type Database struct {
	Driver string `mapstructure:"driver" json:"driver"`
	Host   string `mapstructure:"host" json:"host"`
	Port   int    `mapstructure:"port" json:"port"`
	Scheme string `mapstructure:"scheme" json:"scheme"`
	User   string `mapstructure:"user" json:"user"`
	Passwd string `mapstructure:"passwd" json:"passwd"`
}

// Enabled reports whether an execution journal is configured.
func (d *Database) Enabled() bool {
	return d.Driver != ""
}

func (d *Database) DSN() (string, error) {
	switch d.Driver {
	case DriverMysql:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True", d.User, d.Passwd, d.Host, d.Port, d.Scheme), nil
	case DriverPostgres:
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable", d.Host, d.Port, d.User, d.Passwd, d.Scheme), nil
	default:
		return "", fmt.Errorf("unknown database driver %q", d.Driver)
	}
}

type Config struct {
	Rpc       string   `mapstructure:"rpc" json:"rpc"`
	Listen    string   `mapstructure:"listen" json:"listen"`
	ProgramId string   `mapstructure:"program_id" json:"program_id"`
	Key       string   `mapstructure:"key" json:"key"`
	WorkSpace string   `mapstructure:"workspace" json:"workspace"`
	Debug     bool     `mapstructure:"debug" json:"debug"`
	Airdrop   uint64   `mapstructure:"airdrop" json:"airdrop"`
	Retries   uint64   `mapstructure:"retries" json:"retries"`
	MaxConns  int      `mapstructure:"max_conns" json:"max_conns"`
	Notify    string   `mapstructure:"notify" json:"notify"`
	DB        Database `mapstructure:"db" json:"db"`
}

// Program parses the configured crowdsale program id.
func (c *Config) Program() (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(c.ProgramId)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("program_id %q: %w", c.ProgramId, err)
	}
	return key, nil
}

// LoadEnv exports the variables of dir/.env and dir/.env.local, later files
// winning. Missing files are skipped.
func LoadEnv(dir string) {
	for _, name := range []string{".env", ".env.local"} {
		_ = godotenv.Overload(filepath.Join(dir, name))
	}
}

// Load reads file (json) on top of the defaults. With an empty file name
// config.json is looked up in . and ConfigPath and may be absent. Every key
// can be overridden by a CROWDSALE_* environment variable, including those
// set in ConfigPath/.env.
func Load(file string) (*Config, error) {
	LoadEnv(ConfigPath)
	v := viper.New()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("json")
		v.AddConfigPath(".")
		v.AddConfigPath(ConfigPath)
	}
	v.SetEnvPrefix("CROWDSALE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("rpc", rpc.LocalNet_RPC)
	v.SetDefault("listen", "127.0.0.1:8899")
	v.SetDefault("program_id", "4tAj8UbxCCVChy785xKz4ZK17vKch3CAbwM8co7u8VUb")
	v.SetDefault("key", "~/.config/solana/id.json")
	v.SetDefault("workspace", LogPath)
	v.SetDefault("debug", false)
	v.SetDefault("airdrop", uint64(0))
	v.SetDefault("retries", uint64(5))
	v.SetDefault("max_conns", 256)
	v.SetDefault("notify", "")
	v.SetDefault("db.driver", "")
	v.SetDefault("db.host", "127.0.0.1")
	v.SetDefault("db.port", 3306)
	v.SetDefault("db.scheme", "crowdsale")
	v.SetDefault("db.user", "root")
	v.SetDefault("db.passwd", "")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}
