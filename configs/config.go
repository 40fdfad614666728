package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Prettify bool   `mapstructure:"prettify"`
}

type ArchiveConfig struct {
	URL            string `mapstructure:"url"`
	SquidId        string `mapstructure:"squidId"`
	PollIntervalMs int    `mapstructure:"pollIntervalMs"`
}

type RangeConfig struct {
	FromBlock  int64 `mapstructure:"fromBlock"`
	UntilBlock int64 `mapstructure:"untilBlock"`
}

type ChainConfig struct {
	ID  string `mapstructure:"id"`
	URL string `mapstructure:"url"`
}

type MetricsConfig struct {
	Port int `mapstructure:"port"`
}

type OpsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type StorageConfig struct {
	Progress StorageConnectionConfig `mapstructure:"progress"`
}

type StorageConnectionConfig struct {
	Clickhouse *ClickhouseConfig `mapstructure:"clickhouse"`
	Postgres   *PostgresConfig   `mapstructure:"postgres"`
	Redis      *RedisConfig      `mapstructure:"redis"`
	Pebble     *PebbleConfig     `mapstructure:"pebble"`
	Badger     *BadgerConfig     `mapstructure:"badger"`
	Memory     *MemoryConfig     `mapstructure:"memory"`
}

type ClickhouseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	Database       string `mapstructure:"database"`
	SSLMode        string `mapstructure:"sslMode"`
	MaxOpenConns   int    `mapstructure:"maxOpenConns"`
	MaxIdleConns   int    `mapstructure:"maxIdleConns"`
	ConnectTimeout int    `mapstructure:"connectTimeout"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"poolSize"`
}

type PebbleConfig struct {
	Path string `mapstructure:"path"`
}

type BadgerConfig struct {
	Path string `mapstructure:"path"`
}

type MemoryConfig struct{}

type PublisherEntityConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	TopicName string `mapstructure:"topicName"`
}

type PublisherConfig struct {
	Enabled      bool                  `mapstructure:"enabled"`
	Brokers      string                `mapstructure:"brokers"`
	Username     string                `mapstructure:"username"`
	Password     string                `mapstructure:"password"`
	Blocks       PublisherEntityConfig `mapstructure:"blocks"`
	Logs         PublisherEntityConfig `mapstructure:"logs"`
	Transactions PublisherEntityConfig `mapstructure:"transactions"`
}

type LogFilterConfig struct {
	FromBlock  int64      `mapstructure:"fromBlock"`
	UntilBlock int64      `mapstructure:"untilBlock"`
	Address    []string   `mapstructure:"address"`
	Topics     [][]string `mapstructure:"topics"`
	Fields     []string   `mapstructure:"fields"`
}

type TxFilterConfig struct {
	FromBlock  int64    `mapstructure:"fromBlock"`
	UntilBlock int64    `mapstructure:"untilBlock"`
	Address    []string `mapstructure:"address"`
	Sighash    []string `mapstructure:"sighash"`
	Fields     []string `mapstructure:"fields"`
}

type FiltersConfig struct {
	Logs         []LogFilterConfig `mapstructure:"logs"`
	Transactions []TxFilterConfig  `mapstructure:"transactions"`
}

type Config struct {
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Range     RangeConfig     `mapstructure:"range"`
	Chain     ChainConfig     `mapstructure:"chain"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Ops       OpsConfig       `mapstructure:"ops"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Filters   FiltersConfig   `mapstructure:"filters"`
}

var Cfg Config

func LoadConfig(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file, %s", err)
		}
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath("./configs")

		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file, %s", err)
		}

		viper.SetConfigName("secrets")
		err := viper.MergeInConfig()
		if err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return fmt.Errorf("error loading secrets file: %v", err)
			}
		}
	}

	// sets e.g. ARCHIVE_URL to archive.url
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)

	viper.AutomaticEnv()

	err := viper.Unmarshal(&Cfg)
	if err != nil {
		return fmt.Errorf("error unmarshalling config: %v", err)
	}

	return nil
}
