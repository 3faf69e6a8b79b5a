package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var Logger *logrus.Entry

// Config is the decoded limb.toml. The matrix and ui packages also read
// the viper handle directly for reloadable settings.
type Config struct {
	Server string `mapstructure:"server"`
	Debug  bool   `mapstructure:"debug"`
	Trace  bool   `mapstructure:"trace"`
	Gops   bool   `mapstructure:"gops"`

	Matrix Matrix `mapstructure:"matrix"`
}

type Matrix struct {
	BacklogLimit    int    `mapstructure:"backloglimit"`
	PageLimit       int    `mapstructure:"pagelimit"`
	ThumbnailWidth  int    `mapstructure:"thumbnailwidth"`
	ThumbnailHeight int    `mapstructure:"thumbnailheight"`
	ThumbnailMethod string `mapstructure:"thumbnailmethod"`
}

func LoadConfig(cfgfile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(cfgfile)

	v.SetEnvPrefix("limb")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	// use environment variables
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// run on defaults when no config file exists
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error reading config file %s", err)
		}

		return v, nil
	}

	// reload config on file changes
	if runtime.GOOS != "illumos" {
		v.WatchConfig()
	}

	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("matrix.backloglimit", 30)
	v.SetDefault("matrix.pagelimit", 20)
	v.SetDefault("matrix.thumbnailwidth", 320)
	v.SetDefault("matrix.thumbnailheight", 180)
	v.SetDefault("matrix.thumbnailmethod", "scale")
}

func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config

	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))

	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("error decoding config %s", err)
	}

	return &cfg, nil
}
