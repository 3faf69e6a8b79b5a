package main

import (
	"fmt"
	"os"

	"github.com/google/gops/agent"
	prefixed "github.com/matterbridge/logrus-prefixed-formatter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/limbchat/limb/config"
	"github.com/limbchat/limb/matrix"
	"github.com/limbchat/limb/session"
	"github.com/limbchat/limb/ui"
)

var (
	version = "0.1.0"
	githash string

	logger *logrus.Entry
)

func main() {
	ourlog := logrus.New()
	ourlog.Formatter = &prefixed.TextFormatter{
		PrefixPadding: 14,
		FullTimestamp: true,
	}
	logger = ourlog.WithFields(logrus.Fields{"prefix": "main"})

	flagConfig := pflag.String("conf", "limb.toml", "config file")
	flagDebug := pflag.Bool("debug", false, "enable debug logging")
	flagTrace := pflag.Bool("trace", false, "enable trace logging")
	flagGops := pflag.Bool("gops", false, "enable gops agent")
	flagVersion := pflag.Bool("version", false, "show version")
	pflag.Parse()

	if *flagVersion {
		fmt.Printf("version: %s %s\n", version, githash)
		return
	}

	v, err := config.LoadConfig(*flagConfig)
	if err != nil {
		logger.Fatalf("unable to load config: %v", err)
	}

	cfg, err := config.Decode(v)
	if err != nil {
		logger.Fatalf("unable to decode config: %v", err)
	}

	if *flagDebug || cfg.Debug {
		logger.Info("enabling debug")
		ourlog.SetLevel(logrus.DebugLevel)
		v.Set("debug", true)
	}

	if *flagTrace || cfg.Trace {
		logger.Info("enabling trace")
		ourlog.SetLevel(logrus.TraceLevel)
		v.Set("trace", true)
	}

	if *flagGops || cfg.Gops {
		if err := agent.Listen(agent.Options{}); err != nil {
			logger.Errorf("unable to start gops agent: %v", err)
		} else {
			defer agent.Close()
		}
	}

	store, err := session.Open()
	if err != nil {
		logger.Fatalf("unable to open session store: %v", err)
	}
	defer store.Close()

	client, err := matrix.Restore(v, store)
	if err != nil {
		// no usable session: the ui starts with the auth form
		logger.Debugf("no session restored: %v", err)
		client = nil
	}

	if err := ui.Run(v, store, client); err != nil {
		logger.Errorf("terminal program failed: %v", err)
		os.Exit(1)
	}
}
