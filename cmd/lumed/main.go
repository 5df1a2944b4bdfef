package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/jpcarvalho/lume/internal/config"
	"github.com/jpcarvalho/lume/internal/daemon"
	"github.com/jpcarvalho/lume/internal/session"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	flag.Parse()

	cfgPath := session.ConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: loading %s: %v\n", cfgPath, err)
		os.Exit(1)
	}

	profile := session.Resolve(*profileFlag, cfg.DefaultProfile)
	if err := session.ValidateName(profile); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	daemon.New(daemon.Params{Profile: profile, Config: cfg}).Run()
}
