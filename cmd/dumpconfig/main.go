package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/ncecere/open_voice_gateway/internal/config"
)

func main() {
	configFile := flag.String("config", "", "path to voice.yaml (defaults to the standard search path)")
	flag.Parse()

	cfg, err := config.Load(config.Options{ConfigFile: *configFile})
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cfg.Redacted()); err != nil {
		log.Fatalf("encode config: %v", err)
	}
}
