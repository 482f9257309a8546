package main

import (
	"log"

	"github.com/relayops/sftprelay/core/infra/buildinfo"
	"github.com/relayops/sftprelay/core/infra/config"
	"github.com/relayops/sftprelay/core/relay/gateway"
)

func main() {
	log.Println("sftp relay starting...")
	buildinfo.Log("sftprelay")
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := gateway.Run(cfg); err != nil {
		log.Fatalf("gateway error: %v", err)
	}
}
