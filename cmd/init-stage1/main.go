//go:build linux

package main

import (
	"log"

	"github.com/cozystack/init-stage1/internal/boot"
	"github.com/cozystack/init-stage1/internal/diag"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("init-stage1: ")

	log.Print(diag.Banner)

	if err := boot.Run(boot.DefaultConfig()); err != nil {
		log.Fatalf("boot failed: %+v", err)
	}
}
