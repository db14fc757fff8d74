package main

import (
	"fmt"
	"os"

	"github.com/yungbote/neurobridge-backend/internal/registryapp"
)

func main() {
	a, err := registryapp.New()
	if err != nil {
		fmt.Printf("Failed to initialize registry: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	fmt.Printf("Registry listening on :%s\n", a.Cfg.Port)
	if err := a.Run(":" + a.Cfg.Port); err != nil {
		a.Log.Warn("registry server failed", "error", err)
	}
}
