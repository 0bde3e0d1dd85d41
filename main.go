package main

import (
	"log"

	"github.com/leep66666/smart-job-assistant-backend/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
