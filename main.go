package main

import (
	"github.com/joho/godotenv"
	"github.com/neproger/docbot/cmd"
)

func main() {
	cmd.Execute()
}

func init() {
	// .env is optional outside local development
	godotenv.Load()
}
