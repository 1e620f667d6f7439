package main

import (
	"github.com/braincargo/brainblog/internal/cli"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	cli.Execute()
}
