// Command generate-jwt prints an admin token for the blog API.
//
//	API_JWT_SECRET=... go run scripts/generate-jwt.go -sub ops -ttl 2h
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/braincargo/brainblog/internal/middleware"
)

func main() {
	sub := flag.String("sub", "admin", "token subject")
	ttl := flag.Duration("ttl", middleware.DefaultTokenTTL, "token lifetime")
	flag.Parse()

	issuer := os.Getenv("API_JWT_ISSUER")
	if issuer == "" {
		issuer = "brainblog"
	}

	token, err := middleware.IssueToken(os.Getenv("API_JWT_SECRET"), issuer, *sub, *ttl, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v (set API_JWT_SECRET)\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
