// Command devtoken mints a bearer token for local testing against the API.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/auth"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	userID := flag.Int64("user", 1, "user id")
	email := flag.String("email", "", "email claim")
	role := flag.String("role", string(auth.RoleCustomer), "customer, staff or admin")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is required")
	}
	tok, err := auth.Sign([]byte(secret), auth.Identity{
		UserID: *userID,
		Email:  *email,
		Role:   auth.NormalizeRole(*role),
	}, *ttl)
	if err != nil {
		log.Fatalf("sign: %v", err)
	}
	fmt.Println(tok)
}
