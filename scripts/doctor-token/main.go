package main

import (
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Mints a doctor console JWT for local testing. The server has no login
// endpoint; the demo issues tokens out of band.
func main() {
	secret := os.Getenv("DOCTOR_JWT_SECRET")
	if secret == "" {
		fmt.Println("Error: DOCTOR_JWT_SECRET environment variable not set")
		os.Exit(1)
	}

	subject := "doctor"
	if len(os.Args) > 1 {
		subject = os.Args[1]
	}

	ttl := 24 * time.Hour
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		fmt.Printf("Error signing token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Doctor token for %q (valid %s):\n\n%s\n", subject, ttl, signed)
	fmt.Printf("\nexport DOCTOR_TOKEN=%s\n", signed)
}
