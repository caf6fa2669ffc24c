package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

// Smoke test against a running gateway: log in with the seeded admin account
// and hit a protected route with the issued token.
func main() {
	base := os.Getenv("AIGATE_BASE_URL")
	if base == "" {
		base = "http://localhost:4000"
	}
	email := os.Getenv("AIGATE_SMOKE_EMAIL")
	if email == "" {
		email = "admin@example.com"
	}
	password := os.Getenv("AIGATE_SMOKE_PASSWORD")
	if password == "" {
		password = "admin123"
	}

	client := &http.Client{Timeout: 5 * time.Second}

	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := client.Post(base+"/api/v1/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("login status: %d", resp.StatusCode)
	}

	var login struct {
		Success bool `json:"success"`
		Data    struct {
			AccessToken string `json:"access_token"`
			ExpiresIn   int    `json:"expires_in"`
			User        struct {
				Email string `json:"email"`
				Role  string `json:"role"`
			} `json:"user"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		log.Fatalf("decode login response: %v", err)
	}
	if !login.Success || login.Data.AccessToken == "" {
		log.Fatalf("no token issued: %+v", login)
	}

	req, err := http.NewRequest(http.MethodGet, base+"/api/v1/test", nil)
	if err != nil {
		log.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+login.Data.AccessToken)
	probe, err := client.Do(req)
	if err != nil {
		log.Fatalf("protected request: %v", err)
	}
	defer probe.Body.Close()
	if probe.StatusCode != http.StatusOK {
		log.Fatalf("protected route status: %d", probe.StatusCode)
	}

	fmt.Printf("✅ gateway smoke test passed: %s (%s), token ttl %ds\n",
		login.Data.User.Email, login.Data.User.Role, login.Data.ExpiresIn)
}
