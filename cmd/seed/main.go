// seed creates (or promotes) an ADMIN account. Run after migrations:
//
//	SEED_ADMIN_EMAIL=admin@example.com go run ./cmd/seed
//
// The password comes from SEED_ADMIN_PASSWORD or, when unset, an interactive prompt.
// Idempotent: an existing account with that email is promoted to ADMIN instead.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/term"

	"fieldbook/backend/internal/config"
	"fieldbook/backend/internal/db"
	"fieldbook/backend/internal/security"
	userdomain "fieldbook/backend/internal/user/domain"
	userrepo "fieldbook/backend/internal/user/repository"
)

const minPasswordLen = 6

func main() {
	email := flag.String("email", os.Getenv("SEED_ADMIN_EMAIL"), "admin email")
	first := flag.String("first-name", "Admin", "admin first name")
	last := flag.String("last-name", "User", "admin last name")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.StoreDriver != "postgres" {
		log.Fatal("seed: STORE_DRIVER=memory has nothing to seed")
	}
	addr := userdomain.NormalizeEmail(*email)
	if addr == "" {
		log.Fatal("seed: -email or SEED_ADMIN_EMAIL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()
	users := userrepo.NewPostgresRepository(conn)

	existing, err := users.GetByEmail(ctx, addr)
	if err != nil {
		log.Fatalf("lookup %s: %v", addr, err)
	}
	now := time.Now().UTC()
	if existing != nil {
		if existing.Role == userdomain.RoleAdmin {
			log.Printf("%s is already an admin. Skipping.", addr)
			return
		}
		if err := users.UpdateRole(ctx, existing.ID, userdomain.RoleAdmin, now); err != nil {
			log.Fatalf("promote %s: %v", addr, err)
		}
		log.Printf("Promoted %s to ADMIN.", addr)
		return
	}

	password, err := readPassword()
	if err != nil {
		log.Fatalf("password: %v", err)
	}
	hash, err := security.NewPasswordHasher(cfg.PasswordHasher, cfg.BcryptCost).Hash(password)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}
	u := &userdomain.User{
		ID:           uuid.NewString(),
		FirstName:    *first,
		LastName:     *last,
		Email:        addr,
		PasswordHash: hash,
		Role:         userdomain.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := users.Create(ctx, u); err != nil {
		log.Fatalf("create admin: %v", err)
	}
	log.Println("Seed completed successfully.")
	fmt.Printf("Admin login: %s\n", addr)
}

func readPassword() (string, error) {
	if p := os.Getenv("SEED_ADMIN_PASSWORD"); p != "" {
		return checkPassword(p)
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("SEED_ADMIN_PASSWORD is not set and stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, "Admin password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	fmt.Fprint(os.Stderr, "Repeat password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return checkPassword(string(first))
}

func checkPassword(p string) (string, error) {
	if len(strings.TrimSpace(p)) < minPasswordLen {
		return "", fmt.Errorf("must be at least %d characters", minPasswordLen)
	}
	return p, nil
}
