// Command hashpw prints the stored form of a password, or writes it for an existing user.
//
//	hashpw              prompt for a password and print its hash
//	hashpw -user alice  prompt and store the hash for alice (needs DATABASE_URL)
package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"golang.org/x/term"

	"feedlog/internal/auth"
)

func main() {
	username := flag.String("user", "", "store the hash for this existing user")
	flag.Parse()

	if err := run(strings.TrimSpace(*username)); err != nil {
		fmt.Fprintf(os.Stderr, "hashpw: %v\n", err)
		os.Exit(1)
	}
}

func run(username string) error {
	password, err := readPassword(os.Stdin, os.Stderr)
	if err != nil {
		return err
	}
	if password == "" {
		return errors.New("password must not be empty")
	}

	hash := auth.HashPassword(password)
	if username == "" {
		fmt.Println(hash)
		return nil
	}

	_ = godotenv.Load()
	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		return errors.New("missing required env: DATABASE_URL")
	}

	database, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := auth.NewRepository(database).UpdatePasswordHash(ctx, username, hash); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return fmt.Errorf("user %q does not exist", username)
		}
		return err
	}

	fmt.Fprintf(os.Stderr, "password updated for %s\n", username)
	return nil
}

// readPassword prompts without echo on a terminal and reads one line otherwise.
func readPassword(in *os.File, prompt io.Writer) (string, error) {
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(prompt, "Password: ")
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(raw), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
