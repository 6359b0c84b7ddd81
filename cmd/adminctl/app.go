package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"sigs.k8s.io/yaml"

	"github.com/daap14/adminportal/internal/auth"
	"github.com/daap14/adminportal/internal/password"
)

const passwordEnv = "ADMINCTL_PASSWORD"

const usage = `usage: adminctl <command> [args]

commands:
  hash [--cost N] <password>...         print a bcrypt digest per password
  migrate up|status                     apply or list schema migrations
  set-admin-password <username>         read the password from ADMINCTL_PASSWORD or stdin
  set-admin-email <username> <email>    set the address used for verification codes
  seed -f <file>                        upsert admins from a YAML file
`

var errUsage = errors.New("invalid usage")

type migrator interface {
	Up(ctx context.Context) ([]string, error)
	Status(ctx context.Context) ([]string, error)
}

type app struct {
	admins   auth.AdminRepository
	migrator migrator
	hasher   *password.Hasher
	stdin    io.Reader
	stdout   io.Writer
	getenv   func(string) string
}

// seedFile is the YAML layout accepted by the seed command.
type seedFile struct {
	Admins []seedAdmin `json:"admins"`
}

type seedAdmin struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	PasswordHash string `json:"passwordHash"`
}

func needsDatabase(args []string) bool {
	if len(args) == 0 {
		return false
	}
	switch args[0] {
	case "migrate", "set-admin-password", "set-admin-email", "seed":
		return true
	}
	return false
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.stdout, usage)
		return errUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "hash":
		return a.hash(rest)
	case "migrate":
		return a.migrate(ctx, rest)
	case "set-admin-password":
		return a.setAdminPassword(ctx, rest)
	case "set-admin-email":
		return a.setAdminEmail(ctx, rest)
	case "seed":
		return a.seed(ctx, rest)
	case "help", "-h", "--help":
		fmt.Fprint(a.stdout, usage)
		return nil
	default:
		fmt.Fprint(a.stdout, usage)
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func (a *app) hash(args []string) error {
	fs := pflag.NewFlagSet("hash", pflag.ContinueOnError)
	cost := fs.Int("cost", 0, "bcrypt cost (defaults to BCRYPT_COST)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%w: hash needs at least one password", errUsage)
	}

	hasher := a.hasher
	if *cost != 0 {
		hasher = password.NewHasher(*cost)
	}
	for _, pw := range fs.Args() {
		digest, err := hasher.Hash(pw)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, digest)
	}
	return nil
}

func (a *app) migrate(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: migrate needs up or status", errUsage)
	}

	switch args[0] {
	case "up":
		applied, err := a.migrator.Up(ctx)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Fprintln(a.stdout, "schema is up to date")
		}
		for _, name := range applied {
			fmt.Fprintln(a.stdout, "applied", name)
		}
		return nil
	case "status":
		pending, err := a.migrator.Status(ctx)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			fmt.Fprintln(a.stdout, "no pending migrations")
		}
		for _, name := range pending {
			fmt.Fprintln(a.stdout, "pending", name)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown migrate action %q", errUsage, args[0])
	}
}

func (a *app) setAdminPassword(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: set-admin-password needs a username", errUsage)
	}

	plaintext, err := a.readPassword()
	if err != nil {
		return err
	}
	digest, err := a.hasher.Hash(plaintext)
	if err != nil {
		return err
	}
	if err := a.admins.UpdatePassword(ctx, args[0], digest); err != nil {
		return fmt.Errorf("setting password for %s: %w", args[0], err)
	}
	fmt.Fprintln(a.stdout, "password updated for", args[0])
	return nil
}

func (a *app) setAdminEmail(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: set-admin-email needs a username and an email", errUsage)
	}

	email := strings.TrimSpace(args[1])
	if !strings.Contains(email, "@") {
		return fmt.Errorf("%w: %q is not an email address", errUsage, email)
	}
	if err := a.admins.UpdateEmail(ctx, args[0], email); err != nil {
		return fmt.Errorf("setting email for %s: %w", args[0], err)
	}
	fmt.Fprintln(a.stdout, "email updated for", args[0])
	return nil
}

func (a *app) seed(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("seed", pflag.ContinueOnError)
	file := fs.StringP("file", "f", "", "YAML file listing admins")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("%w: seed needs -f <file>", errUsage)
	}

	raw, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("reading seed file: %w", err)
	}
	admins, err := a.parseSeed(raw)
	if err != nil {
		return err
	}

	for i := range admins {
		if err := a.admins.Upsert(ctx, &admins[i]); err != nil {
			return fmt.Errorf("seeding admin %s: %w", admins[i].Username, err)
		}
		fmt.Fprintln(a.stdout, "seeded admin", admins[i].Username)
	}
	return nil
}

// parseSeed validates every entry before anything is written. Plaintext
// passwords are hashed; passwordHash values must already be bcrypt digests.
func (a *app) parseSeed(raw []byte) ([]auth.Admin, error) {
	var f seedFile
	if err := yaml.UnmarshalStrict(raw, &f); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}
	if len(f.Admins) == 0 {
		return nil, errors.New("seed file lists no admins")
	}

	seen := make(map[string]bool, len(f.Admins))
	out := make([]auth.Admin, 0, len(f.Admins))
	for i, s := range f.Admins {
		username := strings.TrimSpace(s.Username)
		if username == "" {
			return nil, fmt.Errorf("admin #%d: username is required", i+1)
		}
		if seen[username] {
			return nil, fmt.Errorf("admin %s: listed twice", username)
		}
		seen[username] = true

		digest := s.PasswordHash
		switch {
		case s.Password != "" && s.PasswordHash != "":
			return nil, fmt.Errorf("admin %s: set password or passwordHash, not both", username)
		case s.Password != "":
			h, err := a.hasher.Hash(s.Password)
			if err != nil {
				return nil, fmt.Errorf("admin %s: %w", username, err)
			}
			digest = h
		case !password.LooksLikeDigest(s.PasswordHash):
			return nil, fmt.Errorf("admin %s: passwordHash must be a bcrypt digest", username)
		}

		admin := auth.Admin{Username: username, PasswordHash: digest}
		if email := strings.TrimSpace(s.Email); email != "" {
			admin.Email = &email
		}
		out = append(out, admin)
	}
	return out, nil
}

func (a *app) readPassword() (string, error) {
	if pw := a.getenv(passwordEnv); pw != "" {
		return pw, nil
	}
	line, err := bufio.NewReader(a.stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", fmt.Errorf("%w: no password given in %s or on stdin", errUsage, passwordEnv)
	}
	return pw, nil
}
