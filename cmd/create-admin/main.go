package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/stemsi/exstem-admin/internal/config"
	"github.com/stemsi/exstem-admin/internal/database"
	"github.com/stemsi/exstem-admin/internal/logger"
	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/repository"
	"github.com/stemsi/exstem-admin/internal/service"
	"github.com/stemsi/exstem-admin/internal/validator"
)

const minPasswordLen = 8

type options struct {
	email         string
	name          string
	roleID        int
	passwordStdin bool
}

func main() {
	var opts options
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account",
		Long: "Creates an admin user with the given role. Values not passed as flags " +
			"are prompted for; the password is never accepted as a flag.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.email, "email", "", "login email")
	f.StringVar(&opts.name, "name", "", "full name")
	f.IntVar(&opts.roleID, "role", model.SuperAdminRoleID, "role ID")
	f.BoolVar(&opts.passwordStdin, "password-stdin", false, "read the password from the first line of stdin")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer pool.Close()
	gdb, err := database.NewGorm(pool, cfg.SlowQuery, log)
	if err != nil {
		return err
	}

	roles := repository.NewRoleRepository(pool)
	users := repository.NewUserRepository(gdb)
	// Only password hashing is needed from auth, so no Redis.
	auth := service.NewAuthService(cfg, nil, users, roles, log)
	userService := service.NewUserService(users, roles,
		repository.NewSchoolRepository(gdb), repository.NewClassLevelRepository(gdb), auth, log)

	role, err := roles.GetRoleByID(ctx, opts.roleID)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("role %d does not exist; run sync-permissions or create it first", opts.roleID)
	}
	if err != nil {
		return err
	}

	in := bufio.NewReader(os.Stdin)
	p := prompter{in: in, out: os.Stderr}
	if opts.name == "" {
		opts.name = p.line("Full name: ")
	}
	if opts.email == "" {
		opts.email = p.line("Email: ")
	}
	password, err := p.password(opts.passwordStdin)
	if err != nil {
		return err
	}

	req := model.CreateUserRequest{
		Email:    strings.TrimSpace(opts.email),
		Password: password,
		Kind:     model.UserAdmin,
		RoleID:   &role.ID,
		Profile:  model.ProfileRequest{FullName: strings.TrimSpace(opts.name)},
	}
	if fields := validator.Struct(&req); fields != nil {
		for field, msg := range fields {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", field, msg)
		}
		return errors.New("invalid admin details")
	}

	admin, err := userService.Create(ctx, req)
	if errors.Is(err, service.ErrDuplicate) {
		return fmt.Errorf("an account with email %q already exists", opts.email)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Created admin #%d %s <%s> with role %q\n", admin.ID, admin.DisplayName(), admin.Email, role.Name)
	return nil
}

type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func (p prompter) line(label string) string {
	fmt.Fprint(p.out, label)
	s, _ := p.in.ReadString('\n')
	return strings.TrimSpace(s)
}

// password reads from stdin when asked to, otherwise prompts twice without
// echo.
func (p prompter) password(fromStdin bool) (string, error) {
	var pw string
	if fromStdin {
		pw = strings.TrimRight(p.line(""), "\r\n")
	} else {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return "", errors.New("stdin is not a terminal; use --password-stdin")
		}
		first, err := p.hidden(fd, "Password: ")
		if err != nil {
			return "", err
		}
		second, err := p.hidden(fd, "Repeat password: ")
		if err != nil {
			return "", err
		}
		if first != second {
			return "", errors.New("passwords do not match")
		}
		pw = first
	}
	if len(pw) < minPasswordLen {
		return "", fmt.Errorf("password must be at least %d characters", minPasswordLen)
	}
	return pw, nil
}

func (p prompter) hidden(fd int, label string) (string, error) {
	fmt.Fprint(p.out, label)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}
