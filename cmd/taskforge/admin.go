package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"syscall"
	"text/tabwriter"

	"golang.org/x/term"

	cfnats "github.com/Strob0t/TaskForge/internal/adapter/nats"
	"github.com/Strob0t/TaskForge/internal/adapter/natskv"
	"github.com/Strob0t/TaskForge/internal/adapter/postgres"
	"github.com/Strob0t/TaskForge/internal/config"
	"github.com/Strob0t/TaskForge/internal/domain/tenant"
	"github.com/Strob0t/TaskForge/internal/domain/user"
	"github.com/Strob0t/TaskForge/internal/logger"
	"github.com/Strob0t/TaskForge/internal/port/cache"
	"github.com/Strob0t/TaskForge/internal/service"
)

// runAdmin dispatches admin subcommands. Tenants and domains are only
// provisioned here; the HTTP API has no route for them.
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "migrate":
		return runAdminMigrate(args[1:])
	case "seed":
		return runAdminSeed(args[1:])
	case "add-tenant":
		return runAdminAddTenant(args[1:])
	case "add-domain":
		return runAdminAddDomain(args[1:])
	case "verify-domain":
		return runAdminVerifyDomain(args[1:])
	case "list-tenants":
		return runAdminListTenants(args[1:])
	case "create-user":
		return runAdminCreateUser(args[1:])
	case "list-users":
		return runAdminListUsers(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: taskforge admin <command> [options]

Commands:
  migrate          Apply, roll back or show database migrations
  seed             Create the development tenants (acme.test, beta.test)
  add-tenant       Create a tenant
  add-domain       Bind a host to a tenant
  verify-domain    Mark a host as verified so it starts resolving
  list-tenants     List tenants and their domains
  create-user      Create a user in the tenant of a host
  list-users       List the users of the tenant of a host
  help             Show this help message

Examples:
  taskforge admin migrate
  taskforge admin migrate --rollback 1
  taskforge admin seed
  taskforge admin add-tenant --name "Gamma Ltd"
  taskforge admin add-domain --tenant 3 --host gamma.example.com
  taskforge admin verify-domain --host gamma.example.com
  taskforge admin create-user --host acme.test --email ann@acme.test --name Ann
  taskforge admin list-users --host acme.test
`)
}

// adminDeps holds the services the admin commands work with.
type adminDeps struct {
	cfg      *config.Config
	tenants  *service.TenantService
	resolver *service.TenantResolver
	auth     *service.AuthService
	close    func()
}

// loadAdminDeps connects to PostgreSQL and, when configured, to the shared
// tenant cache so that domain changes evict running instances' entries.
func loadAdminDeps(ctx context.Context) (*adminDeps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Logging.Async = false
	log, _ := logger.New(cfg.Logging)
	slog.SetDefault(log)

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	closers := []func(){pool.Close}

	var shared cache.Cache
	if cfg.NATS.URL != "" && cfg.Cache.L2Bucket != "" {
		queue, err := cfnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("nats: %w", err)
		}
		closers = append(closers, func() { _ = queue.Close() })
		kvCache, err := natskv.Open(ctx, queue.JetStream(), cfg.Cache.L2Bucket, cfg.Cache.L2TTL)
		if err != nil {
			_ = queue.Close()
			pool.Close()
			return nil, fmt.Errorf("tenant cache: %w", err)
		}
		shared = kvCache
	}

	store := postgres.NewStore(pool)
	resolver := service.NewTenantResolver(store, shared, cfg.Cache.TTL, nil)
	return &adminDeps{
		cfg:      cfg,
		tenants:  service.NewTenantService(store, resolver),
		resolver: resolver,
		auth:     service.NewAuthService(store, cfg.Auth),
		close: func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		},
	}, nil
}

// tenantContext binds the tenant serving host to ctx, the same way a
// request to that host would be bound.
func (d *adminDeps) tenantContext(ctx context.Context, host string) (context.Context, error) {
	t, err := d.resolver.Resolve(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("host %s: %w", host, err)
	}
	return tenant.NewContext(ctx, *t), nil
}

func runAdminMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	rollback := fs.Int("rollback", 0, "roll back this many migrations instead of applying")
	status := fs.Bool("status", false, "print the current migration version")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ctx := context.Background()

	switch {
	case *status:
		v, err := postgres.MigrationVersion(ctx, cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		fmt.Printf("migration version: %d\n", v)
		return nil
	case *rollback > 0:
		if err := postgres.RollbackMigrations(ctx, cfg.Postgres.DSN, *rollback); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Rolled back %d migration(s)\n", *rollback)
		return nil
	default:
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "Migrations applied")
		return nil
	}
}

func runAdminSeed(args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	deps, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer deps.close()

	created, err := deps.tenants.Seed(ctx, service.DefaultSeed)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	if len(created) == 0 {
		fmt.Fprintln(os.Stderr, "Seed data already present.")
		return nil
	}
	for i := range created {
		fmt.Fprintf(os.Stderr, "Tenant created: %s (id=%d)\n", created[i].Name, created[i].ID)
	}
	return nil
}

func runAdminAddTenant(args []string) error {
	fs := flag.NewFlagSet("add-tenant", flag.ContinueOnError)
	name := fs.String("name", "", "tenant name (required)")
	host := fs.String("host", "", "bind and verify this host right away")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return errors.New("--name is required")
	}

	ctx := context.Background()
	deps, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer deps.close()

	t, err := deps.tenants.Create(ctx, tenant.CreateRequest{Name: *name})
	if err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Tenant created: %s (id=%d)\n", t.Name, t.ID)

	if *host != "" {
		d, err := deps.tenants.AddDomain(ctx, tenant.DomainRequest{TenantID: t.ID, Host: *host, Verified: true})
		if err != nil {
			return fmt.Errorf("add domain: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Domain bound: %s\n", d.Host)
	}
	return nil
}

func runAdminAddDomain(args []string) error {
	fs := flag.NewFlagSet("add-domain", flag.ContinueOnError)
	tenantID := fs.Int64("tenant", 0, "tenant id (required)")
	host := fs.String("host", "", "host name (required)")
	verified := fs.Bool("verified", false, "mark the domain verified immediately")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *tenantID <= 0 {
		return errors.New("--tenant is required")
	}
	if *host == "" {
		return errors.New("--host is required")
	}

	ctx := context.Background()
	deps, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer deps.close()

	d, err := deps.tenants.AddDomain(ctx, tenant.DomainRequest{TenantID: *tenantID, Host: *host, Verified: *verified})
	if err != nil {
		return fmt.Errorf("add domain: %w", err)
	}
	state := "unverified"
	if d.Verified() {
		state = "verified"
	}
	fmt.Fprintf(os.Stderr, "Domain bound: %s -> tenant %d (%s)\n", d.Host, d.TenantID, state)
	return nil
}

func runAdminVerifyDomain(args []string) error {
	fs := flag.NewFlagSet("verify-domain", flag.ContinueOnError)
	host := fs.String("host", "", "host name (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *host == "" {
		return errors.New("--host is required")
	}

	ctx := context.Background()
	deps, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer deps.close()

	if err := deps.tenants.VerifyDomain(ctx, tenant.NormalizeHost(*host)); err != nil {
		return fmt.Errorf("verify domain: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Domain verified: %s\n", tenant.NormalizeHost(*host))
	return nil
}

func runAdminListTenants(args []string) error {
	fs := flag.NewFlagSet("list-tenants", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	deps, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer deps.close()

	tenants, err := deps.tenants.List(ctx)
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}
	if len(tenants) == 0 {
		fmt.Println("No tenants found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tHOST\tVERIFIED")
	for i := range tenants {
		domains, err := deps.tenants.Domains(ctx, tenants[i].ID)
		if err != nil {
			return fmt.Errorf("list domains of tenant %d: %w", tenants[i].ID, err)
		}
		if len(domains) == 0 {
			_, _ = fmt.Fprintf(w, "%d\t%s\t-\t-\n", tenants[i].ID, tenants[i].Name)
		}
		for j := range domains {
			_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%t\n", tenants[i].ID, tenants[i].Name, domains[j].Host, domains[j].Verified())
		}
	}
	return w.Flush()
}

func runAdminCreateUser(args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
	host := fs.String("host", "", "verified host of the tenant (required)")
	email := fs.String("email", "", "user email address (required)")
	name := fs.String("name", "", "user display name (required)")
	password := fs.String("password", "", "password (prompted if not provided)") //nolint:gosec // CLI flag
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *host == "" {
		return errors.New("--host is required")
	}
	if *email == "" {
		return errors.New("--email is required")
	}
	if *name == "" {
		return errors.New("--name is required")
	}

	pass := *password
	if pass == "" {
		var err error
		pass, err = promptPassword("Password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		confirm, err := promptPassword("Confirm password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		if pass != confirm {
			return errors.New("passwords do not match")
		}
	}

	ctx := context.Background()
	deps, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer deps.close()

	tctx, err := deps.tenantContext(ctx, *host)
	if err != nil {
		return err
	}
	u, err := deps.auth.Register(tctx, user.RegisterRequest{Email: *email, Name: *name, Password: pass})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	fmt.Fprintf(os.Stderr, "User created: %s (id=%d, tenant=%d)\n", u.Email, u.ID, u.TenantID)
	return nil
}

func runAdminListUsers(args []string) error {
	fs := flag.NewFlagSet("list-users", flag.ContinueOnError)
	host := fs.String("host", "", "verified host of the tenant (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *host == "" {
		return errors.New("--host is required")
	}

	ctx := context.Background()
	deps, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer deps.close()

	tctx, err := deps.tenantContext(ctx, *host)
	if err != nil {
		return err
	}
	users, err := deps.auth.ListUsers(tctx)
	if err != nil {
		return err
	}

	if len(users) == 0 {
		fmt.Println("No users found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tEMAIL\tNAME\tCREATED")
	for i := range users {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			strconv.FormatInt(users[i].ID, 10), users[i].Email, users[i].Name, users[i].CreatedAt.Format("2006-01-02"))
	}
	return w.Flush()
}

// promptPassword reads a password from the terminal without echoing.
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin)) //nolint:unconvert // int conversion needed on some platforms
	fmt.Fprintln(os.Stderr)                         // newline after password input
	if err != nil {
		return "", err
	}
	return string(b), nil
}
