package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"pagewright/internal/app"
	"pagewright/internal/config"
	"pagewright/internal/db"
	"pagewright/internal/domain"
	"pagewright/internal/engine"
	"pagewright/internal/engine/auth"
	"pagewright/internal/migrate"
	"pagewright/internal/repo"
	"pagewright/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "pw",
	Short: "Pagewright CLI",
	Long: `Pagewright stores typed, localized pages and reviews every edit.
- Definitions: page types declare property groups and fields with defaults; stored pages are synced to them on every read.
- Pages: drafts until published; anonymous readers only see published pages.
- Versions: edits are proposed as pending versions and only change the page when an admin approves them.
- Revert: restores an older version and rejects every version after it.
- Event log: every write is recorded, view with 'pw log tail'.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("PAGEWRIGHT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().String("workspace", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "print JSON output")
	rootCmd.PersistentFlags().String("actor-id", "cli", "acting actor id")
	rootCmd.PersistentFlags().String("role", "", "acting role (defaults to the stored role of the actor)")
	rootCmd.PersistentFlags().String("locale", domain.DefaultLocale, "locale for localized input and output")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("role", rootCmd.PersistentFlags().Lookup("role"))
	_ = viper.BindPFlag("locale", rootCmd.PersistentFlags().Lookup("locale"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(pageCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(definitionsCmd())
	rootCmd.AddCommand(actorCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(migrateCmd())
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default pagewright.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var devLogin bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.Open(cmd.Context(), viper.GetString("workspace"))
			if err != nil {
				return err
			}
			defer rt.Close()
			cfg := rt.Config
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("base-path") {
				cfg.Server.BasePath = basePath
			}
			if cmd.Flags().Changed("dev-login") {
				cfg.Server.DevLogin = devLogin
			}
			authCfg := server.AuthConfig{
				JWTSecret:              viper.GetString("jwt_secret"),
				AllowLegacyActorHeader: cfg.Auth.AllowLegacyActorHeader,
			}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("PAGEWRIGHT_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{
				Engine:   rt.Engine,
				BasePath: cfg.Server.BasePath,
				Auth:     authCfg,
				DevLogin: cfg.Server.DevLogin,
				Logger:   rt.Logger,
				Metrics:  rt.Metrics,
			})
			if err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			hooksDone := server.StartWebhookDispatcher(ctx, rt.Engine, cfg.Webhooks, rt.Logger)

			srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler}
			go func() {
				<-ctx.Done()
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				srv.Shutdown(shutdownCtx)
			}()
			rt.Logger.Info("serving Pagewright API",
				zap.String("addr", cfg.Server.Addr),
				zap.String("base_path", cfg.Server.BasePath),
				zap.Bool("dev_login", cfg.Server.DevLogin),
				zap.Int("webhooks", len(cfg.Webhooks)))
			fmt.Printf("Serving Pagewright API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", cfg.Server.Addr, cfg.Server.BasePath, cfg.Server.BasePath)
			err = srv.ListenAndServe()
			cancel()
			<-hooksDone
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path (overrides server.base_path)")
	cmd.Flags().BoolVar(&devLogin, "dev-login", false, "enable POST /auth/dev/login")
	return cmd
}

func pageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "page",
		Short: "Manage pages",
	}
	cmd.AddCommand(pageCreateCmd())
	cmd.AddCommand(pageGetCmd())
	cmd.AddCommand(pageListCmd())
	cmd.AddCommand(pagePublishCmd())
	cmd.AddCommand(pageDeleteCmd())
	return cmd
}

func pageCreateCmd() *cobra.Command {
	var pageType, slug, title, description, properties string
	var tags, authors []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a draft page",
		RunE: func(cmd *cobra.Command, args []string) error {
			locale := viper.GetString("locale")
			opts := engine.PageCreateOptions{
				Type:        pageType,
				Slug:        slug,
				Title:       domain.Localized{locale: title},
				Description: localizedOrNil(locale, description),
				AuthorIDs:   authors,
			}
			for _, tag := range tags {
				opts.Tags = append(opts.Tags, domain.Localized{locale: tag})
			}
			if properties != "" {
				if err := json.Unmarshal([]byte(properties), &opts.Properties); err != nil {
					return fmt.Errorf("--properties: %w", err)
				}
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				p, err := e.CreatePage(ctx, actor, opts)
				if err != nil {
					return err
				}
				return printPages([]domain.Page{p})
			})
		},
	}
	cmd.Flags().StringVar(&pageType, "type", "", "page type")
	cmd.Flags().StringVar(&slug, "slug", "", "page slug")
	cmd.Flags().StringVar(&title, "title", "", "title in --locale")
	cmd.Flags().StringVar(&description, "description", "", "description in --locale")
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "tag in --locale (repeatable)")
	cmd.Flags().StringArrayVar(&authors, "author", nil, "author actor id (repeatable, defaults to --actor-id)")
	cmd.Flags().StringVar(&properties, "properties", "", "properties JSON object, group -> field -> value")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("slug")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func pageGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <type> <slug> | get <slug>",
		Short: "Show a page",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				var p domain.Page
				var err error
				if len(args) == 2 {
					p, err = e.GetPage(ctx, actor, args[0], args[1])
				} else {
					p, err = e.FindPage(ctx, actor, args[0])
				}
				if err != nil {
					return err
				}
				return printJSON(p)
			})
		},
	}
}

func pageListCmd() *cobra.Command {
	var opts engine.PageListOptions
	var status, orderBy string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pages",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Status = repo.PageStatus(status)
			opts.OrderBy = repo.PageOrder(orderBy)
			opts.Locale = viper.GetString("locale")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				list, err := e.ListPages(ctx, actor, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(list)
				}
				if err := printPages(list.Items); err != nil {
					return err
				}
				fmt.Printf("page %d, %d of %d\n", list.Page, len(list.Items), list.Total)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&opts.Type, "type", "", "page type filter")
	cmd.Flags().StringVar(&status, "status", "", "published or draft")
	cmd.Flags().StringVar(&orderBy, "order-by", "", "title, posted_at, created_at or updated_at")
	cmd.Flags().BoolVar(&opts.Asc, "asc", false, "ascending order")
	cmd.Flags().IntVar(&opts.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&opts.Limit, "limit", 10, "page size")
	return cmd
}

func pagePublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish <page-id>",
		Short: "Publish a page now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				p, err := e.PublishPage(ctx, actor, args[0])
				if err != nil {
					return err
				}
				return printPages([]domain.Page{p})
			})
		},
	}
}

func pageDeleteCmd() *cobra.Command {
	var hard bool
	cmd := &cobra.Command{
		Use:   "delete <page-id>",
		Short: "Soft delete a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				return e.DeletePage(ctx, actor, args[0], hard)
			})
		},
	}
	cmd.Flags().BoolVar(&hard, "hard", false, "remove the page and its versions")
	return cmd
}

func versionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Propose and review page versions",
	}
	cmd.AddCommand(versionProposeCmd())
	cmd.AddCommand(versionListCmd())
	cmd.AddCommand(versionShowCmd())
	cmd.AddCommand(versionPromoteCmd("approve", "Approve a pending version"))
	cmd.AddCommand(versionPromoteCmd("revert", "Revert a page to a version and reject later ones"))
	cmd.AddCommand(versionRejectCmd())
	return cmd
}

func versionProposeCmd() *cobra.Command {
	var slug, title, description, properties, postedAt string
	cmd := &cobra.Command{
		Use:   "propose <page-id>",
		Short: "Propose a change to a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			locale := viper.GetString("locale")
			var in engine.VersionInput
			if cmd.Flags().Changed("slug") {
				in.Slug = &slug
			}
			in.Title = localizedOrNil(locale, title)
			in.Description = localizedOrNil(locale, description)
			if properties != "" {
				if err := json.Unmarshal([]byte(properties), &in.Properties); err != nil {
					return fmt.Errorf("--properties: %w", err)
				}
			}
			if postedAt != "" {
				t, err := time.Parse(time.RFC3339Nano, postedAt)
				if err != nil {
					return fmt.Errorf("--posted-at: %w", err)
				}
				in.PostedAt = &t
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				v, err := e.ProposeVersion(ctx, actor, args[0], in)
				if err != nil {
					return err
				}
				return printVersions([]domain.PageVersion{v})
			})
		},
	}
	cmd.Flags().StringVar(&slug, "slug", "", "new slug")
	cmd.Flags().StringVar(&title, "title", "", "new title in --locale")
	cmd.Flags().StringVar(&description, "description", "", "new description in --locale")
	cmd.Flags().StringVar(&properties, "properties", "", "replacement properties JSON object")
	cmd.Flags().StringVar(&postedAt, "posted-at", "", "posted date (RFC 3339)")
	return cmd
}

func versionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <page-id>",
		Short: "List versions of a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				versions, err := e.ListVersions(ctx, actor, args[0])
				if err != nil {
					return err
				}
				return printVersions(versions)
			})
		},
	}
}

func versionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <version-id>",
		Short: "Show a version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				v, err := e.GetVersion(ctx, actor, args[0])
				if err != nil {
					return err
				}
				return printJSON(v)
			})
		},
	}
}

func versionPromoteCmd(action, short string) *cobra.Command {
	var expected string
	cmd := &cobra.Command{
		Use:   action + " <version-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts engine.WriteOptions
			if expected != "" {
				t, err := time.Parse(time.RFC3339Nano, expected)
				if err != nil {
					return fmt.Errorf("--expected-updated-at: %w", err)
				}
				opts.ExpectedUpdatedAt = &t
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				promote := e.ApproveVersion
				if action == "revert" {
					promote = e.RevertToVersion
				}
				res, err := promote(ctx, actor, args[0], opts)
				if err != nil {
					return err
				}
				return printResult(res)
			})
		},
	}
	cmd.Flags().StringVar(&expected, "expected-updated-at", "", "fail unless the page still has this updated_at")
	return cmd
}

func versionRejectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reject <version-id>",
		Short: "Reject a pending version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				res, err := e.RejectVersion(ctx, actor, args[0])
				if err != nil {
					return err
				}
				return printResult(res)
			})
		},
	}
}

func definitionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "definitions",
		Short: "Inspect page definitions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered page types",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				defs, err := e.ListDefinitions(ctx, actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(defs)
				}
				tw := newTable("Type", "Label key", "Groups", "Initial blocks")
				for _, d := range defs {
					tw.AppendRow(table.Row{d.Type, d.TypeLabelKey, len(d.Properties), len(d.InitialBlocks)})
				}
				tw.Render()
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show <type>",
		Short: "Show a page definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				def, err := e.GetDefinition(ctx, actor, args[0])
				if err != nil {
					return err
				}
				return printJSON(def)
			})
		},
	})
	return cmd
}

func actorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "actor",
		Short: "Manage actors",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "role <actor-id> <role>",
		Short: "Assign a role (user, member, admin or owner)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := auth.ParseRole(args[1])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ auth.Actor) error {
				a, err := e.SetActorRole(ctx, args[0], role)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(a)
				}
				fmt.Printf("%s is now %s\n", a.ID, a.Role)
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List known actors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ auth.Actor) error {
				actors, err := e.Repo.ListActors(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(actors)
				}
				tw := newTable("ID", "Role", "Created")
				for _, a := range actors {
					tw.AppendRow(table.Row{a.ID, a.Role, a.CreatedAt.Format(time.RFC3339)})
				}
				tw.Render()
				return nil
			})
		},
	})
	return cmd
}

func apikeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys",
	}
	var actorID, name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an API key; the key is shown once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ auth.Actor) error {
				key, plain, err := e.CreateAPIKey(ctx, actorID, name)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]string{"id": key.ID, "actor_id": key.ActorID, "key": plain})
				}
				fmt.Printf("API key for %s: %s\n", key.ActorID, plain)
				return nil
			})
		},
	}
	create.Flags().StringVar(&actorID, "actor", "", "actor id")
	create.Flags().StringVar(&name, "name", "", "key name")
	_ = create.MarkFlagRequired("actor")
	cmd.AddCommand(create)

	var listActor string
	list := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ auth.Actor) error {
				keys, err := e.Repo.ListAPIKeys(ctx, listActor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := newTable("ID", "Actor", "Name", "Created")
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.ActorID, k.Name, k.CreatedAt.Format(time.RFC3339)})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().StringVar(&listActor, "actor", "", "actor id filter")
	cmd.AddCommand(list)
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <key-id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ auth.Actor) error {
				return e.Repo.DeleteAPIKey(ctx, args[0])
			})
		},
	})
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Bearer tokens",
	}
	var actorID, role string
	var ttl time.Duration
	mint := &cobra.Command{
		Use:   "mint",
		Short: "Mint a bearer token signed with PAGEWRIGHT_JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			var r auth.Role
			if role != "" {
				parsed, err := auth.ParseRole(role)
				if err != nil {
					return err
				}
				r = parsed
			}
			token, err := server.SignToken(viper.GetString("jwt_secret"), actorID, r, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	mint.Flags().StringVar(&actorID, "actor", "", "token subject")
	mint.Flags().StringVar(&role, "token-role", "", "role claim; empty uses the stored role")
	mint.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = mint.MarkFlagRequired("actor")
	cmd.AddCommand(mint)
	return cmd
}

func logCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Audit event log",
	}
	var f repo.EventFilters
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show the latest events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				events, err := e.ListEvents(ctx, actor, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := newTable("ID", "Time", "Type", "Page", "Entity", "Actor", "Payload")
				for _, evt := range events {
					tw.AppendRow(table.Row{evt.ID, evt.TS.Format(time.RFC3339), evt.Type, evt.PageID, evt.EntityKind + ":" + evt.EntityID, evt.ActorID, evt.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	tail.Flags().IntVar(&f.Limit, "n", 20, "number of events")
	tail.Flags().StringVar(&f.Type, "type", "", "event type filter")
	tail.Flags().StringVar(&f.PageID, "page", "", "page id filter")
	cmd.AddCommand(tail)
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and latest schema versions without migrating",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
			if err != nil {
				return err
			}
			defer conn.Close()
			applied, latest, err := migrate.Status(cmd.Context(), conn)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]int{"applied": applied, "latest": latest})
			}
			fmt.Printf("schema version %d of %d (%s)\n", applied, latest, db.Path(viper.GetString("workspace")))
			return nil
		},
	})
	return cmd
}

// --- helpers ---

// withEngine opens the workspace and resolves the acting actor from
// --actor-id and --role.
func withEngine(ctx context.Context, fn func(context.Context, engine.Engine, auth.Actor) error) error {
	rt, err := app.Open(ctx, viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer rt.Close()
	actor := auth.Actor{ID: strings.TrimSpace(viper.GetString("actor-id"))}
	if actor.ID != "" {
		if explicit := viper.GetString("role"); explicit != "" {
			actor.Role, err = auth.ParseRole(explicit)
		} else {
			actor.Role, err = rt.Engine.ResolveRole(ctx, actor.ID)
		}
		if err != nil {
			return err
		}
	}
	return fn(ctx, rt.Engine, actor)
}

func localizedOrNil(locale, text string) domain.Localized {
	if text == "" {
		return nil
	}
	return domain.Localized{locale: text}
}

// localized picks the --locale text, falling back to the default locale.
func localized(l domain.Localized) string {
	if s, ok := l[viper.GetString("locale")]; ok {
		return s
	}
	return l[domain.DefaultLocale]
}

func newTable(header ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row(header))
	return tw
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func printPages(pages []domain.Page) error {
	if viper.GetBool("json") {
		return printJSON(pages)
	}
	tw := newTable("ID", "Type", "Slug", "Title", "Posted", "Updated")
	for _, p := range pages {
		tw.AppendRow(table.Row{p.ID, p.Type, p.Slug, localized(p.Title), formatTime(p.PostedAt), p.UpdatedAt.Format(time.RFC3339)})
	}
	tw.Render()
	return nil
}

func printVersions(versions []domain.PageVersion) error {
	if viper.GetBool("json") {
		return printJSON(versions)
	}
	tw := newTable("ID", "Seq", "Status", "Title", "Created by", "Approved by", "Created")
	for _, v := range versions {
		approvedBy := ""
		if v.ApprovedBy != nil {
			approvedBy = *v.ApprovedBy
		}
		tw.AppendRow(table.Row{v.ID, v.Seq, v.Status, localized(v.Title), v.CreatedBy, approvedBy, v.CreatedAt.Format(time.RFC3339)})
	}
	tw.Render()
	return nil
}

func printResult(res engine.VersionResult) error {
	if viper.GetBool("json") {
		return printJSON(res)
	}
	fmt.Printf("version %s is %s\n", res.Version.ID, res.Version.Status)
	for _, id := range res.Superseded {
		fmt.Printf("rejected later version %s\n", id)
	}
	return printPages([]domain.Page{res.Page})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
