// cachectl opera sobre la caché de civicreport: vaciarla, purgar por patrón o
// aplicar la invalidación de una entidad igual que haría una escritura.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/davicafu/civicreport/internal/config"
	sharedCache "github.com/davicafu/civicreport/internal/shared/infra/platform/cache"
	"github.com/davicafu/civicreport/internal/shared/infra/platform/invalidation"
	sharedUtils "github.com/davicafu/civicreport/internal/shared/infra/utils"
	"github.com/davicafu/civicreport/pkg/logger"
)

const usage = `usage: cachectl [global flags] <command> [flags]

commands:
  flush [--all]              borra las claves del prefijo (o todo el almacén)
  purge --pattern GLOB       borra las claves que casan con el patrón
  invalidate --entity E ...  aplica el plan de invalidación de una entidad
  plan --entity E ...        muestra el plan sin borrar nada
`

type opener func(ctx context.Context, cfg sharedCache.StoreConfig) (sharedCache.Store, error)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, sharedCache.OpenStore); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer, open opener) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	global := pflag.NewFlagSet("cachectl", pflag.ContinueOnError)
	global.SetInterspersed(false)
	global.SetOutput(out)
	backend := global.String("backend", cfg.Cache.Backend, "redis, valkey o memory")
	addr := global.String("addr", cfg.Cache.Addr, "dirección del servidor de caché")
	prefix := global.String("prefix", cfg.Cache.Prefix, "prefijo de claves")
	scanCount := global.Int64("scan-count", cfg.Cache.ScanCount, "tamaño de lote de SCAN")
	verbose := global.BoolP("verbose", "v", false, "log de depuración")
	global.Usage = func() { fmt.Fprint(out, usage) }

	if err := global.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	rest := global.Args()
	if len(rest) == 0 {
		fmt.Fprint(out, usage)
		return errors.New("missing command")
	}

	if err := logger.Init(sharedUtils.Ternary(*verbose, "debug", "warn")); err != nil {
		return err
	}
	log := logger.Logger()

	cmd, cmdArgs := rest[0], rest[1:]
	if cmd == "plan" {
		opts, err := parseOptions(cmd, cmdArgs)
		if err != nil {
			return err
		}
		return printPlan(out, opts)
	}

	store, err := open(ctx, sharedCache.StoreConfig{
		Backend:  *backend,
		Addr:     *addr,
		Username: cfg.Cache.Username,
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
	})
	if err != nil {
		return err
	}
	client := sharedCache.NewClient(store, sharedCache.Options{Prefix: *prefix, ScanCount: *scanCount}, log, nil)
	defer client.Close()

	switch cmd {
	case "flush":
		fs := pflag.NewFlagSet("flush", pflag.ContinueOnError)
		all := fs.Bool("all", false, "vacía el almacén entero, no solo el prefijo")
		if err := fs.Parse(cmdArgs); err != nil {
			return err
		}
		if *all {
			if err := client.ClearAll(ctx); err != nil {
				return err
			}
			fmt.Fprintln(out, "flushed store")
			return nil
		}
		n, err := client.InvalidateByPattern(ctx, "*")
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "flushed %s* (%d keys)\n", *prefix, n)
		return nil

	case "purge":
		fs := pflag.NewFlagSet("purge", pflag.ContinueOnError)
		pattern := fs.String("pattern", "", "glob relativo al prefijo, p. ej. issues:*")
		if err := fs.Parse(cmdArgs); err != nil {
			return err
		}
		if *pattern == "" {
			return errors.New("purge: --pattern required")
		}
		n, err := client.InvalidateByPattern(ctx, *pattern)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "deleted %d keys\n", n)
		return nil

	case "invalidate":
		opts, err := parseOptions(cmd, cmdArgs)
		if err != nil {
			return err
		}
		n, err := invalidation.NewExecutor(client, invalidation.ModeSync, log, nil).Invalidate(ctx, opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "deleted %d keys\n", n)
		return nil
	}

	fmt.Fprint(out, usage)
	return fmt.Errorf("unknown command %q", cmd)
}

func parseOptions(name string, args []string) (invalidation.Options, error) {
	var opts invalidation.Options
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringVar(&opts.Entity, "entity", "", "issue, comment, user, category, division o message")
	fs.StringVar(&opts.EntityID, "id", "", "id de la entidad")
	fs.StringVar(&opts.ReviewID, "review", "", "id del comentario (entity=comment)")
	fs.StringVar(&opts.UserID, "user", "", "usuario afectado")
	fs.StringVar(&opts.Category, "category", "", "categoría")
	fs.StringVar(&opts.Division, "division", "", "división")
	fs.StringVar(&opts.Status, "status", "", "estado")
	fs.StringVar(&opts.Role, "role", "", "rol de quien escribe")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.Entity == "" {
		return opts, fmt.Errorf("%s: --entity required", name)
	}
	return opts, nil
}

func printPlan(out io.Writer, opts invalidation.Options) error {
	plan, err := invalidation.PlanFor(opts)
	if err != nil {
		return err
	}
	for _, section := range []struct {
		name  string
		items []string
	}{
		{"keys", plan.Keys},
		{"patterns", plan.Patterns},
		{"tags", plan.Tags},
	} {
		if len(section.items) == 0 {
			continue
		}
		fmt.Fprintf(out, "%s:\n  %s\n", section.name, strings.Join(section.items, "\n  "))
	}
	return nil
}
