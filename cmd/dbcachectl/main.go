package main

import (
	"fmt"
	"io"
	"os"

	_ "github.com/joho/godotenv/autoload"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	app := cli.App{
		Name:      "dbcachectl",
		Usage:     "inspect and administer a dbcache store",
		Writer:    out,
		ErrWriter: out,
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "backend",
			Usage:   "durable store: sqlite, postgres, redis or pebble",
			Value:   "sqlite",
			EnvVars: []string{"DBCACHE_BACKEND"},
		},
		&cli.StringFlag{
			Name:    "sqlite-path",
			Usage:   "path of the sqlite database file",
			Value:   "./data/dbcache.sqlite",
			EnvVars: []string{"DBCACHE_SQLITE_PATH"},
		},
		&cli.StringFlag{
			Name:    "db-url",
			Usage:   "postgres connection string",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "redis-addr",
			Usage:   "redis host:port",
			Value:   "localhost:6379",
			EnvVars: []string{"REDIS_ADDR"},
		},
		&cli.StringFlag{
			Name:    "pebble-dir",
			Usage:   "directory of the pebble database",
			Value:   "./data/dbcache.pebble",
			EnvVars: []string{"DBCACHE_PEBBLE_DIR"},
		},
		&cli.StringFlag{
			Name:    "table",
			Usage:   "table name (sql backends) or key namespace (kv backends)",
			Value:   "dbcache",
			EnvVars: []string{"DBCACHE_TABLE"},
		},
		&cli.IntFlag{
			Name:    "schema-version",
			Usage:   "expected schema version",
			Value:   1,
			EnvVars: []string{"DBCACHE_SCHEMA_VERSION"},
		},
		&cli.StringFlag{
			Name:    "tenant",
			Usage:   "tenant id; enables multi-tenant key scoping when set",
			EnvVars: []string{"DBCACHE_TENANT"},
		},
		&cli.StringSliceFlag{
			Name:    "global-group",
			Usage:   "group shared across tenants (repeatable)",
			EnvVars: []string{"DBCACHE_GLOBAL_GROUPS"},
		},
		&cli.StringFlag{
			Name:    "group",
			Aliases: []string{"g"},
			Usage:   "cache group",
			Value:   "default",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "debug logging",
		},
	}

	app.Commands = []*cli.Command{
		resetCmd,
		dropCmd,
		expireCmd,
		flushCmd,
		getCmd,
		setCmd,
		deleteCmd,
		incrCmd,
		decrCmd,
		statsCmd,
	}

	return app.Run(args)
}
