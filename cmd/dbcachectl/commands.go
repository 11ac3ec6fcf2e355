package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/dbcache/codec"
)

var ttlFlag = &cli.DurationFlag{
	Name:  "ttl",
	Usage: "time to live; 0 never expires",
}

var resetCmd = &cli.Command{
	Name:  "reset",
	Usage: "forget the schema version, re-provision the table and flush every row",
	Action: withSession(false, func(cctx *cli.Context, s *session) error {
		if err := s.admin.ResetSchema(cctx.Context); err != nil {
			return err
		}
		ok, err := s.cache.AttemptReady(cctx.Context)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("store schema is not ready after reset")
		}
		if err := s.cache.Flush(cctx.Context); err != nil {
			return err
		}
		s.log.Info("schema reset and cache flushed", zap.Int("version", cctx.Int("schema-version")))
		fmt.Fprintln(cctx.App.Writer, "reset")
		return nil
	}),
}

var dropCmd = &cli.Command{
	Name:  "drop",
	Usage: "drop the backing table entirely",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "yes",
			Usage: "confirm the drop",
		},
	},
	Action: withSession(false, func(cctx *cli.Context, s *session) error {
		if !cctx.Bool("yes") {
			return fmt.Errorf("refusing to drop without --yes")
		}
		if err := s.admin.DropTable(cctx.Context); err != nil {
			return err
		}
		fmt.Fprintln(cctx.App.Writer, "dropped")
		return nil
	}),
}

var expireCmd = &cli.Command{
	Name:  "expire",
	Usage: "delete expired rows",
	Action: withSession(true, func(cctx *cli.Context, s *session) error {
		// becoming ready already swept once
		if _, err := s.cache.Expire(cctx.Context); err != nil {
			return err
		}
		fmt.Fprintf(cctx.App.Writer, "removed %d\n", s.events.swept)
		return nil
	}),
}

var flushCmd = &cli.Command{
	Name:  "flush",
	Usage: "delete every row",
	Action: withSession(true, func(cctx *cli.Context, s *session) error {
		if err := s.cache.Flush(cctx.Context); err != nil {
			return err
		}
		fmt.Fprintln(cctx.App.Writer, "flushed")
		return nil
	}),
}

var getCmd = &cli.Command{
	Name:      "get",
	Usage:     "print the value of one or more keys",
	ArgsUsage: "<key>...",
	Action: withSession(true, func(cctx *cli.Context, s *session) error {
		if cctx.NArg() == 0 {
			return fmt.Errorf("get requires at least one key")
		}
		keys := make([]any, 0, cctx.NArg())
		for _, k := range cctx.Args().Slice() {
			keys = append(keys, k)
		}
		vals, err := s.cache.GetMultiple(cctx.Context, keys, cctx.String("group"))
		if err != nil {
			return err
		}
		return printJSON(cctx, vals)
	}),
}

var setCmd = &cli.Command{
	Name:      "set",
	Usage:     "store a value (parsed as JSON, else taken as a string)",
	ArgsUsage: "<key> <value>",
	Flags:     []cli.Flag{ttlFlag},
	Action: withSession(true, func(cctx *cli.Context, s *session) error {
		if cctx.NArg() != 2 {
			return fmt.Errorf("set requires <key> <value>")
		}
		key, raw := cctx.Args().Get(0), cctx.Args().Get(1)
		if err := s.cache.Set(cctx.Context, key, parseValue(raw), cctx.String("group"), cctx.Duration("ttl")); err != nil {
			return err
		}
		fmt.Fprintln(cctx.App.Writer, "ok")
		return nil
	}),
}

var deleteCmd = &cli.Command{
	Name:      "delete",
	Usage:     "delete a key",
	ArgsUsage: "<key>",
	Action: withSession(true, func(cctx *cli.Context, s *session) error {
		if cctx.NArg() != 1 {
			return fmt.Errorf("delete requires <key>")
		}
		ok, err := s.cache.Delete(cctx.Context, cctx.Args().First(), cctx.String("group"))
		if err != nil {
			return err
		}
		return printJSON(cctx, map[string]bool{"deleted": ok})
	}),
}

var incrCmd = counterCmd("incr", false)
var decrCmd = counterCmd("decr", true)

func counterCmd(name string, decrement bool) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     name + " a counter (clamped at 0)",
		ArgsUsage: "<key> [offset]",
		Action: withSession(true, func(cctx *cli.Context, s *session) error {
			if cctx.NArg() < 1 || cctx.NArg() > 2 {
				return fmt.Errorf("%s requires <key> [offset]", name)
			}
			offset := int64(1)
			if cctx.NArg() == 2 {
				o, err := strconv.ParseInt(cctx.Args().Get(1), 10, 64)
				if err != nil {
					return fmt.Errorf("invalid offset %q: %w", cctx.Args().Get(1), err)
				}
				offset = o
			}
			op := s.cache.Incr
			if decrement {
				op = s.cache.Decr
			}
			n, ok, err := op(cctx.Context, cctx.Args().First(), offset, cctx.String("group"))
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("key %q not found", cctx.Args().First())
			}
			fmt.Fprintln(cctx.App.Writer, n)
			return nil
		}),
	}
}

var statsCmd = &cli.Command{
	Name:      "stats",
	Usage:     "look up keys and print the hit/miss breakdown",
	ArgsUsage: "<key>...",
	Action: withSession(true, func(cctx *cli.Context, s *session) error {
		for _, k := range cctx.Args().Slice() {
			if _, _, err := s.cache.Get(cctx.Context, k, cctx.String("group")); err != nil {
				return err
			}
		}
		return printJSON(cctx, s.cache.Stats())
	}),
}

func parseValue(raw string) any {
	if v, err := (codec.JSON{}).Decode([]byte(raw)); err == nil {
		return v
	}
	return raw
}

func printJSON(cctx *cli.Context, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cctx.App.Writer, string(b))
	return nil
}
