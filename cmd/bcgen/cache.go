package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/chazu/bcgen/codecache"
	"github.com/chazu/bcgen/codeimage"
)

const cachePath = "path"

var cacheFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  cachePath,
		Usage: "Cache database; overrides [cache] path",
	},
}

func cacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect the code cache",
		Subcommands: []*cli.Command{
			{
				Name:   "ls",
				Usage:  "List cached images, most recent first",
				Flags:  cacheFlags,
				Action: withCache(cacheList),
			},
			{
				Name:      "show",
				Usage:     "Print the listing of a cached image",
				ArgsUsage: "hash-prefix|function",
				Flags:     cacheFlags,
				Action:    withCache(cacheShow),
			},
			{
				Name:      "rm",
				Usage:     "Remove a cached image",
				ArgsUsage: "hash-prefix",
				Flags:     cacheFlags,
				Action:    withCache(cacheRemove),
			},
		},
	}
}

func withCache(fn func(*cli.Context, *codecache.Cache) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		path := c.String(cachePath)
		if path == "" {
			path = configFrom(c).CachePath()
		}
		if path == "" {
			return errors.New("no cache path is configured")
		}
		cache, err := codecache.Open(path)
		if err != nil {
			return err
		}
		defer cache.Close()
		return fn(c, cache)
	}
}

func cacheList(c *cli.Context, cache *codecache.Cache) error {
	entries, err := cache.List(c.Context)
	if err != nil {
		return err
	}
	for _, e := range entries {
		mode := "unoptimized"
		if e.Optimized {
			mode = "optimized"
		}
		fmt.Fprintf(c.App.Writer, "%s  %-20s %-11s %6d bytes\n", codeimage.ShortHash(e.Hash), e.Name, mode, e.Size)
	}
	return nil
}

func cacheShow(c *cli.Context, cache *codecache.Cache) error {
	if c.NArg() != 1 {
		return errors.New("show takes a hash prefix or a function name")
	}
	img, err := findImage(c, cache, c.Args().First())
	if err != nil {
		return err
	}
	fmt.Fprint(c.App.Writer, img)
	return nil
}

func cacheRemove(c *cli.Context, cache *codecache.Cache) error {
	if c.NArg() != 1 {
		return errors.New("rm takes a hash prefix")
	}
	h, err := cache.Resolve(c.Context, strings.ToLower(c.Args().First()))
	if err != nil {
		return err
	}
	return cache.Delete(c.Context, h)
}

// findImage resolves key as a hash prefix first and as a function name
// otherwise.
func findImage(c *cli.Context, cache *codecache.Cache, key string) (*codeimage.Image, error) {
	if _, err := hex.DecodeString(evenLength(key)); err == nil {
		h, err := cache.Resolve(c.Context, strings.ToLower(key))
		if err == nil {
			return cache.Get(c.Context, h)
		}
		if !errors.Is(err, codecache.ErrNotFound) {
			return nil, err
		}
	}
	return cache.Lookup(c.Context, key)
}

func evenLength(s string) string {
	if len(s)%2 == 1 {
		return s + "0"
	}
	return s
}
