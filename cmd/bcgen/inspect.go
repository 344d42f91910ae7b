package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/chazu/bcgen/codeimage"
	"github.com/chazu/bcgen/irtext"
	"github.com/chazu/bcgen/source"
)

func disasmCommand() *cli.Command {
	return &cli.Command{
		Name:      "disasm",
		Usage:     "Print the listing of code images",
		ArgsUsage: "image.cbor...",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return fmt.Errorf("disasm needs at least one image")
			}
			for _, path := range c.Args().Slice() {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("cannot read %s: %w", path, err)
				}
				img, err := codeimage.Unmarshal(data)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				fmt.Fprint(c.App.Writer, img)
			}
			return nil
		},
	}
}

func positionsCommand() *cli.Command {
	return &cli.Command{
		Name:      "positions",
		Usage:     "Print the source position of every instruction of an IR file",
		ArgsUsage: "file.ir",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     compileScript,
				Usage:    "Source script the positions refer to",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("positions takes exactly one IR file")
			}
			path := c.Args().First()
			text, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("cannot read %s: %w", path, err)
			}
			script, err := readScript(c.String(compileScript))
			if err != nil {
				return err
			}
			graphs, err := irtext.ParseAll(string(text), script)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			w := c.App.Writer
			for _, g := range graphs {
				fmt.Fprintf(w, "==== %s\n", g.Function.Name)
				if err := source.NewPositionTable(g, script).Dump(w); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
