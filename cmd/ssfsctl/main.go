// Command ssfsctl is the command-line front-end to the SSFS engine. It
// runs as a single long-running process: each line of input is parsed and
// dispatched as one command against a Volume that starts Unmounted and is
// bound or released by mount/unmount, exactly as a test harness driving it
// over stdin would expect (see SPEC_FULL.md §6.3).
package main

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/tranvaj/ssfs/ssfserr"
	"github.com/tranvaj/ssfs/volume"
	"github.com/urfave/cli/v2"
)

func main() {
	log.SetFlags(0)
	if err := run(os.Stdin, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(in io.Reader, out io.Writer) error {
	var vol volume.Volume
	app := newApp(&vol, out)

	reader := bufio.NewReader(in)
	for {
		line, err := reader.ReadString('\n')
		line = strings.TrimSpace(line)
		if line != "" {
			args, perr := parseLine(line)
			if perr != nil {
				fmt.Fprintf(out, "error: %v\n", perr)
			} else if cerr := app.Run(append([]string{"ssfsctl"}, args...)); cerr != nil {
				printErr(out, cerr)
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

func parseLine(line string) ([]string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	return fields, nil
}

func printErr(out io.Writer, err error) {
	if code, ok := ssfserr.CodeOf(err); ok {
		fmt.Fprintf(out, "error (%d): %v\n", int(code), err)
		return
	}
	fmt.Fprintf(out, "error: %v\n", err)
}

func newApp(vol *volume.Volume, out io.Writer) *cli.App {
	app := &cli.App{
		Name:            "ssfsctl",
		Usage:           "drive the SSFS block engine from one line of input at a time",
		ExitErrHandler:  func(*cli.Context, error) {}, // errors are reported, never fatal to the REPL
		Writer:          out,
		HideHelpCommand: true,
		Commands: []*cli.Command{
			{
				Name:      "format",
				ArgsUsage: "<image> <inodes>",
				Action: func(c *cli.Context) error {
					if c.Args().Len() != 2 {
						return fmt.Errorf("usage: format <image> <inodes>")
					}
					n, err := strconv.Atoi(c.Args().Get(1))
					if err != nil {
						return fmt.Errorf("invalid inode count: %w", err)
					}
					if err := vol.Format(c.Args().Get(0), n); err != nil {
						return err
					}
					fmt.Fprintln(out, "OK")
					return nil
				},
			},
			{
				Name:      "mount",
				ArgsUsage: "<image>",
				Action: func(c *cli.Context) error {
					if c.Args().Len() != 1 {
						return fmt.Errorf("usage: mount <image>")
					}
					if err := vol.Mount(c.Args().Get(0)); err != nil {
						return err
					}
					fmt.Fprintln(out, "OK")
					return nil
				},
			},
			{
				Name: "unmount",
				Action: func(c *cli.Context) error {
					if err := vol.Unmount(); err != nil {
						return err
					}
					fmt.Fprintln(out, "OK")
					return nil
				},
			},
			{
				Name: "create",
				Action: func(c *cli.Context) error {
					eng, err := vol.Engine()
					if err != nil {
						return err
					}
					numInodes, err := vol.NumInodes()
					if err != nil {
						return err
					}
					i, err := eng.Create(numInodes)
					if err != nil {
						return err
					}
					fmt.Fprintln(out, i)
					return nil
				},
			},
			{
				Name:      "delete",
				ArgsUsage: "<inode>",
				Action: func(c *cli.Context) error {
					i, err := singleIntArg(c, "delete <inode>")
					if err != nil {
						return err
					}
					eng, err := vol.Engine()
					if err != nil {
						return err
					}
					if err := eng.Delete(i); err != nil {
						return err
					}
					fmt.Fprintln(out, "OK")
					return nil
				},
			},
			{
				Name:      "stat",
				ArgsUsage: "<inode>",
				Action: func(c *cli.Context) error {
					i, err := singleIntArg(c, "stat <inode>")
					if err != nil {
						return err
					}
					eng, err := vol.Engine()
					if err != nil {
						return err
					}
					size, err := eng.Stat(i)
					if err != nil {
						return err
					}
					fmt.Fprintln(out, size)
					return nil
				},
			},
			{
				Name:      "read",
				ArgsUsage: "<inode> <offset> <length>",
				Action: func(c *cli.Context) error {
					if c.Args().Len() != 3 {
						return fmt.Errorf("usage: read <inode> <offset> <length>")
					}
					i, err := strconv.Atoi(c.Args().Get(0))
					if err != nil {
						return fmt.Errorf("invalid inode: %w", err)
					}
					offset, err := strconv.ParseInt(c.Args().Get(1), 10, 64)
					if err != nil {
						return fmt.Errorf("invalid offset: %w", err)
					}
					length, err := strconv.Atoi(c.Args().Get(2))
					if err != nil {
						return fmt.Errorf("invalid length: %w", err)
					}
					eng, err := vol.Engine()
					if err != nil {
						return err
					}
					buf := make([]byte, length)
					n, err := eng.Read(i, buf, length, offset)
					if err != nil {
						return err
					}
					fmt.Fprintln(out, string(buf[:n]))
					return nil
				},
			},
			{
				Name:      "write",
				ArgsUsage: "<inode> <offset> <data>",
				Action: func(c *cli.Context) error {
					if c.Args().Len() < 3 {
						return fmt.Errorf("usage: write <inode> <offset> <data>")
					}
					i, err := strconv.Atoi(c.Args().Get(0))
					if err != nil {
						return fmt.Errorf("invalid inode: %w", err)
					}
					offset, err := strconv.ParseInt(c.Args().Get(1), 10, 64)
					if err != nil {
						return fmt.Errorf("invalid offset: %w", err)
					}
					data := []byte(strings.Join(c.Args().Slice()[2:], " "))
					eng, err := vol.Engine()
					if err != nil {
						return err
					}
					n, err := eng.Write(i, data, len(data), offset)
					if err != nil {
						return err
					}
					fmt.Fprintln(out, n)
					return nil
				},
			},
		},
	}
	return app
}

func singleIntArg(c *cli.Context, usage string) (int, error) {
	if c.Args().Len() != 1 {
		return 0, fmt.Errorf("usage: %s", usage)
	}
	i, err := strconv.Atoi(c.Args().Get(0))
	if err != nil {
		return 0, fmt.Errorf("invalid inode: %w", err)
	}
	return i, nil
}
