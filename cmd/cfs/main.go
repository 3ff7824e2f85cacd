// Command cfs is a thin shell over the container package: argument parsing, stdin/stdout
// piping, and error reporting. It never constructs a core error of its own, only reports one.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	uuid "github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"

	"github.com/jchristn/containerfs/container"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: cfs <container> <command> [--file=name] [--path=/dir] [--params=bs,bc] [--debug]")
	fmt.Fprintln(os.Stderr, "commands: create|stats|read|write|delete|dir|mkdir|rmdir|inspect")
}

func main() {
	if len(os.Args) < 3 {
		usage()
		os.Exit(2)
	}
	containerFile := os.Args[1]
	command := os.Args[2]

	fs := flag.NewFlagSet("cfs", flag.ExitOnError)
	file := fs.String("file", "", "file name, for read/write/delete")
	path := fs.String("path", "/", "directory path")
	params := fs.String("params", "", "blockSize,blockCount, for create")
	position := fs.Int64("position", 0, "block byte offset, for inspect")
	debug := fs.Bool("debug", false, "enable debug logging")
	if err := fs.Parse(os.Args[3:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	var log *logrus.Logger
	if *debug {
		log = logrus.New()
		log.SetLevel(logrus.DebugLevel)
	}

	if err := run(containerFile, command, *file, *path, *params, *position, log); err != nil {
		fmt.Fprintln(os.Stderr, "cfs:", err)
		os.Exit(1)
	}
}

func run(containerFile, command, file, dirPath, params string, position int64, log *logrus.Logger) error {
	switch command {
	case "create":
		bs, bc, err := parseParams(params)
		if err != nil {
			return err
		}
		c, err := container.CreateContainer(container.CreateOptions{
			Filename:      containerFile,
			ContainerName: containerFile,
			BlockSize:     bs,
			BlockCount:    bc,
			Logger:        log,
		})
		if err != nil {
			return err
		}
		return c.Close()

	case "stats":
		c, err := openForCLI(containerFile, log)
		if err != nil {
			return err
		}
		defer c.Close()
		st, err := c.Stats()
		if err != nil {
			return err
		}
		fmt.Printf("version=%d name=%s blockSize=%d blockCount=%d freeBlocks=%d totalBytes=%d freeBytes=%d created=%s\n",
			st.Version, st.Name, st.BlockSize, st.BlockCount, st.FreeBlocks, st.TotalBytes, st.FreeBytes, st.Created)
		return nil

	case "read":
		c, err := openForCLI(containerFile, log)
		if err != nil {
			return err
		}
		defer c.Close()
		data, err := c.ReadFile(dirPath, file)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err

	case "write":
		c, err := openForCLI(containerFile, log)
		if err != nil {
			return err
		}
		defer c.Close()
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}
		return c.WriteFile(dirPath, file, data)

	case "delete":
		c, err := openForCLI(containerFile, log)
		if err != nil {
			return err
		}
		defer c.Close()
		return c.DeleteFile(dirPath, file)

	case "dir":
		c, err := openForCLI(containerFile, log)
		if err != nil {
			return err
		}
		defer c.Close()
		listing, err := c.ReadDirectory(dirPath)
		if err != nil {
			return err
		}
		for _, d := range listing.Directories {
			fmt.Printf("%s/\n", d)
		}
		for _, f := range listing.Files {
			fmt.Printf("%s\t%d\n", f.Name, f.Size)
		}
		return nil

	case "mkdir":
		c, err := openForCLI(containerFile, log)
		if err != nil {
			return err
		}
		defer c.Close()
		return c.WriteDirectory(dirPath)

	case "rmdir":
		c, err := openForCLI(containerFile, log)
		if err != nil {
			return err
		}
		defer c.Close()
		return c.DeleteDirectory(dirPath)

	case "inspect":
		c, err := openForCLI(containerFile, log)
		if err != nil {
			return err
		}
		defer c.Close()
		desc, err := c.EnumerateBlock(position)
		if err != nil {
			return err
		}
		tag := uuid.NewV4()
		fmt.Printf("[%s] position=%d kind=%s parent=%d childDataBlock=%d name=%q isDirectory=%v isFile=%v fullDataLength=%d dataLength=%d\n",
			tag, desc.Position, desc.Kind, desc.Parent, desc.ChildDataBlock, desc.Name, desc.IsDirectory, desc.IsFile, desc.FullDataLength, desc.DataLength)
		return nil

	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func openForCLI(filename string, log *logrus.Logger) (*container.Container, error) {
	return container.OpenContainer(container.OpenOptions{Filename: filename, Logger: log})
}

func parseParams(params string) (blockSize, blockCount int64, err error) {
	parts := strings.Split(params, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("--params must be bs,bc (got %q)", params)
	}
	bs, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid block size: %w", err)
	}
	bc, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid block count: %w", err)
	}
	return bs, bc, nil
}
