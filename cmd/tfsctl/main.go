// tfsctl is a minimal inspector for TFS disk images.
//
// Usage:
//
//	tfsctl format [options] <image>   Create a new disk image
//	tfsctl info [options] <image>     Show a disk image's header and superpage
package main

import (
	"errors"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/tfs-io/tfs"
	"github.com/tfs-io/tfs/internal/diskfmt"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "tfsctl:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) < 1 {
		printUsage()
		return errors.New("missing command")
	}

	switch args[0] {
	case "format":
		return runFormat(args[1:])
	case "info":
		return runInfo(args[1:])
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  tfsctl format [options] <image>   Create a new disk image")
	fmt.Fprintln(os.Stderr, "  tfsctl info [options] <image>     Show a disk image's header and superpage")
}

func runFormat(args []string) error {
	flagSet := flag.NewFlagSet("format", flag.ContinueOnError)
	flagSet.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: tfsctl format [options] <image>")
		flagSet.PrintDefaults()
	}

	sectors := flagSet.Uint64P("sectors", "s", 131072, "number of data sectors")
	compression := flagSet.StringP("compression", "c", "identity", "compression: identity|lz4")
	mirror := flagSet.Bool("mirror", false, "add a mirror vdev layer")
	encrypt := flagSet.Bool("encrypt", false, "add a speck-encrypted vdev layer")
	password := flagSet.StringP("password", "p", "", "password for --encrypt")

	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() < 1 {
		flagSet.Usage()
		return errors.New("missing image path")
	}
	path := flagSet.Arg(0)

	var stack []diskfmt.VdevLabel
	if *mirror {
		stack = append(stack, diskfmt.VdevMirror)
	}
	if *encrypt {
		stack = append(stack, diskfmt.VdevSpeck)
	}

	var comp diskfmt.Compression
	switch *compression {
	case "identity":
		comp = diskfmt.CompressionIdentity
	case "lz4":
		comp = diskfmt.CompressionLZ4
	default:
		return fmt.Errorf("unknown compression %q", *compression)
	}

	opts := []tfs.Option{
		tfs.WithDataSectors(*sectors),
		tfs.WithVdevStack(stack...),
		tfs.WithCompression(comp),
	}
	if *encrypt {
		if *password == "" {
			return errors.New("--encrypt requires --password")
		}
		opts = append(opts, tfs.WithPassword([]byte(*password)))
	}

	header, err := tfs.Format(path, opts...)
	if err != nil {
		return fmt.Errorf("format: %w", err)
	}

	fmt.Printf("formatted %s\n", path)
	fmt.Printf("  uid:         %x\n", header.UID)
	fmt.Printf("  version:     %d.%d\n", header.VersionMajor, header.VersionMinor)
	fmt.Printf("  sectors:     %d\n", *sectors)
	fmt.Printf("  vdev stack:  %v\n", header.VdevStack)
	return nil
}

func runInfo(args []string) error {
	flagSet := flag.NewFlagSet("info", flag.ContinueOnError)
	flagSet.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: tfsctl info [options] <image>")
		flagSet.PrintDefaults()
	}

	password := flagSet.StringP("password", "p", "", "password, if the image has a speck layer")

	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() < 1 {
		flagSet.Usage()
		return errors.New("missing image path")
	}
	path := flagSet.Arg(0)

	var opts []tfs.Option
	if *password != "" {
		opts = append(opts, tfs.WithPassword([]byte(*password)))
	}

	t, err := tfs.Open(path, opts...)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer t.Close()

	header := t.Header()
	superpage, err := t.Superpage()
	if err != nil {
		return fmt.Errorf("superpage: %w", err)
	}

	fmt.Printf("image:       %s\n", path)
	fmt.Printf("uid:         %x\n", header.UID)
	fmt.Printf("version:     %d.%d\n", header.VersionMajor, header.VersionMinor)
	fmt.Printf("vdev stack:  %v\n", header.VdevStack)
	if superpage.IsNull() {
		fmt.Println("superpage:   (none)")
	} else {
		fmt.Printf("superpage:   cluster=%d offset=%v checksum=%#x\n", superpage.Cluster, superpage.Offset, superpage.Checksum)
	}
	return nil
}
