package main

import (
	"fmt"
	"os"
)

const usage = `Usage: kdlc <command> [flags] [files...]

Commands:
  compile   compile KDL sources into a resource database
  decode    print the resources of a database as KDL source
  dump      compile KDL sources and print the encoded resources as hex
  rm        remove one resource from a database

Run 'kdlc <command> -h' for the flags of a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	args := os.Args[2:]
	switch os.Args[1] {
	case "compile":
		os.Exit(cmdCompile(args))
	case "decode":
		os.Exit(cmdDecode(args))
	case "dump":
		os.Exit(cmdDump(args))
	case "rm":
		os.Exit(cmdRemove(args))
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "kdlc: unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
}
