// Package cli dispatches the vidbee-server subcommands.
package cli

import "fmt"

func Run(args []string) error {
	if len(args) == 0 {
		printRootUsage()
		return nil
	}

	switch args[0] {
	case "serve":
		return runServe(args[1:])
	case "watch":
		return runWatch(args[1:])
	case "doctor":
		return runDoctor(args[1:])
	case "version":
		return runVersion(args[1:])
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		printRootUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printRootUsage() {
	fmt.Println("vidbee-server: yt-dlp download orchestrator")
	fmt.Println()
	fmt.Println("Quick Start:")
	fmt.Println("  vidbee-server doctor")
	fmt.Println("  vidbee-server serve")
	fmt.Println("  vidbee-server watch")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve     run the download server (HTTP API + event stream)")
	fmt.Println("  watch     live terminal dashboard against a running server")
	fmt.Println("  doctor    run dependency and filesystem preflight checks")
	fmt.Println("  version   print the build version")
	fmt.Println()
	fmt.Println("Notes:")
	fmt.Println("  - Config file defaults to ~/.vidbee/config.yaml; --config overrides")
	fmt.Println("  - Use --json on doctor for machine-readable output")
}
