package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"grimm.is/wanboard/cmd"
	"grimm.is/wanboard/internal/brand"
	"grimm.is/wanboard/internal/i18n"
)

var printer = cmd.Printer

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch os.Args[1] {
	case "serve":
		flags := flag.NewFlagSet("serve", flag.ExitOnError)
		configFile := configFlag(flags)
		flags.Parse(os.Args[2:])
		err = cmd.RunServe(*configFile)

	case "tui":
		flags := flag.NewFlagSet("tui", flag.ExitOnError)
		var opts cmd.TUIOptions
		clientFlags(flags, &opts.ClientOptions)
		flags.StringVar(&opts.ConfigFile, "c", "", "Configuration file")
		flags.BoolVar(&opts.Local, "local", false, "Talk to the router directly (requires -c)")
		flags.Parse(os.Args[2:])
		if opts.Local && opts.ConfigFile == "" {
			opts.ConfigFile = brand.DefaultConfigPath()
		}
		err = cmd.RunTUI(opts)

	case "status":
		flags := flag.NewFlagSet("status", flag.ExitOnError)
		var opts cmd.ClientOptions
		clientFlags(flags, &opts)
		flags.Parse(os.Args[2:])
		err = cmd.RunStatus(ctx, os.Stdout, opts)

	case "prefer", "refresh":
		flags := flag.NewFlagSet(os.Args[1], flag.ExitOnError)
		var opts cmd.ClientOptions
		clientFlags(flags, &opts)
		flags.Parse(os.Args[2:])
		if os.Args[1] == "prefer" {
			err = cmd.RunPrefer(ctx, os.Stdout, opts, flags.Arg(0))
		} else {
			err = cmd.RunRefresh(ctx, os.Stdout, opts, flags.Arg(0))
		}

	case "audit":
		flags := flag.NewFlagSet("audit", flag.ExitOnError)
		var opts cmd.ClientOptions
		clientFlags(flags, &opts)
		limit := flags.Int("n", 20, "Number of events")
		action := flags.String("action", "", "Only show this action (prefer, refresh, reset-password)")
		flags.Parse(os.Args[2:])
		err = cmd.RunAudit(ctx, os.Stdout, opts, *action, *limit)

	case "guest":
		flags := flag.NewFlagSet("guest", flag.ExitOnError)
		var opts cmd.ClientOptions
		clientFlags(flags, &opts)
		reset := flags.Bool("reset", false, "Rotate the guest passphrase")
		flags.Parse(os.Args[2:])
		err = cmd.RunGuest(ctx, os.Stdout, opts, *reset)

	case "check":
		flags := flag.NewFlagSet("check", flag.ExitOnError)
		configFile := configFlag(flags)
		verbose := flags.Bool("v", false, "Verbose output")
		flags.Parse(os.Args[2:])
		if flags.NArg() > 0 {
			*configFile = flags.Arg(0)
		}
		err = cmd.RunCheck(ctx, os.Stdout, *configFile, *verbose)

	case "version":
		printer.Printf("%s %s (%s)\n", brand.Name, brand.Version, brand.GitCommit)

	case "help", "-h", "--help":
		printUsage()

	default:
		printer.Fprintln(os.Stderr, printer.Sprintf(i18n.MsgUnknownCommand, os.Args[1]))
		printer.Fprintln(os.Stderr)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		printer.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func configFlag(flags *flag.FlagSet) *string {
	return flags.String("c", brand.DefaultConfigPath(), "Configuration file")
}

func clientFlags(flags *flag.FlagSet, opts *cmd.ClientOptions) {
	flags.StringVar(&opts.URL, "url", os.Getenv(brand.ConfigEnvPrefix+"_URL"), "Dashboard API URL")
	flags.BoolVar(&opts.Insecure, "insecure", false, "Skip TLS certificate verification")
	flags.DurationVar(&opts.Timeout, "timeout", 30*time.Second, "Request timeout")
}

func printUsage() {
	printer.Println(printer.Sprintf(i18n.MsgUsage, brand.LowerName))
	fmt.Fprintf(os.Stdout, `
%s - %s

Commands:
  serve     Run the API server              -c <file>
  tui       Terminal dashboard              -url <url> | -local -c <file>
  status    Print the connection view       -url <url>
  prefer    Make an interface preferred     <interface>
  refresh   Disable and re-enable an interface  <interface>
  audit     Show recent mutations           -n <count> -action <name>
  guest     Show guest Wi-Fi credentials    -reset
  check     Validate configuration and reach the router  -v [file]
  version   Print version information
`, brand.Name, brand.Description)
}
