package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/starkandwayne/cepler/internal/cerr"
	"github.com/starkandwayne/cepler/internal/config"
	"github.com/starkandwayne/cepler/internal/repo"
	"github.com/starkandwayne/cepler/internal/workspace"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	var err error
	switch args[0] {
	case "version":
		fmt.Printf("cepler version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		return
	case "ls":
		err = runLs(args[1:])
	case "check":
		err = runCheck(args[1:])
	case "prepare":
		err = runPrepare(args[1:])
	case "record":
		err = runRecord(args[1:])
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if cerr.Is(err, cerr.PrerequisiteError) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `cepler - GitOps deploy-state propagation

Usage:
  cepler <command> -environment=NAME [options]

Commands:
  ls         list the files an environment's deploy state would contain
  check      report whether an environment has anything new to deploy
  prepare    realize an environment's deploy state in the working tree
  record     persist the environment's current deploy state
  version    print version information

This is a thin demonstration entry point: flag parsing, CI-plugin JSON
envelopes, and the concrete git remote wiring are left to the caller.
`)
}

// envArgs are the flags every subcommand shares: which config file and
// which environment. The repository is always the current directory's.
type envArgs struct {
	configPath string
	envName    string
}

func parseEnvArgs(name string, args []string) (*envArgs, *flag.FlagSet) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	e := &envArgs{}
	fs.StringVar(&e.configPath, "config", "cepler.yml", "path to the pipeline config")
	fs.StringVar(&e.envName, "environment", "", "environment name (required)")
	fs.Parse(args)
	return e, fs
}

func loadEnv(e *envArgs) (*config.EnvironmentConfig, error) {
	if e.envName == "" {
		return nil, cerr.New(cerr.ConfigError, "-environment is required")
	}
	cfg, err := config.FromFile(e.configPath)
	if err != nil {
		return nil, err
	}
	return cfg.Get(e.envName), nil
}

func openCapability() (repo.Capability, error) {
	return repo.Open()
}

func runLs(args []string) error {
	e, _ := parseEnvArgs("ls", args)
	env, err := loadEnv(e)
	if err != nil {
		return err
	}
	if env == nil {
		return cerr.New(cerr.ConfigError, "unknown environment "+e.envName)
	}
	ws, err := workspace.New(e.configPath)
	if err != nil {
		return err
	}
	capability, err := openCapability()
	if err != nil {
		return err
	}
	paths, err := ws.Ls(capability, env)
	if err != nil {
		return err
	}
	for _, path := range paths {
		fmt.Println(path)
	}
	return nil
}

func runCheck(args []string) error {
	e, _ := parseEnvArgs("check", args)
	env, err := loadEnv(e)
	if err != nil {
		return err
	}
	if env == nil {
		return cerr.New(cerr.ConfigError, "unknown environment "+e.envName)
	}
	ws, err := workspace.New(e.configPath)
	if err != nil {
		return err
	}
	capability, err := openCapability()
	if err != nil {
		return err
	}
	result, err := ws.Check(capability, env)
	if err != nil {
		return err
	}
	if result == nil {
		fmt.Println("nothing new to deploy")
		return nil
	}
	fmt.Printf("new deploy candidate at %s\n", result.CommitShortRef)
	for _, d := range result.Diffs {
		switch {
		case d.CurrentState == nil:
			fmt.Printf("  removed  %s\n", d.Path)
		case d.Added:
			fmt.Printf("  added    %s\n", d.Path)
		default:
			fmt.Printf("  changed  %s\n", d.Path)
		}
	}
	return nil
}

func runPrepare(args []string) error {
	fs := flag.NewFlagSet("prepare", flag.ExitOnError)
	e := &envArgs{}
	fs.StringVar(&e.configPath, "config", "cepler.yml", "path to the pipeline config")
	fs.StringVar(&e.envName, "environment", "", "environment name (required)")
	forceClean := fs.Bool("force-clean", false, "restrict HEAD checkout to this environment's head_filters")
	fs.Parse(args)

	env, err := loadEnv(e)
	if err != nil {
		return err
	}
	if env == nil {
		return cerr.New(cerr.ConfigError, "unknown environment "+e.envName)
	}
	ws, err := workspace.New(e.configPath)
	if err != nil {
		return err
	}
	capability, err := openCapability()
	if err != nil {
		return err
	}
	return ws.Prepare(capability, env, *forceClean)
}

func runRecord(args []string) error {
	fs := flag.NewFlagSet("record", flag.ExitOnError)
	e := &envArgs{}
	fs.StringVar(&e.configPath, "config", "cepler.yml", "path to the pipeline config")
	fs.StringVar(&e.envName, "environment", "", "environment name (required)")
	doCommit := fs.Bool("commit", false, "commit the updated state file")
	doReset := fs.Bool("reset", false, "reset the working tree to HEAD after recording")
	doPush := fs.Bool("push", false, "push after committing")
	fs.Parse(args)

	env, err := loadEnv(e)
	if err != nil {
		return err
	}
	if env == nil {
		return cerr.New(cerr.ConfigError, "unknown environment "+e.envName)
	}
	ws, err := workspace.New(e.configPath)
	if err != nil {
		return err
	}
	capability, err := openCapability()
	if err != nil {
		return err
	}
	result, err := ws.Record(capability, env, *doCommit, *doReset, *doPush)
	if err != nil {
		return err
	}
	fmt.Printf("recorded %s at %s\n", e.envName, result.HeadShortRef)
	return nil
}
