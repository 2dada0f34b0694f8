// Boa command-line client
//
// Submits queries to the Boa infrastructure and retrieves their results.
// Every command logs in first and logs out when done.
//
// Sub-commands:
//
//	boa datasets                          List input datasets
//	boa jobs [-public] [-offset N -length N]
//	boa count [-public]                   Count jobs
//	boa job <id>                          Show a job
//	boa last                              Show the most recent job
//	boa submit -file F [-dataset NAME] [-wait]
//	boa stop|resubmit|delete <id>
//	boa public <id> [true|false]          Show or change job visibility
//	boa url [-public] <id>
//	boa source <id>
//	boa errors <id>                       Show compiler errors
//	boa output [-o FILE] [-start N -length N] <id>
//	boa size <id>                         Show output size in bytes
//	boa wait <id>                         Wait for a job to finish
//	boa archive <id>                      Upload job output to S3
//	boa history sync|list                 Record or show job history
//	boa cache [-clear | -evict ID]        Show or clear the output cache
//
// Configuration is read from -config (YAML/JSON) and BOA_* environment
// variables, e.g. BOA_USERNAME, BOA_PASSWORD, BOA_DOMAIN.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/boalang/boa-client-go/internal/config"
	"github.com/boalang/boa-client-go/internal/logging"
	"github.com/boalang/boa-client-go/internal/metrics"
	"github.com/boalang/boa-client-go/pkg/cache"
	"github.com/boalang/boa-client-go/pkg/client"
)

type command struct {
	run   func(args []string)
	usage string
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"datasets": {cmdDatasets, "List input datasets"},
		"jobs":     {cmdJobs, "List jobs"},
		"count":    {cmdCount, "Count jobs"},
		"job":      {cmdJob, "Show a job"},
		"last":     {cmdLast, "Show the most recent job"},
		"submit":   {cmdSubmit, "Submit a query"},
		"stop":     {jobAction("stop", (*client.Client).Stop), "Stop a job"},
		"resubmit": {jobAction("resubmit", (*client.Client).Resubmit), "Run a job again"},
		"delete":   {jobAction("delete", (*client.Client).Delete), "Delete a job"},
		"public":   {cmdPublic, "Show or change job visibility"},
		"url":      {cmdURL, "Show a job's web page"},
		"source":   {cmdSource, "Show a job's query source"},
		"errors":   {cmdErrors, "Show compiler errors"},
		"output":   {cmdOutput, "Print or save job output"},
		"size":     {cmdSize, "Show output size in bytes"},
		"wait":     {cmdWait, "Wait for a job to finish"},
		"archive":  {cmdArchive, "Upload job output to S3"},
		"history":  {cmdHistory, "Record or show job history"},
		"cache":    {cmdCache, "Show or clear the output cache"},
	}
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		if os.Args[1] != "help" && os.Args[1] != "-h" && os.Args[1] != "--help" {
			fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", os.Args[1])
		}
		usage()
		os.Exit(2)
	}
	cmd.run(os.Args[2:])
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: boa <command> [flags] [args]\n\nCommands:\n")
	for _, name := range []string{
		"datasets", "jobs", "count", "job", "last", "submit", "stop", "resubmit", "delete",
		"public", "url", "source", "errors", "output", "size", "wait", "archive", "history", "cache",
	} {
		fmt.Fprintf(os.Stderr, "  %-10s %s\n", name, commands[name].usage)
	}
}

// globalFlags are accepted by every command.
type globalFlags struct {
	configPath *string
	verbose    *bool
}

func newFlagSet(name string) (*flag.FlagSet, globalFlags) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	g := globalFlags{
		configPath: fs.String("config", "", "Config file (YAML or JSON)"),
		verbose:    fs.Bool("v", false, "Debug logging"),
	}
	return fs, g
}

// load reads configuration and initializes logging and metrics.
func load(g globalFlags) *config.Config {
	cfg, err := config.Load(*g.configPath)
	if err != nil {
		fatalf("Error: %v", err)
	}

	level := cfg.LogLevel
	if *g.verbose {
		level = "debug"
	}
	if err := logging.Init(logging.Config{Level: level, Format: cfg.LogFormat}); err != nil {
		fatalf("Error: init logging: %v", err)
	}

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logging.Warn("metrics listener stopped", logging.Err(err))
			}
		}()
	}
	return cfg
}

// withSession logs in, runs fn and always logs out.
func withSession(g globalFlags, fn func(ctx context.Context, cfg *config.Config, c *client.Client) error) {
	cfg := load(g)
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var outputs *cache.Cache
	if cfg.CacheDir != "" {
		var err error
		if outputs, err = cache.New(cfg.CacheDir, cfg.CacheMaxSize); err != nil {
			fatalf("Error: open output cache: %v", err)
		}
	}

	c, err := client.New(client.Config{
		Domain:      cfg.Domain,
		Path:        cfg.Path,
		Timeout:     cfg.Timeout,
		DatasetTTL:  cfg.DatasetTTL,
		OutputCache: outputs,
		Metrics:     metrics.Recorder{},
	})
	if err != nil {
		fatalf("Error: %v", err)
	}

	username, password, err := credentials(cfg)
	if err != nil {
		fatalf("Error: %v", err)
	}
	if err := c.Login(ctx, username, password); err != nil {
		fatalf("Login failed: %v", err)
	}

	ctx = logging.With(ctx, logging.String("user", username))
	runErr := fn(ctx, cfg, c)

	if err := c.Logout(context.Background()); err != nil {
		logging.Warn("logout failed", logging.Err(err))
	}
	if runErr != nil {
		logging.Sync()
		fatalf("Error: %v", runErr)
	}
}

// credentials takes the username and password from configuration, prompting
// on the terminal for whatever is missing.
func credentials(cfg *config.Config) (string, string, error) {
	username, password := cfg.Username, cfg.Password
	interactive := term.IsTerminal(int(syscall.Stdin))

	if username == "" {
		if !interactive {
			return "", "", errors.New("no username configured (set BOA_USERNAME)")
		}
		fmt.Fprint(os.Stderr, "Username: ")
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		username = strings.TrimSpace(line)
	}

	if password == "" {
		if !interactive {
			return "", "", errors.New("no password configured (set BOA_PASSWORD)")
		}
		fmt.Fprint(os.Stderr, "Password: ")
		b, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", "", fmt.Errorf("reading password: %w", err)
		}
		password = string(b)
	}
	return username, password, nil
}

// jobID parses the single job id argument of a command.
func jobID(fs *flag.FlagSet, usage string) int {
	if fs.NArg() < 1 {
		fatalf("Usage: boa %s", usage)
	}
	id, err := strconv.Atoi(fs.Arg(0))
	if err != nil || id < 0 {
		fatalf("Error: invalid job id %q", fs.Arg(0))
	}
	return id
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
