// Package main implements the sitecrew CLI: it runs one page-building
// workflow from an initiating request and prints the resulting summary.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hupe1980/sitecrew"
	"github.com/hupe1980/sitecrew/config"
	"github.com/hupe1980/sitecrew/deploy"
	"github.com/hupe1980/sitecrew/logging"
	"github.com/hupe1980/sitecrew/transcript"
	"github.com/hupe1980/sitecrew/workflow"
	"github.com/spf13/cobra"
)

var version = "dev"

// defaultRequest is used when no request argument is given.
const defaultRequest = "Build a weather page for San Francisco. " +
	"Show current weather, temperature, humidity and a 5-day forecast. " +
	"Make it responsive and visually appealing. " +
	"Once it's done and ready, I will reply 'APPROVED'."

var (
	configPath  string
	targetDir   string
	remoteURL   string
	autoApprove bool
	dryRun      bool
	useScript   bool
	logLevel    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "sitecrew",
	Short:   "Multi-agent page builder with automated deployment",
	Long:    "sitecrew coordinates a requirements analyst, a builder and a reviewer gatekeeper\nto produce a web page, then publishes the approved result to a git remote.",
	Version: version,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [request]",
	Short: "Run one page-building workflow",
	Long: `Run one page-building workflow for the given request.

Examples:
  # Unattended run with auto-approval
  sitecrew run "Build a landing page for my bakery" --target ./site --auto-approve

  # Interactive run: you are prompted to approve once the reviewers are done
  sitecrew run "Build a portfolio page" --target ./site

  # Dry run without deployment
  sitecrew run --dry-run`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWorkflow,
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "path to YAML config file")
	runCmd.Flags().StringVar(&targetDir, "target", "", "deployment target directory")
	runCmd.Flags().StringVar(&remoteURL, "remote", "", "version-control remote URL")
	runCmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "synthesize the user approval turn (unattended runs)")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "skip deployment entirely")
	runCmd.Flags().BoolVar(&useScript, "use-script", false, "deploy via a generated shell script instead of in-process git")
	runCmd.Flags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if targetDir != "" {
		cfg.TargetDir = targetDir
	}
	if remoteURL != "" {
		cfg.RemoteURL = remoteURL
	}
	if autoApprove {
		cfg.AutoApprove = true
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	request := defaultRequest
	if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
		request = args[0]
	}

	crew, err := sitecrew.New(func(o *sitecrew.Options) {
		o.Config = cfg
		o.Logger = logger
		o.DisableDeploy = dryRun
		if useScript && !dryRun {
			o.Publisher = deploy.NewScriptPipeline(cfg.TargetDir, nil, func(do *deploy.Options) {
				do.Filename = cfg.ArtifactFile
				do.RemoteName = cfg.RemoteName
				do.RemoteURL = cfg.RemoteURL
				do.PrimaryBranch = cfg.PrimaryBranch
				do.SecondaryBranch = cfg.SecondaryBranch
				do.PushTimeout = cfg.PushTimeout
				do.Logger = logger
			})
		}
		if !cfg.AutoApprove {
			o.Approver = promptApproval(cmd)
		}
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, runErr := crew.Run(ctx, request)
	printSummary(cmd, res)
	if runErr != nil {
		return fmt.Errorf("workflow did not complete: %w", runErr)
	}
	return nil
}

// promptApproval reads the user's approval from stdin once the gatekeeper
// declares the deliverable ready.
func promptApproval(cmd *cobra.Command) workflow.Approver {
	return func(ctx context.Context, tr *transcript.Transcript) (string, error) {
		if last, ok := tr.LatestBy(func(t transcript.Turn) bool { return t.Role == transcript.RoleParticipant }); ok {
			cmd.Printf("\n%s: %s\n", last.Author, last.Text)
		}
		cmd.Print("\nType APPROVED to deploy (anything else leaves the run incomplete): ")

		reader := bufio.NewReader(cmd.InOrStdin())
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}
}

func printSummary(cmd *cobra.Command, res workflow.Result) {
	cmd.Println()
	cmd.Println("=== Workflow summary ===")
	cmd.Printf("Status:   %s\n", res.Status)
	cmd.Printf("Turns:    %d\n", res.TurnCount)
	cmd.Printf("Deployed: %t\n", res.Deployed)
	if res.Deployment != nil {
		cmd.Printf("Target:   %s (%s)\n", res.Deployment.Dir, res.Deployment.Status)
	}
	if res.Diagnostic != "" {
		cmd.Printf("Detail:   %s\n", res.Diagnostic)
	}
}
