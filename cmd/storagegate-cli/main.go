package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/agdev/storagegate/clientcli"
)

var (
	version = "dev"

	cfgFile    string
	profile    string
	endpoint   string
	token      string
	jsonOutput bool
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:     "storagegate-cli",
	Version: version,
	Short:   "Client for the storagegate presigned URL gateway",
	Long: `storagegate-cli - client for the storagegate presigned URL gateway

Object bytes go straight to the blob store: the CLI asks the gateway for a
presigned URL and then uploads or downloads against it.

Targets are either the static namespace of a domain (--domain, optionally
--project and --user) or a dynamic object group (--group). Without either,
the profile's domain and project_id are used (env: STORAGEGATE_DOMAIN,
STORAGEGATE_PROJECT).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ~/.storagegate/config.yaml, env: STORAGEGATE_CLI_CONFIG)")
	rootCmd.PersistentFlags().StringVarP(&profile, "profile", "p", "", "profile name (env: STORAGEGATE_PROFILE)")
	rootCmd.PersistentFlags().StringVarP(&endpoint, "endpoint", "e", "", "gateway URL (default: http://localhost:8000, env: STORAGEGATE_ENDPOINT)")
	rootCmd.PersistentFlags().StringVarP(&token, "token", "t", "", "bearer token (env: STORAGEGATE_TOKEN)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")

	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(urlCmd)
	rootCmd.AddCommand(groupCmd)
	rootCmd.AddCommand(configureCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		_ = getFormatter().FormatError(os.Stderr, err)
		os.Exit(1)
	}
}

// getConfigPath returns the config file path from flag, env or default.
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if p := clientcli.ConfigPathFromEnv(); p != "" {
		return p
	}
	return clientcli.DefaultConfigPath()
}

// buildConfig merges profile, env vars and flags (flags take precedence).
func buildConfig() (*clientcli.Config, error) {
	var configs []*clientcli.Config

	name := profile
	if name == "" {
		name = clientcli.ProfileFromEnv()
	}

	file, err := clientcli.LoadConfigFile(getConfigPath())
	switch {
	case err == nil:
		p, profileErr := file.GetProfile(name)
		if profileErr != nil && (name != "" || !errors.Is(profileErr, clientcli.ErrNoProfiles)) {
			return nil, profileErr
		}
		if p != nil {
			configs = append(configs, clientcli.ConfigFromProfile(p))
		}
	case name != "" || cfgFile != "":
		// a profile or file was asked for explicitly
		return nil, err
	}

	configs = append(configs,
		clientcli.ConfigFromEnv(),
		&clientcli.Config{Endpoint: endpoint, Token: token},
	)

	return clientcli.MergeConfig(configs...), nil
}

// getFormatter returns the appropriate formatter based on flags.
func getFormatter() clientcli.Formatter {
	return clientcli.NewFormatter(jsonOutput, quiet)
}

// getClient creates and returns a configured client. Every gateway call
// needs a bearer token.
func getClient() (*clientcli.Client, error) {
	cfg, err := buildConfig()
	if err != nil {
		return nil, err
	}

	if err := cfg.ValidateWithAuth(); err != nil {
		return nil, fmt.Errorf("%w (use --token, STORAGEGATE_TOKEN or a profile)", err)
	}

	return clientcli.New(cfg)
}

// targetFlags are shared by every command that addresses an object.
type targetFlags struct {
	domain  string
	project string
	user    string
	group   string
}

func (f *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.domain, "domain", "d", "", "domain of a static object")
	cmd.Flags().StringVar(&f.project, "project", "", "project id segment of a static key")
	cmd.Flags().StringVar(&f.user, "user", "", "user id segment of a static key")
	cmd.Flags().StringVarP(&f.group, "group", "g", "", "dynamic object group id")
	cmd.MarkFlagsMutuallyExclusive("domain", "group")
}

// location builds the target from the flags. With neither --domain nor
// --group set, the profile's default domain is used, and its project too
// unless --project was given.
func (f *targetFlags) location(defaults clientcli.Location) (clientcli.Location, error) {
	loc := clientcli.Location{
		Domain:    f.domain,
		ProjectID: f.project,
		UserID:    f.user,
	}
	if f.group != "" {
		id, err := parseGroupID(f.group)
		if err != nil {
			return clientcli.Location{}, err
		}
		loc.GroupID = id
		return loc, nil
	}
	if loc.Domain == "" {
		loc.Domain = defaults.Domain
		if loc.ProjectID == "" {
			loc.ProjectID = defaults.ProjectID
		}
	}
	if loc.Domain == "" {
		return clientcli.Location{}, clientcli.ErrMissingTarget
	}
	return loc, nil
}

// resolve applies the configured default target to the flags.
func (f *targetFlags) resolve() (clientcli.Location, error) {
	cfg, err := buildConfig()
	if err != nil {
		return clientcli.Location{}, err
	}
	return f.location(cfg.DefaultLocation())
}

func parseGroupID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid group id %q: %w", raw, err)
	}
	return id, nil
}

// handleError prints err with the active formatter and returns an exitError
// so the message is not printed twice.
func handleError(w io.Writer, err error) error {
	_ = getFormatter().FormatError(w, err)
	return &exitError{code: 1}
}

// exitError is returned when we want to exit with a specific code
// but don't want the error printed again.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return ""
}
