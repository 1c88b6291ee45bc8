package app

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/asanchezr/routerfee/internal/cache"
	"github.com/asanchezr/routerfee/internal/config"
	clierr "github.com/asanchezr/routerfee/internal/errors"
	"github.com/asanchezr/routerfee/internal/id"
	"github.com/asanchezr/routerfee/internal/inject"
	"github.com/asanchezr/routerfee/internal/model"
	"github.com/asanchezr/routerfee/internal/out"
	"github.com/asanchezr/routerfee/internal/policy"
	"github.com/asanchezr/routerfee/internal/registry"
	"github.com/asanchezr/routerfee/internal/schema"
	"github.com/asanchezr/routerfee/internal/version"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type Runner struct {
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
	}
}

type runtimeState struct {
	runner       *Runner
	flags        config.GlobalFlags
	settings     config.Settings
	cache        *cache.Store
	root         *cobra.Command
	lastCommand  string
	lastWarnings []string

	directory *registry.Directory
	engine    *inject.Engine
}

func (r *Runner) Run(args []string) int {
	state := &runtimeState{runner: r}
	root := state.newRootCommand()
	state.root = root
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.Execute()
	err = normalizeRunError(err)
	if err == nil {
		if state.cache != nil {
			_ = state.cache.Close()
		}
		return 0
	}

	state.renderError("", err, state.lastWarnings)
	if state.cache != nil {
		_ = state.cache.Close()
	}
	return clierr.ExitCode(err)
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Universal Router fee-injection CLI",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "load configuration", err)
			}
			s.settings = settings

			path := trimRootPath(cmd.CommandPath())
			s.lastCommand = path
			if err := policy.CheckCommandAllowed(settings.EnableCommands, path); err != nil {
				return err
			}

			if s.directory == nil {
				dir, err := buildDirectory(settings)
				if err != nil {
					return err
				}
				s.directory = dir
				s.engine = inject.New(dir, s.newLogger())
			}

			if settings.CacheEnabled && shouldOpenCache(path) && s.cache == nil {
				cacheStore, err := cache.Open(settings.CachePath, settings.CacheLockPath)
				if err != nil {
					return clierr.Wrap(clierr.CodeInternal, "open cache", err)
				}
				s.cache = cacheStore
			}
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.CodeUsage, "parse flags", err)
	})

	cmd.PersistentFlags().BoolVar(&s.flags.JSON, "json", false, "Output JSON (default)")
	cmd.PersistentFlags().BoolVar(&s.flags.Plain, "plain", false, "Output plain text")
	cmd.PersistentFlags().StringVar(&s.flags.Select, "select", "", "Select fields from data (comma-separated)")
	cmd.PersistentFlags().BoolVar(&s.flags.ResultsOnly, "results-only", false, "Output only data payload")
	cmd.PersistentFlags().StringVar(&s.flags.EnableCommands, "enable-commands", "", "Allowlist command paths (comma-separated)")
	cmd.PersistentFlags().StringVar(&s.flags.Timeout, "timeout", "", "RPC request timeout")
	cmd.PersistentFlags().StringVar(&s.flags.MaxStale, "max-stale", "", "Maximum stale fallback window after TTL expiry")
	cmd.PersistentFlags().BoolVar(&s.flags.NoStale, "no-stale", false, "Reject stale cache entries")
	cmd.PersistentFlags().BoolVar(&s.flags.NoCache, "no-cache", false, "Disable cache reads and writes")
	cmd.PersistentFlags().StringVar(&s.flags.ConfigPath, "config", "", "Path to config file")
	cmd.PersistentFlags().StringVar(&s.flags.LogLevel, "log-level", "", "Engine log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&s.flags.FeeRecipient, "fee-recipient", "", "Operator fee recipient address")
	cmd.PersistentFlags().IntVar(&s.flags.FeeBps, "fee-bps", 0, "Operator fee in basis points")

	cmd.AddCommand(s.newSchemaCommand())
	cmd.AddCommand(s.newDetectCommand())
	cmd.AddCommand(s.newInspectCommand())
	cmd.AddCommand(s.newInjectCommand())
	cmd.AddCommand(s.newEstimateCommand())
	cmd.AddCommand(s.newRoutersCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func (s *runtimeState) newLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(s.settings.LogLevel)
	if err != nil {
		level = zerolog.WarnLevel
	}
	return zerolog.New(s.runner.stderr).Level(level).With().Timestamp().Logger()
}

func buildDirectory(settings config.Settings) (*registry.Directory, error) {
	dir := registry.NewDirectory()
	for chainID, addrs := range settings.RouterOverlays {
		for _, raw := range addrs {
			addr, err := id.ParseAddress(raw)
			if err != nil {
				return nil, clierr.Wrap(clierr.CodeUsage, fmt.Sprintf("router overlay for chain %d", chainID), err)
			}
			dir.AddRouter(chainID, addr)
		}
	}
	for chainID, raw := range settings.WrappedNatives {
		addr, err := id.ParseAddress(raw)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeUsage, fmt.Sprintf("wrapped native overlay for chain %d", chainID), err)
		}
		dir.SetWrappedNative(chainID, addr)
	}
	return dir, nil
}

func newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			if long {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Long())
				return
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.CLIVersion)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}

func (s *runtimeState) newSchemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema [command path]",
		Short: "Print machine-readable command schema",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = strings.Join(args, " ")
			}
			data, err := schema.Build(s.root, path)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "build schema", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), data, nil, cacheMetaBypass())
		},
	}
	return cmd
}

func (s *runtimeState) newRoutersCommand() *cobra.Command {
	var chainArg string
	cmd := &cobra.Command{
		Use:   "routers",
		Short: "List known routers and wrapped-native tokens per chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			chains := s.directory.Chains()
			if strings.TrimSpace(chainArg) != "" {
				chain, err := id.ParseChain(chainArg)
				if err != nil {
					return err
				}
				chains = []uint64{chain.ChainID}
			}
			listings := make([]model.RouterListing, 0, len(chains))
			for _, chainID := range chains {
				routers := s.directory.Routers(chainID)
				hexed := make([]string, 0, len(routers))
				for _, r := range routers {
					hexed = append(hexed, strings.ToLower(r.Hex()))
				}
				listing := model.RouterListing{
					ChainID: fmt.Sprintf("eip155:%d", chainID),
					Routers: hexed,
				}
				if wrapped := s.directory.WrappedNative(chainID); wrapped != (common.Address{}) {
					listing.WrappedNative = strings.ToLower(wrapped.Hex())
				}
				if url, ok := registry.DefaultRPCURL(chainID); ok {
					listing.DefaultRPC = url
				}
				listings = append(listings, listing)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), listings, nil, cacheMetaBypass())
		},
	}
	cmd.Flags().StringVar(&chainArg, "chain", "", "Limit output to one chain (slug, decimal ID, or CAIP-2)")
	return cmd
}

type fetchFn func(ctx context.Context) (data any, warnings []string, err error)

// runQuotedCommand serves the quote cached for (chainID, fingerprint)
// when it is fresh, and falls back to a stale one when the fresh fetch
// fails and the stale budget allows it.
func (s *runtimeState) runQuotedCommand(commandPath, chainID, fingerprint, strategy string, ttl time.Duration, fetch fetchFn) error {
	s.lastWarnings = nil
	cacheStatus := cacheMetaMiss()
	warnings := []string{}
	var staleData any
	staleAvailable := false
	staleObservedAge := time.Duration(0)
	staleObservedAt := time.Time{}
	staleCacheStatus := cacheMetaMiss()

	if s.settings.CacheEnabled && s.cache != nil {
		lookup, err := s.cache.QuoteFor(chainID, fingerprint, s.settings.MaxStale)
		if err == nil && lookup.Found {
			entryStatus := model.CacheStatus{Status: "hit", AgeMS: lookup.Age.Milliseconds(), Stale: lookup.Stale}
			var data any
			if err := json.Unmarshal(lookup.Quote.Payload, &data); err == nil {
				if !lookup.Stale {
					return s.emitSuccess(commandPath, data, warnings, entryStatus)
				}
				staleData = data
				staleAvailable = true
				staleObservedAge = lookup.Age
				staleObservedAt = time.Now()
				staleCacheStatus = entryStatus
			}
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
	defer cancel()
	data, fetchWarnings, err := fetch(ctx)
	warnings = append(warnings, fetchWarnings...)
	s.lastWarnings = warnings
	if err != nil {
		if staleAvailable {
			if !staleFallbackAllowed(err) {
				return err
			}
			currentStaleAge := staleObservedAge
			if !staleObservedAt.IsZero() {
				currentStaleAge += time.Since(staleObservedAt)
			}
			staleCacheStatus.AgeMS = currentStaleAge.Milliseconds()
			if s.settings.NoStale {
				return clierr.Wrap(clierr.CodeStale, "fresh fetch failed and stale fallback is disabled (--no-stale)", err)
			}
			if staleExceedsBudget(currentStaleAge, ttl, s.settings.MaxStale) {
				return clierr.Wrap(clierr.CodeStale, "fresh fetch failed and cached data exceeded stale budget", err)
			}
			warnings = append(warnings, "fetch failed; serving stale data within max-stale budget")
			s.lastWarnings = warnings
			return s.emitSuccess(commandPath, staleData, warnings, staleCacheStatus)
		}
		return err
	}

	if s.settings.CacheEnabled && s.cache != nil {
		if payload, err := json.Marshal(data); err == nil {
			quote := cache.Quote{ChainID: chainID, Strategy: strategy, Payload: payload}
			_ = s.cache.SaveQuote(quote, fingerprint, ttl)
			cacheStatus = model.CacheStatus{Status: "write", AgeMS: 0, Stale: false}
		}
	}

	return s.emitSuccess(commandPath, data, warnings, cacheStatus)
}

func (s *runtimeState) emitSuccess(commandPath string, data any, warnings []string, cacheStatus model.CacheStatus) error {
	env := model.Envelope{
		Version:  model.EnvelopeVersion,
		Success:  true,
		Data:     data,
		Error:    nil,
		Warnings: warnings,
		Meta: model.EnvelopeMeta{
			RequestID: newRequestID(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
			Cache:     cacheStatus,
		},
	}
	return out.Render(s.runner.stdout, env, s.settings)
}

func (s *runtimeState) renderError(commandPath string, err error, warnings []string) {
	if strings.TrimSpace(commandPath) == "" {
		commandPath = s.lastCommand
		if commandPath == "" {
			commandPath = version.CLIName
		}
	}
	code := clierr.ExitCode(err)
	typ := "internal_error"
	message := err.Error()
	if cErr, ok := clierr.As(err); ok {
		message = cErr.Message
		if cErr.Cause != nil {
			message = fmt.Sprintf("%s: %v", cErr.Message, cErr.Cause)
		}
		switch cErr.Code {
		case clierr.CodeUsage:
			typ = "usage_error"
		case clierr.CodeAuth:
			typ = "auth_error"
		case clierr.CodeRateLimited:
			typ = "rate_limited"
		case clierr.CodeUnavailable:
			typ = "rpc_unavailable"
		case clierr.CodeUnsupported:
			typ = "unsupported"
		case clierr.CodeStale:
			typ = "stale_data"
		case clierr.CodeBlocked:
			typ = "command_blocked"
		case clierr.CodeEstimate:
			typ = "estimate_failed"
		}
	}

	settings := s.settings
	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	settings.ResultsOnly = false
	settings.SelectFields = nil
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: false,
		Data:    []any{},
		Error: &model.ErrorBody{
			Code:    code,
			Type:    typ,
			Message: message,
		},
		Warnings: warnings,
		Meta: model.EnvelopeMeta{
			RequestID: newRequestID(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
			Cache:     cacheMetaBypass(),
		},
	}
	_ = out.Render(s.runner.stderr, env, settings)
}

// quoteFingerprint hashes the priced request so equivalent estimate
// invocations share one cached quote per chain.
func quoteFingerprint(commandPath string, req any) string {
	buf, _ := json.Marshal(req)
	sum := sha256.Sum256(append([]byte(commandPath+"|"), buf...))
	return hex.EncodeToString(sum[:])
}

func newRequestID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func trimRootPath(path string) string {
	parts := strings.Fields(path)
	if len(parts) <= 1 {
		return path
	}
	return strings.Join(parts[1:], " ")
}

func cacheMetaBypass() model.CacheStatus {
	return model.CacheStatus{Status: "bypass", AgeMS: 0, Stale: false}
}

func cacheMetaMiss() model.CacheStatus {
	return model.CacheStatus{Status: "miss", AgeMS: 0, Stale: false}
}

func normalizeRunError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := clierr.As(err); ok {
		return err
	}
	if isLikelyUsageError(err) {
		return clierr.Wrap(clierr.CodeUsage, "invalid command input", err)
	}
	return clierr.Wrap(clierr.CodeInternal, "execute command", err)
}

func isLikelyUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	patterns := []string{
		"unknown command",
		"unknown flag",
		"required flag(s)",
		"flag needs an argument",
		"requires at least",
		"requires exactly",
		"accepts ",
		"invalid argument",
		"invalid args",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

func staleExceedsBudget(age, ttl, maxStale time.Duration) bool {
	if age <= ttl {
		return false
	}
	if maxStale < 0 {
		return false
	}
	return age > ttl+maxStale
}

func staleFallbackAllowed(err error) bool {
	cErr, ok := clierr.As(err)
	if !ok {
		return false
	}
	return cErr.Code == clierr.CodeUnavailable || cErr.Code == clierr.CodeRateLimited || cErr.Code == clierr.CodeEstimate
}

func shouldOpenCache(commandPath string) bool {
	return normalizeCommandPath(commandPath) == "estimate"
}

func normalizeCommandPath(commandPath string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(commandPath))), " ")
}
