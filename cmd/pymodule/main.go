package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bilusteknoloji/pymodule/internal/cache"
	"github.com/bilusteknoloji/pymodule/internal/config"
	"github.com/bilusteknoloji/pymodule/internal/downloader"
	"github.com/bilusteknoloji/pymodule/internal/installer"
	"github.com/bilusteknoloji/pymodule/internal/planner"
	"github.com/bilusteknoloji/pymodule/internal/pyfind"
	"github.com/bilusteknoloji/pymodule/internal/pypi"
	"github.com/bilusteknoloji/pymodule/internal/python"
	"github.com/bilusteknoloji/pymodule/internal/requirement"
	"github.com/bilusteknoloji/pymodule/internal/resolver"
	"github.com/bilusteknoloji/pymodule/internal/toolenv"
)

var version = "0.0.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	rootCmd := &cobra.Command{
		Use:           "pymodule",
		Short:         "A fast Python package installer and project manager",
		Long:          "pymodule installs Python packages concurrently, manages isolated tool environments, and keeps a project's environment in sync with its requirements.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	installCmd := &cobra.Command{
		Use:   "install [packages...]",
		Short: "Install Python packages",
		Args:  cobra.MinimumNArgs(0),
		RunE:  runInstall,
	}

	installCmd.Flags().StringP("requirements", "r", "", "Install from requirements file")
	installCmd.Flags().IntP("jobs", "j", 0, "Max concurrent downloads (default: GOMAXPROCS)")
	installCmd.Flags().String("python", "python3", "Python binary to use")
	installCmd.Flags().String("target", "", "Target directory (default: auto-detect site-packages)")
	installCmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	installCmd.Flags().Bool("dry-run", false, "Show the plan without downloading or installing")
	installCmd.Flags().Bool("no-deps", false, "Skip dependencies, install only specified packages")

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newToolCmd())

	return rootCmd.Execute()
}

// newSyncCmd builds "pymodule sync": diff a requirements file against an
// environment's site-packages and report the actions needed to bring it
// in line, per the install planner.
func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync [requirements.txt]",
		Short: "Synchronize an environment's packages to match a requirements file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSync,
	}

	cmd.Flags().String("python", "python3", "Python binary whose environment to sync")
	cmd.Flags().Bool("require-hashes", false, "Require every requirement to pin a hash")
	cmd.Flags().String("no-binary", "", "Comma-separated package names (or \":all:\") that must be built from source")

	return cmd
}

func runSync(cmd *cobra.Command, args []string) error {
	reqFile := "requirements.txt"
	if len(args) == 1 {
		reqFile = args[0]
	}

	pythonBin, _ := cmd.Flags().GetString("python")
	requireHashes, _ := cmd.Flags().GetBool("require-hashes")
	noBinary, _ := cmd.Flags().GetString("no-binary")

	lines, err := parseRequirementsFile(reqFile)
	if err != nil {
		return err
	}

	targets := make([]requirement.Requirement, 0, len(lines))

	for _, line := range lines {
		req, err := requirement.Parse(line)
		if err != nil {
			return fmt.Errorf("parsing requirement %q: %w", line, err)
		}

		targets = append(targets, req)
	}

	logger := newLogger(false)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	env, err := detectEnv(ctx, pythonBin, "", logger)
	if err != nil {
		return err
	}

	manifest, err := planner.ScanManifest(env.SitePackages)
	if err != nil {
		return fmt.Errorf("scanning installed packages: %w", err)
	}

	buildPolicy := config.BuildPolicy{}
	if noBinary != "" {
		buildPolicy.Mode = config.BuildNoBinary
		if noBinary != ":all:" {
			buildPolicy.Packages = strings.Split(noBinary, ",")
		}
	}

	plan, err := planner.Build(targets, manifest, config.HashPolicy{RequireHashes: requireHashes}, buildPolicy)
	if err != nil {
		return fmt.Errorf("building sync plan: %w", err)
	}

	printSyncPlan(plan)

	return nil
}

func printSyncPlan(plan *planner.Plan) {
	fmt.Printf("Would install %d, reinstall %d, remove %d, leave %d unchanged\n",
		len(plan.ToInstall), len(plan.ToReinstall), len(plan.ToRemove), len(plan.Audited))

	for _, r := range plan.ToInstall {
		fmt.Printf("  + %s\n", r.String())
	}

	for _, r := range plan.ToReinstall {
		fmt.Printf("  ~ %s\n", r.String())
	}

	for _, pkg := range plan.ToRemove {
		fmt.Printf("  - %s %s\n", pkg.Name, pkg.Version.String())
	}
}

// newToolCmd builds "pymodule tool {install,uninstall,list}": management
// of per-tool isolated environments, per the toolenv manager.
func newToolCmd() *cobra.Command {
	toolCmd := &cobra.Command{
		Use:   "tool",
		Short: "Install and manage command-line tools in isolated environments",
	}

	installCmd := &cobra.Command{
		Use:   "install <name>[@version|@latest] [requirement...]",
		Short: "Install a tool into its own environment",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runToolInstall,
	}
	installCmd.Flags().String("python", "python3", "Python binary to bootstrap the tool's environment")
	installCmd.Flags().String("python-preference", "", "Which interpreter sources to prefer (managed, only-managed, system, only-system)")
	installCmd.Flags().Bool("force", false, "Overwrite conflicting entry points")
	installCmd.Flags().String("tool-dir", defaultToolDir(), "Root directory for tool environments")
	installCmd.Flags().String("from", "", "Package to install the tool from, if its distribution name differs from <name>")
	installCmd.Flags().StringArray("with", nil, "Additional requirement to install alongside the tool")
	installCmd.Flags().StringArray("with-requirements", nil, "Install additional requirements from a file (repeatable)")
	installCmd.Flags().StringArray("with-editable", nil, "Install an additional local project in editable mode (repeatable)")
	installCmd.Flags().Bool("editable", false, "Install the tool's own package in editable mode from a local path")
	installCmd.Flags().Bool("reinstall", false, "Reinstall the tool even if already installed with identical settings")
	installCmd.Flags().Bool("upgrade", false, "Upgrade the tool to the latest compatible version")
	installCmd.Flags().StringArray("constraints", nil, "Constraint requirement limiting transitive versions (repeatable)")
	installCmd.Flags().StringArray("overrides", nil, "Override requirement forcing a transitive version (repeatable)")

	uninstallCmd := &cobra.Command{
		Use:   "uninstall <name>",
		Short: "Remove a tool's environment",
		Args:  cobra.ExactArgs(1),
		RunE:  runToolUninstall,
	}
	uninstallCmd.Flags().String("tool-dir", defaultToolDir(), "Root directory for tool environments")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List installed tools",
		Args:  cobra.NoArgs,
		RunE:  runToolList,
	}
	listCmd.Flags().String("tool-dir", defaultToolDir(), "Root directory for tool environments")

	toolCmd.AddCommand(installCmd, uninstallCmd, listCmd)

	return toolCmd
}

// defaultToolDir returns $PYMODULE_TOOL_DIR when it is set, and
// otherwise a "tools" directory under ~/.local/share/pymodule.
func defaultToolDir() string {
	if dir := os.Getenv("PYMODULE_TOOL_DIR"); dir != "" {
		return dir
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ".pymodule/tools"
	}

	return filepath.Join(home, ".local", "share", "pymodule", "tools")
}

// resolveToolSpec interprets the tool install positional argument and
// --from flag into the tool's alias name and the package requirement to
// resolve it from, per the "<name>@<version>" and "<name>@latest"
// forms. A trailing "@latest" (or a bare "@") implies --upgrade, since
// a pinned receipt would never need rebuilding to reach "latest".
func resolveToolSpec(nameArg, from string) (name, spec string, impliesUpgrade bool, err error) {
	base, versionSpec, hasAt := strings.Cut(nameArg, "@")

	if from != "" {
		if hasAt {
			return "", "", false, fmt.Errorf("cannot combine %q with --from; use one or the other", nameArg)
		}

		return nameArg, from, false, nil
	}

	if !hasAt {
		return nameArg, nameArg, false, nil
	}

	if versionSpec == "" || versionSpec == "latest" {
		return base, base, true, nil
	}

	return base, base + "==" + versionSpec, false, nil
}

func runToolInstall(cmd *cobra.Command, args []string) error {
	nameArg := args[0]
	extra := args[1:]

	from, _ := cmd.Flags().GetString("from")
	withReqs, _ := cmd.Flags().GetStringArray("with")
	withReqFiles, _ := cmd.Flags().GetStringArray("with-requirements")
	withEditable, _ := cmd.Flags().GetStringArray("with-editable")
	editable, _ := cmd.Flags().GetBool("editable")
	pythonPrefRaw, _ := cmd.Flags().GetString("python-preference")
	reinstall, _ := cmd.Flags().GetBool("reinstall")
	upgrade, _ := cmd.Flags().GetBool("upgrade")
	constraints, _ := cmd.Flags().GetStringArray("constraints")
	overrides, _ := cmd.Flags().GetStringArray("overrides")
	pythonBin, _ := cmd.Flags().GetString("python")
	force, _ := cmd.Flags().GetBool("force")
	toolDir, _ := cmd.Flags().GetString("tool-dir")

	name, primarySpec, impliesUpgrade, err := resolveToolSpec(nameArg, from)
	if err != nil {
		return err
	}

	upgrade = upgrade || impliesUpgrade

	if editable {
		primarySpec = "-e " + primarySpec
	}

	requirements := []string{primarySpec}
	requirements = append(requirements, extra...)
	requirements = append(requirements, withReqs...)

	for _, path := range withEditable {
		requirements = append(requirements, "-e "+path)
	}

	for _, f := range withReqFiles {
		fileReqs, err := parseRequirementsFile(f)
		if err != nil {
			return err
		}

		requirements = append(requirements, fileReqs...)
	}

	logger := newLogger(false)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	env, err := detectEnv(ctx, pythonBin, "", logger)
	if err != nil {
		return err
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	pypiClient := pypi.New(pypi.WithHTTPClient(httpClient), pypi.WithLogger(logger))

	resolved, err := resolveDeps(ctx, requirements, pypiClient, false, env, logger)
	if err != nil {
		return err
	}

	compatTags := buildCompatTags(env)

	plans, err := selectWheels(ctx, resolved, pypiClient, compatTags, env)
	if err != nil {
		return err
	}

	downloads, tmpDir, err := downloadPackages(ctx, plans, 0, httpClient, logger)
	if err != nil {
		return err
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	pythonPref := config.PreferenceManaged

	if pythonPrefRaw != "" {
		pythonPref, err = config.ParsePythonPreference(pythonPrefRaw)
		if err != nil {
			return err
		}
	}

	mgr := toolenv.New(toolDir,
		toolenv.WithLogger(logger),
		toolenv.WithFinder(pyfind.New(pyfind.WithPythonPreference(pythonPref))),
	)

	req := toolenv.InstallRequest{
		Name:           name,
		Requirements:   requirements,
		Constraints:    constraints,
		Overrides:      overrides,
		PythonRequest:  pyfind.ExecutableNameRequest(pythonBin),
		ForceOverwrite: force,
		Reinstall:      reinstall,
		Upgrade:        upgrade,
		Downloads:      downloads,
	}

	outcome, err := mgr.Install(ctx, req)
	if err != nil {
		return fmt.Errorf("installing tool %s: %w", name, err)
	}

	switch outcome {
	case toolenv.OutcomeAlreadyInstalled:
		fmt.Printf("%s is already installed\n", name)
	case toolenv.OutcomeUpgraded:
		fmt.Printf("Upgraded %s\n", name)
	case toolenv.OutcomeReinstalled:
		fmt.Printf("Reinstalled %s\n", name)
	default:
		fmt.Printf("Installed %s\n", name)
	}

	return nil
}

func runToolUninstall(cmd *cobra.Command, args []string) error {
	toolDir, _ := cmd.Flags().GetString("tool-dir")
	mgr := toolenv.New(toolDir)

	if err := mgr.Uninstall(context.Background(), args[0]); err != nil {
		return fmt.Errorf("uninstalling tool %s: %w", args[0], err)
	}

	fmt.Printf("Uninstalled %s\n", args[0])

	return nil
}

func runToolList(cmd *cobra.Command, _ []string) error {
	toolDir, _ := cmd.Flags().GetString("tool-dir")
	mgr := toolenv.New(toolDir)

	names, err := mgr.List()
	if err != nil {
		return fmt.Errorf("listing tools: %w", err)
	}

	if len(names) == 0 {
		fmt.Println("No tools installed")

		return nil
	}

	for _, n := range names {
		fmt.Println(n)
	}

	return nil
}

// installFlags holds parsed CLI flags for the install command.
type installFlags struct {
	reqFile   string
	jobs      int
	pythonBin string
	targetDir string
	verbose   bool
	dryRun    bool
	noDeps    bool
}

func parseInstallFlags(cmd *cobra.Command) installFlags {
	reqFile, _ := cmd.Flags().GetString("requirements")
	jobs, _ := cmd.Flags().GetInt("jobs")
	pythonBin, _ := cmd.Flags().GetString("python")
	targetDir, _ := cmd.Flags().GetString("target")
	verbose, _ := cmd.Flags().GetBool("verbose")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	noDeps, _ := cmd.Flags().GetBool("no-deps")

	return installFlags{reqFile, jobs, pythonBin, targetDir, verbose, dryRun, noDeps}
}

func runInstall(cmd *cobra.Command, args []string) error {
	start := time.Now()
	flags := parseInstallFlags(cmd)

	requirements, err := collectRequirements(args, flags.reqFile)
	if err != nil {
		return err
	}

	if len(requirements) == 0 {
		return fmt.Errorf("no packages specified; use 'pymodule install <pkg>' or 'pymodule install -r requirements.txt'")
	}

	logger := newLogger(flags.verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	env, err := detectEnv(ctx, flags.pythonBin, flags.targetDir, logger)
	if err != nil {
		return err
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	pypiClient := pypi.New(pypi.WithHTTPClient(httpClient), pypi.WithLogger(logger))

	resolved, err := resolveDeps(ctx, requirements, pypiClient, flags.noDeps, env, logger)
	if err != nil {
		return err
	}

	compatTags := buildCompatTags(env)

	plans, err := selectWheels(ctx, resolved, pypiClient, compatTags, env)
	if err != nil {
		return err
	}

	if flags.dryRun {
		printDryRun(plans)

		return nil
	}

	results, tmpDir, err := downloadPackages(ctx, plans, flags.jobs, httpClient, logger)
	if err != nil {
		return err
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	printDownloadResults(results)

	fmt.Println("\nInstalling...")

	inst := installer.New(env, installer.WithLogger(logger))
	if err := inst.Install(ctx, results); err != nil {
		return fmt.Errorf("installing packages: %w", err)
	}

	fmt.Printf("  ✓ %d packages installed\n", len(results))
	fmt.Printf("\nDone in %.1fs\n", time.Since(start).Seconds())

	return nil
}

func newLogger(verbose bool) *slog.Logger {
	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

func detectEnv(ctx context.Context, pythonBin, targetDir string, logger *slog.Logger) (*python.Environment, error) {
	pyDetector := python.New(python.WithPythonBin(pythonBin))

	env, err := pyDetector.Detect(ctx)
	if err != nil {
		return nil, fmt.Errorf("detecting Python environment: %w", err)
	}

	if targetDir != "" {
		absTarget, err := filepath.Abs(targetDir)
		if err != nil {
			return nil, fmt.Errorf("resolving target directory: %w", err)
		}

		env.SitePackages = absTarget
	}

	logger.Debug("detected Python environment",
		slog.String("prefix", env.Prefix),
		slog.String("site-packages", env.SitePackages),
		slog.String("platform", env.PlatformTag),
		slog.String("version", env.PythonVersion),
		slog.Bool("venv", env.IsVirtualEnv),
	)

	return env, nil
}

func resolveDeps(ctx context.Context, requirements []string, pypiClient pypi.Client, noDeps bool, env *python.Environment, logger *slog.Logger) ([]resolver.ResolvedPackage, error) {
	fmt.Println("Resolving dependencies...")

	markerEnv := buildMarkerEnv(env)

	resolverSvc := resolver.New(pypiClient,
		resolver.WithNoDeps(noDeps),
		resolver.WithMarkerEnv(markerEnv),
		resolver.WithLogger(logger),
	)

	resolved, err := resolverSvc.Resolve(ctx, requirements)
	if err != nil {
		return nil, fmt.Errorf("resolving dependencies: %w", err)
	}

	resolvedMap := make(map[string]resolver.ResolvedPackage, len(resolved))
	for _, pkg := range resolved {
		resolvedMap[pkg.Name] = pkg
	}

	rootNames := make([]string, 0, len(requirements))

	for _, r := range requirements {
		req, err := requirement.Parse(r)
		if err != nil {
			return nil, fmt.Errorf("parsing requirement %q: %w", r, err)
		}

		rootNames = append(rootNames, req.Name)
	}

	printDependencyTree(rootNames, resolvedMap)

	return resolved, nil
}

func printDryRun(plans []downloadPlan) {
	fmt.Printf("\nWould download %d packages:\n", len(plans))

	for _, p := range plans {
		fmt.Printf("  %s (%s)\n", p.wheelURL.Filename, formatSize(p.wheelURL.Size))
	}

	fmt.Println("\nDry run, no changes made.")
}

func printDownloadResults(results []downloader.Result) {
	for _, r := range results {
		suffix := ""
		if r.Cached {
			suffix = " (cached)"
		}

		fmt.Printf("  ✓ %s (%s)%s\n", filepath.Base(r.FilePath), formatSize(r.Size), suffix)
	}
}

type downloadPlan struct {
	pkg      resolver.ResolvedPackage
	wheelURL pypi.URL
}

// selectWheels finds a compatible wheel for each resolved package.
func selectWheels(ctx context.Context, resolved []resolver.ResolvedPackage, client pypi.Client, compatTags []downloader.WheelTag, env *python.Environment) ([]downloadPlan, error) {
	var plans []downloadPlan

	for _, pkg := range resolved {
		pkgInfo, err := client.GetPackageVersion(ctx, pkg.Name, pkg.Version)
		if err != nil {
			return nil, fmt.Errorf("fetching URLs for %s %s: %w", pkg.Name, pkg.Version, err)
		}

		wheel, err := downloader.SelectWheel(pkgInfo.URLs, compatTags)
		if err != nil {
			return nil, fmt.Errorf("no compatible wheel for %s %s (platform: %s, python: cp%s): %w",
				pkg.Name, pkg.Version, wheelPlatform(env.PlatformTag), env.PythonVersion, err)
		}

		plans = append(plans, downloadPlan{pkg: pkg, wheelURL: wheel})
	}

	return plans, nil
}

// downloadPackages downloads all planned packages concurrently with cache support.
// Caller is responsible for cleaning up tmpDir after installation.
func downloadPackages(ctx context.Context, plans []downloadPlan, jobs int, httpClient *http.Client, logger *slog.Logger) ([]downloader.Result, string, error) {
	tmpDir, err := os.MkdirTemp("", "pymodule-downloads-*")
	if err != nil {
		return nil, "", fmt.Errorf("creating temp directory: %w", err)
	}

	requests := buildDownloadRequests(plans)

	workers := runtime.GOMAXPROCS(0)
	if jobs > 0 {
		workers = jobs
	}

	fmt.Printf("\nDownloading %d packages (%d workers)...\n", len(requests), workers)

	dlManager := newDownloader(tmpDir, jobs, httpClient, logger)

	results, err := dlManager.Download(ctx, requests)
	if err != nil {
		_ = os.RemoveAll(tmpDir)

		return nil, "", fmt.Errorf("downloading packages: %w", err)
	}

	return results, tmpDir, nil
}

func buildDownloadRequests(plans []downloadPlan) []downloader.Request {
	requests := make([]downloader.Request, len(plans))
	for i, p := range plans {
		requests[i] = downloader.Request{
			Name:     p.pkg.Name,
			Version:  p.pkg.Version,
			URL:      p.wheelURL.URL,
			SHA256:   p.wheelURL.Digests.SHA256,
			Filename: p.wheelURL.Filename,
		}
	}

	return requests
}

func newDownloader(tmpDir string, jobs int, httpClient *http.Client, logger *slog.Logger) *downloader.Manager {
	wheelCache, err := cache.New(cache.WithLogger(logger))
	if err != nil {
		logger.Debug("cache unavailable, continuing without cache", slog.String("error", err.Error()))
	}

	dlOpts := []downloader.Option{
		downloader.WithHTTPClient(httpClient),
		downloader.WithLogger(logger),
	}

	if wheelCache != nil {
		dlOpts = append(dlOpts, downloader.WithCache(wheelCache))
	}

	if jobs > 0 {
		dlOpts = append(dlOpts, downloader.WithMaxWorkers(jobs))
	}

	return downloader.New(tmpDir, dlOpts...)
}

// collectRequirements merges CLI args and requirements file entries.
func collectRequirements(args []string, reqFile string) ([]string, error) {
	var requirements []string

	requirements = append(requirements, args...)

	if reqFile != "" {
		fileReqs, err := parseRequirementsFile(reqFile)
		if err != nil {
			return nil, err
		}

		requirements = append(requirements, fileReqs...)
	}

	return requirements, nil
}

// parseRequirementsFile reads a pip-compatible requirements file.
// Skips comments, empty lines, and pip options (lines starting with -).
func parseRequirementsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening requirements file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var reqs []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Strip inline comments.
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}

		// Skip empty lines and pip options (e.g., --index-url, -e, -c).
		if line == "" || strings.HasPrefix(line, "-") {
			continue
		}

		reqs = append(reqs, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading requirements file %s: %w", path, err)
	}

	return reqs, nil
}

// buildMarkerEnv creates a PEP 508 marker environment from the detected Python env.
func buildMarkerEnv(env *python.Environment) requirement.MarkerEnv {
	pyVer := resolver.FormatPythonVersion(env.PythonVersion)

	var sysPlatform, osName string

	switch {
	case strings.HasPrefix(env.PlatformTag, "macosx"):
		sysPlatform = "darwin"
		osName = "posix"
	case strings.HasPrefix(env.PlatformTag, "linux"):
		sysPlatform = "linux"
		osName = "posix"
	default:
		sysPlatform = "linux"
		osName = "posix"
	}

	return requirement.MarkerEnv{
		PythonVersion: pyVer,
		SysPlatform:   sysPlatform,
		OsName:        osName,
	}
}

// buildCompatTags generates PEP 425 compatible wheel tags ordered by priority.
func buildCompatTags(env *python.Environment) []downloader.WheelTag {
	pyVer := env.PythonVersion                 // e.g., "312"
	platform := wheelPlatform(env.PlatformTag) // e.g., "macosx_14_0_arm64"
	cp := "cp" + pyVer                         // e.g., "cp312"
	pyMajor := "py" + pyVer[:1]                // e.g., "py3"

	var tags []downloader.WheelTag

	platforms := expandPlatform(platform)

	// Native CPython + platform.
	for _, plat := range platforms {
		tags = append(tags, downloader.WheelTag{Python: cp, ABI: cp, Platform: plat})
	}

	// Stable ABI + platform.
	for _, plat := range platforms {
		tags = append(tags, downloader.WheelTag{Python: cp, ABI: "abi3", Platform: plat})
	}

	// CPython, no ABI, specific platform.
	for _, plat := range platforms {
		tags = append(tags, downloader.WheelTag{Python: cp, ABI: "none", Platform: plat})
	}

	// Pure Python, specific platform.
	for _, plat := range platforms {
		tags = append(tags, downloader.WheelTag{Python: pyMajor, ABI: "none", Platform: plat})
	}

	// Universal (any platform).
	tags = append(tags, downloader.WheelTag{Python: cp, ABI: "none", Platform: "any"})
	tags = append(tags, downloader.WheelTag{Python: pyMajor, ABI: "none", Platform: "any"})

	return tags
}

// expandPlatform expands a platform tag into a priority-ordered list including
// manylinux variants (Linux) and lower macOS version variants.
func expandPlatform(platform string) []string {
	platforms := []string{platform}

	if strings.HasPrefix(platform, "linux_") {
		arch := strings.TrimPrefix(platform, "linux_")

		for _, ml := range []string{
			"manylinux_2_35", "manylinux_2_34", "manylinux_2_31",
			"manylinux_2_28", "manylinux_2_17", "manylinux2014",
		} {
			platforms = append(platforms, ml+"_"+arch)
		}
	}

	if strings.HasPrefix(platform, "macosx_") {
		parts := strings.SplitN(platform, "_", 4) // macosx, major, minor, arch
		if len(parts) == 4 {
			arch := parts[3]
			major, _ := strconv.Atoi(parts[1])

			// Universal2 for current version.
			platforms = append(platforms,
				fmt.Sprintf("macosx_%s_%s_universal2", parts[1], parts[2]),
			)

			// Lower macOS versions (arm64 starts at 11, x86_64 down to 10.9).
			minMajor := 10
			if arch == "arm64" {
				minMajor = 11
			}

			for v := major - 1; v >= minMajor; v-- {
				minor := "0"
				if v == 10 {
					minor = "9"
				}

				platforms = append(platforms,
					fmt.Sprintf("macosx_%d_%s_%s", v, minor, arch),
					fmt.Sprintf("macosx_%d_%s_universal2", v, minor),
				)
			}
		}
	}

	return platforms
}

// wheelPlatform converts a sysconfig platform tag to wheel format.
// "macosx-14.0-arm64" → "macosx_14_0_arm64"
func wheelPlatform(sysTag string) string {
	s := strings.ReplaceAll(sysTag, "-", "_")

	return strings.ReplaceAll(s, ".", "_")
}

// printDependencyTree prints the resolved packages as a dependency tree.
func printDependencyTree(roots []string, resolved map[string]resolver.ResolvedPackage) {
	visited := make(map[string]bool)

	for _, root := range roots {
		pkg, ok := resolved[root]
		if !ok {
			continue
		}

		fmt.Printf("  %s %s\n", pkg.Name, pkg.Version)

		visited[root] = true

		printSubTree(pkg.Dependencies, resolved, "  ", visited)
	}
}

func printSubTree(deps []string, resolved map[string]resolver.ResolvedPackage, prefix string, visited map[string]bool) {
	for i, depName := range deps {
		pkg, ok := resolved[depName]
		if !ok {
			continue
		}

		isLast := i == len(deps)-1

		connector := "├── "
		childPrefix := "│   "

		if isLast {
			connector = "└── "
			childPrefix = "    "
		}

		fmt.Printf("%s%s%s %s\n", prefix, connector, pkg.Name, pkg.Version)

		if !visited[depName] && len(pkg.Dependencies) > 0 {
			visited[depName] = true
			printSubTree(pkg.Dependencies, resolved, prefix+childPrefix, visited)
		}
	}
}

// formatSize returns a human-readable file size.
func formatSize(bytes int64) string {
	switch {
	case bytes >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(1<<20))
	case bytes >= 1<<10:
		return fmt.Sprintf("%d KB", bytes/(1<<10))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
