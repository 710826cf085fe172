// Package params derives per-run invocation parameters for the external
// documentation build tool: restore/build argument vectors, the environment
// overlay, and the secrets payload delivered over stdin.
//
// Secrets never travel via argv (visible to other users through process
// listings) or via the environment (easily captured in persisted logs); the
// tool reads them from standard input instead.
package params

import (
	"encoding/json"

	"git.home.luguber.info/inful/docpipe/internal/config"
	ferrors "git.home.luguber.info/inful/docpipe/internal/foundation/errors"
)

// PublishedBranch is the branch anonymous runs are pinned to. Runs without a
// user token must only ever see published content, never draft branches.
const PublishedBranch = "live"

// Environment variable names injected into the tool process.
const (
	EnvCorrelationID      = "DOCS_CORRELATION_ID"
	EnvEnvironment        = "DOCS_ENVIRONMENT"
	EnvRepositoryURL      = "DOCS_REPOSITORY_URL"
	EnvRepositoryBranch   = "DOCS_REPOSITORY_BRANCH"
	EnvInstrumentationKey = "APPINSIGHTS_INSTRUMENTATIONKEY"
)

// Header names for the stdin secrets document.
const (
	headerBuildUserToken = "X-Build-User-Token"
	headerAuthorization  = "Authorization"
)

// Request describes one build run. Immutable once constructed; the caller
// owns it for the duration of the run.
type Request struct {
	// CorrelationID threads a single logical run through logs across
	// systems.
	CorrelationID string
	// LocalRepoPath is the documentation repository working copy.
	LocalRepoPath string
	// OutputPath receives the built artifacts.
	OutputPath string
	// LogPath receives the tool's own log file.
	LogPath string
	// OriginalRepoURL is the upstream repository the local copy tracks.
	OriginalRepoURL string
	// DryRun asks the tool to validate without producing output.
	DryRun bool
	// AuthToken authenticates against the internal build API. Optional;
	// absent for anonymous runs.
	AuthToken string
}

// Parameters is the derived, ephemeral invocation shape for one run. It may
// contain secret material (StdinPayload) and must never be logged verbatim
// or persisted.
type Parameters struct {
	RestoreArgv  []string
	BuildArgv    []string
	Env          map[string]string
	StdinPayload string
}

// secretsDoc is the wire shape the tool expects on stdin:
// {"http": {"<host>": {"headers": {"<Header-Name>": "<value>"}}}}.
type secretsDoc struct {
	HTTP map[string]hostSecrets `json:"http"`
}

type hostSecrets struct {
	Headers map[string]string `json:"headers"`
}

// Builder computes Parameters from a Request and the static configuration.
type Builder struct {
	cfg *config.Config
}

func NewBuilder(cfg *config.Config) *Builder {
	return &Builder{cfg: cfg}
}

// Build derives the full invocation parameters for one run.
func (b *Builder) Build(req Request) (Parameters, error) {
	if req.LocalRepoPath == "" {
		return Parameters{}, ferrors.ValidationError("local repository path is required").Build()
	}
	if req.CorrelationID == "" {
		return Parameters{}, ferrors.ValidationError("correlation id is required").Build()
	}

	payload, err := b.stdinPayload(req)
	if err != nil {
		return Parameters{}, err
	}

	return Parameters{
		RestoreArgv:  b.argv("restore", req),
		BuildArgv:    b.argv("build", req),
		Env:          b.environment(req),
		StdinPayload: payload,
	}, nil
}

// argv builds the structured argument vector for one subcommand. Paths are
// individual list elements handed straight to the process API; no shell ever
// re-parses them.
func (b *Builder) argv(subcommand string, req Request) []string {
	argv := []string{
		b.cfg.BinPath,
		subcommand,
		req.LocalRepoPath,
		"--log", req.LogPath,
		"--stdin",
		"--template", b.cfg.Template,
	}
	if b.cfg.Debug {
		argv = append(argv, "--verbose")
	}
	if subcommand == "build" {
		argv = append(argv, "--output", req.OutputPath)
		if req.DryRun {
			argv = append(argv, "--dry-run")
		}
	}
	return argv
}

func (b *Builder) environment(req Request) map[string]string {
	env := map[string]string{
		EnvCorrelationID: req.CorrelationID,
		EnvEnvironment:   b.cfg.Environment,
		EnvRepositoryURL: req.OriginalRepoURL,
	}

	switch {
	case req.AuthToken == "":
		// Anonymous runs only see published content. Deliberate safety
		// rule, not an oversight.
		env[EnvRepositoryBranch] = PublishedBranch
	case b.cfg.BranchOverride != "":
		env[EnvRepositoryBranch] = b.cfg.BranchOverride
	}

	if b.cfg.Telemetry {
		env[EnvInstrumentationKey] = b.cfg.InstrumentationKey()
	}
	return env
}

func (b *Builder) stdinPayload(req Request) (string, error) {
	doc := secretsDoc{HTTP: make(map[string]hostSecrets)}

	if req.AuthToken != "" {
		doc.HTTP[b.cfg.BuildAPIHost()] = hostSecrets{
			Headers: map[string]string{headerBuildUserToken: req.AuthToken},
		}
	}
	if b.cfg.XrefToken != "" {
		doc.HTTP[b.cfg.XrefHost()] = hostSecrets{
			Headers: map[string]string{headerAuthorization: "Basic " + b.cfg.XrefToken},
		}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryInternal, "marshal secrets payload").Build()
	}
	return string(data), nil
}
