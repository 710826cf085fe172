package params

import (
	"encoding/json"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docpipe/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		BinPath:     "docs-build",
		Template:    "docs.html",
		Environment: config.EnvironmentProd,
	}
}

func testRequest() Request {
	return Request{
		CorrelationID:   "corr-123",
		LocalRepoPath:   "/work/docs-repo",
		OutputPath:      "/work/out",
		LogPath:         "/work/out/.build.log",
		OriginalRepoURL: "https://git.example.com/docs/repo",
	}
}

func TestBuild_RestoreAndBuildArgv(t *testing.T) {
	p, err := NewBuilder(testConfig()).Build(testRequest())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"docs-build", "restore", "/work/docs-repo",
		"--log", "/work/out/.build.log",
		"--stdin",
		"--template", "docs.html",
	}, p.RestoreArgv)

	assert.Equal(t, []string{
		"docs-build", "build", "/work/docs-repo",
		"--log", "/work/out/.build.log",
		"--stdin",
		"--template", "docs.html",
		"--output", "/work/out",
	}, p.BuildArgv)
}

func TestBuild_DryRunAndVerboseFlags(t *testing.T) {
	cfg := testConfig()
	cfg.Debug = true
	req := testRequest()
	req.DryRun = true

	p, err := NewBuilder(cfg).Build(req)
	require.NoError(t, err)

	assert.Contains(t, p.RestoreArgv, "--verbose")
	assert.Contains(t, p.BuildArgv, "--verbose")
	assert.Contains(t, p.BuildArgv, "--dry-run")
	assert.NotContains(t, p.RestoreArgv, "--dry-run")
}

func TestBuild_PathWithSpacesStaysOneArgument(t *testing.T) {
	req := testRequest()
	req.LocalRepoPath = "/home/user/my docs repo"

	p, err := NewBuilder(testConfig()).Build(req)
	require.NoError(t, err)

	// The path must occupy exactly one argv slot so the external process
	// receives it unsplit.
	assert.Equal(t, 1, countOf(p.BuildArgv, "/home/user/my docs repo"))
	for _, arg := range p.BuildArgv {
		assert.NotEqual(t, "/home/user/my", arg)
	}

	assert.Contains(t, CommandLine(p.BuildArgv), `"/home/user/my docs repo"`)
}

func countOf(argv []string, want string) int {
	n := 0
	for _, a := range argv {
		if a == want {
			n++
		}
	}
	return n
}

func TestBuild_AnonymousRunPinnedToPublishedBranch(t *testing.T) {
	cfg := testConfig()
	cfg.BranchOverride = "feature/draft"

	p, err := NewBuilder(cfg).Build(testRequest()) // no auth token
	require.NoError(t, err)

	assert.Equal(t, PublishedBranch, p.Env[EnvRepositoryBranch])
	assert.NotContains(t, p.Env, EnvInstrumentationKey)
	assert.Equal(t, "corr-123", p.Env[EnvCorrelationID])
	assert.Equal(t, "https://git.example.com/docs/repo", p.Env[EnvRepositoryURL])
	assert.Equal(t, config.EnvironmentProd, p.Env[EnvEnvironment])
}

func TestBuild_AuthenticatedRunHonorsBranchOverride(t *testing.T) {
	cfg := testConfig()
	cfg.BranchOverride = "main"
	req := testRequest()
	req.AuthToken = "user-token"

	p, err := NewBuilder(cfg).Build(req)
	require.NoError(t, err)
	assert.Equal(t, "main", p.Env[EnvRepositoryBranch])
}

func TestBuild_TelemetryOptInInjectsKey(t *testing.T) {
	cfg := testConfig()
	cfg.Telemetry = true

	p, err := NewBuilder(cfg).Build(testRequest())
	require.NoError(t, err)
	assert.Equal(t, cfg.InstrumentationKey(), p.Env[EnvInstrumentationKey])
}

func TestBuild_SecretsRoundTrip(t *testing.T) {
	cfg := testConfig()
	cfg.XrefToken = "xref-basic-token"
	req := testRequest()
	req.AuthToken = "user-token"

	p, err := NewBuilder(cfg).Build(req)
	require.NoError(t, err)

	var doc struct {
		HTTP map[string]struct {
			Headers map[string]string `json:"headers"`
		} `json:"http"`
	}
	require.NoError(t, json.Unmarshal([]byte(p.StdinPayload), &doc))

	require.Len(t, doc.HTTP, 2)
	require.Len(t, doc.HTTP[cfg.BuildAPIHost()].Headers, 1)
	require.Len(t, doc.HTTP[cfg.XrefHost()].Headers, 1)
	assert.Equal(t, "user-token", doc.HTTP[cfg.BuildAPIHost()].Headers["X-Build-User-Token"])
	assert.Equal(t, "Basic xref-basic-token", doc.HTTP[cfg.XrefHost()].Headers["Authorization"])
}

func TestBuild_NoTokensYieldsEmptySecrets(t *testing.T) {
	p, err := NewBuilder(testConfig()).Build(testRequest())
	require.NoError(t, err)
	assert.JSONEq(t, `{"http":{}}`, p.StdinPayload)

	// Secrets must never leak into argv.
	assert.False(t, slices.Contains(p.BuildArgv, p.StdinPayload))
}

func TestBuild_MissingFieldsRejected(t *testing.T) {
	b := NewBuilder(testConfig())

	req := testRequest()
	req.LocalRepoPath = ""
	_, err := b.Build(req)
	require.Error(t, err)

	req = testRequest()
	req.CorrelationID = ""
	_, err = b.Build(req)
	require.Error(t, err)
}

func TestCommandLine_PlainArgsUnquoted(t *testing.T) {
	assert.Equal(t, "docs-build restore /work/repo", CommandLine([]string{"docs-build", "restore", "/work/repo"}))
}
