// Package appenv keeps application servers running across test runs.
//
// appenv manages "applications under test" for e2e suites: EnsureStarted
// makes sure a server matching the given configuration is running and
// healthy, reusing a server left behind by a previous run whenever its
// configuration fingerprint matches and it still answers health checks.
// Servers deliberately outlive the test process; warm reuse is the point.
// Cross-process coordination happens through an on-disk registry and
// per-slot file locks, so parallel test binaries share servers instead of
// racing spawns.
//
// # Basic Usage
//
//	import "github.com/giantswarm/appenv"
//
//	ctx := context.Background()
//
//	mgr := appenv.NewManager()
//	defer mgr.Close() // releases manager resources; servers keep running
//
//	res, err := mgr.EnsureStarted(ctx, appenv.ServerConfig{
//	    Slot:        "storefront",
//	    BaseURL:     "http://127.0.0.1:0", // port 0: kernel-assigned
//	    Command:     "bin/storefront",
//	    Args:        []string{"--listen", "{baseUrl}"},
//	    HealthPaths: []string{"/healthz"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// res.BaseURL is serving; res.Reused says whether a previous run's
//	// server was adopted.
//	resp, err := http.Get(res.BaseURL + "/api/items")
//
// The first run pays the cold start; every later run with the same
// configuration reuses the warm server and EnsureStarted returns in
// milliseconds. Changing any relevant field of the ServerConfig (command,
// args, environment, base URL, ...) changes its fingerprint, and the stale
// server is replaced automatically.
//
// # Delegated Launch
//
// When an external harness (compose wrapper, dev-server manager, IDE test
// host) owns the server's process model, set Launch to LaunchDelegated and
// supply an Orchestrator. appenv exports APPENV_SLOT, APPENV_BASE_URL and
// APPENV_PROJECT_DIR (plus the configured Env overrides) as process
// environment variables for the harness to read, invokes it, and restores
// the environment afterward:
//
//	res, err := mgr.EnsureStarted(ctx, appenv.ServerConfig{
//	    Slot:         "checkout",
//	    BaseURL:      "http://127.0.0.1:9301",
//	    Launch:       appenv.LaunchDelegated,
//	    Orchestrator: composeHarness,
//	})
//
// # Config Files
//
// Server definitions can live in a YAML file and be loaded with
// LoadConfigFile; the map key becomes the slot name:
//
//	file, err := appenv.LoadConfigFile("testdata/servers.yaml")
//	cfg, ok := file.Lookup("storefront")
//
// # Parallel Testing
//
// A Manager is safe for concurrent use, and concurrent EnsureStarted calls
// for the same slot collapse onto one server. The common setup is one
// Manager per test binary:
//
//	func TestMain(m *testing.M) {
//	    mgr = appenv.NewManager()
//	    code := m.Run()
//	    mgr.Close()
//	    os.Exit(code)
//	}
package appenv
