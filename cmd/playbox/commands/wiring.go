package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/dyluth/playbox/internal/auth"
	"github.com/dyluth/playbox/internal/config"
	"github.com/dyluth/playbox/internal/controller"
	"github.com/dyluth/playbox/internal/drafts"
	"github.com/dyluth/playbox/internal/lint"
	"github.com/dyluth/playbox/internal/printer"
	"github.com/dyluth/playbox/internal/program"
	"github.com/dyluth/playbox/internal/resolver"
	"github.com/dyluth/playbox/internal/sandbox"
	"github.com/dyluth/playbox/internal/store"
	"github.com/dyluth/playbox/pkg/gist"
)

// keyPresser forwards key chords into the sandbox runtime.
type keyPresser interface {
	Press(key string) error
}

// sandboxHost is a started sandbox runtime, in this process or in a child process.
type sandboxHost struct {
	surface *sandbox.Surface
	keys    keyPresser
	loaded  <-chan struct{}
	exited  <-chan struct{} // nil for the in-process runtime
	close   func() error
}

// startSandbox starts the runtime selected by sandbox.mode.
func startSandbox(ctx context.Context, cfg *config.PlayboxConfig) (*sandboxHost, error) {
	if cfg.Sandbox.Mode == config.SandboxModeProcess {
		command := cfg.Sandbox.Command
		if len(command) == 0 {
			exe, err := os.Executable()
			if err != nil {
				return nil, fmt.Errorf("failed to locate playbox binary: %w", err)
			}
			command = []string{exe, "sandbox", "--budget-ms", strconv.Itoa(*cfg.Sandbox.BudgetMs)}
		}

		proc, err := sandbox.StartProcess(ctx, command)
		if err != nil {
			return nil, err
		}
		return &sandboxHost{
			surface: sandbox.NewSurface(proc),
			keys:    proc,
			loaded:  proc.Loaded(),
			exited:  proc.Done(),
			close:   proc.Close,
		}, nil
	}

	rt := sandbox.NewRuntime()
	rt.SetBudget(cfg.Budget())
	rt.Start(ctx)
	return &sandboxHost{
		surface: sandbox.NewSurface(rt),
		keys:    rt,
		loaded:  rt.Loaded(),
		close:   func() error { return nil },
	}, nil
}

// waitLoaded blocks until the runtime is ready, the child process dies, or ctx ends.
func (h *sandboxHost) waitLoaded(ctx context.Context) error {
	select {
	case <-h.loaded:
		return nil
	case <-h.exited:
		return fmt.Errorf("sandbox process exited before it was ready")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// newController wires a controller to the store and sandbox using cfg's tuning.
func newController(cfg *config.PlayboxConfig, st *store.Store, host *sandboxHost, saver controller.Saver, recorder controller.DraftRecorder) *controller.Controller {
	renderer := sandbox.Renderer(cfg.Sandbox.Renderer)
	if rendererFlag != "" {
		renderer = sandbox.RendererFromQuery("renderer=" + rendererFlag)
	}

	return controller.New(st, host.surface, lint.New(), saver, controller.Options{
		ResizeDebounce: cfg.ResizeDebounce(),
		TokenInterval:  cfg.TokenInterval(),
		Renderer:       renderer,
		Viewport: sandbox.Viewport{
			Width:  cfg.Sandbox.Viewport.Width,
			Height: cfg.Sandbox.Viewport.Height,
		},
		Drafts: recorder,
	})
}

// connectGists opens the gist store and checks that it answers.
func connectGists(ctx context.Context, cfg *config.PlayboxConfig) (*gist.Client, error) {
	opts, err := cfg.RedisOptions()
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client, err := gist.NewClient(opts, cfg.Instance)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, printer.ErrorWithContext(
			"gist store unreachable",
			err.Error(),
			map[string]string{"Redis": cfg.Redis.URL, "Instance": cfg.Instance},
			[]string{"Start Redis, or point redis.url (or PLAYBOX_REDIS_URL) at a running server"},
		)
	}
	return client, nil
}

// signIn resolves PLAYBOX_TOKEN to a signed-in user and records it in st.
func signIn(ctx context.Context, cfg *config.PlayboxConfig, st *store.Store) (store.Token, error) {
	if cfg.Token == "" {
		return store.Token{}, printer.Error(
			"not signed in",
			fmt.Sprintf("%s is not set.", config.EnvToken),
			[]string{"Run 'playbox login' and export the token it prints"},
		)
	}

	client := auth.NewClient(cfg.Auth.AuthenticatorURL, cfg.Auth.APIURL)
	user, err := client.Profile(ctx, cfg.Token)
	if err != nil {
		return store.Token{}, printer.ErrorWithContext(
			"sign-in failed",
			err.Error(),
			map[string]string{"API": cfg.Auth.APIURL},
			[]string{fmt.Sprintf("Check that %s is still valid, or run 'playbox login' again", config.EnvToken)},
		)
	}

	tok := store.Token{Value: cfg.Token, User: user}
	st.TokenSuccess(tok)
	return tok, nil
}

// fetchGist loads a gist into st the way the editor does on startup: request, then
// success or failure. id may be a short prefix.
func fetchGist(ctx context.Context, client *gist.Client, st *store.Store, id string) (*gist.Gist, error) {
	st.FetchGistRequest()

	fullID, err := resolver.Resolve(ctx, client, "gist", id)
	if err != nil {
		st.FetchGistFailure()
		return nil, resolveError("gist", id, err)
	}

	g, err := client.Get(ctx, fullID)
	if err != nil {
		st.FetchGistFailure()
		if gist.IsNotFound(err) {
			return nil, resolveError("gist", id, &resolver.NotFoundError{Kind: "gist", ShortID: id})
		}
		return nil, fmt.Errorf("failed to fetch gist %s: %w", fullID, err)
	}

	p, err := program.FromFiles(g.Files)
	if err != nil {
		st.FetchGistFailure()
		return nil, fmt.Errorf("gist %s is not a playbox program: %w", fullID, err)
	}

	st.FetchGistSuccess(g, p)
	return g, nil
}

// resolveError turns a short id failure into a printed error.
func resolveError(kind, id string, err error) error {
	listCmd := "playbox gist list"
	if kind == "draft" {
		listCmd = "playbox drafts"
	}

	var ambiguous *resolver.AmbiguousError
	switch {
	case resolver.IsNotFoundError(err):
		return printer.Error(
			fmt.Sprintf("%s %s not found", kind, id),
			err.Error(),
			[]string{fmt.Sprintf("List them with '%s'", listCmd)},
		)
	case errors.As(err, &ambiguous):
		return printer.Error(
			fmt.Sprintf("%s id %s is ambiguous", kind, id),
			resolver.FormatAmbiguousError(ambiguous),
			nil,
		)
	}
	return printer.Error(fmt.Sprintf("invalid %s id", kind), err.Error(), nil)
}

// openDrafts opens the draft history when it is enabled. A nil store means drafts are off.
func openDrafts(cfg *config.PlayboxConfig) (*drafts.Store, error) {
	if !*cfg.Drafts.Enabled {
		return nil, nil
	}
	return drafts.Open(cfg.Drafts.Path)
}

// loadProgram reads a program directory, turning a missing code file into a readable error.
func loadProgram(dir string) (program.Program, error) {
	p, err := program.LoadDir(dir)
	if err != nil {
		if program.IsMissing(err) {
			return program.Program{}, printer.ErrorWithContext(
				"no program found",
				err.Error(),
				map[string]string{"Directory": dir},
				[]string{"Create code.js in the directory", "Fetch a saved game with 'playbox gist get <id> --out " + dir + "'"},
			)
		}
		return program.Program{}, fmt.Errorf("failed to load program: %w", err)
	}
	return p, nil
}
