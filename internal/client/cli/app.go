package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/pdfconv/internal/apiv1"
	"github.com/dmitrijs2005/pdfconv/internal/client/client"
	"github.com/dmitrijs2005/pdfconv/internal/client/config"
	"github.com/dmitrijs2005/pdfconv/internal/client/models"
	"github.com/dmitrijs2005/pdfconv/internal/client/poller"
	"github.com/dmitrijs2005/pdfconv/internal/client/queue"
	"github.com/dmitrijs2005/pdfconv/internal/client/services"
	"github.com/dmitrijs2005/pdfconv/internal/filex"
	"github.com/dmitrijs2005/pdfconv/internal/logging"
)

// Backend is the API surface the CLI uses: the full client contract plus
// fetching a result to disk.
type Backend interface {
	client.Client
	DownloadResult(ctx context.Context, downloadURL, path string) (int64, error)
}

type App struct {
	config      *config.Config
	db          *sql.DB
	api         Backend
	store       *queue.Store
	authService services.AuthService
	history     services.HistoryService
	tracker     *poller.Tracker
	log         logging.Logger
	reader      *bufio.Reader
	out         io.Writer
	downloadDir string
}

// NewApp opens the local database and builds every client component from c.
func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	db, err := client.InitDatabase(ctx, c.DBPath)
	if err != nil {
		log.Error(ctx, "error initializing database", "path", c.DBPath, "error", err)
		return nil, err
	}

	api, err := client.NewHTTPClient(c.APIBaseURL, client.WithTimeout(c.RequestTimeout))
	if err != nil {
		db.Close()
		return nil, err
	}

	dir, err := resolveDir(c.DownloadDir)
	if err != nil {
		db.Close()
		return nil, err
	}

	limits := services.Limits{
		GuestMaxFiles:     c.GuestMaxFiles,
		GuestMaxFileSize:  c.GuestMaxFileSize,
		MemberMaxFiles:    c.MemberMaxFiles,
		MemberMaxFileSize: c.MemberMaxFileSize,
	}

	a := newApp(c, api, services.NewAuthService(api, db, limits, log), services.NewHistoryService(db, log), log)
	a.db = db
	a.downloadDir = dir
	return a, nil
}

// newApp wires the queue store and pollers around already built services.
func newApp(c *config.Config, api Backend, auth services.AuthService, history services.HistoryService, log logging.Logger) *App {
	a := &App{
		config:      c,
		api:         api,
		authService: auth,
		history:     history,
		log:         log,
		reader:      bufio.NewReader(os.Stdin),
		out:         os.Stdout,
		downloadDir: c.DownloadDir,
	}

	a.store = queue.NewStore(api,
		queue.WithGate(auth),
		queue.WithParallelism(c.Parallelism),
		queue.WithLogger(log),
	)

	p := poller.New(api, a.store,
		poller.WithInterval(c.PollInterval),
		poller.WithMaxFailures(c.MaxPollFailures),
		poller.WithLogger(log),
		poller.WithNotify(a.onPoll),
	)
	a.tracker = poller.NewTracker(p)

	return a
}

func resolveDir(dir string) (string, error) {
	if filepath.IsAbs(dir) {
		return dir, filex.EnsureDir(dir)
	}
	return filex.EnsureSubdDir(dir)
}

// Run restores the saved session, resumes watching unfinished jobs and
// blocks in the REPL until the user exits or ctx is cancelled.
func (a *App) Run(ctx context.Context) {
	defer a.close()

	detach := a.history.Attach(ctx, a.store)
	defer detach()
	unsubscribe := a.store.Subscribe(a.onEvent)
	defer unsubscribe()

	printlnFn("Welcome to pdfconv CLI (type 'help' for commands)")

	a.restoreSession(ctx)
	a.resumeJobs(ctx)

	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}

func (a *App) close() {
	a.tracker.StopAll()
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn(context.Background(), "close database", "error", err)
		}
	}
}

func (a *App) restoreSession(ctx context.Context) {
	if err := a.authService.Restore(ctx); err != nil {
		a.log.Warn(ctx, "could not restore session", "error", err)
	}

	state, err := a.authService.CheckAuth(ctx)
	switch {
	case errors.Is(err, client.ErrUnavailable):
		printlnFn("Server unavailable, using the saved session")
	case err != nil:
		a.log.Warn(ctx, "check auth", "error", err)
	}

	if state.IsAuthenticated && state.User != nil {
		printlnFn("Signed in as", state.User.Email)
	}
}

// resumeJobs starts a watch for every job a previous run left unfinished.
func (a *App) resumeJobs(ctx context.Context) {
	pending, err := a.history.Pending(ctx)
	if err != nil {
		a.log.Warn(ctx, "list unfinished jobs", "error", err)
		return
	}
	for _, rec := range pending {
		a.watch(ctx, rec.JobID)
	}
	if len(pending) > 0 {
		printlnFn(fmt.Sprintf("Resumed %d unfinished job(s)", len(pending)))
	}
}

func (a *App) isLoggedIn() bool {
	return a.authService.State().IsAuthenticated
}

func (a *App) getStatus() string {
	state := a.authService.State()

	who := "guest"
	if state.IsAuthenticated && state.User != nil {
		who = state.User.Email
		if !state.User.IsVerified {
			who += " unverified"
		}
	}

	s := fmt.Sprintf("(%s) %d queued", who, a.store.Len())
	if n := len(a.tracker.Active()); n > 0 {
		s += fmt.Sprintf(", %d watching", n)
	}
	return s
}

// onEvent turns store notifications into console messages.
func (a *App) onEvent(ev queue.Event) {
	switch ev.Kind {
	case queue.EventError:
		printlnFn(fmt.Sprintf("! %s: %v", ev.Item.File.Name, ev.Err))
	case queue.EventUpdated:
		if ev.Item.Status == models.StatusCompleted {
			printlnFn(fmt.Sprintf("* %s converted to %s, run 'download %s'",
				ev.Item.File.Name, ev.Item.Options.TargetFormat, ev.Item.JobID))
		}
	}
}

func (a *App) onPoll(u poller.Update) {
	switch {
	case u.Err != nil:
		printlnFn(fmt.Sprintf("! job %s: status check failed (%d/%d): %v",
			u.JobID, u.Failures, a.config.MaxPollFailures, u.Err))
	case u.Status == apiv1.JobFailed || u.Status == apiv1.JobCancelled:
		printlnFn(fmt.Sprintf("! job %s %s", u.JobID, u.Status))
	}
}
