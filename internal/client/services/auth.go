// Package services contains the application services of the pdfconv
// client. This file defines the authentication service: the signed-in
// state, the account flows (signup, login, verification, password reset),
// persistence of the session between runs, and the usage limits that
// depend on who is signed in.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/dmitrijs2005/pdfconv/internal/apiv1"
	"github.com/dmitrijs2005/pdfconv/internal/client/client"
	"github.com/dmitrijs2005/pdfconv/internal/client/models"
	"github.com/dmitrijs2005/pdfconv/internal/client/queue"
	"github.com/dmitrijs2005/pdfconv/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/pdfconv/internal/common"
	"github.com/dmitrijs2005/pdfconv/internal/dbx"
	"github.com/dmitrijs2005/pdfconv/internal/logging"
	"github.com/dustin/go-humanize"
)

const (
	metaCookies = metadata.KeyCookies
	metaUser    = metadata.KeyUser
)

// Limits are the queue limits for guests and signed-in users.
type Limits struct {
	GuestMaxFiles     int
	GuestMaxFileSize  int64
	MemberMaxFiles    int
	MemberMaxFileSize int64
}

func DefaultLimits() Limits {
	return Limits{
		GuestMaxFiles:     2,
		GuestMaxFileSize:  10 << 20,
		MemberMaxFiles:    20,
		MemberMaxFileSize: 1 << 30,
	}
}

// AuthService owns the session state of the client.
//
// Contract:
//   - CheckAuth: ask the server who the session cookie belongs to. When
//     the server cannot be reached the last persisted user is assumed.
//   - Signup, Login, VerifyEmail: run the account flow and persist the
//     session cookie and user on success.
//   - Logout: end the session on the server and forget it locally, even
//     when the server call fails.
//   - ResendVerificationCode, ForgotPassword, ResetPassword: thin calls.
//   - State: snapshot of the current state.
//
// It is also the queue.Gate consulted by the queue store.
type AuthService interface {
	queue.Gate

	Restore(ctx context.Context) error
	CheckAuth(ctx context.Context) (models.AuthState, error)
	Signup(ctx context.Context, req apiv1.SignupRequest) (models.AuthState, error)
	Login(ctx context.Context, email, password string) (models.AuthState, error)
	Logout(ctx context.Context) error
	VerifyEmail(ctx context.Context, code string) (models.AuthState, error)
	ResendVerificationCode(ctx context.Context, email string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
	State() models.AuthState
}

type authService struct {
	api    client.AuthAPI
	db     *sql.DB
	limits Limits
	log    logging.Logger

	mu    sync.RWMutex
	state models.AuthState
}

// NewAuthService constructs an AuthService bound to the given API client
// and DB. The state starts as loading until CheckAuth answered.
func NewAuthService(api client.AuthAPI, db *sql.DB, limits Limits, log logging.Logger) AuthService {
	if log == nil {
		log = logging.Discard()
	}
	return &authService{
		api:    api,
		db:     db,
		limits: limits,
		log:    log,
		state:  models.AuthState{IsLoading: true},
	}
}

func (a *authService) getMetadataRepo(db dbx.DBTX) metadata.Repository {
	return metadata.NewSQLiteRepository(db)
}

func (a *authService) State() models.AuthState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return cloneState(a.state)
}

func cloneState(s models.AuthState) models.AuthState {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

func (a *authService) setState(fn func(s *models.AuthState)) models.AuthState {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(&a.state)
	return cloneState(a.state)
}

// Restore loads the persisted session cookies into the API client so the
// next CheckAuth can pick the session up.
func (a *authService) Restore(ctx context.Context) error {
	var saved []savedCookie
	found, err := a.getMetadataRepo(a.db).Load(ctx, metaCookies, &saved)
	if err != nil || !found {
		return err
	}

	cookies := make([]*http.Cookie, 0, len(saved))
	for _, c := range saved {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}
	a.api.SetCookies(cookies)
	return nil
}

func (a *authService) CheckAuth(ctx context.Context) (models.AuthState, error) {
	a.setState(func(s *models.AuthState) { s.IsLoading = true })

	resp, err := a.api.CheckAuth(ctx)
	switch {
	case err == nil && resp.User != nil:
		user := userFromAPI(resp.User)
		if err := a.saveSession(ctx, user); err != nil {
			a.log.Warn(ctx, "could not persist session", "error", err)
		}
		return a.setState(func(s *models.AuthState) { s.SetUser(user) }), nil

	case err == nil, errors.Is(err, client.ErrUnauthorized):
		a.forget(ctx)
		return a.setState(func(s *models.AuthState) { s.Clear() }), nil

	case errors.Is(err, client.ErrUnavailable):
		cached, cerr := a.savedUser(ctx)
		if cerr != nil || cached == nil {
			return a.setState(func(s *models.AuthState) { s.Clear() }), err
		}
		a.log.Info(ctx, "server unavailable, using saved session", "user", cached.Email)
		return a.setState(func(s *models.AuthState) { s.SetUser(cached) }), err
	}

	a.setState(func(s *models.AuthState) { s.IsLoading = false })
	return a.State(), err
}

func (a *authService) Signup(ctx context.Context, req apiv1.SignupRequest) (models.AuthState, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.UserName = strings.TrimSpace(req.UserName)
	if req.Email == "" || req.Password == "" || req.UserName == "" {
		return a.State(), fmt.Errorf("%w: name, email and password are required", common.ErrorValidation)
	}

	resp, err := a.api.Signup(ctx, req)
	if err != nil {
		return a.State(), err
	}

	var user *models.User
	if resp.User != nil {
		user = userFromAPI(resp.User)
		if err := a.saveSession(ctx, user); err != nil {
			a.log.Warn(ctx, "could not persist session", "error", err)
		}
	}

	return a.setState(func(s *models.AuthState) {
		if user != nil {
			s.SetUser(user)
		}
		s.SignupInProgress = true
		s.SignupEmail = req.Email
		s.EmailForVerification = req.Email
	}), nil
}

func (a *authService) Login(ctx context.Context, email, password string) (models.AuthState, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return a.State(), fmt.Errorf("%w: email and password are required", common.ErrorValidation)
	}

	resp, err := a.api.Login(ctx, email, password)
	if err != nil {
		return a.State(), err
	}
	if resp.User == nil {
		return a.State(), fmt.Errorf("login: %w", common.ErrInvalidCredential)
	}

	user := userFromAPI(resp.User)
	if err := a.saveSession(ctx, user); err != nil {
		a.log.Warn(ctx, "could not persist session", "error", err)
	}

	a.log.Info(ctx, "signed in", "user", user.Email)
	return a.setState(func(s *models.AuthState) {
		s.SetUser(user)
		if !user.IsVerified {
			s.EmailForVerification = user.Email
		}
	}), nil
}

func (a *authService) Logout(ctx context.Context) error {
	err := a.api.Logout(ctx)
	if err != nil {
		a.log.Warn(ctx, "server logout failed", "error", err)
	}

	expired := make([]*http.Cookie, 0)
	for _, c := range a.api.Cookies() {
		expired = append(expired, &http.Cookie{Name: c.Name, Value: "", Path: "/", MaxAge: -1})
	}
	a.api.SetCookies(expired)

	a.forget(ctx)
	a.setState(func(s *models.AuthState) { s.Clear() })
	return err
}

func (a *authService) VerifyEmail(ctx context.Context, code string) (models.AuthState, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return a.State(), fmt.Errorf("%w: verification code is required", common.ErrorValidation)
	}

	resp, err := a.api.VerifyEmail(ctx, code)
	if err != nil {
		return a.State(), err
	}

	var user *models.User
	if resp.User != nil {
		user = userFromAPI(resp.User)
		if err := a.saveSession(ctx, user); err != nil {
			a.log.Warn(ctx, "could not persist session", "error", err)
		}
	}

	return a.setState(func(s *models.AuthState) {
		if user != nil {
			s.SetUser(user)
		} else if s.User != nil {
			s.User.IsVerified = true
		}
		s.SignupInProgress = false
		s.SignupEmail = ""
		s.EmailForVerification = ""
	}), nil
}

// ResendVerificationCode falls back to the address awaiting verification,
// then to the signed-in user's, when email is empty.
func (a *authService) ResendVerificationCode(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		st := a.State()
		email = st.EmailForVerification
		if email == "" && st.User != nil {
			email = st.User.Email
		}
	}
	if email == "" {
		return fmt.Errorf("%w: email is required", common.ErrorValidation)
	}
	return a.api.ResendVerificationCode(ctx, email)
}

func (a *authService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", common.ErrorValidation)
	}
	return a.api.ForgotPassword(ctx, email)
}

func (a *authService) ResetPassword(ctx context.Context, token, password string) error {
	token = strings.TrimSpace(token)
	if token == "" || password == "" {
		return fmt.Errorf("%w: token and password are required", common.ErrorValidation)
	}
	return a.api.ResetPassword(ctx, token, password)
}

// CanAddFiles enforces the per-account file count and size limits. waiting
// is the number of items not yet submitted for conversion.
func (a *authService) CanAddFiles(waiting int, files []models.LocalFile) error {
	maxFiles, maxSize := a.limits.GuestMaxFiles, a.limits.GuestMaxFileSize
	who := "guests"
	if a.State().IsAuthenticated {
		maxFiles, maxSize = a.limits.MemberMaxFiles, a.limits.MemberMaxFileSize
		who = "your account"
	}

	if maxFiles > 0 && waiting+len(files) > maxFiles {
		return fmt.Errorf("%w: %s can queue up to %d files", queue.ErrLimitExceeded, who, maxFiles)
	}
	if maxSize > 0 {
		for _, f := range files {
			if f.Size > maxSize {
				return fmt.Errorf("%w: %s is %s, %s can upload files up to %s", queue.ErrLimitExceeded,
					f.Name, humanize.IBytes(uint64(f.Size)), who, humanize.IBytes(uint64(maxSize)))
			}
		}
	}
	return nil
}

func (a *authService) CanStartConversion() error {
	st := a.State()
	switch {
	case !st.IsAuthenticated || st.User == nil:
		return queue.ErrAuthRequired
	case !st.User.IsVerified:
		return queue.ErrVerificationRequired
	}
	return nil
}

type savedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// saveSession persists the jar's cookies and user in one transaction.
func (a *authService) saveSession(ctx context.Context, user *models.User) error {
	cookies := a.api.Cookies()
	saved := make([]savedCookie, 0, len(cookies))
	for _, c := range cookies {
		saved = append(saved, savedCookie{Name: c.Name, Value: c.Value})
	}

	return dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := a.getMetadataRepo(tx)
		if err := repo.Save(ctx, metaCookies, saved); err != nil {
			return err
		}
		return repo.Save(ctx, metaUser, user)
	})
}

func (a *authService) savedUser(ctx context.Context) (*models.User, error) {
	var u models.User
	found, err := a.getMetadataRepo(a.db).Load(ctx, metaUser, &u)
	if err != nil || !found {
		return nil, err
	}
	return &u, nil
}

// forget wipes the persisted session.
func (a *authService) forget(ctx context.Context) {
	err := a.getMetadataRepo(a.db).Delete(ctx, metaCookies, metaUser)
	if err != nil {
		a.log.Warn(ctx, "could not clear saved session", "error", err)
	}
}

func userFromAPI(u *apiv1.User) *models.User {
	return &models.User{
		ID:          u.ID,
		UserName:    u.UserName,
		Email:       u.Email,
		PhoneNumber: u.PhoneNumber,
		IsVerified:  u.IsVerified,
	}
}
