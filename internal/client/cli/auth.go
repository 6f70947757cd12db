package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/pdfconv/internal/apiv1"
	"github.com/dmitrijs2005/pdfconv/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

var errNoEmail = errors.New("no email address known, pass one")

// Signup prompts for the account details and creates the account. The
// server then mails a verification code for 'verify'.
func (a *App) Signup(ctx context.Context, args []string) error {
	userName, err := GetRequiredText(a.reader, "Enter user name", a.out)
	if err != nil {
		return err
	}
	email, err := GetRequiredText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	phone, err := getSimpleText(a.reader, "Enter phone number (optional)", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	state, err := a.authService.Signup(ctx, apiv1.SignupRequest{
		UserName:    userName,
		Email:       email,
		Password:    string(password),
		PhoneNumber: phone,
	})
	if err != nil {
		return err
	}

	printlnFn(fmt.Sprintf("Account created. A verification code was sent to %s, enter it with 'verify'", state.EmailForVerification))
	return nil
}

func (a *App) Login(ctx context.Context, args []string) error {
	email, err := argOrPrompt(args, a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	state, err := a.authService.Login(ctx, email, string(password))
	if err != nil {
		a.log.Info(ctx, "login unsuccessful", "email", email, "error", err)
		return err
	}

	printlnFn("Signed in as", state.User.Email)
	if !state.User.IsVerified {
		printlnFn("Your email is not verified yet, run 'verify' to convert files")
	}
	return nil
}

// Logout always forgets the local session; a server error is still
// reported.
func (a *App) Logout(ctx context.Context, args []string) error {
	err := a.authService.Logout(ctx)
	printlnFn("Signed out")
	return err
}

func (a *App) WhoAmI(ctx context.Context, args []string) error {
	state := a.authService.State()
	if !state.IsAuthenticated || state.User == nil {
		printlnFn("Not signed in")
		return nil
	}
	u := state.User
	verified := "verified"
	if !u.IsVerified {
		verified = "not verified"
	}
	printlnFn(fmt.Sprintf("%s <%s>, %s", u.UserName, u.Email, verified))
	return nil
}

func (a *App) Verify(ctx context.Context, args []string) error {
	code, err := argOrPrompt(args, a.reader, "Enter verification code", a.out)
	if err != nil {
		return err
	}
	if _, err := a.authService.VerifyEmail(ctx, code); err != nil {
		return err
	}
	printlnFn("Email verified")
	return nil
}

// knownEmail picks the address a resend is most likely meant for.
func (a *App) knownEmail(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	state := a.authService.State()
	switch {
	case state.EmailForVerification != "":
		return state.EmailForVerification, nil
	case state.User != nil && state.User.Email != "":
		return state.User.Email, nil
	}
	return "", errNoEmail
}

func (a *App) Resend(ctx context.Context, args []string) error {
	email, err := a.knownEmail(args)
	if err != nil {
		return err
	}
	if err := a.authService.ResendVerificationCode(ctx, email); err != nil {
		return err
	}
	printlnFn("A new code was sent to", email)
	return nil
}

func (a *App) Forgot(ctx context.Context, args []string) error {
	email, err := argOrPrompt(args, a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	if err := a.authService.ForgotPassword(ctx, email); err != nil {
		return err
	}
	printlnFn("If the account exists, a reset link is on its way. Run 'reset <token>' with the token it contains")
	return nil
}

func (a *App) Reset(ctx context.Context, args []string) error {
	token, err := argOrPrompt(args, a.reader, "Enter reset token", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.authService.ResetPassword(ctx, token, string(password)); err != nil {
		return err
	}
	printlnFn("Password changed, you can log in now")
	return nil
}
