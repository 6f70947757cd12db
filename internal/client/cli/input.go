package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var errEmptyInput = errors.New("empty input")

// GetSimpleText prints a prompt to w and reads one line from reader with
// surrounding whitespace trimmed. A final line without a newline is still
// returned.
//
//	Prompt text
//	> _
func GetSimpleText(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n> "); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// GetRequiredText is GetSimpleText that rejects an empty answer.
func GetRequiredText(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	s, err := getSimpleText(reader, prompt, w)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", fmt.Errorf("%s: %w", strings.ToLower(prompt), errEmptyInput)
	}
	return s, nil
}

// GetPassword reads a password from the terminal without echo.
// The caller wipes the returned slice.
func GetPassword(w io.Writer) ([]byte, error) {
	if _, err := fmt.Fprint(w, "Enter password: "); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	if len(pw) == 0 {
		return nil, fmt.Errorf("password: %w", errEmptyInput)
	}
	return pw, nil
}

// argOrPrompt returns args[0] when present and asks for it otherwise.
func argOrPrompt(args []string, reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return GetRequiredText(reader, prompt, w)
}
