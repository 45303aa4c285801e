package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// CommandProvider runs an external command that prints a bearer token on
// stdout, such as `gcloud auth print-access-token`. The command is run for
// every call; nothing is cached.
type CommandProvider struct {
	argv    []string
	timeout time.Duration
	log     zerolog.Logger
}

// NewCommandProvider creates a provider for argv. A zero timeout means the
// command may run for as long as ctx allows.
func NewCommandProvider(argv []string, timeout time.Duration, log zerolog.Logger) *CommandProvider {
	return &CommandProvider{
		argv:    append([]string(nil), argv...),
		timeout: timeout,
		log:     log,
	}
}

func (p *CommandProvider) Token(ctx context.Context) (string, error) {
	source := strings.Join(p.argv, " ")
	if len(p.argv) == 0 {
		return "", &CredentialError{Source: "token command", Detail: "no command configured"}
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.argv[0], p.argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	p.log.Debug().
		Str("command", source).
		Dur("elapsed", time.Since(start)).
		Err(err).
		Msg("token command finished")

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		var exitErr *exec.ExitError
		detail := strings.TrimSpace(stderr.String())
		if errors.As(err, &exitErr) && detail == "" {
			detail = fmt.Sprintf("exit status %d", exitErr.ExitCode())
		}
		return "", &CredentialError{Source: source, Detail: detail, Err: err}
	}

	token := strings.TrimSpace(stdout.String())
	if token == "" {
		return "", &CredentialError{Source: source, Detail: "command printed no token"}
	}
	return token, nil
}
