package transfer

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/andresuchdata/gcs-lfs-agent/internal/domain"
)

// MaxLineSize is the longest request line accepted.
const MaxLineSize = 1 << 20

// Loop reads request lines from in and hands them to the dispatcher, one at
// a time, in order.
type Loop struct {
	in         io.Reader
	dispatcher *Dispatcher
	log        zerolog.Logger
	state      domain.State
}

func NewLoop(in io.Reader, dispatcher *Dispatcher, log zerolog.Logger) *Loop {
	return &Loop{
		in:         in,
		dispatcher: dispatcher,
		log:        log,
		state:      domain.StateStarting,
	}
}

// State reports the current lifecycle state.
func (l *Loop) State() domain.State {
	return l.state
}

func (l *Loop) setState(s domain.State) {
	l.log.Debug().Stringer("from", l.state).Stringer("to", s).Msg("state change")
	l.state = s
}

// Run blocks until a terminate event has been answered, input ends, ctx is
// cancelled or a fatal error occurs. Terminate and end of input return nil.
func (l *Loop) Run(ctx context.Context) error {
	defer l.setState(domain.StateStopped)
	l.setState(domain.StateRunning)

	scanner := bufio.NewScanner(l.in)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			l.log.Warn().Err(err).Msg("stopping before next event")
			return err
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		stop, err := l.dispatcher.Dispatch(ctx, line)
		if err != nil {
			var perr *ProtocolError
			if errors.As(err, &perr) {
				l.log.Error().Err(err).Msg("error decoding request")
			}
			return err
		}
		if stop {
			l.setState(domain.StateDraining)
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return &ProtocolError{Line: "", Err: fmt.Errorf("line exceeds %d bytes: %w", MaxLineSize, err)}
		}
		return fmt.Errorf("read input: %w", err)
	}
	l.log.Info().Msg("end of input")
	return nil
}
