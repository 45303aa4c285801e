package transfer

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/andresuchdata/gcs-lfs-agent/internal/domain"
	"github.com/andresuchdata/gcs-lfs-agent/internal/storage"
)

// maxLoggedLine bounds how much of a bad line ends up in errors and logs.
const maxLoggedLine = 256

// Dispatcher handles one event at a time and writes exactly one response
// for every init, upload, download and terminate event.
type Dispatcher struct {
	store      storage.ObjectStorage
	stagingDir string
	out        *bufio.Writer
	enc        *json.Encoder
	log        zerolog.Logger
}

// NewDispatcher writes responses to out. Downloads without a path are
// written below stagingDir.
func NewDispatcher(store storage.ObjectStorage, stagingDir string, out io.Writer, log zerolog.Logger) *Dispatcher {
	w := bufio.NewWriter(out)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	return &Dispatcher{
		store:      store,
		stagingDir: stagingDir,
		out:        w,
		enc:        enc,
		log:        log,
	}
}

// Dispatch parses and handles line. stop is true once a terminate event has
// been answered. A returned error is fatal to the loop: either a
// *ProtocolError or a failure to write the response.
func (d *Dispatcher) Dispatch(ctx context.Context, line []byte) (stop bool, err error) {
	ev, err := domain.ParseEvent(line)
	if err != nil {
		return false, &ProtocolError{Line: truncate(line), Err: err}
	}

	kind := ev.Kind()
	d.log.Debug().Str("event", ev.Event).Str("oid", ev.Oid).Msg("processing event")

	switch kind {
	case domain.KindInit:
		d.log.Info().
			Str("operation", ev.Operation).
			Str("remote", ev.Remote).
			Msg("init")
		return false, d.respond(domain.InitResponse())

	case domain.KindUpload:
		return false, d.respond(d.upload(ctx, ev))

	case domain.KindDownload:
		return false, d.respond(d.download(ctx, ev))

	case domain.KindTerminate:
		d.log.Info().Msg("terminate")
		if err := d.respond(domain.TerminateResponse()); err != nil {
			return false, err
		}
		return true, nil

	default:
		d.log.Warn().Str("event", ev.Event).Str("line", truncate(line)).Msg("unsupported event, ignoring")
		return false, nil
	}
}

func (d *Dispatcher) upload(ctx context.Context, ev domain.Event) domain.Response {
	log := d.log.With().Str("oid", ev.Oid).Str("path", ev.Path).Logger()
	log.Info().Msg("handling upload")

	if err := checkFields(ev); err != nil {
		return d.failed(log, ev.Oid, err)
	}
	if err := validateOID(ev.Oid); err != nil {
		return d.failed(log, ev.Oid, err)
	}
	if ev.Path == "" {
		return d.failed(log, ev.Oid, fmt.Errorf("%w: upload without path", ErrInvalidEvent))
	}

	start := time.Now()
	size, err := d.store.UploadObject(ctx, ev.Oid, ev.Path)
	if err != nil {
		return d.failed(log, ev.Oid, err)
	}
	log.Info().Int64("size", size).Dur("elapsed", time.Since(start)).Msg("upload finished")
	return domain.UploadComplete(ev.Oid, size)
}

func (d *Dispatcher) download(ctx context.Context, ev domain.Event) domain.Response {
	log := d.log.With().Str("oid", ev.Oid).Logger()

	if err := checkFields(ev); err != nil {
		return d.failed(log, ev.Oid, err)
	}
	if err := validateOID(ev.Oid); err != nil {
		return d.failed(log, ev.Oid, err)
	}
	dest := ev.Path
	if dest == "" {
		dest = StagingPath(d.stagingDir, ev.Oid)
	}
	log.Info().Str("path", dest).Msg("handling download")

	start := time.Now()
	if err := d.store.DownloadObject(ctx, ev.Oid, dest); err != nil {
		return d.failed(log, ev.Oid, err)
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("download finished")
	return domain.DownloadComplete(ev.Oid, dest)
}

func (d *Dispatcher) failed(log zerolog.Logger, oid string, err error) domain.Response {
	code := errorCode(err)
	log.Error().Err(err).Int("code", code).Msg("transfer failed")
	return domain.TransferFailed(oid, code, err.Error())
}

// respond writes resp as one line and flushes it.
func (d *Dispatcher) respond(resp domain.Response) error {
	if err := d.enc.Encode(resp); err != nil {
		return fmt.Errorf("write %s response: %w", resp.Event, err)
	}
	if err := d.out.Flush(); err != nil {
		return fmt.Errorf("flush %s response: %w", resp.Event, err)
	}
	return nil
}

func truncate(line []byte) string {
	if len(line) > maxLoggedLine {
		return string(line[:maxLoggedLine]) + "..."
	}
	return string(line)
}
