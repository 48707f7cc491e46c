package app

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/cruso003/JobGenie-sub001/internal/tap"
	"github.com/cruso003/JobGenie-sub001/internal/transcript"
	"github.com/cruso003/JobGenie-sub001/pkg/audio"
	"github.com/cruso003/JobGenie-sub001/pkg/types"
)

// artifacts owns the per-interview transcript and recordings. A new set is
// opened when an interview becomes ready and flushed when it ends.
type artifacts struct {
	transcriptDir string
	recordingDir  string
	micFormat     audio.Format
	modelFormat   audio.Format

	mu         sync.Mutex
	sessionID  string
	transcript *transcript.Accumulator
	rec        *tap.Pair

	// pending tracks background flushes.
	pending sync.WaitGroup
	errMu   sync.Mutex
	errs    []error
}

func newArtifacts(transcriptDir, recordingDir string, mic, model audio.Format) *artifacts {
	return &artifacts{
		transcriptDir: transcriptDir,
		recordingDir:  recordingDir,
		micFormat:     mic,
		modelFormat:   model,
	}
}

func (ar *artifacts) recording() bool { return ar.recordingDir != "" }

// open starts the artifacts of sessionID, flushing any previous set.
// Failures are logged; the interview continues without the artifact.
func (ar *artifacts) open(sessionID string) {
	ar.closeAsync()

	var acc *transcript.Accumulator
	if ar.transcriptDir != "" {
		a, err := transcript.Create(ar.transcriptDir, sessionID)
		if err != nil {
			slog.Warn("transcript disabled for this interview", "session_id", sessionID, "err", err)
		} else {
			acc = a
		}
	}
	var rec *tap.Pair
	if ar.recording() {
		p, err := tap.OpenPair(ar.recordingDir, sessionID, ar.micFormat, ar.modelFormat)
		if err != nil {
			slog.Warn("recording disabled for this interview", "session_id", sessionID, "err", err)
		} else {
			rec = p
		}
	}

	ar.mu.Lock()
	ar.sessionID, ar.transcript, ar.rec = sessionID, acc, rec
	ar.mu.Unlock()
}

// closeAsync detaches the current set and flushes it in the background.
func (ar *artifacts) closeAsync() {
	ar.mu.Lock()
	id, acc, rec := ar.sessionID, ar.transcript, ar.rec
	ar.sessionID, ar.transcript, ar.rec = "", nil, nil
	ar.mu.Unlock()
	if acc == nil && rec == nil {
		return
	}

	ar.pending.Add(1)
	go func() {
		defer ar.pending.Done()
		var errs []error
		if acc != nil {
			errs = append(errs, acc.Close())
		}
		if rec != nil {
			errs = append(errs, rec.Close())
		}
		if err := errors.Join(errs...); err != nil {
			slog.Warn("failed to flush interview artifacts", "session_id", id, "err", err)
			ar.errMu.Lock()
			ar.errs = append(ar.errs, err)
			ar.errMu.Unlock()
			return
		}
		slog.Info("interview artifacts written", "session_id", id)
	}()
}

// wait flushes the current set and waits for every background flush.
func (ar *artifacts) wait() error {
	ar.closeAsync()
	ar.pending.Wait()
	ar.errMu.Lock()
	defer ar.errMu.Unlock()
	return errors.Join(ar.errs...)
}

func (ar *artifacts) add(ev types.TranscriptionEvent) {
	if acc := ar.current(); acc != nil {
		acc.Add(ev)
	}
}

func (ar *artifacts) current() *transcript.Accumulator {
	ar.mu.Lock()
	defer ar.mu.Unlock()
	return ar.transcript
}

func (ar *artifacts) micTap(pcm []byte) {
	ar.mu.Lock()
	rec := ar.rec
	ar.mu.Unlock()
	if rec != nil {
		rec.Mic.Write(pcm)
	}
}

func (ar *artifacts) modelTap(pcm []byte) {
	ar.mu.Lock()
	rec := ar.rec
	ar.mu.Unlock()
	if rec != nil {
		rec.Model.Write(pcm)
	}
}
