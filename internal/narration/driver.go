// Package narration plays the spoken track of a walkthrough and reports when
// each step's narration has finished.
package narration

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNoOutput means the driver has nothing it can play for a cue.
var ErrNoOutput = errors.New("narration: no audio file or speech command for cue")

// Cue is one step's narration.
type Cue struct {
	StepID    string
	Text      string
	AudioPath string
}

// Driver plays cues. Speak must not block on playback; done is called once
// when the cue ends on its own, with the playback error if any. A cue that is
// stopped or replaced never calls done.
type Driver interface {
	Speak(ctx context.Context, cue Cue, done func(error)) error
	Stop()
}

// AudioPath is where a step's recorded narration lives.
func AudioPath(dir, stepID string) string {
	return filepath.Join(dir, "scene-"+stepID+".mp3")
}

// NopDriver plays nothing.
type NopDriver struct{}

func (NopDriver) Speak(context.Context, Cue, func(error)) error { return ErrNoOutput }
func (NopDriver) Stop()                                         {}

// Process is a started playback.
type Process interface {
	Wait() error
	Kill() error
}

// Launcher starts argv. The default runs it with os/exec.
type Launcher func(ctx context.Context, argv []string) (Process, error)

// CommandDriver plays audio files or speaks text through external commands,
// for example "mpg123 -q" and "say".
type CommandDriver struct {
	audioCommand  []string
	speechCommand []string
	launch        Launcher

	mu      sync.Mutex
	current *playback
}

type playback struct {
	proc    Process
	stopped bool
}

// CommandOption customizes a CommandDriver.
type CommandOption func(*CommandDriver)

// WithLauncher replaces process creation (tests).
func WithLauncher(l Launcher) CommandOption {
	return func(d *CommandDriver) {
		if l != nil {
			d.launch = l
		}
	}
}

// NewCommandDriver builds a driver from whitespace-separated command lines.
// Either may be empty.
func NewCommandDriver(audioCommand, speechCommand string, opts ...CommandOption) *CommandDriver {
	d := &CommandDriver{
		audioCommand:  strings.Fields(audioCommand),
		speechCommand: strings.Fields(speechCommand),
		launch:        execLauncher,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Speak stops whatever is playing and starts cue.
func (d *CommandDriver) Speak(ctx context.Context, cue Cue, done func(error)) error {
	argv := d.argv(cue)
	if len(argv) == 0 {
		d.Stop()
		return ErrNoOutput
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	proc, err := d.launch(ctx, argv)
	if err != nil {
		return fmt.Errorf("narration: start %s: %w", argv[0], err)
	}
	pb := &playback{proc: proc}
	d.current = pb
	go d.wait(pb, done)
	return nil
}

// Stop kills the current playback, if any.
func (d *CommandDriver) Stop() {
	d.mu.Lock()
	d.stopLocked()
	d.mu.Unlock()
}

func (d *CommandDriver) stopLocked() {
	if d.current == nil {
		return
	}
	d.current.stopped = true
	_ = d.current.proc.Kill()
	d.current = nil
}

func (d *CommandDriver) wait(pb *playback, done func(error)) {
	err := pb.proc.Wait()
	d.mu.Lock()
	if pb.stopped {
		d.mu.Unlock()
		return
	}
	if d.current == pb {
		d.current = nil
	}
	d.mu.Unlock()
	if done != nil {
		done(err)
	}
}

func (d *CommandDriver) argv(cue Cue) []string {
	if cue.AudioPath != "" && len(d.audioCommand) > 0 {
		return append(append([]string(nil), d.audioCommand...), cue.AudioPath)
	}
	if text := strings.TrimSpace(cue.Text); text != "" && len(d.speechCommand) > 0 {
		return append(append([]string(nil), d.speechCommand...), text)
	}
	return nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func execLauncher(ctx context.Context, argv []string) (Process, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return execProcess{cmd: cmd}, nil
}

func (p execProcess) Wait() error { return p.cmd.Wait() }

func (p execProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}
