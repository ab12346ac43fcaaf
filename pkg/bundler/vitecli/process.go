package vitecli

import (
	"bufio"
	"errors"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"
)

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)

// cleanLine strips terminal colors and surrounding space.
func cleanLine(s string) string {
	return strings.TrimSpace(ansiRe.ReplaceAllString(s, ""))
}

// process is a running child whose output is handed to onLine one line at
// a time, stdout and stderr interleaved.
type process struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error

	stopOnce sync.Once
	stopErr  error
}

// startProcess starts cmd. onLine is called from a single goroutine.
func startProcess(cmd *exec.Cmd, onLine func(string)) (*process, error) {
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw
	// Grandchildren can hold the pipe open after the child exits.
	cmd.WaitDelay = time.Second
	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		return nil, err
	}

	p := &process{cmd: cmd, done: make(chan struct{})}
	scanned := make(chan struct{})
	go func() {
		defer close(scanned)
		sc := bufio.NewScanner(pr)
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		for sc.Scan() {
			if line := cleanLine(sc.Text()); line != "" {
				onLine(line)
			}
		}
		// Keep draining so the child never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, pr)
	}()
	go func() {
		p.err = cmd.Wait()
		_ = pw.Close()
		<-scanned
		close(p.done)
	}()
	return p, nil
}

// Done is closed once the process exited and its output was consumed.
func (p *process) Done() <-chan struct{} { return p.done }

// Err is the exit error. Only valid after Done is closed.
func (p *process) Err() error { return p.err }

// stop interrupts the process, killing it if it has not exited after grace.
func (p *process) stop(grace time.Duration) error {
	p.stopOnce.Do(func() {
		select {
		case <-p.done:
			return
		default:
		}
		if err := p.cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
			_ = p.cmd.Process.Kill()
		}
		select {
		case <-p.done:
		case <-time.After(grace):
			p.stopErr = p.cmd.Process.Kill()
			<-p.done
		}
	})
	return p.stopErr
}
