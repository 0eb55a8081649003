package services

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/packforge/launcher/util"
)

const killWait = 5 * time.Second

// ProcessTree abstracts per-OS process enumeration and termination so the
// supervisor's kill ordering stays testable.
type ProcessTree interface {
	Children(pid int) ([]int, error)
	Kill(pid int) error
}

// javaBinary is a package var so tests can supervise a stand-in process.
var javaBinary = "java"

// Supervisor starts the game process and terminates it together with its
// descendants on demand. Wait and Kill may run on different goroutines: the
// reaper goroutine started by Start is the only caller of exec.Cmd.Wait, and
// both block on its done channel.
type Supervisor struct {
	tree ProcessTree
	log  zerolog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	done    chan struct{}
	waitErr error
}

func NewSupervisor(logger zerolog.Logger) *Supervisor {
	return &Supervisor{tree: newProcessTree(), log: logger}
}

// NewSupervisorWithTree injects a process tree implementation; used by tests.
func NewSupervisorWithTree(tree ProcessTree, logger zerolog.Logger) *Supervisor {
	return &Supervisor{tree: tree, log: logger}
}

// Start spawns java with the assembled plan. A spawn failure is reported,
// never retried.
func (s *Supervisor) Start(plan *util.LaunchPlan) (int, error) {
	if plan == nil {
		return 0, fmt.Errorf("start: nil launch plan")
	}

	cmd := exec.Command(javaBinary, plan.Args()...)
	cmd.Dir = plan.WorkDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		s.log.Error().Err(err).Msg("failed to start game process")
		return 0, err
	}

	done := make(chan struct{})
	s.mu.Lock()
	s.cmd = cmd
	s.done = done
	s.waitErr = nil
	s.mu.Unlock()

	go func() {
		err := cmd.Wait()
		s.mu.Lock()
		s.waitErr = err
		s.mu.Unlock()
		close(done)
	}()

	s.log.Info().Int("pid", cmd.Process.Pid).Msg("game process started")
	return cmd.Process.Pid, nil
}

// Wait blocks until the supervised process exits and returns its exit code.
func (s *Supervisor) Wait() (int, error) {
	s.mu.Lock()
	cmd, done := s.cmd, s.done
	s.mu.Unlock()
	if cmd == nil {
		return 0, errors.New("wait: no supervised process")
	}

	<-done

	s.mu.Lock()
	err := s.waitErr
	if s.cmd == cmd {
		s.cmd = nil
	}
	s.mu.Unlock()

	code := cmd.ProcessState.ExitCode()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return code, nil
		}
		return code, err
	}
	return code, nil
}

// Kill terminates the supervised process and all its descendants, leaves
// before root. Individual termination failures are logged and do not abort
// termination of siblings. The supervised handle stays in place so a
// concurrent Wait still observes the exit code.
func (s *Supervisor) Kill() {
	s.mu.Lock()
	cmd, done := s.cmd, s.done
	s.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		s.log.Debug().Msg("no game process to kill")
		return
	}

	root := cmd.Process.Pid
	s.log.Info().Int("pid", root).Msg("killing game process tree")

	for _, pid := range killOrder(s.tree, root) {
		if err := s.tree.Kill(pid); err != nil {
			s.log.Warn().Err(err).Int("pid", pid).Msg("failed to kill process")
		}
	}

	select {
	case <-done:
	case <-time.After(killWait):
		s.log.Warn().Int("pid", root).Msg("game process did not exit in time")
	}
}

// killOrder enumerates the full descendant set and orders it deepest-first,
// with the root last.
func killOrder(tree ProcessTree, root int) []int {
	var order []int
	var walk func(pid int)
	walk = func(pid int) {
		children, err := tree.Children(pid)
		if err != nil {
			return
		}
		for _, child := range children {
			walk(child)
		}
		order = append(order, pid)
	}

	children, err := tree.Children(root)
	if err == nil {
		for _, child := range children {
			walk(child)
		}
	}
	return append(order, root)
}

func newProcessTree() ProcessTree {
	if runtime.GOOS == "windows" {
		return windowsProcessTree{}
	}
	return unixProcessTree{}
}

// unixProcessTree shells out to pgrep/kill, which behave the same on linux
// and mac.
type unixProcessTree struct{}

func (unixProcessTree) Children(pid int) ([]int, error) {
	out, err := exec.Command("pgrep", "-P", strconv.Itoa(pid)).Output()
	if err != nil {
		// pgrep exits 1 when there are no matches.
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return nil, nil
		}
		return nil, err
	}
	return parsePids(string(out)), nil
}

func (unixProcessTree) Kill(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Kill()
}

type windowsProcessTree struct{}

func (windowsProcessTree) Children(pid int) ([]int, error) {
	out, err := exec.Command("wmic", "process", "where",
		fmt.Sprintf("(ParentProcessId=%d)", pid), "get", "ProcessId").Output()
	if err != nil {
		return nil, err
	}
	return parsePids(string(out)), nil
}

func (windowsProcessTree) Kill(pid int) error {
	return exec.Command("taskkill", "/F", "/PID", strconv.Itoa(pid)).Run()
}

func parsePids(out string) []int {
	var pids []int
	for _, line := range strings.Split(out, "\n") {
		if pid, err := strconv.Atoi(strings.TrimSpace(line)); err == nil {
			pids = append(pids, pid)
		}
	}
	return pids
}
