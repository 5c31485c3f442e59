// Package terminal implements the client side of the camera firmware's
// remote shell, driven entirely through memory mapped registers: session
// setup and authentication, command input and output draining, the
// u3vget/u3vput file channel and the interactive loops.
package terminal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/kevmo314/go-u3vterm/pkg/poll"
)

// Bus is the register level device access the terminal needs.
// *uvcp.Registers implements it.
type Bus interface {
	ReadMemory(address uint64, length int) ([]byte, error)
	WriteMemory(address uint64, data []byte) error
	ReadRegisters(address uint64, count int) ([]uint32, error)
	WriteRegisters(address uint64, values []uint32) error
}

type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateAuthenticated
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateAuthenticated:
		return "authenticated"
	case StateReady:
		return "ready"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

const (
	sessionPollInterval = 50 * time.Millisecond
	sessionReadyTimeout = 2 * time.Second
	resetSettle         = 200 * time.Millisecond
)

// Session is the terminal state for one process run. It is not safe for
// concurrent use.
type Session struct {
	bus    Bus
	clock  poll.Clock
	log    *zap.Logger
	stdout io.Writer
	stderr io.Writer

	progress ProgressFunc

	state       State
	initialized bool
	version     uint32
	chunkHint   uint32
	password    string
	echo        bool
}

type Option func(*Session)

func WithLogger(log *zap.Logger) Option {
	return func(s *Session) { s.log = log }
}

func WithClock(clock poll.Clock) Option {
	return func(s *Session) { s.clock = clock }
}

// WithOutput sets where remote output, progress and usage text are written.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(s *Session) {
		s.stdout = stdout
		s.stderr = stderr
	}
}

func WithProgress(fn ProgressFunc) Option {
	return func(s *Session) { s.progress = fn }
}

func NewSession(bus Bus, opts ...Option) *Session {
	s := &Session{
		bus:       bus,
		clock:     poll.SystemClock,
		log:       zap.NewNop(),
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		chunkHint: defaultChunkHint,
		echo:      true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) State() State { return s.state }

func (s *Session) Version() uint32 { return s.version }

func (s *Session) ChunkHint() uint32 { return s.chunkHint }

func (s *Session) EchoEnabled() bool { return s.echo }

func (s *Session) SetPassword(p string) { s.password = p }

// SetEchoEnabled selects whether the remote shell echoes input. It takes
// effect on the next session start or reset.
func (s *Session) SetEchoEnabled(enable bool) { s.echo = enable }

func (s *Session) readRegister(address uint64) (uint32, error) {
	values, err := s.bus.ReadRegisters(address, 1)
	if err != nil {
		return 0, err
	}
	return values[0], nil
}

func (s *Session) writeRegister(address uint64, value uint32) error {
	return s.bus.WriteRegisters(address, []uint32{value})
}

// Initialize checks the terminal magic and latches the firmware version and
// output chunk hint. A wrong magic is permanent.
func (s *Session) Initialize() error {
	if s.initialized {
		return nil
	}
	regs, err := s.bus.ReadRegisters(BaseAddr, 2)
	if err != nil {
		return fmt.Errorf("read terminal header: %w", err)
	}
	if regs[0] != Magic {
		return fmt.Errorf("%w 0x%x, expected 0x%x", ErrBadTerminalMagic, regs[0], Magic)
	}
	s.version = regs[1]
	if v, err := s.readRegister(VersionAddr); err == nil && v != 0 {
		s.version = v
	}
	if hint, err := s.readRegister(ChunkHintAddr); err == nil {
		s.chunkHint = hint
	}
	if s.chunkHint == 0 {
		s.chunkHint = fallbackChunkHint
	}
	if s.chunkHint > maxChunkHint {
		s.log.Warn("chunk hint exceeds frame capacity, clamping",
			zap.Uint32("advertised", s.chunkHint), zap.Uint32("chunk_hint", maxChunkHint))
		s.chunkHint = maxChunkHint
	}
	s.initialized = true
	s.state = StateInitialized
	s.log.Info("terminal initialized", zap.String("version", fmt.Sprintf("0x%x", s.version)), zap.Uint32("chunk_hint", s.chunkHint))
	return nil
}

// EnsureAuth authenticates with the configured password unless the device
// already reports an authenticated session. There is a single attempt.
func (s *Session) EnsureAuth() error {
	authed, err := s.readRegister(AuthStatusAddr)
	if err != nil {
		return fmt.Errorf("read auth status: %w", err)
	}
	if authed != 0 {
		s.promote(StateAuthenticated)
		return nil
	}
	if s.password == "" {
		return ErrAuthRequired
	}
	if err := s.bus.WriteMemory(AuthBufAddr, []byte(s.password)); err != nil {
		return fmt.Errorf("write auth buffer: %w", err)
	}
	if err := s.writeRegister(AuthCmdAddr, AuthCmdAuthenticate); err != nil {
		return fmt.Errorf("write auth command: %w", err)
	}
	if authed, err = s.readRegister(AuthStatusAddr); err != nil {
		return fmt.Errorf("read auth status: %w", err)
	}
	if authed == 0 {
		return ErrAuthFailed
	}
	s.log.Info("terminal unlocked")
	s.promote(StateAuthenticated)
	return nil
}

func (s *Session) promote(state State) {
	if s.state < state {
		s.state = state
	}
}

func (s *Session) controlWord(base uint32) uint32 {
	if s.echo {
		return base | CtrlClearFlags | CtrlEchoEnable
	}
	return base | CtrlClearFlags | CtrlEchoDisable
}

// EnsureSession brings the terminal to the ready state, initializing and
// authenticating first when needed.
func (s *Session) EnsureSession() error {
	if err := s.Initialize(); err != nil {
		return err
	}
	if err := s.EnsureAuth(); err != nil {
		return err
	}
	status, err := s.readRegister(StatusAddr)
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}
	if status&StatusReady != 0 {
		s.state = StateReady
		return nil
	}
	if err := s.writeRegister(StatusAddr, s.controlWord(CtrlStart)); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	err = poll.Poller{Clock: s.clock, Timeout: sessionReadyTimeout, Interval: sessionPollInterval}.Until(func() (bool, error) {
		status, err := s.readRegister(StatusAddr)
		if err != nil {
			return false, fmt.Errorf("read status: %w", err)
		}
		return status&StatusReady != 0, nil
	})
	if errors.Is(err, poll.ErrTimeout) {
		return ErrSessionTimeout
	}
	if err != nil {
		return err
	}
	s.state = StateReady
	s.log.Debug("terminal session ready")
	return nil
}

// Reset restarts the remote shell without dropping authentication.
func (s *Session) Reset() error {
	if err := s.Initialize(); err != nil {
		return err
	}
	if err := s.writeRegister(StatusAddr, s.controlWord(CtrlReset)); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	s.log.Info("terminal session reset")
	if s.state == StateReady {
		s.state = StateAuthenticated
	}
	s.clock.Sleep(resetSettle)
	return s.EnsureSession()
}

// Lock clears authentication on the device.
func (s *Session) Lock() error {
	if err := s.writeRegister(AuthCmdAddr, AuthCmdLock); err != nil {
		return fmt.Errorf("lock terminal: %w", err)
	}
	s.state = StateUninitialized
	if s.initialized {
		s.state = StateInitialized
	}
	return nil
}
