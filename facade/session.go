// Package facade is the stable boundary the UI invokes: one command
// per operation, JSON-serializable results, progress on the event bus.
package facade

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"uedump/discovery"
	"uedump/events"
	"uedump/namepool"
	"uedump/process"
	"uedump/query"
	"uedump/storage"
	"uedump/uelayout"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// ErrNotAttached is returned when a command runs with no live target.
var ErrNotAttached = errors.New("no process attached")

// Session is the per-attach context: the open process, the layout
// profile and the Store holding everything parsed from this target.
// Detaching drops the Session; nothing survives across attaches.
type Session struct {
	Proc     process.Process
	Store    *storage.Store
	Profile  uelayout.Profile
	Degraded bool

	moduleBase  process.ProcessMemoryAddress
	locator     *discovery.Locator
	namesWork   flight
	objectsWork flight
}

// Core owns at most one Session and the event bus. The process factory
// and lister are injected by the platform entry point.
type Core struct {
	bus       *events.Bus
	log       *logger.Logger
	newProc   func() process.Process
	listProcs func() ([]process.ProcessInfo, error)

	session *Session
}

func NewCore(newProc func() process.Process, listProcs func() ([]process.ProcessInfo, error)) *Core {
	return &Core{
		bus:       events.NewBus(),
		log:       logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "facade")),
		newProc:   newProc,
		listProcs: listProcs,
	}
}

// Bus exposes the progress event channel for subscribers.
func (c *Core) Bus() *events.Bus { return c.bus }

// Session returns the live session or ErrNotAttached.
func (c *Core) Session() (*Session, error) {
	if c.session == nil {
		return nil, ErrNotAttached
	}
	return c.session, nil
}

// FetchSystemProcesses lists candidate targets.
func (c *Core) FetchSystemProcesses() ([]process.ProcessInfo, error) {
	return c.listProcs()
}

// AttachToProcess opens the target, builds the module map, selects the
// layout profile and installs a fresh Session. A previous session is
// dropped first.
func (c *Core) AttachToProcess(pid process.ProcessID, name string) (string, error) {
	if c.session != nil {
		c.Detach()
	}

	proc := c.newProc()
	if err := proc.Open(pid); err != nil {
		return "", fmt.Errorf("failed to open process PID %d: %w", pid, err)
	}

	mod, err := proc.MainModule()
	if err != nil {
		proc.Close()
		return "", err
	}

	s := &Session{
		Proc:       proc,
		Store:      storage.NewStore(),
		moduleBase: mod.Base,
	}

	// The file-version major is a weak signal: on failure fall back to
	// the newest profile, degraded, and let signature discovery carry.
	if ver, err := uelayout.Detect(proc.ExePath()); err == nil {
		s.Store.UEVersion.Set(ver.Major)
		s.Profile, s.Degraded = uelayout.ProfileFor(ver.Major)
	} else {
		c.log.Warn("File version unavailable: ", err)
		s.Profile, _ = uelayout.ProfileFor(5)
		s.Degraded = true
	}

	s.locator = discovery.NewLocator(proc, s.Profile, s.Store)
	c.session = s

	c.log.Infoln("Attached to", name, "pid", pid, "module base", mod.Base.ToString())
	return fmt.Sprintf("Successfully attached to %s", name), nil
}

// Detach closes the target and drops the Session, invalidating every
// pending query.
func (c *Core) Detach() {
	if c.session == nil {
		return
	}
	c.session.Proc.Close()
	c.session = nil
	c.log.Infoln("Detached")
}

// pool builds the name pool reader once the base is discovered.
func (s *Session) pool() (*namepool.Pool, error) {
	base, err := s.Store.NamePoolBase.MustGet()
	if err != nil {
		return nil, err
	}
	return namepool.NewPool(s.Proc, base, s.Profile), nil
}

// engine builds the query engine; it needs both snapshots installed.
func (s *Session) engine() (*query.Engine, error) {
	names, err := s.Store.Names.MustGet()
	if err != nil {
		return nil, err
	}
	objects, err := s.Store.Objects.MustGet()
	if err != nil {
		return nil, err
	}
	packages, _ := s.Store.Packages.Get()
	return query.NewEngine(s.Proc, s.Profile, names, objects, packages, s.moduleBase), nil
}

func parseHexAddress(s string) (process.ProcessMemoryAddress, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	v, err := strconv.ParseUint(trimmed, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid hex address %q", s)
	}
	return process.ProcessMemoryAddress(v), nil
}
