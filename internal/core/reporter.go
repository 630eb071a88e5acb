package core

import (
	"net"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"crash/internal/config"
	"crash/internal/core/types"
	"crash/internal/platform"
)

// Reporter builds read-only status snapshots.
type Reporter struct {
	store   *config.Store
	procs   platform.ProcessTable
	clock   clockwork.Clock
	version string
	log     *logrus.Entry

	localIP func() string
}

// NewReporter creates a new reporter
func NewReporter(store *config.Store, procs platform.ProcessTable, clock clockwork.Clock, version string, log *logrus.Entry) *Reporter {
	return &Reporter{
		store:   store,
		procs:   procs,
		clock:   clock,
		version: version,
		log:     log.WithField("component", "status"),
		localIP: localIP,
	}
}

// Status queries the process table and the installed binary. It changes no
// state.
func (r *Reporter) Status(cfg *config.AppConfig) *types.Status {
	s := &types.Status{
		Version: r.version,
		Core:    cfg.Core,
		UI:      cfg.Web.UI,
		WebURL:  "http://" + net.JoinHostPort(r.localIP(), cfg.Web.Port()) + "/ui",
	}

	if v, err := coreVersion(r.procs, r.store, cfg); err == nil {
		s.CoreVersion = v
	} else {
		r.log.Debugf("core version: %v", err)
	}

	pid, err := r.procs.PID(cfg.Core.ExeName())
	if err != nil {
		return s
	}
	s.Running = true
	s.PID = pid

	if mem, err := r.procs.Memory(pid); err == nil {
		s.Memory = mem
	} else {
		r.log.Debugf("memory of %d: %v", pid, err)
	}

	if cfg.StartTime > 0 {
		s.StartedAt = time.Unix(int64(cfg.StartTime), 0)
		s.Uptime = r.clock.Since(s.StartedAt)
	}
	return s
}

// localIP returns the address of the interface that routes outward. The UDP
// dial sends no packet.
func localIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()

	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return "127.0.0.1"
}
