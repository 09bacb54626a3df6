package collector

import (
	"context"
	"fmt"
	"strconv"
	"time"

	coremodel "NetGuard/internal/core/model"

	gnet "github.com/shirou/gopsutil/v4/net"
)

// TCPLister enumerates the OS TCP socket table through gopsutil.
type TCPLister struct {
	timeout time.Duration
}

// NewTCPLister creates a lister with the given per-collection timeout.
func NewTCPLister(timeout time.Duration) *TCPLister {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TCPLister{timeout: timeout}
}

// ListConnections returns one raw record per TCP socket, in table order.
// Socket states are reported in netstat vocabulary: gopsutil's "LISTEN"
// becomes "LISTENING", every other state passes through unchanged.
func (l *TCPLister) ListConnections(ctx context.Context) ([]coremodel.RawConnectionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	conns, err := gnet.ConnectionsWithContext(ctx, "tcp")
	if err != nil {
		return nil, &coremodel.CollectorError{Cause: err}
	}
	if ctx.Err() != nil {
		return nil, &coremodel.CollectorError{Cause: ctx.Err()}
	}

	records := make([]coremodel.RawConnectionRecord, 0, len(conns))
	for _, c := range conns {
		rec := coremodel.RawConnectionRecord{
			LocalAddr:  fmt.Sprintf("%s:%d", c.Laddr.IP, c.Laddr.Port),
			RemoteAddr: "N/A",
			State:      normalizeState(c.Status),
		}
		if c.Raddr.IP != "" {
			rec.RemoteAddr = fmt.Sprintf("%s:%d", c.Raddr.IP, c.Raddr.Port)
		}
		if c.Pid > 0 {
			rec.PIDField = strconv.FormatInt(int64(c.Pid), 10)
		}
		records = append(records, rec)
	}
	return records, nil
}

func normalizeState(status string) string {
	if status == "LISTEN" {
		return coremodel.StateListening
	}
	return status
}
