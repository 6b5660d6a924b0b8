package stats

import (
	"os"
	"syscall"

	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"

	"github.com/firewood/mcrouter/internal/logging"
)

// procStatData is the subset of host-process facts reported in stats.
// Fields left at zero when the OS query fails.
type procStatData struct {
	minorFaults uint64
	majorFaults uint64
	userTimeSec float64
	sysTimeSec  float64
	rss         uint64
	vsize       uint64
	rusageUser  float64
	rusageSys   float64
}

// getProcStat reads the current process's memory, fault and CPU accounting.
// These are read-only OS queries, so no locking is involved.
func getProcStat() procStatData {
	var data procStatData

	var ru syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &ru); err == nil {
		data.rusageUser = float64(ru.Utime.Sec) + float64(ru.Utime.Usec)/1e6
		data.rusageSys = float64(ru.Stime.Sec) + float64(ru.Stime.Usec)/1e6
	}

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logging.Debug("process stats unavailable", zap.Error(err))
		return data
	}
	if mi, err := p.MemoryInfo(); err == nil {
		data.rss = mi.RSS
		data.vsize = mi.VMS
	}
	if pf, err := p.PageFaults(); err == nil {
		data.minorFaults = pf.MinorFaults
		data.majorFaults = pf.MajorFaults
	}
	if ct, err := p.Times(); err == nil {
		data.userTimeSec = ct.User
		data.sysTimeSec = ct.System
	}
	return data
}
