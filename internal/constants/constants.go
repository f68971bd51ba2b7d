package constants

import "time"

// Service unit naming. Every unit this agent touches carries one of these
// prefixes so that leftovers from a crashed run can be found by pattern.
const (
	SysloadSvcPrefix  = "rd-sysload-"
	SideloadSvcPrefix = "rd-sideload-"
	BalloonSvcName    = "rd-balloon.service"
)

// Slice assignment for units this agent starts itself.
const SysSlice = "system.slice"

// Default filesystem layout, rooted at --top.
const (
	DefaultTopPath     = "/var/lib/rd-agent"
	SideBinDirName     = "sidebin"
	ScratchDirName     = "scratch"
	SysScratchDirName  = "scratch/sysload"
	SideScratchDirName = "scratch/sideload"
	JobsDirName        = "sideloader/jobs.d"
	CommandFileName    = "cmd.yaml"
	CatalogFileName    = "sideload-defs.yaml"
	BenchFileName      = "bench.yaml"
	ReportFileName     = "report.json"
	AuditDBFileName    = "audit.db"
	BalloonBinName     = "memory-balloon.py"
	LinuxTarName       = "linux.tar"
)

// Transient services run with group write allowed so helper scripts can
// share their scratch directories.
const SvcUMask uint32 = 0o002

// Timing.
const (
	DefaultPollInterval  = 2 * time.Second
	ScratchRemoveTimeout = 10 * time.Second
)
