package stats

// Kind is the value type carried by a stat slot. A slot's kind is fixed at
// definition time; setters enforce it.
type Kind int

const (
	KindUint64 Kind = iota
	KindInt64
	KindFloat64
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindUint64:
		return "uint64"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindString:
		return "string"
	}
	return "invalid"
}

// Category is a set of flags classifying a stat slot. A slot may belong to
// several groups at once (e.g. cmd-in and rate); queries filter on the
// intersection of their requested mask and the slot's mask.
type Category uint32

const (
	CatBasic Category = 1 << iota
	CatDetailed
	CatCmdIn
	CatCmdOut
	CatCmdError
	CatODS
	CatServer
	CatSuspectServer
	CatCount
	CatOutlier
	CatRate
	CatMax
	CatMaxMax
)

const (
	CatCmdAll = CatCmdIn | CatCmdOut | CatCmdError
	CatAll    = ^Category(0)
)

// StatID enumerates every stat slot. The order is stable and doubles as the
// array index in Registry and Window.
type StatID int

const (
	// Request lifecycle outcomes. The bare slots are windowed and reported
	// as rates; the _count twins are plain monotonic counters.
	StatRequestReplied StatID = iota
	StatRequestRepliedCount
	StatRequestError
	StatRequestErrorCount
	StatRequestSuccess
	StatRequestSuccessCount
	StatRequestSent
	StatRequestSentCount

	// Inbound command mix.
	StatCmdGet
	StatCmdGetCount
	StatCmdSet
	StatCmdSetCount
	StatCmdDelete
	StatCmdDeleteCount
	StatCmdStats
	StatCmdStatsCount
	StatCmdVersion
	StatCmdVersionCount
	StatCmdOther
	StatCmdOtherCount

	// Outbound command mix (incremented at dispatch).
	StatCmdGetOut
	StatCmdGetOutCount
	StatCmdSetOut
	StatCmdSetOutCount
	StatCmdDeleteOut
	StatCmdDeleteOutCount

	// Destination batching and peaks.
	StatDestBatchesSum
	StatDestRequestsSum
	StatDestBatchSize
	StatDestRequestsPeak

	// Shard queue accounting.
	StatOutstandingGetReqsQueued
	StatOutstandingGetReqsHelper
	StatOutstandingGetWaitTimeSumUs
	StatOutstandingGetAvgQueueSize
	StatOutstandingGetAvgWaitTimeSec
	StatOutstandingUpdateReqsQueued
	StatOutstandingUpdateReqsHelper
	StatOutstandingUpdateWaitTimeSumUs
	StatOutstandingUpdateAvgQueueSize
	StatOutstandingUpdateAvgWaitTimeSec

	// Retransmit tracking.
	StatRetransPerKByteSum
	StatRetransNumTotal
	StatRetransPerKByteAvg
	StatRetransPerKByteMax

	// Live gauges touched from connection goroutines (atomic variants only).
	StatProxyReqsProcessing
	StatProxyReqsWaiting
	StatClientConnections

	// Routing miscellany.
	StatDevNullRequests
	StatNumSuspectServers

	// Process-wide facts, filled at aggregation time.
	StatCommandArgs
	StatVersion
	StatPid
	StatParentPid
	StatTime
	StatStartTime
	StatUptime
	StatConfigAge
	StatConfigLastSuccess
	StatConfigLastAttempt
	StatConfigFailures
	StatRusageUser
	StatRusageSystem
	StatPsNumMinorFaults
	StatPsNumMajorFaults
	StatPsUserTimeSec
	StatPsSystemTimeSec
	StatPsRss
	StatPsVsize
	StatDurationUs
	StatClientQueueNotifyPeriod

	NumStats // sentinel, keep last
)

// Def is the immutable metadata of a stat slot.
type Def struct {
	Name       string
	Kind       Kind
	Categories Category
	// Aggregate marks slots whose values are summed across shards when
	// building a snapshot. Rate/max slots aggregate through the window
	// instead and must not be double counted.
	Aggregate bool
}

var statDefs = [NumStats]Def{
	StatRequestReplied:      {"request_replied", KindUint64, CatBasic | CatRate, false},
	StatRequestRepliedCount: {"request_replied_count", KindUint64, CatBasic | CatCount, true},
	StatRequestError:        {"request_error", KindUint64, CatBasic | CatCmdError | CatRate, false},
	StatRequestErrorCount:   {"request_error_count", KindUint64, CatBasic | CatCmdError | CatCount, true},
	StatRequestSuccess:      {"request_success", KindUint64, CatBasic | CatRate, false},
	StatRequestSuccessCount: {"request_success_count", KindUint64, CatBasic | CatCount, true},
	StatRequestSent:         {"request_sent", KindUint64, CatDetailed | CatRate, false},
	StatRequestSentCount:    {"request_sent_count", KindUint64, CatDetailed | CatCount, true},

	StatCmdGet:          {"cmd_get", KindUint64, CatCmdIn | CatRate, false},
	StatCmdGetCount:     {"cmd_get_count", KindUint64, CatCmdIn | CatCount, true},
	StatCmdSet:          {"cmd_set", KindUint64, CatCmdIn | CatRate, false},
	StatCmdSetCount:     {"cmd_set_count", KindUint64, CatCmdIn | CatCount, true},
	StatCmdDelete:       {"cmd_delete", KindUint64, CatCmdIn | CatRate, false},
	StatCmdDeleteCount:  {"cmd_delete_count", KindUint64, CatCmdIn | CatCount, true},
	StatCmdStats:        {"cmd_stats", KindUint64, CatCmdIn | CatRate, false},
	StatCmdStatsCount:   {"cmd_stats_count", KindUint64, CatCmdIn | CatCount, true},
	StatCmdVersion:      {"cmd_version", KindUint64, CatCmdIn | CatRate, false},
	StatCmdVersionCount: {"cmd_version_count", KindUint64, CatCmdIn | CatCount, true},
	StatCmdOther:        {"cmd_other", KindUint64, CatCmdIn | CatRate, false},
	StatCmdOtherCount:   {"cmd_other_count", KindUint64, CatCmdIn | CatCount, true},

	StatCmdGetOut:         {"cmd_get_out", KindUint64, CatCmdOut | CatRate, false},
	StatCmdGetOutCount:    {"cmd_get_out_count", KindUint64, CatCmdOut | CatCount, true},
	StatCmdSetOut:         {"cmd_set_out", KindUint64, CatCmdOut | CatRate, false},
	StatCmdSetOutCount:    {"cmd_set_out_count", KindUint64, CatCmdOut | CatCount, true},
	StatCmdDeleteOut:      {"cmd_delete_out", KindUint64, CatCmdOut | CatRate, false},
	StatCmdDeleteOutCount: {"cmd_delete_out_count", KindUint64, CatCmdOut | CatCount, true},

	StatDestBatchesSum:   {"destination_batches_sum", KindUint64, CatDetailed | CatRate, false},
	StatDestRequestsSum:  {"destination_requests_sum", KindUint64, CatDetailed | CatRate, false},
	StatDestBatchSize:    {"destination_batch_size", KindFloat64, CatDetailed, false},
	StatDestRequestsPeak: {"destination_requests_peak", KindUint64, CatDetailed | CatMax, false},

	StatOutstandingGetReqsQueued:        {"outstanding_route_get_reqs_queued", KindUint64, CatDetailed | CatRate, false},
	StatOutstandingGetReqsHelper:        {"outstanding_route_get_reqs_queued_helper", KindUint64, CatDetailed | CatRate, false},
	StatOutstandingGetWaitTimeSumUs:     {"outstanding_route_get_wait_time_sum_us", KindUint64, CatDetailed | CatRate, false},
	StatOutstandingGetAvgQueueSize:      {"outstanding_route_get_avg_queue_size", KindFloat64, CatDetailed, false},
	StatOutstandingGetAvgWaitTimeSec:    {"outstanding_route_get_avg_wait_time_sec", KindFloat64, CatDetailed, false},
	StatOutstandingUpdateReqsQueued:     {"outstanding_route_update_reqs_queued", KindUint64, CatDetailed | CatRate, false},
	StatOutstandingUpdateReqsHelper:     {"outstanding_route_update_reqs_queued_helper", KindUint64, CatDetailed | CatRate, false},
	StatOutstandingUpdateWaitTimeSumUs:  {"outstanding_route_update_wait_time_sum_us", KindUint64, CatDetailed | CatRate, false},
	StatOutstandingUpdateAvgQueueSize:   {"outstanding_route_update_avg_queue_size", KindFloat64, CatDetailed, false},
	StatOutstandingUpdateAvgWaitTimeSec: {"outstanding_route_update_avg_wait_time_sec", KindFloat64, CatDetailed, false},

	StatRetransPerKByteSum: {"retrans_per_kbyte_sum", KindUint64, CatDetailed | CatRate, false},
	StatRetransNumTotal:    {"retrans_num_total", KindUint64, CatDetailed | CatRate, false},
	StatRetransPerKByteAvg: {"retrans_per_kbyte_avg", KindFloat64, CatDetailed | CatODS, false},
	StatRetransPerKByteMax: {"retrans_per_kbyte_max", KindUint64, CatDetailed | CatMaxMax, false},

	StatProxyReqsProcessing: {"proxy_reqs_processing", KindUint64, CatBasic | CatDetailed, true},
	StatProxyReqsWaiting:    {"proxy_reqs_waiting", KindUint64, CatBasic | CatDetailed, true},
	StatClientConnections:   {"client_connections", KindUint64, CatBasic, true},

	StatDevNullRequests:   {"dev_null_requests", KindUint64, CatDetailed | CatCount, true},
	StatNumSuspectServers: {"num_suspect_servers", KindUint64, CatBasic | CatODS, false},

	StatCommandArgs:       {"commandargs", KindString, CatBasic, false},
	StatVersion:           {"version", KindString, CatBasic, false},
	StatPid:               {"pid", KindInt64, CatBasic, false},
	StatParentPid:         {"parent_pid", KindInt64, CatBasic, false},
	StatTime:              {"time", KindUint64, CatBasic, false},
	StatStartTime:         {"start_time", KindUint64, CatBasic, false},
	StatUptime:            {"uptime", KindUint64, CatBasic | CatODS, false},
	StatConfigAge:         {"config_age", KindUint64, CatBasic | CatODS, false},
	StatConfigLastSuccess: {"config_last_success", KindUint64, CatBasic, false},
	StatConfigLastAttempt: {"config_last_attempt", KindUint64, CatBasic, false},
	StatConfigFailures:    {"config_failures", KindUint64, CatBasic | CatODS | CatCount, false},
	StatRusageUser:        {"rusage_user", KindFloat64, CatBasic | CatODS, false},
	StatRusageSystem:      {"rusage_system", KindFloat64, CatBasic | CatODS, false},
	StatPsNumMinorFaults:  {"ps_num_minor_faults", KindUint64, CatDetailed | CatODS, false},
	StatPsNumMajorFaults:  {"ps_num_major_faults", KindUint64, CatDetailed | CatODS, false},
	StatPsUserTimeSec:     {"ps_user_time_sec", KindFloat64, CatDetailed | CatODS, false},
	StatPsSystemTimeSec:   {"ps_system_time_sec", KindFloat64, CatDetailed | CatODS, false},
	StatPsRss:             {"ps_rss", KindUint64, CatBasic | CatODS, false},
	StatPsVsize:           {"ps_vsize", KindUint64, CatBasic | CatODS, false},
	StatDurationUs:        {"duration_us", KindFloat64, CatBasic | CatODS, false},
	StatClientQueueNotifyPeriod: {"client_queue_notify_period_us", KindFloat64,
		CatDetailed, false},
}

// DefOf returns the immutable definition of a slot.
func DefOf(id StatID) Def {
	return statDefs[id]
}
