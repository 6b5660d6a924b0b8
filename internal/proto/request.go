package proto

// RequestKind identifies the operation a client asked for.
type RequestKind int

const (
	KindGet RequestKind = iota
	KindSet
	KindDelete
	KindStats
	KindVersion
	KindShutdown
	KindFlushAll
	KindFlushRe
	NumKinds // sentinel, keep last
)

var kindNames = [NumKinds]string{
	KindGet:      "get",
	KindSet:      "set",
	KindDelete:   "delete",
	KindStats:    "stats",
	KindVersion:  "version",
	KindShutdown: "shutdown",
	KindFlushAll: "flush_all",
	KindFlushRe:  "flush_regex",
}

func (k RequestKind) String() string {
	if k < 0 || k >= NumKinds {
		return "invalid"
	}
	return kindNames[k]
}

// Request is a single client request routed through the proxy.
type Request struct {
	Kind    RequestKind
	Key     string
	Value   []byte
	Flags   uint32
	Exptime int32
}

// Reply is the terminal answer to a Request. Every request gets exactly one.
type Reply struct {
	Result  ResultCode
	Message string
	Value   []byte
}
