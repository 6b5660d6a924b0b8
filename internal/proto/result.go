package proto

// ResultCode classifies the outcome of a request. The ordering is stable;
// codes are used as histogram indexes in destination stats.
type ResultCode int

const (
	ResultUnknown ResultCode = iota
	ResultOK
	ResultStored
	ResultNotStored
	ResultFound
	ResultNotFound
	ResultDeleted
	ResultLocalError
	ResultClientError
	ResultRemoteError
	ResultBadCommand
	ResultBusy
	ResultTimeout
	ResultConnectError
	ResultTKO
	NumResults // sentinel, keep last
)

var resultNames = [NumResults]string{
	ResultUnknown:      "unknown",
	ResultOK:           "ok",
	ResultStored:       "stored",
	ResultNotStored:    "notstored",
	ResultFound:        "found",
	ResultNotFound:     "notfound",
	ResultDeleted:      "deleted",
	ResultLocalError:   "local_error",
	ResultClientError:  "client_error",
	ResultRemoteError:  "remote_error",
	ResultBadCommand:   "bad_command",
	ResultBusy:         "busy",
	ResultTimeout:      "timeout",
	ResultConnectError: "connect_error",
	ResultTKO:          "tko",
}

func (r ResultCode) String() string {
	if r < 0 || r >= NumResults {
		return "invalid"
	}
	return resultNames[r]
}

// IsError reports whether the result counts against the error stats rather
// than the success stats.
func (r ResultCode) IsError() bool {
	switch r {
	case ResultLocalError, ResultClientError, ResultRemoteError,
		ResultBadCommand, ResultBusy, ResultTimeout, ResultConnectError,
		ResultTKO, ResultUnknown:
		return true
	}
	return false
}
