package config

import "github.com/brettbedarf/workspacefs/internal/util"

// CLI verbosity levels, 1 (errors only) to 5 (trace)
const (
	ErrorVerbose = iota + 1
	WarnVerbose
	InfoVerbose
	DebugVerbose
	TraceVerbose
)

// verbosityToLevel clamps v into range and maps it to a log level
func verbosityToLevel(v int) util.LogLevel {
	v = min(max(v, ErrorVerbose), TraceVerbose)
	return util.ErrorLevel - (v - ErrorVerbose)
}
