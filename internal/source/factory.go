package source

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Settings selects and configures a StatsSource implementation.
type Settings struct {
	Kind             string // "script" or "http"
	PythonBin        string
	ScriptPath       string
	ServiceURL       string
	Timeout          time.Duration
	RatePerMinute    int
	BreakerThreshold int
}

// New builds the configured stats source. Selection happens here, by
// configuration, not by branching at call sites.
func New(settings Settings, logger *logrus.Logger) (StatsSource, error) {
	switch settings.Kind {
	case "script", "":
		if settings.ScriptPath == "" {
			return nil, fmt.Errorf("script stats source requires a script path")
		}
		return NewScriptSource(settings.PythonBin, settings.ScriptPath, settings.Timeout, logger), nil
	case "http":
		if settings.ServiceURL == "" {
			return nil, fmt.Errorf("http stats source requires a service URL")
		}
		return NewHTTPSource(settings.ServiceURL, settings.Timeout, settings.RatePerMinute, settings.BreakerThreshold, logger), nil
	default:
		return nil, fmt.Errorf("unknown stats source %q", settings.Kind)
	}
}
