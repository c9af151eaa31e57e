package observability

import (
	"os"

	"github.com/grafana/pyroscope-go"

	"media-service/pkg/config"
	"media-service/pkg/logger"
)

// StartProfiling 启动 pyroscope 持续性能分析，未开启时返回 nil
func StartProfiling(cfg config.ProfilingConfig) *pyroscope.Profiler {
	if !cfg.Enabled {
		return nil
	}
	addr := cfg.ServerAddress
	if addr == "" {
		addr = os.Getenv("PYROSCOPE_SERVER_ADDRESS")
	}
	if addr == "" {
		logger.Warn("profiling enabled but no server address configured")
		return nil
	}
	name := cfg.ApplicationName
	if name == "" {
		name = "media-service"
	}

	hostname, _ := os.Hostname()
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: name,
		ServerAddress:   addr,
		Tags:            map[string]string{"hostname": hostname},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
	})
	if err != nil {
		logger.Warn("start profiling failed", map[string]interface{}{"error": err.Error()})
		return nil
	}
	logger.Infof("profiling started app=%s server=%s", name, addr)
	return profiler
}
