package metrics

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
	"go.uber.org/zap"

	"pha/log"
	"pha/util/timer"
)

const nb1024 = 1024

// StartSystem samples process and host usage every interval until the
// returned ticker is stopped.
func (m *Monitor) StartSystem(interval time.Duration) timer.Ticker {
	return timer.NewTicker(interval, m.getSys)
}

func (m *Monitor) getSys() {
	ms := &runtime.MemStats{}
	runtime.ReadMemStats(ms)

	m.MemoryUseGauge.Set(float64(ms.Sys) / float64(nb1024*nb1024))

	if p, err := GetMemPercent(); err == nil {
		m.MemoryPercent.Set(p)
	} else {
		log.Warn("ReadMemory", zap.String("err", err.Error()))
	}

	if p, err := GetCPUPercent(); err == nil {
		m.CPUPercent.Set(p)
	} else {
		log.Warn("ReadCPU", zap.String("err", err.Error()))
	}
}

// GetCPUPercent reports usage since the previous call.
func GetCPUPercent() (float64, error) {
	percent, err := cpu.Percent(0, false)
	if err != nil {
		return 0, err
	}

	if len(percent) == 0 {
		return 0, nil
	}

	return percent[0], nil
}

func GetMemPercent() (float64, error) {
	memInfo, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}

	return memInfo.UsedPercent, nil
}
