package ingest

import (
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/process"
)

// MemorySampler reports the resident memory of the running process
type MemorySampler interface {
	RSS() (uint64, error)
}

// ProcessSampler reads the RSS of the current process through gopsutil
type ProcessSampler struct {
	pid int32
}

func NewProcessSampler() *ProcessSampler {
	return &ProcessSampler{pid: int32(os.Getpid())}
}

func (p *ProcessSampler) RSS() (uint64, error) {
	proc, err := process.NewProcess(p.pid)
	if err != nil {
		return 0, fmt.Errorf("failed to find process %d: %w", p.pid, err)
	}
	info, err := proc.MemoryInfo()
	if err != nil {
		return 0, fmt.Errorf("failed to read memory info: %w", err)
	}
	return info.RSS, nil
}
