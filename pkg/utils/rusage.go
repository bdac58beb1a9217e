// pkg/utils/rusage.go

package utils

import "syscall"

// Rusage is a snapshot of the process's own resource usage.
type Rusage struct {
	syscall.Rusage
}

func seconds(tv syscall.Timeval) float64 {
	return float64(tv.Sec) + float64(tv.Usec)/1e6
}

// GetUtime returns CPU seconds spent in user mode.
func (ru *Rusage) GetUtime() float64 { return seconds(ru.Utime) }

// GetStime returns CPU seconds spent in the kernel.
func (ru *Rusage) GetStime() float64 { return seconds(ru.Stime) }

// GetMaxRSS returns the peak resident set size in bytes. The kernel
// reports it in KiB.
func (ru *Rusage) GetMaxRSS() int64 { return ru.Maxrss << 10 }

// GetRusage snapshots the usage counters of the calling process.
func GetRusage() *Rusage {
	var ru syscall.Rusage
	_ = syscall.Getrusage(syscall.RUSAGE_SELF, &ru)
	return &Rusage{ru}
}
