package utils

import (
	"log"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
)

// GetCPUUsage returns the CPU usage as a percentage sampled over interval
func GetCPUUsage(interval time.Duration) float64 {
	percentage, err := cpu.Percent(interval, false)
	if err != nil {
		log.Printf("Error getting CPU usage: %v", err)
		return 0
	}
	if len(percentage) > 0 {
		return percentage[0]
	}
	return 0
}
