// system.go: health and system resource endpoints.
package api

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// HealthResponse reports service liveness and database connectivity.
type HealthResponse struct {
	Status         string  `json:"status"`
	Version        string  `json:"version,omitempty"`
	BuildDate      string  `json:"buildDate,omitempty"`
	Timestamp      string  `json:"timestamp"`
	UptimeSeconds  float64 `json:"uptimeSeconds"`
	DatabaseStatus string  `json:"databaseStatus"`
	DatabaseError  string  `json:"databaseError,omitempty"`
}

// ResourceResponse reports host and process resource usage.
type ResourceResponse struct {
	CPUUsage    float64 `json:"cpuUsage"`
	MemoryTotal uint64  `json:"memoryTotal"`
	MemoryUsed  uint64  `json:"memoryUsed"`
	MemoryUsage float64 `json:"memoryUsage"`
	DiskTotal   uint64  `json:"diskTotal"`
	DiskFree    uint64  `json:"diskFree"`
	DiskUsage   float64 `json:"diskUsage"`
	ProcessMem  float64 `json:"processMemMb"`
	ProcessCPU  float64 `json:"processCpu"`
	GoVersion   string  `json:"goVersion"`
	NumCPU      int     `json:"numCpu"`
}

func (c *Controller) initSystemRoutes() {
	c.Group.GET("/health", c.HealthCheck)
	c.Group.GET("/system/resources", c.GetResourceInfo)
}

// HealthCheck handles GET /api/v1/health.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	resp := HealthResponse{
		Status:        "healthy",
		Version:       c.Settings.Version,
		BuildDate:     c.Settings.BuildDate,
		Timestamp:     time.Now().Format(time.RFC3339),
		UptimeSeconds: time.Since(c.startTime).Seconds(),
	}

	// A cheap read is enough to prove the datastore is reachable.
	resp.DatabaseStatus = "connected"
	if _, err := c.DS.GetAllSpecies(); err != nil {
		resp.DatabaseStatus = "disconnected"
		resp.DatabaseError = err.Error()
		resp.Status = "degraded"
	}

	return ctx.JSON(http.StatusOK, resp)
}

// GetResourceInfo handles GET /api/v1/system/resources.
func (c *Controller) GetResourceInfo(ctx echo.Context) error {
	memInfo, err := mem.VirtualMemory()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get memory information", http.StatusInternalServerError)
	}

	cpuPercent, err := cpu.Percent(time.Second, false)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get CPU information", http.StatusInternalServerError)
	}

	diskInfo, err := disk.Usage(".")
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get disk information", http.StatusInternalServerError)
	}

	resp := ResourceResponse{
		MemoryTotal: memInfo.Total,
		MemoryUsed:  memInfo.Used,
		MemoryUsage: memInfo.UsedPercent,
		DiskTotal:   diskInfo.Total,
		DiskFree:    diskInfo.Free,
		DiskUsage:   diskInfo.UsedPercent,
		GoVersion:   runtime.Version(),
		NumCPU:      runtime.NumCPU(),
	}
	if len(cpuPercent) > 0 {
		resp.CPUUsage = cpuPercent[0]
	}

	// Process stats are informative only; failures leave them at zero.
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if procMem, err := proc.MemoryInfo(); err == nil && procMem != nil {
			resp.ProcessMem = float64(procMem.RSS) / 1024 / 1024
		}
		if procCPU, err := proc.CPUPercent(); err == nil {
			resp.ProcessCPU = procCPU
		}
	}

	return ctx.JSON(http.StatusOK, resp)
}
