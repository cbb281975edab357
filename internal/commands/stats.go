package commands

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/eryxsegithub/TheStudioBot/pkg/util"
)

// cpuSample is how long CPU usage is measured for /stats.
const cpuSample = 250 * time.Millisecond

// SystemStats holds host, runtime and protection statistics
type SystemStats struct {
	Hostname string
	Platform string
	Uptime   time.Duration

	CPUModel   string
	CPUThreads int
	CPUUsage   float64

	TotalMemory   uint64
	UsedMemory    uint64
	MemoryPercent float64

	DiskTotal   uint64
	DiskUsed    uint64
	DiskPercent float64

	GoVersion  string
	GoRoutines int
	MemAlloc   uint64
	NumGC      uint32

	BotUptime time.Duration
	Guilds    int
	Latency   time.Duration

	TrackedKeys   int
	SnipeEntries  int
	PendingGrants int
}

func (h *Handler) handleStats(ctx context.Context, _ invocation) (reply, error) {
	return reply{embed: statsEmbed(h.gatherStats(ctx))}, nil
}

// gatherStats collects what is available. Host readings that fail leave their
// fields zero.
func (h *Handler) gatherStats(ctx context.Context) SystemStats {
	var st SystemStats

	if info, err := host.InfoWithContext(ctx); err == nil {
		st.Hostname = info.Hostname
		st.Platform = info.Platform + " " + info.KernelArch
		st.Uptime = time.Duration(info.Uptime) * time.Second
	}
	if info, err := cpu.InfoWithContext(ctx); err == nil && len(info) > 0 {
		st.CPUModel = info[0].ModelName
	}
	st.CPUThreads = runtime.NumCPU()
	if pct, err := cpu.PercentWithContext(ctx, cpuSample, false); err == nil && len(pct) > 0 {
		st.CPUUsage = pct[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		st.TotalMemory = vm.Total
		st.UsedMemory = vm.Used
		st.MemoryPercent = vm.UsedPercent
	}
	if du, err := disk.UsageWithContext(ctx, "/"); err == nil {
		st.DiskTotal = du.Total
		st.DiskUsed = du.Used
		st.DiskPercent = du.UsedPercent
	}

	st.GoVersion = runtime.Version()
	st.GoRoutines = runtime.NumGoroutine()
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	st.MemAlloc = m.Alloc
	st.NumGC = m.NumGC

	st.BotUptime = time.Since(h.started)
	if h.session != nil {
		st.Guilds = len(h.session.State.Guilds)
		st.Latency = h.session.HeartbeatLatency()
	}
	if h.deps.Tracker != nil {
		st.TrackedKeys = h.deps.Tracker.Len()
	}
	if h.deps.Snipes != nil {
		st.SnipeEntries = h.deps.Snipes.Len()
	}
	if h.deps.TempGrants != nil {
		st.PendingGrants = h.deps.TempGrants.Pending()
	}
	return st
}

func statsEmbed(st SystemStats) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "📊 Bot & System Statistics",
		Color: 0x00BFFF,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name: "🖥️ Host",
				Value: fmt.Sprintf("**Hostname:** `%s`\n**Platform:** `%s`\n**Uptime:** `%s`",
					st.Hostname, st.Platform, util.HumanDuration(st.Uptime)),
				Inline: false,
			},
			{
				Name: "⚡ CPU",
				Value: fmt.Sprintf("**Model:** `%s`\n**Threads:** `%d`\n**Usage:** `%.2f%%`\n%s",
					truncateString(st.CPUModel, 40), st.CPUThreads, st.CPUUsage, createProgressBar(st.CPUUsage)),
				Inline: true,
			},
			{
				Name: "💾 Memory",
				Value: fmt.Sprintf("**Used:** `%s` / `%s`\n**Usage:** `%.2f%%`\n%s",
					formatBytes(st.UsedMemory), formatBytes(st.TotalMemory), st.MemoryPercent, createProgressBar(st.MemoryPercent)),
				Inline: true,
			},
			{
				Name: "📀 Disk",
				Value: fmt.Sprintf("**Used:** `%s` / `%s`\n%s",
					formatBytes(st.DiskUsed), formatBytes(st.DiskTotal), createProgressBar(st.DiskPercent)),
				Inline: false,
			},
			{
				Name: "🤖 Bot",
				Value: fmt.Sprintf("**Uptime:** `%s`\n**Guilds:** `%d`\n**Latency:** `%dms`",
					util.HumanDuration(st.BotUptime), st.Guilds, st.Latency.Milliseconds()),
				Inline: true,
			},
			{
				Name: "🔷 Go Runtime",
				Value: fmt.Sprintf("**Version:** `%s`\n**Goroutines:** `%d`\n**Heap:** `%s`\n**GC Cycles:** `%d`",
					st.GoVersion, st.GoRoutines, formatBytes(st.MemAlloc), st.NumGC),
				Inline: true,
			},
			{
				Name: "🛡️ Protection",
				Value: fmt.Sprintf("**Tracked counters:** `%d`\n**Snipe entries:** `%d`\n**Pending temp roles:** `%d`",
					st.TrackedKeys, st.SnipeEntries, st.PendingGrants),
				Inline: false,
			},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// createProgressBar renders a percentage as ten blocks.
func createProgressBar(percent float64) string {
	filled := int(percent / 10)
	filled = max(0, min(filled, 10))
	return "`" + strings.Repeat("█", filled) + strings.Repeat("░", 10-filled) + "`"
}

func truncateString(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
