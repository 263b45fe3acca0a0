package sysmon

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Stats je jeden snímek stavu brány (gateway), na které pipeline běží.
// Dashboard ho zobrazuje vedle dat z digestoru.
type Stats struct {
	CPULoad float64 `json:"cpu_load"`

	RamUsedMB  float64 `json:"ram_used_mb"`
	RamTotalMB float64 `json:"ram_total_mb"`

	// Součet RSS procesů našeho stacku na bráně.
	AppRamUsedMB float64 `json:"app_ram_used_mb"`

	DiskUsedGB  float64 `json:"disk_used_gb"`
	DiskTotalGB float64 `json:"disk_total_gb"`
}

// Procesy, které počítáme do AppRamUsedMB.
var targetApps = []string{
	"biogestor",
	"mosquitto",
	"redis",
	"postgres",
}

// Collect sesbírá aktuální statistiky. Dílčí chyby jen loguje a měří dál —
// výpadek čtení CPU nesmí zastavit měření RAM.
func Collect(logger *slog.Logger) *Stats {
	stats := &Stats{}

	// Průměr přes všechna jádra za 1s okno (funkce po tu dobu blokuje).
	percentages, err := cpu.Percent(time.Second, false)
	if err == nil && len(percentages) > 0 {
		stats.CPULoad = percentages[0]
	} else if err != nil {
		logger.Error("Chyba při čtení CPU statistik", "error", err)
	}

	vMem, err := mem.VirtualMemory()
	if err == nil {
		// 'Used' by zahrnovalo i diskovou cache; reálné obsazení
		// je Total - Available.
		stats.RamUsedMB = float64(vMem.Total-vMem.Available) / 1024.0 / 1024.0
		stats.RamTotalMB = float64(vMem.Total) / 1024.0 / 1024.0
	} else {
		logger.Error("Chyba při čtení RAM statistik", "error", err)
	}

	procs, _ := process.Processes()
	var appMemSum uint64
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			// Proces mohl mezitím skončit.
			continue
		}
		for _, target := range targetApps {
			if strings.Contains(name, target) {
				// RSS = fyzická RAM, kterou proces skutečně blokuje.
				if memInfo, err := p.MemoryInfo(); err == nil {
					appMemSum += memInfo.RSS
				}
				break
			}
		}
	}
	stats.AppRamUsedMB = float64(appMemSum) / 1024.0 / 1024.0

	dStat, err := disk.Usage("/")
	if err == nil {
		stats.DiskUsedGB = float64(dStat.Used) / 1024.0 / 1024.0 / 1024.0
		stats.DiskTotalGB = float64(dStat.Total) / 1024.0 / 1024.0 / 1024.0
	} else {
		logger.Error("Chyba při čtení statistik disku", "error", err)
	}

	return stats
}

// Publisher periodicky publikuje Stats na stavový topic
// "<namespace>/status/system". Ingest tyhle topicy ignoruje,
// do cache senzorů nepatří.
type Publisher struct {
	client mqtt.Client
	topic  string
	logger *slog.Logger
}

func NewPublisher(client mqtt.Client, namespace string, logger *slog.Logger) *Publisher {
	return &Publisher{
		client: client,
		topic:  namespace + "/status/system",
		logger: logger,
	}
}

// Run publikuje v daném intervalu, dokud se nezruší context.
// QoS 0 a žádné čekání na potvrzení: výpadek jednoho snímku nevadí,
// za interval letí další.
func (p *Publisher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.logger.Info("System monitor běží", "topic", p.topic, "interval", interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := Collect(p.logger)
			payload, err := json.Marshal(stats)
			if err != nil {
				p.logger.Error("Serializace stats selhala", "error", err)
				continue
			}
			p.client.Publish(p.topic, 0, false, payload)
		}
	}
}
