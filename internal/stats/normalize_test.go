package stats

import (
	"math"
	"testing"
	"time"
)

func reading(cpu, system uint64, cpus uint32, mem Memory) RawStatsReading {
	return RawStatsReading{
		Read:        time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		CPUTicks:    cpu,
		SystemTicks: system,
		OnlineCPUs:  cpus,
		Memory:      mem,
	}
}

func TestCPUPercent(t *testing.T) {
	tests := []struct {
		name string
		prev RawStatsReading
		cur  RawStatsReading
		want float64
	}{
		{
			name: "half of one core on a two core host",
			prev: reading(1_000, 10_000, 2, nil),
			cur:  reading(1_250, 11_000, 2, nil),
			want: 50,
		},
		{
			name: "fully busy host is clamped to cpus*100",
			prev: reading(0, 0, 4, nil),
			cur:  reading(5_000, 1_000, 4, nil),
			want: 400,
		},
		{
			name: "no system progress yields zero",
			prev: reading(100, 1_000, 2, nil),
			cur:  reading(200, 1_000, 2, nil),
			want: 0,
		},
		{
			name: "counter reset yields zero",
			prev: reading(5_000, 1_000, 2, nil),
			cur:  reading(10, 2_000, 2, nil),
			want: 0,
		},
		{
			name: "zero online cpus counts as one",
			prev: reading(0, 0, 0, nil),
			cur:  reading(100, 1_000, 0, nil),
			want: 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CPUPercent(tt.prev, tt.cur)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("CPUPercent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeFirstReading(t *testing.T) {
	cur := reading(9_000, 90_000, 2, MemoryV2{Usage: 300, Limit: 1_000, InactiveFile: 100})

	mp := Normalize(nil, cur)

	if mp.CPUPercent != 0 {
		t.Fatalf("CPUPercent = %v, want 0 without a previous reading", mp.CPUPercent)
	}
	if mp.MemoryUsedBytes != 200 {
		t.Fatalf("MemoryUsedBytes = %d, want 200", mp.MemoryUsedBytes)
	}
	if mp.MemoryPercent == nil || *mp.MemoryPercent != 20 {
		t.Fatalf("MemoryPercent = %v, want 20", mp.MemoryPercent)
	}
}

func TestNormalizeStableInput(t *testing.T) {
	r := reading(9_000, 90_000, 2, MemoryRaw{Usage: 10, Limit: 100})

	mp := Normalize(&r, r)

	if mp.CPUPercent != 0 {
		t.Fatalf("CPUPercent = %v, want 0 for identical readings", mp.CPUPercent)
	}
}

func TestMemoryUsage(t *testing.T) {
	tests := []struct {
		name      string
		mem       Memory
		wantUsed  uint64
		wantLimit uint64
	}{
		{
			name:      "v1 subtracts total_inactive_file",
			mem:       MemoryV1{Usage: 1_000, Limit: 4_000, TotalInactiveFile: 400, Cache: 900, HasInactiveFile: true},
			wantUsed:  600,
			wantLimit: 4_000,
		},
		{
			name:      "v1 falls back to cache",
			mem:       MemoryV1{Usage: 1_000, Limit: 4_000, Cache: 250},
			wantUsed:  750,
			wantLimit: 4_000,
		},
		{
			name:      "v2 subtracts inactive_file",
			mem:       MemoryV2{Usage: 1_000, Limit: 2_000, InactiveFile: 100},
			wantUsed:  900,
			wantLimit: 2_000,
		},
		{
			name:      "reclaimable larger than usage is ignored",
			mem:       MemoryV2{Usage: 100, Limit: 2_000, InactiveFile: 500},
			wantUsed:  100,
			wantLimit: 2_000,
		},
		{
			name:      "raw usage is reported as is",
			mem:       MemoryRaw{Usage: 123, Limit: 456},
			wantUsed:  123,
			wantLimit: 456,
		},
		{
			name: "missing memory reading",
			mem:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			used, limit := MemoryUsage(tt.mem)
			if used != tt.wantUsed || limit != tt.wantLimit {
				t.Fatalf("MemoryUsage() = (%d, %d), want (%d, %d)", used, limit, tt.wantUsed, tt.wantLimit)
			}
		})
	}
}

func TestNormalizeUnlimitedMemoryHasNoPercent(t *testing.T) {
	for _, limit := range []uint64{0, 9223372036854771712} {
		mp := Normalize(nil, reading(0, 0, 1, MemoryV1{Usage: 100, Limit: limit}))
		if mp.MemoryPercent != nil {
			t.Fatalf("limit %d: MemoryPercent = %v, want nil", limit, *mp.MemoryPercent)
		}
		if mp.MemoryUsedBytes != 100 {
			t.Fatalf("limit %d: MemoryUsedBytes = %d, want 100", limit, mp.MemoryUsedBytes)
		}
	}
}

func TestDetectMemory(t *testing.T) {
	tests := []struct {
		name      string
		breakdown map[string]uint64
		want      Memory
	}{
		{
			name:      "v1 breakdown",
			breakdown: map[string]uint64{"total_inactive_file": 10, "inactive_file": 5, "cache": 20},
			want:      MemoryV1{Usage: 100, Limit: 200, TotalInactiveFile: 10, Cache: 20, HasInactiveFile: true},
		},
		{
			name:      "old v1 breakdown with cache only",
			breakdown: map[string]uint64{"cache": 20, "rss": 70},
			want:      MemoryV1{Usage: 100, Limit: 200, Cache: 20},
		},
		{
			name:      "v2 breakdown",
			breakdown: map[string]uint64{"inactive_file": 5, "anon": 60, "file": 30},
			want:      MemoryV2{Usage: 100, Limit: 200, InactiveFile: 5},
		},
		{
			name: "no breakdown",
			want: MemoryRaw{Usage: 100, Limit: 200},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectMemory(100, 200, tt.breakdown)
			if got != tt.want {
				t.Fatalf("DetectMemory() = %#v, want %#v", got, tt.want)
			}
		})
	}
}
