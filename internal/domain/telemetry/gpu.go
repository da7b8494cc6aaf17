package telemetry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aistack/controlpanel/internal/infrastructure/monitoring"
	"github.com/aistack/controlpanel/internal/shared/process"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

const (
	bytesPerGiB = 1 << 30

	sourceROCmSMI = "rocm-smi"
	sourceSysfs   = "sysfs"

	keyVRAMTotal = "VRAM Total Memory (B)"
	keyVRAMUsed  = "VRAM Total Used Memory (B)"
	keyCardName  = "Card series"

	defaultSysfsRoot = "/sys/class/drm"
	rocmTimeout      = 5 * time.Second
)

// Sysfs exposes the same counters under every candidate card; card1 comes
// first because card0 is the integrated GPU on the usual host.
var defaultCards = []string{"card1", "card0"}

var errNoVRAM = errors.New("no VRAM counters")

// GPU is a fresh VRAM reading.
type GPU struct {
	Available    bool    `json:"available"`
	Name         string  `json:"name"`
	VRAMUsedGiB  float64 `json:"vram_used_gb"`
	VRAMTotalGiB float64 `json:"vram_total_gb"`
	VRAMPercent  float64 `json:"vram_percent"`
	Source       string  `json:"source,omitempty"`
}

// Reader reads GPU and host telemetry. Nothing is cached.
type Reader struct {
	runner    process.Runner
	sysfsRoot string
	cards     []string
	host      HostSampler
	logger    *zap.Logger
	metrics   *monitoring.Metrics
}

// Option customizes a Reader.
type Option func(*Reader)

// WithSysfsRoot points the fallback at another drm class directory.
func WithSysfsRoot(root string) Option {
	return func(r *Reader) { r.sysfsRoot = root }
}

// WithCards replaces the ordered list of candidate cards.
func WithCards(cards ...string) Option {
	return func(r *Reader) { r.cards = slices.Clone(cards) }
}

// WithHostSampler replaces the gopsutil-backed host sampler.
func WithHostSampler(s HostSampler) Option {
	return func(r *Reader) { r.host = s }
}

// WithMetrics attaches the VRAM gauge.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(r *Reader) { r.metrics = m }
}

// NewReader creates a telemetry reader.
func NewReader(runner process.Runner, logger *zap.Logger, opts ...Option) *Reader {
	r := &Reader{
		runner:    runner,
		sysfsRoot: defaultSysfsRoot,
		cards:     defaultCards,
		host:      gopsutilSampler{},
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GPU reads VRAM usage from rocm-smi, then sysfs. It never fails; with no
// usable source it reports Available false.
func (r *Reader) GPU(ctx context.Context) GPU {
	gpu, err := r.fromROCmSMI(ctx)
	if err != nil {
		r.logger.Debug("rocm-smi unavailable, trying sysfs", zap.Error(err))
		gpu, err = r.fromSysfs()
	}
	if err != nil {
		r.logger.Debug("no GPU telemetry source", zap.Error(err))
		r.metrics.SetVRAMPercent(0)
		return GPU{Name: "Unknown"}
	}
	r.metrics.SetVRAMPercent(gpu.VRAMPercent)
	return gpu
}

func (r *Reader) fromROCmSMI(ctx context.Context) (GPU, error) {
	ctx, cancel := context.WithTimeout(ctx, rocmTimeout)
	defer cancel()

	out, err := r.runner.Run(ctx, "rocm-smi", "--showmeminfo", "vram", "--json")
	if err != nil && !process.IsExitError(err) {
		return GPU{}, err
	}
	if out.ExitCode != 0 {
		return GPU{}, fmt.Errorf("rocm-smi exited %d: %s", out.ExitCode, strings.TrimSpace(out.Stderr))
	}
	return parseROCmSMI([]byte(out.Stdout))
}

// parseROCmSMI reads the first card of rocm-smi's JSON. Counters arrive as
// strings or numbers depending on the rocm-smi release.
func parseROCmSMI(data []byte) (GPU, error) {
	var cards map[string]map[string]any
	if err := sonic.Unmarshal(data, &cards); err != nil {
		return GPU{}, fmt.Errorf("rocm-smi output: %w", err)
	}

	names := make([]string, 0, len(cards))
	for name := range cards {
		if strings.HasPrefix(name, "card") {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return GPU{}, errNoVRAM
	}
	slices.Sort(names)
	card := cards[names[0]]

	total, err := counter(card[keyVRAMTotal])
	if err != nil {
		return GPU{}, fmt.Errorf("%s: %w", keyVRAMTotal, err)
	}
	used, err := counter(card[keyVRAMUsed])
	if err != nil {
		return GPU{}, fmt.Errorf("%s: %w", keyVRAMUsed, err)
	}

	name := "AMD Radeon GPU"
	if series, ok := card[keyCardName].(string); ok && series != "" {
		name = series
	}
	return reading(name, sourceROCmSMI, used, total), nil
}

func counter(v any) (uint64, error) {
	switch n := v.(type) {
	case string:
		return strconv.ParseUint(strings.TrimSpace(n), 10, 64)
	case float64:
		if n < 0 {
			return 0, fmt.Errorf("negative counter %v", n)
		}
		return uint64(n), nil
	case nil:
		return 0, errNoVRAM
	default:
		return 0, fmt.Errorf("unexpected counter type %T", v)
	}
}

func (r *Reader) fromSysfs() (GPU, error) {
	for _, card := range r.cards {
		dir := filepath.Join(r.sysfsRoot, card, "device")
		totalPath := filepath.Join(dir, "mem_info_vram_total")
		usedPath := filepath.Join(dir, "mem_info_vram_used")
		if !exists(totalPath) || !exists(usedPath) {
			continue
		}

		total, err := readCounter(totalPath)
		if err != nil {
			return GPU{}, err
		}
		used, err := readCounter(usedPath)
		if err != nil {
			return GPU{}, err
		}
		return reading("AMD Radeon GPU", sourceSysfs, used, total), nil
	}
	return GPU{}, fmt.Errorf("%w under %s", errNoVRAM, r.sysfsRoot)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func readCounter(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
}

func reading(name, source string, used, total uint64) GPU {
	usedGiB := float64(used) / bytesPerGiB
	totalGiB := float64(total) / bytesPerGiB

	var percent float64
	if total > 0 {
		percent = round(float64(used)/float64(total)*100, 1)
	}

	return GPU{
		Available:    true,
		Name:         name,
		VRAMUsedGiB:  round(usedGiB, 2),
		VRAMTotalGiB: round(totalGiB, 2),
		VRAMPercent:  percent,
		Source:       source,
	}
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
