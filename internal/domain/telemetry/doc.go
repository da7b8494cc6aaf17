// Package telemetry reads GPU VRAM usage and host load.
//
// GPU readings come from rocm-smi when it is installed and answers, and
// otherwise from the amdgpu sysfs counters of the first candidate card that
// exposes both mem_info_vram_total and mem_info_vram_used. Percentages are
// reported as 0 when the total is 0.
package telemetry
