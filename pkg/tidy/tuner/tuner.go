// Package tuner sizes the worker pools from the detected system resources.
// Hashing is I/O bound and benefits from more workers than cores; perceptual
// hashing decodes whole images, so memory bounds how many may run at once.
package tuner

import "runtime"

// Pool limits.
const (
	minWorkers = 2
	maxWorkers = 32

	minEventBuffer = 256
	maxEventBuffer = 8192
)

// Memory estimates used for sizing.
const (
	// bytesPerDecode is a generous figure for one decoded 24 MP photo.
	bytesPerDecode = 128 << 20

	// decodeMemoryFraction is the share of available RAM given to decoding.
	decodeMemoryFraction = 0.25

	// bytesPerBufferedEvent covers an event with its path strings.
	bytesPerBufferedEvent = 512

	// eventMemoryFraction is the share of available RAM given to the
	// progress channel.
	eventMemoryFraction = 0.001
)

// defaultTotalRAM is assumed when detection fails.
const defaultTotalRAM = 8 << 30

// SystemResources contains detected system resources.
type SystemResources struct {
	CPUCores     int
	TotalRAM     int64
	AvailableRAM int64
}

// Workers is the tuned pool configuration.
type Workers struct {
	// Hash is the number of concurrent digest and perceptual hash workers.
	Hash int

	// EventBuffer is the progress channel capacity.
	EventBuffer int
}

// Calculate returns a pool configuration for resources:
//   - Hash: two workers per core, capped by how many image decodes fit in
//     a quarter of the available RAM, within 2-32
//   - EventBuffer: a small share of available RAM, within 256-8192
func Calculate(resources SystemResources) Workers {
	hash := resources.CPUCores * 2
	if resources.AvailableRAM > 0 {
		byMemory := int(float64(resources.AvailableRAM) * decodeMemoryFraction / bytesPerDecode)
		hash = min(hash, byMemory)
	}
	hash = min(max(hash, minWorkers), maxWorkers)

	buffer := int(float64(resources.AvailableRAM) * eventMemoryFraction / bytesPerBufferedEvent)
	buffer = min(max(buffer, minEventBuffer), maxEventBuffer)

	return Workers{Hash: hash, EventBuffer: buffer}
}

// CalculateWithOverride applies a user override to the hash worker count.
// A non-positive override keeps the calculated value.
func CalculateWithOverride(resources SystemResources, hashWorkers int) Workers {
	w := Calculate(resources)
	if hashWorkers > 0 {
		w.Hash = min(hashWorkers, maxWorkers)
	}
	return w
}

// Auto detects the system and returns its pool configuration. Detection
// errors fall back to conservative defaults.
func Auto() Workers {
	res, err := Detect()
	if err != nil || res.TotalRAM <= 0 {
		res = fallback()
	}
	return Calculate(res)
}

func fallback() SystemResources {
	return SystemResources{
		CPUCores:     runtime.NumCPU(),
		TotalRAM:     defaultTotalRAM,
		AvailableRAM: defaultTotalRAM / 2,
	}
}
