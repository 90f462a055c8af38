package trust

import (
	"os"
	"runtime"
	"strconv"
	"time"
)

// fingerprintSeed is the djb2 initial accumulator value.
const fingerprintSeed uint64 = 5381

// Fingerprint returns a deterministic device token derived from stable,
// non-identifying host traits: OS, architecture, hostname, hardware
// concurrency, timezone, and locale. The traits are combined order-sensitively
// with a djb2-style rotate-xor accumulator and rendered radix-36, so the token
// is compact, stable across restarts on the same host, and embeds no personal data.
func Fingerprint() string {
	traits := []string{
		runtime.GOOS,
		runtime.GOARCH,
		hostname(),
		strconv.Itoa(runtime.NumCPU()),
		timezoneName(),
		os.Getenv("LANG"),
	}
	h := fingerprintSeed
	for _, trait := range traits {
		for _, c := range trait {
			h = ((h << 5) + h) ^ uint64(c)
		}
		// Separator keeps the accumulation order-sensitive across trait boundaries.
		h = ((h << 5) + h) ^ uint64('|')
	}
	return strconv.FormatUint(h, 36)
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "unknown-host"
	}
	return name
}

func timezoneName() string {
	name, _ := time.Now().Zone()
	return name
}
