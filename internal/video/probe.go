package video

import (
	"context"
	"time"
)

type ProbeResult int

const (
	ProbeValid ProbeResult = iota
	ProbeUnreachable
)

const defaultProbeTimeout = 5 * time.Second

// Prober answers one question about an object key: is the object behind it
// currently retrievable? All failure modes (missing object, store error,
// timeout) collapse to ProbeUnreachable, because the caller's only
// decision is keep-or-purge. Probe never returns an error.
type Prober struct {
	storage ObjectStorage
	timeout time.Duration
}

func NewProber(storage ObjectStorage, timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return &Prober{storage: storage, timeout: timeout}
}

func (p *Prober) Probe(ctx context.Context, objectKey string) ProbeResult {
	if objectKey == "" {
		return ProbeUnreachable
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	// Metadata-only check, no body transfer.
	if _, _, err := p.storage.HeadObject(ctx, objectKey); err != nil {
		return ProbeUnreachable
	}
	return ProbeValid
}
