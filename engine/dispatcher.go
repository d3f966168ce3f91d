package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"

	"golang.org/x/net/publicsuffix"
)

// Dispatcher tries engines in order, cheapest first, and escalates when an
// engine fails or returns a page the accept check rejects. The last engine
// in configuration order is final: its page is returned even if the check
// rejects it, so an empty result list is still reported as "no matches".
type Dispatcher struct {
	engines []Engine
	accept  AcceptFunc
	memory  *DomainMemory
}

// NewDispatcher creates a Dispatcher. accept may be nil to take the first
// successful fetch; memory may be nil to disable per-host preference.
func NewDispatcher(engines []Engine, accept AcceptFunc, memory *DomainMemory) *Dispatcher {
	return &Dispatcher{
		engines: engines,
		accept:  accept,
		memory:  memory,
	}
}

// Dispatch fetches req with the first engine whose page is accepted.
// If every engine fails it returns the last error.
func (d *Dispatcher) Dispatch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if len(d.engines) == 0 {
		return nil, fmt.Errorf("dispatcher: no engines configured")
	}

	host := extractDomain(req.URL)
	finalName := d.engines[len(d.engines)-1].Name()

	var lastErr error
	for _, eng := range d.order(host) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		final := eng.Name() == finalName

		slog.Debug("engine starting", "engine", eng.Name(), "url", req.URL)
		result, err := eng.Fetch(ctx, req)
		if err != nil {
			slog.Debug("engine failed", "engine", eng.Name(), "url", req.URL, "error", err)
			if d.memory.Get(host) == eng.Name() {
				d.memory.Delete(host)
			}
			lastErr = err
			continue
		}

		if !final && d.accept != nil && !d.accept(result) {
			slog.Debug("engine page rejected, escalating",
				"engine", eng.Name(),
				"status", result.StatusCode,
				"final_url", result.FinalURL,
			)
			if d.memory.Get(host) == eng.Name() {
				d.memory.Delete(host)
			}
			continue
		}

		slog.Info("engine selected",
			"engine", result.EngineName,
			"status", result.StatusCode,
			"final_url", result.FinalURL,
		)
		d.memory.Set(host, eng.Name())
		return result, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("dispatcher: all engines failed for %s", req.URL)
	}
	return nil, lastErr
}

// order returns the engines with the remembered one for host moved to the
// front.
func (d *Dispatcher) order(host string) []Engine {
	remembered := d.memory.Get(host)
	if remembered == "" {
		return d.engines
	}

	ordered := make([]Engine, 0, len(d.engines))
	for _, eng := range d.engines {
		if eng.Name() == remembered {
			ordered = append(ordered, eng)
		}
	}
	if len(ordered) == 0 {
		return d.engines
	}
	slog.Debug("domain memory hit", "domain", host, "engine", remembered)
	for _, eng := range d.engines {
		if eng.Name() != remembered {
			ordered = append(ordered, eng)
		}
	}
	return ordered
}

// extractDomain returns the registrable domain of rawURL, so mirrors such
// as www. share one memory entry. IP hosts are returned as-is.
func extractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	host := u.Hostname()
	if net.ParseIP(host) != nil {
		return host
	}
	if site, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return site
	}
	return host
}
