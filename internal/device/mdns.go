package device

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

// MDNSConfig configures local network browsing.
type MDNSConfig struct {
	Service string
	Domain  string
	Timeout time.Duration
}

// MDNSBrowser finds telescopes advertising the ScopeLink service on the
// local network.
type MDNSBrowser struct {
	cfg    MDNSConfig
	logger Logger
}

// NewMDNSBrowser creates a browser. Empty fields take defaults.
func NewMDNSBrowser(cfg MDNSConfig) *MDNSBrowser {
	if cfg.Service == "" {
		cfg.Service = "_scopelink._tcp"
	}
	if cfg.Domain == "" {
		cfg.Domain = "local."
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	return &MDNSBrowser{cfg: cfg, logger: noopLogger{}}
}

// SetLogger sets the logger for the browser.
func (b *MDNSBrowser) SetLogger(logger Logger) {
	b.logger = logger
}

// Browse collects service entries until the timeout or ctx expires.
func (b *MDNSBrowser) Browse(ctx context.Context) ([]Device, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMDNSUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	var (
		mu      sync.Mutex
		devices []Device
		wg      sync.WaitGroup
	)

	wg.Add(1)
	go func(results <-chan *zeroconf.ServiceEntry) {
		defer wg.Done()
		for entry := range results {
			d, ok := deviceFromEntry(entry)
			if !ok {
				continue
			}
			mu.Lock()
			devices = append(devices, d)
			mu.Unlock()
		}
	}(entries)

	if err := resolver.Browse(ctx, b.cfg.Service, b.cfg.Domain, entries); err != nil {
		return nil, fmt.Errorf("browsing %s: %w", b.cfg.Service, err)
	}

	// The resolver closes entries when ctx is done.
	<-ctx.Done()
	wg.Wait()

	b.logger.Debug("mdns browse complete", "service", b.cfg.Service, "found", len(devices))
	return devices, nil
}

// deviceFromEntry maps a service entry to a Device. TXT records carry
// sn=<serial>, model=<product model> and id=<backend id>.
func deviceFromEntry(entry *zeroconf.ServiceEntry) (Device, bool) {
	if entry == nil || len(entry.AddrIPv4) == 0 || entry.Port == 0 {
		return Device{}, false
	}

	name := entry.Instance
	if idx := strings.Index(name, "@"); idx != -1 {
		name = name[:idx]
	}

	d := Device{
		Name:            name,
		Host:            entry.AddrIPv4[0].String(),
		Port:            entry.Port,
		DiscoveryMethod: DiscoveryAuto,
		// Advertising implies the unit is up and accepting control connections.
		Connected: true,
	}
	for _, txt := range entry.Text {
		k, v, ok := strings.Cut(txt, "=")
		if !ok {
			continue
		}
		switch k {
		case "sn":
			d.SerialNumber = v
		case "model":
			d.ProductModel = v
		case "id":
			d.ID = v
		}
	}
	return d.Normalize(), true
}
