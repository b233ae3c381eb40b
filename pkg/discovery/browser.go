package discovery

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// Browser finds daemons on the network.
type Browser interface {
	// Browse streams each daemon once, as first seen. The channel closes
	// when ctx ends.
	Browse(ctx context.Context) (<-chan *Service, error)

	// Find returns the daemon called name, or ErrNotFound.
	Find(ctx context.Context, name string) (*Service, error)
}

type BrowserConfig struct {
	// BrowseTimeout bounds Find when ctx has no deadline.
	BrowseTimeout time.Duration

	// Interface restricts browsing to one interface. Empty means all.
	Interface string
}

func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{BrowseTimeout: BrowseTimeout}
}

// FilterFunc selects browse results.
type FilterFunc func(*Service) bool

// FilterByKind matches daemons of any of kinds.
func FilterByKind(kinds ...string) FilterFunc {
	return func(svc *Service) bool { return slices.Contains(kinds, svc.Kind) }
}

func FilterByName(name string) FilterFunc {
	return func(svc *Service) bool { return svc.Name == name }
}

// Collect browses until ctx ends and returns the services every filter
// accepts.
func Collect(ctx context.Context, b Browser, filters ...FilterFunc) ([]*Service, error) {
	results, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Service
next:
	for svc := range results {
		for _, keep := range filters {
			if !keep(svc) {
				continue next
			}
		}
		out = append(out, svc)
	}
	return out, nil
}

// MDNSBrowser browses with zeroconf. Answers for one instance arriving on
// several interfaces are merged into a single Service.
type MDNSBrowser struct {
	config BrowserConfig
}

func NewMDNSBrowser(config BrowserConfig) (*MDNSBrowser, error) {
	return &MDNSBrowser{config: config}, nil
}

func (b *MDNSBrowser) Browse(ctx context.Context) (<-chan *Service, error) {
	var opts []zeroconf.ClientOption
	if ifaces := interfaces(b.config.Interface); ifaces != nil {
		opts = append(opts, zeroconf.SelectIfaces(ifaces))
	}

	out := make(chan *Service)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(out)
		seen := aggregator{}
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-removed:
				if ok {
					seen.remove(e.Instance, addresses(e))
				}
			case e, ok := <-entries:
				if !ok {
					return
				}
				svc := newService(e.Instance, e.HostName, e.Port, e.Text, addresses(e))
				if svc == nil || !seen.add(svc) {
					continue
				}
				select {
				case out <- svc:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	go func() { _ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, opts...) }()
	return out, nil
}

func (b *MDNSBrowser) Find(ctx context.Context, name string) (*Service, error) {
	if _, ok := ctx.Deadline(); !ok && b.config.BrowseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.config.BrowseTimeout)
		defer cancel()
	}

	// Cancelling on return stops the browse goroutines once found.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	for svc := range results {
		if svc.Name == name {
			return svc, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

func addresses(e *zeroconf.ServiceEntry) []string {
	addrs := make([]string, 0, len(e.AddrIPv4)+len(e.AddrIPv6))
	for _, ip := range e.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range e.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return addrs
}

// aggregator tracks the instances a browse has reported, keyed by instance
// name.
type aggregator map[string]*Service

// add reports whether svc is a new instance; for a known one it merges the
// addresses instead.
func (a aggregator) add(svc *Service) bool {
	known, ok := a[svc.InstanceName]
	if !ok {
		a[svc.InstanceName] = svc
		return true
	}
	for _, addr := range svc.Addresses {
		if !slices.Contains(known.Addresses, addr) {
			known.Addresses = append(known.Addresses, addr)
		}
	}
	return false
}

// remove drops addrs from an instance and forgets it once none remain.
func (a aggregator) remove(instance string, addrs []string) {
	known, ok := a[instance]
	if !ok {
		return
	}
	known.Addresses = slices.DeleteFunc(known.Addresses, func(s string) bool {
		return slices.Contains(addrs, s)
	})
	if len(known.Addresses) == 0 {
		delete(a, instance)
	}
}

var _ Browser = (*MDNSBrowser)(nil)
