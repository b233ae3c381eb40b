package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// Advertiser announces daemons on the network.
type Advertiser interface {
	// Advertise registers info, replacing an earlier registration of the
	// same instance.
	Advertise(ctx context.Context, info *DaemonInfo) error

	// Update replaces the TXT records of an advertised daemon.
	Update(info *DaemonInfo) error

	Stop(instanceName string) error
	StopAll()
}

type AdvertiserConfig struct {
	// Interface restricts announcements to one interface. Empty means all.
	Interface string

	TTL time.Duration
}

func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{TTL: 120 * time.Second}
}

// MDNSAdvertiser registers daemons with zeroconf, one server per instance.
type MDNSAdvertiser struct {
	config AdvertiserConfig

	mu      sync.Mutex
	servers map[string]*zeroconf.Server
}

func NewMDNSAdvertiser(config AdvertiserConfig) (*MDNSAdvertiser, error) {
	return &MDNSAdvertiser{config: config, servers: make(map[string]*zeroconf.Server)}, nil
}

func (a *MDNSAdvertiser) Advertise(ctx context.Context, info *DaemonInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL/time.Second)))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	name := info.InstanceName()
	a.shutdown(name)
	server, err := zeroconf.Register(name, ServiceType, Domain, int(info.Port),
		info.TXT(), interfaces(a.config.Interface), opts...)
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", name, err)
	}
	a.servers[name] = server
	return nil
}

func (a *MDNSAdvertiser) Update(info *DaemonInfo) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	server, ok := a.servers[info.InstanceName()]
	if !ok {
		return ErrNotFound
	}
	server.SetText(info.TXT())
	return nil
}

func (a *MDNSAdvertiser) Stop(instanceName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.shutdown(instanceName) {
		return ErrNotFound
	}
	return nil
}

func (a *MDNSAdvertiser) StopAll() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for name := range a.servers {
		a.shutdown(name)
	}
}

// shutdown stops the named server; a.mu must be held.
func (a *MDNSAdvertiser) shutdown(name string) bool {
	server, ok := a.servers[name]
	if ok {
		server.Shutdown()
		delete(a.servers, name)
	}
	return ok
}

// interfaces resolves an interface name. Nil means every interface, which
// is also the fallback for an unknown name.
func interfaces(name string) []net.Interface {
	if name == "" {
		return nil
	}
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

var _ Advertiser = (*MDNSAdvertiser)(nil)
