package discovery

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	// ServiceType is registered by every yaq daemon.
	ServiceType = "_yaq._tcp"
	Domain      = "local"

	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63

	// BrowseTimeout bounds a one-shot browse.
	BrowseTimeout = 3 * time.Second
)

// TXT record keys.
const (
	TXTKeyKind    = "kind"
	TXTKeyName    = "name"
	TXTKeyMake    = "make"
	TXTKeyModel   = "model"
	TXTKeySerial  = "serial"
	TXTKeyVersion = "version"
)

var (
	ErrMissingRequired     = errors.New("missing required field")
	ErrInstanceNameTooLong = errors.New("instance name too long")
	ErrInvalidPort         = errors.New("invalid port")
	ErrNotFound            = errors.New("service not found")
)

// DaemonInfo is the identity a daemon announces.
type DaemonInfo struct {
	Kind    string
	Name    string
	Make    string
	Model   string
	Serial  string
	Version string
	Port    uint16
}

// InstanceName is "<kind>:<name>".
func (i *DaemonInfo) InstanceName() string {
	return i.Kind + ":" + i.Name
}

func (i *DaemonInfo) Validate() error {
	switch {
	case i.Kind == "":
		return fmt.Errorf("%w: kind", ErrMissingRequired)
	case i.Name == "":
		return fmt.Errorf("%w: name", ErrMissingRequired)
	case i.Port == 0:
		return ErrInvalidPort
	case len(i.InstanceName()) > MaxInstanceNameLen:
		return fmt.Errorf("%w: %q", ErrInstanceNameTooLong, i.InstanceName())
	}
	return nil
}

func (i *DaemonInfo) fields() []struct {
	key string
	val *string
} {
	return []struct {
		key string
		val *string
	}{
		{TXTKeyKind, &i.Kind},
		{TXTKeyName, &i.Name},
		{TXTKeyMake, &i.Make},
		{TXTKeyModel, &i.Model},
		{TXTKeySerial, &i.Serial},
		{TXTKeyVersion, &i.Version},
	}
}

// TXT returns the sorted "key=value" records for i. Empty fields are left
// out.
func (i *DaemonInfo) TXT() []string {
	var txt []string
	for _, f := range i.fields() {
		if *f.val != "" {
			txt = append(txt, f.key+"="+*f.val)
		}
	}
	sort.Strings(txt)
	return txt
}

// ParseTXT reads daemon identity from "key=value" records. Unknown keys are
// ignored; kind and name are required.
func ParseTXT(txt []string) (*DaemonInfo, error) {
	values := make(map[string]string, len(txt))
	for _, rec := range txt {
		if k, v, _ := strings.Cut(rec, "="); k != "" {
			values[k] = v
		}
	}

	info := &DaemonInfo{}
	for _, f := range info.fields() {
		*f.val = values[f.key]
	}
	switch {
	case info.Kind == "":
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyKind)
	case info.Name == "":
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyName)
	}
	return info, nil
}

// Service is a daemon found on the network.
type Service struct {
	InstanceName string
	Host         string
	Port         uint16
	Addresses    []string

	Kind    string
	Name    string
	Make    string
	Model   string
	Serial  string
	Version string
}

// newService builds a Service from the parts of an mDNS answer. It returns
// nil for answers that are not yaq daemons.
func newService(instance, host string, port int, txt, addrs []string) *Service {
	if port <= 0 || port > 65535 {
		return nil
	}
	info, err := ParseTXT(txt)
	if err != nil {
		return nil
	}
	return &Service{
		InstanceName: instance,
		Host:         host,
		Port:         uint16(port),
		Addresses:    addrs,
		Kind:         info.Kind,
		Name:         info.Name,
		Make:         info.Make,
		Model:        info.Model,
		Serial:       info.Serial,
		Version:      info.Version,
	}
}

// Address returns a dialable host:port, preferring the first resolved
// address over the host name.
func (s *Service) Address() string {
	host := s.Host
	if len(s.Addresses) > 0 {
		host = s.Addresses[0]
	}
	return net.JoinHostPort(host, strconv.Itoa(int(s.Port)))
}
