package daemon

import (
	"context"
	"fmt"

	"github.com/pelletier/go-toml/v2"

	"github.com/yaq-go/yaqd-rgb/pkg/model"
	"github.com/yaq-go/yaqd-rgb/pkg/version"
	"github.com/yaq-go/yaqd-rgb/pkg/wire"
)

// traitHandlers returns the handlers of every built-in trait message.
// Messages the descriptor does not declare are skipped by bind.
func (d *Daemon) traitHandlers() map[string]model.MessageHandler {
	return map[string]model.MessageHandler{
		// is-daemon
		"busy":                d.handleBusy,
		"id":                  d.handleID,
		"get_config":          d.handleGetConfig,
		"get_config_filepath": d.handleGetConfigFilepath,
		"get_state":           d.handleGetState,
		"get_traits":          d.handleGetTraits,
		"get_version":         d.handleGetVersion,
		"shutdown":            d.handleShutdown,

		// is-sensor
		"get_measured":       d.handleGetMeasured,
		"get_channel_names":  d.handleGetChannelNames,
		"get_channel_units":  d.handleGetChannelUnits,
		"get_channel_shapes": d.handleGetChannelShapes,

		// has-measure-trigger
		"measure":      d.handleMeasure,
		"stop_looping": d.handleStopLooping,

		// has-mapping
		"get_mappings":         d.handleGetMappings,
		"get_mapping_id":       d.handleGetMappingID,
		"get_channel_mappings": d.handleGetChannelMappings,
	}
}

func (d *Daemon) handleBusy(ctx context.Context, params map[string]any) (any, error) {
	return d.Busy(), nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (d *Daemon) handleID(ctx context.Context, params map[string]any) (any, error) {
	id := d.identity()
	return map[string]any{
		"name":   d.Name(),
		"kind":   d.Kind(),
		"make":   nullable(id.Make),
		"model":  nullable(id.Model),
		"serial": nullable(id.Serial),
	}, nil
}

func (d *Daemon) handleGetConfig(ctx context.Context, params map[string]any) (any, error) {
	return d.config.Daemon.EffectiveTOML(d.config.Protocol)
}

func (d *Daemon) handleGetConfigFilepath(ctx context.Context, params map[string]any) (any, error) {
	return d.config.ConfigPath, nil
}

func (d *Daemon) handleGetState(ctx context.Context, params map[string]any) (any, error) {
	data, err := toml.Marshal(d.state.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("encoding state: %w", err)
	}
	return string(data), nil
}

func (d *Daemon) handleGetTraits(ctx context.Context, params map[string]any) (any, error) {
	return append([]string(nil), d.config.Protocol.Traits...), nil
}

func (d *Daemon) handleGetVersion(ctx context.Context, params map[string]any) (any, error) {
	return version.Current, nil
}

func (d *Daemon) handleShutdown(ctx context.Context, params map[string]any) (any, error) {
	restart, err := wire.Bool(params, "restart", false)
	if err != nil {
		return nil, err
	}
	d.requestShutdown(restart)
	return nil, nil
}

func (d *Daemon) handleGetMeasured(ctx context.Context, params map[string]any) (any, error) {
	return d.meas.last(), nil
}

func (d *Daemon) handleGetChannelNames(ctx context.Context, params map[string]any) (any, error) {
	channels := d.driver.Channels()
	names := make([]string, len(channels))
	for i, ch := range channels {
		names[i] = ch.Name
	}
	return names, nil
}

func (d *Daemon) handleGetChannelUnits(ctx context.Context, params map[string]any) (any, error) {
	out := make(map[string]any)
	for _, ch := range d.driver.Channels() {
		out[ch.Name] = nullable(ch.Units)
	}
	return out, nil
}

func (d *Daemon) handleGetChannelShapes(ctx context.Context, params map[string]any) (any, error) {
	out := make(map[string]any)
	for _, ch := range d.driver.Channels() {
		shape := ch.Shape
		if shape == nil {
			shape = []int{}
		}
		out[ch.Name] = shape
	}
	return out, nil
}

func (d *Daemon) handleMeasure(ctx context.Context, params map[string]any) (any, error) {
	loop, err := wire.Bool(params, "loop", false)
	if err != nil {
		return nil, err
	}
	return d.meas.measure(loop), nil
}

func (d *Daemon) handleStopLooping(ctx context.Context, params map[string]any) (any, error) {
	d.meas.stopLooping()
	return nil, nil
}

func (d *Daemon) handleGetMappings(ctx context.Context, params map[string]any) (any, error) {
	return d.driver.Mappings(), nil
}

func (d *Daemon) handleGetMappingID(ctx context.Context, params map[string]any) (any, error) {
	return d.mappingID.Load(), nil
}

func (d *Daemon) handleGetChannelMappings(ctx context.Context, params map[string]any) (any, error) {
	out := make(map[string]any)
	for _, ch := range d.driver.Channels() {
		mappings := ch.Mappings
		if mappings == nil {
			mappings = []string{}
		}
		out[ch.Name] = mappings
	}
	return out, nil
}
