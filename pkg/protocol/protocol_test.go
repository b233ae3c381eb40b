package protocol

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultDescriptor(t *testing.T) {
	p, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "rgb-qmini", p.Name)
	assert.ElementsMatch(t,
		[]string{TraitHasMapping, TraitHasMeasureTrigger, TraitIsSensor, TraitIsDaemon},
		p.Traits)

	exposure, ok := p.State["exposure_time"]
	require.True(t, ok)
	assert.True(t, exposure.Type.Equal(Primitive(TypeDouble)))
	assert.Equal(t, 0.1, exposure.Default)
}

func TestDefaultExposureMessages(t *testing.T) {
	p, err := Default()
	require.NoError(t, err)

	set, ok := p.Message("set_exposure_time")
	require.True(t, ok)
	require.Len(t, set.Request, 1)
	assert.Equal(t, "exposure_time", set.Request[0].Name)
	assert.True(t, set.Request[0].Type.Equal(Primitive(TypeFloat)))
	assert.True(t, set.Response.Equal(Primitive(TypeNull)))

	get, ok := p.Message("get_exposure_time")
	require.True(t, ok)
	assert.Empty(t, get.Request)
	assert.True(t, get.Response.Equal(Primitive(TypeDouble)))

	units, ok := p.Message("get_exposure_time_units")
	require.True(t, ok)
	assert.True(t, units.Response.Equal(Primitive(TypeString)))

	limits, ok := p.Message("get_exposure_time_limits")
	require.True(t, ok)
	assert.True(t, limits.Response.Equal(ArrayOf(Primitive(TypeDouble))))
}

func TestDefaultPropertyAccessorsExist(t *testing.T) {
	p, err := Default()
	require.NoError(t, err)

	prop, ok := p.Properties["exposure_time"]
	require.True(t, ok)
	assert.Equal(t, ControlNormal, prop.ControlKind)
	assert.Equal(t, RecordMetadata, prop.RecordKind)

	for _, name := range p.PropertyNames() {
		prop := p.Properties[name]
		for _, accessor := range []string{prop.Getter, prop.Setter, prop.UnitsGetter, prop.LimitsGetter} {
			if accessor == "" {
				continue
			}
			_, ok := p.Messages[accessor]
			assert.True(t, ok, "property %s accessor %s", name, accessor)
		}
	}
}

func TestExpandAddsTraitMessages(t *testing.T) {
	p, err := Default()
	require.NoError(t, err)

	for _, name := range []string{
		"busy", "id", "get_config", "get_config_filepath", "get_state", "get_traits", "get_version", "shutdown",
		"get_measured", "get_channel_names", "get_channel_units", "get_channel_shapes",
		"measure", "stop_looping",
		"get_mappings", "get_mapping_id", "get_channel_mappings",
	} {
		m, ok := p.Messages[name]
		if assert.True(t, ok, name) {
			assert.NotEmpty(t, m.Origin, name)
		}
	}

	assert.Empty(t, p.Messages["set_exposure_time"].Origin)

	shutdown := p.Messages["shutdown"]
	restart, ok := shutdown.Param("restart")
	require.True(t, ok)
	assert.True(t, restart.HasDefault)
	assert.Equal(t, false, restart.Default)

	loop, ok := p.Config["loop_at_startup"]
	require.True(t, ok)
	assert.Equal(t, TraitHasMeasureTrigger, loop.Origin)
}

func TestExpandKeepsDescriptorOverrides(t *testing.T) {
	p, err := Default()
	require.NoError(t, err)

	mk, ok := p.Config["make"]
	require.True(t, ok)
	assert.Equal(t, "RGB Photonics", mk.Default)
	assert.Empty(t, mk.Origin)
}

func TestExpandIdempotent(t *testing.T) {
	p, err := Parse(DefaultTOML())
	require.NoError(t, err)
	require.NoError(t, p.Expand())
	n := len(p.Messages)
	require.NoError(t, p.Expand())
	assert.Len(t, p.Messages, n)
	assert.True(t, p.Expanded())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing name", `doc = "x"`},
		{"bad toml", `protocol = `},
		{"unknown key", "protocol = \"x\"\nflavour = \"y\""},
		{"unknown type", "protocol = \"x\"\n[state.a]\ntype = \"quaternion\""},
		{"bare array type", "protocol = \"x\"\n[messages.a]\nresponse = \"array\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestExpandUnknownTrait(t *testing.T) {
	p, err := Parse([]byte("protocol = \"x\"\ntraits = [\"is-daemon\", \"has-teleporter\"]"))
	require.NoError(t, err)
	err = p.Expand()
	assert.ErrorIs(t, err, ErrUnknownTrait)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rgb-qmini.toml")
	require.NoError(t, os.WriteFile(path, DefaultTOML(), 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "rgb-qmini", p.Name)
	assert.False(t, p.Expanded())

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestStateDefaults(t *testing.T) {
	p, err := Default()
	require.NoError(t, err)

	defaults := p.StateDefaults()
	assert.Equal(t, 0.1, defaults["exposure_time"])
	assert.EqualValues(t, 1, defaults["averaging"])
}

func TestKnownTraits(t *testing.T) {
	assert.Equal(t,
		[]string{TraitHasMapping, TraitHasMeasureTrigger, TraitIsDaemon, TraitIsSensor},
		KnownTraits())

	sensor, err := Trait(TraitIsSensor)
	require.NoError(t, err)
	assert.Equal(t, []string{TraitIsDaemon}, sensor.Requires)
}

func TestMarshalRoundTrip(t *testing.T) {
	p, err := Default()
	require.NoError(t, err)

	t.Run("toml", func(t *testing.T) {
		data, err := p.MarshalTOML()
		require.NoError(t, err)

		again, err := Parse(data)
		require.NoError(t, err)
		require.NoError(t, again.Expand())
		require.NoError(t, again.Validate())
		assert.Equal(t, p.MessageNames(), again.MessageNames())
		assert.True(t, again.Properties["exposure_time"].Type.Equal(Primitive(TypeDouble)))
		assert.True(t, again.Messages["get_channel_shapes"].Response.Equal(p.Messages["get_channel_shapes"].Response))
	})

	t.Run("yaml", func(t *testing.T) {
		data, err := p.MarshalYAML()
		require.NoError(t, err)
		out := string(data)
		assert.True(t, strings.HasPrefix(out, "protocol: rgb-qmini"))
		assert.Contains(t, out, "limits_getter: get_exposure_time_limits")
	})
}

func TestValidateErrorsAreJoined(t *testing.T) {
	doc := `
protocol = "broken"
traits = ["has-measure-trigger", "is-daemon"]

[state.gain]
type = "int"
default = "high"

[messages.get_gain]
response = "double"

[messages.set_gain]
request = [{name = "gain", type = "int"}, {name = "extra", type = "int"}]

[messages.get_gain_units]
response = "int"

[properties.gain]
getter = "get_gain"
setter = "set_gain"
units_getter = "get_gain_units"
limits_getter = "get_gain_limits"
type = "int"
control_kind = "sometimes"
`
	p, err := Parse([]byte(doc))
	require.NoError(t, err)
	require.NoError(t, p.Expand())

	err = p.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))

	msg := err.Error()
	for _, want := range []string{
		"trait has-measure-trigger requires is-sensor",
		"state gain default",
		"getter get_gain returns double, want int",
		"setter set_gain takes 2 parameters",
		"units_getter get_gain_units returns int",
		"limits_getter get_gain_limits is not a message",
		`unknown control_kind "sometimes"`,
	} {
		assert.Contains(t, msg, want)
	}
}

func TestValidateMissingAccessor(t *testing.T) {
	p, err := Default()
	require.NoError(t, err)

	delete(p.Messages, "get_exposure_time_units")
	err = p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "units_getter get_exposure_time_units is not a message")
}
