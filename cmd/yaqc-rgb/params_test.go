package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaq-go/yaqd-rgb/pkg/protocol"
)

func testMessage() *protocol.Message {
	return &protocol.Message{
		Name: "configure",
		Request: []protocol.Param{
			{Name: "exposure_time", Type: protocol.Primitive(protocol.TypeDouble)},
			{Name: "serial", Type: protocol.Primitive(protocol.TypeString)},
			{Name: "loop", Type: protocol.Primitive(protocol.TypeBoolean)},
		},
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"0.25", 0.25},
		{"3", 3},
		{"true", true},
		{"hello", "hello"},
		{"[1, 2]", []any{1, 2}},
		{"null", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseValue(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseValue("[1, 2")
	assert.Error(t, err)
}

func TestBuildParamsPositional(t *testing.T) {
	params, err := buildParams(testMessage(), []string{"0.5", "123", "true"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"exposure_time": 0.5,
		"serial":        "123",
		"loop":          true,
	}, params)
}

func TestBuildParamsNamed(t *testing.T) {
	params, err := buildParams(testMessage(), []string{"loop=false", "serial=007"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"loop": false, "serial": "007"}, params)

	params, err = buildParams(testMessage(), []string{"0.1", "loop=true"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"exposure_time": 0.1, "loop": true}, params)
}

func TestBuildParamsStringWithEquals(t *testing.T) {
	params, err := buildParams(testMessage(), []string{"1", "a=b"})
	require.NoError(t, err)
	assert.Equal(t, "a=b", params["serial"])
}

func TestBuildParamsErrors(t *testing.T) {
	_, err := buildParams(testMessage(), []string{"1", "2", "true", "4"})
	assert.ErrorIs(t, err, errTooManyArgs)

	_, err = buildParams(nil, []string{"1"})
	assert.Error(t, err)

	params, err := buildParams(nil, []string{"x=1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": 1}, params)

	params, err = buildParams(testMessage(), nil)
	require.NoError(t, err)
	assert.Nil(t, params)
}
