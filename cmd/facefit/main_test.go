package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lens-tracer/pkg/geometry"
)

func TestParseInts(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		n       int
		want    []int
		wantErr bool
	}{
		{name: "roi", in: "8,20,304,280", n: 4, want: []int{8, 20, 304, 280}},
		{name: "spaces", in: " 184 , 155", n: 2, want: []int{184, 155}},
		{name: "negative", in: "-3,4", n: 2, want: []int{-3, 4}},
		{name: "too few", in: "1,2,3", n: 4, wantErr: true},
		{name: "too many", in: "1,2,3", n: 2, wantErr: true},
		{name: "not a number", in: "1,x", n: 2, wantErr: true},
		{name: "float", in: "1.5,2", n: 2, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseInts(tt.in, tt.n)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEyeInput(t *testing.T) {
	in := eyeInput("8,20,304,280", "184,155", 48, 155)
	assert.Equal(t, geometry.NewRectInt(8, 20, 304, 280), in.ROI)
	assert.Equal(t, geometry.Point2D{X: 184, Y: 155}, in.Pupil)
	require.NotNil(t, in.BrowY)
	require.NotNil(t, in.BridgeRowY)
	assert.Equal(t, 48.0, *in.BrowY)
	assert.Equal(t, 155.0, *in.BridgeRowY)
}

func TestEyeInputDefaults(t *testing.T) {
	in := eyeInput("0,0,100,60", "", -1, -1)
	assert.Equal(t, geometry.Point2D{X: 50, Y: 30}, in.Pupil)
	assert.Nil(t, in.BrowY)
	assert.Nil(t, in.BridgeRowY)
}
