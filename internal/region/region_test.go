package region

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/sitelapse/internal/config"
)

func TestParseDefaults(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		want    Region
		wantErr string
	}{
		{
			name: "integers",
			out:  "{\n    Height = 600;\n    Width = 800;\n    X = 120;\n    Y = 88;\n}",
			want: Region{X: 120, Y: 88, Width: 800, Height: 600},
		},
		{
			name: "quoted fractions",
			out:  "{\n    Height = \"412.5\";\n    Width = \"640.25\";\n    X = \"10.5\";\n    Y = 0;\n}",
			want: Region{X: 10.5, Y: 0, Width: 640.25, Height: 412.5},
		},
		{
			name: "negative origin on secondary display",
			out:  "{\n    Height = 300;\n    Width = 400;\n    X = \"-1440\";\n    Y = 25;\n}",
			want: Region{X: -1440, Y: 25, Width: 400, Height: 300},
		},
		{
			name:    "missing key",
			out:     "{\n    Height = 600;\n    Width = 800;\n    X = 120;\n}",
			wantErr: "no y",
		},
		{
			name:    "zero area",
			out:     "{\n    Height = 0;\n    Width = 800;\n    X = 1;\n    Y = 1;\n}",
			wantErr: "no area",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDefaults(tt.out)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegion_Rect(t *testing.T) {
	r := Region{X: 10.4, Y: 20.6, Width: 100.5, Height: 50}
	assert.Equal(t, image.Rect(10, 21, 111, 71), r.Rect())
	assert.Equal(t, "10.4,20.6 100.5x50", r.String())
}

func TestMacOS_Acquire(t *testing.T) {
	var gotArgs []string
	src := MacOS{Exec: func(_ context.Context, _ string, name string, args ...string) (string, error) {
		gotArgs = append([]string{name}, args...)
		return "{ Height = 10; Width = 20; X = 1; Y = 2; }", nil
	}}
	r, err := src.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Region{X: 1, Y: 2, Width: 20, Height: 10}, r)
	assert.Equal(t, []string{"defaults", "read", "com.apple.screencapture", "last-selection"}, gotArgs)

	src.Exec = func(context.Context, string, string, ...string) (string, error) {
		return "", errors.New("The domain/default pair does not exist")
	}
	_, err = src.Acquire(context.Background())
	assert.ErrorContains(t, err, "last screenshot selection")
}

func TestFromConfig(t *testing.T) {
	src, err := FromConfig(config.RegionConfig{Source: config.RegionConfigured, X: 5, Y: 6, Width: 7, Height: 8})
	require.NoError(t, err)
	r, err := src.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Region{X: 5, Y: 6, Width: 7, Height: 8}, r)

	src, err = FromConfig(config.RegionConfig{Source: config.RegionMacOS})
	require.NoError(t, err)
	assert.IsType(t, MacOS{}, src)

	_, err = FromConfig(config.RegionConfig{Source: "xrandr"})
	assert.Error(t, err)

	_, err = Fixed{}.Acquire(context.Background())
	assert.ErrorContains(t, err, "no area")
}
