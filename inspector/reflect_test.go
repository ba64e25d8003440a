package inspector

import (
	"math"
	"testing"

	"github.com/pthm-cable/flock/components"
	"github.com/pthm-cable/flock/systems"
)

func TestParseTag(t *testing.T) {
	tests := []struct {
		tag    string
		widget Widget
		opts   map[string]string
	}{
		{"", WidgetAuto, nil},
		{"bar", WidgetBar, nil},
		{"bar,max:6", WidgetBar, map[string]string{"max": "6"}},
		{"label, fmt:%.1f", WidgetLabel, map[string]string{"fmt": "%.1f"}},
		{"skip", WidgetSkip, nil},
		{"sparkline", WidgetAuto, nil},
	}

	for _, tt := range tests {
		w, opts := ParseTag(tt.tag)
		if w != tt.widget {
			t.Errorf("ParseTag(%q) widget = %v, want %v", tt.tag, w, tt.widget)
		}
		if len(opts) != len(tt.opts) {
			t.Errorf("ParseTag(%q) options = %v, want %v", tt.tag, opts, tt.opts)
			continue
		}
		for k, v := range tt.opts {
			if opts[k] != v {
				t.Errorf("ParseTag(%q) option %s = %q, want %q", tt.tag, k, opts[k], v)
			}
		}
	}
}

func TestExtractFields(t *testing.T) {
	type sample struct {
		Speed  float32 `inspect:"bar,max:6"`
		Hidden int     `inspect:"skip"`
		Alive  bool
		count  int
	}

	fields := ExtractFields(&sample{Speed: 3, Alive: true, count: 1})
	if len(fields) != 2 {
		t.Fatalf("got %d fields, want 2: %+v", len(fields), fields)
	}
	if fields[0].Name != "Speed" || fields[0].Widget != WidgetBar || fields[0].Options["max"] != "6" {
		t.Errorf("unexpected speed field: %+v", fields[0])
	}
	if fields[1].Name != "Alive" || fields[1].Widget != WidgetBool {
		t.Errorf("bool field should auto-detect: %+v", fields[1])
	}

	if ExtractFields(42) != nil {
		t.Error("non-struct should yield no fields")
	}
	if ExtractFields((*sample)(nil)) != nil {
		t.Error("nil pointer should yield no fields")
	}
}

func TestExtractFields_Components(t *testing.T) {
	fields := ExtractFields(components.Position{X: 12.345, Y: -3})
	if len(fields) != 2 {
		t.Fatalf("got %d fields, want 2", len(fields))
	}
	if got := FormatValue(fields[0].Value, fields[0].Options["fmt"]); got != "12.3" {
		t.Errorf("formatted X = %q, want 12.3", got)
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		value any
		fmt   string
		want  string
	}{
		{float32(1.5), "", "1.50"},
		{2.25, "", "2.25"},
		{int32(7), "", "7"},
		{"none", "", "none"},
		{float32(3.14159), "%.1f", "3.1"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.value, tt.fmt); got != tt.want {
			t.Errorf("FormatValue(%v, %q) = %q, want %q", tt.value, tt.fmt, got, tt.want)
		}
	}
}

func TestGetMax(t *testing.T) {
	if GetMax(nil) != 1 {
		t.Error("default max should be 1")
	}
	if GetMax(map[string]string{"max": "6"}) != 6 {
		t.Error("max option not parsed")
	}
	if GetMax(map[string]string{"max": "abc"}) != 1 {
		t.Error("bad max should fall back to 1")
	}
}

func TestPickNearest(t *testing.T) {
	nan := float32(math.NaN())
	boids := []systems.Boid{
		{X: 0, Y: 0},
		{X: 5, Y: 0},
		{X: nan, Y: nan},
		{X: 100, Y: 100},
	}

	if got := PickNearest(boids, 4, 0, 3); got != 1 {
		t.Errorf("PickNearest near (4,0) = %d, want 1", got)
	}
	if got := PickNearest(boids, 1, 0, 3); got != 0 {
		t.Errorf("PickNearest near (1,0) = %d, want 0", got)
	}
	if got := PickNearest(boids, 50, 50, 3); got != -1 {
		t.Errorf("PickNearest in empty space = %d, want -1", got)
	}
	if got := PickNearest(nil, 0, 0, 3); got != -1 {
		t.Errorf("PickNearest on empty flock = %d, want -1", got)
	}
}

func TestInspector_Update(t *testing.T) {
	p := systems.Params{
		VisualRange:    40,
		ProtectedRange: 8,
		SpeedMin:       3,
		SpeedMax:       6,
		Edge:           250,
		HoldZeroSpeed:  true,
	}
	boids := []systems.Boid{
		{X: 0, Y: 0, VX: 4, VY: 0},
		{X: 5, Y: 0, VX: 4, VY: 0},
		{X: 30, Y: 0, VX: 4, VY: 0},
	}

	ins := NewInspector(800, 600)
	if _, ok := ins.Selected(); ok {
		t.Fatal("new inspector should have no selection")
	}

	ins.Select(0)
	ins.Update(boids, &p)
	if ins.detail.Neighbors != 2 || ins.detail.Close != 1 {
		t.Errorf("neighbors=%d close=%d, want 2 and 1", ins.detail.Neighbors, ins.detail.Close)
	}
	if ins.detail.Speed != 4 || ins.detail.Heading != 0 || !ins.detail.Finite {
		t.Errorf("unexpected detail: %+v", ins.detail)
	}
	if ins.pos.X != 0 || ins.vel.X != 4 {
		t.Errorf("cached components not refreshed: %+v %+v", ins.pos, ins.vel)
	}

	ins.Select(10)
	ins.Update(boids, &p)
	if _, ok := ins.Selected(); ok {
		t.Error("selection past the end should be dropped")
	}
}
