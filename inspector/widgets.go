package inspector

import (
	"fmt"

	"github.com/chewxy/math32"
	rl "github.com/gen2brain/raylib-go/raylib"
)

// Widget colors
var (
	ColorBarBg       = rl.Color{R: 40, G: 40, B: 40, A: 255}
	ColorBarFill     = rl.Color{R: 100, G: 180, B: 100, A: 255}
	ColorBarLow      = rl.Color{R: 180, G: 80, B: 80, A: 255}
	ColorText        = rl.Color{R: 220, G: 220, B: 220, A: 255}
	ColorTextDim     = rl.Color{R: 150, G: 150, B: 150, A: 255}
	ColorAngleBg     = rl.Color{R: 50, G: 50, B: 60, A: 255}
	ColorAngleNeedle = rl.Color{R: 255, G: 200, B: 100, A: 255}
	ColorBoolOn      = rl.Color{R: 100, G: 200, B: 100, A: 255}
	ColorBoolOff     = rl.Color{R: 80, G: 80, B: 80, A: 255}
)

const labelWidth = 90

// DrawLabel renders "name: value" and returns the height used.
func DrawLabel(x, y int32, name string, value any, options map[string]string) int32 {
	rl.DrawText(name, x, y, 14, ColorTextDim)
	rl.DrawText(FormatValue(value, options["fmt"]), x+labelWidth, y, 14, ColorText)
	return 18
}

// DrawBar renders a horizontal bar scaled by the max option.
func DrawBar(x, y int32, name string, value float32, options map[string]string) int32 {
	ratio := value / GetMax(options)
	ratio = max(0, min(1, ratio))

	const barWidth, barHeight = 120, 14
	barX := x + labelWidth

	rl.DrawText(name, x, y, 14, ColorTextDim)
	rl.DrawRectangle(barX, y, barWidth, barHeight, ColorBarBg)

	fill := ColorBarFill
	if ratio < 0.3 {
		fill = ColorBarLow
	}
	rl.DrawRectangle(barX, y, int32(barWidth*ratio), barHeight, fill)
	rl.DrawText(FormatValue(value, options["fmt"]), barX+barWidth+5, y, 14, ColorTextDim)
	return 18
}

// DrawAngle renders a compass needle for an angle in radians. Zero points
// along +x, positive angles turn clockwise on screen.
func DrawAngle(x, y int32, name string, radians float32) int32 {
	const size = 40
	cx := float32(x + labelWidth + size/2)
	cy := float32(y + size/2)

	rl.DrawText(name, x, y+size/2-7, 14, ColorTextDim)
	rl.DrawCircle(int32(cx), int32(cy), size/2, ColorAngleBg)
	rl.DrawCircleLines(int32(cx), int32(cy), size/2, ColorTextDim)

	needle := float32(size/2 - 4)
	end := rl.Vector2{X: cx + needle*math32.Cos(radians), Y: cy + needle*math32.Sin(radians)}
	rl.DrawLineEx(rl.Vector2{X: cx, Y: cy}, end, 2, ColorAngleNeedle)

	deg := radians * 180 / math32.Pi
	rl.DrawText(fmt.Sprintf("%.0f deg", deg), x+labelWidth+size+5, y+size/2-7, 14, ColorTextDim)
	return size + 4
}

// DrawBool renders an on/off indicator.
func DrawBool(x, y int32, name string, value bool) int32 {
	const size = 14
	rl.DrawText(name, x, y, 14, ColorTextDim)

	color, text := ColorBoolOff, "no"
	if value {
		color, text = ColorBoolOn, "yes"
	}
	rl.DrawRectangle(x+labelWidth, y, size, size, color)
	rl.DrawText(text, x+labelWidth+size+5, y, 14, color)
	return 18
}

// DrawField renders a field with its widget, falling back to a label when
// the value does not suit the widget.
func DrawField(x, y int32, f Field) int32 {
	switch f.Widget {
	case WidgetBar:
		if v, ok := GetFloatValue(f.Value); ok {
			return DrawBar(x, y, f.Name, v, f.Options)
		}
	case WidgetAngle:
		if v, ok := GetFloatValue(f.Value); ok {
			return DrawAngle(x, y, f.Name, v)
		}
	case WidgetBool:
		if v, ok := f.Value.(bool); ok {
			return DrawBool(x, y, f.Name, v)
		}
	}
	return DrawLabel(x, y, f.Name, f.Value, f.Options)
}

// DrawFields renders every field of v and returns the total height used.
func DrawFields(x, y int32, v any) int32 {
	start := y
	for _, f := range ExtractFields(v) {
		y += DrawField(x, y, f)
	}
	return y - start
}
