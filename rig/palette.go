package rig

// DebugPalette colors classified splats by capsule ordinal for visual QA.
var DebugPalette = [14][3]float32{
	{0.90, 0.10, 0.10},
	{0.10, 0.90, 0.10},
	{0.10, 0.10, 0.90},
	{0.90, 0.90, 0.10},
	{0.90, 0.10, 0.90},
	{0.10, 0.90, 0.90},
	{0.90, 0.50, 0.10},
	{0.50, 0.10, 0.90},
	{0.10, 0.50, 0.50},
	{0.70, 0.70, 0.70},
	{0.50, 0.30, 0.10},
	{0.30, 0.10, 0.30},
	{0.95, 0.75, 0.60},
	{0.25, 0.25, 0.25},
}

// PaletteColor returns the debug color for a capsule ordinal.
func PaletteColor(ordinal int) [3]float32 {
	return DebugPalette[ordinal%len(DebugPalette)]
}
