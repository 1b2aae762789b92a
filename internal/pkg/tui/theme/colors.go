package theme

import "github.com/charmbracelet/lipgloss"

// Palette used by the mtrack CLI.
var (
	Teal       = lipgloss.Color("#14B8A6")
	BrightTeal = lipgloss.Color("#2DD4BF")

	White     = lipgloss.Color("#FFFFFF")
	LightGray = lipgloss.Color("#9CA3AF")
	DimGray   = lipgloss.Color("#6B7280")
	DarkGray  = lipgloss.Color("#374151")

	Success = lipgloss.Color("#22C55E")
	Warning = lipgloss.Color("#F59E0B")
	Error   = lipgloss.Color("#EF4444")
	Info    = lipgloss.Color("#3B82F6")
)

// categoryColors cycles through these for category bars.
var categoryColors = []lipgloss.Color{
	lipgloss.Color("#14B8A6"),
	lipgloss.Color("#3B82F6"),
	lipgloss.Color("#F97316"),
	lipgloss.Color("#A855F7"),
	lipgloss.Color("#EAB308"),
	lipgloss.Color("#EC4899"),
}

// CategoryColor returns a stable color for the i-th category of a listing.
func CategoryColor(i int) lipgloss.Color {
	return categoryColors[i%len(categoryColors)]
}
