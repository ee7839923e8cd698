package studio

import "github.com/studioforge/studiorpc/internal/interfaces"

// DefaultTemplates returns the catalogue the peer seeds its store with
func DefaultTemplates() []interfaces.Template {
	return []interfaces.Template{
		{
			ID:          "tpl-event-poster",
			Name:        "Event Poster",
			Type:        "poster",
			Description: "Bold headline poster for concerts and meetups",
			Tags:        []string{"event", "music", "bold"},
			Width:       1080,
			Height:      1350,
			Elements: []interfaces.Element{
				{Type: "shape", X: 0, Y: 0, Width: 1080, Height: 1350, Color: "#1d1b2f"},
				{Type: "text", Content: "EVENT TITLE", X: 80, Y: 120, Width: 920, Height: 200, Color: "#ffd166"},
				{Type: "text", Content: "Date and venue", X: 80, Y: 1150, Width: 920, Height: 80, Color: "#ffffff"},
			},
		},
		{
			ID:          "tpl-instagram-post",
			Name:        "Instagram Post",
			Type:        "social",
			Description: "Square social post with a centred caption",
			Tags:        []string{"instagram", "social", "square"},
			Width:       1080,
			Height:      1080,
			Elements: []interfaces.Element{
				{Type: "image", X: 0, Y: 0, Width: 1080, Height: 1080},
				{Type: "text", Content: "Caption", X: 140, Y: 860, Width: 800, Height: 120, Color: "#ffffff"},
			},
		},
		{
			ID:          "tpl-story",
			Name:        "Story Announcement",
			Type:        "social",
			Description: "Vertical story layout for product announcements",
			Tags:        []string{"story", "social", "launch"},
			Width:       1080,
			Height:      1920,
			Elements: []interfaces.Element{
				{Type: "shape", X: 0, Y: 0, Width: 1080, Height: 1920, Color: "#06d6a0"},
				{Type: "text", Content: "New!", X: 100, Y: 300, Width: 880, Height: 240, Color: "#073b4c"},
			},
		},
		{
			ID:          "tpl-pitch-deck",
			Name:        "Pitch Deck Title",
			Type:        "presentation",
			Description: "Clean title slide for business presentations",
			Tags:        []string{"business", "slides", "minimal"},
			Width:       1920,
			Height:      1080,
			Elements: []interfaces.Element{
				{Type: "text", Content: "Company Name", X: 160, Y: 400, Width: 1600, Height: 180, Color: "#222222"},
				{Type: "text", Content: "Tagline", X: 160, Y: 600, Width: 1600, Height: 80, Color: "#666666"},
			},
		},
		{
			ID:          "tpl-minimal-logo",
			Name:        "Minimal Logo",
			Type:        "logo",
			Description: "Monogram logo on a plain background",
			Tags:        []string{"brand", "minimal", "monogram"},
			Width:       500,
			Height:      500,
			Elements: []interfaces.Element{
				{Type: "shape", X: 100, Y: 100, Width: 300, Height: 300, Color: "#118ab2"},
				{Type: "text", Content: "AB", X: 150, Y: 180, Width: 200, Height: 140, Color: "#ffffff"},
			},
		},
		{
			ID:          "tpl-sale-flyer",
			Name:        "Sale Flyer",
			Type:        "flyer",
			Description: "A4 flyer for seasonal sales and discounts",
			Tags:        []string{"sale", "retail", "discount"},
			Width:       2480,
			Height:      3508,
			Elements: []interfaces.Element{
				{Type: "text", Content: "SALE", X: 200, Y: 300, Width: 2080, Height: 800, Color: "#ef476f"},
				{Type: "text", Content: "Up to 50% off", X: 200, Y: 1300, Width: 2080, Height: 300, Color: "#222222"},
			},
		},
	}
}
