package entity

// CapturePreset describes a guided capture checklist. The checklist length
// sets the number of guided steps; EstimatedPhotos is advisory.
type CapturePreset struct {
	ID              string   `yaml:"id" json:"id"`
	Name            string   `yaml:"name" json:"name"`
	Description     string   `yaml:"description" json:"description"`
	Checklist       []string `yaml:"checklist" json:"checklist"`
	ExampleShots    []string `yaml:"example_shots" json:"example_shots"`
	EstimatedPhotos int      `yaml:"estimated_photos" json:"estimated_photos"`
}

// Steps returns the number of guided capture steps.
func (p CapturePreset) Steps() int {
	return len(p.Checklist)
}

// Instruction returns the checklist text for step n, or "" when out of range.
func (p CapturePreset) Instruction(n int) string {
	if n < 0 || n >= len(p.Checklist) {
		return ""
	}
	return p.Checklist[n]
}

// DefaultPresets returns the built-in preset catalog.
func DefaultPresets() []CapturePreset {
	return []CapturePreset{
		{
			ID:          "consumer-unit",
			Name:        "Consumer Unit Inspection",
			Description: "Board, protective devices, main switch and terminations.",
			Checklist: []string{
				"Whole consumer unit with the cover on, including labels",
				"Cover removed: protective device row and busbar",
				"Main switch and incoming meter tails",
				"Earth and neutral bars with conductor terminations",
			},
			ExampleShots: []string{
				"Front of board square-on, arm's length",
				"Close-up of MCB/RCBO ratings",
				"Tails entering the board",
			},
			EstimatedPhotos: 4,
		},
		{
			ID:          "socket-outlets",
			Name:        "Sockets & Accessories",
			Description: "Damage, overheating and polarity clues at accessories.",
			Checklist: []string{
				"Accessory face-on showing the whole plate",
				"Close-up of any scorching, cracks or missing screws",
				"Back box and terminations with the plate removed",
			},
			ExampleShots: []string{
				"Burn marks around pins",
				"Loose faceplate",
			},
			EstimatedPhotos: 3,
		},
		{
			ID:          "earthing-bonding",
			Name:        "Earthing & Bonding",
			Description: "Main earthing terminal and protective bonding connections.",
			Checklist: []string{
				"Main earthing terminal and earthing conductor",
				"Main protective bonding at the gas installation pipe",
				"Main protective bonding at the water installation pipe",
			},
			ExampleShots: []string{
				"BS 951 clamp with label",
				"Conductor size marking",
			},
			EstimatedPhotos: 2,
		},
		{
			ID:          "external",
			Name:        "External Installation",
			Description: "Outdoor circuits, enclosures and cable routes.",
			Checklist: []string{
				"Outdoor enclosure or socket with its IP rating visible",
				"Cable route and fixings",
				"Cable entry and glands",
				"Supplementary RCD protection",
			},
			ExampleShots: []string{
				"Weatherproof lid closed and open",
			},
			EstimatedPhotos: 3,
		},
	}
}

// FindPreset looks a preset up by ID.
func FindPreset(presets []CapturePreset, id string) (CapturePreset, bool) {
	for _, p := range presets {
		if p.ID == id {
			return p, true
		}
	}
	return CapturePreset{}, false
}
