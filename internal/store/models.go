package store

import "time"

// Canonical section categories provisioned for every retrospective, in
// display order.
const (
	SectionWentWell      = "went_well"
	SectionImprove       = "improve"
	SectionKudos         = "kudos"
	SectionActionItems   = "action_items"
	SectionProductDesign = "product_design"
)

func SectionCategories() []string {
	return []string{
		SectionWentWell,
		SectionImprove,
		SectionKudos,
		SectionActionItems,
		SectionProductDesign,
	}
}

var sectionTitles = map[string]string{
	SectionWentWell:      "What Went Well",
	SectionImprove:       "What Could Be Improved",
	SectionKudos:         "Kudos & Recognition",
	SectionActionItems:   "Action Items",
	SectionProductDesign: "Product & Design Discussion",
}

// SectionTitle maps a category tag to its display title. Unknown
// categories fall back to the raw tag.
func SectionTitle(name string) string {
	if title, ok := sectionTitles[name]; ok {
		return title
	}
	return name
}

type Retro struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

type Section struct {
	ID      int64
	RetroID int64
	Name    string
}

type Item struct {
	ID        int64
	SectionID int64
	Content   string
	CreatedAt time.Time
	// Derived, not stored on the row.
	Upvotes     int
	ViewerVoted bool
}

type Upvote struct {
	ID        int64
	ItemID    int64
	VoterName string
	CreatedAt time.Time
}

type ActionItem struct {
	ID            int64
	SectionID     int64
	Description   string
	AssignedOwner string
	Priority      string
	CreatedAt     time.Time
}
