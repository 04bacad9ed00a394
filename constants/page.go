package constants

// PageLabel is the classification label of a source page.
type PageLabel string

const (
	LabelImagePanel PageLabel = "image_panel"
	LabelTextOnly   PageLabel = "text_only"
)

// Position is the role of a photograph on a panel page.
type Position string

const (
	Before  Position = "before"
	During1 Position = "during1"
	During2 Position = "during2"
	After   Position = "after"
)

// Positions lists the four roles in reading order (top-left, top-right, bottom-left, bottom-right).
var Positions = []Position{Before, During1, During2, After}

var captions = map[Position]string{
	Before:  "Fotografía 01 (antes).-",
	During1: "Fotografía 02 (durante).-",
	During2: "Fotografía 03 (durante).-",
	After:   "Fotografía 04 (después).-",
}

// Caption returns the printed caption for a photo position.
func (p Position) Caption() string {
	return captions[p]
}

// FileName is the artifact name used for the position inside a page directory.
func (p Position) FileName() string {
	return string(p) + ".png"
}
