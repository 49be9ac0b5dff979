package staging

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"stagesmart/internal/domain"
)

// Style enumerates the staging looks a caller can pick.
type Style string

const (
	StyleModern      Style = "Modern"
	StyleTraditional Style = "Traditional"
	StyleMidCentury  Style = "Mid-Century"
	StyleFarmhouse   Style = "Farmhouse"
	StyleTwilight    Style = "Twilight"
)

// Updates are optional light-renovation clauses added to the instruction.
type Updates struct {
	Paint    string
	Counters string
	Floors   string
}

// Instruction is the structured form of a staging request. When Custom is
// set it is used verbatim and everything else is ignored.
type Instruction struct {
	Style    Style
	Room     domain.RoomLabel
	RoomName string // free-form override when no canonical label is known
	Updates  Updates
	Custom   string
}

var titleCaser = cases.Title(language.AmericanEnglish)

// BuildPrompt renders the instruction into the prompt text sent to the
// engines. Twilight conversions of outdoor shots replace the furniture
// instruction entirely; staging must keep the architecture untouched.
func BuildPrompt(instr Instruction) string {
	if custom := strings.TrimSpace(instr.Custom); custom != "" {
		return custom
	}

	style := instr.Style
	if style == "" {
		style = StyleModern
	}
	room := strings.TrimSpace(string(instr.Room))
	if room == "" || instr.Room == domain.RoomOther {
		if name := strings.TrimSpace(instr.RoomName); name != "" {
			room = titleCaser.String(strings.ToLower(name))
		}
	}
	if room == "" {
		room = "room"
	}

	var b strings.Builder
	outdoor := instr.Room == domain.RoomExterior || instr.Room == domain.RoomBackyard
	if style == StyleTwilight && outdoor {
		b.WriteString("Day to realistic twilight exterior, green grass, warm lights, MLS photo")
	} else {
		b.WriteString("Photoreal ")
		b.WriteString(strings.ToLower(string(style)))
		b.WriteString(" virtual staging real estate ")
		b.WriteString(room)
		b.WriteString(", add furniture keeping architecture exact, MLS photo.")
	}

	var updates []string
	if paint := strings.TrimSpace(instr.Updates.Paint); paint != "" {
		updates = append(updates, strings.ToLower(paint)+" paint")
	}
	if counters := strings.TrimSpace(instr.Updates.Counters); counters != "" {
		updates = append(updates, strings.ToLower(counters)+" counters")
	}
	if floors := strings.TrimSpace(instr.Updates.Floors); floors != "" {
		updates = append(updates, strings.ToLower(floors)+" floors")
	}
	if len(updates) > 0 {
		b.WriteString(" + ")
		b.WriteString(strings.Join(updates, " + "))
		b.WriteString(".")
	}

	return b.String()
}
