package vision

import (
	"context"
	"fmt"
	"strings"

	"stagesmart/internal/domain"
	"stagesmart/internal/imaging"
)

// classifyInstruction pins the model to the closed vocabulary; Canonical
// still tolerates chatty answers around the label.
const classifyInstruction = "What type of room is this? Reply with ONLY ONE of: " +
	"Living Room, Kitchen, Bedroom, Bathroom, Dining Room, Exterior, Backyard, Other"

// Describer is the vision collaborator: it looks at an image and returns
// unconstrained free text.
type Describer interface {
	Describe(ctx context.Context, image imaging.Payload, instruction string) (string, error)
}

// Classifier turns a photo into one of the canonical room labels.
type Classifier struct {
	describer Describer
}

func NewClassifier(describer Describer) *Classifier {
	return &Classifier{describer: describer}
}

// Classify asks the vision model what room the photo shows and canonicalizes
// the answer. A provider failure propagates; an unparseable answer does not,
// it just files the photo under Other.
func (c *Classifier) Classify(ctx context.Context, image imaging.Payload) (domain.RoomLabel, error) {
	if c == nil || c.describer == nil {
		return domain.RoomOther, fmt.Errorf("classifier not configured")
	}
	raw, err := c.describer.Describe(ctx, image, classifyInstruction)
	if err != nil {
		return domain.RoomOther, err
	}
	return Canonical(raw), nil
}

// Canonical maps free text to a canonical room label. The scan is a
// deliberately lenient, order-dependent substring match: the raw text only
// has to contain a label (exact case), and earlier entries of
// domain.RoomLabels win when several labels occur.
func Canonical(raw string) domain.RoomLabel {
	for _, label := range domain.RoomLabels {
		if strings.Contains(raw, string(label)) {
			return label
		}
	}
	return domain.RoomOther
}
