package domain

// RoomLabel is one of the canonical room categories a photo can be filed
// under. The zero-ish catch-all is RoomOther.
type RoomLabel string

const (
	RoomLivingRoom RoomLabel = "Living Room"
	RoomKitchen    RoomLabel = "Kitchen"
	RoomBedroom    RoomLabel = "Bedroom"
	RoomBathroom   RoomLabel = "Bathroom"
	RoomDiningRoom RoomLabel = "Dining Room"
	RoomExterior   RoomLabel = "Exterior"
	RoomBackyard   RoomLabel = "Backyard"
	RoomOther      RoomLabel = "Other"
)

// RoomLabels lists every canonical label in match-priority order. The order
// is part of the classification contract: when a model response mentions more
// than one label, the earliest entry here wins.
var RoomLabels = []RoomLabel{
	RoomLivingRoom,
	RoomKitchen,
	RoomBedroom,
	RoomBathroom,
	RoomDiningRoom,
	RoomExterior,
	RoomBackyard,
	RoomOther,
}
