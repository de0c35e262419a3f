package aurorawatch

// Visibility is whether an aurora can be seen from a country at a level.
type Visibility struct {
	Camera   bool
	NakedEye bool
}

// Country names as stored in the country table.
const (
	Scotland        = "Scotland"
	England         = "England"
	Wales           = "Wales"
	NorthernIreland = "Northern Ireland"
)

var visibility = map[Level]map[string]Visibility{
	LevelGreen: {
		Scotland:        {},
		England:         {},
		Wales:           {},
		NorthernIreland: {},
	},
	LevelYellow: {
		Scotland:        {Camera: true, NakedEye: true},
		England:         {Camera: true},
		Wales:           {},
		NorthernIreland: {Camera: true},
	},
	LevelAmber: {
		Scotland:        {Camera: true, NakedEye: true},
		England:         {Camera: true, NakedEye: true},
		Wales:           {Camera: true},
		NorthernIreland: {Camera: true, NakedEye: true},
	},
	LevelRed: {
		Scotland:        {Camera: true, NakedEye: true},
		England:         {Camera: true, NakedEye: true},
		Wales:           {Camera: true, NakedEye: true},
		NorthernIreland: {Camera: true, NakedEye: true},
	},
}

// VisibilityIn returns the visibility of an aurora from country at level.
// ok is false for countries the alert levels say nothing about.
func VisibilityIn(level Level, country string) (v Visibility, ok bool) {
	v, ok = visibility[level][country]
	return v, ok
}
