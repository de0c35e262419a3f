package astronomy

// Observer is a position and date on Earth from which a chart is drawn.
type Observer struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Date      string  `json:"date"` // YYYY-MM-DD
}

type starChartRequest struct {
	Style    string        `json:"style,omitempty"`
	Observer Observer      `json:"observer"`
	View     starChartView `json:"view"`
}

type starChartView struct {
	Type       string `json:"type"`
	Parameters any    `json:"parameters"`
}

type constellationParams struct {
	Constellation string `json:"constellation"`
}

type areaParams struct {
	Position struct {
		Equatorial struct {
			RightAscension float64 `json:"rightAscension"`
			Declination    float64 `json:"declination"`
		} `json:"equatorial"`
	} `json:"position"`
}

type moonPhaseRequest struct {
	Format   string         `json:"format"`
	Style    moonPhaseStyle `json:"style"`
	Observer Observer       `json:"observer"`
	View     moonPhaseView  `json:"view"`
}

type moonPhaseStyle struct {
	MoonStyle       string `json:"moonStyle"`
	BackgroundStyle string `json:"backgroundStyle"`
	BackgroundColor string `json:"backgroundColor"`
	HeadingColor    string `json:"headingColor"`
	TextColor       string `json:"textColor"`
}

type moonPhaseView struct {
	Type        string `json:"type"`
	Orientation string `json:"orientation"`
}

// studioResponse is the envelope returned by the studio endpoints.
type studioResponse struct {
	Data *struct {
		ImageURL string `json:"imageUrl"`
	} `json:"data"`
}

func newConstellationRequest(code string, obs Observer) starChartRequest {
	return starChartRequest{
		Style:    "default",
		Observer: obs,
		View: starChartView{
			Type:       "constellation",
			Parameters: constellationParams{Constellation: code},
		},
	}
}

// newAreaRequest centres the chart on the observer's zenith declination.
func newAreaRequest(obs Observer) starChartRequest {
	var p areaParams
	p.Position.Equatorial.RightAscension = 0
	p.Position.Equatorial.Declination = obs.Latitude
	return starChartRequest{
		Observer: obs,
		View: starChartView{
			Type:       "area",
			Parameters: p,
		},
	}
}

func newMoonPhaseRequest(obs Observer) moonPhaseRequest {
	return moonPhaseRequest{
		Format: "png",
		Style: moonPhaseStyle{
			MoonStyle:       "sketch",
			BackgroundStyle: "stars",
			BackgroundColor: "red",
			HeadingColor:    "white",
			TextColor:       "red",
		},
		Observer: obs,
		View: moonPhaseView{
			Type:        "portrait-simple",
			Orientation: "south-up",
		},
	}
}
