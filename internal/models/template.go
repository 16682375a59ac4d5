package models

// TemplateID names an entry of the alert template table
type TemplateID string

const (
	// Green
	TemplateDepartedDepot  TemplateID = "departed_depot"
	TemplateDepartedSchool TemplateID = "departed_school"
	TemplateRouteStarted   TemplateID = "route_started"

	// Yellow
	TemplateMinorDelayTraffic TemplateID = "minor_delay_traffic"
	TemplateRunningEarly      TemplateID = "running_early"
	TemplateWeatherDelay      TemplateID = "weather_delay"

	// Orange
	TemplateMechanicalIssue TemplateID = "mechanical_issue"
	TemplateRouteChange     TemplateID = "route_change"
	TemplateSubstituteBus   TemplateID = "substitute_bus"

	// Red
	TemplateEmergency       TemplateID = "emergency"
	TemplateUnsafeSituation TemplateID = "unsafe_situation"
	TemplateContactAdmin    TemplateID = "contact_admin"

	// Stamped on free-form admin broadcasts; not part of the lookup table
	TemplateAdminBroadcast TemplateID = "admin_broadcast"
)

type Template struct {
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Severity Severity `json:"severity"`
}

// FallbackTemplate is used for template ids missing from the table
var FallbackTemplate = Template{
	Title:    "Driver Alert",
	Body:     "A driver alert was sent.",
	Severity: SeverityYellow,
}

var templates = map[TemplateID]Template{
	TemplateDepartedDepot:  {Title: "Departed Depot", Body: "The vehicle has departed the depot.", Severity: SeverityGreen},
	TemplateDepartedSchool: {Title: "Departed School", Body: "The vehicle has departed the school/terminal.", Severity: SeverityGreen},
	TemplateRouteStarted:   {Title: "Route Started", Body: "The route has started.", Severity: SeverityGreen},

	TemplateMinorDelayTraffic: {Title: "Minor Delay", Body: "Minor delay due to traffic.", Severity: SeverityYellow},
	TemplateRunningEarly:      {Title: "Running Early", Body: "The vehicle is running early.", Severity: SeverityYellow},
	TemplateWeatherDelay:      {Title: "Weather Delay", Body: "Delay due to weather conditions.", Severity: SeverityYellow},

	TemplateMechanicalIssue: {Title: "Mechanical Issue", Body: "Mechanical issue reported. Updates to follow.", Severity: SeverityOrange},
	TemplateRouteChange:     {Title: "Route Change", Body: "Route has changed. Please check updates.", Severity: SeverityOrange},
	TemplateSubstituteBus:   {Title: "Substitute Vehicle", Body: "A substitute vehicle is in service.", Severity: SeverityOrange},

	TemplateEmergency:       {Title: "Emergency", Body: "Emergency reported. Follow instructions.", Severity: SeverityRed},
	TemplateUnsafeSituation: {Title: "Unsafe Situation", Body: "Unsafe situation reported. Updates to follow.", Severity: SeverityRed},
	TemplateContactAdmin:    {Title: "Contact Admin", Body: "Please contact administration for details.", Severity: SeverityRed},
}

// LookupTemplate returns the template for id and whether it was found.
// Unknown ids yield FallbackTemplate.
func LookupTemplate(id TemplateID) (Template, bool) {
	t, ok := templates[id]
	if !ok {
		return FallbackTemplate, false
	}
	return t, true
}

// TemplateIDs lists every id of the lookup table
func TemplateIDs() []TemplateID {
	return []TemplateID{
		TemplateDepartedDepot, TemplateDepartedSchool, TemplateRouteStarted,
		TemplateMinorDelayTraffic, TemplateRunningEarly, TemplateWeatherDelay,
		TemplateMechanicalIssue, TemplateRouteChange, TemplateSubstituteBus,
		TemplateEmergency, TemplateUnsafeSituation, TemplateContactAdmin,
	}
}

// roadTemplates are the templates that describe road conditions to drivers
var roadTemplates = map[TemplateID]bool{
	TemplateMinorDelayTraffic: true,
	TemplateWeatherDelay:      true,
	TemplateRouteChange:       true,
	TemplateSubstituteBus:     true,
	TemplateEmergency:         true,
	TemplateUnsafeSituation:   true,
}

// IsRoadTemplate reports whether id describes a road condition
func IsRoadTemplate(id TemplateID) bool {
	return roadTemplates[id]
}
