package models

// Point is a WGS84 coordinate.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// LocationOfInterest is the parent entity submissions attach to.
type LocationOfInterest struct {
	ID           string    `json:"id"`
	SurveyID     string    `json:"surveyId"`
	JobID        string    `json:"jobId"`
	CustomID     string    `json:"customId,omitempty"`
	Caption      string    `json:"caption,omitempty"`
	Point        *Point    `json:"point,omitempty"`
	GeoJSON      string    `json:"geoJson,omitempty"`
	Created      AuditInfo `json:"created"`
	LastModified AuditInfo `json:"lastModified"`
}

// Submission is a single survey response for a location of interest.
type Submission struct {
	ID                   string           `json:"id"`
	SurveyID             string           `json:"surveyId"`
	LocationOfInterestID string           `json:"locationOfInterestId"`
	JobID                string           `json:"jobId"`
	Data                 map[string]Value `json:"data"`
	Created              AuditInfo        `json:"created"`
	LastModified         AuditInfo        `json:"lastModified"`
}

// Pagination carries list paging metadata in API responses.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	TotalItems int `json:"totalItems"`
}
