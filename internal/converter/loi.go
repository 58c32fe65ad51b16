package converter

import (
	"fmt"

	"github.com/noah-isme/fieldsync/internal/models"
	"github.com/noah-isme/fieldsync/internal/remote"
	appErrors "github.com/noah-isme/fieldsync/pkg/errors"
)

const (
	fieldCustomID  = "customId"
	fieldCaption   = "caption"
	fieldLocation  = "location"
	fieldGeoJSON   = "geoJson"
	fieldLatitude  = "latitude"
	fieldLongitude = "longitude"
)

// LocationOfInterestToDocument maps a domain LOI to its remote document.
// Optional fields (custom id, caption, point, geometry) are omitted when
// absent rather than written as nulls.
func LocationOfInterestToDocument(loi *models.LocationOfInterest) remote.Document {
	fields := map[string]interface{}{
		fieldJobID:        loi.JobID,
		fieldCreated:      auditInfoToFields(loi.Created),
		fieldLastModified: auditInfoToFields(loi.LastModified),
	}
	if loi.CustomID != "" {
		fields[fieldCustomID] = loi.CustomID
	}
	if loi.Caption != "" {
		fields[fieldCaption] = loi.Caption
	}
	if loi.Point != nil {
		fields[fieldLocation] = map[string]interface{}{
			fieldLatitude:  loi.Point.Latitude,
			fieldLongitude: loi.Point.Longitude,
		}
	}
	if loi.GeoJSON != "" {
		fields[fieldGeoJSON] = loi.GeoJSON
	}
	return remote.Document{ID: loi.ID, Fields: fields}
}

// LocationOfInterestFromDocument rebuilds a domain LOI from its remote form.
// The declared job must resolve against the survey; an absent or empty
// geometry string converts to no geometry rather than an error.
func LocationOfInterestFromDocument(survey *models.Survey, doc remote.Document) (*models.LocationOfInterest, error) {
	jobID, ok := doc.Fields[fieldJobID].(string)
	if !ok || jobID == "" {
		return nil, appErrors.Clone(appErrors.ErrDataStore, fmt.Sprintf("location of interest %s: missing %s", doc.ID, fieldJobID))
	}
	if _, ok := survey.Job(jobID); !ok {
		return nil, appErrors.Clone(appErrors.ErrDataStore, fmt.Sprintf("location of interest %s: job %q not in survey %s", doc.ID, jobID, survey.ID))
	}

	loi := &models.LocationOfInterest{
		ID:       doc.ID,
		SurveyID: survey.ID,
		JobID:    jobID,
	}
	loi.CustomID, _ = doc.Fields[fieldCustomID].(string)
	loi.Caption, _ = doc.Fields[fieldCaption].(string)
	loi.GeoJSON, _ = doc.Fields[fieldGeoJSON].(string)

	if raw, ok := doc.Fields[fieldLocation].(map[string]interface{}); ok {
		latitude, latOK := raw[fieldLatitude].(float64)
		longitude, lngOK := raw[fieldLongitude].(float64)
		if !latOK || !lngOK {
			return nil, appErrors.Clone(appErrors.ErrDataStore, fmt.Sprintf("location of interest %s: malformed %s", doc.ID, fieldLocation))
		}
		loi.Point = &models.Point{Latitude: latitude, Longitude: longitude}
	}

	created := models.FallbackAuditInfo()
	if raw, ok := doc.Fields[fieldCreated]; ok {
		created = auditInfoFromFields(raw)
	}
	lastModified := created
	if raw, ok := doc.Fields[fieldLastModified]; ok {
		lastModified = auditInfoFromFields(raw)
	}
	loi.Created = created
	loi.LastModified = lastModified

	return loi, nil
}
