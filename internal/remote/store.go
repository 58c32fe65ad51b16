package remote

import "context"

// Document is the wire shape of a remote entity: a stable id plus a flat
// field map. Absent optional fields are omitted from Fields entirely; the
// remote schema distinguishes "absent" from "null".
type Document struct {
	ID     string
	Fields map[string]interface{}
}

// Store is the remote document store boundary. Writes are keyed by a stable
// entity id and must be idempotent so the outbox can replay a mutation that
// was applied but never acknowledged.
type Store interface {
	PutLocationOfInterest(ctx context.Context, surveyID string, doc Document) error
	GetLocationOfInterest(ctx context.Context, surveyID, id string) (Document, error)

	PutSubmission(ctx context.Context, surveyID string, doc Document) error
	GetSubmission(ctx context.Context, surveyID, id string) (Document, error)

	// ApplySubmissionDeltas merges changed fields into an existing
	// submission document, removing the cleared ones. Applying the same
	// deltas twice converges on the same document.
	ApplySubmissionDeltas(ctx context.Context, surveyID, id string, set map[string]interface{}, clear []string) error

	DeleteSubmission(ctx context.Context, surveyID, id string) error
}
