package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "FieldSync Agent API",
        "description": "Offline-first field data sync agent: mutation outbox, drain worker, survey schemas",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Mutations", "description": "Durable outbox of pending changes"},
        {"name": "Sync", "description": "Drain worker status and manual trigger"},
        {"name": "Surveys", "description": "Survey schema import and lookup"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/api/v1/mutations": {
            "get": {
                "tags": ["Mutations"],
                "summary": "List outbox records",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "submissionId", "in": "query", "type": "string"},
                    {"name": "loiId", "in": "query", "type": "string"},
                    {"name": "type", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Mutations"],
                "summary": "Record a local change in the outbox",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EnqueueMutationRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/mutations/{id}": {
            "get": {
                "tags": ["Mutations"],
                "summary": "Get one outbox record",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "delete": {
                "tags": ["Mutations"],
                "summary": "Discard an outbox record",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "204": {"description": "No content"}
                }
            }
        },
        "/api/v1/mutations/{id}/retry": {
            "post": {
                "tags": ["Mutations"],
                "summary": "Re-queue a FAILED record for another attempt",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Record is not FAILED"}
                }
            }
        },
        "/api/v1/sync/status": {
            "get": {
                "tags": ["Sync"],
                "summary": "Report outbox depth and worker progress",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/sync/run": {
            "post": {
                "tags": ["Sync"],
                "summary": "Trigger a one-shot drain pass",
                "responses": {
                    "202": {"description": "Accepted"}
                }
            }
        },
        "/api/v1/surveys/import": {
            "post": {
                "tags": ["Surveys"],
                "summary": "Import a survey definition (YAML body)",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/surveys/{id}": {
            "get": {
                "tags": ["Surveys"],
                "summary": "Get a survey definition",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/metrics": {
            "get": {
                "summary": "Prometheus metrics",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        }
    },
    "definitions": {
        "EnqueueMutationRequest": {
            "type": "object",
            "required": ["type", "surveyId", "locationOfInterestId", "jobId", "submissionId"],
            "properties": {
                "type": {"type": "string", "enum": ["CREATE", "UPDATE", "DELETE"]},
                "surveyId": {"type": "string"},
                "locationOfInterestId": {"type": "string"},
                "jobId": {"type": "string"},
                "submissionId": {"type": "string"},
                "deltas": {"type": "object"},
                "userId": {"type": "string"},
                "clientTimestamp": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
