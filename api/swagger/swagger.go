package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Substitution API",
        "description": "Substitute teacher assignment and fairness ledger",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Substitution", "description": "Day schedules and substitution plans"},
        {"name": "Ledger", "description": "Debit/credit fairness ledger"}
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
                    "200": {"description": "Ledger loaded"},
                    "503": {"description": "Ledger not loaded"}
                }
            }
        },
        "/api/v1/days": {
            "get": {
                "tags": ["Substitution"],
                "summary": "List selectable days",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/days/{day}/schedule": {
            "get": {
                "tags": ["Substitution"],
                "summary": "Parsed staff schedule of a day",
                "parameters": [
                    {"name": "day", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown day", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Malformed schedule sheet", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Source unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/plans": {
            "post": {
                "tags": ["Substitution"],
                "summary": "Build a substitution plan",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreatePlanRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/plans/{id}": {
            "get": {
                "tags": ["Substitution"],
                "summary": "Get an unconfirmed plan",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Plan not found or expired", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Substitution"],
                "summary": "Discard an unconfirmed plan",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Discarded"},
                    "404": {"description": "Plan not found or expired", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/plans/{id}/reshuffle": {
            "post": {
                "tags": ["Substitution"],
                "summary": "Recompute a plan with another seed",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": false, "schema": {"$ref": "#/definitions/ReshufflePlanRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/plans/{id}/slots": {
            "put": {
                "tags": ["Substitution"],
                "summary": "Replace the substitute of one slot",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/OverrideSlotRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Substitute not eligible", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Substitute already covers the session", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/plans/{id}/confirm": {
            "post": {
                "tags": ["Substitution"],
                "summary": "Confirm a plan and settle the ledger",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Settled; warnings carry LEDGER_WRITE_FAILED when the write-back failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Ledger changed since the plan was built", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/ledger": {
            "get": {
                "tags": ["Ledger"],
                "summary": "Current ledger with net balances",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/ledger/sync": {
            "post": {
                "tags": ["Ledger"],
                "summary": "Write the in-memory ledger back to its source",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Source unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/ledger/export": {
            "get": {
                "tags": ["Ledger"],
                "summary": "Download the ledger report",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Report file"},
                    "400": {"description": "Unsupported format", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CreatePlanRequest": {
            "type": "object",
            "properties": {
                "day": {"type": "string"},
                "absentTeachers": {"type": "array", "items": {"type": "string"}},
                "seed": {"type": "integer", "format": "int64"}
            },
            "required": ["day", "absentTeachers"]
        },
        "ReshufflePlanRequest": {
            "type": "object",
            "properties": {
                "seed": {"type": "integer", "format": "int64"}
            }
        },
        "OverrideSlotRequest": {
            "type": "object",
            "properties": {
                "absentTeacher": {"type": "string"},
                "session": {"type": "string"},
                "substitute": {"type": "string"}
            },
            "required": ["absentTeacher", "session", "substitute"]
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
                "warnings": {"type": "array", "items": {"$ref": "#/definitions/APIError"}},
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
