package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Dress Code Violation API",
        "description": "Campus dress-code violation tracking: lifecycle, live dashboards and reporting",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header",
            "description": "Bearer access token"
        }
    },
    "tags": [
        {"name": "auth", "description": "Authentication and sessions"},
        {"name": "violations", "description": "Violation records, evidence and exports"},
        {"name": "events", "description": "Live dashboard event streams"},
        {"name": "users", "description": "Account management (superuser only)"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["auth"],
                "summary": "Authenticate an account",
                "parameters": [
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "Access and refresh tokens", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["auth"],
                "summary": "Rotate a refresh token",
                "responses": {
                    "200": {"description": "New token pair"},
                    "401": {"description": "Expired or revoked token"}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["auth"],
                "summary": "Revoke all sessions for the caller",
                "security": [{"BearerAuth": []}],
                "responses": {"204": {"description": "Sessions revoked"}}
            }
        },
        "/auth/change-password": {
            "post": {
                "tags": ["auth"],
                "summary": "Change the caller's password",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "Password updated"},
                    "400": {"description": "Validation failure"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["auth"],
                "summary": "Describe the authenticated account",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Account info"}}
            }
        },
        "/violations": {
            "post": {
                "tags": ["violations"],
                "summary": "Log a dress-code violation",
                "description": "Records a new pending violation. Accepts JSON or multipart form with a photo under \"image\".",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Created record with offense ordinal", "schema": {"$ref": "#/definitions/ViolationRecord"}},
                    "400": {"description": "Validation failure"}
                }
            },
            "get": {
                "tags": ["violations"],
                "summary": "List violations",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "date_from", "in": "query", "type": "string"},
                    {"name": "date_to", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "Paged listing, newest first"}}
            }
        },
        "/violations/today": {
            "get": {
                "tags": ["violations"],
                "summary": "List today's violations",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Records from the current campus day"}}
            }
        },
        "/violations/stats": {
            "get": {
                "tags": ["violations"],
                "summary": "Violation counters",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Totals by status, soft-deleted excluded"}}
            }
        },
        "/violations/analytics": {
            "get": {
                "tags": ["violations"],
                "summary": "Violation breakdown",
                "description": "Totals plus per-day and per-type counts, soft-deleted excluded.",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Aggregated breakdown", "schema": {"$ref": "#/definitions/ViolationAnalytics"}}}
            }
        },
        "/violations/export": {
            "get": {
                "tags": ["violations"],
                "summary": "Export violations",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "required": true, "description": "csv or pdf"}
                ],
                "responses": {"200": {"description": "File download"}}
            }
        },
        "/violations/evidence/latest": {
            "get": {
                "tags": ["violations"],
                "summary": "Latest captured photo descriptor",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Most recent upload"},
                    "404": {"description": "No recent evidence"}
                }
            }
        },
        "/violations/evidence/{token}": {
            "get": {
                "tags": ["violations"],
                "summary": "Download a violation photo",
                "parameters": [
                    {"name": "token", "in": "path", "type": "string", "required": true, "description": "Signed evidence token"}
                ],
                "responses": {
                    "200": {"description": "Photo stream"},
                    "403": {"description": "Invalid or expired link"}
                }
            }
        },
        "/violations/{id}": {
            "get": {
                "tags": ["violations"],
                "summary": "Fetch one violation",
                "description": "Soft-deleted records are served flagged for audit.",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "Record", "schema": {"$ref": "#/definitions/ViolationRecord"}},
                    "404": {"description": "Unknown record"}
                }
            },
            "patch": {
                "tags": ["violations"],
                "summary": "Update a violation",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "Updated record"},
                    "404": {"description": "Unknown or deleted record"}
                }
            },
            "delete": {
                "tags": ["violations"],
                "summary": "Soft-delete a violation",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "Record hidden from listings and stats"},
                    "404": {"description": "Unknown record"}
                }
            }
        },
        "/violations/{id}/restore": {
            "post": {
                "tags": ["violations"],
                "summary": "Restore a soft-deleted violation",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "Record visible again"},
                    "404": {"description": "Unknown record"}
                }
            }
        },
        "/events/{channel}": {
            "get": {
                "tags": ["events"],
                "summary": "Subscribe to live violation events",
                "description": "Server-sent event stream for a role channel (security or osa). Events are freshness hints, not a replayable log.",
                "security": [{"BearerAuth": []}],
                "produces": ["text/event-stream"],
                "parameters": [{"name": "channel", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "Event stream"},
                    "403": {"description": "Role cannot watch this channel"}
                }
            }
        },
        "/users": {
            "post": {
                "tags": ["users"],
                "summary": "Provision an account",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Account created"},
                    "409": {"description": "Username already taken"}
                }
            },
            "get": {
                "tags": ["users"],
                "summary": "List accounts",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Paged accounts"}}
            }
        },
        "/users/{id}": {
            "get": {
                "tags": ["users"],
                "summary": "Fetch one account",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {"200": {"description": "Account"}, "404": {"description": "Unknown account"}}
            },
            "patch": {
                "tags": ["users"],
                "summary": "Update an account",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {"200": {"description": "Updated account"}}
            },
            "delete": {
                "tags": ["users"],
                "summary": "Delete an account",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {"204": {"description": "Account removed"}}
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["username", "password"],
            "properties": {
                "username": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "ViolationRecord": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "student_name": {"type": "string"},
                "year_level": {"type": "string"},
                "course": {"type": "string"},
                "violation_type": {"type": "string"},
                "occurred_at": {"type": "string", "format": "date-time"},
                "status": {"type": "string", "enum": ["pending", "resolved", "not-yet-resolved"]},
                "offense_ordinal": {"type": "integer"},
                "evidence_url": {"type": "string"},
                "submitted_by": {"type": "string"},
                "resolved_by": {"type": "string"},
                "resolved_at": {"type": "string", "format": "date-time"},
                "notes": {"type": "string"},
                "is_deleted": {"type": "boolean"}
            }
        },
        "ViolationAnalytics": {
            "type": "object",
            "properties": {
                "totals": {"type": "object"},
                "by_date": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "date": {"type": "string"},
                            "count": {"type": "integer"}
                        }
                    }
                },
                "by_type": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "violation_type": {"type": "string"},
                            "count": {"type": "integer"}
                        }
                    }
                }
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
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
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
