package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Clearview Completion API",
        "description": "Category completion reporting for LMS course categories",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Categories", "description": "Category completion reports"},
        {"name": "Advanced Reports", "description": "Site-wide tabular reports"},
        {"name": "Admin", "description": "Operator endpoints"}
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
                    "200": {"description": "Ready"},
                    "503": {"description": "Backing store unreachable"}
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
        },
        "/api/v1/categories": {
            "get": {
                "tags": ["Categories"],
                "summary": "List course categories",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/categories/{id}/report": {
            "get": {
                "tags": ["Categories"],
                "summary": "Category completion report",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "extended", "in": "query", "type": "boolean", "description": "Merge the whole subtree into the report"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown category"},
                    "503": {"description": "Extended data not built yet, retry after the next refresh"}
                }
            }
        },
        "/api/v1/categories/{id}/report/export": {
            "get": {
                "tags": ["Categories"],
                "summary": "Download the category report",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "format", "in": "query", "required": true, "type": "string", "enum": ["csv", "pdf"]},
                    {"name": "view", "in": "query", "type": "string", "enum": ["courses", "students"]},
                    {"name": "extended", "in": "query", "type": "boolean", "description": "Export the subtree-merged view"}
                ],
                "responses": {
                    "200": {"description": "File download"},
                    "400": {"description": "Invalid format or view"},
                    "503": {"description": "Extended data not built yet, retry after the next refresh"}
                }
            }
        },
        "/api/v1/advreports": {
            "get": {
                "tags": ["Advanced Reports"],
                "summary": "List available report kinds",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/advreports/{id}": {
            "get": {
                "tags": ["Advanced Reports"],
                "summary": "Advanced report data",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown report"},
                    "503": {"description": "Report not built yet, retry after the next refresh"}
                }
            }
        },
        "/api/v1/admin/cache/refresh": {
            "post": {
                "tags": ["Admin"],
                "summary": "Trigger a full cache rebuild",
                "responses": {
                    "202": {"description": "Refresh started"},
                    "409": {"description": "A refresh cycle is already running"}
                }
            }
        }
    },
    "definitions": {
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
