package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "LGU Admin API",
        "description": "Media management and provider sync for the LGU admin console",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [
        {"BearerAuth": []}
    ],
    "tags": [
        {"name": "Assets", "description": "Media library backed by the provider"},
        {"name": "Sync", "description": "Provider and database reconciliation"},
        {"name": "Cleanup", "description": "Provider-side deletion queue and scheduler"},
        {"name": "Webhook", "description": "Provider notifications"}
    ],
    "paths": {
        "/assets": {
            "get": {
                "tags": ["Assets"],
                "summary": "Search assets",
                "parameters": [
                    {"name": "folder", "in": "query", "type": "string"},
                    {"name": "resource_type", "in": "query", "type": "string", "enum": ["image", "video", "raw"]},
                    {"name": "tags", "in": "query", "type": "array", "items": {"type": "string"}, "collectionFormat": "multi"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "sync_status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "sort_by", "in": "query", "type": "string"},
                    {"name": "sort_order", "in": "query", "type": "string", "enum": ["asc", "desc"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Assets"],
                "summary": "Upload an asset",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "file", "in": "formData", "type": "file", "required": true},
                    {"name": "folder", "in": "formData", "type": "string"},
                    {"name": "public_id", "in": "formData", "type": "string"},
                    {"name": "resource_type", "in": "formData", "type": "string", "enum": ["auto", "image", "video", "raw"]},
                    {"name": "tags", "in": "formData", "type": "string", "description": "Comma separated"},
                    {"name": "description", "in": "formData", "type": "string"},
                    {"name": "alt_text", "in": "formData", "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "413": {"description": "File too large", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assets/stats": {
            "get": {
                "tags": ["Assets"],
                "summary": "Library statistics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assets/upload-signature": {
            "get": {
                "tags": ["Assets"],
                "summary": "Signed parameters for direct browser uploads",
                "parameters": [
                    {"name": "folder", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assets/{publicId}": {
            "get": {
                "tags": ["Assets"],
                "summary": "Get an asset",
                "parameters": [
                    {"name": "publicId", "in": "path", "type": "string", "required": true, "description": "URL-encoded public id"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "patch": {
                "tags": ["Assets"],
                "summary": "Update asset metadata",
                "parameters": [
                    {"name": "publicId", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateAssetRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Assets"],
                "summary": "Soft delete an asset and queue provider deletion",
                "parameters": [
                    {"name": "publicId", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/DeleteAssetRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sync": {
            "post": {
                "tags": ["Sync"],
                "summary": "Run a sync",
                "parameters": [
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/SyncRequest"}}
                ],
                "responses": {
                    "200": {"description": "Completed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "202": {"description": "Queued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "A sync is already running", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sync/events": {
            "get": {
                "tags": ["Sync"],
                "summary": "Server-sent sync status events",
                "produces": ["text/event-stream"],
                "responses": {
                    "200": {"description": "Event stream"}
                }
            }
        },
        "/sync/logs": {
            "get": {
                "tags": ["Sync"],
                "summary": "Query the sync audit log",
                "parameters": [
                    {"name": "public_id", "in": "query", "type": "string"},
                    {"name": "operation", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "source", "in": "query", "type": "string"},
                    {"name": "from", "in": "query", "type": "string", "format": "date"},
                    {"name": "to", "in": "query", "type": "string", "format": "date"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sync/logs/export": {
            "get": {
                "tags": ["Sync"],
                "summary": "Export the sync audit log",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File"}
                }
            }
        },
        "/sync/jobs/{id}": {
            "get": {
                "tags": ["Sync"],
                "summary": "Status of a queued sync",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sync/operations": {
            "get": {
                "tags": ["Sync"],
                "summary": "Recent sync operations",
                "parameters": [
                    {"name": "operation_type", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sync/operations/{id}": {
            "get": {
                "tags": ["Sync"],
                "summary": "Get a sync operation",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sync/operations/{id}/live": {
            "get": {
                "tags": ["Sync"],
                "summary": "Latest broadcast event for an operation",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/cleanup": {
            "post": {
                "tags": ["Cleanup"],
                "summary": "Process the cleanup queue now",
                "parameters": [
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/CleanupRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/cleanup/queue": {
            "get": {
                "tags": ["Cleanup"],
                "summary": "Browse the cleanup queue",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["pending", "processing", "completed", "failed", "skipped"]},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Cleanup"],
                "summary": "Queue deletion of a provider asset without a local row",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/QueueRemoteDeletionRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/cleanup/queue/{id}": {
            "get": {
                "tags": ["Cleanup"],
                "summary": "Get a cleanup queue item",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scheduler": {
            "get": {
                "tags": ["Cleanup"],
                "summary": "Cleanup scheduler status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Cleanup"],
                "summary": "Control the cleanup scheduler",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SchedulerRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "A cleanup pass is already running", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/webhook": {
            "post": {
                "tags": ["Webhook"],
                "summary": "Receive a signed provider notification",
                "security": [],
                "parameters": [
                    {"name": "X-Timestamp", "in": "header", "type": "string", "required": true},
                    {"name": "X-Signature", "in": "header", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "200": {"description": "Acknowledged", "schema": {"$ref": "#/definitions/Ack"}},
                    "401": {"description": "Bad signature", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Webhooks disabled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Webhook"],
                "summary": "Replay a notification for one asset",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/WebhookSimulateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "UpdateAssetRequest": {
            "type": "object",
            "properties": {
                "tags": {"type": "array", "items": {"type": "string"}},
                "description": {"type": "string"},
                "alt_text": {"type": "string"}
            }
        },
        "DeleteAssetRequest": {
            "type": "object",
            "properties": {
                "reason": {"type": "string"}
            }
        },
        "SyncRequest": {
            "type": "object",
            "properties": {
                "mode": {"type": "string", "enum": ["full", "remote_to_local", "local_to_remote", "orphans"]},
                "force": {"type": "boolean"},
                "batch_size": {"type": "integer"},
                "max_retries": {"type": "integer"},
                "include_deleted": {"type": "boolean"},
                "folder_filter": {"type": "string"},
                "resource_type_filter": {"type": "string", "enum": ["image", "video", "raw"]},
                "single_asset": {"type": "string"},
                "async": {"type": "boolean"}
            }
        },
        "CleanupRequest": {
            "type": "object",
            "properties": {
                "limit": {"type": "integer"},
                "force_retry": {"type": "boolean"},
                "specific_id": {"type": "string", "format": "uuid"}
            }
        },
        "QueueRemoteDeletionRequest": {
            "type": "object",
            "properties": {
                "public_id": {"type": "string"},
                "resource_type": {"type": "string", "enum": ["image", "video", "raw"]},
                "reason": {"type": "string"}
            },
            "required": ["public_id"]
        },
        "SchedulerRequest": {
            "type": "object",
            "properties": {
                "action": {"type": "string", "enum": ["start", "stop", "restart", "configure", "force_cleanup", "status"]},
                "config": {
                    "type": "object",
                    "properties": {
                        "interval": {"type": "string", "example": "5m"},
                        "batch_size": {"type": "integer"}
                    }
                },
                "force_retry": {"type": "boolean"}
            },
            "required": ["action"]
        },
        "WebhookSimulateRequest": {
            "type": "object",
            "properties": {
                "public_id": {"type": "string"},
                "action": {"type": "string", "enum": ["upload", "update", "delete", "restore"]},
                "resource_type": {"type": "string", "enum": ["image", "video", "raw"]}
            },
            "required": ["public_id", "action"]
        },
        "Ack": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"},
                "has_next": {"type": "boolean"},
                "has_prev": {"type": "boolean"}
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
