package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers the API documentation endpoints.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(r gin.IRouter) {
	r.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	r.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>worksheet - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "worksheet", "version": "v1.0.0" },
  "components": {
    "parameters": {
      "uid": { "name": "uid", "in": "path", "required": true, "description": "record id; -1 on POST creates", "schema": { "type": "integer" } }
    },
    "schemas": {
      "Exercise": { "type": "object", "properties": { "id": {"type":"integer"}, "title": {"type":"string"}, "text": {"type":"string"} } },
      "ExerciseInput": { "type": "object", "required": ["title","text"], "properties": { "title": {"type":"string"}, "text": {"type":"string"} } },
      "SheetInput": { "type": "object", "required": ["title","content"], "properties": { "title": {"type":"string"}, "content": {"type":"array","items":{"type":"integer"}} } },
      "ResolvedSheet": { "type": "object", "properties": { "id": {"type":"integer"}, "title": {"type":"string"}, "content": {"type":"array","items":{"type":"integer"}}, "exercises": {"type":"array","items":{"$ref":"#/components/schemas/Exercise"}} } },
      "SheetSummary": { "type": "object", "properties": { "id": {"type":"integer"}, "title": {"type":"string"} } },
      "Error": { "type": "object", "properties": { "error": {"type":"string"}, "details": {"type":"string"}, "field": {"type":"string"} } }
    }
  },
  "paths": {
    "/api/exercise/{uid}": {
      "parameters": [ { "$ref": "#/components/parameters/uid" } ],
      "get": { "summary": "Get an exercise", "responses": { "200": { "description": "exercise", "content": { "application/json": { "schema": { "$ref": "#/components/schemas/Exercise" } } } }, "400": { "description": "invalid id" }, "404": { "description": "not found" } } },
      "post": {
        "summary": "Create (uid -1) or update an exercise",
        "requestBody": { "content": { "application/json": { "schema": { "$ref": "#/components/schemas/ExerciseInput" } } } },
        "responses": { "201": { "description": "stored exercise" }, "400": { "description": "invalid id or body" }, "404": { "description": "update of unknown id" }, "413": { "description": "body too large" }, "422": { "description": "missing field" } }
      }
    },
    "/api/deprecated/exercises": {
      "get": { "summary": "List all exercises", "responses": { "200": { "description": "{\"exercises\": [...]}" } } }
    },
    "/api/sheet/{uid}": {
      "parameters": [ { "$ref": "#/components/parameters/uid" } ],
      "get": { "summary": "Get a sheet with its exercises resolved", "responses": { "200": { "description": "resolved sheet", "content": { "application/json": { "schema": { "$ref": "#/components/schemas/ResolvedSheet" } } } }, "404": { "description": "sheet or referenced exercise not found" } } },
      "post": {
        "summary": "Create (uid -1) or update a sheet",
        "requestBody": { "content": { "application/json": { "schema": { "$ref": "#/components/schemas/SheetInput" } } } },
        "responses": { "201": { "description": "{\"status\":\"ok\",\"id\":N}" }, "400": { "description": "invalid id or body" }, "404": { "description": "update of unknown id" }, "413": { "description": "body too large" }, "422": { "description": "missing field" } }
      }
    },
    "/api/sheets": {
      "get": { "summary": "List sheet summaries", "responses": { "200": { "description": "{\"sheets\": [...]}" } } }
    },
    "/render/sheet/{uid}": {
      "parameters": [ { "$ref": "#/components/parameters/uid" } ],
      "get": { "summary": "Render a sheet to PDF", "responses": { "200": { "description": "PDF", "content": { "application/pdf": {} } }, "404": { "description": "not found" }, "500": { "description": "compiler failed" }, "503": { "description": "renderer busy" } } }
    },
    "/render/jobs/{jobId}": {
      "get": { "summary": "Render job status and archived PDF link", "parameters": [ { "name": "jobId", "in": "path", "required": true, "schema": { "type": "string" } } ], "responses": { "200": { "description": "job" }, "404": { "description": "unknown job" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "text exposition" } } } }
  }
}`
