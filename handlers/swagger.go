package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the notes API.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg gin.IRoutes) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>notebins API | Swagger</title>
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
  "info": { "title": "notebins", "version": "v1.0.0" },
  "components": {
    "schemas": {
      "Error": { "type": "object", "properties": { "success": {"type":"boolean"}, "message": {"type":"string"}, "errors": {"type":"array","items":{"type":"object","properties":{"field":{"type":"string"},"message":{"type":"string"}}}} } },
      "Password": { "type": "object", "properties": { "password": {"type":"string"} } }
    }
  },
  "paths": {
    "/api/notes": {
      "post": {
        "summary": "Create a note",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"content":{"type":"string"},"password":{"type":"string"}}}}}},
        "responses": { "201": { "description": "note created" } }
      }
    },
    "/api/notes/{id}": {
      "get": { "summary": "Fetch a note; content is blank when password protected", "responses": { "200": { "description": "note" }, "404": { "description": "missing or expired" } } },
      "put": { "summary": "Replace note content", "requestBody": { "content": { "application/json": { "schema": {"type":"object","required":["content"],"properties":{"content":{"type":"string"}}}}}}, "responses": { "200": { "description": "updated" }, "400": { "description": "content missing" }, "404": { "description": "missing or expired" } } }
    },
    "/api/notes/{id}/verify": {
      "post": { "summary": "Unlock a protected note", "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/Password"}}}}, "responses": { "200": { "description": "note with content" }, "401": { "description": "invalid password" } } }
    },
    "/api/notes/save": {
      "post": { "summary": "Save a note to the library (upsert by noteId)", "requestBody": { "content": { "application/json": { "schema": {"type":"object","required":["title","noteId","content"],"properties":{"title":{"type":"string"},"noteId":{"type":"string"},"content":{"type":"string"},"password":{"type":"string"}}}}}}, "responses": { "201": { "description": "saved" }, "200": { "description": "updated" } } }
    },
    "/api/notes/saved": {
      "get": { "summary": "List the library, newest updated first", "responses": { "200": { "description": "saved notes" } } }
    },
    "/api/notes/saved/{id}": {
      "get": { "summary": "Fetch a saved note", "responses": { "200": { "description": "saved note" }, "400": { "description": "invalid id" }, "404": { "description": "missing" } } },
      "delete": { "summary": "Delete a saved note; protected notes need the password", "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/Password"}}}}, "responses": { "200": { "description": "deleted" }, "401": { "description": "invalid password" } } }
    },
    "/api/notes/saved/{id}/verify": {
      "post": { "summary": "Unlock a protected saved note", "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/Password"}}}}, "responses": { "200": { "description": "saved note with content" }, "401": { "description": "invalid password" } } }
    },
    "/api/notes/check/{noteId}": {
      "get": { "summary": "Look up the library entry for a note id", "responses": { "200": { "description": "saved note" }, "404": { "description": "not in library" } } }
    },
    "/ws": { "get": { "summary": "Realtime channel (WebSocket); events join, leave, update, ping", "responses": { "101": { "description": "switching protocols" } } } },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "ok" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
