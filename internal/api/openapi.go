package api

import (
	"net/http"

	"github.com/goccy/go-json"
)

// handleOpenAPISpec returns the OpenAPI 3.0 specification
func (s *Server) handleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	jsonContent := func(schema map[string]interface{}) map[string]interface{} {
		return map[string]interface{}{
			"application/json": map[string]interface{}{"schema": schema},
		}
	}
	objectSchema := map[string]interface{}{"type": "object"}
	okResponse := map[string]interface{}{
		"200": map[string]interface{}{
			"description": "Success",
			"content":     jsonContent(objectSchema),
		},
	}
	pathParam := func(name string) map[string]interface{} {
		return map[string]interface{}{
			"name":     name,
			"in":       "path",
			"required": true,
			"schema":   map[string]interface{}{"type": "string"},
		}
	}
	queryParam := func(name, typ string) map[string]interface{} {
		return map[string]interface{}{
			"name":   name,
			"in":     "query",
			"schema": map[string]interface{}{"type": typ},
		}
	}

	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "Moodcue Movie Recommendation API",
			"description": "Mood-aware movie retrieval: semantic search, item similarity and personalized recommendations",
			"version":     "1.0.0",
		},
		"paths": map[string]interface{}{
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Health check",
					"operationId": "getHealth",
					"responses":   okResponse,
				},
			},
			"/ready": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Readiness check",
					"operationId": "getReady",
					"responses":   okResponse,
				},
			},
			"/api/v1/movies": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Add a movie",
					"description": "Normalize, embed and store one movie",
					"operationId": "addMovie",
					"requestBody": map[string]interface{}{
						"required": true,
						"content":  jsonContent(objectSchema),
					},
					"responses": okResponse,
				},
			},
			"/api/v1/movies/import": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Import a batch of movies",
					"description": "Deduplicate, annotate against the catalog, embed and store",
					"operationId": "importMovies",
					"requestBody": map[string]interface{}{
						"required": true,
						"content":  jsonContent(objectSchema),
					},
					"responses": okResponse,
				},
			},
			"/api/v1/movies/{id}": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Get a movie",
					"operationId": "getMovie",
					"parameters":  []map[string]interface{}{pathParam("id")},
					"responses":   okResponse,
				},
				"delete": map[string]interface{}{
					"summary":     "Delete a movie",
					"operationId": "deleteMovie",
					"parameters":  []map[string]interface{}{pathParam("id")},
					"responses":   okResponse,
				},
			},
			"/api/v1/movies/{id}/similar": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Find similar movies",
					"description": "Nearest neighbors of a stored movie, excluding itself",
					"operationId": "similarMovies",
					"parameters": []map[string]interface{}{
						pathParam("id"),
						queryParam("k", "integer"),
					},
					"responses": okResponse,
				},
			},
			"/api/v1/search": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Semantic movie search",
					"operationId": "searchMovies",
					"parameters": []map[string]interface{}{
						queryParam("q", "string"),
						queryParam("k", "integer"),
						queryParam("min_rating", "number"),
						queryParam("mood", "string"),
					},
					"responses": okResponse,
				},
			},
			"/api/v1/users/{userID}/recommendations": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Personalized recommendations",
					"description": "Preference-driven search with popularity fallback",
					"operationId": "getRecommendations",
					"parameters": []map[string]interface{}{
						pathParam("userID"),
						queryParam("mood", "string"),
						queryParam("k", "integer"),
					},
					"responses": okResponse,
				},
			},
			"/api/v1/users/{userID}/interactions": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Record a conversation turn",
					"operationId": "recordInteraction",
					"parameters":  []map[string]interface{}{pathParam("userID")},
					"requestBody": map[string]interface{}{
						"required": true,
						"content":  jsonContent(objectSchema),
					},
					"responses": okResponse,
				},
			},
			"/api/v1/status": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Service status",
					"operationId": "getStatus",
					"responses":   okResponse,
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
