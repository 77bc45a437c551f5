// Package docs holds the OpenAPI document served at /swagger/. It follows the
// layout of swag output; keep it in step with the handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "status"
                ],
                "summary": "Daemon status",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/message.HealthResponse"
                        }
                    }
                }
            }
        },
        "/speak": {
            "post": {
                "description": "Synthesizes the text and queues it behind any audio already waiting.\nReturns as soon as the audio is queued, with an empty body.",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "speak"
                ],
                "summary": "Speak text (fire-and-forget)",
                "parameters": [
                    {
                        "description": "Text to speak",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/message.SpeakRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Queued; see X-Audio-File and X-Audio-Size",
                        "schema": {
                            "type": "string"
                        },
                        "headers": {
                            "X-Audio-File": {
                                "type": "string",
                                "description": "Path of the queued audio file"
                            },
                            "X-Audio-Size": {
                                "type": "integer",
                                "description": "Audio size in bytes"
                            }
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/message.ErrorResponse"
                        }
                    },
                    "500": {
                        "description": "Internal Server Error",
                        "schema": {
                            "$ref": "#/definitions/message.ErrorResponse"
                        }
                    },
                    "503": {
                        "description": "Service Unavailable",
                        "schema": {
                            "$ref": "#/definitions/message.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/speak-sync": {
            "post": {
                "description": "Synthesizes and plays the text, responding once playback has finished.\nPlayback problems are not reported; the response only reflects synthesis.",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "speak"
                ],
                "summary": "Speak text and wait",
                "parameters": [
                    {
                        "description": "Text to speak",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/message.SpeakRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/message.SyncResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/message.ErrorResponse"
                        }
                    },
                    "500": {
                        "description": "Internal Server Error",
                        "schema": {
                            "$ref": "#/definitions/message.ErrorResponse"
                        }
                    },
                    "503": {
                        "description": "Service Unavailable",
                        "schema": {
                            "$ref": "#/definitions/message.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/voices": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "status"
                ],
                "summary": "List voices",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/message.VoicesResponse"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "message.ErrorResponse": {
            "type": "object",
            "properties": {
                "detail": {
                    "type": "string",
                    "example": "Text cannot be empty"
                }
            }
        },
        "message.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {
                    "type": "string",
                    "example": "ready"
                },
                "tts_available": {
                    "type": "boolean"
                }
            }
        },
        "message.SpeakRequest": {
            "type": "object",
            "properties": {
                "speed": {
                    "description": "Speed is the speaking rate multiplier, 1.0 being normal. Omitted means 1.0.",
                    "type": "number",
                    "example": 1
                },
                "text": {
                    "description": "Text is the text to speak. It is trimmed and must not be empty;\nanything past the configured limit is dropped silently.",
                    "type": "string",
                    "example": "Build finished"
                },
                "voice": {
                    "description": "Voice is a public voice key (e.g., \"af_heart\"). Unknown or empty keys\nfall back to the default voice.",
                    "type": "string",
                    "example": "af_heart"
                }
            }
        },
        "message.SyncResponse": {
            "type": "object",
            "properties": {
                "size": {
                    "type": "integer",
                    "example": 18432
                },
                "status": {
                    "type": "string",
                    "example": "played"
                },
                "voice": {
                    "type": "string",
                    "example": "en-US-AriaNeural"
                }
            }
        },
        "message.VoicesResponse": {
            "type": "object",
            "properties": {
                "tts_available": {
                    "type": "boolean"
                },
                "voices": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "voicewrite API",
	Description:      "Text-to-speech daemon that plays synthesized speech on the local speakers.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
