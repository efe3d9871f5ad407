// Package docs holds the generated OpenAPI document served under /swagger/.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/v1/payouts/distributions": {
            "post": {
                "summary": "Create a scheduled distribution",
                "tags": ["payouts"],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/v1/payouts/distributions/{distribution_id}": {
            "get": {
                "summary": "Get a distribution with progress counts",
                "tags": ["payouts"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/v1/payouts/distributions/{distribution_id}/execute": {
            "post": {
                "summary": "Run the payout pipeline for a scheduled distribution",
                "tags": ["payouts"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/v1/payouts/distributions/{distribution_id}/retries": {
            "post": {
                "summary": "Retry the failed holders of a failed distribution",
                "tags": ["payouts"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/v1/payouts/distributions/{distribution_id}/batches": {
            "get": {
                "summary": "List a distribution's batch payouts",
                "tags": ["payouts"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/v1/payouts/batches/{batch_id}/holders": {
            "get": {
                "summary": "List a batch payout's holder outcomes",
                "tags": ["payouts"],
                "responses": {"200": {"description": "OK"}}
            }
        }
    }
}`

var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Paymaster API",
	Description:      "Batch payout orchestration service",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
