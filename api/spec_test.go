// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
)

func TestSpecIsValidOpenAPI(t *testing.T) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(Spec)
	if err != nil {
		t.Fatalf("load spec: %v", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		t.Fatalf("spec does not validate: %v", err)
	}
}

func TestSpecCoversCoreRoutes(t *testing.T) {
	doc, err := openapi3.NewLoader().LoadFromData(Spec)
	if err != nil {
		t.Fatalf("load spec: %v", err)
	}

	for _, path := range []string{
		"/posts",
		"/posts/{id}",
		"/posts/{id}/comments",
		"/trending",
		"/status",
		"/rebuild",
	} {
		if doc.Paths.Find(path) == nil {
			t.Errorf("spec is missing path %s", path)
		}
	}

	item := doc.Paths.Find("/posts/{id}")
	if item == nil || item.Get == nil {
		t.Fatal("GET /posts/{id} missing from spec")
	}
	if item.Get.Responses.Status(404) == nil {
		t.Error("GET /posts/{id} does not document 404")
	}
}
