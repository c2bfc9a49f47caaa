package parser

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/eyriegen/internal/ir"
	"github.com/mark3labs/eyriegen/internal/schema"
	"github.com/mark3labs/eyriegen/internal/spec"
	"github.com/mark3labs/eyriegen/internal/store"
)

const petstore = `openapi: 3.0.3
info:
  title: Petstore
  version: "1.0.0"
paths:
  /pets:
    get:
      operationId: listPets
      parameters:
        - name: limits
          in: query
          schema:
            type: integer
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema:
                type: array
                items:
                  $ref: "#/components/schemas/Pet"
    post:
      operationId: createPet
      requestBody:
        content:
          application/json:
            schema:
              $ref: "#/components/schemas/Pet"
      responses:
        "201":
          description: created
          content:
            application/json:
              schema:
                $ref: "#/components/schemas/Pet"
  /tags:
    get:
      operationId: listTags
      responses:
        "200":
          description: ok
  /pets/{pet_ids}:
    parameters:
      - name: pet_ids
        in: path
        required: true
        schema:
          type: string
      - name: verbose
        in: query
        schema:
          type: boolean
    get:
      operationId: showPetById
      parameters:
        - name: verbose
          in: query
          required: true
          schema:
            type: boolean
      responses:
        "200":
          description: ok
    put:
      operationId: updatePet
      requestBody:
        content:
          application/json:
            schema:
              $ref: "#/components/schemas/Pet"
      responses:
        "200":
          description: ok
  /pets/{pet_ids}/photos:
    get:
      operationId: listPhotos
      parameters:
        - name: pet_ids
          in: path
          required: true
          schema:
            type: string
      responses:
        "200":
          description: ok
components:
  schemas:
    Pet:
      type: object
      description: A pet.
      properties:
        name:
          type: string
        age:
          type: integer
          nullable: true
        status:
          type: string
          enum: [available, sold]
        tags:
          type: array
          items:
            $ref: "#/components/schemas/Tag"
        owner:
          $ref: "#/components/schemas/Owner"
        labels:
          type: array
          items:
            type: string
        counts:
          type: array
          items:
            type: integer
        moods:
          type: array
          items:
            type: string
            enum: [happy, sad]
        createdAt:
          type: string
          format: date-time
          description: Creation time.
        friends:
          type: array
          items:
            $ref: "#/components/schemas/Tag"
    Tag:
      type: object
      properties:
        id:
          type: integer
    Owner:
      type: object
      properties:
        badge:
          $ref: "#/components/schemas/Tag"
        self:
          $ref: "#/components/schemas/Owner"
`

func load(t *testing.T, src string) *spec.Document {
	t.Helper()
	doc, err := spec.LoadData(context.Background(), []byte(src), "test.yaml")
	require.NoError(t, err)
	return doc
}

func parseAll(t *testing.T, src string) *store.Catalog {
	t.Helper()
	catalog := store.NewCatalog()
	require.NoError(t, ParseAll(context.Background(), load(t, src), catalog))
	return catalog
}

func TestParseAll_MinimalPetScenario(t *testing.T) {
	t.Parallel()
	catalog := parseAll(t, `openapi: 3.0.0
info:
  title: Pets
  version: "1"
paths:
  /pets:
    get:
      operationId: listPets
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema:
                type: array
                items:
                  $ref: "#/components/schemas/Pet"
components:
  schemas:
    Pet:
      type: object
      properties:
        name:
          type: string
        age:
          type: integer
          nullable: true
`)

	pet, ok := catalog.Models.Get("Pet")
	require.True(t, ok)
	assert.Equal(t, []ir.Field{
		{Name: "name", Type: "string"},
		{Name: "age", Type: "number", Nullable: true},
	}, pet.Fields)
	assert.Empty(t, pet.Imports)

	svc, ok := catalog.Services.Get("Pet")
	require.True(t, ok)
	require.Len(t, svc.Methods, 1)
	assert.Equal(t, "listPets", svc.Methods[0].Name)
	assert.Equal(t, "application/json", svc.Methods[0].ContentType)
	assert.False(t, svc.Methods[0].HasBody())

	ctrl, ok := catalog.Controllers.Get("Pet")
	require.True(t, ok)
	require.Len(t, ctrl.Methods, 1)
	assert.Equal(t, "listPets", ctrl.Methods[0].Name)
	assert.Equal(t, "/pets", ctrl.Route)
	assert.Equal(t, "/", ctrl.Methods[0].RouteSuffix())
	assert.Equal(t, []ir.Import{{Name: "PetService", Path: "@/services/PetService"}}, ctrl.Imports)
}

func TestModelParser_FieldClassification(t *testing.T) {
	t.Parallel()
	catalog := parseAll(t, petstore)

	assert.Equal(t, []string{"Pet", "Tag", "Owner"}, catalog.Models.Names())

	pet, _ := catalog.Models.Get("Pet")
	assert.Equal(t, "A pet.", pet.Description)

	byName := map[string]ir.Field{}
	var order []string
	for _, f := range pet.Fields {
		byName[f.Name] = f
		order = append(order, f.Name)
	}
	assert.Equal(t, []string{"name", "age", "status", "tags", "owner", "labels", "counts", "moods", "createdAt", "friends"}, order)

	tests := []struct {
		field string
		want  ir.Field
	}{
		{"status", ir.Field{Name: "status", Type: `"available" | "sold"`, EnumValues: []string{"available", "sold"}}},
		{"tags", ir.Field{Name: "tags", Type: "Tag[]", Ref: "Tag"}},
		{"owner", ir.Field{Name: "owner", Type: "Owner", TopLevel: true}},
		{"labels", ir.Field{Name: "labels", Type: "string[]"}},
		{"counts", ir.Field{Name: "counts", Type: "number[]"}},
		{"moods", ir.Field{Name: "moods", Type: `"happy" | "sad"`, EnumValues: []string{"happy", "sad"}}},
		{"createdAt", ir.Field{Name: "createdAt", Type: "string", Format: "date-time", Description: "Creation time."}},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, byName[tt.field])
		})
	}

	assert.Equal(t, []ir.Import{
		{Name: "Tag", Path: "@/models/Tag"},
		{Name: "Owner", Path: "@/models/Owner"},
	}, pet.Imports, "imports follow field order and are de-duplicated")

	owner, _ := catalog.Models.Get("Owner")
	assert.Equal(t, []ir.Import{{Name: "Tag", Path: "@/models/Tag"}}, owner.Imports, "self references are not imported")
}

func TestServiceParser_GroupsByFirstSegment(t *testing.T) {
	t.Parallel()
	catalog := parseAll(t, petstore)

	assert.Equal(t, []string{"Pet", "Tag"}, catalog.Services.Names())
	svc, _ := catalog.Services.Get("Pet")
	assert.Equal(t, []string{"listPets", "createPet", "showPetById", "updatePet", "listPhotos"}, ir.MethodNames(svc.Methods))

	ctrl, _ := catalog.Controllers.Get("Pet")
	assert.Equal(t, ir.MethodNames(svc.Methods), ir.MethodNames(ctrl.Methods))
	assert.Equal(t, "/pets", ctrl.Route)
	assert.Equal(t, "/{pet_ids}/photos", ctrl.Methods[4].RouteSuffix())
}

func TestServiceParser_GroupingIgnoresPathOrder(t *testing.T) {
	t.Parallel()
	const tmpl = `openapi: 3.0.0
info:
  title: Order
  version: "1"
paths:
%s
components:
  schemas:
    Pet:
      type: object
`
	const collection = `  /pets:
    get:
      operationId: listPets
      responses:
        "200":
          description: ok
`
	const item = `  /pets/{id}:
    get:
      operationId: showPet
      parameters:
        - name: id
          in: path
          required: true
          schema:
            type: string
      responses:
        "200":
          description: ok
`
	forward := parseAll(t, fmt.Sprintf(tmpl, collection+item))
	backward := parseAll(t, fmt.Sprintf(tmpl, item+collection))

	for _, c := range []*store.Catalog{forward, backward} {
		require.Equal(t, 1, c.Services.Len())
		require.Equal(t, 1, c.Controllers.Len())
		svc, _ := c.Services.Get("Pet")
		assert.ElementsMatch(t, []string{"listPets", "showPet"}, ir.MethodNames(svc.Methods))
	}
}

func TestServiceParser_MixedSegmentsKeepTheirSuffix(t *testing.T) {
	t.Parallel()
	catalog := parseAll(t, `openapi: 3.0.0
info:
  title: Mixed
  version: "1"
paths:
  /pet:
    post:
      operationId: createPet
      responses:
        "201":
          description: created
  /pets/{id}:
    get:
      operationId: showPet
      parameters:
        - name: id
          in: path
          required: true
          schema:
            type: string
      responses:
        "200":
          description: ok
`)

	ctrl, ok := catalog.Controllers.Get("Pet")
	require.True(t, ok)
	require.Len(t, ctrl.Methods, 2)
	assert.Equal(t, "/pet", ctrl.Route)
	assert.Equal(t, "/", ctrl.Methods[0].RouteSuffix())
	assert.Equal(t, "/{id}", ctrl.Methods[1].RouteSuffix())
}

func TestServiceParser_MergeIsIdempotent(t *testing.T) {
	t.Parallel()
	doc := load(t, petstore)
	catalog := store.NewCatalog()
	services := NewServiceParser(catalog.Services)
	controllers := NewControllerParser(catalog.Controllers)

	for i := 0; i < 2; i++ {
		require.NoError(t, services.Parse(context.Background(), doc))
		require.NoError(t, controllers.Parse(context.Background(), doc))
	}

	svc, _ := catalog.Services.Get("Pet")
	assert.Equal(t, []string{"listPets", "createPet", "showPetById", "updatePet", "listPhotos"}, ir.MethodNames(svc.Methods))
	ctrl, _ := catalog.Controllers.Get("Pet")
	assert.Len(t, ctrl.Methods, 5)
	assert.Len(t, ctrl.Imports, 2)
}

func TestServiceParser_ImportsDeduplicated(t *testing.T) {
	t.Parallel()
	catalog := parseAll(t, petstore)

	svc, _ := catalog.Services.Get("Pet")
	assert.Equal(t, []ir.Import{{Name: "Pet", Path: "@/models/Pet"}}, svc.Imports)

	ctrl, _ := catalog.Controllers.Get("Pet")
	assert.Equal(t, []ir.Import{
		{Name: "PetService", Path: "@/services/PetService"},
		{Name: "Pet", Path: "@/models/Pet"},
	}, ctrl.Imports)

	tags, _ := catalog.Controllers.Get("Tag")
	assert.Equal(t, []ir.Import{{Name: "TagService", Path: "@/services/TagService"}}, tags.Imports)
	tagSvc, _ := catalog.Services.Get("Tag")
	assert.NotNil(t, tagSvc.Imports)
	assert.Empty(t, tagSvc.Imports)
}

func TestServiceParser_MethodDetails(t *testing.T) {
	t.Parallel()
	catalog := parseAll(t, petstore)
	svc, _ := catalog.Services.Get("Pet")

	list := svc.Methods[0]
	assert.Equal(t, ir.GET, list.Type)
	assert.Equal(t, "/pets", list.URL)
	require.NotNil(t, list.Parameters)
	assert.Equal(t, []ir.Parameter{{In: "query", Name: "limit"}}, list.Parameters.Params)

	create := svc.Methods[1]
	assert.Equal(t, ir.POST, create.Type)
	assert.Equal(t, "application/json", create.ContentType, "falls back to the 201 response")
	assert.Equal(t, []ir.Body{{Name: "pet", Type: "Pet"}}, create.Parameters.Body)
	assert.Empty(t, create.Parameters.Params)

	show := svc.Methods[2]
	assert.Equal(t, "", show.ContentType, "200 without content yields no content type")
	assert.Equal(t, []ir.Parameter{
		{In: "path", Name: "petId", Required: true},
		{In: "query", Name: "verbose", Required: true},
	}, show.Parameters.Params, "operation parameters override path-level ones in place")

	update := svc.Methods[3]
	assert.Equal(t, ir.PUT, update.Type)
	assert.Equal(t, []ir.Parameter{
		{In: "path", Name: "petId", Required: true},
		{In: "query", Name: "verbose"},
	}, update.Parameters.Params)
}

func TestServiceParser_ContentTypeFollowsDeclarationOrder(t *testing.T) {
	t.Parallel()
	catalog := parseAll(t, `openapi: 3.0.0
info:
  title: Text
  version: "1"
paths:
  /reports:
    get:
      operationId: getReport
      responses:
        "200":
          description: ok
          content:
            text/plain:
              schema:
                type: string
            application/json:
              schema:
                type: string
components:
  schemas:
    Report:
      type: object
`)
	svc, ok := catalog.Services.Get("Report")
	require.True(t, ok)
	assert.Equal(t, "text/plain", svc.Methods[0].ContentType)
}

func TestServiceParser_MissingOperationID(t *testing.T) {
	t.Parallel()
	doc := load(t, `openapi: 3.0.0
info:
  title: Broken
  version: "1"
paths:
  /pets:
    get:
      operationId: listPets
      responses:
        "200":
          description: ok
    post:
      responses:
        "201":
          description: created
`)
	catalog := store.NewCatalog()

	for _, p := range []Parser{NewServiceParser(catalog.Services), NewControllerParser(catalog.Controllers)} {
		err := p.Parse(context.Background(), doc)
		var perr *Error
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, MissingOperationID, perr.Code)
		assert.Equal(t, "Pet", perr.Resource)
		assert.Equal(t, "/paths/~1pets/post", perr.Pointer)
	}
	assert.False(t, catalog.Services.Has("Pet"), "no partial service is stored")
	assert.False(t, catalog.Controllers.Has("Pet"), "no partial controller is stored")
}

func TestServiceParser_RootPathIsStructural(t *testing.T) {
	t.Parallel()
	doc := load(t, `openapi: 3.0.0
info:
  title: Root
  version: "1"
paths:
  /:
    get:
      operationId: root
      responses:
        "200":
          description: ok
`)
	err := NewServiceParser(store.New[ir.Service]()).Parse(context.Background(), doc)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, Structural, perr.Code)
}

func TestModelParser_StructuralErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
	}{
		{
			name: "no components",
			src: `openapi: 3.0.0
info:
  title: Empty
  version: "1"
paths: {}
`,
		},
		{
			name: "bare root ref",
			src: `openapi: 3.0.0
info:
  title: Alias
  version: "1"
paths: {}
components:
  schemas:
    Pet:
      type: object
    Animal:
      $ref: "#/components/schemas/Pet"
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := NewModelParser(store.New[ir.Model]()).Parse(context.Background(), load(t, tt.src))
			var perr *Error
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, Structural, perr.Code)
		})
	}
}

func TestModelParser_Conflict(t *testing.T) {
	t.Parallel()
	doc := load(t, `openapi: 3.0.0
info:
  title: Clash
  version: "1"
paths: {}
components:
  schemas:
    Pet:
      type: object
    Pets:
      type: object
`)
	err := NewModelParser(store.New[ir.Model]()).Parse(context.Background(), doc)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, Conflict, perr.Code)
	assert.Equal(t, "Pet", perr.Resource)
	assert.Contains(t, perr.Error(), `"Pets"`)
}

func TestModelParser_ReparseOverwrites(t *testing.T) {
	t.Parallel()
	doc := load(t, petstore)
	models := store.New[ir.Model]()
	p := NewModelParser(models)
	require.NoError(t, p.Parse(context.Background(), doc))
	require.NoError(t, p.Parse(context.Background(), doc))
	assert.Equal(t, 3, models.Len())
}

func TestModelParser_InvalidModel(t *testing.T) {
	t.Parallel()
	doc := load(t, `openapi: 3.0.0
info:
  title: Digits
  version: "1"
paths: {}
components:
  schemas:
    "404":
      type: object
`)
	models := store.New[ir.Model]()
	err := NewModelParser(models, WithValidator(schema.MustNew())).Parse(context.Background(), doc)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, Invalid, perr.Code)
	var serr *schema.Error
	require.True(t, errors.As(err, &serr), "validator detail must be kept as the cause")
	assert.NotEmpty(t, serr.Issues)
	assert.Equal(t, 0, models.Len())
}

func TestParse_HonorsCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ParseAll(ctx, load(t, petstore), store.NewCatalog())
	require.ErrorIs(t, err, context.Canceled)
}
