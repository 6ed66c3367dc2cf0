package web

import (
	"net/http"
	"reflect"
	"sort"
	"strings"

	"demand-ledger/internal/app"

	"github.com/go-chi/chi/v5"
	"github.com/invopop/jsonschema"
	"github.com/shopspring/decimal"
)

// requestBodies lists the JSON bodies accepted by the write endpoints, keyed
// by the name used in GET /api/schema/{name}.
var requestBodies = map[string]any{
	"product":      app.CreateProductRequest{},
	"prices":       app.UpdatePricesRequest{},
	"client":       app.CreateClientRequest{},
	"stock-change": app.StockChangeRequest{},
	"entry":        app.AddEntryRequest{},
	"entry-update": app.UpdateEntryRequest{},
	"close":        app.CloseBatchRequest{},
	"edit":         app.EditBatchRequest{},
	"bill":         app.CreateBillRequest{},
	"bill-check":   app.CheckItemRequest{},
	"payment":      app.PaymentRequest{},
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

// requestSchema reflects v into a JSON Schema. Decimals are strings on the
// wire and required fields follow the validate tags.
func requestSchema(v any) *jsonschema.Schema {
	r := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == decimalType {
				return &jsonschema.Schema{Type: "string", Pattern: `^-?[0-9]+(\.[0-9]+)?$`}
			}
			return nil
		},
	}
	s := r.Reflect(v)
	s.Required = requiredFields(reflect.TypeOf(v))
	return s
}

func requiredFields(t reflect.Type) []string {
	var out []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !strings.HasPrefix(f.Tag.Get("validate"), "required") {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		out = append(out, name)
	}
	return out
}

// listSchemas handles GET /api/schema.
func (h *Handler) listSchemas(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(requestBodies))
	for name := range requestBodies {
		names = append(names, name)
	}
	sort.Strings(names)
	writeJSON(w, map[string][]string{"schemas": names})
}

// getSchema handles GET /api/schema/{name}.
func (h *Handler) getSchema(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	v, ok := requestBodies[name]
	if !ok {
		writeError(w, r, "no schema named "+name, "NOT_FOUND", http.StatusNotFound)
		return
	}
	writeJSON(w, requestSchema(v))
}
