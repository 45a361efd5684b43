package shared

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// MaxJSONBodyBytes bounds JSON request bodies.
const MaxJSONBodyBytes = 1 << 20

var validate = validator.New()

// DecodeJSON decodes the request body into v. Bodies over MaxJSONBodyBytes
// fail with *http.MaxBytesError.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxJSONBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// ValidateRequest runs v's own Validate method when it has one and the
// struct tag validator otherwise.
func ValidateRequest(v any) error {
	if vv, ok := v.(interface{ Validate() error }); ok {
		return vv.Validate()
	}
	return validate.Struct(v)
}
