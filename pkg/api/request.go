package api

import (
	"encoding/json"
	"fmt"
	"io"

	"go-loginguard/pkg/models"
)

type predictResponse struct {
	Classification models.Classification `json:"classification"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// decodeLogin validates a scoring request body.
func decodeLogin(body io.Reader) (models.LoginInput, error) {
	var fields models.LoginFields
	if err := json.NewDecoder(body).Decode(&fields); err != nil {
		return models.LoginInput{}, fmt.Errorf("invalid JSON body: %w", err)
	}
	return fields.Validate()
}
