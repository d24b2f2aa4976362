package dispatcher

import (
	"admin-backend/internal/apierrors"
	"bytes"
	"encoding/json"
)

// Bind decodes a payload into T. Failures match apierrors.ErrInvalidPayload.
func Bind[T any](data json.RawMessage) (T, error) {
	var v T
	if isEmpty(data) {
		return v, apierrors.Invalid(errEmptyPayload)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, apierrors.Invalid(err)
	}
	return v, nil
}

// BindID decodes an optional id payload given either as a JSON string or as
// an object with an "id" field. Absent, null and empty string all yield "".
func BindID(data json.RawMessage) (string, error) {
	if isEmpty(data) {
		return "", nil
	}

	trimmed := bytes.TrimSpace(data)
	if trimmed[0] == '{' {
		var body struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(trimmed, &body); err != nil {
			return "", apierrors.Invalid(err)
		}
		return body.ID, nil
	}

	var id string
	if err := json.Unmarshal(trimmed, &id); err != nil {
		return "", apierrors.Invalid(err)
	}
	return id, nil
}

func isEmpty(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
