package google

import (
	"encoding/json"
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"

	"github.com/roach88/classprep/internal/model"
)

// remoteError converts an API call failure into a model.RemoteError.
func remoteError(service, op, resourceID string, err error) error {
	if err == nil {
		return nil
	}

	re := &model.RemoteError{
		Service:    service,
		Op:         op,
		ResourceID: resourceID,
		Err:        err,
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		re.StatusCode = gerr.Code
		if json.Valid([]byte(gerr.Body)) {
			re.Payload = json.RawMessage(gerr.Body)
		} else {
			re.Payload = errorPayload(gerr.Code, gerr.Message, gerr.Body)
		}
		return re
	}

	re.Payload = errorPayload(0, err.Error(), "")
	return re
}

// errorPayload builds a body in the API's own error shape for failures
// that arrived without one.
func errorPayload(code int, message, body string) json.RawMessage {
	if message == "" {
		message = body
	}
	if message == "" && code != 0 {
		message = http.StatusText(code)
	}

	inner := map[string]any{"message": message}
	if code != 0 {
		inner["code"] = code
	}
	data, err := json.Marshal(map[string]any{"error": inner})
	if err != nil {
		return nil
	}
	return data
}
