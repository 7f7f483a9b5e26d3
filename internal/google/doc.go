// Package google adapts the Drive and Classroom REST APIs to the engine's
// collaborator interfaces and obtains OAuth2 credentials for them.
//
// Failures are returned as *model.RemoteError carrying the API's JSON error
// body so the error-detail file records exactly what Google said.
package google
