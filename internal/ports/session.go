package ports

import "net/http"

// Completion delivers the result of a finished transfer. Exactly one of the
// outcomes applies: err is non-nil for transport failures, otherwise status
// holds the HTTP status code and body the response bytes (nil for uploads
// whose body was not read).
type Completion func(body []byte, status int, err error)

// Task is a transfer handle returned by a Session. A task does nothing until
// Resume is called; Cancel aborts an in-flight transfer. A cancelled or
// failed task must leave its source file untouched.
type Task interface {
	// Resume starts or continues the transfer.
	Resume()

	// Cancel aborts the transfer. The completion callback still fires,
	// with a transport error.
	Cancel()
}

// Session issues HTTP transfers. Implementations own connection pooling and
// per-request deadlines; callers own retry scheduling.
type Session interface {
	// UploadFile posts the file at path as the request body.
	UploadFile(req *http.Request, path string, done Completion) (Task, error)

	// UploadBytes posts data as the request body.
	UploadBytes(req *http.Request, data []byte, done Completion) (Task, error)

	// Fetch performs the request and delivers the response body.
	Fetch(req *http.Request, done Completion) (Task, error)
}
