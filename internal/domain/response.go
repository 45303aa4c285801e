package domain

// Response events written to stdout.
const (
	ResponseInit      = "init"
	ResponseComplete  = "complete"
	ResponseTerminate = "terminate"
)

// Response is one line written to stdout.
type Response struct {
	Event string         `json:"event"`
	Oid   string         `json:"oid,omitempty"`
	Path  string         `json:"path,omitempty"`
	Size  *int64         `json:"size,omitempty"`
	Error *ResponseError `json:"error,omitempty"`
}

// ResponseError is the failure payload of a complete event.
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func InitResponse() Response {
	return Response{Event: ResponseInit}
}

func TerminateResponse() Response {
	return Response{Event: ResponseTerminate}
}

// DownloadComplete reports where the object was written.
func DownloadComplete(oid, path string) Response {
	return Response{Event: ResponseComplete, Oid: oid, Path: path}
}

// UploadComplete reports the size of the local file that was sent.
func UploadComplete(oid string, size int64) Response {
	return Response{Event: ResponseComplete, Oid: oid, Size: &size}
}

// TransferFailed reports a failed upload or download for oid.
func TransferFailed(oid string, code int, message string) Response {
	return Response{
		Event: ResponseComplete,
		Oid:   oid,
		Error: &ResponseError{Code: code, Message: message},
	}
}
