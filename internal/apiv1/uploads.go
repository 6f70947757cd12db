package apiv1

type UploadSessionRequest struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

type UploadSessionResponse struct {
	SessionID string `json:"sessionId"`
	Key       string `json:"key"`
	UploadURL string `json:"uploadUrl"`
}

type CompleteSessionResponse struct {
	SessionID string `json:"sessionId"`
}
