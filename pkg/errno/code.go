package errno

// code=0 请求成功
// code=4xx 客户端请求错误
// code=5xx 服务器端错误
// code=2xxxx 业务处理错误码

type Errno struct {
	Code    int
	Message string
}

// Error 实现error接口
func (e *Errno) Error() string {
	return e.Message
}

var (
	OK = &Errno{Code: 200, Message: "Success"}

	ErrInvalidParam = &Errno{Code: 400, Message: "Invalid parameter"}
	ErrNotFound     = &Errno{Code: 404, Message: "Not found"}

	ErrInternalServer = &Errno{Code: 500, Message: "Internal server error"}
	ErrUnknown        = &Errno{Code: 510, Message: "Unknown error"}

	// 业务错误码
	ErrMissingParam       = &Errno{Code: 20001, Message: "Missing required parameter"}
	ErrEmptyFile          = &Errno{Code: 20002, Message: "Uploaded file is empty"}
	ErrUnsupportedKind    = &Errno{Code: 20003, Message: "Unsupported media kind"}
	ErrStorageConfig      = &Errno{Code: 20004, Message: "Storage is not configured"}
	ErrStorageRequest     = &Errno{Code: 20005, Message: "Object storage request failed"}
	ErrEncoderFailed      = &Errno{Code: 20006, Message: "Media encoder failed"}
	ErrSegmentsIncomplete = &Errno{Code: 20007, Message: "HLS segments incomplete"}
)
