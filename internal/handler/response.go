package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/megcare/caseflow/internal/model"
)

// ContextNotice is the gin context key holding the one-shot notice taken
// from the session for this request.
const ContextNotice = "notice"

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Notice  string      `json:"notice,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// Respond writes a success response, attaching the pending notice if the
// request carried one.
func Respond(c *gin.Context, status int, data interface{}) {
	resp := NewSuccessResponse(data)
	if v, ok := c.Get(ContextNotice); ok {
		if n, ok := v.(*model.Notice); ok && n != nil {
			resp.Notice = n.Message()
		}
	}
	c.JSON(status, resp)
}
