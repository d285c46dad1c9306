package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// JSONResponse defines the uniform structure for API responses.
type JSONResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Respond writes a JSON response with the given status code.
func Respond(ctx *gin.Context, status int, code int, message string, data interface{}) {
	ctx.JSON(status, JSONResponse{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// Success returns a standard success response.
func Success(ctx *gin.Context, data interface{}) {
	Respond(ctx, http.StatusOK, 0, "success", data)
}

// Created returns a 201 success response.
func Created(ctx *gin.Context, data interface{}) {
	Respond(ctx, http.StatusCreated, 0, "success", data)
}

// Error returns a standard error response.
func Error(ctx *gin.Context, status int, code int, message string) {
	Respond(ctx, status, code, message, nil)
}

// Fail returns an error carrying a stable reason and its catalog message.
func Fail(ctx *gin.Context, status int, code int, reason string) {
	Respond(ctx, status, code, Message(reason), gin.H{"reason": reason})
}

// Abort is Fail for middleware: the handler chain stops here.
func Abort(ctx *gin.Context, status int, code int, message string) {
	ctx.AbortWithStatusJSON(status, JSONResponse{Code: code, Message: message})
}

// AbortReason aborts with a stable reason and its catalog message.
func AbortReason(ctx *gin.Context, status int, code int, reason string) {
	ctx.AbortWithStatusJSON(status, JSONResponse{Code: code, Message: Message(reason), Data: gin.H{"reason": reason}})
}
