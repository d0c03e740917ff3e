package cerr

import (
	"errors"
	"fmt"
	"runtime"
)

type Error struct {
	Code  Code
	Msg   string // ユーザーへ Code とともに返却するメッセージ
	Err   error  // ログに残したいエラー
	Stack string // スタックトレース
}

func NewError(code Code, msg string, underlying error) *Error {
	err := &Error{
		Code: code,
		Msg:  msg,
		Err:  underlying,
	}
	if code.LogsAsError() {
		stackTrace := make([]byte, 2048)
		n := runtime.Stack(stackTrace, false)
		err.Stack = string(stackTrace[0:n])
	}
	return err
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Code.String(), e.Msg)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code.String(), e.Msg, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ToolMessage returns the caller-safe rendering of err: coded errors
// expose their Code and Msg, anything else is masked as an unknown
// server error so internal paths and stack detail never leak out of the
// process.
func ToolMessage(err error) string {
	var cerr *Error
	if errors.As(err, &cerr) {
		return fmt.Sprintf("[%s] %s", cerr.Code.String(), cerr.Msg)
	}
	return "[Unknown] server error"
}

func IsCode(err error, code Code) bool {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Code == code
	}
	return false
}
