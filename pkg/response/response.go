package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"hypeledger/internal/ledger"
)

const (
	CodeSuccess            = 0
	CodeParamError         = 400
	CodeNotFound           = 404
	CodeServerError        = 500
	CodeServiceUnavailable = 503
)

// Ledger business codes.
const (
	CodeAlreadyClaimed          = 1001
	CodeCooldownActive          = 1002
	CodeInsufficientBalance     = 1003
	CodeInsufficientFreeBalance = 1004
	CodeInsufficientPaidBalance = 1005
	CodeBudgetExceeded          = 1006
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

// FromError writes the envelope for an error returned by the ledger.
func FromError(c *gin.Context, err error) {
	code, message := Classify(err)
	Error(c, code, message)
}

// Classify maps a ledger error to its business code and a message telling
// the user what to do next. The free and paid variants are checked before
// their common parent.
func Classify(err error) (int, string) {
	switch {
	case err == nil:
		return CodeSuccess, "success"
	case errors.Is(err, ledger.ErrInvalidArgument):
		return CodeParamError, err.Error()
	case errors.Is(err, ledger.ErrNotFound):
		return CodeNotFound, err.Error() + "; catalog ids are listed at /api/v1/catalog"
	case errors.Is(err, ledger.ErrAlreadyClaimed):
		return CodeAlreadyClaimed, "already claimed in this window"
	case errors.Is(err, ledger.ErrCooldownActive):
		return CodeCooldownActive, "this option is cooling down, try again later"
	case errors.Is(err, ledger.ErrInsufficientFreeBalance):
		return CodeInsufficientFreeBalance, "not enough free HYPE; earn more or pay with purchased HYPE"
	case errors.Is(err, ledger.ErrInsufficientPaidBalance):
		return CodeInsufficientPaidBalance, "not enough purchased HYPE; buy a package to top up"
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return CodeInsufficientBalance, "not enough HYPE"
	case errors.Is(err, ledger.ErrSustainabilityBudgetExceeded):
		return CodeBudgetExceeded, "free HYPE budget for premium items is used up; try paying with purchased HYPE"
	case errors.Is(err, ledger.ErrStorageUnavailable):
		return CodeServiceUnavailable, "ledger temporarily unavailable, nothing was charged; retry shortly"
	default:
		return CodeServerError, "internal error"
	}
}
