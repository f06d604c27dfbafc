package middleware

import (
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/wms-platform/pick-issue-service/pkg/errors"
)

var validateOnce sync.Once

var (
	skuRegex   = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)
	binIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._/-]{0,63}$`)

	issueTypes = map[string]bool{
		"ITEM_DAMAGED": true,
		"ITEM_MISSING": true,
		"ITEM_EXPIRED": true,
		"WRONG_ITEM":   true,
	}
)

// InitValidator registers the custom tags and JSON field naming on Gin's validator
func InitValidator() {
	validateOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		RegisterValidators(v)
	})
}

// RegisterValidators adds the service's custom tags to v
func RegisterValidators(v *validator.Validate) {
	_ = v.RegisterValidation("notblank", validateNotBlank)
	_ = v.RegisterValidation("sku", validateSKU)
	_ = v.RegisterValidation("binid", validateBinID)
	_ = v.RegisterValidation("issuetype", validateIssueType)

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func validateSKU(fl validator.FieldLevel) bool {
	return skuRegex.MatchString(strings.TrimSpace(fl.Field().String()))
}

func validateBinID(fl validator.FieldLevel) bool {
	return binIDRegex.MatchString(strings.TrimSpace(fl.Field().String()))
}

func validateIssueType(fl validator.FieldLevel) bool {
	return issueTypes[strings.TrimSpace(fl.Field().String())]
}

// ContentType rejects POST/PUT/PATCH bodies that are not JSON
func ContentType() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			contentType := c.GetHeader("Content-Type")
			if c.Request.ContentLength != 0 && !strings.HasPrefix(contentType, "application/json") {
				AbortWithAppError(c, errors.NewAppError(
					"UNSUPPORTED_MEDIA_TYPE",
					"Content-Type must be application/json",
					http.StatusUnsupportedMediaType,
				))
				return
			}
		}
		c.Next()
	}
}
