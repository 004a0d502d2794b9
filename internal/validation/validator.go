// internal/validation/validator.go
package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/Krosebrook/lovable-prompt-artist/internal/errors"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once

	uuidPattern = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

// Validator 共享的结构体校验器，字段名使用 json 标签
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
		_ = v.RegisterValidation("image_ref", func(fl validator.FieldLevel) bool {
			return IsImageRef(fl.Field().String())
		})
		validate = v
	})
	return validate
}

// IsUUID 是否为 UUID 格式（不区分大小写）
func IsUUID(s string) bool {
	return uuidPattern.MatchString(s)
}

// IsImageRef http(s) 地址或 data:image URI
func IsImageRef(s string) bool {
	if strings.HasPrefix(s, "data:image/") {
		return true
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Struct 校验结构体，错误信息形如 "script.scenes[0].duration: is required"
func Struct(v interface{}) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperrors.NewValidationError("Invalid request body", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fieldPath(fe), describe(fe)))
	}
	return apperrors.NewValidationError(strings.Join(msgs, "; "), nil)
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	// 去掉顶层结构体名
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "email":
		return "must be a valid email address"
	case "image_ref":
		return "must be a URL or data URI"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "is invalid"
	}
}

// decodeObject 解析 JSON 对象，数字保留为 json.Number
func decodeObject(body []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, invalid("Invalid request body")
	}
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return nil, invalid("Invalid request body")
	}
	return obj, nil
}

func invalid(msg string) error {
	return apperrors.NewValidationError(msg, nil)
}

// stringify 与 JS 的 String(v || '') 行为一致：空值得到 ""
func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if !t {
			return ""
		}
		return "true"
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// integer 读取整数值，非整数返回 false
func integer(v interface{}) (int, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	if i, err := n.Int64(); err == nil {
		return int(i), true
	}
	f, err := n.Float64()
	if err != nil || f != float64(int64(f)) {
		return 0, false
	}
	return int(f), true
}
