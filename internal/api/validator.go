package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// embeddedField はタグのない埋め込み構造体の名前空間上の名前
const embeddedField = "~"

// CustomValidator はEcho用のカスタムバリデーター
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator は新しいバリデーターを作成する
// エラーメッセージのフィールド名は json タグ（なければ query タグ）の名前を使う
func NewValidator() *CustomValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		if f.Anonymous {
			return embeddedField
		}
		return f.Name
	})
	return &CustomValidator{validator: v}
}

// Validate はリクエストのバリデーションを実行する
func (cv *CustomValidator) Validate(i interface{}) error {
	err := cv.validator.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		msgs[i] = fieldMessage(fe)
	}
	return echo.NewHTTPError(http.StatusBadRequest, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	// 先頭の型名と埋め込み構造体を除き、guests[0].first_name の形にする
	var parts []string
	for _, p := range strings.Split(fe.Namespace(), ".")[1:] {
		if p == embeddedField {
			continue
		}
		parts = append(parts, p)
	}
	field := strings.Join(parts, ".")
	switch fe.Tag() {
	case "required":
		return field + " は必須です"
	case "min":
		return fmt.Sprintf("%s は %s 以上で指定してください", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s は %s 以上で指定してください", field, fe.Param())
	case "len":
		return fmt.Sprintf("%s は %s 文字で指定してください", field, fe.Param())
	case "email":
		return field + " はメールアドレスの形式で指定してください"
	default:
		return fmt.Sprintf("%s が不正です (%s)", field, fe.Tag())
	}
}
